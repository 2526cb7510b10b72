// Package validation checks transfer inputs before any request is sent.
package validation

import (
	"fmt"
	"net"
	"path"
	"regexp"
	"slices"
	"strings"
	"unicode"

	s3errors "github.com/input-output-hk/catalyst-forge-libs/s3stream/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3stream/streamtypes"
)

const (
	maxKeyLength           = 1024
	maxMetadataKeyLength   = 128
	maxMetadataValueLength = 2048
)

var (
	mimePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9\-+.]*/[a-zA-Z0-9][a-zA-Z0-9\-+.]*(\s*;.*)?$`)

	reservedMetadataPrefixes = []string{"aws:", "x-amz-", "x-amz:"}

	blockedContentTypes = []string{
		"application/x-shockwave-flash",
		"application/java-archive",
		"application/x-java-archive",
	}

	cannedACLs = []streamtypes.ObjectACL{
		streamtypes.ACLPrivate,
		streamtypes.ACLPublicRead,
		streamtypes.ACLPublicReadWrite,
		streamtypes.ACLAuthenticatedRead,
		streamtypes.ACLBucketOwnerRead,
		streamtypes.ACLBucketOwnerFullControl,
	}
)

// ValidateDestination validates the bucket and key of a transfer target.
func ValidateDestination(bucket, key string) error {
	if err := ValidateBucketName(bucket); err != nil {
		return err
	}
	return ValidateObjectKey(key)
}

// ValidateBucketName checks that bucket is a DNS-compliant S3 bucket name.
func ValidateBucketName(bucket string) error {
	invalid := func(msg string) error {
		return s3errors.NewError("validateBucketName", s3errors.KindInvalidInput, s3errors.ErrInvalidBucketName).
			WithBucket(bucket).
			WithMessage(msg)
	}

	switch {
	case bucket == "":
		return invalid("bucket name cannot be empty")
	case len(bucket) < 3 || len(bucket) > 63:
		return invalid("bucket name must be between 3 and 63 characters long")
	case strings.IndexFunc(bucket, func(r rune) bool { return !isBucketChar(r) }) >= 0:
		return invalid("bucket name can only contain lowercase letters, numbers, dots, and hyphens")
	case strings.ContainsAny(bucket[:1], ".-") || strings.ContainsAny(bucket[len(bucket)-1:], ".-"):
		return invalid("bucket name cannot start or end with a hyphen or dot")
	case net.ParseIP(bucket) != nil:
		return invalid("bucket name cannot be formatted as an IP address")
	case strings.Contains(bucket, "..") || strings.Contains(bucket, "--"):
		return invalid("bucket name cannot contain two adjacent periods or hyphens")
	case bucket == "localhost":
		return invalid("bucket name cannot be a reserved word")
	}
	return nil
}

// ValidateObjectKey rejects empty or oversized keys, keys with control
// characters, and keys that escape their prefix.
func ValidateObjectKey(key string) error {
	invalid := func(msg string) error {
		return s3errors.NewError("validateObjectKey", s3errors.KindInvalidInput, s3errors.ErrInvalidObjectKey).
			WithKey(key).
			WithMessage(msg)
	}

	switch {
	case key == "":
		return invalid("object key cannot be empty")
	case len(key) > maxKeyLength:
		return invalid(fmt.Sprintf("object key cannot exceed %d bytes", maxKeyLength))
	case hasPathTraversal(key):
		return invalid("object key cannot contain path traversal sequences")
	case strings.IndexFunc(key, unicode.IsControl) >= 0:
		return invalid("object key cannot contain control characters")
	}
	return nil
}

// ValidateMetadata validates user metadata keys and values.
func ValidateMetadata(metadata map[string]string) error {
	invalid := func(msg string) error {
		return s3errors.NewError("validateMetadata", s3errors.KindInvalidInput, s3errors.ErrInvalidInput).
			WithMessage(msg)
	}

	for key, value := range metadata {
		lower := strings.ToLower(key)
		switch {
		case key == "":
			return invalid("metadata key cannot be empty")
		case len(key) > maxMetadataKeyLength:
			return invalid(fmt.Sprintf("metadata key cannot exceed %d characters", maxMetadataKeyLength))
		case strings.IndexFunc(key, func(r rune) bool { return r < 32 || r > 126 }) >= 0:
			return invalid("metadata key can only contain printable ASCII characters")
		case len(value) > maxMetadataValueLength:
			return invalid(fmt.Sprintf("metadata value cannot exceed %d characters", maxMetadataValueLength))
		case strings.IndexFunc(value, func(r rune) bool { return !isMetadataValueChar(r) }) >= 0:
			return invalid("metadata value can only contain printable characters")
		}
		for _, prefix := range reservedMetadataPrefixes {
			if strings.HasPrefix(lower, prefix) {
				return invalid("metadata key cannot start with reserved prefix: " + prefix)
			}
		}
	}
	return nil
}

// SanitizeMetadata returns a copy of metadata with non-printable characters
// stripped from keys and control characters stripped from values.
func SanitizeMetadata(metadata map[string]string) map[string]string {
	if metadata == nil {
		return nil
	}

	sanitized := make(map[string]string, len(metadata))
	for key, value := range metadata {
		k := strings.Map(func(r rune) rune {
			if unicode.IsPrint(r) {
				return r
			}
			return -1
		}, key)
		v := strings.Map(func(r rune) rune {
			if isMetadataValueChar(r) {
				return r
			}
			return -1
		}, value)
		sanitized[k] = v
	}
	return sanitized
}

// ValidateContentType accepts an empty value or a well-formed MIME type that
// is not on the block list.
func ValidateContentType(contentType string) error {
	if contentType == "" {
		return nil
	}

	invalid := func(msg string) error {
		return s3errors.NewError("validateContentType", s3errors.KindInvalidInput, s3errors.ErrInvalidInput).
			WithMessage(msg)
	}

	if !mimePattern.MatchString(contentType) {
		return invalid("content type must be a valid MIME type")
	}

	base, _, _ := strings.Cut(contentType, ";")
	if slices.Contains(blockedContentTypes, strings.ToLower(strings.TrimSpace(base))) {
		return invalid("content type is not allowed for security reasons")
	}
	return nil
}

// ValidateACL accepts an empty value or one of the canned ACLs.
func ValidateACL(acl streamtypes.ObjectACL) error {
	if acl == "" || slices.Contains(cannedACLs, acl) {
		return nil
	}
	return s3errors.NewError("validateACL", s3errors.KindInvalidInput, s3errors.ErrInvalidInput).
		WithMessage(fmt.Sprintf("unknown canned ACL %q", acl))
}

// ValidatePartSize checks a part size against the S3 limits. A zero size
// means the default and is accepted.
func ValidatePartSize(size int64) error {
	if size == 0 {
		return nil
	}
	if size < streamtypes.MinPartSize || size > streamtypes.MaxPartSize {
		return s3errors.NewError("validatePartSize", s3errors.KindInvalidInput, s3errors.ErrInvalidInput).
			WithMessage(fmt.Sprintf("part size %d must be between %d and %d bytes",
				size, streamtypes.MinPartSize, streamtypes.MaxPartSize))
	}
	return nil
}

func isBucketChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '.' || r == '-'
}

func isMetadataValueChar(r rune) bool {
	return r == '\n' || r == '\t' || (unicode.IsPrint(r) && !unicode.IsControl(r))
}

func hasPathTraversal(key string) bool {
	if strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
		return true
	}
	// Windows drive letters
	if len(key) >= 3 && key[1] == ':' && (key[2] == '\\' || key[2] == '/') {
		return true
	}
	return strings.HasPrefix(path.Clean(key), "/")
}

// ValidateSSE checks that customer-provided encryption carries a 32-byte key.
func ValidateSSE(sse *streamtypes.SSEConfig) error {
	if sse == nil {
		return nil
	}

	invalid := func(msg string) error {
		return s3errors.NewError("validateSSE", s3errors.KindInvalidInput, s3errors.ErrInvalidInput).
			WithMessage(msg)
	}

	switch sse.Type {
	case streamtypes.SSES3, streamtypes.SSEKMS:
		return nil
	case streamtypes.SSEC:
		if len(sse.CustomerKey) != 32 {
			return invalid("customer encryption key must be 32 bytes")
		}
		return nil
	default:
		return invalid(fmt.Sprintf("unknown encryption type %q", sse.Type))
	}
}
