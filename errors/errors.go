package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error describes a failed transfer operation.
type Error struct {
	// Op is the operation that failed (e.g., "initiate", "uploadPart", "complete")
	Op string

	// Kind is the transfer stage the failure belongs to
	Kind Kind

	// Bucket is the destination bucket (if applicable)
	Bucket string

	// Key is the destination object key (if applicable)
	Key string

	// UploadID identifies the multipart session, empty when none was opened
	UploadID string

	// PartNumber is the part that failed, zero when the failure is not part specific
	PartNumber int32

	// Err is the primary cause
	Err error

	// AbortErr is set when cleaning up the session also failed.
	// It is secondary and is not reachable through Unwrap.
	AbortErr error
}

// Error implements the error interface by providing a formatted error message.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("s3stream.")
	b.WriteString(e.Op)

	switch {
	case e.Bucket != "" && e.Key != "":
		fmt.Fprintf(&b, " %s/%s", e.Bucket, e.Key)
	case e.Bucket != "":
		fmt.Fprintf(&b, " bucket %s", e.Bucket)
	case e.Key != "":
		fmt.Fprintf(&b, " object %s", e.Key)
	}

	if e.PartNumber > 0 {
		fmt.Fprintf(&b, " part %d", e.PartNumber)
	}

	fmt.Fprintf(&b, ": %v", e.Err)

	if e.AbortErr != nil {
		fmt.Fprintf(&b, " (abort failed: %v)", e.AbortErr)
	}
	return b.String()
}

// Unwrap returns the primary cause for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// AbortError returns the secondary cleanup failure, if any.
func (e *Error) AbortError() error {
	return e.AbortErr
}

// WithBucket adds bucket context to an existing error.
func (e *Error) WithBucket(bucket string) *Error {
	e.Bucket = bucket
	return e
}

// WithKey adds object key context to an existing error.
func (e *Error) WithKey(key string) *Error {
	e.Key = key
	return e
}

// WithUploadID adds the multipart session identifier.
func (e *Error) WithUploadID(uploadID string) *Error {
	e.UploadID = uploadID
	return e
}

// WithPart adds the failing part number.
func (e *Error) WithPart(partNumber int32) *Error {
	e.PartNumber = partNumber
	return e
}

// WithAbortError attaches a failed cleanup without replacing the primary cause.
func (e *Error) WithAbortError(err error) *Error {
	e.AbortErr = err
	return e
}

// WithMessage wraps the underlying error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	e.Err = fmt.Errorf("%s: %w", message, e.Err)
	return e
}

// NewError creates a new Error with the given operation, kind and underlying error.
func NewError(op string, kind Kind, err error) *Error {
	return &Error{
		Op:   op,
		Kind: kind,
		Err:  err,
	}
}

// NewObjectError creates a new Error with bucket and key context.
func NewObjectError(op string, kind Kind, bucket, key string, err error) *Error {
	return &Error{
		Op:     op,
		Kind:   kind,
		Bucket: bucket,
		Key:    key,
		Err:    err,
	}
}

// Sentinel errors for common transfer failures.
// These can be used with errors.Is() for error checking.
var (
	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("s3stream: invalid input")

	// ErrInvalidBucketName indicates that the bucket name is invalid
	ErrInvalidBucketName = errors.New("s3stream: invalid bucket name")

	// ErrInvalidObjectKey indicates that the object key is invalid
	ErrInvalidObjectKey = errors.New("s3stream: invalid object key")

	// ErrBucketNotFound indicates that the destination bucket does not exist
	ErrBucketNotFound = errors.New("s3stream: bucket not found")

	// ErrAccessDenied indicates that access to the resource is denied
	ErrAccessDenied = errors.New("s3stream: access denied")

	// ErrNoSuchUpload indicates that the multipart session no longer exists
	ErrNoSuchUpload = errors.New("s3stream: no such upload")

	// ErrTooManyRequests indicates that the backend is throttling requests
	ErrTooManyRequests = errors.New("s3stream: too many requests")

	// ErrEntityTooSmall indicates a non-final part was below the backend minimum
	ErrEntityTooSmall = errors.New("s3stream: part too small")

	// ErrInvalidPart indicates the backend could not match a receipt to a stored part
	ErrInvalidPart = errors.New("s3stream: invalid part")

	// ErrTooManyParts indicates the source needs more parts than the backend allows
	ErrTooManyParts = errors.New("s3stream: too many parts")

	// ErrNoParts indicates a session was asked to complete without any parts
	ErrNoParts = errors.New("s3stream: no parts to complete")
)

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsInvalidInput checks if an error indicates invalid input.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput) || KindOf(err) == KindInvalidInput
}

// IsSourceError checks if the transfer failed reading the source stream.
func IsSourceError(err error) bool {
	return KindOf(err) == KindSource
}

// IsSessionError checks if the multipart session could not be created.
func IsSessionError(err error) bool {
	return KindOf(err) == KindSession
}

// IsPartUploadError checks if a part upload failed.
func IsPartUploadError(err error) bool {
	return KindOf(err) == KindPartUpload
}

// IsCompletionError checks if completing the object failed.
func IsCompletionError(err error) bool {
	return KindOf(err) == KindCompletion
}

// IsCanceled checks if the transfer was canceled by the caller.
func IsCanceled(err error) bool {
	return KindOf(err) == KindCanceled
}

// IsBucketNotFound checks if an error indicates that a bucket was not found.
func IsBucketNotFound(err error) bool {
	return errors.Is(err, ErrBucketNotFound)
}

// IsAccessDenied checks if an error indicates access was denied.
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrAccessDenied)
}
