// Package streamtypes provides shared type definitions for the s3stream module.
package streamtypes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/input-output-hk/catalyst-forge-libs/fs"
)

// Size limits imposed by S3-compatible multipart uploads.
const (
	// DefaultPartSize is the minimum size of every part except the last one.
	DefaultPartSize int64 = 100 * 1024 * 1024

	// MinPartSize is the smallest non-final part the backend accepts.
	MinPartSize int64 = 5 * 1024 * 1024

	// MaxPartSize is the largest part the backend accepts.
	MaxPartSize int64 = 5 * 1024 * 1024 * 1024

	// MaxParts is the highest part number the backend accepts.
	MaxParts = 10000

	// DefaultConcurrency is the number of part uploads in flight at once.
	DefaultConcurrency = 4

	// DefaultAbortTimeout bounds the cleanup call after a failed transfer.
	DefaultAbortTimeout = 30 * time.Second
)

// Backend names accepted by WithBackend.
const (
	BackendS3    = "s3"
	BackendMinIO = "minio"
)

// StorageClass represents the S3 storage class for objects.
type StorageClass string

// Predefined S3 storage classes
const (
	// StorageClassStandard is the default S3 storage class
	StorageClassStandard StorageClass = "STANDARD"

	// StorageClassReducedRedundancy provides reduced redundancy storage
	StorageClassReducedRedundancy StorageClass = "REDUCED_REDUNDANCY"

	// StorageClassStandardIA provides infrequent access storage
	StorageClassStandardIA StorageClass = "STANDARD_IA"

	// StorageClassOneZoneIA provides one zone infrequent access storage
	StorageClassOneZoneIA StorageClass = "ONEZONE_IA"

	// StorageClassIntelligentTiering provides intelligent tiering storage
	StorageClassIntelligentTiering StorageClass = "INTELLIGENT_TIERING"

	// StorageClassGlacier provides Glacier archival storage
	StorageClassGlacier StorageClass = "GLACIER"

	// StorageClassDeepArchive provides Deep Archive storage
	StorageClassDeepArchive StorageClass = "DEEP_ARCHIVE"

	// StorageClassGlacierIR provides Glacier Instant Retrieval storage
	StorageClassGlacierIR StorageClass = "GLACIER_IR"
)

// SSEType represents the server-side encryption type for objects.
type SSEType string

// Predefined server-side encryption types
const (
	// SSES3 uses S3-managed encryption keys
	SSES3 SSEType = "AES256"

	// SSEKMS uses AWS KMS-managed encryption keys
	SSEKMS SSEType = "aws:kms"

	// SSEC uses customer-provided encryption keys
	SSEC SSEType = "SSE-C"
)

// ObjectACL represents the access control list for S3 objects.
type ObjectACL string

// Predefined object ACLs
const (
	// ACLPrivate grants private access (default)
	ACLPrivate ObjectACL = "private"

	// ACLPublicRead grants public read access
	ACLPublicRead ObjectACL = "public-read"

	// ACLPublicReadWrite grants public read and write access
	ACLPublicReadWrite ObjectACL = "public-read-write"

	// ACLAuthenticatedRead grants authenticated users read access
	ACLAuthenticatedRead ObjectACL = "authenticated-read"

	// ACLBucketOwnerRead grants bucket owner read access
	ACLBucketOwnerRead ObjectACL = "bucket-owner-read"

	// ACLBucketOwnerFullControl grants bucket owner full control
	ACLBucketOwnerFullControl ObjectACL = "bucket-owner-full-control"
)

// Part is one contiguous slice of the source stream.
// Numbers start at 1 and have no gaps. Data is owned by whoever holds the Part.
type Part struct {
	Number int32
	Data   []byte
}

// Size returns the number of bytes in the part.
func (p Part) Size() int64 {
	return int64(len(p.Data))
}

// PartReceipt is the backend's acknowledgment of a stored part.
type PartReceipt struct {
	// PartNumber is the number of the acknowledged part
	PartNumber int32

	// ETag is the opaque token the backend assigned to the part
	ETag string

	// Size is the number of bytes stored
	Size int64
}

// Destination names the object a transfer writes.
type Destination struct {
	Bucket string
	Key    string
}

// Session is an open multipart upload scoped to one destination.
type Session struct {
	Bucket   string
	Key      string
	UploadID string
}

// CompletedObject describes the object a backend committed.
type CompletedObject struct {
	ETag      string
	VersionID string
	Location  string
}

// ProgressTracker defines the interface for tracking transfer progress.
type ProgressTracker interface {
	// Update is called after every stored part. totalBytes is -1 when unknown.
	Update(bytesTransferred, totalBytes int64)

	// Complete is called when the transfer completes successfully
	Complete()

	// Error is called when the transfer fails
	Error(err error)
}

// SSEConfig contains server-side encryption configuration.
type SSEConfig struct {
	// Type is the encryption type (S3, KMS, or customer-provided)
	Type SSEType

	// KMSKeyID is the KMS key ID (required for SSE-KMS)
	KMSKeyID string

	// CustomerKey is the customer-provided encryption key (for SSE-C)
	CustomerKey string

	// CustomerKeyMD5 is the MD5 hash of the customer key (for SSE-C)
	CustomerKeyMD5 string
}

// UploadConfig holds the per-transfer settings applied to the destination object.
type UploadConfig struct {
	ContentType     string
	Metadata        map[string]string
	StorageClass    StorageClass
	SSE             *SSEConfig
	ACL             ObjectACL
	ProgressTracker ProgressTracker
	PartSize        int64
	Concurrency     int

	// ContentLength is the source size when known. It only feeds progress
	// reporting; zero or negative means unknown.
	ContentLength int64
}

// TransferResult contains the result of a completed transfer.
type TransferResult struct {
	// TransferID correlates the log lines of one transfer
	TransferID string

	// Bucket is the destination bucket
	Bucket string

	// Key is the destination object key
	Key string

	// UploadID is the multipart session, empty for single-shot writes
	UploadID string

	// ContentType is the content type the object was stored with
	ContentType string

	// Size is the number of bytes transferred
	Size int64

	// Parts is the number of parts committed, zero for single-shot writes
	Parts int

	// ETag is the entity tag of the committed object
	ETag string

	// VersionID is the version ID if versioning is enabled
	VersionID string

	// Duration is how long the transfer took
	Duration time.Duration
}

// SourceOptions configures how source URLs are fetched.
type SourceOptions struct {
	// MaxIdleConnsPerHost caps idle keep-alive connections per source host
	MaxIdleConnsPerHost int

	// ResponseHeaderTimeout bounds the wait for response headers.
	// The body itself has no deadline.
	ResponseHeaderTimeout time.Duration

	// RetryAttempts is the number of extra attempts before the body starts streaming
	RetryAttempts int

	// RetryBackoff is the initial delay between attempts
	RetryBackoff time.Duration

	// RetryMaxBackoff caps the delay between attempts
	RetryMaxBackoff time.Duration

	// UserAgent is sent with every source request
	UserAgent string
}

// DefaultSourceOptions returns the source fetch defaults.
func DefaultSourceOptions() SourceOptions {
	return SourceOptions{
		MaxIdleConnsPerHost:   4,
		ResponseHeaderTimeout: 30 * time.Second,
		RetryAttempts:         3,
		RetryBackoff:          time.Second,
		RetryMaxBackoff:       30 * time.Second,
		UserAgent:             "s3stream/1.0",
	}
}

// Configuration types for functional options

// ClientConfig holds configuration for the transfer client.
type ClientConfig struct {
	Backend          string
	Region           string
	Endpoint         string
	AccessKeyID      string
	SecretAccessKey  string
	SessionToken     string
	MaxRetries       int
	Timeout          time.Duration
	Concurrency      int
	PartSize         int64
	AbortTimeout     time.Duration
	ForcePathStyle   bool
	DisableSSL       bool
	CustomAWSConfig  *aws.Config
	CustomHTTPClient *http.Client
	Filesystem       fs.Filesystem
	Logger           *slog.Logger
	Source           SourceOptions
	ReadAheadBuffers int
	ReadAheadSize    int
}

// TransferOptionConfig holds configuration for a single transfer via functional options.
type TransferOptionConfig struct {
	ContentType     string
	Metadata        map[string]string
	StorageClass    StorageClass
	SSE             *SSEConfig
	ACL             ObjectACL
	ProgressTracker ProgressTracker
	PartSize        int64
	Concurrency     int
}

type (
	// Option is a functional option for configuring the transfer client.
	Option func(*ClientConfig)
	// TransferOption is a functional option for configuring a single transfer.
	TransferOption func(*TransferOptionConfig)
)
