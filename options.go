package s3stream

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/input-output-hk/catalyst-forge-libs/fs"

	"github.com/input-output-hk/catalyst-forge-libs/s3stream/streamtypes"
)

// WithBackend selects the object store client: streamtypes.BackendS3 (the
// default) or streamtypes.BackendMinIO for S3-compatible endpoints.
func WithBackend(name string) streamtypes.Option {
	return func(c *streamtypes.ClientConfig) {
		c.Backend = name
	}
}

// WithRegion sets the region. Defaults to the credential chain's region, or
// us-east-1 when none is configured.
func WithRegion(region string) streamtypes.Option {
	return func(c *streamtypes.ClientConfig) {
		c.Region = region
	}
}

// WithEndpoint sets a custom endpoint URL, for LocalStack or S3-compatible
// stores. Required for the MinIO backend.
func WithEndpoint(endpoint string) streamtypes.Option {
	return func(c *streamtypes.ClientConfig) {
		c.Endpoint = endpoint
	}
}

// WithCredentials sets static credentials instead of the default chain.
func WithCredentials(accessKeyID, secretAccessKey, sessionToken string) streamtypes.Option {
	return func(c *streamtypes.ClientConfig) {
		c.AccessKeyID = accessKeyID
		c.SecretAccessKey = secretAccessKey
		c.SessionToken = sessionToken
	}
}

// WithMaxRetries sets the SDK's maximum attempts per request. Default is 3.
// Retries happen inside a single part upload; a part that still fails fails
// the transfer.
func WithMaxRetries(maxRetries int) streamtypes.Option {
	return func(c *streamtypes.ClientConfig) {
		c.MaxRetries = maxRetries
	}
}

// WithTimeout bounds each request to the object store. Default is no timeout.
func WithTimeout(timeout time.Duration) streamtypes.Option {
	return func(c *streamtypes.ClientConfig) {
		c.Timeout = timeout
	}
}

// WithConcurrency sets the number of parts uploaded at once. Default is 4.
func WithConcurrency(concurrency int) streamtypes.Option {
	return func(c *streamtypes.ClientConfig) {
		if concurrency > 0 {
			c.Concurrency = concurrency
		}
	}
}

// WithPartSize sets the size of every part but the last. Default is 100 MiB.
// S3 rejects parts below 5 MiB other than the last one.
func WithPartSize(partSize int64) streamtypes.Option {
	return func(c *streamtypes.ClientConfig) {
		if partSize > 0 {
			c.PartSize = partSize
		}
	}
}

// WithAbortTimeout bounds the abort request sent after a failed transfer.
func WithAbortTimeout(timeout time.Duration) streamtypes.Option {
	return func(c *streamtypes.ClientConfig) {
		if timeout > 0 {
			c.AbortTimeout = timeout
		}
	}
}

// WithForcePathStyle uses path-style bucket addressing.
func WithForcePathStyle(forcePathStyle bool) streamtypes.Option {
	return func(c *streamtypes.ClientConfig) {
		c.ForcePathStyle = forcePathStyle
	}
}

// WithDisableSSL talks plain HTTP to endpoints given without a scheme.
// Only use this for local testing.
func WithDisableSSL(disableSSL bool) streamtypes.Option {
	return func(c *streamtypes.ClientConfig) {
		c.DisableSSL = disableSSL
	}
}

// WithAWSConfig replaces the default AWS configuration loading.
func WithAWSConfig(config *aws.Config) streamtypes.Option {
	return func(c *streamtypes.ClientConfig) {
		c.CustomAWSConfig = config
	}
}

// WithCustomHTTPClient sets the HTTP client used to reach the object store.
func WithCustomHTTPClient(client *http.Client) streamtypes.Option {
	return func(c *streamtypes.ClientConfig) {
		c.CustomHTTPClient = client
	}
}

// WithFilesystem sets the filesystem used for file sources.
// Defaults to the OS filesystem.
func WithFilesystem(filesystem fs.Filesystem) streamtypes.Option {
	return func(c *streamtypes.ClientConfig) {
		c.Filesystem = filesystem
	}
}

// WithHTTPOptions configures how http and https sources are fetched.
func WithHTTPOptions(opts streamtypes.SourceOptions) streamtypes.Option {
	return func(c *streamtypes.ClientConfig) {
		c.Source = opts
	}
}

// WithReadAhead reads sources ahead in the background into the given number
// of buffers of size bytes each.
func WithReadAhead(buffers, size int) streamtypes.Option {
	return func(c *streamtypes.ClientConfig) {
		c.ReadAheadBuffers = buffers
		c.ReadAheadSize = size
	}
}

// WithLogger sets the structured logger. Logs are discarded by default.
func WithLogger(logger *slog.Logger) streamtypes.Option {
	return func(c *streamtypes.ClientConfig) {
		c.Logger = logger
	}
}

// WithContentType sets the object's content type. Without it the type reported
// by the source is used, then the type detected from the first bytes.
func WithContentType(contentType string) streamtypes.TransferOption {
	return func(c *streamtypes.TransferOptionConfig) {
		c.ContentType = contentType
	}
}

// WithMetadata adds user metadata to the object.
func WithMetadata(metadata map[string]string) streamtypes.TransferOption {
	return func(c *streamtypes.TransferOptionConfig) {
		if c.Metadata == nil {
			c.Metadata = make(map[string]string, len(metadata))
		}
		for k, v := range metadata {
			c.Metadata[k] = v
		}
	}
}

// WithStorageClass sets the object's storage class.
func WithStorageClass(storageClass streamtypes.StorageClass) streamtypes.TransferOption {
	return func(c *streamtypes.TransferOptionConfig) {
		c.StorageClass = storageClass
	}
}

// WithServerSideEncryption sets server-side encryption for the object.
func WithServerSideEncryption(sse *streamtypes.SSEConfig) streamtypes.TransferOption {
	return func(c *streamtypes.TransferOptionConfig) {
		c.SSE = sse
	}
}

// WithACL sets a canned ACL on the object.
func WithACL(acl streamtypes.ObjectACL) streamtypes.TransferOption {
	return func(c *streamtypes.TransferOptionConfig) {
		c.ACL = acl
	}
}

// WithProgress reports transfer progress to tracker.
func WithProgress(tracker streamtypes.ProgressTracker) streamtypes.TransferOption {
	return func(c *streamtypes.TransferOptionConfig) {
		c.ProgressTracker = tracker
	}
}

// WithTransferPartSize overrides the client's part size for one transfer.
func WithTransferPartSize(partSize int64) streamtypes.TransferOption {
	return func(c *streamtypes.TransferOptionConfig) {
		if partSize > 0 {
			c.PartSize = partSize
		}
	}
}

// WithTransferConcurrency overrides the client's concurrency for one transfer.
func WithTransferConcurrency(concurrency int) streamtypes.TransferOption {
	return func(c *streamtypes.TransferOptionConfig) {
		if concurrency > 0 {
			c.Concurrency = concurrency
		}
	}
}
