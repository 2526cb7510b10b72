// Package miniobackend implements the transfer backend on the MinIO client,
// for S3-compatible stores that are not AWS.
package miniobackend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/encrypt"

	s3errors "github.com/input-output-hk/catalyst-forge-libs/s3stream/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3stream/internal/backend"
	"github.com/input-output-hk/catalyst-forge-libs/s3stream/streamtypes"
)

// CoreAPI is the subset of *minio.Core used by the backend.
type CoreAPI interface {
	NewMultipartUpload(ctx context.Context, bucket, object string, opts minio.PutObjectOptions) (string, error)
	PutObjectPart(
		ctx context.Context,
		bucket, object, uploadID string,
		partID int,
		data io.Reader,
		size int64,
		opts minio.PutObjectPartOptions,
	) (minio.ObjectPart, error)
	CompleteMultipartUpload(
		ctx context.Context,
		bucket, object, uploadID string,
		parts []minio.CompletePart,
		opts minio.PutObjectOptions,
	) (minio.UploadInfo, error)
	AbortMultipartUpload(ctx context.Context, bucket, object, uploadID string) error
	PutObject(
		ctx context.Context,
		bucket, object string,
		data io.Reader,
		size int64,
		md5Base64, sha256Hex string,
		opts minio.PutObjectOptions,
	) (minio.UploadInfo, error)
}

var _ CoreAPI = (*minio.Core)(nil)

// Options configures the MinIO connection.
type Options struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Secure          bool
	ForcePathStyle  bool
}

// Backend stores objects through a MinIO core client.
type Backend struct {
	core CoreAPI
}

var _ backend.Backend = (*Backend)(nil)

// New creates a backend over an existing core client.
func New(core CoreAPI) *Backend {
	return &Backend{core: core}
}

// Dial connects to an S3-compatible endpoint given as host:port or as a URL,
// in which case the scheme decides Secure.
// Without static keys the AWS environment variables are used.
func Dial(opts Options) (*Backend, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("minio: endpoint is required: %w", s3errors.ErrInvalidInput)
	}
	if strings.Contains(opts.Endpoint, "://") {
		u, err := url.Parse(opts.Endpoint)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("minio: invalid endpoint %q: %w", opts.Endpoint, s3errors.ErrInvalidInput)
		}
		opts.Endpoint = u.Host
		opts.Secure = u.Scheme == "https"
	}

	var creds *credentials.Credentials
	if opts.AccessKeyID != "" {
		creds = credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, opts.SessionToken)
	} else {
		creds = credentials.NewEnvAWS()
	}

	lookup := minio.BucketLookupAuto
	if opts.ForcePathStyle {
		lookup = minio.BucketLookupPath
	}

	core, err := minio.NewCore(opts.Endpoint, &minio.Options{
		Creds:        creds,
		Secure:       opts.Secure,
		Region:       opts.Region,
		BucketLookup: lookup,
	})
	if err != nil {
		return nil, fmt.Errorf("minio: connect %s: %w", opts.Endpoint, err)
	}
	return New(core), nil
}

// Initiate creates a multipart upload.
func (b *Backend) Initiate(
	ctx context.Context,
	dest streamtypes.Destination,
	cfg *streamtypes.UploadConfig,
) (string, error) {
	opts, err := putOptions(cfg)
	if err != nil {
		return "", err
	}

	uploadID, err := b.core.NewMultipartUpload(ctx, dest.Bucket, dest.Key, opts)
	if err != nil {
		return "", translateError(err)
	}
	return uploadID, nil
}

// UploadPart uploads one part of an open session.
func (b *Backend) UploadPart(
	ctx context.Context,
	session streamtypes.Session,
	part streamtypes.Part,
	cfg *streamtypes.UploadConfig,
) (string, error) {
	var opts minio.PutObjectPartOptions
	if cfg != nil && cfg.SSE != nil && cfg.SSE.Type == streamtypes.SSEC {
		sse, err := serverSide(cfg.SSE)
		if err != nil {
			return "", err
		}
		opts.SSE = sse
	}

	objPart, err := b.core.PutObjectPart(
		ctx,
		session.Bucket,
		session.Key,
		session.UploadID,
		int(part.Number),
		bytes.NewReader(part.Data),
		part.Size(),
		opts,
	)
	if err != nil {
		return "", translateError(err)
	}
	return objPart.ETag, nil
}

// Complete commits the session from its receipts.
func (b *Backend) Complete(
	ctx context.Context,
	session streamtypes.Session,
	receipts []streamtypes.PartReceipt,
) (*streamtypes.CompletedObject, error) {
	parts := make([]minio.CompletePart, len(receipts))
	for i, r := range receipts {
		parts[i] = minio.CompletePart{PartNumber: int(r.PartNumber), ETag: r.ETag}
	}

	info, err := b.core.CompleteMultipartUpload(
		ctx, session.Bucket, session.Key, session.UploadID, parts, minio.PutObjectOptions{},
	)
	if err != nil {
		return nil, translateError(err)
	}

	return &streamtypes.CompletedObject{
		ETag:      info.ETag,
		VersionID: info.VersionID,
		Location:  info.Location,
	}, nil
}

// Abort aborts the session. A session the server no longer knows about counts as aborted.
func (b *Backend) Abort(ctx context.Context, session streamtypes.Session) error {
	err := b.core.AbortMultipartUpload(ctx, session.Bucket, session.Key, session.UploadID)
	if err != nil {
		err = translateError(err)
		if errors.Is(err, s3errors.ErrNoSuchUpload) {
			return nil
		}
		return err
	}
	return nil
}

// Put writes data as a single object.
func (b *Backend) Put(
	ctx context.Context,
	dest streamtypes.Destination,
	data []byte,
	cfg *streamtypes.UploadConfig,
) (*streamtypes.CompletedObject, error) {
	opts, err := putOptions(cfg)
	if err != nil {
		return nil, err
	}

	info, err := b.core.PutObject(
		ctx, dest.Bucket, dest.Key, bytes.NewReader(data), int64(len(data)), "", "", opts,
	)
	if err != nil {
		return nil, translateError(err)
	}

	return &streamtypes.CompletedObject{
		ETag:      info.ETag,
		VersionID: info.VersionID,
		Location:  info.Location,
	}, nil
}

func putOptions(cfg *streamtypes.UploadConfig) (minio.PutObjectOptions, error) {
	var opts minio.PutObjectOptions
	if cfg == nil {
		return opts, nil
	}

	opts.ContentType = cfg.ContentType
	opts.StorageClass = string(cfg.StorageClass)

	if len(cfg.Metadata) > 0 || cfg.ACL != "" {
		opts.UserMetadata = make(map[string]string, len(cfg.Metadata)+1)
		for k, v := range cfg.Metadata {
			opts.UserMetadata[k] = v
		}
		// x-amz-* keys are sent as headers rather than as user metadata
		if cfg.ACL != "" {
			opts.UserMetadata["x-amz-acl"] = string(cfg.ACL)
		}
	}

	if cfg.SSE != nil {
		sse, err := serverSide(cfg.SSE)
		if err != nil {
			return opts, err
		}
		opts.ServerSideEncryption = sse
	}
	return opts, nil
}

func serverSide(cfg *streamtypes.SSEConfig) (encrypt.ServerSide, error) {
	switch cfg.Type {
	case streamtypes.SSES3:
		return encrypt.NewSSE(), nil
	case streamtypes.SSEKMS:
		sse, err := encrypt.NewSSEKMS(cfg.KMSKeyID, nil)
		if err != nil {
			return nil, fmt.Errorf("minio: kms key: %w", err)
		}
		return sse, nil
	case streamtypes.SSEC:
		sse, err := encrypt.NewSSEC([]byte(cfg.CustomerKey))
		if err != nil {
			return nil, fmt.Errorf("minio: customer key: %w", err)
		}
		return sse, nil
	default:
		return nil, fmt.Errorf("minio: unsupported encryption %q: %w", cfg.Type, s3errors.ErrInvalidInput)
	}
}

func translateError(err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "" {
		return err
	}
	return backend.TranslateCode(resp.Code, err)
}
