package s3stream

import (
	"bufio"
	"context"
	"errors"
	"io"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	s3errors "github.com/input-output-hk/catalyst-forge-libs/s3stream/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3stream/internal/chunker"
	"github.com/input-output-hk/catalyst-forge-libs/s3stream/internal/validation"
	"github.com/input-output-hk/catalyst-forge-libs/s3stream/streamtypes"
)

const (
	// sniffLen is how much of the stream is inspected for content type
	// detection and emptiness.
	sniffLen = 3072

	defaultContentType = "application/octet-stream"
)

// Transfer streams the source at sourceURL into bucket/key.
//
// Supported sources are http and https URLs, file URLs and local paths. The
// source is read exactly once; a failure after the multipart session was opened
// aborts it, so the object is either written whole or not at all.
func (c *Client) Transfer(
	ctx context.Context,
	sourceURL, bucket, key string,
	opts ...streamtypes.TransferOption,
) (*streamtypes.TransferResult, error) {
	cfg := applyTransferOptions(opts)
	if err := validateTransfer(bucket, key, cfg); err != nil {
		return nil, err
	}

	src, err := c.opener.Open(ctx, sourceURL)
	if err != nil {
		e := s3errors.NewObjectError("open", sourceKind(ctx, err), bucket, key, err)
		notifyError(cfg.ProgressTracker, e)
		return nil, e
	}
	defer func() {
		if cerr := src.Body.Close(); cerr != nil {
			c.logger.Debug("closing source failed", "error", cerr)
		}
	}()

	return c.stream(ctx, src.Body, src.ContentType, src.Size, bucket, key, cfg)
}

// TransferReader streams r into bucket/key. The reader is consumed but not
// closed.
func (c *Client) TransferReader(
	ctx context.Context,
	r io.Reader,
	bucket, key string,
	opts ...streamtypes.TransferOption,
) (*streamtypes.TransferResult, error) {
	if r == nil {
		return nil, s3errors.NewObjectError("transfer", s3errors.KindInvalidInput, bucket, key,
			s3errors.ErrInvalidInput).WithMessage("reader cannot be nil")
	}

	cfg := applyTransferOptions(opts)
	if err := validateTransfer(bucket, key, cfg); err != nil {
		return nil, err
	}

	return c.stream(ctx, r, "", -1, bucket, key, cfg)
}

func (c *Client) stream(
	ctx context.Context,
	r io.Reader,
	sourceType string,
	size int64,
	bucket, key string,
	opts *streamtypes.TransferOptionConfig,
) (*streamtypes.TransferResult, error) {
	dest := streamtypes.Destination{Bucket: bucket, Key: key}

	br := bufio.NewReaderSize(r, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) {
		e := s3errors.NewObjectError("read", sourceKind(ctx, err), bucket, key, err)
		notifyError(opts.ProgressTracker, e)
		return nil, e
	}

	cfg := c.uploadConfig(opts, size)
	cfg.ContentType = contentType(opts.ContentType, sourceType, head)

	if len(head) == 0 {
		return c.putEmpty(ctx, dest, cfg)
	}

	parts := chunker.New(br, cfg.PartSize)
	return c.coordinator.Transfer(ctx, parts, dest, cfg)
}

// putEmpty writes a zero-byte object. S3 cannot complete a multipart upload
// without parts, so no session is opened.
func (c *Client) putEmpty(
	ctx context.Context,
	dest streamtypes.Destination,
	cfg *streamtypes.UploadConfig,
) (*streamtypes.TransferResult, error) {
	start := time.Now()
	transferID := uuid.NewString()
	log := c.logger.With("transfer_id", transferID, "bucket", dest.Bucket, "key", dest.Key)

	obj, err := c.backend.Put(ctx, dest, nil, cfg)
	if err != nil {
		kind := s3errors.KindCompletion
		if ctx.Err() != nil {
			kind = s3errors.KindCanceled
		}
		e := s3errors.NewObjectError("put", kind, dest.Bucket, dest.Key, err)
		log.Error("failed to write empty object", "error", err)
		notifyError(cfg.ProgressTracker, e)
		return nil, e
	}

	duration := time.Since(start)
	log.Info("empty object written", "duration", duration)
	if cfg.ProgressTracker != nil {
		cfg.ProgressTracker.Update(0, 0)
		cfg.ProgressTracker.Complete()
	}

	return &streamtypes.TransferResult{
		TransferID:  transferID,
		Bucket:      dest.Bucket,
		Key:         dest.Key,
		ContentType: cfg.ContentType,
		ETag:        obj.ETag,
		VersionID:   obj.VersionID,
		Duration:    duration,
	}, nil
}

func (c *Client) uploadConfig(opts *streamtypes.TransferOptionConfig, size int64) *streamtypes.UploadConfig {
	cfg := &streamtypes.UploadConfig{
		Metadata:        validation.SanitizeMetadata(opts.Metadata),
		StorageClass:    opts.StorageClass,
		SSE:             opts.SSE,
		ACL:             opts.ACL,
		ProgressTracker: opts.ProgressTracker,
		PartSize:        c.config.PartSize,
		Concurrency:     opts.Concurrency,
		ContentLength:   size,
	}
	if opts.PartSize > 0 {
		cfg.PartSize = opts.PartSize
	}
	return cfg
}

func applyTransferOptions(opts []streamtypes.TransferOption) *streamtypes.TransferOptionConfig {
	cfg := &streamtypes.TransferOptionConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func validateTransfer(bucket, key string, cfg *streamtypes.TransferOptionConfig) error {
	if err := validation.ValidateDestination(bucket, key); err != nil {
		return err
	}
	if err := validation.ValidateMetadata(cfg.Metadata); err != nil {
		return err
	}
	if err := validation.ValidateContentType(cfg.ContentType); err != nil {
		return err
	}
	if err := validation.ValidateACL(cfg.ACL); err != nil {
		return err
	}
	return validation.ValidateSSE(cfg.SSE)
}

// contentType picks the explicit type, then the source's, then a sniffed one.
func contentType(explicit, fromSource string, head []byte) string {
	switch {
	case explicit != "":
		return explicit
	case fromSource != "":
		return fromSource
	case len(head) > 0:
		return mimetype.Detect(head).String()
	default:
		return defaultContentType
	}
}

func sourceKind(ctx context.Context, err error) s3errors.Kind {
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return s3errors.KindCanceled
	}
	return s3errors.KindSource
}

func notifyError(tracker streamtypes.ProgressTracker, err error) {
	if tracker != nil {
		tracker.Error(err)
	}
}
