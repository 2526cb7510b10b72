// Package multipart coordinates streaming multipart uploads: it opens a
// session, fans parts out to a fixed pool of upload workers, and either
// completes the session with the ordered receipts or aborts it.
package multipart

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	s3errors "github.com/input-output-hk/catalyst-forge-libs/s3stream/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3stream/internal/backend"
	"github.com/input-output-hk/catalyst-forge-libs/s3stream/streamtypes"
)

// PartSource yields parts in order. Next returns io.EOF after the last part.
type PartSource interface {
	Next() (streamtypes.Part, error)
}

// Releaser is implemented by part sources that recycle part buffers.
type Releaser interface {
	Release(streamtypes.Part)
}

// Coordinator runs multipart transfers against a backend.
// A Coordinator is safe for concurrent use; each Transfer owns its session.
type Coordinator struct {
	backend      backend.Backend
	concurrency  int
	maxParts     int
	abortTimeout time.Duration
	logger       *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithConcurrency sets the number of upload workers.
func WithConcurrency(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithMaxParts sets the highest part number the backend accepts.
func WithMaxParts(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.maxParts = n
		}
	}
}

// WithAbortTimeout bounds the abort call made after a failure.
func WithAbortTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.abortTimeout = d
		}
	}
}

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// New creates a coordinator for the given backend.
func New(b backend.Backend, opts ...Option) *Coordinator {
	c := &Coordinator{
		backend:      b,
		concurrency:  streamtypes.DefaultConcurrency,
		maxParts:     streamtypes.MaxParts,
		abortTimeout: streamtypes.DefaultAbortTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	return c
}

// Transfer uploads every part from parts into dest as one object.
//
// Either the object is committed from all parts, or the session is aborted and
// an *errors.Error describing the first failure is returned. A failure to open
// the session is returned without cleanup.
func (c *Coordinator) Transfer(
	ctx context.Context,
	parts PartSource,
	dest streamtypes.Destination,
	cfg *streamtypes.UploadConfig,
) (*streamtypes.TransferResult, error) {
	startTime := time.Now()
	if cfg == nil {
		cfg = &streamtypes.UploadConfig{}
	}

	transferID := uuid.NewString()
	log := c.logger.With("transfer_id", transferID, "bucket", dest.Bucket, "key", dest.Key)

	uploadID, err := c.backend.Initiate(ctx, dest, cfg)
	if err != nil {
		e := s3errors.NewObjectError(
			"initiate", kindFor(ctx, err, s3errors.KindSession), dest.Bucket, dest.Key, err,
		)
		log.Error("failed to create multipart upload", "error", err)
		notifyError(cfg.ProgressTracker, e)
		return nil, e
	}

	session := streamtypes.Session{Bucket: dest.Bucket, Key: dest.Key, UploadID: uploadID}
	log = log.With("upload_id", uploadID)
	log.Info("multipart upload started", "part_size", cfg.PartSize, "concurrency", c.workers(cfg))

	receipts, uploadErr := c.uploadParts(ctx, log, parts, session, cfg)
	if uploadErr != nil {
		return nil, c.fail(ctx, log, session, uploadErr, cfg.ProgressTracker)
	}

	if len(receipts) == 0 {
		e := s3errors.NewObjectError(
			"complete", s3errors.KindCompletion, dest.Bucket, dest.Key, s3errors.ErrNoParts,
		)
		return nil, c.fail(ctx, log, session, e, cfg.ProgressTracker)
	}

	// Workers finish out of order; the backend wants ascending part numbers.
	slices.SortFunc(receipts, func(a, b streamtypes.PartReceipt) int {
		return int(a.PartNumber) - int(b.PartNumber)
	})

	obj, err := c.backend.Complete(ctx, session, receipts)
	if err != nil {
		e := s3errors.NewObjectError(
			"complete", kindFor(ctx, err, s3errors.KindCompletion), dest.Bucket, dest.Key, err,
		)
		return nil, c.fail(ctx, log, session, e, cfg.ProgressTracker)
	}

	var size int64
	for _, r := range receipts {
		size += r.Size
	}

	duration := time.Since(startTime)
	log.Info("multipart upload completed", "parts", len(receipts), "bytes", size, "duration", duration)
	if cfg.ProgressTracker != nil {
		cfg.ProgressTracker.Complete()
	}

	return &streamtypes.TransferResult{
		TransferID:  transferID,
		Bucket:      dest.Bucket,
		Key:         dest.Key,
		UploadID:    uploadID,
		ContentType: cfg.ContentType,
		Size:        size,
		Parts:       len(receipts),
		ETag:        obj.ETag,
		VersionID:   obj.VersionID,
		Duration:    duration,
	}, nil
}

// uploadParts feeds parts to a fixed set of workers until the source is
// exhausted or something fails. It always waits for every dispatched part.
func (c *Coordinator) uploadParts(
	ctx context.Context,
	log *slog.Logger,
	parts PartSource,
	session streamtypes.Session,
	cfg *streamtypes.UploadConfig,
) ([]streamtypes.PartReceipt, *s3errors.Error) {
	release := func(streamtypes.Part) {}
	if r, ok := parts.(Releaser); ok {
		release = r.Release
	}

	totalBytes := cfg.ContentLength
	if totalBytes <= 0 {
		totalBytes = -1
	}

	var (
		mu       sync.Mutex
		receipts []streamtypes.PartReceipt
		firstErr *s3errors.Error
		failures *multierror.Error
		uploaded atomic.Int64

		stop     = make(chan struct{})
		stopOnce sync.Once
	)

	// record keeps the first failure as the cause and stops new submissions.
	record := func(e *s3errors.Error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = e
		}
		failures = multierror.Append(failures, e)
		mu.Unlock()
		stopOnce.Do(func() { close(stop) })
	}

	jobs := make(chan streamtypes.Part)

	var wg sync.WaitGroup
	for i := 0; i < c.workers(cfg); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for part := range jobs {
				select {
				case <-stop:
					release(part)
					continue
				default:
				}

				size := part.Size()
				log.Debug("uploading part", "part", part.Number, "size", size)

				etag, err := c.backend.UploadPart(ctx, session, part, cfg)
				release(part)
				if err != nil {
					log.Debug("part upload failed", "part", part.Number, "error", err)
					record(s3errors.NewObjectError(
						"uploadPart",
						kindFor(ctx, err, s3errors.KindPartUpload),
						session.Bucket,
						session.Key,
						err,
					).WithUploadID(session.UploadID).WithPart(part.Number))
					continue
				}

				mu.Lock()
				receipts = append(receipts, streamtypes.PartReceipt{PartNumber: part.Number, ETag: etag, Size: size})
				mu.Unlock()

				done := uploaded.Add(size)
				if cfg.ProgressTracker != nil {
					cfg.ProgressTracker.Update(done, totalBytes)
				}
			}
		}()
	}

	c.produce(ctx, parts, session, jobs, stop, record, release)
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		if failures.Len() > 1 {
			log.Warn("multiple failures during transfer", "failures", failures.Len(), "errors", failures.Error())
		}
		return nil, firstErr
	}
	return receipts, nil
}

// produce pulls parts from the source and hands them to the workers. It is the
// only reader of the source and stops pulling as soon as stop is closed.
func (c *Coordinator) produce(
	ctx context.Context,
	parts PartSource,
	session streamtypes.Session,
	jobs chan<- streamtypes.Part,
	stop <-chan struct{},
	record func(*s3errors.Error),
	release func(streamtypes.Part),
) {
	newErr := func(op string, kind s3errors.Kind, err error) *s3errors.Error {
		return s3errors.NewObjectError(op, kind, session.Bucket, session.Key, err).WithUploadID(session.UploadID)
	}
	canceled := func() {
		record(newErr("transfer", s3errors.KindCanceled, ctx.Err()))
	}

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			canceled()
			return
		default:
		}

		part, err := parts.Next()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			record(newErr("read", kindFor(ctx, err, s3errors.KindSource), err))
			return
		}

		if int(part.Number) > c.maxParts {
			release(part)
			record(newErr("uploadPart", s3errors.KindPartUpload, s3errors.ErrTooManyParts).WithPart(part.Number))
			return
		}

		select {
		case jobs <- part:
		case <-stop:
			release(part)
			return
		case <-ctx.Done():
			release(part)
			canceled()
			return
		}
	}
}

// fail aborts the session and attaches any abort failure to e.
// The abort runs even when ctx is already canceled.
func (c *Coordinator) fail(
	ctx context.Context,
	log *slog.Logger,
	session streamtypes.Session,
	e *s3errors.Error,
	tracker streamtypes.ProgressTracker,
) *s3errors.Error {
	log.Warn("aborting multipart upload", "kind", string(e.Kind), "error", e.Err)

	abortCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.abortTimeout)
	defer cancel()

	if err := c.backend.Abort(abortCtx, session); err != nil {
		log.Error("failed to abort multipart upload", "error", err)
		e.WithAbortError(err)
	}

	notifyError(tracker, e)
	return e
}

func (c *Coordinator) workers(cfg *streamtypes.UploadConfig) int {
	if cfg.Concurrency > 0 {
		return cfg.Concurrency
	}
	return c.concurrency
}

// kindFor reports failures caused by the caller's own cancellation as such.
func kindFor(ctx context.Context, err error, fallback s3errors.Kind) s3errors.Kind {
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return s3errors.KindCanceled
	}
	return fallback
}

func notifyError(tracker streamtypes.ProgressTracker, err error) {
	if tracker != nil {
		tracker.Error(err)
	}
}
