// Package backend defines the storage primitives a transfer needs from an
// S3-compatible object store.
package backend

import (
	"context"
	"fmt"

	"github.com/input-output-hk/catalyst-forge-libs/s3stream/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3stream/streamtypes"
)

// Backend is an S3-compatible multipart store.
//
// Implementations must be safe for concurrent UploadPart calls on one session.
type Backend interface {
	// Initiate opens a multipart session for dest and returns its upload ID.
	Initiate(ctx context.Context, dest streamtypes.Destination, cfg *streamtypes.UploadConfig) (string, error)

	// UploadPart stores one part and returns the ETag the backend assigned to it.
	UploadPart(
		ctx context.Context,
		session streamtypes.Session,
		part streamtypes.Part,
		cfg *streamtypes.UploadConfig,
	) (string, error)

	// Complete commits the session. Receipts must be sorted by part number.
	Complete(
		ctx context.Context,
		session streamtypes.Session,
		receipts []streamtypes.PartReceipt,
	) (*streamtypes.CompletedObject, error)

	// Abort releases the session and any stored parts.
	// Aborting a session the backend no longer knows about succeeds.
	Abort(ctx context.Context, session streamtypes.Session) error

	// Put writes a whole object in one request.
	Put(
		ctx context.Context,
		dest streamtypes.Destination,
		data []byte,
		cfg *streamtypes.UploadConfig,
	) (*streamtypes.CompletedObject, error)
}

// TranslateCode maps an S3 error code onto the module's sentinel errors.
// The original error stays in the chain. Unknown codes return err unchanged.
func TranslateCode(code string, err error) error {
	var sentinel error
	switch code {
	case "NoSuchBucket":
		sentinel = errors.ErrBucketNotFound
	case "NoSuchUpload":
		sentinel = errors.ErrNoSuchUpload
	case "AccessDenied", "Forbidden", "403":
		sentinel = errors.ErrAccessDenied
	case "SlowDown", "Throttling", "ThrottlingException", "RequestLimitExceeded", "TooManyRequests":
		sentinel = errors.ErrTooManyRequests
	case "EntityTooSmall":
		sentinel = errors.ErrEntityTooSmall
	case "InvalidPart", "InvalidPartOrder":
		sentinel = errors.ErrInvalidPart
	case "InvalidBucketName":
		sentinel = errors.ErrInvalidBucketName
	default:
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
