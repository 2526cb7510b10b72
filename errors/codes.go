// Package errors provides the error types returned by s3stream transfers.
// Every failure carries the stage of the transfer that produced it, so callers
// can tell a broken source apart from a rejected part or a failed completion.
package errors

// Kind classifies a transfer failure by the stage that produced it.
// Kinds are string-based so they read naturally in logs.
type Kind string

const (
	// Input errors.

	// KindInvalidInput indicates the request was rejected before any I/O happened.
	KindInvalidInput Kind = "invalid_input"

	// Transfer stage errors.

	// KindSource indicates reading the source stream failed.
	KindSource Kind = "source"

	// KindSession indicates the multipart session could not be created.
	KindSession Kind = "session"

	// KindPartUpload indicates an individual part upload failed.
	KindPartUpload Kind = "part_upload"

	// KindCompletion indicates finalizing the object failed after all parts were stored.
	KindCompletion Kind = "completion"

	// KindAbort indicates releasing a failed session failed.
	KindAbort Kind = "abort"

	// Control errors.

	// KindCanceled indicates the caller canceled the transfer.
	KindCanceled Kind = "canceled"

	// KindUnknown is reported for errors that did not originate in this module.
	KindUnknown Kind = "unknown"
)

// Fatal reports whether a failure of this kind ends the transfer.
// Abort failures are reported alongside a primary error and never on their own.
func (k Kind) Fatal() bool {
	return k != KindAbort
}
