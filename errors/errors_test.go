package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "op only",
			err:  NewError("initiate", KindSession, cause),
			want: "s3stream.initiate: boom",
		},
		{
			name: "bucket and key",
			err:  NewObjectError("complete", KindCompletion, "bucket", "key", cause),
			want: "s3stream.complete bucket/key: boom",
		},
		{
			name: "bucket only",
			err:  NewError("initiate", KindSession, cause).WithBucket("bucket"),
			want: "s3stream.initiate bucket bucket: boom",
		},
		{
			name: "key only",
			err:  NewError("initiate", KindSession, cause).WithKey("key"),
			want: "s3stream.initiate object key: boom",
		},
		{
			name: "part number",
			err:  NewObjectError("uploadPart", KindPartUpload, "b", "k", cause).WithPart(2),
			want: "s3stream.uploadPart b/k part 2: boom",
		},
		{
			name: "abort failure appended",
			err: NewObjectError("uploadPart", KindPartUpload, "b", "k", cause).
				WithAbortError(errors.New("network down")),
			want: "s3stream.uploadPart b/k: boom (abort failed: network down)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_AbortDoesNotMaskCause(t *testing.T) {
	abortErr := errors.New("abort failed")
	err := NewObjectError("uploadPart", KindPartUpload, "b", "k", ErrAccessDenied).
		WithUploadID("upload-1").
		WithAbortError(abortErr)

	assert.True(t, errors.Is(err, ErrAccessDenied))
	assert.False(t, errors.Is(err, abortErr))
	assert.Equal(t, abortErr, err.AbortError())
	assert.Equal(t, "upload-1", err.UploadID)
}

func TestError_WithMessage(t *testing.T) {
	err := NewError("upload", KindInvalidInput, ErrInvalidInput).WithMessage("reader cannot be nil")

	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.Contains(t, err.Error(), "reader cannot be nil")
}

func TestKindOf(t *testing.T) {
	base := NewError("uploadPart", KindPartUpload, errors.New("x"))
	wrapped := fmt.Errorf("transfer: %w", base)

	assert.Equal(t, KindPartUpload, KindOf(wrapped))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestKindHelpers(t *testing.T) {
	tests := []struct {
		name  string
		kind  Kind
		check func(error) bool
	}{
		{"source", KindSource, IsSourceError},
		{"session", KindSession, IsSessionError},
		{"part upload", KindPartUpload, IsPartUploadError},
		{"completion", KindCompletion, IsCompletionError},
		{"canceled", KindCanceled, IsCanceled},
		{"invalid input", KindInvalidInput, IsInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewError("op", tt.kind, errors.New("cause"))
			require.True(t, tt.check(err))
			assert.False(t, tt.check(NewError("op", KindAbort, errors.New("cause"))))
		})
	}
}

func TestSentinelHelpers(t *testing.T) {
	assert.True(t, IsBucketNotFound(NewError("initiate", KindSession, ErrBucketNotFound)))
	assert.True(t, IsAccessDenied(fmt.Errorf("wrap: %w", ErrAccessDenied)))
	assert.True(t, IsInvalidInput(ErrInvalidInput))
	assert.False(t, IsBucketNotFound(ErrAccessDenied))
}

func TestKind_Fatal(t *testing.T) {
	assert.True(t, KindPartUpload.Fatal())
	assert.True(t, KindSource.Fatal())
	assert.False(t, KindAbort.Fatal())
}
