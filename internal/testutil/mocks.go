// Package testutil provides test utilities and mocks for transfers.
// This package is internal and should only be used for testing within the module.
package testutil

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/input-output-hk/catalyst-forge-libs/s3stream/internal/backend"
	"github.com/input-output-hk/catalyst-forge-libs/s3stream/internal/s3api"
	"github.com/input-output-hk/catalyst-forge-libs/s3stream/streamtypes"
)

// MockS3Client is a mock implementation of the S3API interface for testing.
// It allows customization of each S3 operation through function fields.
type MockS3Client struct {
	PutObjectFunc               func(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CreateMultipartUploadFunc   func(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPartFunc              func(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUploadFunc func(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUploadFunc    func(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
}

// PutObject mocks the S3 PutObject operation.
func (m *MockS3Client) PutObject(
	ctx context.Context,
	params *s3.PutObjectInput,
	optFns ...func(*s3.Options),
) (*s3.PutObjectOutput, error) {
	if m.PutObjectFunc != nil {
		return m.PutObjectFunc(ctx, params, optFns...)
	}
	return &s3.PutObjectOutput{}, nil
}

// CreateMultipartUpload mocks the S3 CreateMultipartUpload operation.
func (m *MockS3Client) CreateMultipartUpload(
	ctx context.Context,
	params *s3.CreateMultipartUploadInput,
	optFns ...func(*s3.Options),
) (*s3.CreateMultipartUploadOutput, error) {
	if m.CreateMultipartUploadFunc != nil {
		return m.CreateMultipartUploadFunc(ctx, params, optFns...)
	}
	return &s3.CreateMultipartUploadOutput{UploadId: aws.String("test-upload-id")}, nil
}

// UploadPart mocks the S3 UploadPart operation.
func (m *MockS3Client) UploadPart(
	ctx context.Context,
	params *s3.UploadPartInput,
	optFns ...func(*s3.Options),
) (*s3.UploadPartOutput, error) {
	if m.UploadPartFunc != nil {
		return m.UploadPartFunc(ctx, params, optFns...)
	}
	return &s3.UploadPartOutput{
		ETag: aws.String(fmt.Sprintf("\"etag-%d\"", aws.ToInt32(params.PartNumber))),
	}, nil
}

// CompleteMultipartUpload mocks the S3 CompleteMultipartUpload operation.
func (m *MockS3Client) CompleteMultipartUpload(
	ctx context.Context,
	params *s3.CompleteMultipartUploadInput,
	optFns ...func(*s3.Options),
) (*s3.CompleteMultipartUploadOutput, error) {
	if m.CompleteMultipartUploadFunc != nil {
		return m.CompleteMultipartUploadFunc(ctx, params, optFns...)
	}
	return &s3.CompleteMultipartUploadOutput{}, nil
}

// AbortMultipartUpload mocks the S3 AbortMultipartUpload operation.
func (m *MockS3Client) AbortMultipartUpload(
	ctx context.Context,
	params *s3.AbortMultipartUploadInput,
	optFns ...func(*s3.Options),
) (*s3.AbortMultipartUploadOutput, error) {
	if m.AbortMultipartUploadFunc != nil {
		return m.AbortMultipartUploadFunc(ctx, params, optFns...)
	}
	return &s3.AbortMultipartUploadOutput{}, nil
}

// Ensure MockS3Client implements S3API
var _ s3api.S3API = (*MockS3Client)(nil)

// MockBackend is an in-memory backend.Backend that records every call.
// Function fields override the default behavior; defaults succeed and keep
// a copy of every uploaded part so tests can reassemble the object.
type MockBackend struct {
	InitiateFunc   func(context.Context, streamtypes.Destination, *streamtypes.UploadConfig) (string, error)
	UploadPartFunc func(context.Context, streamtypes.Session, streamtypes.Part, *streamtypes.UploadConfig) (string, error)
	CompleteFunc   func(context.Context, streamtypes.Session, []streamtypes.PartReceipt) (*streamtypes.CompletedObject, error)
	AbortFunc      func(context.Context, streamtypes.Session) error
	PutFunc        func(context.Context, streamtypes.Destination, []byte, *streamtypes.UploadConfig) (*streamtypes.CompletedObject, error)

	mu            sync.Mutex
	InitiateCalls int
	PartCalls     []int32
	CompleteCalls [][]streamtypes.PartReceipt
	AbortCalls    []streamtypes.Session
	PutCalls      []streamtypes.Destination
	Parts         map[int32][]byte
	Objects       map[string][]byte
}

// NewMockBackend creates an empty mock backend.
func NewMockBackend() *MockBackend {
	return &MockBackend{
		Parts:   make(map[int32][]byte),
		Objects: make(map[string][]byte),
	}
}

// Initiate records the call and returns a fixed upload ID by default.
func (m *MockBackend) Initiate(
	ctx context.Context,
	dest streamtypes.Destination,
	cfg *streamtypes.UploadConfig,
) (string, error) {
	m.mu.Lock()
	m.InitiateCalls++
	m.mu.Unlock()

	if m.InitiateFunc != nil {
		return m.InitiateFunc(ctx, dest, cfg)
	}
	return "test-upload-id", nil
}

// UploadPart records the call and stores a copy of the part by default.
func (m *MockBackend) UploadPart(
	ctx context.Context,
	session streamtypes.Session,
	part streamtypes.Part,
	cfg *streamtypes.UploadConfig,
) (string, error) {
	m.mu.Lock()
	m.PartCalls = append(m.PartCalls, part.Number)
	m.mu.Unlock()

	if m.UploadPartFunc != nil {
		etag, err := m.UploadPartFunc(ctx, session, part, cfg)
		if err == nil {
			m.store(part)
		}
		return etag, err
	}

	m.store(part)
	return fmt.Sprintf("etag-%d", part.Number), nil
}

func (m *MockBackend) store(part streamtypes.Part) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Parts == nil {
		m.Parts = make(map[int32][]byte)
	}
	m.Parts[part.Number] = append([]byte(nil), part.Data...)
}

// Complete records the receipts it was given.
func (m *MockBackend) Complete(
	ctx context.Context,
	session streamtypes.Session,
	receipts []streamtypes.PartReceipt,
) (*streamtypes.CompletedObject, error) {
	m.mu.Lock()
	m.CompleteCalls = append(m.CompleteCalls, append([]streamtypes.PartReceipt(nil), receipts...))
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, session, receipts)
	}
	return &streamtypes.CompletedObject{ETag: "final-etag"}, nil
}

// Abort records the aborted session.
func (m *MockBackend) Abort(ctx context.Context, session streamtypes.Session) error {
	m.mu.Lock()
	m.AbortCalls = append(m.AbortCalls, session)
	m.mu.Unlock()

	if m.AbortFunc != nil {
		return m.AbortFunc(ctx, session)
	}
	return nil
}

// Put records the call and stores a copy of the object by default.
func (m *MockBackend) Put(
	ctx context.Context,
	dest streamtypes.Destination,
	data []byte,
	cfg *streamtypes.UploadConfig,
) (*streamtypes.CompletedObject, error) {
	m.mu.Lock()
	m.PutCalls = append(m.PutCalls, dest)
	m.mu.Unlock()

	if m.PutFunc != nil {
		return m.PutFunc(ctx, dest, data, cfg)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Objects == nil {
		m.Objects = make(map[string][]byte)
	}
	m.Objects[dest.Bucket+"/"+dest.Key] = append([]byte(nil), data...)
	return &streamtypes.CompletedObject{ETag: "put-etag"}, nil
}

// Assembled concatenates the stored parts in part-number order.
// It fails if the stored part numbers are not contiguous from 1.
func (m *MockBackend) Assembled() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []byte
	for n := int32(1); n <= int32(len(m.Parts)); n++ {
		data, ok := m.Parts[n]
		if !ok {
			return nil, fmt.Errorf("part %d missing", n)
		}
		out = append(out, data...)
	}
	return out, nil
}

// Snapshot returns copies of the recorded calls.
func (m *MockBackend) Snapshot() (parts []int32, completes [][]streamtypes.PartReceipt, aborts []streamtypes.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int32(nil), m.PartCalls...),
		append([][]streamtypes.PartReceipt(nil), m.CompleteCalls...),
		append([]streamtypes.Session(nil), m.AbortCalls...)
}

// Ensure MockBackend implements backend.Backend
var _ backend.Backend = (*MockBackend)(nil)

// ReadCloser wraps a reader and records whether Close was called.
type ReadCloser struct {
	io.Reader
	mu     sync.Mutex
	closed bool
}

// NewReadCloser wraps r.
func NewReadCloser(r io.Reader) *ReadCloser {
	return &ReadCloser{Reader: r}
}

// Close marks the reader closed.
func (r *ReadCloser) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Closed reports whether Close was called.
func (r *ReadCloser) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
