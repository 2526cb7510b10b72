package s3backend

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awstypes "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	s3errors "github.com/input-output-hk/catalyst-forge-libs/s3stream/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3stream/internal/testutil"
	"github.com/input-output-hk/catalyst-forge-libs/s3stream/streamtypes"
)

var (
	testDest    = streamtypes.Destination{Bucket: "test-bucket", Key: "test-key"}
	testSession = streamtypes.Session{Bucket: "test-bucket", Key: "test-key", UploadID: "upload-1"}
)

func TestBackend_Initiate(t *testing.T) {
	tests := []struct {
		name        string
		cfg         *streamtypes.UploadConfig
		mockFunc    func(*testutil.MockS3Client)
		wantID      string
		wantErr     bool
		errIs       error
		checkInputs func(*testing.T, *s3.CreateMultipartUploadInput)
	}{
		{
			name:   "plain object",
			cfg:    &streamtypes.UploadConfig{ContentType: "application/zip"},
			wantID: "test-upload-id",
			checkInputs: func(t *testing.T, in *s3.CreateMultipartUploadInput) {
				assert.Equal(t, "test-bucket", aws.ToString(in.Bucket))
				assert.Equal(t, "test-key", aws.ToString(in.Key))
				assert.Equal(t, "application/zip", aws.ToString(in.ContentType))
				assert.Empty(t, in.ServerSideEncryption)
			},
		},
		{
			name: "object settings",
			cfg: &streamtypes.UploadConfig{
				StorageClass: streamtypes.StorageClassStandardIA,
				ACL:          streamtypes.ACLBucketOwnerFullControl,
				Metadata:     map[string]string{"source": "http"},
				SSE:          &streamtypes.SSEConfig{Type: streamtypes.SSEKMS, KMSKeyID: "key-1"},
			},
			wantID: "test-upload-id",
			checkInputs: func(t *testing.T, in *s3.CreateMultipartUploadInput) {
				assert.Equal(t, awstypes.StorageClassStandardIa, in.StorageClass)
				assert.Equal(t, awstypes.ObjectCannedACLBucketOwnerFullControl, in.ACL)
				assert.Equal(t, "http", in.Metadata["source"])
				assert.Equal(t, awstypes.ServerSideEncryptionAwsKms, in.ServerSideEncryption)
				assert.Equal(t, "key-1", aws.ToString(in.SSEKMSKeyId))
				assert.Nil(t, in.ContentType)
			},
		},
		{
			name: "customer key",
			cfg: &streamtypes.UploadConfig{
				SSE: &streamtypes.SSEConfig{Type: streamtypes.SSEC, CustomerKey: "secret", CustomerKeyMD5: "md5"},
			},
			wantID: "test-upload-id",
			checkInputs: func(t *testing.T, in *s3.CreateMultipartUploadInput) {
				assert.Equal(t, "AES256", aws.ToString(in.SSECustomerAlgorithm))
				assert.Equal(t, "c2VjcmV0", aws.ToString(in.SSECustomerKey))
				assert.Equal(t, "md5", aws.ToString(in.SSECustomerKeyMD5))
				assert.Empty(t, in.ServerSideEncryption)
			},
		},
		{
			name: "bucket missing",
			mockFunc: func(m *testutil.MockS3Client) {
				m.CreateMultipartUploadFunc = func(
					context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options),
				) (*s3.CreateMultipartUploadOutput, error) {
					return nil, &smithy.GenericAPIError{Code: "NoSuchBucket", Message: "no bucket"}
				}
			},
			wantErr: true,
			errIs:   s3errors.ErrBucketNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &testutil.MockS3Client{}
			var captured *s3.CreateMultipartUploadInput
			mock.CreateMultipartUploadFunc = func(
				_ context.Context, in *s3.CreateMultipartUploadInput, _ ...func(*s3.Options),
			) (*s3.CreateMultipartUploadOutput, error) {
				captured = in
				return &s3.CreateMultipartUploadOutput{UploadId: aws.String("test-upload-id")}, nil
			}
			if tt.mockFunc != nil {
				tt.mockFunc(mock)
			}

			id, err := New(mock).Initiate(context.Background(), testDest, tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				if tt.errIs != nil {
					assert.ErrorIs(t, err, tt.errIs)
				}
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantID, id)
			if tt.checkInputs != nil {
				tt.checkInputs(t, captured)
			}
		})
	}
}

func TestBackend_UploadPart(t *testing.T) {
	mock := &testutil.MockS3Client{}
	var body []byte
	var captured *s3.UploadPartInput
	mock.UploadPartFunc = func(
		_ context.Context, in *s3.UploadPartInput, _ ...func(*s3.Options),
	) (*s3.UploadPartOutput, error) {
		captured = in
		var err error
		body, err = io.ReadAll(in.Body)
		require.NoError(t, err)
		return &s3.UploadPartOutput{ETag: aws.String("\"abc\"")}, nil
	}

	cfg := &streamtypes.UploadConfig{
		SSE: &streamtypes.SSEConfig{Type: streamtypes.SSEC, CustomerKey: "secret", CustomerKeyMD5: "md5"},
	}
	part := streamtypes.Part{Number: 3, Data: []byte("hello")}

	etag, err := New(mock).UploadPart(context.Background(), testSession, part, cfg)
	require.NoError(t, err)

	assert.Equal(t, "\"abc\"", etag)
	assert.Equal(t, []byte("hello"), body)
	assert.Equal(t, int32(3), aws.ToInt32(captured.PartNumber))
	assert.Equal(t, int64(5), aws.ToInt64(captured.ContentLength))
	assert.Equal(t, "upload-1", aws.ToString(captured.UploadId))
	assert.Equal(t, "c2VjcmV0", aws.ToString(captured.SSECustomerKey))
}

func TestCustomerKeyDigest(t *testing.T) {
	algorithm, key, digest := customerKey(&streamtypes.SSEConfig{Type: streamtypes.SSEC, CustomerKey: "secret"})

	assert.Equal(t, "AES256", aws.ToString(algorithm))
	assert.Equal(t, "c2VjcmV0", aws.ToString(key))
	// base64(md5("secret"))
	assert.Equal(t, "Xr4ilOzQ4PCOq3aQ0qbuaQ==", aws.ToString(digest))

	algorithm, key, digest = customerKey(&streamtypes.SSEConfig{Type: streamtypes.SSES3})
	assert.Nil(t, algorithm)
	assert.Nil(t, key)
	assert.Nil(t, digest)
}

func TestBackend_UploadPartError(t *testing.T) {
	mock := &testutil.MockS3Client{
		UploadPartFunc: func(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
			return nil, &smithy.GenericAPIError{Code: "SlowDown"}
		},
	}

	_, err := New(mock).UploadPart(context.Background(), testSession, streamtypes.Part{Number: 1}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, s3errors.ErrTooManyRequests)

	var apiErr smithy.APIError
	assert.True(t, errors.As(err, &apiErr))
}

func TestBackend_Complete(t *testing.T) {
	mock := &testutil.MockS3Client{}
	var captured *s3.CompleteMultipartUploadInput
	mock.CompleteMultipartUploadFunc = func(
		_ context.Context, in *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options),
	) (*s3.CompleteMultipartUploadOutput, error) {
		captured = in
		return &s3.CompleteMultipartUploadOutput{
			ETag:      aws.String("final"),
			VersionId: aws.String("v1"),
			Location:  aws.String("https://example/test-key"),
		}, nil
	}

	receipts := []streamtypes.PartReceipt{
		{PartNumber: 1, ETag: "e1"},
		{PartNumber: 2, ETag: "e2"},
	}

	obj, err := New(mock).Complete(context.Background(), testSession, receipts)
	require.NoError(t, err)

	assert.Equal(t, "final", obj.ETag)
	assert.Equal(t, "v1", obj.VersionID)
	require.Len(t, captured.MultipartUpload.Parts, 2)
	assert.Equal(t, int32(1), aws.ToInt32(captured.MultipartUpload.Parts[0].PartNumber))
	assert.Equal(t, "e2", aws.ToString(captured.MultipartUpload.Parts[1].ETag))
}

func TestBackend_Abort(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{name: "success"},
		{name: "already gone", err: &smithy.GenericAPIError{Code: "NoSuchUpload"}},
		{name: "access denied", err: &smithy.GenericAPIError{Code: "AccessDenied"}, wantErr: true},
		{name: "transport error", err: errors.New("connection refused"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			mock := &testutil.MockS3Client{
				AbortMultipartUploadFunc: func(
					_ context.Context, in *s3.AbortMultipartUploadInput, _ ...func(*s3.Options),
				) (*s3.AbortMultipartUploadOutput, error) {
					calls++
					assert.Equal(t, "upload-1", aws.ToString(in.UploadId))
					return &s3.AbortMultipartUploadOutput{}, tt.err
				},
			}

			err := New(mock).Abort(context.Background(), testSession)
			assert.Equal(t, 1, calls)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBackend_Put(t *testing.T) {
	mock := &testutil.MockS3Client{}
	var captured *s3.PutObjectInput
	mock.PutObjectFunc = func(
		_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options),
	) (*s3.PutObjectOutput, error) {
		captured = in
		return &s3.PutObjectOutput{ETag: aws.String("empty")}, nil
	}

	cfg := &streamtypes.UploadConfig{
		ContentType: "text/plain",
		SSE:         &streamtypes.SSEConfig{Type: streamtypes.SSES3},
	}
	obj, err := New(mock).Put(context.Background(), testDest, nil, cfg)
	require.NoError(t, err)

	assert.Equal(t, "empty", obj.ETag)
	assert.Equal(t, int64(0), aws.ToInt64(captured.ContentLength))
	assert.Equal(t, "text/plain", aws.ToString(captured.ContentType))
	assert.Equal(t, awstypes.ServerSideEncryptionAes256, captured.ServerSideEncryption)
}
