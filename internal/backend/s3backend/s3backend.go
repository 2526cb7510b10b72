// Package s3backend implements the transfer backend on the AWS SDK for Go v2.
package s3backend

import (
	"bytes"
	"context"
	"crypto/md5" //nolint:gosec // SSE-C key digest required by the S3 API
	"encoding/base64"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awstypes "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	s3errors "github.com/input-output-hk/catalyst-forge-libs/s3stream/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3stream/internal/backend"
	"github.com/input-output-hk/catalyst-forge-libs/s3stream/internal/s3api"
	"github.com/input-output-hk/catalyst-forge-libs/s3stream/streamtypes"
)

// Backend stores objects through an S3 client.
type Backend struct {
	client s3api.S3API
}

var _ backend.Backend = (*Backend)(nil)

// New creates a backend over the given S3 client.
func New(client s3api.S3API) *Backend {
	return &Backend{client: client}
}

// Initiate creates a multipart upload.
func (b *Backend) Initiate(
	ctx context.Context,
	dest streamtypes.Destination,
	cfg *streamtypes.UploadConfig,
) (string, error) {
	o := objectSettingsFor(cfg)
	input := &s3.CreateMultipartUploadInput{
		Bucket:               aws.String(dest.Bucket),
		Key:                  aws.String(dest.Key),
		ContentType:          o.contentType,
		StorageClass:         o.storageClass,
		ACL:                  o.acl,
		Metadata:             o.metadata,
		ServerSideEncryption: o.sse,
		SSEKMSKeyId:          o.kmsKeyID,
		SSECustomerAlgorithm: o.customerAlgorithm,
		SSECustomerKey:       o.customerKey,
		SSECustomerKeyMD5:    o.customerKeyMD5,
	}

	output, err := b.client.CreateMultipartUpload(ctx, input)
	if err != nil {
		return "", translate(err)
	}
	return aws.ToString(output.UploadId), nil
}

// UploadPart uploads one part of an open session.
func (b *Backend) UploadPart(
	ctx context.Context,
	session streamtypes.Session,
	part streamtypes.Part,
	cfg *streamtypes.UploadConfig,
) (string, error) {
	input := &s3.UploadPartInput{
		Bucket:        aws.String(session.Bucket),
		Key:           aws.String(session.Key),
		UploadId:      aws.String(session.UploadID),
		PartNumber:    aws.Int32(part.Number),
		Body:          bytes.NewReader(part.Data),
		ContentLength: aws.Int64(part.Size()),
	}

	// SSE-C keys must be repeated on every part
	if cfg != nil && cfg.SSE != nil && cfg.SSE.Type == streamtypes.SSEC {
		input.SSECustomerAlgorithm, input.SSECustomerKey, input.SSECustomerKeyMD5 = customerKey(cfg.SSE)
	}

	output, err := b.client.UploadPart(ctx, input)
	if err != nil {
		return "", translate(err)
	}
	return aws.ToString(output.ETag), nil
}

// Complete commits the session from its receipts.
func (b *Backend) Complete(
	ctx context.Context,
	session streamtypes.Session,
	receipts []streamtypes.PartReceipt,
) (*streamtypes.CompletedObject, error) {
	parts := make([]awstypes.CompletedPart, len(receipts))
	for i, r := range receipts {
		parts[i] = awstypes.CompletedPart{
			ETag:       aws.String(r.ETag),
			PartNumber: aws.Int32(r.PartNumber),
		}
	}

	output, err := b.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(session.Bucket),
		Key:      aws.String(session.Key),
		UploadId: aws.String(session.UploadID),
		MultipartUpload: &awstypes.CompletedMultipartUpload{
			Parts: parts,
		},
	})
	if err != nil {
		return nil, translate(err)
	}

	return &streamtypes.CompletedObject{
		ETag:      aws.ToString(output.ETag),
		VersionID: aws.ToString(output.VersionId),
		Location:  aws.ToString(output.Location),
	}, nil
}

// Abort aborts the session. A session S3 no longer knows about counts as aborted.
func (b *Backend) Abort(ctx context.Context, session streamtypes.Session) error {
	_, err := b.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(session.Bucket),
		Key:      aws.String(session.Key),
		UploadId: aws.String(session.UploadID),
	})
	if err != nil {
		err = translate(err)
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
	o := objectSettingsFor(cfg)
	input := &s3.PutObjectInput{
		Bucket:               aws.String(dest.Bucket),
		Key:                  aws.String(dest.Key),
		Body:                 bytes.NewReader(data),
		ContentLength:        aws.Int64(int64(len(data))),
		ContentType:          o.contentType,
		StorageClass:         o.storageClass,
		ACL:                  o.acl,
		Metadata:             o.metadata,
		ServerSideEncryption: o.sse,
		SSEKMSKeyId:          o.kmsKeyID,
		SSECustomerAlgorithm: o.customerAlgorithm,
		SSECustomerKey:       o.customerKey,
		SSECustomerKeyMD5:    o.customerKeyMD5,
	}

	output, err := b.client.PutObject(ctx, input)
	if err != nil {
		return nil, translate(err)
	}

	return &streamtypes.CompletedObject{
		ETag:      aws.ToString(output.ETag),
		VersionID: aws.ToString(output.VersionId),
	}, nil
}

// objectSettings are the object attributes shared by CreateMultipartUpload and PutObject.
type objectSettings struct {
	contentType       *string
	storageClass      awstypes.StorageClass
	acl               awstypes.ObjectCannedACL
	metadata          map[string]string
	sse               awstypes.ServerSideEncryption
	kmsKeyID          *string
	customerAlgorithm *string
	customerKey       *string
	customerKeyMD5    *string
}

func objectSettingsFor(cfg *streamtypes.UploadConfig) objectSettings {
	var o objectSettings
	if cfg == nil {
		return o
	}

	if cfg.ContentType != "" {
		o.contentType = aws.String(cfg.ContentType)
	}
	o.storageClass = awstypes.StorageClass(cfg.StorageClass)
	o.acl = awstypes.ObjectCannedACL(cfg.ACL)
	if len(cfg.Metadata) > 0 {
		o.metadata = cfg.Metadata
	}

	if cfg.SSE != nil {
		switch cfg.SSE.Type {
		case streamtypes.SSES3:
			o.sse = awstypes.ServerSideEncryptionAes256
		case streamtypes.SSEKMS:
			o.sse = awstypes.ServerSideEncryptionAwsKms
			if cfg.SSE.KMSKeyID != "" {
				o.kmsKeyID = aws.String(cfg.SSE.KMSKeyID)
			}
		case streamtypes.SSEC:
			o.customerAlgorithm, o.customerKey, o.customerKeyMD5 = customerKey(cfg.SSE)
		}
	}
	return o
}

// customerKey encodes a raw SSE-C key the way the S3 API expects it. The key
// digest is derived when not supplied.
func customerKey(sse *streamtypes.SSEConfig) (algorithm, key, keyMD5 *string) {
	if sse.CustomerKey == "" {
		return nil, nil, nil
	}
	digest := sse.CustomerKeyMD5
	if digest == "" {
		sum := md5.Sum([]byte(sse.CustomerKey))
		digest = base64.StdEncoding.EncodeToString(sum[:])
	}
	return aws.String(string(awstypes.ServerSideEncryptionAes256)),
		aws.String(base64.StdEncoding.EncodeToString([]byte(sse.CustomerKey))),
		aws.String(digest)
}

func translate(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return backend.TranslateCode(apiErr.ErrorCode(), err)
	}
	return err
}
