package s3stream

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	s3errors "github.com/input-output-hk/catalyst-forge-libs/s3stream/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3stream/internal/backend"
	"github.com/input-output-hk/catalyst-forge-libs/s3stream/internal/backend/miniobackend"
	"github.com/input-output-hk/catalyst-forge-libs/s3stream/internal/backend/s3backend"
	"github.com/input-output-hk/catalyst-forge-libs/s3stream/internal/s3api"
	"github.com/input-output-hk/catalyst-forge-libs/s3stream/internal/source"
	"github.com/input-output-hk/catalyst-forge-libs/s3stream/internal/transfer/multipart"
	"github.com/input-output-hk/catalyst-forge-libs/s3stream/streamtypes"
)

// Client streams sources into an object store.
// A Client is safe for concurrent use; transfers share nothing but the
// backend connection.
type Client struct {
	backend     backend.Backend
	coordinator *multipart.Coordinator
	opener      *source.Opener
	config      streamtypes.ClientConfig
	logger      *slog.Logger
}

// New creates a client with the provided options.
// For the S3 backend, credentials come from the default AWS credential chain
// unless WithCredentials or WithAWSConfig is given.
//
// Example:
//
//	client, err := s3stream.New(
//	    s3stream.WithRegion("us-west-2"),
//	    s3stream.WithPartSize(64 * 1024 * 1024),
//	)
func New(opts ...streamtypes.Option) (*Client, error) {
	cfg := newClientConfig(opts)

	var b backend.Backend
	switch cfg.Backend {
	case streamtypes.BackendS3:
		s3Client, err := newS3Client(cfg)
		if err != nil {
			return nil, err
		}
		b = s3backend.New(s3Client)
	case streamtypes.BackendMinIO:
		mb, err := miniobackend.Dial(miniobackend.Options{
			Endpoint:        cfg.Endpoint,
			Region:          cfg.Region,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			SessionToken:    cfg.SessionToken,
			Secure:          !cfg.DisableSSL,
			ForcePathStyle:  cfg.ForcePathStyle,
		})
		if err != nil {
			return nil, s3errors.NewError("client initialization", s3errors.KindInvalidInput, err)
		}
		b = mb
	default:
		return nil, s3errors.NewError("client initialization", s3errors.KindInvalidInput,
			fmt.Errorf("%w: unknown backend %q", s3errors.ErrInvalidInput, cfg.Backend))
	}

	return newClient(cfg, b), nil
}

// NewWithClient creates a client over a custom S3API implementation.
// This is primarily used for testing with mocked clients.
func NewWithClient(s3Client s3api.S3API, opts ...streamtypes.Option) *Client {
	return newClient(newClientConfig(opts), s3backend.New(s3Client))
}

// NewWithBackend creates a client over an arbitrary backend.
func NewWithBackend(b backend.Backend, opts ...streamtypes.Option) *Client {
	return newClient(newClientConfig(opts), b)
}

// Close releases idle source connections. Transfers in flight are not
// interrupted.
func (c *Client) Close() error {
	c.opener.Close()
	return nil
}

func newClientConfig(opts []streamtypes.Option) streamtypes.ClientConfig {
	cfg := streamtypes.ClientConfig{
		Backend:      streamtypes.BackendS3,
		MaxRetries:   3,
		Concurrency:  streamtypes.DefaultConcurrency,
		PartSize:     streamtypes.DefaultPartSize,
		AbortTimeout: streamtypes.DefaultAbortTimeout,
		Source:       streamtypes.DefaultSourceOptions(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return cfg
}

func newClient(cfg streamtypes.ClientConfig, b backend.Backend) *Client {
	logger := cfg.Logger.With("component", "s3stream")

	sourceOpts := []source.Option{
		source.WithLogger(logger),
		source.WithReadAhead(cfg.ReadAheadBuffers, cfg.ReadAheadSize),
	}
	if cfg.Filesystem != nil {
		sourceOpts = append(sourceOpts, source.WithFilesystem(cfg.Filesystem))
	}

	return &Client{
		backend: b,
		coordinator: multipart.New(b,
			multipart.WithConcurrency(cfg.Concurrency),
			multipart.WithAbortTimeout(cfg.AbortTimeout),
			multipart.WithLogger(logger),
		),
		opener: source.NewOpener(cfg.Source, sourceOpts...),
		config: cfg,
		logger: logger,
	}
}

func newS3Client(clientCfg streamtypes.ClientConfig) (*s3.Client, error) {
	var cfg aws.Config
	if clientCfg.CustomAWSConfig != nil {
		cfg = clientCfg.CustomAWSConfig.Copy()
	} else {
		var err error
		cfg, err = config.LoadDefaultConfig(context.Background())
		if err != nil {
			return nil, s3errors.NewError("client initialization", s3errors.KindSession, err)
		}
	}

	if clientCfg.Region != "" {
		cfg.Region = clientCfg.Region
	} else if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	if clientCfg.MaxRetries > 0 {
		cfg.RetryMaxAttempts = clientCfg.MaxRetries
	}

	if clientCfg.AccessKeyID != "" {
		cfg.Credentials = credentials.NewStaticCredentialsProvider(
			clientCfg.AccessKeyID, clientCfg.SecretAccessKey, clientCfg.SessionToken,
		)
	}

	var s3Opts []func(*s3.Options)

	if clientCfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	if clientCfg.Endpoint != "" {
		endpoint := endpointURL(clientCfg.Endpoint, clientCfg.DisableSSL)
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}

	switch {
	case clientCfg.CustomHTTPClient != nil:
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.HTTPClient = clientCfg.CustomHTTPClient
		})
	case clientCfg.Timeout > 0:
		httpClient := &http.Client{Timeout: clientCfg.Timeout}
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.HTTPClient = httpClient
		})
	}

	return s3.NewFromConfig(cfg, s3Opts...), nil
}

// endpointURL adds a scheme to bare host:port endpoints.
func endpointURL(endpoint string, disableSSL bool) string {
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	if disableSSL {
		return "http://" + endpoint
	}
	return "https://" + endpoint
}
