// Command s3stream streams a URL or local file into an S3 object without
// staging it on disk.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/input-output-hk/catalyst-forge-libs/s3stream"
	s3errors "github.com/input-output-hk/catalyst-forge-libs/s3stream/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3stream/internal/config"
	"github.com/input-output-hk/catalyst-forge-libs/s3stream/streamtypes"
)

// Exit codes
const (
	ExitSuccess         = 0
	ExitGeneralError    = 1
	ExitInvalidArgs     = 2
	ExitSourceNotAccess = 3
	ExitStorageError    = 5
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	cfg, err := loadConfig(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return ExitSuccess
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}

	logger, err := newLogger(cfg, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}

	client, err := s3stream.New(clientOptions(cfg, logger)...)
	if err != nil {
		logger.Error("failed to create client", "error", err)
		return exitCode(err)
	}
	defer client.Close()

	var opts []streamtypes.TransferOption
	if cfg.ContentType != "" {
		opts = append(opts, s3stream.WithContentType(cfg.ContentType))
	}
	if cfg.StorageClass != "" {
		opts = append(opts, s3stream.WithStorageClass(streamtypes.StorageClass(cfg.StorageClass)))
	}
	if cfg.Progress {
		opts = append(opts, s3stream.WithProgress(newLogProgress(logger, progressInterval)))
	}

	result, err := client.Transfer(ctx, cfg.URL, cfg.Bucket, cfg.Key, opts...)
	if err != nil {
		if ctx.Err() != nil {
			logger.Warn("transfer interrupted, multipart upload aborted")
		}
		logger.Error("transfer failed", "error", err, "kind", string(s3errors.KindOf(err)))
		return exitCode(err)
	}

	logger.Info("transfer complete",
		"transfer_id", result.TransferID,
		"bucket", result.Bucket,
		"key", result.Key,
		"size", result.Size,
		"parts", result.Parts,
		"etag", result.ETag,
		"content_type", result.ContentType,
		"duration", result.Duration,
	)
	return ExitSuccess
}

// loadConfig merges defaults, the optional config file, the environment and
// finally the flags that were set explicitly.
func loadConfig(args []string, stderr io.Writer) (config.Config, error) {
	fs := flag.NewFlagSet("s3stream", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var flags config.Config
	flags.PartSize = config.Default().PartSize

	configPath := fs.String("config", "", "Path to a YAML config file")
	fs.StringVar(&flags.URL, "url", "", "Source URL or local path (required)")
	fs.StringVar(&flags.Bucket, "bucket", "", "Destination bucket (required)")
	fs.StringVar(&flags.Key, "key", "", "Destination object key (required)")
	fs.StringVar(&flags.Backend, "backend", streamtypes.BackendS3, "Object store client: s3 or minio")
	fs.StringVar(&flags.Region, "region", "", "Region of the bucket")
	fs.StringVar(&flags.Endpoint, "endpoint", "", "Custom endpoint URL (required for minio)")
	fs.BoolVar(&flags.ForcePathStyle, "force-path-style", false, "Use path-style bucket addressing")
	fs.BoolVar(&flags.DisableSSL, "disable-ssl", false, "Use plain HTTP for endpoints without a scheme")
	fs.Var(&flags.PartSize, "part-size", "Size of each part, e.g. 64MiB")
	fs.IntVar(&flags.Concurrency, "concurrency", streamtypes.DefaultConcurrency, "Number of parts uploaded at once")
	fs.StringVar(&flags.ContentType, "content-type", "", "Object content type (detected when empty)")
	fs.StringVar(&flags.StorageClass, "storage-class", "", "Object storage class")
	fs.BoolVar(&flags.Progress, "progress", false, "Log transfer progress")
	fs.IntVar(&flags.ReadAhead, "read-ahead", 0, "Number of source read-ahead buffers, 0 disables")
	fs.IntVar(&flags.Retry.Attempts, "retry-attempts", 3, "Retries of the source request")
	fs.DurationVar(&flags.Retry.Backoff, "retry-backoff", 0, "Initial source retry backoff")
	fs.DurationVar(&flags.Retry.MaxBackoff, "retry-max-backoff", 0, "Maximum source retry backoff")
	fs.StringVar(&flags.LogLevel, "log-level", "info", "Log level: debug, info, warn or error")
	fs.StringVar(&flags.LogFormat, "log-format", "text", "Log format: text or json")

	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), `Usage: s3stream -url URL -bucket BUCKET -key KEY [options]

Stream a URL or local file into an S3 object as a multipart upload.
Settings are read from the config file, then S3STREAM_* environment
variables, then flags; later sources win.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return config.Config{}, err
	}
	if fs.NArg() > 0 {
		return config.Config{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadFromFile(*configPath); err != nil {
			return config.Config{}, err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return config.Config{}, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "url":
			cfg.URL = flags.URL
		case "bucket":
			cfg.Bucket = flags.Bucket
		case "key":
			cfg.Key = flags.Key
		case "backend":
			cfg.Backend = flags.Backend
		case "region":
			cfg.Region = flags.Region
		case "endpoint":
			cfg.Endpoint = flags.Endpoint
		case "force-path-style":
			cfg.ForcePathStyle = flags.ForcePathStyle
		case "disable-ssl":
			cfg.DisableSSL = flags.DisableSSL
		case "part-size":
			cfg.PartSize = flags.PartSize
		case "concurrency":
			cfg.Concurrency = flags.Concurrency
		case "content-type":
			cfg.ContentType = flags.ContentType
		case "storage-class":
			cfg.StorageClass = flags.StorageClass
		case "progress":
			cfg.Progress = flags.Progress
		case "read-ahead":
			cfg.ReadAhead = flags.ReadAhead
		case "retry-attempts":
			cfg.Retry.Attempts = flags.Retry.Attempts
		case "retry-backoff":
			cfg.Retry.Backoff = flags.Retry.Backoff
		case "retry-max-backoff":
			cfg.Retry.MaxBackoff = flags.Retry.MaxBackoff
		case "log-level":
			cfg.LogLevel = flags.LogLevel
		case "log-format":
			cfg.LogFormat = flags.LogFormat
		}
	})

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newLogger(cfg config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func clientOptions(cfg config.Config, logger *slog.Logger) []streamtypes.Option {
	opts := []streamtypes.Option{
		s3stream.WithBackend(cfg.Backend),
		s3stream.WithPartSize(int64(cfg.PartSize)),
		s3stream.WithConcurrency(cfg.Concurrency),
		s3stream.WithForcePathStyle(cfg.ForcePathStyle),
		s3stream.WithDisableSSL(cfg.DisableSSL),
		s3stream.WithHTTPOptions(cfg.SourceOptions()),
		s3stream.WithLogger(logger),
	}
	if cfg.Region != "" {
		opts = append(opts, s3stream.WithRegion(cfg.Region))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, s3stream.WithEndpoint(cfg.Endpoint))
	}
	if cfg.ReadAhead > 0 {
		opts = append(opts, s3stream.WithReadAhead(cfg.ReadAhead, readAheadBufferSize))
	}
	return opts
}

const readAheadBufferSize = 1 << 20

func exitCode(err error) int {
	switch s3errors.KindOf(err) {
	case s3errors.KindInvalidInput:
		return ExitInvalidArgs
	case s3errors.KindSource:
		return ExitSourceNotAccess
	case s3errors.KindSession, s3errors.KindPartUpload, s3errors.KindCompletion, s3errors.KindAbort:
		return ExitStorageError
	default:
		return ExitGeneralError
	}
}
