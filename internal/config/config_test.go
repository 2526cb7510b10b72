package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/s3stream/streamtypes"
)

func validConfig() Config {
	cfg := Default()
	cfg.URL = "https://example.com/blob"
	cfg.Bucket = "my-bucket"
	cfg.Key = "blob"
	return cfg
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, streamtypes.BackendS3, cfg.Backend)
	assert.Equal(t, ByteSize(100*1024*1024), cfg.PartSize)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 3, cfg.Retry.Attempts)
	assert.Equal(t, time.Second, cfg.Retry.Backoff)
	assert.Equal(t, 30*time.Second, cfg.Retry.MaxBackoff)
}

func TestParseByteSize(t *testing.T) {
	tests := []struct {
		in      string
		want    ByteSize
		wantErr bool
	}{
		{in: "100MiB", want: 100 * 1024 * 1024},
		{in: "5 MiB", want: 5 * 1024 * 1024},
		{in: "64MB", want: 64_000_000},
		{in: "1GiB", want: 1 << 30},
		{in: "4096", want: 4096},
		{in: "lots", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseByteSize(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestByteSizeString(t *testing.T) {
	assert.Equal(t, "100 MiB", ByteSize(100*1024*1024).String())
}

func TestLoadFromFile(t *testing.T) {
	content := `
url: https://example.com/archive.tar
bucket: archive-bucket
key: backups/archive.tar
backend: minio
endpoint: http://localhost:9000
force_path_style: true
part_size: 64MiB
concurrency: 8
log_format: json
retry:
  attempts: 7
  backoff: 2s
  max_backoff: 1m
`
	path := filepath.Join(t.TempDir(), "s3stream.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/archive.tar", cfg.URL)
	assert.Equal(t, "archive-bucket", cfg.Bucket)
	assert.Equal(t, "backups/archive.tar", cfg.Key)
	assert.Equal(t, streamtypes.BackendMinIO, cfg.Backend)
	assert.Equal(t, "http://localhost:9000", cfg.Endpoint)
	assert.True(t, cfg.ForcePathStyle)
	assert.Equal(t, ByteSize(64*1024*1024), cfg.PartSize)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 7, cfg.Retry.Attempts)
	assert.Equal(t, 2*time.Second, cfg.Retry.Backoff)
	assert.Equal(t, time.Minute, cfg.Retry.MaxBackoff)

	// Keys absent from the file keep their defaults.
	assert.Equal(t, "info", cfg.LogLevel)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromFile_Errors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config file")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("part_size: huge\n"), 0o600))
	_, err = LoadFromFile(path)
	assert.ErrorContains(t, err, "parse config file")
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("S3STREAM_URL", "https://example.com/env")
	t.Setenv("S3STREAM_BUCKET", "env-bucket")
	t.Setenv("S3STREAM_KEY", "env/key")
	t.Setenv("S3STREAM_PART_SIZE", "16MiB")
	t.Setenv("S3STREAM_CONCURRENCY", "12")
	t.Setenv("S3STREAM_PROGRESS", "true")
	t.Setenv("S3STREAM_RETRY_BACKOFF", "250ms")

	cfg := Default()
	cfg.Bucket = "file-bucket"
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "https://example.com/env", cfg.URL)
	assert.Equal(t, "env-bucket", cfg.Bucket, "environment overrides earlier values")
	assert.Equal(t, "env/key", cfg.Key)
	assert.Equal(t, ByteSize(16*1024*1024), cfg.PartSize)
	assert.Equal(t, 12, cfg.Concurrency)
	assert.True(t, cfg.Progress)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.Backoff)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoadFromEnv_InvalidValues(t *testing.T) {
	t.Setenv("S3STREAM_CONCURRENCY", "many")
	t.Setenv("S3STREAM_PROGRESS", "maybe")

	cfg := Default()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.ErrorContains(t, err, "S3STREAM_CONCURRENCY")
	assert.ErrorContains(t, err, "S3STREAM_PROGRESS")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{name: "valid", modify: func(*Config) {}},
		{name: "missing url", modify: func(c *Config) { c.URL = "" }, wantErr: "url is required"},
		{name: "missing bucket", modify: func(c *Config) { c.Bucket = "" }, wantErr: "bucket is required"},
		{name: "missing key", modify: func(c *Config) { c.Key = "" }, wantErr: "key is required"},
		{name: "zero part size", modify: func(c *Config) { c.PartSize = 0 }, wantErr: "part_size"},
		{
			name:    "part size below floor",
			modify:  func(c *Config) { c.PartSize = ByteSize(streamtypes.MinPartSize - 1) },
			wantErr: "part size",
		},
		{
			name:    "part size above ceiling",
			modify:  func(c *Config) { c.PartSize = ByteSize(streamtypes.MaxPartSize + 1) },
			wantErr: "part size",
		},
		{name: "zero concurrency", modify: func(c *Config) { c.Concurrency = 0 }, wantErr: "concurrency"},
		{
			name:    "minio without endpoint",
			modify:  func(c *Config) { c.Backend = streamtypes.BackendMinIO },
			wantErr: "endpoint is required",
		},
		{name: "unknown backend", modify: func(c *Config) { c.Backend = "gcs" }, wantErr: "unknown backend"},
		{name: "bad log level", modify: func(c *Config) { c.LogLevel = "loud" }, wantErr: "log_level"},
		{name: "bad log format", modify: func(c *Config) { c.LogFormat = "xml" }, wantErr: "log_format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLevel(t *testing.T) {
	cfg := validConfig()
	cfg.LogLevel = "debug"

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestSourceOptions(t *testing.T) {
	cfg := validConfig()
	cfg.Retry = RetryConfig{Attempts: 0, Backoff: 0, MaxBackoff: 5 * time.Second}

	opts := cfg.SourceOptions()
	assert.Equal(t, 0, opts.RetryAttempts)
	assert.Equal(t, time.Second, opts.RetryBackoff)
	assert.Equal(t, 5*time.Second, opts.RetryMaxBackoff)
}
