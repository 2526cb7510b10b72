package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	s3errors "github.com/input-output-hk/catalyst-forge-libs/s3stream/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3stream/internal/config"
)

func TestLoadConfig_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s3stream.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
url: https://example.com/from-file
bucket: file-bucket
key: file-key
concurrency: 2
part_size: 8MiB
`), 0o600))

	t.Setenv("S3STREAM_BUCKET", "env-bucket")
	t.Setenv("S3STREAM_CONCURRENCY", "6")

	var stderr bytes.Buffer
	cfg, err := loadConfig([]string{"-config", path, "-concurrency", "9", "-log-format", "json"}, &stderr)
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/from-file", cfg.URL, "file value kept")
	assert.Equal(t, "env-bucket", cfg.Bucket, "environment overrides file")
	assert.Equal(t, "file-key", cfg.Key)
	assert.Equal(t, 9, cfg.Concurrency, "flag overrides environment")
	assert.Equal(t, config.ByteSize(8<<20), cfg.PartSize)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadConfig_UnsetFlagsKeepDefaults(t *testing.T) {
	var stderr bytes.Buffer
	cfg, err := loadConfig([]string{"-url", "/tmp/x", "-bucket", "my-bucket", "-key", "k", "-part-size", "16MiB"}, &stderr)
	require.NoError(t, err)

	assert.Equal(t, config.Default().Concurrency, cfg.Concurrency)
	assert.Equal(t, config.ByteSize(16<<20), cfg.PartSize)
	assert.Equal(t, "s3", cfg.Backend)
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "missing url", args: []string{"-bucket", "my-bucket", "-key", "k"}, wantErr: "url is required"},
		{name: "unknown flag", args: []string{"-nope"}, wantErr: "not defined"},
		{name: "bad part size", args: []string{"-part-size", "big"}, wantErr: "invalid byte size"},
		{
			name:    "part size too small",
			args:    []string{"-url", "u", "-bucket", "my-bucket", "-key", "k", "-part-size", "1MiB"},
			wantErr: "part size",
		},
		{
			name:    "positional arguments",
			args:    []string{"-url", "u", "-bucket", "my-bucket", "-key", "k", "extra"},
			wantErr: "unexpected arguments",
		},
		{
			name:    "missing config file",
			args:    []string{"-config", "/does/not/exist.yaml"},
			wantErr: "read config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stderr bytes.Buffer
			_, err := loadConfig(tt.args, &stderr)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoadConfig_Help(t *testing.T) {
	var stderr bytes.Buffer
	_, err := loadConfig([]string{"-h"}, &stderr)
	assert.True(t, errors.Is(err, flag.ErrHelp))
	assert.Contains(t, stderr.String(), "Usage: s3stream")
}

func TestRun_ExitCodes(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	tests := []struct {
		name string
		args []string
		want int
	}{
		{name: "help", args: []string{"-h"}, want: ExitSuccess},
		{name: "missing arguments", args: nil, want: ExitInvalidArgs},
		{name: "invalid bucket", args: []string{"-url", server.URL, "-bucket", "Bad_Bucket", "-key", "k",
			"-backend", "minio", "-endpoint", "http://127.0.0.1:1"}, want: ExitInvalidArgs},
		{name: "source not found", args: []string{"-url", server.URL + "/missing", "-bucket", "my-bucket", "-key", "k",
			"-backend", "minio", "-endpoint", "http://127.0.0.1:1", "-retry-attempts", "0"}, want: ExitSourceNotAccess},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("AWS_ACCESS_KEY_ID", "test")
			t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

			var stderr bytes.Buffer
			assert.Equal(t, tt.want, run(context.Background(), tt.args, &stderr), stderr.String())
		})
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		kind s3errors.Kind
		want int
	}{
		{s3errors.KindInvalidInput, ExitInvalidArgs},
		{s3errors.KindSource, ExitSourceNotAccess},
		{s3errors.KindSession, ExitStorageError},
		{s3errors.KindPartUpload, ExitStorageError},
		{s3errors.KindCompletion, ExitStorageError},
		{s3errors.KindCanceled, ExitGeneralError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			err := s3errors.NewError("op", tt.kind, errors.New("cause"))
			assert.Equal(t, tt.want, exitCode(err))
		})
	}

	assert.Equal(t, ExitGeneralError, exitCode(errors.New("plain")))
}

func TestLogProgress(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	p := newLogProgress(logger, 0)
	p.Update(512, 1024)
	p.Update(1024, 1024)
	p.Complete()

	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "msg=progress"))
	assert.Contains(t, out, "percent=50%")
	assert.Contains(t, out, "percent=100%")
	assert.Contains(t, out, "upload finished")

	buf.Reset()
	p = newLogProgress(logger, time.Hour)
	p.Update(1, 10)
	assert.Empty(t, buf.String(), "updates inside the interval are dropped")
}
