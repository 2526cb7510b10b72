// Package config loads s3stream CLI settings from defaults, a YAML file and
// S3STREAM_ environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/input-output-hk/catalyst-forge-libs/s3stream/internal/validation"
	"github.com/input-output-hk/catalyst-forge-libs/s3stream/streamtypes"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "S3STREAM_"

// ByteSize is a byte count that reads from strings such as "100MiB" or "64MB".
type ByteSize int64

// ParseByteSize parses a human-readable size. MB is decimal, MiB is binary.
func ParseByteSize(s string) (ByteSize, error) {
	n, err := humanize.ParseBytes(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}
	return ByteSize(n), nil
}

// String formats the size with binary units.
func (b ByteSize) String() string {
	return humanize.IBytes(uint64(b))
}

// UnmarshalYAML accepts either a plain integer or a size string.
func (b *ByteSize) UnmarshalYAML(node *yaml.Node) error {
	if n, err := strconv.ParseInt(node.Value, 10, 64); err == nil {
		*b = ByteSize(n)
		return nil
	}
	size, err := ParseByteSize(node.Value)
	if err != nil {
		return err
	}
	*b = size
	return nil
}

// Set implements flag.Value.
func (b *ByteSize) Set(s string) error {
	size, err := ParseByteSize(s)
	if err != nil {
		return err
	}
	*b = size
	return nil
}

// Config holds the settings of a single CLI transfer.
type Config struct {
	URL            string      `yaml:"url"`
	Bucket         string      `yaml:"bucket"`
	Key            string      `yaml:"key"`
	Backend        string      `yaml:"backend"`
	Region         string      `yaml:"region"`
	Endpoint       string      `yaml:"endpoint"`
	ForcePathStyle bool        `yaml:"force_path_style"`
	DisableSSL     bool        `yaml:"disable_ssl"`
	PartSize       ByteSize    `yaml:"part_size"`
	Concurrency    int         `yaml:"concurrency"`
	ContentType    string      `yaml:"content_type"`
	StorageClass   string      `yaml:"storage_class"`
	LogLevel       string      `yaml:"log_level"`
	LogFormat      string      `yaml:"log_format"`
	Progress       bool        `yaml:"progress"`
	ReadAhead      int         `yaml:"read_ahead"`
	Retry          RetryConfig `yaml:"retry"`
}

// RetryConfig controls retries of the source request.
type RetryConfig struct {
	Attempts   int           `yaml:"attempts"`
	Backoff    time.Duration `yaml:"backoff"`
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// Default returns the built-in settings.
func Default() Config {
	src := streamtypes.DefaultSourceOptions()
	return Config{
		Backend:     streamtypes.BackendS3,
		PartSize:    ByteSize(streamtypes.DefaultPartSize),
		Concurrency: streamtypes.DefaultConcurrency,
		LogLevel:    "info",
		LogFormat:   "text",
		Retry: RetryConfig{
			Attempts:   src.RetryAttempts,
			Backoff:    src.RetryBackoff,
			MaxBackoff: src.RetryMaxBackoff,
		},
	}
}

// LoadFromFile returns the defaults overlaid with the keys present in the
// YAML file at path.
func LoadFromFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// LoadFromEnv overlays S3STREAM_ environment variables onto c.
func (c *Config) LoadFromEnv() error {
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) error {
		v, ok := os.LookupEnv(EnvPrefix + name)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse %s%s: %w", EnvPrefix, name, err)
		}
		*dst = b
		return nil
	}
	integer := func(name string, dst *int) error {
		v, ok := os.LookupEnv(EnvPrefix + name)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
		return nil
	}
	duration := func(name string, dst *time.Duration) error {
		v, ok := os.LookupEnv(EnvPrefix + name)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse %s%s: %w", EnvPrefix, name, err)
		}
		*dst = d
		return nil
	}

	str("URL", &c.URL)
	str("BUCKET", &c.Bucket)
	str("KEY", &c.Key)
	str("BACKEND", &c.Backend)
	str("REGION", &c.Region)
	str("ENDPOINT", &c.Endpoint)
	str("CONTENT_TYPE", &c.ContentType)
	str("STORAGE_CLASS", &c.StorageClass)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)

	if v, ok := os.LookupEnv(EnvPrefix + "PART_SIZE"); ok && v != "" {
		if err := c.PartSize.Set(v); err != nil {
			return fmt.Errorf("parse %sPART_SIZE: %w", EnvPrefix, err)
		}
	}

	return errors.Join(
		boolean("FORCE_PATH_STYLE", &c.ForcePathStyle),
		boolean("DISABLE_SSL", &c.DisableSSL),
		boolean("PROGRESS", &c.Progress),
		integer("CONCURRENCY", &c.Concurrency),
		integer("READ_AHEAD", &c.ReadAhead),
		integer("RETRY_ATTEMPTS", &c.Retry.Attempts),
		duration("RETRY_BACKOFF", &c.Retry.Backoff),
		duration("RETRY_MAX_BACKOFF", &c.Retry.MaxBackoff),
	)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.URL == "":
		return errors.New("config: url is required")
	case c.Bucket == "":
		return errors.New("config: bucket is required")
	case c.Key == "":
		return errors.New("config: key is required")
	case c.PartSize <= 0:
		return errors.New("config: part_size must be positive")
	case c.Concurrency < 1:
		return errors.New("config: concurrency must be at least 1")
	case c.ReadAhead < 0:
		return errors.New("config: read_ahead cannot be negative")
	case c.Retry.Attempts < 0:
		return errors.New("config: retry.attempts cannot be negative")
	}

	if err := validation.ValidatePartSize(int64(c.PartSize)); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	switch c.Backend {
	case streamtypes.BackendS3:
	case streamtypes.BackendMinIO:
		if c.Endpoint == "" {
			return errors.New("config: endpoint is required for the minio backend")
		}
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}

	if _, err := c.Level(); err != nil {
		return err
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("config: log_format must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: log_level: %w", err)
	}
	return level, nil
}

// SourceOptions returns the HTTP source settings for c.
func (c *Config) SourceOptions() streamtypes.SourceOptions {
	opts := streamtypes.DefaultSourceOptions()
	opts.RetryAttempts = c.Retry.Attempts
	if c.Retry.Backoff > 0 {
		opts.RetryBackoff = c.Retry.Backoff
	}
	if c.Retry.MaxBackoff > 0 {
		opts.RetryMaxBackoff = c.Retry.MaxBackoff
	}
	return opts
}
