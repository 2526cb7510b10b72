// Package source opens the byte streams a transfer reads from.
//
// http and https URLs are fetched with a single GET whose body is streamed;
// file URLs and plain paths are read through the fs abstraction. Retries only
// happen before the body starts, never in the middle of a stream.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/input-output-hk/catalyst-forge-libs/fs"
	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"
	"github.com/klauspost/readahead"

	"github.com/input-output-hk/catalyst-forge-libs/s3stream/streamtypes"
)

// Common errors.
var (
	ErrNotFound          = errors.New("source: resource not found")
	ErrForbidden         = errors.New("source: access forbidden")
	ErrUnauthorized      = errors.New("source: unauthorized")
	ErrServerError       = errors.New("source: server error")
	ErrUnsupportedScheme = errors.New("source: unsupported URL scheme")
	ErrIsDirectory       = errors.New("source: path is a directory")
)

// Stream is an open source.
type Stream struct {
	// Body yields the source bytes. The caller must close it.
	Body io.ReadCloser

	// Size is the number of bytes Body will yield, -1 when unknown
	Size int64

	// ContentType is the type the source reported, empty when unknown
	ContentType string

	// Name is the last path element of the source
	Name string
}

// Opener opens sources by URL.
type Opener struct {
	http             *httpClient
	fs               fs.Filesystem
	osRooted         bool
	readAheadBuffers int
	readAheadSize    int
	logger           *slog.Logger
}

// Option configures an Opener.
type Option func(*Opener)

// WithHTTPClient replaces the HTTP client used for http and https sources.
func WithHTTPClient(client *http.Client) Option {
	return func(o *Opener) {
		if client != nil {
			o.http.client = client
		}
	}
}

// WithFilesystem sets the filesystem used for file sources. Paths are passed
// to it unchanged.
func WithFilesystem(fsys fs.Filesystem) Option {
	return func(o *Opener) {
		if fsys != nil {
			o.fs = fsys
			o.osRooted = false
		}
	}
}

// WithReadAhead reads the source in the background into the given number of
// buffers of the given size. Zero buffers disables read-ahead.
func WithReadAhead(buffers, size int) Option {
	return func(o *Opener) {
		o.readAheadBuffers = buffers
		o.readAheadSize = size
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Opener) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewOpener creates an opener with the given HTTP settings.
func NewOpener(httpOpts streamtypes.SourceOptions, opts ...Option) *Opener {
	o := &Opener{
		fs:       billy.NewOSFS("/"),
		osRooted: true,
		logger:   slog.New(slog.DiscardHandler),
	}
	o.http = newHTTPClient(httpOpts, o.logf)
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Open opens the source named by rawURL.
func (o *Opener) Open(ctx context.Context, rawURL string) (*Stream, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("source: parse %q: %w", rawURL, err)
	}

	var s *Stream
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		s, err = o.http.get(ctx, u.String())
	case "file":
		s, err = o.openFile(u.Path)
	case "":
		s, err = o.openFile(rawURL)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	if err != nil {
		return nil, err
	}

	if s.Name == "" {
		s.Name = path.Base(u.Path)
	}

	if o.readAheadBuffers > 0 {
		body, err := withReadAhead(s.Body, o.readAheadBuffers, o.readAheadSize)
		if err != nil {
			_ = s.Body.Close()
			return nil, err
		}
		s.Body = body
	}

	o.logger.Debug("source opened", "url", redact(u), "size", s.Size, "content_type", s.ContentType)
	return s, nil
}

// Close drops idle HTTP connections.
func (o *Opener) Close() {
	o.http.client.CloseIdleConnections()
}

func (o *Opener) logf(msg string, args ...any) {
	o.logger.Warn(msg, args...)
}

// aheadReader reads its source in a background goroutine.
type aheadReader struct {
	io.ReadCloser
	body io.Closer
}

// Close closes the source first so a read blocked on the network returns,
// then stops the background reader.
func (r *aheadReader) Close() error {
	bodyErr := r.body.Close()
	aheadErr := r.ReadCloser.Close()
	if bodyErr != nil {
		return bodyErr
	}
	return aheadErr
}

func withReadAhead(body io.ReadCloser, buffers, size int) (io.ReadCloser, error) {
	if size <= 0 {
		size = 1 << 20
	}
	ra, err := readahead.NewReaderSize(body, buffers, size)
	if err != nil {
		return nil, fmt.Errorf("source: read-ahead: %w", err)
	}
	return &aheadReader{ReadCloser: ra, body: body}, nil
}

// redact drops credentials and query strings, which often carry signatures.
func redact(u *url.URL) string {
	c := *u
	c.User = nil
	c.RawQuery = ""
	return c.String()
}
