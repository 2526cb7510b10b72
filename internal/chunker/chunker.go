// Package chunker splits a sequential byte stream into numbered parts.
//
// Every part except the last holds exactly the configured part size; the last
// part holds whatever remains. An empty stream yields no parts. The chunker is
// the only reader of its source.
package chunker

import (
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/input-output-hk/catalyst-forge-libs/s3stream/internal/pool"
	"github.com/input-output-hk/catalyst-forge-libs/s3stream/streamtypes"
)

// Chunker produces parts from a reader on demand.
// It is forward-only and not safe for concurrent use.
type Chunker struct {
	r        io.Reader
	partSize int
	buffers  *pool.BufferPool

	next      int32
	bytesRead int64
	err       error
}

// New creates a chunker that emits parts of partSize bytes.
// A non-positive partSize selects streamtypes.DefaultPartSize.
func New(r io.Reader, partSize int64) *Chunker {
	if partSize <= 0 {
		partSize = streamtypes.DefaultPartSize
	}
	return &Chunker{
		r:        r,
		partSize: int(partSize),
		buffers:  pool.ForSize(int(partSize)),
		next:     1,
	}
}

// PartSize returns the size of every non-final part.
func (c *Chunker) PartSize() int64 {
	return int64(c.partSize)
}

// BytesRead returns the number of bytes consumed from the source so far.
func (c *Chunker) BytesRead() int64 {
	return c.bytesRead
}

// Next returns the next part. It returns io.EOF once the stream is exhausted.
// A read error is returned once; every later call returns io.EOF.
func (c *Chunker) Next() (streamtypes.Part, error) {
	if c.err != nil {
		return streamtypes.Part{}, io.EOF
	}

	buf := c.buffers.Get()[:c.partSize]
	n, err := io.ReadFull(c.r, buf)
	c.bytesRead += int64(n)

	switch {
	case err == nil:
		return c.emit(buf), nil
	case errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF):
		c.err = io.EOF
		if n == 0 {
			c.buffers.Put(buf)
			return streamtypes.Part{}, io.EOF
		}
		return c.emit(buf[:n]), nil
	default:
		c.err = err
		c.buffers.Put(buf)
		return streamtypes.Part{}, fmt.Errorf("read source at offset %d: %w", c.bytesRead, err)
	}
}

// Release hands a part's buffer back for reuse.
// The part must not be used afterwards.
func (c *Chunker) Release(p streamtypes.Part) {
	c.buffers.Put(p.Data)
}

// All returns the remaining parts as an iterator. Iteration stops after the
// last part or after yielding a read error.
func (c *Chunker) All() iter.Seq2[streamtypes.Part, error] {
	return func(yield func(streamtypes.Part, error) bool) {
		for {
			p, err := c.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(p, err) || err != nil {
				return
			}
		}
	}
}

func (c *Chunker) emit(data []byte) streamtypes.Part {
	p := streamtypes.Part{Number: c.next, Data: data}
	c.next++
	return p
}
