// Package pool provides reusable part buffers.
//
// Parts are large (100 MiB by default) and short-lived: a buffer is filled by
// the chunker, handed to exactly one upload worker and released once the
// backend acknowledged the part. Pooling them keeps a long transfer from
// allocating a fresh part-sized slice for every part.
package pool

import (
	"sync"
)

// BufferPool hands out buffers with a fixed capacity.
type BufferPool struct {
	size int
	pool *sync.Pool
}

// NewBufferPool creates a pool of buffers with the given capacity.
func NewBufferPool(size int) *BufferPool {
	return &BufferPool{
		size: size,
		pool: &sync.Pool{
			New: func() interface{} {
				buf := make([]byte, 0, size)
				return &buf
			},
		},
	}
}

// Size returns the capacity of the buffers in this pool.
func (bp *BufferPool) Size() int {
	return bp.size
}

// Get returns an empty buffer with the pool's capacity.
// The caller is responsible for calling Put to return the buffer to the pool.
func (bp *BufferPool) Get() []byte {
	bufPtr := bp.pool.Get().(*[]byte)
	// Reset length to 0 but keep capacity
	*bufPtr = (*bufPtr)[:0]
	return *bufPtr
}

// Put returns a buffer to the pool.
// Buffers with a foreign capacity are dropped.
// The buffer should not be used after calling Put.
func (bp *BufferPool) Put(buf []byte) {
	if cap(buf) != bp.size {
		return
	}
	buf = buf[:0]
	bp.pool.Put(&buf)
}

var (
	poolsMu sync.Mutex
	pools   = make(map[int]*BufferPool)
)

// ForSize returns the shared pool for buffers of the given capacity.
// Transfers using the same part size share buffers.
func ForSize(size int) *BufferPool {
	poolsMu.Lock()
	defer poolsMu.Unlock()

	bp, ok := pools[size]
	if !ok {
		bp = NewBufferPool(size)
		pools[size] = bp
	}
	return bp
}
