package testutil

import (
	"bytes"
	"io"
	"math/rand"
)

// RandomBytes returns n deterministic pseudo-random bytes for the given seed.
func RandomBytes(seed int64, n int) []byte {
	data := make([]byte, n)
	r := rand.New(rand.NewSource(seed))
	for i := range data {
		data[i] = byte(r.Intn(256))
	}
	return data
}

// FailingReader returns the first n bytes of data and then err.
func FailingReader(data []byte, n int, err error) io.Reader {
	if n > len(data) {
		n = len(data)
	}
	return io.MultiReader(bytes.NewReader(data[:n]), &errReader{err: err})
}

type errReader struct {
	err error
}

func (r *errReader) Read([]byte) (int, error) {
	return 0, r.err
}
