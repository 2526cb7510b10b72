package chunker

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/s3stream/streamtypes"
)

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	data := make([]byte, n)
	_, err := rand.New(rand.NewSource(int64(n))).Read(data)
	require.NoError(t, err)
	return data
}

func collect(t *testing.T, c *Chunker) []streamtypes.Part {
	t.Helper()
	var parts []streamtypes.Part
	for p, err := range c.All() {
		require.NoError(t, err)
		parts = append(parts, p)
	}
	return parts
}

func TestChunker_Properties(t *testing.T) {
	const partSize = 64

	tests := []struct {
		name      string
		length    int
		wantParts int
		lastSize  int
	}{
		{name: "empty", length: 0, wantParts: 0},
		{name: "single byte", length: 1, wantParts: 1, lastSize: 1},
		{name: "shorter than one part", length: partSize - 1, wantParts: 1, lastSize: partSize - 1},
		{name: "exactly one part", length: partSize, wantParts: 1, lastSize: partSize},
		{name: "one part plus one byte", length: partSize + 1, wantParts: 2, lastSize: 1},
		{name: "exact multiple", length: 5 * partSize, wantParts: 5, lastSize: partSize},
		{name: "uneven tail", length: 3*partSize + 17, wantParts: 4, lastSize: 17},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := randomBytes(t, tt.length)
			parts := collect(t, New(bytes.NewReader(data), partSize))

			require.Len(t, parts, tt.wantParts)

			var joined []byte
			for i, p := range parts {
				// Numbers are contiguous and start at 1.
				assert.Equal(t, int32(i+1), p.Number)
				if i < len(parts)-1 {
					assert.GreaterOrEqual(t, p.Size(), int64(partSize))
				}
				joined = append(joined, p.Data...)
			}

			if tt.wantParts > 0 {
				assert.Equal(t, tt.lastSize, len(parts[len(parts)-1].Data))
			}
			assert.Equal(t, data, append([]byte{}, joined...))
			if tt.length == 0 {
				assert.Empty(t, joined)
			}
		})
	}
}

func TestChunker_ShortReads(t *testing.T) {
	data := randomBytes(t, 1000)
	c := New(iotest.OneByteReader(bytes.NewReader(data)), 128)

	parts := collect(t, c)
	require.Len(t, parts, 8)
	for _, p := range parts[:7] {
		assert.Len(t, p.Data, 128)
	}
	assert.Len(t, parts[7].Data, 1000-7*128)
	assert.Equal(t, int64(1000), c.BytesRead())
}

func TestChunker_DataErrReader(t *testing.T) {
	data := randomBytes(t, 300)
	parts := collect(t, New(iotest.DataErrReader(bytes.NewReader(data)), 100))

	require.Len(t, parts, 3)
	assert.Equal(t, data[200:], parts[2].Data)
}

func TestChunker_ReadError(t *testing.T) {
	readErr := errors.New("connection reset")
	src := io.MultiReader(bytes.NewReader(randomBytes(t, 150)), iotest.ErrReader(readErr))
	c := New(src, 100)

	first, err := c.Next()
	require.NoError(t, err)
	assert.Equal(t, int32(1), first.Number)

	_, err = c.Next()
	require.Error(t, err)
	assert.ErrorIs(t, err, readErr)
	assert.Contains(t, err.Error(), "offset 150")

	// The error is reported once, then the chunker is exhausted.
	_, err = c.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestChunker_AllStopsOnError(t *testing.T) {
	readErr := errors.New("boom")
	c := New(iotest.ErrReader(readErr), 16)

	var errs []error
	for _, err := range c.All() {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], readErr)
}

func TestChunker_AllStopsWhenConsumerBreaks(t *testing.T) {
	c := New(bytes.NewReader(randomBytes(t, 100)), 10)

	count := 0
	for range c.All() {
		count++
		if count == 3 {
			break
		}
	}
	assert.Equal(t, 3, count)

	// The sequence resumes where the consumer left off.
	p, err := c.Next()
	require.NoError(t, err)
	assert.Equal(t, int32(4), p.Number)
}

func TestChunker_PartsAreNotAliased(t *testing.T) {
	data := randomBytes(t, 40)
	c := New(bytes.NewReader(data), 10)

	first, err := c.Next()
	require.NoError(t, err)
	snapshot := append([]byte{}, first.Data...)

	for {
		_, err := c.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
	}

	assert.Equal(t, snapshot, first.Data)
}

func TestChunker_ReleaseReusesBuffers(t *testing.T) {
	c := New(bytes.NewReader(randomBytes(t, 30)), 10)

	p, err := c.Next()
	require.NoError(t, err)
	c.Release(p)

	next, err := c.Next()
	require.NoError(t, err)
	assert.Equal(t, int32(2), next.Number)
	assert.Len(t, next.Data, 10)
}

func TestChunker_DefaultPartSize(t *testing.T) {
	c := New(bytes.NewReader(nil), 0)
	assert.Equal(t, streamtypes.DefaultPartSize, c.PartSize())

	_, err := c.Next()
	assert.ErrorIs(t, err, io.EOF)
}
