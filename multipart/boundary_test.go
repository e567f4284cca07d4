package multipart

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFinder(chunks ...string) *boundaryFinder {
	b := make([][]byte, len(chunks))
	for i, c := range chunks {
		b[i] = []byte(c)
	}
	return newBoundaryFinder(&chunkReader{chunks: b}, "boundary")
}

func drainBodyChunk(t *testing.T, bf *boundaryFinder) ([]byte, error) {
	t.Helper()
	return bf.bodyChunk()
}

func TestBoundaryFinderEmptyStream(t *testing.T) {
	bf := newTestFinder()

	more, err := bf.consumeBoundary()
	require.NoError(t, err)
	assert.False(t, more)
}

func TestBoundaryFinderOneBoundary(t *testing.T) {
	bf := newTestFinder("--boundary\r\n")

	more, err := bf.consumeBoundary()
	require.NoError(t, err)
	assert.True(t, more)

	more, err = bf.consumeBoundary()
	require.NoError(t, err)
	assert.False(t, more)
}

func TestBoundaryFinderIncompleteBoundary(t *testing.T) {
	bf := newTestFinder("--bound")

	_, err := bf.consumeBoundary()
	assert.Error(t, err)
}

func TestBoundaryFinderOneEmptyField(t *testing.T) {
	bf := newTestFinder("--boundary", "\r\n", "\r\n", "--boundary--")

	more, err := bf.consumeBoundary()
	require.NoError(t, err)
	assert.True(t, more)

	_, err = drainBodyChunk(t, bf)
	assert.ErrorIs(t, err, io.EOF)

	more, err = bf.consumeBoundary()
	require.NoError(t, err)
	assert.False(t, more)
}

func TestBoundaryFinderOneNonEmptyField(t *testing.T) {
	bf := newTestFinder("--boundary", "\r\n", "field data", "\r\n", "--boundary--")

	more, err := bf.consumeBoundary()
	require.NoError(t, err)
	assert.True(t, more)

	chunk, err := drainBodyChunk(t, bf)
	require.NoError(t, err)
	assert.Equal(t, "field data", string(chunk))

	_, err = drainBodyChunk(t, bf)
	assert.ErrorIs(t, err, io.EOF)

	more, err = bf.consumeBoundary()
	require.NoError(t, err)
	assert.False(t, more)
}

func TestBoundaryFinderTwoEmptyFields(t *testing.T) {
	bf := newTestFinder("--boundary", "\r\n", "\r\n--boundary\r\n", "\r\n", "--boundary--")

	more, err := bf.consumeBoundary()
	require.NoError(t, err)
	assert.True(t, more)

	_, err = drainBodyChunk(t, bf)
	assert.ErrorIs(t, err, io.EOF)

	more, err = bf.consumeBoundary()
	require.NoError(t, err)
	assert.True(t, more)

	_, err = drainBodyChunk(t, bf)
	assert.ErrorIs(t, err, io.EOF)

	more, err = bf.consumeBoundary()
	require.NoError(t, err)
	assert.False(t, more)
}
