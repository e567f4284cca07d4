package http3

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVarIntRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 37, 0x3f, 0x40, 0x3fff, 0x4000, 15293, 0x3fffffff, 0x40000000, 0x3fffffffffffffff}

	for _, v := range values {
		b := appendVarInt(nil, v)
		assert.Equal(t, varIntLen(v), len(b))

		got, err := readVarInt(bufio.NewReader(bytes.NewReader(b)))
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestVarIntRFC9000Examples(t *testing.T) {
	// RFC 9000 §16 worked examples.
	got, err := readVarInt(bufio.NewReader(bytes.NewReader([]byte{0xc2, 0x19, 0x7c, 0x5e, 0xff, 0x14, 0xe8, 0x8c})))
	require.NoError(t, err)
	assert.Equal(t, uint64(151288809941952652), got)

	got, err = readVarInt(bufio.NewReader(bytes.NewReader([]byte{0x9d, 0x7f, 0x3e, 0x7d})))
	require.NoError(t, err)
	assert.Equal(t, uint64(494878333), got)

	got, err = readVarInt(bufio.NewReader(bytes.NewReader([]byte{0x7b, 0xbd})))
	require.NoError(t, err)
	assert.Equal(t, uint64(15293), got)

	got, err = readVarInt(bufio.NewReader(bytes.NewReader([]byte{0x25})))
	require.NoError(t, err)
	assert.Equal(t, uint64(37), got)
}

func TestVarIntTooLargePanics(t *testing.T) {
	assert.Panics(t, func() {
		appendVarInt(nil, 1<<62)
	})
}
