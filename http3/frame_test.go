package http3

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecoderReadFrameSettings(t *testing.T) {
	var b []byte
	b = Encode(b, FrameTypeSettings, []byte{byte(SettingMaxHeaderListSize), 0x40})

	dec := NewDecoder(bytes.NewReader(b))

	f, err := dec.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, FrameTypeSettings, f.Type)
	assert.Equal(t, []byte{byte(SettingMaxHeaderListSize), 0x40}, f.Payload)
}

func TestDecoderSkipsGreaseFrame(t *testing.T) {
	var b []byte
	b = Encode(b, 0x1f+0x21, []byte{1, 2, 3}) // a grease-range identifier, unknown to this decoder
	b = Encode(b, FrameTypeMaxPushID, []byte{0x05})

	dec := NewDecoder(bytes.NewReader(b))

	f, err := dec.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, FrameTypeMaxPushID, f.Type)
	assert.Equal(t, []byte{0x05}, f.Payload)
}

func TestDecoderRejectsReservedHTTP2FrameType(t *testing.T) {
	var b []byte
	b = EncodeHeader(b, frameTypeReserved02, 0)

	dec := NewDecoder(bytes.NewReader(b))

	_, err := dec.ReadFrame()
	require.Error(t, err)

	ce, ok := err.(*ConnError)
	require.True(t, ok)
	assert.Equal(t, ErrFrameUnexpected, ce.Code)
}

func TestDecoderDataFrameTwoPhaseProtocol(t *testing.T) {
	var b []byte
	b = EncodeHeader(b, FrameTypeData, 5)
	b = append(b, "hello"...)
	b = Encode(b, FrameTypeGoaway, []byte{0x04})

	dec := NewDecoder(bytes.NewReader(b))

	f, err := dec.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, FrameTypeData, f.Type)
	assert.Equal(t, uint64(5), f.PayloadLen)
	assert.True(t, dec.HasPendingData())

	assert.Panics(t, func() { dec.ReadFrame() })

	buf := make([]byte, 5)
	n, err := dec.ReadData(buf)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(buf))
	assert.False(t, dec.HasPendingData())

	f, err = dec.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, FrameTypeGoaway, f.Type)
}

func TestDecoderReadFrameEOF(t *testing.T) {
	dec := NewDecoder(bytes.NewReader(nil))

	_, err := dec.ReadFrame()
	assert.Equal(t, io.EOF, err)
}

func TestFrameTypeString(t *testing.T) {
	assert.Equal(t, "SETTINGS", FrameTypeSettings.String())
	assert.Contains(t, FrameType(0x21).String(), "UNKNOWN")
}
