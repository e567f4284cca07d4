package http3

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControlStreamRequiresSettingsFirst(t *testing.T) {
	var b []byte
	b = Encode(b, FrameTypeGoaway, []byte{0x04})

	cs := NewControlStream(bytes.NewReader(b))

	err := cs.Run()
	require.Error(t, err)

	ce, ok := err.(*ConnError)
	require.True(t, ok)
	assert.Equal(t, ErrMissingSettings, ce.Code)
}

func TestControlStreamDispatchesCallbacks(t *testing.T) {
	var b []byte
	b = Encode(b, FrameTypeSettings, []byte{byte(SettingMaxHeaderListSize), 0x20})
	b = Encode(b, FrameTypeCancelPush, appendVarInt(nil, 9))
	b = Encode(b, FrameTypeMaxPushID, appendVarInt(nil, 12))
	b = Encode(b, FrameTypeGoaway, appendVarInt(nil, 8))

	cs := NewControlStream(bytes.NewReader(b))

	var sawSettings *Settings
	var cancelledPush, maxPushID, goawayID uint64

	cs.OnSettings = func(s *Settings) { sawSettings = s }
	cs.OnCancelPush = func(id uint64) { cancelledPush = id }
	cs.OnMaxPushID = func(id uint64) { maxPushID = id }
	cs.OnGoaway = func(id uint64) { goawayID = id }

	err := cs.Run()
	require.Equal(t, ErrClosedCriticalStream, err.(*ConnError).Code)

	require.NotNil(t, sawSettings)
	assert.Equal(t, uint64(0x20), sawSettings.MaxHeaderListSize())
	assert.Equal(t, uint64(9), cancelledPush)
	assert.Equal(t, uint64(12), maxPushID)
	assert.Equal(t, uint64(8), goawayID)
}

func TestControlStreamRejectsForbiddenFrameTypes(t *testing.T) {
	for _, ft := range []FrameType{FrameTypeData, FrameTypeHeaders, FrameTypePushPromise} {
		var b []byte
		b = Encode(b, FrameTypeSettings, nil)
		b = Encode(b, ft, []byte{1})

		cs := NewControlStream(bytes.NewReader(b))
		err := cs.Run()
		require.Error(t, err)

		ce, ok := err.(*ConnError)
		require.True(t, ok)
		assert.Equal(t, ErrFrameUnexpected, ce.Code)
	}
}

func TestControlStreamRejectsDuplicateSettings(t *testing.T) {
	var b []byte
	b = Encode(b, FrameTypeSettings, nil)
	b = Encode(b, FrameTypeSettings, nil)

	cs := NewControlStream(bytes.NewReader(b))
	err := cs.Run()
	require.Error(t, err)

	ce, ok := err.(*ConnError)
	require.True(t, ok)
	assert.Equal(t, ErrFrameUnexpected, ce.Code)
}

func TestControlStreamClosedBeforeAnyFrameIsFatal(t *testing.T) {
	cs := NewControlStream(bytes.NewReader(nil))

	err := cs.Run()
	require.Error(t, err)

	ce, ok := err.(*ConnError)
	require.True(t, ok)
	assert.Equal(t, ErrClosedCriticalStream, ce.Code)
}
