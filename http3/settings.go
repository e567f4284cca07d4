package http3

import (
	"bufio"
	"bytes"
	"sync"
)

// Setting identifiers recognized by name; any other unreserved identifier
// is stored but not specially interpreted.
const (
	SettingQPACKMaxTableCapacity uint64 = 0x01
	SettingMaxHeaderListSize     uint64 = 0x06
	SettingQPACKMaxBlockedStreams uint64 = 0x07
)

// reservedSettingIDs collide with HTTP/2 SETTINGS identifiers and must
// never appear on an HTTP/3 connection.
var reservedSettingIDs = map[uint64]bool{
	0x00: true,
	0x02: true,
	0x03: true,
	0x04: true,
	0x05: true,
}

// Settings is the negotiated parameter set exchanged at the start of an
// HTTP/3 connection, one per direction. Reads and writes are synchronized
// so the control-stream reader goroutine and request-serving goroutines can
// safely observe a consistent snapshot.
type Settings struct {
	mu      sync.RWMutex
	values  map[uint64]uint64
}

// NewSettings returns an empty Settings ready to be populated by ParseSettings
// or Set.
func NewSettings() *Settings {
	return &Settings{values: map[uint64]uint64{}}
}

// Set atomically stores id=value.
func (s *Settings) Set(id, value uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[id] = value
}

// Get returns the current value for id and whether it was present.
func (s *Settings) Get(id uint64) (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[id]
	return v, ok
}

// QPACKMaxTableCapacity returns the negotiated QPACK dynamic table capacity,
// 0 if never advertised.
func (s *Settings) QPACKMaxTableCapacity() uint64 {
	v, _ := s.Get(SettingQPACKMaxTableCapacity)
	return v
}

// QPACKMaxBlockedStreams returns the negotiated QPACK blocked-stream limit.
func (s *Settings) QPACKMaxBlockedStreams() uint64 {
	v, _ := s.Get(SettingQPACKMaxBlockedStreams)
	return v
}

// MaxHeaderListSize returns the negotiated maximum header list size, 0 if
// unbounded.
func (s *Settings) MaxHeaderListSize() uint64 {
	v, _ := s.Get(SettingMaxHeaderListSize)
	return v
}

// ParseSettings decodes a SETTINGS frame payload — a flat sequence of
// (id, value) varint pairs — into s. Reserved identifiers and duplicate
// identifiers within the same frame are connection errors per RFC 9114
// §7.2.4.
func ParseSettings(payload []byte) (*Settings, error) {
	s := NewSettings()
	seen := map[uint64]bool{}

	r := bufio.NewReader(bytes.NewReader(payload))
	for {
		id, err := readVarInt(r)
		if err != nil {
			break // clean EOF between pairs
		}

		value, err := readVarInt(r)
		if err != nil {
			return nil, connErrorf(ErrFrameError, "truncated SETTINGS pair for id %#x", id)
		}

		if reservedSettingIDs[id] {
			return nil, connErrorf(ErrSettingsError, "reserved setting id %#x", id)
		}

		if seen[id] {
			return nil, connErrorf(ErrSettingsError, "duplicate setting id %#x", id)
		}

		seen[id] = true
		s.values[id] = value
	}

	return s, nil
}

// Encode appends the SETTINGS frame (header and payload) for s to b.
func (s *Settings) Encode(b []byte) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payload := make([]byte, 0, len(s.values)*4)
	for id, value := range s.values {
		payload = appendVarInt(payload, id)
		payload = appendVarInt(payload, value)
	}

	return Encode(b, FrameTypeSettings, payload)
}
