package http3

import (
	"bufio"
	"bytes"
	"io"
)

// controlStreamPreface is the varint a unidirectional stream must begin
// with to identify itself as the connection's control stream (RFC 9114
// §6.2.1).
const controlStreamPreface = 0x00

// ControlStream is the per-peer state machine policing the single
// unidirectional control stream: it must open with SETTINGS, may not carry
// request/response frames, and must not close before the connection does.
type ControlStream struct {
	dec      *Decoder
	settings *Settings
	sawFirst bool

	// OnSettings, if set, is invoked once the initial SETTINGS frame has
	// been parsed and validated.
	OnSettings func(*Settings)

	// OnGoaway, if set, is invoked for every GOAWAY frame received.
	OnGoaway func(streamID uint64)

	// OnCancelPush and OnMaxPushID mirror OnGoaway for their frame types.
	OnCancelPush func(pushID uint64)
	OnMaxPushID  func(pushID uint64)
}

// NewControlStream returns a ControlStream reading frames from r.
func NewControlStream(r io.Reader) *ControlStream {
	return &ControlStream{dec: NewDecoder(r)}
}

// Settings returns the stream's negotiated Settings, valid only after the
// first call to Run has processed the initial SETTINGS frame.
func (cs *ControlStream) Settings() *Settings {
	return cs.settings
}

// Run processes frames from the control stream until it closes or a
// connection error occurs. A clean io.EOF, whether before or after any
// frame has been read, is reported as H3_CLOSED_CRITICAL_STREAM — a control
// stream must never close while the connection is alive.
func (cs *ControlStream) Run() error {
	for {
		f, err := cs.dec.ReadFrame()
		if err == io.EOF {
			return &ConnError{
				Code:   ErrClosedCriticalStream,
				Reason: "control stream closed",
			}
		} else if err != nil {
			if _, ok := err.(*ConnError); ok {
				return err
			}

			return connErrorf(ErrFrameError, "control stream read error: %v", err)
		}

		if err := cs.handle(f); err != nil {
			return err
		}
	}
}

func (cs *ControlStream) handle(f *Frame) error {
	if !cs.sawFirst {
		cs.sawFirst = true

		if f.Type != FrameTypeSettings {
			return connErrorf(
				ErrMissingSettings,
				"first control stream frame was %s, not SETTINGS", f.Type,
			)
		}

		settings, err := ParseSettings(f.Payload)
		if err != nil {
			return err
		}

		cs.settings = settings

		if cs.OnSettings != nil {
			cs.OnSettings(settings)
		}

		return nil
	}

	switch f.Type {
	case FrameTypeSettings:
		return connErrorf(ErrFrameUnexpected, "duplicate SETTINGS frame")
	case FrameTypeData, FrameTypeHeaders, FrameTypePushPromise:
		return connErrorf(
			ErrFrameUnexpected,
			"%s frame is not permitted on the control stream", f.Type,
		)
	case FrameTypeGoaway:
		id, err := decodeVarIntPayload(f.Payload)
		if err != nil {
			return connErrorf(ErrFrameError, "malformed GOAWAY payload")
		}

		if cs.OnGoaway != nil {
			cs.OnGoaway(id)
		}

		return nil
	case FrameTypeCancelPush:
		id, err := decodeVarIntPayload(f.Payload)
		if err != nil {
			return connErrorf(ErrFrameError, "malformed CANCEL_PUSH payload")
		}

		if cs.OnCancelPush != nil {
			cs.OnCancelPush(id)
		}

		return nil
	case FrameTypeMaxPushID:
		id, err := decodeVarIntPayload(f.Payload)
		if err != nil {
			return connErrorf(ErrFrameError, "malformed MAX_PUSH_ID payload")
		}

		if cs.OnMaxPushID != nil {
			cs.OnMaxPushID(id)
		}

		return nil
	default:
		// Any other known-but-uninterpreted type reaching here would be a
		// decoder bug; anything truly unknown was already skipped by the
		// Decoder itself.
		return nil
	}
}

// decodeVarIntPayload decodes a frame payload consisting of exactly one
// varint, as used by GOAWAY, CANCEL_PUSH, and MAX_PUSH_ID.
func decodeVarIntPayload(payload []byte) (uint64, error) {
	return readVarInt(bufio.NewReader(bytes.NewReader(payload)))
}
