package http3

import (
	"bufio"
	"fmt"
	"io"
)

// FrameType is the varint-encoded type tag of an HTTP/3 frame (RFC 9114
// §7.2).
type FrameType uint64

const (
	FrameTypeData         FrameType = 0x00
	FrameTypeHeaders      FrameType = 0x01
	frameTypeReserved02   FrameType = 0x02 // HTTP/2 PRIORITY, reserved in H3
	FrameTypeCancelPush   FrameType = 0x03
	FrameTypeSettings     FrameType = 0x04
	FrameTypePushPromise  FrameType = 0x05
	frameTypeReserved06   FrameType = 0x06 // HTTP/2 PING
	FrameTypeGoaway       FrameType = 0x07
	frameTypeReserved08   FrameType = 0x08 // HTTP/2 WINDOW_UPDATE
	frameTypeReserved09   FrameType = 0x09 // HTTP/2 CONTINUATION
	FrameTypeMaxPushID    FrameType = 0x0d
)

// reservedHTTP2FrameTypes are frame types that exist in HTTP/2 but are not
// valid on an HTTP/3 stream; receiving one is a connection error.
var reservedHTTP2FrameTypes = map[FrameType]bool{
	frameTypeReserved02: true,
	frameTypeReserved06: true,
	frameTypeReserved08: true,
	frameTypeReserved09: true,
}

// Frame is the header of a decoded HTTP/3 frame: its type and declared
// payload length. For every type except Data, the payload of that length
// has already been read into Payload. For Data, the payload is NOT
// included — the caller must pull PayloadLen bytes via the decoder's
// ReadData before requesting the next frame.
type Frame struct {
	Type       FrameType
	PayloadLen uint64
	Payload    []byte
}

// Decoder pulls frames from a buffered HTTP/3 stream, implementing the
// two-phase DATA protocol: ReadFrame returns a Data frame's declared length
// without consuming the payload, and the caller must drain exactly that
// many bytes via ReadData before calling ReadFrame again.
type Decoder struct {
	r         *bufio.Reader
	remaining uint64
}

// NewDecoder returns a Decoder reading frames from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// ReadStreamType reads the single leading varint that every unidirectional
// HTTP/3 stream opens with, identifying its purpose (control, push, etc.).
// It must be called, if at all, before the first call to ReadFrame, using
// the same Decoder so no bytes are lost to a second buffered reader over
// the same stream.
func (d *Decoder) ReadStreamType() (uint64, error) {
	return readVarInt(d.r)
}

// ReadFrame reads the next frame header from the stream, ignoring unknown
// frame types (consuming and discarding their payload) as mandated by RFC
// 9114 §9. It is a programming error to call ReadFrame while a prior Data
// frame still has unread payload; callers must drain it via ReadData first.
//
// io.EOF is returned when the stream ends cleanly between frames.
func (d *Decoder) ReadFrame() (*Frame, error) {
	if d.remaining != 0 {
		panic("http3: ReadFrame called with unread DATA payload remaining")
	}

	for {
		t, err := readVarInt(d.r)
		if err != nil {
			return nil, err
		}

		ft := FrameType(t)

		length, err := readVarInt(d.r)
		if err != nil {
			return nil, err
		}

		if reservedHTTP2FrameTypes[ft] {
			return nil, connErrorf(
				ErrFrameUnexpected,
				"reserved HTTP/2 frame type %#x received", uint64(ft),
			)
		}

		if ft == FrameTypeData {
			d.remaining = length
			return &Frame{Type: ft, PayloadLen: length}, nil
		}

		payload := make([]byte, length)
		if _, err := io.ReadFull(d.r, payload); err != nil {
			return nil, err
		}

		if !knownFrameType(ft) {
			// Unknown (including grease): consume and keep scanning.
			continue
		}

		return &Frame{Type: ft, PayloadLen: length, Payload: payload}, nil
	}
}

// knownFrameType reports whether t is one of the frame types this decoder
// surfaces to its caller. Every other (non-reserved) type, including
// grease, is consumed and skipped.
func knownFrameType(t FrameType) bool {
	switch t {
	case FrameTypeData, FrameTypeHeaders, FrameTypeCancelPush,
		FrameTypeSettings, FrameTypePushPromise, FrameTypeGoaway,
		FrameTypeMaxPushID:
		return true
	default:
		return false
	}
}

// ReadData reads up to len(p) bytes of a Data frame's payload, never past
// the declared length. It does not report io.EOF when that length has been
// fully consumed; use HasPendingData to tell. Calling it without a pending
// Data frame returns (0, nil).
func (d *Decoder) ReadData(p []byte) (int, error) {
	if d.remaining == 0 {
		return 0, nil
	}

	if uint64(len(p)) > d.remaining {
		p = p[:d.remaining]
	}

	n, err := d.r.Read(p)
	d.remaining -= uint64(n)

	return n, err
}

// HasPendingData reports whether a Data frame's payload has not yet been
// fully drained via ReadData.
func (d *Decoder) HasPendingData() bool {
	return d.remaining != 0
}

// EncodeHeader appends a frame's type/length header to b.
func EncodeHeader(b []byte, t FrameType, payloadLen uint64) []byte {
	b = appendVarInt(b, uint64(t))
	return appendVarInt(b, payloadLen)
}

// Encode appends a complete frame (header plus payload) to b.
func Encode(b []byte, t FrameType, payload []byte) []byte {
	b = EncodeHeader(b, t, uint64(len(payload)))
	return append(b, payload...)
}

// String renders a FrameType by name, for logging.
func (t FrameType) String() string {
	switch t {
	case FrameTypeData:
		return "DATA"
	case FrameTypeHeaders:
		return "HEADERS"
	case FrameTypeCancelPush:
		return "CANCEL_PUSH"
	case FrameTypeSettings:
		return "SETTINGS"
	case FrameTypePushPromise:
		return "PUSH_PROMISE"
	case FrameTypeGoaway:
		return "GOAWAY"
	case FrameTypeMaxPushID:
		return "MAX_PUSH_ID"
	default:
		return fmt.Sprintf("UNKNOWN(%#x)", uint64(t))
	}
}
