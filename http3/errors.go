package http3

import "fmt"

// ErrorCode is an HTTP/3 application error code, carried on QUIC
// CONNECTION_CLOSE and STOP_SENDING/RESET_STREAM frames.
type ErrorCode uint64

// Error codes defined by RFC 9114 §8.1.
const (
	ErrNoError               ErrorCode = 0x0100
	ErrGeneralProtocolError  ErrorCode = 0x0101
	ErrInternalError         ErrorCode = 0x0102
	ErrStreamCreationError   ErrorCode = 0x0103
	ErrClosedCriticalStream  ErrorCode = 0x0104
	ErrFrameUnexpected       ErrorCode = 0x0105
	ErrFrameError            ErrorCode = 0x0106
	ErrExcessiveLoad         ErrorCode = 0x0107
	ErrIDError               ErrorCode = 0x0108
	ErrSettingsError         ErrorCode = 0x0109
	ErrMissingSettings       ErrorCode = 0x010a
	ErrRequestRejected       ErrorCode = 0x010b
	ErrRequestCancelled      ErrorCode = 0x010c
	ErrRequestIncomplete     ErrorCode = 0x010d
	ErrConnectError          ErrorCode = 0x010f
	ErrVersionFallback       ErrorCode = 0x0110
)

var errorCodeNames = map[ErrorCode]string{
	ErrNoError:              "H3_NO_ERROR",
	ErrGeneralProtocolError: "H3_GENERAL_PROTOCOL_ERROR",
	ErrInternalError:        "H3_INTERNAL_ERROR",
	ErrStreamCreationError:  "H3_STREAM_CREATION_ERROR",
	ErrClosedCriticalStream: "H3_CLOSED_CRITICAL_STREAM",
	ErrFrameUnexpected:      "H3_FRAME_UNEXPECTED",
	ErrFrameError:           "H3_FRAME_ERROR",
	ErrExcessiveLoad:        "H3_EXCESSIVE_LOAD",
	ErrIDError:              "H3_ID_ERROR",
	ErrSettingsError:        "H3_SETTINGS_ERROR",
	ErrMissingSettings:      "H3_MISSING_SETTINGS",
	ErrRequestRejected:      "H3_REQUEST_REJECTED",
	ErrRequestCancelled:     "H3_REQUEST_CANCELLED",
	ErrRequestIncomplete:    "H3_REQUEST_INCOMPLETE",
	ErrConnectError:         "H3_CONNECT_ERROR",
	ErrVersionFallback:      "H3_VERSION_FALLBACK",
}

// String returns the code's wire name, e.g. "H3_SETTINGS_ERROR".
func (c ErrorCode) String() string {
	if n, ok := errorCodeNames[c]; ok {
		return n
	}

	return fmt.Sprintf("H3_UNKNOWN(%#x)", uint64(c))
}

// ConnError is a connection-fatal HTTP/3 error: the code to send on
// CONNECTION_CLOSE plus a human-readable reason.
type ConnError struct {
	Code   ErrorCode
	Reason string
}

func (e *ConnError) Error() string {
	if e.Reason == "" {
		return e.Code.String()
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

// connErrorf builds a ConnError with a formatted reason.
func connErrorf(code ErrorCode, format string, a ...interface{}) *ConnError {
	return &ConnError{Code: code, Reason: fmt.Sprintf(format, a...)}
}

// StreamError is a stream-fatal HTTP/3 error, carried on STOP_SENDING or
// RESET_STREAM rather than terminating the whole connection.
type StreamError struct {
	Code ErrorCode
}

func (e *StreamError) Error() string {
	return e.Code.String()
}
