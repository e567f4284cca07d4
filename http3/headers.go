package http3

import (
	"bytes"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/quic-go/qpack"
)

// decodeHeaders QPACK-decodes a HEADERS frame payload into an *http.Request
// skeleton (method, URL, and header map) plus the advertised content
// length, following the RFC 9114 §4.3 pseudo-header requirements. Dynamic
// table indexing is not used on either side of this port, so decoding never
// blocks on table updates.
func decodeHeaders(payload []byte) (*http.Request, error) {
	var (
		method, scheme, authority, path string
		header                          = http.Header{}
		contentLength                   int64 = -1
	)

	var fields []qpack.HeaderField

	decoder := qpack.NewDecoder(func(f qpack.HeaderField) {
		fields = append(fields, f)
	})

	if _, err := decoder.Write(payload); err != nil {
		return nil, connErrorf(ErrFrameError, "qpack decode failed: %v", err)
	}

	for _, f := range fields {
		switch f.Name {
		case ":method":
			method = f.Value
		case ":scheme":
			scheme = f.Value
		case ":authority":
			authority = f.Value
		case ":path":
			path = f.Value
		default:
			if strings.HasPrefix(f.Name, ":") {
				continue
			}

			if strings.EqualFold(f.Name, "content-length") {
				if n, err := strconv.ParseInt(f.Value, 10, 64); err == nil {
					contentLength = n
				}
			}

			header.Add(http.CanonicalHeaderKey(f.Name), f.Value)
		}
	}

	if method == "" || path == "" {
		return nil, connErrorf(ErrGeneralProtocolError, "request missing required pseudo-headers")
	}

	u, err := url.ParseRequestURI(path)
	if err != nil {
		return nil, connErrorf(ErrGeneralProtocolError, "invalid :path %q: %v", path, err)
	}

	if scheme == "" {
		scheme = "https"
	}

	req := &http.Request{
		Method:        method,
		URL:           u,
		Proto:         "HTTP/3.0",
		ProtoMajor:    3,
		ProtoMinor:    0,
		Header:        header,
		Host:          authority,
		RequestURI:    path,
		ContentLength: contentLength,
	}

	return req, nil
}

// encodeHeaders QPACK-encodes an HTTP response's pseudo- and regular
// headers into a HEADERS frame payload.
func encodeHeaders(status int, header http.Header) ([]byte, error) {
	var buf bytes.Buffer

	enc := qpack.NewEncoder(&buf)
	if err := enc.WriteField(qpack.HeaderField{Name: ":status", Value: strconv.Itoa(status)}); err != nil {
		return nil, err
	}

	for name, values := range header {
		for _, v := range values {
			if err := enc.WriteField(qpack.HeaderField{
				Name:  strings.ToLower(name),
				Value: v,
			}); err != nil {
				return nil, err
			}
		}
	}

	if err := enc.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
