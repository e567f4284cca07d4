package http3

import (
	"bytes"
	"testing"

	"github.com/quic-go/qpack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeRequestHeaders(t *testing.T, fields ...qpack.HeaderField) []byte {
	t.Helper()

	var buf bytes.Buffer
	enc := qpack.NewEncoder(&buf)

	for _, f := range fields {
		require.NoError(t, enc.WriteField(f))
	}

	require.NoError(t, enc.Close())

	return buf.Bytes()
}

func TestDecodeHeadersBuildsRequest(t *testing.T) {
	payload := encodeRequestHeaders(t,
		qpack.HeaderField{Name: ":method", Value: "GET"},
		qpack.HeaderField{Name: ":scheme", Value: "https"},
		qpack.HeaderField{Name: ":authority", Value: "example.com"},
		qpack.HeaderField{Name: ":path", Value: "/hello?x=1"},
		qpack.HeaderField{Name: "accept", Value: "text/plain"},
	)

	req, err := decodeHeaders(payload)
	require.NoError(t, err)

	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "example.com", req.Host)
	assert.Equal(t, "/hello?x=1", req.URL.RequestURI())
	assert.Equal(t, "text/plain", req.Header.Get("Accept"))
	assert.Equal(t, 3, req.ProtoMajor)
}

func TestDecodeHeadersRejectsMissingPseudoHeaders(t *testing.T) {
	payload := encodeRequestHeaders(t, qpack.HeaderField{Name: ":scheme", Value: "https"})

	_, err := decodeHeaders(payload)
	require.Error(t, err)
}

func TestEncodeHeadersRoundTrip(t *testing.T) {
	h := map[string][]string{"Content-Type": {"text/plain"}}

	payload, err := encodeHeaders(200, h)
	require.NoError(t, err)

	var fields []qpack.HeaderField
	dec := qpack.NewDecoder(func(f qpack.HeaderField) {
		fields = append(fields, f)
	})

	_, err = dec.Write(payload)
	require.NoError(t, err)

	var sawStatus, sawContentType bool
	for _, f := range fields {
		if f.Name == ":status" && f.Value == "200" {
			sawStatus = true
		}

		if f.Name == "content-type" && f.Value == "text/plain" {
			sawContentType = true
		}
	}

	assert.True(t, sawStatus)
	assert.True(t, sawContentType)
}
