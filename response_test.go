package weft

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseReset(t *testing.T) {
	a := New()
	req := newRequest(a)
	req.reset(a, httptest.NewRequest(
		http.MethodGet,
		"https://example.com/foo/bar?foo=bar#foobar",
		bytes.NewBufferString("foobar"),
	))

	rec := httptest.NewRecorder()

	res := &Response{}
	res.reset(a, rec, req)

	assert.Equal(t, a, res.Weft)
	assert.Equal(t, rec, res.HTTPResponseWriter().(*responseWriter).hrw)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, int64(-1), res.ContentLength)
	assert.False(t, res.Written)
	assert.False(t, res.stamped())
}

func TestResponseWriteString(t *testing.T) {
	a := New()
	req := newRequest(a)
	req.reset(a, httptest.NewRequest(http.MethodGet, "/", nil))

	rec := httptest.NewRecorder()
	res := &Response{}
	res.reset(a, rec, req)

	require.NoError(t, res.WriteString("hello"))
	assert.True(t, res.Written)
	assert.Equal(t, "hello", rec.Body.String())
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestResponseWriteJSON(t *testing.T) {
	a := New()
	req := newRequest(a)
	req.reset(a, httptest.NewRequest(http.MethodGet, "/", nil))

	rec := httptest.NewRecorder()
	res := &Response{}
	res.reset(a, rec, req)

	require.NoError(t, res.WriteJSON(map[string]string{"foo": "bar"}))
	assert.True(t, res.Written)
	assert.JSONEq(t, `{"foo":"bar"}`, rec.Body.String())
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
}

func TestResponseStampedOnError(t *testing.T) {
	a := New()
	req := newRequest(a)
	req.reset(a, httptest.NewRequest(http.MethodGet, "/", nil))

	rec := httptest.NewRecorder()
	res := &Response{}
	res.reset(a, rec, req)

	res.Status = http.StatusNotFound
	assert.True(t, res.stamped())
}

func TestResponseRedirect(t *testing.T) {
	a := New()
	req := newRequest(a)
	req.reset(a, httptest.NewRequest(http.MethodGet, "/", nil))

	rec := httptest.NewRecorder()
	res := &Response{}
	res.reset(a, rec, req)

	require.NoError(t, res.Redirect("/elsewhere"))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/elsewhere", rec.Header().Get("Location"))
}
