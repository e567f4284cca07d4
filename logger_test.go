package weft

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger(t *testing.T) {
	a := New()

	buf := &bytes.Buffer{}
	a.logger.Output = buf

	a.logger.Info("foo", "bar")
	assert.Zero(t, buf.Len())

	a.LoggerEnabled = true

	a.logger.Infoj(map[string]interface{}{"message": "foobar"})

	m := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	assert.Equal(t, "foobar", m["message"])
}

func TestWeftLogHelpers(t *testing.T) {
	a := New()
	a.LoggerEnabled = true

	buf := &bytes.Buffer{}
	a.logger.Output = buf

	a.ERROR("something broke", map[string]interface{}{"code": 42})

	m := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	assert.Equal(t, "something broke", m["message"])
	assert.EqualValues(t, 42, m["code"])
}
