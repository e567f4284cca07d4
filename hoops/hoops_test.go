package hoops_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weftkit/weft"
	"github.com/weftkit/weft/hoops"
)

func serveHTTP(a *weft.Weft, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestLoggerWritesALine(t *testing.T) {
	var buf bytes.Buffer

	a := weft.New()
	a.GlobalHoops = []weft.Handler{hoops.LoggerWithConfig(hoops.LoggerConfig{Output: &buf})}
	a.GET("/ping", weft.HandlerFunc(func(req *weft.Request, depot *weft.Depot, res *weft.Response, ctrl *weft.FlowCtrl) {
		res.WriteString("pong")
	}))

	rec := serveHTTP(a, http.MethodGet, "/ping")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, buf.String(), `"method":"GET"`)
	assert.Contains(t, buf.String(), `"path":"/ping"`)
	assert.Contains(t, buf.String(), `"status":200`)
}

func TestLoggerSkipper(t *testing.T) {
	var buf bytes.Buffer

	a := weft.New()
	a.GlobalHoops = []weft.Handler{hoops.LoggerWithConfig(hoops.LoggerConfig{
		Output:  &buf,
		Skipper: func(req *weft.Request, depot *weft.Depot, res *weft.Response) bool { return true },
	})}
	a.GET("/ping", weft.HandlerFunc(func(req *weft.Request, depot *weft.Depot, res *weft.Response, ctrl *weft.FlowCtrl) {
		res.WriteString("pong")
	}))

	serveHTTP(a, http.MethodGet, "/ping")

	assert.Empty(t, buf.String())
}

func TestRecoverTurnsPanicInto500(t *testing.T) {
	a := weft.New()
	a.GlobalHoops = []weft.Handler{hoops.Recover()}
	a.GET("/boom", weft.HandlerFunc(func(req *weft.Request, depot *weft.Depot, res *weft.Response, ctrl *weft.FlowCtrl) {
		panic("kaboom")
	}))

	rec := serveHTTP(a, http.MethodGet, "/boom")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
