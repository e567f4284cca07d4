package weft

import (
	"io"
	"log"
	"net/http"
	"runtime"
	"time"
)

type route struct {
	method string
	path   string
}

var nullLogger *log.Logger

type mockResponseWriter struct{}

func (m *mockResponseWriter) Header() http.Header {
	return http.Header{}
}

func (m *mockResponseWriter) Write(p []byte) (int, error) {
	return len(p), nil
}

func (m *mockResponseWriter) WriteString(s string) (int, error) {
	return len(s), nil
}

func (m *mockResponseWriter) WriteHeader(int) {}

func httpHandlerFunc(w http.ResponseWriter, r *http.Request) {}

func httpHandlerFuncTest(w http.ResponseWriter, r *http.Request) {
	io.WriteString(w, r.RequestURI)
}

func weftHandler(req *Request, depot *Depot, res *Response, ctrl *FlowCtrl) {
	var msg struct {
		Name string `json:"user"`
	}
	msg.Name = "Hello"
	res.WriteJSON(msg)
}

func weftHandlerTest(req *Request, depot *Depot, res *Response, ctrl *FlowCtrl) {
	res.WriteString(req.Path)
}

func timingHoop(req *Request, depot *Depot, res *Response, ctrl *FlowCtrl) {
	start := time.Now()
	ctrl.Next(req, depot, res)

	if nullLogger != nil {
		nullLogger.Println(time.Since(start))
	}
}

func init() {
	runtime.GOMAXPROCS(1)

	// Keeps logging out of benchmark timings.
	log.SetOutput(new(mockResponseWriter))
	nullLogger = log.New(new(mockResponseWriter), "", 0)
}

func loadWeftSingle(method, path string, h HandlerFunc) *Weft {
	a := New()

	switch method {
	case http.MethodGet:
		a.GET(path, h, HandlerFunc(timingHoop))
	case http.MethodPost:
		a.POST(path, h, HandlerFunc(timingHoop))
	case http.MethodPut:
		a.PUT(path, h, HandlerFunc(timingHoop))
	case http.MethodPatch:
		a.PATCH(path, h, HandlerFunc(timingHoop))
	case http.MethodDelete:
		a.DELETE(path, h, HandlerFunc(timingHoop))
	default:
		panic("weft: unknown HTTP method: " + method)
	}

	return a
}
