package weft

import (
	"net/http"
	"os"
	"regexp"
	"runtime"
	"strings"
	"testing"
)

var benchRe *regexp.Regexp

const fiveParam = "/<a>/<b>/<c>/<d>/<e>"
const fiveRoute = "/test/test/test/test/test"

const twentyParam = "/<a>/<b>/<c>/<d>/<e>/<f>/<g>/<h>/<i>/<j>/<k>/<l>/<m>/<n>/<o>/<p>/<q>/<r>/<s>/<t>"
const twentyRoute = "/a/b/c/d/e/f/g/h/i/j/k/l/m/n/o/p/q/r/s/t"

func isTested(name string) bool {
	if benchRe == nil {
		bench := ""
		for _, arg := range os.Args {
			if strings.HasPrefix(arg, "-test.bench=") {
				bench = strings.SplitN(arg[12:], "_", 2)[0]
				break
			}
		}

		var err error
		benchRe, err = regexp.Compile(bench)
		if err != nil {
			panic(err.Error())
		}
	}

	return benchRe.MatchString(name)
}

func calcMem(name string, load func()) {
	if !isTested(name) {
		return
	}

	m := new(runtime.MemStats)

	runtime.GC()
	runtime.ReadMemStats(m)
	before := m.HeapAlloc

	load()

	runtime.GC()
	runtime.ReadMemStats(m)
	after := m.HeapAlloc
	println("   "+name+":", after-before, "Bytes")
}

func benchRequest(b *testing.B, a *Weft, r *http.Request) {
	w := new(mockResponseWriter)
	u := r.URL
	rq := u.RawQuery
	r.RequestURI = u.RequestURI()

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		u.RawQuery = rq
		a.ServeHTTP(w, r)
	}
}

func benchRoutes(b *testing.B, a http.Handler, routes []route) {
	w := new(mockResponseWriter)
	r, _ := http.NewRequest(http.MethodGet, "/", nil)
	u := r.URL
	rq := u.RawQuery

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		for _, rt := range routes {
			r.Method = rt.method
			r.RequestURI = rt.path
			u.Path = rt.path
			u.RawQuery = rq
			a.ServeHTTP(w, r)
		}
	}
}

func BenchmarkWeftParam(b *testing.B) {
	a := loadWeftSingle(http.MethodGet, "/user/<name>", weftHandler)

	r, _ := http.NewRequest(http.MethodGet, "/user/gordon", nil)
	benchRequest(b, a, r)
}

func BenchmarkWeftParam5(b *testing.B) {
	a := loadWeftSingle(http.MethodGet, fiveParam, weftHandler)

	r, _ := http.NewRequest(http.MethodGet, fiveRoute, nil)
	benchRequest(b, a, r)
}

func BenchmarkWeftParam20(b *testing.B) {
	a := loadWeftSingle(http.MethodGet, twentyParam, weftHandler)

	r, _ := http.NewRequest(http.MethodGet, twentyRoute, nil)
	benchRequest(b, a, r)
}

func BenchmarkWeftParamWrite(b *testing.B) {
	a := loadWeftSingle(http.MethodGet, "/user/<name>", weftHandlerTest)

	r, _ := http.NewRequest(http.MethodGet, "/user/gordon", nil)
	benchRequest(b, a, r)
}
