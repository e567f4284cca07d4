package weft

import (
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/weftkit/weft/multipart"
)

// Request is a framework-agnostic carrier for an inbound HTTP request: a
// method, a URL, headers (preserving duplicates via http.Header's multimap
// semantics), a body, and the path parameters captured while routing it.
type Request struct {
	// Weft is where the request belongs.
	Weft *Weft

	// Method is the HTTP method, e.g. "GET".
	Method string

	// URL is the request's target URL, including any query string.
	URL *url.URL

	// Header is the request's header map.
	Header http.Header

	// Body is the message body.
	Body io.ReadCloser

	// ContentLength records the length of the Body, -1 if unknown.
	ContentLength int64

	// Host is the host the request was sent to.
	Host string

	// RemoteAddr is the network address of the client.
	RemoteAddr string

	// PathParams are the named path parameters captured by the router.
	PathParams *PathParams

	// Path is the decoded path component of the request's URL, excluding
	// the query string.
	Path string

	hr              *http.Request
	multipartRdr    *multipart.Reader
	localizedString func(string) string
}

// newRequest returns a pointer of a new instance of the Request belonging to
// a.
func newRequest(a *Weft) *Request {
	return &Request{Weft: a, PathParams: newPathParams()}
}

// reset re-initializes the r with the incoming hr so it can be reused for the
// next request.
func (r *Request) reset(a *Weft, hr *http.Request) {
	r.Weft = a
	r.Method = hr.Method
	r.URL = hr.URL
	r.Header = hr.Header
	r.Body = hr.Body
	r.ContentLength = hr.ContentLength
	r.Host = hr.Host
	r.RemoteAddr = hr.RemoteAddr
	r.PathParams.reset()
	r.Path = hr.URL.Path
	r.hr = hr
	r.multipartRdr = nil

	a.i18n.localize(r)
}

// RawPath returns the raw, still-escaped path component of the request's
// URL.
func (r *Request) RawPath() string {
	if r.hr.URL.RawPath != "" {
		return r.hr.URL.RawPath
	}

	return r.hr.URL.EscapedPath()
}

// RawQuery returns the raw, undecoded query string of the request's URL,
// without the leading "?".
func (r *Request) RawQuery() string {
	return r.hr.URL.RawQuery
}

// LocalizedString returns the i18n-localized string for the key, using the
// request's Accept-Language header, or the key itself if i18n is disabled or
// no translation was found.
func (r *Request) LocalizedString(key string) string {
	return r.localizedString(key)
}

// HTTPRequest returns the underlying `*http.Request` of the r.
//
// ATTENTION: you should never call this method unless you know what you are
// doing.
func (r *Request) HTTPRequest() *http.Request {
	return r.hr
}

// Context returns the request's context, which is canceled when the client
// connection closes, the request is canceled, or ServeHTTP returns.
func (r *Request) Context() context.Context {
	return r.hr.Context()
}

// Param returns the value of the path parameter with the name, or "" if it
// was not captured for this request.
func (r *Request) Param(name string) string {
	return r.PathParams.Value(name)
}

// QueryValue returns the first value associated with the key in the query
// string, or "" if there is none.
func (r *Request) QueryValue(key string) string {
	return r.URL.Query().Get(key)
}

// QueryValues returns the query string parsed as `url.Values`.
func (r *Request) QueryValues() url.Values {
	return r.URL.Query()
}

// FormValue returns the first value associated with the key, checking the
// URL query and, for non-GET/HEAD requests, the parsed POST/PUT/PATCH form
// body.
func (r *Request) FormValue(key string) string {
	if err := r.hr.ParseMultipartForm(r.Weft.MaxMultipartMemory); err != nil {
		r.hr.ParseForm()
	}

	return r.hr.FormValue(key)
}

// FormValues returns the combined query and form values as `url.Values`.
func (r *Request) FormValues() (url.Values, error) {
	if err := r.hr.ParseMultipartForm(r.Weft.MaxMultipartMemory); err != nil {
		if err := r.hr.ParseForm(); err != nil {
			return nil, err
		}
	}

	return r.hr.Form, nil
}

// Cookie returns the named cookie, or an error if it was not sent.
func (r *Request) Cookie(name string) (*http.Cookie, error) {
	return r.hr.Cookie(name)
}

// Cookies returns every cookie sent with the request.
func (r *Request) Cookies() []*http.Cookie {
	return r.hr.Cookies()
}

// Bind decodes the request into v using the Weft's configured Binder,
// selected by the request's Content-Type.
func (r *Request) Bind(v interface{}) error {
	return r.Weft.binder.Bind(v, r)
}

// boundary extracts the `boundary` parameter from the request's Content-Type
// header.
func (r *Request) boundary() (string, error) {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return "", multipart.ErrBoundaryNotSpecified
	}

	mt, params, err := mime.ParseMediaType(ct)
	if err != nil || !strings.HasPrefix(mt, "multipart/") {
		return "", multipart.ErrNotMultipart
	}

	boundary, ok := params["boundary"]
	if !ok || boundary == "" {
		return "", multipart.ErrBoundaryNotSpecified
	}

	return boundary, nil
}

// Multipart returns a streaming multipart.Reader over the request body. It
// fails with multipart.ErrNotMultipart if the Content-Type is present but
// is not a parsable multipart type, or multipart.ErrBoundaryNotSpecified if
// the Content-Type header is absent or carries no boundary parameter.
func (r *Request) Multipart() (*multipart.Reader, error) {
	if r.multipartRdr != nil {
		return r.multipartRdr, nil
	}

	boundary, err := r.boundary()
	if err != nil {
		return nil, err
	}

	opts := multipart.Options{
		TempDir:        r.Weft.MultipartTempDir,
		MaxHeaderBytes: 1024,
		AlwaysUseFiles: r.Weft.AlwaysUseMultipartFiles,
	}

	r.multipartRdr = multipart.NewReader(r.Body, boundary, opts)

	return r.multipartRdr, nil
}
