/*
Package weft implements an asynchronous-style web framework for Go, built
around a path filter tree router, a cooperative handler pipeline
(`FlowCtrl`), and a streaming multipart parser.

Router

A router is basically the most important component of a web framework. In
this framework, registering a route requires a path pattern and a terminal
`Handler` (the "goal"):

	weft.Default.GET(
		"/users/<UserID>/posts/<PostID>/assets/<**rest>",
		weft.HandlerFunc(func(req *weft.Request, depot *weft.Depot, res *weft.Response, ctrl *weft.FlowCtrl) {
			res.WriteJSON(map[string]interface{}{
				"user_id":    req.Param("UserID"),
				"post_id":    req.Param("PostID"),
				"asset_path": req.Param("rest"),
			})
		}),
	)

The path pattern may mix literal components, `<name>`/`<name:/regex/>`
captures, and a single trailing `<*name>`/`<**name>` wildcard capture.
Captured values are read back via `Request.Param`.
*/
package weft

import (
	"compress/gzip"
	"context"
	"crypto"
	"crypto/tls"
	"crypto/x509/pkix"
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/mapstructure"
	"golang.org/x/crypto/acme"
	"golang.org/x/crypto/acme/autocert"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"gopkg.in/yaml.v3"
)

// Weft is the top-level struct of this framework.
//
// It is highly recommended not to modify the value of any field of the
// `Weft` after calling the `Weft.Serve`, which will cause unpredictable
// problems.
//
// The new instances of the `Weft` should only be created by calling `New`.
// If you only need one instance of the `Weft`, it is recommended to use the
// `Default`, which will help you simplify the scope management.
type Weft struct {
	// AppName is the name of the web application.
	//
	// Default value: "weft"
	AppName string `mapstructure:"app_name"`

	// MaintainerEmail is the e-mail address of the one who is responsible
	// for maintaining the web application.
	//
	// Default value: ""
	MaintainerEmail string `mapstructure:"maintainer_email"`

	// DebugMode indicates whether the web application is in debug mode.
	//
	// Default value: false
	DebugMode bool `mapstructure:"debug_mode"`

	// Address is the TCP address that the server listens on.
	//
	// Default value: "localhost:8080"
	Address string `mapstructure:"address"`

	// ReadTimeout is the maximum duration allowed for the server to read a
	// request entirely, including the body part.
	//
	// Default value: 0
	ReadTimeout time.Duration `mapstructure:"read_timeout"`

	// ReadHeaderTimeout is the maximum duration allowed for the server to
	// read the headers of a request.
	//
	// Default value: 0
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`

	// WriteTimeout is the maximum duration allowed for the server to write
	// a response.
	//
	// Default value: 0
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// IdleTimeout is the maximum duration allowed for the server to wait
	// for the next request.
	//
	// Default value: 0
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`

	// MaxHeaderBytes is the maximum number of bytes allowed for the server
	// to read parsing the request headers' names and values, including
	// HTTP/1.x request-line.
	//
	// Default value: 1048576
	MaxHeaderBytes int `mapstructure:"max_header_bytes"`

	// MaxMultipartMemory is the maximum number of bytes of a
	// multipart/form-data request body the standard library's form parser
	// will hold in memory; bytes beyond it spill to a temporary file. It
	// is independent of the streaming `Request.Multipart` reader, which
	// always respects `AlwaysUseMultipartFiles` instead.
	//
	// Default value: 33554432
	MaxMultipartMemory int64 `mapstructure:"max_multipart_memory"`

	// MultipartTempDir is the directory a streaming multipart reader
	// creates file-backed parts in. "" uses the OS default.
	//
	// Default value: ""
	MultipartTempDir string `mapstructure:"multipart_temp_dir"`

	// AlwaysUseMultipartFiles, if true, spills every part of a streaming
	// multipart read to a temporary file regardless of its
	// Content-Disposition.
	//
	// Default value: false
	AlwaysUseMultipartFiles bool `mapstructure:"always_use_multipart_files"`

	// AllowedMediaTypes, if non-empty, restricts which request
	// Content-Types the router will accept; anything else is answered
	// with 415 Unsupported Media Type before routing. A request with no
	// body always passes.
	//
	// Default value: nil
	AllowedMediaTypes []string `mapstructure:"allowed_media_types"`

	// TLSConfig is the TLS configuration to make the server to handle
	// requests on incoming TLS connections.
	//
	// Default value: nil
	TLSConfig *tls.Config `mapstructure:"-"`

	// TLSCertFile is the path to the TLS certificate file.
	//
	// The `TLSCertFile` must be set together wth the `TLSKeyFile`.
	//
	// Default value: ""
	TLSCertFile string `mapstructure:"tls_cert_file"`

	// TLSKeyFile is the path to the TLS key file.
	//
	// Default value: ""
	TLSKeyFile string `mapstructure:"tls_key_file"`

	// ACMEEnabled indicates whether the ACME feature is enabled.
	//
	// Default value: false
	ACMEEnabled bool `mapstructure:"acme_enabled"`

	// ACMEDirectoryURL is the ACME CA directory URL of the ACME feature.
	//
	// Default value: "https://acme-v02.api.letsencrypt.org/directory"
	ACMEDirectoryURL string `mapstructure:"acme_directory_url"`

	// ACMETOSURLWhitelist is the list of ACME CA's Terms of Service (TOS)
	// URL allowed by the ACME feature.
	//
	// Default value: nil
	ACMETOSURLWhitelist []string `mapstructure:"acme_tos_url_whitelist"`

	// ACMEAccountKey is the account key of the ACME feature used to
	// register with an ACME CA and sign requests.
	//
	// Default value: nil
	ACMEAccountKey crypto.Signer `mapstructure:"-"`

	// ACMECertRoot is the root of the certificates of the ACME feature.
	//
	// Default value: "acme-certs"
	ACMECertRoot string `mapstructure:"acme_cert_root"`

	// ACMEDefaultHost is the default host of the ACME feature.
	//
	// Default value: ""
	ACMEDefaultHost string `mapstructure:"acme_default_host"`

	// ACMEHostWhitelist is the list of hosts allowed by the ACME feature.
	//
	// Default value: nil
	ACMEHostWhitelist []string `mapstructure:"acme_host_whitelist"`

	// ACMERenewalWindow is the renewal window of the ACME feature before a
	// certificate expires.
	//
	// Default value: 2592000000000000
	ACMERenewalWindow time.Duration `mapstructure:"acme_renewal_window"`

	// ACMEExtraExts is the list of extra extensions used when generating a
	// new CSR (Certificate Request), thus allowing customization of the
	// resulting certificate.
	//
	// Default value: nil
	ACMEExtraExts []pkix.Extension `mapstructure:"-"`

	// HTTPSEnforced indicates whether the server is forcibly accessible
	// only via the HTTPS scheme (HTTP requests will be automatically
	// redirected to HTTPS).
	//
	// Default value: false
	HTTPSEnforced bool `mapstructure:"https_enforced"`

	// HTTPSEnforcedPort is the port of the TCP address (share the same
	// host as the `Address`) that the server listens on. All requests to
	// this port will be automatically redirected to HTTPS.
	//
	// Default value: "0"
	HTTPSEnforcedPort string `mapstructure:"https_enforced_port"`

	// WebSocketHandshakeTimeout is the maximum duration allowed for the
	// server to wait for a WebSocket handshake to complete.
	//
	// Default value: 0
	WebSocketHandshakeTimeout time.Duration `mapstructure:"websocket_handshake_timeout"`

	// WebSocketSubprotocols is the list of supported WebSocket subprotocols
	// of the server.
	//
	// Default value: nil
	WebSocketSubprotocols []string `mapstructure:"websocket_subprotocols"`

	// PROXYEnabled indicates whether the PROXY feature is enabled.
	//
	// Default value: false
	PROXYEnabled bool `mapstructure:"proxy_enabled"`

	// PROXYReadHeaderTimeout is the maximum duration allowed for the server
	// to read the PROXY protocol header of a connection.
	//
	// Default value: 0
	PROXYReadHeaderTimeout time.Duration `mapstructure:"proxy_read_header_timeout"`

	// PROXYRelayerIPWhitelist is the list of IP addresses or CIDR notation
	// IP address ranges of the relayers allowed by the PROXY feature.
	//
	// Default value: nil
	PROXYRelayerIPWhitelist []string `mapstructure:"proxy_relayer_ip_whitelist"`

	// GlobalHoops run on every request, before any routed hoop, regardless
	// of whether a route matches.
	//
	// Default value: nil
	GlobalHoops []Handler `mapstructure:"-"`

	// NotFoundHandler answers a request whose path matched no route.
	//
	// Default value: a Handler that sets the status to 404
	NotFoundHandler Handler `mapstructure:"-"`

	// MethodNotAllowedHandler answers a request whose path structurally
	// matched a route but not by method.
	//
	// Default value: a Handler that sets the status to 405
	MethodNotAllowedHandler Handler `mapstructure:"-"`

	// Catcher renders a body for a response that ended in an error status
	// with nothing written yet.
	//
	// Default value: a themed HTML error page naming the status
	Catcher Catcher `mapstructure:"-"`

	// ErrorLogger is the `log.Logger` that logs errors that occur in the
	// web application.
	//
	// If the `ErrorLogger` is nil, logging is done via the log package's
	// standard logger.
	//
	// Default value: nil
	ErrorLogger *log.Logger `mapstructure:"-"`

	// LoggerEnabled indicates whether the structured `Logger` (used by
	// `Weft.DEBUG`/`INFO`/`WARN`/`ERROR`/`FATAL`) is enabled.
	//
	// Default value: false
	LoggerEnabled bool `mapstructure:"logger_enabled"`

	// LoggerFormat is the `text/template` format of the structured
	// `Logger`.
	//
	// Default value: `{"app_name":"{{.app_name}}","time_rfc3339":"{{.time_rfc3339}}","level":"{{.level}}","short_file":"{{.short_file}}","long_file":"{{.long_file}}","line":"{{.line}}"}`
	LoggerFormat string `mapstructure:"logger_format"`

	// RendererTemplateRoot is the root of the HTML templates of the
	// renderer feature.
	//
	// Default value: "templates"
	RendererTemplateRoot string `mapstructure:"renderer_template_root"`

	// RendererTemplateExts is the list of filename extensions of the HTML
	// templates of the renderer feature used to distinguish the HTML
	// template files in the `RendererTemplateRoot`.
	//
	// Default value: [".html"]
	RendererTemplateExts []string `mapstructure:"renderer_template_exts"`

	// RendererTemplateLeftDelim is the left side of the HTML template
	// delimiter of the renderer feature.
	//
	// default value: "{{"
	RendererTemplateLeftDelim string `mapstructure:"renderer_template_left_delim"`

	// RendererTemplateRightDelim is the right side of the HTML template
	// delimiter of the renderer feature.
	//
	// Default value: "}}"
	RendererTemplateRightDelim string `mapstructure:"renderer_template_right_delim"`

	// RendererTemplateFuncMap is the HTML template function map of the
	// renderer feature.
	//
	// Default value: nil
	RendererTemplateFuncMap template.FuncMap `mapstructure:"-"`

	// MinifierEnabled indicates whether the minifier feature is enabled.
	//
	// Default value: false
	MinifierEnabled bool `mapstructure:"minifier_enabled"`

	// MinifierMIMETypes is the list of MIME types of the minifier feature
	// that will trigger the minimization.
	//
	// Default value: ["text/html", "text/css", "application/javascript",
	// "application/json", "application/xml", "image/svg+xml"]
	MinifierMIMETypes []string `mapstructure:"minifier_mime_types"`

	// GzipEnabled indicates whether the gzip feature is enabled.
	//
	// Default value: false
	GzipEnabled bool `mapstructure:"gzip_enabled"`

	// GzipMIMETypes is the list of MIME types of the gzip feature that will
	// trigger the gzip.
	//
	// Default value: ["text/plain", "text/html", "text/css",
	// "application/javascript", "application/json", "application/xml",
	// "application/toml", "application/yaml", "image/svg+xml"]
	GzipMIMETypes []string `mapstructure:"gzip_mime_types"`

	// GzipCompressionLevel is the compression level of the gzip feature.
	//
	// Default value: `gzip.DefaultCompression`
	GzipCompressionLevel int `mapstructure:"gzip_compression_level"`

	// GzipMinContentLength is the minimum content length of the gzip
	// feature used to limit at least how big (determined only from the
	// Content-Length header) response body can be gzipped.
	//
	// Default value: 1024
	GzipMinContentLength int64 `mapstructure:"gzip_min_content_length"`

	// CofferEnabled indicates whether the coffer feature is enabled.
	//
	// Default value: false
	CofferEnabled bool `mapstructure:"coffer_enabled"`

	// CofferMaxMemoryBytes is the maximum number of bytes of the runtime
	// memory allowed for the coffer feature to use.
	//
	// Default value: 33554432
	CofferMaxMemoryBytes int `mapstructure:"coffer_max_memory_bytes"`

	// CofferAssetRoot is the root of the assets of the coffer feature.
	//
	// Default value: "assets"
	CofferAssetRoot string `mapstructure:"coffer_asset_root"`

	// CofferAssetExts is the list of filename extensions of the assets of
	// the coffer feature used to distinguish the asset files in the
	// `CofferAssetRoot`.
	//
	// Default value: [".html", ".css", ".js", ".json", ".xml", ".toml",
	// ".yaml", ".yml", ".svg", ".jpg", ".jpeg", ".png", ".gif"]
	CofferAssetExts []string `mapstructure:"coffer_asset_exts"`

	// I18nEnabled indicates whether the i18n feature is enabled.
	//
	// Default value: false
	I18nEnabled bool `mapstructure:"i18n_enabled"`

	// I18nLocaleRoot is the root of the locales of the i18n feature.
	//
	// Default value: "locales"
	I18nLocaleRoot string `mapstructure:"i18n_locale_root"`

	// I18nLocaleBase is the base of the locales of the i18n feature used
	// when a locale cannot be found.
	//
	// Default value: "en-US"
	I18nLocaleBase string `mapstructure:"i18n_locale_base"`

	// ConfigFile is the path to the configuration file that will be parsed
	// into the matching fields before starting the server.
	//
	// The ".json" extension means the configuration file is JSON-based.
	//
	// The ".toml" extension means the configuration file is TOML-based.
	//
	// The ".yaml" and ".yml" extensions means the configuration file is
	// YAML-based.
	//
	// Default value: ""
	ConfigFile string `mapstructure:"-"`

	server   *http.Server
	router   *Router
	service  *Service
	binder   *binder
	renderer *renderer
	minifier *minifier
	coffer   *coffer
	i18n     *i18n
	logger   *Logger

	addressMap                   map[string]int
	shutdownJobs                 []func()
	shutdownJobMutex             *sync.Mutex
	shutdownJobDone              chan struct{}
	requestPool                  *sync.Pool
	responsePool                 *sync.Pool
	depotPool                    *sync.Pool
	contentTypeSnifferBufferPool *sync.Pool
	gzipWriterPool               *sync.Pool
	reverseProxyTransport        *reverseProxyTransport
	reverseProxyBufferPool       *reverseProxyBufferPool
}

// Default is the default instance of the `Weft`.
//
// If you only need one instance of the `Weft`, you should use the
// `Default`. Unless you think you can efficiently pass your instance in
// different scopes.
var Default = New()

// New returns a new instance of the `Weft` with default field values.
//
// The `New` is the only function that creates new instances of the `Weft`
// and keeps everything working.
func New() *Weft {
	a := &Weft{
		AppName:            "weft",
		Address:            "localhost:8080",
		MaxHeaderBytes:     1 << 20,
		MaxMultipartMemory: 32 << 20,
		ACMEDirectoryURL:   "https://acme-v02.api.letsencrypt.org/directory",
		ACMECertRoot:       "acme-certs",
		ACMERenewalWindow:  30 * 24 * time.Hour,
		HTTPSEnforcedPort:  "0",
		MinifierMIMETypes: []string{
			"text/html",
			"text/css",
			"application/javascript",
			"application/json",
			"application/xml",
			"image/svg+xml",
		},
		GzipMIMETypes: []string{
			"text/plain",
			"text/html",
			"text/css",
			"application/javascript",
			"application/json",
			"application/xml",
			"application/toml",
			"application/yaml",
			"image/svg+xml",
		},
		GzipCompressionLevel:       gzip.DefaultCompression,
		GzipMinContentLength:       1 << 10,
		RendererTemplateRoot:       "templates",
		RendererTemplateExts:       []string{".html"},
		RendererTemplateLeftDelim:  "{{",
		RendererTemplateRightDelim: "}}",
		CofferMaxMemoryBytes:       32 << 20,
		CofferAssetRoot:            "assets",
		CofferAssetExts: []string{
			".html",
			".css",
			".js",
			".json",
			".xml",
			".toml",
			".yaml",
			".yml",
			".svg",
			".jpg",
			".jpeg",
			".png",
			".gif",
		},
		I18nLocaleRoot: "locales",
		I18nLocaleBase: "en-US",
		LoggerFormat: `{"app_name":"{{.app_name}}","time_rfc3339":"{{.time_rfc3339}}",` +
			`"level":"{{.level}}","short_file":"{{.short_file}}",` +
			`"long_file":"{{.long_file}}","line":"{{.line}}"}`,
		NotFoundHandler:         HandlerFunc(defaultNotFoundHandler),
		MethodNotAllowedHandler: HandlerFunc(defaultMethodNotAllowedHandler),
		Catcher:                 defaultCatcher{},
	}

	a.server = &http.Server{}
	a.router = NewRouter()
	a.service = NewService(a.router)
	a.binder = newBinder(a)
	a.renderer = newRenderer(a)
	a.minifier = newMinifier(a)
	a.coffer = newCoffer(a)
	a.i18n = newI18n(a)
	a.logger = newLogger(a)

	a.addressMap = map[string]int{}
	a.shutdownJobMutex = &sync.Mutex{}
	a.shutdownJobDone = make(chan struct{})
	a.requestPool = &sync.Pool{
		New: func() interface{} {
			return newRequest(a)
		},
	}

	a.responsePool = &sync.Pool{
		New: func() interface{} {
			return &Response{}
		},
	}

	a.depotPool = &sync.Pool{
		New: func() interface{} {
			return newDepot()
		},
	}

	a.contentTypeSnifferBufferPool = &sync.Pool{
		New: func() interface{} {
			return make([]byte, 512)
		},
	}

	a.gzipWriterPool = &sync.Pool{
		New: func() interface{} {
			w, _ := gzip.NewWriterLevel(nil, a.GzipCompressionLevel)
			return w
		},
	}

	a.reverseProxyTransport = newReverseProxyTransport()
	a.reverseProxyBufferPool = newReverseProxyBufferPool()

	return a
}

// GET registers goal as the terminal handler for GET requests matching
// pattern in the router of the a, wrapped by the optional route-level
// hoops, which run in the order given before the goal.
func (a *Weft) GET(pattern string, goal Handler, hoops ...Handler) {
	a.router.GET(pattern, goal, hoops...)
}

// HEAD registers goal as the terminal handler for HEAD requests matching
// pattern in the router of the a, wrapped by the optional route-level
// hoops.
func (a *Weft) HEAD(pattern string, goal Handler, hoops ...Handler) {
	a.router.HEAD(pattern, goal, hoops...)
}

// POST registers goal as the terminal handler for POST requests matching
// pattern in the router of the a, wrapped by the optional route-level
// hoops.
func (a *Weft) POST(pattern string, goal Handler, hoops ...Handler) {
	a.router.POST(pattern, goal, hoops...)
}

// PUT registers goal as the terminal handler for PUT requests matching
// pattern in the router of the a, wrapped by the optional route-level
// hoops.
func (a *Weft) PUT(pattern string, goal Handler, hoops ...Handler) {
	a.router.PUT(pattern, goal, hoops...)
}

// PATCH registers goal as the terminal handler for PATCH requests matching
// pattern in the router of the a, wrapped by the optional route-level
// hoops.
func (a *Weft) PATCH(pattern string, goal Handler, hoops ...Handler) {
	a.router.PATCH(pattern, goal, hoops...)
}

// DELETE registers goal as the terminal handler for DELETE requests
// matching pattern in the router of the a, wrapped by the optional
// route-level hoops.
func (a *Weft) DELETE(pattern string, goal Handler, hoops ...Handler) {
	a.router.DELETE(pattern, goal, hoops...)
}

// OPTIONS registers goal as the terminal handler for OPTIONS requests
// matching pattern in the router of the a, wrapped by the optional
// route-level hoops.
func (a *Weft) OPTIONS(pattern string, goal Handler, hoops ...Handler) {
	a.router.OPTIONS(pattern, goal, hoops...)
}

// BATCH registers goal for every method in methods matching pattern in the
// router of the a, wrapped by the optional route-level hoops. A nil methods
// means every HTTP method.
func (a *Weft) BATCH(methods []string, pattern string, goal Handler, hoops ...Handler) {
	if methods == nil {
		methods = AnyMethod
	}

	a.router.Handle(methods, pattern, goal, hoops...)
}

// FILE registers a new GET and HEAD route pair with the pattern in the
// router of the a to serve a static file with the filename and optional
// route-level hoops.
func (a *Weft) FILE(pattern, filename string, hoops ...Handler) {
	goal := HandlerFunc(func(req *Request, depot *Depot, res *Response, ctrl *FlowCtrl) {
		err := res.WriteFile(filename)
		if os.IsNotExist(err) {
			a.NotFoundHandler.Handle(req, depot, res, ctrl)
		}
	})

	a.BATCH([]string{http.MethodGet, http.MethodHead}, pattern, goal, hoops...)
}

// FILES registers some new GET and HEAD route pairs with the pattern prefix
// in the router of the a to serve the static files from the root with the
// optional route-level hoops.
//
// The prefix may consist of literal and named-capture components, but it
// must not contain its own wildcard; FILES appends its own trailing
// `<**weftStaticPath>` capture.
func (a *Weft) FILES(prefix, root string, hoops ...Handler) {
	prefix = strings.TrimSuffix(prefix, "/")
	pattern := prefix + "/<**weftStaticPath>"

	if root == "" {
		root = "."
	}

	goal := HandlerFunc(func(req *Request, depot *Depot, res *Response, ctrl *FlowCtrl) {
		path := req.Param("weftStaticPath")
		path = filepath.FromSlash(fmt.Sprint("/", path))
		path = filepath.Clean(path)

		err := res.WriteFile(filepath.Join(root, path))
		if os.IsNotExist(err) {
			a.NotFoundHandler.Handle(req, depot, res, ctrl)
		}
	})

	a.BATCH([]string{http.MethodGet, http.MethodHead}, pattern, goal, hoops...)
}

// Group returns a new instance of the `Group` with the path prefix and
// optional group-level hoops that inherited from the a.
func (a *Weft) Group(prefix string, hoops ...Handler) *Group {
	return newGroup(a, a.router.Push(prefix), hoops)
}

// Serve starts the server of the a.
func (a *Weft) Serve() error {
	if a.ConfigFile != "" {
		b, err := os.ReadFile(a.ConfigFile)
		if err != nil {
			return err
		}

		m := map[string]interface{}{}
		switch e := strings.ToLower(filepath.Ext(a.ConfigFile)); e {
		case ".json":
			err = json.Unmarshal(b, &m)
		case ".toml":
			err = toml.Unmarshal(b, &m)
		case ".yaml", ".yml":
			err = yaml.Unmarshal(b, &m)
		default:
			err = fmt.Errorf(
				"weft: unsupported configuration file extension: %s",
				e,
			)
		}

		if err != nil {
			return err
		} else if err := mapstructure.Decode(m, a); err != nil {
			return err
		}
	}

	a.service.Hoops = a.GlobalHoops
	a.service.AllowedMediaTypes = a.AllowedMediaTypes

	if a.NotFoundHandler != nil {
		a.service.NotFoundHandler = a.NotFoundHandler
	}

	if a.MethodNotAllowedHandler != nil {
		a.service.MethodNotAllowedHandler = a.MethodNotAllowedHandler
	}

	if a.Catcher != nil {
		a.service.Catcher = a.Catcher
	}

	host, port, err := net.SplitHostPort(a.Address)
	if err != nil {
		return err
	}

	a.server.Addr = net.JoinHostPort(host, port)
	a.server.Handler = a
	a.server.ReadTimeout = a.ReadTimeout
	a.server.ReadHeaderTimeout = a.ReadHeaderTimeout
	a.server.WriteTimeout = a.WriteTimeout
	a.server.IdleTimeout = a.IdleTimeout
	a.server.MaxHeaderBytes = a.MaxHeaderBytes
	a.server.ErrorLog = a.ErrorLogger

	tlsConfig := a.TLSConfig
	if tlsConfig != nil {
		tlsConfig = tlsConfig.Clone()
	}

	if a.TLSCertFile != "" && a.TLSKeyFile != "" {
		c, err := tls.LoadX509KeyPair(a.TLSCertFile, a.TLSKeyFile)
		if err != nil {
			return err
		}

		if tlsConfig == nil {
			tlsConfig = &tls.Config{}
		}

		tlsConfig.Certificates = append(tlsConfig.Certificates, c)
	}

	if tlsConfig != nil {
		for _, proto := range []string{"h2", "http/1.1"} {
			if !stringSliceContains(tlsConfig.NextProtos, proto, false) {
				tlsConfig.NextProtos = append(tlsConfig.NextProtos, proto)
			}
		}
	}

	hh := http.Handler(http.HandlerFunc(func(
		rw http.ResponseWriter,
		r *http.Request,
	) {
		host, _, err := net.SplitHostPort(r.Host)
		if err != nil {
			host = r.Host
		}

		if port != "443" {
			host = net.JoinHostPort(host, port)
		}

		http.Redirect(
			rw,
			r,
			fmt.Sprint("https://", host, r.RequestURI),
			http.StatusMovedPermanently,
		)
	}))

	if a.ACMEEnabled {
		acm := &autocert.Manager{
			Prompt: func(tosURL string) bool {
				if len(a.ACMETOSURLWhitelist) == 0 {
					return true
				}

				for _, u := range a.ACMETOSURLWhitelist {
					if u == tosURL {
						return true
					}
				}

				return false
			},
			Cache:       autocert.DirCache(a.ACMECertRoot),
			RenewBefore: a.ACMERenewalWindow,
			Client: &acme.Client{
				Key:          a.ACMEAccountKey,
				DirectoryURL: a.ACMEDirectoryURL,
			},
			Email:           a.MaintainerEmail,
			ExtraExtensions: a.ACMEExtraExts,
		}
		if a.ACMEHostWhitelist != nil {
			acm.HostPolicy = autocert.HostWhitelist(a.ACMEHostWhitelist...)
		}

		hh = acm.HTTPHandler(hh)

		if tlsConfig == nil {
			tlsConfig = &tls.Config{}
		}

		getCertificate := tlsConfig.GetCertificate
		tlsConfig.GetCertificate = func(
			chi *tls.ClientHelloInfo,
		) (*tls.Certificate, error) {
			if getCertificate != nil {
				c, err := getCertificate(chi)
				if err != nil {
					return nil, err
				}

				if c != nil {
					return c, nil
				}
			}

			if chi.ServerName == "" {
				chi.ServerName = a.ACMEDefaultHost
			}

			return acm.GetCertificate(chi)
		}

		for _, proto := range acm.TLSConfig().NextProtos {
			if !stringSliceContains(tlsConfig.NextProtos, proto, false) {
				tlsConfig.NextProtos = append(tlsConfig.NextProtos, proto)
			}
		}
	}

	listener := newListener(a)
	if err := listener.listen(a.server.Addr); err != nil {
		return err
	}
	defer listener.Close()

	a.addressMap[listener.Addr().String()] = 0
	defer delete(a.addressMap, listener.Addr().String())

	netListener := net.Listener(listener)
	httpsEnforced := a.HTTPSEnforced || a.ACMEEnabled
	if tlsConfig != nil {
		netListener = tls.NewListener(netListener, tlsConfig)
		if httpsEnforced {
			hs := &http.Server{
				Addr:              net.JoinHostPort(host, a.HTTPSEnforcedPort),
				Handler:           hh,
				ReadTimeout:       a.ReadTimeout,
				ReadHeaderTimeout: a.ReadHeaderTimeout,
				WriteTimeout:      a.WriteTimeout,
				IdleTimeout:       a.IdleTimeout,
				MaxHeaderBytes:    a.MaxHeaderBytes,
				ErrorLog:          a.ErrorLogger,
			}

			l := newListener(a)
			if err := l.listen(hs.Addr); err != nil {
				return err
			}
			defer l.Close()

			a.addressMap[l.Addr().String()] = 1
			defer delete(a.addressMap, l.Addr().String())

			go hs.Serve(l)
			defer hs.Close()
		}
	} else {
		h2s := &http2.Server{
			IdleTimeout: a.IdleTimeout,
		}
		if h2s.IdleTimeout == 0 {
			h2s.IdleTimeout = a.ReadTimeout
		}

		a.server.Handler = h2c.NewHandler(a.server.Handler, h2s)
	}

	if port == "0" || (httpsEnforced && a.HTTPSEnforcedPort == "0") {
		_, port, _ = net.SplitHostPort(netListener.Addr().String())
		fmt.Printf("weft: listening on %v\n", a.Addresses())
	}

	shutdownJobRunOnce := sync.Once{}
	a.server.RegisterOnShutdown(func() {
		a.shutdownJobMutex.Lock()
		defer a.shutdownJobMutex.Unlock()
		shutdownJobRunOnce.Do(func() {
			waitGroup := sync.WaitGroup{}
			for _, job := range a.shutdownJobs {
				if job != nil {
					waitGroup.Add(1)
					go func(job func()) {
						job()
						waitGroup.Done()
					}(job)
				}
			}

			waitGroup.Wait()

			close(a.shutdownJobDone)
		})
	})

	if a.DebugMode {
		fmt.Println("weft: serving in debug mode")
	}

	return a.server.Serve(netListener)
}

// Close closes the server of the a immediately.
func (a *Weft) Close() error {
	return a.server.Close()
}

// Shutdown gracefully shuts down the server of the a without interrupting
// any active connections. It works by first closing all open listeners,
// then start running all shutdown jobs added via the `AddShutdownJob`
// concurrently, and then closing all idle connections, and then waiting
// indefinitely for connections to return to idle and shutdown jobs to
// complete and then shut down. If the ctx expires before the shutdown is
// complete, it returns the context's error, otherwise it returns any error
// returned from closing the underlying listener(s) of the server of the a.
//
// When the `Shutdown` is called, the `Serve` immediately returns the
// `http.ErrServerClosed`. Make sure the program does not exit and waits
// instead for the `Shutdown` to return.
//
// The `Shutdown` does not attempt to close nor wait for hijacked
// connections such as WebSockets. The caller should separately notify such
// long-lived connections of shutdown and wait for them to close, if
// desired. See the `AddShutdownJob` for a way to add shutdown jobs.
func (a *Weft) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-a.shutdownJobDone:
	}

	return err
}

// AddShutdownJob adds the f as a shutdown job that will run only once when
// the `Shutdown` is called. The return value is a unique ID assigned to the
// f, which can be used to remove the f from the shutdown job queue by
// calling the `RemoveShutdownJob`.
func (a *Weft) AddShutdownJob(f func()) int {
	a.shutdownJobMutex.Lock()
	defer a.shutdownJobMutex.Unlock()
	a.shutdownJobs = append(a.shutdownJobs, f)
	return len(a.shutdownJobs) - 1
}

// RemoveShutdownJob removes the shutdown job targeted by the id from the
// shutdown job queue.
func (a *Weft) RemoveShutdownJob(id int) {
	a.shutdownJobMutex.Lock()
	defer a.shutdownJobMutex.Unlock()
	if id >= 0 && id < len(a.shutdownJobs) {
		a.shutdownJobs[id] = nil
	}
}

// Addresses returns all TCP addresses that the server of the a actually
// listens on.
func (a *Weft) Addresses() []string {
	asl := len(a.addressMap)
	if asl == 0 {
		return nil
	}

	as := make([]string, 0, asl)
	for a := range a.addressMap {
		as = append(as, a)
	}

	sort.Slice(as, func(i, j int) bool {
		return a.addressMap[as[i]] < a.addressMap[as[j]]
	})

	return as
}

// ServeHTTP implements the `http.Handler`.
func (a *Weft) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	req := a.requestPool.Get().(*Request)
	res := a.responsePool.Get().(*Response)
	depot := a.depotPool.Get().(*Depot)

	req.reset(a, r)
	res.reset(a, rw, req)
	depot.reset()

	a.service.Hoops = a.GlobalHoops
	a.service.AllowedMediaTypes = a.AllowedMediaTypes

	func() {
		defer func() {
			if v := recover(); v != nil {
				if !res.Written && res.Status < http.StatusBadRequest {
					res.Status = http.StatusInternalServerError
				}

				a.logErrorf("panic recovered: %v", v)

				a.service.Catcher.Catch(req, res)
			}
		}()

		a.service.ServeHTTP(req, depot, res)
	}()

	for i := len(res.deferredFuncs) - 1; i >= 0; i-- {
		res.deferredFuncs[i]()
	}

	a.requestPool.Put(req)
	a.responsePool.Put(res)
	a.depotPool.Put(depot)
}

// logErrorf logs the v as an error in the format.
func (a *Weft) logErrorf(format string, v ...interface{}) {
	e := fmt.Errorf(format, v...)
	if a.ErrorLogger != nil {
		a.ErrorLogger.Output(2, e.Error())
	} else {
		log.Output(2, e.Error())
	}
}

// WrapHTTPHandler provides a convenient way to wrap an `http.Handler` into a
// `Handler` goal.
func WrapHTTPHandler(hh http.Handler) Handler {
	return HandlerFunc(func(req *Request, depot *Depot, res *Response, ctrl *FlowCtrl) {
		hh.ServeHTTP(res.HTTPResponseWriter(), req.HTTPRequest())
	})
}

// WrapHTTPMiddleware provides a convenient way to wrap an `http.Handler`
// middleware into a hoop `Handler`.
func WrapHTTPMiddleware(hm func(http.Handler) http.Handler) Handler {
	return HandlerFunc(func(req *Request, depot *Depot, res *Response, ctrl *FlowCtrl) {
		hm(http.HandlerFunc(func(
			rw http.ResponseWriter,
			r *http.Request,
		) {
			req.reset(req.Weft, r)
			res.SetHTTPResponseWriter(rw)
			ctrl.Next(req, depot, res)
		})).ServeHTTP(
			res.HTTPResponseWriter(),
			req.HTTPRequest(),
		)
	})
}

// stringSliceContains reports whether the ss contains the s. The
// caseInsensitive indicates whether to ignore case when comparing.
func stringSliceContains(ss []string, s string, caseInsensitive bool) bool {
	if caseInsensitive {
		for _, v := range ss {
			if strings.EqualFold(v, s) {
				return true
			}
		}

		return false
	}

	for _, v := range ss {
		if v == s {
			return true
		}
	}

	return false
}
