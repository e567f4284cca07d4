package hoops

import (
	"bytes"
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/valyala/fasttemplate"
	"github.com/weftkit/weft"
)

// LoggerConfig configures the Logger hoop.
type LoggerConfig struct {
	// Format is the log line template, built from the following tags:
	//
	// - time_rfc3339
	// - remote_ip
	// - host
	// - method
	// - path
	// - status
	// - latency (microseconds)
	// - latency_human
	// - rx_bytes
	// - tx_bytes
	//
	// Optional. Default value DefaultLoggerConfig.Format.
	Format string

	// Output is where log lines are written. Optional, default os.Stdout.
	Output io.Writer

	// Skipper, if set, decides per-request whether to skip logging.
	Skipper Skipper

	template   *fasttemplate.Template
	bufferPool *sync.Pool
}

// DefaultLoggerConfig is the default LoggerConfig.
var DefaultLoggerConfig = LoggerConfig{
	Format: `{"time":"${time_rfc3339}","remote_ip":"${remote_ip}",` +
		`"method":"${method}","path":"${path}","status":${status},` +
		`"latency":${latency},"latency_human":"${latency_human}",` +
		`"rx_bytes":${rx_bytes},"tx_bytes":${tx_bytes}}` + "\n",
	Output: os.Stdout,
}

// Logger returns a hoop that logs each request once the rest of the chain
// has run.
func Logger() weft.Handler {
	return LoggerWithConfig(DefaultLoggerConfig)
}

// LoggerWithConfig returns a Logger hoop built from config.
func LoggerWithConfig(config LoggerConfig) weft.Handler {
	if config.Format == "" {
		config.Format = DefaultLoggerConfig.Format
	}

	if config.Output == nil {
		config.Output = DefaultLoggerConfig.Output
	}

	if config.Skipper == nil {
		config.Skipper = defaultSkipper
	}

	config.template = fasttemplate.New(config.Format, "${", "}")
	config.bufferPool = &sync.Pool{
		New: func() interface{} {
			return bytes.NewBuffer(make([]byte, 256))
		},
	}

	return weft.HandlerFunc(func(req *weft.Request, depot *weft.Depot, res *weft.Response, ctrl *weft.FlowCtrl) {
		if config.Skipper(req, depot, res) {
			ctrl.Next(req, depot, res)
			return
		}

		start := time.Now()
		ctrl.Next(req, depot, res)
		stop := time.Now()

		buf := config.bufferPool.Get().(*bytes.Buffer)
		buf.Reset()
		defer config.bufferPool.Put(buf)

		config.template.ExecuteFunc(buf, func(w io.Writer, tag string) (int, error) {
			switch tag {
			case "time_rfc3339":
				return w.Write([]byte(time.Now().Format(time.RFC3339)))
			case "remote_ip":
				ra := req.RemoteAddr
				if ip := req.Header.Get("X-Real-IP"); ip != "" {
					ra = ip
				} else if ip := req.Header.Get("X-Forwarded-For"); ip != "" {
					ra = ip
				} else if host, _, err := net.SplitHostPort(ra); err == nil {
					ra = host
				}
				return w.Write([]byte(ra))
			case "host":
				return w.Write([]byte(req.Host))
			case "method":
				return w.Write([]byte(req.Method))
			case "path":
				p := req.Path
				if p == "" {
					p = "/"
				}
				return w.Write([]byte(p))
			case "status":
				return w.Write([]byte(strconv.Itoa(res.Status)))
			case "latency":
				l := stop.Sub(start).Microseconds()
				return w.Write([]byte(strconv.FormatInt(l, 10)))
			case "latency_human":
				return w.Write([]byte(stop.Sub(start).String()))
			case "rx_bytes":
				b := req.Header.Get("Content-Length")
				if b == "" {
					b = "0"
				}
				return w.Write([]byte(b))
			case "tx_bytes":
				return w.Write([]byte(strconv.FormatInt(res.ContentLength, 10)))
			}

			return 0, nil
		})

		config.Output.Write(buf.Bytes())
	})
}
