package http3

import (
	"context"
	"crypto/tls"
	"net/http"

	"github.com/quic-go/quic-go"
)

// Server accepts QUIC connections on a UDP address and serves each one as
// an HTTP/3 connection, dispatching requests to Handler.
type Server struct {
	Addr      string
	TLSConfig *tls.Config
	Handler   http.Handler

	// QUICConfig is passed to quic-go verbatim; nil selects its defaults.
	QUICConfig *quic.Config

	listener *quic.Listener
}

// ListenAndServe opens a UDP listener on s.Addr and serves QUIC connections
// until ctx is cancelled or a fatal accept error occurs.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := quic.ListenAddr(s.Addr, s.TLSConfig, s.QUICConfig)
	if err != nil {
		return err
	}

	s.listener = ln
	defer ln.Close()

	for {
		qconn, err := ln.Accept(ctx)
		if err != nil {
			return err
		}

		conn := NewConn(qconn, s.Handler)
		go conn.Serve(ctx)
	}
}

// Close shuts down the underlying QUIC listener, refusing new connections.
// Connections already being served are unaffected.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}

	return s.listener.Close()
}
