package http3

import (
	"context"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quic-go/quic-go"
)

// IdleSettingsTimeout bounds how long Conn waits, once the peer's control
// stream has been identified by its preface, for that stream's initial
// SETTINGS frame; on expiry the connection is closed with H3_FRAME_ERROR.
// No timer runs while the peer has not opened a control stream at all.
var IdleSettingsTimeout = 10 * time.Second

// Conn is one HTTP/3 connection: a QUIC connection plus the single
// outgoing/incoming control stream pair and the request streams multiplexed
// over it.
type Conn struct {
	qconn quic.Connection

	localSettings  *Settings
	remoteSettings *Settings

	handler http.Handler

	maxClientRequestID uint64
	mu                  sync.Mutex
	openRequests        sync.WaitGroup
	sawControlStream    bool

	goawaySent int32
}

// NewConn wraps qconn as an HTTP/3 connection serving handler.
func NewConn(qconn quic.Connection, handler http.Handler) *Conn {
	return &Conn{
		qconn:         qconn,
		localSettings: NewSettings(),
		handler:       handler,
	}
}

// Serve runs the connection until it closes: it opens the local control
// stream, accepts the peer's, and accepts request (bidirectional) streams
// as they arrive.
func (c *Conn) Serve(ctx context.Context) error {
	if err := c.openControlStream(); err != nil {
		return err
	}

	go c.acceptUniStreams(ctx)

	for {
		str, err := c.qconn.AcceptStream(ctx)
		if err != nil {
			c.openRequests.Wait()
			return err
		}

		c.mu.Lock()
		reqID := c.maxClientRequestID
		c.maxClientRequestID += 4
		c.mu.Unlock()

		c.openRequests.Add(1)

		go func() {
			defer c.openRequests.Done()
			c.serveRequestStream(str, reqID)
		}()
	}
}

// openControlStream opens this side's unidirectional control stream and
// writes the preface and initial SETTINGS.
func (c *Conn) openControlStream() error {
	str, err := c.qconn.OpenUniStream()
	if err != nil {
		return err
	}

	var b []byte
	b = appendVarInt(b, controlStreamPreface)
	b = c.localSettings.Encode(b)

	_, err = str.Write(b)

	return err
}

// acceptUniStreams accepts every peer-initiated unidirectional stream and
// hands each one to handleUniStream, which runs the first stream whose
// preface identifies it as the control stream; any subsequent
// control-stream preface is fatal (RFC 9114 §6.2.1).
func (c *Conn) acceptUniStreams(ctx context.Context) {
	for {
		str, err := c.qconn.AcceptUniStream(ctx)
		if err != nil {
			return
		}

		go c.handleUniStream(str)
	}
}

func (c *Conn) handleUniStream(str quic.ReceiveStream) {
	dec := NewDecoder(str)

	t, err := dec.ReadStreamType()
	if err != nil {
		return
	}

	if t != controlStreamPreface {
		// Push streams and anything else unrecognized are simply not
		// consumed further; no push is ever initiated by this server, so
		// any peer-advertised push stream is ignored rather than acted on.
		return
	}

	c.mu.Lock()
	if c.sawControlStream {
		c.mu.Unlock()
		c.closeWithError(ErrStreamCreationError, "second control stream")
		return
	}

	c.sawControlStream = true
	c.mu.Unlock()

	str.SetReadDeadline(time.Now().Add(IdleSettingsTimeout))

	cs := &ControlStream{dec: dec}
	cs.OnSettings = func(s *Settings) {
		c.remoteSettings = s
		str.SetReadDeadline(time.Time{})
	}
	cs.OnGoaway = func(uint64) {}

	if err := cs.Run(); err != nil {
		if ce, ok := err.(*ConnError); ok {
			c.closeWithError(ce.Code, ce.Reason)
			return
		}

		c.closeWithError(ErrInternalError, err.Error())
	}
}

func (c *Conn) closeWithError(code ErrorCode, reason string) {
	_ = c.qconn.CloseWithError(quic.ApplicationErrorCode(code), reason)
}

// serveRequestStream decodes one request off a bidirectional stream,
// invokes the handler, and writes back the response.
func (c *Conn) serveRequestStream(str quic.Stream, requestID uint64) {
	dec := NewDecoder(str)

	f, err := dec.ReadFrame()
	if err != nil {
		str.CancelRead(quic.StreamErrorCode(ErrRequestIncomplete))
		return
	}

	if f.Type != FrameTypeHeaders {
		str.CancelRead(quic.StreamErrorCode(ErrFrameUnexpected))
		return
	}

	hreq, err := decodeHeaders(f.Payload)
	if err != nil {
		str.CancelRead(quic.StreamErrorCode(ErrGeneralProtocolError))
		return
	}

	hreq.Body = &requestBody{dec: dec, str: str}

	rw := &responseWriter{str: str, header: http.Header{}, status: http.StatusOK}
	c.handler.ServeHTTP(rw, hreq)
	rw.finish()
}

// requestBody adapts a Decoder's two-phase DATA protocol to io.ReadCloser
// for net/http request bodies.
type requestBody struct {
	dec *Decoder
	str quic.Stream
}

func (b *requestBody) Read(p []byte) (int, error) {
	if !b.dec.HasPendingData() {
		f, err := b.dec.ReadFrame()
		if err == io.EOF {
			return 0, io.EOF
		} else if err != nil {
			return 0, err
		}

		if f.Type != FrameTypeData {
			return 0, connErrorf(ErrFrameUnexpected, "expected DATA frame in request body, got %s", f.Type)
		}
	}

	return b.dec.ReadData(p)
}

func (b *requestBody) Close() error {
	return nil
}

// responseWriter adapts an http.ResponseWriter onto a QUIC stream, framing
// the body as HTTP/3 DATA frames behind one HEADERS frame.
type responseWriter struct {
	str         quic.Stream
	header      http.Header
	status      int
	wroteHeader bool
}

func (w *responseWriter) Header() http.Header {
	return w.header
}

func (w *responseWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}

	w.wroteHeader = true
	w.status = status

	payload, err := encodeHeaders(status, w.header)
	if err != nil {
		return
	}

	var b []byte
	b = Encode(b, FrameTypeHeaders, payload)
	w.str.Write(b)
}

func (w *responseWriter) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}

	var b []byte
	b = EncodeHeader(b, FrameTypeData, uint64(len(p)))
	if _, err := w.str.Write(b); err != nil {
		return 0, err
	}

	return w.str.Write(p)
}

func (w *responseWriter) finish() {
	if !w.wroteHeader {
		w.WriteHeader(w.status)
	}

	w.str.Close()
}

// Shutdown implements the graceful-shutdown handshake: it sends a GOAWAY
// naming the (n+1)-th following client-initiated request ID space, after
// which the peer must not open further request streams beyond that point,
// and waits for already-accepted streams to finish.
func (c *Conn) Shutdown(n uint64) error {
	if !atomic.CompareAndSwapInt32(&c.goawaySent, 0, 1) {
		return nil
	}

	c.mu.Lock()
	goawayID := c.maxClientRequestID + 4*(n+1)
	c.mu.Unlock()

	str, err := c.qconn.OpenUniStream()
	if err != nil {
		return err
	}

	var b []byte
	b = appendVarInt(b, goawayID)
	b = Encode(nil, FrameTypeGoaway, b)

	if _, err := str.Write(b); err != nil {
		return err
	}

	c.openRequests.Wait()

	return str.Close()
}
