package server

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/marmos91/endpointd/internal/logger"
	"github.com/marmos91/endpointd/pkg/protocol/http1"
)

const (
	// lingerTimeout bounds how long unread input is drained after the
	// response has been written.
	lingerTimeout = 500 * time.Millisecond

	// maxLingerBytes bounds how much unread input is drained.
	maxLingerBytes = 256 << 10

	// unmatchedRoute is the metrics label for requests that reached no
	// handler.
	unmatchedRoute = "<unmatched>"
)

// connection services exactly one request on one accepted socket.
type connection struct {
	server     *Server
	id         string
	conn       net.Conn
	remoteAddr string
}

func newConnection(server *Server, id string, conn net.Conn) *connection {
	return &connection{
		server:     server,
		id:         id,
		conn:       conn,
		remoteAddr: conn.RemoteAddr().String(),
	}
}

// serve runs the connection from decoding to close. It implements panic
// recovery so that a fault anywhere in the pipeline only costs this
// connection.
func (c *connection) serve(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic in connection %s from %s: %v\n%s", c.id, c.remoteAddr, r, debug.Stack())
		}
		_ = c.conn.Close()
		c.server.connectionDone(c.id)
		logger.Debug("Connection %s from %s closed (active: %d)", c.id, c.remoteAddr, c.server.connCount.Load())
	}()

	ctx = withRequestID(ctx, c.id)
	cfg := &c.server.config

	if cfg.ReadTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout)); err != nil {
			logger.Warn("Failed to set read deadline for %s: %v", c.remoteAddr, err)
		}
	}

	reader := &countingReader{r: c.conn}
	req, err := http1.NewDecoder(reader, cfg.limits()).Decode()
	start := time.Now()

	var (
		resp    *http1.Response
		outcome Outcome
		route   = unmatchedRoute
	)
	switch {
	case errors.Is(err, http1.ErrNoRequest):
		logger.Debug("Connection %s from %s closed before sending a request", c.id, c.remoteAddr)
		return

	case err != nil:
		logger.Debug("Bad request on connection %s from %s: %v", c.id, c.remoteAddr, err)
		resp, outcome = FailureResponse(http.StatusBadRequest), DecodeFailed

	default:
		req.RemoteAddr = c.remoteAddr
		logger.Debug("Request %s %s %s on connection %s", req.Method, req.URI, req.Proto, c.id)

		resp, outcome = c.server.dispatcher.Dispatch(ctx, req)
		if outcome != RouteMissing {
			route = req.URI
		}
	}
	c.server.metrics.RecordBytesTransferred("read", reader.n)

	if cfg.WriteTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout)); err != nil {
			logger.Warn("Failed to set write deadline for %s: %v", c.remoteAddr, err)
		}
	}

	writer := &countingWriter{w: c.conn}
	omitBody := req != nil && req.Method == http.MethodHead
	if err := http1.Encode(writer, resp, omitBody); err != nil {
		logger.Debug("Error writing response to %s: %v", c.remoteAddr, err)
	}
	c.server.metrics.RecordBytesTransferred("write", writer.n)
	c.server.metrics.RecordRequest(route, resp.Status, outcome.String(), time.Since(start))

	logger.Debug("Connection %s: %d (%s)", c.id, resp.Status, outcome)

	c.linger()
}

// linger half-closes the connection and drains what the client still
// sends. Closing a socket with unread input makes the kernel reset the
// connection, which can discard the response before the client reads it.
func (c *connection) linger() {
	tcpConn, ok := c.conn.(*net.TCPConn)
	if !ok {
		return
	}
	if err := tcpConn.CloseWrite(); err != nil {
		return
	}
	_ = tcpConn.SetReadDeadline(time.Now().Add(lingerTimeout))
	_, _ = io.CopyN(io.Discard, tcpConn, maxLingerBytes)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (r *countingReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	r.n += int64(n)
	return n, err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	w.n += int64(n)
	return n, err
}
