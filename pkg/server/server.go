// Package server implements the embeddable endpoint server: a TCP listener
// that reads exactly one HTTP/1.1 request per connection, dispatches it to
// the handler registered for its exact URI and writes back one response.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/endpointd/internal/logger"
	"github.com/marmos91/endpointd/internal/ratelimiter"
	"github.com/marmos91/endpointd/pkg/metrics"
	"github.com/marmos91/endpointd/pkg/worker"
)

// ErrShutdownTimeout is returned by Close when connections were still
// active after ShutdownTimeout and had to be force-closed.
var ErrShutdownTimeout = errors.New("shutdown timeout exceeded")

const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// Server is a running endpoint server.
//
// New binds the listening socket and starts accepting before it returns, so
// a *Server is always live until Close. Handlers may be added and removed
// at any time.
//
// Architecture:
// Acceptor units run the accept loop. Each accepted connection is handed to
// a worker unit, which decodes one request, dispatches it, encodes the
// response and closes the connection. A connection never occupies more than
// one worker.
//
// Shutdown flow (Close):
//  1. Listener closed (port released, no new connections)
//  2. Request context cancelled (handlers can abort)
//  3. Wait for active connections to complete (up to ShutdownTimeout)
//  4. Force-close any remaining connections after timeout
//  5. Owned executors shut down; borrowed ones are left running
//
// Thread safety:
// All methods are safe for concurrent use. Close is idempotent.
type Server struct {
	config     Config
	listener   net.Listener
	routes     *RouteTable
	dispatcher *Dispatcher
	executors  Executors
	metrics    metrics.ServerMetrics
	limiter    *ratelimiter.RateLimiter

	// acceptLoops tracks the accept loop tasks so Close can wait for them
	// before waiting on connections
	acceptLoops sync.WaitGroup

	// activeConns tracks all currently active connections for graceful shutdown
	activeConns sync.WaitGroup

	// connCount tracks the current number of active connections
	connCount atomic.Int32

	// activeConnections maps connection ID to net.Conn for forced closure
	activeConnections sync.Map

	// shutdown is closed when Close starts; checked by the accept loop to
	// tell a closed listener from a transient accept error
	shutdown chan struct{}

	// shutdownCtx is passed to handlers and cancelled by Close
	shutdownCtx    context.Context
	cancelRequests context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

// New binds cfg.Address and starts accepting connections.
//
// Without WithExecutors, the server creates and owns an acceptor pool of
// AcceptorPoolSize units and a worker pool of WorkerPoolSize units.
// Supplied executors must have a free acceptor unit: New never waits for
// one, so it either returns a listening server or releases the port and
// fails.
//
// Returns:
//   - a listening Server
//   - *BindError if the socket cannot be bound (no server is created)
//   - an error wrapping ErrInvalidExecutors for incomplete executors
//   - an error wrapping ErrNoAcceptor if no acceptor unit is free
func New(cfg Config, opts ...Option) (*Server, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.executors != nil {
		if err := o.executors.validate(); err != nil {
			return nil, err
		}
	}
	if o.routes == nil {
		o.routes = NewRouteTable()
	}
	if o.metrics == nil {
		o.metrics = metrics.NewNoopServerMetrics()
	}

	listener, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return nil, &BindError{Address: cfg.Address, Err: err}
	}

	executors := Executors{
		Acceptor:  worker.NewPool("acceptor", cfg.AcceptorPoolSize),
		Workers:   worker.NewPool("workers", cfg.WorkerPoolSize),
		Ownership: Owned,
	}
	acceptors := cfg.AcceptorPoolSize
	if o.executors != nil {
		executors = *o.executors
		acceptors = 1
	}

	shutdownCtx, cancelRequests := context.WithCancel(context.Background())

	s := &Server{
		config:         cfg,
		listener:       listener,
		routes:         o.routes,
		dispatcher:     NewDispatcher(o.routes),
		executors:      executors,
		metrics:        o.metrics,
		limiter:        ratelimiter.New(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst),
		shutdown:       make(chan struct{}),
		shutdownCtx:    shutdownCtx,
		cancelRequests: cancelRequests,
	}

	for i := 0; i < acceptors; i++ {
		s.acceptLoops.Add(1)
		if err := executors.Acceptor.TrySubmit(s.acceptLoop); err != nil {
			s.acceptLoops.Done()
			if errors.Is(err, worker.ErrPoolFull) {
				err = fmt.Errorf("%w: pool %s (size %d) is busy", ErrNoAcceptor, executors.Acceptor.Name(), executors.Acceptor.Size())
			}
			closeErr := s.Close()
			return nil, errors.Join(fmt.Errorf("start accept loop: %w", err), closeErr)
		}
	}

	logger.Info("Endpoint server listening on %s", listener.Addr())
	logger.Debug("Endpoint server config: max_body_size=%d max_header_bytes=%d read_timeout=%v write_timeout=%v workers=%d (%s) rate_limit=%d/s",
		cfg.MaxBodySize, cfg.MaxHeaderBytes, cfg.ReadTimeout, cfg.WriteTimeout,
		executors.Workers.Size(), executors.Ownership, cfg.RateLimit.RequestsPerSecond)

	return s, nil
}

// AddHandler registers h for the exact request URI uri, replacing any
// previous handler. Panics if h is nil.
func (s *Server) AddHandler(uri string, h Handler) {
	s.routes.Add(uri, h)
	logger.Debug("Registered handler for %s", uri)
}

// AddHandlerFunc registers f for uri.
func (s *Server) AddHandlerFunc(uri string, f HandlerFunc) {
	s.AddHandler(uri, f)
}

// RemoveHandler unregisters uri and reports whether it was registered.
func (s *Server) RemoveHandler(uri string) bool {
	removed := s.routes.Remove(uri)
	if removed {
		logger.Debug("Removed handler for %s", uri)
	}
	return removed
}

// Routes returns a sorted snapshot of the registered URIs.
func (s *Server) Routes() []string {
	return s.routes.URIs()
}

// Addr returns the address the server is bound to, including the port the
// OS chose when the configured port was 0.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// ActiveConnections returns the number of connections currently being
// serviced.
func (s *Server) ActiveConnections() int32 {
	return s.connCount.Load()
}

// Close shuts the server down and releases the port.
//
// Safe to call multiple times and from multiple goroutines: every call
// returns the result of the first.
//
// Returns:
//   - nil if all connections completed and owned executors shut down cleanly
//   - an error wrapping ErrShutdownTimeout if connections were force-closed
//   - executor shutdown errors, joined
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.close()
	})
	return s.closeErr
}

func (s *Server) close() error {
	logger.Debug("Endpoint server shutdown initiated")

	close(s.shutdown)
	if err := s.listener.Close(); err != nil {
		logger.Debug("Error closing listener: %v", err)
	}
	s.cancelRequests()

	s.acceptLoops.Wait()

	var errs []error
	if err := s.gracefulShutdown(); err != nil {
		errs = append(errs, err)
	}

	if s.executors.Ownership == Owned {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		if err := s.executors.shutdown(ctx); err != nil {
			logger.Error("Error shutting down executors: %v", err)
			errs = append(errs, err)
		}
	}

	logger.Info("Endpoint server on %s stopped", s.listener.Addr())
	return errors.Join(errs...)
}

// gracefulShutdown waits for active connections to complete or timeout.
func (s *Server) gracefulShutdown() error {
	activeCount := s.connCount.Load()
	if activeCount > 0 {
		logger.Info("Endpoint server graceful shutdown: waiting for %d active connection(s) (timeout: %v)",
			activeCount, s.config.ShutdownTimeout)
	}

	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	timer := time.NewTimer(s.config.ShutdownTimeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil

	case <-timer.C:
		remaining := s.connCount.Load()
		logger.Warn("Endpoint server shutdown timeout exceeded: %d connection(s) still active after %v - forcing closure",
			remaining, s.config.ShutdownTimeout)

		closed := s.forceCloseConnections()
		return fmt.Errorf("%w: %d connection(s) force-closed", ErrShutdownTimeout, closed)
	}
}

// forceCloseConnections closes all tracked connections so that workers
// blocked in reads or writes fail immediately.
func (s *Server) forceCloseConnections() int {
	closedCount := 0
	s.activeConnections.Range(func(key, value any) bool {
		id := key.(string)
		conn := value.(net.Conn)

		if err := conn.Close(); err != nil {
			logger.Debug("Error force-closing connection %s: %v", id, err)
		} else {
			closedCount++
			s.metrics.RecordConnectionForceClosed()
		}
		return true
	})

	if closedCount > 0 {
		logger.Info("Force-closed %d connection(s)", closedCount)
	}
	return closedCount
}

// acceptLoop accepts connections until the listener is closed. It runs on
// an acceptor unit.
func (s *Server) acceptLoop() {
	defer s.acceptLoops.Done()

	var backoff time.Duration
	for {
		if !s.limiter.Unlimited() {
			if err := s.limiter.Wait(s.shutdownCtx); err != nil {
				return
			}
		}

		tcpConn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return
			default:
			}

			// Transient failures (e.g. EMFILE) must not spin the loop.
			if backoff == 0 {
				backoff = minAcceptBackoff
			} else {
				backoff = min(backoff*2, maxAcceptBackoff)
			}
			logger.Warn("Error accepting connection: %v; retrying in %v", err, backoff)

			timer := time.NewTimer(backoff)
			select {
			case <-timer.C:
			case <-s.shutdown:
				timer.Stop()
				return
			}
			continue
		}
		backoff = 0

		s.handleAccepted(tcpConn)
	}
}

// handleAccepted tracks a new connection and hands it to a worker. When no
// worker can take it the connection is closed without a response.
func (s *Server) handleAccepted(tcpConn net.Conn) {
	id := uuid.NewString()

	s.activeConns.Add(1)
	currentConns := s.connCount.Add(1)
	s.activeConnections.Store(id, tcpConn)

	s.metrics.RecordConnectionAccepted()
	s.metrics.SetActiveConnections(currentConns)

	logger.Debug("Connection %s accepted from %s (active: %d)", id, tcpConn.RemoteAddr(), currentConns)

	c := newConnection(s, id, tcpConn)
	if err := s.executors.Workers.Submit(s.shutdownCtx, func() { c.serve(s.shutdownCtx) }); err != nil {
		logger.Warn("Dropping connection from %s: %v", tcpConn.RemoteAddr(), err)
		_ = tcpConn.Close()
		s.connectionDone(id)
	}
}

// connectionDone releases the bookkeeping taken by handleAccepted.
func (s *Server) connectionDone(id string) {
	s.activeConnections.Delete(id)

	currentConns := s.connCount.Add(-1)
	s.metrics.RecordConnectionClosed()
	s.metrics.SetActiveConnections(currentConns)

	s.activeConns.Done()
}
