package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// responseHeader is written verbatim before every body.
	responseHeader = "HTTP/1.0 200 OK\r\nContent-type: text/html\r\n\r\n"

	// requestBufferSize bounds how much of the request is read. The request
	// content is never inspected.
	requestBufferSize = 1024

	// DefaultReadTimeout bounds the wait for the client's request bytes.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout bounds each of the two response writes.
	DefaultWriteTimeout = 5 * time.Second

	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// Stage names the step a connection reached.
type Stage string

const (
	StageRead   Stage = "read"
	StageRender Stage = "render"
	StageWrite  Stage = "write"
	StageDone   Stage = "done"
)

// ConnResult is the outcome of serving one connection.
type ConnResult struct {
	Remote   string
	Stage    Stage
	Bytes    int
	Err      error
	Duration time.Duration
}

// OK reports whether the full response was written.
func (r ConnResult) OK() bool {
	return r.Err == nil
}

// PageFunc produces the response body for one request. In request-driven
// sampling it runs a sampling cycle; it is called once per connection.
type PageFunc func() ([]byte, error)

// Option configures a [Server].
type Option func(*Server)

// WithTimeouts sets the read and write deadlines applied to each connection.
// A zero value disables that deadline.
func WithTimeouts(read, write time.Duration) Option {
	return func(s *Server) {
		s.readTimeout = read
		s.writeTimeout = write
	}
}

// WithConnHook registers fn to receive every [ConnResult]. fn runs on the
// accept loop and must not block.
func WithConnHook(fn func(ConnResult)) Option {
	return func(s *Server) {
		s.onConn = fn
	}
}

// Server is a sequential TCP request server.
type Server struct {
	page         PageFunc
	port         int
	readTimeout  time.Duration
	writeTimeout time.Duration
	onConn       func(ConnResult)
	logger       *slog.Logger

	mu   sync.Mutex
	addr net.Addr
}

// NewServer creates a [Server] that answers every connection on port with the
// body returned by page. The server is not started until [Server.Start].
func NewServer(page PageFunc, port int, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		page:         page,
		port:         port,
		readTimeout:  DefaultReadTimeout,
		writeTimeout: DefaultWriteTimeout,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start binds the port and runs the accept loop in a background goroutine.
//
// Start returns once the listener is bound, so a port conflict is reported
// synchronously. The loop stops and the listener closes when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}

	go func() {
		if err := s.Serve(ctx, ln); err != nil {
			s.logger.Error("request server stopped", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or nil before the server is serving.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Serve accepts connections on ln until ctx is cancelled, handling each one
// to completion before accepting the next. Serve takes ownership of ln.
//
// Accept errors are logged and retried with backoff. Serve returns nil on
// shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		ln.Close()
	})
	defer stop()
	defer ln.Close()

	s.logger.Info("request server listening", "addr", ln.Addr().String())

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.logger.Info("request server stopped")
				return nil
			}

			if backoff == 0 {
				backoff = minAcceptBackoff
			} else {
				backoff = min(2*backoff, maxAcceptBackoff)
			}
			s.logger.Warn("accept failed", "error", err, "retry_in", backoff)

			select {
			case <-time.After(backoff):
				continue
			case <-ctx.Done():
				return nil
			}
		}
		backoff = 0

		res := s.handle(conn)
		s.report(res)
	}
}

// handle serves one connection and always closes it.
func (s *Server) handle(conn net.Conn) (res ConnResult) {
	start := time.Now()
	if addr := conn.RemoteAddr(); addr != nil {
		res.Remote = addr.String()
	}
	defer func() {
		if err := conn.Close(); err != nil && res.Err == nil {
			s.logger.Debug("connection close failed", "remote", res.Remote, "error", err)
		}
		res.Duration = time.Since(start)
	}()

	res.Stage = StageRead
	if s.readTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	}
	buf := make([]byte, requestBufferSize)
	if _, err := conn.Read(buf); err != nil && !errors.Is(err, io.EOF) {
		res.Err = fmt.Errorf("read request: %w", err)
		return res
	}

	res.Stage = StageRender
	body, err := s.renderPage(res.Remote)
	if err != nil {
		res.Err = err
		return res
	}

	res.Stage = StageWrite
	for _, chunk := range [][]byte{[]byte(responseHeader), body} {
		if s.writeTimeout > 0 {
			_ = conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
		}
		n, err := conn.Write(chunk)
		res.Bytes += n
		if err != nil {
			res.Err = fmt.Errorf("write response: %w", err)
			return res
		}
	}

	res.Stage = StageDone
	return res
}

// renderPage calls the page function. A panic is recovered and returned as
// an error carrying a correlation id, so the loop keeps serving.
func (s *Server) renderPage(remote string) (body []byte, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			correlationID := uuid.NewString()
			s.logger.Error("page render panicked",
				"remote", remote,
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", rec),
				"stack", string(debug.Stack()),
			)
			body = nil
			err = fmt.Errorf("page panic (correlation_id: %s)", correlationID)
		}
	}()
	return s.page()
}

func (s *Server) report(res ConnResult) {
	if res.OK() {
		s.logger.Debug("request served",
			"remote", res.Remote,
			"bytes", res.Bytes,
			"duration", res.Duration,
		)
	} else {
		s.logger.Warn("connection failed",
			"remote", res.Remote,
			"stage", string(res.Stage),
			"error", res.Err,
		)
	}
	if s.onConn != nil {
		s.onConn(res)
	}
}
