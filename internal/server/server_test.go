package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// accepted is one scripted Accept outcome.
type accepted struct {
	conn net.Conn
	err  error
}

// fakeListener hands out scripted connections until closed.
type fakeListener struct {
	queue     chan accepted
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeListener() *fakeListener {
	return &fakeListener{
		queue:  make(chan accepted, 8),
		closed: make(chan struct{}),
	}
}

func (l *fakeListener) Accept() (net.Conn, error) {
	select {
	case a := <-l.queue:
		return a.conn, a.err
	case <-l.closed:
		return nil, net.ErrClosed
	}
}

func (l *fakeListener) Close() error {
	l.closeOnce.Do(func() { close(l.closed) })
	return nil
}

func (l *fakeListener) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 80}
}

// brokenConn reads a request successfully and fails every write.
type brokenConn struct {
	net.Conn
	closed atomic.Bool
}

func (c *brokenConn) Read(b []byte) (int, error) {
	return copy(b, "GET / HTTP/1.1\r\n\r\n"), nil
}

func (c *brokenConn) Write([]byte) (int, error) {
	return 0, errors.New("connection reset by peer")
}

func (c *brokenConn) Close() error {
	c.closed.Store(true)
	return nil
}

func (c *brokenConn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(10, 0, 0, 9), Port: 5555}
}
func (c *brokenConn) SetReadDeadline(time.Time) error  { return nil }
func (c *brokenConn) SetWriteDeadline(time.Time) error { return nil }

// pipeClient sends a request over a pipe and returns everything it reads back.
func pipeClient(t *testing.T) (net.Conn, <-chan string) {
	t.Helper()
	serverSide, clientSide := net.Pipe()
	out := make(chan string, 1)
	go func() {
		defer clientSide.Close()
		if _, err := clientSide.Write([]byte("GET / HTTP/1.1\r\nHost: sensors\r\n\r\n")); err != nil {
			out <- ""
			return
		}
		data, _ := io.ReadAll(clientSide)
		out <- string(data)
	}()
	return serverSide, out
}

func collectResults(n int) (func(ConnResult), <-chan ConnResult) {
	ch := make(chan ConnResult, n)
	return func(r ConnResult) { ch <- r }, ch
}

func waitResult(t *testing.T, ch <-chan ConnResult) ConnResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for connection result")
		return ConnResult{}
	}
}

func TestServe_SendFaultDoesNotStopLoop(t *testing.T) {
	var pages atomic.Int32
	page := func() ([]byte, error) {
		n := pages.Add(1)
		return []byte(fmt.Sprintf("<html>cycle %d</html>", n)), nil
	}
	hook, results := collectResults(4)
	srv := NewServer(page, 0, testLogger(), WithConnHook(hook))

	ln := newFakeListener()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	broken := &brokenConn{}
	ln.queue <- accepted{conn: broken}

	first := waitResult(t, results)
	if first.OK() {
		t.Fatal("first connection should fail on send")
	}
	if first.Stage != StageWrite {
		t.Errorf("first.Stage = %q, want %q", first.Stage, StageWrite)
	}
	if first.Remote != "10.0.0.9:5555" {
		t.Errorf("first.Remote = %q", first.Remote)
	}
	if !broken.closed.Load() {
		t.Error("failed connection should be closed")
	}

	conn, body := pipeClient(t)
	ln.queue <- accepted{conn: conn}

	second := waitResult(t, results)
	if !second.OK() {
		t.Fatalf("second connection failed: stage=%s err=%v", second.Stage, second.Err)
	}
	got := <-body
	want := responseHeader + "<html>cycle 2</html>"
	if got != want {
		t.Errorf("response = %q, want %q", got, want)
	}
	if second.Bytes != len(want) {
		t.Errorf("second.Bytes = %d, want %d", second.Bytes, len(want))
	}
	if pages.Load() != 2 {
		t.Errorf("page called %d times, want 2", pages.Load())
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServe_RenderFaultClosesWithoutResponse(t *testing.T) {
	page := func() ([]byte, error) { return nil, errors.New("template exploded") }
	hook, results := collectResults(1)
	srv := NewServer(page, 0, testLogger(), WithConnHook(hook))

	ln := newFakeListener()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx, ln)

	conn, body := pipeClient(t)
	ln.queue <- accepted{conn: conn}

	res := waitResult(t, results)
	if res.Stage != StageRender || res.Err == nil {
		t.Errorf("result = %+v, want render fault", res)
	}
	if got := <-body; got != "" {
		t.Errorf("client received %q, want nothing", got)
	}
}

func TestServe_PagePanicDoesNotStopLoop(t *testing.T) {
	var pages atomic.Int32
	page := func() ([]byte, error) {
		if pages.Add(1) == 1 {
			panic("sampler blew up")
		}
		return []byte("<html>recovered</html>"), nil
	}
	hook, results := collectResults(2)
	srv := NewServer(page, 0, testLogger(), WithConnHook(hook))

	ln := newFakeListener()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx, ln)

	conn, body := pipeClient(t)
	ln.queue <- accepted{conn: conn}

	first := waitResult(t, results)
	if first.Stage != StageRender || first.Err == nil {
		t.Fatalf("first = %+v, want render fault", first)
	}
	if !strings.Contains(first.Err.Error(), "correlation_id") {
		t.Errorf("first.Err = %v, want correlation id", first.Err)
	}
	if got := <-body; got != "" {
		t.Errorf("client received %q, want nothing", got)
	}

	conn, body = pipeClient(t)
	ln.queue <- accepted{conn: conn}

	second := waitResult(t, results)
	if !second.OK() {
		t.Fatalf("second connection failed: stage=%s err=%v", second.Stage, second.Err)
	}
	if got := <-body; got != responseHeader+"<html>recovered</html>" {
		t.Errorf("response = %q", got)
	}
}

func TestServe_AcceptErrorIsRetried(t *testing.T) {
	page := func() ([]byte, error) { return []byte("ok"), nil }
	hook, results := collectResults(1)
	srv := NewServer(page, 0, testLogger(), WithConnHook(hook))

	ln := newFakeListener()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx, ln)

	ln.queue <- accepted{err: errors.New("too many open files")}
	conn, body := pipeClient(t)
	ln.queue <- accepted{conn: conn}

	if res := waitResult(t, results); !res.OK() {
		t.Fatalf("connection after accept error failed: %v", res.Err)
	}
	if got := <-body; got != responseHeader+"ok" {
		t.Errorf("response = %q", got)
	}
}

func TestServe_ClientClosesBeforeRequest(t *testing.T) {
	page := func() ([]byte, error) { return []byte("ok"), nil }
	hook, results := collectResults(1)
	srv := NewServer(page, 0, testLogger(), WithConnHook(hook), WithTimeouts(time.Second, time.Second))

	ln := newFakeListener()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx, ln)

	serverSide, clientSide := net.Pipe()
	clientSide.Close()
	ln.queue <- accepted{conn: serverSide}

	res := waitResult(t, results)
	if res.Stage != StageWrite || res.OK() {
		t.Errorf("result = %+v, want write fault after EOF request", res)
	}
}

func TestStart_ServesOverTCP(t *testing.T) {
	page := func() ([]byte, error) { return []byte("<html>sensors</html>"), nil }
	srv := NewServer(page, 19101, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	for i := 0; i < 2; i++ {
		conn, err := net.DialTimeout("tcp", "127.0.0.1:19101", time.Second)
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		_, _ = conn.Write([]byte("GET / HTTP/1.1\r\n\r\n"))
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		data, err := io.ReadAll(conn)
		conn.Close()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if !strings.HasPrefix(string(data), "HTTP/1.0 200 OK\r\nContent-type: text/html\r\n\r\n") {
			t.Errorf("response %d missing status line: %q", i, data)
		}
		if !strings.HasSuffix(string(data), "<html>sensors</html>") {
			t.Errorf("response %d missing body: %q", i, data)
		}
	}
	if srv.Addr() == nil {
		t.Error("Addr() should be set while serving")
	}
}

func TestStart_PortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", ":19102")
	if err != nil {
		t.Fatalf("failed to occupy port: %v", err)
	}
	defer ln.Close()

	srv := NewServer(func() ([]byte, error) { return nil, nil }, 19102, testLogger())
	if err := srv.Start(context.Background()); err == nil {
		t.Fatal("Start() should fail when the port is taken")
	}
}

func TestStart_StopsOnCancel(t *testing.T) {
	srv := NewServer(func() ([]byte, error) { return []byte("x"), nil }, 19103, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", "127.0.0.1:19103", 100*time.Millisecond)
		if err != nil {
			return
		}
		conn.Close()
		time.Sleep(20 * time.Millisecond)
	}
	t.Error("listener still accepting after cancel")
}
