package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jpalmerr/envboard/internal/sampler"
	"github.com/jpalmerr/envboard/internal/sensor"
	"github.com/jpalmerr/envboard/internal/store"
)

const (
	// streamWriteTimeout is the maximum time allowed for a single stream write.
	// It keeps slow or vanished clients from pinning a handler goroutine.
	streamWriteTimeout = 5 * time.Second

	shutdownTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Source provides the most recent cycle.
type Source interface {
	Latest() sampler.Result
}

// HistoryResponse is the body of GET /api/history.
type HistoryResponse struct {
	TakenAt  time.Time            `json:"taken_at"`
	Cycle    uint64               `json:"cycle"`
	Readings []sensor.Reading     `json:"readings"`
	Series   map[string][]float64 `json:"series"`
}

func newHistoryResponse(res sampler.Result) HistoryResponse {
	series := make(map[string][]float64, sensor.NumMetrics)
	for _, m := range sensor.Metrics() {
		series[m.String()] = res.Snapshot.Get(m)
	}
	return HistoryResponse{
		TakenAt:  res.Snapshot.TakenAt,
		Cycle:    res.Snapshot.Cycle,
		Readings: res.Readings[:],
		Series:   series,
	}
}

// Server serves the auxiliary endpoints.
type Server struct {
	source     Source
	store      store.Store
	gatherer   prometheus.Gatherer
	addr       string
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a [Server] listening on addr. gatherer may be nil, in
// which case /metrics is not served.
func NewServer(src Source, st store.Store, gatherer prometheus.Gatherer, addr string, logger *slog.Logger) *Server {
	return &Server{
		source:   src,
		store:    st,
		gatherer: gatherer,
		addr:     addr,
		logger:   logger,
	}
}

// Handler returns the routing handler for all endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/live", s.handleLive)
	mux.HandleFunc("/api/sse", s.handleSSE)
	if s.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}))
	}
	return mux
}

// Start begins serving in a background goroutine.
//
// Start returns once the listener is bound, so an unusable address is
// reported synchronously. Cancelling ctx triggers a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to bind api server to %s: %w", s.addr, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		// request contexts derive from ctx so streaming handlers end on shutdown
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("api server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("api server shutdown error", "error", err)
		}
	}()

	s.logger.Info("api server listening", "addr", ln.Addr().String())
	return nil
}

// handleHistory returns the latest readings and history as JSON.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")

	if err := json.NewEncoder(w).Encode(newHistoryResponse(s.source.Latest())); err != nil {
		s.logger.Error("failed to encode history response", "error", err)
	}
}

// handleLive streams snapshots over a WebSocket: the current one on connect,
// then one per recorded cycle.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	// the read loop handles control frames and notices the client leaving
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.logger.Debug("websocket read error", "error", err)
				}
				return
			}
		}
	}()

	send := func(snap store.Snapshot) error {
		if err := conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); err != nil {
			return err
		}
		return conn.WriteJSON(snap)
	}

	if err := send(s.store.Snapshot()); err != nil {
		return
	}

	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				return
			}
			if err := send(snap); err != nil {
				return
			}

		case <-gone:
			return

		case <-r.Context().Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(time.Second))
			return
		}
	}
}

// handleSSE streams snapshots via Server-Sent Events.
//
// Writes carry deadlines so a blocked client cannot keep the handler from
// noticing shutdown.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)

	// may not be supported by every ResponseWriter
	deadlinesSupported := true

	writeAndFlush := func(snap store.Snapshot) error {
		data, err := json.Marshal(snap)
		if err != nil {
			return err
		}
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); err != nil {
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	if err := writeAndFlush(s.store.Snapshot()); err != nil {
		return
	}

	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				return
			}
			if err := writeAndFlush(snap); err != nil {
				return
			}

		case <-r.Context().Done():
			// fires on client disconnect and on server shutdown via BaseContext
			return
		}
	}
}
