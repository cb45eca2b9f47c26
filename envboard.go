package envboard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jpalmerr/envboard/internal/api"
	"github.com/jpalmerr/envboard/internal/metrics"
	"github.com/jpalmerr/envboard/internal/publish"
	"github.com/jpalmerr/envboard/internal/render"
	"github.com/jpalmerr/envboard/internal/sampler"
	"github.com/jpalmerr/envboard/internal/sensor"
	"github.com/jpalmerr/envboard/internal/server"
	"github.com/jpalmerr/envboard/internal/store"
)

const (
	defaultPort         = 80
	minSamplingInterval = 100 * time.Millisecond
)

// EnvBoard samples the attached sensors and serves the dashboard.
//
// EnvBoard is created using [New] with functional options and started with
// [EnvBoard.Start]. By default every dashboard request runs one sampling
// cycle; [WithSamplingInterval] moves sampling onto a timer.
//
// The typical lifecycle is:
//
//	eb, err := envboard.New(envboard.WithDevices(devices))
//	if err != nil {
//	    slog.Error("failed to create envboard", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	eb.Start(ctx) // blocks until context cancelled
type EnvBoard struct {
	title            string
	port             int
	refresh          time.Duration
	historySize      int
	samplingInterval time.Duration
	readTimeout      time.Duration
	writeTimeout     time.Duration
	sampler          Sampler
	apiAddr          string
	mqtt             *MQTTConfig
	logger           *slog.Logger
	cycleCallbacks   []func(CycleResult)
	connCallbacks    []func(ConnResult)
}

// New creates a new [EnvBoard] instance with the given options.
//
// Defaults:
//   - Port: 80
//   - Refresh: 10 seconds
//   - History size: 100 values per metric
//   - Sampling: one cycle per dashboard request
//
// Without [WithDevices] or [WithSampler] every reading falls back to zero.
func New(opts ...Option) (*EnvBoard, error) {
	cfg := &ebConfig{
		title:        render.DefaultTitle,
		port:         defaultPort,
		refresh:      render.DefaultRefresh,
		historySize:  store.DefaultCapacity,
		readTimeout:  server.DefaultReadTimeout,
		writeTimeout: server.DefaultWriteTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	s := cfg.sampler
	if s == nil {
		s = sensor.NewReader(cfg.devices, logger)
	}

	title := cfg.title
	if title == "" {
		title = render.DefaultTitle
	}

	return &EnvBoard{
		title:            title,
		port:             cfg.port,
		refresh:          cfg.refresh,
		historySize:      cfg.historySize,
		samplingInterval: cfg.samplingInterval,
		readTimeout:      cfg.readTimeout,
		writeTimeout:     cfg.writeTimeout,
		sampler:          s,
		apiAddr:          cfg.apiAddr,
		mqtt:             cfg.mqtt,
		logger:           logger,
		cycleCallbacks:   cfg.cycleCallbacks,
		connCallbacks:    cfg.connCallbacks,
	}, nil
}

// Start begins serving the dashboard and, in interval mode, sampling.
//
// Start is a blocking call that runs until the provided context is cancelled.
// During execution:
//
//   - The dashboard server accepts connections on the configured port
//   - Each request runs one sampling cycle, or shows the latest one in interval mode
//   - The auxiliary API server runs if an address was configured
//   - Cycle results are published to MQTT if a broker was configured
//
// Returns nil on graceful shutdown. Returns an error if a server fails to bind
// or the page template cannot be loaded.
func (eb *EnvBoard) Start(ctx context.Context) error {
	eb.logger.Info("envboard starting",
		"history_size", eb.historySize,
		"mode", eb.mode(),
	)

	// check if context already cancelled
	if ctx.Err() != nil {
		return nil
	}

	// servers already started are stopped if a later step fails
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	renderer, err := render.New(eb.title, eb.refresh)
	if err != nil {
		return err
	}

	history := store.NewMemoryStore(eb.historySize)
	collectors := metrics.New()

	callbacks := []func(sampler.Result){collectors.ObserveCycle}
	callbacks = append(callbacks, eb.cycleCallbacks...)

	var publisher *publish.Publisher
	if eb.mqtt != nil {
		// a failed connect only disables publishing
		publisher, err = publish.Dial(*eb.mqtt, eb.logger)
		if err != nil {
			eb.logger.Error("mqtt publishing disabled", "error", err)
		} else {
			callbacks = append(callbacks, publisher.Publish)
		}
	}

	cycle := sampler.NewCycle(eb.sampler, history, eb.logger, callbacks...)

	page := func() ([]byte, error) {
		var res sampler.Result
		if eb.samplingInterval > 0 {
			res = cycle.Latest()
		} else {
			res = cycle.Run()
		}
		return renderer.Render(res.Readings, res.Snapshot)
	}

	onConn := func(r server.ConnResult) {
		result := metrics.ResultOK
		if !r.OK() {
			result = string(r.Stage)
		}
		collectors.ObserveConnection(result)
		for _, cb := range eb.connCallbacks {
			invokeConnCallbackSafe(cb, r, eb.logger)
		}
	}

	var scheduler *sampler.Scheduler
	cleanup := func() {
		if scheduler != nil {
			scheduler.Stop()
		}
		if publisher != nil {
			publisher.Close()
		}
	}

	dashboardServer := server.NewServer(page, eb.port, eb.logger,
		server.WithTimeouts(eb.readTimeout, eb.writeTimeout),
		server.WithConnHook(onConn),
	)
	if err := dashboardServer.Start(ctx); err != nil {
		cleanup()
		return fmt.Errorf("failed to start dashboard server: %w", err)
	}
	eb.logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", eb.port))

	if eb.apiAddr != "" {
		apiServer := api.NewServer(cycle, history, collectors.Registry(), eb.apiAddr, eb.logger)
		if err := apiServer.Start(ctx); err != nil {
			cleanup()
			return fmt.Errorf("failed to start api server: %w", err)
		}
	}

	if eb.samplingInterval > 0 {
		scheduler = sampler.NewScheduler(cycle, eb.samplingInterval, eb.logger)
		scheduler.Start(ctx)
	}

	<-ctx.Done()
	cleanup()
	eb.logger.Info("envboard stopped")
	return nil
}

func (eb *EnvBoard) mode() string {
	if eb.samplingInterval > 0 {
		return "interval"
	}
	return "request"
}

// Title returns the dashboard title.
func (eb *EnvBoard) Title() string {
	return eb.title
}

// Port returns the configured dashboard port.
func (eb *EnvBoard) Port() int {
	return eb.port
}

// HistorySize returns the number of values kept per metric.
func (eb *EnvBoard) HistorySize() int {
	return eb.historySize
}

// SamplingInterval returns the timer period, or zero when sampling runs per
// request.
func (eb *EnvBoard) SamplingInterval() time.Duration {
	return eb.samplingInterval
}

// invokeConnCallbackSafe calls a connection callback with panic recovery.
// Panics are logged but do not propagate.
func invokeConnCallbackSafe(cb func(ConnResult), r ConnResult, logger *slog.Logger) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("connection callback panicked",
				"panic", p,
				"remote", r.Remote,
			)
		}
	}()
	cb(r)
}
