package sampler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// minInterval floors the sampling interval to keep the bus from being hammered.
const minInterval = 100 * time.Millisecond

// Runner runs one sampling cycle.
type Runner interface {
	Run() Result
}

// Scheduler runs sampling cycles at a fixed interval.
//
// The scheduler runs one cycle immediately on start, then one per tick. A
// cycle that overruns the interval delays the next tick rather than
// overlapping it.
//
// All lifecycle methods (Start, Stop) are safe for concurrent use.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	logger   *slog.Logger
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewScheduler creates a [Scheduler] that calls runner every interval.
// Intervals below 100ms are raised to 100ms.
func NewScheduler(runner Runner, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval < minInterval {
		interval = minInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		runner:   runner,
		interval: interval,
		logger:   logger,
	}
}

// Interval returns the effective sampling interval.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Start begins the sampling loop in a background goroutine.
//
// Start is non-blocking. The loop runs until [Scheduler.Stop] is called or
// ctx is cancelled. If ctx is nil, context.Background() is used.
// Start is idempotent; if Stop was called before Start, Start is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true

	if ctx == nil {
		ctx = context.Background()
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Info("background sampling started", "interval", s.interval.String())

	go func() {
		defer s.wg.Done()

		s.runner.Run()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				s.runner.Run()
			}
		}
	}()
}

// Stop halts the scheduler and waits for an in-flight cycle to finish.
//
// Stop is idempotent and safe to call before Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		if s.cancel != nil {
			s.cancel()
		}
	}
	s.mu.Unlock()

	s.wg.Wait()
}
