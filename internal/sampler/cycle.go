package sampler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/envboard/internal/sensor"
	"github.com/jpalmerr/envboard/internal/store"
)

// errNotSampled is the fault of readings reported before the first cycle.
var errNotSampled = errors.New("no sampling cycle has run yet")

// Result is the outcome of one sampling cycle.
type Result struct {
	// Readings are the raw readings of the cycle, including status and unit.
	Readings sensor.Readings

	// Snapshot is the history as recorded by the cycle.
	Snapshot store.Snapshot

	// Duration is how long the sensor reads took.
	Duration time.Duration
}

// MarshalJSON renders the result for the JSON API.
func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Readings   []sensor.Reading `json:"readings"`
		Snapshot   store.Snapshot   `json:"history"`
		DurationMs float64          `json:"duration_ms"`
	}{
		Readings:   r.Readings[:],
		Snapshot:   r.Snapshot,
		DurationMs: float64(r.Duration.Microseconds()) / 1000,
	})
}

// Cycle runs sampling cycles against one sampler and one store.
//
// Run is safe for concurrent use; concurrent calls are serialized so the
// readings returned always belong to the snapshot returned with them.
type Cycle struct {
	sampler   sensor.Sampler
	store     store.Store
	logger    *slog.Logger
	callbacks []func(Result)

	runMu sync.Mutex

	mu   sync.RWMutex
	last Result
	ran  bool
}

// NewCycle creates a [Cycle]. Callbacks run synchronously after every cycle,
// in order; a panicking callback is logged and does not affect the cycle.
func NewCycle(s sensor.Sampler, st store.Store, logger *slog.Logger, callbacks ...func(Result)) *Cycle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cycle{
		sampler:   s,
		store:     st,
		logger:    logger,
		callbacks: callbacks,
	}
}

// Run samples every sensor once, records the values and returns the readings
// with the snapshot recorded alongside them.
func (c *Cycle) Run() Result {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	start := time.Now()
	readings := c.sample()
	elapsed := time.Since(start)

	snap := c.store.Record(readings.Values())

	res := Result{Readings: readings, Snapshot: snap, Duration: elapsed}

	c.mu.Lock()
	c.last = res
	c.ran = true
	c.mu.Unlock()

	c.logger.Debug("sampling cycle completed",
		"cycle", snap.Cycle,
		"fallbacks", readings.Fallbacks(),
		"duration_ms", elapsed.Milliseconds(),
	)

	for _, cb := range c.callbacks {
		invokeCallbackSafe(cb, res, c.logger)
	}
	return res
}

// sample runs the sampler. A panic is recovered and every metric falls back
// for this cycle.
func (c *Cycle) sample() (readings sensor.Readings) {
	defer func() {
		if rec := recover(); rec != nil {
			correlationID := uuid.NewString()
			c.logger.Error("sampler panicked",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", rec),
				"stack", string(debug.Stack()),
			)
			readings = fallbacks(fmt.Errorf("sampler panic (correlation_id: %s)", correlationID))
		}
	}()
	return c.sampler.Sample()
}

// Latest returns the most recent cycle with the snapshot recorded by that
// cycle. Before the first cycle every reading is a fallback and the snapshot
// is the store's initial state.
func (c *Cycle) Latest() Result {
	c.mu.RLock()
	res, ran := c.last, c.ran
	c.mu.RUnlock()

	if !ran {
		res.Readings = fallbacks(errNotSampled)
		res.Snapshot = c.store.Snapshot()
	}
	return res
}

func fallbacks(fault error) sensor.Readings {
	var rs sensor.Readings
	for _, m := range sensor.Metrics() {
		rs[m] = sensor.Reading{Metric: m, Status: sensor.StatusFallback, Fault: fault}
	}
	return rs
}

// invokeCallbackSafe calls a cycle callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(Result), res Result, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("cycle callback panicked",
				"panic", r,
				"cycle", res.Snapshot.Cycle,
			)
		}
	}()
	cb(res)
}
