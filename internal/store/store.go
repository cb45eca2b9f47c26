package store

import (
	"encoding/json"
	"time"

	"github.com/jpalmerr/envboard/internal/sensor"
)

// DefaultCapacity is the number of samples kept per metric.
const DefaultCapacity = 100

// Snapshot is a consistent, point-in-time copy of every history buffer.
//
// Snapshot owns its slices; modifying them does not affect the store.
type Snapshot struct {
	// Series holds each metric's buffer, oldest first, indexed by [sensor.Metric].
	Series [sensor.NumMetrics][]float64

	// Cycle counts records since startup. Zero means only the pre-filled zeros.
	Cycle uint64

	// TakenAt is when the last record happened, zero before the first record.
	TakenAt time.Time
}

// Get returns the buffer for m.
func (s Snapshot) Get(m sensor.Metric) []float64 {
	return s.Series[m]
}

// Latest returns the newest value of m, or 0 for an empty snapshot.
func (s Snapshot) Latest(m sensor.Metric) float64 {
	series := s.Series[m]
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}

// Clone returns a deep copy of s.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{Cycle: s.Cycle, TakenAt: s.TakenAt}
	for i, series := range s.Series {
		if series != nil {
			out.Series[i] = append([]float64(nil), series...)
		}
	}
	return out
}

// MarshalJSON renders the series as an object keyed by metric name.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	series := make(map[sensor.Metric][]float64, sensor.NumMetrics)
	for _, m := range sensor.Metrics() {
		series[m] = s.Series[m]
	}
	return json.Marshal(struct {
		Cycle   uint64                      `json:"cycle"`
		TakenAt time.Time                   `json:"taken_at"`
		Series  map[sensor.Metric][]float64 `json:"series"`
	}{
		Cycle:   s.Cycle,
		TakenAt: s.TakenAt,
		Series:  series,
	})
}

// Store defines the history operations shared by the sampler, the renderer
// and the auxiliary API.
//
// Store implementations must be safe for concurrent access.
type Store interface {
	// Push appends one value to a single metric's buffer.
	Push(m sensor.Metric, v float64)

	// Record appends one value to every buffer as a single atomic update and
	// returns the snapshot taken under the same lock.
	Record(values [sensor.NumMetrics]float64) Snapshot

	// Latest returns the newest value of m.
	Latest(m sensor.Metric) float64

	// Snapshot returns a copy of every buffer.
	Snapshot() Snapshot

	// Subscribe returns a channel that receives a snapshot after each Record.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan Snapshot

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan Snapshot)
}
