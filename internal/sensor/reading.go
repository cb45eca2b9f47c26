package sensor

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Status is the validity tag of a [Reading].
type Status int

const (
	// StatusOK marks a value that was measured.
	StatusOK Status = iota
	// StatusFallback marks a substituted zero after a fault or readiness miss.
	StatusFallback
)

// String returns "ok" or "fallback".
func (s Status) String() string {
	if s == StatusFallback {
		return "fallback"
	}
	return "ok"
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "ok":
		*s = StatusOK
	case "fallback":
		*s = StatusFallback
	default:
		return fmt.Errorf("unknown reading status %q", text)
	}
	return nil
}

// Reading is one normalized value for a single metric at a point in time.
type Reading struct {
	Metric Metric
	Value  float64
	Status Status

	// Fault is the reason a fallback was substituted. nil for ok readings.
	Fault error
}

func okReading(m Metric, v float64) Reading {
	return Reading{Metric: m, Value: v, Status: StatusOK}
}

func fallbackReading(m Metric, fault error) Reading {
	return Reading{Metric: m, Value: 0, Status: StatusFallback, Fault: fault}
}

// OK reports whether the value was measured.
func (r Reading) OK() bool {
	return r.Status == StatusOK
}

// Unit returns the unit of the reading's metric.
func (r Reading) Unit() Unit {
	return r.Metric.Unit()
}

// MarshalJSON renders the reading with its unit and a string fault.
func (r Reading) MarshalJSON() ([]byte, error) {
	value := r.Value
	if r.Metric.Integral() {
		value = math.Round(value)
	}
	out := struct {
		Metric Metric  `json:"metric"`
		Value  float64 `json:"value"`
		Unit   Unit    `json:"unit"`
		Status Status  `json:"status"`
		Fault  string  `json:"fault,omitempty"`
	}{
		Metric: r.Metric,
		Value:  value,
		Unit:   r.Unit(),
		Status: r.Status,
	}
	if r.Fault != nil {
		out.Fault = r.Fault.Error()
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the form written by MarshalJSON. The unit is implied
// by the metric and the fault comes back as an opaque error.
func (r *Reading) UnmarshalJSON(data []byte) error {
	var in struct {
		Metric Metric  `json:"metric"`
		Value  float64 `json:"value"`
		Status Status  `json:"status"`
		Fault  string  `json:"fault"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = Reading{Metric: in.Metric, Value: in.Value, Status: in.Status}
	if in.Fault != "" {
		r.Fault = errors.New(in.Fault)
	}
	return nil
}

// Readings holds exactly one [Reading] per metric, indexed by [Metric].
type Readings [NumMetrics]Reading

// Get returns the reading for m.
func (rs Readings) Get(m Metric) Reading {
	return rs[m]
}

// Values returns the numeric values in metric order.
func (rs Readings) Values() [NumMetrics]float64 {
	var out [NumMetrics]float64
	for i, r := range rs {
		out[i] = r.Value
	}
	return out
}

// Fallbacks returns how many readings were substituted.
func (rs Readings) Fallbacks() int {
	n := 0
	for _, r := range rs {
		if r.Status == StatusFallback {
			n++
		}
	}
	return n
}
