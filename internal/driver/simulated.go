package driver

import (
	"math"
	"math/rand/v2"
	"sync"
)

// Simulated stands in for all three devices when no hardware is attached.
// Values follow a bounded random walk around typical indoor conditions.
type Simulated struct {
	mu  sync.Mutex
	rng *rand.Rand

	temperature float64
	humidity    float64
	pressure    float64
	tvoc        float64

	// NotReadyEvery makes every Nth IsReady call report false. Zero disables it.
	NotReadyEvery int
	calls         int
}

// NewSimulated returns a simulated device set seeded with seed.
func NewSimulated(seed uint64) *Simulated {
	return &Simulated{
		rng:         rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		temperature: 21.5,
		humidity:    45,
		pressure:    101325,
		tvoc:        150,
	}
}

// ReadTVOC returns a simulated TVOC in ppb.
func (s *Simulated) ReadTVOC() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tvoc = s.walk(s.tvoc, 8, 0, 2000)
	return int(math.Round(s.tvoc)), nil
}

// IsReady reports false on every NotReadyEvery-th call.
func (s *Simulated) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.NotReadyEvery <= 0 || s.calls%s.NotReadyEvery != 0
}

// ReadTemperatureHumidity returns a simulated °C and %RH.
func (s *Simulated) ReadTemperatureHumidity() (float64, float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.temperature = s.walk(s.temperature, 0.1, -10, 45)
	s.humidity = s.walk(s.humidity, 0.5, 5, 95)
	return s.temperature, s.humidity, nil
}

// ReadCompensated returns a simulated °C and Pa. The temperature tracks the
// humidity sensor's with a small offset, as two parts on one board would.
func (s *Simulated) ReadCompensated() (float64, float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pressure = s.walk(s.pressure, 15, 95000, 106000)
	return s.temperature + 0.3 + s.rng.NormFloat64()*0.05, s.pressure, nil
}

func (s *Simulated) walk(v, step, lo, hi float64) float64 {
	v += s.rng.NormFloat64() * step
	return math.Max(lo, math.Min(hi, v))
}
