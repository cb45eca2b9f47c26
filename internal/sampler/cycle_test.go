package sampler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jpalmerr/envboard/internal/sensor"
	"github.com/jpalmerr/envboard/internal/store"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedHumidity replays one outcome per cycle.
type scriptedHumidity struct {
	mu    sync.Mutex
	steps []humidityStep
	i     int
}

type humidityStep struct {
	ready       bool
	temperature float64
	err         error
}

func (s *scriptedHumidity) current() humidityStep {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.steps[s.i%len(s.steps)]
}

func (s *scriptedHumidity) IsReady() bool {
	step := s.current()
	if !step.ready {
		s.advance()
	}
	return step.ready
}

func (s *scriptedHumidity) ReadTemperatureHumidity() (float64, float64, error) {
	step := s.current()
	s.advance()
	return step.temperature, 50, step.err
}

func (s *scriptedHumidity) advance() {
	s.mu.Lock()
	s.i++
	s.mu.Unlock()
}

type failingVOC struct{}

func (failingVOC) ReadTVOC() (int, error) { return 0, errors.New("ags10 exception") }

type notReady struct{}

func (notReady) IsReady() bool { return false }
func (notReady) ReadTemperatureHumidity() (float64, float64, error) {
	panic("must not read a device that is not ready")
}

type fixedPressure struct {
	temperature, pascals float64
}

func (f fixedPressure) ReadCompensated() (float64, float64, error) {
	return f.temperature, f.pascals, nil
}

// countingSampler returns a constant reading set and counts calls.
type countingSampler struct {
	calls atomic.Int32
	value float64
}

func (c *countingSampler) Sample() sensor.Readings {
	c.calls.Add(1)
	var rs sensor.Readings
	for _, m := range sensor.Metrics() {
		rs[m] = sensor.Reading{Metric: m, Value: c.value, Status: sensor.StatusOK}
	}
	return rs
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// TestCycle_EndToEnd runs one cycle where the AGS10 fails, the AHT20 is not
// ready and the BME280 returns 23.4°C and 101325 Pa.
func TestCycle_EndToEnd(t *testing.T) {
	st := store.NewMemoryStore(100)
	before := st.Snapshot()

	reader := sensor.NewReader(sensor.Devices{
		VOC:      failingVOC{},
		Humidity: notReady{},
		Pressure: fixedPressure{temperature: 23.4, pascals: 101325},
	}, testLogger())

	res := NewCycle(reader, st, testLogger()).Run()

	checks := []struct {
		metric sensor.Metric
		value  float64
		status sensor.Status
	}{
		{sensor.VOC, 0, sensor.StatusFallback},
		{sensor.Humidity, 0, sensor.StatusFallback},
		{sensor.TemperatureAHT, 0, sensor.StatusFallback},
		{sensor.TemperatureBME, 23.4, sensor.StatusOK},
		{sensor.Pressure, 101.325, sensor.StatusOK},
	}
	for _, c := range checks {
		rd := res.Readings.Get(c.metric)
		if rd.Status != c.status || !approxEqual(rd.Value, c.value) {
			t.Errorf("reading %v = %v (%v), want %v (%v)", c.metric, rd.Value, rd.Status, c.value, c.status)
		}
		if got := res.Snapshot.Latest(c.metric); !approxEqual(got, c.value) {
			t.Errorf("snapshot latest %v = %v, want %v", c.metric, got, c.value)
		}
	}

	for _, m := range sensor.Metrics() {
		series := res.Snapshot.Get(m)
		if len(series) != 100 {
			t.Fatalf("len(%v) = %d, want 100", m, len(series))
		}
		if !reflect.DeepEqual(series[:99], before.Get(m)[1:]) {
			t.Errorf("%v: index 0 was not dropped", m)
		}
	}
}

// TestCycle_ScriptedSequence replays ok, fault, ok and checks the tail.
func TestCycle_ScriptedSequence(t *testing.T) {
	st := store.NewMemoryStore(100)
	aht := &scriptedHumidity{steps: []humidityStep{
		{ready: true, temperature: 21.5},
		{ready: true, err: errors.New("crc mismatch")},
		{ready: true, temperature: 22.0},
	}}
	cycle := NewCycle(sensor.NewReader(sensor.Devices{Humidity: aht}, testLogger()), st, testLogger())

	for i := 0; i < 3; i++ {
		cycle.Run()
	}

	series := st.Snapshot().Get(sensor.TemperatureAHT)
	if len(series) != 100 {
		t.Fatalf("len = %d, want 100", len(series))
	}
	if tail := series[97:]; !reflect.DeepEqual(tail, []float64{21.5, 0, 22.0}) {
		t.Errorf("tail = %v, want [21.5 0 22]", tail)
	}
}

func TestCycle_Callbacks(t *testing.T) {
	var got []uint64
	cb := func(r Result) { got = append(got, r.Snapshot.Cycle) }
	bad := func(Result) { panic("callback bug") }

	cycle := NewCycle(&countingSampler{value: 1}, store.NewMemoryStore(10), testLogger(), bad, cb)
	cycle.Run()
	cycle.Run()

	if !reflect.DeepEqual(got, []uint64{1, 2}) {
		t.Errorf("callback cycles = %v, want [1 2]", got)
	}
}

func TestCycle_Latest(t *testing.T) {
	st := store.NewMemoryStore(10)
	cycle := NewCycle(&countingSampler{value: 7}, st, testLogger())

	before := cycle.Latest()
	for _, m := range sensor.Metrics() {
		if before.Readings.Get(m).Status != sensor.StatusFallback {
			t.Errorf("Latest() before any cycle: %v status = %v, want fallback", m, before.Readings.Get(m).Status)
		}
	}
	if before.Snapshot.Cycle != 0 {
		t.Errorf("Latest().Snapshot.Cycle = %d, want 0", before.Snapshot.Cycle)
	}

	cycle.Run()
	after := cycle.Latest()
	if after.Readings.Get(sensor.VOC).Value != 7 || !after.Readings.Get(sensor.VOC).OK() {
		t.Errorf("Latest() tvoc = %+v, want ok 7", after.Readings.Get(sensor.VOC))
	}
	if after.Snapshot.Cycle != 1 {
		t.Errorf("Latest().Snapshot.Cycle = %d, want 1", after.Snapshot.Cycle)
	}
}

func TestCycle_LatestKeepsRecordedSnapshot(t *testing.T) {
	st := store.NewMemoryStore(3)
	cycle := NewCycle(&countingSampler{value: 5}, st, testLogger())
	cycle.Run()

	// a later record outside the cycle must not leak into Latest
	st.Record([sensor.NumMetrics]float64{9, 9, 9, 9, 9})

	got := cycle.Latest()
	if got.Snapshot.Cycle != 1 {
		t.Errorf("Latest().Snapshot.Cycle = %d, want 1", got.Snapshot.Cycle)
	}
	if tail := got.Snapshot.Latest(sensor.VOC); tail != 5 {
		t.Errorf("Latest() VOC tail = %v, want 5", tail)
	}
}

// panicSampler panics on its first call and then reports ok readings.
type panicSampler struct {
	countingSampler
}

func (p *panicSampler) Sample() sensor.Readings {
	if p.calls.Load() == 0 {
		p.calls.Add(1)
		panic("sampler blew up")
	}
	return p.countingSampler.Sample()
}

func TestCycle_SamplerPanicFallsBack(t *testing.T) {
	st := store.NewMemoryStore(3)
	cycle := NewCycle(&panicSampler{countingSampler{value: 3}}, st, testLogger())

	first := cycle.Run()
	if first.Readings.Fallbacks() != sensor.NumMetrics {
		t.Errorf("Fallbacks() = %d, want %d", first.Readings.Fallbacks(), sensor.NumMetrics)
	}
	if fault := first.Readings.Get(sensor.Pressure).Fault; fault == nil || !strings.Contains(fault.Error(), "correlation_id") {
		t.Errorf("Fault = %v, want correlation id", fault)
	}
	if first.Snapshot.Cycle != 1 {
		t.Errorf("Snapshot.Cycle = %d, want 1", first.Snapshot.Cycle)
	}

	second := cycle.Run()
	if second.Readings.Fallbacks() != 0 {
		t.Errorf("second Fallbacks() = %d, want 0", second.Readings.Fallbacks())
	}
	if got := second.Snapshot.Series[sensor.Pressure]; !reflect.DeepEqual(got, []float64{0, 0, 3}) {
		t.Errorf("pressure series = %v, want [0 0 3]", got)
	}
}

func TestCycle_ConcurrentRunsAreSerialized(t *testing.T) {
	st := store.NewMemoryStore(10)
	cycle := NewCycle(&countingSampler{value: 1}, st, testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cycle.Run()
		}()
	}
	wg.Wait()

	if got := st.Snapshot().Cycle; got != 20 {
		t.Errorf("Cycle = %d, want 20", got)
	}
}

func TestResult_MarshalJSON(t *testing.T) {
	res := NewCycle(&countingSampler{value: 2}, store.NewMemoryStore(3), testLogger()).Run()

	data, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	for _, want := range []string{`"readings":[`, `"history":{`, `"cycle":1`, `"metric":"tvoc"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("json missing %s: %s", want, data)
		}
	}
}
