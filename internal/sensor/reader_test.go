package sensor

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeVOC struct {
	value int
	err   error
	panic bool
	calls int
}

func (f *fakeVOC) ReadTVOC() (int, error) {
	f.calls++
	if f.panic {
		panic("bus exploded")
	}
	return f.value, f.err
}

type fakeHumidity struct {
	ready       bool
	temperature float64
	humidity    float64
	err         error
	reads       int
}

func (f *fakeHumidity) IsReady() bool { return f.ready }

func (f *fakeHumidity) ReadTemperatureHumidity() (float64, float64, error) {
	f.reads++
	return f.temperature, f.humidity, f.err
}

type fakePressure struct {
	temperature float64
	pressure    float64
	err         error
}

func (f *fakePressure) ReadCompensated() (float64, float64, error) {
	return f.temperature, f.pressure, f.err
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestReader_AllDevicesOK(t *testing.T) {
	r := NewReader(Devices{
		VOC:      &fakeVOC{value: 120},
		Humidity: &fakeHumidity{ready: true, temperature: 21.5, humidity: 40.25},
		Pressure: &fakePressure{temperature: 22.1, pressure: 100500},
	}, testLogger())

	got := r.Sample()

	want := map[Metric]float64{
		VOC:            120,
		TemperatureAHT: 21.5,
		Humidity:       40.25,
		TemperatureBME: 22.1,
		Pressure:       100.5,
	}
	for m, v := range want {
		rd := got.Get(m)
		if rd.Metric != m {
			t.Errorf("Get(%v).Metric = %v", m, rd.Metric)
		}
		if !rd.OK() {
			t.Errorf("Get(%v).Status = %v, want ok", m, rd.Status)
		}
		if !approxEqual(rd.Value, v) {
			t.Errorf("Get(%v).Value = %v, want %v", m, rd.Value, v)
		}
		if rd.Fault != nil {
			t.Errorf("Get(%v).Fault = %v, want nil", m, rd.Fault)
		}
	}
	if got.Fallbacks() != 0 {
		t.Errorf("Fallbacks() = %d, want 0", got.Fallbacks())
	}
}

// TestReader_MixedFaults mirrors a cycle where the AGS10 errors, the AHT20 is
// not ready and the BME280 succeeds.
func TestReader_MixedFaults(t *testing.T) {
	aht := &fakeHumidity{ready: false, temperature: 99, humidity: 99}
	r := NewReader(Devices{
		VOC:      &fakeVOC{err: errors.New("i2c nack")},
		Humidity: aht,
		Pressure: &fakePressure{temperature: 23.4, pressure: 101325},
	}, testLogger())

	got := r.Sample()

	for _, m := range []Metric{VOC, TemperatureAHT, Humidity} {
		rd := got.Get(m)
		if rd.Status != StatusFallback {
			t.Errorf("Get(%v).Status = %v, want fallback", m, rd.Status)
		}
		if rd.Value != 0 {
			t.Errorf("Get(%v).Value = %v, want 0", m, rd.Value)
		}
		if rd.Fault == nil {
			t.Errorf("Get(%v).Fault = nil, want error", m)
		}
	}

	if !errors.Is(got.Get(Humidity).Fault, ErrNotReady) {
		t.Errorf("humidity fault = %v, want ErrNotReady", got.Get(Humidity).Fault)
	}
	if aht.reads != 0 {
		t.Errorf("ReadTemperatureHumidity called %d times on a not-ready device, want 0", aht.reads)
	}
	if !strings.Contains(got.Get(VOC).Fault.Error(), "i2c nack") {
		t.Errorf("voc fault = %v, want to mention driver error", got.Get(VOC).Fault)
	}

	if rd := got.Get(TemperatureBME); !rd.OK() || !approxEqual(rd.Value, 23.4) {
		t.Errorf("temperature_bme280 = %+v, want ok 23.4", rd)
	}
	if rd := got.Get(Pressure); !rd.OK() || !approxEqual(rd.Value, 101.325) {
		t.Errorf("pressure = %+v, want ok 101.325", rd)
	}
	if got.Fallbacks() != 3 {
		t.Errorf("Fallbacks() = %d, want 3", got.Fallbacks())
	}
}

func TestReader_ReadErrorAfterReady(t *testing.T) {
	r := NewReader(Devices{
		Humidity: &fakeHumidity{ready: true, temperature: 20, humidity: 50, err: errors.New("crc mismatch")},
	}, testLogger())

	got := r.Sample()
	if got.Get(TemperatureAHT).OK() || got.Get(Humidity).OK() {
		t.Error("AHT read error should downgrade both AHT metrics to fallback")
	}
	if got.Get(TemperatureAHT).Value != 0 || got.Get(Humidity).Value != 0 {
		t.Error("fallback values must be 0")
	}
}

func TestReader_NilDevicesYieldCompleteSet(t *testing.T) {
	r := NewReader(Devices{}, testLogger())

	got := r.Sample()
	for _, m := range Metrics() {
		rd := got.Get(m)
		if rd.Metric != m {
			t.Errorf("reading at %d has Metric %v", m, rd.Metric)
		}
		if rd.Status != StatusFallback {
			t.Errorf("Get(%v).Status = %v, want fallback", m, rd.Status)
		}
		if !errors.Is(rd.Fault, ErrNoDevice) {
			t.Errorf("Get(%v).Fault = %v, want ErrNoDevice", m, rd.Fault)
		}
	}
}

func TestReader_DriverPanicIsFault(t *testing.T) {
	voc := &fakeVOC{panic: true}
	r := NewReader(Devices{
		VOC:      voc,
		Pressure: &fakePressure{temperature: 20, pressure: 100000},
	}, testLogger())

	got := r.Sample()

	rd := got.Get(VOC)
	if rd.Status != StatusFallback || rd.Value != 0 {
		t.Errorf("Get(VOC) = %+v, want fallback 0", rd)
	}
	if rd.Fault == nil || !strings.Contains(rd.Fault.Error(), "correlation_id") {
		t.Errorf("panic fault = %v, want correlation id", rd.Fault)
	}
	if !got.Get(Pressure).OK() {
		t.Error("a panicking VOC driver must not affect the BME280 readings")
	}
}

// TestReader_NoRetries verifies each Sample calls each driver exactly once.
func TestReader_NoRetries(t *testing.T) {
	voc := &fakeVOC{err: errors.New("timeout")}
	r := NewReader(Devices{VOC: voc}, testLogger())

	r.Sample()
	r.Sample()

	if voc.calls != 2 {
		t.Errorf("ReadTVOC calls = %d, want 2", voc.calls)
	}
}

func TestResult(t *testing.T) {
	ok := Ok(42)
	if ok.IsFault() {
		t.Error("Ok().IsFault() = true")
	}
	if v, err := ok.Unwrap(); v != 42 || err != nil {
		t.Errorf("Ok().Unwrap() = %v, %v", v, err)
	}

	boom := errors.New("boom")
	f := Fault[int](boom)
	if !f.IsFault() {
		t.Error("Fault().IsFault() = false")
	}
	if v, err := f.Unwrap(); v != 0 || !errors.Is(err, boom) {
		t.Errorf("Fault().Unwrap() = %v, %v", v, err)
	}

	if !Fault[int](nil).IsFault() {
		t.Error("Fault(nil) must still be a fault")
	}
}

func TestReader_NonFiniteIsFault(t *testing.T) {
	r := NewReader(Devices{
		Pressure: &fakePressure{temperature: math.NaN(), pressure: 100000},
		Humidity: &fakeHumidity{ready: true, temperature: 20, humidity: math.Inf(1)},
	}, testLogger())

	got := r.Sample()
	for _, m := range []Metric{TemperatureBME, Pressure, TemperatureAHT, Humidity} {
		if rd := got.Get(m); rd.OK() || rd.Value != 0 {
			t.Errorf("Get(%v) = %+v, want fallback 0 for non-finite driver output", m, rd)
		}
	}
}
