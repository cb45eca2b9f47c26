package sensor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime/debug"

	"github.com/google/uuid"
)

// pascalsPerKilopascal converts the BME280 compensated pressure to kPa.
const pascalsPerKilopascal = 1000.0

var (
	// ErrNotReady is the fault recorded when a device reports no data ready.
	ErrNotReady = errors.New("sensor not ready")

	// ErrNoDevice is the fault recorded for a metric whose device is not configured.
	ErrNoDevice = errors.New("no device configured")

	errUnknownFault = errors.New("unknown sensor fault")
	errNonFinite    = errors.New("malformed reading: non-finite value")
)

// VOCSensor reads total volatile organic compounds (AGS10 class).
type VOCSensor interface {
	// ReadTVOC returns the TVOC concentration in ppb.
	ReadTVOC() (int, error)
}

// HumiditySensor reads temperature and relative humidity behind a readiness
// check (AHT20 class).
type HumiditySensor interface {
	// IsReady reports whether a measurement can be read now.
	IsReady() bool
	// ReadTemperatureHumidity returns °C and %RH.
	ReadTemperatureHumidity() (temperature, humidity float64, err error)
}

// PressureSensor reads compensated temperature and pressure (BME280 class).
type PressureSensor interface {
	// ReadCompensated returns °C and Pa.
	ReadCompensated() (temperature, pressure float64, err error)
}

// Devices is the set of drivers a [Reader] samples. Any field may be nil; the
// metrics it would have produced are reported as fallback with [ErrNoDevice].
type Devices struct {
	VOC      VOCSensor
	Humidity HumiditySensor
	Pressure PressureSensor
}

// Sampler produces one complete reading set per call.
type Sampler interface {
	Sample() Readings
}

// Reader samples a fixed set of devices, isolating each device's failure.
//
// Reader holds no locks and performs no retries: a failed device is simply
// read again on the next call.
type Reader struct {
	devices Devices
	logger  *slog.Logger
}

// NewReader creates a [Reader] over devices. A nil logger uses slog.Default().
func NewReader(devices Devices, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{devices: devices, logger: logger}
}

// pair is the two-value result of the combined temperature reads.
type pair struct {
	temperature float64
	second      float64
}

// Sample reads every device once and returns one reading per metric.
func (r *Reader) Sample() Readings {
	var out Readings

	voc := r.readVOC()
	if v, err := voc.Unwrap(); err != nil {
		r.fallback(&out, err, VOC)
	} else {
		out[VOC] = okReading(VOC, float64(v))
	}

	th := r.readTemperatureHumidity()
	if v, err := th.Unwrap(); err != nil {
		r.fallback(&out, err, TemperatureAHT, Humidity)
	} else {
		out[TemperatureAHT] = okReading(TemperatureAHT, v.temperature)
		out[Humidity] = okReading(Humidity, v.second)
	}

	tp := r.readCompensated()
	if v, err := tp.Unwrap(); err != nil {
		r.fallback(&out, err, TemperatureBME, Pressure)
	} else {
		out[TemperatureBME] = okReading(TemperatureBME, v.temperature)
		out[Pressure] = okReading(Pressure, v.second/pascalsPerKilopascal)
	}

	return out
}

func (r *Reader) readVOC() Result[int] {
	if r.devices.VOC == nil {
		return Fault[int](ErrNoDevice)
	}
	return call(r.logger, "ags10", r.devices.VOC.ReadTVOC)
}

func (r *Reader) readTemperatureHumidity() Result[pair] {
	dev := r.devices.Humidity
	if dev == nil {
		return Fault[pair](ErrNoDevice)
	}
	return call(r.logger, "aht20", func() (pair, error) {
		if !dev.IsReady() {
			return pair{}, ErrNotReady
		}
		t, h, err := dev.ReadTemperatureHumidity()
		if err == nil && !finite(t, h) {
			err = errNonFinite
		}
		return pair{temperature: t, second: h}, err
	})
}

func (r *Reader) readCompensated() Result[pair] {
	dev := r.devices.Pressure
	if dev == nil {
		return Fault[pair](ErrNoDevice)
	}
	return call(r.logger, "bme280", func() (pair, error) {
		t, p, err := dev.ReadCompensated()
		if err == nil && !finite(t, p) {
			err = errNonFinite
		}
		return pair{temperature: t, second: p}, err
	})
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// fallback records a zero reading for each metric and logs the fault once.
func (r *Reader) fallback(out *Readings, fault error, metrics ...Metric) {
	for _, m := range metrics {
		out[m] = fallbackReading(m, fault)
	}

	level := slog.LevelWarn
	if errors.Is(fault, ErrNoDevice) {
		level = slog.LevelDebug
	}
	r.logger.Log(context.Background(), level, "sensor read failed, using fallback",
		"device", metrics[0].Device(),
		"metrics", len(metrics),
		"error", fault.Error(),
	)
}

// call runs one driver read and converts its outcome to a [Result]. A panic in
// the driver is recovered and reported as a fault carrying a correlation id.
func call[T any](logger *slog.Logger, device string, fn func() (T, error)) (res Result[T]) {
	defer func() {
		if rec := recover(); rec != nil {
			correlationID := uuid.NewString()
			logger.Error("sensor driver panic",
				"device", device,
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", rec),
				"stack", string(debug.Stack()),
			)
			res = Fault[T](fmt.Errorf("%s driver panic (correlation_id: %s)", device, correlationID))
		}
	}()

	v, err := fn()
	if err != nil {
		return Fault[T](fmt.Errorf("%s: %w", device, err))
	}
	return Ok(v)
}
