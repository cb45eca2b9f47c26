package sensor

import "fmt"

// Metric identifies one tracked series.
type Metric int

// The metric set. The order is the order of history buffers and charts.
const (
	TemperatureAHT Metric = iota
	TemperatureBME
	Humidity
	Pressure
	VOC
)

// NumMetrics is the number of tracked series.
const NumMetrics = 5

// Unit is the display unit of a metric.
type Unit string

const (
	UnitCelsius    Unit = "°C"
	UnitPercent    Unit = "%"
	UnitKilopascal Unit = "kPa"
	UnitPPB        Unit = "ppb"
)

type metricInfo struct {
	key    string
	label  string
	device string
	unit   Unit
}

var metricTable = [NumMetrics]metricInfo{
	TemperatureAHT: {key: "temperature_aht20", label: "Temperature (AHT20)", device: "aht20", unit: UnitCelsius},
	TemperatureBME: {key: "temperature_bme280", label: "Temperature (BME280)", device: "bme280", unit: UnitCelsius},
	Humidity:       {key: "humidity", label: "Humidity", device: "aht20", unit: UnitPercent},
	Pressure:       {key: "pressure", label: "Pressure", device: "bme280", unit: UnitKilopascal},
	VOC:            {key: "tvoc", label: "TVOC", device: "ags10", unit: UnitPPB},
}

// Metrics returns every metric in buffer order.
func Metrics() []Metric {
	return []Metric{TemperatureAHT, TemperatureBME, Humidity, Pressure, VOC}
}

// Valid reports whether m is one of the known metrics.
func (m Metric) Valid() bool {
	return m >= 0 && m < NumMetrics
}

// String returns the stable key used in JSON, MQTT payloads and metric labels.
func (m Metric) String() string {
	if !m.Valid() {
		return fmt.Sprintf("metric(%d)", int(m))
	}
	return metricTable[m].key
}

// Label returns the human readable name shown on the dashboard.
func (m Metric) Label() string {
	if !m.Valid() {
		return m.String()
	}
	return metricTable[m].label
}

// Device returns the name of the device that produces m.
func (m Metric) Device() string {
	if !m.Valid() {
		return ""
	}
	return metricTable[m].device
}

// Unit returns the display unit of m.
func (m Metric) Unit() Unit {
	if !m.Valid() {
		return ""
	}
	return metricTable[m].unit
}

// Integral reports whether values of m are whole numbers (TVOC counts in ppb).
func (m Metric) Integral() bool {
	return m == VOC
}

// MarshalText implements encoding.TextMarshaler so metrics can key JSON maps.
func (m Metric) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("invalid metric %d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Metric) UnmarshalText(text []byte) error {
	parsed, err := ParseMetric(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseMetric returns the metric whose key is s.
func ParseMetric(s string) (Metric, error) {
	for i, info := range metricTable {
		if info.key == s {
			return Metric(i), nil
		}
	}
	return 0, fmt.Errorf("unknown metric %q", s)
}
