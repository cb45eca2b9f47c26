package envboard

import (
	"github.com/jpalmerr/envboard/internal/publish"
	"github.com/jpalmerr/envboard/internal/sampler"
	"github.com/jpalmerr/envboard/internal/sensor"
	"github.com/jpalmerr/envboard/internal/server"
)

// Metric identifies one of the five tracked measurements.
type Metric = sensor.Metric

const (
	// TemperatureAHT is the AHT20 temperature in °C.
	TemperatureAHT = sensor.TemperatureAHT

	// TemperatureBME is the BME280 temperature in °C.
	TemperatureBME = sensor.TemperatureBME

	// Humidity is the AHT20 relative humidity in %.
	Humidity = sensor.Humidity

	// Pressure is the BME280 barometric pressure in kPa.
	Pressure = sensor.Pressure

	// VOC is the AGS10 total volatile organic compounds in ppb.
	VOC = sensor.VOC
)

// Reading is one metric's value from a sampling cycle, with its status and
// the fault that forced a fallback, if any.
type Reading = sensor.Reading

// Readings holds exactly one [Reading] per [Metric], indexed by metric.
type Readings = sensor.Readings

// CycleResult is the outcome of one sampling cycle: the readings, the history
// snapshot recorded with them, and how long sampling took.
//
// CycleResult values passed to callbacks share history slices with other
// callbacks and must be treated as read-only.
type CycleResult = sampler.Result

// ConnResult is the outcome of serving one dashboard connection.
type ConnResult = server.ConnResult

// MQTTConfig configures publishing of cycle results to an MQTT broker.
type MQTTConfig = publish.Config

// Device interfaces implemented by the drivers in this module and by any
// custom hardware integration passed to [WithDevices].
type (
	// VOCSensor reads total volatile organic compounds in ppb.
	VOCSensor = sensor.VOCSensor

	// HumiditySensor reads temperature in °C and relative humidity in %
	// after a readiness check.
	HumiditySensor = sensor.HumiditySensor

	// PressureSensor reads compensated temperature in °C and pressure in Pa.
	PressureSensor = sensor.PressureSensor

	// Devices is the set of attached sensors. Nil fields always fall back.
	Devices = sensor.Devices

	// Sampler produces one complete set of readings per call.
	Sampler = sensor.Sampler
)
