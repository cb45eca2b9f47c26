// Package driver implements the I2C devices sampled by the dashboard.
//
// Devices are built on periph.io:
//
//   - [AGS10]: TVOC sensor, register level over an i2c.Dev
//   - [AHT20]: temperature and humidity with a readiness check
//   - [BME280]: compensated temperature and pressure via periph's bmxx80
//   - [BME280Devfs]: the same BME280 read through /dev/i2c-N with quhar/bme280
//   - [Simulated]: random-walk values for running without hardware
//
// Each device satisfies one of the narrow interfaces in the sensor package.
// Devices are safe for concurrent use; every transaction holds the device's
// own mutex so a background sampler and a probe never interleave on the bus.
package driver
