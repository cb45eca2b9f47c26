// Package envboard samples a small set of I2C environmental sensors and
// serves their current values and recent history as a self-refreshing
// HTML dashboard.
//
// Three devices are supported out of the box: an AGS10 (TVOC), an AHT20
// (temperature and humidity) and a BME280 (temperature and pressure). They
// yield five metrics, each kept in a fixed-size rolling history.
//
// # Quick Start
//
//	eb, _ := envboard.New(
//	    envboard.WithDevices(devices),
//	    envboard.WithPort(8080),
//	)
//
//	// Set up graceful shutdown on SIGINT/SIGTERM
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	eb.Start(ctx) // blocks until context is cancelled
//
// # Sampling
//
// By default every dashboard request runs one sampling cycle: each sensor is
// read once, the values are appended to their histories, and the page is
// rendered from the readings and a snapshot of the histories. A sensor that
// fails (bus error, not ready, bad checksum, panic) contributes 0 to that
// cycle and the others are unaffected.
//
// [WithSamplingInterval] moves sampling onto a timer; requests then render
// the most recent cycle.
//
// # Fault Tolerance
//
// A connection that fails while reading the request or writing the response
// is closed and logged; the server keeps accepting. Sensor faults never reach
// the connection.
//
// # Architecture
//
// envboard consists of several internal packages (under internal/):
//
//   - internal/sensor: metrics, readings and the fault-isolating reader
//   - internal/driver: periph.io drivers for AGS10, AHT20 and BME280, plus simulated devices
//   - internal/store: rolling histories with snapshots and pub/sub
//   - internal/sampler: the sampling cycle and the optional interval scheduler
//   - internal/render: the HTML page renderer
//   - internal/server: the dashboard's TCP request server
//   - internal/api: the optional HTTP server for metrics, JSON history and live streams
//   - internal/metrics: Prometheus collectors
//   - internal/publish: MQTT publishing of cycle results
//   - dashboard: embedded page template
//
// The internal packages are not part of the public API and may change
// without notice.
package envboard
