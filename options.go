package envboard

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ebConfig holds mutable state during EnvBoard construction.
type ebConfig struct {
	title            string
	port             int
	refresh          time.Duration
	historySize      int
	samplingInterval time.Duration
	readTimeout      time.Duration
	writeTimeout     time.Duration
	devices          Devices
	sampler          Sampler
	apiAddr          string
	mqtt             *MQTTConfig
	logger           *slog.Logger
	cycleCallbacks   []func(CycleResult)
	connCallbacks    []func(ConnResult)
}

// Option is a function that configures an [EnvBoard] instance during construction.
//
// Options return an error if validation fails.
type Option func(*ebConfig) error

// WithTitle sets the dashboard title shown in the browser tab and page header.
//
// If not specified, defaults to "Sensor Dashboard".
func WithTitle(title string) Option {
	return func(cfg *ebConfig) error {
		cfg.title = title
		return nil
	}
}

// WithPort sets the TCP port of the dashboard server. Defaults to 80.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *ebConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithRefresh sets how often the browser reloads the page. Defaults to 10s.
//
// Returns an error if d is shorter than one second.
func WithRefresh(d time.Duration) Option {
	return func(cfg *ebConfig) error {
		if d < time.Second {
			return fmt.Errorf("refresh must be at least 1s, got %s", d)
		}
		cfg.refresh = d
		return nil
	}
}

// WithHistorySize sets how many values are kept per metric. Defaults to 100.
//
// Returns an error if n is less than one.
func WithHistorySize(n int) Option {
	return func(cfg *ebConfig) error {
		if n < 1 {
			return errors.New("history size must be positive")
		}
		cfg.historySize = n
		return nil
	}
}

// WithSamplingInterval switches from sampling on every dashboard request to
// sampling on a timer. Requests then show the most recent cycle.
//
// Returns an error if d is shorter than 100ms.
func WithSamplingInterval(d time.Duration) Option {
	return func(cfg *ebConfig) error {
		if d < minSamplingInterval {
			return fmt.Errorf("sampling interval must be at least %s, got %s", minSamplingInterval, d)
		}
		cfg.samplingInterval = d
		return nil
	}
}

// WithServerTimeouts sets the per-connection read and write deadlines of the
// dashboard server. Zero disables a deadline. Both default to 5s.
func WithServerTimeouts(read, write time.Duration) Option {
	return func(cfg *ebConfig) error {
		if read < 0 || write < 0 {
			return errors.New("server timeouts cannot be negative")
		}
		cfg.readTimeout = read
		cfg.writeTimeout = write
		return nil
	}
}

// WithDevices sets the attached sensors. Any nil device reports fallback
// readings on every cycle.
//
// Example:
//
//	eb, err := envboard.New(
//	    envboard.WithDevices(envboard.Devices{
//	        VOC:      ags10,
//	        Humidity: aht20,
//	        Pressure: bme280,
//	    }),
//	)
func WithDevices(d Devices) Option {
	return func(cfg *ebConfig) error {
		cfg.devices = d
		return nil
	}
}

// WithSampler replaces the built-in sensor reader. It takes precedence over
// [WithDevices].
func WithSampler(s Sampler) Option {
	return func(cfg *ebConfig) error {
		if s == nil {
			return errors.New("sampler cannot be nil")
		}
		cfg.sampler = s
		return nil
	}
}

// WithAPIAddr enables the auxiliary HTTP server (Prometheus metrics, JSON
// history and live stream) on addr, e.g. ":9100".
func WithAPIAddr(addr string) Option {
	return func(cfg *ebConfig) error {
		if addr == "" {
			return errors.New("api address cannot be empty")
		}
		cfg.apiAddr = addr
		return nil
	}
}

// WithMQTT publishes every cycle's readings to an MQTT broker.
//
// Returns an error if no broker is set.
func WithMQTT(c MQTTConfig) Option {
	return func(cfg *ebConfig) error {
		if c.Broker == "" {
			return errors.New("mqtt broker cannot be empty")
		}
		if c.QoS > 2 {
			return fmt.Errorf("mqtt qos must be 0, 1 or 2, got %d", c.QoS)
		}
		cfg.mqtt = &c
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the EnvBoard instance.
//
// If not specified, [slog.Default] is used. Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *ebConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithCycleCallback registers a function to be called after every sampling
// cycle, once its values are recorded in the history.
//
// Multiple callbacks execute in registration order. Callbacks run on the
// sampling path and must not block; in request mode a slow callback delays
// the page. Panics are recovered and logged.
//
// Nil callbacks are silently ignored.
func WithCycleCallback(cb func(CycleResult)) Option {
	return func(cfg *ebConfig) error {
		if cb == nil {
			return nil
		}
		cfg.cycleCallbacks = append(cfg.cycleCallbacks, cb)
		return nil
	}
}

// WithConnCallback registers a function to be called after every dashboard
// connection, successful or not. Callbacks run on the accept loop and must
// not block.
//
// Nil callbacks are silently ignored.
func WithConnCallback(cb func(ConnResult)) Option {
	return func(cfg *ebConfig) error {
		if cb == nil {
			return nil
		}
		cfg.connCallbacks = append(cfg.connCallbacks, cb)
		return nil
	}
}
