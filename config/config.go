// Package config provides YAML configuration parsing for envboard.
//
// Example configuration:
//
//	title: Greenhouse
//	port: 80
//	refresh: 10s
//	history_size: 100
//
//	sampling:
//	  mode: request
//
//	sensors:
//	  ags10:  { bus: "1", address: 0x1a }
//	  aht20:  { bus: "0", address: 0x38 }
//	  bme280: { bus: "0", address: 0x77 }
//
//	api:
//	  addr: ":9100"
//
//	mqtt:
//	  broker: ${MQTT_BROKER:-tcp://localhost:1883}
package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Sampling modes.
const (
	// ModeRequest samples once per dashboard request.
	ModeRequest = "request"

	// ModeInterval samples on a timer; requests show the latest cycle.
	ModeInterval = "interval"
)

// BME280 backends.
const (
	BackendPeriph = "periph"
	BackendDevfs  = "devfs"
)

const (
	defaultTitle        = "Sensor Dashboard"
	defaultPort         = 80
	defaultRefresh      = 10 * time.Second
	defaultHistorySize  = 100
	defaultIOTimeout    = 5 * time.Second
	defaultBusSpeedHz   = 10000
	defaultMQTTClientID = "envboard"
	defaultMQTTTopic    = "envboard/readings"

	minHistorySize = 2
	maxHistorySize = 10000

	// minInterval keeps a timer from hammering the I2C buses.
	minInterval = 1 * time.Second
)

// Config is the root configuration structure for envboard.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the dashboard title. Defaults to "Sensor Dashboard".
	Title string `yaml:"title"`

	// Port is the dashboard TCP port. Defaults to 80.
	Port int `yaml:"port"`

	// Refresh is the page auto-refresh period. Defaults to 10s.
	Refresh Duration `yaml:"refresh"`

	// HistorySize is the number of values kept per metric. Defaults to 100.
	HistorySize int `yaml:"history_size"`

	Sampling SamplingConfig `yaml:"sampling"`
	Server   ServerConfig   `yaml:"server"`
	Sensors  SensorsConfig  `yaml:"sensors"`
	API      APIConfig      `yaml:"api"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
}

// SamplingConfig selects when sampling cycles run.
type SamplingConfig struct {
	// Mode is "request" (default) or "interval".
	Mode string `yaml:"mode"`

	// Interval is the period between cycles in interval mode.
	Interval Duration `yaml:"interval"`
}

// ServerConfig holds per-connection deadlines of the dashboard server.
type ServerConfig struct {
	ReadTimeout  Duration `yaml:"read_timeout"`
	WriteTimeout Duration `yaml:"write_timeout"`
}

// SensorsConfig describes the attached devices.
type SensorsConfig struct {
	// Simulate replaces all hardware with simulated devices.
	Simulate bool `yaml:"simulate"`

	// BusSpeedHz is the I2C clock applied to every opened bus. Defaults to 10000.
	BusSpeedHz int `yaml:"bus_speed_hz"`

	AGS10  DeviceConfig `yaml:"ags10"`
	AHT20  DeviceConfig `yaml:"aht20"`
	BME280 DeviceConfig `yaml:"bme280"`
}

// DeviceConfig locates one I2C device.
type DeviceConfig struct {
	// Enabled defaults to true. A disabled device always reports fallbacks.
	Enabled *bool `yaml:"enabled"`

	// Bus is the I2C bus name or number as known to the host. Supports
	// environment variable substitution.
	Bus string `yaml:"bus"`

	// Address is the 7-bit device address. Defaults to the device's standard
	// address.
	Address int `yaml:"address"`

	// CRC enables checksum verification (AHT20 only).
	CRC bool `yaml:"crc"`

	// Backend selects the BME280 driver: "periph" (default) or "devfs".
	Backend string `yaml:"backend"`
}

// IsEnabled reports whether the device should be opened.
func (d DeviceConfig) IsEnabled() bool {
	return d.Enabled == nil || *d.Enabled
}

// APIConfig configures the auxiliary HTTP server.
type APIConfig struct {
	// Addr is the listen address, e.g. ":9100". Empty disables the server.
	Addr string `yaml:"addr"`
}

// MQTTConfig configures reading publication.
type MQTTConfig struct {
	// Broker is the broker URL, e.g. "tcp://localhost:1883". Empty disables
	// publishing.
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	QoS      int    `yaml:"qos"`
	Retained bool   `yaml:"retained"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data, applies defaults, expands environment
// variables in bus names, api.addr and the mqtt broker and topic, and
// validates the result.
//
// An empty document is valid and yields the defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration of an empty file.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Title == "" {
		c.Title = defaultTitle
	}
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.Refresh == 0 {
		c.Refresh = Duration(defaultRefresh)
	}
	if c.HistorySize == 0 {
		c.HistorySize = defaultHistorySize
	}
	if c.Sampling.Mode == "" {
		c.Sampling.Mode = ModeRequest
	}
	if c.Sampling.Interval == 0 && c.Sampling.Mode == ModeInterval {
		c.Sampling.Interval = Duration(defaultRefresh)
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = Duration(defaultIOTimeout)
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = Duration(defaultIOTimeout)
	}
	if c.Sensors.BusSpeedHz == 0 {
		c.Sensors.BusSpeedHz = defaultBusSpeedHz
	}
	if c.Sensors.AGS10.Address == 0 {
		c.Sensors.AGS10.Address = 0x1a
	}
	if c.Sensors.AHT20.Address == 0 {
		c.Sensors.AHT20.Address = 0x38
	}
	if c.Sensors.BME280.Address == 0 {
		c.Sensors.BME280.Address = 0x77
	}
	if c.Sensors.BME280.Backend == "" {
		c.Sensors.BME280.Backend = BackendPeriph
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = defaultMQTTClientID
	}
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = defaultMQTTTopic
	}
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.Refresh.Duration() < time.Second {
		return fmt.Errorf("refresh must be at least 1s, got %s", c.Refresh.Duration())
	}
	if c.HistorySize < minHistorySize || c.HistorySize > maxHistorySize {
		return fmt.Errorf("history_size must be between %d and %d, got %d", minHistorySize, maxHistorySize, c.HistorySize)
	}

	switch c.Sampling.Mode {
	case ModeRequest:
	case ModeInterval:
		if c.Sampling.Interval.Duration() < minInterval {
			return fmt.Errorf("sampling.interval must be at least %s, got %s", minInterval, c.Sampling.Interval.Duration())
		}
	default:
		return fmt.Errorf("sampling.mode must be %q or %q, got %q", ModeRequest, ModeInterval, c.Sampling.Mode)
	}

	if c.Server.ReadTimeout.Duration() < 0 || c.Server.WriteTimeout.Duration() < 0 {
		return fmt.Errorf("server timeouts cannot be negative")
	}

	if c.Sensors.BusSpeedHz < 1000 || c.Sensors.BusSpeedHz > 3400000 {
		return fmt.Errorf("sensors.bus_speed_hz must be between 1000 and 3400000, got %d", c.Sensors.BusSpeedHz)
	}

	devices := []struct {
		name string
		dev  *DeviceConfig
	}{
		{"ags10", &c.Sensors.AGS10},
		{"aht20", &c.Sensors.AHT20},
		{"bme280", &c.Sensors.BME280},
	}
	for _, d := range devices {
		expanded, err := expandEnvVars(d.dev.Bus)
		if err != nil {
			return fmt.Errorf("sensors.%s: bus: %w", d.name, err)
		}
		d.dev.Bus = expanded

		if d.dev.Address < 0x03 || d.dev.Address > 0x77 {
			return fmt.Errorf("sensors.%s: address must be between 0x03 and 0x77, got %#x", d.name, d.dev.Address)
		}
	}

	switch c.Sensors.BME280.Backend {
	case BackendPeriph:
	case BackendDevfs:
		if c.Sensors.BME280.Bus == "" {
			return fmt.Errorf("sensors.bme280: backend %q requires a bus device path", BackendDevfs)
		}
	default:
		return fmt.Errorf("sensors.bme280: backend must be %q or %q, got %q", BackendPeriph, BackendDevfs, c.Sensors.BME280.Backend)
	}

	addr, err := expandEnvVars(c.API.Addr)
	if err != nil {
		return fmt.Errorf("api.addr: %w", err)
	}
	c.API.Addr = addr

	return c.MQTT.expandAndValidate()
}

func (m *MQTTConfig) expandAndValidate() error {
	broker, err := expandEnvVars(m.Broker)
	if err != nil {
		return fmt.Errorf("mqtt.broker: %w", err)
	}
	m.Broker = broker

	topic, err := expandEnvVars(m.Topic)
	if err != nil {
		return fmt.Errorf("mqtt.topic: %w", err)
	}
	m.Topic = topic

	if m.QoS < 0 || m.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", m.QoS)
	}

	if m.Broker == "" {
		return nil
	}
	u, err := url.Parse(m.Broker)
	if err != nil {
		return fmt.Errorf("mqtt.broker: invalid url: %w", err)
	}
	switch u.Scheme {
	case "tcp", "ssl", "tls", "ws", "wss", "mqtt", "mqtts":
	default:
		return fmt.Errorf("mqtt.broker: unsupported scheme %q", u.Scheme)
	}
	return nil
}
