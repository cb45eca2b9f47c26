package main

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"

	"github.com/jpalmerr/envboard"
	"github.com/jpalmerr/envboard/config"
	"github.com/jpalmerr/envboard/internal/driver"
)

// hardware holds the opened devices and the buses they share.
type hardware struct {
	devices envboard.Devices
	buses   map[string]i2c.BusCloser
	bme280  *driver.BME280
	logger  *slog.Logger
}

// openDevices opens every enabled device described by cfg. A device that
// cannot be opened is logged and left nil, so its metrics fall back on every
// cycle while the others keep working.
func openDevices(cfg *config.SensorsConfig, logger *slog.Logger) (*hardware, error) {
	hw := &hardware{
		buses:  make(map[string]i2c.BusCloser),
		logger: logger,
	}

	if cfg.Simulate {
		sim := driver.NewSimulated(uint64(time.Now().UnixNano()))
		if cfg.AGS10.IsEnabled() {
			hw.devices.VOC = sim
		}
		if cfg.AHT20.IsEnabled() {
			hw.devices.Humidity = sim
		}
		if cfg.BME280.IsEnabled() {
			hw.devices.Pressure = sim
		}
		logger.Info("using simulated sensors")
		return hw, nil
	}

	if err := driver.Init(); err != nil {
		return nil, err
	}
	speed := physic.Frequency(cfg.BusSpeedHz) * physic.Hertz

	if cfg.AGS10.IsEnabled() {
		if bus, err := hw.bus(cfg.AGS10.Bus, speed); err != nil {
			hw.skip("ags10", err)
		} else {
			hw.devices.VOC = driver.NewAGS10(bus, uint16(cfg.AGS10.Address))
		}
	}

	if cfg.AHT20.IsEnabled() {
		opts := driver.DefaultAHT20Opts
		opts.CRC = cfg.AHT20.CRC
		if bus, err := hw.bus(cfg.AHT20.Bus, speed); err != nil {
			hw.skip("aht20", err)
		} else if dev, err := driver.NewAHT20(bus, uint16(cfg.AHT20.Address), &opts); err != nil {
			hw.skip("aht20", err)
		} else {
			hw.devices.Humidity = dev
		}
	}

	if cfg.BME280.IsEnabled() {
		switch cfg.BME280.Backend {
		case config.BackendDevfs:
			hw.devices.Pressure = driver.NewBME280Devfs(cfg.BME280.Bus, cfg.BME280.Address)
		default:
			if bus, err := hw.bus(cfg.BME280.Bus, speed); err != nil {
				hw.skip("bme280", err)
			} else if dev, err := driver.NewBME280(bus, uint16(cfg.BME280.Address)); err != nil {
				hw.skip("bme280", err)
			} else {
				hw.bme280 = dev
				hw.devices.Pressure = dev
			}
		}
	}

	return hw, nil
}

// bus returns the named bus, opening it on first use.
func (hw *hardware) bus(name string, speed physic.Frequency) (i2c.Bus, error) {
	if b, ok := hw.buses[name]; ok {
		return b, nil
	}
	b, err := driver.OpenBus(name, speed)
	if err != nil {
		return nil, err
	}
	hw.buses[name] = b
	return b, nil
}

func (hw *hardware) skip(device string, err error) {
	hw.logger.Warn("sensor unavailable, reporting fallbacks", "device", device, "error", err)
}

// Close halts the BME280 and closes every opened bus.
func (hw *hardware) Close() error {
	var errs []error
	if hw.bme280 != nil {
		if err := hw.bme280.Halt(); err != nil {
			errs = append(errs, err)
		}
	}
	for name, b := range hw.buses {
		if err := b.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close bus %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
