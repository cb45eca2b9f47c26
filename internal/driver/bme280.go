package driver

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
)

// BME280Addr is the BME280 address with SDO pulled high; 0x76 is the other option.
const BME280Addr uint16 = 0x77

// BME280 reads a Bosch BME280/BMP280 through periph's bmxx80 driver.
type BME280 struct {
	mu  sync.Mutex
	dev *bmxx80.Dev
}

// NewBME280 opens the BME280 at addr on bus with periph's default
// oversampling and filter settings.
func NewBME280(bus i2c.Bus, addr uint16) (*BME280, error) {
	if addr == 0 {
		addr = BME280Addr
	}
	dev, err := bmxx80.NewI2C(bus, addr, &bmxx80.DefaultOpts)
	if err != nil {
		return nil, fmt.Errorf("bme280 init: %w", err)
	}
	return &BME280{dev: dev}, nil
}

// ReadCompensated returns °C and Pa.
func (b *BME280) ReadCompensated() (float64, float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var e physic.Env
	if err := b.dev.Sense(&e); err != nil {
		return 0, 0, fmt.Errorf("sense: %w", err)
	}
	t, p := compensated(e)
	return t, p, nil
}

// Halt stops the device.
func (b *BME280) Halt() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dev.Halt()
}

// String implements conn.Resource.
func (b *BME280) String() string {
	return b.dev.String()
}

// compensated converts a periph environment reading to °C and Pa.
func compensated(e physic.Env) (celsius, pascals float64) {
	return e.Temperature.Celsius(), float64(e.Pressure) / float64(physic.Pascal)
}
