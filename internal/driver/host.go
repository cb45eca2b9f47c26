package driver

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// DefaultBusSpeed is the I2C clock used for every bus. The AGS10 does not
// tolerate more than 15kHz.
const DefaultBusSpeed = 10 * physic.KiloHertz

// Init loads the periph host drivers. It must run before [OpenBus].
func Init() error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("periph host init: %w", err)
	}
	return nil
}

// OpenBus opens the named I2C bus ("1", "I2C1", "/dev/i2c-1") and sets its
// clock. A zero speed leaves the bus default untouched.
func OpenBus(name string, speed physic.Frequency) (i2c.BusCloser, error) {
	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", name, err)
	}
	if speed > 0 {
		if err := bus.SetSpeed(speed); err != nil {
			_ = bus.Close()
			return nil, fmt.Errorf("set i2c bus %q speed to %s: %w", name, speed, err)
		}
	}
	return bus, nil
}
