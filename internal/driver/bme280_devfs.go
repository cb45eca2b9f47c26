package driver

import (
	"fmt"
	"sync"

	"github.com/quhar/bme280"
	devfs "golang.org/x/exp/io/i2c"
)

// pascalsPerHectopascal converts quhar/bme280 pressure to Pa.
const pascalsPerHectopascal = 100.0

// BME280Devfs reads a BME280 through the Linux i2c-dev interface. It opens
// the device for every read so a sensor that was unplugged and replugged is
// picked up again without restarting.
type BME280Devfs struct {
	mu   sync.Mutex
	path string
	addr int
}

// NewBME280Devfs returns a reader for the BME280 at addr behind path
// (for example "/dev/i2c-0").
func NewBME280Devfs(path string, addr int) *BME280Devfs {
	if addr == 0 {
		addr = int(BME280Addr)
	}
	return &BME280Devfs{path: path, addr: addr}
}

// ReadCompensated returns °C and Pa.
func (b *BME280Devfs) ReadCompensated() (float64, float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	d, err := devfs.Open(&devfs.Devfs{Dev: b.path}, b.addr)
	if err != nil {
		return 0, 0, fmt.Errorf("open %s: %w", b.path, err)
	}
	defer d.Close()

	dev := bme280.New(d)
	if err := dev.Init(); err != nil {
		return 0, 0, fmt.Errorf("init: %w", err)
	}

	t, p, _, err := dev.EnvData()
	if err != nil {
		return 0, 0, fmt.Errorf("env data: %w", err)
	}
	return t, p * pascalsPerHectopascal, nil
}

// String returns the device path and address.
func (b *BME280Devfs) String() string {
	return fmt.Sprintf("BME280Devfs{%s@%#x}", b.path, b.addr)
}
