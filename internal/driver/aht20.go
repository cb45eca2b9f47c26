package driver

import (
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/i2c"
)

// AHT20Addr is the fixed I2C address of the AHT20.
const AHT20Addr uint16 = 0x38

const (
	aht20StatusBusy       = 0x80
	aht20StatusCalibrated = 0x08

	aht20FrameLen = 6

	// 2^20, the full scale of both raw channels.
	aht20Scale = 1 << 20
)

var (
	aht20CmdInit    = []byte{0xBE, 0x08, 0x00}
	aht20CmdMeasure = []byte{0xAC, 0x33, 0x00}
)

// AHT20Opts configures an [AHT20].
type AHT20Opts struct {
	// CRC enables the checksum byte that follows each measurement frame.
	CRC bool
	// MeasureDelay is the wait between triggering and reading a measurement.
	// Zero disables every wait, including the pause after calibration.
	MeasureDelay time.Duration
}

// DefaultAHT20Opts matches the datasheet timing with CRC disabled.
var DefaultAHT20Opts = AHT20Opts{
	MeasureDelay: 80 * time.Millisecond,
}

// AHT20 is an Aosong AHT20 (or AHT21/AHT25) temperature and humidity sensor.
//
// [AHT20.IsReady] triggers a measurement and keeps the frame when the part
// reports it is not busy; [AHT20.ReadTemperatureHumidity] then decodes that
// frame without touching the bus again.
type AHT20 struct {
	mu    sync.Mutex
	dev   i2c.Dev
	opts  AHT20Opts
	frame []byte
}

// NewAHT20 returns an AHT20 on bus at addr and calibrates it if the status
// byte says it is not calibrated yet. A nil opts uses [DefaultAHT20Opts].
func NewAHT20(bus i2c.Bus, addr uint16, opts *AHT20Opts) (*AHT20, error) {
	if addr == 0 {
		addr = AHT20Addr
	}
	if opts == nil {
		opts = &DefaultAHT20Opts
	}
	a := &AHT20{dev: i2c.Dev{Bus: bus, Addr: addr}, opts: *opts}

	var status [1]byte
	if err := a.dev.Tx(nil, status[:]); err != nil {
		return nil, fmt.Errorf("aht20 status: %w", err)
	}
	if status[0]&aht20StatusCalibrated == 0 {
		if err := a.dev.Tx(aht20CmdInit, nil); err != nil {
			return nil, fmt.Errorf("aht20 calibrate: %w", err)
		}
		a.sleep(10 * time.Millisecond)
	}
	return a, nil
}

// IsReady triggers a measurement and reports whether it completed. A bus
// error also reports false.
func (a *AHT20) IsReady() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	frame, err := a.measure()
	if err != nil || frame[0]&aht20StatusBusy != 0 {
		a.frame = nil
		return false
	}
	a.frame = frame
	return true
}

// ReadTemperatureHumidity returns °C and %RH. It decodes the frame captured
// by the last successful [AHT20.IsReady], or measures now if there is none.
// Each frame is decoded at most once.
func (a *AHT20) ReadTemperatureHumidity() (float64, float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	frame := a.frame
	a.frame = nil
	if frame == nil {
		var err error
		if frame, err = a.measure(); err != nil {
			return 0, 0, err
		}
		if frame[0]&aht20StatusBusy != 0 {
			return 0, 0, fmt.Errorf("measurement: %w", ErrBusy)
		}
	}

	if a.opts.CRC {
		if got := crc8(frame[:aht20FrameLen]); got != frame[aht20FrameLen] {
			return 0, 0, fmt.Errorf("measurement frame %x: %w", frame, ErrCRC)
		}
	}

	t, h := decodeAHT20(frame)
	return t, h, nil
}

// measure triggers one conversion and reads back the raw frame.
func (a *AHT20) measure() ([]byte, error) {
	if err := a.dev.Tx(aht20CmdMeasure, nil); err != nil {
		return nil, fmt.Errorf("trigger measurement: %w", err)
	}
	a.sleep(a.opts.MeasureDelay)

	n := aht20FrameLen
	if a.opts.CRC {
		n++
	}
	frame := make([]byte, n)
	if err := a.dev.Tx(nil, frame); err != nil {
		return nil, fmt.Errorf("read measurement: %w", err)
	}
	return frame, nil
}

func (a *AHT20) sleep(d time.Duration) {
	if d > 0 && a.opts.MeasureDelay > 0 {
		time.Sleep(d)
	}
}

// decodeAHT20 splits the two 20-bit channels out of a measurement frame.
func decodeAHT20(frame []byte) (temperature, humidity float64) {
	rawH := uint32(frame[1])<<12 | uint32(frame[2])<<4 | uint32(frame[3])>>4
	rawT := uint32(frame[3]&0x0F)<<16 | uint32(frame[4])<<8 | uint32(frame[5])

	humidity = float64(rawH) * 100 / aht20Scale
	temperature = float64(rawT)*200/aht20Scale - 50
	return temperature, humidity
}

// String implements conn.Resource.
func (a *AHT20) String() string {
	return fmt.Sprintf("AHT20{%s}", &a.dev)
}
