package driver

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
)

// AGS10Addr is the fixed I2C address of the AGS10.
const AGS10Addr uint16 = 0x1A

const (
	ags10RegTVOC     = 0x00
	ags10StatusNotRd = 0x01
)

// AGS10 is an Aosong AGS10 TVOC sensor.
type AGS10 struct {
	mu  sync.Mutex
	dev i2c.Dev
}

// NewAGS10 returns an AGS10 on bus at addr. It performs no I/O; the part
// needs no initialization beyond its own warm-up.
func NewAGS10(bus i2c.Bus, addr uint16) *AGS10 {
	if addr == 0 {
		addr = AGS10Addr
	}
	return &AGS10{dev: i2c.Dev{Bus: bus, Addr: addr}}
}

// ReadTVOC returns the TVOC concentration in ppb.
//
// The frame is status, three big-endian data bytes and a CRC over the first
// four bytes. A set nRDY bit in the status byte returns [ErrBusy].
func (a *AGS10) ReadTVOC() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var frame [5]byte
	if err := a.dev.Tx([]byte{ags10RegTVOC}, frame[:]); err != nil {
		return 0, fmt.Errorf("read tvoc: %w", err)
	}
	if got := crc8(frame[:4]); got != frame[4] {
		return 0, fmt.Errorf("tvoc frame %x: %w", frame, ErrCRC)
	}
	if frame[0]&ags10StatusNotRd != 0 {
		return 0, fmt.Errorf("tvoc: %w", ErrBusy)
	}
	return int(frame[1])<<16 | int(frame[2])<<8 | int(frame[3]), nil
}

// String implements conn.Resource.
func (a *AGS10) String() string {
	return fmt.Sprintf("AGS10{%s}", &a.dev)
}
