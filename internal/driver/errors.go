package driver

import "errors"

var (
	// ErrCRC is returned when a frame's checksum does not match its payload.
	ErrCRC = errors.New("crc mismatch")

	// ErrBusy is returned when a device reports that no fresh data is available.
	ErrBusy = errors.New("device busy")
)
