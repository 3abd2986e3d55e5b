package ble

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the device address was never observed while scanning.
	ErrNotFound = errors.New("ble: device not found")
	// ErrTimeout means the connect budget elapsed before a session was open.
	ErrTimeout = errors.New("ble: connect timed out")
	// ErrLinkLost means an established connection dropped unexpectedly.
	ErrLinkLost = errors.New("ble: link lost")
	// ErrWriteRejected means the device-side GATT server refused a write.
	ErrWriteRejected = errors.New("ble: write rejected by device")
)

// LinkError wraps a transport failure during connect or teardown.
type LinkError struct {
	Op  string
	Err error
}

func (e *LinkError) Error() string { return fmt.Sprintf("ble: %s: %v", e.Op, e.Err) }
func (e *LinkError) Unwrap() error { return e.Err }
