// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hwemu

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds. Functions in this package wrap these with context; use
// errors.Cause (or errors.Is) to test for a specific kind.
//
// ErrTableFull, ErrOverlappingRange, ErrRegistryFull and ErrInvalidConfig are
// setup-time errors and indicate a wiring bug. ErrUnmappedAddress and
// ErrUnknownDevice are runtime bus faults reported to the caller of the
// access. ErrCorruptState, ErrCorruptSnapshot and ErrSnapshotMismatch are
// returned by restore operations.
//
var (
	ErrTableFull        = errors.New("address table full")
	ErrOverlappingRange = errors.New("overlapping address range")
	ErrUnmappedAddress  = errors.New("unmapped address")
	ErrRegistryFull     = errors.New("device registry full")
	ErrUnknownDevice    = errors.New("unknown device")
	ErrInvalidRegister  = errors.New("invalid register")
	ErrCorruptState     = errors.New("corrupt device state")
	ErrSnapshotMismatch = errors.New("snapshot does not match registered devices")
	ErrCorruptSnapshot  = errors.New("corrupt snapshot")
	ErrInvalidConfig    = errors.New("invalid configuration")

	// ErrExited is returned by control calls issued after Exit.
	ErrExited = errors.New("scheduler exited")
	// ErrWorkerFault is the cause of the error reported after the scheduler
	// worker recovered from a panic.
	ErrWorkerFault = errors.New("scheduler worker fault")
)

// DeviceError is returned by snapshot restores when a device rejects its
// state. Its cause is ErrCorruptSnapshot; Err is the error returned by the
// device and can be reached with errors.As or errors.Is.
//
type DeviceError struct {
	ID   int
	Name string
	Err  error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%v: device %d (%s): %v", ErrCorruptSnapshot, e.ID, e.Name, e.Err)
}

// Cause returns ErrCorruptSnapshot.
func (e *DeviceError) Cause() error { return ErrCorruptSnapshot }

// Unwrap returns both ErrCorruptSnapshot and the device error.
func (e *DeviceError) Unwrap() []error { return []error{ErrCorruptSnapshot, e.Err} }
