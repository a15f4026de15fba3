// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hwemu

import "reflect"

// Device is the capability set every emulated device exposes.
//
// A device owns its private state. Nothing else mutates it except through
// these methods. The Registry serializes calls to a given device, so
// implementations need no locking of their own.
//
type Device interface {
	// Init performs one-time setup. It is called exactly once, by
	// Registry.Register.
	Init()

	// Tick advances the device by one device clock edge. It must not block
	// and must not access other devices.
	Tick()

	// StateSize returns the exact number of bytes SaveState will write.
	StateSize() int

	// SaveState writes StateSize() bytes describing the current state into
	// buf. It must not modify the device.
	SaveState(buf []byte)

	// RestoreState loads a state previously produced by SaveState.
	// If buf is inconsistent, RestoreState returns an error whose cause is
	// ErrCorruptState and the device keeps its prior state.
	RestoreState(buf []byte) error

	// SetRegister and GetRegister give direct access to device registers.
	// Unknown register ids fail with ErrInvalidRegister.
	SetRegister(id, value uint32) error
	GetRegister(id uint32) (uint32, error)

	// Reset returns the device to its power-on state. It can be called
	// any number of times.
	Reset()
}

// Memory is implemented by devices that can be mapped into an address space.
// Offsets are device local: the Decoder subtracts the start of the mapped range
// before calling ReadMem or WriteMem.
//
type Memory interface {
	ReadMem(offset uint32) byte
	WriteMem(offset uint32, v byte)
}

// Namer is an optional interface for devices that want to report a name
// different from their Go type name. The name is used in logs and in tagged
// snapshots.
//
type Namer interface {
	Name() string
}

// DeviceName returns the name of d: d.Name() if d implements Namer, its type
// name otherwise.
//
func DeviceName(d Device) string {
	if n, ok := d.(Namer); ok {
		return n.Name()
	}
	t := reflect.TypeOf(d)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
