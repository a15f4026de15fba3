// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package devlib

import (
	"encoding/binary"

	"github.com/db47h/hwemu"
	"github.com/pkg/errors"
)

// DummySize is the size of the Dummy device buffer.
const DummySize = 128

// Dummy registers.
const (
	DummyBuf   uint32 = 0         // DummyBuf+n is byte n of the buffer
	DummyTicks uint32 = DummySize // read only
)

// Offsets and values of the structural markers in a Dummy saved state.
const (
	dummyMarkerA    = 12
	dummyMarkerB    = 28
	dummyMarkerAVal = 23
	dummyMarkerBVal = 98

	dummyHeaderSize = 32
	dummyStateSize  = dummyHeaderSize + DummySize + 4
)

// Dummy is a test device with a 128 byte buffer and a tick counter.
//
// Its saved state starts with a 32 byte header holding two marker bytes. A
// state whose markers do not match is rejected with hwemu.ErrCorruptState and
// leaves the device unchanged.
//
type Dummy struct {
	buf   [DummySize]byte
	ticks uint32
}

// NewDummy returns a new Dummy device.
//
func NewDummy() *Dummy { return new(Dummy) }

// Name implements hwemu.Namer.
func (d *Dummy) Name() string { return "dummy" }

// Init implements hwemu.Device.
func (d *Dummy) Init() { d.Reset() }

// Tick implements hwemu.Device.
func (d *Dummy) Tick() { d.ticks++ }

// StateSize implements hwemu.Device.
func (d *Dummy) StateSize() int { return dummyStateSize }

// SaveState implements hwemu.Device.
func (d *Dummy) SaveState(buf []byte) {
	for i := range buf[:dummyHeaderSize] {
		buf[i] = 0
	}
	buf[dummyMarkerA] = dummyMarkerAVal
	buf[dummyMarkerB] = dummyMarkerBVal
	copy(buf[dummyHeaderSize:], d.buf[:])
	binary.LittleEndian.PutUint32(buf[dummyHeaderSize+DummySize:], d.ticks)
}

// RestoreState implements hwemu.Device.
func (d *Dummy) RestoreState(buf []byte) error {
	if len(buf) != dummyStateSize {
		return errors.Wrapf(hwemu.ErrCorruptState, "dummy: %d bytes of state, expected %d", len(buf), dummyStateSize)
	}
	if buf[dummyMarkerA] != dummyMarkerAVal || buf[dummyMarkerB] != dummyMarkerBVal {
		return errors.Wrapf(hwemu.ErrCorruptState, "dummy: bad markers %d, %d", buf[dummyMarkerA], buf[dummyMarkerB])
	}
	copy(d.buf[:], buf[dummyHeaderSize:])
	d.ticks = binary.LittleEndian.Uint32(buf[dummyHeaderSize+DummySize:])
	return nil
}

// GetRegister implements hwemu.Device.
func (d *Dummy) GetRegister(id uint32) (uint32, error) {
	switch {
	case id < DummySize:
		return uint32(d.buf[id]), nil
	case id == DummyTicks:
		return d.ticks, nil
	}
	return 0, errors.Wrapf(hwemu.ErrInvalidRegister, "dummy: register %d", id)
}

// SetRegister implements hwemu.Device. Values are truncated to 8 bits.
func (d *Dummy) SetRegister(id, v uint32) error {
	switch {
	case id < DummySize:
		d.buf[id] = byte(v)
		return nil
	case id == DummyTicks:
		return errors.Wrap(hwemu.ErrInvalidRegister, "dummy: tick counter is read only")
	}
	return errors.Wrapf(hwemu.ErrInvalidRegister, "dummy: register %d", id)
}

// Reset implements hwemu.Device.
func (d *Dummy) Reset() {
	d.buf = [DummySize]byte{}
	d.ticks = 0
}

// ReadMem implements hwemu.Memory. The buffer is mirrored over the mapped
// range.
func (d *Dummy) ReadMem(offset uint32) byte { return d.buf[offset%DummySize] }

// WriteMem implements hwemu.Memory.
func (d *Dummy) WriteMem(offset uint32, v byte) { d.buf[offset%DummySize] = v }
