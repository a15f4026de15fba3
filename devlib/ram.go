// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package devlib

import (
	"encoding/binary"

	"github.com/db47h/hwemu"
	"github.com/pkg/errors"
)

// DefaultRAMSize is the RAM size used by the catalog when none is given.
const DefaultRAMSize = 0x10000

// RAM registers.
const (
	RAMSize uint32 = iota // read only
	RAMData               // RAMData+n is the byte at offset n
)

// RAM is a block of byte addressable memory.
//
// Register RAMSize holds the size in bytes and is read only. Register RAMData+n
// gives access to the byte at offset n.
//
// Reads outside of the memory return 0xff, writes outside are ignored.
//
type RAM struct {
	size uint32
	mem  []byte
}

// NewRAM returns a new RAM of the given size. Memory is allocated by Init.
//
func NewRAM(size uint32) *RAM {
	return &RAM{size: size}
}

// Name implements hwemu.Namer.
func (r *RAM) Name() string { return "ram" }

// Init implements hwemu.Device.
func (r *RAM) Init() {
	r.mem = make([]byte, r.size)
}

// Tick implements hwemu.Device. RAM has no clocked behavior.
func (r *RAM) Tick() {}

// StateSize implements hwemu.Device.
func (r *RAM) StateSize() int { return 4 + int(r.size) }

// SaveState implements hwemu.Device. The state is the RAM size followed by its
// contents.
func (r *RAM) SaveState(buf []byte) {
	binary.LittleEndian.PutUint32(buf, r.size)
	copy(buf[4:], r.mem)
}

// RestoreState implements hwemu.Device.
func (r *RAM) RestoreState(buf []byte) error {
	if len(buf) != r.StateSize() {
		return errors.Wrapf(hwemu.ErrCorruptState, "ram: %d bytes of state, expected %d", len(buf), r.StateSize())
	}
	if sz := binary.LittleEndian.Uint32(buf); sz != r.size {
		return errors.Wrapf(hwemu.ErrCorruptState, "ram: size %d, expected %d", sz, r.size)
	}
	copy(r.mem, buf[4:])
	return nil
}

// GetRegister implements hwemu.Device.
func (r *RAM) GetRegister(id uint32) (uint32, error) {
	if id == RAMSize {
		return r.size, nil
	}
	if off := uint64(id) - uint64(RAMData); off < uint64(r.size) {
		return uint32(r.mem[off]), nil
	}
	return 0, errors.Wrapf(hwemu.ErrInvalidRegister, "ram: register %d", id)
}

// SetRegister implements hwemu.Device.
func (r *RAM) SetRegister(id, v uint32) error {
	if id == RAMSize {
		return errors.Wrap(hwemu.ErrInvalidRegister, "ram: size register is read only")
	}
	if off := uint64(id) - uint64(RAMData); off < uint64(r.size) {
		r.mem[off] = byte(v)
		return nil
	}
	return errors.Wrapf(hwemu.ErrInvalidRegister, "ram: register %d", id)
}

// Reset implements hwemu.Device. It clears the memory.
func (r *RAM) Reset() {
	for i := range r.mem {
		r.mem[i] = 0
	}
}

// ReadMem implements hwemu.Memory.
func (r *RAM) ReadMem(offset uint32) byte {
	if offset >= r.size {
		return 0xff
	}
	return r.mem[offset]
}

// WriteMem implements hwemu.Memory.
func (r *RAM) WriteMem(offset uint32, v byte) {
	if offset < r.size {
		r.mem[offset] = v
	}
}

// WriteArray copies data into memory at the given offset.
func (r *RAM) WriteArray(offset uint32, data []byte) error {
	if uint64(offset)+uint64(len(data)) > uint64(r.size) {
		return errors.Errorf("ram: write of %d bytes at %#x outside of memory (size %#x)", len(data), offset, r.size)
	}
	copy(r.mem[offset:], data)
	return nil
}
