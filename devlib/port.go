// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package devlib

import (
	"encoding/binary"

	"github.com/db47h/hwemu"
	"github.com/pkg/errors"
)

// Port registers.
const (
	PortLatch  uint32 = iota // last value read or written
	PortReads                // read only
	PortWrites               // read only
)

const portStateSize = 9

// Port is a single byte I/O port backed by user functions.
//
// A read calls the input function, a write calls the output function. The
// last value seen in either direction is latched and returned by reads when
// there is no input function.
//
type Port struct {
	in     func() byte
	out    func(byte)
	latch  byte
	reads  uint32
	writes uint32
}

// NewPort returns a new port. Either function may be nil.
//
func NewPort(in func() byte, out func(byte)) *Port {
	return &Port{in: in, out: out}
}

// Name implements hwemu.Namer.
func (p *Port) Name() string { return "port" }

// Init implements hwemu.Device.
func (p *Port) Init() { p.Reset() }

// Tick implements hwemu.Device.
func (p *Port) Tick() {}

// StateSize implements hwemu.Device.
func (p *Port) StateSize() int { return portStateSize }

// SaveState implements hwemu.Device.
func (p *Port) SaveState(buf []byte) {
	buf[0] = p.latch
	binary.LittleEndian.PutUint32(buf[1:], p.reads)
	binary.LittleEndian.PutUint32(buf[5:], p.writes)
}

// RestoreState implements hwemu.Device.
func (p *Port) RestoreState(buf []byte) error {
	if len(buf) != portStateSize {
		return errors.Wrapf(hwemu.ErrCorruptState, "port: %d bytes of state, expected %d", len(buf), portStateSize)
	}
	p.latch = buf[0]
	p.reads = binary.LittleEndian.Uint32(buf[1:])
	p.writes = binary.LittleEndian.Uint32(buf[5:])
	return nil
}

// GetRegister implements hwemu.Device.
func (p *Port) GetRegister(id uint32) (uint32, error) {
	switch id {
	case PortLatch:
		return uint32(p.latch), nil
	case PortReads:
		return p.reads, nil
	case PortWrites:
		return p.writes, nil
	}
	return 0, errors.Wrapf(hwemu.ErrInvalidRegister, "port: register %d", id)
}

// SetRegister implements hwemu.Device. Only the latch is writable and setting
// it does not call the output function.
func (p *Port) SetRegister(id, v uint32) error {
	switch id {
	case PortLatch:
		p.latch = byte(v)
		return nil
	case PortReads, PortWrites:
		return errors.Wrapf(hwemu.ErrInvalidRegister, "port: register %d is read only", id)
	}
	return errors.Wrapf(hwemu.ErrInvalidRegister, "port: register %d", id)
}

// Reset implements hwemu.Device.
func (p *Port) Reset() {
	p.latch, p.reads, p.writes = 0, 0, 0
}

// ReadMem implements hwemu.Memory.
func (p *Port) ReadMem(uint32) byte {
	p.reads++
	if p.in != nil {
		p.latch = p.in()
	}
	return p.latch
}

// WriteMem implements hwemu.Memory.
func (p *Port) WriteMem(_ uint32, v byte) {
	p.writes++
	p.latch = v
	if p.out != nil {
		p.out(v)
	}
}
