// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package devlib

import (
	"encoding/binary"

	"github.com/db47h/hwemu"
	"github.com/pkg/errors"
)

// Counter control bits.
const (
	CounterEnable     = 1 << iota // count on each tick
	CounterAutoReload             // reload on underflow instead of stopping

	counterCtlMask = CounterEnable | CounterAutoReload
)

// Counter status bits.
const (
	CounterUnderflow = 1 << iota
)

// Counter registers.
const (
	CounterCount uint32 = iota
	CounterReload
	CounterControl
	CounterStatus
)

// CounterMemSize is the size of the memory mapped register window of a
// Counter.
const CounterMemSize = 16

type counterRegs struct {
	Count  uint32 `hw:"reg"`
	Reload uint32 `hw:"reg"`
	Ctl    uint32 `hw:"reg,control"`
	Status uint32 `hw:"reg"`
}

// Counter is a down counting timer.
//
// When enabled, Count is decremented on each tick. A tick with Count at 0 sets
// the sticky underflow status bit and either reloads Count from Reload or
// disables the counter, depending on the auto-reload control bit.
//
// Registers are memory mapped as four little-endian 32 bits words in register
// id order. Writing to the status register clears the bits set in the written
// value.
//
type Counter struct {
	r       counterRegs
	rf      *hwemu.RegFile
	reload0 uint32
	ctl0    uint32
}

// NewCounter returns a new counter with the given power-on reload value and
// control bits.
//
func NewCounter(reload, ctl uint32) *Counter {
	return &Counter{reload0: reload, ctl0: ctl & counterCtlMask}
}

// Name implements hwemu.Namer.
func (c *Counter) Name() string { return "counter" }

// Init implements hwemu.Device.
func (c *Counter) Init() {
	rf, err := hwemu.MakeRegFile(&c.r)
	if err != nil {
		panic(err)
	}
	c.rf = rf
	c.Reset()
}

// Tick implements hwemu.Device.
func (c *Counter) Tick() {
	if c.r.Ctl&CounterEnable == 0 {
		return
	}
	if c.r.Count > 0 {
		c.r.Count--
		return
	}
	c.r.Status |= CounterUnderflow
	if c.r.Ctl&CounterAutoReload != 0 {
		c.r.Count = c.r.Reload
	} else {
		c.r.Ctl &^= CounterEnable
	}
}

// StateSize implements hwemu.Device.
func (c *Counter) StateSize() int { return c.rf.Size() }

// SaveState implements hwemu.Device.
func (c *Counter) SaveState(buf []byte) { c.rf.Save(buf) }

// RestoreState implements hwemu.Device.
func (c *Counter) RestoreState(buf []byte) error {
	if len(buf) == c.rf.Size() {
		if ctl := binary.LittleEndian.Uint32(buf[4*CounterControl:]); ctl&^counterCtlMask != 0 {
			return errors.Wrapf(hwemu.ErrCorruptState, "counter: invalid control bits %#x", ctl)
		}
	}
	return errors.Wrap(c.rf.Restore(buf), "counter")
}

// GetRegister implements hwemu.Device.
func (c *Counter) GetRegister(id uint32) (uint32, error) {
	v, err := c.rf.Get(id)
	return v, errors.Wrap(err, "counter")
}

// SetRegister implements hwemu.Device.
func (c *Counter) SetRegister(id, v uint32) error {
	switch id {
	case CounterControl:
		v &= counterCtlMask
	case CounterStatus:
		c.r.Status &^= v
		return nil
	}
	return errors.Wrap(c.rf.Set(id, v), "counter")
}

// Reset implements hwemu.Device.
func (c *Counter) Reset() {
	c.rf.Zero()
	c.r.Reload = c.reload0
	c.r.Count = c.reload0
	c.r.Ctl = c.ctl0
}

// ReadMem implements hwemu.Memory.
func (c *Counter) ReadMem(offset uint32) byte {
	if offset >= CounterMemSize {
		return 0xff
	}
	v, _ := c.rf.Get(offset / 4)
	return byte(v >> (8 * (offset % 4)))
}

// WriteMem implements hwemu.Memory.
func (c *Counter) WriteMem(offset uint32, b byte) {
	if offset >= CounterMemSize {
		return
	}
	id, shift := offset/4, 8*(offset%4)
	if id == CounterStatus {
		c.r.Status &^= uint32(b) << shift
		return
	}
	v, _ := c.rf.Get(id)
	v = v&^(0xff<<shift) | uint32(b)<<shift
	_ = c.SetRegister(id, v)
}
