// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package emutest

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/db47h/hwemu"
	"github.com/pkg/errors"
)

// Probe is a device that counts its ticks. It has a single read/write register
// with id 0 holding the tick count, and its state is that count as a
// little-endian uint64.
//
// If OnTick is set, it is called after each tick with the updated count.
//
type Probe struct {
	ID     string
	OnTick func(n uint64)

	ticks uint64
	inits uint64
}

// Name implements hwemu.Namer.
func (p *Probe) Name() string {
	if p.ID != "" {
		return p.ID
	}
	return "probe"
}

// Ticks returns the number of ticks received since the last reset. It is safe
// for concurrent use.
func (p *Probe) Ticks() uint64 { return atomic.LoadUint64(&p.ticks) }

// Inits returns the number of times Init was called.
func (p *Probe) Inits() uint64 { return atomic.LoadUint64(&p.inits) }

// Init implements hwemu.Device.
func (p *Probe) Init() { atomic.AddUint64(&p.inits, 1) }

// Tick implements hwemu.Device.
func (p *Probe) Tick() {
	n := atomic.AddUint64(&p.ticks, 1)
	if p.OnTick != nil {
		p.OnTick(n)
	}
}

// StateSize implements hwemu.Device.
func (p *Probe) StateSize() int { return 8 }

// SaveState implements hwemu.Device.
func (p *Probe) SaveState(buf []byte) {
	binary.LittleEndian.PutUint64(buf, p.Ticks())
}

// RestoreState implements hwemu.Device.
func (p *Probe) RestoreState(buf []byte) error {
	if len(buf) != 8 {
		return errors.Wrapf(hwemu.ErrCorruptState, "probe: %d bytes of state", len(buf))
	}
	atomic.StoreUint64(&p.ticks, binary.LittleEndian.Uint64(buf))
	return nil
}

// GetRegister implements hwemu.Device.
func (p *Probe) GetRegister(id uint32) (uint32, error) {
	if id != 0 {
		return 0, errors.Wrapf(hwemu.ErrInvalidRegister, "probe: register %d", id)
	}
	return uint32(p.Ticks()), nil
}

// SetRegister implements hwemu.Device.
func (p *Probe) SetRegister(id, v uint32) error {
	if id != 0 {
		return errors.Wrapf(hwemu.ErrInvalidRegister, "probe: register %d", id)
	}
	atomic.StoreUint64(&p.ticks, uint64(v))
	return nil
}

// Reset implements hwemu.Device.
func (p *Probe) Reset() { atomic.StoreUint64(&p.ticks, 0) }
