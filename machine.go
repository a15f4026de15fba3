// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hwemu

import (
	"os"
	"sort"
	"sync"

	"github.com/db47h/hwemu/logger"
	"github.com/pkg/errors"
)

// Machine ties together a device registry, one address decoder per memory
// space and the xtal scheduler. Its methods are the control, memory, register
// and persistence surfaces used by front ends.
//
type Machine struct {
	cfg   Config
	reg   *Registry
	xtal  *Xtal
	codec Codec

	mu     sync.Mutex // guards spaces
	spaces map[uint32]*Decoder
}

// NewMachine returns a new machine with no devices. Its scheduler is Paused.
// Callers must call Exit once the machine is no longer needed in order to stop
// the scheduler goroutine.
//
func NewMachine(cfg Config) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	reg, err := NewRegistry(cfg.MaxDevices)
	if err != nil {
		return nil, err
	}
	x, err := NewXtal(reg, cfg)
	if err != nil {
		return nil, err
	}
	return &Machine{
		cfg:    cfg,
		reg:    reg,
		xtal:   x,
		codec:  Codec{Tagged: cfg.TaggedSnapshots},
		spaces: make(map[uint32]*Decoder),
	}, nil
}

// Config returns the machine configuration.
//
func (m *Machine) Config() Config { return m.cfg }

// Registry returns the device registry.
//
func (m *Machine) Registry() *Registry { return m.reg }

// Xtal returns the scheduler.
//
func (m *Machine) Xtal() *Xtal { return m.xtal }

// Attach registers a device with the given clock divider and returns its id.
//
func (m *Machine) Attach(d Device, divider int) (int, error) {
	return m.reg.Register(d, divider)
}

// Space returns the decoder for the given memory space, creating it if
// necessary.
//
func (m *Machine) Space(space uint32) (*Decoder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.spaces[space]
	if d == nil {
		var err error
		if d, err = NewDecoder(m.cfg.MaxMappings); err != nil {
			return nil, err
		}
		m.spaces[space] = d
	}
	return d, nil
}

func (m *Machine) decoder(space uint32) (*Decoder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.spaces[space]
	if d == nil {
		return nil, errors.Wrapf(ErrUnmappedAddress, "memory space %d", space)
	}
	return d, nil
}

// Spaces returns the ids of the memory spaces in use, in ascending order.
//
func (m *Machine) Spaces() []uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]uint32, 0, len(m.spaces))
	for id := range m.spaces {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Map maps [start, end] in the given memory space to raw callbacks. The
// callbacks are not serialized against the scheduler; use MapDevice for
// registered devices.
//
func (m *Machine) Map(space, start, end uint32, r ReadFn, w WriteFn) (int, error) {
	d, err := m.Space(space)
	if err != nil {
		return -1, err
	}
	slot, err := d.Map(start, end, r, w)
	if err != nil {
		return -1, errors.Wrapf(err, "memory space %d", space)
	}
	logger.Logf(logger.Allow, "decoder", "space %d slot %d: %#x..%#x", space, slot, start, end)
	return slot, nil
}

// MapDevice maps [start, end] in the given memory space to the registered
// device id, which must implement Memory. Accesses take the device lock.
//
func (m *Machine) MapDevice(space uint32, id int, start, end uint32) (int, error) {
	rec, err := m.reg.rec(id)
	if err != nil {
		return -1, err
	}
	mem, ok := rec.dev.(Memory)
	if !ok {
		return -1, errors.Wrapf(ErrInvalidConfig, "device %d (%s) is not memory mapped", id, DeviceName(rec.dev))
	}
	return m.Map(space, start, end,
		func(offset uint32) byte {
			rec.mu.Lock()
			defer rec.mu.Unlock()
			return mem.ReadMem(offset)
		},
		func(offset uint32, v byte) {
			rec.mu.Lock()
			defer rec.mu.Unlock()
			mem.WriteMem(offset, v)
		})
}

// Run starts the scheduler. See Xtal.Run.
//
func (m *Machine) Run() error { return m.xtal.Run() }

// Pause pauses the scheduler. See Xtal.Pause.
//
func (m *Machine) Pause() error { return m.xtal.Pause() }

// Step runs n ticks and returns once they have been executed. See Xtal.Step.
//
func (m *Machine) Step(n uint32) error { return m.xtal.Step(n) }

// Exit stops the scheduler and waits for its worker to terminate. It returns
// the worker fault, if any.
//
func (m *Machine) Exit() error {
	err := m.xtal.Exit()
	m.xtal.Wait()
	return err
}

// Reset resets all devices. The scheduler state is left unchanged.
//
func (m *Machine) Reset() error {
	if m.xtal.State() == Exited {
		if err := m.xtal.Err(); err != nil {
			return err
		}
		return ErrExited
	}
	m.reg.ResetAll()
	logger.Logf(logger.Allow, "machine", "reset %d devices", m.reg.Len())
	return nil
}

// memChunk caps the up-front allocation of MemRead.
const memChunk = 4096

// checkSpan fails if n bytes at offset run past the end of the 32 bit address
// space.
func checkSpan(space, offset uint32, n uint64) error {
	if uint64(offset)+n > 1<<32 {
		return errors.Wrapf(ErrUnmappedAddress, "memory space %d: %d bytes at %#x past end of address space", space, n, offset)
	}
	return nil
}

// MemRead reads n bytes starting at offset in the given memory space. The
// read stops at the first unmapped address. Ranges that would wrap around the
// end of the address space are rejected.
//
func (m *Machine) MemRead(space, offset, n uint32) ([]byte, error) {
	d, err := m.decoder(space)
	if err != nil {
		return nil, err
	}
	if err = checkSpan(space, offset, uint64(n)); err != nil {
		return nil, err
	}
	out := make([]byte, 0, min(n, memChunk))
	for i := uint32(0); i < n; i++ {
		v, err := d.Read(offset + i)
		if err != nil {
			return out, errors.Wrapf(err, "memory space %d", space)
		}
		out = append(out, v)
	}
	return out, nil
}

// MemWrite writes data at offset in the given memory space. The write stops at
// the first unmapped address; bytes before it have been written. Nothing is
// written if data would wrap around the end of the address space.
//
func (m *Machine) MemWrite(space, offset uint32, data []byte) error {
	d, err := m.decoder(space)
	if err != nil {
		return err
	}
	if err = checkSpan(space, offset, uint64(len(data))); err != nil {
		return err
	}
	for i, v := range data {
		if err := d.Write(offset+uint32(i), v); err != nil {
			return errors.Wrapf(err, "memory space %d", space)
		}
	}
	return nil
}

// GetRegister reads register reg of device id.
//
func (m *Machine) GetRegister(id int, reg uint32) (uint32, error) {
	return m.reg.GetRegister(id, reg)
}

// SetRegister writes register reg of device id.
//
func (m *Machine) SetRegister(id int, reg, value uint32) error {
	return m.reg.SetRegister(id, reg, value)
}

// Snapshot captures the state of all devices, in the format selected by
// Config.TaggedSnapshots.
//
func (m *Machine) Snapshot() ([]byte, error) {
	return m.codec.Capture(m.reg)
}

// LoadSnapshot restores the state of all devices. See Codec.Restore.
//
func (m *Machine) LoadSnapshot(b []byte) error {
	return m.codec.Restore(m.reg, b)
}

// SaveState writes a snapshot of all devices to the named file.
//
func (m *Machine) SaveState(path string) error {
	b, err := m.Snapshot()
	if err != nil {
		return err
	}
	if err = os.WriteFile(path, b, 0644); err != nil {
		return errors.Wrap(err, "save state")
	}
	logger.Logf(logger.Allow, "machine", "state saved to %s", path)
	return nil
}

// RestoreState restores all devices from the named snapshot file.
//
func (m *Machine) RestoreState(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "restore state")
	}
	if err = m.LoadSnapshot(b); err != nil {
		return errors.Wrapf(err, "restore %s", path)
	}
	logger.Logf(logger.Allow, "machine", "state restored from %s", path)
	return nil
}
