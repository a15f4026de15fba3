// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hwemu

import (
	"sync"

	"github.com/db47h/hwemu/logger"
	"github.com/pkg/errors"
)

type record struct {
	mu      sync.Mutex // serializes every call into dev
	dev     Device
	divider int
	counter int
}

// DeviceInfo describes a registered device.
//
type DeviceInfo struct {
	ID      int
	Name    string
	Divider int
}

// Registry owns the set of attached devices. Device ids are registration slot
// indices and never change.
//
// Calls into a given device are serialized with a per-device lock, so the
// scheduler may tick devices while controllers access registers or take
// snapshots.
//
type Registry struct {
	mu   sync.RWMutex // guards recs, not the devices
	max  int
	recs []*record
}

// NewRegistry returns an empty registry with room for max devices.
//
func NewRegistry(max int) (*Registry, error) {
	if max <= 0 {
		return nil, errors.Wrapf(ErrInvalidConfig, "registry capacity %d", max)
	}
	return &Registry{max: max}, nil
}

// Register calls d.Init and adds d to the registry. The device will receive
// one Tick every divider system ticks. The returned device id is the
// registration order index.
//
func (r *Registry) Register(d Device, divider int) (int, error) {
	if d == nil {
		return -1, errors.Wrap(ErrInvalidConfig, "nil device")
	}
	if divider < 1 {
		return -1, errors.Wrapf(ErrInvalidConfig, "clock divider %d for %s", divider, DeviceName(d))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.recs) >= r.max {
		return -1, errors.Wrapf(ErrRegistryFull, "register %s: %d devices", DeviceName(d), len(r.recs))
	}
	d.Init()
	id := len(r.recs)
	r.recs = append(r.recs, &record{dev: d, divider: divider})
	logger.Logf(logger.Allow, "registry", "device %d: %s, divider %d", id, DeviceName(d), divider)
	return id, nil
}

func (r *Registry) rec(id int) (*record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id < 0 || id >= len(r.recs) {
		return nil, errors.Wrapf(ErrUnknownDevice, "device %d", id)
	}
	return r.recs[id], nil
}

// records returns a snapshot of the record list.
func (r *Registry) records() []*record {
	r.mu.RLock()
	recs := r.recs
	r.mu.RUnlock()
	return recs
}

// tickAll performs one system tick: every device whose divider counter
// reaches its clock divider gets a Tick.
//
func (r *Registry) tickAll() {
	for _, rec := range r.records() {
		rec.tick()
	}
}

func (rec *record) tick() {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.counter++
	if rec.counter >= rec.divider {
		rec.counter = 0
		rec.dev.Tick()
	}
}

// ResetAll resets every device in registration order. Divider counters are
// cleared as well so that device clocks restart in phase.
//
func (r *Registry) ResetAll() {
	for _, rec := range r.records() {
		rec.mu.Lock()
		rec.counter = 0
		rec.dev.Reset()
		rec.mu.Unlock()
	}
}

// GetRegister reads register reg of device id.
//
func (r *Registry) GetRegister(id int, reg uint32) (uint32, error) {
	rec, err := r.rec(id)
	if err != nil {
		return 0, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	v, err := rec.dev.GetRegister(reg)
	return v, errors.Wrapf(err, "device %d", id)
}

// SetRegister writes value to register reg of device id.
//
func (r *Registry) SetRegister(id int, reg, value uint32) error {
	rec, err := r.rec(id)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return errors.Wrapf(rec.dev.SetRegister(reg, value), "device %d", id)
}

// Do calls f with device id while holding the device lock.
//
func (r *Registry) Do(id int, f func(Device) error) error {
	rec, err := r.rec(id)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return f(rec.dev)
}

// Device returns the device with the given id.
//
// The returned device must not be called directly while the scheduler is
// running; use Do instead.
//
func (r *Registry) Device(id int) (Device, error) {
	rec, err := r.rec(id)
	if err != nil {
		return nil, err
	}
	return rec.dev, nil
}

// Info returns a description of device id.
//
func (r *Registry) Info(id int) (DeviceInfo, error) {
	rec, err := r.rec(id)
	if err != nil {
		return DeviceInfo{}, err
	}
	return DeviceInfo{ID: id, Name: DeviceName(rec.dev), Divider: rec.divider}, nil
}

// Len returns the number of registered devices.
//
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.recs)
}

// Cap returns the maximum number of devices.
//
func (r *Registry) Cap() int { return r.max }
