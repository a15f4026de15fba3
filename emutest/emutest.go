// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package emutest provides utility functions and devices for testing hwemu
// devices and machines.
//
package emutest

import (
	"bytes"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/db47h/hwemu"
	"github.com/pkg/errors"
)

// CompareRegisters checks that devices a and b hold the same value in every
// register listed in regs.
//
func CompareRegisters(t *testing.T, a, b hwemu.Device, regs []uint32) {
	t.Helper()
	for _, id := range regs {
		va, erra := a.GetRegister(id)
		vb, errb := b.GetRegister(id)
		if (erra == nil) != (errb == nil) {
			t.Errorf("register %d: error mismatch: %v, %v", id, erra, errb)
			continue
		}
		if va != vb {
			t.Errorf("register %d: %#x != %#x", id, va, vb)
		}
	}
}

func save(d hwemu.Device) []byte {
	buf := make([]byte, d.StateSize())
	d.SaveState(buf)
	return buf
}

// CheckDevice runs a set of generic checks against the devices returned by
// newDevice:
//
//	- StateSize is stable and SaveState does not alter the device.
//	- A state saved from a device in a random state restores into a fresh
//	  device with identical register values in regs and an identical state.
//	- A truncated state is rejected with hwemu.ErrCorruptState and does not
//	  alter the device.
//	- Reset is idempotent and brings the device back to its initial state.
//	- Out of range registers are rejected with hwemu.ErrInvalidRegister.
//
// regs lists the writable registers of the device. They are set to random
// values before saving.
//
func CheckDevice(t *testing.T, newDevice func() hwemu.Device, regs []uint32) {
	t.Helper()
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))

	fresh := newDevice()
	fresh.Init()
	initState := save(fresh)

	d := newDevice()
	d.Init()
	sz := d.StateSize()
	if sz < 0 {
		t.Fatalf("negative state size %d", sz)
	}
	for i := rnd.Intn(32) + 1; i > 0; i-- {
		d.Tick()
	}
	for _, id := range regs {
		if err := d.SetRegister(id, rnd.Uint32()); err != nil {
			t.Fatalf("SetRegister(%d): %v", id, err)
		}
	}
	if d.StateSize() != sz {
		t.Fatalf("state size changed from %d to %d", sz, d.StateSize())
	}

	s1 := save(d)
	if s2 := save(d); !bytes.Equal(s1, s2) {
		t.Fatal("SaveState is not repeatable")
	}

	e := newDevice()
	e.Init()
	if err := e.RestoreState(s1); err != nil {
		t.Fatalf("RestoreState: %v", err)
	}
	CompareRegisters(t, d, e, regs)
	if s2 := save(e); !bytes.Equal(s1, s2) {
		t.Fatal("restored state differs from saved state")
	}

	if sz > 0 {
		err := e.RestoreState(s1[:sz-1])
		if errors.Cause(err) != hwemu.ErrCorruptState {
			t.Fatalf("RestoreState of truncated state: expected ErrCorruptState, got %v", err)
		}
		if s2 := save(e); !bytes.Equal(s1, s2) {
			t.Fatal("failed RestoreState altered the device")
		}
	}

	d.Reset()
	r1 := save(d)
	d.Reset()
	if r2 := save(d); !bytes.Equal(r1, r2) {
		t.Fatal("Reset is not idempotent")
	}
	if !bytes.Equal(r1, initState) {
		t.Fatal("state after Reset differs from initial state")
	}

	if _, err := d.GetRegister(math.MaxUint32); errors.Cause(err) != hwemu.ErrInvalidRegister {
		t.Fatalf("GetRegister(MaxUint32): expected ErrInvalidRegister, got %v", err)
	}
	if err := d.SetRegister(math.MaxUint32, 0); errors.Cause(err) != hwemu.ErrInvalidRegister {
		t.Fatalf("SetRegister(MaxUint32): expected ErrInvalidRegister, got %v", err)
	}
}
