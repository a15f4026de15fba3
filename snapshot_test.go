// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hwemu_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/db47h/hwemu"
	"github.com/db47h/hwemu/devlib"
	"github.com/db47h/hwemu/emutest"
	"github.com/pkg/errors"
)

// testBoard returns a machine with a RAM, a dummy and a counter.
func testBoard(t *testing.T, cfg hwemu.Config) (*hwemu.Machine, []hwemu.Device) {
	t.Helper()
	m := newMachine(t, cfg)
	devs := []hwemu.Device{devlib.NewRAM(16), devlib.NewDummy(), devlib.NewCounter(5, devlib.CounterEnable|devlib.CounterAutoReload)}
	for _, d := range devs {
		attach(t, m, d, 1)
	}
	return m, devs
}

func snapshot(t *testing.T, m *hwemu.Machine) []byte {
	t.Helper()
	b, err := m.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestSnapshot_roundTrip(t *testing.T) {
	for _, tagged := range []bool{false, true} {
		cfg := testConfig()
		cfg.TaggedSnapshots = tagged
		m, devs := testBoard(t, cfg)
		_ = m.SetRegister(0, devlib.RAMData+3, 0x42)
		_ = m.SetRegister(1, 17, 0x99)
		if err := m.Step(7); err != nil {
			t.Fatal(err)
		}
		s := snapshot(t, m)

		m2, devs2 := testBoard(t, cfg)
		if err := m2.LoadSnapshot(s); err != nil {
			trace(t, err)
			t.Fatal(err)
		}
		emutest.CompareRegisters(t, devs[0], devs2[0], []uint32{devlib.RAMSize, devlib.RAMData + 3})
		emutest.CompareRegisters(t, devs[1], devs2[1], []uint32{17, devlib.DummyTicks})
		emutest.CompareRegisters(t, devs[2], devs2[2], []uint32{devlib.CounterCount, devlib.CounterStatus})
		if s2 := snapshot(t, m2); !bytes.Equal(s, s2) {
			t.Fatalf("tagged=%v: snapshot of restored machine differs", tagged)
		}
	}
}

func TestSnapshot_layout(t *testing.T) {
	m := newMachine(t, testConfig())
	p := new(emutest.Probe)
	attach(t, m, p, 1)
	_ = p.SetRegister(0, 0x0102)

	exp := []byte{1, 0, 0, 0, 8, 0, 0, 0, 2, 1, 0, 0, 0, 0, 0, 0}
	if s := snapshot(t, m); !bytes.Equal(s, exp) {
		t.Fatalf("untagged: got % x, expected % x", s, exp)
	}

	r := m.Registry()
	s, err := hwemu.Codec{Tagged: true}.Capture(r)
	if err != nil {
		t.Fatal(err)
	}
	exp = append([]byte("HWES\x01\x00\x00\x00\x01\x00\x00\x00\x05probe"), exp[4:]...)
	if !bytes.Equal(s, exp) {
		t.Fatalf("tagged: got % x, expected % x", s, exp)
	}

	empty, _ := hwemu.NewRegistry(1)
	if s, _ = hwemu.Capture(empty); !bytes.Equal(s, []byte{0, 0, 0, 0}) {
		t.Fatalf("empty registry: % x", s)
	}
	if err = hwemu.Restore(empty, s); err != nil {
		t.Fatal(err)
	}
}

func TestSnapshot_mismatch(t *testing.T) {
	m, _ := testBoard(t, testConfig())
	s := snapshot(t, m)

	m2 := newMachine(t, testConfig())
	attach(t, m2, devlib.NewRAM(16), 1)
	attach(t, m2, devlib.NewDummy(), 1)
	_ = m2.SetRegister(1, 5, 5)
	before := snapshot(t, m2)
	expectCause(t, m2.LoadSnapshot(s), hwemu.ErrSnapshotMismatch)
	if after := snapshot(t, m2); !bytes.Equal(before, after) {
		t.Fatal("failed restore altered devices")
	}
}

func TestSnapshot_corrupt(t *testing.T) {
	m, _ := testBoard(t, testConfig())
	_ = m.SetRegister(1, 5, 5)
	before := snapshot(t, m)

	td := map[string][]byte{
		"empty":     nil,
		"truncated": before[:len(before)-1],
		"trailing":  append(append([]byte(nil), before...), 0),
	}
	// RAM record claiming one extra byte.
	b := append([]byte(nil), before...)
	binary.LittleEndian.PutUint32(b[4:], 21)
	td["size"] = append(b, 0)

	for n, s := range td {
		err := m.LoadSnapshot(s)
		expectCause(t, err, hwemu.ErrCorruptSnapshot)
		if after := snapshot(t, m); !bytes.Equal(before, after) {
			t.Fatalf("%s: failed restore altered devices", n)
		}
	}
}

func TestSnapshot_deviceReject(t *testing.T) {
	m := newMachine(t, testConfig())
	p := new(emutest.Probe)
	attach(t, m, p, 1)
	attach(t, m, devlib.NewDummy(), 1)
	_ = p.SetRegister(0, 10)
	s := snapshot(t, m)
	_ = p.SetRegister(0, 0)

	// header (4) + probe record (4 + 8) + dummy size (4), then marker at 12.
	s[4+12+4+12] = 0
	err := m.LoadSnapshot(s)
	expectCause(t, err, hwemu.ErrCorruptSnapshot)
	var de *hwemu.DeviceError
	if !errors.As(err, &de) || de.ID != 1 || de.Name != "dummy" {
		t.Fatalf("device not reported: %v", err)
	}
	if errors.Cause(de.Err) != hwemu.ErrCorruptState || !errors.Is(err, hwemu.ErrCorruptState) {
		t.Fatalf("device error lost: %v", err)
	}
	if p.Ticks() != 10 {
		t.Fatal("device before the failing one not restored")
	}
}

func TestSnapshot_tagged(t *testing.T) {
	cfg := testConfig()
	cfg.TaggedSnapshots = true
	m := newMachine(t, cfg)
	attach(t, m, &emutest.Probe{ID: "a"}, 1)
	s := snapshot(t, m)

	m2 := newMachine(t, cfg)
	attach(t, m2, &emutest.Probe{ID: "b"}, 1)
	expectCause(t, m2.LoadSnapshot(s), hwemu.ErrSnapshotMismatch)

	bad := append([]byte(nil), s...)
	bad[0] = 'X'
	expectCause(t, m.LoadSnapshot(bad), hwemu.ErrCorruptSnapshot)
	bad = append([]byte(nil), s...)
	bad[4] = 2
	expectCause(t, m.LoadSnapshot(bad), hwemu.ErrSnapshotMismatch)

	// untagged snapshots are rejected by a tagged codec
	u, _ := hwemu.Capture(m.Registry())
	if err := m.LoadSnapshot(u); err == nil {
		t.Fatal("untagged snapshot accepted")
	}
}
