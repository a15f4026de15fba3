// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hwemu_test

import (
	"testing"

	"github.com/db47h/hwemu"
	"github.com/db47h/hwemu/devlib"
	"github.com/pkg/errors"
)

const testDesc = `
# test board
clock 1000 fast
option max_ticks = 1000
option tagged = 1

ram0 = ram(size=0x100)         @ 0:0x0000..0x00ff
dmy  = dummy
tmr  = counter(div=4, reload=2, enable=1) @ 0:0x8000..0x800f
`

func buildBoard(t *testing.T, src string, overrides ...func(*hwemu.Config)) *hwemu.Board {
	t.Helper()
	b, err := hwemu.BuildBoard(hwemu.DefaultConfig(), src, devlib.Catalog(), overrides...)
	if err != nil {
		trace(t, err)
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = b.Exit() })
	return b
}

func TestBuildBoard(t *testing.T) {
	b := buildBoard(t, testDesc)
	cfg := b.Config()
	if cfg.TicksPerSecond != 1000 || cfg.RealTime || cfg.MaxTicks != 1000 || !cfg.TaggedSnapshots {
		t.Fatalf("bad config %+v", cfg)
	}
	names := b.DeviceNames()
	if len(names) != 3 || names[0] != "ram0" || names[1] != "dmy" || names[2] != "tmr" {
		t.Fatalf("names %v", names)
	}
	tmr, ok := b.DeviceID("tmr")
	if !ok || tmr != 2 {
		t.Fatalf("DeviceID(tmr) = %d, %v", tmr, ok)
	}
	if info, _ := b.Registry().Info(tmr); info.Divider != 4 || info.Name != "counter" {
		t.Fatalf("info %+v", info)
	}

	if err := b.MemWrite(0, 0x10, []byte{1, 2}); err != nil {
		t.Fatal(err)
	}
	// 8 system ticks, 2 counter ticks
	if err := b.Step(8); err != nil {
		t.Fatal(err)
	}
	if v, err := b.MemRead(0, 0x8000, 4); err != nil || v[0] != 0 {
		t.Fatalf("counter count: %v, %v", v, err)
	}
	if v, _ := b.GetRegister(1, devlib.DummyTicks); v != 8 {
		t.Fatalf("dummy ticks %d", v)
	}
}

func TestBuildBoard_overrides(t *testing.T) {
	b := buildBoard(t, testDesc, func(c *hwemu.Config) { c.MaxTicks = 0 })
	if b.Config().MaxTicks != 0 {
		t.Fatal("override not applied")
	}
}

func TestBuildBoard_errors(t *testing.T) {
	td := []struct {
		name  string
		src   string
		cause error
	}{
		{"kind", "x = flux", hwemu.ErrInvalidConfig},
		{"param", "x = ram(bogus=1)", hwemu.ErrInvalidConfig},
		{"divider", "x = ram(div=0)", hwemu.ErrInvalidConfig},
		{"option", "option nope = 1", hwemu.ErrInvalidConfig},
		{"clock", "clock 0", hwemu.ErrInvalidConfig},
		{"overlap", "a = ram(size=16) @ 0:0..15\nb = ram(size=16) @ 0:8..23", hwemu.ErrOverlappingRange},
		{"full", "option max_devices = 1\na = dummy\nb = dummy", hwemu.ErrRegistryFull},
		{"mappings", "option max_mappings = 1\na = ram(size=16) @ 0:0..15\nb = ram(size=16) @ 0:16..31", hwemu.ErrTableFull},
		{"dummy mapped", "a = dummy @ 0:0..15\nb = ram(size=16) @ 0:16..31", nil},
	}
	for _, tc := range td {
		b, err := hwemu.BuildBoard(hwemu.DefaultConfig(), tc.src, devlib.Catalog())
		if tc.cause == nil {
			if err != nil {
				t.Errorf("%s: %v", tc.name, err)
			} else {
				_ = b.Exit()
			}
			continue
		}
		if errors.Cause(err) != tc.cause {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.cause, err)
		}
	}
	if _, err := hwemu.BuildBoard(hwemu.DefaultConfig(), "a = (", devlib.Catalog()); err == nil {
		t.Error("syntax error not reported")
	}
}

func TestWrapMachine(t *testing.T) {
	m := newMachine(t, testConfig())
	attach(t, m, devlib.NewRAM(4), 1)
	attach(t, m, devlib.NewDummy(), 1)
	b := hwemu.WrapMachine(m)
	if id, ok := b.DeviceID("dummy1"); !ok || id != 1 {
		t.Fatalf("DeviceID(dummy1) = %d, %v", id, ok)
	}
	if names := b.DeviceNames(); len(names) != 2 || names[0] != "ram0" {
		t.Fatalf("names %v", names)
	}
}

func TestBoard_ResolveDevice(t *testing.T) {
	b := buildBoard(t, testDesc)
	for ref, exp := range map[string]int{"tmr": 2, "0": 0, "1": 1} {
		if id, err := b.ResolveDevice(ref); err != nil || id != exp {
			t.Errorf("ResolveDevice(%q) = %d, %v", ref, id, err)
		}
	}
	for _, ref := range []string{"nope", "3", "-1"} {
		_, err := b.ResolveDevice(ref)
		expectCause(t, err, hwemu.ErrUnknownDevice)
	}
}
