// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hwemu_test

import (
	"fmt"

	"github.com/db47h/hwemu"
	"github.com/db47h/hwemu/devlib"
)

// A RAM and a counter ticking at a quarter of the system clock, stepped 12
// ticks.
func ExampleMachine() {
	cfg := hwemu.DefaultConfig()
	cfg.RealTime = false
	m, err := hwemu.NewMachine(cfg)
	if err != nil {
		panic(err)
	}
	defer m.Exit()

	ram := devlib.NewRAM(0x100)
	rid, _ := m.Attach(ram, 1)
	if _, err = m.MapDevice(0, rid, 0x0000, 0x00ff); err != nil {
		panic(err)
	}
	cid, _ := m.Attach(devlib.NewCounter(10, devlib.CounterEnable), 4)

	if err = m.MemWrite(0, 0x10, []byte("hi")); err != nil {
		panic(err)
	}
	if err = m.Step(12); err != nil {
		panic(err)
	}
	b, _ := m.MemRead(0, 0x10, 2)
	cnt, _ := m.GetRegister(cid, devlib.CounterCount)
	fmt.Printf("mem=%q count=%d ticks=%d\n", b, cnt, m.Xtal().Ticks())

	// Output:
	// mem="hi" count=7 ticks=12
}

func ExampleBuildBoard() {
	b, err := hwemu.BuildBoard(hwemu.DefaultConfig(), `
		clock 100 fast
		mem = ram(size=16) @ 0:0x00..0x0f
		io  = port         @ 0:0x10..0x10
	`, devlib.Catalog())
	if err != nil {
		panic(err)
	}
	defer b.Exit()

	_ = b.MemWrite(0, 0x0f, []byte{0xaa, 0x55})
	v, _ := b.MemRead(0, 0x0f, 2)
	latch, _ := b.GetRegister(1, devlib.PortLatch)
	fmt.Printf("% x %#x %v\n", v, latch, b.DeviceNames())

	// Output:
	// aa 55 0x55 [mem io]
}
