// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

/*
Package hwemu provides the core of a small system emulator: a set of pluggable
devices driven by a shared virtual clock (the xtal) and wired together through
memory-mapped address spaces.

A Machine owns a Registry of devices, one Decoder per memory space and the Xtal
scheduler. Devices implement the Device interface and are registered with a
clock divider: a device with divider N receives one Tick for every N system
ticks.

	m, err := hwemu.NewMachine(hwemu.DefaultConfig())
	if err != nil {
		// handle error
	}
	defer m.Exit()

	ram := devlib.NewRAM(0x8000)
	id, _ := m.Attach(ram, 1)
	m.MapDevice(0, id, 0x0000, 0x7fff)

	m.Step(12)

The state of every registered device can be captured into a snapshot and
restored later against an identically configured machine. See Capture and
Restore for the byte layout.

Machines can also be described in a small text format and built with
BuildBoard. See the devlib package for the reference devices.
*/
package hwemu
