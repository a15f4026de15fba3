// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package devlib provides reference devices for hwemu machines: a RAM block, a
// test device with structural state markers, a down counting timer and a
// function backed I/O port.
//
// Catalog returns the factories used to instantiate these devices from a board
// description:
//
//	ram(size=<bytes>)                       default size 64KiB
//	dummy
//	counter(reload=<n>, enable=<0|1>, auto=<0|1>)
//	port
//
package devlib

import (
	"sort"
	"strings"

	"github.com/db47h/hwemu"
	"github.com/pkg/errors"
)

// Catalog returns a catalog of all devices in this package.
//
func Catalog() hwemu.Catalog {
	return hwemu.Catalog{
		"ram":     newRAM,
		"dummy":   newDummy,
		"counter": newCounter,
		"port":    newPort,
	}
}

// checkParams returns an error if p contains a parameter not listed in names.
func checkParams(kind string, p map[string]uint32, names ...string) error {
	var unknown []string
	for k := range p {
		ok := false
		for _, n := range names {
			if k == n {
				ok = true
				break
			}
		}
		if !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return errors.Wrapf(hwemu.ErrInvalidConfig, "%s: unknown parameters %s", kind, strings.Join(unknown, ", "))
	}
	return nil
}

func newRAM(p map[string]uint32) (hwemu.Device, error) {
	if err := checkParams("ram", p, "size"); err != nil {
		return nil, err
	}
	size, ok := p["size"]
	if !ok {
		size = DefaultRAMSize
	}
	return NewRAM(size), nil
}

func newDummy(p map[string]uint32) (hwemu.Device, error) {
	if err := checkParams("dummy", p); err != nil {
		return nil, err
	}
	return NewDummy(), nil
}

func newCounter(p map[string]uint32) (hwemu.Device, error) {
	if err := checkParams("counter", p, "reload", "enable", "auto"); err != nil {
		return nil, err
	}
	var ctl uint32
	if p["enable"] != 0 {
		ctl |= CounterEnable
	}
	if p["auto"] != 0 {
		ctl |= CounterAutoReload
	}
	return NewCounter(p["reload"], ctl), nil
}

func newPort(p map[string]uint32) (hwemu.Device, error) {
	if err := checkParams("port", p); err != nil {
		return nil, err
	}
	return NewPort(nil, nil), nil
}
