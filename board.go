// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hwemu

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/db47h/hwemu/internal/mdl"
	"github.com/db47h/hwemu/logger"
	"github.com/pkg/errors"
)

// DividerParam is the reserved device parameter setting the clock divider.
const DividerParam = "div"

// A Factory creates a new device from its parameters in a board description.
// Factories must reject unknown parameters.
//
type Factory func(params map[string]uint32) (Device, error)

// Catalog maps device kinds to factories.
//
type Catalog map[string]Factory

// Kinds returns the sorted list of device kinds in the catalog.
//
func (c Catalog) Kinds() []string {
	ks := make([]string, 0, len(c))
	for k := range c {
		ks = append(ks, k)
	}
	sort.Strings(ks)
	return ks
}

// Board is a Machine built from a text description. It remembers device names.
//
type Board struct {
	*Machine
	names []string
	ids   map[string]int
}

// BuildBoard parses the board description src, creates a new machine and
// populates it with devices created from the given catalog:
//
//	# 32KiB of RAM and a timer ticking at 1/4 of the system clock.
//	clock 1000 realtime
//	option max_ticks = 100000
//	ram0 = ram(size=0x8000)       @ 0:0x0000..0x7fff
//	tmr  = counter(div=4)         @ 0:0x8000..0x800f
//
// The clock directive and options override the corresponding fields in cfg.
// Available options are max_ticks, max_devices, max_mappings and tagged. The
// overrides functions, if any, are applied last, after the description has been
// parsed.
//
// Devices are registered in description order. The div parameter sets the
// clock divider (default 1) and is not passed to the factory.
//
func BuildBoard(cfg Config, src string, cat Catalog, overrides ...func(*Config)) (*Board, error) {
	f, err := mdl.Parse(src)
	if err != nil {
		return nil, errors.Wrap(err, "board")
	}
	if err = applyDirectives(&cfg, f); err != nil {
		return nil, err
	}
	for _, o := range overrides {
		o(&cfg)
	}
	m, err := NewMachine(cfg)
	if err != nil {
		return nil, err
	}
	b := &Board{Machine: m, ids: make(map[string]int, len(f.Devices))}
	for _, d := range f.Devices {
		if err = b.add(d, cat); err != nil {
			m.Exit()
			return nil, errors.Wrapf(err, "board: line %s: %s", d.Pos, d.Name)
		}
	}
	logger.Logf(logger.Allow, "board", "%d devices, %d memory spaces", len(b.names), len(m.Spaces()))
	return b, nil
}

func applyDirectives(cfg *Config, f *mdl.File) error {
	if c := f.Clock; c != nil {
		if c.TicksPerSecond == 0 || c.TicksPerSecond > math.MaxInt32 {
			return errors.Wrapf(ErrInvalidConfig, "board: line %s: %d ticks per second", c.Pos, c.TicksPerSecond)
		}
		cfg.TicksPerSecond = int(c.TicksPerSecond)
		if c.RealTime != nil {
			cfg.RealTime = *c.RealTime
		}
	}
	for _, o := range f.Options {
		if o.Value > math.MaxInt32 && o.Name != "max_ticks" {
			return errors.Wrapf(ErrInvalidConfig, "board: line %s: option %s value %d out of range", o.Pos, o.Name, o.Value)
		}
		switch o.Name {
		case "max_ticks":
			cfg.MaxTicks = o.Value
		case "max_devices":
			cfg.MaxDevices = int(o.Value)
		case "max_mappings":
			cfg.MaxMappings = int(o.Value)
		case "tagged":
			cfg.TaggedSnapshots = o.Value != 0
		default:
			return errors.Wrapf(ErrInvalidConfig, "board: line %s: unknown option %q", o.Pos, o.Name)
		}
	}
	return nil
}

func (b *Board) add(d mdl.Device, cat Catalog) error {
	fn := cat[d.Kind]
	if fn == nil {
		return errors.Wrapf(ErrInvalidConfig, "unknown device kind %q", d.Kind)
	}
	div := 1
	params := make(map[string]uint32, len(d.Params))
	for _, p := range d.Params {
		if p.Value > math.MaxUint32 {
			return errors.Wrapf(ErrInvalidConfig, "parameter %s: value %#x out of range", p.Name, p.Value)
		}
		if p.Name == DividerParam {
			div = int(p.Value)
			continue
		}
		params[p.Name] = uint32(p.Value)
	}
	dev, err := fn(params)
	if err != nil {
		return err
	}
	id, err := b.Attach(dev, div)
	if err != nil {
		return err
	}
	b.names = append(b.names, d.Name)
	b.ids[d.Name] = id
	if r := d.Map; r != nil {
		if r.Space > math.MaxUint32 || r.End > math.MaxUint32 {
			return errors.Wrapf(ErrInvalidConfig, "range %d:%#x..%#x out of range", r.Space, r.Start, r.End)
		}
		if _, err = b.MapDevice(uint32(r.Space), id, uint32(r.Start), uint32(r.End)); err != nil {
			return err
		}
	}
	return nil
}

// DeviceID returns the id of the named device.
//
func (b *Board) DeviceID(name string) (int, bool) {
	id, ok := b.ids[name]
	return id, ok
}

// DeviceNames returns the device names, indexed by device id.
//
func (b *Board) DeviceNames() []string {
	return append([]string(nil), b.names...)
}

// WrapMachine returns a Board for a machine built by hand. Device names are
// derived from the device type names followed by the device id.
//
func WrapMachine(m *Machine) *Board {
	b := &Board{Machine: m, ids: make(map[string]int)}
	for id := 0; id < m.reg.Len(); id++ {
		info, _ := m.reg.Info(id)
		name := strings.ToLower(info.Name) + strconv.Itoa(id)
		b.names = append(b.names, name)
		b.ids[name] = id
	}
	return b
}

// ResolveDevice returns the id of the device designated by ref, which is
// either a device name or a decimal device id.
//
func (b *Board) ResolveDevice(ref string) (int, error) {
	if id, ok := b.ids[ref]; ok {
		return id, nil
	}
	id, err := strconv.Atoi(ref)
	if err != nil {
		return -1, errors.Wrapf(ErrUnknownDevice, "device %q", ref)
	}
	if _, err = b.reg.rec(id); err != nil {
		return -1, err
	}
	return id, nil
}
