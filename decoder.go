// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hwemu

import (
	"sort"

	"github.com/pkg/errors"
)

// ReadFn reads the byte at the given device-local offset.
//
type ReadFn func(offset uint32) byte

// WriteFn writes v at the given device-local offset.
//
type WriteFn func(offset uint32, v byte)

// Mapping describes a live entry in a Decoder.
//
type Mapping struct {
	Slot  int
	Start uint32
	End   uint32 // inclusive
}

type entry struct {
	start, end uint32
	read       ReadFn
	write      WriteFn
	used       bool
}

// Decoder routes byte reads and writes to the device owning an address.
//
// Mappings are append-only and must be set up before the decoder is used
// concurrently: Map must not run concurrently with Read or Write.
//
type Decoder struct {
	slots []entry
	n     int   // used slots
	index []int // used slot numbers, sorted by range start
}

// NewDecoder returns a decoder with room for capacity mappings.
//
func NewDecoder(capacity int) (*Decoder, error) {
	if capacity <= 0 {
		return nil, errors.Wrapf(ErrInvalidConfig, "decoder capacity %d", capacity)
	}
	return &Decoder{
		slots: make([]entry, capacity),
		index: make([]int, 0, capacity),
	}, nil
}

// Map maps the inclusive address range [start, end] to the given callbacks and
// returns the slot number of the new mapping. Slots are numbered in mapping
// order.
//
// Map fails with ErrTableFull if there are no free slots left and with
// ErrOverlappingRange if the range intersects an existing mapping.
//
func (d *Decoder) Map(start, end uint32, r ReadFn, w WriteFn) (int, error) {
	if start > end {
		return -1, errors.Wrapf(ErrInvalidConfig, "range %#x..%#x", start, end)
	}
	if r == nil || w == nil {
		return -1, errors.Wrapf(ErrInvalidConfig, "range %#x..%#x: nil callback", start, end)
	}
	if d.n >= len(d.slots) {
		return -1, errors.Wrapf(ErrTableFull, "map %#x..%#x: %d slots in use", start, end, d.n)
	}

	// i is the position of the first mapping starting after start.
	i := sort.Search(len(d.index), func(k int) bool { return d.slots[d.index[k]].start > start })
	if i > 0 {
		if p := &d.slots[d.index[i-1]]; p.end >= start {
			return -1, d.overlap(start, end, d.index[i-1])
		}
	}
	if i < len(d.index) {
		if nx := &d.slots[d.index[i]]; nx.start <= end {
			return -1, d.overlap(start, end, d.index[i])
		}
	}

	slot := d.n
	d.slots[slot] = entry{start: start, end: end, read: r, write: w, used: true}
	d.n++

	d.index = append(d.index, 0)
	copy(d.index[i+1:], d.index[i:])
	d.index[i] = slot
	return slot, nil
}

func (d *Decoder) overlap(start, end uint32, slot int) error {
	e := &d.slots[slot]
	return errors.Wrapf(ErrOverlappingRange, "range %#x..%#x overlaps slot %d (%#x..%#x)", start, end, slot, e.start, e.end)
}

// Lookup returns the mapping covering addr.
//
func (d *Decoder) Lookup(addr uint32) (Mapping, bool) {
	e, slot := d.find(addr)
	if e == nil {
		return Mapping{}, false
	}
	return Mapping{Slot: slot, Start: e.start, End: e.end}, true
}

func (d *Decoder) find(addr uint32) (*entry, int) {
	i := sort.Search(len(d.index), func(k int) bool { return d.slots[d.index[k]].start > addr }) - 1
	if i < 0 {
		return nil, -1
	}
	slot := d.index[i]
	e := &d.slots[slot]
	if !e.used || addr > e.end {
		return nil, -1
	}
	return e, slot
}

// Read reads the byte at addr. It fails with ErrUnmappedAddress if no
// mapping covers addr.
//
func (d *Decoder) Read(addr uint32) (byte, error) {
	e, _ := d.find(addr)
	if e == nil {
		return 0, errors.Wrapf(ErrUnmappedAddress, "read %#x", addr)
	}
	return e.read(addr - e.start), nil
}

// Write writes v at addr. It fails with ErrUnmappedAddress if no mapping
// covers addr.
//
func (d *Decoder) Write(addr uint32, v byte) error {
	e, _ := d.find(addr)
	if e == nil {
		return errors.Wrapf(ErrUnmappedAddress, "write %#x", addr)
	}
	e.write(addr-e.start, v)
	return nil
}

// Mappings returns the live mappings sorted by start address.
//
func (d *Decoder) Mappings() []Mapping {
	ms := make([]Mapping, 0, len(d.index))
	for _, slot := range d.index {
		e := &d.slots[slot]
		ms = append(ms, Mapping{Slot: slot, Start: e.start, End: e.end})
	}
	return ms
}

// Len returns the number of live mappings.
//
func (d *Decoder) Len() int { return d.n }

// Cap returns the mapping capacity.
//
func (d *Decoder) Cap() int { return len(d.slots) }
