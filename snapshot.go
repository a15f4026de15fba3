// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hwemu

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/db47h/hwemu/logger"
	"github.com/pkg/errors"
)

// Tagged snapshot header.
const (
	SnapshotMagic   = "HWES"
	SnapshotVersion = 1
)

// Codec serializes the state of all the devices in a registry.
//
// The default (untagged) layout, all integers little-endian u32:
//
//	[device count] then for each device in registration order: [size] [size bytes]
//
// There is no type or version information: a snapshot can only be restored
// into a registry holding the same device types, registered in the same
// order.
//
// The tagged layout adds a header and a per-record device name that is checked
// against the live device on restore:
//
//	"HWES" [version] [device count] then for each device:
//	[name length: u8] [name] [size] [size bytes]
//
type Codec struct {
	Tagged bool
}

// Capture captures the state of all devices in r using the untagged layout.
//
func Capture(r *Registry) ([]byte, error) {
	return Codec{}.Capture(r)
}

// Restore restores the state of all devices in r from an untagged snapshot.
//
func Restore(r *Registry, b []byte) error {
	return Codec{}.Restore(r, b)
}

// Capture returns a snapshot of every device in r. Each device is locked while
// its state is saved; callers that need a consistent snapshot across devices
// should pause the scheduler first.
//
func (c Codec) Capture(r *Registry) ([]byte, error) {
	var buf bytes.Buffer
	var u32 [4]byte

	put := func(v uint32) {
		binary.LittleEndian.PutUint32(u32[:], v)
		buf.Write(u32[:])
	}

	recs := r.records()
	if c.Tagged {
		buf.WriteString(SnapshotMagic)
		put(SnapshotVersion)
	}
	put(uint32(len(recs)))
	for id, rec := range recs {
		err := func() error {
			rec.mu.Lock()
			defer rec.mu.Unlock()
			if c.Tagged {
				name := DeviceName(rec.dev)
				if len(name) > math.MaxUint8 {
					name = name[:math.MaxUint8]
				}
				buf.WriteByte(byte(len(name)))
				buf.WriteString(name)
			}
			sz := rec.dev.StateSize()
			if sz < 0 || uint64(sz) > math.MaxUint32 {
				return errors.Errorf("device %d: invalid state size %d", id, sz)
			}
			put(uint32(sz))
			start := buf.Len()
			buf.Grow(sz)
			buf.Write(make([]byte, sz))
			rec.dev.SaveState(buf.Bytes()[start : start+sz])
			return nil
		}()
		if err != nil {
			return nil, err
		}
	}
	logger.Logf(logger.Allow, "snapshot", "captured %d devices, %d bytes", len(recs), buf.Len())
	return buf.Bytes(), nil
}

type frame struct {
	name string
	data []byte
}

type reader struct {
	b   []byte
	off int
}

func (rd *reader) u32(what string) (uint32, error) {
	if len(rd.b)-rd.off < 4 {
		return 0, errors.Wrapf(ErrCorruptSnapshot, "truncated %s at offset %d", what, rd.off)
	}
	v := binary.LittleEndian.Uint32(rd.b[rd.off:])
	rd.off += 4
	return v, nil
}

func (rd *reader) bytes(n uint64, what string) ([]byte, error) {
	if uint64(len(rd.b)-rd.off) < n {
		return nil, errors.Wrapf(ErrCorruptSnapshot, "%s at offset %d: %d bytes past end of buffer", what, rd.off, n-uint64(len(rd.b)-rd.off))
	}
	p := rd.b[rd.off : rd.off+int(n)]
	rd.off += int(n)
	return p, nil
}

// parse validates the whole snapshot framing against recs without touching any
// device.
func (c Codec) parse(b []byte, recs []*record) ([]frame, error) {
	rd := &reader{b: b}
	if c.Tagged {
		magic, err := rd.bytes(uint64(len(SnapshotMagic)), "magic")
		if err != nil {
			return nil, err
		}
		if string(magic) != SnapshotMagic {
			return nil, errors.Wrapf(ErrCorruptSnapshot, "bad magic %q", magic)
		}
		v, err := rd.u32("version")
		if err != nil {
			return nil, err
		}
		if v != SnapshotVersion {
			return nil, errors.Wrapf(ErrSnapshotMismatch, "unsupported version %d", v)
		}
	}
	n, err := rd.u32("device count")
	if err != nil {
		return nil, err
	}
	if uint64(n) != uint64(len(recs)) {
		return nil, errors.Wrapf(ErrSnapshotMismatch, "snapshot has %d devices, %d registered", n, len(recs))
	}

	frames := make([]frame, n)
	for i := range frames {
		f := &frames[i]
		if c.Tagged {
			l, err := rd.bytes(1, "name length")
			if err != nil {
				return nil, err
			}
			name, err := rd.bytes(uint64(l[0]), "device name")
			if err != nil {
				return nil, err
			}
			f.name = string(name)
		}
		sz, err := rd.u32("state size")
		if err != nil {
			return nil, errors.Wrapf(err, "device %d", i)
		}
		if f.data, err = rd.bytes(uint64(sz), "device state"); err != nil {
			return nil, errors.Wrapf(err, "device %d", i)
		}
	}
	if rd.off != len(b) {
		return nil, errors.Wrapf(ErrCorruptSnapshot, "%d trailing bytes", len(b)-rd.off)
	}

	// check records against live devices
	for i, f := range frames {
		rec := recs[i]
		rec.mu.Lock()
		name, sz := DeviceName(rec.dev), rec.dev.StateSize()
		rec.mu.Unlock()
		if c.Tagged && f.name != name {
			return nil, errors.Wrapf(ErrSnapshotMismatch, "device %d is %s, snapshot has %s", i, name, f.name)
		}
		if len(f.data) != sz {
			return nil, errors.Wrapf(ErrCorruptSnapshot, "device %d (%s): state size %d, expected %d", i, name, len(f.data), sz)
		}
	}
	return frames, nil
}

// Restore restores every device in r from snapshot b.
//
// The snapshot framing is fully validated before any device is touched:
// ErrSnapshotMismatch and framing errors leave all devices unchanged. If a
// device rejects its state, devices restored before it keep their new state
// and Restore fails with a *DeviceError whose cause is ErrCorruptSnapshot; the
// machine should not be resumed without remediation.
//
func (c Codec) Restore(r *Registry, b []byte) error {
	recs := r.records()
	frames, err := c.parse(b, recs)
	if err != nil {
		logger.Logf(logger.Allow, "snapshot", "restore rejected: %v", err)
		return err
	}
	for i, f := range frames {
		rec := recs[i]
		rec.mu.Lock()
		err = rec.dev.RestoreState(f.data)
		rec.mu.Unlock()
		if err != nil {
			logger.Logf(logger.Allow, "snapshot", "device %d failed to restore, %d of %d restored: %v", i, i, len(frames), err)
			return errors.WithStack(&DeviceError{ID: i, Name: DeviceName(rec.dev), Err: err})
		}
	}
	logger.Logf(logger.Allow, "snapshot", "restored %d devices", len(frames))
	return nil
}
