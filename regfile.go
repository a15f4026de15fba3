// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hwemu

import (
	"encoding/binary"
	"reflect"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

type regField struct {
	name  string
	v     reflect.Value
	width int // bytes
}

// RegFile is a register file built by reflection over the fields of a struct.
// It gives devices register access and state serialization for free.
//
// See MakeRegFile.
//
type RegFile struct {
	regs  []regField
	names map[string]uint32
	size  int
}

// MakeRegFile builds a register file over the struct pointed to by ptr.
//
// Registers are identified by field tags. The tag must be `hw:"reg"`. By
// default the register name is the field name in lowercase; a specific name
// can be forced by adding it to the tag: `hw:"reg,name"`.
//
// Supported field types are uint8, uint16, uint32 and arrays of these. Each
// array element is a separate register named name[index]. Register ids are
// assigned in field order.
//
//	type timer struct {
//		Count  uint32   `hw:"reg"`
//		Reload uint32   `hw:"reg"`
//		Ctl    uint8    `hw:"reg,control"`
//		Scr    [4]uint8 `hw:"reg"`
//		busy   bool
//	}
//
//	t := new(timer)
//	rf, err := hwemu.MakeRegFile(t)
//
func MakeRegFile(ptr interface{}) (*RegFile, error) {
	v := reflect.ValueOf(ptr)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return nil, errors.Errorf("unsupported type %T, need a non nil pointer to a struct", ptr)
	}
	v = v.Elem()
	typ := v.Type()

	rf := &RegFile{names: make(map[string]uint32)}
	add := func(name string, fv reflect.Value) error {
		w := int(fv.Type().Size())
		switch fv.Kind() {
		case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		default:
			return errors.Errorf("unsupported type %q for register %q in %q", fv.Kind(), name, typ.Name())
		}
		if _, ok := rf.names[name]; ok {
			return errors.Errorf("duplicate register name %q in %q", name, typ.Name())
		}
		rf.names[name] = uint32(len(rf.regs))
		rf.regs = append(rf.regs, regField{name: name, v: fv, width: w})
		rf.size += w
		return nil
	}

	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag, ok := f.Tag.Lookup("hw")
		if !ok {
			continue
		}
		tv := strings.Split(tag, ",")
		if tv[0] != "reg" {
			return nil, errors.Errorf("unsupported tag %q for field %q in %q", tag, f.Name, typ.Name())
		}
		name := strings.ToLower(f.Name)
		if len(tv) > 1 && tv[1] != "" {
			name = tv[1]
		}
		if f.PkgPath != "" {
			return nil, errors.Errorf("unexported field %q in %q", f.Name, typ.Name())
		}
		fv := v.Field(i)
		if fv.Kind() == reflect.Array {
			for j := 0; j < fv.Len(); j++ {
				if err := add(name+"["+strconv.Itoa(j)+"]", fv.Index(j)); err != nil {
					return nil, err
				}
			}
			continue
		}
		if err := add(name, fv); err != nil {
			return nil, err
		}
	}
	return rf, nil
}

// Len returns the number of registers.
//
func (rf *RegFile) Len() int { return len(rf.regs) }

// Lookup returns the id of the named register.
//
func (rf *RegFile) Lookup(name string) (uint32, bool) {
	id, ok := rf.names[name]
	return id, ok
}

// Name returns the name of register id, or an empty string if there is no
// such register.
//
func (rf *RegFile) Name(id uint32) string {
	if uint64(id) >= uint64(len(rf.regs)) {
		return ""
	}
	return rf.regs[id].name
}

// Get returns the value of register id.
//
func (rf *RegFile) Get(id uint32) (uint32, error) {
	if uint64(id) >= uint64(len(rf.regs)) {
		return 0, errors.Wrapf(ErrInvalidRegister, "register %d", id)
	}
	return uint32(rf.regs[id].v.Uint()), nil
}

// Set sets register id to v, truncated to the register width.
//
func (rf *RegFile) Set(id, v uint32) error {
	if uint64(id) >= uint64(len(rf.regs)) {
		return errors.Wrapf(ErrInvalidRegister, "register %d", id)
	}
	rf.regs[id].v.SetUint(uint64(v))
	return nil
}

// Size returns the size in bytes of the serialized register file.
//
func (rf *RegFile) Size() int { return rf.size }

// Save writes all registers to buf, little-endian, in register id order. buf
// must be at least Size() bytes long.
//
func (rf *RegFile) Save(buf []byte) {
	off := 0
	for _, r := range rf.regs {
		switch r.width {
		case 1:
			buf[off] = byte(r.v.Uint())
		case 2:
			binary.LittleEndian.PutUint16(buf[off:], uint16(r.v.Uint()))
		case 4:
			binary.LittleEndian.PutUint32(buf[off:], uint32(r.v.Uint()))
		}
		off += r.width
	}
}

// Restore loads all registers from buf. It fails with ErrCorruptState if buf
// is not exactly Size() bytes long, in which case no register is modified.
//
func (rf *RegFile) Restore(buf []byte) error {
	if len(buf) != rf.size {
		return errors.Wrapf(ErrCorruptState, "register file: %d bytes, expected %d", len(buf), rf.size)
	}
	off := 0
	for _, r := range rf.regs {
		switch r.width {
		case 1:
			r.v.SetUint(uint64(buf[off]))
		case 2:
			r.v.SetUint(uint64(binary.LittleEndian.Uint16(buf[off:])))
		case 4:
			r.v.SetUint(uint64(binary.LittleEndian.Uint32(buf[off:])))
		}
		off += r.width
	}
	return nil
}

// Zero clears all registers.
//
func (rf *RegFile) Zero() {
	for _, r := range rf.regs {
		r.v.SetUint(0)
	}
}
