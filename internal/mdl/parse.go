// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package mdl parses machine descriptions.
//
// A description is a list of lines. Comments start with '#' and run to the end
// of the line. Each non-empty line is one of:
//
//	clock <ticks per second> [realtime | fast]
//	option <name> = <int>
//	<name> = <kind>[(<param> = <int>, ...)] [@ <space>:<start>..<end>]
//
// Integers are decimal or hexadecimal with a 0x prefix. Underscores may be used
// as digit separators.
//
package mdl

import (
	"fmt"

	"github.com/pkg/errors"
)

// Clock is a clock directive.
//
type Clock struct {
	Pos            Pos
	TicksPerSecond uint64
	RealTime       *bool // nil if not specified
}

// Option is an option directive.
//
type Option struct {
	Pos   Pos
	Name  string
	Value uint64
}

// Param is a device parameter.
//
type Param struct {
	Pos   Pos
	Name  string
	Value uint64
}

// Range is an address range in a memory space.
//
type Range struct {
	Pos   Pos
	Space uint64
	Start uint64
	End   uint64
}

// Device is a device declaration.
//
type Device struct {
	Pos    Pos
	Name   string
	Kind   string
	Params []Param
	Map    *Range // nil if the device is not mapped
}

// File is a parsed description.
//
type File struct {
	Clock   *Clock
	Options []Option
	Devices []Device
}

type parser struct {
	l *Lexer
	i Item
}

func (p *parser) next() Item {
	p.i = p.l.Lex()
	return p.i
}

func (p *parser) errorf(pos Pos, format string, args ...interface{}) error {
	return errors.Errorf("line %s: %s", pos, fmt.Sprintf(format, args...))
}

func (p *parser) unexpected(what string) error {
	return p.errorf(p.i.Pos, "unexpected %s, expected %s", p.i, what)
}

func (p *parser) expect(t Type) (Item, error) {
	i := p.next()
	if i.Type != t {
		return i, p.unexpected(t.String())
	}
	return i, nil
}

// endOfLine checks that the current item ends the statement.
func (p *parser) endOfLine() error {
	if p.i.Type != Newline && p.i.Type != EOF {
		return p.unexpected("end of line")
	}
	return nil
}

// Parse parses the description in src.
//
func Parse(src string) (*File, error) {
	p := &parser{l: NewLexer(src)}
	f := new(File)
	for {
		i := p.next()
		switch i.Type {
		case EOF:
			return f, nil
		case Newline:
			continue
		case Ident:
		default:
			return nil, p.unexpected("clock, option or device declaration")
		}

		var err error
		switch i.Value.(string) {
		case "clock":
			err = p.clock(f)
		case "option":
			err = p.option(f)
		default:
			err = p.device(f)
		}
		if err != nil {
			return nil, err
		}
		if err = p.endOfLine(); err != nil {
			return nil, err
		}
		if p.i.Type == EOF {
			return f, nil
		}
	}
}

func (p *parser) clock(f *File) error {
	pos := p.i.Pos
	if f.Clock != nil {
		return p.errorf(pos, "duplicate clock directive, first one at line %s", f.Clock.Pos)
	}
	i, err := p.expect(Int)
	if err != nil {
		return err
	}
	c := &Clock{Pos: pos, TicksPerSecond: i.Value.(uint64)}
	if i = p.next(); i.Type == Ident {
		rt := false
		switch i.Value.(string) {
		case "realtime":
			rt = true
		case "fast":
		default:
			return p.unexpected("realtime or fast")
		}
		c.RealTime = &rt
		p.next()
	}
	f.Clock = c
	return nil
}

func (p *parser) option(f *File) error {
	pos := p.i.Pos
	name, err := p.expect(Ident)
	if err != nil {
		return err
	}
	if _, err = p.expect(Equal); err != nil {
		return err
	}
	v, err := p.expect(Int)
	if err != nil {
		return err
	}
	f.Options = append(f.Options, Option{Pos: pos, Name: name.Value.(string), Value: v.Value.(uint64)})
	p.next()
	return nil
}

func (p *parser) device(f *File) error {
	d := Device{Pos: p.i.Pos, Name: p.i.Value.(string)}
	for _, o := range f.Devices {
		if o.Name == d.Name {
			return p.errorf(d.Pos, "duplicate device name %q, first declared at line %s", d.Name, o.Pos)
		}
	}
	if _, err := p.expect(Equal); err != nil {
		return err
	}
	kind, err := p.expect(Ident)
	if err != nil {
		return err
	}
	d.Kind = kind.Value.(string)

	if p.next(); p.i.Type == ParenOpen {
		if d.Params, err = p.params(); err != nil {
			return err
		}
		p.next()
	}
	if p.i.Type == At {
		if d.Map, err = p.addrRange(); err != nil {
			return err
		}
		p.next()
	}
	f.Devices = append(f.Devices, d)
	return nil
}

func (p *parser) params() ([]Param, error) {
	var ps []Param
	for {
		name, err := p.expect(Ident)
		if err != nil {
			if len(ps) == 0 && p.i.Type == ParenClose {
				return nil, nil
			}
			return nil, err
		}
		for _, o := range ps {
			if o.Name == name.Value.(string) {
				return nil, p.errorf(name.Pos, "duplicate parameter %q", o.Name)
			}
		}
		if _, err = p.expect(Equal); err != nil {
			return nil, err
		}
		v, err := p.expect(Int)
		if err != nil {
			return nil, err
		}
		ps = append(ps, Param{Pos: name.Pos, Name: name.Value.(string), Value: v.Value.(uint64)})
		switch p.next(); p.i.Type {
		case Comma:
		case ParenClose:
			return ps, nil
		default:
			return nil, p.unexpected("',' or ')'")
		}
	}
}

func (p *parser) addrRange() (*Range, error) {
	r := &Range{Pos: p.i.Pos}
	sp, err := p.expect(Int)
	if err != nil {
		return nil, err
	}
	if _, err = p.expect(Colon); err != nil {
		return nil, err
	}
	start, err := p.expect(Int)
	if err != nil {
		return nil, err
	}
	if _, err = p.expect(DotDot); err != nil {
		return nil, err
	}
	end, err := p.expect(Int)
	if err != nil {
		return nil, err
	}
	r.Space, r.Start, r.End = sp.Value.(uint64), start.Value.(uint64), end.Value.(uint64)
	if r.Start > r.End {
		return nil, p.errorf(start.Pos, "range start %#x after end %#x", r.Start, r.End)
	}
	return r, nil
}
