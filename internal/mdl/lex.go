// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package mdl

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Type is the type of a lexical item.
//
type Type int

// Tokens
const (
	EOF Type = iota
	Raw
	Newline
	Ident
	Int
	Equal
	ParenOpen
	ParenClose
	Comma
	At
	Colon
	DotDot
)

var typeNames = [...]string{
	EOF:        "end of input",
	Raw:        "invalid character",
	Newline:    "end of line",
	Ident:      "identifier",
	Int:        "integer",
	Equal:      "'='",
	ParenOpen:  "'('",
	ParenClose: "')'",
	Comma:      "','",
	At:         "'@'",
	Colon:      "':'",
	DotDot:     "'..'",
}

func (t Type) String() string {
	if t >= 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Type(" + strconv.Itoa(int(t)) + ")"
}

// Pos is a position in the input, 1-based.
//
type Pos struct {
	Line int
	Col  int
}

func (p Pos) String() string {
	return strconv.Itoa(p.Line) + ":" + strconv.Itoa(p.Col)
}

// Item is a lexical item. Value is a string for Ident and Raw items, a uint64
// for Int items and nil otherwise.
//
type Item struct {
	Type  Type
	Pos   Pos
	Value interface{}
}

func (i Item) String() string {
	switch i.Type {
	case Ident:
		return "identifier " + i.Value.(string)
	case Int:
		return "integer " + strconv.FormatUint(i.Value.(uint64), 10)
	case Raw:
		return strconv.Quote(i.Value.(string))
	}
	return i.Type.String()
}

// Lexer splits a board description into items.
//
type Lexer struct {
	in   string
	off  int
	pos  Pos // position of the next rune
	r    rune
	rPos Pos // position of r
	w    int
	done bool
}

// NewLexer returns a new lexer for the given input.
//
func NewLexer(input string) *Lexer {
	return &Lexer{in: input, pos: Pos{1, 1}}
}

func (l *Lexer) next() rune {
	l.rPos = l.pos
	if l.off >= len(l.in) {
		l.w = 0
		l.r = -1
		return l.r
	}
	l.r, l.w = utf8.DecodeRuneInString(l.in[l.off:])
	l.off += l.w
	if l.r == '\n' {
		l.pos.Line++
		l.pos.Col = 1
	} else {
		l.pos.Col++
	}
	return l.r
}

func (l *Lexer) peek() rune {
	if l.off >= len(l.in) {
		return -1
	}
	r, _ := utf8.DecodeRuneInString(l.in[l.off:])
	return r
}

// Lex returns the next item. Once the end of input is reached, Lex keeps
// returning EOF.
//
func (l *Lexer) Lex() Item {
	if l.done {
		return Item{Type: EOF, Pos: l.pos}
	}
	for {
		r := l.next()
		p := l.rPos
		switch {
		case r < 0:
			l.done = true
			return Item{Type: EOF, Pos: p}
		case r == '\n':
			return Item{Type: Newline, Pos: p}
		case r == '#':
			for c := l.peek(); c >= 0 && c != '\n'; c = l.peek() {
				l.next()
			}
		case unicode.IsSpace(r):
		case unicode.IsLetter(r) || r == '_':
			return l.ident(p)
		case '0' <= r && r <= '9':
			return l.number(p)
		case r == '=':
			return Item{Type: Equal, Pos: p}
		case r == '(':
			return Item{Type: ParenOpen, Pos: p}
		case r == ')':
			return Item{Type: ParenClose, Pos: p}
		case r == ',':
			return Item{Type: Comma, Pos: p}
		case r == '@':
			return Item{Type: At, Pos: p}
		case r == ':':
			return Item{Type: Colon, Pos: p}
		case r == '.' && l.peek() == '.':
			l.next()
			return Item{Type: DotDot, Pos: p}
		default:
			l.done = true
			return Item{Type: Raw, Pos: p, Value: string(r)}
		}
	}
}

func (l *Lexer) ident(p Pos) Item {
	var buf strings.Builder
	buf.WriteRune(l.r)
	for r := l.peek(); unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'; r = l.peek() {
		buf.WriteRune(l.next())
	}
	return Item{Type: Ident, Pos: p, Value: buf.String()}
}

func isHex(r rune) bool {
	return '0' <= r && r <= '9' || 'a' <= r && r <= 'f' || 'A' <= r && r <= 'F'
}

func (l *Lexer) number(p Pos) Item {
	var buf strings.Builder
	base := 10
	digit := func(r rune) bool { return '0' <= r && r <= '9' }
	if l.r == '0' && (l.peek() == 'x' || l.peek() == 'X') {
		l.next()
		base = 16
		digit = isHex
	} else {
		buf.WriteRune(l.r)
	}
	for r := l.peek(); digit(r) || r == '_'; r = l.peek() {
		if r := l.next(); r != '_' {
			buf.WriteRune(r)
		}
	}
	v, err := strconv.ParseUint(buf.String(), base, 64)
	if err != nil {
		l.done = true
		return Item{Type: Raw, Pos: p, Value: l.in[l.offsetOf(p):l.off]}
	}
	return Item{Type: Int, Pos: p, Value: v}
}

// offsetOf returns the byte offset of position p on the current line.
func (l *Lexer) offsetOf(p Pos) int {
	start := strings.LastIndexByte(l.in[:l.off], '\n') + 1
	off := start
	for c := 1; c < p.Col && off < len(l.in); c++ {
		_, w := utf8.DecodeRuneInString(l.in[off:])
		off += w
	}
	return off
}
