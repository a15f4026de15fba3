// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package logger implements the central log shared by the emulator core and
// its front ends.
//
// Entries are a tag (the subsystem) and a detail string. Consecutive identical
// entries are folded into one with a repeat count. The log keeps a bounded
// number of entries; older ones are dropped.
//
//	logger.Logf(logger.Allow, "xtal", "state %v -> %v", from, to)
//	logger.Tail(os.Stderr, 10)
//
package logger

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// MaxEntries is the capacity of the central log.
const MaxEntries = 256

// Entry is a single line in the log.
//
type Entry struct {
	Timestamp time.Time
	Tag       string
	Detail    string
	repeated  int
}

func (e *Entry) String() string {
	var s strings.Builder
	s.WriteString(e.Tag)
	s.WriteString(": ")
	s.WriteString(e.Detail)
	if e.repeated > 0 {
		fmt.Fprintf(&s, " (repeat x%d)", e.repeated+1)
	}
	s.WriteByte('\n')
	return s.String()
}

type logger struct {
	mu         sync.Mutex
	maxEntries int
	entries    []Entry
	echo       io.Writer
}

func newLogger(maxEntries int) *logger {
	return &logger{
		maxEntries: maxEntries,
		entries:    make([]Entry, 0, maxEntries),
	}
}

func (l *logger) log(tag, detail string) {
	tag = strings.ReplaceAll(tag, "\n", "")
	detail = strings.ReplaceAll(detail, "\n", "")

	l.mu.Lock()
	defer l.mu.Unlock()

	var e *Entry
	if n := len(l.entries); n > 0 && l.entries[n-1].Tag == tag && l.entries[n-1].Detail == detail {
		e = &l.entries[n-1]
		e.repeated++
		e.Timestamp = time.Now()
	} else {
		l.entries = append(l.entries, Entry{Timestamp: time.Now(), Tag: tag, Detail: detail})
		e = &l.entries[len(l.entries)-1]
	}

	if l.echo != nil {
		io.WriteString(l.echo, e.String())
	}

	if len(l.entries) > l.maxEntries {
		l.entries = append(l.entries[:0], l.entries[len(l.entries)-l.maxEntries:]...)
	}
}

func (l *logger) clear() {
	l.mu.Lock()
	l.entries = l.entries[:0]
	l.mu.Unlock()
}

func (l *logger) tail(output io.Writer, number int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if number > len(l.entries) {
		number = len(l.entries)
	}
	if number < 0 {
		number = 0
	}
	for i := len(l.entries) - number; i < len(l.entries); i++ {
		io.WriteString(output, l.entries[i].String())
	}
}

func (l *logger) setEcho(output io.Writer) {
	l.mu.Lock()
	l.echo = output
	l.mu.Unlock()
}

func (l *logger) borrow(f func([]Entry)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	f(l.entries)
}

var central = newLogger(MaxEntries)

// Permission implementations indicate whether the environment making a log
// request is allowed to create new log entries.
//
type Permission interface {
	AllowLogging() bool
}

type allow struct{}

func (allow) AllowLogging() bool { return true }

// Allow always permits logging.
var Allow Permission = allow{}

// Log adds an entry to the central log.
func Log(perm Permission, tag, detail string) {
	if perm == Allow || perm.AllowLogging() {
		central.log(tag, detail)
	}
}

// Logf adds a formatted entry to the central log.
func Logf(perm Permission, tag, format string, args ...interface{}) {
	if perm == Allow || perm.AllowLogging() {
		central.log(tag, fmt.Sprintf(format, args...))
	}
}

// Clear removes all entries.
func Clear() { central.clear() }

// Write writes every entry to output.
func Write(output io.Writer) { central.tail(output, MaxEntries) }

// Tail writes the last number entries to output.
func Tail(output io.Writer, number int) { central.tail(output, number) }

// SetEcho makes the log copy new entries to output as they are added. A nil
// output turns echoing off.
func SetEcho(output io.Writer) { central.setEcho(output) }

// BorrowLog calls f with the current entries while holding the log lock.
// f must not retain the slice nor log anything itself.
func BorrowLog(f func([]Entry)) { central.borrow(f) }
