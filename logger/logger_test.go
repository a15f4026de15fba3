// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package logger_test

import (
	"strconv"
	"strings"
	"testing"

	"github.com/db47h/hwemu/logger"
)

type deny struct{}

func (deny) AllowLogging() bool { return false }

func TestLogger(t *testing.T) {
	logger.Clear()
	var b strings.Builder

	logger.Write(&b)
	if b.String() != "" {
		t.Fatalf("empty log wrote %q", b.String())
	}

	logger.Log(logger.Allow, "test", "this is a test")
	logger.Write(&b)
	if got := b.String(); got != "test: this is a test\n" {
		t.Fatalf("got %q", got)
	}

	b.Reset()
	logger.Logf(logger.Allow, "test2", "this is %s test", "another")
	logger.Tail(&b, 100)
	if got := b.String(); got != "test: this is a test\ntest2: this is another test\n" {
		t.Fatalf("got %q", got)
	}

	b.Reset()
	logger.Tail(&b, 1)
	if got := b.String(); got != "test2: this is another test\n" {
		t.Fatalf("got %q", got)
	}

	b.Reset()
	logger.Tail(&b, 0)
	if got := b.String(); got != "" {
		t.Fatalf("got %q", got)
	}
}

func TestLogger_repeat(t *testing.T) {
	logger.Clear()
	for i := 0; i < 3; i++ {
		logger.Log(logger.Allow, "rep", "same")
	}
	var b strings.Builder
	logger.Write(&b)
	if got := b.String(); got != "rep: same (repeat x3)\n" {
		t.Fatalf("got %q", got)
	}
}

func TestLogger_permission(t *testing.T) {
	logger.Clear()
	logger.Log(deny{}, "no", "entry")
	n := -1
	logger.BorrowLog(func(e []logger.Entry) { n = len(e) })
	if n != 0 {
		t.Fatalf("denied entry logged, got %d entries", n)
	}
}

func TestLogger_bounded(t *testing.T) {
	logger.Clear()
	for i := 0; i < logger.MaxEntries+10; i++ {
		logger.Log(logger.Allow, "n", strconv.Itoa(i))
	}
	var first, n int
	logger.BorrowLog(func(e []logger.Entry) {
		n = len(e)
		first, _ = strconv.Atoi(e[0].Detail)
	})
	if n != logger.MaxEntries {
		t.Fatalf("expected %d entries, got %d", logger.MaxEntries, n)
	}
	if first != 10 {
		t.Fatalf("expected oldest entry 10, got %d", first)
	}
}

func TestLogger_echo(t *testing.T) {
	logger.Clear()
	var b strings.Builder
	logger.SetEcho(&b)
	defer logger.SetEcho(nil)
	logger.Log(logger.Allow, "echo", "hello")
	if b.String() != "echo: hello\n" {
		t.Fatalf("got %q", b.String())
	}
}
