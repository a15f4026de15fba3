// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package monitor

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/term"
)

const prompt = "hwemu> "

// Run reads commands from r until end of input or a quit command and executes
// them. Command errors are printed and do not stop the loop.
//
func (m *Monitor) Run(r io.Reader) error {
	s := bufio.NewScanner(r)
	for s.Scan() {
		if err := m.exec(s.Text()); err != nil {
			return nil
		}
	}
	return errors.Wrap(s.Err(), "monitor")
}

// exec runs line and prints any command error. It returns ErrQuit if the loop
// should stop.
func (m *Monitor) exec(line string) error {
	err := m.Exec(line)
	switch {
	case err == ErrQuit:
		return err
	case err != nil:
		fmt.Fprintf(m.out, "* %v\n", err)
	}
	return nil
}

// Interactive runs the monitor on the given terminal files. If in is not a
// terminal it falls back to Run. Otherwise the terminal is put in raw mode for
// line editing and history, and restored on return.
//
func (m *Monitor) Interactive(in, out *os.File) error {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return m.Run(in)
	}
	old, err := term.MakeRaw(fd)
	if err != nil {
		return errors.Wrap(err, "monitor")
	}
	defer term.Restore(fd, old)

	t := term.NewTerminal(struct {
		io.Reader
		io.Writer
	}{in, out}, prompt)
	saved := m.out
	m.out = t
	defer func() { m.out = saved }()

	for {
		line, err := t.ReadLine()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "monitor")
		}
		if m.exec(line) != nil {
			return nil
		}
	}
}
