// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package monitor implements a line oriented command monitor for hwemu boards.
// It is the interactive control, memory, register and persistence front end of
// the emulator.
//
package monitor

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/db47h/hwemu"
	"github.com/db47h/hwemu/logger"
	"github.com/pkg/errors"
)

// ErrQuit is returned by Exec after an exit or quit command.
var ErrQuit = errors.New("quit")

const (
	cmdRun     = "run"
	cmdPause   = "pause"
	cmdStep    = "step"
	cmdReset   = "reset"
	cmdExit    = "exit"
	cmdQuit    = "quit"
	cmdStatus  = "status"
	cmdDevices = "devices"
	cmdMap     = "map"
	cmdPeek    = "peek"
	cmdPoke    = "poke"
	cmdReg     = "reg"
	cmdSave    = "save"
	cmdLoad    = "load"
	cmdLog     = "log"
	cmdHelp    = "help"
)

var help = map[string]string{
	cmdRun:     "run: run the clock until paused",
	cmdPause:   "pause: pause the clock at the next tick boundary",
	cmdStep:    "step [n]: run n ticks (default 1) and wait for completion",
	cmdReset:   "reset: reset all devices",
	cmdExit:    "exit: stop the machine and leave the monitor",
	cmdQuit:    "quit: same as exit",
	cmdStatus:  "status: print the clock state and tick count",
	cmdDevices: "devices: list registered devices",
	cmdMap:     "map [space]: list memory mappings",
	cmdPeek:    "peek <space> <addr> [len]: dump memory",
	cmdPoke:    "poke <space> <addr> <byte>...: write memory",
	cmdReg:     "reg <device> <id> [value]: read or write a device register",
	cmdSave:    "save <file>: save the state of all devices",
	cmdLoad:    "load <file>: restore the state of all devices",
	cmdLog:     "log [n]: print the last n log entries (default 10)",
	cmdHelp:    "help [command]: list commands or describe one",
}

// Monitor executes commands against a board.
//
type Monitor struct {
	b   *hwemu.Board
	out io.Writer
}

// New returns a new monitor for board b, writing command output to out.
//
func New(b *hwemu.Board, out io.Writer) *Monitor {
	return &Monitor{b: b, out: out}
}

func parseU32(s, what string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, errors.Errorf("invalid %s %q", what, s)
	}
	return uint32(v), nil
}

// Exec executes a single command line. Empty lines and lines starting with '#'
// are ignored.
//
func (m *Monitor) Exec(line string) error {
	args := strings.Fields(line)
	if len(args) == 0 || strings.HasPrefix(args[0], "#") {
		return nil
	}
	cmd, args := strings.ToLower(args[0]), args[1:]
	argc := func(min, max int) error {
		if len(args) < min || len(args) > max {
			return errors.Errorf("%s: wrong number of arguments, usage: %s", cmd, help[cmd])
		}
		return nil
	}

	switch cmd {
	case cmdRun:
		return m.b.Run()
	case cmdPause:
		return m.b.Pause()
	case cmdStep:
		if err := argc(0, 1); err != nil {
			return err
		}
		n := uint32(1)
		if len(args) > 0 {
			var err error
			if n, err = parseU32(args[0], "tick count"); err != nil {
				return err
			}
		}
		return m.b.Step(n)
	case cmdReset:
		return m.b.Reset()
	case cmdExit, cmdQuit:
		if err := m.b.Exit(); err != nil {
			fmt.Fprintf(m.out, "machine fault: %v\n", err)
		}
		return ErrQuit
	case cmdStatus:
		x := m.b.Xtal()
		fmt.Fprintf(m.out, "%v, %d ticks\n", x.State(), x.Ticks())
		if err := x.Err(); err != nil {
			fmt.Fprintf(m.out, "fault: %v\n", err)
		}
		return nil
	case cmdDevices:
		m.devices()
		return nil
	case cmdMap:
		if err := argc(0, 1); err != nil {
			return err
		}
		return m.mappings(args)
	case cmdPeek:
		if err := argc(2, 3); err != nil {
			return err
		}
		return m.peek(args)
	case cmdPoke:
		if err := argc(3, 1<<16); err != nil {
			return err
		}
		return m.poke(args)
	case cmdReg:
		if err := argc(2, 3); err != nil {
			return err
		}
		return m.reg(args)
	case cmdSave:
		if err := argc(1, 1); err != nil {
			return err
		}
		return m.b.SaveState(args[0])
	case cmdLoad:
		if err := argc(1, 1); err != nil {
			return err
		}
		return m.b.RestoreState(args[0])
	case cmdLog:
		if err := argc(0, 1); err != nil {
			return err
		}
		n := uint32(10)
		if len(args) > 0 {
			var err error
			if n, err = parseU32(args[0], "entry count"); err != nil {
				return err
			}
		}
		logger.Tail(m.out, int(n))
		return nil
	case cmdHelp:
		m.help(args)
		return nil
	}
	return errors.Errorf("unknown command %q, try help", cmd)
}

func (m *Monitor) help(args []string) {
	if len(args) > 0 {
		if h, ok := help[strings.ToLower(args[0])]; ok {
			fmt.Fprintln(m.out, h)
			return
		}
	}
	cmds := make([]string, 0, len(help))
	for c := range help {
		cmds = append(cmds, c)
	}
	sort.Strings(cmds)
	for _, c := range cmds {
		fmt.Fprintln(m.out, help[c])
	}
}

func (m *Monitor) devices() {
	names := m.b.DeviceNames()
	for id, n := range names {
		info, err := m.b.Registry().Info(id)
		if err != nil {
			continue
		}
		fmt.Fprintf(m.out, "%3d %-12s %-12s div %d\n", id, n, info.Name, info.Divider)
	}
}

func (m *Monitor) mappings(args []string) error {
	spaces := m.b.Spaces()
	if len(args) > 0 {
		sp, err := parseU32(args[0], "memory space")
		if err != nil {
			return err
		}
		spaces = []uint32{sp}
	}
	for _, sp := range spaces {
		d, err := m.b.Space(sp)
		if err != nil {
			return err
		}
		for _, mp := range d.Mappings() {
			fmt.Fprintf(m.out, "%d:%08x..%08x slot %d\n", sp, mp.Start, mp.End, mp.Slot)
		}
	}
	return nil
}

func (m *Monitor) peek(args []string) error {
	sp, err := parseU32(args[0], "memory space")
	if err != nil {
		return err
	}
	addr, err := parseU32(args[1], "address")
	if err != nil {
		return err
	}
	n := uint32(1)
	if len(args) > 2 {
		if n, err = parseU32(args[2], "length"); err != nil {
			return err
		}
	}
	b, err := m.b.MemRead(sp, addr, n)
	dump(m.out, addr, b)
	return err
}

// dump writes b as lines of up to 16 hex bytes prefixed with their address.
func dump(w io.Writer, addr uint32, b []byte) {
	for len(b) > 0 {
		n := 16
		if len(b) < n {
			n = len(b)
		}
		fmt.Fprintf(w, "%08x: % x\n", addr, b[:n])
		addr += uint32(n)
		b = b[n:]
	}
}

func (m *Monitor) poke(args []string) error {
	sp, err := parseU32(args[0], "memory space")
	if err != nil {
		return err
	}
	addr, err := parseU32(args[1], "address")
	if err != nil {
		return err
	}
	data := make([]byte, 0, len(args)-2)
	for _, a := range args[2:] {
		v, err := strconv.ParseUint(a, 0, 8)
		if err != nil {
			return errors.Errorf("invalid byte value %q", a)
		}
		data = append(data, byte(v))
	}
	return m.b.MemWrite(sp, addr, data)
}

func (m *Monitor) reg(args []string) error {
	id, err := m.b.ResolveDevice(args[0])
	if err != nil {
		return err
	}
	r, err := parseU32(args[1], "register id")
	if err != nil {
		return err
	}
	if len(args) > 2 {
		v, err := parseU32(args[2], "register value")
		if err != nil {
			return err
		}
		return m.b.SetRegister(id, r, v)
	}
	v, err := m.b.GetRegister(id, r)
	if err != nil {
		return err
	}
	fmt.Fprintf(m.out, "%#x (%d)\n", v, v)
	return nil
}
