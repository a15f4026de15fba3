// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Command hwemu builds a machine from a board description and drives it from
// an interactive monitor or a Lua script.
//
// Usage:
//
//	hwemu [flags]
//
// Without -board, a default board with 32KiB of RAM, a dummy device and a
// counter is used. Type help at the monitor prompt for a list of commands.
//
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/db47h/hwemu"
	"github.com/db47h/hwemu/devlib"
	"github.com/db47h/hwemu/logger"
	"github.com/db47h/hwemu/monitor"
	"github.com/db47h/hwemu/script"
	"github.com/db47h/hwemu/statsview"
	"github.com/pkg/errors"
)

const defaultBoard = `
# 32KiB of RAM, a test device and a free running timer at 1/4 of the system
# clock.
ram0   = ram(size=0x8000)                     @ 0:0x0000..0x7fff
dummy0 = dummy
timer0 = counter(div=4, reload=0xff, auto=1)   @ 0:0x8000..0x800f
`

func main() {
	var (
		boardFile  = flag.String("board", "", "board description `file`")
		tps        = flag.Int("tps", hwemu.DefaultTicksPerSecond, "system clock in ticks per second")
		fast       = flag.Bool("fast", false, "run ticks back to back, without real time pacing")
		maxTicks   = flag.Uint64("max-ticks", 0, "exit after `n` ticks")
		scriptFile = flag.String("script", "", "run Lua script `file` instead of the monitor")
		restore    = flag.String("restore", "", "restore device state from `file` at startup")
		stats      = flag.String("statsview", "", "serve runtime statistics on `addr` (needs -tags statsview)")
		verbose    = flag.Bool("v", false, "echo log entries to stderr")
	)
	flag.Parse()

	if *verbose {
		logger.SetEcho(os.Stderr)
	}

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if err := run(*boardFile, *scriptFile, *restore, *stats, func(c *hwemu.Config) {
		if set["tps"] {
			c.TicksPerSecond = *tps
		}
		if set["fast"] {
			c.RealTime = !*fast
		}
		if set["max-ticks"] {
			c.MaxTicks = *maxTicks
		}
	}); err != nil {
		fmt.Fprintf(os.Stderr, "hwemu: %v\n", err)
		os.Exit(1)
	}
}

func run(boardFile, scriptFile, restore, stats string, flags func(*hwemu.Config)) error {
	src := defaultBoard
	if boardFile != "" {
		b, err := os.ReadFile(boardFile)
		if err != nil {
			return errors.Wrap(err, "board")
		}
		src = string(b)
	}

	b, err := hwemu.BuildBoard(hwemu.DefaultConfig(), src, devlib.Catalog(), flags)
	if err != nil {
		return err
	}
	defer b.Exit()

	if stats != "" {
		sv, err := statsview.Start(stats)
		if err != nil {
			return err
		}
		defer sv.Stop()
		fmt.Fprintf(os.Stderr, "runtime statistics at %s\n", sv.URL())
	}

	if restore != "" {
		if err = b.RestoreState(restore); err != nil {
			return err
		}
	}

	if scriptFile != "" {
		e := script.New(b)
		defer e.Close()
		if err = e.DoFile(scriptFile); err != nil {
			return err
		}
		return b.Exit()
	}

	fmt.Printf("hwemu: %d devices, %d ticks/s. Type help for a list of commands.\n", len(b.DeviceNames()), b.Config().TicksPerSecond)
	if err = monitor.New(b, os.Stdout).Interactive(os.Stdin, os.Stdout); err != nil {
		return err
	}
	return b.Exit()
}
