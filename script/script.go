// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package script runs Lua scripts against a hwemu board.
//
// Scripts access the board through the global emu table:
//
//	emu.run()                     start the clock
//	emu.pause()                   pause the clock
//	emu.step([n])                 run n ticks (default 1) and wait
//	emu.reset()                   reset all devices
//	emu.exit()                    stop the machine
//	emu.peek(space, addr)         read a memory byte
//	emu.poke(space, addr, v)      write a memory byte
//	emu.reg(dev, id)              read a register, dev is a name or an id
//	emu.setreg(dev, id, v)        write a register
//	emu.save(file)                save the state of all devices
//	emu.load(file)                restore the state of all devices
//	emu.ticks()                   system tick count
//	emu.state()                   clock state as a string
//	emu.log(msg)                  add an entry to the emulator log
//
// Failing calls raise a Lua error.
//
package script

import (
	"github.com/db47h/hwemu"
	"github.com/db47h/hwemu/logger"
	"github.com/pkg/errors"
	lua "github.com/yuin/gopher-lua"
)

// Engine is a Lua interpreter bound to a board. An Engine is not safe for
// concurrent use.
//
type Engine struct {
	b *hwemu.Board
	L *lua.LState
}

// New returns a new engine for board b. Close must be called when the engine is
// no longer needed.
//
func New(b *hwemu.Board) *Engine {
	e := &Engine{b: b, L: lua.NewState()}
	tbl := e.L.NewTable()
	e.L.SetFuncs(tbl, map[string]lua.LGFunction{
		"run":    e.run,
		"pause":  e.pause,
		"step":   e.step,
		"reset":  e.reset,
		"exit":   e.exit,
		"peek":   e.peek,
		"poke":   e.poke,
		"reg":    e.reg,
		"setreg": e.setreg,
		"save":   e.save,
		"load":   e.load,
		"ticks":  e.ticks,
		"state":  e.state,
		"log":    e.log,
	})
	e.L.SetGlobal("emu", tbl)
	return e
}

// Close releases the interpreter.
func (e *Engine) Close() { e.L.Close() }

// DoString runs the given Lua source.
//
func (e *Engine) DoString(src string) error {
	return errors.Wrap(e.L.DoString(src), "script")
}

// DoFile runs the named Lua file.
//
func (e *Engine) DoFile(path string) error {
	logger.Logf(logger.Allow, "script", "running %s", path)
	return errors.Wrapf(e.L.DoFile(path), "script %s", path)
}

// check raises a Lua error if err is not nil.
func check(L *lua.LState, err error) {
	if err != nil {
		L.RaiseError("%v", err)
	}
}

func checkU32(L *lua.LState, n int) uint32 {
	v := L.CheckInt64(n)
	if v < 0 || v > 0xffffffff {
		L.ArgError(n, "value out of range")
	}
	return uint32(v)
}

func (e *Engine) device(L *lua.LState, n int) int {
	var ref string
	switch v := L.CheckAny(n).(type) {
	case lua.LNumber:
		ref = v.String()
	case lua.LString:
		ref = string(v)
	default:
		L.ArgError(n, "device name or id expected")
	}
	id, err := e.b.ResolveDevice(ref)
	check(L, err)
	return id
}

func (e *Engine) run(L *lua.LState) int {
	check(L, e.b.Run())
	return 0
}

func (e *Engine) pause(L *lua.LState) int {
	check(L, e.b.Pause())
	return 0
}

func (e *Engine) step(L *lua.LState) int {
	n := uint32(1)
	if L.GetTop() > 0 {
		n = checkU32(L, 1)
	}
	check(L, e.b.Step(n))
	return 0
}

func (e *Engine) reset(L *lua.LState) int {
	check(L, e.b.Reset())
	return 0
}

func (e *Engine) exit(L *lua.LState) int {
	check(L, e.b.Exit())
	return 0
}

func (e *Engine) peek(L *lua.LState) int {
	b, err := e.b.MemRead(checkU32(L, 1), checkU32(L, 2), 1)
	check(L, err)
	L.Push(lua.LNumber(b[0]))
	return 1
}

func (e *Engine) poke(L *lua.LState) int {
	v := checkU32(L, 3)
	if v > 0xff {
		L.ArgError(3, "byte value out of range")
	}
	check(L, e.b.MemWrite(checkU32(L, 1), checkU32(L, 2), []byte{byte(v)}))
	return 0
}

func (e *Engine) reg(L *lua.LState) int {
	v, err := e.b.GetRegister(e.device(L, 1), checkU32(L, 2))
	check(L, err)
	L.Push(lua.LNumber(v))
	return 1
}

func (e *Engine) setreg(L *lua.LState) int {
	check(L, e.b.SetRegister(e.device(L, 1), checkU32(L, 2), checkU32(L, 3)))
	return 0
}

func (e *Engine) save(L *lua.LState) int {
	check(L, e.b.SaveState(L.CheckString(1)))
	return 0
}

func (e *Engine) load(L *lua.LState) int {
	check(L, e.b.RestoreState(L.CheckString(1)))
	return 0
}

func (e *Engine) ticks(L *lua.LState) int {
	L.Push(lua.LNumber(e.b.Xtal().Ticks()))
	return 1
}

func (e *Engine) state(L *lua.LState) int {
	L.Push(lua.LString(e.b.Xtal().State().String()))
	return 1
}

func (e *Engine) log(L *lua.LState) int {
	logger.Log(logger.Allow, "script", L.CheckString(1))
	return 0
}
