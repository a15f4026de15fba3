// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hwemu_test

import (
	"sync"
	"testing"
	"time"

	"github.com/db47h/hwemu"
	"github.com/db47h/hwemu/emutest"
)

func TestXtal_dividers(t *testing.T) {
	m := newMachine(t, testConfig())
	p1, p4 := new(emutest.Probe), new(emutest.Probe)
	attach(t, m, p1, 1)
	attach(t, m, p4, 4)

	if err := m.Step(12); err != nil {
		t.Fatal(err)
	}
	if p1.Ticks() != 12 || p4.Ticks() != 3 {
		t.Fatalf("ticks: divider 1: %d, divider 4: %d", p1.Ticks(), p4.Ticks())
	}
	if n := m.Xtal().Ticks(); n != 12 {
		t.Fatalf("system ticks %d", n)
	}
	if s := m.Xtal().State(); s != hwemu.Paused {
		t.Fatalf("state after step: %v", s)
	}
	if err := m.Step(0); err != nil {
		t.Fatal(err)
	}
	if p1.Ticks() != 12 {
		t.Fatal("Step(0) ticked")
	}
}

func TestXtal_runPause(t *testing.T) {
	m := newMachine(t, testConfig())
	p := new(emutest.Probe)
	attach(t, m, p, 1)

	if err := m.Run(); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "ticks", func() bool { return p.Ticks() >= 5 })
	if err := m.Pause(); err != nil {
		t.Fatal(err)
	}
	m.Xtal().WaitIdle()
	n := p.Ticks()
	if n != m.Xtal().Ticks() {
		t.Fatalf("device ticks %d, system ticks %d", n, m.Xtal().Ticks())
	}
	time.Sleep(20 * time.Millisecond)
	if p.Ticks() != n {
		t.Fatalf("ticked while paused: %d -> %d", n, p.Ticks())
	}
	if s := m.Xtal().State(); s != hwemu.Paused {
		t.Fatalf("state %v", s)
	}
}

func TestXtal_pauseWhileStepping(t *testing.T) {
	cfg := testConfig()
	cfg.RealTime = true
	cfg.TicksPerSecond = 500
	m := newMachine(t, cfg)
	p := new(emutest.Probe)
	attach(t, m, p, 1)

	done := make(chan error, 1)
	go func() { done <- m.Step(20) }()
	waitFor(t, "stepping", func() bool { return m.Xtal().State() == hwemu.Stepping })
	if err := m.Pause(); err != nil {
		t.Fatal(err)
	}
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if p.Ticks() != 20 {
		t.Fatalf("step interrupted by pause: %d ticks", p.Ticks())
	}
}

func TestXtal_pacing(t *testing.T) {
	cfg := testConfig()
	cfg.RealTime = true
	cfg.TicksPerSecond = 100
	m := newMachine(t, cfg)
	attach(t, m, new(emutest.Probe), 1)

	start := time.Now()
	if err := m.Step(5); err != nil {
		t.Fatal(err)
	}
	// 4 periods between the first and last tick.
	if d := time.Since(start); d < 30*time.Millisecond {
		t.Fatalf("5 ticks at 100 ticks/s took %v", d)
	}
}

func TestXtal_exit(t *testing.T) {
	m := newMachine(t, testConfig())
	p := new(emutest.Probe)
	attach(t, m, p, 1)
	if err := m.Run(); err != nil {
		t.Fatal(err)
	}
	if err := m.Exit(); err != nil {
		t.Fatal(err)
	}
	n := p.Ticks()
	if s := m.Xtal().State(); s != hwemu.Exited {
		t.Fatalf("state %v", s)
	}
	expectCause(t, m.Run(), hwemu.ErrExited)
	expectCause(t, m.Pause(), hwemu.ErrExited)
	expectCause(t, m.Step(1), hwemu.ErrExited)
	expectCause(t, m.Reset(), hwemu.ErrExited)
	if err := m.Exit(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)
	if p.Ticks() != n {
		t.Fatal("ticked after exit")
	}
}

func TestXtal_exitReleasesStep(t *testing.T) {
	cfg := testConfig()
	cfg.RealTime = true
	cfg.TicksPerSecond = 1
	m := newMachine(t, cfg)
	attach(t, m, new(emutest.Probe), 1)

	done := make(chan error, 1)
	go func() { done <- m.Step(100) }()
	waitFor(t, "first tick", func() bool { return m.Xtal().Ticks() > 0 })
	if err := m.Exit(); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-done:
		expectCause(t, err, hwemu.ErrExited)
	case <-time.After(5 * time.Second):
		t.Fatal("Step not released by Exit")
	}
}

func TestXtal_fault(t *testing.T) {
	m := newMachine(t, testConfig())
	attach(t, m, &emutest.Probe{OnTick: func(n uint64) {
		if n == 3 {
			panic("boom")
		}
	}}, 1)

	err := m.Step(10)
	expectCause(t, err, hwemu.ErrWorkerFault)
	m.Xtal().Wait()
	if s := m.Xtal().State(); s != hwemu.Exited {
		t.Fatalf("state %v", s)
	}
	if n := m.Xtal().Ticks(); n != 2 {
		t.Fatalf("%d ticks completed, expected 2", n)
	}
	expectCause(t, m.Xtal().Err(), hwemu.ErrWorkerFault)
	expectCause(t, m.Run(), hwemu.ErrWorkerFault)
	expectCause(t, m.Exit(), hwemu.ErrWorkerFault)
}

func TestXtal_maxTicks(t *testing.T) {
	cfg := testConfig()
	cfg.MaxTicks = 7
	m := newMachine(t, cfg)
	p := new(emutest.Probe)
	attach(t, m, p, 1)
	if err := m.Run(); err != nil {
		t.Fatal(err)
	}
	m.Xtal().Wait()
	if p.Ticks() != 7 || m.Xtal().Ticks() != 7 {
		t.Fatalf("ticks: device %d, system %d", p.Ticks(), m.Xtal().Ticks())
	}
	if s := m.Xtal().State(); s != hwemu.Exited {
		t.Fatalf("state %v", s)
	}
}

func TestXtal_concurrentSteps(t *testing.T) {
	m := newMachine(t, testConfig())
	p := new(emutest.Probe)
	attach(t, m, p, 1)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.Step(25); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if p.Ticks() != 100 {
		t.Fatalf("%d ticks, expected 100", p.Ticks())
	}
}

func TestXtal_config(t *testing.T) {
	r, _ := hwemu.NewRegistry(1)
	_, err := hwemu.NewXtal(r, hwemu.Config{TicksPerSecond: 0})
	expectCause(t, err, hwemu.ErrInvalidConfig)
	_, err = hwemu.NewXtal(nil, hwemu.DefaultConfig())
	expectCause(t, err, hwemu.ErrInvalidConfig)

	cfg := hwemu.DefaultConfig()
	cfg.TicksPerSecond = -1
	_, err = hwemu.NewMachine(cfg)
	expectCause(t, err, hwemu.ErrInvalidConfig)
}

func TestState_String(t *testing.T) {
	for s, n := range map[hwemu.State]string{
		hwemu.Paused:   "Paused",
		hwemu.Running:  "Running",
		hwemu.Stepping: "Stepping",
		hwemu.Exited:   "Exited",
	} {
		if s.String() != n {
			t.Errorf("%d: got %q, expected %q", int(s), s.String(), n)
		}
	}
}

// gate holds the worker inside the given ticks until released.
type gate struct {
	hold    map[uint64]bool
	reached chan uint64
	release chan struct{}
}

func newGate(t *testing.T, ticks ...uint64) *gate {
	g := &gate{
		hold:    make(map[uint64]bool),
		reached: make(chan uint64, len(ticks)),
		release: make(chan struct{}),
	}
	for _, n := range ticks {
		g.hold[n] = true
	}
	t.Cleanup(func() { close(g.release) })
	return g
}

func (g *gate) onTick(n uint64) {
	if g.hold[n] {
		g.reached <- n
		<-g.release
	}
}

// wait blocks until tick n is held.
func (g *gate) wait(t *testing.T, n uint64) {
	t.Helper()
	select {
	case r := <-g.reached:
		if r != n {
			t.Fatalf("held at tick %d, expected %d", r, n)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timeout waiting for tick %d", n)
	}
}

func (g *gate) open() { g.release <- struct{}{} }

func stepAsync(m *hwemu.Machine, n uint32) <-chan error {
	done := make(chan error, 1)
	go func() { done <- m.Step(n) }()
	return done
}

func expectState(t *testing.T, m *hwemu.Machine, s hwemu.State) {
	t.Helper()
	if got := m.Xtal().State(); got != s {
		t.Fatalf("state %v, expected %v", got, s)
	}
}

// Every case leaves the worker held at tick 1. Once released, Step must
// return after exactly ticks system ticks, in the given state.
func TestXtal_stepPolicy(t *testing.T) {
	for _, tc := range []struct {
		name  string
		hold  []uint64
		drive func(t *testing.T, m *hwemu.Machine, g *gate) <-chan error
		ticks uint64
		state hwemu.State
	}{
		{"run while stepping", []uint64{1, 4},
			func(t *testing.T, m *hwemu.Machine, g *gate) <-chan error {
				done := stepAsync(m, 3)
				g.wait(t, 1)
				if err := m.Run(); err != nil {
					t.Fatal(err)
				}
				expectState(t, m, hwemu.Running)
				return done
			}, 3, hwemu.Running},
		{"step while running", []uint64{1, 5},
			func(t *testing.T, m *hwemu.Machine, g *gate) <-chan error {
				if err := m.Run(); err != nil {
					t.Fatal(err)
				}
				g.wait(t, 1)
				done := stepAsync(m, 3)
				waitFor(t, "step budget", func() bool { return m.Xtal().Budget() == 3 })
				expectState(t, m, hwemu.Running)
				return done
			}, 4, hwemu.Running},
		{"pause while running with budget", []uint64{1},
			func(t *testing.T, m *hwemu.Machine, g *gate) <-chan error {
				if err := m.Run(); err != nil {
					t.Fatal(err)
				}
				g.wait(t, 1)
				done := stepAsync(m, 2)
				waitFor(t, "step budget", func() bool { return m.Xtal().Budget() == 2 })
				if err := m.Pause(); err != nil {
					t.Fatal(err)
				}
				expectState(t, m, hwemu.Stepping)
				return done
			}, 3, hwemu.Paused},
		{"step after pause during tick", []uint64{1},
			func(t *testing.T, m *hwemu.Machine, g *gate) <-chan error {
				if err := m.Run(); err != nil {
					t.Fatal(err)
				}
				g.wait(t, 1)
				if err := m.Pause(); err != nil {
					t.Fatal(err)
				}
				expectState(t, m, hwemu.Paused)
				done := stepAsync(m, 1)
				waitFor(t, "stepping", func() bool { return m.Xtal().State() == hwemu.Stepping })
				return done
			}, 2, hwemu.Paused},
	} {
		t.Run(tc.name, func(t *testing.T) {
			m := newMachine(t, testConfig())
			g := newGate(t, tc.hold...)
			p := &emutest.Probe{OnTick: g.onTick}
			attach(t, m, p, 1)

			done := tc.drive(t, m, g)
			g.open()
			select {
			case err := <-done:
				if err != nil {
					t.Fatal(err)
				}
			case <-time.After(5 * time.Second):
				t.Fatal("Step not released")
			}
			if n := m.Xtal().Ticks(); n != tc.ticks {
				t.Fatalf("Step returned after %d ticks, expected %d", n, tc.ticks)
			}
			if tc.state == hwemu.Paused {
				m.Xtal().WaitIdle()
				if n := p.Ticks(); n != tc.ticks {
					t.Fatalf("%d device ticks, expected %d", n, tc.ticks)
				}
			}
			if b := m.Xtal().Budget(); b != 0 {
				t.Fatalf("budget %d left", b)
			}
			expectState(t, m, tc.state)
		})
	}
}
