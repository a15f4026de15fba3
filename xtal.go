// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hwemu

import (
	"sync"
	"time"

	"github.com/db47h/hwemu/logger"
	"github.com/pkg/errors"
)

// State is the state of the Xtal scheduler.
//
type State int

// Scheduler states. Paused is the initial state, Exited is terminal.
//
const (
	Paused State = iota
	Running
	Stepping
	Exited
)

func (s State) String() string {
	switch s {
	case Paused:
		return "Paused"
	case Running:
		return "Running"
	case Stepping:
		return "Stepping"
	case Exited:
		return "Exited"
	}
	return "State(?)"
}

// Xtal is the master clock. A dedicated worker goroutine advances the system
// one tick at a time and fans each tick out to the registry, under the control
// of Run, Pause, Step and Exit.
//
// All scheduler state is guarded by a single mutex. The worker waits on wake
// while paused; Step callers and WaitIdle wait on settle.
//
type Xtal struct {
	reg      *Registry
	period   time.Duration // wall clock budget of one tick
	realTime bool
	maxTicks uint64

	mu     sync.Mutex
	wake   *sync.Cond
	settle *sync.Cond
	state  State
	budget uint64 // outstanding step ticks
	ticks  uint64
	busy   bool // a tick is in flight
	err    error

	kick chan struct{} // interrupts pacing sleeps
	done chan struct{}
}

// NewXtal creates a scheduler driving the devices in r and starts its worker.
// The scheduler starts Paused.
//
// cfg.TicksPerSecond sets the system tick rate. If cfg.RealTime is false the
// worker runs ticks back to back with no pacing. A non-zero cfg.MaxTicks makes
// the scheduler exit after that many ticks.
//
func NewXtal(r *Registry, cfg Config) (*Xtal, error) {
	if r == nil {
		return nil, errors.Wrap(ErrInvalidConfig, "nil registry")
	}
	if cfg.TicksPerSecond <= 0 {
		return nil, errors.Wrapf(ErrInvalidConfig, "%d ticks per second", cfg.TicksPerSecond)
	}
	x := &Xtal{
		reg:      r,
		period:   time.Second / time.Duration(cfg.TicksPerSecond),
		realTime: cfg.RealTime,
		maxTicks: cfg.MaxTicks,
		kick:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	x.wake = sync.NewCond(&x.mu)
	x.settle = sync.NewCond(&x.mu)
	go x.worker()
	return x, nil
}

// setState must be called with x.mu held.
func (x *Xtal) setState(s State) {
	if x.state == s {
		return
	}
	logger.Logf(logger.Allow, "xtal", "%v -> %v", x.state, s)
	x.state = s
	x.wake.Broadcast()
	x.settle.Broadcast()
	select {
	case x.kick <- struct{}{}:
	default:
	}
}

// exitErr must be called with x.mu held.
func (x *Xtal) exitErr() error {
	if x.err != nil {
		return x.err
	}
	return ErrExited
}

// Run switches to Running. It returns immediately.
//
func (x *Xtal) Run() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.state == Exited {
		return x.exitErr()
	}
	x.setState(Running)
	return nil
}

// Pause stops the scheduler at the next tick boundary. It returns immediately.
//
// While Stepping, Pause has no effect: the step budget is always drained. If
// the scheduler is Running with an outstanding step budget, it drains that
// budget first.
//
func (x *Xtal) Pause() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	switch x.state {
	case Exited:
		return x.exitErr()
	case Stepping:
		return nil
	}
	if x.budget > 0 {
		x.setState(Stepping)
	} else {
		x.setState(Paused)
	}
	return nil
}

// Step adds n ticks to the step budget, switches to Stepping and blocks until
// the whole budget has been consumed. A Step issued while another one is
// pending waits for the combined budget.
//
// If the scheduler exits before the budget is drained, Step returns ErrExited
// (or the worker fault that caused the exit).
//
func (x *Xtal) Step(n uint32) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.state == Exited {
		return x.exitErr()
	}
	if n == 0 {
		return nil
	}
	x.budget += uint64(n)
	if x.state != Running {
		x.setState(Stepping)
	}
	for x.budget > 0 {
		if x.state == Exited {
			return x.exitErr()
		}
		x.settle.Wait()
	}
	return nil
}

// Exit stops the scheduler for good and wakes the worker so that it
// terminates. Blocked Step calls are released. Exit returns immediately; use
// Wait to wait for the worker to terminate.
//
// Exit returns the worker fault, if any.
//
func (x *Xtal) Exit() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.setState(Exited)
	return x.err
}

// Wait blocks until the worker goroutine has terminated.
//
func (x *Xtal) Wait() {
	<-x.done
}

// WaitIdle blocks until no tick is in flight and the scheduler is either
// Paused or Exited. It never returns while the scheduler is Running.
//
func (x *Xtal) WaitIdle() {
	x.mu.Lock()
	for x.busy || x.state == Running || x.state == Stepping {
		x.settle.Wait()
	}
	x.mu.Unlock()
}

// State returns the current state.
//
func (x *Xtal) State() State {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.state
}

// Ticks returns the number of system ticks executed so far.
//
func (x *Xtal) Ticks() uint64 {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.ticks
}

// Budget returns the number of step ticks not yet consumed.
//
func (x *Xtal) Budget() uint64 {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.budget
}

// Err returns the worker fault, if any.
//
func (x *Xtal) Err() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.err
}

func (x *Xtal) worker() {
	defer close(x.done)

	x.mu.Lock()
	defer x.mu.Unlock()

	for {
		switch x.state {
		case Exited:
			return
		case Paused:
			x.settle.Broadcast()
			x.wake.Wait()
			continue
		}

		// only budget present when the tick starts is consumed by it
		counted := x.budget > 0
		x.busy = true
		x.mu.Unlock()
		start := time.Now()
		err := x.tick()
		elapsed := time.Since(start)
		x.mu.Lock()
		x.busy = false

		if err != nil {
			x.err = err
			logger.Logf(logger.Allow, "xtal", "%v", err)
			x.setState(Exited)
			return
		}

		x.ticks++
		if counted {
			x.budget--
			if x.budget == 0 {
				if x.state == Stepping {
					x.setState(Paused)
				}
				x.settle.Broadcast()
			}
		}
		if x.maxTicks > 0 && x.ticks >= x.maxTicks {
			logger.Logf(logger.Allow, "xtal", "tick limit %d reached", x.maxTicks)
			x.setState(Exited)
			return
		}

		if x.realTime && elapsed < x.period && (x.state == Running || x.state == Stepping) {
			// drop kicks from state changes already seen
			select {
			case <-x.kick:
			default:
			}
			x.mu.Unlock()
			x.sleep(x.period - elapsed)
			x.mu.Lock()
		}
	}
}

// tick runs one system tick, turning a device panic into an error.
func (x *Xtal) tick() (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = errors.Wrapf(ErrWorkerFault, "tick %d: %v", x.ticks+1, v)
		}
	}()
	x.reg.tickAll()
	return nil
}

// sleep waits for d or until a control call changes the state. Overruns are
// not caught up.
func (x *Xtal) sleep(d time.Duration) {
	t := time.NewTimer(d)
	select {
	case <-t.C:
	case <-x.kick:
		t.Stop()
	}
}
