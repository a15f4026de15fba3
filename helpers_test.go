// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hwemu_test

import (
	"testing"
	"time"

	"github.com/db47h/hwemu"
	"github.com/pkg/errors"
)

func trace(t *testing.T, err error) {
	t.Helper()
	if err, ok := err.(interface {
		StackTrace() errors.StackTrace
	}); ok {
		for _, f := range err.StackTrace() {
			t.Logf("%+v ", f)
		}
	}
}

func testConfig() hwemu.Config {
	cfg := hwemu.DefaultConfig()
	cfg.TicksPerSecond = 1000
	cfg.RealTime = false
	return cfg
}

func newMachine(t *testing.T, cfg hwemu.Config) *hwemu.Machine {
	t.Helper()
	m, err := hwemu.NewMachine(cfg)
	if err != nil {
		trace(t, err)
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = m.Exit() })
	return m
}

func attach(t *testing.T, m *hwemu.Machine, d hwemu.Device, div int) int {
	t.Helper()
	id, err := m.Attach(d, div)
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func expectCause(t *testing.T, err, cause error) {
	t.Helper()
	if errors.Cause(err) != cause {
		t.Fatalf("expected %v, got %v", cause, err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}
