// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hwemu

import "github.com/pkg/errors"

// Default configuration values.
//
const (
	DefaultTicksPerSecond = 10
	DefaultMaxDevices     = 256
	DefaultMaxMappings    = 128
)

// Config holds the machine configuration.
//
type Config struct {
	// TicksPerSecond is the system tick rate. Must be > 0.
	TicksPerSecond int
	// RealTime paces ticks to TicksPerSecond. When false, ticks run as fast
	// as possible.
	RealTime bool
	// MaxDevices is the device registry capacity.
	MaxDevices int
	// MaxMappings is the number of mappings available in each memory space.
	MaxMappings int
	// MaxTicks, if non zero, makes the scheduler exit after that many ticks.
	MaxTicks uint64
	// TaggedSnapshots selects the tagged snapshot format for SaveState.
	TaggedSnapshots bool
}

// DefaultConfig returns the default configuration: 10 ticks per second in
// real time, 256 devices and 128 mappings per memory space.
//
func DefaultConfig() Config {
	return Config{
		TicksPerSecond: DefaultTicksPerSecond,
		RealTime:       true,
		MaxDevices:     DefaultMaxDevices,
		MaxMappings:    DefaultMaxMappings,
	}
}

// Validate checks the configuration. Errors have ErrInvalidConfig as cause.
//
func (c *Config) Validate() error {
	switch {
	case c.TicksPerSecond <= 0:
		return errors.Wrapf(ErrInvalidConfig, "%d ticks per second", c.TicksPerSecond)
	case c.MaxDevices <= 0:
		return errors.Wrapf(ErrInvalidConfig, "max devices %d", c.MaxDevices)
	case c.MaxMappings <= 0:
		return errors.Wrapf(ErrInvalidConfig, "max mappings %d", c.MaxMappings)
	}
	return nil
}
