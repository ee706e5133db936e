// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package dwi2c

import (
	"time"

	"github.com/platinasystems/log"
)

const (
	DefaultClockHz = 50000000
	DefaultBusHz   = 100000

	DefaultTimeout       = time.Second
	DefaultByteTimeout   = 10 * time.Millisecond
	DefaultPollSlice     = 10 * time.Millisecond
	DefaultEnableRetries = 100
	DefaultBusyRetries   = 20
)

// An IRQ delivers the controller's interrupt line. Attach arranges for
// handler to run, from a goroutine the IRQ owns, every time the line
// fires until Detach.
type IRQ interface {
	Attach(handler func()) error
	Detach() error
}

// A Sink receives controller diagnostics. Priority is a syslog priority
// name: "err", "warn", "info" or "debug".
type Sink interface {
	Log(priority, format string, args ...interface{})
}

// Syslog returns a Sink that prefixes each message and hands it to
// github.com/platinasystems/log.
func Syslog(prefix string) Sink { return syslog(prefix) }

type syslog string

func (prefix syslog) Log(priority, format string, args ...interface{}) {
	a := make([]interface{}, 0, 2+len(args))
	a = append(a, priority, string(prefix)+format)
	log.Printf(append(a, args...)...)
}

// Config describes one controller instance. The zero value of every
// field selects its default.
type Config struct {
	// Name prefixes diagnostics, e.g. "i2c-3".
	Name string

	// ClockHz is the controller's reference clock.
	ClockHz uint32
	// BusHz is the requested SCL frequency; at most 100kHz selects the
	// standard profile, at most 400kHz the fast profile.
	BusHz uint32

	// IRQ is the interrupt line; nil or Polling drives every transfer by
	// polling.
	IRQ     IRQ
	Polling bool

	// ByteMode sends short transfers (an optional write followed by a
	// single read or write) one byte at a time instead of batching
	// through the FIFO.
	ByteMode bool

	// NoRestart clears IC_CON restart enable; messages are then separated
	// by STOP/START instead of a repeated START.
	NoRestart bool

	Timeout       time.Duration
	ByteTimeout   time.Duration
	PollSlice     time.Duration
	EnableRetries int
	BusyRetries   int

	// Recover, if set, runs after the controller is reinitialized
	// following a completion timeout, e.g. to pulse a bus reset pin.
	Recover func()

	Sink  Sink
	Debug bool
}

func (cfg *Config) defaults() {
	if cfg.ClockHz == 0 {
		cfg.ClockHz = DefaultClockHz
	}
	if cfg.BusHz == 0 {
		cfg.BusHz = DefaultBusHz
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ByteTimeout == 0 {
		cfg.ByteTimeout = DefaultByteTimeout
	}
	if cfg.PollSlice == 0 {
		cfg.PollSlice = DefaultPollSlice
	}
	if cfg.EnableRetries == 0 {
		cfg.EnableRetries = DefaultEnableRetries
	}
	if cfg.BusyRetries == 0 {
		cfg.BusyRetries = DefaultBusyRetries
	}
	if len(cfg.Name) == 0 {
		cfg.Name = "dwi2c"
	}
	if cfg.Sink == nil {
		cfg.Sink = Syslog(cfg.Name + ": ")
	}
	if cfg.IRQ == nil {
		cfg.Polling = true
	}
}
