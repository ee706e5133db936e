// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package dwi2c drives a Synopsys DesignWare APB I2C controller in master
// mode.
//
// A Controller owns one register window. It programs SCL timing from the
// reference clock, then runs each Transfer as a session that streams
// messages through the controller's transmit and receive FIFOs. Sessions
// are driven by the controller interrupt, by polling, or for short
// register style transfers one byte at a time. Every drive returns the
// same errors: see ErrNoAck, ErrRetry, ErrInvalid, ErrIO and ErrTimeout.
//
// Usage:
//
//	w, err := mmio.Open(0xe0001000, regs.WindowSize)
//	...
//	c, err := dwi2c.New(w, dwi2c.Config{BusHz: 400000})
//	...
//	var id [2]byte
//	err = c.Tx(0x50, []byte{0}, id[:])
package dwi2c

import (
	"fmt"
	"io"
	"math/bits"
	"sync"

	"github.com/platinasystems/dwi2c/regs"
)

type Controller struct {
	cfg   Config
	block regs.Block
	swab  bool

	profile          Profile
	hcnt, lcnt       uint16
	txDepth, rxDepth int
	con              regs.Con

	// mu serializes transfers; it also guards closed, lastAbort and
	// stats.
	mu        sync.Mutex
	closed    bool
	lastAbort regs.Abort
	stats     Stats

	// evMu guards sess and every register sequence service runs,
	// whether called from Interrupt or the polling loop.
	evMu sync.Mutex
	sess *session
	done chan struct{}
}

// Stats counts transfer outcomes since New.
type Stats struct {
	Transfers    uint64
	Messages     uint64
	NoAcks       uint64
	ArbLosses    uint64
	Aborts       uint64
	Timeouts     uint64
	BusyTimeouts uint64
}

// New verifies that block is a DesignWare I2C controller, discovers its
// FIFO depths and leaves it initialized and enabled for cfg.
func New(block regs.Block, cfg Config) (*Controller, error) {
	cfg.defaults()
	c := &Controller{
		cfg:   cfg,
		block: block,
		done:  make(chan struct{}, 1),
	}
	switch t := block.Load32(regs.IcCompType); t {
	case regs.ComponentType:
	case bits.ReverseBytes32(regs.ComponentType):
		c.swab = true
	default:
		return nil, fmt.Errorf("unknown component type %#08x: %w", t,
			ErrConfig)
	}
	p := c.compParam1()
	c.txDepth, c.rxDepth = p.TxDepth(), p.RxDepth()

	var err error
	c.profile, c.hcnt, c.lcnt, err = Timing(cfg.ClockHz, cfg.BusHz)
	if err != nil {
		return nil, err
	}
	c.con = regs.ConMaster | regs.ConSlaveDisable | c.profile.speed()
	if !cfg.NoRestart {
		c.con |= regs.ConRestartEn
	}
	c.init()
	if !cfg.Polling {
		if err = cfg.IRQ.Attach(c.Interrupt); err != nil {
			c.setEnable(false)
			return nil, err
		}
	}
	if cfg.Debug {
		cfg.Sink.Log("debug", "%s %dHz hcnt %d lcnt %d fifo %d/%d",
			c.profile, cfg.BusHz, c.hcnt, c.lcnt, c.txDepth, c.rxDepth)
	}
	return c, nil
}

// init reprograms every register the controller depends on. It is also
// the recovery from a transfer that never completed.
func (c *Controller) init() {
	c.setEnable(false)
	c.wr(c.profile.hcnt(), uint32(c.hcnt))
	c.wr(c.profile.lcnt(), uint32(c.lcnt))
	c.wr(regs.IcTxTl, uint32(c.txDepth/2))
	c.wr(regs.IcRxTl, 0)
	c.setCon(c.con)
	c.setIntrMask(0)
	c.clearAllIntr()
	c.setEnable(true)
}

// Close disables the controller, masks its interrupts and releases the
// IRQ and, if it is an io.Closer, the register block.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.closed = true
	c.setEnable(false)
	c.setIntrMask(0)
	var err error
	if !c.cfg.Polling {
		err = c.cfg.IRQ.Detach()
	}
	if closer, ok := c.block.(io.Closer); ok {
		if cerr := closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (c *Controller) Profile() Profile { return c.profile }

// FifoDepth returns the transmit and receive FIFO depths reported by
// IC_COMP_PARAM_1.
func (c *Controller) FifoDepth() (tx, rx int) { return c.txDepth, c.rxDepth }

func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// LastAbort returns the abort source of the most recent transfer, zero
// unless it ended in a hardware abort.
func (c *Controller) LastAbort() regs.Abort {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastAbort
}
