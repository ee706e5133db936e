// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package sim models a DesignWare I2C controller and the targets on its
// bus closely enough to run the dwi2c driver without hardware.
//
// Commands written to IC_DATA_CMD execute immediately: each one moves
// the bus through START, address, data and STOP, updating the FIFO
// levels, the latched interrupts and the abort source the way the
// controller would. The interrupt line is level triggered; while it is
// asserted and a handler is attached the handler is called from the
// simulator's own goroutine.
//
// Faults are injected with SetHang, SetBusy, SetArbLost and
// SetEnableStuck. Commands held by SetHang can be run one at a time with
// Step.
package sim

import (
	"fmt"
	"math/bits"
	"runtime"
	"sync"

	"github.com/platinasystems/dwi2c/regs"
)

// A Target is a device on the simulated bus.
type Target interface {
	// Address is called after START with the transfer direction; it
	// returns false to NACK.
	Address(read bool) bool
	// Write returns false to NACK the byte.
	Write(b byte) bool
	Read() byte
	Stop()
}

type Controller struct {
	mu sync.Mutex

	txDepth, rxDepth int
	targets          map[uint16]Target

	reg     map[regs.Offset]uint32
	writes  map[regs.Offset]int
	enabled bool
	status  bool // IC_ENABLE_STATUS
	tx      []regs.DataCmd
	rx      []byte
	latched regs.Intr
	abort   regs.Abort

	active  bool
	reading bool
	cur     Target

	hang, busy, arbLost, stuck, swapped bool

	events []string
	cmds   []regs.DataCmd

	kick chan struct{}
	quit chan struct{}
}

// New returns a controller with the given FIFO depths, reset and
// disabled, with an empty bus.
func New(txDepth, rxDepth int) *Controller {
	return &Controller{
		txDepth: txDepth,
		rxDepth: rxDepth,
		targets: make(map[uint16]Target),
		reg: map[regs.Offset]uint32{
			regs.IcIntrMask: 0x8ff,
		},
		writes: make(map[regs.Offset]int),
	}
}

// AddTarget puts t on the bus at addr; 10-bit addresses share the
// table.
func (c *Controller) AddTarget(addr uint16, t Target) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.targets[addr] = t
}

// SetHang makes the controller accept commands into its transmit FIFO
// without ever executing them.
func (c *Controller) SetHang(t bool) { c.set(&c.hang, t) }

// Step executes up to n commands waiting in the transmit FIFO and
// returns how many ran.
func (c *Controller) Step(n int) int {
	c.mu.Lock()
	i := 0
	for ; i < n && len(c.tx) > 0; i++ {
		cmd := c.tx[0]
		c.tx = c.tx[1:]
		c.execute(cmd)
	}
	c.mu.Unlock()
	c.signal()
	return i
}

// SetBusy holds IC_STATUS activity as if another master owned the bus.
func (c *Controller) SetBusy(t bool) { c.set(&c.busy, t) }

// SetArbLost loses arbitration on every START.
func (c *Controller) SetArbLost(t bool) { c.set(&c.arbLost, t) }

// SetEnableStuck freezes IC_ENABLE_STATUS at its current value.
func (c *Controller) SetEnableStuck(t bool) { c.set(&c.stuck, t) }

// SetSwapped byte reverses every register access.
func (c *Controller) SetSwapped(t bool) { c.set(&c.swapped, t) }

func (c *Controller) set(p *bool, t bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	*p = t
}

// Events returns the bus conditions seen since the last ClearLog, e.g.
// "start 0x50 w", "write 0x12", "restart 0x50 r", "read", "stop".
func (c *Controller) Events() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.events...)
}

// Commands returns every IC_DATA_CMD word written since the last
// ClearLog.
func (c *Controller) Commands() []regs.DataCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]regs.DataCmd(nil), c.cmds...)
}

func (c *Controller) ClearLog() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
	c.cmds = nil
}

// Writes returns how many times the register at o was written.
func (c *Controller) Writes(o regs.Offset) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes[o]
}

// Snapshot returns the last value written to each register in os.
func (c *Controller) Snapshot(os ...regs.Offset) map[regs.Offset]uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := make(map[regs.Offset]uint32, len(os))
	for _, o := range os {
		m[o] = c.reg[o]
	}
	return m
}

func (c *Controller) Load32(o regs.Offset) uint32 {
	c.mu.Lock()
	v := c.load(o)
	swapped := c.swapped
	c.mu.Unlock()
	if swapped {
		v = bits.ReverseBytes32(v)
	}
	return v
}

func (c *Controller) Store32(o regs.Offset, v uint32) {
	c.mu.Lock()
	if c.swapped {
		v = bits.ReverseBytes32(v)
	}
	c.store(o, v)
	c.mu.Unlock()
	c.signal()
}

func (c *Controller) load(o regs.Offset) uint32 {
	switch o {
	case regs.IcCompType:
		return regs.ComponentType
	case regs.IcCompParam1:
		return uint32(regs.MakeCompParam1(c.txDepth, c.rxDepth))
	case regs.IcDataCmd:
		if len(c.rx) == 0 {
			c.latched |= regs.IntrRxUnder
			return 0
		}
		b := c.rx[0]
		c.rx = c.rx[1:]
		return uint32(b)
	case regs.IcRawIntrStat:
		return uint32(c.raw())
	case regs.IcIntrStat:
		return uint32(c.raw() & regs.Intr(c.reg[regs.IcIntrMask]))
	case regs.IcStatus:
		return uint32(c.statusWord())
	case regs.IcTxFlr:
		return uint32(len(c.tx))
	case regs.IcRxFlr:
		return uint32(len(c.rx))
	case regs.IcTxAbrtSource:
		return uint32(c.abort)
	case regs.IcEnableStatus:
		if c.status {
			return 1
		}
		return 0
	case regs.IcClrIntr:
		c.latched = 0
		c.abort = 0
		return 0
	case regs.IcClrTxAbrt:
		c.latched &^= regs.IntrTxAbrt
		c.abort = 0
		return 0
	}
	for _, x := range regs.ClearFor {
		if x.Clr == o {
			c.latched &^= x.Intr
			return 0
		}
	}
	return c.reg[o]
}

func (c *Controller) store(o regs.Offset, v uint32) {
	c.writes[o]++
	switch o {
	case regs.IcDataCmd:
		c.command(regs.DataCmd(v))
		return
	case regs.IcEnable:
		c.enabled = v&1 != 0
		if !c.stuck {
			c.status = c.enabled
		}
		if !c.enabled {
			c.tx = nil
			c.rx = nil
			c.active = false
		}
	}
	c.reg[o] = v
}

func (c *Controller) raw() regs.Intr {
	r := c.latched
	if len(c.rx) > int(c.reg[regs.IcRxTl]) {
		r |= regs.IntrRxFull
	}
	if c.enabled && len(c.tx) <= int(c.reg[regs.IcTxTl]) {
		r |= regs.IntrTxEmpty
	}
	return r
}

func (c *Controller) statusWord() regs.Status {
	var s regs.Status
	if c.active || c.busy || len(c.tx) > 0 {
		s |= regs.StatusActivity | regs.StatusMstActivity
	}
	if len(c.tx) < c.txDepth {
		s |= regs.StatusTfnf
	}
	if len(c.tx) == 0 {
		s |= regs.StatusTfe
	}
	if len(c.rx) > 0 {
		s |= regs.StatusRfne
	}
	if len(c.rx) == c.rxDepth {
		s |= regs.StatusRff
	}
	return s
}

func (c *Controller) logf(format string, args ...interface{}) {
	c.events = append(c.events, fmt.Sprintf(format, args...))
}

func (c *Controller) command(cmd regs.DataCmd) {
	if !c.enabled || c.latched&regs.IntrTxAbrt != 0 {
		// disabled, or transmit FIFO held in flush after an abort
		return
	}
	if len(c.tx) == c.txDepth {
		c.latched |= regs.IntrTxOver
		return
	}
	c.cmds = append(c.cmds, cmd)
	if c.hang {
		c.tx = append(c.tx, cmd)
		return
	}
	c.execute(cmd)
}

func (c *Controller) execute(cmd regs.DataCmd) {
	read := cmd.IsRead()
	con := regs.Con(c.reg[regs.IcCon])
	if !c.active || cmd.IsRestart() || read != c.reading {
		ev := "start"
		if c.active {
			if con&regs.ConRestartEn != 0 {
				ev = "restart"
			} else {
				c.stop()
			}
		}
		tar := c.reg[regs.IcTar]
		addr := uint16(tar & regs.TarAddrMask)
		dir := "w"
		if read {
			dir = "r"
		}
		c.logf("%s 0x%02x %s", ev, addr, dir)
		c.active, c.reading = true, read
		if c.arbLost {
			c.abortWith(regs.AbrtArbLost)
			return
		}
		t := c.targets[addr]
		if t == nil || !t.Address(read) {
			if tar&regs.TarTenBit != 0 {
				c.abortWith(regs.Abrt10Addr1Noack)
			} else {
				c.abortWith(regs.Abrt7bAddrNoack)
			}
			return
		}
		c.cur = t
	}
	if read {
		c.logf("read")
		b := c.cur.Read()
		if len(c.rx) == c.rxDepth {
			c.latched |= regs.IntrRxOver
		} else {
			c.rx = append(c.rx, b)
		}
	} else {
		c.logf("write 0x%02x", cmd.Data())
		if !c.cur.Write(cmd.Data()) {
			c.abortWith(regs.AbrtTxDataNoack)
			return
		}
	}
	if cmd.IsStop() {
		c.stop()
	}
}

func (c *Controller) stop() {
	c.logf("stop")
	if c.cur != nil {
		c.cur.Stop()
	}
	c.active = false
	c.cur = nil
	c.latched |= regs.IntrStopDet
}

func (c *Controller) abortWith(src regs.Abort) {
	c.logf("abort %#x", uint32(src))
	c.abort |= src
	c.latched |= regs.IntrTxAbrt
	c.tx = nil
	c.active = false
	c.cur = nil
}

func (c *Controller) asserted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.raw()&regs.Intr(c.reg[regs.IcIntrMask]) != 0
}

// Attach delivers the interrupt line to handler.
func (c *Controller) Attach(handler func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.quit != nil {
		return fmt.Errorf("sim: interrupt already attached")
	}
	c.kick = make(chan struct{}, 1)
	c.quit = make(chan struct{})
	go c.deliver(handler, c.kick, c.quit)
	return nil
}

func (c *Controller) Detach() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.quit == nil {
		return fmt.Errorf("sim: interrupt not attached")
	}
	close(c.quit)
	c.quit = nil
	c.kick = nil
	return nil
}

func (c *Controller) signal() {
	c.mu.Lock()
	kick := c.kick
	c.mu.Unlock()
	if kick == nil {
		return
	}
	select {
	case kick <- struct{}{}:
	default:
	}
}

func (c *Controller) deliver(handler func(), kick, quit chan struct{}) {
	for {
		select {
		case <-quit:
			return
		case <-kick:
		}
		for c.asserted() {
			select {
			case <-quit:
				return
			default:
			}
			handler()
			runtime.Gosched()
		}
	}
}
