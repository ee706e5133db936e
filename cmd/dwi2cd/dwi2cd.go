// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package dwi2cd serves a DesignWare I2C controller over RPC and
// publishes its transfer statistics.
package dwi2cd

import (
	"fmt"
	"net/rpc"
	"sync"
	"time"

	"github.com/platinasystems/atsock"
	"github.com/platinasystems/dwi2c"
	"github.com/platinasystems/dwi2c/internal/sim"
	"github.com/platinasystems/dwi2c/mmio"
	"github.com/platinasystems/dwi2c/regs"
	"github.com/platinasystems/flags"
	"github.com/platinasystems/gpio"
	"github.com/platinasystems/i2c"
	"github.com/platinasystems/log"
	"github.com/platinasystems/parms"
	"github.com/platinasystems/redis"
	"github.com/platinasystems/redis/publisher"
)

const (
	Name    = "dwi2cd"
	Apropos = "DesignWare i2c controller daemon"
	Usage   = `dwi2cd [-poll] [-byte] [-debug] [-sim] [-base ADDRESS]
	[-size BYTES] [-uio N] [-clock HZ] [-speed HZ] [-reset-pin NAME]`
)

// MAXOPS is the length of a ReadWrite batch.
const MAXOPS = 30

// SimAddr is where -sim puts its EEPROM.
const SimAddr = 0x50

type Command struct {
	Info
	// Init, if set, runs once before the controller is opened; e.g. to
	// load the gpio pin table for -reset-pin.
	Init func()
	init sync.Once

	stopOnce, closeOnce sync.Once
}

type Info struct {
	mutex sync.Mutex
	c     *dwi2c.Controller
	rpc   *atsock.RpcServer
	pub   *publisher.Publisher
	stop  chan struct{}
	last  map[string]uint64
}

// I is one SMBus operation of a ReadWrite batch; only those InUse run.
type I struct {
	InUse     bool
	RW        i2c.RW
	RegOffset uint8
	BusSize   i2c.SMBusSize
	Data      [34]byte
	Addr      int
	Delay     int
}

// R is the result of the I at the same index.
type R struct {
	D [34]byte
	E string
}

func (*Command) String() string  { return Name }
func (*Command) Usage() string   { return Usage }
func (*Command) Apropos() string { return Apropos }

func (c *Command) Main(args ...string) error {
	stop := c.stopc()
	if c.Init != nil {
		c.init.Do(c.Init)
	}
	ctl, err := open(args)
	if err != nil {
		return err
	}
	defer ctl.Close()

	c.c = ctl
	c.last = make(map[string]uint64)

	if err = redis.IsReady(); err != nil {
		log.Print("warn", Name, ": not publishing: ", err)
	} else if c.pub, err = publisher.New(); err != nil {
		return err
	} else {
		defer c.pub.Close()
	}

	if c.rpc, err = atsock.NewRpcServer(Name); err != nil {
		return err
	}
	defer c.rpc.Close()
	if err = rpc.Register(&c.Info); err != nil {
		return err
	}

	t := time.NewTicker(5 * time.Second)
	defer t.Stop()
	for {
		c.update()
		select {
		case <-stop:
			return nil
		case <-t.C:
		}
	}
}

// Close stops Main, including one that has not started yet.
func (c *Command) Close() error {
	c.closeOnce.Do(func() { close(c.stopc()) })
	return nil
}

func (c *Command) stopc() chan struct{} {
	c.stopOnce.Do(func() { c.stop = make(chan struct{}) })
	return c.stop
}

// open parses the command arguments and returns the initialized
// controller they describe.
func open(args []string) (*dwi2c.Controller, error) {
	usage := func(format string, args ...interface{}) error {
		return fmt.Errorf(format+"\nusage: "+Usage, args...)
	}
	flag, args := flags.New(args, "-poll", "-byte", "-debug", "-sim")
	parm, args := parms.New(args, "-base", "-size", "-uio", "-clock",
		"-speed", "-reset-pin")
	if len(args) > 0 {
		return nil, usage("%v: unexpected", args)
	}

	cfg := dwi2c.Config{
		Name:     Name,
		Polling:  flag.ByName["-poll"],
		ByteMode: flag.ByName["-byte"],
		Debug:    flag.ByName["-debug"],
	}
	var base, size uintptr = 0, regs.WindowSize
	uio := -1
	for _, x := range []struct {
		name string
		p    interface{}
	}{
		{"-base", &base},
		{"-size", &size},
		{"-uio", &uio},
		{"-clock", &cfg.ClockHz},
		{"-speed", &cfg.BusHz},
	} {
		if arg := parm.ByName[x.name]; len(arg) > 0 {
			if _, err := fmt.Sscan(arg, x.p); err != nil {
				return nil, usage("%s: %v", x.name[1:], err)
			}
		}
	}
	if name := parm.ByName["-reset-pin"]; len(name) > 0 {
		cfg.Recover = func() { resetPin(name) }
	}

	var block regs.Block
	switch {
	case flag.ByName["-sim"]:
		hw := sim.New(32, 32)
		hw.AddTarget(SimAddr, sim.NewMemory(256))
		block = hw
		if !cfg.Polling {
			cfg.IRQ = hw
		}
	case base == 0:
		return nil, usage("missing -base")
	default:
		w, err := mmio.Open(base, size)
		if err != nil {
			return nil, err
		}
		block = w
		if uio >= 0 && !cfg.Polling {
			cfg.IRQ = mmio.OpenUIO(uio)
		}
	}
	ctl, err := dwi2c.New(block, cfg)
	if err != nil {
		if w, ok := block.(*mmio.Window); ok {
			w.Close()
		}
		return nil, err
	}
	return ctl, nil
}

// resetPin pulses an active low bus or mux reset.
func resetPin(name string) {
	pin, found := gpio.Pins[name]
	if !found {
		log.Print("err", Name, ": ", name, ": pin not found")
		return
	}
	pin.SetValue(false)
	time.Sleep(10 * time.Microsecond)
	pin.SetValue(true)
}

func (c *Command) update() {
	if c.pub == nil {
		return
	}
	s := c.c.Stats()
	for _, x := range []struct {
		k string
		v uint64
	}{
		{"transfers", s.Transfers},
		{"messages", s.Messages},
		{"nacks", s.NoAcks},
		{"arbitration.lost", s.ArbLosses},
		{"aborts", s.Aborts},
		{"timeouts", s.Timeouts},
		{"busy.timeouts", s.BusyTimeouts},
	} {
		k := "dwi2c." + x.k
		if v, found := c.last[k]; !found || v != x.v {
			c.pub.Print(k, ": ", x.v)
			c.last[k] = x.v
		}
	}
}

// ReadWrite runs a batch of SMBus operations in order, stopping at the
// first failure.
func (i *Info) ReadWrite(g *[MAXOPS]I, f *[MAXOPS]R) error {
	i.mutex.Lock()
	defer i.mutex.Unlock()

	for x := range g {
		if !g[x].InUse {
			continue
		}
		var data i2c.SMBusData
		copy(data[:], g[x].Data[:])
		err := i.c.SMBus(uint16(g[x].Addr), g[x].RW, g[x].RegOffset,
			g[x].BusSize, &data)
		if err != nil {
			f[x].E = err.Error()
			log.Printf("err", "i2c R/W: addr 0x%x offset 0x%x RW %d BusSize %d: %v",
				g[x].Addr, g[x].RegOffset, g[x].RW, g[x].BusSize, err)
			return err
		}
		copy(f[x].D[:], data[:])
		if g[x].Delay > 0 {
			time.Sleep(time.Duration(g[x].Delay) * time.Millisecond)
		}
	}
	return nil
}

// Transfer runs one raw transaction and returns the messages with their
// read buffers filled.
func (i *Info) Transfer(msgs []dwi2c.Msg, reply *[]dwi2c.Msg) error {
	i.mutex.Lock()
	defer i.mutex.Unlock()

	if _, err := i.c.Transfer(msgs); err != nil {
		return err
	}
	*reply = msgs
	return nil
}
