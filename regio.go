// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package dwi2c

import (
	"math/bits"

	"github.com/platinasystems/dwi2c/regs"
)

// Every register access goes through rd/wr so a byte-reversed window is
// handled in one place.

func (c *Controller) rd(o regs.Offset) uint32 {
	v := c.block.Load32(o)
	if c.swab {
		v = bits.ReverseBytes32(v)
	}
	return v
}

func (c *Controller) wr(o regs.Offset, v uint32) {
	if c.swab {
		v = bits.ReverseBytes32(v)
	}
	c.block.Store32(o, v)
}

func (c *Controller) setCon(v regs.Con)     { c.wr(regs.IcCon, uint32(v)) }
func (c *Controller) setCmd(v regs.DataCmd) { c.wr(regs.IcDataCmd, uint32(v)) }
func (c *Controller) rxByte() byte          { return byte(c.rd(regs.IcDataCmd)) }
func (c *Controller) status() regs.Status   { return regs.Status(c.rd(regs.IcStatus)) }
func (c *Controller) txLevel() int          { return int(c.rd(regs.IcTxFlr)) }
func (c *Controller) rxLevel() int          { return int(c.rd(regs.IcRxFlr)) }
func (c *Controller) abortSource() regs.Abort {
	return regs.Abort(c.rd(regs.IcTxAbrtSource))
}

func (c *Controller) setTar(addr uint16, tenBit bool) {
	v := uint32(addr) & regs.TarAddrMask
	if tenBit {
		v |= regs.TarTenBit
	}
	c.wr(regs.IcTar, v)
}

func (c *Controller) rawIntr() regs.Intr { return regs.Intr(c.rd(regs.IcRawIntrStat)) }

func (c *Controller) setIntrMask(m regs.Intr) { c.wr(regs.IcIntrMask, uint32(m)) }

// clearIntr acknowledges the latched interrupts in m by reading their
// clear registers.
func (c *Controller) clearIntr(m regs.Intr) {
	for _, x := range regs.ClearFor {
		if m&x.Intr != 0 {
			c.rd(x.Clr)
		}
	}
}

func (c *Controller) clearAllIntr() { c.rd(regs.IcClrIntr) }

func (c *Controller) enabled() bool { return c.rd(regs.IcEnableStatus)&1 != 0 }

func (c *Controller) compParam1() regs.CompParam1 {
	return regs.CompParam1(c.rd(regs.IcCompParam1))
}
