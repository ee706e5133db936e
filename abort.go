// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package dwi2c

import (
	"math/bits"

	"github.com/platinasystems/dwi2c/regs"
)

var abortStrings = [regs.NAbort]string{
	"slave address not acknowledged (7bit mode)",
	"first address byte not acknowledged (10bit mode)",
	"second address byte not acknowledged (10bit mode)",
	"data not acknowledged",
	"no acknowledgement for a general call",
	"read after general call",
	"the high speed master code was acknowledged",
	"start byte acknowledged",
	"sending high speed master code with restart disabled",
	"sending start byte with restart disabled",
	"reading 10bit address with restart disabled",
	"trying to use disabled adapter",
	"lost arbitration",
	"transmit fifo flushed by read command",
	"slave lost arbitration",
	"read command while transmitting",
}

// DecodeAbort lists the reason for every bit set in an abort source and
// classifies it into the error a transfer returns.
func DecodeAbort(src regs.Abort) (reasons []string, err error) {
	for x := uint32(src); x != 0; x &= x - 1 {
		if i := bits.TrailingZeros32(x); i < regs.NAbort {
			reasons = append(reasons, abortStrings[i])
		}
	}
	switch {
	case src&regs.AbrtNoack != 0:
		err = ErrNoAck
	case src&regs.AbrtArbLost != 0:
		err = ErrRetry
	case src&regs.AbrtGcallRead != 0:
		err = ErrInvalid
	default:
		err = ErrIO
	}
	return
}

// abortError logs and classifies the abort that ended a session. NACKs
// are only logged with Debug.
func (c *Controller) abortError(src regs.Abort) error {
	reasons, err := DecodeAbort(src)
	pri := "err"
	if err == ErrNoAck {
		if !c.cfg.Debug {
			return err
		}
		pri = "debug"
	}
	for _, s := range reasons {
		c.cfg.Sink.Log(pri, "%s", s)
	}
	return err
}

func (c *Controller) countAbort(err error) {
	switch err {
	case ErrNoAck:
		c.stats.NoAcks++
	case ErrRetry:
		c.stats.ArbLosses++
	default:
		c.stats.Aborts++
	}
}
