// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package dwi2c

import (
	"time"

	"github.com/jpillora/backoff"
	"github.com/platinasystems/dwi2c/regs"
)

// setEnable writes IC_ENABLE and waits for IC_ENABLE_STATUS to follow.
// A controller that never follows is logged, not failed; the transfer
// timeouts catch a controller that really is wedged.
func (c *Controller) setEnable(enable bool) {
	var v uint32
	if enable {
		v = 1
	}
	b := &backoff.Backoff{
		Min:    25 * time.Microsecond,
		Max:    250 * time.Microsecond,
		Factor: 2,
		Jitter: false,
	}
	for i := 0; i < c.cfg.EnableRetries; i++ {
		c.wr(regs.IcEnable, v)
		if c.enabled() == enable {
			return
		}
		time.Sleep(b.Duration())
	}
	c.cfg.Sink.Log("err", "timeout in enabling/disabling adapter")
}

// waitBusIdle waits for IC_STATUS activity to clear before a session.
func (c *Controller) waitBusIdle() error {
	b := &backoff.Backoff{
		Min:    time.Millisecond,
		Max:    2 * time.Millisecond,
		Factor: 1.5,
		Jitter: true,
	}
	for i := 0; i < c.cfg.BusyRetries; i++ {
		if c.status()&regs.StatusActivity == 0 {
			return nil
		}
		time.Sleep(b.Duration())
	}
	c.cfg.Sink.Log("warn", "timeout waiting for bus ready")
	c.stats.BusyTimeouts++
	return ErrTimeout
}
