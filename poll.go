// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package dwi2c

import (
	"time"

	"github.com/jpillora/backoff"
	"github.com/platinasystems/dwi2c/regs"
)

// poll drives the session from the caller with controller interrupts
// masked. Between calls to service it sleeps until the controller goes
// idle, an event is pending or PollSlice elapses.
func (c *Controller) poll() error {
	b := &backoff.Backoff{
		Min:    10 * time.Microsecond,
		Max:    time.Millisecond,
		Factor: 2,
		Jitter: false,
	}
	deadline := time.Now().Add(c.cfg.Timeout)
	for {
		if c.service() {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrTimeout
		}
		slice := time.Now().Add(c.cfg.PollSlice)
		for {
			time.Sleep(b.Duration())
			if c.pending() {
				b.Reset()
				break
			}
			if c.status()&regs.StatusActivity == 0 {
				break
			}
			if time.Now().After(slice) {
				break
			}
		}
	}
}

// pending reports whether service has work.
func (c *Controller) pending() bool {
	c.evMu.Lock()
	defer c.evMu.Unlock()
	return c.sess != nil && c.rawIntr()&c.sess.mask != 0
}
