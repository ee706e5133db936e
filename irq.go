// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package dwi2c

import "time"

// Interrupt services the controller interrupt line. The IRQ passed in
// Config calls it; it may also be called directly by a platform that
// delivers interrupts some other way.
func (c *Controller) Interrupt() {
	if c.service() {
		select {
		case c.done <- struct{}{}:
		default:
		}
	}
}

// wait blocks until Interrupt completes the session.
func (c *Controller) wait() error {
	t := time.NewTimer(c.cfg.Timeout)
	defer t.Stop()
	select {
	case <-c.done:
		return nil
	case <-t.C:
		return ErrTimeout
	}
}
