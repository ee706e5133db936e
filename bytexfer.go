// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package dwi2c

import (
	"errors"
	"time"

	"github.com/jpillora/backoff"
	"github.com/platinasystems/dwi2c/regs"
)

var errAborted = errors.New("aborted")

// byteShape reports whether msgs is an optional write followed by one
// read or write, the shape byteXfer handles.
func byteShape(msgs []Msg) bool {
	switch len(msgs) {
	case 1:
		return true
	case 2:
		return msgs[0].Flags&MsgRead == 0
	}
	return false
}

// byteXfer issues one IC_DATA_CMD at a time and waits for each to be
// consumed (or answered, for a read) before the next. It returns nil
// after an abort with the session in stateError.
func (c *Controller) byteXfer(s *session) error {
	restart := c.con&regs.ConRestartEn != 0
	last := len(s.msgs) - 1
	for i := range s.msgs {
		m := &s.msgs[i]
		read := m.Flags&MsgRead != 0
		if read {
			s.state = stateRead
		} else {
			s.state = stateWrite
		}
		for j := range m.Buf {
			var cmd regs.DataCmd
			if i > 0 && j == 0 && restart {
				cmd |= regs.CmdRestart
			}
			if i == last && j == len(m.Buf)-1 {
				cmd |= regs.CmdStop
			}
			ready := c.txDrained
			if read {
				cmd |= regs.CmdRead
				ready = c.rxReady
			} else {
				cmd |= regs.DataCmd(m.Buf[j])
			}
			c.setCmd(cmd)
			if err := c.byteWait(s, ready); err != nil {
				return byteErr(err)
			}
			if read {
				m.Buf[j] = c.rxByte()
			}
		}
		s.wIdx, s.rIdx = i+1, i+1
	}
	if err := c.byteWait(s, c.stopped); err != nil {
		return byteErr(err)
	}
	c.clearIntr(regs.IntrStopDet)
	s.state = stateDone
	return nil
}

func byteErr(err error) error {
	if err == errAborted {
		return nil
	}
	return err
}

func (c *Controller) txDrained() bool { return c.txLevel() == 0 }
func (c *Controller) rxReady() bool   { return c.rxLevel() > 0 }

// stopped ignores a STOP_DET left by a change of direction with restart
// disabled until the master is idle.
func (c *Controller) stopped() bool {
	return c.rawIntr()&regs.IntrStopDet != 0 &&
		c.status()&regs.StatusMstActivity == 0
}

// byteWait polls until ready, an abort or ByteTimeout.
func (c *Controller) byteWait(s *session, ready func() bool) error {
	b := &backoff.Backoff{
		Min:    2 * time.Microsecond,
		Max:    100 * time.Microsecond,
		Factor: 2,
		Jitter: false,
	}
	start := time.Now()
	for {
		if c.rawIntr()&regs.IntrTxAbrt != 0 {
			s.abort = c.abortSource()
			c.clearIntr(regs.IntrTxAbrt)
			s.state = stateError
			return errAborted
		}
		if ready() {
			return nil
		}
		if time.Since(start) > c.cfg.ByteTimeout {
			return ErrTimeout
		}
		time.Sleep(b.Duration())
	}
}
