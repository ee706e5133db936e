// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package dwi2c

import (
	"github.com/platinasystems/dwi2c/regs"
)

type state int

const (
	stateIdle state = iota
	stateStart
	stateWrite
	stateRead
	stateDone
	stateError
)

var stateStrings = []string{
	stateIdle:  "idle",
	stateStart: "start",
	stateWrite: "write",
	stateRead:  "read",
	stateDone:  "done",
	stateError: "error",
}

func (s state) String() string { return stateStrings[s] }

type drive int

const (
	driveIRQ drive = iota
	drivePoll
	driveByte
)

var driveStrings = []string{
	driveIRQ:  "interrupt",
	drivePoll: "polling",
	driveByte: "byte",
}

func (d drive) String() string { return driveStrings[d] }

// session is the progress of one Transfer. The write side queues
// commands, the read side drains received bytes; both walk msgs in order.
type session struct {
	msgs  []Msg
	drive drive

	wIdx        int
	wLen        int // bytes of msgs[wIdx] not yet queued
	wInProgress bool
	needRestart bool

	rIdx        int
	rBuf        []byte
	rInProgress bool

	rxOutstanding int

	mask  regs.Intr
	state state
	abort regs.Abort
}

// finished reports whether every command was queued and every read
// byte arrived.
func (s *session) finished() bool {
	return s.wIdx == len(s.msgs) && !s.wInProgress && !s.rInProgress &&
		s.rxOutstanding == 0
}

// setMask records the events service handles next and, when interrupt
// driven, unmasks them at the controller.
func (c *Controller) setMask(s *session, m regs.Intr) {
	s.mask = m
	if s.drive == driveIRQ {
		c.setIntrMask(m)
	}
}

// xferInit addresses the target and restarts the controller for s.
func (c *Controller) xferInit(s *session) {
	m := &s.msgs[0]
	tenBit := m.Flags&MsgTenBit != 0
	c.setEnable(false)
	con := c.con &^ regs.Con10BitAddrMaster
	if tenBit {
		con |= regs.Con10BitAddrMaster
	}
	c.setCon(con)
	c.setTar(m.Addr, tenBit)
	c.setIntrMask(0)
	c.clearAllIntr()
	c.setEnable(true)
	if s.drive == driveIRQ {
		c.setIntrMask(regs.IntrDefaultMask)
	}
}

// service is the event function shared by Interrupt and the polling
// loop. It handles the pending events of the current session and
// reports whether the session is complete.
func (c *Controller) service() (complete bool) {
	c.evMu.Lock()
	defer c.evMu.Unlock()
	s := c.sess
	if s == nil {
		c.setIntrMask(0)
		return false
	}
	stat := c.rawIntr() & s.mask
	if stat == 0 {
		return false
	}
	if stat&regs.IntrTxAbrt != 0 {
		// IC_CLR_TX_ABRT also clears IC_TX_ABRT_SOURCE
		s.abort = c.abortSource()
	}
	c.clearIntr(stat)
	if stat&regs.IntrTxAbrt != 0 {
		s.state = stateError
		c.setMask(s, 0)
		return true
	}
	if stat&regs.IntrRxFull != 0 {
		c.readMsg(s)
	}
	if stat&regs.IntrTxEmpty != 0 {
		c.xferMsg(s)
	}
	if stat&regs.IntrStopDet != 0 {
		if s.rxOutstanding > 0 {
			c.readMsg(s)
		}
		// with restart disabled each change of direction ends in a STOP
		if c.con&regs.ConRestartEn == 0 && !c.lastStop(s) {
			return false
		}
		s.state = stateDone
		return true
	}
	return false
}

// lastStop reports whether the STOP just seen ended the session: all of
// it was queued and read, and the controller has nothing left to send.
func (c *Controller) lastStop(s *session) bool {
	return s.finished() && c.txLevel() == 0 &&
		c.status()&regs.StatusMstActivity == 0
}

// xferMsg queues as many commands as both FIFOs have room for: writes
// are limited by transmit space, reads also by receive space not yet
// promised to earlier reads.
func (c *Controller) xferMsg(s *session) {
	mask := regs.IntrDefaultMask
	restart := c.con&regs.ConRestartEn != 0

	// every message has the address in IC_TAR; Transfer validated them
	for ; s.wIdx < len(s.msgs); s.wIdx++ {
		m := &s.msgs[s.wIdx]
		if !s.wInProgress {
			s.wLen = len(m.Buf)
			s.needRestart = s.wIdx > 0 && restart
		}
		read := m.Flags&MsgRead != 0
		if read {
			s.state = stateRead
		} else {
			s.state = stateWrite
		}

		txLimit := c.txDepth - c.txLevel()
		rxLimit := c.rxDepth - c.rxLevel()
		for s.wLen > 0 && txLimit > 0 && rxLimit > 0 {
			var cmd regs.DataCmd
			if s.wIdx == len(s.msgs)-1 && s.wLen == 1 {
				cmd |= regs.CmdStop
			}
			if s.needRestart {
				cmd |= regs.CmdRestart
			}
			if read {
				if rxLimit-s.rxOutstanding <= 0 {
					break
				}
				c.setCmd(cmd | regs.CmdRead)
				rxLimit--
				s.rxOutstanding++
			} else {
				c.setCmd(cmd | regs.DataCmd(m.Buf[len(m.Buf)-s.wLen]))
			}
			s.needRestart = false
			s.wLen--
			txLimit--
		}
		s.wInProgress = s.wLen > 0
		if s.wInProgress {
			break
		}
	}

	if s.wIdx == len(s.msgs) {
		mask &^= regs.IntrTxEmpty
	}
	c.setMask(s, mask)
}

// readMsg moves received bytes into the read messages in order.
func (c *Controller) readMsg(s *session) {
	for ; s.rIdx < len(s.msgs); s.rIdx++ {
		m := &s.msgs[s.rIdx]
		if m.Flags&MsgRead == 0 {
			continue
		}
		if !s.rInProgress {
			s.rBuf = m.Buf
		}
		for n := c.rxLevel(); len(s.rBuf) > 0 && n > 0; n-- {
			s.rBuf[0] = c.rxByte()
			s.rBuf = s.rBuf[1:]
			s.rxOutstanding--
		}
		s.rInProgress = len(s.rBuf) > 0
		if s.rInProgress {
			return
		}
	}
}

// xfer runs one session with the given drive and classifies its end.
// Called with mu held.
func (c *Controller) xfer(msgs []Msg, d drive) (int, error) {
	if err := c.waitBusIdle(); err != nil {
		return 0, err
	}
	s := &session{
		msgs:  msgs,
		drive: d,
		state: stateStart,
		mask:  regs.IntrDefaultMask,
	}
	c.lastAbort = 0
	select {
	case <-c.done:
	default:
	}
	if c.cfg.Debug {
		c.cfg.Sink.Log("debug", "%s transfer of %d msgs to 0x%x",
			d, len(msgs), msgs[0].Addr)
	}

	var err error
	if d == driveByte {
		c.xferInit(s)
		err = c.byteXfer(s)
	} else {
		c.evMu.Lock()
		c.sess = s
		c.evMu.Unlock()
		c.xferInit(s)
		if d == driveIRQ {
			err = c.wait()
		} else {
			err = c.poll()
		}
	}

	c.evMu.Lock()
	c.sess = nil
	if err == ErrTimeout {
		s.state = stateError
	}
	c.evMu.Unlock()

	if err == ErrTimeout {
		c.cfg.Sink.Log("err", "controller timed out in %s state", s.state)
		c.stats.Timeouts++
		c.init()
		if c.cfg.Recover != nil {
			c.cfg.Recover()
		}
		return 0, ErrTimeout
	}
	c.setEnable(false)
	c.setIntrMask(0)

	switch {
	case s.state == stateError:
		c.lastAbort = s.abort
		err = c.abortError(s.abort)
		c.countAbort(err)
		return 0, err
	case !s.finished():
		c.cfg.Sink.Log("err", "transfer terminated early")
		c.stats.Aborts++
		return 0, ErrIO
	}
	return len(msgs), nil
}
