// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package dwi2c

import "fmt"

// MsgFlags has the values of Linux i2c_msg flags.
type MsgFlags uint16

const (
	MsgRead   MsgFlags = 0x0001
	MsgTenBit MsgFlags = 0x0010
)

// Msg is one segment of a transfer: a write of Buf, or a read filling
// Buf, addressed to Addr. Buf is only referenced during the call.
type Msg struct {
	Addr  uint16
	Flags MsgFlags
	Buf   []byte
}

func (m Msg) String() string {
	dir := "w"
	if m.Flags&MsgRead != 0 {
		dir = "r"
	}
	return fmt.Sprintf("0x%x %s %d", m.Addr, dir, len(m.Buf))
}

// Transfer runs msgs as one bus transaction, with a repeated START
// between messages, and returns len(msgs) on success. All messages must
// have the same address and a non-empty Buf.
func (c *Controller) Transfer(msgs []Msg) (int, error) {
	return c.transfer(msgs, c.cfg.Polling)
}

// TransferAtomic is Transfer for callers that may not wait on an
// interrupt; the session is always polled.
func (c *Controller) TransferAtomic(msgs []Msg) (int, error) {
	return c.transfer(msgs, true)
}

func (c *Controller) transfer(msgs []Msg, polling bool) (int, error) {
	if err := validate(msgs); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, ErrClosed
	}
	d := driveIRQ
	switch {
	case c.cfg.ByteMode && byteShape(msgs):
		d = driveByte
	case polling:
		d = drivePoll
	}
	c.stats.Transfers++
	n, err := c.xfer(msgs, d)
	c.stats.Messages += uint64(n)
	return n, err
}

func validate(msgs []Msg) error {
	if len(msgs) == 0 {
		return ErrInvalid
	}
	addr, flags := msgs[0].Addr, msgs[0].Flags&MsgTenBit
	limit := uint16(0x7f)
	if flags != 0 {
		limit = 0x3ff
	}
	if addr > limit {
		return ErrInvalid
	}
	for _, m := range msgs {
		if len(m.Buf) == 0 || m.Addr != addr || m.Flags&MsgTenBit != flags {
			return ErrInvalid
		}
	}
	return nil
}

// Tx writes w then reads r in one transaction; either may be empty.
func (c *Controller) Tx(addr uint16, w, r []byte) error {
	msgs := make([]Msg, 0, 2)
	if len(w) > 0 {
		msgs = append(msgs, Msg{Addr: addr, Buf: w})
	}
	if len(r) > 0 {
		msgs = append(msgs, Msg{Addr: addr, Flags: MsgRead, Buf: r})
	}
	_, err := c.Transfer(msgs)
	return err
}
