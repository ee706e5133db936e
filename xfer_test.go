// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package dwi2c

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/platinasystems/dwi2c/internal/sim"
	"github.com/platinasystems/dwi2c/internal/test"
	"github.com/platinasystems/dwi2c/regs"
)

func TestWrite(t *testing.T) {
	eachDrive(t, func(t *testing.T, d drive) {
		assert := test.Assert{TB: t}
		h := newHarness(t, d, Config{})
		n, err := h.Transfer([]Msg{{Addr: 0x50, Buf: []byte{0x20, 0x5a}}})
		assert.Nil(err)
		if n != 1 {
			t.Errorf("%d != 1", n)
		}
		assert.Diff(h.hw.Commands(), []regs.DataCmd{
			0x20,
			regs.CmdStop | 0x5a,
		})
		assert.Diff(h.hw.Events(), []string{
			"start 0x50 w",
			"write 0x20",
			"write 0x5a",
			"stop",
		})
		if b := h.mem.Bytes()[0x20]; b != 0x5a {
			t.Errorf("0x%x != 0x5a", b)
		}
		if a := h.LastAbort(); a != 0 {
			t.Errorf("abort %#x", uint32(a))
		}
		assert.Diff(h.Stats(), Stats{Transfers: 1, Messages: 1})
	})
}

func TestWriteRead(t *testing.T) {
	eachDrive(t, func(t *testing.T, d drive) {
		assert := test.Assert{TB: t}
		h := newHarness(t, d, Config{})
		h.mem.Load(0x10, []byte{0xde, 0xad, 0xbe, 0xef})
		b := make([]byte, 4)
		n, err := h.Transfer([]Msg{
			{Addr: 0x50, Buf: []byte{0x10}},
			{Addr: 0x50, Flags: MsgRead, Buf: b},
		})
		assert.Nil(err)
		if n != 2 {
			t.Errorf("%d != 2", n)
		}
		assert.Diff(b, []byte{0xde, 0xad, 0xbe, 0xef})
		assert.Diff(h.hw.Commands(), []regs.DataCmd{
			0x10,
			regs.CmdRestart | regs.CmdRead,
			regs.CmdRead,
			regs.CmdRead,
			regs.CmdRead | regs.CmdStop,
		})
		assert.Diff(h.hw.Events(), []string{
			"start 0x50 w",
			"write 0x10",
			"restart 0x50 r",
			"read",
			"read",
			"read",
			"read",
			"stop",
		})
	})
}

// A read longer than the FIFOs is queued and drained in pieces.
func TestLongRead(t *testing.T) {
	eachDrive(t, func(t *testing.T, d drive) {
		assert := test.Assert{TB: t}
		h := newHarness(t, d, Config{})
		want := make([]byte, 100)
		for i := range want {
			want[i] = byte(i * 3)
		}
		h.mem.Load(0, want)
		b := make([]byte, len(want))
		assert.Nil(h.Tx(0x50, []byte{0}, b))
		assert.Diff(b, want)
		cmds := h.hw.Commands()
		if len(cmds) != 1+len(want) {
			t.Fatalf("%d commands", len(cmds))
		}
		for i, cmd := range cmds[1:] {
			if cmd.IsStop() != (i == len(want)-1) {
				t.Errorf("command %d: %s", i+1, cmd)
			}
		}
	})
}

// Every message gets exactly its own commands, in order, in its own
// direction; only the last byte stops and each later message restarts.
func TestMessageSequence(t *testing.T) {
	for _, d := range []drive{driveIRQ, drivePoll} {
		t.Run(d.String(), func(t *testing.T) {
			assert := test.Assert{TB: t}
			h := newHarness(t, d, Config{})
			var msgs []Msg
			for i := 0; i < 7; i++ {
				m := Msg{Addr: 0x50, Buf: make([]byte, 1+i*3)}
				if i%3 == 1 {
					m.Flags = MsgRead
				} else {
					m.Buf[0] = byte(i)
				}
				msgs = append(msgs, m)
			}
			n, err := h.Transfer(msgs)
			assert.Nil(err)
			if n != len(msgs) {
				t.Errorf("%d != %d", n, len(msgs))
			}
			cmds := h.hw.Commands()
			for i, m := range msgs {
				if len(cmds) < len(m.Buf) {
					t.Fatalf("message %d: out of commands", i)
				}
				for j, cmd := range cmds[:len(m.Buf)] {
					read := m.Flags&MsgRead != 0
					last := i == len(msgs)-1 && j == len(m.Buf)-1
					if cmd.IsRead() != read ||
						cmd.IsStop() != last ||
						cmd.IsRestart() != (i > 0 && j == 0) {
						t.Errorf("message %d byte %d: %s", i, j, cmd)
					}
					if !read && cmd.Data() != m.Buf[j] {
						t.Errorf("message %d byte %d: %s", i, j, cmd)
					}
				}
				cmds = cmds[len(m.Buf):]
			}
			if len(cmds) != 0 {
				t.Errorf("%d extra commands", len(cmds))
			}
		})
	}
}

func TestNoRestart(t *testing.T) {
	eachDrive(t, func(t *testing.T, d drive) {
		assert := test.Assert{TB: t}
		h := newHarness(t, d, Config{NoRestart: true})
		h.mem.Load(4, []byte{7})
		b := make([]byte, 1)
		assert.Nil(h.Tx(0x50, []byte{4}, b))
		assert.Diff(b, []byte{7})
		assert.Diff(h.hw.Events(), []string{
			"start 0x50 w",
			"write 0x04",
			"stop",
			"start 0x50 r",
			"read",
			"stop",
		})
	})
}

// A change of direction with restart disabled puts a STOP on the bus
// before the last message; the transfer must not end there.
func TestNoRestartDirectionChange(t *testing.T) {
	for _, d := range []drive{driveIRQ, drivePoll} {
		t.Run(d.String(), func(t *testing.T) {
			assert := test.Assert{TB: t}
			h := newHarness(t, d, Config{NoRestart: true})
			h.mem.Load(0, []byte{0x5a})
			h.hw.SetHang(true)
			b := make([]byte, 1)
			type result struct {
				n   int
				err error
			}
			done := make(chan result, 1)
			go func() {
				n, err := h.Transfer([]Msg{
					{Addr: 0x50, Flags: MsgRead, Buf: b},
					{Addr: 0x50, Buf: []byte{0x30, 0x99}},
				})
				done <- result{n, err}
			}()
			for i := 0; len(h.hw.Commands()) < 3; i++ {
				if i == 1000 {
					t.Fatal("commands not queued")
				}
				time.Sleep(time.Millisecond)
			}

			h.hw.Step(1)
			h.hw.Step(1)
			select {
			case r := <-done:
				t.Fatalf("returned %d, %v with a byte queued", r.n, r.err)
			case <-time.After(50 * time.Millisecond):
			}

			h.hw.Step(1)
			var r result
			select {
			case r = <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("transfer did not complete")
			}
			assert.Nil(r.err)
			if r.n != 2 {
				t.Errorf("%d != 2", r.n)
			}
			assert.Diff(b, []byte{0x5a})
			if v := h.mem.Bytes()[0x30]; v != 0x99 {
				t.Errorf("0x%x != 0x99", v)
			}
			assert.Diff(h.hw.Events(), []string{
				"start 0x50 r",
				"read",
				"stop",
				"start 0x50 w",
				"write 0x30",
				"write 0x99",
				"stop",
			})
		})
	}
}

// ByteMode only takes a write then a read or write; other shapes run
// through the FIFO.
func TestByteModeFallback(t *testing.T) {
	assert := test.Assert{TB: t}
	h := newHarness(t, driveByte, Config{})
	h.mem.Load(0x10, []byte{1, 2})
	b := make([]byte, 2)
	n, err := h.Transfer([]Msg{
		{Addr: 0x50, Buf: []byte{0x10}},
		{Addr: 0x50, Flags: MsgRead, Buf: b},
		{Addr: 0x50, Buf: []byte{0x30, 0x99}},
	})
	assert.Nil(err)
	if n != 3 {
		t.Errorf("%d != 3", n)
	}
	assert.Diff(b, []byte{1, 2})
	assert.Diff(h.hw.Commands(), []regs.DataCmd{
		0x10,
		regs.CmdRestart | regs.CmdRead,
		regs.CmdRead,
		regs.CmdRestart | 0x30,
		regs.CmdStop | 0x99,
	})
	if v := h.mem.Bytes()[0x30]; v != 0x99 {
		t.Errorf("0x%x != 0x99", v)
	}

	h.hw.ClearLog()
	h.mem.Load(0x31, []byte{0x77})
	b = make([]byte, 1)
	n, err = h.Transfer([]Msg{
		{Addr: 0x50, Flags: MsgRead, Buf: b},
		{Addr: 0x50, Buf: []byte{0x40, 0x55}},
	})
	assert.Nil(err)
	if n != 2 {
		t.Errorf("%d != 2", n)
	}
	assert.Diff(b, []byte{0x77})
	assert.Diff(h.hw.Commands(), []regs.DataCmd{
		regs.CmdRead,
		regs.CmdRestart | 0x40,
		regs.CmdStop | 0x55,
	})
	if v := h.mem.Bytes()[0x40]; v != 0x55 {
		t.Errorf("0x%x != 0x55", v)
	}
}

func TestTenBit(t *testing.T) {
	eachDrive(t, func(t *testing.T, d drive) {
		assert := test.Assert{TB: t}
		h := newHarness(t, d, Config{})
		mem := sim.NewMemory(16)
		h.hw.AddTarget(0x2a5, mem)
		_, err := h.Transfer([]Msg{
			{Addr: 0x2a5, Flags: MsgTenBit, Buf: []byte{1, 0x77}},
		})
		assert.Nil(err)
		if b := mem.Bytes()[1]; b != 0x77 {
			t.Errorf("0x%x != 0x77", b)
		}
		snap := h.hw.Snapshot(regs.IcTar)
		if snap[regs.IcTar] != 0x2a5|regs.TarTenBit {
			t.Errorf("IC_TAR %#x", snap[regs.IcTar])
		}

		_, err = h.Transfer([]Msg{
			{Addr: 0x2a6, Flags: MsgTenBit, Buf: []byte{1}},
		})
		assert.Error(err, ErrNoAck)
		if a := h.LastAbort(); a != regs.Abrt10Addr1Noack {
			t.Errorf("abort %#x", uint32(a))
		}
	})
}

func TestAddressNack(t *testing.T) {
	eachDrive(t, func(t *testing.T, d drive) {
		assert := test.Assert{TB: t}
		h := newHarness(t, d, Config{Timeout: 5 * time.Second})
		start := time.Now()
		_, err := h.Transfer([]Msg{{Addr: 0x51, Buf: []byte{0, 1}}})
		assert.Error(err, ErrNoAck)
		if time.Since(start) > time.Second {
			t.Error("nack waited for timeout")
		}
		if a := h.LastAbort(); a != regs.Abrt7bAddrNoack {
			t.Errorf("abort %#x", uint32(a))
		}
		for _, ev := range h.hw.Events() {
			if ev == "stop" {
				t.Error("stop after nack")
			}
		}
		assert.Diff(h.Stats(), Stats{Transfers: 1, NoAcks: 1})
		if s := h.log.String(); len(s) != 0 {
			t.Errorf("nack logged: %q", s)
		}

		// the abort is cleared by the next transfer
		assert.Nil(h.Tx(0x50, []byte{0}, nil))
		if a := h.LastAbort(); a != 0 {
			t.Errorf("abort %#x", uint32(a))
		}
	})
}

func TestDataNack(t *testing.T) {
	eachDrive(t, func(t *testing.T, d drive) {
		assert := test.Assert{TB: t}
		h := newHarness(t, d, Config{})
		h.mem.SetReadOnly(true)
		_, err := h.Transfer([]Msg{{Addr: 0x50, Buf: []byte{0, 1, 2}}})
		assert.Error(err, ErrNoAck)
		if a := h.LastAbort(); a != regs.AbrtTxDataNoack {
			t.Errorf("abort %#x", uint32(a))
		}
	})
}

func TestArbitrationLost(t *testing.T) {
	eachDrive(t, func(t *testing.T, d drive) {
		assert := test.Assert{TB: t}
		h := newHarness(t, d, Config{})
		h.hw.SetArbLost(true)
		_, err := h.Transfer([]Msg{{Addr: 0x50, Buf: []byte{0}}})
		assert.Error(err, ErrRetry)
		assert.Diff(h.log.Lines(), []string{"err: lost arbitration"})
		assert.Diff(h.Stats(), Stats{Transfers: 1, ArbLosses: 1})

		h.hw.SetArbLost(false)
		assert.Nil(h.Tx(0x50, []byte{0}, nil))
	})
}

func TestHang(t *testing.T) {
	eachDrive(t, func(t *testing.T, d drive) {
		assert := test.Assert{TB: t}
		recovered := 0
		h := newHarness(t, d, Config{
			Timeout:     50 * time.Millisecond,
			ByteTimeout: 5 * time.Millisecond,
			Recover:     func() { recovered++ },
		})
		fresh := h.hw.Snapshot(initRegs...)
		h.hw.SetHang(true)
		_, err := h.Transfer([]Msg{{Addr: 0x50, Buf: []byte{0, 1}}})
		assert.Error(err, ErrTimeout)
		if n := h.hw.Writes(regs.IcSsSclHcnt); n != 2 {
			t.Errorf("%d timing writes, not reinitialized", n)
		}
		assert.Diff(h.hw.Snapshot(initRegs...), fresh)
		if recovered != 1 {
			t.Errorf("recovered %d times", recovered)
		}
		if !strings.HasPrefix(h.log.String(), "err: controller timed out") {
			t.Errorf("log: %q", h.log.String())
		}
		assert.Diff(h.Stats(), Stats{Transfers: 1, Timeouts: 1})

		h.hw.SetHang(false)
		assert.Nil(h.Tx(0x50, []byte{0}, nil))
	})
}

// The completion timeout is one second unless configured.
func TestHangDefaultTimeout(t *testing.T) {
	if testing.Short() {
		t.Skip("slow")
	}
	assert := test.Assert{TB: t}
	h := newHarness(t, driveIRQ, Config{})
	h.hw.SetHang(true)
	start := time.Now()
	_, err := h.Transfer([]Msg{{Addr: 0x50, Buf: []byte{0}}})
	assert.Error(err, ErrTimeout)
	if dt := time.Since(start); dt < time.Second || dt > 3*time.Second {
		t.Errorf("timed out after %v", dt)
	}
}

func TestBusBusy(t *testing.T) {
	eachDrive(t, func(t *testing.T, d drive) {
		assert := test.Assert{TB: t}
		h := newHarness(t, d, Config{BusyRetries: 3})
		h.hw.SetBusy(true)
		_, err := h.Transfer([]Msg{{Addr: 0x50, Buf: []byte{0}}})
		assert.Error(err, ErrTimeout)
		assert.Diff(len(h.hw.Commands()), 0)
		if n := h.hw.Writes(regs.IcSsSclHcnt); n != 1 {
			t.Errorf("reinitialized after busy bus")
		}
		if snap := h.hw.Snapshot(regs.IcEnable); snap[regs.IcEnable] != 1 {
			t.Error("disabled after busy bus")
		}
		assert.Diff(h.Stats(), Stats{Transfers: 1, BusyTimeouts: 1})
	})
}

func TestTransferAtomic(t *testing.T) {
	assert := test.Assert{TB: t}
	h := newHarness(t, driveIRQ, Config{})
	b := make([]byte, 2)
	h.mem.Load(0x30, []byte{5, 6})
	n, err := h.TransferAtomic([]Msg{
		{Addr: 0x50, Buf: []byte{0x30}},
		{Addr: 0x50, Flags: MsgRead, Buf: b},
	})
	assert.Nil(err)
	if n != 2 {
		t.Errorf("%d != 2", n)
	}
	assert.Diff(b, []byte{5, 6})
	if n := h.hw.Writes(regs.IcIntrMask); n != 3 {
		// init, xferInit and the final mask; never unmasked
		t.Errorf("%d IC_INTR_MASK writes", n)
	}
}

func TestValidate(t *testing.T) {
	assert := test.Assert{TB: t}
	h := newHarness(t, drivePoll, Config{})
	for i, msgs := range [][]Msg{
		nil,
		{{Addr: 0x50}},
		{{Addr: 0x50, Buf: []byte{0}}, {Addr: 0x50, Flags: MsgRead}},
		{{Addr: 0x50, Buf: []byte{0}}, {Addr: 0x51, Buf: []byte{0}}},
		{{Addr: 0x80, Buf: []byte{0}}},
		{{Addr: 0x400, Flags: MsgTenBit, Buf: []byte{0}}},
		{{Addr: 0x50, Buf: []byte{0}},
			{Addr: 0x50, Flags: MsgTenBit, Buf: []byte{0}}},
	} {
		_, err := h.Transfer(msgs)
		if err != ErrInvalid {
			t.Errorf("%d %v: %v", i, msgs, err)
		}
	}
	assert.Diff(len(h.hw.Commands()), 0)
	assert.Error(h.Tx(0x50, nil, nil), ErrInvalid)
}

func TestConcurrentTransfers(t *testing.T) {
	for _, d := range []drive{driveIRQ, drivePoll} {
		t.Run(d.String(), func(t *testing.T) {
			h := newHarness(t, d, Config{})
			errs := make(chan error)
			for i := 0; i < 8; i++ {
				go func(i int) {
					p := byte(i * 16)
					w := []byte{p, byte(i), byte(i), byte(i)}
					if err := h.Tx(0x50, w, nil); err != nil {
						errs <- err
						return
					}
					r := make([]byte, 3)
					if err := h.Tx(0x50, []byte{p}, r); err != nil {
						errs <- err
						return
					}
					for _, b := range r {
						if b != byte(i) {
							errs <- fmt.Errorf("%d: read %v", i, r)
							return
						}
					}
					errs <- nil
				}(i)
			}
			for i := 0; i < 8; i++ {
				if err := <-errs; err != nil {
					t.Error(err)
				}
			}
		})
	}
}
