// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package regs

import "testing"

func TestCompParam1(t *testing.T) {
	for _, x := range []struct{ tx, rx int }{
		{1, 1}, {8, 8}, {16, 32}, {256, 64},
	} {
		p := MakeCompParam1(x.tx, x.rx)
		if p.TxDepth() != x.tx || p.RxDepth() != x.rx {
			t.Errorf("%#x: %d/%d != %d/%d", uint32(p),
				p.TxDepth(), p.RxDepth(), x.tx, x.rx)
		}
	}
	// 32 entry FIFOs as reported by a typical part
	if p := CompParam1(0x001f1f2e); p.TxDepth() != 32 || p.RxDepth() != 32 {
		t.Errorf("%d/%d", p.TxDepth(), p.RxDepth())
	}
}

func TestDataCmd(t *testing.T) {
	for _, x := range []struct {
		c DataCmd
		s string
	}{
		{0x5a, "write 0x5a"},
		{CmdStop | 0x01, "write 0x01 stop"},
		{CmdRestart | CmdRead, "restart read"},
		{CmdRestart | CmdRead | CmdStop, "restart read stop"},
	} {
		if s := x.c.String(); s != x.s {
			t.Errorf("%#x: %q != %q", uint32(x.c), s, x.s)
		}
	}
}

func TestClearFor(t *testing.T) {
	var m Intr
	for _, x := range ClearFor {
		if m&x.Intr != 0 {
			t.Errorf("%s: duplicate", x.Clr)
		}
		m |= x.Intr
	}
	if m&(IntrRxFull|IntrTxEmpty) != 0 {
		t.Error("level interrupt has a clear register")
	}
	if s := IcClrTxAbrt.String(); s != "IC_CLR_TX_ABRT" {
		t.Error(s)
	}
	if s := Offset(0x84).String(); s != "0x84" {
		t.Error(s)
	}
}
