// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package regs describes the register window of a Synopsys DesignWare APB
// I2C controller: byte offsets, bit fields and the Block accessor
// interface that hardware and simulated backends implement.
package regs

import "fmt"

// Offset is a byte offset into the controller's register window.
type Offset uint32

const (
	IcCon         Offset = 0x00
	IcTar         Offset = 0x04
	IcDataCmd     Offset = 0x10
	IcSsSclHcnt   Offset = 0x14
	IcSsSclLcnt   Offset = 0x18
	IcFsSclHcnt   Offset = 0x1c
	IcFsSclLcnt   Offset = 0x20
	IcIntrStat    Offset = 0x2c
	IcIntrMask    Offset = 0x30
	IcRawIntrStat Offset = 0x34
	IcRxTl        Offset = 0x38
	IcTxTl        Offset = 0x3c

	// Reading a clear register acknowledges the corresponding latched
	// interrupt; IcClrIntr acknowledges all of them.
	IcClrIntr     Offset = 0x40
	IcClrRxUnder  Offset = 0x44
	IcClrRxOver   Offset = 0x48
	IcClrTxOver   Offset = 0x4c
	IcClrRdReq    Offset = 0x50
	IcClrTxAbrt   Offset = 0x54
	IcClrRxDone   Offset = 0x58
	IcClrActivity Offset = 0x5c
	IcClrStopDet  Offset = 0x60
	IcClrStartDet Offset = 0x64
	IcClrGenCall  Offset = 0x68

	IcEnable       Offset = 0x6c
	IcStatus       Offset = 0x70
	IcTxFlr        Offset = 0x74
	IcRxFlr        Offset = 0x78
	IcSdaHold      Offset = 0x7c
	IcTxAbrtSource Offset = 0x80
	IcEnableStatus Offset = 0x9c
	IcCompParam1   Offset = 0xf4
	IcCompVersion  Offset = 0xf8
	IcCompType     Offset = 0xfc

	// WindowSize covers every register above.
	WindowSize = 0x100
)

var offsetNames = map[Offset]string{
	IcCon:          "IC_CON",
	IcTar:          "IC_TAR",
	IcDataCmd:      "IC_DATA_CMD",
	IcSsSclHcnt:    "IC_SS_SCL_HCNT",
	IcSsSclLcnt:    "IC_SS_SCL_LCNT",
	IcFsSclHcnt:    "IC_FS_SCL_HCNT",
	IcFsSclLcnt:    "IC_FS_SCL_LCNT",
	IcIntrStat:     "IC_INTR_STAT",
	IcIntrMask:     "IC_INTR_MASK",
	IcRawIntrStat:  "IC_RAW_INTR_STAT",
	IcRxTl:         "IC_RX_TL",
	IcTxTl:         "IC_TX_TL",
	IcClrIntr:      "IC_CLR_INTR",
	IcClrRxUnder:   "IC_CLR_RX_UNDER",
	IcClrRxOver:    "IC_CLR_RX_OVER",
	IcClrTxOver:    "IC_CLR_TX_OVER",
	IcClrRdReq:     "IC_CLR_RD_REQ",
	IcClrTxAbrt:    "IC_CLR_TX_ABRT",
	IcClrRxDone:    "IC_CLR_RX_DONE",
	IcClrActivity:  "IC_CLR_ACTIVITY",
	IcClrStopDet:   "IC_CLR_STOP_DET",
	IcClrStartDet:  "IC_CLR_START_DET",
	IcClrGenCall:   "IC_CLR_GEN_CALL",
	IcEnable:       "IC_ENABLE",
	IcStatus:       "IC_STATUS",
	IcTxFlr:        "IC_TXFLR",
	IcRxFlr:        "IC_RXFLR",
	IcSdaHold:      "IC_SDA_HOLD",
	IcTxAbrtSource: "IC_TX_ABRT_SOURCE",
	IcEnableStatus: "IC_ENABLE_STATUS",
	IcCompParam1:   "IC_COMP_PARAM_1",
	IcCompVersion:  "IC_COMP_VERSION",
	IcCompType:     "IC_COMP_TYPE",
}

func (o Offset) String() string {
	if s, found := offsetNames[o]; found {
		return s
	}
	return fmt.Sprintf("0x%02x", uint32(o))
}

// Block is a 32-bit register window. Implementations must tolerate
// concurrent access from the interrupt goroutine and the caller.
type Block interface {
	Load32(Offset) uint32
	Store32(Offset, uint32)
}

// ComponentType is the IC_COMP_TYPE value of every DesignWare I2C block.
const ComponentType = 0x44570140

// Con is IC_CON.
//
//	[0]   master mode
//	[2:1] speed: 1 standard, 2 fast, 3 high
//	[3]   10-bit addressing as slave
//	[4]   10-bit addressing as master
//	[5]   restart enable
//	[6]   slave disable
type Con uint32

const (
	ConMaster          Con = 1 << 0
	ConSpeedStd        Con = 1 << 1
	ConSpeedFast       Con = 2 << 1
	ConSpeedMask       Con = 3 << 1
	Con10BitAddrSlave  Con = 1 << 3
	Con10BitAddrMaster Con = 1 << 4
	ConRestartEn       Con = 1 << 5
	ConSlaveDisable    Con = 1 << 6
)

// IC_TAR [9:0] is the target address, [12] selects 10-bit master
// addressing.
const (
	TarAddrMask = 0x3ff
	TarTenBit   = 1 << 12
)

// DataCmd is a word written to IC_DATA_CMD.
//
//	[7:0] data byte for a write, ignored for a read
//	[8]   read command
//	[9]   issue STOP after this byte
//	[10]  issue RESTART before this byte
type DataCmd uint32

const (
	CmdRead    DataCmd = 1 << 8
	CmdStop    DataCmd = 1 << 9
	CmdRestart DataCmd = 1 << 10
)

func (c DataCmd) Data() byte      { return byte(c) }
func (c DataCmd) IsRead() bool    { return c&CmdRead != 0 }
func (c DataCmd) IsStop() bool    { return c&CmdStop != 0 }
func (c DataCmd) IsRestart() bool { return c&CmdRestart != 0 }

func (c DataCmd) String() string {
	s := fmt.Sprintf("write 0x%02x", c.Data())
	if c.IsRead() {
		s = "read"
	}
	if c.IsRestart() {
		s = "restart " + s
	}
	if c.IsStop() {
		s += " stop"
	}
	return s
}

// Intr holds the bits of IC_INTR_STAT, IC_INTR_MASK and IC_RAW_INTR_STAT.
type Intr uint32

const (
	IntrRxUnder  Intr = 1 << 0
	IntrRxOver   Intr = 1 << 1
	IntrRxFull   Intr = 1 << 2
	IntrTxOver   Intr = 1 << 3
	IntrTxEmpty  Intr = 1 << 4
	IntrRdReq    Intr = 1 << 5
	IntrTxAbrt   Intr = 1 << 6
	IntrRxDone   Intr = 1 << 7
	IntrActivity Intr = 1 << 8
	IntrStopDet  Intr = 1 << 9
	IntrStartDet Intr = 1 << 10
	IntrGenCall  Intr = 1 << 11

	// IntrDefaultMask is unmasked at the start of each master transfer.
	IntrDefaultMask = IntrRxFull | IntrTxEmpty | IntrTxAbrt | IntrStopDet
)

// ClearFor maps each latched interrupt to the register whose read
// clears it. Level triggered sources (RX_FULL, TX_EMPTY) are absent.
var ClearFor = []struct {
	Intr Intr
	Clr  Offset
}{
	{IntrRxUnder, IcClrRxUnder},
	{IntrRxOver, IcClrRxOver},
	{IntrTxOver, IcClrTxOver},
	{IntrRdReq, IcClrRdReq},
	{IntrTxAbrt, IcClrTxAbrt},
	{IntrRxDone, IcClrRxDone},
	{IntrActivity, IcClrActivity},
	{IntrStopDet, IcClrStopDet},
	{IntrStartDet, IcClrStartDet},
	{IntrGenCall, IcClrGenCall},
}

// Status is IC_STATUS.
//
//	[0] activity
//	[1] transmit FIFO not full
//	[2] transmit FIFO empty
//	[3] receive FIFO not empty
//	[4] receive FIFO full
//	[5] master FSM not idle
type Status uint32

const (
	StatusActivity    Status = 1 << 0
	StatusTfnf        Status = 1 << 1
	StatusTfe         Status = 1 << 2
	StatusRfne        Status = 1 << 3
	StatusRff         Status = 1 << 4
	StatusMstActivity Status = 1 << 5
)

// Abort is IC_TX_ABRT_SOURCE; each bit names one reason the controller
// gave up on the current transfer.
type Abort uint32

const (
	Abrt7bAddrNoack Abort = 1 << iota
	Abrt10Addr1Noack
	Abrt10Addr2Noack
	AbrtTxDataNoack
	AbrtGcallNoack
	AbrtGcallRead
	AbrtHsAckdet
	AbrtSbyteAckdet
	AbrtHsNorstrt
	AbrtSbyteNorstrt
	Abrt10bRdNorstrt
	AbrtMasterDis
	AbrtArbLost
	AbrtSlvflushTxfifo
	AbrtSlvArblost
	AbrtSlvrdIntx

	// AbrtNoack covers every "not acknowledged" cause.
	AbrtNoack = Abrt7bAddrNoack | Abrt10Addr1Noack | Abrt10Addr2Noack |
		AbrtTxDataNoack | AbrtGcallNoack

	// NAbort is the number of defined abort source bits.
	NAbort = 16
)

// CompParam1 is IC_COMP_PARAM_1.
//
//	[1:0]   APB data width
//	[3:2]   max speed mode
//	[15:8]  receive FIFO depth - 1
//	[23:16] transmit FIFO depth - 1
type CompParam1 uint32

func (p CompParam1) TxDepth() int { return int((p>>16)&0xff) + 1 }
func (p CompParam1) RxDepth() int { return int((p>>8)&0xff) + 1 }

// MakeCompParam1 encodes FIFO depths the way the hardware reports them.
func MakeCompParam1(txDepth, rxDepth int) CompParam1 {
	return CompParam1(uint32(txDepth-1)&0xff<<16 | uint32(rxDepth-1)&0xff<<8)
}
