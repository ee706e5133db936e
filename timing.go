// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package dwi2c

import (
	"fmt"

	"github.com/platinasystems/dwi2c/regs"
)

// Profile is an SCL speed profile.
type Profile int

const (
	Standard Profile = iota
	Fast
)

const (
	StandardMaxHz = 100000
	FastMaxHz     = 400000
)

var profileStrings = []string{
	Standard: "standard",
	Fast:     "fast",
}

func (p Profile) String() string { return profileStrings[p] }

// Overhead returns the SCL high and low phase cycles the controller adds
// to the programmed counts.
func (p Profile) Overhead() (high, low int) {
	if p == Fast {
		return 17, 2
	}
	return 16, 1
}

func (p Profile) speed() regs.Con {
	if p == Fast {
		return regs.ConSpeedFast
	}
	return regs.ConSpeedStd
}

func (p Profile) hcnt() regs.Offset {
	if p == Fast {
		return regs.IcFsSclHcnt
	}
	return regs.IcSsSclHcnt
}

func (p Profile) lcnt() regs.Offset {
	if p == Fast {
		return regs.IcFsSclLcnt
	}
	return regs.IcSsSclLcnt
}

// Timing selects the speed profile for busHz and computes its SCL high
// and low counts in ticks of a clockHz reference.
//
// Half the SCL period is rounded to the nearest tick, not truncated, so
// hcnt+lcnt plus the profile overhead stays within a tick of the period.
// The counts match truncation at 100 kHz but are one higher at 400 kHz
// and 50 MHz (46/61 rather than 45/60).
func Timing(clockHz, busHz uint32) (p Profile, hcnt, lcnt uint16, err error) {
	switch {
	case clockHz == 0:
		err = fmt.Errorf("clock: 0 Hz: %w", ErrConfig)
		return
	case busHz == 0 || busHz > FastMaxHz:
		err = fmt.Errorf("bus speed: %d Hz: %w", busHz, ErrConfig)
		return
	case busHz > StandardMaxHz:
		p = Fast
	}
	tick := 1e9 / float64(clockHz)
	period := 1e9 / float64(busHz)
	// nearest tick keeps hcnt+lcnt+overhead within one tick of period
	base := int(period/2/tick + 0.5)
	high, low := p.Overhead()
	h, l := base-high, base-low
	if h < 0 || l < 0 || h > 0xffff || l > 0xffff {
		err = fmt.Errorf("%s timing: hcnt %d lcnt %d: %w", p, h, l,
			ErrConfig)
		return
	}
	return p, uint16(h), uint16(l), nil
}
