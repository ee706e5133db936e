// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package dwi2c

import "github.com/platinasystems/i2c"

// SMBus emulates an SMBus operation with I2C messages. Data follows
// the Linux i2c_smbus_data layout: data[0] is the byte or low word byte,
// data[1] the high word byte; block operations carry the length in
// data[0] and the bytes from data[1], so at most i2c.BlockMax-1 of them.
//
// Quick has no data byte and a BlockData read needs the length from the
// target before the read is queued; neither can be expressed as a FIFO
// transfer so both return ErrUnsupported.
func (c *Controller) SMBus(addr uint16, rw i2c.RW, cmd uint8,
	size i2c.SMBusSize, data *i2c.SMBusData) error {
	w := []byte{cmd}
	var r []byte
	switch size {
	case i2c.Byte:
		if rw == i2c.Read {
			w, r = nil, data[:1]
		}
	case i2c.ByteData:
		if rw == i2c.Read {
			r = data[:1]
		} else {
			w = append(w, data[0])
		}
	case i2c.WordData:
		if rw == i2c.Read {
			r = data[:2]
		} else {
			w = append(w, data[0], data[1])
		}
	case i2c.ProcCall:
		w = append(w, data[0], data[1])
		r = data[:2]
	case i2c.BlockData:
		if rw == i2c.Read {
			return ErrUnsupported
		}
		n := int(data[0])
		if n == 0 || n >= i2c.BlockMax {
			return ErrInvalid
		}
		w = append(w, data[:1+n]...)
	case i2c.I2CBlockData:
		n := int(data[0])
		if n == 0 || n >= i2c.BlockMax {
			return ErrInvalid
		}
		if rw == i2c.Read {
			r = data[1 : 1+n]
		} else {
			w = append(w, data[1:1+n]...)
		}
	default:
		return ErrUnsupported
	}
	return c.Tx(addr, w, r)
}
