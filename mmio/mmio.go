// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package mmio maps a controller's physical register window from /dev/mem
// and delivers its interrupt from a Linux UIO device.
package mmio

import (
	"fmt"
	"os"
	"sync/atomic"
	"syscall"
	"unsafe"

	"github.com/platinasystems/dwi2c/regs"
)

// Window is a mapped register block.
type Window struct {
	f    *os.File
	mem  []byte
	regs unsafe.Pointer
	size uintptr
}

// Open maps size bytes of physical memory at base. The mapping is page
// aligned; base need not be.
func Open(base, size uintptr) (*Window, error) {
	f, err := os.OpenFile("/dev/mem", os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, err
	}
	page := uintptr(os.Getpagesize())
	off := base & (page - 1)
	n := (off + size + page - 1) &^ (page - 1)
	mem, err := syscall.Mmap(int(f.Fd()), int64(base-off), int(n),
		syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap %#x: %w", base, err)
	}
	return &Window{
		f:    f,
		mem:  mem,
		regs: unsafe.Pointer(&mem[off]),
		size: size,
	}, nil
}

func (w *Window) addr(o regs.Offset) *uint32 {
	if uintptr(o)+4 > w.size || o&3 != 0 {
		panic(fmt.Errorf("mmio: register %s outside window", o))
	}
	return (*uint32)(unsafe.Pointer(uintptr(w.regs) + uintptr(o)))
}

func (w *Window) Load32(o regs.Offset) uint32 {
	return atomic.LoadUint32(w.addr(o))
}

func (w *Window) Store32(o regs.Offset, v uint32) {
	atomic.StoreUint32(w.addr(o), v)
}

func (w *Window) Close() error {
	err := syscall.Munmap(w.mem)
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	return err
}
