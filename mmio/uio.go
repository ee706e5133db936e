// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package mmio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"
)

var (
	ErrAttached    = errors.New("uio: already attached")
	ErrNotAttached = errors.New("uio: not attached")
)

// UIO is the interrupt line of a device bound to a UIO driver. Reading
// /dev/uioN blocks until the next interrupt; writing a 32-bit 1 unmasks
// the line again.
type UIO struct {
	name string
	mu   sync.Mutex
	f    *os.File
	done chan struct{}
}

func OpenUIO(n int) *UIO {
	return &UIO{name: fmt.Sprintf("/dev/uio%d", n)}
}

func (u *UIO) String() string { return u.name }

// Attach starts a goroutine calling handler after every interrupt.
func (u *UIO) Attach(handler func()) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.f != nil {
		return ErrAttached
	}
	f, err := os.OpenFile(u.name, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	if err = unmask(f); err != nil {
		f.Close()
		return err
	}
	u.f = f
	u.done = make(chan struct{})
	go u.serve(f, handler, u.done)
	return nil
}

// Detach stops interrupt delivery; it returns after the last handler
// call.
func (u *UIO) Detach() error {
	u.mu.Lock()
	f, done := u.f, u.done
	u.f, u.done = nil, nil
	u.mu.Unlock()
	if f == nil {
		return ErrNotAttached
	}
	err := f.Close()
	<-done
	return err
}

func unmask(f *os.File) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], 1)
	_, err := f.Write(b[:])
	return err
}

func (u *UIO) serve(f *os.File, handler func(), done chan struct{}) {
	defer close(done)
	var b [4]byte
	for {
		if _, err := f.Read(b[:]); err != nil {
			return
		}
		handler()
		if err := unmask(f); err != nil {
			return
		}
	}
}
