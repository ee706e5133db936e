// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package sim

import "sync"

// Memory is an EEPROM like target: the first byte written after START
// sets the address pointer, later writes store and reads fetch at the
// pointer, which then advances and wraps.
type Memory struct {
	mu       sync.Mutex
	data     []byte
	ptr      int
	pointer  bool
	readOnly bool
}

func NewMemory(size int) *Memory {
	return &Memory{data: make([]byte, size)}
}

// SetReadOnly makes the target NACK data writes; the pointer byte is
// still acknowledged.
func (m *Memory) SetReadOnly(t bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readOnly = t
}

// Bytes returns a copy of the contents.
func (m *Memory) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data...)
}

// Load replaces the contents from offset.
func (m *Memory) Load(offset int, b []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy(m.data[offset:], b)
}

func (m *Memory) Address(read bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pointer = !read
	return true
}

func (m *Memory) Write(b byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pointer {
		m.ptr = int(b) % len(m.data)
		m.pointer = false
		return true
	}
	if m.readOnly {
		return false
	}
	m.data[m.ptr] = b
	m.ptr = (m.ptr + 1) % len(m.data)
	return true
}

func (m *Memory) Read() byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.data[m.ptr]
	m.ptr = (m.ptr + 1) % len(m.data)
	return b
}

func (m *Memory) Stop() {}
