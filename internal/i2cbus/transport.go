// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package i2cbus is the two-wire bus layer the sensor driver talks through.
// Drivers depend on the Transport interface only; concrete adapters wrap a
// periph.io bus on Linux hosts and a TinyGo bus on microcontrollers.
package i2cbus

import "sync"

// Transport performs addressed transactions on an I2C bus.
// Implementations return *TransportError on failure.
type Transport interface {
	// Write sends w to the device at addr.
	Write(addr uint16, w []byte) error
	// WriteRead sends w and then reads len(r) bytes into r with a repeated start.
	WriteRead(addr uint16, w, r []byte) error
}

// Serialized guards a Transport with a mutex so that several goroutines
// (sample loop, register debugger) can share one bus.
type Serialized struct {
	mu sync.Mutex
	t  Transport
}

// NewSerialized wraps t.
func NewSerialized(t Transport) *Serialized {
	return &Serialized{t: t}
}

func (s *Serialized) Write(addr uint16, w []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t.Write(addr, w)
}

func (s *Serialized) WriteRead(addr uint16, w, r []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t.WriteRead(addr, w, r)
}

// Scan probes every 7-bit address in [from, to] with a one byte read and
// returns the addresses that answered.
func Scan(t Transport, from, to uint16) []uint16 {
	var found []uint16
	buf := make([]byte, 1)
	for addr := from; addr <= to; addr++ {
		if err := t.WriteRead(addr, nil, buf); err == nil {
			found = append(found, addr)
		}
	}
	return found
}

// Default scan window, excluding reserved addresses.
const (
	ScanFirst uint16 = 0x03
	ScanLast  uint16 = 0x77
)
