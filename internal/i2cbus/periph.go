// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package i2cbus

import (
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// Periph adapts a periph.io I2C bus to Transport.
type Periph struct {
	bus    i2c.Bus
	closer io.Closer
}

// NewPeriph wraps an already opened periph bus.
func NewPeriph(bus i2c.Bus) *Periph {
	return &Periph{bus: bus}
}

// Open initializes the periph host drivers and opens the named bus ("" picks
// the first one). A zero speed keeps the bus default.
func Open(name string, speed physic.Frequency) (*Periph, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	bc, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open I2C bus %q: %w", name, err)
	}

	if speed > 0 {
		if err := bc.SetSpeed(speed); err != nil {
			// Not every host driver can change the clock at runtime.
			log.WithField("bus", bc.String()).Warnf("i2c: cannot set speed to %s: %v", speed, err)
		}
	}

	log.WithField("bus", bc.String()).Info("i2c: bus opened")
	return &Periph{bus: bc, closer: bc}, nil
}

// Bus exposes the underlying periph bus for other periph device drivers
// sharing the same wires (the OLED display).
func (p *Periph) Bus() i2c.Bus { return p.bus }

func (p *Periph) String() string { return p.bus.String() }

func (p *Periph) Write(addr uint16, w []byte) error {
	return Classify("write", addr, p.bus.Tx(addr, w, nil))
}

func (p *Periph) WriteRead(addr uint16, w, r []byte) error {
	return Classify("write_read", addr, p.bus.Tx(addr, w, r))
}

// Close releases the bus if Open created it.
func (p *Periph) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer.Close()
}
