// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mpu6050

import (
	"math"
	"sync"
	"time"

	"github.com/relabs-tech/tilt_computer/internal/i2cbus"
)

const sleepBit = 0x40

// SimWrite records one register write seen by Sim.
type SimWrite struct {
	Reg, Val byte
}

// Sim emulates an MPU-6050 register file behind an i2cbus.Transport.
// It powers up asleep, like the real part, and ignores configuration writes
// until PWR_MGMT_1 clears the SLEEP bit.
type Sim struct {
	mu     sync.Mutex
	addr   uint16
	regs   [128]byte
	ptr    byte
	faults map[byte]i2cbus.Kind
	absent bool
	writes []SimWrite
}

// NewSim returns a level, motionless device at DefaultAddr.
func NewSim() *Sim {
	s := &Sim{addr: DefaultAddr, faults: map[byte]i2cbus.Kind{}}
	s.regs[RegPwrMgmt1] = sleepBit
	s.regs[RegWhoAmI] = WhoAmIValue
	s.SetAccelRaw(0, 0, AccelLSBPerG)
	return s
}

// SetAddr moves the device to another bus address.
func (s *Sim) SetAddr(addr uint16) {
	s.mu.Lock()
	s.addr = addr
	s.mu.Unlock()
}

// SetWhoAmI replaces the identity register, as with a clone part.
func (s *Sim) SetWhoAmI(v byte) {
	s.mu.Lock()
	s.regs[RegWhoAmI] = v
	s.mu.Unlock()
}

// SetAbsent makes every transfer time out, as with an unpowered device.
func (s *Sim) SetAbsent(absent bool) {
	s.mu.Lock()
	s.absent = absent
	s.mu.Unlock()
}

// Fail injects a failure of the given kind on any transfer addressing reg.
func (s *Sim) Fail(reg byte, kind i2cbus.Kind) {
	s.mu.Lock()
	s.faults[reg] = kind
	s.mu.Unlock()
}

// Heal removes an injected failure.
func (s *Sim) Heal(reg byte) {
	s.mu.Lock()
	delete(s.faults, reg)
	s.mu.Unlock()
}

// Writes returns the register writes seen so far, in order.
func (s *Sim) Writes() []SimWrite {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SimWrite(nil), s.writes...)
}

// Asleep reports the SLEEP bit.
func (s *Sim) Asleep() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regs[RegPwrMgmt1]&sleepBit != 0
}

// Register returns the current value of reg.
func (s *Sim) Register(reg byte) byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regs[reg&0x7F]
}

// SetAccelRaw loads raw accelerometer counts.
func (s *Sim) SetAccelRaw(x, y, z int16) {
	s.mu.Lock()
	s.putBlock(RegAccelXOutH, x, y, z)
	s.mu.Unlock()
}

// SetGyroRaw loads raw gyroscope counts.
func (s *Sim) SetGyroRaw(x, y, z int16) {
	s.mu.Lock()
	s.putBlock(RegGyroXOutH, x, y, z)
	s.mu.Unlock()
}

// SetAccel loads an acceleration in g.
func (s *Sim) SetAccel(x, y, z float64) {
	s.SetAccelRaw(toCounts(x*AccelLSBPerG), toCounts(y*AccelLSBPerG), toCounts(z*AccelLSBPerG))
}

// SetGyro loads an angular rate in °/s.
func (s *Sim) SetGyro(x, y, z float64) {
	s.SetGyroRaw(toCounts(x*GyroLSBPerDPS), toCounts(y*GyroLSBPerDPS), toCounts(z*GyroLSBPerDPS))
}

// Animate sets the outputs to a smooth rocking motion at the given time
// since start: roll = 20·sin(t), pitch = 15·cos(0.7t).
func (s *Sim) Animate(elapsed time.Duration) {
	t := elapsed.Seconds()
	roll := 20 * math.Sin(t) * math.Pi / 180
	pitch := 15 * math.Cos(0.7*t) * math.Pi / 180

	s.SetAccel(-math.Sin(pitch), math.Sin(roll)*math.Cos(pitch), math.Cos(roll)*math.Cos(pitch))
	s.SetGyro(20*math.Cos(t), -15*0.7*math.Sin(0.7*t), 0)
}

func (s *Sim) putBlock(reg byte, x, y, z int16) {
	for i, v := range []int16{x, y, z} {
		s.regs[int(reg)+2*i] = byte(uint16(v) >> 8)
		s.regs[int(reg)+2*i+1] = byte(uint16(v))
	}
}

func toCounts(v float64) int16 {
	v = math.Round(v)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

func (s *Sim) check(op string, addr uint16, reg byte) error {
	if s.absent {
		return &i2cbus.TransportError{Kind: i2cbus.Timeout, Op: op, Addr: addr}
	}
	if addr != s.addr {
		return &i2cbus.TransportError{Kind: i2cbus.Nack, Op: op, Addr: addr}
	}
	if kind, ok := s.faults[reg]; ok {
		return &i2cbus.TransportError{Kind: kind, Op: op, Addr: addr}
	}
	return nil
}

func (s *Sim) Write(addr uint16, w []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reg byte
	if len(w) > 0 {
		reg = w[0] & 0x7F
	}
	if err := s.check("write", addr, reg); err != nil {
		return err
	}
	if len(w) == 0 {
		return nil
	}
	s.ptr = reg
	for i, v := range w[1:] {
		r := (reg + byte(i)) & 0x7F
		s.writes = append(s.writes, SimWrite{Reg: r, Val: v})
		if s.regs[RegPwrMgmt1]&sleepBit != 0 && r != RegPwrMgmt1 {
			continue
		}
		s.regs[r] = v
	}
	return nil
}

func (s *Sim) WriteRead(addr uint16, w, r []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg := s.ptr
	if len(w) > 0 {
		reg = w[0] & 0x7F
	}
	if err := s.check("write_read", addr, reg); err != nil {
		return err
	}
	for i := range r {
		r[i] = s.regs[(reg+byte(i))&0x7F]
	}
	return nil
}
