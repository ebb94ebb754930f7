// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package mpu6050 drives an InvenSense MPU-6050 6-axis IMU over I2C.
//
// The device is configured for the ±2g accelerometer and ±250°/s gyroscope
// ranges and never reconfigured afterwards, so the LSB scale factors below are
// constants for the lifetime of a Dev.
package mpu6050

import (
	"fmt"

	"github.com/relabs-tech/tilt_computer/internal/i2cbus"
)

// I2C addresses. AD0 low selects DefaultAddr.
const (
	DefaultAddr   = 0x68
	AlternateAddr = 0x69
)

// Register map.
const (
	RegSmplrtDiv   = 0x19
	RegConfig      = 0x1A
	RegGyroConfig  = 0x1B
	RegAccelConfig = 0x1C
	RegIntPinCfg   = 0x37
	RegIntEnable   = 0x38
	RegIntStatus   = 0x3A
	RegAccelXOutH  = 0x3B // 6 bytes: X_H X_L Y_H Y_L Z_H Z_L
	RegTempOutH    = 0x41
	RegGyroXOutH   = 0x43 // 6 bytes
	RegUserCtrl    = 0x6A
	RegPwrMgmt1    = 0x6B
	RegPwrMgmt2    = 0x6C
	RegWhoAmI      = 0x75
)

const (
	// WhoAmIValue is the identity byte of a genuine MPU-6050.
	WhoAmIValue = 0x68

	pwrWake    = 0x00 // clear SLEEP, internal 8MHz oscillator
	gyroFS250  = 0x00 // FS_SEL=0, ±250°/s
	accelFS2G  = 0x00 // AFS_SEL=0, ±2g
	blockBytes = 6
)

// Scale factors for the configured full-scale ranges.
const (
	AccelLSBPerG  = 16384.0
	GyroLSBPerDPS = 131.0
)

// RawAxisSample is one decoded X/Y/Z register block.
type RawAxisSample struct {
	X, Y, Z int16
}

// AccelReading is acceleration in g.
type AccelReading struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// GyroReading is angular rate in degrees per second.
type GyroReading struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Word combines a big-endian register pair into a two's-complement value.
func Word(hi, lo byte) int16 {
	return int16(uint16(hi)<<8 | uint16(lo))
}

// DecodeAxes decodes a 6-byte block, high byte first for each axis.
func DecodeAxes(b []byte) RawAxisSample {
	_ = b[blockBytes-1]
	return RawAxisSample{
		X: Word(b[0], b[1]),
		Y: Word(b[2], b[3]),
		Z: Word(b[4], b[5]),
	}
}

// Accel converts raw counts to g.
func (s RawAxisSample) Accel() AccelReading {
	return AccelReading{
		X: float64(s.X) / AccelLSBPerG,
		Y: float64(s.Y) / AccelLSBPerG,
		Z: float64(s.Z) / AccelLSBPerG,
	}
}

// Gyro converts raw counts to °/s.
func (s RawAxisSample) Gyro() GyroReading {
	return GyroReading{
		X: float64(s.X) / GyroLSBPerDPS,
		Y: float64(s.Y) / GyroLSBPerDPS,
		Z: float64(s.Z) / GyroLSBPerDPS,
	}
}

// Dev is an MPU-6050 on a bus.
type Dev struct {
	t    i2cbus.Transport
	addr uint16
}

// New returns a driver for the device at addr (0 selects DefaultAddr).
// It does not touch the bus; call Init.
func New(t i2cbus.Transport, addr uint16) *Dev {
	if addr == 0 {
		addr = DefaultAddr
	}
	return &Dev{t: t, addr: addr}
}

func (d *Dev) Addr() uint16 { return d.addr }

// Init wakes the device, selects the ±250°/s and ±2g ranges and returns the
// WHO_AM_I byte. The wake write must come first: a sleeping device ignores
// writes to the configuration registers. The first transport error aborts the
// sequence and is returned wrapped, so errors.Is(err, i2cbus.ErrTimeout)
// still tells an absent device apart from a rejected transfer.
func (d *Dev) Init() (byte, error) {
	steps := []struct {
		name     string
		reg, val byte
	}{
		{"wake", RegPwrMgmt1, pwrWake},
		{"gyro range", RegGyroConfig, gyroFS250},
		{"accel range", RegAccelConfig, accelFS2G},
	}
	for _, s := range steps {
		if err := d.t.Write(d.addr, []byte{s.reg, s.val}); err != nil {
			return 0, fmt.Errorf("mpu6050 %s: %w", s.name, err)
		}
	}

	who, err := d.ReadRegister(RegWhoAmI)
	if err != nil {
		return 0, fmt.Errorf("mpu6050 who_am_i: %w", err)
	}
	return who, nil
}

// IdentityOK reports whether id is the MPU-6050 identity byte. Clones often
// answer 0x70 or 0x72 and still work, so callers only log a mismatch.
func IdentityOK(id byte) bool {
	return id == WhoAmIValue
}

// ReadAccel reads the accelerometer block.
func (d *Dev) ReadAccel() (AccelReading, error) {
	raw, err := d.readBlock(RegAccelXOutH)
	if err != nil {
		return AccelReading{}, fmt.Errorf("mpu6050 accel: %w", err)
	}
	return raw.Accel(), nil
}

// ReadGyro reads the gyroscope block.
func (d *Dev) ReadGyro() (GyroReading, error) {
	raw, err := d.readBlock(RegGyroXOutH)
	if err != nil {
		return GyroReading{}, fmt.Errorf("mpu6050 gyro: %w", err)
	}
	return raw.Gyro(), nil
}

func (d *Dev) readBlock(reg byte) (RawAxisSample, error) {
	var buf [blockBytes]byte
	if err := d.t.WriteRead(d.addr, []byte{reg}, buf[:]); err != nil {
		return RawAxisSample{}, err
	}
	return DecodeAxes(buf[:]), nil
}

// ReadRegister reads a single register.
func (d *Dev) ReadRegister(reg byte) (byte, error) {
	var b [1]byte
	if err := d.t.WriteRead(d.addr, []byte{reg}, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// WriteRegister writes a single register. Registers that would change the
// range scale factors are refused.
func (d *Dev) WriteRegister(reg, val byte) error {
	if ScaleLocked(reg) {
		return fmt.Errorf("mpu6050: register 0x%02X is fixed after init", reg)
	}
	return d.t.Write(d.addr, []byte{reg, val})
}

// ReadRegisters reads every register in regs, stopping at the first error.
func (d *Dev) ReadRegisters(regs []byte) (map[byte]byte, error) {
	out := make(map[byte]byte, len(regs))
	for _, r := range regs {
		v, err := d.ReadRegister(r)
		if err != nil {
			return out, fmt.Errorf("register 0x%02X: %w", r, err)
		}
		out[r] = v
	}
	return out, nil
}

// ScaleLocked reports whether reg holds configuration the unit conversion
// depends on (range selection and power state).
func ScaleLocked(reg byte) bool {
	switch reg {
	case RegGyroConfig, RegAccelConfig, RegPwrMgmt1:
		return true
	}
	return false
}
