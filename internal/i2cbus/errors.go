// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package i2cbus

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
)

// Kind tags a transport failure.
type Kind int

const (
	Other Kind = iota
	Timeout
	Nack
	BusError
)

func (k Kind) String() string {
	switch k {
	case Timeout:
		return "timeout"
	case Nack:
		return "nack"
	case BusError:
		return "bus_error"
	default:
		return "other"
	}
}

// TransportError is returned by every Transport implementation in this package.
// Timeout means the device never answered (absent or hung); Nack means it is
// present but refused the transfer.
type TransportError struct {
	Kind Kind
	Op   string // "write" or "write_read"
	Addr uint16
	Err  error
}

// Sentinels for errors.Is. Only Kind is compared.
var (
	ErrTimeout  = &TransportError{Kind: Timeout}
	ErrNack     = &TransportError{Kind: Nack}
	ErrBusError = &TransportError{Kind: BusError}
	ErrOther    = &TransportError{Kind: Other}
)

func (e *TransportError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("i2c %s 0x%02X: %s", e.Op, e.Addr, e.Kind)
	}
	return fmt.Sprintf("i2c %s 0x%02X: %s: %v", e.Op, e.Addr, e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is matches any *TransportError of the same Kind, so wrapped driver errors
// can be compared against ErrTimeout and friends.
func (e *TransportError) Is(target error) bool {
	t, ok := target.(*TransportError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind carried by err, or Other when err is not a
// transport error.
func KindOf(err error) Kind {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Kind
	}
	return Other
}

// Classify wraps a raw bus driver error into a *TransportError.
// Errors that are already classified pass through untouched.
func Classify(op string, addr uint16, err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{Kind: kindFromDriver(err), Op: op, Addr: addr, Err: err}
}

func kindFromDriver(err error) Kind {
	switch {
	case errors.Is(err, os.ErrDeadlineExceeded),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, syscall.ETIMEDOUT):
		return Timeout
	case errors.Is(err, syscall.ENXIO):
		return Nack
	case errors.Is(err, syscall.EIO), errors.Is(err, syscall.EAGAIN):
		return BusError
	}

	// periph and most HAL drivers flatten errno into the message with %v.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timed out"), strings.Contains(msg, "timeout"):
		return Timeout
	case strings.Contains(msg, "remote i/o"),
		strings.Contains(msg, "no such device or address"),
		strings.Contains(msg, "nack"),
		strings.Contains(msg, "not acknowledged"):
		return Nack
	case strings.Contains(msg, "input/output error"),
		strings.Contains(msg, "arbitration"),
		strings.Contains(msg, "bus error"):
		return BusError
	}
	return Other
}
