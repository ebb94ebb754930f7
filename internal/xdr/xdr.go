// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package xdr carries attitude as NMEA 0183 XDR transducer sentences, the
// form EFIS and chart-plotter software expect on a serial line:
//
//	$IIXDR,A,<pitch>,D,PITCH,A,<roll>,D,ROLL*hh
package xdr

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/tilt_computer/internal/orientation"
)

const talker = "II"

// ErrNoAttitude is returned for XDR sentences without PITCH or ROLL.
var ErrNoAttitude = errors.New("xdr: sentence has no pitch/roll measurement")

// Format renders p as an XDR sentence with checksum, without line ending.
func Format(p orientation.Pose) string {
	body := fmt.Sprintf("%sXDR,A,%.2f,D,PITCH,A,%.2f,D,ROLL", talker, p.Pitch, p.Roll)
	return "$" + body + "*" + nmea.Checksum(body)
}

// Parse extracts pitch and roll from an XDR sentence.
func Parse(line string) (orientation.Pose, error) {
	s, err := nmea.Parse(strings.TrimSpace(line))
	if err != nil {
		return orientation.Pose{}, err
	}
	x, ok := s.(nmea.XDR)
	if !ok {
		return orientation.Pose{}, fmt.Errorf("xdr: unexpected sentence type %s", s.DataType())
	}

	var p orientation.Pose
	var havePitch, haveRoll bool
	for _, m := range x.Measurements {
		switch strings.ToUpper(m.TransducerName) {
		case "PITCH":
			p.Pitch, havePitch = m.Value, true
		case "ROLL":
			p.Roll, haveRoll = m.Value, true
		}
	}
	if !havePitch || !haveRoll {
		return orientation.Pose{}, ErrNoAttitude
	}
	return p, nil
}

// Writer emits one sentence per pose.
type Writer struct {
	w io.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WritePose writes p followed by CRLF.
func (x *Writer) WritePose(p orientation.Pose) error {
	_, err := io.WriteString(x.w, Format(p)+"\r\n")
	return err
}

// OpenSerial opens an 8N1 serial port.
func OpenSerial(port string, baud int) (io.ReadWriteCloser, error) {
	opts := serial.OpenOptions{
		PortName:              port,
		BaudRate:              uint(baud),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	rwc, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", port, err)
	}
	return rwc, nil
}

// Monitor reads sentences from r and calls fn for every attitude it
// decodes. Non-XDR and corrupt lines are skipped. It returns when r does.
func Monitor(r io.Reader, fn func(orientation.Pose)) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "$") {
			continue
		}
		p, err := Parse(line)
		if err != nil {
			// noisy line or another talker's sentence
			log.WithField("component", "xdr").Debugf("skip %q: %v", line, err)
			continue
		}
		fn(p)
	}
	return sc.Err()
}
