package xdr

import (
	"bytes"
	"strings"
	"testing"

	nmea "github.com/adrianmo/go-nmea"

	"github.com/relabs-tech/tilt_computer/internal/orientation"
)

func TestFormatChecksum(t *testing.T) {
	s := Format(orientation.Pose{Roll: 4.9, Pitch: -1.25})

	if !strings.HasPrefix(s, "$IIXDR,A,-1.25,D,PITCH,A,4.90,D,ROLL*") {
		t.Fatalf("Format = %q", s)
	}
	body := s[1:strings.Index(s, "*")]
	if cs := s[len(s)-2:]; cs != nmea.Checksum(body) {
		t.Fatalf("checksum %s, want %s", cs, nmea.Checksum(body))
	}
}

func TestRoundTrip(t *testing.T) {
	in := orientation.Pose{Roll: -12.34, Pitch: 56.78}
	out, err := Parse(Format(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if out != in {
		t.Fatalf("round trip %+v -> %+v", in, out)
	}
}

func TestParseRejects(t *testing.T) {
	bad := []string{
		// wrong checksum
		"$IIXDR,A,1.00,D,PITCH,A,2.00,D,ROLL*00",
		// valid, but not XDR
		"$GPRMC,220516,A,5133.82,N,00042.24,W,173.8,231.8,130694,004.2,W*70",
	}
	for _, line := range bad {
		if _, err := Parse(line); err == nil {
			t.Errorf("Parse(%q) accepted", line)
		}
	}

	body := "IIXDR,C,21.5,C,AIRTEMP"
	if _, err := Parse("$" + body + "*" + nmea.Checksum(body)); err != ErrNoAttitude {
		t.Fatalf("expected ErrNoAttitude, got %v", err)
	}
}

func TestWriterAndMonitor(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	poses := []orientation.Pose{{Roll: 1, Pitch: 2}, {Roll: -3.5, Pitch: 0.25}}
	for _, p := range poses {
		if err := w.WritePose(p); err != nil {
			t.Fatalf("WritePose: %v", err)
		}
	}
	if !strings.HasSuffix(buf.String(), "\r\n") {
		t.Fatal("sentences must end with CRLF")
	}

	stream := "garbage\r\n" + buf.String() + "$IIXDR,broken*11\r\n"
	var got []orientation.Pose
	if err := Monitor(strings.NewReader(stream), func(p orientation.Pose) { got = append(got, p) }); err != nil {
		t.Fatalf("Monitor: %v", err)
	}
	if len(got) != 2 || got[0] != poses[0] || got[1] != poses[1] {
		t.Fatalf("Monitor decoded %+v", got)
	}
}
