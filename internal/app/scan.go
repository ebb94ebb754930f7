package app

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize/english"
	"periph.io/x/conn/v3/physic"

	"github.com/relabs-tech/tilt_computer/internal/config"
	"github.com/relabs-tech/tilt_computer/internal/i2cbus"
	"github.com/relabs-tech/tilt_computer/internal/mpu6050"
)

// ScanReport probes every 7-bit address on t and writes one line per
// responding device with its WHO_AM_I register in hex and binary. Devices at
// the MPU-6050 addresses are labelled. It returns the responding addresses.
func ScanReport(t i2cbus.Transport, out io.Writer) []uint16 {
	found := i2cbus.Scan(t, i2cbus.ScanFirst, i2cbus.ScanLast)
	for _, addr := range found {
		line := fmt.Sprintf("0x%02X", addr)
		who, err := mpu6050.New(t, addr).ReadRegister(mpu6050.RegWhoAmI)
		if err != nil {
			fmt.Fprintf(out, "%s  WHO_AM_I read failed: %v\n", line, err)
			continue
		}
		line += fmt.Sprintf("  WHO_AM_I=0x%02X (%08b)", who, who)
		if addr == mpu6050.DefaultAddr || addr == mpu6050.AlternateAddr {
			if mpu6050.IdentityOK(who) {
				line += "  MPU-6050"
			} else {
				line += "  MPU-6050 compatible?"
			}
		}
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "%s found\n", english.Plural(len(found), "device", "devices"))
	return found
}

// RunScan opens the configured bus and scans it.
func RunScan(out io.Writer) error {
	cfg := config.Get()
	bus, err := i2cbus.Open(cfg.I2CBus, physic.Frequency(cfg.I2CSpeedHz)*physic.Hertz)
	if err != nil {
		return err
	}
	defer bus.Close()

	fmt.Fprintf(out, "scanning %s\n", bus)
	ScanReport(bus, out)
	return nil
}
