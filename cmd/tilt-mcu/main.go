//go:build tinygo

// Command tilt-mcu runs the tilt estimator on a microcontroller with the
// MPU-6050 on I2C0 and prints the attitude on the serial console.
package main

import (
	"errors"
	"machine"
	"strconv"
	"time"

	"github.com/relabs-tech/tilt_computer/internal/i2cbus"
	"github.com/relabs-tech/tilt_computer/internal/mpu6050"
	"github.com/relabs-tech/tilt_computer/internal/orientation"
	"github.com/relabs-tech/tilt_computer/internal/sampler"
)

const period = 500 * time.Millisecond

func deg(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

func main() {
	time.Sleep(2 * time.Second)
	println("tilt-mcu: MPU-6050 roll/pitch estimator")

	i2c := machine.I2C0
	i2c.Configure(machine.I2CConfig{
		Frequency: 400 * machine.KHz,
	})

	dev := mpu6050.New(i2cbus.NewTinyGo(i2c), mpu6050.DefaultAddr)
	who, err := dev.Init()
	switch {
	case errors.Is(err, i2cbus.ErrTimeout):
		println("device not present (timeout):", err.Error())
	case err != nil:
		println("init failed:", i2cbus.KindOf(err).String(), err.Error())
	case !mpu6050.IdentityOK(who):
		println("unexpected WHO_AM_I, continuing:", who)
	default:
		println("MPU-6050 initialized.")
	}

	est, err := orientation.NewEstimator(orientation.FilterConfigFor(orientation.DefaultFilterConfig().Alpha, period))
	if err != nil {
		for {
			println("bad filter config:", err.Error())
			time.Sleep(time.Second)
		}
	}
	s := sampler.New(dev, est, period)

	for {
		r := s.Tick()
		if r.Tracking {
			println("roll=" + deg(r.Pose.Roll) + " pitch=" + deg(r.Pose.Pitch))
		}
		time.Sleep(period)
	}
}
