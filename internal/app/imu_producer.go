// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/physic"

	"github.com/relabs-tech/tilt_computer/internal/config"
	"github.com/relabs-tech/tilt_computer/internal/i2cbus"
	"github.com/relabs-tech/tilt_computer/internal/mpu6050"
	"github.com/relabs-tech/tilt_computer/internal/orientation"
	"github.com/relabs-tech/tilt_computer/internal/sampler"
	"github.com/relabs-tech/tilt_computer/internal/xdr"
)

const simStep = 50 * time.Millisecond

// ProducerOptions select how the producer gets its data.
type ProducerOptions struct {
	// Simulate replaces the I2C bus with an animated in-memory device.
	Simulate bool
}

// InitSensor runs the device init sequence and logs the outcome. A failed
// init is logged, not returned: the sample loop keeps polling and each read
// reports its own failure.
func InitSensor(dev *mpu6050.Dev) bool {
	l := log.WithField("component", "imu").WithField("addr", fmt.Sprintf("0x%02X", dev.Addr()))

	who, err := dev.Init()
	switch {
	case errors.Is(err, i2cbus.ErrTimeout):
		l.Errorf("device not present (timeout): %v", err)
		return false
	case err != nil:
		l.WithField("kind", i2cbus.KindOf(err)).Errorf("init failed: %v", err)
		return false
	}

	if mpu6050.IdentityOK(who) {
		l.Infof("WHO_AM_I = 0x%02X", who)
	} else {
		l.Warnf("WHO_AM_I = 0x%02X, expected 0x%02X; continuing", who, mpu6050.WhoAmIValue)
	}
	return true
}

// animate moves the simulated device until ctx is done.
func animate(ctx context.Context, sim *mpu6050.Sim) {
	start := time.Now()
	ticker := time.NewTicker(simStep)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			sim.Animate(t.Sub(start))
		}
	}
}

// RunTiltProducer brings up the sensor, the estimator and every configured
// output, then samples until ctx is done.
func RunTiltProducer(ctx context.Context, opts ProducerOptions) error {
	log.Info("starting tilt-computer producer")
	cfg := config.Get()

	var (
		transport i2cbus.Transport
		periphBus *i2cbus.Periph
	)
	if opts.Simulate {
		sim := mpu6050.NewSim()
		sim.SetAddr(cfg.IMUI2CAddr)
		go animate(ctx, sim)
		transport = sim
		log.Info("using simulated MPU-6050")
	} else {
		bus, err := i2cbus.Open(cfg.I2CBus, physic.Frequency(cfg.I2CSpeedHz)*physic.Hertz)
		if err != nil {
			return err
		}
		defer bus.Close()
		periphBus = bus
		transport = bus
	}

	// The register debugger shares the bus with the sample loop.
	shared := i2cbus.NewSerialized(transport)
	dev := mpu6050.New(shared, cfg.IMUI2CAddr)
	InitSensor(dev)

	est, err := orientation.NewEstimator(orientation.FilterConfigFor(cfg.FilterAlpha, cfg.Period()))
	if err != nil {
		return err
	}
	s := sampler.New(dev, est, cfg.Period())

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	s.SetMetrics(sampler.NewMetrics(reg))

	if cfg.MQTTBroker != "" {
		client, err := ConnectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDProducer)
		if err != nil {
			return err
		}
		defer client.Disconnect(mqttDisconnectMS)
		s.AddSink("mqtt", NewMQTTSink(client, cfg.TopicPose, cfg.TopicIMU, PublishWait(cfg.Period())))
	}

	if cfg.NMEASerialPort != "" {
		port, err := xdr.OpenSerial(cfg.NMEASerialPort, cfg.NMEABaudRate)
		if err != nil {
			return err
		}
		defer port.Close()
		s.AddSink("nmea", XDRSink(xdr.NewWriter(port)))
		log.Infof("writing XDR attitude to %s at %d baud", cfg.NMEASerialPort, cfg.NMEABaudRate)
	}

	if cfg.DisplayEnabled {
		if periphBus == nil {
			log.Warn("display: no I2C bus in simulation mode, display disabled")
		} else if oled, err := OpenDisplay(periphBus.Bus(), cfg.DisplayI2CAddr); err != nil {
			log.Errorf("display: %v", err)
		} else {
			ds := NewDisplaySink(oled)
			if err := ds.Splash(); err != nil {
				log.Warnf("display: splash: %v", err)
			}
			s.AddSink("display", ds)
		}
	}

	if cfg.WebServerPort > 0 {
		hub := NewHub(reg, NewRegisterDebugger(dev, cfg.Writable))
		s.AddSink("web", hub)
		go func() {
			if err := hub.Serve(ctx, fmt.Sprintf(":%d", cfg.WebServerPort)); err != nil {
				log.WithField("component", "web").Errorf("server stopped: %v", err)
			}
		}()
	}

	return s.Run(ctx)
}

// XDRSink writes the pose as an NMEA XDR sentence once the estimator is
// tracking.
func XDRSink(w *xdr.Writer) sampler.Sink {
	return sampler.SinkFunc(func(r sampler.Report) error {
		if !r.Tracking {
			return nil
		}
		return w.WritePose(r.Pose)
	})
}
