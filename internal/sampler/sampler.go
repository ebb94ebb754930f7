// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sampler runs the fixed-period read → fuse → report loop.
package sampler

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/tilt_computer/internal/i2cbus"
	"github.com/relabs-tech/tilt_computer/internal/mpu6050"
	"github.com/relabs-tech/tilt_computer/internal/orientation"
)

// DefaultPeriod is the tick period the filter dt is derived from.
const DefaultPeriod = 500 * time.Millisecond

// Sensor is the part of the IMU driver the loop needs.
type Sensor interface {
	ReadAccel() (mpu6050.AccelReading, error)
	ReadGyro() (mpu6050.GyroReading, error)
}

// ReadStatus tags the outcome of one read.
type ReadStatus string

const (
	StatusOK       ReadStatus = "ok"
	StatusTimeout  ReadStatus = "timeout"
	StatusNack     ReadStatus = "nack"
	StatusBusError ReadStatus = "bus_error"
	StatusOther    ReadStatus = "other"
)

// StatusOf maps a read error to its tag.
func StatusOf(err error) ReadStatus {
	if err == nil {
		return StatusOK
	}
	switch i2cbus.KindOf(err) {
	case i2cbus.Timeout:
		return StatusTimeout
	case i2cbus.Nack:
		return StatusNack
	case i2cbus.BusError:
		return StatusBusError
	}
	return StatusOther
}

// Report is what one tick produced. Accel and Gyro are nil when the
// corresponding read failed.
type Report struct {
	Seq         uint64                `json:"seq"`
	Time        time.Time             `json:"time"`
	Accel       *mpu6050.AccelReading `json:"accel,omitempty"`
	Gyro        *mpu6050.GyroReading  `json:"gyro,omitempty"`
	AccelStatus ReadStatus            `json:"accel_status"`
	GyroStatus  ReadStatus            `json:"gyro_status"`
	AccelPose   orientation.Pose      `json:"accel_pose"`
	Pose        orientation.Pose      `json:"pose"`
	Tracking    bool                  `json:"tracking"`
}

// Sink consumes reports. Sinks run on the loop goroutine, between ticks.
type Sink interface {
	Publish(Report) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Report) error

func (f SinkFunc) Publish(r Report) error { return f(r) }

type namedSink struct {
	name string
	sink Sink
}

// Sampler owns the estimator and drives it from the sensor.
type Sampler struct {
	sensor  Sensor
	est     *orientation.Estimator
	period  time.Duration
	sinks   []namedSink
	metrics *Metrics
	seq     uint64
	now     func() time.Time
	log     *log.Entry
}

// New builds a sampler ticking every period (DefaultPeriod when zero).
func New(sensor Sensor, est *orientation.Estimator, period time.Duration) *Sampler {
	if period <= 0 {
		period = DefaultPeriod
	}
	return &Sampler{
		sensor: sensor,
		est:    est,
		period: period,
		now:    time.Now,
		log:    log.WithField("component", "sampler"),
	}
}

// AddSink registers a report consumer. Not safe to call once Run started.
func (s *Sampler) AddSink(name string, sink Sink) {
	s.sinks = append(s.sinks, namedSink{name: name, sink: sink})
}

// SetMetrics enables Prometheus instrumentation.
func (s *Sampler) SetMetrics(m *Metrics) { s.metrics = m }

func (s *Sampler) Period() time.Duration { return s.period }

// Tick performs one accelerometer read and one gyro read, feeding each
// successful one into the estimator. A failed read leaves the estimate
// where it was and does not prevent the other read.
func (s *Sampler) Tick() Report {
	s.seq++
	r := Report{Seq: s.seq, Time: s.now()}

	a, err := s.sensor.ReadAccel()
	r.AccelStatus = StatusOf(err)
	if err != nil {
		s.log.WithField("kind", r.AccelStatus).Errorf("accelerometer read failed: %v", err)
	} else {
		r.Accel = &a
		acc := s.est.UpdateAccel(a)
		s.log.Debugf("accel: X=%.3fg Y=%.3fg Z=%.3fg (roll_acc=%.2f° pitch_acc=%.2f°)", a.X, a.Y, a.Z, acc.Roll, acc.Pitch)
	}

	g, err := s.sensor.ReadGyro()
	r.GyroStatus = StatusOf(err)
	if err != nil {
		s.log.WithField("kind", r.GyroStatus).Errorf("gyroscope read failed: %v", err)
	} else {
		r.Gyro = &g
		s.log.Debugf("gyro: X=%.2f°/s Y=%.2f°/s Z=%.2f°/s", g.X, g.Y, g.Z)
		if !s.est.UpdateGyro(g) {
			s.log.Debug("gyro sample skipped, waiting for first accelerometer sample")
		}
	}

	r.AccelPose = s.est.AccelPose()
	r.Pose = s.est.State()
	r.Tracking = s.est.Tracking()

	if s.metrics != nil {
		s.metrics.observe(r)
	}
	return r
}

func (s *Sampler) dispatch(r Report) {
	for _, ns := range s.sinks {
		if err := ns.sink.Publish(r); err != nil {
			s.log.WithField("sink", ns.name).Warnf("publish failed: %v", err)
		}
	}
}

// Run ticks until ctx is done. The first tick happens immediately. There is
// no retry: a failed read is reported and the next tick tries again.
func (s *Sampler) Run(ctx context.Context) error {
	s.log.Infof("sampling every %s (alpha=%.2f dt=%.3fs)", s.period, s.est.Config().Alpha, s.est.Config().DT)

	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		r := s.Tick()
		if r.Tracking {
			s.log.Infof("attitude: roll=%.2f° pitch=%.2f°", r.Pose.Roll, r.Pose.Pitch)
		}
		s.dispatch(r)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
