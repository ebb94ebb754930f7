// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"fmt"
	"time"

	"github.com/relabs-tech/tilt_computer/internal/mpu6050"
)

// Filter defaults: 500 ms ticks, gyro weighted at 98%.
const (
	DefaultAlpha = 0.98
	DefaultDT    = 0.5
)

// FilterConfig holds the complementary filter constants.
// DT must equal the real time between ticks or the gyro term is biased.
type FilterConfig struct {
	Alpha float64 // weight of the gyro-propagated estimate, 0 < Alpha < 1
	DT    float64 // seconds between gyro samples
}

// DefaultFilterConfig returns alpha 0.98, dt 0.5 s.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{Alpha: DefaultAlpha, DT: DefaultDT}
}

// FilterConfigFor ties DT to the sample loop period.
func FilterConfigFor(alpha float64, period time.Duration) FilterConfig {
	return FilterConfig{Alpha: alpha, DT: period.Seconds()}
}

func (c FilterConfig) Validate() error {
	if !(c.Alpha > 0 && c.Alpha < 1) {
		return fmt.Errorf("filter alpha must be in (0, 1), got %g", c.Alpha)
	}
	if !(c.DT > 0) {
		return fmt.Errorf("filter dt must be positive, got %g", c.DT)
	}
	return nil
}

// Estimator is a two-axis complementary filter.
//
// It starts uninitialized. The first accelerometer sample seeds roll/pitch
// directly; from then on each gyro sample propagates the estimate and pulls it
// toward the most recent accelerometer angles. A failed read is simply not
// fed in, so the estimate holds.
//
// Not safe for concurrent use; the sample loop owns it.
type Estimator struct {
	cfg      FilterConfig
	state    Pose
	acc      Pose // latest accelerometer-derived angles
	tracking bool
}

// NewEstimator returns an estimator at roll = pitch = 0, uninitialized.
func NewEstimator(cfg FilterConfig) (*Estimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Estimator{cfg: cfg}, nil
}

func (e *Estimator) Config() FilterConfig { return e.cfg }

// State returns the fused estimate.
func (e *Estimator) State() Pose { return e.state }

// AccelPose returns the last accelerometer-derived angles.
func (e *Estimator) AccelPose() Pose { return e.acc }

// Tracking reports whether the estimate has been seeded.
func (e *Estimator) Tracking() bool { return e.tracking }

// UpdateAccel stores the accelerometer angles for a successful read and, on
// the very first one, seeds the estimate with them unblended.
func (e *Estimator) UpdateAccel(a mpu6050.AccelReading) Pose {
	e.acc = AccelAngles(a)
	if !e.tracking {
		e.state = e.acc
		e.tracking = true
	}
	return e.acc
}

// UpdateGyro integrates a successful gyro read and blends with the stored
// accelerometer angles. Those angles are whatever the last successful
// accelerometer read produced, which may be an earlier tick when this
// tick's read failed. Before the first accelerometer sample there is
// nothing to propagate and the call is a no-op; it reports whether the
// estimate changed.
func (e *Estimator) UpdateGyro(g mpu6050.GyroReading) bool {
	if !e.tracking {
		return false
	}
	a := e.cfg.Alpha
	e.state.Roll = a*(e.state.Roll+g.X*e.cfg.DT) + (1-a)*e.acc.Roll
	e.state.Pitch = a*(e.state.Pitch+g.Y*e.cfg.DT) + (1-a)*e.acc.Pitch
	return true
}
