// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"

	"github.com/relabs-tech/tilt_computer/internal/mpu6050"
)

// Pose is the canonical representation of orientation for the app.
// Yaw is not estimated.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
}

const radToDeg = 180.0 / math.Pi

// ComputePoseFromAccel computes roll and pitch from accelerometer data only,
// in degrees. Units of ax, ay, az do not matter, only their ratios.
//
// Uses simple tilt formulas:
//
//	roll  = atan2(ay, az)
//	pitch = atan2(-ax, sqrt(ay² + az²))
//
// Valid at rest; any linear acceleration biases the result.
func ComputePoseFromAccel(ax, ay, az float64) Pose {
	return Pose{
		Roll:  math.Atan2(ay, az) * radToDeg,
		Pitch: math.Atan2(-ax, math.Sqrt(ay*ay+az*az)) * radToDeg,
	}
}

// AccelAngles is ComputePoseFromAccel for a sensor reading.
func AccelAngles(a mpu6050.AccelReading) Pose {
	return ComputePoseFromAccel(a.X, a.Y, a.Z)
}
