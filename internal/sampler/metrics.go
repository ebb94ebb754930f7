package sampler

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics instruments the sample loop.
type Metrics struct {
	ticks        prometheus.Counter
	readFailures *prometheus.CounterVec
	roll         prometheus.Gauge
	pitch        prometheus.Gauge
	tracking     prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tilt_ticks_total",
			Help: "Sample loop ticks.",
		}),
		readFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tilt_read_failures_total",
			Help: "Failed sensor reads by sensor and transport error kind.",
		}, []string{"sensor", "kind"}),
		roll: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tilt_roll_degrees",
			Help: "Fused roll estimate.",
		}),
		pitch: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tilt_pitch_degrees",
			Help: "Fused pitch estimate.",
		}),
		tracking: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tilt_tracking",
			Help: "1 once the estimator has been seeded.",
		}),
	}
	reg.MustRegister(m.ticks, m.readFailures, m.roll, m.pitch, m.tracking)
	return m
}

func (m *Metrics) observe(r Report) {
	m.ticks.Inc()
	if r.AccelStatus != StatusOK {
		m.readFailures.WithLabelValues("accel", string(r.AccelStatus)).Inc()
	}
	if r.GyroStatus != StatusOK {
		m.readFailures.WithLabelValues("gyro", string(r.GyroStatus)).Inc()
	}
	m.roll.Set(r.Pose.Roll)
	m.pitch.Set(r.Pose.Pitch)
	if r.Tracking {
		m.tracking.Set(1)
	} else {
		m.tracking.Set(0)
	}
}
