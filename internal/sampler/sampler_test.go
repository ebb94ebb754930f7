package sampler

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/relabs-tech/tilt_computer/internal/i2cbus"
	"github.com/relabs-tech/tilt_computer/internal/mpu6050"
	"github.com/relabs-tech/tilt_computer/internal/orientation"
)

func newSampler(t *testing.T) (*Sampler, *mpu6050.Sim) {
	t.Helper()
	sim := mpu6050.NewSim()
	dev := mpu6050.New(sim, 0)
	if _, err := dev.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	est, err := orientation.NewEstimator(orientation.DefaultFilterConfig())
	if err != nil {
		t.Fatalf("NewEstimator: %v", err)
	}
	s := New(dev, est, 0)
	s.now = func() time.Time { return time.Unix(1700000000, 0) }
	return s, sim
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestTickTrajectory(t *testing.T) {
	s, sim := newSampler(t)
	sim.SetGyroRaw(1310, 0, 0) // 10 °/s about X, level accelerometer

	want := []float64{4.9, 9.702, 14.40796}
	for i, w := range want {
		r := s.Tick()
		if r.Seq != uint64(i+1) {
			t.Fatalf("seq = %d", r.Seq)
		}
		if !r.Tracking || r.AccelStatus != StatusOK || r.GyroStatus != StatusOK {
			t.Fatalf("tick %d: unexpected report %+v", i+1, r)
		}
		if !near(r.Pose.Roll, w) {
			t.Fatalf("tick %d: roll = %.10f, want %.10f", i+1, r.Pose.Roll, w)
		}
	}
}

func TestAccelFailureHoldsState(t *testing.T) {
	s, sim := newSampler(t)
	sim.SetAccel(0, 0.5, 0.5)
	first := s.Tick()

	sim.Fail(mpu6050.RegAccelXOutH, i2cbus.Timeout)
	sim.Fail(mpu6050.RegGyroXOutH, i2cbus.Nack)
	r := s.Tick()

	if r.Pose != first.Pose {
		t.Fatalf("pose moved on failed reads: %+v -> %+v", first.Pose, r.Pose)
	}
	if r.Accel != nil || r.Gyro != nil {
		t.Fatal("failed readings must be absent")
	}
	if r.AccelStatus != StatusTimeout || r.GyroStatus != StatusNack {
		t.Fatalf("statuses = %s/%s", r.AccelStatus, r.GyroStatus)
	}
}

func TestTickLogsEachFailedRead(t *testing.T) {
	s, sim := newSampler(t)
	logger, hook := logtest.NewNullLogger()
	s.log = logger.WithField("component", "sampler")

	sim.Fail(mpu6050.RegAccelXOutH, i2cbus.Timeout)
	sim.Fail(mpu6050.RegGyroXOutH, i2cbus.BusError)
	s.Tick()

	var failures []*log.Entry
	for _, e := range hook.AllEntries() {
		if e.Level == log.ErrorLevel {
			failures = append(failures, e)
		}
	}
	if len(failures) != 2 {
		t.Fatalf("logged %d errors, want one per read", len(failures))
	}
	want := []struct {
		prefix string
		kind   ReadStatus
	}{
		{"accelerometer read failed", StatusTimeout},
		{"gyroscope read failed", StatusBusError},
	}
	for i, w := range want {
		e := failures[i]
		if !strings.HasPrefix(e.Message, w.prefix) || e.Data["kind"] != w.kind {
			t.Errorf("entry %d = %q kind=%v, want %q kind=%v", i, e.Message, e.Data["kind"], w.prefix, w.kind)
		}
	}

	hook.Reset()
	sim.Heal(mpu6050.RegAccelXOutH)
	sim.Heal(mpu6050.RegGyroXOutH)
	s.Tick()
	for _, e := range hook.AllEntries() {
		if e.Level <= log.WarnLevel {
			t.Errorf("healthy tick logged %s %q", e.Level, e.Message)
		}
	}
}

func TestAccelFailureStillRunsGyro(t *testing.T) {
	s, sim := newSampler(t)
	sim.SetAccel(0, 1, 0) // roll_acc = 90
	seeded := s.Tick()
	if !near(seeded.Pose.Roll, 90) {
		t.Fatalf("seed roll = %f", seeded.Pose.Roll)
	}

	sim.SetAccel(0, 0, 1) // would give roll_acc = 0 if it were read
	sim.Fail(mpu6050.RegAccelXOutH, i2cbus.BusError)
	sim.SetGyroRaw(-1310, 0, 0)
	r := s.Tick()

	if r.AccelStatus != StatusBusError || r.GyroStatus != StatusOK || r.Gyro == nil {
		t.Fatalf("unexpected report %+v", r)
	}
	want := 0.98*(90-5) + 0.02*90 // stale roll_acc
	if !near(r.Pose.Roll, want) {
		t.Fatalf("roll = %f, want %f", r.Pose.Roll, want)
	}
	if !near(r.AccelPose.Roll, 90) {
		t.Fatalf("accel pose = %+v, want the stale angles", r.AccelPose)
	}
}

func TestNoTrackingUntilAccel(t *testing.T) {
	s, sim := newSampler(t)
	sim.Fail(mpu6050.RegAccelXOutH, i2cbus.Timeout)
	sim.SetGyroRaw(1310, 1310, 0)

	r := s.Tick()
	if r.Tracking || r.Pose != (orientation.Pose{}) {
		t.Fatalf("gyro moved an unseeded estimate: %+v", r)
	}

	sim.Heal(mpu6050.RegAccelXOutH)
	r = s.Tick()
	if !r.Tracking {
		t.Fatal("expected tracking after first good accel read")
	}
}

func TestStatusOf(t *testing.T) {
	cases := map[ReadStatus]error{
		StatusOK:       nil,
		StatusTimeout:  i2cbus.ErrTimeout,
		StatusNack:     &i2cbus.TransportError{Kind: i2cbus.Nack},
		StatusBusError: &i2cbus.TransportError{Kind: i2cbus.BusError},
		StatusOther:    errors.New("decode"),
	}
	for want, err := range cases {
		if got := StatusOf(err); got != want {
			t.Errorf("StatusOf(%v) = %s, want %s", err, got, want)
		}
	}
}

func TestReportJSONOmitsFailedReadings(t *testing.T) {
	s, sim := newSampler(t)
	sim.Fail(mpu6050.RegGyroXOutH, i2cbus.Timeout)

	b, err := json.Marshal(s.Tick())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	js := string(b)
	if strings.Contains(js, `"gyro":`) || !strings.Contains(js, `"accel":`) {
		t.Fatalf("unexpected payload %s", js)
	}
	if !strings.Contains(js, `"gyro_status":"timeout"`) {
		t.Fatalf("missing status tag in %s", js)
	}
}

func TestRunDispatchesToSinks(t *testing.T) {
	s, _ := newSampler(t)
	s.period = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got []uint64
	s.AddSink("failing", SinkFunc(func(Report) error { return errors.New("broker down") }))
	s.AddSink("recorder", SinkFunc(func(r Report) error {
		got = append(got, r.Seq)
		if len(got) == 3 {
			cancel()
		}
		return nil
	}))

	err := s.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v", err)
	}
	if len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Fatalf("sink saw %v", got)
	}
}

func TestMetrics(t *testing.T) {
	s, sim := newSampler(t)
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	s.SetMetrics(m)

	sim.SetAccel(0, 1, 0)
	s.Tick()
	sim.Fail(mpu6050.RegAccelXOutH, i2cbus.Timeout)
	s.Tick()
	s.Tick()

	if v := testutil.ToFloat64(m.ticks); v != 3 {
		t.Fatalf("ticks = %f", v)
	}
	if v := testutil.ToFloat64(m.readFailures.WithLabelValues("accel", "timeout")); v != 2 {
		t.Fatalf("accel timeouts = %f", v)
	}
	if v := testutil.ToFloat64(m.tracking); v != 1 {
		t.Fatalf("tracking = %f", v)
	}
	if v := testutil.ToFloat64(m.roll); !near(v, s.est.State().Roll) {
		t.Fatalf("roll gauge = %f", v)
	}
}
