package app

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/relabs-tech/tilt_computer/internal/mpu6050"
	"github.com/relabs-tech/tilt_computer/internal/orientation"
	"github.com/relabs-tech/tilt_computer/internal/sampler"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func trackingReport(seq uint64, roll, pitch float64) sampler.Report {
	return sampler.Report{
		Seq:         seq,
		Time:        epoch,
		AccelStatus: sampler.StatusOK,
		GyroStatus:  sampler.StatusOK,
		Pose:        orientation.Pose{Roll: roll, Pitch: pitch},
		Tracking:    true,
	}
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(b)
}

func TestOrientationEndpoint(t *testing.T) {
	hub := NewHub(nil, nil)
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	if code, _ := get(t, srv.URL+"/api/orientation"); code != http.StatusServiceUnavailable {
		t.Fatalf("before data: status %d", code)
	}

	// a report from an unseeded estimator is still "no data"
	hub.Publish(sampler.Report{Seq: 1, AccelStatus: sampler.StatusTimeout})
	if code, _ := get(t, srv.URL+"/api/orientation"); code != http.StatusServiceUnavailable {
		t.Fatalf("untracked: status %d", code)
	}

	hub.Publish(trackingReport(2, 12.5, -3.25))
	code, body := get(t, srv.URL+"/api/orientation")
	if code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	var p orientation.Pose
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		t.Fatalf("decode %q: %v", body, err)
	}
	if p.Roll != 12.5 || p.Pitch != -3.25 {
		t.Fatalf("pose = %+v", p)
	}
}

func TestReportEndpoint(t *testing.T) {
	hub := NewHub(nil, nil)
	hub.now = func() time.Time { return epoch.Add(3 * time.Second) }
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	hub.Publish(trackingReport(7, 1, 2))
	code, body := get(t, srv.URL+"/api/report")
	if code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if !strings.Contains(body, `"seq":7`) || !strings.Contains(body, `"age":"3 seconds ago"`) {
		t.Fatalf("unexpected body %s", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	sampler.NewMetrics(reg)
	hub := NewHub(reg, nil)
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	code, body := get(t, srv.URL+"/metrics")
	if code != http.StatusOK || !strings.Contains(body, "tilt_ticks_total") {
		t.Fatalf("status %d body %s", code, body)
	}
	if code, _ := get(t, srv.URL+"/ws/registers"); code != http.StatusNotFound {
		t.Fatalf("register debugger should be off without a device, got %d", code)
	}
}

func dialWS(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func TestStream(t *testing.T) {
	hub := NewHub(nil, nil)
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	hub.Publish(trackingReport(1, 1, 1))
	conn := dialWS(t, srv, "/ws")
	defer conn.Close()

	var r sampler.Report
	if err := conn.ReadJSON(&r); err != nil {
		t.Fatalf("read latest: %v", err)
	}
	if r.Seq != 1 {
		t.Fatalf("first message seq = %d, want the latest report", r.Seq)
	}

	hub.Publish(trackingReport(2, 5, 6))
	for r.Seq < 2 {
		if err := conn.ReadJSON(&r); err != nil {
			t.Fatalf("read: %v", err)
		}
	}
	if r.Pose.Roll != 5 || r.Pose.Pitch != 6 {
		t.Fatalf("streamed %+v", r)
	}
}

func TestRegisterDebuggerSession(t *testing.T) {
	sim := mpu6050.NewSim()
	hub := NewHub(nil, NewRegisterDebugger(mpu6050.New(sim, 0), nil))
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	conn := dialWS(t, srv, "/ws/registers")
	defer conn.Close()

	var resp RegisterResponse
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read map: %v", err)
	}
	if resp.Type != "register_map" || len(resp.RegisterMap) == 0 {
		t.Fatalf("first message = %+v", resp)
	}

	if err := conn.WriteJSON(RegisterCmd{Action: "read", Address: "0x75"}); err != nil {
		t.Fatal(err)
	}
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if resp.Type != "register_data" || resp.Value != "0x68" {
		t.Fatalf("WHO_AM_I reply = %+v", resp)
	}
}
