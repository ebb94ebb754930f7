package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tilt.env")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.IMUI2CAddr != 0x68 || cfg.DisplayI2CAddr != 0x3C {
		t.Fatalf("addresses = 0x%02X/0x%02X", cfg.IMUI2CAddr, cfg.DisplayI2CAddr)
	}
	if cfg.Period() != 500*time.Millisecond || cfg.FilterAlpha != 0.98 {
		t.Fatalf("timing = %s alpha=%g", cfg.Period(), cfg.FilterAlpha)
	}
	if cfg.TopicPose != "tilt/pose" || cfg.MQTTBroker != "" {
		t.Fatalf("mqtt = %q %q", cfg.MQTTBroker, cfg.TopicPose)
	}
	if !cfg.Writable(0x1A) || cfg.Writable(0x1B) {
		t.Fatalf("writable = %v", cfg.RegisterDebugWritable)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, strings.Join([]string{
		"# bench rig",
		"I2C_BUS=/dev/i2c-1",
		"IMU_I2C_ADDR=0x69",
		"IMU_SAMPLE_INTERVAL=100",
		"FILTER_ALPHA=0.95",
		"MQTT_BROKER=tcp://localhost:1883",
		"DISPLAY_ENABLED=true",
		"REGISTER_DEBUG_WRITABLE=0x19,0x38",
		"",
	}, "\n"))

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.I2CBus != "/dev/i2c-1" || cfg.IMUI2CAddr != 0x69 {
		t.Fatalf("bus = %q addr=0x%02X", cfg.I2CBus, cfg.IMUI2CAddr)
	}
	if cfg.Period() != 100*time.Millisecond || cfg.FilterAlpha != 0.95 {
		t.Fatalf("timing = %s alpha=%g", cfg.Period(), cfg.FilterAlpha)
	}
	if !cfg.DisplayEnabled || cfg.MQTTBroker != "tcp://localhost:1883" {
		t.Fatalf("unexpected %+v", cfg)
	}
	if len(cfg.RegisterDebugWritable) != 2 || !cfg.Writable(0x38) || cfg.Writable(0x1A) {
		t.Fatalf("writable = %v", cfg.RegisterDebugWritable)
	}
}

func TestEnvOverride(t *testing.T) {
	path := writeConfig(t, "WEB_SERVER_PORT=9000\n")
	t.Setenv("TILT_WEB_SERVER_PORT", "9100")
	t.Setenv("TILT_TOPIC_POSE", "bench/pose")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WebServerPort != 9100 || cfg.TopicPose != "bench/pose" {
		t.Fatalf("env not applied: port=%d topic=%q", cfg.WebServerPort, cfg.TopicPose)
	}
}

func TestLoadRejects(t *testing.T) {
	cases := map[string]string{
		"unknown key":         "GPS_BAUD_RATE=9600\n",
		"alpha too high":      "FILTER_ALPHA=1\n",
		"zero interval":       "IMU_SAMPLE_INTERVAL=0\n",
		"bad address":         "IMU_I2C_ADDR=0x80\n",
		"garbled address":     "DISPLAY_I2C_ADDR=oled\n",
		"scale register":      "REGISTER_DEBUG_WRITABLE=0x19,0x1C\n",
		"power register":      "REGISTER_DEBUG_WRITABLE=0x6B\n",
		"serial without baud": "NMEA_SERIAL_PORT=/dev/ttyUSB0\nNMEA_BAUD_RATE=0\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.env")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestKeys(t *testing.T) {
	keys := Keys()
	if len(keys) != len(defaults) || keys[0] != "DISPLAY_ENABLED" {
		t.Fatalf("Keys = %v", keys)
	}
}
