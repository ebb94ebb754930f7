package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/relabs-tech/tilt_computer/internal/mpu6050"
)

// EnvPrefix is prepended to every key when looking up environment
// overrides, e.g. TILT_MQTT_BROKER.
const EnvPrefix = "TILT"

// Config holds all application configuration values.
type Config struct {
	// I2C
	I2CBus     string `yaml:"i2c_bus"`      // periph bus name, "" = first available
	I2CSpeedHz int64  `yaml:"i2c_speed_hz"` // 0 leaves the bus speed alone
	IMUI2CAddr uint16 `yaml:"imu_i2c_addr"`

	// Timing
	IMUSampleInterval int     `yaml:"imu_sample_interval"` // milliseconds, also the filter dt
	FilterAlpha       float64 `yaml:"filter_alpha"`

	// MQTT (empty broker disables publishing)
	MQTTBroker           string `yaml:"mqtt_broker"`
	MQTTClientIDProducer string `yaml:"mqtt_client_id_producer"`
	MQTTClientIDConsole  string `yaml:"mqtt_client_id_console"`

	// Topics
	TopicPose string `yaml:"topic_pose"`
	TopicIMU  string `yaml:"topic_imu"`

	// Web Server (0 disables)
	WebServerPort int `yaml:"web_server_port"`

	// Display
	DisplayEnabled bool   `yaml:"display_enabled"`
	DisplayI2CAddr uint16 `yaml:"display_i2c_addr"`

	// NMEA attitude output (empty port disables)
	NMEASerialPort string `yaml:"nmea_serial_port"`
	NMEABaudRate   int    `yaml:"nmea_baud_rate"`

	// Registers the web register debugger may write.
	RegisterDebugWritable []int `yaml:"register_debug_writable,flow"`
}

var defaults = map[string]any{
	"i2c_bus":                 "",
	"i2c_speed_hz":            400000,
	"imu_i2c_addr":            "0x68",
	"imu_sample_interval":     500,
	"filter_alpha":            0.98,
	"mqtt_broker":             "",
	"mqtt_client_id_producer": "tilt-producer",
	"mqtt_client_id_console":  "tilt-console",
	"topic_pose":              "tilt/pose",
	"topic_imu":               "tilt/imu",
	"web_server_port":         8080,
	"display_enabled":         false,
	"display_i2c_addr":        "0x3C",
	"nmea_serial_port":        "",
	"nmea_baud_rate":          4800,
	"register_debug_writable": "0x19,0x1A,0x37,0x38",
}

// Keys returns every recognised configuration key, upper case, sorted.
func Keys() []string {
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, strings.ToUpper(k))
	}
	sort.Strings(keys)
	return keys
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads a KEY=VALUE configuration file, applies TILT_* environment
// overrides and defaults, and validates the result. An empty path loads
// defaults and environment only.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Only file keys are known at this point.
		for _, k := range v.AllKeys() {
			if _, ok := defaults[k]; !ok {
				return nil, fmt.Errorf("unknown config key: %q (known: %s)", strings.ToUpper(k), strings.Join(Keys(), ", "))
			}
		}
		log.Debugf("using config file %s", v.ConfigFileUsed())
	}

	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		I2CBus:               v.GetString("i2c_bus"),
		I2CSpeedHz:           v.GetInt64("i2c_speed_hz"),
		IMUSampleInterval:    v.GetInt("imu_sample_interval"),
		FilterAlpha:          v.GetFloat64("filter_alpha"),
		MQTTBroker:           v.GetString("mqtt_broker"),
		MQTTClientIDProducer: v.GetString("mqtt_client_id_producer"),
		MQTTClientIDConsole:  v.GetString("mqtt_client_id_console"),
		TopicPose:            v.GetString("topic_pose"),
		TopicIMU:             v.GetString("topic_imu"),
		WebServerPort:        v.GetInt("web_server_port"),
		DisplayEnabled:       v.GetBool("display_enabled"),
		NMEASerialPort:       v.GetString("nmea_serial_port"),
		NMEABaudRate:         v.GetInt("nmea_baud_rate"),
	}

	var err error
	if cfg.IMUI2CAddr, err = parseAddr("IMU_I2C_ADDR", v.GetString("imu_i2c_addr")); err != nil {
		return nil, err
	}
	if cfg.DisplayI2CAddr, err = parseAddr("DISPLAY_I2C_ADDR", v.GetString("display_i2c_addr")); err != nil {
		return nil, err
	}
	if cfg.RegisterDebugWritable, err = parseRegList(v.GetString("register_debug_writable")); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseAddr(key, value string) (uint16, error) {
	addr, err := strconv.ParseUint(strings.TrimSpace(value), 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if addr < 0x03 || addr > 0x77 {
		return 0, fmt.Errorf("%s must be a 7-bit address 0x03-0x77, got 0x%02X", key, addr)
	}
	return uint16(addr), nil
}

func parseRegList(value string) ([]int, error) {
	var regs []int
	for _, f := range strings.Split(value, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		r, err := strconv.ParseUint(f, 0, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid REGISTER_DEBUG_WRITABLE entry %q: %w", f, err)
		}
		regs = append(regs, int(r))
	}
	return regs, nil
}

// validate checks ranges and cross-field constraints.
func (c *Config) validate() error {
	if c.IMUSampleInterval <= 0 {
		return fmt.Errorf("IMU_SAMPLE_INTERVAL must be > 0 ms, got %d", c.IMUSampleInterval)
	}
	if c.FilterAlpha <= 0 || c.FilterAlpha >= 1 {
		return fmt.Errorf("FILTER_ALPHA must be in (0, 1), got %g", c.FilterAlpha)
	}
	if c.I2CSpeedHz < 0 {
		return fmt.Errorf("I2C_SPEED_HZ must be >= 0, got %d", c.I2CSpeedHz)
	}
	if c.WebServerPort < 0 || c.WebServerPort > 65535 {
		return fmt.Errorf("WEB_SERVER_PORT must be 0-65535, got %d", c.WebServerPort)
	}
	if c.NMEASerialPort != "" && c.NMEABaudRate <= 0 {
		return fmt.Errorf("NMEA_BAUD_RATE is required when NMEA_SERIAL_PORT is set")
	}
	if c.MQTTBroker != "" && (c.TopicPose == "" || c.TopicIMU == "") {
		return fmt.Errorf("TOPIC_POSE and TOPIC_IMU are required when MQTT_BROKER is set")
	}
	for _, r := range c.RegisterDebugWritable {
		if mpu6050.ScaleLocked(byte(r)) {
			return fmt.Errorf("REGISTER_DEBUG_WRITABLE may not include 0x%02X: the unit conversion depends on it", r)
		}
	}
	return nil
}

// Period is the sample loop period.
func (c *Config) Period() time.Duration {
	return time.Duration(c.IMUSampleInterval) * time.Millisecond
}

// Writable reports whether the register debugger may write reg.
func (c *Config) Writable(reg byte) bool {
	for _, r := range c.RegisterDebugWritable {
		if byte(r) == reg {
			return true
		}
	}
	return false
}

// InitGlobal initializes the global configuration from file.
// Only the first call has any effect.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
