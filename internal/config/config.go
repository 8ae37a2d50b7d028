// Package config resolves the bridge's parameter surface once at startup:
// a YAML file with flag-friendly defaults, covariance arrays included.
// Validation failures here are fatal by design; they happen before any
// device I/O is attempted.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/vectornav/internal/msg"
)

// Config is the resolved startup configuration.
type Config struct {
	FrameID       string `yaml:"frame_id"`
	TFNEDToENU    bool   `yaml:"tf_ned_to_enu"`
	FrameBasedENU bool   `yaml:"frame_based_enu"`

	SerialPort string `yaml:"serial_port"`
	SerialBaud int    `yaml:"serial_baud"`

	AsyncOutputRate int `yaml:"async_output_rate"`
	FixedIMURate    int `yaml:"fixed_imu_rate"`

	ResponseTimeoutMs int `yaml:"response_timeout_ms"`
	RetransmitDelayMs int `yaml:"retransmit_delay_ms"`

	LinearAccelCovariance []float64 `yaml:"linear_accel_covariance"`
	AngularVelCovariance  []float64 `yaml:"angular_vel_covariance"`
	OrientationCovariance []float64 `yaml:"orientation_covariance"`

	// Listen is the HTTP control/status address.
	Listen string `yaml:"listen"`

	// UDPDest, when set, mirrors every published batch to a UDP consumer.
	UDPDest string `yaml:"udp_dest"`

	// DatabasePath, when set, logs measurements to a sqlite file.
	DatabasePath string `yaml:"database_path"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		FrameID:           "vectornav",
		SerialPort:        "/dev/ttyUSB0",
		SerialBaud:        115200,
		AsyncOutputRate:   40,
		FixedIMURate:      800,
		ResponseTimeoutMs: 1000,
		RetransmitDelayMs: 50,
		Listen:            ":8080",
	}
}

// Load reads and validates a YAML config file, applying defaults for unset
// values.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the invariants that must hold before touching the device.
func (c Config) Validate() error {
	if c.SerialPort == "" {
		return fmt.Errorf("serial_port is required")
	}
	if c.SerialBaud <= 0 {
		return fmt.Errorf("serial_baud must be positive")
	}
	if c.AsyncOutputRate <= 0 || c.FixedIMURate <= 0 {
		return fmt.Errorf("async_output_rate and fixed_imu_rate must be positive")
	}
	if c.FixedIMURate%c.AsyncOutputRate != 0 {
		return fmt.Errorf("async_output_rate %d does not divide fixed_imu_rate %d",
			c.AsyncOutputRate, c.FixedIMURate)
	}
	if c.ResponseTimeoutMs <= 0 || c.RetransmitDelayMs <= 0 {
		return fmt.Errorf("response_timeout_ms and retransmit_delay_ms must be positive")
	}
	for name, raw := range map[string][]float64{
		"linear_accel_covariance": c.LinearAccelCovariance,
		"angular_vel_covariance":  c.AngularVelCovariance,
		"orientation_covariance":  c.OrientationCovariance,
	} {
		if raw == nil {
			continue
		}
		if _, err := msg.CovarianceFromSlice(raw); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// Covariance parses one configured covariance array. A nil slice (the
// parameter was never set) yields the zero matrix, meaning "unknown".
func Covariance(raw []float64) (msg.Covariance, error) {
	if raw == nil {
		return msg.Covariance{}, nil
	}
	return msg.CovarianceFromSlice(raw)
}

// ResponseTimeout returns the register response timeout as a duration.
func (c Config) ResponseTimeout() time.Duration {
	return time.Duration(c.ResponseTimeoutMs) * time.Millisecond
}

// RetransmitDelay returns the command retransmit interval as a duration.
func (c Config) RetransmitDelay() time.Duration {
	return time.Duration(c.RetransmitDelayMs) * time.Millisecond
}
