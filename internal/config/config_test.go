package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()
	assert.Equal(t, "vectornav", cfg.FrameID)
	assert.Equal(t, "/dev/ttyUSB0", cfg.SerialPort)
	assert.Equal(t, 115200, cfg.SerialBaud)
	assert.Equal(t, 40, cfg.AsyncOutputRate)
	assert.Equal(t, 800, cfg.FixedIMURate)
	assert.False(t, cfg.TFNEDToENU)
	assert.False(t, cfg.FrameBasedENU)
	require.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
frame_id: imu_link
tf_ned_to_enu: true
serial_port: /dev/ttyS3
serial_baud: 921600
async_output_rate: 100
response_timeout_ms: 2000
orientation_covariance: [0.01, 0, 0, 0, 0.01, 0, 0, 0, 0.01]
udp_dest: 127.0.0.1:4000
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "imu_link", cfg.FrameID)
	assert.True(t, cfg.TFNEDToENU)
	assert.Equal(t, "/dev/ttyS3", cfg.SerialPort)
	assert.Equal(t, 921600, cfg.SerialBaud)
	assert.Equal(t, 100, cfg.AsyncOutputRate)
	assert.Equal(t, 2*time.Second, cfg.ResponseTimeout())
	assert.Equal(t, "127.0.0.1:4000", cfg.UDPDest)

	// Unset values keep their defaults.
	assert.Equal(t, 800, cfg.FixedIMURate)
	assert.Equal(t, 50*time.Millisecond, cfg.RetransmitDelay())
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	t.Parallel()

	_, err := Load(writeConfig(t, "frame_id: [unterminated"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	t.Run("rejects non-divisible output rate", func(t *testing.T) {
		t.Parallel()
		cfg := Default()
		cfg.AsyncOutputRate = 33
		err := cfg.Validate()
		assert.ErrorContains(t, err, "does not divide")
	})

	t.Run("rejects empty serial port", func(t *testing.T) {
		t.Parallel()
		cfg := Default()
		cfg.SerialPort = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects non-positive baud", func(t *testing.T) {
		t.Parallel()
		cfg := Default()
		cfg.SerialBaud = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects short covariance", func(t *testing.T) {
		t.Parallel()
		cfg := Default()
		cfg.OrientationCovariance = []float64{1, 2, 3}
		err := cfg.Validate()
		assert.ErrorContains(t, err, "orientation_covariance")
	})

	t.Run("rejects non-positive timeouts", func(t *testing.T) {
		t.Parallel()
		cfg := Default()
		cfg.ResponseTimeoutMs = 0
		assert.Error(t, cfg.Validate())
	})
}

func TestCovariance(t *testing.T) {
	t.Parallel()

	t.Run("nil slice means unknown", func(t *testing.T) {
		t.Parallel()
		cov, err := Covariance(nil)
		require.NoError(t, err)
		assert.True(t, cov.IsZero())
	})

	t.Run("nine values parse", func(t *testing.T) {
		t.Parallel()
		raw := []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}
		cov, err := Covariance(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, cov.Slice())
	})

	t.Run("wrong length fails", func(t *testing.T) {
		t.Parallel()
		_, err := Covariance([]float64{1, 2})
		assert.Error(t, err)
	})
}
