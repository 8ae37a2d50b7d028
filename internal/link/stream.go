package link

import (
	"fmt"

	"github.com/banshee-data/vectornav/internal/sensor"
	"github.com/banshee-data/vectornav/internal/vnproto"
)

// StreamSpec describes the telemetry the device is armed to produce.
type StreamSpec struct {
	// AsyncRateHz is the output rate of the binary stream.
	AsyncRateHz int

	// IMURateHz is the device's fixed internal sampling rate; the binary
	// output register takes the ratio of the two as its rate divisor.
	IMURateHz int

	CommonFields   uint16
	AttitudeFields uint16
	INSFields      uint16
}

// DefaultStreamSpec selects the measurement groups the bridge turns into
// records: attitude quaternion, angular rate, position, acceleration and
// mag/temp/pressure from the common group, attitude uncertainty, and the INS
// solution for fused odometry.
func DefaultStreamSpec(asyncRateHz, imuRateHz int) StreamSpec {
	return StreamSpec{
		AsyncRateHz: asyncRateHz,
		IMURateHz:   imuRateHz,
		CommonFields: vnproto.CommonQuaternion |
			vnproto.CommonAngularRate |
			vnproto.CommonPosition |
			vnproto.CommonAccel |
			vnproto.CommonMagPres,
		AttitudeFields: vnproto.AttitudeYprU,
		INSFields: vnproto.INSStatus |
			vnproto.INSPosLLA |
			vnproto.INSPosECEF |
			vnproto.INSVelBody |
			vnproto.INSAccelECEF,
	}
}

// RateDivisor returns IMURateHz / AsyncRateHz. Non-divisible pairs are
// rejected rather than rounded: a rounded divisor would silently change the
// output rate the operator asked for.
func (s StreamSpec) RateDivisor() (int, error) {
	if s.AsyncRateHz <= 0 || s.IMURateHz <= 0 {
		return 0, fmt.Errorf("rates must be positive: imu=%d async=%d", s.IMURateHz, s.AsyncRateHz)
	}
	if s.IMURateHz%s.AsyncRateHz != 0 {
		return 0, fmt.Errorf("async_output_rate %d does not divide fixed_imu_rate %d", s.AsyncRateHz, s.IMURateHz)
	}
	return s.IMURateHz / s.AsyncRateHz, nil
}

// StreamDevice is the subset of the sensor handle the configurator drives.
type StreamDevice interface {
	WriteAsyncOutputFrequency(hz int) error
	WriteBinaryOutput1(cfg vnproto.BinaryOutputConfig) error
	RegisterAsyncPacketHandler(h sensor.PacketHandler)
}

// ConfigureStream arms the device for continuous telemetry and installs the
// packet handler. Any register rejection is returned as-is; without these
// writes no data can flow, so callers treat failure as fatal.
func ConfigureStream(dev StreamDevice, spec StreamSpec, handler sensor.PacketHandler) error {
	divisor, err := spec.RateDivisor()
	if err != nil {
		return err
	}

	if err := dev.WriteAsyncOutputFrequency(spec.AsyncRateHz); err != nil {
		return err
	}

	if err := dev.WriteBinaryOutput1(vnproto.BinaryOutputConfig{
		AsyncMode:      vnproto.AsyncModePort1,
		RateDivisor:    divisor,
		CommonFields:   spec.CommonFields,
		AttitudeFields: spec.AttitudeFields,
		INSFields:      spec.INSFields,
	}); err != nil {
		return err
	}

	// Some firmware revisions reset the output rate when the binary output
	// register is rewritten; asserting it again is harmless otherwise.
	if err := dev.WriteAsyncOutputFrequency(spec.AsyncRateHz); err != nil {
		return err
	}

	dev.RegisterAsyncPacketHandler(handler)
	return nil
}
