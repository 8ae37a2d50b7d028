// Package msg defines the standardized measurement records emitted by the
// bridge. The shapes deliberately mirror the common robotics message set
// (IMU, magnetic field, satellite fix, temperature, fluid pressure and
// odometry) so downstream consumers can map them without translation.
package msg

import "time"

// Header tags every record with its coordinate frame and capture time.
type Header struct {
	FrameID string    `json:"frame_id"`
	Stamp   time.Time `json:"stamp"`
}

// Vector3 is a 3-vector in the record's coordinate frame.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quaternion is an orientation with the scalar component last.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Imu carries orientation, angular rate and linear acceleration from a single
// telemetry cycle, with the process-wide configured covariances attached.
type Imu struct {
	Header                       Header     `json:"header"`
	Orientation                  Quaternion `json:"orientation"`
	OrientationCovariance        Covariance `json:"orientation_covariance"`
	AngularVelocity              Vector3    `json:"angular_velocity"`
	AngularVelocityCovariance    Covariance `json:"angular_velocity_covariance"`
	LinearAcceleration           Vector3    `json:"linear_acceleration"`
	LinearAccelerationCovariance Covariance `json:"linear_acceleration_covariance"`
}

// MagneticField is the sensed field in tesla.
type MagneticField struct {
	Header Header  `json:"header"`
	Field  Vector3 `json:"magnetic_field"`
}

// NavSatFix is a geodetic position fix in degrees / metres.
type NavSatFix struct {
	Header    Header  `json:"header"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`
}

// Temperature is the device temperature in degrees Celsius.
type Temperature struct {
	Header  Header  `json:"header"`
	Celsius float64 `json:"temperature"`
}

// FluidPressure is the barometric pressure in pascals.
type FluidPressure struct {
	Header  Header  `json:"header"`
	Pascals float64 `json:"fluid_pressure"`
}

// Odometry reports position relative to the current odometry origin, plus
// orientation and body-frame velocity from the INS solution.
type Odometry struct {
	Header          Header     `json:"header"`
	ChildFrameID    string     `json:"child_frame_id"`
	Position        Vector3    `json:"position"`
	Orientation     Quaternion `json:"orientation"`
	PoseCovariance  Covariance `json:"pose_covariance"`
	TwistLinear     Vector3    `json:"twist_linear"`
	TwistCovariance Covariance `json:"twist_covariance"`
}

// Batch is the record set produced from one decoded packet. A nil field means
// the packet did not carry that category this cycle; consumers must treat
// absence as "not measured", never as a zero reading.
type Batch struct {
	Imu      *Imu           `json:"imu,omitempty"`
	Mag      *MagneticField `json:"mag,omitempty"`
	Fix      *NavSatFix     `json:"fix,omitempty"`
	Temp     *Temperature   `json:"temp,omitempty"`
	Pressure *FluidPressure `json:"pressure,omitempty"`
	Odom     *Odometry      `json:"odom,omitempty"`
}

// Empty reports whether the batch carries no records at all.
func (b Batch) Empty() bool {
	return b.Imu == nil && b.Mag == nil && b.Fix == nil &&
		b.Temp == nil && b.Pressure == nil && b.Odom == nil
}
