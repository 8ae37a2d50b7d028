package transform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/vectornav/internal/frame"
	"github.com/banshee-data/vectornav/internal/msg"
	"github.com/banshee-data/vectornav/internal/sensor"
	"github.com/banshee-data/vectornav/internal/vnproto"
)

func fixedNow() time.Time {
	return time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
}

func fullPacket() vnproto.CompositeData {
	return vnproto.CompositeData{
		HasQuaternion:   true,
		Quaternion:      [4]float64{0, 0, 0, 1},
		HasAngularRate:  true,
		AngularRate:     [3]float64{0.1, 0.2, 0.3},
		HasAccel:        true,
		Accel:           [3]float64{0, 0, -9.81},
		HasMag:          true,
		Mag:             [3]float64{0.2, 0.05, 0.4},
		HasTemp:         true,
		Temp:            24.5,
		HasPres:         true,
		Pres:            101.3,
		HasPositionLLA:  true,
		PositionLLA:     [3]float64{45.5, -122.6, 72},
		HasPositionECEF: true,
		PositionECEF:    [3]float64{-2455216, -3834984, 4536361},
		HasVelBody:      true,
		VelBody:         [3]float64{1, 0, 0},
	}
}

func newTestTransformer(family sensor.Family) *Transformer {
	return New(Config{
		FrameID: "vectornav",
		Family:  family,
		Now:     fixedNow,
	})
}

func TestOnPacketFullRecordSet(t *testing.T) {
	t.Parallel()

	tf := newTestTransformer(sensor.FamilyVN200)
	batch := tf.OnPacket(fullPacket())

	require.NotNil(t, batch.Imu)
	require.NotNil(t, batch.Mag)
	require.NotNil(t, batch.Temp)
	require.NotNil(t, batch.Pressure)
	require.NotNil(t, batch.Fix)
	require.NotNil(t, batch.Odom)

	assert.Equal(t, "vectornav", batch.Imu.Header.FrameID)
	assert.Equal(t, fixedNow(), batch.Imu.Header.Stamp)
	assert.Equal(t, msg.Quaternion{X: 0, Y: 0, Z: 0, W: 1}, batch.Imu.Orientation)
	assert.Equal(t, msg.Vector3{X: 0.1, Y: 0.2, Z: 0.3}, batch.Imu.AngularVelocity)
}

func TestOnPacketUnitConversions(t *testing.T) {
	t.Parallel()

	tf := newTestTransformer(sensor.FamilyVN200)
	batch := tf.OnPacket(fullPacket())

	// Magnetometer gauss to tesla, pressure kPa to Pa.
	require.NotNil(t, batch.Mag)
	assert.InDelta(t, 0.2e-4, batch.Mag.Field.X, 1e-12)
	require.NotNil(t, batch.Pressure)
	assert.InDelta(t, 101300, batch.Pressure.Pascals, 1e-6)
	require.NotNil(t, batch.Temp)
	assert.Equal(t, 24.5, batch.Temp.Celsius)
}

func TestOnPacketSuppressesPartialImu(t *testing.T) {
	t.Parallel()

	tf := newTestTransformer(sensor.FamilyVN200)

	cd := fullPacket()
	cd.HasAccel = false
	batch := tf.OnPacket(cd)
	assert.Nil(t, batch.Imu, "missing accel must suppress the whole IMU record")
	assert.NotNil(t, batch.Mag)
}

func TestOnPacketGPSOnly(t *testing.T) {
	t.Parallel()

	tf := newTestTransformer(sensor.FamilyVN200)
	batch := tf.OnPacket(vnproto.CompositeData{
		HasPositionLLA: true,
		PositionLLA:    [3]float64{45.5, -122.6, 72},
	})

	require.NotNil(t, batch.Fix)
	assert.Equal(t, 45.5, batch.Fix.Latitude)
	assert.Equal(t, -122.6, batch.Fix.Longitude)
	assert.Equal(t, 72.0, batch.Fix.Altitude)

	assert.Nil(t, batch.Imu)
	assert.Nil(t, batch.Mag)
	assert.Nil(t, batch.Temp)
	assert.Nil(t, batch.Pressure)
	assert.Nil(t, batch.Odom, "no odometry without an ECEF solution")
}

func TestOnPacketVN100SuppressesINSRecords(t *testing.T) {
	t.Parallel()

	tf := newTestTransformer(sensor.FamilyVN100)
	batch := tf.OnPacket(fullPacket())

	assert.NotNil(t, batch.Imu)
	assert.Nil(t, batch.Fix)
	assert.Nil(t, batch.Odom)
}

func TestOdometryRelativeToOrigin(t *testing.T) {
	t.Parallel()

	tf := newTestTransformer(sensor.FamilyVN200)

	first := tf.OnPacket(fullPacket())
	require.NotNil(t, first.Odom)
	assert.Equal(t, msg.Vector3{}, first.Odom.Position, "first sample defines the origin")

	moved := fullPacket()
	moved.PositionECEF[0] += 3
	moved.PositionECEF[2] -= 1
	second := tf.OnPacket(moved)
	require.NotNil(t, second.Odom)
	assert.Equal(t, msg.Vector3{X: 3, Y: 0, Z: -1}, second.Odom.Position)
	assert.Equal(t, msg.Vector3{X: 1, Y: 0, Z: 0}, second.Odom.TwistLinear)
}

func TestOdometryResetRecapturesOrigin(t *testing.T) {
	t.Parallel()

	tf := newTestTransformer(sensor.FamilyVN200)

	cd := fullPacket()
	tf.OnPacket(cd)

	cd.PositionECEF[1] += 10
	batch := tf.OnPacket(cd)
	require.NotNil(t, batch.Odom)
	assert.Equal(t, msg.Vector3{Y: 10}, batch.Odom.Position)

	// Reset: the very next sample reads as zero again, and only that one
	// defines the new origin.
	tf.Origin().Reset()
	tf.Origin().Reset() // repeated resets are harmless

	batch = tf.OnPacket(cd)
	require.NotNil(t, batch.Odom)
	assert.Equal(t, msg.Vector3{}, batch.Odom.Position)

	cd.PositionECEF[1] += 5
	batch = tf.OnPacket(cd)
	require.NotNil(t, batch.Odom)
	assert.Equal(t, msg.Vector3{Y: 5}, batch.Odom.Position)
}

func TestOdometryFrameConversion(t *testing.T) {
	t.Parallel()

	tf := New(Config{
		FrameID: "vectornav",
		Family:  sensor.FamilyVN200,
		Frame:   frame.Options{NEDToENU: true},
		Now:     fixedNow,
	})

	tf.OnPacket(fullPacket())
	moved := fullPacket()
	moved.PositionECEF[0] += 1
	moved.PositionECEF[1] += 2
	moved.PositionECEF[2] += 3

	batch := tf.OnPacket(moved)
	require.NotNil(t, batch.Odom)
	assert.Equal(t, msg.Vector3{X: 2, Y: 1, Z: -3}, batch.Odom.Position)
}

func TestCovariancesAttached(t *testing.T) {
	t.Parallel()

	orientation, err := msg.CovarianceFromSlice([]float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	require.NoError(t, err)
	angular, err := msg.CovarianceFromSlice([]float64{2, 0, 0, 0, 2, 0, 0, 0, 2})
	require.NoError(t, err)
	linear, err := msg.CovarianceFromSlice([]float64{3, 0, 0, 0, 3, 0, 0, 0, 3})
	require.NoError(t, err)

	tf := New(Config{
		FrameID: "vectornav",
		Family:  sensor.FamilyVN200,
		Covariances: Covariances{
			Orientation: orientation,
			AngularVel:  angular,
			LinearAccel: linear,
		},
		Now: fixedNow,
	})

	batch := tf.OnPacket(fullPacket())
	require.NotNil(t, batch.Imu)
	assert.Equal(t, orientation, batch.Imu.OrientationCovariance)
	assert.Equal(t, angular, batch.Imu.AngularVelocityCovariance)
	assert.Equal(t, linear, batch.Imu.LinearAccelerationCovariance)
}

func TestEmptyPacketYieldsEmptyBatch(t *testing.T) {
	t.Parallel()

	tf := newTestTransformer(sensor.FamilyVN200)
	batch := tf.OnPacket(vnproto.CompositeData{})
	assert.True(t, batch.Empty())
}
