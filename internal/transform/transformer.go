// Package transform turns decoded binary packets into the bridge's output
// records: frame conversion, covariance attachment, and odometry relative to
// a resettable origin.
package transform

import (
	"time"

	"github.com/banshee-data/vectornav/internal/frame"
	"github.com/banshee-data/vectornav/internal/msg"
	"github.com/banshee-data/vectornav/internal/sensor"
	"github.com/banshee-data/vectornav/internal/vnproto"
)

// gaussToTesla converts the sensor's magnetometer units.
const gaussToTesla = 1e-4

// Covariances are the process-wide configured matrices attached to every
// emitted record; they are never derived per packet.
type Covariances struct {
	Orientation msg.Covariance
	AngularVel  msg.Covariance
	LinearAccel msg.Covariance
}

// Config assembles a Transformer.
type Config struct {
	FrameID     string
	Frame       frame.Options
	Covariances Covariances

	// Family disambiguates family-specific field handling; the VN-100
	// carries no GNSS receiver so INS-derived records are suppressed for it.
	Family sensor.Family

	// Origin is the shared odometry origin tracker.
	Origin *OriginTracker

	// Now stamps records; defaults to time.Now.
	Now func() time.Time
}

// Transformer is the packet callback target. OnPacket runs on the sensor's
// delivery goroutine and stays non-blocking and allocation-light.
type Transformer struct {
	cfg Config
}

// New returns a Transformer. A nil Origin tracker gets a fresh one.
func New(cfg Config) *Transformer {
	if cfg.Origin == nil {
		cfg.Origin = NewOriginTracker()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Transformer{cfg: cfg}
}

// Origin exposes the tracker for the reset-request handler.
func (t *Transformer) Origin() *OriginTracker { return t.cfg.Origin }

// OnPacket converts one decoded packet into the record set for this cycle.
// A category whose constituent fields are absent is suppressed entirely
// rather than emitted partially populated.
func (t *Transformer) OnPacket(cd vnproto.CompositeData) msg.Batch {
	var batch msg.Batch
	header := msg.Header{FrameID: t.cfg.FrameID, Stamp: t.cfg.Now()}

	if cd.HasQuaternion && cd.HasAngularRate && cd.HasAccel {
		q := t.cfg.Frame.Quaternion(cd.Quaternion)
		w := t.cfg.Frame.Vector(cd.AngularRate)
		a := t.cfg.Frame.Vector(cd.Accel)
		batch.Imu = &msg.Imu{
			Header:                       header,
			Orientation:                  msg.Quaternion{X: q[0], Y: q[1], Z: q[2], W: q[3]},
			OrientationCovariance:        t.cfg.Covariances.Orientation,
			AngularVelocity:              msg.Vector3{X: w[0], Y: w[1], Z: w[2]},
			AngularVelocityCovariance:    t.cfg.Covariances.AngularVel,
			LinearAcceleration:           msg.Vector3{X: a[0], Y: a[1], Z: a[2]},
			LinearAccelerationCovariance: t.cfg.Covariances.LinearAccel,
		}
	}

	if cd.HasMag {
		m := t.cfg.Frame.Vector(cd.Mag)
		batch.Mag = &msg.MagneticField{
			Header: header,
			Field: msg.Vector3{
				X: m[0] * gaussToTesla,
				Y: m[1] * gaussToTesla,
				Z: m[2] * gaussToTesla,
			},
		}
	}

	if cd.HasTemp {
		batch.Temp = &msg.Temperature{Header: header, Celsius: cd.Temp}
	}

	if cd.HasPres {
		// Device reports kPa.
		batch.Pressure = &msg.FluidPressure{Header: header, Pascals: cd.Pres * 1000}
	}

	if t.cfg.Family != sensor.FamilyVN100 {
		if cd.HasPositionLLA {
			batch.Fix = &msg.NavSatFix{
				Header:    header,
				Latitude:  cd.PositionLLA[0],
				Longitude: cd.PositionLLA[1],
				Altitude:  cd.PositionLLA[2],
			}
		}

		if cd.HasPositionECEF && cd.HasQuaternion {
			batch.Odom = t.odometry(header, cd)
		}
	}

	return batch
}

func (t *Transformer) odometry(header msg.Header, cd vnproto.CompositeData) *msg.Odometry {
	origin := t.cfg.Origin.Current()
	if !origin.Set {
		origin = t.cfg.Origin.capture(cd.PositionECEF)
	}

	rel := [3]float64{
		cd.PositionECEF[0] - origin.Position[0],
		cd.PositionECEF[1] - origin.Position[1],
		cd.PositionECEF[2] - origin.Position[2],
	}
	rel = t.cfg.Frame.Vector(rel)
	q := t.cfg.Frame.Quaternion(cd.Quaternion)

	odom := &msg.Odometry{
		Header:         header,
		ChildFrameID:   t.cfg.FrameID,
		Position:       msg.Vector3{X: rel[0], Y: rel[1], Z: rel[2]},
		Orientation:    msg.Quaternion{X: q[0], Y: q[1], Z: q[2], W: q[3]},
		PoseCovariance: t.cfg.Covariances.Orientation,
	}
	if cd.HasVelBody {
		v := t.cfg.Frame.Vector(cd.VelBody)
		odom.TwistLinear = msg.Vector3{X: v[0], Y: v[1], Z: v[2]}
		odom.TwistCovariance = t.cfg.Covariances.AngularVel
	}
	return odom
}
