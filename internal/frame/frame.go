// Package frame converts sensor-native NED measurements into ENU for
// consumers that expect it. Two conversion styles are supported: a direct
// component remapping of the NED axes, and a frame-based variant that
// composes a fixed rotation with the attitude quaternion.
package frame

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// Options selects the conversion applied to every vector and quaternion
// before emission. The zero value passes measurements through untouched.
type Options struct {
	// NEDToENU enables conversion from the sensor's NED frame to ENU.
	NEDToENU bool

	// FrameBased selects the rotation-composition variant instead of the
	// axis remapping. Only meaningful when NEDToENU is set.
	FrameBased bool
}

// nedENU is the fixed NED-to-ENU rotation (roll pi, yaw pi/2) used by the
// frame-based conversion.
var nedENU = quat.Mul(axisAngle(2, math.Pi/2), axisAngle(0, math.Pi))

// Quaternion converts an attitude quaternion given as (x, y, z, w). The
// result keeps unit norm within floating tolerance.
func (o Options) Quaternion(q [4]float64) [4]float64 {
	if !o.NEDToENU {
		return q
	}
	if o.FrameBased {
		n := quat.Number{Real: q[3], Imag: q[0], Jmag: q[1], Kmag: q[2]}
		r := normalize(quat.Mul(nedENU, n))
		return [4]float64{r.Imag, r.Jmag, r.Kmag, r.Real}
	}
	// NED (x north, y east, z down) to ENU (x east, y north, z up) is a
	// swap of the first two axes and a sign flip on the third, which maps
	// directly onto the quaternion components.
	return [4]float64{q[1], q[0], -q[2], q[3]}
}

// Vector converts a 3-vector reported in the sensor frame.
func (o Options) Vector(v [3]float64) [3]float64 {
	if !o.NEDToENU {
		return v
	}
	if o.FrameBased {
		n := quat.Number{Imag: v[0], Jmag: v[1], Kmag: v[2]}
		r := quat.Mul(quat.Mul(nedENU, n), quat.Conj(nedENU))
		return [3]float64{r.Imag, r.Jmag, r.Kmag}
	}
	return [3]float64{v[1], v[0], -v[2]}
}

func axisAngle(axis int, angle float64) quat.Number {
	s, c := math.Sincos(angle / 2)
	q := quat.Number{Real: c}
	switch axis {
	case 0:
		q.Imag = s
	case 1:
		q.Jmag = s
	case 2:
		q.Kmag = s
	}
	return q
}

func normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/n, q)
}
