// Package spatialmath defines poses for sensors and scene objects.
//
// Frames follow the simulator convention: +X forward, +Y left, +Z up. Angles are radians.
package spatialmath

import (
	"encoding/json"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"
)

const defaultEpsilon = 1e-6

// Pose is a position plus a unit quaternion orientation.
type Pose struct {
	Point       r3.Vector
	Orientation quat.Number
}

// NewZeroPose returns the identity pose.
func NewZeroPose() Pose {
	return Pose{Orientation: quat.Number{Real: 1}}
}

// NewPose returns a pose from a point and a quaternion. The quaternion is normalized; a zero
// quaternion is treated as no rotation.
func NewPose(pt r3.Vector, q quat.Number) Pose {
	return Pose{Point: pt, Orientation: normalize(q)}
}

// NewPoseFromRPY returns a pose from a position and roll, pitch, yaw applied in that order
// about fixed X, Y, Z axes.
func NewPoseFromRPY(x, y, z, roll, pitch, yaw float64) Pose {
	return Pose{Point: r3.Vector{X: x, Y: y, Z: z}, Orientation: QuatFromRPY(roll, pitch, yaw)}
}

// QuatFromRPY converts fixed-axis roll, pitch, yaw to a unit quaternion.
func QuatFromRPY(roll, pitch, yaw float64) quat.Number {
	cr, sr := math.Cos(roll/2), math.Sin(roll/2)
	cp, sp := math.Cos(pitch/2), math.Sin(pitch/2)
	cy, sy := math.Cos(yaw/2), math.Sin(yaw/2)
	return quat.Number{
		Real: cr*cp*cy + sr*sp*sy,
		Imag: sr*cp*cy - cr*sp*sy,
		Jmag: cr*sp*cy + sr*cp*sy,
		Kmag: cr*cp*sy - sr*sp*cy,
	}
}

// QuatToRPY converts a unit quaternion to roll, pitch, yaw.
// https://en.wikipedia.org/wiki/Conversion_between_quaternions_and_Euler_angles#Quaternion_to_Euler_angles_conversion
func QuatToRPY(q quat.Number) (roll, pitch, yaw float64) {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	roll = math.Atan2(2*(w*x+y*z), 1-2*(x*x+y*y))
	sinp := 2 * (w*y - x*z)
	// gimbal lock
	if math.Abs(sinp) >= 1 {
		pitch = math.Copysign(math.Pi/2, sinp)
	} else {
		pitch = math.Asin(sinp)
	}
	yaw = math.Atan2(2*(w*z+x*y), 1-2*(y*y+z*z))
	return roll, pitch, yaw
}

// RPY returns the orientation as roll, pitch, yaw.
func (p Pose) RPY() (roll, pitch, yaw float64) {
	return QuatToRPY(p.Orientation)
}

// Rotate rotates v by the pose orientation.
func (p Pose) Rotate(v r3.Vector) r3.Vector {
	q := normalize(p.Orientation)
	rotated := quat.Mul(quat.Mul(q, quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}), quat.Conj(q))
	return r3.Vector{X: rotated.Imag, Y: rotated.Jmag, Z: rotated.Kmag}
}

// Transform maps a point from the pose frame to the parent frame.
func (p Pose) Transform(pt r3.Vector) r3.Vector {
	return p.Rotate(pt).Add(p.Point)
}

// Compose returns p followed by child, i.e. child expressed in p's parent frame.
func (p Pose) Compose(child Pose) Pose {
	return Pose{
		Point:       p.Transform(child.Point),
		Orientation: normalize(quat.Mul(normalize(p.Orientation), normalize(child.Orientation))),
	}
}

// Inverse returns the pose that undoes p.
func (p Pose) Inverse() Pose {
	inv := quat.Conj(normalize(p.Orientation))
	ip := Pose{Orientation: inv}
	return Pose{Point: ip.Rotate(p.Point).Mul(-1), Orientation: inv}
}

// PoseAlmostEqual reports whether two poses match within a small tolerance.
func PoseAlmostEqual(a, b Pose) bool {
	return PoseAlmostEqualEps(a, b, defaultEpsilon)
}

// PoseAlmostEqualEps is PoseAlmostEqual with an explicit tolerance.
func PoseAlmostEqualEps(a, b Pose, eps float64) bool {
	return a.Point.Sub(b.Point).Norm() <= eps && QuaternionAlmostEqual(a.Orientation, b.Orientation, eps)
}

// QuaternionAlmostEqual reports whether two quaternions represent the same rotation. q and -q
// are equal.
func QuaternionAlmostEqual(a, b quat.Number, eps float64) bool {
	a, b = normalize(a), normalize(b)
	dot := a.Real*b.Real + a.Imag*b.Imag + a.Jmag*b.Jmag + a.Kmag*b.Kmag
	return 1-math.Abs(dot) <= eps
}

// Flip multiplies a quaternion by -1. The result represents the same rotation.
func Flip(q quat.Number) quat.Number {
	return quat.Number{Real: -q.Real, Imag: -q.Imag, Jmag: -q.Jmag, Kmag: -q.Kmag}
}

func normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n < defaultEpsilon {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/n, q)
}

// MarshalJSON encodes the pose as [x, y, z, roll, pitch, yaw].
func (p Pose) MarshalJSON() ([]byte, error) {
	r, pi, y := p.RPY()
	return json.Marshal([6]float64{p.Point.X, p.Point.Y, p.Point.Z, r, pi, y})
}

// UnmarshalJSON accepts either a six element array or an SDF style "x y z roll pitch yaw"
// string.
func (p *Pose) UnmarshalJSON(data []byte) error {
	var vals []float64
	if err := json.Unmarshal(data, &vals); err != nil {
		var s string
		if strErr := json.Unmarshal(data, &s); strErr != nil {
			return errors.Wrap(err, "pose must be an array or a string")
		}
		return p.fromString(s)
	}
	parsed, err := PoseFromSlice(vals)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func (p *Pose) fromString(s string) error {
	parsed, err := PoseFromString(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// PoseFromString parses an SDF style "x y z roll pitch yaw" pose.
func PoseFromString(s string) (Pose, error) {
	return PoseFromSlice(spaceDelimitedStringToSlice(s))
}

// PoseFromSlice builds a pose from [x, y, z] or [x, y, z, roll, pitch, yaw].
func PoseFromSlice(vals []float64) (Pose, error) {
	for i, v := range vals {
		if math.IsNaN(v) {
			return Pose{}, errors.Errorf("pose element %d is not a number", i)
		}
	}
	switch len(vals) {
	case 0:
		return NewZeroPose(), nil
	case 3:
		return NewPoseFromRPY(vals[0], vals[1], vals[2], 0, 0, 0), nil
	case 6:
		return NewPoseFromRPY(vals[0], vals[1], vals[2], vals[3], vals[4], vals[5]), nil
	default:
		return Pose{}, errors.Errorf("pose needs 3 or 6 elements, got %d", len(vals))
	}
}
