package raster

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/robosim/sensors/spatialmath"
)

const hitEpsilon = 1e-9

// Hit is a ray intersection. T is the ray parameter, so the hit point is origin + T*dir.
type Hit struct {
	T      float64
	Normal r3.Vector
}

// Shape is anything a ray can hit. dir need not be unit length.
type Shape interface {
	Hit(origin, dir r3.Vector, tMin, tMax float64) (Hit, bool)
}

// Sphere is a ball around Center.
type Sphere struct {
	Center r3.Vector
	Radius float64
}

// Hit implements Shape.
func (s Sphere) Hit(origin, dir r3.Vector, tMin, tMax float64) (Hit, bool) {
	oc := origin.Sub(s.Center)
	a := dir.Dot(dir)
	halfB := oc.Dot(dir)
	c := oc.Dot(oc) - s.Radius*s.Radius
	disc := halfB*halfB - a*c
	if disc < 0 || a < hitEpsilon {
		return Hit{}, false
	}
	sqrtD := math.Sqrt(disc)
	t := (-halfB - sqrtD) / a
	if t < tMin || t > tMax {
		t = (-halfB + sqrtD) / a
		if t < tMin || t > tMax {
			return Hit{}, false
		}
	}
	p := origin.Add(dir.Mul(t))
	return Hit{T: t, Normal: p.Sub(s.Center).Mul(1 / s.Radius)}, true
}

// Plane is the infinite plane through Point with the given Normal.
type Plane struct {
	Point  r3.Vector
	Normal r3.Vector
}

// Hit implements Shape.
func (p Plane) Hit(origin, dir r3.Vector, tMin, tMax float64) (Hit, bool) {
	n := p.Normal.Normalize()
	denom := n.Dot(dir)
	if math.Abs(denom) < hitEpsilon {
		return Hit{}, false
	}
	t := p.Point.Sub(origin).Dot(n) / denom
	if t < tMin || t > tMax {
		return Hit{}, false
	}
	return Hit{T: t, Normal: n}, true
}

// Box is a cuboid of Size centered on Pose.
type Box struct {
	Pose spatialmath.Pose
	Size r3.Vector
}

// Hit implements Shape using the slab method in the box frame.
func (b Box) Hit(origin, dir r3.Vector, tMin, tMax float64) (Hit, bool) {
	inv := b.Pose.Inverse()
	o := inv.Transform(origin)
	d := inv.Rotate(dir)
	half := [3]float64{b.Size.X / 2, b.Size.Y / 2, b.Size.Z / 2}
	oa := [3]float64{o.X, o.Y, o.Z}
	da := [3]float64{d.X, d.Y, d.Z}

	tNear, tFar := math.Inf(-1), math.Inf(1)
	nearAxis, farAxis := -1, -1
	var nearSign, farSign float64
	for i := 0; i < 3; i++ {
		if math.Abs(da[i]) < hitEpsilon {
			if oa[i] < -half[i] || oa[i] > half[i] {
				return Hit{}, false
			}
			continue
		}
		t1 := (-half[i] - oa[i]) / da[i]
		t2 := (half[i] - oa[i]) / da[i]
		s1, s2 := -1.0, 1.0
		if t1 > t2 {
			t1, t2 = t2, t1
			s1, s2 = s2, s1
		}
		if t1 > tNear {
			tNear, nearAxis, nearSign = t1, i, s1
		}
		if t2 < tFar {
			tFar, farAxis, farSign = t2, i, s2
		}
		if tNear > tFar {
			return Hit{}, false
		}
	}

	t, axis, sign := tNear, nearAxis, nearSign
	if t < tMin {
		t, axis, sign = tFar, farAxis, farSign
	}
	if t < tMin || t > tMax || axis < 0 {
		return Hit{}, false
	}
	var local r3.Vector
	switch axis {
	case 0:
		local.X = sign
	case 1:
		local.Y = sign
	default:
		local.Z = sign
	}
	return Hit{T: t, Normal: b.Pose.Rotate(local)}, true
}
