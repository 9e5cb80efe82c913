// Package coverage estimates how completely the user has scanned the space.
//
// It maintains the axis-aligned bounding volume of every observed surface
// point, derives a coverage fraction from observed point density, and runs
// advisory motion-pattern heuristics over the recent camera path. Nothing in
// this package ever blocks capture; its outputs feed guidance only.
package coverage

import "github.com/banshee-data/surface.capture/internal/geom"

// Volume is the running axis-aligned bounding box of all observed points.
// It widens monotonically through a session and resets on restart.
type Volume struct {
	min, max geom.Vec3
	seen     bool
}

// Observe widens the volume to include p.
func (v *Volume) Observe(p geom.Vec3) {
	if !v.seen {
		v.min, v.max = p, p
		v.seen = true
		return
	}
	v.min = v.min.Min(p)
	v.max = v.max.Max(p)
}

// Empty reports whether any point has been observed.
func (v *Volume) Empty() bool { return !v.seen }

// Min returns the lower corner.
func (v *Volume) Min() geom.Vec3 { return v.min }

// Max returns the upper corner.
func (v *Volume) Max() geom.Vec3 { return v.max }

// Size returns the edge lengths of the box.
func (v *Volume) Size() geom.Vec3 {
	if !v.seen {
		return geom.Vec3{}
	}
	return v.max.Sub(v.min)
}

// Center returns the box center.
func (v *Volume) Center() geom.Vec3 {
	if !v.seen {
		return geom.Vec3{}
	}
	return v.min.Add(v.max.Sub(v.min).Scale(0.5))
}

// CubicMeters returns the box volume.
func (v *Volume) CubicMeters() float64 {
	s := v.Size()
	return float64(s.X) * float64(s.Y) * float64(s.Z)
}

// Reset forgets all observations.
func (v *Volume) Reset() {
	*v = Volume{}
}
