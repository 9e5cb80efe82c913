package geom

import "github.com/chewxy/math32"

// Vec3 is a 3D float32 vector. Vertex positions and normals delivered by the
// sensing boundary are float32 triples, so the pipeline keeps float32
// throughout and only widens to float64 at serialization time.
type Vec3 struct {
	X, Y, Z float32
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Scale returns v scaled by s.
func (v Vec3) Scale(s float32) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

// Length returns the euclidean norm of v.
func (v Vec3) Length() float32 {
	return math32.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Dist returns the euclidean distance between v and o.
func (v Vec3) Dist(o Vec3) float32 {
	return v.Sub(o).Length()
}

// Normalized returns v scaled to unit length. A zero vector is returned
// unchanged so zero-filled normal buffers pass through harmlessly.
func (v Vec3) Normalized() Vec3 {
	l := v.Length()
	if l == 0 {
		return v
	}
	return v.Scale(1 / l)
}

// Min returns the component-wise minimum of v and o.
func (v Vec3) Min(o Vec3) Vec3 {
	return Vec3{math32.Min(v.X, o.X), math32.Min(v.Y, o.Y), math32.Min(v.Z, o.Z)}
}

// Max returns the component-wise maximum of v and o.
func (v Vec3) Max(o Vec3) Vec3 {
	return Vec3{math32.Max(v.X, o.X), math32.Max(v.Y, o.Y), math32.Max(v.Z, o.Z)}
}

// Pose is a rigid transform (fragment -> world), 4x4 row-major
// (m00..m03, m10..m13, m20..m23, m30..m33).
type Pose [16]float64

// IdentityPose returns the identity transform.
func IdentityPose() Pose {
	return Pose{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Apply transforms a point through the pose (rotation + translation).
func (p Pose) Apply(v Vec3) Vec3 {
	x, y, z := float64(v.X), float64(v.Y), float64(v.Z)
	return Vec3{
		X: float32(p[0]*x + p[1]*y + p[2]*z + p[3]),
		Y: float32(p[4]*x + p[5]*y + p[6]*z + p[7]),
		Z: float32(p[8]*x + p[9]*y + p[10]*z + p[11]),
	}
}

// ApplyDirection transforms a direction through the pose rotation only.
// Used for normals; assumes the pose is rigid (no scale/shear).
func (p Pose) ApplyDirection(v Vec3) Vec3 {
	x, y, z := float64(v.X), float64(v.Y), float64(v.Z)
	return Vec3{
		X: float32(p[0]*x + p[1]*y + p[2]*z),
		Y: float32(p[4]*x + p[5]*y + p[6]*z),
		Z: float32(p[8]*x + p[9]*y + p[10]*z),
	}
}

// Translation returns the translation column of the pose, i.e. the camera or
// fragment origin in world coordinates.
func (p Pose) Translation() Vec3 {
	return Vec3{float32(p[3]), float32(p[7]), float32(p[11])}
}

// ViewDirection returns the world-space forward axis (-Z column) of the pose.
// Used by the tilt heuristic to estimate how steeply the device is pointed.
func (p Pose) ViewDirection() Vec3 {
	return Vec3{float32(-p[2]), float32(-p[6]), float32(-p[10])}
}
