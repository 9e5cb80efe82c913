// Package mesh holds the reconstructed surface model: fragments extracted
// from sensing events, the registry that stores them, and mesh combination
// for export.
package mesh

import (
	"fmt"

	"github.com/banshee-data/surface.capture/internal/geom"
	"github.com/banshee-data/surface.capture/internal/sensor"
)

// Fragment is one incrementally-updated piece of the reconstructed surface,
// identified stably across updates. Every update fully replaces the previous
// geometry for the same ID.
type Fragment struct {
	ID string

	// Vertices are fragment-local positions; Pose maps them to world space.
	Vertices []geom.Vec3

	// Normals has the same length as Vertices and may be zero-filled when the
	// sensing service did not estimate normals for the fragment.
	Normals []geom.Vec3

	// Indices is a flat triangle list, length a multiple of 3, every entry
	// below len(Vertices).
	Indices []uint32

	Pose geom.Pose
}

// Validate enforces the fragment invariants: whole triangles only and no
// index past the vertex list.
func (f *Fragment) Validate() error {
	if len(f.Indices)%geom.TriangleIndexCount != 0 {
		return fmt.Errorf("fragment %s: %d indices is not a whole number of triangles: %w",
			f.ID, len(f.Indices), geom.ErrUnsupportedPrimitive)
	}
	for i, idx := range f.Indices {
		if int(idx) >= len(f.Vertices) {
			return fmt.Errorf("fragment %s: index %d at position %d exceeds %d vertices: %w",
				f.ID, idx, i, len(f.Vertices), geom.ErrOutOfBounds)
		}
	}
	return nil
}

// TriangleCount returns the number of whole triangles.
func (f *Fragment) TriangleCount() int {
	return len(f.Indices) / geom.TriangleIndexCount
}

// Bounds returns the fragment's world-space axis-aligned bounding box.
// ok is false for a fragment with no vertices.
func (f *Fragment) Bounds() (min, max geom.Vec3, ok bool) {
	if len(f.Vertices) == 0 {
		return geom.Vec3{}, geom.Vec3{}, false
	}
	min = f.Pose.Apply(f.Vertices[0])
	max = min
	for _, v := range f.Vertices[1:] {
		w := f.Pose.Apply(v)
		min = min.Min(w)
		max = max.Max(w)
	}
	return min, max, true
}

// ExtractFragment copies a fragment out of a sensing event purely through the
// bounds-checked geometry accessors. The event's buffers are owned by the
// sensing service; everything returned here is freshly allocated, so the
// fragment stays valid after the callback returns.
//
// Extraction fails on the first malformed read. Callers contain the fault by
// skipping the fragment; it never aborts processing for other IDs.
func ExtractFragment(ev sensor.FragmentEvent) (*Fragment, error) {
	frag := &Fragment{
		ID:       ev.FragmentID,
		Vertices: make([]geom.Vec3, 0, ev.Vertices.Count),
		Normals:  make([]geom.Vec3, 0, ev.Vertices.Count),
		Indices:  make([]uint32, 0, ev.Indices.Count),
		Pose:     ev.Pose,
	}

	for i := 0; i < ev.Vertices.Count; i++ {
		v, err := ev.Vertices.Vec3At(i)
		if err != nil {
			return nil, fmt.Errorf("extract %s vertex: %w", ev.FragmentID, err)
		}
		frag.Vertices = append(frag.Vertices, v)
	}

	// Normal buffers can be shorter than the vertex buffer on some devices;
	// missing entries are zero-filled rather than failing the fragment.
	for i := 0; i < ev.Vertices.Count; i++ {
		if i >= ev.Normals.Count {
			frag.Normals = append(frag.Normals, geom.Vec3{})
			continue
		}
		n, err := ev.Normals.Vec3At(i)
		if err != nil {
			return nil, fmt.Errorf("extract %s normal: %w", ev.FragmentID, err)
		}
		frag.Normals = append(frag.Normals, n)
	}

	for t := 0; t < ev.Indices.TriangleCount(); t++ {
		tri, err := ev.Indices.TriangleAt(t)
		if err != nil {
			return nil, fmt.Errorf("extract %s triangle: %w", ev.FragmentID, err)
		}
		frag.Indices = append(frag.Indices, tri[0], tri[1], tri[2])
	}

	if err := frag.Validate(); err != nil {
		return nil, err
	}
	return frag, nil
}
