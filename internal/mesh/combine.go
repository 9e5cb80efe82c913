package mesh

import "github.com/banshee-data/surface.capture/internal/geom"

// CombinedMesh is a single unified mesh built from a registry snapshot.
// Vertices are in world space; Indices reference the unified vertex array.
type CombinedMesh struct {
	Vertices []geom.Vec3
	Normals  []geom.Vec3
	Indices  []uint32
}

// VertexCount returns the number of vertices.
func (m *CombinedMesh) VertexCount() int { return len(m.Vertices) }

// FaceCount returns the number of triangles.
func (m *CombinedMesh) FaceCount() int { return len(m.Indices) / geom.TriangleIndexCount }

// Combine merges fragments into one mesh. Each fragment's vertices are
// transformed through its pose and its indices are remapped by the running
// vertex offset, so triangles keep referencing their own fragment's vertices.
// Fragment order determines output order; pass a Registry snapshot (sorted by
// ID) for deterministic results.
func Combine(fragments []*Fragment) *CombinedMesh {
	var nVerts, nIdx int
	for _, f := range fragments {
		nVerts += len(f.Vertices)
		nIdx += len(f.Indices)
	}

	out := &CombinedMesh{
		Vertices: make([]geom.Vec3, 0, nVerts),
		Normals:  make([]geom.Vec3, 0, nVerts),
		Indices:  make([]uint32, 0, nIdx),
	}

	for _, f := range fragments {
		offset := uint32(len(out.Vertices))
		for _, v := range f.Vertices {
			out.Vertices = append(out.Vertices, f.Pose.Apply(v))
		}
		for _, n := range f.Normals {
			out.Normals = append(out.Normals, f.Pose.ApplyDirection(n).Normalized())
		}
		for _, idx := range f.Indices {
			out.Indices = append(out.Indices, idx+offset)
		}
	}
	return out
}
