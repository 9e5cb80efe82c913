// Package export serializes the reconstructed scene into shareable artifacts:
// a plain-text mesh file, optionally bundled with the captured sample images
// into a single archive.
package export

import (
	"bufio"
	"fmt"
	"io"

	"github.com/banshee-data/surface.capture/internal/mesh"
)

// WriteMeshText serializes a combined mesh in the text interchange format:
// a header line with vertex and face counts, one `x y z nx ny nz` line per
// vertex, then one `3 i0 i1 i2` line per face. Output is a pure function of
// the mesh, so the same snapshot always serializes byte-identically.
func WriteMeshText(w io.Writer, m *mesh.CombinedMesh) error {
	bw := bufio.NewWriter(w)

	if _, err := fmt.Fprintf(bw, "%d %d\n", m.VertexCount(), m.FaceCount()); err != nil {
		return fmt.Errorf("write mesh header: %w", err)
	}
	for i, v := range m.Vertices {
		n := m.Normals[i]
		if _, err := fmt.Fprintf(bw, "%.6f %.6f %.6f %.6f %.6f %.6f\n",
			v.X, v.Y, v.Z, n.X, n.Y, n.Z); err != nil {
			return fmt.Errorf("write vertex %d: %w", i, err)
		}
	}
	for i := 0; i+2 < len(m.Indices); i += 3 {
		if _, err := fmt.Fprintf(bw, "3 %d %d %d\n",
			m.Indices[i], m.Indices[i+1], m.Indices[i+2]); err != nil {
			return fmt.Errorf("write face %d: %w", i/3, err)
		}
	}
	return bw.Flush()
}
