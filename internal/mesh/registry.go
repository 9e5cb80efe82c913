package mesh

import (
	"sort"
	"sync"

	"github.com/banshee-data/surface.capture/internal/geom"
)

// VizNode is the lightweight visualization handle emitted to the presentation
// boundary for each fragment. The host renderer inserts it into its scene
// graph; the pipeline never renders anything itself.
type VizNode struct {
	FragmentID    string
	VertexCount   int
	TriangleCount int
	BoundsMin     geom.Vec3
	BoundsMax     geom.Vec3
}

// NewVizNode derives the visualization handle for a fragment.
func NewVizNode(f *Fragment) VizNode {
	n := VizNode{
		FragmentID:    f.ID,
		VertexCount:   len(f.Vertices),
		TriangleCount: f.TriangleCount(),
	}
	if min, max, ok := f.Bounds(); ok {
		n.BoundsMin, n.BoundsMax = min, max
	}
	return n
}

// Registry is the keyed store of reconstructed fragments plus their
// visualization handles. It is owned by the capture session and guarded by a
// mutex: the worker executor upserts extracted fragments, the export path
// reads a snapshot at session stop. Each upsert fully replaces the prior
// entry for its ID, so a race between two updates of the same ID resolves to
// last-write-wins with no partial merge.
type Registry struct {
	mu    sync.RWMutex
	byID  map[string]*Fragment
	nodes map[string]VizNode
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:  make(map[string]*Fragment),
		nodes: make(map[string]VizNode),
	}
}

// Upsert records the fragment, replacing any prior fragment and visualization
// handle for the same ID, and returns the new handle.
func (r *Registry) Upsert(f *Fragment) VizNode {
	node := NewVizNode(f)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[f.ID] = f
	r.nodes[f.ID] = node
	return node
}

// Remove deletes a fragment and its handle. Removing an unknown ID is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
	delete(r.nodes, id)
}

// Get returns the current fragment for id, or nil.
func (r *Registry) Get(id string) *Fragment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[id]
}

// Len returns the number of stored fragments.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Snapshot returns all current fragments sorted by ID. The sort makes every
// downstream consumer (export in particular) deterministic for a given
// registry state.
func (r *Registry) Snapshot() []*Fragment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Fragment, 0, len(r.byID))
	for _, f := range r.byID {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Clear empties the registry. Called on session restart.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID = make(map[string]*Fragment)
	r.nodes = make(map[string]VizNode)
}
