package sensor

// This file provides a scripted sensing source for tests and replay demos.

import (
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/banshee-data/surface.capture/internal/geom"
)

// SyntheticSource is a scripted Source implementation. Events are fed through
// the Emit* methods and delivered synchronously to the current subscriber,
// which keeps tests deterministic. Callers serialize Emit* themselves,
// matching the one-event-at-a-time delivery of a real sensing service.
//
// Delivery holds the subscription read-lock, so an unsubscribe blocks until
// any in-flight handler call has returned, as the Source contract requires.
type SyntheticSource struct {
	mu      sync.RWMutex
	caps    Capabilities
	handler Handler
}

// NewSyntheticSource creates a source that reports full reconstruction
// capability.
func NewSyntheticSource() *SyntheticSource {
	return &SyntheticSource{
		caps: Capabilities{WorldTracking: true, SceneReconstruction: true},
	}
}

// NewUnsupportedSource creates a source whose device lacks reconstruction,
// for exercising the DeviceUnsupported start path.
func NewUnsupportedSource() *SyntheticSource {
	return &SyntheticSource{caps: Capabilities{WorldTracking: true}}
}

// Capabilities reports the scripted device capabilities.
func (s *SyntheticSource) Capabilities() Capabilities {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.caps
}

// Subscribe installs the handler. Only one subscriber at a time; a second
// Subscribe replaces the first, matching the single-session model.
func (s *SyntheticSource) Subscribe(h Handler) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.caps.SceneReconstruction {
		return nil, ErrDeviceUnsupported
	}
	s.handler = h
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.handler == h {
			s.handler = nil
		}
	}, nil
}

// EmitFragment delivers a fragment event to the subscriber, if any.
func (s *SyntheticSource) EmitFragment(ev FragmentEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.handler != nil {
		s.handler.HandleFragment(ev)
	}
}

// EmitFrame delivers a frame event to the subscriber, if any.
func (s *SyntheticSource) EmitFrame(ev FrameEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.handler != nil {
		s.handler.HandleFrame(ev)
	}
}

// QuadFragment builds a fragment event describing a unit quad (two triangles)
// at the given origin. Handy for tests and the replay CLI; the backing
// buffers are freshly allocated per call so callers can mutate them to
// simulate the service recycling memory.
func QuadFragment(id string, origin geom.Vec3, ts time.Time) FragmentEvent {
	verts := []geom.Vec3{
		origin,
		origin.Add(geom.Vec3{X: 1}),
		origin.Add(geom.Vec3{X: 1, Y: 1}),
		origin.Add(geom.Vec3{Y: 1}),
	}
	normals := []geom.Vec3{{Z: 1}, {Z: 1}, {Z: 1}, {Z: 1}}
	indices := []uint32{0, 1, 2, 0, 2, 3}

	return FragmentEvent{
		FragmentID: id,
		Vertices:   PackVec3Buffer(verts),
		Normals:    PackVec3Buffer(normals),
		Indices:    PackIndexBuffer(indices, geom.Index32Size),
		Pose:       geom.IdentityPose(),
		Timestamp:  ts,
	}
}

// PackVec3Buffer packs vectors into a tightly-strided BufferView.
func PackVec3Buffer(vals []geom.Vec3) geom.BufferView {
	buf := make([]byte, len(vals)*geom.Vec3Size)
	for i, v := range vals {
		start := i * geom.Vec3Size
		binary.LittleEndian.PutUint32(buf[start:], math.Float32bits(v.X))
		binary.LittleEndian.PutUint32(buf[start+4:], math.Float32bits(v.Y))
		binary.LittleEndian.PutUint32(buf[start+8:], math.Float32bits(v.Z))
	}
	return geom.BufferView{Data: buf, Count: len(vals), Stride: geom.Vec3Size}
}

// PackIndexBuffer packs triangle indices at the given element width.
func PackIndexBuffer(vals []uint32, bytesPerIndex int) geom.IndexView {
	buf := make([]byte, len(vals)*bytesPerIndex)
	for i, v := range vals {
		start := i * bytesPerIndex
		if bytesPerIndex == geom.Index16Size {
			binary.LittleEndian.PutUint16(buf[start:], uint16(v))
		} else {
			binary.LittleEndian.PutUint32(buf[start:], v)
		}
	}
	return geom.IndexView{
		Data:          buf,
		Count:         len(vals),
		BytesPerIndex: bytesPerIndex,
		Primitive:     geom.PrimitiveTriangle,
	}
}
