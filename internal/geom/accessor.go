// Package geom provides bounds-checked access to externally-owned geometry
// buffers delivered by the sensing boundary.
//
// The sensing service hands the pipeline raw vertex, normal and index buffers
// that it continues to own and may recycle after the event callback returns.
// All extraction above this layer is expressed in terms of BufferView and
// IndexView reads; no raw slice arithmetic escapes this package, and no view
// may be retained past the callback that delivered it. Callers copy typed
// values out instead.
package geom

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Buffer layout constants for the formats the sensing boundary delivers.
const (
	// Float32Size is the byte width of one float32 component.
	Float32Size = 4

	// Vec3Size is the byte width of one packed float32 triple.
	Vec3Size = 3 * Float32Size

	// Index16Size and Index32Size are the supported index element widths.
	Index16Size = 2
	Index32Size = 4

	// TriangleIndexCount is the number of indices consumed per triangle.
	TriangleIndexCount = 3
)

var (
	// ErrOutOfBounds is returned when a read would pass the declared element
	// count or the end of the underlying buffer.
	ErrOutOfBounds = errors.New("geom: buffer access out of bounds")

	// ErrUnsupportedPrimitive is returned for triangle reads against an index
	// view whose primitive is not triangles.
	ErrUnsupportedPrimitive = errors.New("geom: unsupported primitive type")

	// ErrBadIndexWidth is returned when an IndexView declares an element
	// width other than 2 or 4 bytes.
	ErrBadIndexWidth = errors.New("geom: index width must be 2 or 4 bytes")
)

// Primitive identifies the topology of an index buffer.
type Primitive int

// Primitive values mirror the sensing boundary's geometry element types.
// Only triangles are reconstructable; everything else is rejected at the
// accessor so malformed fragments never reach the registry.
const (
	PrimitiveTriangle Primitive = iota
	PrimitiveLine
	PrimitivePoint
)

// String returns a short name for logging.
func (p Primitive) String() string {
	switch p {
	case PrimitiveTriangle:
		return "triangle"
	case PrimitiveLine:
		return "line"
	case PrimitivePoint:
		return "point"
	default:
		return fmt.Sprintf("primitive(%d)", int(p))
	}
}

// BufferView is a bounds-checked window over an externally-owned buffer of
// packed float32 triples (vertex positions or normals).
//
// Count is the number of addressable elements, Stride the byte distance
// between consecutive elements, and Offset the byte position of element 0.
// A zero Stride is treated as tightly packed (Vec3Size).
type BufferView struct {
	Data   []byte
	Count  int
	Stride int
	Offset int
}

// stride returns the effective stride, defaulting to tight packing.
func (v BufferView) stride() int {
	if v.Stride == 0 {
		return Vec3Size
	}
	return v.Stride
}

// Vec3At returns the float32 triple at element index i. It fails with
// ErrOutOfBounds when i is outside [0, Count) or the strided read would pass
// the end of the buffer, so a lying Count can never cause an over-read.
func (v BufferView) Vec3At(i int) (Vec3, error) {
	if i < 0 || i >= v.Count {
		return Vec3{}, fmt.Errorf("vec3 index %d with count %d: %w", i, v.Count, ErrOutOfBounds)
	}
	start := v.Offset + i*v.stride()
	if start < 0 || start+Vec3Size > len(v.Data) {
		return Vec3{}, fmt.Errorf("vec3 index %d reads [%d,%d) of %d-byte buffer: %w",
			i, start, start+Vec3Size, len(v.Data), ErrOutOfBounds)
	}
	return Vec3{
		X: math.Float32frombits(binary.LittleEndian.Uint32(v.Data[start:])),
		Y: math.Float32frombits(binary.LittleEndian.Uint32(v.Data[start+Float32Size:])),
		Z: math.Float32frombits(binary.LittleEndian.Uint32(v.Data[start+2*Float32Size:])),
	}, nil
}

// IndexView is a bounds-checked window over an externally-owned index buffer.
// BytesPerIndex selects the element width (2 or 4); Primitive declares the
// topology the indices describe.
type IndexView struct {
	Data          []byte
	Count         int
	Offset        int
	BytesPerIndex int
	Primitive     Primitive
}

// IndexAt returns the vertex index at element i, widening 16-bit indices to
// uint32. Fails with ErrOutOfBounds past the declared count or buffer end and
// ErrBadIndexWidth for unsupported element widths.
func (v IndexView) IndexAt(i int) (uint32, error) {
	if v.BytesPerIndex != Index16Size && v.BytesPerIndex != Index32Size {
		return 0, fmt.Errorf("%d bytes per index: %w", v.BytesPerIndex, ErrBadIndexWidth)
	}
	if i < 0 || i >= v.Count {
		return 0, fmt.Errorf("index %d with count %d: %w", i, v.Count, ErrOutOfBounds)
	}
	start := v.Offset + i*v.BytesPerIndex
	if start < 0 || start+v.BytesPerIndex > len(v.Data) {
		return 0, fmt.Errorf("index %d reads [%d,%d) of %d-byte buffer: %w",
			i, start, start+v.BytesPerIndex, len(v.Data), ErrOutOfBounds)
	}
	if v.BytesPerIndex == Index16Size {
		return uint32(binary.LittleEndian.Uint16(v.Data[start:])), nil
	}
	return binary.LittleEndian.Uint32(v.Data[start:]), nil
}

// TriangleCount returns the number of whole triangles the view describes.
func (v IndexView) TriangleCount() int {
	return v.Count / TriangleIndexCount
}

// TriangleAt returns the three vertex indices of triangle t. Fails with
// ErrUnsupportedPrimitive when the view's primitive is not triangles and
// ErrOutOfBounds when t is outside [0, TriangleCount()).
func (v IndexView) TriangleAt(t int) ([TriangleIndexCount]uint32, error) {
	var tri [TriangleIndexCount]uint32
	if v.Primitive != PrimitiveTriangle {
		return tri, fmt.Errorf("triangle read from %s buffer: %w", v.Primitive, ErrUnsupportedPrimitive)
	}
	if t < 0 || t >= v.TriangleCount() {
		return tri, fmt.Errorf("triangle %d with %d triangles: %w", t, v.TriangleCount(), ErrOutOfBounds)
	}
	for k := 0; k < TriangleIndexCount; k++ {
		idx, err := v.IndexAt(t*TriangleIndexCount + k)
		if err != nil {
			return tri, err
		}
		tri[k] = idx
	}
	return tri, nil
}
