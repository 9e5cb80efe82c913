package coverage

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/surface.capture/internal/config"
	"github.com/banshee-data/surface.capture/internal/geom"
)

func TestVolume_MonotonicWidening(t *testing.T) {
	var v Volume
	assert.True(t, v.Empty())

	v.Observe(geom.Vec3{X: 1, Y: 2, Z: 3})
	assert.Equal(t, geom.Vec3{X: 1, Y: 2, Z: 3}, v.Min())
	assert.Equal(t, geom.Vec3{X: 1, Y: 2, Z: 3}, v.Max())

	v.Observe(geom.Vec3{X: -1, Y: 5, Z: 0})
	assert.Equal(t, geom.Vec3{X: -1, Y: 2, Z: 0}, v.Min())
	assert.Equal(t, geom.Vec3{X: 1, Y: 5, Z: 3}, v.Max())

	// Interior points never shrink the box.
	v.Observe(geom.Vec3{X: 0, Y: 3, Z: 1})
	assert.Equal(t, geom.Vec3{X: -1, Y: 2, Z: 0}, v.Min())
	assert.Equal(t, geom.Vec3{X: 1, Y: 5, Z: 3}, v.Max())

	assert.Equal(t, geom.Vec3{X: 2, Y: 3, Z: 3}, v.Size())
	assert.Equal(t, geom.Vec3{X: 0, Y: 3.5, Z: 1.5}, v.Center())
	assert.InDelta(t, 18.0, v.CubicMeters(), 1e-9)

	v.Reset()
	assert.True(t, v.Empty())
	assert.Equal(t, geom.Vec3{}, v.Size())
}

func TestPositionHistory_RingSemantics(t *testing.T) {
	h := NewPositionHistory(3)

	_, ok := h.Latest()
	assert.False(t, ok)
	assert.Nil(t, h.Last(5))

	h.Add(geom.Vec3{X: 1})
	h.Add(geom.Vec3{X: 2})
	h.Add(geom.Vec3{X: 3})
	h.Add(geom.Vec3{X: 4}) // overwrites {1}

	assert.Equal(t, 3, h.Size())
	latest, ok := h.Latest()
	require.True(t, ok)
	assert.Equal(t, geom.Vec3{X: 4}, latest)

	got := h.Last(3)
	assert.Equal(t, []geom.Vec3{{X: 2}, {X: 3}, {X: 4}}, got)

	got = h.Last(2)
	assert.Equal(t, []geom.Vec3{{X: 3}, {X: 4}}, got)

	h.Clear()
	assert.Equal(t, 0, h.Size())
}

func TestEstimator_FractionAndMilestones(t *testing.T) {
	density := 10.0
	cfg := &config.TuningConfig{DensityConstant: &density}

	var fired []int
	e := NewEstimator(cfg, func(pct int) { fired = append(fired, pct) })

	// Establish a 1 cubic metre volume with two corner points: 2/10 = 20%.
	e.ObservePoints([]geom.Vec3{{}, {X: 1, Y: 1, Z: 1}})
	assert.InDelta(t, 0.2, e.Fraction(), 1e-9)
	assert.Empty(t, fired)

	// One more point crosses 25%.
	e.ObservePoints([]geom.Vec3{{X: 0.5, Y: 0.5, Z: 0.5}})
	assert.Equal(t, []int{25}, fired)

	// Jump past several thresholds at once; each fires exactly once, in order.
	pts := make([]geom.Vec3, 9)
	for i := range pts {
		pts[i] = geom.Vec3{X: 0.5, Y: 0.5, Z: 0.5}
	}
	e.ObservePoints(pts)
	assert.Equal(t, []int{25, 50, 75, 100}, fired)
	assert.Equal(t, 1.0, e.Fraction(), "fraction clamps at 1")

	// Already-fired milestones stay fired.
	e.ObservePoints([]geom.Vec3{{X: 0.2, Y: 0.2, Z: 0.2}})
	assert.Equal(t, []int{25, 50, 75, 100}, fired)

	e.Reset()
	assert.Equal(t, 0.0, e.Fraction())
	assert.Equal(t, int64(0), e.PointCount())
}

func TestEstimator_DegenerateVolume(t *testing.T) {
	e := NewEstimator(config.EmptyTuningConfig(), nil)

	// Coplanar points span zero volume; coverage stays zero instead of
	// dividing by zero.
	e.ObservePoints([]geom.Vec3{{}, {X: 1}, {X: 2, Y: 1}})
	assert.Equal(t, 0.0, e.Fraction())
}

func circlePositions(n int, radius float64) []geom.Vec3 {
	out := make([]geom.Vec3, n)
	for i := range out {
		ang := 2 * math.Pi * float64(i) / float64(n)
		out[i] = geom.Vec3{
			X: float32(radius * math.Cos(ang)),
			Z: float32(radius * math.Sin(ang)),
		}
	}
	return out
}

func TestMotionAnalyzer_Circular(t *testing.T) {
	a := NewMotionAnalyzer(config.EmptyTuningConfig())

	for _, p := range circlePositions(20, 1.5) {
		a.Observe(p)
	}
	assert.Equal(t, MotionCircular, a.Classify())
}

func TestMotionAnalyzer_Repetitive(t *testing.T) {
	a := NewMotionAnalyzer(config.EmptyTuningConfig())

	for i := 0; i < 20; i++ {
		a.Observe(geom.Vec3{X: 2, Y: 1, Z: -3})
	}
	assert.Equal(t, MotionRepetitive, a.Classify())
}

func TestMotionAnalyzer_FreeWalk(t *testing.T) {
	a := NewMotionAnalyzer(config.EmptyTuningConfig())

	// A straight walk: distances to centroid spread widely, steps are large.
	for i := 0; i < 20; i++ {
		a.Observe(geom.Vec3{X: float32(i) * 0.5})
	}
	assert.Equal(t, MotionFree, a.Classify())
}

func TestMotionAnalyzer_InsufficientHistory(t *testing.T) {
	a := NewMotionAnalyzer(config.EmptyTuningConfig())
	a.Observe(geom.Vec3{})
	a.Observe(geom.Vec3{})
	assert.Equal(t, MotionFree, a.Classify())

	a.Reset()
	assert.Equal(t, MotionFree, a.Classify())
}

func TestMotionAnalyzer_Tilt(t *testing.T) {
	a := NewMotionAnalyzer(config.EmptyTuningConfig())

	// Identity pose looks along -Z: level, no tilt.
	assert.False(t, a.TiltExcessive(geom.IdentityPose()))

	// Rotate to look straight down (-Y): forward axis becomes (0,-1,0).
	var down geom.Pose
	down[0] = 1
	down[6] = 1  // row1: z -> y
	down[9] = -1 // row2: y -> -z
	down[15] = 1
	assert.True(t, a.TiltExcessive(down))
}
