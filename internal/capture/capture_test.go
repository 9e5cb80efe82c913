package capture

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/surface.capture/internal/config"
	"github.com/banshee-data/surface.capture/internal/fsutil"
	"github.com/banshee-data/surface.capture/internal/geom"
	"github.com/banshee-data/surface.capture/internal/sensor"
	"github.com/banshee-data/surface.capture/internal/storage/sqlite"
	"github.com/banshee-data/surface.capture/internal/timeutil"
)

func poseAt(x, y, z float64) geom.Pose {
	p := geom.IdentityPose()
	p[3], p[7], p[11] = x, y, z
	return p
}

func goodFrame(x float64) sensor.FrameEvent {
	return sensor.FrameEvent{
		Pose:         poseAt(x, 0, 0),
		AmbientLight: 800,
		Tracking:     sensor.TrackingNormal,
		FeatureCount: 200,
	}
}

func newTestThrottle(cfg *config.TuningConfig) (*Throttle, *timeutil.MockClock) {
	clock := timeutil.NewMockClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	return NewThrottle(cfg, clock), clock
}

func TestThrottle_FirstFrameAdmits(t *testing.T) {
	th, _ := newTestThrottle(config.EmptyTuningConfig())

	d := th.Evaluate(goodFrame(0))
	assert.True(t, d.Admit)
	assert.Equal(t, RejectNone, d.Reason)
	assert.InDelta(t, 0.4+0.3+0.3*(800-300)/(2000-300), d.Quality, 1e-9)
}

// TestThrottle_LightBand feeds three otherwise-acceptable frames with ambient
// light readings 50, 500, 500 lux; exactly the last two are admitted.
func TestThrottle_LightBand(t *testing.T) {
	th, clock := newTestThrottle(config.EmptyTuningConfig())

	lights := []float64{50, 500, 500}
	var admitted int
	for i, lux := range lights {
		ev := goodFrame(float64(i)) // a full metre of travel per frame
		ev.AmbientLight = lux
		if th.Evaluate(ev).Admit {
			admitted++
		}
		clock.Advance(time.Second)
	}
	assert.Equal(t, 2, admitted)
}

func TestThrottle_AdmissionOrder(t *testing.T) {
	th, clock := newTestThrottle(config.EmptyTuningConfig())

	require.True(t, th.Evaluate(goodFrame(0)).Admit)

	// Within the interval every other defect is irrelevant: interval wins.
	ev := goodFrame(0)
	ev.AmbientLight = 1 // would also fail lighting
	assert.Equal(t, RejectInterval, th.Evaluate(ev).Reason)

	// Past the interval but stationary: movement is checked before light.
	clock.Advance(time.Second)
	assert.Equal(t, RejectMovement, th.Evaluate(ev).Reason)

	// Moved but dark.
	ev.Pose = poseAt(5, 0, 0)
	assert.Equal(t, RejectLighting, th.Evaluate(ev).Reason)

	// Lit but blurred.
	ev.AmbientLight = 800
	ev.Tracking = sensor.TrackingLimited
	ev.LimitedReason = sensor.LimitedExcessiveMotion
	assert.Equal(t, RejectMotionBlur, th.Evaluate(ev).Reason)

	// Limited for any other reason is not blur.
	ev.LimitedReason = sensor.LimitedInsufficientFeatures
	assert.True(t, th.Evaluate(ev).Admit)
}

func TestThrottle_MovementThreshold(t *testing.T) {
	th, clock := newTestThrottle(config.EmptyTuningConfig())

	require.True(t, th.Evaluate(goodFrame(0)).Admit)
	clock.Advance(time.Second)

	// 4cm of travel: below the 5cm default.
	ev := goodFrame(0.04)
	assert.Equal(t, RejectMovement, th.Evaluate(ev).Reason)

	// 6cm passes.
	ev = goodFrame(0.06)
	assert.True(t, th.Evaluate(ev).Admit)
}

// TestThrottle_AdaptiveInterval drives the quality score down and back up and
// watches the interval halve and double within its clamps.
func TestThrottle_AdaptiveInterval(t *testing.T) {
	th, clock := newTestThrottle(config.EmptyTuningConfig())
	assert.Equal(t, 10, th.FrameInterval())

	// Pristine frame: quality 1.0. First acceptance never adapts.
	ev := goodFrame(0)
	ev.AmbientLight = 2000
	require.True(t, th.Evaluate(ev).Admit)
	assert.Equal(t, 10, th.FrameInterval())

	// Quality collapses to 0.2 (limited tracking, no features, dim light):
	// a drop of 0.8 halves the interval.
	clock.Advance(2 * time.Second)
	bad := sensor.FrameEvent{
		Pose:          poseAt(1, 0, 0),
		AmbientLight:  300,
		Tracking:      sensor.TrackingLimited,
		LimitedReason: sensor.LimitedInsufficientFeatures,
	}
	d := th.Evaluate(bad)
	require.True(t, d.Admit)
	assert.InDelta(t, 0.2, d.Quality, 1e-9)
	assert.Equal(t, 5, th.FrameInterval())

	// Interval is already at the floor; another drop cannot go lower.
	clock.Advance(2 * time.Second)
	bad.Pose = poseAt(2, 0, 0)
	require.True(t, th.Evaluate(bad).Admit)
	assert.Equal(t, 5, th.FrameInterval())

	// Quality recovers: the interval doubles back to 10.
	clock.Advance(2 * time.Second)
	good := goodFrame(3)
	good.AmbientLight = 2000
	require.True(t, th.Evaluate(good).Admit)
	assert.Equal(t, 10, th.FrameInterval())

	// A modest dip (delta under the 0.2 step) leaves the interval alone.
	clock.Advance(2 * time.Second)
	mild := goodFrame(4)
	mild.AmbientLight = 1500 // quality ~0.91, a dip of ~0.09
	d = th.Evaluate(mild)
	require.True(t, d.Admit)
	assert.Equal(t, 10, th.FrameInterval())
}

// TestThrottle_IntervalMaxClamp starts near the ceiling so a single quality
// rise would overshoot it.
func TestThrottle_IntervalMaxClamp(t *testing.T) {
	start := 20
	cfg := &config.TuningConfig{FrameIntervalStart: &start}
	th, clock := newTestThrottle(cfg)

	bad := sensor.FrameEvent{
		Pose:          poseAt(0, 0, 0),
		AmbientLight:  300,
		Tracking:      sensor.TrackingLimited,
		LimitedReason: sensor.LimitedInsufficientFeatures,
	}
	require.True(t, th.Evaluate(bad).Admit)

	clock.Advance(2 * time.Second)
	good := goodFrame(1)
	good.AmbientLight = 2000
	require.True(t, th.Evaluate(good).Admit)
	assert.Equal(t, 30, th.FrameInterval(), "20 doubled clamps to the 30-frame ceiling")
}

func TestThrottle_Reset(t *testing.T) {
	th, _ := newTestThrottle(config.EmptyTuningConfig())

	require.True(t, th.Evaluate(goodFrame(0)).Admit)
	// Stationary immediately after: rejected.
	assert.False(t, th.Evaluate(goodFrame(0)).Admit)

	th.Reset()
	// Same frame admits again: no interval or position memory survives.
	assert.True(t, th.Evaluate(goodFrame(0)).Admit)
	assert.Equal(t, 10, th.FrameInterval())
}

func newTestStore(t *testing.T, cfg *config.TuningConfig) (*Store, *fsutil.MemoryFileSystem, *timeutil.MockClock) {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	fs := fsutil.NewMemoryFileSystem()
	clock := timeutil.NewMockClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	store, err := NewStore(cfg, clock, fs, db, "/scans/session")
	require.NoError(t, err)
	return store, fs, clock
}

func TestStore_PersistWritesImageAndSidecar(t *testing.T) {
	store, fs, _ := newTestStore(t, config.EmptyTuningConfig())

	ev := goodFrame(1)
	ev.Image = bytes.Repeat([]byte{0xAB}, 64)
	row, err := store.Persist(ev, 0.85)
	require.NoError(t, err)

	assert.Equal(t, int64(0), row.Idx)
	assert.Equal(t, "/scans/session/images/sample_000000.jpg", row.ImagePath)
	assert.Equal(t, "/scans/session/images/sample_000000.json", row.MetaPath)

	img, err := fs.ReadFile(row.ImagePath)
	require.NoError(t, err)
	assert.Equal(t, ev.Image, img)

	metaBytes, err := fs.ReadFile(row.MetaPath)
	require.NoError(t, err)
	assert.Equal(t, int64(len(img)+len(metaBytes)), row.ByteSize)

	var meta SampleMeta
	require.NoError(t, json.Unmarshal(metaBytes, &meta))
	assert.Equal(t, 0.85, meta.Confidence)
	assert.Equal(t, ev.Pose, meta.Pose)
	assert.Equal(t, "normal", meta.Tracking)

	// Indices are monotonic.
	row2, err := store.Persist(ev, 0.5)
	require.NoError(t, err)
	assert.Equal(t, int64(1), row2.Idx)
}

// TestStore_EvictOldest accumulates samples past the ceiling and checks that
// the budget pass removes oldest-first until the total fits, keeping the
// newest samples intact.
func TestStore_EvictOldest(t *testing.T) {
	ceiling := int64(2200)
	every := 2
	cfg := &config.TuningConfig{
		StorageCeilingBytes: &ceiling,
		BudgetCheckEvery:    &every,
	}
	store, fs, _ := newTestStore(t, cfg)

	ev := goodFrame(1)
	ev.Image = bytes.Repeat([]byte{0x01}, 1000)
	for i := 0; i < 6; i++ {
		_, err := store.Persist(ev, 0.5)
		require.NoError(t, err, "evict policy never surfaces the budget as an error")
	}

	total, err := store.TotalBytes()
	require.NoError(t, err)
	assert.LessOrEqual(t, total, ceiling)

	rows, err := store.Samples()
	require.NoError(t, err)
	require.NotEmpty(t, rows)

	// The newest sample survives every pass; the oldest is long gone.
	last := rows[len(rows)-1]
	assert.Equal(t, int64(5), last.Idx)
	assert.True(t, fs.Exists(last.ImagePath))
	assert.False(t, fs.Exists("/scans/session/images/sample_000000.jpg"))
	assert.False(t, fs.Exists("/scans/session/images/sample_000000.json"))
	assert.False(t, store.Halted())
}

func TestStore_HaltPolicy(t *testing.T) {
	ceiling := int64(100)
	every := 1
	policy := config.StoragePolicyHalt
	cfg := &config.TuningConfig{
		StorageCeilingBytes: &ceiling,
		BudgetCheckEvery:    &every,
		StoragePolicy:       &policy,
	}
	store, fs, _ := newTestStore(t, cfg)

	ev := goodFrame(1)
	ev.Image = bytes.Repeat([]byte{0x01}, 200)
	row, err := store.Persist(ev, 0.5)
	assert.ErrorIs(t, err, ErrStorageExceeded)
	// The tripping sample itself was persisted; nothing is deleted under halt.
	assert.True(t, fs.Exists(row.ImagePath))
	assert.True(t, store.Halted())

	// Once halted, further writes are refused outright.
	_, err = store.Persist(ev, 0.5)
	assert.ErrorIs(t, err, ErrStorageExceeded)
	count, err := store.SampleCount()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

// TestStore_BudgetCheckCadence confirms the budget is only examined every
// N-th acceptance: an over-ceiling total goes unnoticed until the checkpoint.
func TestStore_BudgetCheckCadence(t *testing.T) {
	ceiling := int64(100)
	every := 3
	policy := config.StoragePolicyHalt
	cfg := &config.TuningConfig{
		StorageCeilingBytes: &ceiling,
		BudgetCheckEvery:    &every,
		StoragePolicy:       &policy,
	}
	store, _, _ := newTestStore(t, cfg)

	ev := goodFrame(1)
	ev.Image = bytes.Repeat([]byte{0x01}, 200)

	_, err := store.Persist(ev, 0.5)
	assert.NoError(t, err)
	_, err = store.Persist(ev, 0.5)
	assert.NoError(t, err)
	_, err = store.Persist(ev, 0.5)
	assert.ErrorIs(t, err, ErrStorageExceeded)
}

func TestStore_Clear(t *testing.T) {
	store, fs, _ := newTestStore(t, config.EmptyTuningConfig())

	ev := goodFrame(1)
	ev.Image = []byte("jpeg bytes")
	row, err := store.Persist(ev, 0.5)
	require.NoError(t, err)

	require.NoError(t, store.Clear())

	assert.False(t, fs.Exists(row.ImagePath))
	count, err := store.SampleCount()
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	// The counter rewinds: the next sample is index zero again.
	row, err = store.Persist(ev, 0.5)
	require.NoError(t, err)
	assert.Equal(t, int64(0), row.Idx)
}
