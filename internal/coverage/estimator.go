package coverage

import (
	"sync"

	"github.com/banshee-data/surface.capture/internal/config"
	"github.com/banshee-data/surface.capture/internal/geom"
)

// Milestones are the coverage percentages at which guidance fires, each at
// most once per session.
var Milestones = []int{25, 50, 75, 100}

// Estimator derives a scan-completeness fraction from the observed bounding
// volume and point density. Guarded by a mutex: the worker executor feeds it
// vertices while the presentation path reads Fraction for progress updates.
type Estimator struct {
	mu          sync.Mutex
	cfg         *config.TuningConfig
	vol         Volume
	points      int64
	fired       map[int]bool
	onMilestone func(pct int)
}

// NewEstimator creates an estimator. onMilestone may be nil; when set it is
// invoked synchronously from the observing goroutine as thresholds are
// crossed, lowest first.
func NewEstimator(cfg *config.TuningConfig, onMilestone func(pct int)) *Estimator {
	return &Estimator{
		cfg:         cfg,
		fired:       make(map[int]bool),
		onMilestone: onMilestone,
	}
}

// ObservePoints folds world-space vertices into the bounding volume and point
// count, then fires any newly crossed milestones.
func (e *Estimator) ObservePoints(points []geom.Vec3) {
	e.mu.Lock()
	for _, p := range points {
		e.vol.Observe(p)
	}
	e.points += int64(len(points))
	frac := e.fractionLocked()

	var fire []int
	for _, pct := range Milestones {
		if !e.fired[pct] && frac*100 >= float64(pct) {
			e.fired[pct] = true
			fire = append(fire, pct)
		}
	}
	cb := e.onMilestone
	e.mu.Unlock()

	if cb != nil {
		for _, pct := range fire {
			cb(pct)
		}
	}
}

// Fraction returns the coverage estimate clamped to [0,1].
func (e *Estimator) Fraction() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fractionLocked()
}

// fractionLocked computes observed density against the configured full-scan
// density. A degenerate (zero) volume reports zero coverage; the volume only
// stays degenerate until fragments arrive from more than one plane.
func (e *Estimator) fractionLocked() float64 {
	vol := e.vol.CubicMeters()
	if vol <= 0 || e.points == 0 {
		return 0
	}
	frac := float64(e.points) / (vol * e.cfg.GetDensityConstant())
	if frac > 1 {
		return 1
	}
	return frac
}

// Bounds returns the current coverage volume corners and whether any point
// has been observed.
func (e *Estimator) Bounds() (min, max geom.Vec3, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.vol.Empty() {
		return geom.Vec3{}, geom.Vec3{}, false
	}
	return e.vol.Min(), e.vol.Max(), true
}

// PointCount returns the number of observed points.
func (e *Estimator) PointCount() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.points
}

// Reset clears the volume, counts and milestone state. Called on restart.
func (e *Estimator) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vol.Reset()
	e.points = 0
	e.fired = make(map[int]bool)
}
