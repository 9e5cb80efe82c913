package coverage

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/surface.capture/internal/config"
	"github.com/banshee-data/surface.capture/internal/geom"
)

// MotionPattern is the advisory classification of the recent camera path.
type MotionPattern int

const (
	// MotionFree means no notable pattern was detected.
	MotionFree MotionPattern = iota
	// MotionCircular means the camera is orbiting a fixed point, which tends
	// to re-scan the same surfaces instead of widening coverage.
	MotionCircular
	// MotionRepetitive means the camera is lingering over the same spot.
	MotionRepetitive
)

// String returns a short name for logging.
func (m MotionPattern) String() string {
	switch m {
	case MotionCircular:
		return "circular"
	case MotionRepetitive:
		return "repetitive"
	default:
		return "free"
	}
}

// MotionAnalyzer runs the motion-pattern heuristics over a position history.
// All outputs are advisory and never gate capture.
type MotionAnalyzer struct {
	cfg     *config.TuningConfig
	history *PositionHistory
}

// NewMotionAnalyzer creates an analyzer over its own history ring sized from
// the tuning config.
func NewMotionAnalyzer(cfg *config.TuningConfig) *MotionAnalyzer {
	return &MotionAnalyzer{
		cfg:     cfg,
		history: NewPositionHistory(cfg.GetHistoryCapacity()),
	}
}

// Observe records a camera position.
func (a *MotionAnalyzer) Observe(p geom.Vec3) {
	a.history.Add(p)
}

// Reset drops the recorded path. Called on session restart.
func (a *MotionAnalyzer) Reset() {
	a.history.Clear()
}

// Classify inspects the recent path and returns the dominant pattern.
// Repetition wins over circular motion when both fire, since lingering is the
// more actionable advice.
func (a *MotionAnalyzer) Classify() MotionPattern {
	if a.pathRepetition() {
		return MotionRepetitive
	}
	if a.circularMotion() {
		return MotionCircular
	}
	return MotionFree
}

// circularMotion detects orbiting: over the motion window, the variance of
// the distances from each position to the window centroid falls below the
// configured threshold while the camera still moves between samples.
func (a *MotionAnalyzer) circularMotion() bool {
	window := a.cfg.GetMotionWindow()
	positions := a.history.Last(window)
	if len(positions) < window {
		return false
	}

	dists := distancesToCentroid(positions)
	return stat.Variance(dists, nil) < a.cfg.GetCircularVarianceThreshold()
}

// pathRepetition detects lingering: the last step displacement and the
// spread of the repetition window are both tiny.
func (a *MotionAnalyzer) pathRepetition() bool {
	window := a.cfg.GetRepetitionWindow()
	positions := a.history.Last(window)
	if len(positions) < window {
		return false
	}

	lastStep := positions[len(positions)-1].Dist(positions[len(positions)-2])
	if float64(lastStep) >= a.cfg.GetRepetitionStepThreshold() {
		return false
	}

	dists := distancesToCentroid(positions)
	spread := math.Sqrt(stat.Mean(squared(dists), nil)) // RMS radius about the centroid
	return spread < a.cfg.GetRepetitionSpreadThreshold()
}

// TiltExcessive reports whether the device view direction is pitched more
// steeply than the configured limit, e.g. pointing at the floor.
func (a *MotionAnalyzer) TiltExcessive(pose geom.Pose) bool {
	dir := pose.ViewDirection()
	l := float64(dir.Length())
	if l == 0 {
		return false
	}
	tiltDeg := math.Asin(math.Abs(float64(dir.Y))/l) * 180 / math.Pi
	return tiltDeg > a.cfg.GetTiltMaxDegrees()
}

func distancesToCentroid(positions []geom.Vec3) []float64 {
	var centroid geom.Vec3
	for _, p := range positions {
		centroid = centroid.Add(p)
	}
	centroid = centroid.Scale(1 / float32(len(positions)))

	dists := make([]float64, len(positions))
	for i, p := range positions {
		dists[i] = float64(p.Dist(centroid))
	}
	return dists
}

func squared(vals []float64) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = v * v
	}
	return out
}
