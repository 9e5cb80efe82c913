// Package capture decides which camera frames become persisted samples and
// enforces the sample storage budget.
package capture

import (
	"time"

	"github.com/banshee-data/surface.capture/internal/config"
	"github.com/banshee-data/surface.capture/internal/geom"
	"github.com/banshee-data/surface.capture/internal/monitoring"
	"github.com/banshee-data/surface.capture/internal/sensor"
	"github.com/banshee-data/surface.capture/internal/timeutil"
)

// referenceFrameRate is the frame rate the adaptive interval is expressed
// against: an interval of N means one capture per N frames at 30 fps.
const referenceFrameRate = 30.0

// RejectReason says why a candidate frame was not persisted.
type RejectReason int

const (
	// RejectNone marks an admitted frame.
	RejectNone RejectReason = iota
	// RejectInterval means not enough time has passed since the last sample.
	RejectInterval
	// RejectMovement means the camera has not moved far enough.
	RejectMovement
	// RejectLighting means the ambient light estimate is outside the band.
	RejectLighting
	// RejectMotionBlur means the tracker flagged excessive motion.
	RejectMotionBlur
)

// String returns a short label for logging.
func (r RejectReason) String() string {
	switch r {
	case RejectNone:
		return "admitted"
	case RejectInterval:
		return "too soon"
	case RejectMovement:
		return "insufficient movement"
	case RejectLighting:
		return "poor lighting"
	case RejectMotionBlur:
		return "motion blur"
	default:
		return "unknown"
	}
}

// Decision is the outcome of evaluating one candidate frame.
type Decision struct {
	Admit   bool
	Reason  RejectReason
	Quality float64 // meaningful only when Admit
}

// Throttle applies the admission criteria to the frame stream and adapts the
// capture interval to scene quality. It is driven exclusively from the
// frame-event path, so it carries no locking of its own.
type Throttle struct {
	cfg   *config.TuningConfig
	clock timeutil.Clock

	// frameInterval is the adaptive capture interval in frames at the
	// reference rate, clamped to the configured bounds.
	frameInterval int

	lastAccept  time.Time
	haveAccept  bool
	lastPos     geom.Vec3
	lastQuality float64
	haveQuality bool
}

// NewThrottle creates a throttle starting at the configured initial interval.
func NewThrottle(cfg *config.TuningConfig, clock timeutil.Clock) *Throttle {
	return &Throttle{
		cfg:           cfg,
		clock:         clock,
		frameInterval: cfg.GetFrameIntervalStart(),
	}
}

// FrameInterval returns the current adaptive interval in frames.
func (t *Throttle) FrameInterval() int { return t.frameInterval }

// Evaluate runs the admission clauses in order, short-circuiting on the first
// rejection. On admission it scores the frame, adapts the interval, and
// advances the throttle state; rejected frames leave the state untouched.
func (t *Throttle) Evaluate(ev sensor.FrameEvent) Decision {
	if t.haveAccept {
		minElapsed := time.Duration(float64(t.frameInterval) / referenceFrameRate * float64(time.Second))
		if t.clock.Since(t.lastAccept) < minElapsed {
			return Decision{Reason: RejectInterval}
		}
		if float64(ev.Pose.Translation().Dist(t.lastPos)) < t.cfg.GetMinMovementMeters() {
			return Decision{Reason: RejectMovement}
		}
	}

	if ev.AmbientLight < t.cfg.GetLightMinLux() || ev.AmbientLight > t.cfg.GetLightMaxLux() {
		return Decision{Reason: RejectLighting}
	}

	if ev.Tracking == sensor.TrackingLimited && ev.LimitedReason == sensor.LimitedExcessiveMotion {
		return Decision{Reason: RejectMotionBlur}
	}

	quality := t.score(ev)
	t.adaptInterval(quality)

	t.lastAccept = t.clock.Now()
	t.haveAccept = true
	t.lastPos = ev.Pose.Translation()
	t.lastQuality = quality
	t.haveQuality = true

	return Decision{Admit: true, Reason: RejectNone, Quality: quality}
}

// score computes the weighted frame quality in [0,1]: tracking state, feature
// density against the configured norm, and ambient light position within the
// acceptable band.
func (t *Throttle) score(ev sensor.FrameEvent) float64 {
	var tracking float64
	switch ev.Tracking {
	case sensor.TrackingNormal:
		tracking = 1
	case sensor.TrackingLimited:
		tracking = 0.5
	}

	features := float64(ev.FeatureCount) / float64(t.cfg.GetFeatureCountNorm())
	if features > 1 {
		features = 1
	}

	lightMin, lightMax := t.cfg.GetLightMinLux(), t.cfg.GetLightMaxLux()
	light := (ev.AmbientLight - lightMin) / (lightMax - lightMin)
	if light < 0 {
		light = 0
	} else if light > 1 {
		light = 1
	}

	return t.cfg.GetWeightTracking()*tracking +
		t.cfg.GetWeightFeatures()*features +
		t.cfg.GetWeightLight()*light
}

// adaptInterval halves the interval when quality drops by the configured step
// (capture more aggressively while conditions are good enough to admit at
// all) and doubles it when quality recovers.
func (t *Throttle) adaptInterval(quality float64) {
	if !t.haveQuality {
		return
	}
	step := t.cfg.GetQualityStep()
	switch {
	case t.lastQuality-quality >= step:
		t.frameInterval /= 2
		if min := t.cfg.GetFrameIntervalMin(); t.frameInterval < min {
			t.frameInterval = min
		}
		monitoring.Debugf("throttle: quality %.2f -> %.2f, interval now %d frames", t.lastQuality, quality, t.frameInterval)
	case quality-t.lastQuality >= step:
		t.frameInterval *= 2
		if max := t.cfg.GetFrameIntervalMax(); t.frameInterval > max {
			t.frameInterval = max
		}
		monitoring.Debugf("throttle: quality %.2f -> %.2f, interval now %d frames", t.lastQuality, quality, t.frameInterval)
	}
}

// Reset returns the throttle to its initial state. Called on restart.
func (t *Throttle) Reset() {
	t.frameInterval = t.cfg.GetFrameIntervalStart()
	t.haveAccept = false
	t.haveQuality = false
	t.lastQuality = 0
	t.lastPos = geom.Vec3{}
	t.lastAccept = time.Time{}
}
