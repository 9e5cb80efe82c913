// Package sensor defines the boundary to the platform depth-sensing service.
//
// The service owns the device, runs SLAM, and delivers two event streams: a
// surface-fragment stream carrying geometry buffers it continues to own, and
// a frame stream carrying encoded camera images with tracking telemetry. The
// pipeline consumes both through the Source subscription and never mutates or
// retains the delivered buffers.
package sensor

import (
	"errors"
	"time"

	"github.com/banshee-data/surface.capture/internal/geom"
)

// ErrDeviceUnsupported is returned by Subscribe when the device lacks the
// depth-sensing capability. Fatal to starting a session; surfaced to the user
// once.
var ErrDeviceUnsupported = errors.New("sensor: device does not support scene reconstruction")

// TrackingState describes the quality of the platform's world tracking for a
// frame.
type TrackingState int

const (
	// TrackingNotAvailable means the tracker has no pose at all.
	TrackingNotAvailable TrackingState = iota
	// TrackingLimited means a pose exists but is degraded; see LimitedReason.
	TrackingLimited
	// TrackingNormal is full-quality tracking.
	TrackingNormal
)

// String returns a short name for logging and guidance text.
func (s TrackingState) String() string {
	switch s {
	case TrackingNotAvailable:
		return "not-available"
	case TrackingLimited:
		return "limited"
	case TrackingNormal:
		return "normal"
	default:
		return "unknown"
	}
}

// LimitedReason qualifies TrackingLimited.
type LimitedReason int

const (
	LimitedNone LimitedReason = iota
	// LimitedExcessiveMotion indicates the device is moving too fast for
	// sharp captures; the throttle treats it as a blur indicator.
	LimitedExcessiveMotion
	// LimitedInsufficientFeatures indicates a texture-poor scene.
	LimitedInsufficientFeatures
	// LimitedInitializing indicates the tracker is still warming up.
	LimitedInitializing
)

// FragmentEvent is one incremental surface-fragment update or removal.
// Buffer views point into memory owned by the sensing service; they are only
// valid for the duration of the handler call.
type FragmentEvent struct {
	FragmentID string

	// Removed marks a retirement of FragmentID; geometry views are empty.
	Removed bool

	Vertices geom.BufferView
	Normals  geom.BufferView
	Indices  geom.IndexView
	Pose     geom.Pose

	Timestamp time.Time
}

// FrameEvent is one rendered camera frame with tracking telemetry.
type FrameEvent struct {
	// Image is the encoded (JPEG) camera frame for this event.
	Image []byte

	// Pose is the camera pose (camera -> world) at capture time.
	Pose geom.Pose

	// AmbientLight is the platform's ambient light estimate in lux.
	AmbientLight float64

	Tracking      TrackingState
	LimitedReason LimitedReason

	// FeatureCount is the raw tracked feature-point count for the frame.
	FeatureCount int

	Timestamp time.Time
}

// Capabilities reports what the device's sensing stack can do.
type Capabilities struct {
	WorldTracking       bool
	SceneReconstruction bool
}

// Handler receives sensing events. Calls arrive serially per subscription.
type Handler interface {
	HandleFragment(FragmentEvent)
	HandleFrame(FrameEvent)
}

// Source is a subscription to the sensing service. Subscribe returns an
// unsubscribe function that pauses delivery; it fails with
// ErrDeviceUnsupported when scene reconstruction is unavailable.
//
// The unsubscribe function must not return while a handler call is still in
// flight: after it returns, the handler's unsynchronized state may be reset
// safely. Consequently it must never be called from within a handler.
type Source interface {
	Capabilities() Capabilities
	Subscribe(Handler) (unsubscribe func(), err error)
}
