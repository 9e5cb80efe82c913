// Package session ties the capture pipeline together: it subscribes to the
// sensing source, routes fragment and frame events through the mesh registry,
// coverage estimator, throttle and sample store, and exposes the four entry
// points the command bridge drives: Start, Stop, Restart and Export.
package session

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/banshee-data/surface.capture/internal/capture"
	"github.com/banshee-data/surface.capture/internal/config"
	"github.com/banshee-data/surface.capture/internal/coverage"
	"github.com/banshee-data/surface.capture/internal/export"
	"github.com/banshee-data/surface.capture/internal/geom"
	"github.com/banshee-data/surface.capture/internal/guidance"
	"github.com/banshee-data/surface.capture/internal/mesh"
	"github.com/banshee-data/surface.capture/internal/monitoring"
	"github.com/banshee-data/surface.capture/internal/sensor"
	"github.com/banshee-data/surface.capture/internal/timeutil"
)

// State is the session lifecycle state.
type State int

const (
	// StateIdle is the state before the first Start.
	StateIdle State = iota
	// StateScanning means the sensing subscription is live.
	StateScanning
	// StateStopped means scanning has ended; Export is available.
	StateStopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

var (
	// ErrNotScanning is returned by Stop when no scan is running.
	ErrNotScanning = errors.New("session: not scanning")
	// ErrAlreadyScanning is returned by Start when a scan is running.
	ErrAlreadyScanning = errors.New("session: already scanning")
	// ErrSessionActive is returned by Export while a scan is running.
	ErrSessionActive = errors.New("session: stop the scan before exporting")
)

// Advisory texts fed through the guidance messenger.
const (
	msgPoorLighting  = "lighting is outside the capture range, adjust the room lights"
	msgMotionBlur    = "moving too fast, slow down"
	msgCircularPath  = "try varying your path instead of circling the same spot"
	msgRepetitivePos = "you are hovering in place, walk toward uncovered areas"
	msgTiltExcessive = "level the device toward the scene"
	msgTrackingLost  = "tracking lost, point the camera at a textured surface"
	msgStorageLimit  = "storage limit reached, capture stopped"
)

// Presenter receives the UI-facing callbacks. Every method is invoked from
// the session's presentation executor, one call at a time; implementations
// should hand results to their rendering loop rather than block.
type Presenter interface {
	// SessionStateChanged reports lifecycle transitions.
	SessionStateChanged(state State)

	// FragmentUpserted delivers the visualization proxy for a new or
	// replaced fragment.
	FragmentUpserted(node mesh.VizNode)

	// FragmentRemoved retires the visualization for a fragment id.
	FragmentRemoved(id string)

	// Guidance shows an advisory message to the user.
	Guidance(text string, critical bool)

	// CoverageChanged reports scan progress after each fragment update.
	CoverageChanged(fraction float64, fragments int)

	// CoverageMilestone fires once per 25/50/75/100% threshold.
	CoverageMilestone(pct int)
}

// Config assembles a session's collaborators.
type Config struct {
	Tuning    *config.TuningConfig
	Clock     timeutil.Clock
	Source    sensor.Source
	Store     *capture.Store
	Exporter  *export.Exporter
	Presenter Presenter

	// QueueDepth sizes the executor queues. Zero means a sane default.
	QueueDepth int
}

const defaultQueueDepth = 64

// Session is the scan lifecycle owner. All pipeline state hangs off it; the
// command bridge is expected to call the entry points from a single
// goroutine, while event handling arrives on the source's delivery goroutine.
type Session struct {
	source    sensor.Source
	store     *capture.Store
	exporter  *export.Exporter
	presenter Presenter

	throttle  *capture.Throttle
	registry  *mesh.Registry
	estimator *coverage.Estimator
	motion    *coverage.MotionAnalyzer
	messenger *guidance.Messenger

	present *executor
	worker  *executor

	mu          sync.Mutex
	state       State
	unsubscribe func()

	// generation tags in-flight work with the scan it belongs to. Atomic so
	// executor tasks can check it without touching the session mutex.
	generation atomic.Uint64
}

// NewSession wires a session from its collaborators.
func NewSession(c Config) *Session {
	depth := c.QueueDepth
	if depth <= 0 {
		depth = defaultQueueDepth
	}
	s := &Session{
		source:    c.Source,
		store:     c.Store,
		exporter:  c.Exporter,
		presenter: c.Presenter,
		throttle:  capture.NewThrottle(c.Tuning, c.Clock),
		registry:  mesh.NewRegistry(),
		motion:    coverage.NewMotionAnalyzer(c.Tuning),
		present:   newExecutor(depth),
		worker:    newExecutor(depth),
	}
	s.estimator = coverage.NewEstimator(c.Tuning, func(pct int) {
		s.present.submit(func() { s.presenter.CoverageMilestone(pct) })
	})
	s.messenger = guidance.NewMessenger(c.Tuning, c.Clock, func(text string, critical bool) {
		s.present.submit(func() { s.presenter.Guidance(text, critical) })
	})
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start subscribes to the sensing source and enters Scanning. Fails with
// sensor.ErrDeviceUnsupported when the device cannot do scene reconstruction.
// Source calls never happen under the session mutex: event handlers take it,
// so holding it across Subscribe or unsubscribe would invert lock order
// against a source that blocks those on in-flight delivery.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.state == StateScanning {
		s.mu.Unlock()
		return ErrAlreadyScanning
	}
	s.mu.Unlock()

	unsubscribe, err := s.source.Subscribe(s)
	if err != nil {
		return fmt.Errorf("start scan: %w", err)
	}

	s.mu.Lock()
	s.unsubscribe = unsubscribe
	s.setStateLocked(StateScanning)
	s.mu.Unlock()
	return nil
}

// Stop pauses the sensing subscription and enters Stopped. In-flight worker
// tasks are allowed to complete; their results stay in the registry and store
// so Export sees everything that was captured.
func (s *Session) Stop() error {
	s.mu.Lock()
	if s.state != StateScanning {
		s.mu.Unlock()
		return ErrNotScanning
	}
	unsub := s.unsubscribe
	s.unsubscribe = nil
	s.setStateLocked(StateStopped)
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	return nil
}

// Restart discards the session's accumulated state (registry, coverage,
// history, samples on disk) and begins a fresh scan. Ordering matters here:
// the generation advances and the source detaches before anything is reset.
// Unsubscribing waits out any in-flight handler (the Source contract), which
// quiesces the lock-free frame-path state, and the worker barrier waits out
// tasks that passed their generation check before the bump — so by the time
// the resets run, nothing stale can write anymore.
func (s *Session) Restart() error {
	s.mu.Lock()
	unsub := s.unsubscribe
	s.unsubscribe = nil
	s.generation.Add(1)
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	s.worker.barrier()

	s.throttle.Reset()
	s.registry.Clear()
	s.estimator.Reset()
	s.motion.Reset()
	s.messenger.Reset()
	if err := s.store.Clear(); err != nil {
		return fmt.Errorf("restart scan: %w", err)
	}

	unsubscribe, err := s.source.Subscribe(s)
	if err != nil {
		return fmt.Errorf("restart scan: %w", err)
	}

	s.mu.Lock()
	s.unsubscribe = unsubscribe
	s.setStateLocked(StateScanning)
	s.mu.Unlock()
	return nil
}

// Export combines the registry snapshot with the captured samples into an
// artifact and returns its path. Only valid once the scan is stopped; the
// registry is stable then, so running the same export twice yields identical
// mesh text.
func (s *Session) Export(format export.Format) (string, error) {
	s.mu.Lock()
	if s.state == StateScanning {
		s.mu.Unlock()
		return "", ErrSessionActive
	}
	s.mu.Unlock()

	// Drain the worker lane so late fragment results are included.
	s.worker.barrier()

	combined := mesh.Combine(s.registry.Snapshot())
	samples, err := s.store.Samples()
	if err != nil {
		return "", fmt.Errorf("export: list samples: %w", err)
	}
	return s.exporter.Export(combined, samples, format, "")
}

// Close shuts down the executors. The session is unusable afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	unsub := s.unsubscribe
	s.unsubscribe = nil
	if s.state == StateScanning {
		s.setStateLocked(StateStopped)
	}
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	s.worker.close()
	s.present.close()
}

func (s *Session) setStateLocked(st State) {
	s.state = st
	monitoring.Logf("session: %s", st)
	s.present.submit(func() { s.presenter.SessionStateChanged(st) })
}

func (s *Session) currentGeneration() uint64 {
	return s.generation.Load()
}

// HandleFragment implements sensor.Handler. Extraction runs inline because
// the event's buffer views are only valid for the duration of this call;
// registry and coverage updates run on the worker lane, and the
// visualization proxy is delivered to the presenter afterwards, preserving
// per-id order.
func (s *Session) HandleFragment(ev sensor.FragmentEvent) {
	if s.State() != StateScanning {
		return
	}
	gen := s.currentGeneration()

	if ev.Removed {
		s.worker.submit(func() {
			if s.currentGeneration() != gen {
				return
			}
			s.registry.Remove(ev.FragmentID)
			s.present.submit(func() {
				if s.currentGeneration() != gen {
					return
				}
				s.presenter.FragmentRemoved(ev.FragmentID)
			})
		})
		return
	}

	frag, err := mesh.ExtractFragment(ev)
	if err != nil {
		// Buffer faults are contained here: skip this fragment, keep the
		// session alive for every other id.
		monitoring.Logf("session: skipping malformed fragment %s: %v", ev.FragmentID, err)
		return
	}

	s.worker.submit(func() {
		if s.currentGeneration() != gen {
			return
		}
		node := s.registry.Upsert(frag)

		worldPts := make([]geom.Vec3, len(frag.Vertices))
		for i, v := range frag.Vertices {
			worldPts[i] = frag.Pose.Apply(v)
		}
		s.estimator.ObservePoints(worldPts)

		fraction := s.estimator.Fraction()
		fragments := s.registry.Len()
		s.present.submit(func() {
			// Viz from a scan that has since been reset is dropped, not shown.
			if s.currentGeneration() != gen {
				return
			}
			s.presenter.FragmentUpserted(node)
			s.presenter.CoverageChanged(fraction, fragments)
		})
	})
}

// HandleFrame implements sensor.Handler. The throttle, motion history and
// messenger are mutated exclusively from this path; persistence of admitted
// samples is handed to the worker lane.
func (s *Session) HandleFrame(ev sensor.FrameEvent) {
	if s.State() != StateScanning {
		return
	}
	gen := s.currentGeneration()

	if ev.Tracking == sensor.TrackingNotAvailable {
		s.messenger.Advise(msgTrackingLost, true)
	}

	s.motion.Observe(ev.Pose.Translation())
	switch s.motion.Classify() {
	case coverage.MotionCircular:
		s.messenger.Advise(msgCircularPath, false)
	case coverage.MotionRepetitive:
		s.messenger.Advise(msgRepetitivePos, false)
	}
	if s.motion.TiltExcessive(ev.Pose) {
		s.messenger.Advise(msgTiltExcessive, false)
	}

	decision := s.throttle.Evaluate(ev)
	if !decision.Admit {
		switch decision.Reason {
		case capture.RejectLighting:
			s.messenger.Advise(msgPoorLighting, false)
		case capture.RejectMotionBlur:
			s.messenger.Advise(msgMotionBlur, false)
		}
		return
	}

	s.worker.submit(func() {
		if s.currentGeneration() != gen {
			return
		}
		if _, err := s.store.Persist(ev, decision.Quality); err != nil {
			if errors.Is(err, capture.ErrStorageExceeded) {
				s.haltForStorage()
				return
			}
			monitoring.Logf("session: persist sample: %v", err)
		}
	})
}

// haltForStorage transitions to Stopped when the storage ceiling is hit under
// the halt policy, raising a single critical alert. It runs on the worker
// lane, so the detach happens off to the side: waiting for an in-flight
// handler here could deadlock against one blocked submitting to this very
// lane, and the Stopped state already drops whatever still arrives.
func (s *Session) haltForStorage() {
	s.mu.Lock()
	if s.state != StateScanning {
		s.mu.Unlock()
		return
	}
	unsub := s.unsubscribe
	s.unsubscribe = nil
	s.setStateLocked(StateStopped)
	s.mu.Unlock()

	if unsub != nil {
		go unsub()
	}
	s.messenger.Advise(msgStorageLimit, true)
}
