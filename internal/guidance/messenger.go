// Package guidance rate-limits the advisory messages shown to the user while
// scanning.
//
// The pipeline generates advice from several independent sources (throttle
// rejections, motion heuristics, coverage milestones, tracking state), so
// unfiltered output would flood the UI. The messenger suppresses messages
// that repeat, rephrase, or arrive too soon after the previous advice, while
// letting critical messages through unconditionally.
package guidance

import (
	"sync"
	"time"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"github.com/banshee-data/surface.capture/internal/config"
	"github.com/banshee-data/surface.capture/internal/monitoring"
	"github.com/banshee-data/surface.capture/internal/timeutil"
)

// Emitter receives the messages that pass the filter. Called synchronously
// from Advise; implementations must hand off to the presentation context
// rather than block.
type Emitter func(text string, critical bool)

// Messenger is the guidance state machine. State is deliberately tiny: the
// last emitted text and the time of the last non-critical emission.
type Messenger struct {
	mu          sync.Mutex
	clock       timeutil.Clock
	emit        Emitter
	minInterval time.Duration
	minDistance float64
	lev         *metrics.Levenshtein

	lastText string
	lastEmit time.Time
}

// NewMessenger creates a messenger. emit may be nil, which silently drops
// accepted messages (useful in tests that only check the decision).
func NewMessenger(cfg *config.TuningConfig, clock timeutil.Clock, emit Emitter) *Messenger {
	return &Messenger{
		clock:       clock,
		emit:        emit,
		minInterval: cfg.GetMessageMinInterval(),
		minDistance: cfg.GetMessageDistanceMin(),
		lev:         metrics.NewLevenshtein(),
	}
}

// Advise offers a message to the user. Critical messages always emit.
// A non-critical message emits only when the minimum interval has elapsed
// since the last non-critical emission, the text differs from the last
// emitted message, and the normalized edit distance to it is at least the
// configured minimum. Returns whether the message was emitted.
func (m *Messenger) Advise(text string, critical bool) bool {
	if text == "" {
		return false
	}

	m.mu.Lock()
	if !critical {
		if !m.lastEmit.IsZero() && m.clock.Since(m.lastEmit) < m.minInterval {
			m.mu.Unlock()
			return false
		}
		if text == m.lastText {
			m.mu.Unlock()
			return false
		}
		if m.lastText != "" {
			distance := 1 - strutil.Similarity(text, m.lastText, m.lev)
			if distance < m.minDistance {
				monitoring.Debugf("guidance: suppressed near-duplicate %q (distance %.2f)", text, distance)
				m.mu.Unlock()
				return false
			}
		}
		m.lastEmit = m.clock.Now()
	}
	m.lastText = text
	emit := m.emit
	m.mu.Unlock()

	if emit != nil {
		emit(text, critical)
	}
	return true
}

// Reset clears the message state. Called on session restart so the first
// advice of a new scan is never suppressed by the old one.
func (m *Messenger) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastText = ""
	m.lastEmit = time.Time{}
}
