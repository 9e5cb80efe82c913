package timeutil

import (
	"testing"
	"time"
)

func TestMockClock_AdvanceAndSince(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	if !c.Now().Equal(start) {
		t.Errorf("Now = %v, want %v", c.Now(), start)
	}

	c.Advance(3 * time.Second)
	if got := c.Since(start); got != 3*time.Second {
		t.Errorf("Since = %v, want 3s", got)
	}

	c.Sleep(2 * time.Second)
	if got := c.Since(start); got != 5*time.Second {
		t.Errorf("Since after Sleep = %v, want 5s", got)
	}

	later := start.Add(time.Minute)
	c.Set(later)
	if !c.Now().Equal(later) {
		t.Errorf("Now after Set = %v, want %v", c.Now(), later)
	}
}

func TestRealClock_Monotonic(t *testing.T) {
	c := RealClock{}
	a := c.Now()
	b := c.Now()
	if b.Before(a) {
		t.Errorf("real clock went backwards: %v then %v", a, b)
	}
	if c.Since(a) < 0 {
		t.Error("Since returned negative duration")
	}
}
