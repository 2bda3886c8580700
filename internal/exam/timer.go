package exam

import (
	"fmt"
	"sync"
	"time"
)

// Phase is the urgency level of the countdown.
type Phase string

const (
	PhaseNormal Phase = "normal"
	PhaseWarn   Phase = "warn"
	PhaseDanger Phase = "danger"
)

// Phase thresholds on the remaining time.
const (
	WarnAt   = 3 * time.Minute
	DangerAt = 1 * time.Minute
)

// Timer is a pausable countdown. The zero value is stopped; use NewTimer to
// set a clock.
type Timer struct {
	mu        sync.Mutex
	now       func() time.Time
	running   bool
	paused    bool
	endAt     time.Time
	remaining time.Duration
}

// NewTimer returns a stopped timer reading time from now, or time.Now when nil.
func NewTimer(now func() time.Time) *Timer {
	if now == nil {
		now = time.Now
	}
	return &Timer{now: now}
}

// Start (re)starts the countdown from d.
func (t *Timer) Start(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = true
	t.paused = false
	t.remaining = max(d, 0)
	t.endAt = t.now().Add(t.remaining)
}

// Stop halts the countdown and clears it.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
	t.paused = false
	t.remaining = 0
	t.endAt = time.Time{}
}

// Pause freezes the remaining time. No-op unless running and not paused.
func (t *Timer) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running || t.paused {
		return
	}
	t.remaining = max(t.endAt.Sub(t.now()), 0)
	t.paused = true
}

// Resume continues a paused countdown.
func (t *Timer) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running || !t.paused {
		return
	}
	t.paused = false
	t.endAt = t.now().Add(t.remaining)
}

// Toggle pauses a running countdown or resumes a paused one.
func (t *Timer) Toggle() {
	if t.Paused() {
		t.Resume()
	} else {
		t.Pause()
	}
}

// Running reports whether Start was called and Stop was not.
func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Paused reports whether the countdown is frozen.
func (t *Timer) Paused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.paused
}

// Remaining returns the time left, never negative.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remainingLocked()
}

func (t *Timer) remainingLocked() time.Duration {
	if !t.running {
		return 0
	}
	if t.paused {
		return t.remaining
	}
	return max(t.endAt.Sub(t.now()), 0)
}

// Expired reports whether a running countdown reached zero.
func (t *Timer) Expired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running && t.remainingLocked() == 0
}

// Deadline returns when the countdown ends. ok is false while stopped or paused.
func (t *Timer) Deadline() (deadline time.Time, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running || t.paused {
		return time.Time{}, false
	}
	return t.endAt, true
}

// Phase classifies the remaining time. A stopped timer is normal.
func (t *Timer) Phase() Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return PhaseNormal
	}
	return PhaseFor(t.remainingLocked())
}

// PhaseFor classifies a remaining duration.
func PhaseFor(d time.Duration) Phase {
	switch {
	case d <= DangerAt:
		return PhaseDanger
	case d <= WarnAt:
		return PhaseWarn
	default:
		return PhaseNormal
	}
}

// String renders the remaining time as mm:ss, rounded up to the second.
func (t *Timer) String() string {
	return FormatClock(t.Remaining())
}

// FormatClock renders d as mm:ss.
func FormatClock(d time.Duration) string {
	s := int((d + time.Second - 1) / time.Second)
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}
