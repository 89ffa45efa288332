package drowsiness

import (
	"fmt"
	"time"
)

// Bounds are the inclusive lower elapsed-time bounds of each escalated level.
type Bounds struct {
	Fatigue   time.Duration
	Critical  time.Duration
	Emergency time.Duration
}

// DefaultBounds returns the 2s / 5s / 10s escalation bounds.
func DefaultBounds() Bounds {
	return Bounds{
		Fatigue:   2 * time.Second,
		Critical:  5 * time.Second,
		Emergency: 10 * time.Second,
	}
}

// Validate checks that the bounds are positive and strictly increasing.
func (b Bounds) Validate() error {
	if b.Fatigue <= 0 {
		return fmt.Errorf("fatigue bound must be positive, got %v", b.Fatigue)
	}
	if b.Critical <= b.Fatigue {
		return fmt.Errorf("critical bound %v must exceed fatigue bound %v", b.Critical, b.Fatigue)
	}
	if b.Emergency <= b.Critical {
		return fmt.Errorf("emergency bound %v must exceed critical bound %v", b.Emergency, b.Critical)
	}
	return nil
}

// LevelFor maps how long an anomaly has persisted to its level. Bounds are
// checked highest first so the most severe satisfied level wins. A negative
// elapsed time is treated as zero.
func LevelFor(elapsed time.Duration, b Bounds) Level {
	if elapsed < 0 {
		elapsed = 0
	}
	switch {
	case elapsed >= b.Emergency:
		return Emergency
	case elapsed >= b.Critical:
		return Critical
	case elapsed >= b.Fatigue:
		return Fatigue
	default:
		return Detecting
	}
}

// Escalation tracks how long the anomalous condition has persisted
// continuously. There is no hysteresis: a single clear frame resets it.
type Escalation struct {
	bounds Bounds

	startedAt time.Time
	active    bool
	level     Level
	elapsed   time.Duration
}

// NewEscalation creates a machine in the Safe state.
func NewEscalation(b Bounds) *Escalation {
	return &Escalation{bounds: b, level: Safe}
}

// Update advances the machine by one frame and returns the new level.
func (e *Escalation) Update(anomalous bool, now time.Time) Level {
	if !anomalous {
		e.active = false
		e.startedAt = time.Time{}
		e.elapsed = 0
		e.level = Safe
		return e.level
	}

	if !e.active {
		e.active = true
		e.startedAt = now
	}

	// Clamp rather than go negative if the clock steps backwards.
	e.elapsed = now.Sub(e.startedAt)
	if e.elapsed < 0 {
		e.elapsed = 0
	}
	e.level = LevelFor(e.elapsed, e.bounds)
	return e.level
}

// Hold leaves the machine untouched for a frame that carried no evidence
// either way (no face tracked) and returns the current level.
func (e *Escalation) Hold() Level {
	return e.level
}

// Level returns the current level.
func (e *Escalation) Level() Level {
	return e.level
}

// Elapsed returns the anomaly duration computed at the last Update.
func (e *Escalation) Elapsed() time.Duration {
	return e.elapsed
}

// StartedAt returns when the current anomaly began, if one is in progress.
func (e *Escalation) StartedAt() (time.Time, bool) {
	return e.startedAt, e.active
}
