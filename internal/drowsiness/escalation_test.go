package drowsiness

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/drowsiness.monitor/internal/timeutil"
)

func TestLevelFor_Bounds(t *testing.T) {
	b := DefaultBounds()
	tests := []struct {
		elapsed time.Duration
		want    Level
	}{
		{-time.Second, Detecting},
		{0, Detecting},
		{1999 * time.Millisecond, Detecting},
		{2 * time.Second, Fatigue},
		{4999 * time.Millisecond, Fatigue},
		{5 * time.Second, Critical},
		{9999 * time.Millisecond, Critical},
		{10 * time.Second, Emergency},
		{time.Hour, Emergency},
	}
	for _, tt := range tests {
		t.Run(tt.elapsed.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, LevelFor(tt.elapsed, b))
		})
	}
}

func TestLevelFor_Sweep(t *testing.T) {
	b := DefaultBounds()
	for ms := 0; ms <= 12000; ms += 50 {
		d := time.Duration(ms) * time.Millisecond
		got := LevelFor(d, b)
		switch {
		case d >= 10*time.Second:
			assert.Equal(t, Emergency, got, "elapsed %v", d)
		case d >= 5*time.Second:
			assert.Equal(t, Critical, got, "elapsed %v", d)
		case d >= 2*time.Second:
			assert.Equal(t, Fatigue, got, "elapsed %v", d)
		default:
			assert.Equal(t, Detecting, got, "elapsed %v", d)
		}
	}
}

func TestBounds_Validate(t *testing.T) {
	require.NoError(t, DefaultBounds().Validate())

	assert.Error(t, Bounds{}.Validate())
	assert.Error(t, Bounds{Fatigue: 2 * time.Second, Critical: 2 * time.Second, Emergency: 3 * time.Second}.Validate())
	assert.Error(t, Bounds{Fatigue: time.Second, Critical: 5 * time.Second, Emergency: 4 * time.Second}.Validate())
}

func TestEscalation_StartsSafe(t *testing.T) {
	e := NewEscalation(DefaultBounds())
	assert.Equal(t, Safe, e.Level())
	_, active := e.StartedAt()
	assert.False(t, active)
}

func TestEscalation_ClearFrameResets(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	e := NewEscalation(DefaultBounds())

	start := clock.Now()
	assert.Equal(t, Detecting, e.Update(true, start))
	assert.Equal(t, Fatigue, e.Update(true, clock.Advance(3*time.Second)))

	assert.Equal(t, Safe, e.Update(false, clock.Advance(33*time.Millisecond)))
	_, active := e.StartedAt()
	assert.False(t, active)
	assert.Zero(t, e.Elapsed())

	restart := clock.Advance(33 * time.Millisecond)
	assert.Equal(t, Detecting, e.Update(true, restart))
	startedAt, active := e.StartedAt()
	require.True(t, active)
	assert.Equal(t, restart, startedAt)
	assert.Zero(t, e.Elapsed())
}

func TestEscalation_ClockRegressionClampsToZero(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	e := NewEscalation(DefaultBounds())

	e.Update(true, clock.Now())
	assert.Equal(t, Fatigue, e.Update(true, clock.Advance(2500*time.Millisecond)))

	// Clock steps back before the anomaly start.
	got := e.Update(true, clock.Rewind(5*time.Second))
	assert.Equal(t, Detecting, got)
	assert.Equal(t, time.Duration(0), e.Elapsed())

	// The original start is kept, so once the clock catches up the level does too.
	assert.Equal(t, Critical, e.Update(true, clock.Advance(10*time.Second)))
}

func TestEscalation_HoldFreezesState(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	e := NewEscalation(DefaultBounds())

	start := clock.Now()
	e.Update(true, start)
	e.Update(true, clock.Advance(2100*time.Millisecond))
	elapsed := e.Elapsed()

	for i := 0; i < 10; i++ {
		assert.Equal(t, Fatigue, e.Hold())
	}
	assert.Equal(t, elapsed, e.Elapsed())
	startedAt, active := e.StartedAt()
	assert.True(t, active)
	assert.Equal(t, start, startedAt)
}

func TestEscalation_FrameRateIndependent(t *testing.T) {
	for _, fps := range []int{5, 15, 30, 60, 120} {
		t.Run(fmt.Sprintf("%dfps", fps), func(t *testing.T) {
			clock := timeutil.NewMockClock(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
			e := NewEscalation(DefaultBounds())
			start := clock.Now()
			interval := time.Second / time.Duration(fps)

			var firstFatigue time.Duration = -1
			for now := start; now.Sub(start) <= 3*time.Second; now = clock.Advance(interval) {
				if e.Update(true, now) == Fatigue && firstFatigue < 0 {
					firstFatigue = now.Sub(start)
				}
			}
			require.GreaterOrEqual(t, firstFatigue, 2*time.Second)
			assert.Less(t, firstFatigue, 2*time.Second+interval)
		})
	}
}
