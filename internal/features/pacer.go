package features

import (
	"context"
	"time"

	"github.com/banshee-data/drowsiness.monitor/internal/timeutil"
)

// DefaultMaxGap caps a single replay pause so a gap in a recording does not
// stall the replay.
const DefaultMaxGap = 2 * time.Second

// Pacer replays recorded frames at their original rate by sleeping the gap
// between consecutive record timestamps.
type Pacer struct {
	clock  timeutil.Clock
	maxGap time.Duration
	last   time.Time
}

// NewPacer returns a pacer. maxGap <= 0 uses DefaultMaxGap.
func NewPacer(clock timeutil.Clock, maxGap time.Duration) *Pacer {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if maxGap <= 0 {
		maxGap = DefaultMaxGap
	}
	return &Pacer{clock: clock, maxGap: maxGap}
}

// Wait sleeps until ts is due relative to the previous timestamp. Backwards
// or repeated timestamps do not sleep.
func (p *Pacer) Wait(ctx context.Context, ts time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	prev := p.last
	p.last = ts
	if prev.IsZero() {
		return nil
	}
	gap := ts.Sub(prev)
	if gap <= 0 {
		return nil
	}
	if gap > p.maxGap {
		gap = p.maxGap
	}
	p.clock.Sleep(gap)
	return ctx.Err()
}
