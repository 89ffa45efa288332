package features

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/drowsiness.monitor/internal/monitoring"
	"github.com/banshee-data/drowsiness.monitor/internal/timeutil"
)

func muteLogs(t *testing.T) {
	t.Helper()
	original := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = original })
}

func collect(t *testing.T, r *Reader) []Input {
	t.Helper()
	out := make(chan Input, 64)
	require.NoError(t, r.Run(context.Background(), out))
	close(out)
	var got []Input
	for in := range out {
		got = append(got, in)
	}
	return got
}

func TestReader_SkipsMalformedLines(t *testing.T) {
	muteLogs(t)
	src := strings.NewReader(strings.Join([]string{
		`# recorded 2026-03-01`,
		`{"ts":100.0,"ear":0.3,"droop":1.0}`,
		``,
		`garbage`,
		`{"cmd":"calibrate"}`,
		`{"ts":100.1,"face":false}`,
		`{"ear":0.1}`,
	}, "\n"))

	r := NewReader(src, timeutil.NewMockClock(epoch), nil)
	got := collect(t, r)

	require.Len(t, got, 3)
	assert.True(t, got[0].Frame.FaceDetected)
	assert.Equal(t, CommandCalibrate, got[1].Command)
	assert.False(t, got[2].Frame.FaceDetected)

	decoded, skipped := r.Counts()
	assert.Equal(t, 3, decoded)
	assert.Equal(t, 2, skipped)
}

func TestReader_QuitEndsStream(t *testing.T) {
	src := strings.NewReader("{\"ear\":0.3,\"droop\":1}\n{\"cmd\":\"quit\"}\n{\"ear\":0.3,\"droop\":1}\n")
	got := collect(t, NewReader(src, timeutil.NewMockClock(epoch), nil))
	assert.Len(t, got, 1)
}

func TestReader_Paced(t *testing.T) {
	clock := timeutil.NewMockClock(epoch)
	src := strings.NewReader(strings.Join([]string{
		`{"ts":100.0,"ear":0.3,"droop":1}`,
		`{"ts":100.5,"ear":0.3,"droop":1}`,
		`{"cmd":"calibrate"}`,
		`{"ts":100.5,"ear":0.3,"droop":1}`,
		`{"ts":130.0,"ear":0.3,"droop":1}`,
	}, "\n"))

	got := collect(t, NewReader(src, clock, NewPacer(clock, 0)))
	require.Len(t, got, 5)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, DefaultMaxGap}, clock.Sleeps())
}

func TestReader_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := strings.NewReader(`{"ear":0.3,"droop":1}` + "\n")
	err := NewReader(src, timeutil.NewMockClock(epoch), nil).Run(ctx, make(chan Input))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPacer_IgnoresBackwardsTime(t *testing.T) {
	clock := timeutil.NewMockClock(epoch)
	p := NewPacer(clock, time.Second)
	ctx := context.Background()

	require.NoError(t, p.Wait(ctx, epoch))
	require.NoError(t, p.Wait(ctx, epoch.Add(-time.Second)))
	require.NoError(t, p.Wait(ctx, epoch.Add(-900*time.Millisecond)))
	assert.Equal(t, []time.Duration{100 * time.Millisecond}, clock.Sleeps())
}
