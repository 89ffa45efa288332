package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/drowsiness.monitor/internal/db"
	"github.com/banshee-data/drowsiness.monitor/internal/drowsiness"
)

var t0 = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func at(sec float64) time.Time {
	return t0.Add(time.Duration(sec * float64(time.Second)))
}

// tenSecondSession: safe for 3s, eyes closed from 3s to 9s (Fatigue at 5s,
// Critical at 8s), open again at 9s, session ends at 10s.
func tenSecondSession() ([]db.Sample, []db.Transition) {
	var samples []db.Sample
	for i := 0; i <= 10; i++ {
		s := db.Sample{SessionID: "s1", Seq: uint64(i), At: at(float64(i)), Face: true, EAR: 0.3, Deviation: 0.05}
		switch {
		case i >= 3 && i < 5:
			s.Level, s.EAR = drowsiness.Detecting, 0.1
		case i >= 5 && i < 8:
			s.Level, s.EAR = drowsiness.Fatigue, 0.1
		case i == 8:
			s.Level, s.EAR = drowsiness.Critical, 0.1
		}
		samples = append(samples, s)
	}
	transitions := []db.Transition{
		{SessionID: "s1", At: at(3), From: drowsiness.Safe, To: drowsiness.Detecting, Cause: drowsiness.CauseEyes},
		{SessionID: "s1", At: at(5), From: drowsiness.Detecting, To: drowsiness.Fatigue, Cause: drowsiness.CauseEyes, ElapsedMS: 2000},
		{SessionID: "s1", At: at(8), From: drowsiness.Fatigue, To: drowsiness.Critical, Cause: drowsiness.CauseEyes, ElapsedMS: 5000},
		{SessionID: "s1", At: at(9), From: drowsiness.Critical, To: drowsiness.Safe, Cause: drowsiness.CauseNone, ElapsedMS: 6000},
	}
	return samples, transitions
}

func TestSummarise(t *testing.T) {
	samples, transitions := tenSecondSession()

	s, err := Summarise(samples, transitions)
	require.NoError(t, err)

	assert.Equal(t, "s1", s.SessionID)
	assert.Equal(t, 10*time.Second, s.Duration)
	assert.Equal(t, 11, s.Samples)
	assert.Equal(t, 1.0, s.FaceFraction)
	assert.InDelta(t, 6.0/11.0, s.AnomalousFraction, 1e-9)
	assert.Equal(t, drowsiness.Critical, s.PeakLevel)
	assert.Equal(t, 4, s.Transitions)
	assert.Equal(t, 2, s.Alerts)
	assert.Equal(t, 6*time.Second, s.LongestEpisode)

	assert.Equal(t, map[drowsiness.Level]time.Duration{
		drowsiness.Safe:      4 * time.Second,
		drowsiness.Detecting: 2 * time.Second,
		drowsiness.Fatigue:   3 * time.Second,
		drowsiness.Critical:  1 * time.Second,
	}, s.TimeInLevel)

	assert.InDelta(t, (5*0.3+6*0.1)/11, s.EAR.Mean, 1e-9)
	assert.Equal(t, 0.1, s.EAR.Min)
	assert.Equal(t, 0.3, s.EAR.Max)
	assert.Equal(t, 0.1, s.EAR.Median)
	assert.Greater(t, s.EAR.StdDev, 0.0)
	assert.InDelta(t, 0.05, s.Deviation.Mean, 1e-9)
	assert.InDelta(t, 0.0, s.Deviation.StdDev, 1e-9)
}

func TestSummarise_FaceLostSamplesExcludedFromSignals(t *testing.T) {
	samples := []db.Sample{
		{SessionID: "s2", At: at(0), Face: true, EAR: 0.3},
		{SessionID: "s2", At: at(1), Face: false, EAR: 0},
		{SessionID: "s2", At: at(2), Face: false, EAR: 0},
		{SessionID: "s2", At: at(3), Face: true, EAR: 0.3},
	}
	s, err := Summarise(samples, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.5, s.FaceFraction)
	assert.Equal(t, 0.3, s.EAR.Mean)
	assert.Equal(t, 0.3, s.EAR.Min)
	assert.Equal(t, map[drowsiness.Level]time.Duration{drowsiness.Safe: 3 * time.Second}, s.TimeInLevel)
}

func TestSummarise_SingleSample(t *testing.T) {
	s, err := Summarise([]db.Sample{{SessionID: "s3", At: t0, Face: true, EAR: 0.25}}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.25, s.EAR.Mean)
	assert.Equal(t, 0.0, s.EAR.StdDev)
	assert.Equal(t, time.Duration(0), s.Duration)
}

func TestSummarise_TransitionsOnly(t *testing.T) {
	_, transitions := tenSecondSession()
	s, err := Summarise(nil, transitions)
	require.NoError(t, err)
	assert.Equal(t, 6*time.Second, s.Duration)
	assert.Equal(t, 0, s.Samples)
	assert.Equal(t, 0.0, s.FaceFraction)
	assert.Equal(t, drowsiness.Critical, s.PeakLevel)
}

func TestSummarise_Empty(t *testing.T) {
	_, err := Summarise(nil, nil)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestPlotSession(t *testing.T) {
	samples, _ := tenSecondSession()
	path := filepath.Join(t.TempDir(), "session.png")

	require.NoError(t, PlotSession(samples, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")), "expected PNG signature")
}

func TestWritePlot(t *testing.T) {
	samples, _ := tenSecondSession()
	var buf bytes.Buffer
	require.NoError(t, WritePlot(&buf, samples, "png"))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))
}

func TestPlotSession_NoSamples(t *testing.T) {
	err := PlotSession(nil, filepath.Join(t.TempDir(), "x.png"))
	assert.ErrorIs(t, err, ErrNoSamples)
}
