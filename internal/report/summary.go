// Package report turns stored session history into statistics and plots.
package report

import (
	"errors"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/drowsiness.monitor/internal/db"
	"github.com/banshee-data/drowsiness.monitor/internal/drowsiness"
)

// ErrNoData is returned when a session has neither samples nor transitions.
var ErrNoData = errors.New("no samples or transitions recorded")

// Stats describes one signal over the face-detected samples.
type Stats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Summary is the digest of one session.
type Summary struct {
	SessionID string        `json:"session_id"`
	Start     time.Time     `json:"start"`
	End       time.Time     `json:"end"`
	Duration  time.Duration `json:"duration_ns"`

	Samples      int     `json:"samples"`
	FaceFraction float64 `json:"face_fraction"`
	// AnomalousFraction is the share of face samples above Safe.
	AnomalousFraction float64 `json:"anomalous_fraction"`

	EAR       Stats `json:"ear"`
	Deviation Stats `json:"deviation"`

	TimeInLevel map[drowsiness.Level]time.Duration `json:"time_in_level_ns"`
	PeakLevel   drowsiness.Level                   `json:"peak_level"`
	Transitions int                                `json:"transitions"`
	// Alerts counts escalations into Fatigue or above.
	Alerts int `json:"alerts"`
	// LongestEpisode is the largest elapsed time reported by a transition.
	LongestEpisode time.Duration `json:"longest_episode_ns"`
}

// Summarise computes session statistics. Both slices must be in
// chronological order, as db.Samples and db.Transitions return them.
func Summarise(samples []db.Sample, transitions []db.Transition) (Summary, error) {
	if len(samples) == 0 && len(transitions) == 0 {
		return Summary{}, ErrNoData
	}

	var s Summary
	s.Samples = len(samples)
	s.TimeInLevel = make(map[drowsiness.Level]time.Duration)
	s.Start, s.End = span(samples, transitions)
	s.Duration = s.End.Sub(s.Start)
	switch {
	case len(samples) > 0:
		s.SessionID = samples[0].SessionID
	default:
		s.SessionID = transitions[0].SessionID
	}

	var ear, dev []float64
	anomalous := 0
	for _, smp := range samples {
		if smp.Level > s.PeakLevel {
			s.PeakLevel = smp.Level
		}
		if !smp.Face {
			continue
		}
		ear = append(ear, smp.EAR)
		dev = append(dev, smp.Deviation)
		if smp.Level > drowsiness.Safe {
			anomalous++
		}
	}
	if len(samples) > 0 {
		s.FaceFraction = float64(len(ear)) / float64(len(samples))
	}
	if len(ear) > 0 {
		s.AnomalousFraction = float64(anomalous) / float64(len(ear))
	}
	s.EAR = describe(ear)
	s.Deviation = describe(dev)

	s.Transitions = len(transitions)
	for _, t := range transitions {
		if t.To > s.PeakLevel {
			s.PeakLevel = t.To
		}
		if t.To >= drowsiness.Fatigue && t.To > t.From {
			s.Alerts++
		}
		if d := time.Duration(t.ElapsedMS) * time.Millisecond; d > s.LongestEpisode {
			s.LongestEpisode = d
		}
	}

	level := drowsiness.Safe
	switch {
	case len(transitions) > 0:
		level = transitions[0].From
	case len(samples) > 0:
		level = samples[0].Level
	}
	cursor := s.Start
	for _, t := range transitions {
		if d := t.At.Sub(cursor); d > 0 {
			s.TimeInLevel[level] += d
		}
		if t.At.After(cursor) {
			cursor = t.At
		}
		level = t.To
	}
	if d := s.End.Sub(cursor); d > 0 {
		s.TimeInLevel[level] += d
	}
	return s, nil
}

func span(samples []db.Sample, transitions []db.Transition) (start, end time.Time) {
	var all []time.Time
	for _, smp := range samples {
		all = append(all, smp.At)
	}
	for _, t := range transitions {
		all = append(all, t.At)
	}
	start, end = all[0], all[0]
	for _, at := range all[1:] {
		if at.Before(start) {
			start = at
		}
		if at.After(end) {
			end = at
		}
	}
	return start, end
}

func describe(x []float64) Stats {
	if len(x) == 0 {
		return Stats{}
	}
	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)

	st := Stats{
		Mean:   stat.Mean(x, nil),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
	}
	if len(x) > 1 {
		st.StdDev = stat.StdDev(x, nil)
	}
	if math.IsNaN(st.StdDev) {
		st.StdDev = 0
	}
	return st
}
