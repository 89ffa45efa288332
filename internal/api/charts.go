package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/drowsiness.monitor/internal/db"
	"github.com/banshee-data/drowsiness.monitor/internal/report"
	"github.com/banshee-data/drowsiness.monitor/internal/security"
)

// echartsAssetsHost serves the echarts javascript bundle.
const echartsAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// timelineChart plots EAR, droop deviation and severity level per stored
// sample. Face-lost samples leave gaps in the signal series.
func timelineChart(id string, samples []db.Sample, transitions []db.Transition) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Drowsiness Timeline", Theme: "dark", Width: "1200px", Height: "600px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Session Timeline", Subtitle: fmt.Sprintf("session=%s samples=%d transitions=%d", id, len(samples), len(transitions))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "value", NameLocation: "middle", NameGap: 30}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)

	xs := make([]string, 0, len(samples))
	ear := make([]opts.LineData, 0, len(samples))
	dev := make([]opts.LineData, 0, len(samples))
	level := make([]opts.LineData, 0, len(samples))
	if len(samples) > 0 {
		t0 := samples[0].At
		for _, s := range samples {
			xs = append(xs, fmt.Sprintf("%.1f", s.At.Sub(t0).Seconds()))
			level = append(level, opts.LineData{Value: int(s.Level), Name: s.Level.String()})
			if !s.Face {
				ear = append(ear, opts.LineData{Value: "-"})
				dev = append(dev, opts.LineData{Value: "-"})
				continue
			}
			ear = append(ear, opts.LineData{Value: s.EAR})
			dev = append(dev, opts.LineData{Value: s.Deviation})
		}
	}

	line.SetXAxis(xs).
		AddSeries("EAR", ear).
		AddSeries("droop deviation", dev).
		AddSeries("level", level)
	return line
}

func (s *Server) showTimelineChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if !s.requireDB(w) {
		return
	}
	id, ok := s.sessionParam(w, r)
	if !ok {
		return
	}
	samples, transitions, err := s.history(id)
	if errors.Is(err, db.ErrSessionNotFound) {
		writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load session: %v", err))
		return
	}

	var buf bytes.Buffer
	if err := timelineChart(id, samples, transitions).Render(&buf); err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// showPlot serves the gonum/plot PNG that cmd/report writes to disk.
func (s *Server) showPlot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if !s.requireDB(w) {
		return
	}
	id, ok := s.sessionParam(w, r)
	if !ok {
		return
	}
	samples, _, err := s.history(id)
	if errors.Is(err, db.ErrSessionNotFound) {
		writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load session: %v", err))
		return
	}

	var buf bytes.Buffer
	if err := report.WritePlot(&buf, samples, "png"); err != nil {
		if errors.Is(err, report.ErrNoSamples) {
			writeJSONError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render plot: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=\"session-%s.png\"", security.SanitizeFilename(id)))
	_, _ = w.Write(buf.Bytes())
}
