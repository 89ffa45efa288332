package report

import (
	"errors"
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/drowsiness.monitor/internal/db"
)

// ErrNoSamples is returned when there is nothing to plot.
var ErrNoSamples = errors.New("no samples to plot")

var (
	earColour       = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	deviationColour = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	levelColour     = color.RGBA{R: 127, G: 127, B: 127, A: 255}
)

const (
	plotWidth  = 14 * vg.Inch
	plotHeight = 6 * vg.Inch
)

// newSessionPlot builds a plot of EAR, droop deviation and severity level
// against seconds since the first sample. Face-lost samples are skipped for
// the signal lines but still contribute to the level line.
func newSessionPlot(samples []db.Sample) (*plot.Plot, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Session %s", samples[0].SessionID)
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Value"
	p.Add(plotter.NewGrid())

	t0 := samples[0].At
	earPts := make(plotter.XYs, 0, len(samples))
	devPts := make(plotter.XYs, 0, len(samples))
	levelPts := make(plotter.XYs, 0, len(samples))
	for _, s := range samples {
		x := s.At.Sub(t0).Seconds()
		// Level is scaled to [0,1] so it shares the signal axis.
		levelPts = append(levelPts, plotter.XY{X: x, Y: float64(s.Level) / 4})
		if !s.Face {
			continue
		}
		earPts = append(earPts, plotter.XY{X: x, Y: s.EAR})
		devPts = append(devPts, plotter.XY{X: x, Y: s.Deviation})
	}

	lines := []struct {
		name   string
		pts    plotter.XYs
		colour color.Color
	}{
		{"EAR", earPts, earColour},
		{"Droop deviation", devPts, deviationColour},
		{"Level (/4)", levelPts, levelColour},
	}
	for _, l := range lines {
		if len(l.pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(l.pts)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s line: %w", l.name, err)
		}
		line.Color = l.colour
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(l.name, line)
	}
	p.Legend.Top = true
	return p, nil
}

// PlotSession writes a PNG plot of the samples to path.
func PlotSession(samples []db.Sample, path string) error {
	p, err := newSessionPlot(samples)
	if err != nil {
		return err
	}
	if err := p.Save(plotWidth, plotHeight, path); err != nil {
		return fmt.Errorf("failed to save plot: %w", err)
	}
	return nil
}

// WritePlot renders the plot in the given format ("png", "svg", ...) to w.
func WritePlot(w io.Writer, samples []db.Sample, format string) error {
	p, err := newSessionPlot(samples)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(plotWidth, plotHeight, format)
	if err != nil {
		return fmt.Errorf("failed to render plot: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}
