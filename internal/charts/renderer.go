// Package charts renders PNG charts for the fundamental and technical
// analyses using gonum/plot.
package charts

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// ErrNoData is returned when a chart has no finite point to draw
var ErrNoData = errors.New("no finite data to plot")

// Palette
var (
	Blue   = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	Orange = color.RGBA{R: 255, G: 127, B: 14, A: 255}
	Green  = color.RGBA{R: 44, G: 160, B: 44, A: 255}
	Red    = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	Purple = color.RGBA{R: 148, G: 103, B: 189, A: 255}
	Brown  = color.RGBA{R: 140, G: 86, B: 75, A: 255}
	Cyan   = color.RGBA{R: 23, G: 190, B: 207, A: 255}
	Gray   = color.RGBA{R: 127, G: 127, B: 127, A: 255}

	bandFill = color.RGBA{R: 23, G: 190, B: 207, A: 30}
)

// Line is one named series over time. NaN values are skipped.
type Line struct {
	Name   string
	Dates  []time.Time
	Values []float64
	Color  color.Color
	Dashed bool
}

// Threshold is a labelled horizontal reference line
type Threshold struct {
	Label string
	Value float64
	Color color.Color
}

// Band fills the area between two series
type Band struct {
	Dates []time.Time
	Upper []float64
	Lower []float64
}

// TimeChart is a chart with a date x axis
type TimeChart struct {
	Title      string
	YLabel     string
	Lines      []Line
	Thresholds []Threshold
	Band       *Band
	Histogram  *Line // drawn as vertical bars from zero
	Wide       bool  // 14x7 inches when true, otherwise 14x4
}

// ScatterChart plots y against x with an optional fitted line
type ScatterChart struct {
	Title        string
	XLabel       string
	YLabel       string
	X            []float64
	Y            []float64
	FitLabel     string
	FitSlope     float64
	FitIntercept float64
	ShowFit      bool
}

// Renderer writes charts to PNG files
type Renderer struct {
	logger arbor.ILogger
}

// NewRenderer creates a chart renderer
func NewRenderer(logger arbor.ILogger) *Renderer {
	return &Renderer{logger: logger}
}

// RenderTimeChart draws c and saves it to path, creating parent directories.
func (r *Renderer) RenderTimeChart(path string, c TimeChart) error {
	p := plot.New()
	p.Title.Text = c.Title
	p.X.Label.Text = "Date"
	p.Y.Label.Text = c.YLabel
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02"}
	p.Legend.Top = true
	p.Legend.Left = true
	p.Add(plotter.NewGrid())

	drawn := 0

	if c.Band != nil {
		if poly, err := bandPolygon(*c.Band); err == nil {
			poly.Color = bandFill
			poly.LineStyle.Width = 0
			p.Add(poly)
		}
	}

	if c.Histogram != nil {
		for _, seg := range histogramSegments(*c.Histogram) {
			p.Add(seg)
			drawn++
		}
	}

	for _, l := range c.Lines {
		pts := timeXYs(l.Dates, l.Values)
		if len(pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("failed to build line %q: %w", l.Name, err)
		}
		styleLine(line, l.Color, l.Dashed)
		p.Add(line)
		p.Legend.Add(l.Name, line)
		drawn++
	}

	if drawn == 0 {
		return ErrNoData
	}

	if len(c.Thresholds) > 0 {
		xmin, xmax := p.X.Min, p.X.Max
		for _, th := range c.Thresholds {
			line, err := plotter.NewLine(plotter.XYs{{X: xmin, Y: th.Value}, {X: xmax, Y: th.Value}})
			if err != nil {
				continue
			}
			styleLine(line, th.Color, true)
			p.Add(line)
			p.Legend.Add(th.Label, line)
		}
	}

	height := 4 * vg.Inch
	if c.Wide {
		height = 7 * vg.Inch
	}
	return save(p, 14*vg.Inch, height, path)
}

// RenderScatter draws c and saves it to path, creating parent directories.
func (r *Renderer) RenderScatter(path string, c ScatterChart) error {
	pts := make(plotter.XYs, 0, len(c.X))
	xmin, xmax := math.Inf(1), math.Inf(-1)
	for i := range c.X {
		if i >= len(c.Y) || !finite(c.X[i]) || !finite(c.Y[i]) {
			continue
		}
		pts = append(pts, plotter.XY{X: c.X[i], Y: c.Y[i]})
		xmin = math.Min(xmin, c.X[i])
		xmax = math.Max(xmax, c.X[i])
	}
	if len(pts) == 0 {
		return ErrNoData
	}

	p := plot.New()
	p.Title.Text = c.Title
	p.X.Label.Text = c.XLabel
	p.Y.Label.Text = c.YLabel
	p.Add(plotter.NewGrid())

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("failed to build scatter: %w", err)
	}
	scatter.GlyphStyle.Color = color.RGBA{R: 31, G: 119, B: 180, A: 128}
	scatter.GlyphStyle.Radius = vg.Points(2)
	p.Add(scatter)

	if c.ShowFit && finite(c.FitSlope) && finite(c.FitIntercept) {
		fit, err := plotter.NewLine(plotter.XYs{
			{X: xmin, Y: c.FitIntercept + c.FitSlope*xmin},
			{X: xmax, Y: c.FitIntercept + c.FitSlope*xmax},
		})
		if err == nil {
			styleLine(fit, Red, false)
			p.Add(fit)
			p.Legend.Add(c.FitLabel, fit)
		}
	}

	return save(p, 7*vg.Inch, 7*vg.Inch, path)
}

func save(p *plot.Plot, w, h vg.Length, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create chart directory: %w", err)
	}
	if err := p.Save(w, h, path); err != nil {
		return fmt.Errorf("failed to save chart %s: %w", path, err)
	}
	return nil
}

func styleLine(line *plotter.Line, c color.Color, dashed bool) {
	if c == nil {
		c = Blue
	}
	line.Color = c
	line.Width = vg.Points(1.2)
	if dashed {
		line.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
	}
}

func timeXYs(dates []time.Time, values []float64) plotter.XYs {
	pts := make(plotter.XYs, 0, len(values))
	for i, v := range values {
		if i >= len(dates) || !finite(v) {
			continue
		}
		pts = append(pts, plotter.XY{X: float64(dates[i].Unix()), Y: v})
	}
	return pts
}

func bandPolygon(b Band) (*plotter.Polygon, error) {
	upper := timeXYs(b.Dates, b.Upper)
	var lower plotter.XYs
	for i := len(b.Lower) - 1; i >= 0; i-- {
		if i < len(b.Dates) && finite(b.Lower[i]) && finite(b.Upper[i]) {
			lower = append(lower, plotter.XY{X: float64(b.Dates[i].Unix()), Y: b.Lower[i]})
		}
	}
	if len(upper) == 0 || len(lower) == 0 {
		return nil, ErrNoData
	}
	return plotter.NewPolygon(append(upper, lower...))
}

func histogramSegments(h Line) []*plotter.Line {
	var segs []*plotter.Line
	for i, v := range h.Values {
		if i >= len(h.Dates) || !finite(v) {
			continue
		}
		x := float64(h.Dates[i].Unix())
		seg, err := plotter.NewLine(plotter.XYs{{X: x, Y: 0}, {X: x, Y: v}})
		if err != nil {
			continue
		}
		styleLine(seg, Gray, false)
		seg.Width = vg.Points(1.5)
		segs = append(segs, seg)
	}
	return segs
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
