package charts

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func dates(n int) []time.Time {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.AddDate(0, 0, i)
	}
	return out
}

func assertPNG(t *testing.T, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(data), 8)
	assert.Equal(t, "\x89PNG", string(data[:4]))
}

func TestRenderTimeChart(t *testing.T) {
	r := NewRenderer(arbor.NewLogger())
	d := dates(30)
	values := make([]float64, 30)
	upper := make([]float64, 30)
	lower := make([]float64, 30)
	for i := range values {
		values[i] = 100 + float64(i)
		upper[i] = values[i] + 5
		lower[i] = values[i] - 5
	}
	values[0] = math.NaN()

	path := filepath.Join(t.TempDir(), "nested", "price.png")
	err := r.RenderTimeChart(path, TimeChart{
		Title:      "Price",
		YLabel:     "Price ($)",
		Lines:      []Line{{Name: "Close", Dates: d, Values: values, Color: Blue}},
		Thresholds: []Threshold{{Label: "Ceiling", Value: 120, Color: Red}},
		Band:       &Band{Dates: d, Upper: upper, Lower: lower},
		Histogram:  &Line{Name: "Hist", Dates: d, Values: values},
		Wide:       true,
	})
	require.NoError(t, err)
	assertPNG(t, path)
}

func TestRenderTimeChart_NoData(t *testing.T) {
	r := NewRenderer(arbor.NewLogger())
	path := filepath.Join(t.TempDir(), "empty.png")

	err := r.RenderTimeChart(path, TimeChart{
		Title: "Empty",
		Lines: []Line{{Name: "nan", Dates: dates(2), Values: []float64{math.NaN(), math.NaN()}}},
	})

	assert.ErrorIs(t, err, ErrNoData)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRenderScatter(t *testing.T) {
	r := NewRenderer(arbor.NewLogger())
	x := []float64{-0.02, -0.01, 0, 0.01, 0.02}
	y := []float64{-0.03, -0.01, 0.001, 0.012, 0.031}

	path := filepath.Join(t.TempDir(), "beta.png")
	err := r.RenderScatter(path, ScatterChart{
		Title:    "Daily Returns",
		XLabel:   "Benchmark",
		YLabel:   "Stock",
		X:        x,
		Y:        y,
		ShowFit:  true,
		FitSlope: 1.5, FitLabel: "Beta = 1.50",
	})
	require.NoError(t, err)
	assertPNG(t, path)
}
