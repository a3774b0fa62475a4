package indicators

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finagent/internal/charts"
	"github.com/ternarybob/finagent/internal/common"
	"github.com/ternarybob/finagent/internal/models"
)

var start = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

// seriesFromCloses builds consecutive daily bars with high/low one unit
// around the close.
func seriesFromCloses(symbol string, from time.Time, closes []float64) models.PriceSeries {
	s := models.PriceSeries{Symbol: symbol}
	for i, c := range closes {
		s.Bars = append(s.Bars, models.PriceBar{
			Date:  from.AddDate(0, 0, i),
			Open:  c,
			High:  c + 1,
			Low:   c - 1,
			Close: c,
		})
	}
	return s
}

func increasing(n int, base float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = base + float64(i)
	}
	return out
}

func flat(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestAlign_IntersectsDates(t *testing.T) {
	stock := seriesFromCloses("AAPL", start, []float64{10, 11, 12, 13, 14})
	bench := seriesFromCloses("^GSPC", start.AddDate(0, 0, 2), []float64{100, 101, 102, 103, 104})

	s, b := Align(stock, bench)

	require.Len(t, s.Bars, 3)
	require.Len(t, b.Bars, 3)
	assert.Equal(t, 12.0, s.Bars[0].Close)
	assert.Equal(t, 100.0, b.Bars[0].Close)
	for i := range s.Bars {
		assert.Equal(t, s.Bars[i].Date, b.Bars[i].Date)
	}
}

func TestAlign_DropsBarsWithoutRange(t *testing.T) {
	stock := seriesFromCloses("AAPL", start, []float64{10, 11, 12})
	stock.Bars[1].High, stock.Bars[1].Low = 0, 0
	bench := seriesFromCloses("^GSPC", start, []float64{100, 101, 102})
	bench.Bars[2].High = bench.Bars[2].Low - 1

	s, b := Align(stock, bench)

	require.Len(t, s.Bars, 1)
	require.Len(t, b.Bars, 1)
	assert.Equal(t, 10.0, s.Bars[0].Close)

	res, err := Compute(stock, seriesFromCloses("^GSPC", start, []float64{100, 101, 102}))
	require.NoError(t, err)
	assert.Equal(t, 9.0, res.Snapshot.Low52Week)
}

func TestCompute_NoData(t *testing.T) {
	_, err := Compute(models.PriceSeries{Symbol: "AAPL"}, seriesFromCloses("^GSPC", start, []float64{1, 2}))
	assert.True(t, common.IsNoData(err))

	_, err = Compute(seriesFromCloses("AAPL", start, []float64{1, 2}), models.PriceSeries{Symbol: "^GSPC"})
	assert.True(t, common.IsNoData(err))

	// Disjoint dates leave nothing to analyse.
	_, err = Compute(
		seriesFromCloses("AAPL", start, []float64{1, 2}),
		seriesFromCloses("^GSPC", start.AddDate(1, 0, 0), []float64{1, 2}),
	)
	assert.True(t, common.IsNoData(err))
}

func TestCompute_IncreasingAgainstFlatBenchmark(t *testing.T) {
	n := 250
	res, err := Compute(
		seriesFromCloses("AAPL", start, increasing(n, 100)),
		seriesFromCloses("^GSPC", start, flat(n, 4000)),
	)
	require.NoError(t, err)
	snap := res.Snapshot

	assert.Equal(t, n, snap.Observations)
	assert.Equal(t, 349.0, snap.CurrentPrice)
	assert.Equal(t, 350.0, snap.High52Week)
	assert.Equal(t, 99.0, snap.Low52Week)

	require.NotNil(t, snap.MA50)
	require.NotNil(t, snap.MA200)
	assert.InDelta(t, 324.5, *snap.MA50, 1e-9)  // mean of 300..349
	assert.InDelta(t, 249.5, *snap.MA200, 1e-9) // mean of 150..349
	assert.Equal(t, models.TrendUpward, snap.Trend)

	require.NotNil(t, snap.Momentum)
	assert.Greater(t, *snap.Momentum, 0.0)
	assert.InDelta(t, 349.0/339.0-1, *snap.Momentum, 1e-12)

	require.NotNil(t, snap.Beta)
	assert.Equal(t, 0.0, *snap.Beta, "flat benchmark guards beta to zero")
	assert.Nil(t, snap.RValue)

	require.NotNil(t, snap.RelativePerf)
	assert.InDelta(t, 349.0/100.0-1, *snap.RelativePerf, 1e-9)

	// A steady one unit rise keeps the close one unit under the 14 day high.
	require.NotNil(t, snap.StochasticK)
	assert.InDelta(t, (349.0-(336.0-1))/((349.0+1)-(336.0-1))*100, *snap.StochasticK, 1e-9)
}

func TestCompute_ShortHistoryTrend(t *testing.T) {
	res, err := Compute(
		seriesFromCloses("AAPL", start, increasing(120, 50)),
		seriesFromCloses("^GSPC", start, increasing(120, 1000)),
	)
	require.NoError(t, err)

	assert.NotNil(t, res.Snapshot.MA50)
	assert.Nil(t, res.Snapshot.MA200)
	assert.Equal(t, models.TrendInsufficient, res.Snapshot.Trend)
}

func TestCompute_DownwardTrend(t *testing.T) {
	closes := make([]float64, 220)
	for i := range closes {
		closes[i] = 500 - float64(i)
	}
	res, err := Compute(
		seriesFromCloses("XYZ", start, closes),
		seriesFromCloses("^GSPC", start, increasing(220, 1000)),
	)
	require.NoError(t, err)
	assert.Equal(t, models.TrendDownward, res.Snapshot.Trend)
	assert.Less(t, *res.Snapshot.Momentum, 0.0)
}

func TestCompute_BetaOfScaledReturns(t *testing.T) {
	n := 60
	bench := make([]float64, n)
	stock := make([]float64, n)
	bench[0], stock[0] = 1000, 50
	for i := 1; i < n; i++ {
		r := 0.01 * math.Sin(float64(i))
		bench[i] = bench[i-1] * (1 + r)
		stock[i] = stock[i-1] * (1 + 1.5*r)
	}

	res, err := Compute(seriesFromCloses("AAPL", start, stock), seriesFromCloses("^GSPC", start, bench))
	require.NoError(t, err)
	snap := res.Snapshot

	require.NotNil(t, snap.Beta)
	assert.InDelta(t, 1.5, *snap.Beta, 1e-9)
	assert.InDelta(t, 0.0, *snap.Alpha, 1e-9)
	assert.InDelta(t, 1.0, *snap.RValue, 1e-9)
	assert.InDelta(t, 0.0, *snap.PValue, 1e-9)
	assert.Len(t, res.Series.StockReturns, n-1)
}

func TestCompute_FlatPriceBandsUndefined(t *testing.T) {
	res, err := Compute(
		seriesFromCloses("FLAT", start, flat(40, 10)),
		seriesFromCloses("^GSPC", start, increasing(40, 1000)),
	)
	require.NoError(t, err)
	assert.Nil(t, res.Snapshot.PercentB, "zero band width leaves %B undefined")
	require.NotNil(t, res.Snapshot.Volatility)
	assert.Equal(t, 0.0, *res.Snapshot.Volatility)
}

func TestCompute_YearToDate(t *testing.T) {
	from := time.Date(2023, 12, 29, 0, 0, 0, 0, time.UTC)
	closes := []float64{90, 95, 100, 104, 110}
	res, err := Compute(seriesFromCloses("AAPL", from, closes), seriesFromCloses("^GSPC", from, increasing(5, 10)))
	require.NoError(t, err)

	// 2023-12-29, 12-30, 12-31, then 2024-01-01 (close 104) and 2024-01-02 (close 110)
	require.NotNil(t, res.Snapshot.YTDChange)
	assert.InDelta(t, 6.0, *res.Snapshot.YTDChange, 1e-12)
	assert.InDelta(t, 6.0/104.0*100, *res.Snapshot.YTDPercent, 1e-12)
}

func TestRollingMean(t *testing.T) {
	out := rollingMean([]float64{1, 2, 3, 4, 5}, 3)
	assert.True(t, math.IsNaN(out[0]))
	assert.True(t, math.IsNaN(out[1]))
	assert.InDelta(t, 2.0, out[2], 1e-12)
	assert.InDelta(t, 3.0, out[3], 1e-12)
	assert.InDelta(t, 4.0, out[4], 1e-12)
}

func TestEWM_AdjustedWeights(t *testing.T) {
	// span 3 gives alpha 0.5
	out := ewm([]float64{1, 2, 3}, 3)
	assert.InDelta(t, 1.0, out[0], 1e-12)
	assert.InDelta(t, 2.5/1.5, out[1], 1e-12)
	assert.InDelta(t, 4.25/1.75, out[2], 1e-12)
}

func TestRollingStd_Sample(t *testing.T) {
	out := rollingStd([]float64{2, 4, 4, 4, 5, 5, 7, 9}, 8)
	assert.InDelta(t, math.Sqrt(32.0/7.0), out[7], 1e-12)
}

type fakePrices struct {
	series map[string]models.PriceSeries
	err    error
}

func (f *fakePrices) History(ctx context.Context, ticker common.Ticker, from, to time.Time) (models.PriceSeries, error) {
	if f.err != nil {
		return models.PriceSeries{}, f.err
	}
	return f.series[ticker.String()], nil
}

func TestAnalyzer_RendersAllCharts(t *testing.T) {
	logger := arbor.NewLogger()
	dir := t.TempDir()
	bench := make([]float64, 260)
	for i := range bench {
		bench[i] = 4000 + 20*math.Sin(float64(i)/5)
	}
	prices := &fakePrices{series: map[string]models.PriceSeries{
		"AAPL":  seriesFromCloses("AAPL", start, increasing(260, 100)),
		"^GSPC": seriesFromCloses("^GSPC", start, bench),
	}}

	analyzer := NewAnalyzer(prices, charts.NewRenderer(logger), dir, logger,
		WithClock(func() time.Time { return start.AddDate(1, 0, 0) }))

	snap, warnings, err := analyzer.Analyze(context.Background(), "aapl", "^GSPC")
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, "AAPL", snap.Ticker)
	assert.Equal(t, "^GSPC", snap.Benchmark)
	require.Len(t, snap.Charts, 8)

	assert.Equal(t, ChartPath(dir, common.ParseTicker("AAPL"), common.ParseTicker("^GSPC"), ChartReturns), snap.Charts[ChartReturns])
	assert.Contains(t, snap.Charts[ChartReturns], "AAPL_vs_GSPC_returns.png")
	for kind, path := range snap.Charts {
		_, err := os.Stat(path)
		assert.NoError(t, err, kind)
	}
}

func TestAnalyzer_ChartFailuresAreWarnings(t *testing.T) {
	logger := arbor.NewLogger()
	blocker := filepath.Join(t.TempDir(), "charts")
	require.NoError(t, os.WriteFile(blocker, []byte("not a directory"), 0644))

	bench := make([]float64, 260)
	for i := range bench {
		bench[i] = 4000 + 20*math.Sin(float64(i)/5)
	}
	prices := &fakePrices{series: map[string]models.PriceSeries{
		"AAPL":  seriesFromCloses("AAPL", start, increasing(260, 100)),
		"^GSPC": seriesFromCloses("^GSPC", start, bench),
	}}

	analyzer := NewAnalyzer(prices, charts.NewRenderer(logger), blocker, logger,
		WithClock(func() time.Time { return start.AddDate(1, 0, 0) }))

	snap, warnings, err := analyzer.Analyze(context.Background(), "AAPL", "^GSPC")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Empty(t, snap.Charts)
	assert.Len(t, warnings, 8)
	assert.Equal(t, 349.0, snap.CurrentPrice)
	assert.NotNil(t, snap.MA200)
}

func TestAnalyzer_WithoutRenderer(t *testing.T) {
	logger := arbor.NewLogger()
	prices := &fakePrices{series: map[string]models.PriceSeries{
		"AAPL":  seriesFromCloses("AAPL", start, increasing(30, 100)),
		"^GSPC": seriesFromCloses("^GSPC", start, increasing(30, 1000)),
	}}

	snap, warnings, err := NewAnalyzer(prices, nil, t.TempDir(), logger).Analyze(context.Background(), "AAPL", "")
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Empty(t, snap.Charts)
	assert.Equal(t, "^GSPC", snap.Benchmark, "empty benchmark falls back to the S&P 500")
}

func TestAnalyzer_EmptyHistory(t *testing.T) {
	logger := arbor.NewLogger()
	prices := &fakePrices{series: map[string]models.PriceSeries{}}

	_, _, err := NewAnalyzer(prices, nil, t.TempDir(), logger).Analyze(context.Background(), "AAPL", "^GSPC")
	assert.True(t, common.IsNoData(err))
}
