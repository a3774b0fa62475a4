package indicators

import (
	"fmt"
	"path/filepath"

	"github.com/ternarybob/finagent/internal/charts"
	"github.com/ternarybob/finagent/internal/common"
)

// Chart kinds, used as keys of IndicatorSnapshot.Charts
const (
	ChartStockPrice = "stock_price"
	ChartReturns    = "benchmark_returns"
	ChartBeta       = "beta"
	ChartBollinger  = "bollinger_bands"
	ChartPercentB   = "percent_b"
	ChartStochastic = "stochastic"
	ChartMomentum   = "momentum"
	ChartMACD       = "macd"
)

// ChartPath returns the file a chart kind is written to
func ChartPath(dir string, ticker, benchmark common.Ticker, kind string) string {
	t := ticker.FileSafe()
	var name string
	switch kind {
	case ChartStockPrice:
		name = t + "_stockprice.png"
	case ChartReturns:
		name = fmt.Sprintf("%s_vs_%s_returns.png", t, benchmark.FileSafe())
	case ChartBeta:
		name = t + "_beta.png"
	case ChartBollinger:
		name = t + "_bollinger_bands.png"
	case ChartPercentB:
		name = t + "_percentB.png"
	case ChartStochastic:
		name = t + "_stochastic.png"
	case ChartMomentum:
		name = t + "_momentum.png"
	case ChartMACD:
		name = t + "_MACD.png"
	default:
		name = t + "_" + kind + ".png"
	}
	return filepath.Join(dir, name)
}

// renderCharts draws every indicator group. Each failure is logged and added
// to the warnings; the remaining charts are still drawn.
func (a *Analyzer) renderCharts(res *Result, ticker, benchmark common.Ticker) (map[string]string, []string) {
	s := res.Series
	tk, bk := ticker.String(), benchmark.String()
	paths := make(map[string]string)
	var warnings []string

	draw := func(kind string, render func(path string) error) {
		path := ChartPath(a.chartsDir, ticker, benchmark, kind)
		if err := render(path); err != nil {
			a.logger.Warn().Err(err).Str("ticker", tk).Str("chart", kind).Msg("Failed to render chart")
			warnings = append(warnings, fmt.Sprintf("chart %s not rendered: %v", kind, err))
			return
		}
		paths[kind] = path
	}

	draw(ChartStockPrice, func(path string) error {
		return a.renderer.RenderTimeChart(path, charts.TimeChart{
			Title:  tk + " Stock Price and Moving Averages",
			YLabel: "Price ($)",
			Wide:   true,
			Lines: []charts.Line{
				{Name: "Close Price", Dates: s.Dates, Values: s.Close, Color: charts.Blue},
				{Name: "50-day MA", Dates: s.Dates, Values: s.MA50, Color: charts.Orange},
				{Name: "200-day MA", Dates: s.Dates, Values: s.MA200, Color: charts.Green},
				{Name: fmt.Sprintf("EMA (%d)", EMASpan), Dates: s.Dates, Values: s.EMA20, Color: charts.Red},
			},
		})
	})

	draw(ChartReturns, func(path string) error {
		return a.renderer.RenderTimeChart(path, charts.TimeChart{
			Title:  fmt.Sprintf("%s vs %s Cumulative Returns", tk, bk),
			YLabel: "Cumulative Returns",
			Wide:   true,
			Lines: []charts.Line{
				{Name: tk + " Cumulative Returns", Dates: s.ReturnDates, Values: s.StockCumulative, Color: charts.Blue},
				{Name: bk + " Cumulative Returns", Dates: s.ReturnDates, Values: s.BenchCumulative, Color: charts.Orange},
			},
		})
	})

	draw(ChartBeta, func(path string) error {
		return a.renderer.RenderScatter(path, charts.ScatterChart{
			Title:        fmt.Sprintf("%s vs %s Daily Returns", tk, bk),
			XLabel:       bk + " Daily Returns",
			YLabel:       tk + " Daily Returns",
			X:            s.BenchmarkReturns,
			Y:            s.StockReturns,
			ShowFit:      true,
			FitSlope:     s.Beta,
			FitIntercept: s.Alpha,
			FitLabel:     fmt.Sprintf("Beta = %.2f", s.Beta),
		})
	})

	draw(ChartBollinger, func(path string) error {
		return a.renderer.RenderTimeChart(path, charts.TimeChart{
			Title:  tk + " Bollinger Bands",
			YLabel: "Price ($)",
			Wide:   true,
			Band:   &charts.Band{Dates: s.Dates, Upper: s.UpperBand, Lower: s.LowerBand},
			Lines: []charts.Line{
				{Name: "Close Price", Dates: s.Dates, Values: s.Close, Color: charts.Blue},
				{Name: "Upper Bollinger Band", Dates: s.Dates, Values: s.UpperBand, Color: charts.Cyan, Dashed: true},
				{Name: "Lower Bollinger Band", Dates: s.Dates, Values: s.LowerBand, Color: charts.Cyan, Dashed: true},
			},
		})
	})

	draw(ChartPercentB, func(path string) error {
		return a.renderer.RenderTimeChart(path, charts.TimeChart{
			Title:  tk + " Bollinger Bands %B",
			YLabel: "PercentB",
			Lines:  []charts.Line{{Name: "%B", Dates: s.Dates, Values: s.PercentB, Color: charts.Purple}},
			Thresholds: []charts.Threshold{
				{Label: "Overbought Threshold", Value: 1, Color: charts.Red},
				{Label: "Oversold Threshold", Value: 0, Color: charts.Green},
			},
		})
	})

	draw(ChartStochastic, func(path string) error {
		return a.renderer.RenderTimeChart(path, charts.TimeChart{
			Title:  tk + " Stochastic Oscillator",
			YLabel: "Stochastic %K",
			Lines:  []charts.Line{{Name: "Stochastic %K", Dates: s.Dates, Values: s.StochasticK, Color: charts.Brown}},
			Thresholds: []charts.Threshold{
				{Label: "Overbought Threshold", Value: 80, Color: charts.Red},
				{Label: "Oversold Threshold", Value: 20, Color: charts.Green},
			},
		})
	})

	draw(ChartMomentum, func(path string) error {
		return a.renderer.RenderTimeChart(path, charts.TimeChart{
			Title:  tk + " Momentum",
			YLabel: "Momentum",
			Lines:  []charts.Line{{Name: "Momentum", Dates: s.Dates, Values: s.Momentum, Color: charts.Orange}},
		})
	})

	draw(ChartMACD, func(path string) error {
		hist := make([]float64, len(s.MACD))
		for i := range s.MACD {
			hist[i] = s.MACD[i] - s.MACDSignal[i]
		}
		return a.renderer.RenderTimeChart(path, charts.TimeChart{
			Title:     tk + " MACD",
			YLabel:    "MACD",
			Wide:      true,
			Histogram: &charts.Line{Name: "MACD Histogram", Dates: s.Dates, Values: hist},
			Lines: []charts.Line{
				{Name: "MACD Line", Dates: s.Dates, Values: s.MACD, Color: charts.Blue},
				{Name: "Signal Line", Dates: s.Dates, Values: s.MACDSignal, Color: charts.Red},
			},
		})
	})

	return paths, warnings
}
