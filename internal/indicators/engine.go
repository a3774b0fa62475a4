// Package indicators computes technical indicators for a stock against a
// benchmark and renders the indicator charts.
package indicators

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ternarybob/finagent/internal/common"
	"github.com/ternarybob/finagent/internal/models"
)

// Indicator windows
const (
	ShortMAWindow    = 50
	LongMAWindow     = 200
	EMASpan          = 20
	BollingerWindow  = 20
	BollingerWidth   = 2.0
	StochasticWindow = 14
	MomentumPeriods  = 10
	MACDFast         = 12
	MACDSlow         = 26
	MACDSignal       = 9
	TradingDays      = 252

	// Benchmark return variance below this is treated as flat
	minBenchmarkVariance = 1e-18
)

// Result is the snapshot plus the full series used to draw the charts
type Result struct {
	Snapshot models.IndicatorSnapshot
	Series   Series
}

// Series holds every computed indicator over the aligned dates. Return based
// series start at the second date and are indexed by ReturnDates.
type Series struct {
	Dates       []time.Time
	Close       []float64
	MA50        []float64
	MA200       []float64
	EMA20       []float64
	UpperBand   []float64
	LowerBand   []float64
	PercentB    []float64
	StochasticK []float64
	Momentum    []float64
	MACD        []float64
	MACDSignal  []float64

	ReturnDates      []time.Time
	StockReturns     []float64
	BenchmarkReturns []float64
	StockCumulative  []float64
	BenchCumulative  []float64
	Beta             float64
	Alpha            float64
}

// Align restricts both series to the trading dates present in each, keeping
// ascending date order. Bars with a non-finite price, a non-positive close or
// low, or a high below the low are dropped first.
func Align(stock, benchmark models.PriceSeries) (models.PriceSeries, models.PriceSeries) {
	benchByDate := make(map[time.Time]models.PriceBar, len(benchmark.Bars))
	for _, b := range benchmark.Bars {
		if validBar(b) {
			benchByDate[dayKey(b.Date)] = b
		}
	}

	alignedStock := models.PriceSeries{Symbol: stock.Symbol}
	alignedBench := models.PriceSeries{Symbol: benchmark.Symbol}
	seen := make(map[time.Time]bool, len(stock.Bars))
	for _, s := range stock.Bars {
		key := dayKey(s.Date)
		if !validBar(s) || seen[key] {
			continue
		}
		b, ok := benchByDate[key]
		if !ok {
			continue
		}
		seen[key] = true
		alignedStock.Bars = append(alignedStock.Bars, s)
		alignedBench.Bars = append(alignedBench.Bars, b)
	}
	return alignedStock, alignedBench
}

func validBar(b models.PriceBar) bool {
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.Close > 0 && b.Low > 0 && b.High >= b.Low
}

func dayKey(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Compute evaluates every indicator on the date intersection of the two
// series. It is pure: no I/O, no charts. Returns a NoDataError when either
// input, or their intersection, is empty.
func Compute(stock, benchmark models.PriceSeries) (*Result, error) {
	if len(stock.Bars) == 0 {
		return nil, &common.NoDataError{Symbol: stock.Symbol}
	}
	if len(benchmark.Bars) == 0 {
		return nil, &common.NoDataError{Symbol: benchmark.Symbol}
	}

	stock, benchmark = Align(stock, benchmark)
	n := len(stock.Bars)
	if n == 0 {
		return nil, &common.NoDataError{Symbol: stock.Symbol + " and " + benchmark.Symbol + " (no common dates)"}
	}

	dates := make([]time.Time, n)
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	benchCloses := make([]float64, n)
	for i, b := range stock.Bars {
		dates[i] = dayKey(b.Date)
		closes[i] = b.Close
		highs[i] = b.High
		lows[i] = b.Low
		benchCloses[i] = benchmark.Bars[i].Close
	}

	s := Series{Dates: dates, Close: closes}
	snap := models.IndicatorSnapshot{
		Ticker:       stock.Symbol,
		Benchmark:    benchmark.Symbol,
		AsOf:         dates[n-1],
		Observations: n,
		CurrentPrice: closes[n-1],
		High52Week:   floats.Max(highs),
		Low52Week:    floats.Min(lows),
	}

	// Moving averages and trend
	s.MA50 = rollingMean(closes, ShortMAWindow)
	s.MA200 = rollingMean(closes, LongMAWindow)
	snap.MA50 = ptr(last(s.MA50))
	snap.MA200 = ptr(last(s.MA200))
	snap.Trend = classifyTrend(snap.MA50, snap.MA200)

	// Year to date, relative to the first close of the as-of year
	ytdStart := time.Date(snap.AsOf.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	for i, d := range dates {
		if !d.Before(ytdStart) {
			change := closes[n-1] - closes[i]
			snap.YTDChange = ptr(change)
			snap.YTDPercent = ptr(change / closes[i] * 100)
			break
		}
	}

	// Returns, volatility and regression against the benchmark
	if n >= 2 {
		s.ReturnDates = dates[1:]
		s.StockReturns = pctChange(closes, 1)[1:]
		s.BenchmarkReturns = pctChange(benchCloses, 1)[1:]
		s.StockCumulative = cumulativeReturns(s.StockReturns)
		s.BenchCumulative = cumulativeReturns(s.BenchmarkReturns)

		snap.Volatility = ptr(stat.StdDev(s.StockReturns, nil) * math.Sqrt(TradingDays))
		snap.StockReturn = ptr(last(s.StockCumulative))
		snap.BenchReturn = ptr(last(s.BenchCumulative))
		snap.RelativePerf = ptr(last(s.StockCumulative) - last(s.BenchCumulative))

		reg := regress(s.BenchmarkReturns, s.StockReturns)
		s.Beta, s.Alpha = reg.beta, reg.alpha
		snap.Beta = ptr(reg.beta)
		snap.Alpha = ptr(reg.alpha)
		snap.RValue = ptr(reg.r)
		snap.PValue = ptr(reg.p)
	}

	// EMA and Bollinger %B
	s.EMA20 = ewm(closes, EMASpan)
	snap.EMA20 = ptr(last(s.EMA20))

	mid := rollingMean(closes, BollingerWindow)
	sd := rollingStd(closes, BollingerWindow)
	s.UpperBand = make([]float64, n)
	s.LowerBand = make([]float64, n)
	s.PercentB = make([]float64, n)
	for i := range closes {
		s.UpperBand[i] = mid[i] + BollingerWidth*sd[i]
		s.LowerBand[i] = mid[i] - BollingerWidth*sd[i]
		s.PercentB[i] = ratio(closes[i]-s.LowerBand[i], s.UpperBand[i]-s.LowerBand[i])
	}
	snap.PercentB = ptr(last(s.PercentB))

	// Stochastic %K
	lowMin := rollingMin(lows, StochasticWindow)
	highMax := rollingMax(highs, StochasticWindow)
	s.StochasticK = make([]float64, n)
	for i := range closes {
		s.StochasticK[i] = ratio(closes[i]-lowMin[i], highMax[i]-lowMin[i]) * 100
	}
	snap.StochasticK = ptr(last(s.StochasticK))

	// Momentum
	s.Momentum = pctChange(closes, MomentumPeriods)
	snap.Momentum = ptr(last(s.Momentum))

	// MACD
	fast := ewm(closes, MACDFast)
	slow := ewm(closes, MACDSlow)
	s.MACD = make([]float64, n)
	for i := range closes {
		s.MACD[i] = fast[i] - slow[i]
	}
	s.MACDSignal = ewm(s.MACD, MACDSignal)
	snap.MACD = ptr(last(s.MACD))
	snap.MACDSignal = ptr(last(s.MACDSignal))

	return &Result{Snapshot: snap, Series: s}, nil
}

func classifyTrend(ma50, ma200 *float64) string {
	if ma50 == nil || ma200 == nil {
		return models.TrendInsufficient
	}
	switch {
	case *ma50 > *ma200:
		return models.TrendUpward
	case *ma50 < *ma200:
		return models.TrendDownward
	default:
		return models.TrendNeutral
	}
}

// ratio divides, returning NaN for an undefined or zero denominator
func ratio(num, den float64) float64 {
	if den == 0 || math.IsNaN(den) || math.IsNaN(num) {
		return math.NaN()
	}
	return num / den
}

type regression struct {
	alpha, beta, r, p float64
}

// regress fits y = alpha + beta*x by ordinary least squares and reports the
// correlation and the two-sided p-value of the slope. A flat x gives beta 0,
// alpha equal to the mean of y and undefined r and p.
func regress(x, y []float64) regression {
	if len(x) == 0 {
		return regression{alpha: math.NaN(), beta: math.NaN(), r: math.NaN(), p: math.NaN()}
	}
	_, varX := stat.MeanVariance(x, nil)
	if len(x) < 2 || math.IsNaN(varX) || varX < minBenchmarkVariance {
		return regression{alpha: stat.Mean(y, nil), beta: 0, r: math.NaN(), p: math.NaN()}
	}

	alpha, beta := stat.LinearRegression(x, y, nil, false)
	r := stat.Correlation(x, y, nil)

	p := math.NaN()
	df := float64(len(x) - 2)
	switch {
	case math.IsNaN(r):
	case math.Abs(r) >= 1:
		p = 0
	case df > 0:
		t := r * math.Sqrt(df/(1-r*r))
		p = 2 * distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}.Survival(math.Abs(t))
	}

	return regression{alpha: alpha, beta: beta, r: r, p: p}
}
