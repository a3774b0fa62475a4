package indicators

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finagent/internal/charts"
	"github.com/ternarybob/finagent/internal/common"
	"github.com/ternarybob/finagent/internal/models"
)

// PriceSource returns daily bars for a symbol over a date range
type PriceSource interface {
	History(ctx context.Context, ticker common.Ticker, from, to time.Time) (models.PriceSeries, error)
}

// Analyzer fetches price history, computes the indicators and renders the
// technical charts.
type Analyzer struct {
	prices    PriceSource
	renderer  *charts.Renderer
	chartsDir string
	lookback  int
	now       func() time.Time
	logger    arbor.ILogger
}

// AnalyzerOption configures the Analyzer
type AnalyzerOption func(*Analyzer)

// WithClock overrides the clock used to pick the history window
func WithClock(now func() time.Time) AnalyzerOption {
	return func(a *Analyzer) {
		a.now = now
	}
}

// WithLookbackDays sets the calendar days of history fetched
func WithLookbackDays(days int) AnalyzerOption {
	return func(a *Analyzer) {
		if days > 0 {
			a.lookback = days
		}
	}
}

// NewAnalyzer creates an Analyzer writing charts under chartsDir. A nil
// renderer disables charts.
func NewAnalyzer(prices PriceSource, renderer *charts.Renderer, chartsDir string, logger arbor.ILogger, opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		prices:    prices,
		renderer:  renderer,
		chartsDir: chartsDir,
		lookback:  365,
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze runs the technical analysis of ticker against benchmark. Chart
// failures are logged and returned as warnings; they never fail the analysis.
func (a *Analyzer) Analyze(ctx context.Context, ticker, benchmark string) (*models.IndicatorSnapshot, []string, error) {
	stockTicker := common.ParseTicker(ticker)
	benchTicker := common.ParseTicker(benchmark)
	if stockTicker.Code == "" {
		return nil, nil, &common.NotFoundError{Kind: "ticker", Key: ticker}
	}
	if benchTicker.Code == "" {
		benchTicker = common.ParseTicker("^GSPC")
	}

	to := a.now().UTC()
	from := to.AddDate(0, 0, -a.lookback)

	a.logger.Info().
		Str("ticker", stockTicker.String()).
		Str("benchmark", benchTicker.String()).
		Str("from", from.Format("2006-01-02")).
		Msg("Starting technical analysis")

	stock, err := a.prices.History(ctx, stockTicker, from, to)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch price history for %s: %w", stockTicker, err)
	}
	bench, err := a.prices.History(ctx, benchTicker, from, to)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch price history for %s: %w", benchTicker, err)
	}
	stock.Symbol = stockTicker.String()
	bench.Symbol = benchTicker.String()

	result, err := Compute(stock, bench)
	if err != nil {
		return nil, nil, err
	}

	snap := result.Snapshot
	var warnings []string
	if a.renderer != nil {
		snap.Charts, warnings = a.renderCharts(result, stockTicker, benchTicker)
	}

	a.logger.Info().
		Str("ticker", stockTicker.String()).
		Int("observations", snap.Observations).
		Str("trend", snap.Trend).
		Int("charts", len(snap.Charts)).
		Msg("Technical analysis complete")

	return &snap, warnings, nil
}
