// Package prices provides daily price history from Yahoo Finance or EODHD.
package prices

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finagent/internal/common"
	"github.com/ternarybob/finagent/internal/models"
)

// Provider returns daily bars for a symbol over a date range, ascending by date.
type Provider interface {
	Name() string
	History(ctx context.Context, ticker common.Ticker, from, to time.Time) (models.PriceSeries, error)
}

// NewProvider creates the provider selected in config
func NewProvider(cfg common.PricesConfig, logger arbor.ILogger) (Provider, error) {
	switch cfg.Provider {
	case "", "yahoo":
		return NewYahooClient(WithYahooLogger(logger)), nil
	case "eodhd":
		if cfg.EODHDAPIKey == "" {
			return nil, fmt.Errorf("prices.eodhd_api_key is required for the eodhd provider")
		}
		return NewEODHDClient(cfg.EODHDAPIKey, WithLogger(logger)), nil
	default:
		return nil, fmt.Errorf("unsupported price provider: %s", cfg.Provider)
	}
}

// LatestClose returns the most recent close within the last two weeks of now.
func LatestClose(ctx context.Context, p Provider, ticker common.Ticker, now time.Time) (float64, error) {
	series, err := p.History(ctx, ticker, now.AddDate(0, 0, -14), now)
	if err != nil {
		return 0, err
	}
	for i := len(series.Bars) - 1; i >= 0; i-- {
		if c := series.Bars[i].Close; c > 0 {
			return c, nil
		}
	}
	return 0, &common.NoDataError{Symbol: ticker.String()}
}

// Quoter quotes the latest close through a Provider
type Quoter struct {
	provider Provider
	now      func() time.Time
}

// NewQuoter creates a Quoter over provider
func NewQuoter(provider Provider) *Quoter {
	return &Quoter{provider: provider, now: time.Now}
}

// LatestClose returns the most recent close for ticker
func (q *Quoter) LatestClose(ctx context.Context, ticker common.Ticker) (float64, error) {
	return LatestClose(ctx, q.provider, ticker, q.now())
}

// dayUTC truncates t to midnight UTC of its calendar day in loc
func dayUTC(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// finish sorts bars by date and drops duplicates, keeping the last
func finish(symbol string, bars []models.PriceBar) models.PriceSeries {
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	out := make([]models.PriceBar, 0, len(bars))
	for _, b := range bars {
		if n := len(out); n > 0 && out[n-1].Date.Equal(b.Date) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return models.PriceSeries{Symbol: symbol, Bars: out}
}
