package models

import "time"

// PriceBar is one trading day of OHLCV data
type PriceBar struct {
	Date   time.Time `json:"date"` // trading day, UTC midnight
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// PriceSeries is a daily bar history ascending by date
type PriceSeries struct {
	Symbol string     `json:"symbol"`
	Bars   []PriceBar `json:"bars"`
}

// Trend labels
const (
	TrendUpward       = "Upward"
	TrendDownward     = "Downward"
	TrendNeutral      = "Neutral"
	TrendInsufficient = "Insufficient data for trend analysis"
)

// IndicatorSnapshot is the point-in-time technical picture of a stock against
// a benchmark. Nil scalars are undefined for the available history.
type IndicatorSnapshot struct {
	Ticker       string    `json:"ticker"`
	Benchmark    string    `json:"benchmark"`
	AsOf         time.Time `json:"as_of"`
	Observations int       `json:"observations"`

	CurrentPrice float64  `json:"current_price"`
	High52Week   float64  `json:"high_52_week"`
	Low52Week    float64  `json:"low_52_week"`
	MA50         *float64 `json:"ma_50"`
	MA200        *float64 `json:"ma_200"`
	YTDChange    *float64 `json:"ytd_change"`
	YTDPercent   *float64 `json:"ytd_percent"`
	Trend        string   `json:"trend"`
	Volatility   *float64 `json:"volatility"`
	Beta         *float64 `json:"beta"`
	Alpha        *float64 `json:"alpha"`
	RValue       *float64 `json:"r_value"`
	PValue       *float64 `json:"p_value"`
	RelativePerf *float64 `json:"relative_performance"`
	StockReturn  *float64 `json:"stock_cumulative_return"`
	BenchReturn  *float64 `json:"benchmark_cumulative_return"`
	EMA20        *float64 `json:"ema_20"`
	PercentB     *float64 `json:"percent_b"`
	StochasticK  *float64 `json:"stochastic_k"`
	Momentum     *float64 `json:"momentum"`
	MACD         *float64 `json:"macd"`
	MACDSignal   *float64 `json:"macd_signal"`

	Charts map[string]string `json:"charts,omitempty"` // chart kind -> file path
}
