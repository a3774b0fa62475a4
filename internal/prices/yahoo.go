package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/finagent/internal/common"
	"github.com/ternarybob/finagent/internal/models"
)

const (
	// DefaultYahooBaseURL is the Yahoo Finance chart API host.
	DefaultYahooBaseURL = "https://query1.finance.yahoo.com"

	yahooRateLimit = 5
)

// YahooClient reads daily bars from the Yahoo Finance chart API. Prices are
// split and dividend adjusted using the adjclose series when present.
type YahooClient struct {
	baseURL    string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter
}

// YahooOption configures the YahooClient.
type YahooOption func(*YahooClient)

// WithYahooBaseURL sets a custom base URL.
func WithYahooBaseURL(baseURL string) YahooOption {
	return func(c *YahooClient) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithYahooHTTPClient sets a custom HTTP client.
func WithYahooHTTPClient(httpClient *http.Client) YahooOption {
	return func(c *YahooClient) {
		c.httpClient = httpClient
	}
}

// WithYahooLogger sets a logger.
func WithYahooLogger(logger arbor.ILogger) YahooOption {
	return func(c *YahooClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewYahooClient creates a Yahoo Finance client.
func NewYahooClient(opts ...YahooOption) *YahooClient {
	c := &YahooClient{
		baseURL:    DefaultYahooBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     arbor.NewLogger(),
		limiter:    rate.NewLimiter(rate.Limit(yahooRateLimit), yahooRateLimit),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the provider name
func (c *YahooClient) Name() string { return "yahoo" }

// yahooChart is the response structure of the chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol           string `json:"symbol"`
				ExchangeTimezone string `json:"exchangeTimezoneName"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// History returns adjusted daily bars between from and to inclusive.
func (c *YahooClient) History(ctx context.Context, ticker common.Ticker, from, to time.Time) (models.PriceSeries, error) {
	symbol := ticker.YahooSymbol()

	params := url.Values{}
	params.Set("period1", fmt.Sprintf("%d", dayUTC(from, nil).Unix()))
	params.Set("period2", fmt.Sprintf("%d", dayUTC(to, nil).AddDate(0, 0, 1).Unix()))
	params.Set("interval", "1d")
	params.Set("events", "div,splits")

	var chart yahooChart
	if err := c.get(ctx, "/v8/finance/chart/"+url.PathEscape(symbol), params, symbol, &chart); err != nil {
		return models.PriceSeries{}, err
	}
	if chart.Chart.Error != nil {
		if strings.EqualFold(chart.Chart.Error.Code, "Not Found") {
			return models.PriceSeries{}, &common.NoDataError{Symbol: ticker.String()}
		}
		return models.PriceSeries{}, &common.UpstreamError{Source: "yahoo", Message: chart.Chart.Error.Description}
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return models.PriceSeries{Symbol: ticker.String()}, nil
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	var adj []*float64
	if len(result.Indicators.AdjClose) > 0 {
		adj = result.Indicators.AdjClose[0].AdjClose
	}
	loc, err := time.LoadLocation(result.Meta.ExchangeTimezone)
	if err != nil || result.Meta.ExchangeTimezone == "" {
		loc = nil
	}

	bars := make([]models.PriceBar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		closePx := value(quote.Close, i)
		if closePx == nil || *closePx <= 0 {
			continue // holidays and halted sessions come back as nulls
		}
		factor := 1.0
		if a := value(adj, i); a != nil && *a > 0 {
			factor = *a / *closePx
		}
		openPx, highPx, lowPx := value(quote.Open, i), value(quote.High, i), value(quote.Low, i)
		if openPx == nil || highPx == nil || lowPx == nil {
			continue
		}
		bar := models.PriceBar{
			Date:  dayUTC(time.Unix(ts, 0), loc),
			Open:  *openPx * factor,
			High:  *highPx * factor,
			Low:   *lowPx * factor,
			Close: *closePx * factor,
		}
		if v := value(quote.Volume, i); v != nil {
			bar.Volume = int64(*v)
		}
		bars = append(bars, bar)
	}

	c.logger.Debug().
		Str("symbol", symbol).
		Int("bars", len(bars)).
		Msg("Fetched Yahoo price history")

	return finish(ticker.String(), bars), nil
}

func (c *YahooClient) get(ctx context.Context, path string, params url.Values, symbol string, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	c.logger.Debug().
		Str("url", c.baseURL+path).
		Msg("Yahoo Finance request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &common.UpstreamError{Source: "yahoo", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &common.UpstreamError{Source: "yahoo", Message: "failed to read response", Err: err}
	}

	// Unknown symbols return 404 with a chart.error body
	if resp.StatusCode == http.StatusNotFound {
		return &common.NoDataError{Symbol: symbol}
	}
	if resp.StatusCode != http.StatusOK {
		return &common.UpstreamError{Source: "yahoo", StatusCode: resp.StatusCode, Message: truncate(string(body), 256)}
	}

	if err := json.Unmarshal(body, result); err != nil {
		return &common.UpstreamError{Source: "yahoo", Message: "failed to decode response", Err: err}
	}
	return nil
}

func value(values []*float64, i int) *float64 {
	if i < len(values) {
		return values[i]
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
