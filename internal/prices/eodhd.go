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
	// DefaultEODHDBaseURL is the base URL for the EODHD API.
	DefaultEODHDBaseURL = "https://eodhd.com/api"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the default rate limit (requests per second).
	DefaultRateLimit = 10
)

// EODHDClient is an EODHD API client.
type EODHDClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter
}

// ClientOption configures the EODHDClient.
type ClientOption func(*EODHDClient)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *EODHDClient) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *EODHDClient) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *EODHDClient) {
		c.logger = logger
	}
}

// WithRateLimit sets a custom rate limit.
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *EODHDClient) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// NewEODHDClient creates a new EODHD API client.
func NewEODHDClient(apiKey string, opts ...ClientOption) *EODHDClient {
	c := &EODHDClient{
		baseURL: DefaultEODHDBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Name returns the provider name
func (c *EODHDClient) Name() string { return "eodhd" }

// eodBar is a single day's end-of-day price data.
type eodBar struct {
	Date          string  `json:"date"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Close         float64 `json:"close"`
	AdjustedClose float64 `json:"adjusted_close"`
	Volume        int64   `json:"volume"`
}

// get performs a GET request to the API.
func (c *EODHDClient) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("api_token", c.apiKey)
	params.Set("fmt", "json")

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if c.logger != nil {
		c.logger.Debug().
			Str("url", c.baseURL+path).
			Msg("EODHD API request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &common.UpstreamError{Source: "eodhd", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &common.NoDataError{Symbol: path[strings.LastIndex(path, "/")+1:]}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return &common.UpstreamError{
			Source:     "eodhd",
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("%s (endpoint: %s)", string(body), path),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return &common.UpstreamError{Source: "eodhd", Message: "failed to decode response", Err: err}
	}

	return nil
}

// History retrieves adjusted end-of-day bars for a symbol.
func (c *EODHDClient) History(ctx context.Context, ticker common.Ticker, from, to time.Time) (models.PriceSeries, error) {
	params := url.Values{}
	params.Set("from", from.Format("2006-01-02"))
	params.Set("to", to.Format("2006-01-02"))
	params.Set("period", "d")
	params.Set("order", "a")

	var result []eodBar
	if err := c.get(ctx, "/eod/"+ticker.EODHDSymbol(), params, &result); err != nil {
		return models.PriceSeries{}, err
	}

	bars := make([]models.PriceBar, 0, len(result))
	for _, r := range result {
		date, err := time.Parse("2006-01-02", r.Date)
		if err != nil || r.Close <= 0 {
			continue
		}
		factor := 1.0
		if r.AdjustedClose > 0 {
			factor = r.AdjustedClose / r.Close
		}
		bars = append(bars, models.PriceBar{
			Date:   date,
			Open:   r.Open * factor,
			High:   r.High * factor,
			Low:    r.Low * factor,
			Close:  r.Close * factor,
			Volume: r.Volume,
		})
	}

	return finish(ticker.String(), bars), nil
}
