// Package edgar is a client for SEC EDGAR: the company registry, XBRL
// company facts and concepts, the submissions index and archived filings.
package edgar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/finagent/internal/common"
	"github.com/ternarybob/finagent/internal/models"
)

const (
	// DefaultWWWBaseURL serves the company registry and filing archives
	DefaultWWWBaseURL = "https://www.sec.gov"

	// DefaultDataBaseURL serves the XBRL and submissions APIs
	DefaultDataBaseURL = "https://data.sec.gov"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the SEC fair access limit (requests per second).
	DefaultRateLimit = 10

	// maxDocumentSize bounds filing downloads
	maxDocumentSize = 64 << 20

	source = "sec"
)

// Client is an SEC EDGAR client.
type Client struct {
	wwwBaseURL  string
	dataBaseURL string
	userAgent   string
	httpClient  *http.Client
	logger      arbor.ILogger
	limiter     *rate.Limiter

	registryMu sync.RWMutex
	registry   map[string]models.Company // upper-case ticker -> company
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURLs overrides both SEC hosts, used by tests.
func WithBaseURLs(wwwBaseURL, dataBaseURL string) ClientOption {
	return func(c *Client) {
		c.wwwBaseURL = strings.TrimRight(wwwBaseURL, "/")
		c.dataBaseURL = strings.TrimRight(dataBaseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the HTTP timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets a custom rate limit.
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// NewClient creates a new EDGAR client. userAgent identifies the caller as
// the SEC requires, e.g. "Acme Research admin@acme.com".
func NewClient(userAgent string, opts ...ClientOption) *Client {
	c := &Client{
		wwwBaseURL:  DefaultWWWBaseURL,
		dataBaseURL: DefaultDataBaseURL,
		userAgent:   userAgent,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger:  arbor.NewLogger(),
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// fetch performs a rate limited GET and returns the body. Non-200 responses
// become a NotFoundError for 404 and an UpstreamError otherwise.
func (c *Client) fetch(ctx context.Context, reqURL, kind, key string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept-Encoding", "identity")

	c.logger.Debug().
		Str("url", reqURL).
		Msg("SEC request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &common.UpstreamError{Source: source, Message: reqURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && kind != "" {
		return nil, &common.NotFoundError{Kind: kind, Key: key}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &common.UpstreamError{
			Source:     source,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(reqURL + " " + string(body)),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, &common.UpstreamError{Source: source, Message: "failed to read response", Err: err}
	}
	return body, nil
}

func (c *Client) fetchJSON(ctx context.Context, reqURL, kind, key string, result interface{}) error {
	body, err := c.fetch(ctx, reqURL, kind, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, result); err != nil {
		return &common.UpstreamError{Source: source, Message: "unexpected response shape from " + reqURL, Err: err}
	}
	return nil
}

// Resolve maps a ticker to its registrant using the SEC company registry.
// The registry is downloaded once per client.
func (c *Client) Resolve(ctx context.Context, ticker string) (models.Company, error) {
	symbol := common.ParseTicker(ticker).SECSymbol()
	if symbol == "" {
		return models.Company{}, &common.NotFoundError{Kind: "ticker", Key: ticker}
	}

	if err := c.loadRegistry(ctx); err != nil {
		return models.Company{}, err
	}

	c.registryMu.RLock()
	company, ok := c.registry[symbol]
	c.registryMu.RUnlock()
	if !ok {
		return models.Company{}, &common.NotFoundError{Kind: "ticker", Key: ticker}
	}

	c.logger.Debug().
		Str("ticker", symbol).
		Str("cik", company.CIK).
		Str("title", company.Title).
		Msg("Resolved ticker")

	return company, nil
}

func (c *Client) loadRegistry(ctx context.Context) error {
	c.registryMu.RLock()
	loaded := c.registry != nil
	c.registryMu.RUnlock()
	if loaded {
		return nil
	}

	c.registryMu.Lock()
	defer c.registryMu.Unlock()
	if c.registry != nil {
		return nil
	}

	var entries map[string]tickerEntry
	if err := c.fetchJSON(ctx, c.wwwBaseURL+"/files/company_tickers.json", "", "", &entries); err != nil {
		return fmt.Errorf("failed to load company registry: %w", err)
	}

	registry := make(map[string]models.Company, len(entries))
	for _, e := range entries {
		t := strings.ToUpper(strings.TrimSpace(e.Ticker))
		if t == "" {
			continue
		}
		registry[t] = models.Company{CIK: PadCIK(e.CIK), Ticker: t, Title: e.Title}
	}
	c.registry = registry

	c.logger.Info().Int("tickers", len(registry)).Msg("Loaded SEC company registry")
	return nil
}

// FetchConcepts lists the us-gaap concept names a company has reported,
// sorted. A company without a us-gaap section yields an empty list.
func (c *Client) FetchConcepts(ctx context.Context, cik string) ([]string, error) {
	cik = normalizeCIK(cik)

	var facts companyFacts
	reqURL := fmt.Sprintf("%s/api/xbrl/companyfacts/CIK%s.json", c.dataBaseURL, cik)
	if err := c.fetchJSON(ctx, reqURL, "company facts", cik, &facts); err != nil {
		return nil, err
	}

	gaap, ok := facts.Facts["us-gaap"]
	if !ok {
		c.logger.Warn().Str("cik", cik).Msg("Company facts contain no us-gaap section")
		return []string{}, nil
	}

	concepts := make([]string, 0, len(gaap))
	for name := range gaap {
		concepts = append(concepts, name)
	}
	sort.Strings(concepts)

	c.logger.Debug().Str("cik", cik).Int("concepts", len(concepts)).Msg("Fetched us-gaap concepts")
	return concepts, nil
}

// FetchConceptSeries returns the reported history of one us-gaap concept.
// USD values are preferred; otherwise the first unit in sorted order is used.
func (c *Client) FetchConceptSeries(ctx context.Context, cik, concept string) (models.ConceptSeries, error) {
	cik = normalizeCIK(cik)

	var cc companyConcept
	reqURL := fmt.Sprintf("%s/api/xbrl/companyconcept/CIK%s/us-gaap/%s.json", c.dataBaseURL, cik, url.PathEscape(concept))
	if err := c.fetchJSON(ctx, reqURL, "concept", concept, &cc); err != nil {
		return models.ConceptSeries{}, err
	}
	if len(cc.Units) == 0 {
		return models.ConceptSeries{}, &common.NotFoundError{Kind: "concept units", Key: concept}
	}

	unit := pickUnit(cc.Units)
	obs := make([]models.Observation, 0, len(cc.Units[unit]))
	for _, v := range cc.Units[unit] {
		end, err := time.Parse("2006-01-02", v.End)
		if err != nil {
			continue
		}
		obs = append(obs, models.Observation{PeriodEnd: end, Value: v.Val})
	}

	return models.NewConceptSeries(concept, unit, obs), nil
}

func pickUnit(units map[string][]conceptValue) string {
	if _, ok := units["USD"]; ok {
		return "USD"
	}
	names := make([]string, 0, len(units))
	for name := range units {
		names = append(names, name)
	}
	sort.Strings(names)
	return names[0]
}

// FetchSubmissions returns the submissions index of a company
func (c *Client) FetchSubmissions(ctx context.Context, cik string) (*Submissions, error) {
	cik = normalizeCIK(cik)

	var subs Submissions
	reqURL := fmt.Sprintf("%s/submissions/CIK%s.json", c.dataBaseURL, cik)
	if err := c.fetchJSON(ctx, reqURL, "submissions", cik, &subs); err != nil {
		return nil, err
	}
	return &subs, nil
}

// LatestFiling returns the most recent filing of form (e.g. "10-K").
func (c *Client) LatestFiling(ctx context.Context, cik, form string) (*models.Filing, error) {
	subs, err := c.FetchSubmissions(ctx, cik)
	if err != nil {
		return nil, err
	}

	recent := subs.Filings.Recent
	best := -1
	for i, f := range recent.Form {
		if !strings.EqualFold(f, form) || i >= len(recent.AccessionNumber) || i >= len(recent.PrimaryDocument) {
			continue
		}
		if best < 0 || at(recent.FilingDate, i) > at(recent.FilingDate, best) {
			best = i
		}
	}
	if best < 0 {
		return nil, &common.NotFoundError{Kind: "filing", Key: fmt.Sprintf("%s %s", normalizeCIK(cik), form)}
	}

	filing := &models.Filing{
		CIK:             normalizeCIK(cik),
		AccessionNumber: recent.AccessionNumber[best],
		Form:            recent.Form[best],
		PrimaryDocument: recent.PrimaryDocument[best],
	}
	filing.FilingDate, _ = time.Parse("2006-01-02", at(recent.FilingDate, best))
	filing.ReportDate, _ = time.Parse("2006-01-02", at(recent.ReportDate, best))
	filing.URL = c.DocumentURL(filing)

	return filing, nil
}

// DocumentURL returns the archive URL of a filing's primary document
func (c *Client) DocumentURL(f *models.Filing) string {
	return fmt.Sprintf("%s/Archives/edgar/data/%s/%s/%s",
		c.wwwBaseURL,
		strings.TrimLeft(f.CIK, "0"),
		strings.ReplaceAll(f.AccessionNumber, "-", ""),
		f.PrimaryDocument)
}

// FetchDocument downloads the raw filing document (HTML or plain text)
func (c *Client) FetchDocument(ctx context.Context, f *models.Filing) (string, error) {
	reqURL := f.URL
	if reqURL == "" {
		reqURL = c.DocumentURL(f)
	}
	body, err := c.fetch(ctx, reqURL, "filing", f.AccessionNumber)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// PadCIK formats a numeric CIK as the zero-padded 10 digit form
func PadCIK(cik int64) string {
	return fmt.Sprintf("%010d", cik)
}

func normalizeCIK(cik string) string {
	cik = strings.TrimSpace(strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(cik)), "CIK"))
	if n, err := strconv.ParseInt(cik, 10, 64); err == nil {
		return PadCIK(n)
	}
	return cik
}

func at(values []string, i int) string {
	if i < len(values) {
		return values[i]
	}
	return ""
}
