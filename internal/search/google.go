// Package search runs Google Custom Search queries and fetches the text of
// each result page.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"golang.org/x/net/html"

	"github.com/ternarybob/finagent/internal/common"
	"github.com/ternarybob/finagent/internal/models"
)

const (
	// DefaultBaseURL is the Custom Search JSON API endpoint
	DefaultBaseURL = "https://www.googleapis.com/customsearch/v1"

	// PageTimeout bounds each result page fetch
	PageTimeout = 10 * time.Second

	maxPageSize = 5 << 20
)

// ErrNotConfigured is returned when the API key or engine ID is missing
var ErrNotConfigured = errors.New("search API key or engine ID not configured")

// Client is a Google Custom Search client
type Client struct {
	baseURL    string
	apiKey     string
	engineID   string
	maxChars   int
	delay      time.Duration
	httpClient *http.Client
	pageClient *http.Client
	logger     arbor.ILogger
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithDelay sets the pause between result page fetches.
func WithDelay(delay time.Duration) ClientOption {
	return func(c *Client) {
		c.delay = delay
	}
}

// WithMaxChars sets the page text budget per result.
func WithMaxChars(maxChars int) ClientOption {
	return func(c *Client) {
		if maxChars > 0 {
			c.maxChars = maxChars
		}
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a search client
func NewClient(apiKey, engineID string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		engineID:   engineID,
		maxChars:   500,
		delay:      time.Second,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		pageClient: &http.Client{Timeout: PageTimeout},
		logger:     arbor.NewLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewClientFromConfig creates a search client from the search config section
func NewClientFromConfig(cfg common.SearchConfig, logger arbor.ILogger) *Client {
	return NewClient(cfg.APIKey, cfg.EngineID,
		WithMaxChars(cfg.MaxChars),
		WithDelay(common.ParseDurationOr(cfg.Delay, time.Second)),
		WithLogger(logger))
}

type searchResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
}

// Search runs query and returns up to num results, each with the text of
// its page truncated to the character budget. A page that cannot be fetched
// leaves that result's Body empty.
func (c *Client) Search(ctx context.Context, query string, num int) ([]models.SearchResult, error) {
	if c.apiKey == "" || c.engineID == "" {
		return nil, ErrNotConfigured
	}
	if num <= 0 {
		num = 2
	}

	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("cx", c.engineID)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(num))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().
		Str("query", query).
		Int("num", num).
		Msg("Google search request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &common.UpstreamError{Source: "google", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &common.UpstreamError{Source: "google", StatusCode: resp.StatusCode, Message: string(body)}
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &common.UpstreamError{Source: "google", Message: "failed to decode response", Err: err}
	}

	results := make([]models.SearchResult, 0, len(parsed.Items))
	for i, item := range parsed.Items {
		if i > 0 && c.delay > 0 {
			select {
			case <-ctx.Done():
				return results, ctx.Err()
			case <-time.After(c.delay):
			}
		}

		body, err := c.pageText(ctx, item.Link)
		if err != nil {
			c.logger.Warn().
				Str("link", item.Link).
				Err(err).
				Msg("Failed to fetch search result page")
		}
		results = append(results, models.SearchResult{
			Title:   item.Title,
			Link:    item.Link,
			Snippet: item.Snippet,
			Body:    body,
		})
	}

	c.logger.Info().
		Str("query", query).
		Int("results", len(results)).
		Msg("Search complete")

	return results, nil
}

// pageText downloads link and returns its visible text truncated on a word
// boundary to maxChars.
func (c *Client) pageText(ctx context.Context, link string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; finagent)")

	resp, err := c.pageClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript").Remove()

	return Truncate(visibleText(doc), c.maxChars), nil
}

// visibleText joins every text node of the document with a space so words in
// adjacent elements do not run together.
func visibleText(doc *goquery.Document) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range doc.Nodes {
		walk(n)
	}
	return b.String()
}

// Truncate joins the words of text with single spaces, stopping before the
// word that would take the result past maxChars.
func Truncate(text string, maxChars int) string {
	var b strings.Builder
	for _, word := range strings.Fields(text) {
		used := b.Len()
		if used > 0 {
			used++
		}
		if used+len(word)+1 > maxChars {
			break
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(word)
	}
	return b.String()
}
