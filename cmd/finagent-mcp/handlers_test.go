package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finagent/internal/common"
	"github.com/ternarybob/finagent/internal/models"
	"github.com/ternarybob/finagent/internal/pipeline"
)

type stubFundamentals struct{}

func (stubFundamentals) Analyze(_ context.Context, ticker string) (*models.FundamentalAnalysis, error) {
	if ticker == "ZZZZ" {
		return nil, &common.NotFoundError{Kind: "ticker", Key: ticker}
	}
	return &models.FundamentalAnalysis{
		Company:    models.Company{CIK: "0000320193", Ticker: "AAPL", Title: "Apple Inc."},
		ConceptMap: models.ConceptMap{models.ConceptNetIncome: "NetIncomeLoss", models.ConceptRevenues: models.NoMatch},
		Ratios: []models.RatioRecord{
			{PeriodEnd: time.Date(2024, 9, 28, 0, 0, 0, 0, time.UTC), Values: map[string]*float64{models.RatioROE: models.Float64Ptr(1.6459)}},
		},
		Warnings: []string{"quote: no price data for AAPL"},
	}, nil
}

type stubTechnicals struct {
	benchmark string
}

func (s *stubTechnicals) Analyze(_ context.Context, ticker, benchmark string) (*models.IndicatorSnapshot, []string, error) {
	s.benchmark = benchmark
	return &models.IndicatorSnapshot{Ticker: ticker, Benchmark: benchmark, CurrentPrice: 101.5, Trend: models.TrendUpward}, nil, nil
}

type stubFilings struct {
	sections []string
}

func (s *stubFilings) ExtractLatest(_ context.Context, _ string, form string, sections []string) (*models.Filing, []models.FilingSection, error) {
	s.sections = sections
	return &models.Filing{Form: form, FilingDate: time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)},
		[]models.FilingSection{{Name: "Item 1A. Risk Factors", Text: "plain", Markdown: "**risks**"}}, nil
}

type stubSearcher struct {
	num int
}

func (s *stubSearcher) Search(_ context.Context, _ string, num int) ([]models.SearchResult, error) {
	s.num = num
	return []models.SearchResult{{Title: "Apple news", Link: "https://example.com/a", Body: "body text"}}, nil
}

type stubRunner struct{}

func (stubRunner) Run(_ context.Context, req pipeline.Request) (*models.Report, error) {
	return &models.Report{ID: "rpt_1", Ticker: req.Ticker, Markdown: "# Financial Analysis", MarkdownPath: "reports/AAPL.md"}, nil
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestHandleFundamentalAnalysis(t *testing.T) {
	handler := handleFundamentalAnalysis(stubFundamentals{}, arbor.NewLogger())

	result, err := handler(context.Background(), callRequest(map[string]any{"ticker": "AAPL"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	text := resultText(t, result)
	assert.Contains(t, text, "Apple Inc. (AAPL)")
	assert.Contains(t, text, "**Matched concepts:** 1 of 12")
	assert.Contains(t, text, "| ROE | 1.6459 |")
	assert.Contains(t, text, "| PE_Ratio | n/a |")
	assert.Contains(t, text, "- quote: no price data for AAPL")

	result, err = handler(context.Background(), callRequest(map[string]any{"ticker": "ZZZZ"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "ticker not found: ZZZZ")

	result, err = handler(context.Background(), callRequest(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleTechnicalAnalysis(t *testing.T) {
	tech := &stubTechnicals{}
	handler := handleTechnicalAnalysis(tech, "^GSPC", arbor.NewLogger())

	result, err := handler(context.Background(), callRequest(map[string]any{"ticker": "MSFT"}))
	require.NoError(t, err)
	assert.Equal(t, "^GSPC", tech.benchmark)
	text := resultText(t, result)
	assert.Contains(t, text, "## Technicals: MSFT vs ^GSPC")
	assert.Contains(t, text, "- **Trend:** Upward")
	assert.Contains(t, text, "- **Beta:** n/a")

	_, err = handler(context.Background(), callRequest(map[string]any{"ticker": "MSFT", "benchmark": "^NDX"}))
	require.NoError(t, err)
	assert.Equal(t, "^NDX", tech.benchmark)
}

func TestHandleWebSearch(t *testing.T) {
	searcher := &stubSearcher{}
	handler := handleWebSearch(searcher, 2, arbor.NewLogger())

	result, err := handler(context.Background(), callRequest(map[string]any{"query": "apple"}))
	require.NoError(t, err)
	assert.Equal(t, 2, searcher.num)
	text := resultText(t, result)
	assert.Contains(t, text, "### 1. Apple news")
	assert.Contains(t, text, "body text")

	_, err = handler(context.Background(), callRequest(map[string]any{"query": "apple", "num_results": float64(50)}))
	require.NoError(t, err)
	assert.Equal(t, 10, searcher.num)
}

func TestHandleFilingSections(t *testing.T) {
	filings := &stubFilings{}
	handler := handleFilingSections(filings, arbor.NewLogger())

	result, err := handler(context.Background(), callRequest(map[string]any{
		"ticker":   "AAPL",
		"sections": []any{"Item 1A. Risk Factors"},
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"Item 1A. Risk Factors"}, filings.sections)
	text := resultText(t, result)
	assert.Contains(t, text, "## 10-K filed 2024-11-01")
	assert.Contains(t, text, "**risks**")
	assert.NotContains(t, text, "plain")
}

func TestHandleGenerateReport(t *testing.T) {
	handler := handleGenerateReport(stubRunner{}, arbor.NewLogger())

	result, err := handler(context.Background(), callRequest(map[string]any{"ticker": "AAPL"}))
	require.NoError(t, err)
	text := resultText(t, result)
	assert.True(t, strings.HasPrefix(text, "**Report:** rpt_1"))
	assert.Contains(t, text, "**Markdown:** reports/AAPL.md")
	assert.Contains(t, text, "# Financial Analysis")
}

func TestFormatFundamentalsLimitsPeriods(t *testing.T) {
	var records []models.RatioRecord
	for year := 2015; year <= 2024; year++ {
		records = append(records, models.RatioRecord{PeriodEnd: time.Date(year, 12, 31, 0, 0, 0, 0, time.UTC)})
	}
	text := formatFundamentals(&models.FundamentalAnalysis{Company: models.Company{Ticker: "X"}, Ratios: records})
	assert.NotContains(t, text, "2018-12-31")
	assert.Contains(t, text, "2019-12-31")
	assert.Contains(t, text, "2024-12-31")
}
