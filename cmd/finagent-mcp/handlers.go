package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finagent/internal/models"
	"github.com/ternarybob/finagent/internal/pipeline"
)

type fundamentalAnalyzer interface {
	Analyze(ctx context.Context, ticker string) (*models.FundamentalAnalysis, error)
}

type technicalAnalyzer interface {
	Analyze(ctx context.Context, ticker, benchmark string) (*models.IndicatorSnapshot, []string, error)
}

type filingExtractor interface {
	ExtractLatest(ctx context.Context, ticker, form string, sections []string) (*models.Filing, []models.FilingSection, error)
}

type webSearcher interface {
	Search(ctx context.Context, query string, num int) ([]models.SearchResult, error)
}

type reportRunner interface {
	Run(ctx context.Context, req pipeline.Request) (*models.Report, error)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(format string, args ...interface{}) *mcp.CallToolResult {
	result := textResult(fmt.Sprintf(format, args...))
	result.IsError = true
	return result
}

// handleFundamentalAnalysis implements the fundamental_analysis tool
func handleFundamentalAnalysis(analyzer fundamentalAnalyzer, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ticker, err := request.RequireString("ticker")
		if err != nil || strings.TrimSpace(ticker) == "" {
			return errorResult("Error: ticker parameter is required"), nil
		}

		analysis, err := analyzer.Analyze(ctx, ticker)
		if err != nil {
			logger.Error().Err(err).Str("ticker", ticker).Msg("Fundamental analysis failed")
			return errorResult("Fundamental analysis error: %v", err), nil
		}

		return textResult(formatFundamentals(analysis)), nil
	}
}

// handleTechnicalAnalysis implements the technical_analysis tool
func handleTechnicalAnalysis(analyzer technicalAnalyzer, defaultBenchmark string, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ticker, err := request.RequireString("ticker")
		if err != nil || strings.TrimSpace(ticker) == "" {
			return errorResult("Error: ticker parameter is required"), nil
		}
		benchmark := request.GetString("benchmark", defaultBenchmark)

		snap, warnings, err := analyzer.Analyze(ctx, ticker, benchmark)
		if err != nil {
			logger.Error().Err(err).Str("ticker", ticker).Msg("Technical analysis failed")
			return errorResult("Technical analysis error: %v", err), nil
		}

		return textResult(formatTechnicals(snap, warnings)), nil
	}
}

// handleWebSearch implements the web_search tool
func handleWebSearch(searcher webSearcher, defaultNum int, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil || strings.TrimSpace(query) == "" {
			return errorResult("Error: query parameter is required"), nil
		}

		num := request.GetInt("num_results", defaultNum)
		if num < 1 {
			num = 1
		}
		if num > 10 {
			num = 10
		}

		results, err := searcher.Search(ctx, query, num)
		if err != nil {
			logger.Error().Err(err).Str("query", query).Msg("Web search failed")
			return errorResult("Search error: %v", err), nil
		}

		return textResult(formatSearchResults(query, results)), nil
	}
}

// handleFilingSections implements the filing_sections tool
func handleFilingSections(extractor filingExtractor, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ticker, err := request.RequireString("ticker")
		if err != nil || strings.TrimSpace(ticker) == "" {
			return errorResult("Error: ticker parameter is required"), nil
		}
		form := request.GetString("form", "10-K")
		sections := request.GetStringSlice("sections", nil)

		filing, found, err := extractor.ExtractLatest(ctx, ticker, form, sections)
		if err != nil {
			logger.Error().Err(err).Str("ticker", ticker).Str("form", form).Msg("Filing extraction failed")
			return errorResult("Filing error: %v", err), nil
		}

		return textResult(formatFilingSections(filing, found)), nil
	}
}

// handleGenerateReport implements the generate_report tool
func handleGenerateReport(runner reportRunner, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ticker, err := request.RequireString("ticker")
		if err != nil || strings.TrimSpace(ticker) == "" {
			return errorResult("Error: ticker parameter is required"), nil
		}

		rpt, err := runner.Run(ctx, pipeline.Request{
			Ticker:    ticker,
			Benchmark: request.GetString("benchmark", ""),
		})
		if err != nil {
			logger.Error().Err(err).Str("ticker", ticker).Msg("Report generation failed")
			return errorResult("Report error: %v", err), nil
		}

		return textResult(formatReport(rpt)), nil
	}
}
