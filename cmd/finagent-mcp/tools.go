package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createFundamentalAnalysisTool returns the fundamental_analysis tool definition
func createFundamentalAnalysisTool() mcp.Tool {
	return mcp.NewTool("fundamental_analysis",
		mcp.WithDescription("Compute standardized financial ratios (ROE, margins, liquidity, leverage, growth, P/E) from SEC EDGAR filings for a US listed company"),
		mcp.WithString("ticker",
			mcp.Required(),
			mcp.Description("Stock ticker, e.g. AAPL or BRK.B"),
		),
	)
}

// createTechnicalAnalysisTool returns the technical_analysis tool definition
func createTechnicalAnalysisTool() mcp.Tool {
	return mcp.NewTool("technical_analysis",
		mcp.WithDescription("Compute technical indicators (moving averages, trend, volatility, beta, alpha, MACD, Bollinger %B) from a year of daily prices"),
		mcp.WithString("ticker",
			mcp.Required(),
			mcp.Description("Stock ticker, e.g. MSFT"),
		),
		mcp.WithString("benchmark",
			mcp.Description("Benchmark symbol (default: ^GSPC)"),
		),
	)
}

// createWebSearchTool returns the web_search tool definition
func createWebSearchTool() mcp.Tool {
	return mcp.NewTool("web_search",
		mcp.WithDescription("Search the web and return the top results with the visible text of each page"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query"),
		),
		mcp.WithNumber("num_results",
			mcp.Description("Results to return (default: 2, max: 10)"),
		),
	)
}

// createFilingSectionsTool returns the filing_sections tool definition
func createFilingSectionsTool() mcp.Tool {
	return mcp.NewTool("filing_sections",
		mcp.WithDescription("Extract named sections (e.g. Item 1A. Risk Factors) from the latest SEC filing of a company"),
		mcp.WithString("ticker",
			mcp.Required(),
			mcp.Description("Stock ticker"),
		),
		mcp.WithString("form",
			mcp.Description("Filing form (default: 10-K)"),
		),
		mcp.WithArray("sections",
			mcp.WithStringItems(),
			mcp.Description("Section headings to extract (default: Item 1, Item 1A, Item 7)"),
		),
	)
}

// createGenerateReportTool returns the generate_report tool definition
func createGenerateReportTool() mcp.Tool {
	return mcp.NewTool("generate_report",
		mcp.WithDescription("Run the full analysis for a ticker and write the Markdown (and PDF) report"),
		mcp.WithString("ticker",
			mcp.Required(),
			mcp.Description("Stock ticker"),
		),
		mcp.WithString("benchmark",
			mcp.Description("Benchmark symbol (default from config)"),
		),
	)
}
