package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ternarybob/finagent/internal/app"
	"github.com/ternarybob/finagent/internal/common"
)

func main() {
	// Load configuration
	var paths []string
	if configPath := os.Getenv("FINAGENT_CONFIG"); configPath != "" {
		paths = append(paths, configPath)
	} else if _, err := os.Stat("finagent.toml"); err == nil {
		paths = append(paths, "finagent.toml")
	}

	config, err := common.LoadFromFiles(paths...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := config.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	// stdout carries the MCP protocol, so logs only go to file
	config.Logging.Output = []string{"file"}
	config.Logging.Level = "warn"
	config.Scheduler.Enabled = false
	logger := common.InitLogger(config, "finagent-mcp")

	application, err := app.New(config, logger, app.WithoutStorage())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	// Create MCP server
	mcpServer := server.NewMCPServer(
		"finagent",
		common.Version,
		server.WithToolCapabilities(true),
	)

	mcpServer.AddTool(createFundamentalAnalysisTool(), handleFundamentalAnalysis(application.Fundamentals, logger))
	mcpServer.AddTool(createTechnicalAnalysisTool(), handleTechnicalAnalysis(application.Technicals, config.Prices.Benchmark, logger))
	mcpServer.AddTool(createFilingSectionsTool(), handleFilingSections(application.Filings, logger))
	mcpServer.AddTool(createGenerateReportTool(), handleGenerateReport(application.Pipeline, logger))

	// web_search is only offered when a search engine is configured
	if application.Search != nil {
		mcpServer.AddTool(createWebSearchTool(), handleWebSearch(application.Search, config.Search.NumResults, logger))
	}

	// Start server (blocks on stdio)
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Error().Err(err).Msg("MCP server failed")
		fmt.Fprintf(os.Stderr, "MCP server failed: %v\n", err)
	}
}
