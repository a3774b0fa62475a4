package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ternarybob/finagent/internal/app"
	"github.com/ternarybob/finagent/internal/pipeline"
)

var (
	analyzeBenchmark   string
	analyzeSkipSearch  bool
	analyzeSkipFilings bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze TICKER",
	Short: "Run the full analysis for one ticker and write the report",
	Long: `Runs fundamentals, technicals, filing extraction and web search for TICKER,
writes the Markdown (and PDF) report and stores it in the report database.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeBenchmark, "benchmark", "b", "", "Benchmark symbol (default from config)")
	analyzeCmd.Flags().BoolVar(&analyzeSkipSearch, "skip-search", false, "Skip the web search stage")
	analyzeCmd.Flags().BoolVar(&analyzeSkipFilings, "skip-filings", false, "Skip the filing excerpt stage")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(config, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer application.Close()

	rpt, err := application.Pipeline.Run(ctx, pipeline.Request{
		Ticker:      args[0],
		Benchmark:   analyzeBenchmark,
		SkipSearch:  analyzeSkipSearch,
		SkipFilings: analyzeSkipFilings,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Report %s for %s (%d ms)\n", rpt.ID, rpt.Ticker, rpt.DurationMs)
	if rpt.MarkdownPath != "" {
		fmt.Fprintf(out, "  markdown: %s\n", rpt.MarkdownPath)
	}
	if rpt.PDFPath != "" {
		fmt.Fprintf(out, "  pdf:      %s\n", rpt.PDFPath)
	}
	for _, w := range rpt.Warnings {
		fmt.Fprintf(out, "  warning:  %s\n", w)
	}
	return nil
}
