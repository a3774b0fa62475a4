package app

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finagent/internal/charts"
	"github.com/ternarybob/finagent/internal/common"
	"github.com/ternarybob/finagent/internal/edgar"
	"github.com/ternarybob/finagent/internal/filings"
	"github.com/ternarybob/finagent/internal/handlers"
	"github.com/ternarybob/finagent/internal/indicators"
	"github.com/ternarybob/finagent/internal/llm"
	"github.com/ternarybob/finagent/internal/matcher"
	"github.com/ternarybob/finagent/internal/pipeline"
	"github.com/ternarybob/finagent/internal/prices"
	"github.com/ternarybob/finagent/internal/ratios"
	"github.com/ternarybob/finagent/internal/report"
	"github.com/ternarybob/finagent/internal/scheduler"
	"github.com/ternarybob/finagent/internal/search"
	"github.com/ternarybob/finagent/internal/storage/badger"
)

// perTickerTimeout bounds one scheduled watchlist analysis
const perTickerTimeout = 10 * time.Minute

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Storage is nil when the app was created WithoutStorage
	Storage *badger.Manager

	LLM          *llm.ProviderFactory
	EDGAR        *edgar.Client
	Prices       prices.Provider
	Fundamentals *ratios.Analyzer
	Technicals   *indicators.Analyzer
	Filings      *filings.Service
	Search       *search.Client // nil when search is disabled
	Assembler    *report.Assembler
	Writer       *report.Writer
	Pipeline     *pipeline.Pipeline
	Scheduler    *scheduler.Service // nil when the scheduler is disabled

	// HTTP handlers
	APIHandler       *handlers.APIHandler
	ReportHandler    *handlers.ReportHandler
	AnalysisHandler  *handlers.AnalysisHandler
	SchedulerHandler *handlers.SchedulerHandler

	withStorage bool
}

// Option configures App construction
type Option func(*App)

// WithoutStorage skips opening the report database. Reports are still
// written to disk but not indexed; used by the MCP server, which may run
// next to an HTTP server holding the database lock.
func WithoutStorage() Option {
	return func(a *App) {
		a.withStorage = false
	}
}

// New creates and initializes a new application instance
func New(cfg *common.Config, logger arbor.ILogger, opts ...Option) (*App, error) {
	app := &App{
		Config:      cfg,
		Logger:      logger,
		withStorage: true,
	}
	for _, opt := range opts {
		opt(app)
	}

	if app.withStorage {
		if err := app.initDatabase(); err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
	}

	if err := app.initServices(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	if app.Scheduler != nil {
		if err := app.Scheduler.Start(cfg.Scheduler.Schedule); err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	logger.Info().
		Str("matcher", cfg.Matcher.Mode).
		Str("prices", app.Prices.Name()).
		Bool("search_enabled", app.Search != nil).
		Bool("narrative_enabled", cfg.LLM.Narrative).
		Bool("pdf_enabled", cfg.Output.PDF).
		Bool("scheduler_enabled", app.Scheduler != nil).
		Msg("Application initialization complete")

	return app, nil
}

func (a *App) initDatabase() error {
	manager, err := badger.NewManager(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return err
	}
	a.Storage = manager
	a.Logger.Debug().Str("path", a.Config.Storage.Badger.Path).Msg("Report storage initialized")
	return nil
}

func (a *App) initServices() error {
	cfg := a.Config

	a.LLM = llm.NewProviderFactory(cfg, a.Logger)

	a.EDGAR = edgar.NewClient(cfg.SEC.UserAgent,
		edgar.WithTimeout(common.ParseDurationOr(cfg.SEC.Timeout, edgar.DefaultTimeout)),
		edgar.WithRateLimit(cfg.SEC.RateLimit),
		edgar.WithLogger(a.Logger))

	provider, err := prices.NewProvider(cfg.Prices, a.Logger)
	if err != nil {
		return err
	}
	a.Prices = provider

	var oracle matcher.Oracle
	switch cfg.Matcher.Mode {
	case "fuzzy":
		oracle = matcher.NewFuzzyOracle(cfg.Matcher.MinScore)
	default:
		oracle = matcher.NewLLMOracle(a.LLM, cfg.Matcher.Model)
	}

	renderer := charts.NewRenderer(a.Logger)

	a.Fundamentals = ratios.NewAnalyzer(
		a.EDGAR,
		matcher.NewMatcher(oracle, a.Logger),
		prices.NewQuoter(provider),
		renderer,
		filepath.Join(cfg.Output.ChartsDir, "fundamental"),
		a.Logger)

	a.Technicals = indicators.NewAnalyzer(
		provider,
		renderer,
		filepath.Join(cfg.Output.ChartsDir, "technical"),
		a.Logger,
		indicators.WithLookbackDays(cfg.Prices.LookbackDays))

	a.Filings = filings.NewService(a.EDGAR, a.Logger)

	var pdf *report.PDFRenderer
	if cfg.Output.PDF {
		pdf = report.NewPDFRenderer(a.Logger)
	}
	a.Assembler = report.NewAssembler(cfg.Output.ReportsDir)
	a.Writer = report.NewWriter(cfg.Output.ReportsDir, pdf, a.Logger)

	opts := []pipeline.Option{
		pipeline.WithFilings(a.Filings, "10-K", filings.DefaultSections),
		pipeline.WithWriter(a.Writer),
		pipeline.WithBenchmark(cfg.Prices.Benchmark),
	}
	if cfg.Search.Enabled {
		a.Search = search.NewClientFromConfig(cfg.Search, a.Logger)
		opts = append(opts, pipeline.WithSearch(a.Search, cfg.Search.NumResults))
	}
	if cfg.LLM.Narrative {
		opts = append(opts, pipeline.WithNarrator(report.NewNarrativeWriter(a.LLM, "", a.Logger)))
	}
	if a.Storage != nil {
		opts = append(opts, pipeline.WithStore(a.Storage.ReportStorage()))
	}
	a.Pipeline = pipeline.New(a.Fundamentals, a.Technicals, a.Assembler, a.Logger, opts...)

	if cfg.Scheduler.Enabled {
		a.Scheduler = scheduler.NewService(a.Pipeline, cfg.Scheduler.Watchlist, cfg.Prices.Benchmark, perTickerTimeout, a.Logger)
	}

	return nil
}

func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler(a.Logger)

	if a.Storage != nil {
		a.ReportHandler = handlers.NewReportHandler(a.Pipeline, a.Storage.ReportStorage(), a.Logger)
	}

	// A nil *search.Client must not become a non-nil interface
	var searcher handlers.WebSearcher
	if a.Search != nil {
		searcher = a.Search
	}
	a.AnalysisHandler = handlers.NewAnalysisHandler(
		a.Fundamentals,
		a.Technicals,
		a.Filings,
		searcher,
		a.Config.Prices.Benchmark,
		a.Config.Search.NumResults,
		a.Logger)

	if a.Scheduler != nil {
		a.SchedulerHandler = handlers.NewSchedulerHandler(a.Scheduler, a.Logger)
	}
}

// Close stops the scheduler and releases clients and storage
func (a *App) Close() error {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
		a.Logger.Info().Msg("Scheduler stopped")
	}

	if a.LLM != nil {
		if err := a.LLM.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close LLM clients")
		}
	}

	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
