// Package pipeline runs a full analysis as an explicit state machine:
// resolve, match, fundamentals, technicals, filings, search, assemble.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finagent/internal/common"
	"github.com/ternarybob/finagent/internal/models"
	"github.com/ternarybob/finagent/internal/report"
)

// State is a pipeline step
type State string

const (
	StateResolve      State = "resolve"
	StateMatch        State = "match"
	StateFundamentals State = "fundamentals"
	StateTechnicals   State = "technicals"
	StateFilings      State = "filings"
	StateSearch       State = "search"
	StateAssemble     State = "assemble"
	StateDone         State = "done"
	StateFailed       State = "failed"
)

// Fundamentals resolves a ticker, matches its concepts and computes ratios
type Fundamentals interface {
	Resolve(ctx context.Context, ticker string) (models.Company, error)
	Match(ctx context.Context, company models.Company) (models.ConceptMap, error)
	Compute(ctx context.Context, company models.Company, conceptMap models.ConceptMap) (*models.FundamentalAnalysis, error)
}

// Technicals computes the indicator snapshot of a ticker against a benchmark
type Technicals interface {
	Analyze(ctx context.Context, ticker, benchmark string) (*models.IndicatorSnapshot, []string, error)
}

// Filings extracts sections of the latest filing of a form
type Filings interface {
	ExtractLatest(ctx context.Context, ticker, form string, sections []string) (*models.Filing, []models.FilingSection, error)
}

// Searcher runs a web search
type Searcher interface {
	Search(ctx context.Context, query string, num int) ([]models.SearchResult, error)
}

// Narrator writes the LLM narrative of a report
type Narrator interface {
	Write(ctx context.Context, in report.Input) (*models.Narrative, error)
}

// Store persists finished reports
type Store interface {
	SaveReport(ctx context.Context, r *models.Report) error
}

// Request is one analysis run
type Request struct {
	Ticker      string `json:"ticker"`
	Benchmark   string `json:"benchmark,omitempty"`
	SkipSearch  bool   `json:"skip_search,omitempty"`
	SkipFilings bool   `json:"skip_filings,omitempty"`
}

// Pipeline runs analyses. Fundamentals and technicals are required, every
// other stage is optional.
type Pipeline struct {
	fundamentals Fundamentals
	technicals   Technicals
	assembler    *report.Assembler
	logger       arbor.ILogger

	filings     Filings
	filingForm  string
	sections    []string
	searcher    Searcher
	numResults  int
	narrator    Narrator
	writer      *report.Writer
	store       Store
	benchmark   string
	now         func() time.Time
	transitions func(State)
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithFilings enables filing excerpts of form (default 10-K)
func WithFilings(f Filings, form string, sections []string) Option {
	return func(p *Pipeline) {
		p.filings = f
		if form != "" {
			p.filingForm = form
		}
		p.sections = sections
	}
}

// WithSearch enables web search with num results per run
func WithSearch(s Searcher, num int) Option {
	return func(p *Pipeline) {
		p.searcher = s
		if num > 0 {
			p.numResults = num
		}
	}
}

// WithNarrator enables the LLM narrative
func WithNarrator(n Narrator) Option {
	return func(p *Pipeline) {
		p.narrator = n
	}
}

// WithWriter writes Markdown and PDF files for each report
func WithWriter(w *report.Writer) Option {
	return func(p *Pipeline) {
		p.writer = w
	}
}

// WithStore persists each report
func WithStore(s Store) Option {
	return func(p *Pipeline) {
		p.store = s
	}
}

// WithBenchmark sets the benchmark used when a request has none
func WithBenchmark(symbol string) Option {
	return func(p *Pipeline) {
		if symbol != "" {
			p.benchmark = symbol
		}
	}
}

// WithClock overrides the report timestamp clock
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// WithTransitionHook is called on entry to every state
func WithTransitionHook(fn func(State)) Option {
	return func(p *Pipeline) {
		p.transitions = fn
	}
}

// New creates a pipeline
func New(fundamentals Fundamentals, technicals Technicals, assembler *report.Assembler, logger arbor.ILogger, opts ...Option) *Pipeline {
	p := &Pipeline{
		fundamentals: fundamentals,
		technicals:   technicals,
		assembler:    assembler,
		logger:       logger,
		filingForm:   "10-K",
		numResults:   2,
		benchmark:    "^GSPC",
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// run is the mutable state of one execution
type run struct {
	req             Request
	report          *models.Report
	company         models.Company
	conceptMap      models.ConceptMap
	fundamentalsErr error
	technicalsErr   error
}

func (r *run) warn(format string, args ...interface{}) {
	r.report.Warnings = append(r.report.Warnings, fmt.Sprintf(format, args...))
}

// Run executes the state machine for req. It fails only when both the
// fundamental and the technical analysis fail; every other failure is
// recorded as a report warning.
func (p *Pipeline) Run(ctx context.Context, req Request) (*models.Report, error) {
	ticker := common.ParseTicker(req.Ticker)
	if ticker.Code == "" {
		return nil, &common.NotFoundError{Kind: "ticker", Key: req.Ticker}
	}
	req.Ticker = ticker.String()
	if strings.TrimSpace(req.Benchmark) == "" {
		req.Benchmark = p.benchmark
	}

	started := p.now()
	r := &run{
		req: req,
		report: &models.Report{
			ID:        common.NewReportID(),
			Ticker:    req.Ticker,
			Benchmark: req.Benchmark,
			CreatedAt: started.UTC(),
			Phases:    make(map[string]int64),
		},
	}

	p.logger.Info().
		Str("id", r.report.ID).
		Str("ticker", req.Ticker).
		Str("benchmark", req.Benchmark).
		Msg("Pipeline started")

	state := StateResolve
	var err error
	for state != StateDone && state != StateFailed {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if p.transitions != nil {
			p.transitions(state)
		}

		phaseStart := time.Now()
		current := state
		state, err = p.step(ctx, r, current)
		r.report.Phases[string(current)] = time.Since(phaseStart).Milliseconds()

		p.logger.Debug().
			Str("id", r.report.ID).
			Str("state", string(current)).
			Str("next", string(state)).
			Int64("ms", r.report.Phases[string(current)]).
			Msg("Pipeline transition")
	}
	r.report.DurationMs = time.Since(started).Milliseconds()

	if state == StateFailed {
		p.logger.Error().
			Err(err).
			Str("id", r.report.ID).
			Str("ticker", req.Ticker).
			Msg("Pipeline failed")
		return nil, err
	}

	p.logger.Info().
		Str("id", r.report.ID).
		Str("ticker", req.Ticker).
		Int("warnings", len(r.report.Warnings)).
		Int64("duration_ms", r.report.DurationMs).
		Msg("Pipeline complete")
	return r.report, nil
}

func (p *Pipeline) step(ctx context.Context, r *run, state State) (State, error) {
	switch state {
	case StateResolve:
		company, err := p.fundamentals.Resolve(ctx, r.req.Ticker)
		if err != nil {
			r.fundamentalsErr = err
			return StateTechnicals, nil
		}
		r.company = company
		r.report.CompanyName = company.Title
		r.report.CIK = company.CIK
		return StateMatch, nil

	case StateMatch:
		conceptMap, err := p.fundamentals.Match(ctx, r.company)
		if err != nil {
			r.fundamentalsErr = err
			return StateTechnicals, nil
		}
		r.conceptMap = conceptMap
		return StateFundamentals, nil

	case StateFundamentals:
		analysis, err := p.fundamentals.Compute(ctx, r.company, r.conceptMap)
		if err != nil {
			r.fundamentalsErr = err
			return StateTechnicals, nil
		}
		r.report.Fundamentals = analysis
		r.report.Warnings = append(r.report.Warnings, analysis.Warnings...)
		return StateTechnicals, nil

	case StateTechnicals:
		snapshot, warnings, err := p.technicals.Analyze(ctx, r.req.Ticker, r.req.Benchmark)
		if err != nil {
			r.technicalsErr = err
		} else {
			r.report.Technicals = snapshot
			r.report.Warnings = append(r.report.Warnings, warnings...)
		}

		switch {
		case r.fundamentalsErr != nil && r.technicalsErr != nil:
			return StateFailed, fmt.Errorf("analysis of %s failed: %w", r.req.Ticker, errors.Join(r.fundamentalsErr, r.technicalsErr))
		case r.fundamentalsErr != nil:
			r.warn("fundamentals: %v", r.fundamentalsErr)
		case r.technicalsErr != nil:
			r.warn("technicals: %v", r.technicalsErr)
		}
		return StateFilings, nil

	case StateFilings:
		if p.filings == nil || r.req.SkipFilings || r.company.CIK == "" {
			return StateSearch, nil
		}
		filing, sections, err := p.filings.ExtractLatest(ctx, r.req.Ticker, p.filingForm, p.sections)
		if err != nil {
			p.logger.Warn().Err(err).Str("ticker", r.req.Ticker).Msg("Filing extraction failed")
			r.warn("filings: %v", err)
			return StateSearch, nil
		}
		r.report.Filing = filing
		r.report.Sections = sections
		return StateSearch, nil

	case StateSearch:
		if p.searcher == nil || r.req.SkipSearch {
			return StateAssemble, nil
		}
		results, err := p.searcher.Search(ctx, searchQuery(r), p.numResults)
		if err != nil {
			p.logger.Warn().Err(err).Str("ticker", r.req.Ticker).Msg("Web search failed")
			r.warn("search: %v", err)
			return StateAssemble, nil
		}
		r.report.Sources = results
		return StateAssemble, nil

	case StateAssemble:
		p.assemble(ctx, r)
		return StateDone, nil
	}

	return StateFailed, fmt.Errorf("unknown pipeline state %q", state)
}

func (p *Pipeline) assemble(ctx context.Context, r *run) {
	rep := r.report
	in := report.Input{
		Ticker:       rep.Ticker,
		Benchmark:    rep.Benchmark,
		GeneratedAt:  rep.CreatedAt,
		Fundamentals: rep.Fundamentals,
		Technicals:   rep.Technicals,
		Filing:       rep.Filing,
		Sections:     rep.Sections,
		Sources:      rep.Sources,
	}

	if p.narrator != nil {
		narrative, err := p.narrator.Write(ctx, in)
		if err != nil {
			p.logger.Warn().Err(err).Str("ticker", rep.Ticker).Msg("Narrative generation failed")
			r.warn("narrative: %v", err)
		} else {
			rep.Narrative = narrative
			in.Narrative = narrative
		}
	}

	// warnings added after this point are on the report record but not in its Markdown
	in.Warnings = rep.Warnings
	rep.Markdown = p.assembler.Build(in)

	if p.writer != nil {
		files, warnings, err := p.writer.Write(rep.Ticker, rep.CreatedAt, rep.Markdown)
		if err != nil {
			p.logger.Warn().Err(err).Str("ticker", rep.Ticker).Msg("Failed to write report files")
			r.warn("output: %v", err)
		}
		rep.MarkdownPath = files.Markdown
		rep.PDFPath = files.PDF
		rep.Warnings = append(rep.Warnings, warnings...)
	}

	if p.store != nil {
		if err := p.store.SaveReport(ctx, rep); err != nil {
			p.logger.Warn().Err(err).Str("id", rep.ID).Msg("Failed to persist report")
			r.warn("store: %v", err)
		}
	}
}

func searchQuery(r *run) string {
	name := r.company.Title
	if name == "" {
		name = r.req.Ticker
	}
	return fmt.Sprintf("%s (%s) stock news", name, r.req.Ticker)
}
