package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finagent/internal/common"
	"github.com/ternarybob/finagent/internal/models"
	"github.com/ternarybob/finagent/internal/report"
)

type fakeFundamentals struct {
	resolveErr error
	matchErr   error
	computeErr error
	calls      []string
}

func (f *fakeFundamentals) Resolve(_ context.Context, ticker string) (models.Company, error) {
	f.calls = append(f.calls, "resolve")
	if f.resolveErr != nil {
		return models.Company{}, f.resolveErr
	}
	return models.Company{CIK: "0000320193", Ticker: ticker, Title: "Apple Inc."}, nil
}

func (f *fakeFundamentals) Match(_ context.Context, _ models.Company) (models.ConceptMap, error) {
	f.calls = append(f.calls, "match")
	if f.matchErr != nil {
		return nil, f.matchErr
	}
	return models.ConceptMap{models.ConceptNetIncome: models.ConceptNetIncome}, nil
}

func (f *fakeFundamentals) Compute(_ context.Context, company models.Company, conceptMap models.ConceptMap) (*models.FundamentalAnalysis, error) {
	f.calls = append(f.calls, "compute")
	if f.computeErr != nil {
		return nil, f.computeErr
	}
	return &models.FundamentalAnalysis{
		Company:    company,
		ConceptMap: conceptMap,
		Ratios: []models.RatioRecord{{
			PeriodEnd: time.Date(2024, 9, 28, 0, 0, 0, 0, time.UTC),
			Values:    map[string]*float64{models.RatioROE: models.Float64Ptr(1.5)},
		}},
		Warnings: []string{"concept Revenues: not found"},
	}, nil
}

type fakeTechnicals struct {
	err       error
	benchmark string
}

func (f *fakeTechnicals) Analyze(_ context.Context, ticker, benchmark string) (*models.IndicatorSnapshot, []string, error) {
	f.benchmark = benchmark
	if f.err != nil {
		return nil, nil, f.err
	}
	return &models.IndicatorSnapshot{Ticker: ticker, Benchmark: benchmark, Trend: models.TrendUpward, Observations: 250}, []string{"chart beta: no data"}, nil
}

type fakeFilings struct{ err error }

func (f *fakeFilings) ExtractLatest(_ context.Context, _, form string, _ []string) (*models.Filing, []models.FilingSection, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return &models.Filing{Form: form}, []models.FilingSection{{Name: "Item 1A. Risk Factors", Text: "Risks."}}, nil
}

type fakeSearcher struct {
	err   error
	query string
}

func (f *fakeSearcher) Search(_ context.Context, query string, num int) ([]models.SearchResult, error) {
	f.query = query
	if f.err != nil {
		return nil, f.err
	}
	return []models.SearchResult{{Title: "News", Link: "https://example.com"}}, nil
}

type fakeNarrator struct{ err error }

func (f *fakeNarrator) Write(_ context.Context, _ report.Input) (*models.Narrative, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Narrative{Summary: "Strong year."}, nil
}

type memoryStore struct{ saved []*models.Report }

func (m *memoryStore) SaveReport(_ context.Context, r *models.Report) error {
	m.saved = append(m.saved, r)
	return nil
}

var fixedNow = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }

func TestRunFullPipeline(t *testing.T) {
	dir := t.TempDir()
	fund := &fakeFundamentals{}
	tech := &fakeTechnicals{}
	search := &fakeSearcher{}
	store := &memoryStore{}
	var states []State

	p := New(fund, tech, report.NewAssembler(dir), arbor.NewLogger(),
		WithFilings(&fakeFilings{}, "", []string{"Item 1A. Risk Factors"}),
		WithSearch(search, 2),
		WithNarrator(&fakeNarrator{}),
		WithWriter(report.NewWriter(dir, nil, arbor.NewLogger())),
		WithStore(store),
		WithClock(fixedNow),
		WithTransitionHook(func(s State) { states = append(states, s) }),
	)

	rep, err := p.Run(context.Background(), Request{Ticker: "aapl"})
	require.NoError(t, err)

	assert.Equal(t, []State{StateResolve, StateMatch, StateFundamentals, StateTechnicals, StateFilings, StateSearch, StateAssemble}, states)
	assert.Equal(t, "AAPL", rep.Ticker)
	assert.Equal(t, "^GSPC", rep.Benchmark)
	assert.Equal(t, "^GSPC", tech.benchmark)
	assert.Equal(t, "Apple Inc.", rep.CompanyName)
	assert.Equal(t, "0000320193", rep.CIK)
	assert.Equal(t, fixedNow(), rep.CreatedAt)
	require.NotNil(t, rep.Fundamentals)
	require.NotNil(t, rep.Technicals)
	require.NotNil(t, rep.Filing)
	assert.Equal(t, "10-K", rep.Filing.Form)
	assert.Len(t, rep.Sections, 1)
	assert.Len(t, rep.Sources, 1)
	assert.Equal(t, "Apple Inc. (AAPL) stock news", search.query)
	require.NotNil(t, rep.Narrative)
	assert.Equal(t, []string{"concept Revenues: not found", "chart beta: no data"}, rep.Warnings)
	assert.Contains(t, rep.Markdown, "## Executive Summary")
	assert.Contains(t, rep.Markdown, "## Financial Ratios")
	assert.Equal(t, filepath.Join(dir, "AAPL_20250301T120000Z.md"), rep.MarkdownPath)
	assert.FileExists(t, rep.MarkdownPath)
	assert.Contains(t, rep.Phases, string(StateAssemble))
	require.Len(t, store.saved, 1)
	assert.Equal(t, rep.ID, store.saved[0].ID)
}

func TestRunFundamentalsFailureIsWarning(t *testing.T) {
	fund := &fakeFundamentals{resolveErr: &common.NotFoundError{Kind: "ticker", Key: "SPY"}}
	search := &fakeSearcher{}
	filings := &fakeFilings{err: errors.New("should not be called")}

	p := New(fund, &fakeTechnicals{}, report.NewAssembler(""), arbor.NewLogger(),
		WithFilings(filings, "10-K", nil),
		WithSearch(search, 1),
		WithClock(fixedNow),
	)
	rep, err := p.Run(context.Background(), Request{Ticker: "SPY", Benchmark: "^NDX"})
	require.NoError(t, err)

	assert.Equal(t, []string{"resolve"}, fund.calls)
	assert.Nil(t, rep.Fundamentals)
	assert.Nil(t, rep.Filing, "filings need a resolved company")
	require.NotNil(t, rep.Technicals)
	assert.Equal(t, "^NDX", rep.Benchmark)
	assert.Contains(t, rep.Warnings, "fundamentals: ticker not found: SPY")
	assert.Equal(t, "SPY (SPY) stock news", search.query)
}

func TestRunTechnicalsFailureIsWarning(t *testing.T) {
	p := New(&fakeFundamentals{}, &fakeTechnicals{err: &common.NoDataError{Symbol: "AAPL"}}, report.NewAssembler(""), arbor.NewLogger())
	rep, err := p.Run(context.Background(), Request{Ticker: "AAPL"})
	require.NoError(t, err)
	assert.NotNil(t, rep.Fundamentals)
	assert.Nil(t, rep.Technicals)
	assert.Contains(t, rep.Warnings, "technicals: no price data for AAPL")
}

func TestRunBothFail(t *testing.T) {
	store := &memoryStore{}
	fund := &fakeFundamentals{matchErr: &common.InsufficientDataError{Reason: "no concepts"}}
	p := New(fund, &fakeTechnicals{err: &common.NoDataError{Symbol: "ZZZZ"}}, report.NewAssembler(""), arbor.NewLogger(), WithStore(store))

	rep, err := p.Run(context.Background(), Request{Ticker: "ZZZZ"})
	require.Error(t, err)
	assert.Nil(t, rep)
	assert.True(t, common.IsInsufficientData(err))
	var noData *common.NoDataError
	assert.ErrorAs(t, err, &noData)
	assert.Equal(t, []string{"resolve", "match"}, fund.calls)
	assert.Empty(t, store.saved)
}

func TestRunOptionalStageFailures(t *testing.T) {
	p := New(&fakeFundamentals{}, &fakeTechnicals{}, report.NewAssembler(""), arbor.NewLogger(),
		WithFilings(&fakeFilings{err: &common.NotFoundError{Kind: "filing", Key: "10-K"}}, "10-K", nil),
		WithSearch(&fakeSearcher{err: &common.UpstreamError{Source: "google", StatusCode: 429}}, 2),
		WithNarrator(&fakeNarrator{err: errors.New("rate limited")}),
	)
	rep, err := p.Run(context.Background(), Request{Ticker: "AAPL"})
	require.NoError(t, err)

	assert.Contains(t, rep.Warnings, "filings: filing not found: 10-K")
	assert.Contains(t, rep.Warnings, "search: google upstream error (status: 429)")
	assert.Contains(t, rep.Warnings, "narrative: rate limited")
	assert.Nil(t, rep.Narrative)
	assert.Contains(t, rep.Markdown, "narrative: rate limited")
}

func TestRunSkipsOptionalStages(t *testing.T) {
	search := &fakeSearcher{}
	p := New(&fakeFundamentals{}, &fakeTechnicals{}, report.NewAssembler(""), arbor.NewLogger(),
		WithFilings(&fakeFilings{}, "", nil),
		WithSearch(search, 2),
	)
	rep, err := p.Run(context.Background(), Request{Ticker: "AAPL", SkipSearch: true, SkipFilings: true})
	require.NoError(t, err)
	assert.Nil(t, rep.Filing)
	assert.Empty(t, rep.Sources)
	assert.Empty(t, search.query)
}

func TestRunRejectsEmptyTicker(t *testing.T) {
	p := New(&fakeFundamentals{}, &fakeTechnicals{}, report.NewAssembler(""), arbor.NewLogger())
	_, err := p.Run(context.Background(), Request{Ticker: "  "})
	assert.True(t, common.IsNotFound(err))
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := New(&fakeFundamentals{}, &fakeTechnicals{}, report.NewAssembler(""), arbor.NewLogger())
	_, err := p.Run(ctx, Request{Ticker: "AAPL"})
	assert.ErrorIs(t, err, context.Canceled)
}
