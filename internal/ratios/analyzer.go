package ratios

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finagent/internal/charts"
	"github.com/ternarybob/finagent/internal/common"
	"github.com/ternarybob/finagent/internal/models"
)

// ConceptSource resolves tickers and reads XBRL concepts. The EDGAR client
// implements it.
type ConceptSource interface {
	Resolve(ctx context.Context, ticker string) (models.Company, error)
	FetchConcepts(ctx context.Context, cik string) ([]string, error)
	FetchConceptSeries(ctx context.Context, cik, concept string) (models.ConceptSeries, error)
}

// ConceptMatcher maps company concepts onto the template vocabulary
type ConceptMatcher interface {
	Match(ctx context.Context, companyConcepts []string, templates []string) models.ConceptMap
}

// PriceQuoter returns the latest close for PE_Ratio
type PriceQuoter interface {
	LatestClose(ctx context.Context, ticker common.Ticker) (float64, error)
}

// Analyzer runs the fundamental analysis of one company: resolve, match,
// fetch each matched concept, quote the price, compute the ratios and chart
// them. Failures of a single concept or of the quote become warnings.
type Analyzer struct {
	source    ConceptSource
	matcher   ConceptMatcher
	quoter    PriceQuoter
	engine    *Engine
	renderer  *charts.Renderer
	chartsDir string
	logger    arbor.ILogger
}

// NewAnalyzer creates a fundamental Analyzer. quoter and renderer may be nil.
func NewAnalyzer(source ConceptSource, matcher ConceptMatcher, quoter PriceQuoter, renderer *charts.Renderer, chartsDir string, logger arbor.ILogger) *Analyzer {
	return &Analyzer{
		source:    source,
		matcher:   matcher,
		quoter:    quoter,
		engine:    NewEngine(logger),
		renderer:  renderer,
		chartsDir: chartsDir,
		logger:    logger,
	}
}

// Analyze runs every stage for ticker
func (a *Analyzer) Analyze(ctx context.Context, ticker string) (*models.FundamentalAnalysis, error) {
	company, err := a.Resolve(ctx, ticker)
	if err != nil {
		return nil, err
	}
	conceptMap, err := a.Match(ctx, company)
	if err != nil {
		return nil, err
	}
	return a.Compute(ctx, company, conceptMap)
}

// Resolve maps the ticker to its registrant
func (a *Analyzer) Resolve(ctx context.Context, ticker string) (models.Company, error) {
	company, err := a.source.Resolve(ctx, ticker)
	if err != nil {
		return models.Company{}, fmt.Errorf("failed to resolve %s: %w", ticker, err)
	}
	return company, nil
}

// Match lists the company's reported concepts and matches them to the
// template. A company reporting no us-gaap concepts cannot be analysed.
func (a *Analyzer) Match(ctx context.Context, company models.Company) (models.ConceptMap, error) {
	concepts, err := a.source.FetchConcepts(ctx, company.CIK)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch concepts for %s: %w", company.Ticker, err)
	}
	if len(concepts) == 0 {
		return nil, &common.InsufficientDataError{Reason: "no us-gaap concepts reported for " + company.Ticker}
	}

	a.logger.Info().
		Str("ticker", company.Ticker).
		Int("concepts", len(concepts)).
		Msg("Matching company concepts")

	return a.matcher.Match(ctx, concepts, models.TemplateConcepts), nil
}

// Compute fetches every matched concept series, quotes the price and
// evaluates the ratios.
func (a *Analyzer) Compute(ctx context.Context, company models.Company, conceptMap models.ConceptMap) (*models.FundamentalAnalysis, error) {
	result := &models.FundamentalAnalysis{Company: company, ConceptMap: conceptMap}

	series := make(map[string]models.ConceptSeries, len(models.TemplateConcepts))
	for _, template := range models.TemplateConcepts {
		concept, ok := conceptMap.Matched(template)
		if !ok {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s: no matching company concept", template))
			continue
		}

		s, err := a.source.FetchConceptSeries(ctx, company.CIK, concept)
		if err != nil {
			a.logger.Warn().
				Str("template", template).
				Str("concept", concept).
				Err(err).
				Msg("Failed to fetch concept series")
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s (%s): %v", template, concept, err))
			continue
		}
		if len(s.Points) == 0 {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s (%s): no values reported", template, concept))
			continue
		}
		series[template] = s
	}

	if a.quoter != nil {
		price, err := a.quoter.LatestClose(ctx, common.ParseTicker(company.Ticker))
		if err != nil {
			a.logger.Warn().Str("ticker", company.Ticker).Err(err).Msg("Failed to quote price, PE_Ratio unavailable")
			result.Warnings = append(result.Warnings, fmt.Sprintf("price quote: %v", err))
		} else {
			result.Price = &price
		}
	}

	records, err := a.engine.Compute(series, result.Price)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", company.Ticker, err)
	}
	result.Ratios = records

	if a.renderer != nil {
		var warnings []string
		result.Charts, warnings = a.renderCharts(common.ParseTicker(company.Ticker), records)
		result.Warnings = append(result.Warnings, warnings...)
	}

	a.logger.Info().
		Str("ticker", company.Ticker).
		Int("matched", conceptMap.MatchedCount()).
		Int("series", len(series)).
		Int("periods", len(records)).
		Msg("Fundamental analysis complete")

	return result, nil
}

// renderCharts draws one chart per ratio group. Groups with no defined value
// are skipped without a warning.
func (a *Analyzer) renderCharts(ticker common.Ticker, records []models.RatioRecord) (map[string]string, []string) {
	paths := make(map[string]string)
	var warnings []string

	for _, group := range ChartGroups {
		chart := groupChart(ticker, group, records)
		path := ChartPath(a.chartsDir, ticker, group.Name)
		err := a.renderer.RenderTimeChart(path, chart)
		switch {
		case err == nil:
			paths[group.Name] = path
		case errors.Is(err, charts.ErrNoData):
			continue
		default:
			a.logger.Warn().Err(err).Str("ticker", ticker.String()).Str("chart", group.Name).Msg("Failed to render chart")
			warnings = append(warnings, fmt.Sprintf("chart %s not rendered: %v", group.Name, err))
		}
	}
	return paths, warnings
}
