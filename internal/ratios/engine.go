// Package ratios computes per-period financial ratios from standardized
// concept series.
package ratios

import (
	"math"
	"sort"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finagent/internal/common"
	"github.com/ternarybob/finagent/internal/models"
)

// column is one concept aligned to the joined period index. NaN marks a
// period the concept was not reported for.
type column []float64

// Engine computes the ratio table
type Engine struct {
	logger arbor.ILogger
}

// NewEngine creates a ratio engine
func NewEngine(logger arbor.ILogger) *Engine {
	return &Engine{logger: logger}
}

// Compute outer-joins the concept series on period end and evaluates the
// twelve ratios for every period. series is keyed by template concept name;
// concepts not present are treated as never reported. price is the current
// close used for PE_Ratio and may be nil.
//
// Rows where every ratio is undefined are dropped. When no series were
// supplied, or nothing could be computed, the result is empty and the error
// is an InsufficientDataError.
func (e *Engine) Compute(series map[string]models.ConceptSeries, price *float64) ([]models.RatioRecord, error) {
	if len(series) == 0 {
		return []models.RatioRecord{}, &common.InsufficientDataError{Reason: "no concept series were retrieved"}
	}

	periods := joinPeriods(series)
	cols := make(map[string]column, len(models.TemplateConcepts))
	for _, concept := range models.TemplateConcepts {
		s, ok := series[concept]
		if !ok {
			e.logger.Debug().Str("concept", concept).Msg("Concept missing from join, treating as null")
		}
		cols[concept] = align(periods, s, ok)
	}

	netIncome := cols[models.ConceptNetIncome]
	equity := cols[models.ConceptStockholdersEquity]
	revenue := cols[models.ConceptRevenues]
	cogs := cols[models.ConceptCostOfRevenue]
	currentAssets := cols[models.ConceptAssetsCurrent]
	currentLiabilities := cols[models.ConceptLiabilitiesCurrent]
	inventory := cols[models.ConceptInventory]
	liabilities := cols[models.ConceptLiabilities]
	operatingIncome := cols[models.ConceptOperatingIncome]
	interest := cols[models.ConceptInterestExpense]
	assets := cols[models.ConceptAssets]
	eps := cols[models.ConceptEPSBasic]

	priceCol := make(column, len(periods))
	for i := range priceCol {
		priceCol[i] = math.NaN()
		if price != nil {
			priceCol[i] = *price
		}
	}

	computed := map[string]column{
		models.RatioROE:               divide(netIncome, equity),
		models.RatioNetProfitMargin:   divide(netIncome, revenue),
		models.RatioGrossMargin:       divide(subtract(revenue, cogs), revenue),
		models.RatioCurrentRatio:      divide(currentAssets, currentLiabilities),
		models.RatioQuickRatio:        divide(subtract(currentAssets, inventory), currentLiabilities),
		models.RatioDebtToEquity:      divide(liabilities, equity),
		models.RatioInterestCoverage:  divide(operatingIncome, interest),
		models.RatioAssetTurnover:     divide(revenue, trailingMean(assets, 2)),
		models.RatioInventoryTurnover: divide(cogs, trailingMean(inventory, 2)),
		models.RatioEPSGrowth:         growth(eps),
		models.RatioRevenueGrowth:     growth(revenue),
		models.RatioPE:                divide(priceCol, eps),
	}

	records := make([]models.RatioRecord, 0, len(periods))
	for i, period := range periods {
		rec := models.RatioRecord{PeriodEnd: period, Values: make(map[string]*float64, len(models.RatioNames))}
		for _, name := range models.RatioNames {
			if v := computed[name][i]; !math.IsNaN(v) {
				rec.Values[name] = models.Float64Ptr(v)
			} else {
				rec.Values[name] = nil
			}
		}
		if rec.AllNull() {
			continue
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		e.logger.Warn().Int("periods", len(periods)).Msg("All calculated financial ratios are null")
		return records, &common.InsufficientDataError{Reason: "every ratio is null for every period"}
	}

	e.logger.Debug().
		Int("periods", len(periods)).
		Int("rows", len(records)).
		Msg("Financial ratios computed")

	return records, nil
}

// joinPeriods returns the sorted union of period ends across all series
func joinPeriods(series map[string]models.ConceptSeries) []time.Time {
	seen := make(map[time.Time]struct{})
	var periods []time.Time
	for _, s := range series {
		for _, p := range s.Points {
			key := p.PeriodEnd.UTC()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			periods = append(periods, key)
		}
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Before(periods[j]) })
	return periods
}

func align(periods []time.Time, s models.ConceptSeries, present bool) column {
	col := make(column, len(periods))
	for i := range col {
		col[i] = math.NaN()
	}
	if !present {
		return col
	}
	index := make(map[time.Time]int, len(periods))
	for i, p := range periods {
		index[p] = i
	}
	for _, p := range s.Points {
		if i, ok := index[p.PeriodEnd.UTC()]; ok {
			col[i] = p.Value
		}
	}
	return col
}
