package models

import (
	"sort"
	"time"
)

const (
	// MatchFailed marks a template concept whose oracle call errored
	MatchFailed = "Error in matching."
	// NoMatch marks a template concept the oracle could not match to a company concept
	NoMatch = "No matching concept found."
)

// Template concept names. These are the standardized inputs of the ratio engine.
const (
	ConceptNetIncome          = "NetIncomeLoss"
	ConceptStockholdersEquity = "StockholdersEquity"
	ConceptRevenues           = "Revenues"
	ConceptCostOfRevenue      = "CostOfGoodsAndServicesSold"
	ConceptAssetsCurrent      = "AssetsCurrent"
	ConceptLiabilitiesCurrent = "LiabilitiesCurrent"
	ConceptInventory          = "InventoryNet"
	ConceptLiabilities        = "Liabilities"
	ConceptOperatingIncome    = "OperatingIncomeLoss"
	ConceptInterestExpense    = "InterestExpense"
	ConceptAssets             = "Assets"
	ConceptEPSBasic           = "EarningsPerShareBasic"
)

// TemplateConcepts is the fixed, ordered list of standardized concepts
var TemplateConcepts = []string{
	ConceptNetIncome,
	ConceptStockholdersEquity,
	ConceptRevenues,
	ConceptCostOfRevenue,
	ConceptAssetsCurrent,
	ConceptLiabilitiesCurrent,
	ConceptInventory,
	ConceptLiabilities,
	ConceptOperatingIncome,
	ConceptInterestExpense,
	ConceptAssets,
	ConceptEPSBasic,
}

// Company identifies an SEC registrant
type Company struct {
	CIK    string `json:"cik"` // zero-padded to 10 digits
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

// Observation is one reported value of a concept
type Observation struct {
	PeriodEnd time.Time `json:"period_end"`
	Value     float64   `json:"value"`
}

// ConceptSeries is the reported history of one concept, ascending by period end.
// Each period end appears once. Periods that were not reported are absent.
type ConceptSeries struct {
	Concept string        `json:"concept"`
	Unit    string        `json:"unit"`
	Points  []Observation `json:"points"`
}

// NewConceptSeries sorts observations by period end and keeps the last value
// seen for each period end.
func NewConceptSeries(concept, unit string, obs []Observation) ConceptSeries {
	sorted := make([]Observation, len(obs))
	copy(sorted, obs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PeriodEnd.Before(sorted[j].PeriodEnd)
	})

	points := make([]Observation, 0, len(sorted))
	for _, o := range sorted {
		if n := len(points); n > 0 && points[n-1].PeriodEnd.Equal(o.PeriodEnd) {
			points[n-1] = o
			continue
		}
		points = append(points, o)
	}

	return ConceptSeries{Concept: concept, Unit: unit, Points: points}
}

// ConceptMap maps each template concept to a company concept name or a sentinel
type ConceptMap map[string]string

// Matched returns the company concept for a template concept when one was found
func (m ConceptMap) Matched(template string) (string, bool) {
	v, ok := m[template]
	if !ok || IsSentinel(v) {
		return "", false
	}
	return v, true
}

// MatchedCount returns the number of template concepts with a real match
func (m ConceptMap) MatchedCount() int {
	n := 0
	for k := range m {
		if _, ok := m.Matched(k); ok {
			n++
		}
	}
	return n
}

// IsSentinel reports whether v is one of the unmatched markers
func IsSentinel(v string) bool {
	return v == "" || v == MatchFailed || v == NoMatch
}
