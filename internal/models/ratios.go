package models

import "time"

// Ratio names in output order
const (
	RatioROE               = "ROE"
	RatioNetProfitMargin   = "NetProfitMargin"
	RatioGrossMargin       = "GrossMargin"
	RatioCurrentRatio      = "CurrentRatio"
	RatioQuickRatio        = "QuickRatio"
	RatioDebtToEquity      = "DebtToEquityRatio"
	RatioInterestCoverage  = "InterestCoverageRatio"
	RatioAssetTurnover     = "AssetTurnover"
	RatioInventoryTurnover = "InventoryTurnover"
	RatioEPSGrowth         = "EPSGrowth"
	RatioRevenueGrowth     = "RevenueGrowth"
	RatioPE                = "PE_Ratio"
)

// RatioNames lists every ratio in output order
var RatioNames = []string{
	RatioROE,
	RatioNetProfitMargin,
	RatioGrossMargin,
	RatioCurrentRatio,
	RatioQuickRatio,
	RatioDebtToEquity,
	RatioInterestCoverage,
	RatioAssetTurnover,
	RatioInventoryTurnover,
	RatioEPSGrowth,
	RatioRevenueGrowth,
	RatioPE,
}

// RatioRecord holds the ratios for one period end. A nil value means the
// ratio is undefined for that period; values are always finite.
type RatioRecord struct {
	PeriodEnd time.Time           `json:"period_end"`
	Values    map[string]*float64 `json:"values"`
}

// Get returns the named ratio, or nil when undefined
func (r RatioRecord) Get(name string) *float64 {
	if r.Values == nil {
		return nil
	}
	return r.Values[name]
}

// AllNull reports whether every ratio is undefined
func (r RatioRecord) AllNull() bool {
	for _, name := range RatioNames {
		if r.Get(name) != nil {
			return false
		}
	}
	return true
}

// Float64Ptr returns a pointer to v
func Float64Ptr(v float64) *float64 {
	return &v
}
