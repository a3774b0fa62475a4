package ratios

import (
	"image/color"
	"math"
	"path/filepath"
	"time"

	"github.com/ternarybob/finagent/internal/charts"
	"github.com/ternarybob/finagent/internal/common"
	"github.com/ternarybob/finagent/internal/models"
)

// ChartGroup is a set of ratios drawn on one chart
type ChartGroup struct {
	Name   string
	Title  string
	Ratios []string
}

// ChartGroups lists the fundamental charts
var ChartGroups = []ChartGroup{
	{Name: "profitability", Title: "Profitability", Ratios: []string{models.RatioROE, models.RatioNetProfitMargin, models.RatioGrossMargin}},
	{Name: "liquidity", Title: "Liquidity", Ratios: []string{models.RatioCurrentRatio, models.RatioQuickRatio}},
	{Name: "leverage", Title: "Leverage", Ratios: []string{models.RatioDebtToEquity, models.RatioInterestCoverage}},
	{Name: "efficiency", Title: "Efficiency", Ratios: []string{models.RatioAssetTurnover, models.RatioInventoryTurnover}},
	{Name: "growth", Title: "Growth", Ratios: []string{models.RatioEPSGrowth, models.RatioRevenueGrowth}},
	{Name: "valuation", Title: "Valuation", Ratios: []string{models.RatioPE}},
}

var groupColors = []color.Color{charts.Blue, charts.Orange, charts.Green}

// ChartPath returns the file a ratio group chart is written to
func ChartPath(dir string, ticker common.Ticker, group string) string {
	return filepath.Join(dir, ticker.FileSafe()+"_"+group+".png")
}

func groupChart(ticker common.Ticker, group ChartGroup, records []models.RatioRecord) charts.TimeChart {
	dates := make([]time.Time, len(records))
	for i, r := range records {
		dates[i] = r.PeriodEnd
	}

	chart := charts.TimeChart{
		Title:  ticker.String() + " " + group.Title + " Ratios",
		YLabel: "Ratio",
	}
	for i, name := range group.Ratios {
		values := make([]float64, len(records))
		for j, r := range records {
			values[j] = math.NaN()
			if v := r.Get(name); v != nil {
				values[j] = *v
			}
		}
		chart.Lines = append(chart.Lines, charts.Line{
			Name:   name,
			Dates:  dates,
			Values: values,
			Color:  groupColors[i%len(groupColors)],
		})
	}
	return chart
}
