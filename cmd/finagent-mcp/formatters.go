package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ternarybob/finagent/internal/models"
)

// maxRatioPeriods limits the ratio table to the most recent periods
const maxRatioPeriods = 6

func formatValue(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", *v)
}

// formatFundamentals formats the ratio table, one row per ratio and one
// column per period end, newest last.
func formatFundamentals(a *models.FundamentalAnalysis) string {
	var sb strings.Builder
	title := a.Company.Title
	if title == "" {
		title = a.Company.Ticker
	}
	sb.WriteString(fmt.Sprintf("## Fundamentals: %s (%s)\n\n", title, a.Company.Ticker))
	sb.WriteString(fmt.Sprintf("**CIK:** %s\n", a.Company.CIK))
	sb.WriteString(fmt.Sprintf("**Matched concepts:** %d of %d\n", a.ConceptMap.MatchedCount(), len(models.TemplateConcepts)))
	if a.Price != nil {
		sb.WriteString(fmt.Sprintf("**Price:** %.2f\n", *a.Price))
	}
	sb.WriteString("\n")

	records := a.Ratios
	if len(records) > maxRatioPeriods {
		records = records[len(records)-maxRatioPeriods:]
	}
	if len(records) == 0 {
		sb.WriteString("No ratio periods available.\n")
	} else {
		sb.WriteString("| Ratio |")
		for _, r := range records {
			sb.WriteString(" " + r.PeriodEnd.Format("2006-01-02") + " |")
		}
		sb.WriteString("\n|---|")
		sb.WriteString(strings.Repeat("---|", len(records)))
		sb.WriteString("\n")
		for _, name := range models.RatioNames {
			sb.WriteString("| " + name + " |")
			for _, r := range records {
				sb.WriteString(" " + formatValue(r.Get(name)) + " |")
			}
			sb.WriteString("\n")
		}
	}

	writeWarnings(&sb, a.Warnings)
	return sb.String()
}

// formatTechnicals formats the indicator snapshot as a key/value list
func formatTechnicals(s *models.IndicatorSnapshot, warnings []string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Technicals: %s vs %s\n\n", s.Ticker, s.Benchmark))
	sb.WriteString(fmt.Sprintf("**As of:** %s (%d observations)\n\n", s.AsOf.Format("2006-01-02"), s.Observations))

	rows := []struct {
		name  string
		value string
	}{
		{"Current price", fmt.Sprintf("%.2f", s.CurrentPrice)},
		{"52 week high", fmt.Sprintf("%.2f", s.High52Week)},
		{"52 week low", fmt.Sprintf("%.2f", s.Low52Week)},
		{"MA 50", formatValue(s.MA50)},
		{"MA 200", formatValue(s.MA200)},
		{"YTD change", formatValue(s.YTDChange)},
		{"YTD percent", formatValue(s.YTDPercent)},
		{"Trend", s.Trend},
		{"Volatility", formatValue(s.Volatility)},
		{"Beta", formatValue(s.Beta)},
		{"Alpha", formatValue(s.Alpha)},
		{"R value", formatValue(s.RValue)},
		{"P value", formatValue(s.PValue)},
		{"Relative performance", formatValue(s.RelativePerf)},
		{"EMA 20", formatValue(s.EMA20)},
		{"Bollinger %B", formatValue(s.PercentB)},
		{"Stochastic %K", formatValue(s.StochasticK)},
		{"Momentum", formatValue(s.Momentum)},
		{"MACD", formatValue(s.MACD)},
		{"MACD signal", formatValue(s.MACDSignal)},
	}
	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("- **%s:** %s\n", r.name, r.value))
	}

	if len(s.Charts) > 0 {
		kinds := make([]string, 0, len(s.Charts))
		for k := range s.Charts {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		sb.WriteString("\n### Charts\n")
		for _, k := range kinds {
			sb.WriteString(fmt.Sprintf("- %s: %s\n", k, s.Charts[k]))
		}
	}

	writeWarnings(&sb, warnings)
	return sb.String()
}

// formatSearchResults formats search results as markdown
func formatSearchResults(query string, results []models.SearchResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Search Results for \"%s\" (%d results)\n\n", query, len(results)))

	if len(results) == 0 {
		sb.WriteString("No results found.\n")
		return sb.String()
	}

	for i, r := range results {
		sb.WriteString(fmt.Sprintf("### %d. %s\n", i+1, r.Title))
		sb.WriteString(fmt.Sprintf("**URL:** %s\n\n", r.Link))
		if r.Snippet != "" {
			sb.WriteString(r.Snippet + "\n\n")
		}
		if r.Body != "" {
			sb.WriteString("#### Content:\n")
			sb.WriteString(r.Body)
			sb.WriteString("\n\n")
		}
		sb.WriteString("---\n\n")
	}

	return sb.String()
}

// formatFilingSections formats extracted sections, preferring their Markdown rendering
func formatFilingSections(f *models.Filing, sections []models.FilingSection) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## %s filed %s\n\n", f.Form, f.FilingDate.Format("2006-01-02")))
	if f.URL != "" {
		sb.WriteString(fmt.Sprintf("**Source:** %s\n\n", f.URL))
	}

	if len(sections) == 0 {
		sb.WriteString("None of the requested sections were found.\n")
		return sb.String()
	}

	for _, s := range sections {
		sb.WriteString(fmt.Sprintf("### %s\n\n", s.Name))
		body := s.Markdown
		if body == "" {
			body = s.Text
		}
		sb.WriteString(body)
		sb.WriteString("\n\n")
	}
	return sb.String()
}

// formatReport returns the output paths followed by the report Markdown
func formatReport(r *models.Report) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("**Report:** %s\n", r.ID))
	if r.MarkdownPath != "" {
		sb.WriteString(fmt.Sprintf("**Markdown:** %s\n", r.MarkdownPath))
	}
	if r.PDFPath != "" {
		sb.WriteString(fmt.Sprintf("**PDF:** %s\n", r.PDFPath))
	}
	sb.WriteString("\n---\n\n")
	sb.WriteString(r.Markdown)
	return sb.String()
}

func writeWarnings(sb *strings.Builder, warnings []string) {
	if len(warnings) == 0 {
		return
	}
	sb.WriteString("\n### Warnings\n")
	for _, w := range warnings {
		sb.WriteString("- " + w + "\n")
	}
}
