// Package report assembles finished analyses into Markdown and PDF reports.
package report

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ternarybob/finagent/internal/indicators"
	"github.com/ternarybob/finagent/internal/models"
	"github.com/ternarybob/finagent/internal/ratios"
)

const (
	// maxRatioPeriods is the number of most recent periods shown in the ratio table
	maxRatioPeriods = 6
	// maxExcerptChars bounds each filing excerpt
	maxExcerptChars = 3000
	notAvailable    = "n/a"
)

// Input is everything known about one analysis run
type Input struct {
	Ticker       string
	Benchmark    string
	GeneratedAt  time.Time
	Fundamentals *models.FundamentalAnalysis
	Technicals   *models.IndicatorSnapshot
	Filing       *models.Filing
	Sections     []models.FilingSection
	Sources      []models.SearchResult
	Narrative    *models.Narrative
	Warnings     []string
}

// Assembler builds the Markdown report. Chart links are written relative to
// the reports directory so the Markdown file and the PDF renderer resolve
// them the same way.
type Assembler struct {
	reportsDir string
}

// NewAssembler creates an assembler for reports written to reportsDir
func NewAssembler(reportsDir string) *Assembler {
	return &Assembler{reportsDir: reportsDir}
}

// Build renders in as Markdown. The output depends only on in.
func (a *Assembler) Build(in Input) string {
	var b strings.Builder

	title := strings.ToUpper(in.Ticker)
	if in.Fundamentals != nil && in.Fundamentals.Company.Title != "" {
		title = fmt.Sprintf("%s (%s)", in.Fundamentals.Company.Title, strings.ToUpper(in.Ticker))
	}
	fmt.Fprintf(&b, "# Financial Analysis: %s\n\n", escapeCell(title))
	fmt.Fprintf(&b, "Generated %s", in.GeneratedAt.UTC().Format("2006-01-02 15:04 UTC"))
	if in.Benchmark != "" {
		fmt.Fprintf(&b, " | Benchmark %s", in.Benchmark)
	}
	b.WriteString("\n\n")

	if in.Narrative != nil {
		writeNarrative(&b, in.Narrative)
	}

	if in.Fundamentals != nil {
		a.writeFundamentals(&b, in.Fundamentals)
	}
	if in.Technicals != nil {
		a.writeTechnicals(&b, in.Technicals)
	}
	if len(in.Sections) > 0 {
		writeSections(&b, in.Filing, in.Sections)
	}
	if len(in.Sources) > 0 {
		writeSources(&b, in.Sources)
	}
	if len(in.Warnings) > 0 {
		b.WriteString("## Warnings\n\n")
		for _, w := range in.Warnings {
			fmt.Fprintf(&b, "- %s\n", oneLine(w))
		}
		b.WriteString("\n")
	}

	return b.String()
}

func writeNarrative(b *strings.Builder, n *models.Narrative) {
	b.WriteString("## Executive Summary\n\n")
	b.WriteString(strings.TrimSpace(n.Summary))
	b.WriteString("\n\n")

	lists := []struct {
		title string
		items []string
	}{
		{"Strengths", n.Strengths},
		{"Weaknesses", n.Weaknesses},
		{"Opportunities", n.Opportunities},
		{"Threats", n.Threats},
	}
	wrote := false
	for _, l := range lists {
		if len(l.items) == 0 {
			continue
		}
		if !wrote {
			b.WriteString("## SWOT Analysis\n\n")
			wrote = true
		}
		fmt.Fprintf(b, "### %s\n\n", l.title)
		for _, item := range l.items {
			fmt.Fprintf(b, "- %s\n", oneLine(item))
		}
		b.WriteString("\n")
	}

	if outlook := strings.TrimSpace(n.Outlook); outlook != "" {
		b.WriteString("## Outlook\n\n")
		b.WriteString(outlook)
		b.WriteString("\n\n")
	}
}

func (a *Assembler) writeFundamentals(b *strings.Builder, f *models.FundamentalAnalysis) {
	b.WriteString("## Company\n\n")
	b.WriteString("| Field | Value |\n|---|---|\n")
	fmt.Fprintf(b, "| Name | %s |\n", escapeCell(f.Company.Title))
	fmt.Fprintf(b, "| Ticker | %s |\n", escapeCell(f.Company.Ticker))
	fmt.Fprintf(b, "| CIK | %s |\n", f.Company.CIK)
	if f.Price != nil {
		fmt.Fprintf(b, "| Price | %s |\n", formatFloat(*f.Price, 2))
	}
	fmt.Fprintf(b, "| Matched concepts | %d of %d |\n\n", f.ConceptMap.MatchedCount(), len(models.TemplateConcepts))

	b.WriteString("## Financial Ratios\n\n")
	records := f.Ratios
	if len(records) > maxRatioPeriods {
		records = records[len(records)-maxRatioPeriods:]
	}
	if len(records) == 0 {
		b.WriteString("No ratios could be computed.\n\n")
	} else {
		b.WriteString("| Ratio |")
		for _, r := range records {
			fmt.Fprintf(b, " %s |", r.PeriodEnd.Format("2006-01-02"))
		}
		b.WriteString("\n|---|")
		for range records {
			b.WriteString("---:|")
		}
		b.WriteString("\n")
		for _, name := range models.RatioNames {
			fmt.Fprintf(b, "| %s |", name)
			for _, r := range records {
				fmt.Fprintf(b, " %s |", formatRatio(r.Get(name)))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("### Concept Mapping\n\n")
	b.WriteString("| Template concept | Company concept |\n|---|---|\n")
	for _, concept := range models.TemplateConcepts {
		matched, ok := f.ConceptMap.Matched(concept)
		if !ok {
			matched = notAvailable
		}
		fmt.Fprintf(b, "| %s | %s |\n", concept, escapeCell(matched))
	}
	b.WriteString("\n")

	if len(f.Charts) > 0 {
		b.WriteString("### Ratio Charts\n\n")
		for _, g := range ratios.ChartGroups {
			if path, ok := f.Charts[g.Name]; ok {
				fmt.Fprintf(b, "![%s](%s)\n\n", g.Title, a.link(path))
			}
		}
	}
}

func (a *Assembler) writeTechnicals(b *strings.Builder, s *models.IndicatorSnapshot) {
	b.WriteString("## Technical Analysis\n\n")
	fmt.Fprintf(b, "As of %s over %d trading days against %s.\n\n", s.AsOf.Format("2006-01-02"), s.Observations, s.Benchmark)

	b.WriteString("| Indicator | Value |\n|---|---:|\n")
	rows := []struct {
		name  string
		value string
	}{
		{"Current price", formatFloat(s.CurrentPrice, 2)},
		{"52-week high", formatFloat(s.High52Week, 2)},
		{"52-week low", formatFloat(s.Low52Week, 2)},
		{"50-day moving average", formatPtr(s.MA50, 2)},
		{"200-day moving average", formatPtr(s.MA200, 2)},
		{"YTD price change", formatPtr(s.YTDChange, 2)},
		{"YTD percent change", formatPercent(s.YTDPercent)},
		{"Trend", s.Trend},
		{"Annualized volatility", formatPtr(s.Volatility, 4)},
		{"Beta", formatPtr(s.Beta, 4)},
		{"Alpha", formatPtr(s.Alpha, 6)},
		{"Correlation (r)", formatPtr(s.RValue, 4)},
		{"p-value", formatPtr(s.PValue, 4)},
		{"Stock cumulative return", formatPtr(s.StockReturn, 4)},
		{"Benchmark cumulative return", formatPtr(s.BenchReturn, 4)},
		{"Relative performance", formatPtr(s.RelativePerf, 4)},
		{"EMA 20", formatPtr(s.EMA20, 2)},
		{"Bollinger %B", formatPtr(s.PercentB, 4)},
		{"Stochastic %K", formatPtr(s.StochasticK, 2)},
		{"Momentum", formatPtr(s.Momentum, 2)},
		{"MACD", formatPtr(s.MACD, 4)},
		{"MACD signal", formatPtr(s.MACDSignal, 4)},
	}
	for _, r := range rows {
		fmt.Fprintf(b, "| %s | %s |\n", r.name, escapeCell(r.value))
	}
	b.WriteString("\n")

	if len(s.Charts) > 0 {
		b.WriteString("### Technical Charts\n\n")
		for _, kind := range chartOrder(s.Charts) {
			fmt.Fprintf(b, "![%s](%s)\n\n", chartTitle(kind), a.link(s.Charts[kind]))
		}
	}
}

func writeSections(b *strings.Builder, filing *models.Filing, sections []models.FilingSection) {
	b.WriteString("## Filing Excerpts\n\n")
	if filing != nil {
		fmt.Fprintf(b, "From the %s filed %s", filing.Form, filing.FilingDate.Format("2006-01-02"))
		if filing.URL != "" {
			fmt.Fprintf(b, " ([source](%s))", filing.URL)
		}
		b.WriteString(".\n\n")
	}
	for _, s := range sections {
		fmt.Fprintf(b, "### %s\n\n", s.Name)
		body := s.Text
		if s.Markdown != "" {
			body = s.Markdown
		}
		body = strings.TrimSpace(body)
		body = excerpt(body, maxExcerptChars)
		b.WriteString(body)
		b.WriteString("\n\n")
	}
}

func writeSources(b *strings.Builder, sources []models.SearchResult) {
	b.WriteString("## Sources\n\n")
	for _, s := range sources {
		title := s.Title
		if title == "" {
			title = s.Link
		}
		fmt.Fprintf(b, "- [%s](%s)", oneLine(title), s.Link)
		if snippet := oneLine(s.Snippet); snippet != "" {
			fmt.Fprintf(b, ": %s", snippet)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

// link returns path relative to the reports directory with forward slashes
func (a *Assembler) link(path string) string {
	if a.reportsDir != "" {
		if rel, err := filepath.Rel(a.reportsDir, path); err == nil {
			path = rel
		}
	}
	return filepath.ToSlash(path)
}

var technicalChartOrder = []string{
	indicators.ChartStockPrice,
	indicators.ChartReturns,
	indicators.ChartBeta,
	indicators.ChartBollinger,
	indicators.ChartPercentB,
	indicators.ChartStochastic,
	indicators.ChartMomentum,
	indicators.ChartMACD,
}

// chartOrder lists known chart kinds in display order, then any others sorted
func chartOrder(charts map[string]string) []string {
	var order []string
	known := make(map[string]bool, len(technicalChartOrder))
	for _, kind := range technicalChartOrder {
		known[kind] = true
		if _, ok := charts[kind]; ok {
			order = append(order, kind)
		}
	}
	var extra []string
	for kind := range charts {
		if !known[kind] {
			extra = append(extra, kind)
		}
	}
	sort.Strings(extra)
	return append(order, extra...)
}

func chartTitle(kind string) string {
	words := strings.Split(kind, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func formatRatio(v *float64) string {
	return formatPtr(v, 4)
}

func formatPtr(v *float64, prec int) string {
	if v == nil {
		return notAvailable
	}
	return formatFloat(*v, prec)
}

func formatPercent(v *float64) string {
	if v == nil {
		return notAvailable
	}
	return formatFloat(*v, 2) + "%"
}

func formatFloat(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

// excerpt cuts s to at most maxChars bytes, preferring a line break and then
// a space as the cut point so Markdown structure survives.
func excerpt(s string, maxChars int) string {
	if len(s) <= maxChars {
		return s
	}
	for maxChars > 0 && !utf8.RuneStart(s[maxChars]) {
		maxChars--
	}
	cut := s[:maxChars]
	if i := strings.LastIndex(cut, "\n"); i > maxChars/2 {
		cut = cut[:i]
	} else if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut) + " ..."
}

func escapeCell(s string) string {
	return strings.ReplaceAll(oneLine(s), "|", "\\|")
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
