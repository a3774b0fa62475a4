package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finagent/internal/models"
)

// FundamentalAnalyzer runs the resolve, match and compute stages
type FundamentalAnalyzer interface {
	Analyze(ctx context.Context, ticker string) (*models.FundamentalAnalysis, error)
}

// TechnicalAnalyzer computes the indicator snapshot
type TechnicalAnalyzer interface {
	Analyze(ctx context.Context, ticker, benchmark string) (*models.IndicatorSnapshot, []string, error)
}

// FilingExtractor extracts sections of the latest filing
type FilingExtractor interface {
	ExtractLatest(ctx context.Context, ticker, form string, sections []string) (*models.Filing, []models.FilingSection, error)
}

// WebSearcher runs a web search
type WebSearcher interface {
	Search(ctx context.Context, query string, num int) ([]models.SearchResult, error)
}

// AnalysisHandler exposes the individual analysis stages
type AnalysisHandler struct {
	fundamentals FundamentalAnalyzer
	technicals   TechnicalAnalyzer
	filings      FilingExtractor
	searcher     WebSearcher // nil when search is disabled
	benchmark    string
	numResults   int
	logger       arbor.ILogger
}

// NewAnalysisHandler creates an analysis handler. searcher may be nil.
func NewAnalysisHandler(fundamentals FundamentalAnalyzer, technicals TechnicalAnalyzer, filings FilingExtractor, searcher WebSearcher, benchmark string, numResults int, logger arbor.ILogger) *AnalysisHandler {
	return &AnalysisHandler{
		fundamentals: fundamentals,
		technicals:   technicals,
		filings:      filings,
		searcher:     searcher,
		benchmark:    benchmark,
		numResults:   numResults,
		logger:       logger,
	}
}

// FundamentalsHandler returns ratios for GET /api/fundamentals/{ticker}
func (h *AnalysisHandler) FundamentalsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	analysis, err := h.fundamentals.Analyze(r.Context(), r.PathValue("ticker"))
	if err != nil {
		WriteAnalysisError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, analysis)
}

// TechnicalsHandler returns indicators for GET /api/technicals/{ticker}?benchmark=
func (h *AnalysisHandler) TechnicalsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	benchmark := r.URL.Query().Get("benchmark")
	if benchmark == "" {
		benchmark = h.benchmark
	}
	snapshot, warnings, err := h.technicals.Analyze(r.Context(), r.PathValue("ticker"), benchmark)
	if err != nil {
		WriteAnalysisError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"snapshot": snapshot,
		"warnings": warnings,
	})
}

// FilingsHandler returns filing sections for
// GET /api/filings/{ticker}?form=10-K&section=...&section=...
func (h *AnalysisHandler) FilingsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	query := r.URL.Query()
	filing, sections, err := h.filings.ExtractLatest(r.Context(), r.PathValue("ticker"), query.Get("form"), query["section"])
	if err != nil {
		WriteAnalysisError(w, h.logger, err)
		return
	}
	if sections == nil {
		sections = []models.FilingSection{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"filing":   filing,
		"sections": sections,
	})
}

// SearchHandler runs GET /api/search?q=&num=
func (h *AnalysisHandler) SearchHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	if h.searcher == nil {
		WriteError(w, http.StatusServiceUnavailable, "web search is not enabled")
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		WriteError(w, http.StatusBadRequest, "q is required")
		return
	}
	results, err := h.searcher.Search(r.Context(), q, QueryInt(r, "num", h.numResults, 1, 10))
	if err != nil {
		WriteAnalysisError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"query":   q,
		"results": results,
	})
}
