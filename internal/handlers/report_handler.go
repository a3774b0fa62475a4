package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finagent/internal/common"
	"github.com/ternarybob/finagent/internal/models"
	"github.com/ternarybob/finagent/internal/pipeline"
)

// ReportRunner runs the full analysis pipeline
type ReportRunner interface {
	Run(ctx context.Context, req pipeline.Request) (*models.Report, error)
}

// ReportStore reads and deletes persisted reports
type ReportStore interface {
	GetReport(ctx context.Context, id string) (*models.Report, error)
	ListReports(ctx context.Context, ticker string, limit int) ([]*models.Report, error)
	DeleteReport(ctx context.Context, id string) error
}

// ReportHandler serves /api/reports
type ReportHandler struct {
	runner ReportRunner
	store  ReportStore
	logger arbor.ILogger
}

// NewReportHandler creates a report handler
func NewReportHandler(runner ReportRunner, store ReportStore, logger arbor.ILogger) *ReportHandler {
	return &ReportHandler{runner: runner, store: store, logger: logger}
}

// reportSummary is the list view of a report
type reportSummary struct {
	ID          string   `json:"id"`
	Ticker      string   `json:"ticker"`
	CompanyName string   `json:"company_name,omitempty"`
	Benchmark   string   `json:"benchmark"`
	CreatedAt   string   `json:"created_at"`
	HasPDF      bool     `json:"has_pdf"`
	Warnings    []string `json:"warnings,omitempty"`
}

// CreateReportHandler runs the pipeline synchronously and returns the report
func (h *ReportHandler) CreateReportHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req pipeline.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Ticker) == "" {
		WriteError(w, http.StatusBadRequest, "ticker is required")
		return
	}

	report, err := h.runner.Run(r.Context(), req)
	if err != nil {
		WriteAnalysisError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, report)
}

// ListReportsHandler lists reports newest first, optionally for one ticker
func (h *ReportHandler) ListReportsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	limit := QueryInt(r, "limit", 20, 1, 500)
	reports, err := h.store.ListReports(r.Context(), r.URL.Query().Get("ticker"), limit)
	if err != nil {
		WriteAnalysisError(w, h.logger, err)
		return
	}

	summaries := make([]reportSummary, 0, len(reports))
	for _, rep := range reports {
		summaries = append(summaries, reportSummary{
			ID:          rep.ID,
			Ticker:      rep.Ticker,
			CompanyName: rep.CompanyName,
			Benchmark:   rep.Benchmark,
			CreatedAt:   rep.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			HasPDF:      rep.PDFPath != "",
			Warnings:    rep.Warnings,
		})
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"reports": summaries,
		"count":   len(summaries),
	})
}

// GetReportHandler returns one report
func (h *ReportHandler) GetReportHandler(w http.ResponseWriter, r *http.Request) {
	report, ok := h.load(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

// MarkdownHandler returns the Markdown body of a report
func (h *ReportHandler) MarkdownHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	report, ok := h.load(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(report.Markdown))
}

// PDFHandler streams the PDF file of a report
func (h *ReportHandler) PDFHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	report, ok := h.load(w, r)
	if !ok {
		return
	}
	if report.PDFPath == "" {
		WriteError(w, http.StatusNotFound, "report has no PDF")
		return
	}
	if _, err := os.Stat(report.PDFPath); err != nil {
		WriteError(w, http.StatusNotFound, "report PDF is no longer on disk")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="`+filepath.Base(report.PDFPath)+`"`)
	http.ServeFile(w, r, report.PDFPath)
}

// DeleteReportHandler removes a stored report. Files on disk are kept.
func (h *ReportHandler) DeleteReportHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "DELETE") {
		return
	}
	id := r.PathValue("id")
	if err := h.store.DeleteReport(r.Context(), id); err != nil {
		WriteAnalysisError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"status": "success",
		"id":     id,
	})
}

func (h *ReportHandler) load(w http.ResponseWriter, r *http.Request) (*models.Report, bool) {
	id := r.PathValue("id")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "report id is required")
		return nil, false
	}
	report, err := h.store.GetReport(r.Context(), id)
	if err != nil {
		if !common.IsNotFound(err) {
			h.logger.Error().Err(err).Str("id", id).Msg("Failed to load report")
		}
		WriteError(w, StatusForError(err), err.Error())
		return nil, false
	}
	return report, true
}
