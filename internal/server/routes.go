package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// API routes - Reports (full pipeline runs)
	if h := s.app.ReportHandler; h != nil {
		mux.HandleFunc("/api/reports", func(w http.ResponseWriter, r *http.Request) {
			RouteResourceCollection(w, r, h.ListReportsHandler, h.CreateReportHandler)
		})
		mux.HandleFunc("/api/reports/{id}", func(w http.ResponseWriter, r *http.Request) {
			RouteResourceItem(w, r, h.GetReportHandler, h.DeleteReportHandler)
		})
		mux.HandleFunc("/api/reports/{id}/markdown", h.MarkdownHandler)
		mux.HandleFunc("/api/reports/{id}/pdf", h.PDFHandler)
	}

	// API routes - Individual analysis stages
	if h := s.app.AnalysisHandler; h != nil {
		mux.HandleFunc("/api/fundamentals/{ticker}", h.FundamentalsHandler)
		mux.HandleFunc("/api/technicals/{ticker}", h.TechnicalsHandler)
		mux.HandleFunc("/api/filings/{ticker}", h.FilingsHandler)
		mux.HandleFunc("/api/search", h.SearchHandler)
	}

	// API routes - Watchlist scheduler
	if h := s.app.SchedulerHandler; h != nil {
		mux.HandleFunc("/api/scheduler", h.StatusHandler)
		mux.HandleFunc("/api/scheduler/run", h.TriggerHandler)
	}

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}
