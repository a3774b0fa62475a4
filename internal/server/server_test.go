package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finagent/internal/app"
	"github.com/ternarybob/finagent/internal/common"
	"github.com/ternarybob/finagent/internal/handlers"
	"github.com/ternarybob/finagent/internal/models"
	"github.com/ternarybob/finagent/internal/pipeline"
	"github.com/ternarybob/finagent/internal/scheduler"
)

type stubRunner struct{}

func (stubRunner) Run(_ context.Context, req pipeline.Request) (*models.Report, error) {
	return &models.Report{ID: "rpt_new", Ticker: strings.ToUpper(req.Ticker)}, nil
}

type stubStore struct {
	reports map[string]*models.Report
}

func (s *stubStore) GetReport(_ context.Context, id string) (*models.Report, error) {
	if r, ok := s.reports[id]; ok {
		return r, nil
	}
	return nil, &common.NotFoundError{Kind: "report", Key: id}
}

func (s *stubStore) ListReports(_ context.Context, _ string, _ int) ([]*models.Report, error) {
	out := make([]*models.Report, 0, len(s.reports))
	for _, r := range s.reports {
		out = append(out, r)
	}
	return out, nil
}

func (s *stubStore) DeleteReport(_ context.Context, id string) error {
	if _, ok := s.reports[id]; !ok {
		return &common.NotFoundError{Kind: "report", Key: id}
	}
	delete(s.reports, id)
	return nil
}

type stubFundamentals struct{}

func (stubFundamentals) Analyze(_ context.Context, ticker string) (*models.FundamentalAnalysis, error) {
	if ticker == "ZZZZ" {
		return nil, &common.NotFoundError{Kind: "ticker", Key: ticker}
	}
	return &models.FundamentalAnalysis{Company: models.Company{Ticker: ticker}}, nil
}

type stubTechnicals struct{}

func (stubTechnicals) Analyze(_ context.Context, ticker, _ string) (*models.IndicatorSnapshot, []string, error) {
	return &models.IndicatorSnapshot{Ticker: ticker}, nil, nil
}

type stubFilings struct{}

func (stubFilings) ExtractLatest(_ context.Context, _ string, _ string, _ []string) (*models.Filing, []models.FilingSection, error) {
	return &models.Filing{Form: "10-K"}, nil, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := arbor.NewLogger()
	store := &stubStore{reports: map[string]*models.Report{
		"rpt_1": {ID: "rpt_1", Ticker: "AAPL", Markdown: "# AAPL"},
	}}
	sched := scheduler.NewService(stubRunner{}, nil, "^GSPC", 0, logger)

	a := &app.App{
		Config:           common.NewDefaultConfig(),
		Logger:           logger,
		APIHandler:       handlers.NewAPIHandler(logger),
		ReportHandler:    handlers.NewReportHandler(stubRunner{}, store, logger),
		AnalysisHandler:  handlers.NewAnalysisHandler(stubFundamentals{}, stubTechnicals{}, stubFilings{}, nil, "^GSPC", 2, logger),
		SchedulerHandler: handlers.NewSchedulerHandler(sched, logger),
	}
	return New(a)
}

func serve(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestRoutes(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"health", "GET", "/api/health", "", http.StatusOK},
		{"version", "GET", "/api/version", "", http.StatusOK},
		{"list reports", "GET", "/api/reports", "", http.StatusOK},
		{"create report", "POST", "/api/reports", `{"ticker":"msft"}`, http.StatusCreated},
		{"reports wrong method", "PUT", "/api/reports", "", http.StatusMethodNotAllowed},
		{"get report", "GET", "/api/reports/rpt_1", "", http.StatusOK},
		{"missing report", "GET", "/api/reports/rpt_x", "", http.StatusNotFound},
		{"report markdown", "GET", "/api/reports/rpt_1/markdown", "", http.StatusOK},
		{"fundamentals", "GET", "/api/fundamentals/AAPL", "", http.StatusOK},
		{"unknown ticker", "GET", "/api/fundamentals/ZZZZ", "", http.StatusNotFound},
		{"technicals", "GET", "/api/technicals/AAPL", "", http.StatusOK},
		{"filings", "GET", "/api/filings/AAPL", "", http.StatusOK},
		{"search disabled", "GET", "/api/search?q=apple", "", http.StatusServiceUnavailable},
		{"scheduler status", "GET", "/api/scheduler", "", http.StatusOK},
		{"unknown api route", "GET", "/api/nope", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(s, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestDeleteReportRoute(t *testing.T) {
	s := newTestServer(t)

	rec := serve(s, "DELETE", "/api/reports/rpt_1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(s, "GET", "/api/reports/rpt_1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMiddleware(t *testing.T) {
	s := newTestServer(t)

	rec := serve(s, "OPTIONS", "/api/reports", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "DELETE")

	rec = serve(s, "GET", "/api/health", "")
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.True(t, strings.HasPrefix(rec.Header().Get(RequestIDHeader), "req_"))
}

func TestRequestIDPassthrough(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/health", nil)
	req.Header.Set(RequestIDHeader, "trace-42")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "trace-42", rec.Header().Get(RequestIDHeader))

	req = httptest.NewRequest("GET", "/api/health", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", 65))
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.True(t, strings.HasPrefix(rec.Header().Get(RequestIDHeader), "req_"))
}

func TestCORSAllowList(t *testing.T) {
	logger := arbor.NewLogger()
	cfg := common.NewDefaultConfig()
	cfg.Server.CORSOrigins = []string{"https://dash.example.com"}
	s := New(&app.App{Config: cfg, Logger: logger, APIHandler: handlers.NewAPIHandler(logger)})

	req := httptest.NewRequest("GET", "/api/health", nil)
	req.Header.Set("Origin", "https://dash.example.com")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "https://dash.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest("GET", "/api/health", nil)
	req.Header.Set("Origin", "https://other.example.com")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoveryMiddleware(t *testing.T) {
	boom := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("nil map write") })

	for _, env := range []string{"development", "production"} {
		t.Run(env, func(t *testing.T) {
			cfg := common.NewDefaultConfig()
			cfg.Environment = env
			s := &Server{app: &app.App{Config: cfg, Logger: arbor.NewLogger()}}

			rec := httptest.NewRecorder()
			s.withMiddleware(boom).ServeHTTP(rec, httptest.NewRequest("GET", "/api/x", nil))

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			if env == "production" {
				assert.Equal(t, "internal server error", body["error"])
			} else {
				assert.Equal(t, "panic: nil map write", body["error"])
			}
		})
	}
}

func TestOptionalHandlersNotRouted(t *testing.T) {
	logger := arbor.NewLogger()
	s := New(&app.App{
		Config:     common.NewDefaultConfig(),
		Logger:     logger,
		APIHandler: handlers.NewAPIHandler(logger),
	})

	rec := serve(s, "GET", "/api/reports", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(s, "GET", "/api/scheduler", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
