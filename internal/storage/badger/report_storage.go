package badger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/finagent/internal/common"
	"github.com/ternarybob/finagent/internal/models"
)

// DefaultListLimit caps List when no limit is given
const DefaultListLimit = 50

// ReportStorage persists finished reports
type ReportStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewReportStorage creates a report store on db
func NewReportStorage(db *BadgerDB, logger arbor.ILogger) *ReportStorage {
	return &ReportStorage{
		db:     db,
		logger: logger,
	}
}

// SaveReport inserts or replaces a report. Tickers are stored upper case.
func (s *ReportStorage) SaveReport(ctx context.Context, report *models.Report) error {
	if report.ID == "" {
		return errors.New("report ID is required")
	}
	report.Ticker = strings.ToUpper(report.Ticker)

	if err := s.db.Store().Upsert(report.ID, report); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}

	s.logger.Debug().
		Str("id", report.ID).
		Str("ticker", report.Ticker).
		Msg("Report saved")
	return nil
}

// GetReport returns the report with id, or a NotFoundError
func (s *ReportStorage) GetReport(ctx context.Context, id string) (*models.Report, error) {
	var report models.Report
	if err := s.db.Store().Get(id, &report); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, &common.NotFoundError{Kind: "report", Key: id}
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return &report, nil
}

// ListReports returns reports newest first, filtered by ticker when one is
// given. limit <= 0 uses DefaultListLimit.
func (s *ReportStorage) ListReports(ctx context.Context, ticker string, limit int) ([]*models.Report, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	var query *badgerhold.Query
	if ticker = strings.ToUpper(strings.TrimSpace(ticker)); ticker != "" {
		query = badgerhold.Where("Ticker").Eq(ticker).Index("Ticker")
	} else {
		query = badgerhold.Where("Ticker").Ne("")
	}
	query = query.SortBy("CreatedAt").Reverse().Limit(limit)

	var reports []models.Report
	if err := s.db.Store().Find(&reports, query); err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	result := make([]*models.Report, len(reports))
	for i := range reports {
		result[i] = &reports[i]
	}
	return result, nil
}

// DeleteReport removes the report with id, or returns a NotFoundError
func (s *ReportStorage) DeleteReport(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.Report{}); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return &common.NotFoundError{Kind: "report", Key: id}
		}
		return fmt.Errorf("failed to delete report: %w", err)
	}
	return nil
}
