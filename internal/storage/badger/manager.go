package badger

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finagent/internal/common"
)

// Manager owns the database connection and the stores built on it
type Manager struct {
	db      *BadgerDB
	reports *ReportStorage
	logger  arbor.ILogger
}

// NewManager opens the database and creates the stores
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (*Manager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:      db,
		reports: NewReportStorage(db, logger),
		logger:  logger,
	}

	logger.Info().Str("path", config.Path).Msg("Badger storage manager initialized")

	return manager, nil
}

// ReportStorage returns the report store
func (m *Manager) ReportStorage() *ReportStorage {
	return m.reports
}

// Close closes the database connection
func (m *Manager) Close() error {
	return m.db.Close()
}
