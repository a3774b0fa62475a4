package badger

import (
	"fmt"
	"strings"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
)

// dbLogger forwards Badger's internal messages to arbor. Badger's info
// chatter (compactions, value log GC) is logged at debug.
type dbLogger struct {
	logger arbor.ILogger
}

var _ badgerdb.Logger = (*dbLogger)(nil)

func newDBLogger(logger arbor.ILogger) *dbLogger {
	return &dbLogger{logger: logger}
}

func (l *dbLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error().Str("source", "badger").Msg(message(format, args...))
}

func (l *dbLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn().Str("source", "badger").Msg(message(format, args...))
}

func (l *dbLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug().Str("source", "badger").Msg(message(format, args...))
}

func (l *dbLogger) Debugf(format string, args ...interface{}) {
	l.logger.Trace().Str("source", "badger").Msg(message(format, args...))
}

func message(format string, args ...interface{}) string {
	return strings.TrimSpace(fmt.Sprintf(format, args...))
}
