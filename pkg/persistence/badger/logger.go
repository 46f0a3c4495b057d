package badger

import (
	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"
)

// badgerLogger routes badger's printf style logging into zap under component=badger
type badgerLogger struct {
	sugar *zap.SugaredLogger
}

var _ badgerdb.Logger = (*badgerLogger)(nil)

func newBadgerLogger(logger *zap.Logger) *badgerLogger {
	return &badgerLogger{sugar: logger.With(zap.String("component", "badger")).Sugar()}
}

func (b *badgerLogger) Errorf(format string, args ...interface{}) {
	b.sugar.Errorf(format, args...)
}

func (b *badgerLogger) Warningf(format string, args ...interface{}) {
	b.sugar.Warnf(format, args...)
}

func (b *badgerLogger) Infof(format string, args ...interface{}) {
	b.sugar.Infof(format, args...)
}

// Debugf is noisy during compaction, so it stays at debug level
func (b *badgerLogger) Debugf(format string, args ...interface{}) {
	b.sugar.Debugf(format, args...)
}
