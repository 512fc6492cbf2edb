package negotiator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pion/logging"
)

// levelTrace sits below slog's debug level; pion's trace output is very chatty.
const levelTrace = slog.LevelDebug - 4

type loggerFactory struct {
	log *slog.Logger
}

// NewLoggerFactory routes pion's internal logging into logger, tagged with
// the pion scope (ice, dtls, sctp, ...).
func NewLoggerFactory(logger *slog.Logger) logging.LoggerFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return loggerFactory{log: logger}
}

func (f loggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return &leveledLogger{log: f.log.With("scope", scope)}
}

type leveledLogger struct {
	log *slog.Logger
}

func (l *leveledLogger) logf(level slog.Level, format string, args ...any) {
	ctx := context.Background()
	if !l.log.Enabled(ctx, level) {
		return
	}
	l.log.Log(ctx, level, fmt.Sprintf(format, args...))
}

func (l *leveledLogger) Trace(msg string) { l.log.Log(context.Background(), levelTrace, msg) }
func (l *leveledLogger) Tracef(format string, args ...any) {
	l.logf(levelTrace, format, args...)
}
func (l *leveledLogger) Debug(msg string) { l.log.Debug(msg) }
func (l *leveledLogger) Debugf(format string, args ...any) {
	l.logf(slog.LevelDebug, format, args...)
}
func (l *leveledLogger) Info(msg string) { l.log.Info(msg) }
func (l *leveledLogger) Infof(format string, args ...any) {
	l.logf(slog.LevelInfo, format, args...)
}
func (l *leveledLogger) Warn(msg string) { l.log.Warn(msg) }
func (l *leveledLogger) Warnf(format string, args ...any) {
	l.logf(slog.LevelWarn, format, args...)
}
func (l *leveledLogger) Error(msg string) { l.log.Error(msg) }
func (l *leveledLogger) Errorf(format string, args ...any) {
	l.logf(slog.LevelError, format, args...)
}
