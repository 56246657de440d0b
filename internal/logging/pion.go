package logging

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pion/logging"
)

// LevelTrace sits below debug for pion's chattiest scopes.
const LevelTrace = slog.LevelDebug - 4

// PionFactory routes pion's internal loggers into slog.
type PionFactory struct {
	Logger *slog.Logger
}

// NewLogger implements logging.LoggerFactory.
func (f PionFactory) NewLogger(scope string) logging.LeveledLogger {
	l := f.Logger
	if l == nil {
		l = slog.Default()
	}
	return &pionLogger{log: l.With("scope", scope)}
}

type pionLogger struct {
	log *slog.Logger
}

func (p *pionLogger) logf(level slog.Level, format string, args ...any) {
	if !p.log.Enabled(context.Background(), level) {
		return
	}
	p.log.Log(context.Background(), level, fmt.Sprintf(format, args...))
}

func (p *pionLogger) Trace(msg string) { p.log.Log(context.Background(), LevelTrace, msg) }
func (p *pionLogger) Tracef(format string, args ...any) {
	p.logf(LevelTrace, format, args...)
}
func (p *pionLogger) Debug(msg string) { p.log.Debug(msg) }
func (p *pionLogger) Debugf(format string, args ...any) {
	p.logf(slog.LevelDebug, format, args...)
}
func (p *pionLogger) Info(msg string) { p.log.Info(msg) }
func (p *pionLogger) Infof(format string, args ...any) {
	p.logf(slog.LevelInfo, format, args...)
}
func (p *pionLogger) Warn(msg string) { p.log.Warn(msg) }
func (p *pionLogger) Warnf(format string, args ...any) {
	p.logf(slog.LevelWarn, format, args...)
}
func (p *pionLogger) Error(msg string) { p.log.Error(msg) }
func (p *pionLogger) Errorf(format string, args ...any) {
	p.logf(slog.LevelError, format, args...)
}
