// Package diag wraps the one-line stderr diagnostics emitted by the CLIs
// and the REPL (parse errors, load errors, unknown commands). It never
// touches the emulator's own stdout surfaces (state dump, REPL transcript),
// which are normative output, not log lines.
package diag

import (
	"go.uber.org/zap"
)

// Logger is a thin wrapper around a zap.SugaredLogger, constructed once per
// process and passed down to whatever needs to report a diagnostic.
type Logger struct {
	sugar *zap.SugaredLogger
}

// New builds a Logger writing one-line diagnostics to stderr, each with its
// level but without timestamp or caller — the REPL's transcript stays readable alongside it.
func New() *Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.TimeKey = ""
	cfg.EncoderConfig.CallerKey = ""
	// Development config lowers the automatic stacktrace threshold to Warn;
	// spec.md §6 wants a one-line diagnostic, not a trace appended to it.
	cfg.DisableStacktrace = true
	logger, err := cfg.Build()
	if err != nil {
		// zap misconfiguration is a programmer error, not a runtime condition
		// this CLI needs to recover from.
		panic(err)
	}
	return &Logger{sugar: logger.Sugar()}
}

// Error reports a one-line diagnostic, e.g. a parse or load failure.
func (l *Logger) Error(msg string, err error) {
	l.sugar.Errorw(msg, "error", err)
}

// Warn reports a non-fatal diagnostic, e.g. an unrecognized REPL command.
func (l *Logger) Warn(msg string, args ...any) {
	l.sugar.Warnw(msg, args...)
}

// Sync flushes any buffered log entries; callers should defer it.
func (l *Logger) Sync() {
	_ = l.sugar.Sync()
}
