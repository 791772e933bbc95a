// Package log provides structured logging with suite context.
//
// Two logger variants are available:
//   - Logger: Non-sugared zap.Logger for the harness core (structured fields)
//   - SugaredLogger: Printf-style logging for CLI surfaces
//
// Use Logger.Sugar() to obtain a SugaredLogger when needed.
package log

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pithecene-io/canary/types"
)

// Logger provides structured logging with suite context.
// All entries include the suite name and suite run ID.
type Logger struct {
	zap     *zap.Logger
	level   zapcore.Level
	context []zap.Field
}

// SugaredLogger provides printf-style logging for CLI surfaces.
type SugaredLogger struct {
	sugar *zap.SugaredLogger
}

// NewLogger creates a logger for one suite execution writing to os.Stderr.
// Debug entries are emitted only when verbose is set.
func NewLogger(suite, suiteRunID string, verbose bool) *Logger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	fields := []zap.Field{
		zap.String("suite", suite),
		zap.String("suite_run_id", suiteRunID),
	}
	return newLoggerWithWriter(os.Stderr, level, fields)
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{zap: zap.NewNop(), level: zapcore.DebugLevel}
}

// WithOutput returns a new logger with the same level and context writing to w.
func (l *Logger) WithOutput(w io.Writer) *Logger {
	return newLoggerWithWriter(w, l.level, l.context)
}

func newLoggerWithWriter(w io.Writer, level zapcore.Level, fields []zap.Field) *Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(w),
		level,
	)

	return &Logger{
		zap:     zap.New(core).With(fields...),
		level:   level,
		context: fields,
	}
}

// with returns a child logger carrying additional context fields.
func (l *Logger) with(fields ...zap.Field) *Logger {
	ctx := make([]zap.Field, 0, len(l.context)+len(fields))
	ctx = append(ctx, l.context...)
	ctx = append(ctx, fields...)
	return &Logger{zap: l.zap.With(fields...), level: l.level, context: ctx}
}

// ForScenario returns a child logger scoped to one scenario attempt.
func (l *Logger) ForScenario(name string, attempt int) *Logger {
	return l.with(zap.String("scenario", name), zap.Int("attempt", attempt))
}

// ForJob returns a child logger scoped to a submitted run.
func (l *Logger) ForJob(h *types.JobHandle) *Logger {
	if h.IsZero() {
		return l
	}
	return l.with(zap.String("actor_id", h.ActorID), zap.String("run_id", h.RunID))
}

// Debug logs a debug message.
func (l *Logger) Debug(message string, fields map[string]any) {
	l.zap.Debug(message, zap.Any("fields", fields))
}

// Info logs an info message.
func (l *Logger) Info(message string, fields map[string]any) {
	l.zap.Info(message, zap.Any("fields", fields))
}

// Warn logs a warning message.
func (l *Logger) Warn(message string, fields map[string]any) {
	l.zap.Warn(message, zap.Any("fields", fields))
}

// Error logs an error message.
func (l *Logger) Error(message string, fields map[string]any) {
	l.zap.Error(message, zap.Any("fields", fields))
}

// Sync flushes buffered entries.
func (l *Logger) Sync() {
	_ = l.zap.Sync()
}

// Sugar returns a SugaredLogger for printf-style logging.
func (l *Logger) Sugar() *SugaredLogger {
	return &SugaredLogger{sugar: l.zap.Sugar()}
}

// Debugf logs a debug message with printf-style formatting.
func (s *SugaredLogger) Debugf(template string, args ...any) {
	s.sugar.Debugf(template, args...)
}

// Infof logs an info message with printf-style formatting.
func (s *SugaredLogger) Infof(template string, args ...any) {
	s.sugar.Infof(template, args...)
}

// Warnf logs a warning message with printf-style formatting.
func (s *SugaredLogger) Warnf(template string, args ...any) {
	s.sugar.Warnf(template, args...)
}

// Errorf logs an error message with printf-style formatting.
func (s *SugaredLogger) Errorf(template string, args ...any) {
	s.sugar.Errorf(template, args...)
}

// With returns a SugaredLogger with additional context fields.
func (s *SugaredLogger) With(args ...any) *SugaredLogger {
	return &SugaredLogger{sugar: s.sugar.With(args...)}
}
