// Package log provides structured logging with evaluation-run context.
//
// Two logger variants are available:
//   - Logger: non-sugared zap.Logger for the scheduler hot path (structured fields)
//   - SugaredLogger: printf-style logging for CLI/debug surfaces
//
// Use Logger.Sugar() to obtain a SugaredLogger when needed.
package log

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RunContext carries the identity fields every log line from a single
// evaluation run should share, so log output can be correlated back to
// one invocation of the engine regardless of which worker emitted it.
type RunContext struct {
	// RunID identifies one Manager lifetime (Start through Join).
	RunID string
	// Threads is the configured worker count.
	Threads int
	// MaxDepth is the configured recursion ceiling.
	MaxDepth int
}

// Logger provides structured logging with run context. All log entries
// include the fields in RunContext.
//
// Use this for the scheduler's own logging. For CLI/debug surfaces, use
// Sugar() to get a SugaredLogger.
type Logger struct {
	zap *zap.Logger
	run RunContext
}

// SugaredLogger provides printf-style logging for CLI and debug
// surfaces.
type SugaredLogger struct {
	sugar *zap.SugaredLogger
}

// NewLogger creates a new logger with run context. Output defaults to
// os.Stderr.
func NewLogger(run RunContext) *Logger {
	return newLoggerWithWriter(run, os.Stderr)
}

// WithOutput returns a new logger with a different output writer.
func (l *Logger) WithOutput(w io.Writer) *Logger {
	return newLoggerWithWriter(l.run, w)
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	}
}

func newLoggerWithWriter(run RunContext, w io.Writer) *Logger {
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig()),
		zapcore.AddSync(w),
		zapcore.DebugLevel,
	)

	contextFields := []zap.Field{
		zap.String("run_id", run.RunID),
		zap.Int("threads", run.Threads),
		zap.Int("max_depth", run.MaxDepth),
	}

	zapLogger := zap.New(core).With(contextFields...)
	return &Logger{zap: zapLogger, run: run}
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
