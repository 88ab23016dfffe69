// Package logger provides structured logging for gpumon.
// It wraps go.uber.org/zap behind a small printf-style API with a global
// default logger.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/shepherd-project/gpumon/internal/config"
)

// LogFileName is the file written under LogConfig.Directory.
const LogFileName = "gpumon.log"

// Logger is the main logger structure
type Logger struct {
	base  *zap.Logger
	sugar *zap.SugaredLogger
	level zap.AtomicLevel
	file  *os.File
}

var (
	defaultLogger *Logger
	mu            sync.RWMutex
)

// InitLogger initializes the global logger with the given configuration
func InitLogger(cfg *config.LogConfig) error {
	logger, err := NewLogger(cfg)
	if err != nil {
		return err
	}
	mu.Lock()
	old := defaultLogger
	defaultLogger = logger
	mu.Unlock()
	if old != nil {
		old.Close()
	}
	return nil
}

// NewLogger creates a new logger instance
func NewLogger(cfg *config.LogConfig) (*Logger, error) {
	if cfg == nil {
		cfg = &config.LogConfig{Level: "info", Format: "text", Output: "stdout"}
	}

	level := zap.NewAtomicLevelAt(parseLevel(cfg.Level))
	l := &Logger{level: level}

	var sinks []zapcore.WriteSyncer
	switch strings.ToLower(cfg.Output) {
	case "file":
		if err := l.setupFileWriter(cfg.Directory); err != nil {
			return nil, err
		}
		sinks = append(sinks, zapcore.AddSync(l.file))
	case "both":
		if err := l.setupFileWriter(cfg.Directory); err != nil {
			return nil, err
		}
		sinks = append(sinks, zapcore.Lock(os.Stdout), zapcore.AddSync(l.file))
	default:
		sinks = append(sinks, zapcore.Lock(os.Stdout))
	}

	core := zapcore.NewCore(newEncoder(cfg.Format), zapcore.NewMultiWriteSyncer(sinks...), level)
	l.base = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	l.sugar = l.base.Sugar()
	return l, nil
}

// New wraps an existing zap logger, e.g. one from zaptest.
func New(base *zap.Logger) *Logger {
	if base == nil {
		base = zap.NewNop()
	}
	return &Logger{
		base:  base,
		sugar: base.Sugar(),
		level: zap.NewAtomicLevelAt(zapcore.DebugLevel),
	}
}

func newEncoder(format string) zapcore.Encoder {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if format == "json" {
		return zapcore.NewJSONEncoder(encCfg)
	}
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewConsoleEncoder(encCfg)
}

func (l *Logger) setupFileWriter(dir string) error {
	if dir == "" {
		return fmt.Errorf("log directory is empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(dir, LogFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	l.file = f
	return nil
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// GetLogger returns the global logger instance
func GetLogger() *Logger {
	mu.RLock()
	l := defaultLogger
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if defaultLogger == nil {
		defaultLogger, _ = NewLogger(&config.LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		})
	}
	return defaultLogger
}

// Level returns the current minimum level.
func (l *Logger) Level() zapcore.Level {
	return l.level.Level()
}

// SetLevel changes the minimum level at runtime.
func (l *Logger) SetLevel(level string) {
	l.level.SetLevel(parseLevel(level))
}

// Zap returns the underlying zap logger.
func (l *Logger) Zap() *zap.Logger {
	return l.base
}

// WithField returns a log entry with a single field
func (l *Logger) WithField(key string, value interface{}) *LogEntry {
	return &LogEntry{sugar: l.sugar.With(key, value)}
}

// WithFields returns a log entry with multiple fields
func (l *Logger) WithFields(fields map[string]interface{}) *LogEntry {
	return &LogEntry{sugar: l.sugar.With(flatten(fields)...)}
}

// WithError returns a log entry with an error field
func (l *Logger) WithError(err error) *LogEntry {
	return &LogEntry{sugar: l.sugar.With(zap.Error(err))}
}

func flatten(fields map[string]interface{}) []interface{} {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return args
}

// LogEntry represents a log entry with fields
type LogEntry struct {
	sugar *zap.SugaredLogger
}

// WithField adds a field to the log entry
func (e *LogEntry) WithField(key string, value interface{}) *LogEntry {
	return &LogEntry{sugar: e.sugar.With(key, value)}
}

// WithFields adds multiple fields to the log entry
func (e *LogEntry) WithFields(fields map[string]interface{}) *LogEntry {
	return &LogEntry{sugar: e.sugar.With(flatten(fields)...)}
}

// WithError adds an error field to the log entry
func (e *LogEntry) WithError(err error) *LogEntry {
	return &LogEntry{sugar: e.sugar.With(zap.Error(err))}
}

func (e *LogEntry) Debug(args ...interface{})                 { e.sugar.Debug(args...) }
func (e *LogEntry) Debugf(format string, args ...interface{}) { e.sugar.Debugf(format, args...) }
func (e *LogEntry) Info(args ...interface{})                  { e.sugar.Info(args...) }
func (e *LogEntry) Infof(format string, args ...interface{})  { e.sugar.Infof(format, args...) }
func (e *LogEntry) Warn(args ...interface{})                  { e.sugar.Warn(args...) }
func (e *LogEntry) Warnf(format string, args ...interface{})  { e.sugar.Warnf(format, args...) }
func (e *LogEntry) Error(args ...interface{})                 { e.sugar.Error(args...) }
func (e *LogEntry) Errorf(format string, args ...interface{}) { e.sugar.Errorf(format, args...) }
func (e *LogEntry) Fatal(args ...interface{})                 { e.sugar.Fatal(args...) }
func (e *LogEntry) Fatalf(format string, args ...interface{}) { e.sugar.Fatalf(format, args...) }

// Global convenience functions

func WithField(key string, value interface{}) *LogEntry {
	return GetLogger().WithField(key, value)
}

func WithFields(fields map[string]interface{}) *LogEntry {
	return GetLogger().WithFields(fields)
}

func WithError(err error) *LogEntry {
	return GetLogger().WithError(err)
}

func Debug(args ...interface{})                 { GetLogger().Debug(args...) }
func Debugf(format string, args ...interface{}) { GetLogger().Debugf(format, args...) }
func Info(args ...interface{})                  { GetLogger().Info(args...) }
func Infof(format string, args ...interface{})  { GetLogger().Infof(format, args...) }
func Warn(args ...interface{})                  { GetLogger().Warn(args...) }
func Warnf(format string, args ...interface{})  { GetLogger().Warnf(format, args...) }
func Error(args ...interface{})                 { GetLogger().Error(args...) }
func Errorf(format string, args ...interface{}) { GetLogger().Errorf(format, args...) }
func Fatal(args ...interface{})                 { GetLogger().Fatal(args...) }
func Fatalf(format string, args ...interface{}) { GetLogger().Fatalf(format, args...) }

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.base.Sync()
}

// Close flushes the logger and closes the log file, if any.
func (l *Logger) Close() error {
	_ = l.base.Sync()
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

func (l *Logger) Debug(args ...interface{})                 { l.sugar.Debug(args...) }
func (l *Logger) Debugf(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }
func (l *Logger) Info(args ...interface{})                  { l.sugar.Info(args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.sugar.Infof(format, args...) }
func (l *Logger) Warn(args ...interface{})                  { l.sugar.Warn(args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.sugar.Warnf(format, args...) }
func (l *Logger) Error(args ...interface{})                 { l.sugar.Error(args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }
func (l *Logger) Fatal(args ...interface{})                 { l.sugar.Fatal(args...) }
func (l *Logger) Fatalf(format string, args ...interface{}) { l.sugar.Fatalf(format, args...) }
