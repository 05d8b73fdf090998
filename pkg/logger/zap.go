// Package logger is the structured-logging facade used across petracache,
// adapted from the teacher's logger/zap.go: a global *zap.SugaredLogger
// behind a disable switch, now with a configurable level (the teacher
// hardcodes debug) and a Sync hook the CLI entrypoint calls before exit.
package logger

import (
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	global        *zap.SugaredLogger
	disableLogger atomic.Bool
	generationTag = []any{"component", "petracache"}
)

func init() {
	SetLogger(newSugaredLogger(zap.NewAtomicLevelAt(zap.InfoLevel)))
}

// SetLogger installs a new global logger.
func SetLogger(l *zap.SugaredLogger) {
	global = l
}

// GetLogger returns the current global logger.
func GetLogger() *zap.SugaredLogger {
	return global
}

// Configure rebuilds the global logger at the given level name
// ("debug", "info", "warn", "error"); unknown names fall back to info.
func Configure(levelName string) {
	lvl := zap.InfoLevel
	_ = lvl.UnmarshalText([]byte(levelName))
	SetLogger(newSugaredLogger(zap.NewAtomicLevelAt(lvl)))
}

// Disable turns off all logging output, globally.
func Disable() {
	disableLogger.Store(true)
}

// Disabled reports whether logging is currently suppressed.
func Disabled() bool {
	return disableLogger.Load()
}

// Sync flushes any buffered log entries; call before process exit.
func Sync() {
	if log := GetLogger(); log != nil {
		_ = log.Sync()
	}
}

func newSugaredLogger(level zapcore.LevelEnabler, options ...zap.Option) *zap.SugaredLogger {
	return zap.New(
		zapcore.NewCore(
			zapcore.NewJSONEncoder(zapcore.EncoderConfig{
				TimeKey:        "ts",
				LevelKey:       "level",
				NameKey:        "logger",
				CallerKey:      "caller",
				MessageKey:     "message",
				StacktraceKey:  "stacktrace",
				LineEnding:     zapcore.DefaultLineEnding,
				EncodeLevel:    capitalLevelEncoder,
				EncodeTime:     zapcore.ISO8601TimeEncoder,
				EncodeDuration: zapcore.SecondsDurationEncoder,
				EncodeCaller:   zapcore.ShortCallerEncoder,
			}),
			zapcore.AddSync(os.Stdout),
			level,
		),
		options...,
	).Sugar().With(generationTag...)
}

func capitalLevelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	level := ""
	switch l {
	case zapcore.ErrorLevel:
		level = "ERR"
	case zapcore.WarnLevel:
		level = "WARNING"
	default:
		level = l.CapitalString()
	}
	enc.AppendString(level)
}

func Debug(args ...any) {
	if l := GetLogger(); l != nil && !Disabled() {
		l.Debug(args...)
	}
}

func Debugf(format string, args ...any) {
	if l := GetLogger(); l != nil && !Disabled() {
		l.Debugf(format, args...)
	}
}

func Info(args ...any) {
	if l := GetLogger(); l != nil && !Disabled() {
		l.Info(args...)
	}
}

func Infof(format string, args ...any) {
	if l := GetLogger(); l != nil && !Disabled() {
		l.Infof(format, args...)
	}
}

func Warn(args ...any) {
	if l := GetLogger(); l != nil && !Disabled() {
		l.Warn(args...)
	}
}

func Warnf(format string, args ...any) {
	if l := GetLogger(); l != nil && !Disabled() {
		l.Warnf(format, args...)
	}
}

func Error(args ...any) {
	if l := GetLogger(); l != nil && !Disabled() {
		l.Error(args...)
	}
}

func Errorf(format string, args ...any) {
	if l := GetLogger(); l != nil && !Disabled() {
		l.Errorf(format, args...)
	}
}
