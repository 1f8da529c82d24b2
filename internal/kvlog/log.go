// Package kvlog wraps zap with the small level-gated API the rest of
// kvcached calls into, so call sites read "kvlog.Warn(...)" instead of
// threading a *zap.Logger through every constructor.
package kvlog

import (
	"go.uber.org/zap"
)

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var (
	logger   *zap.Logger
	logLevel = INFO
)

func init() {
	l, err := zap.NewProduction()
	if err != nil {
		l = zap.NewNop()
	}
	logger = l
}

// Init swaps in a logger built for the configured level. Called once at
// startup after the config file has been parsed.
func Init(level string) {
	logLevel = parseLevel(level)

	cfg := zap.NewProductionConfig()
	switch logLevel {
	case DEBUG:
		cfg.Level.SetLevel(zap.DebugLevel)
	case WARN:
		cfg.Level.SetLevel(zap.WarnLevel)
	case ERROR:
		cfg.Level.SetLevel(zap.ErrorLevel)
	default:
		cfg.Level.SetLevel(zap.InfoLevel)
	}

	l, err := cfg.Build()
	if err != nil {
		return
	}
	logger = l
}

func parseLevel(s string) Level {
	switch s {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

func Debug(msg string, fields ...zap.Field) {
	logger.Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	logger.Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	logger.Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	logger.Error(msg, fields...)
}

// Sync flushes any buffered log entries. Call on shutdown.
func Sync() error {
	return logger.Sync()
}
