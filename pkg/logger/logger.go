// Package logger provides leveled logging for the streaming client.
package logger

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Level represents the logging level
type Level = logrus.Level

const (
	// LevelError shows only error messages
	LevelError = logrus.ErrorLevel
	// LevelWarn shows warnings and errors
	LevelWarn = logrus.WarnLevel
	// LevelInfo shows informational messages, warnings, and errors (default)
	LevelInfo = logrus.InfoLevel
	// LevelDebug shows all messages including detailed debug information
	LevelDebug = logrus.DebugLevel
)

var defaultLogger = logrus.New()

func init() {
	defaultLogger.SetLevel(LevelInfo)
}

// SetLevel sets the logging level for the default logger
func SetLevel(level Level) {
	defaultLogger.SetLevel(level)
}

// GetLevel returns the current logging level
func GetLevel() Level {
	return defaultLogger.GetLevel()
}

// ParseLevel parses a string level name and returns the corresponding Level
func ParseLevel(levelStr string) (Level, error) {
	switch levelStr {
	case "error":
		return LevelError, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "info":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %s (valid levels: error, warn, info, debug)", levelStr)
	}
}

// WithField returns an entry carrying a structured field
func WithField(key string, value interface{}) *logrus.Entry {
	return defaultLogger.WithField(key, value)
}

// WithError returns an entry carrying an error field
func WithError(err error) *logrus.Entry {
	return defaultLogger.WithError(err)
}

// Error logs an error message using the default logger
func Error(format string, v ...interface{}) {
	defaultLogger.Errorf(format, v...)
}

// Warn logs a warning message using the default logger
func Warn(format string, v ...interface{}) {
	defaultLogger.Warnf(format, v...)
}

// Info logs an informational message using the default logger
func Info(format string, v ...interface{}) {
	defaultLogger.Infof(format, v...)
}

// Debug logs a debug message using the default logger
func Debug(format string, v ...interface{}) {
	defaultLogger.Debugf(format, v...)
}
