package common

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var (
	loggerOnce sync.Once
	logger     *log.Logger
)

// Logger returns the shared logger, creating it on first use. The level
// defaults to info and can be overridden with the CALDER_LOG environment
// variable (debug, info, warn, error).
//
// Returns:
//   - *log.Logger: the shared logger instance
func Logger() *log.Logger {
	loggerOnce.Do(func() {
		logger = log.NewWithOptions(os.Stderr, log.Options{
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			Prefix:          "calder",
		})
		if lvl, err := log.ParseLevel(strings.ToLower(os.Getenv("CALDER_LOG"))); err == nil {
			logger.SetLevel(lvl)
		}
	})
	return logger
}

// SetLogLevel adjusts the shared logger's minimum level at runtime.
//
// Parameters:
//   - level: the new minimum level
func SetLogLevel(level log.Level) {
	Logger().SetLevel(level)
}

// LogDebug logs a formatted message at debug level using the shared logger.
func LogDebug(msg string, args ...any) {
	Logger().Debugf(msg, args...)
}

// LogInfo logs a formatted message at info level using the shared logger.
func LogInfo(msg string, args ...any) {
	Logger().Infof(msg, args...)
}

// LogWarn logs a formatted message at warn level using the shared logger.
func LogWarn(msg string, args ...any) {
	Logger().Warnf(msg, args...)
}

// LogError logs a formatted message at error level using the shared logger.
func LogError(msg string, args ...any) {
	Logger().Errorf(msg, args...)
}
