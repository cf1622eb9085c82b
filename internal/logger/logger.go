package logger

import (
	"os"
	"sync"
)

// Log levels used across the application.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

var (
	// globalLogger holds the singleton logger instance.
	globalLogger *Logger
	once         sync.Once
)

// Get returns a singleton logger configured with the provided level.
// The first call initializes the logger; subsequent calls ignore the
// level and return the already initialized instance.
func Get(level string) *Logger {
	once.Do(func() {
		globalLogger = newZapLogger(level)
	})
	return globalLogger
}

// ResolveLevel picks the effective level: the LOG_LEVEL environment
// variable wins over the configured value, which wins over the default.
func ResolveLevel(configured string) string {
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		return env
	}
	if configured != "" {
		return configured
	}
	return InfoLevel
}
