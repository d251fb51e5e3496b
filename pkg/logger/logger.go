// Package logger provides a small leveled logging facility.
package logger

import (
	"fmt"
	"os"
	"strings"
)

// Level is a log severity level.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var currentLevel = LevelInfo

// SetLevel sets the active log level.
func SetLevel(level Level) {
	currentLevel = level
}

// SetLevelFromString sets the active log level from its string name.
func SetLevelFromString(level string) {
	switch strings.ToLower(level) {
	case "debug":
		currentLevel = LevelDebug
	case "info":
		currentLevel = LevelInfo
	case "warn", "warning":
		currentLevel = LevelWarn
	case "error":
		currentLevel = LevelError
	default:
		currentLevel = LevelInfo
	}
}

// EnableDebug turns on debug logging.
func EnableDebug() {
	currentLevel = LevelDebug
}

// IsDebugEnabled reports whether debug logging is active.
func IsDebugEnabled() bool {
	return currentLevel <= LevelDebug
}

// Debug logs at debug level.
func Debug(format string, args ...interface{}) {
	if currentLevel <= LevelDebug {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// Info logs at info level.
func Info(format string, args ...interface{}) {
	if currentLevel <= LevelInfo {
		fmt.Fprintf(os.Stderr, "[INFO] "+format+"\n", args...)
	}
}

// Warn logs at warn level.
func Warn(format string, args ...interface{}) {
	if currentLevel <= LevelWarn {
		fmt.Fprintf(os.Stderr, "[WARN] "+format+"\n", args...)
	}
}

// Error logs at error level.
func Error(format string, args ...interface{}) {
	if currentLevel <= LevelError {
		fmt.Fprintf(os.Stderr, "[ERROR] "+format+"\n", args...)
	}
}
