// Package logging provides a small leveled wrapper around the standard
// log package, tagged by the component that produced the message.
package logging

import (
	"fmt"
	"log"
	"strings"
)

// Level represents the logging level.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var currentLevel = LevelInfo

// SetLevel sets the global logging level from a string.
func SetLevel(level string) {
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
	log.Printf("[config] log level set to: %s", strings.ToLower(level))
}

// Logger tags every message it emits with a fixed component name, so
// output from the store, scheduler, STS client and authenticator can be
// told apart in a single process log stream.
type Logger struct {
	component string
}

// For returns a Logger tagged with the given component name.
func For(component string) Logger {
	return Logger{component: component}
}

func (l Logger) prefix(format string) string {
	return fmt.Sprintf("[%s] %s", l.component, format)
}

// Debug logs a message at DEBUG level.
func (l Logger) Debug(format string, v ...interface{}) {
	if currentLevel <= LevelDebug {
		log.Printf(l.prefix(format), v...)
	}
}

// Info logs a message at INFO level.
func (l Logger) Info(format string, v ...interface{}) {
	if currentLevel <= LevelInfo {
		log.Printf(l.prefix(format), v...)
	}
}

// Warn logs a message at WARN level.
func (l Logger) Warn(format string, v ...interface{}) {
	if currentLevel <= LevelWarn {
		log.Printf(l.prefix(format), v...)
	}
}

// Error logs a message at ERROR level.
func (l Logger) Error(format string, v ...interface{}) {
	if currentLevel <= LevelError {
		log.Printf(l.prefix(format), v...)
	}
}
