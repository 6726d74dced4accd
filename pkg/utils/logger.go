package utils

import (
	"fmt"
	"log"
	"os"
	"time"
)

// LogLevel represents the severity of a log message
type LogLevel int8

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// String returns the level tag used in formatted output
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "INFO"
	}
}

// ParseLevel converts a level name to a LogLevel, defaulting to INFO
func ParseLevel(name string) LogLevel {
	switch name {
	case "DEBUG":
		return DEBUG
	case "WARN":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// Logger provides leveled, component-scoped logging
type Logger struct {
	logger    *log.Logger
	minLevel  LogLevel
	component string
}

// NewLogger creates a new logger instance
func NewLogger(component string, minLevel LogLevel) *Logger {
	return &Logger{
		logger:    log.New(os.Stderr, "", 0),
		minLevel:  minLevel,
		component: component,
	}
}

// formatMessage formats a log message with timestamp, level, and component
func (l *Logger) formatMessage(level LogLevel, message string) string {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	return fmt.Sprintf("[%s] [%s] [%s] %s", timestamp, level, l.component, message)
}

func (l *Logger) logf(level LogLevel, message string, args ...interface{}) {
	if level < l.minLevel {
		return
	}
	l.logger.Println(l.formatMessage(level, fmt.Sprintf(message, args...)))
}

// Debug logs a debug message
func (l *Logger) Debug(message string, args ...interface{}) {
	l.logf(DEBUG, message, args...)
}

// Info logs an info message
func (l *Logger) Info(message string, args ...interface{}) {
	l.logf(INFO, message, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(message string, args ...interface{}) {
	l.logf(WARN, message, args...)
}

// Error logs an error message
func (l *Logger) Error(message string, args ...interface{}) {
	l.logf(ERROR, message, args...)
}

// Fatal logs an error message and exits the program
func (l *Logger) Fatal(message string, args ...interface{}) {
	l.logger.Fatalln(l.formatMessage(ERROR, fmt.Sprintf(message, args...)))
}

// WithComponent creates a new logger with a different component name
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		logger:    l.logger,
		minLevel:  l.minLevel,
		component: component,
	}
}

// Global logger instance for convenience
var defaultLogger = NewLogger("coordinator", INFO)

// SetDefaultLogLevel sets the log level for the default logger
func SetDefaultLogLevel(level LogLevel) {
	defaultLogger.minLevel = level
}

// Debug logs a debug message using the default logger
func Debug(message string, args ...interface{}) {
	defaultLogger.Debug(message, args...)
}

// Info logs an info message using the default logger
func Info(message string, args ...interface{}) {
	defaultLogger.Info(message, args...)
}

// Warn logs a warning message using the default logger
func Warn(message string, args ...interface{}) {
	defaultLogger.Warn(message, args...)
}

// Error logs an error message using the default logger
func Error(message string, args ...interface{}) {
	defaultLogger.Error(message, args...)
}

// Fatal logs an error message and exits using the default logger
func Fatal(message string, args ...interface{}) {
	defaultLogger.Fatal(message, args...)
}
