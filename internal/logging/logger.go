package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// StandardLogger wraps a logrus logger with the field conventions shared by
// every component: service, component, operation and event.
type StandardLogger struct {
	*logrus.Logger
}

// NewLogger creates a logrus logger writing to stdout. Development uses the
// text formatter, every other environment emits JSON.
func NewLogger(level, environment string) *logrus.Logger {
	return NewLoggerWithOutput(level, environment, os.Stdout)
}

// NewLoggerWithOutput is NewLogger with an explicit writer.
func NewLoggerWithOutput(level, environment string, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(ParseLogrusLevel(level))

	if strings.EqualFold(environment, "development") {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	}
	return logger
}

// NewStandardLogger creates a StandardLogger from configuration values.
func NewStandardLogger(level, environment string) *StandardLogger {
	return &StandardLogger{Logger: NewLogger(level, environment)}
}

// Wrap adapts an existing logrus logger.
func Wrap(logger *logrus.Logger) *StandardLogger {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &StandardLogger{Logger: logger}
}

// ParseLogrusLevel converts string level to logrus.Level
func ParseLogrusLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "trace":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

func (l *StandardLogger) WithService(serviceName string) *logrus.Entry {
	return l.WithField("service", serviceName)
}

func (l *StandardLogger) WithComponent(componentName string) *logrus.Entry {
	return l.WithField("component", componentName)
}

func (l *StandardLogger) WithOperation(operationName string) *logrus.Entry {
	return l.WithField("operation", operationName)
}

func (l *StandardLogger) WithRequestID(requestID string) *logrus.Entry {
	return l.WithField("request_id", requestID)
}

func (l *StandardLogger) WithCategory(category string) *logrus.Entry {
	return l.WithField("category", category)
}

// LogStartup logs application startup information
func (l *StandardLogger) LogStartup(serviceName string, version string, port int) {
	l.WithFields(logrus.Fields{
		"service": serviceName,
		"version": version,
		"port":    port,
		"event":   "startup",
	}).Info("Application startup")
}

// LogShutdown logs application shutdown information
func (l *StandardLogger) LogShutdown(serviceName string, reason string) {
	l.WithFields(logrus.Fields{
		"service": serviceName,
		"reason":  reason,
		"event":   "shutdown",
	}).Info("Application shutdown")
}

// LogCacheOperation logs cache operations at debug level.
func (l *StandardLogger) LogCacheOperation(operation string, key string, hit bool, duration time.Duration) {
	l.WithFields(logrus.Fields{
		"operation":   operation,
		"key":         key,
		"hit":         hit,
		"duration_ms": duration.Milliseconds(),
		"event":       "cache",
	}).Debug("Cache operation")
}

// LogDatabaseOperation logs database operations at debug level.
func (l *StandardLogger) LogDatabaseOperation(operation string, table string, duration time.Duration, rowsAffected int64) {
	l.WithFields(logrus.Fields{
		"operation":     operation,
		"table":         table,
		"duration_ms":   duration.Milliseconds(),
		"rows_affected": rowsAffected,
		"event":         "database",
	}).Debug("Database operation")
}

// LogAPIRequest logs one served HTTP request.
func (l *StandardLogger) LogAPIRequest(method string, path string, statusCode int, duration time.Duration, userID string) {
	entry := l.WithFields(logrus.Fields{
		"method":      method,
		"path":        path,
		"status":      statusCode,
		"duration_ms": duration.Milliseconds(),
		"user_id":     userID,
		"event":       "api",
	})
	switch {
	case statusCode >= 500:
		entry.Error("API request")
	case statusCode >= 400:
		entry.Warn("API request")
	default:
		entry.Info("API request")
	}
}

// LogAnalysis logs the outcome of one engine run.
func (l *StandardLogger) LogAnalysis(source string, samples, nightZones, slopeZones int, duration time.Duration) {
	l.WithFields(logrus.Fields{
		"source":      source,
		"samples":     samples,
		"night_zones": nightZones,
		"slope_zones": slopeZones,
		"duration_ms": duration.Milliseconds(),
		"event":       "analysis",
	}).Info("Trace analysed")
}
