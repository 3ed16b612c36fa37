package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/irfndi/prism-dashboard-go/internal/logging"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

const contextRequestID = "request_id"

// RequestRecorder receives one call per finished request.
type RequestRecorder interface {
	RecordAPIRequest(method, route string, status int, duration time.Duration)
}

// RequestID reuses the caller's X-Request-ID or generates one, and echoes
// it in the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(contextRequestID, id)
		c.Header(RequestIDHeader, id)

		if span := trace.SpanFromContext(c.Request.Context()); span.IsRecording() {
			span.SetAttributes(attribute.String("http.request_id", id))
		}
		c.Next()
	}
}

// GetRequestID returns the id set by RequestID.
func GetRequestID(c *gin.Context) string {
	return c.GetString(contextRequestID)
}

// Observability logs every request and reports it to recorder, which may
// be nil. Health and metrics probes are logged at debug level only.
func Observability(logger *logging.StandardLogger, recorder RequestRecorder) gin.HandlerFunc {
	if logger == nil {
		logger = logging.Wrap(nil)
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		route := c.FullPath()
		status := c.Writer.Status()
		if recorder != nil {
			recorder.RecordAPIRequest(c.Request.Method, route, status, duration)
		}

		if isProbe(route) && status < 400 {
			logger.WithRequestID(GetRequestID(c)).WithField("path", route).Debug("Probe request")
			return
		}
		logger.WithRequestID(GetRequestID(c)).WithFields(logrus.Fields{
			"client_ip": c.ClientIP(),
			"size":      c.Writer.Size(),
		}).Debug("Request completed")
		logger.LogAPIRequest(c.Request.Method, c.Request.URL.Path, status, duration, CurrentUserID(c))

		if status >= 500 {
			if span := trace.SpanFromContext(c.Request.Context()); span.IsRecording() {
				span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", status))
			}
		}
	}
}

// RecordError records err on the request span.
func RecordError(c *gin.Context, err error, description string) {
	span := trace.SpanFromContext(c.Request.Context())
	if span.IsRecording() {
		span.RecordError(err)
		span.SetStatus(codes.Error, description)
	}
}

// AddSpanAttribute adds an attribute to the current span
func AddSpanAttribute(c *gin.Context, key string, value interface{}) {
	span := trace.SpanFromContext(c.Request.Context())
	if !span.IsRecording() {
		return
	}
	switch v := value.(type) {
	case string:
		span.SetAttributes(attribute.String(key, v))
	case int:
		span.SetAttributes(attribute.Int(key, v))
	case int64:
		span.SetAttributes(attribute.Int64(key, v))
	case float64:
		span.SetAttributes(attribute.Float64(key, v))
	case bool:
		span.SetAttributes(attribute.Bool(key, v))
	default:
		span.SetAttributes(attribute.String(key, fmt.Sprintf("%v", value)))
	}
}

func isProbe(route string) bool {
	switch route {
	case "/health", "/ready", "/live", "/metrics":
		return true
	}
	return false
}
