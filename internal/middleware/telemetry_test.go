package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/prism-dashboard-go/internal/logging"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

type recordedRequest struct {
	method string
	route  string
	status int
}

type fakeRecorder struct {
	requests []recordedRequest
}

func (f *fakeRecorder) RecordAPIRequest(method, route string, status int, _ time.Duration) {
	f.requests = append(f.requests, recordedRequest{method: method, route: route, status: status})
}

func TestRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	generated := w.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "req-42", w.Body.String())
}

func TestObservability(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	recorder := &fakeRecorder{}

	router := gin.New()
	router.Use(RequestID(), Observability(logging.Wrap(base), recorder))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/api/v1/data/plot/:category", func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "missing"})
	})

	for _, path := range []string{"/health", "/api/v1/data/plot/solar", "/nowhere"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	require.Len(t, recorder.requests, 3)
	assert.Equal(t, recordedRequest{method: "GET", route: "/health", status: 200}, recorder.requests[0])
	assert.Equal(t, recordedRequest{method: "GET", route: "/api/v1/data/plot/:category", status: 404}, recorder.requests[1])
	assert.Equal(t, recordedRequest{method: "GET", route: "", status: 404}, recorder.requests[2])

	var apiEntries []*logrus.Entry
	for _, entry := range hook.AllEntries() {
		if entry.Message == "API request" {
			apiEntries = append(apiEntries, entry)
		}
	}
	require.Len(t, apiEntries, 2, "probes are not logged as API requests")
	assert.Equal(t, logrus.WarnLevel, apiEntries[0].Level)
	assert.Equal(t, "/api/v1/data/plot/solar", apiEntries[0].Data["path"])
}

func TestObservability_NilCollaborators(t *testing.T) {
	router := gin.New()
	router.Use(Observability(nil, nil))
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSpanHelpers(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	tracer := provider.Tracer("test")

	router := gin.New()
	router.Use(func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "request", trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})
	router.Use(RequestID(), Observability(nil, nil))
	router.GET("/fail", func(c *gin.Context) {
		AddSpanAttribute(c, "category", "solar")
		AddSpanAttribute(c, "samples", 24)
		AddSpanAttribute(c, "cached", true)
		AddSpanAttribute(c, "other", []int{1})
		RecordError(c, errors.New("boom"), "analysis failed")
		c.Status(http.StatusInternalServerError)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fail", nil))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, codes.Error, span.Status().Code)
	assert.Equal(t, "HTTP 500", span.Status().Description)
	require.Len(t, span.Events(), 1)
	assert.Equal(t, "exception", span.Events()[0].Name)

	attrs := map[string]string{}
	for _, kv := range span.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "solar", attrs["category"])
	assert.Equal(t, "24", attrs["samples"])
	assert.Equal(t, "true", attrs["cached"])
	assert.Equal(t, "[1]", attrs["other"])
	assert.Len(t, attrs["http.request_id"], 36)
}
