// Package telemetry configures the OpenTelemetry tracer provider shared by
// the HTTP layer, the dashboard service and the database pool.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/irfndi/prism-dashboard-go/internal/config"
	"github.com/irfndi/prism-dashboard-go/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const (
	// Service information
	ServiceName    = "prism-dashboard"
	ServiceVersion = "1.0.0"

	instrumentationPrefix = "github.com/irfndi/prism-dashboard-go"
)

// TelemetryConfig holds configuration for telemetry
type TelemetryConfig struct {
	Enabled        bool
	Exporter       string
	OTLPEndpoint   string
	ServiceName    string
	ServiceVersion string
	Environment    string
	SampleRate     float64
	BatchTimeout   time.Duration
	// Logs also ships application logs over OTLP. Only honoured by the otlp
	// exporter.
	Logs bool
	// Writer receives spans from the stdout exporter. Nil means os.Stdout.
	Writer io.Writer
}

// DefaultConfig returns default telemetry configuration
func DefaultConfig() *TelemetryConfig {
	return &TelemetryConfig{
		Enabled:        true,
		Exporter:       "otlp",
		OTLPEndpoint:   "http://localhost:4318",
		ServiceName:    ServiceName,
		ServiceVersion: ServiceVersion,
		Environment:    "development",
		SampleRate:     1.0,
		BatchTimeout:   5 * time.Second,
	}
}

// FromConfig maps the application configuration onto a TelemetryConfig.
func FromConfig(cfg config.TelemetryConfig, environment string) *TelemetryConfig {
	tc := DefaultConfig()
	tc.Enabled = cfg.Enabled
	tc.Exporter = cfg.Exporter
	tc.Environment = environment
	if cfg.OTLPEndpoint != "" {
		tc.OTLPEndpoint = cfg.OTLPEndpoint
	}
	if cfg.ServiceName != "" {
		tc.ServiceName = cfg.ServiceName
	}
	if cfg.ServiceVersion != "" {
		tc.ServiceVersion = cfg.ServiceVersion
	}
	tc.SampleRate = cfg.SampleRatio
	tc.Logs = cfg.LogsEnabled
	return tc
}

// Provider holds the telemetry provider
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	logger         *logging.StandardLogger
}

// Shutdown flushes pending spans and stops the exporter. It is a no-op
// when telemetry is disabled.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tracerProvider == nil {
		return nil
	}
	if err := p.tracerProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down tracer provider: %w", err)
	}
	p.logger.WithComponent("telemetry").Info("Tracer provider shut down")
	return nil
}

// InitTelemetryWithProvider builds the tracer provider described by cfg and
// installs it, with W3C trace-context propagation, as the global provider.
//
// Parameters:
//
//	ctx: Context for exporter construction.
//	cfg: Telemetry configuration.
//	logger: Standard logger.
//
// Returns:
//
//	*Provider: Provider to shut down on exit.
//	error: Error if the exporter cannot be created.
func InitTelemetryWithProvider(ctx context.Context, cfg *TelemetryConfig, logger *logging.StandardLogger) (*Provider, error) {
	if logger == nil {
		logger = logging.Wrap(nil)
	}
	if cfg == nil || !cfg.Enabled {
		return &Provider{logger: logger}, nil
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	res := serviceResource(cfg)

	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 5 * time.Second
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(batchTimeout)),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(clampRatio(cfg.SampleRate)))),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.WithComponent("telemetry").WithFields(map[string]interface{}{
		"exporter":     cfg.Exporter,
		"service":      cfg.ServiceName,
		"sample_ratio": cfg.SampleRate,
	}).Info("Tracer provider initialized")

	return &Provider{tracerProvider: tp, logger: logger}, nil
}

func newExporter(ctx context.Context, cfg *TelemetryConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "stdout":
		w := cfg.Writer
		if w == nil {
			w = os.Stdout
		}
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		return exp, nil
	case "otlp":
		hostport, urlPath, insecure, _, err := normalizeOTLPEndpoint(cfg.OTLPEndpoint, tracesPath)
		if err != nil {
			return nil, fmt.Errorf("invalid OTLPEndpoint: %w", err)
		}
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(hostport),
			otlptracehttp.WithURLPath(urlPath),
		}
		if insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exp, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		return exp, nil
	default:
		return nil, fmt.Errorf("unknown telemetry exporter %q", cfg.Exporter)
	}
}

const (
	tracesPath = "/v1/traces"
	logsPath   = "/v1/logs"
)

func serviceResource(cfg *TelemetryConfig) *resource.Resource {
	return resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
		attribute.String("deployment.environment", cfg.Environment),
	)
}

// normalizeOTLPEndpoint splits an OTLP/HTTP base URL into the pieces the
// exporter options take. signal is the path of the signal being exported;
// a signal path already present on the endpoint is replaced.
func normalizeOTLPEndpoint(endpoint, signal string) (hostport, urlPath string, insecure bool, resolved string, err error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", "", false, "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", "", false, "", errors.New("endpoint must start with http:// or https://")
	}
	if u.Host == "" {
		return "", "", false, "", errors.New("endpoint has no host")
	}

	path := strings.TrimSuffix(u.Path, "/")
	path = strings.TrimSuffix(path, tracesPath)
	path = strings.TrimSuffix(path, logsPath)
	path += signal

	resolved = fmt.Sprintf("%s://%s%s", u.Scheme, u.Host, path)
	return u.Host, path, u.Scheme == "http", resolved, nil
}

func clampRatio(r float64) float64 {
	switch {
	case r <= 0:
		return 0
	case r >= 1:
		return 1
	default:
		return r
	}
}

// GetTracer returns a tracer from the global provider.
func GetTracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

func GetHTTPTracer() trace.Tracer {
	return GetTracer(instrumentationPrefix + "/http")
}

func GetDatabaseTracer() trace.Tracer {
	return GetTracer(instrumentationPrefix + "/database")
}

func GetAnalysisTracer() trace.Tracer {
	return GetTracer(instrumentationPrefix + "/analysis")
}

func GetCacheTracer() trace.Tracer {
	return GetTracer(instrumentationPrefix + "/cache")
}

// StartSpan starts an internal span on tracer.
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// RecordError records err on span and marks it failed. A nil err is ignored.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func SetSpanStatus(span trace.Span, code codes.Code, description string) {
	span.SetStatus(code, description)
}
