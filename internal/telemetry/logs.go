package telemetry

import (
	"context"
	"fmt"

	"github.com/irfndi/prism-dashboard-go/internal/logging"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// LogExport ships application logs to the OTLP collector.
type LogExport struct {
	provider *sdklog.LoggerProvider
}

// InitLogExport attaches an OTLP log hook to logger. It is a no-op unless
// telemetry is enabled with the otlp exporter and log export switched on.
func InitLogExport(ctx context.Context, cfg *TelemetryConfig, logger *logging.StandardLogger) (*LogExport, error) {
	if cfg == nil || !cfg.Enabled || !cfg.Logs || cfg.Exporter != "otlp" || logger == nil {
		return &LogExport{}, nil
	}

	hostport, urlPath, insecure, resolved, err := normalizeOTLPEndpoint(cfg.OTLPEndpoint, logsPath)
	if err != nil {
		return nil, fmt.Errorf("invalid OTLPEndpoint: %w", err)
	}
	opts := []otlploghttp.Option{
		otlploghttp.WithEndpoint(hostport),
		otlploghttp.WithURLPath(urlPath),
	}
	if insecure {
		opts = append(opts, otlploghttp.WithInsecure())
	}
	exporter, err := otlploghttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
		sdklog.WithResource(serviceResource(cfg)),
	)
	logger.WithComponent("telemetry").WithField("endpoint", resolved).Info("OTLP log export enabled")
	logger.AddHook(logging.NewOTelHook(provider.Logger(instrumentationPrefix+"/logging"), logger.GetLevel()))

	return &LogExport{provider: provider}, nil
}

// Shutdown flushes buffered log records.
func (e *LogExport) Shutdown(ctx context.Context) error {
	if e == nil || e.provider == nil {
		return nil
	}
	if err := e.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down log provider: %w", err)
	}
	return nil
}
