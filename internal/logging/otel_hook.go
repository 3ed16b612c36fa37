package logging

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	otellog "go.opentelemetry.io/otel/log"
)

// OTelHook forwards logrus entries to an OpenTelemetry logger so they reach
// the same collector as the traces.
type OTelHook struct {
	logger otellog.Logger
	levels []logrus.Level
}

// NewOTelHook returns a hook that emits entries at minLevel or more severe.
func NewOTelHook(logger otellog.Logger, minLevel logrus.Level) *OTelHook {
	levels := make([]logrus.Level, 0, len(logrus.AllLevels))
	for _, l := range logrus.AllLevels {
		if l <= minLevel {
			levels = append(levels, l)
		}
	}
	return &OTelHook{logger: logger, levels: levels}
}

// Levels implements logrus.Hook.
func (h *OTelHook) Levels() []logrus.Level {
	return h.levels
}

// Fire implements logrus.Hook.
func (h *OTelHook) Fire(entry *logrus.Entry) error {
	var record otellog.Record
	record.SetTimestamp(entry.Time)
	record.SetObservedTimestamp(time.Now())
	record.SetSeverity(severityOf(entry.Level))
	record.SetSeverityText(entry.Level.String())
	record.SetBody(otellog.StringValue(entry.Message))

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	attrs := make([]otellog.KeyValue, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, keyValue(k, entry.Data[k]))
	}
	record.AddAttributes(attrs...)

	ctx := entry.Context
	if ctx == nil {
		ctx = context.Background()
	}
	h.logger.Emit(ctx, record)
	return nil
}

func keyValue(key string, v interface{}) otellog.KeyValue {
	switch val := v.(type) {
	case string:
		return otellog.String(key, val)
	case bool:
		return otellog.Bool(key, val)
	case int:
		return otellog.Int(key, val)
	case int64:
		return otellog.Int64(key, val)
	case float64:
		return otellog.Float64(key, val)
	case time.Duration:
		return otellog.Int64(key, val.Milliseconds())
	case error:
		return otellog.String(key, val.Error())
	default:
		return otellog.String(key, fmt.Sprint(val))
	}
}

func severityOf(level logrus.Level) otellog.Severity {
	switch level {
	case logrus.TraceLevel:
		return otellog.SeverityTrace
	case logrus.DebugLevel:
		return otellog.SeverityDebug
	case logrus.InfoLevel:
		return otellog.SeverityInfo
	case logrus.WarnLevel:
		return otellog.SeverityWarn
	case logrus.ErrorLevel:
		return otellog.SeverityError
	case logrus.FatalLevel:
		return otellog.SeverityFatal
	case logrus.PanicLevel:
		return otellog.SeverityFatal4
	default:
		return otellog.SeverityInfo
	}
}
