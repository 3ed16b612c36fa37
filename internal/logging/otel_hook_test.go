package logging

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otellog "go.opentelemetry.io/otel/log"
)

// recordingLogger captures emitted records.
type recordingLogger struct {
	otellog.Logger

	mu      sync.Mutex
	records []otellog.Record
}

func (r *recordingLogger) Emit(_ context.Context, record otellog.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
}

func (r *recordingLogger) Enabled(context.Context, otellog.EnabledParameters) bool {
	return true
}

func attributes(record otellog.Record) map[string]otellog.Value {
	out := make(map[string]otellog.Value, record.AttributesLen())
	record.WalkAttributes(func(kv otellog.KeyValue) bool {
		out[kv.Key] = kv.Value
		return true
	})
	return out
}

func TestOTelHook_Fire(t *testing.T) {
	sink := &recordingLogger{}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.AddHook(NewOTelHook(sink, logrus.InfoLevel))

	logger.WithFields(logrus.Fields{
		"category":    "fridge",
		"samples":     72,
		"duration":    1500 * time.Millisecond,
		"cached":      true,
		"min_slope":   2.5,
		"error_cause": errors.New("boom"),
	}).Warn("Analysis slow")

	require.Len(t, sink.records, 1)
	record := sink.records[0]
	assert.Equal(t, "Analysis slow", record.Body().AsString())
	assert.Equal(t, otellog.SeverityWarn, record.Severity())
	assert.Equal(t, "warning", record.SeverityText())

	attrs := attributes(record)
	assert.Equal(t, "fridge", attrs["category"].AsString())
	assert.Equal(t, int64(72), attrs["samples"].AsInt64())
	assert.Equal(t, int64(1500), attrs["duration"].AsInt64())
	assert.True(t, attrs["cached"].AsBool())
	assert.Equal(t, 2.5, attrs["min_slope"].AsFloat64())
	assert.Equal(t, "boom", attrs["error_cause"].AsString())
}

func TestOTelHook_Levels(t *testing.T) {
	sink := &recordingLogger{}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.DebugLevel)
	logger.AddHook(NewOTelHook(sink, logrus.InfoLevel))

	logger.Debug("hidden")
	logger.Info("shown")
	logger.Error("also shown")

	require.Len(t, sink.records, 2)
	assert.Equal(t, "shown", sink.records[0].Body().AsString())
	assert.Equal(t, otellog.SeverityError, sink.records[1].Severity())
}

func TestSeverityOf(t *testing.T) {
	assert.Equal(t, otellog.SeverityTrace, severityOf(logrus.TraceLevel))
	assert.Equal(t, otellog.SeverityDebug, severityOf(logrus.DebugLevel))
	assert.Equal(t, otellog.SeverityInfo, severityOf(logrus.InfoLevel))
	assert.Equal(t, otellog.SeverityWarn, severityOf(logrus.WarnLevel))
	assert.Equal(t, otellog.SeverityError, severityOf(logrus.ErrorLevel))
	assert.Equal(t, otellog.SeverityFatal, severityOf(logrus.FatalLevel))
}
