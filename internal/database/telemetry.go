package database

import (
	"context"
	"strings"
	"time"

	"github.com/irfndi/prism-dashboard-go/internal/logging"
	"github.com/irfndi/prism-dashboard-go/internal/telemetry"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracedPool wraps a DatabasePool with one span and one debug log line per
// statement.
type TracedPool struct {
	pool   DatabasePool
	tracer trace.Tracer
	logger *logging.StandardLogger
}

// NewTracedPool wraps pool. The tracer comes from the global provider.
func NewTracedPool(pool DatabasePool, logger *logging.StandardLogger) *TracedPool {
	return &TracedPool{
		pool:   pool,
		tracer: telemetry.GetDatabaseTracer(),
		logger: logger,
	}
}

func (p *TracedPool) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	ctx, span := p.start(ctx, "query", sql)
	defer span.End()

	start := time.Now()
	rows, err := p.pool.Query(ctx, sql, args...)
	p.finish(span, "query", sql, time.Since(start), -1, err)
	return rows, err
}

func (p *TracedPool) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	ctx, span := p.start(ctx, "query_row", sql)
	defer span.End()

	start := time.Now()
	row := p.pool.QueryRow(ctx, sql, args...)
	p.finish(span, "query_row", sql, time.Since(start), -1, nil)
	return row
}

func (p *TracedPool) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	ctx, span := p.start(ctx, "exec", sql)
	defer span.End()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, sql, args...)
	p.finish(span, "exec", sql, time.Since(start), tag.RowsAffected(), err)
	return tag, err
}

func (p *TracedPool) start(ctx context.Context, operation, sql string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "db."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", operation),
			attribute.String("db.sql.table", tableOf(sql)),
		),
	)
}

func (p *TracedPool) finish(span trace.Span, operation, sql string, duration time.Duration, rows int64, err error) {
	if rows >= 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", rows))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if p.logger != nil {
		p.logger.LogDatabaseOperation(operation, tableOf(sql), duration, rows)
	}
}

// tableOf extracts the first name following FROM, INTO, ON or EXISTS. It
// only labels spans and log lines.
func tableOf(sql string) string {
	fields := strings.Fields(sql)
	for i := 0; i < len(fields)-1; i++ {
		switch strings.ToUpper(fields[i]) {
		case "FROM", "INTO", "ON":
			return strings.TrimRight(fields[i+1], "(;,")
		case "EXISTS":
			if !strings.HasPrefix(fields[i+1], "(") {
				return strings.TrimRight(fields[i+1], "(;,")
			}
		}
	}
	return "unknown"
}
