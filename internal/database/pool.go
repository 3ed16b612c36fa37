package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DatabasePool is the query surface the repositories run on. Production
// code passes a *pgxpool.Pool, usually behind a TracedPool; tests pass a
// pgxmock pool.
type DatabasePool interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

var (
	_ DatabasePool = (*pgxpool.Pool)(nil)
	_ DatabasePool = (*TracedPool)(nil)
)
