package database

import (
	"context"
	"fmt"

	"github.com/irfndi/prism-dashboard-go/internal/models"
)

const createUsersTable = `
	CREATE TABLE IF NOT EXISTS users (
		id            UUID PRIMARY KEY,
		username      VARCHAR(25) NOT NULL UNIQUE,
		email         VARCHAR(80) NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`

// MigrationStatements returns the schema statements in execution order: the
// users table, then one readings table, timestamp index and power index per
// category.
func MigrationStatements() []string {
	stmts := []string{createUsersTable}
	for _, c := range models.Categories() {
		table := c.Table()
		stmts = append(stmts,
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id        BIGSERIAL PRIMARY KEY,
		timestamp TIMESTAMPTZ NOT NULL,
		power     DOUBLE PRECISION NOT NULL,
		category  TEXT NOT NULL
	)`, table),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_timestamp ON %s (timestamp)", c, table),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_power_%s ON %s (power)", c, table),
		)
	}
	return stmts
}

// Migrate creates the schema. Every statement is idempotent.
func Migrate(ctx context.Context, pool DatabasePool) error {
	for _, stmt := range MigrationStatements() {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
