package database

import (
	"context"
	"fmt"
	"time"

	"github.com/irfndi/prism-dashboard-go/internal/models"
	"github.com/jackc/pgx/v5"
)

// ReadingRepository stores power readings, one table per category.
type ReadingRepository struct {
	pool DatabasePool
}

func NewReadingRepository(pool DatabasePool) *ReadingRepository {
	return &ReadingRepository{pool: pool}
}

// Insert stores reading in its category table and sets reading.ID.
func (r *ReadingRepository) Insert(ctx context.Context, reading *models.PowerReading) error {
	if !reading.Category.Valid() {
		return &models.ErrUnknownCategory{Name: reading.Category.String()}
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (timestamp, power, category)
		VALUES ($1, $2, $3)
		RETURNING id`, reading.Category.Table())

	err := r.pool.QueryRow(ctx, query, reading.Timestamp, reading.Power, reading.Category.String()).Scan(&reading.ID)
	if err != nil {
		return fmt.Errorf("failed to insert reading into %s: %w", reading.Category.Table(), err)
	}
	return nil
}

// ListByCategory returns every reading of category ordered by timestamp.
func (r *ReadingRepository) ListByCategory(ctx context.Context, category models.Category) ([]models.PowerReading, error) {
	return r.listRange(ctx, category, time.Time{}, time.Time{})
}

// ListRange returns the readings of category with from <= timestamp < to.
// A zero bound leaves that side open.
func (r *ReadingRepository) ListRange(ctx context.Context, category models.Category, from, to time.Time) ([]models.PowerReading, error) {
	return r.listRange(ctx, category, from, to)
}

func (r *ReadingRepository) listRange(ctx context.Context, category models.Category, from, to time.Time) ([]models.PowerReading, error) {
	if !category.Valid() {
		return nil, &models.ErrUnknownCategory{Name: category.String()}
	}

	query := fmt.Sprintf(`
		SELECT id, timestamp, power, category
		FROM %s
		WHERE ($1::timestamptz IS NULL OR timestamp >= $1)
		  AND ($2::timestamptz IS NULL OR timestamp < $2)
		ORDER BY timestamp ASC, id ASC`, category.Table())

	rows, err := r.pool.Query(ctx, query, nullableTime(from), nullableTime(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", category.Table(), err)
	}
	defer rows.Close()

	readings, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.PowerReading, error) {
		var (
			reading models.PowerReading
			cat     string
		)
		if err := row.Scan(&reading.ID, &reading.Timestamp, &reading.Power, &cat); err != nil {
			return reading, err
		}
		reading.Category = models.Category(cat)
		return reading, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", category.Table(), err)
	}
	return readings, nil
}

// Count returns the number of stored readings of category.
func (r *ReadingRepository) Count(ctx context.Context, category models.Category) (int64, error) {
	if !category.Valid() {
		return 0, &models.ErrUnknownCategory{Name: category.String()}
	}

	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", category.Table())
	if err := r.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", category.Table(), err)
	}
	return count, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
