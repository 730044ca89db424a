package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresDailyIDAllocator issues per-calendar-day ticket numbers backed by
// the daily_ticket_counters table. Concurrency is handled with an
// optimistic-insert-with-pessimistic-fallback pattern: one contender wins the
// row insert, every other contender falls back to a locking increment against
// the row the winner created. The race is absorbed internally; callers never
// see it.
type PostgresDailyIDAllocator struct {
	db *sql.DB
}

func NewPostgresDailyIDAllocator(db *sql.DB) *PostgresDailyIDAllocator {
	return &PostgresDailyIDAllocator{db: db}
}

// Next returns the next daily ticket number for the calendar date of day.
func (a *PostgresDailyIDAllocator) Next(ctx context.Context, day time.Time) (int, error) {
	date := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin allocator transaction: %w", err)
	}
	defer tx.Rollback()

	// Fast path: the counter row already exists, lock and increment it.
	n, err := incrementLocked(ctx, tx, date)
	if err == nil {
		return n, tx.Commit()
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to increment daily counter: %w", err)
	}

	// First ticket of the day: try to create the row inside a savepoint so a
	// lost insert race does not abort the whole transaction.
	if _, err := tx.ExecContext(ctx, "SAVEPOINT counter_insert"); err != nil {
		return 0, fmt.Errorf("failed to create savepoint: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO daily_ticket_counters (counter_date, counter) VALUES ($1, 1)`, date)
	if err == nil {
		return 1, tx.Commit()
	}
	if !isUniqueViolation(err) {
		return 0, fmt.Errorf("failed to create daily counter row: %w", err)
	}

	// Another caller created the row concurrently. Roll back to the savepoint
	// and take the locking-increment path, which now succeeds against the row
	// the other caller created.
	if _, err := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT counter_insert"); err != nil {
		return 0, fmt.Errorf("failed to roll back to savepoint: %w", err)
	}
	n, err = incrementLocked(ctx, tx, date)
	if err != nil {
		return 0, fmt.Errorf("failed to increment daily counter after insert race: %w", err)
	}
	return n, tx.Commit()
}

func incrementLocked(ctx context.Context, tx *sql.Tx, date time.Time) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT counter FROM daily_ticket_counters WHERE counter_date = $1 FOR UPDATE`, date).Scan(&n)
	if err != nil {
		return 0, err
	}
	err = tx.QueryRowContext(ctx,
		`UPDATE daily_ticket_counters SET counter = counter + 1 WHERE counter_date = $1 RETURNING counter`,
		date).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
