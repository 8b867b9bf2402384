package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Querier is the subset of sqlx satisfied by both *sqlx.DB and *sqlx.Tx.
// Repositories are bound to one Querier at construction, so the import
// pipeline threads a single transaction through every write while tests and
// read-only probes can bind straight to the pool.
type Querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// markBatchProgress drops a savepoint marker after a bulk chunk. Markers are
// progress visibility only, never commit boundaries, and are valid only on a
// transaction-bound Querier.
func markBatchProgress(ctx context.Context, q Querier, table string) error {
	name := "batch_" + table
	if _, err := q.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("savepoint %s: %w", name, err)
	}
	if _, err := q.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("release savepoint %s: %w", name, err)
	}
	return nil
}

// isUniqueViolation reports a postgres 23505 error.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
