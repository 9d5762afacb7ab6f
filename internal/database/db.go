package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lecternhq/lectern/internal/models"
)

// MapPostgresError translates driver-level failures into sentinel errors.
// Timeouts and cancellations become ErrStorageUnavailable so callers can tell
// infrastructure failures apart from authentication-domain errors.
func MapPostgresError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return models.ErrStorageUnavailable
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return models.ErrConflict
		case "23503": // foreign_key_violation
			return models.ErrBadRequest
		case "23502": // not_null_violation
			return models.ErrBadRequest
		}
	}

	if pgconn.Timeout(err) {
		return models.ErrStorageUnavailable
	}

	return err
}

// txFinisher is the commit/rollback surface of pgx.Tx that finishTx needs.
type txFinisher interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// WithTransaction runs fn inside a transaction, committing on success and
// rolling back on error or panic. Used for read-modify-write sequences that
// must be atomic with respect to a single credential row.
func (db *DB) WithTransaction(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return MapPostgresError(err)
	}
	return finishTx(ctx, tx, func() error { return fn(tx) })
}

// finishTx runs fn and settles the transaction. The result is named so the
// deferred commit can overwrite it: a commit failure must reach the caller,
// otherwise a state transition would be reported as done without being
// persisted.
func finishTx(ctx context.Context, tx txFinisher, fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = MapPostgresError(commitErr)
		}
	}()

	return fn()
}
