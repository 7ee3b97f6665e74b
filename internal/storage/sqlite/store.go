package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"brightwords/internal/progress"
	"brightwords/internal/retry"

	"github.com/mattn/go-sqlite3"
)

// Store implements progress.Store on SQLite. Entity accessors live in
// profile_store.go, session_store.go, and weekly_store.go.
type Store struct {
	db *DB
}

// NewStore creates a store over an open database.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// CommitSession runs fn inside one immediate transaction so the session
// record, the weekly rollup, and the profile counters land all-or-nothing.
func (s *Store) CommitSession(ctx context.Context, fn func(tx progress.CommitTx) error) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return fn(&commitTx{tx: tx})
	})
}

// withTx executes fn inside a transaction, translating lock contention into
// a transient error so the retry layer replays the whole operation.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return markBusy(fmt.Errorf("begin tx: %w", err))
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx error: %v, rollback error: %w", err, rbErr)
		}
		return markBusy(err)
	}

	if err := tx.Commit(); err != nil {
		return markBusy(fmt.Errorf("commit: %w", err))
	}
	return nil
}

// commitTx adapts a sql.Tx to the progress.CommitTx operations.
type commitTx struct {
	tx *sql.Tx
}

// dbtx is satisfied by both *sql.DB and *sql.Tx so entity reads and writes
// can run standalone or inside a commit transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// markBusy wraps SQLite lock-contention errors as transient.
func markBusy(err error) error {
	if err == nil {
		return nil
	}
	var se sqlite3.Error
	if errors.As(err, &se) && (se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked) {
		return retry.MarkTransient(err)
	}
	return err
}
