package postgres

import (
	"context"
	"fmt"

	"brightwords/internal/progress"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store implements progress.Store on PostgreSQL. Entity accessors live in
// profile_store.go, session_store.go, and weekly_store.go.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a store over an open pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// CommitSession runs fn inside one transaction so the session record, the
// weekly rollup, and the profile counters land all-or-nothing. The rollup
// and profile rows are read FOR UPDATE inside fn, serializing concurrent
// session ends for the same learner.
func (s *Store) CommitSession(ctx context.Context, fn func(tx progress.CommitTx) error) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		return fn(&commitTx{tx: tx})
	})
}

// withTx executes fn inside a read-committed transaction, committing on nil
// and rolling back otherwise. Retryable failures come back marked transient.
func (s *Store) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return markTransient(fmt.Errorf("begin tx: %w", err))
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && rbErr != pgx.ErrTxClosed {
			return fmt.Errorf("tx error: %v, rollback error: %w", err, rbErr)
		}
		return markTransient(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return markTransient(fmt.Errorf("commit: %w", err))
	}
	return nil
}

// commitTx adapts a pgx.Tx to the progress.CommitTx operations.
type commitTx struct {
	tx pgx.Tx
}
