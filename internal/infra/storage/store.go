package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// querier is the subset of sqlx shared by *sqlx.DB and *sqlx.Tx, so the
// same query methods serve both direct reads and engine step transactions.
type querier interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	Rebind(query string) string
}

var (
	_ querier = (*sqlx.DB)(nil)
	_ querier = (*sqlx.Tx)(nil)
)

// Store owns the database handle. Engine steps run inside Step; read-only
// callers (HTTP API, agents, hub snapshots) use Queries directly.
type Store struct {
	db *sqlx.DB
}

// New wraps an opened database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Queries returns a query set bound to the plain connection.
func (s *Store) Queries() *Queries {
	return &Queries{q: s.db}
}

// Step runs fn inside one transaction: the atomic unit of one engine step.
// Any error (or panic) rolls the whole step back, so a step is never
// observed half-applied.
func (s *Store) Step(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin step: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&Queries{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("step failed: %w (rollback: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit step: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Queries is the full query set of the arena. It is backend-agnostic:
// statements are written with ? placeholders and rebound per dialect.
type Queries struct {
	q querier
}
