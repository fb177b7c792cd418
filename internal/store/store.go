// Package store is the SQL persistence layer. Queries use $N placeholders in
// strictly increasing order, which both sqlite and postgres accept.
package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("not found")

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db *sql.DB
	q  querier
}

func New(db *sql.DB) *Store { return &Store{db: db, q: db} }

// InTx runs fn against a store bound to a single database transaction,
// committing when fn returns nil and rolling back otherwise.
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) error {
	if _, ok := s.q.(*sql.Tx); ok {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	bound := &Store{db: s.db, q: tx}
	if err := fn(bound); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// NewID returns a prefixed identifier, e.g. NewID("prj") -> "prj_<uuid>".
func NewID(prefix string) string { return prefix + "_" + uuid.NewString() }

// NewTxHash returns a ledger hash in the 0x form the dashboard displays.
func NewTxHash() string {
	return "0x" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func nowMillis() int64 { return time.Now().UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
