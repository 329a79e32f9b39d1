package sqlc

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/beanbocchi/parcel/internal/db"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row

	BeginTx(context.Context, *sql.TxOptions) (*sql.Tx, error)
}

func NewStorage(dbtx DBTX) *Storage {
	return &Storage{
		dbtx:    dbtx,
		Queries: db.New(dbtx),
	}
}

type Storage struct {
	dbtx DBTX
	*db.Queries
}

func (s *Storage) BeginTx(ctx context.Context) (*TxStorage, error) {
	tx, err := s.dbtx.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	return &TxStorage{tx: tx, Queries: s.Queries.WithTx(tx)}, nil
}

// WithTx runs fn inside a transaction, committing when fn returns nil.
func (s *Storage) WithTx(ctx context.Context, fn func(q *db.Queries) error) error {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx.Queries); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type TxStorage struct {
	tx *sql.Tx
	*db.Queries
}

func (s *TxStorage) Commit() error {
	return s.tx.Commit()
}

func (s *TxStorage) Rollback() {
	if err := s.tx.Rollback(); !errors.Is(err, sql.ErrTxDone) && err != nil {
		slog.Error("failed to rollback transaction", "error", err)
	}
}
