package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	apperrors "courtbook/pkg/errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// SQLSTATE codes the booking store reacts to.
const (
	CodeExclusionViolation   = "23P01"
	CodeUniqueViolation      = "23505"
	CodeSerializationFailure = "40001"
	CodeDeadlockDetected     = "40P01"
)

type TransactionFunc func(ctx context.Context, tx *sqlx.Tx) error

type TransactionManager interface {
	ExecuteTransaction(ctx context.Context, fn TransactionFunc) error
}

type sqlTransactionManager struct {
	db   *sqlx.DB
	opts *sql.TxOptions
}

func NewTransactionManager(db *sqlx.DB, opts *sql.TxOptions) TransactionManager {
	return &sqlTransactionManager{
		db:   db,
		opts: opts,
	}
}

// ExecuteTransaction commits when fn returns nil and rolls back otherwise.
// AppErrors returned by fn pass through untouched.
func (m *sqlTransactionManager) ExecuteTransaction(ctx context.Context, fn TransactionFunc) error {
	tx, err := m.db.BeginTxx(ctx, m.opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(ctx, tx); err != nil {
		if apperrors.IsAppError(err) {
			return err
		}
		return fmt.Errorf("transaction failed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// HasCode reports whether err is a Postgres error with one of the given SQLSTATE codes.
func HasCode(err error, codes ...string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	for _, code := range codes {
		if string(pqErr.Code) == code {
			return true
		}
	}
	return false
}
