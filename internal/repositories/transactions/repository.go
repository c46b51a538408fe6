// Package transactions journals store transactions that were already credited.
package transactions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/ruya/internal/dbx"
	"github.com/dmitrijs2005/ruya/internal/models"
)

type Repository interface {
	// MarkProcessed records tx and reports false when it was already recorded.
	MarkProcessed(ctx context.Context, tx models.Transaction, credits int) (bool, error)
	IsProcessed(ctx context.Context, transactionID string) (bool, error)
	// Unmark drops the record of transactionID so it is applied again.
	Unmark(ctx context.Context, transactionID string) error
}

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) MarkProcessed(ctx context.Context, tx models.Transaction, credits int) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO processed_transactions (transaction_id, product_id, credits, processed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(transaction_id) DO NOTHING`,
		tx.ID, tx.ProductID, credits, time.Now().UnixMilli())
	if err != nil {
		return false, fmt.Errorf("failed to journal transaction[%s]: %w", tx.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to journal transaction[%s]: %w", tx.ID, err)
	}
	return n == 1, nil
}

func (r *SQLiteRepository) IsProcessed(ctx context.Context, transactionID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM processed_transactions WHERE transaction_id = ?`, transactionID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up transaction[%s]: %w", transactionID, err)
	}
	return true, nil
}

func (r *SQLiteRepository) Unmark(ctx context.Context, transactionID string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM processed_transactions WHERE transaction_id = ?`, transactionID); err != nil {
		return fmt.Errorf("failed to unmark transaction[%s]: %w", transactionID, err)
	}
	return nil
}
