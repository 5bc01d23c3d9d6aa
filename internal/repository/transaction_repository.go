package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/segyhp/koperasi-loan-engine/internal/domain"
)

type transactionRepository struct {
	db sqlx.ExtContext
}

func (r *transactionRepository) Create(ctx context.Context, transaction *domain.Transaction) error {
	if transaction.ID == uuid.Nil {
		transaction.ID = uuid.New()
	}
	transaction.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO finance_transactions (id, date, type, category, description, amount, source_type, source_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.db.Rebind(query),
		transaction.ID,
		transaction.Date,
		transaction.Type,
		transaction.Category,
		transaction.Description,
		transaction.Amount,
		transaction.SourceType,
		transaction.SourceID,
		transaction.CreatedAt,
	)

	return err
}

func (r *transactionRepository) GetBySource(ctx context.Context, sourceType string, sourceID uuid.UUID) ([]*domain.Transaction, error) {
	query := `
		SELECT id, date, type, category, description, amount, source_type, source_id, created_at
		FROM finance_transactions
		WHERE source_type = ? AND source_id = ?
		ORDER BY category
	`

	transactions := []*domain.Transaction{}
	if err := sqlx.SelectContext(ctx, r.db, &transactions, r.db.Rebind(query), sourceType, sourceID); err != nil {
		return nil, err
	}

	return transactions, nil
}

func (r *transactionRepository) DeleteBySource(ctx context.Context, sourceType string, sourceID uuid.UUID) error {
	query := `DELETE FROM finance_transactions WHERE source_type = ? AND source_id = ?`

	_, err := r.db.ExecContext(ctx, r.db.Rebind(query), sourceType, sourceID)
	return err
}
