package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/segyhp/koperasi-loan-engine/internal/domain"
)

const paymentColumns = `id, loan_id, installment_number, payment_date, amount_paid, penalty, note,
	created_at, updated_at, deleted_at`

type paymentRepository struct {
	db sqlx.ExtContext
}

func (r *paymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	now := time.Now().UTC()
	payment.CreatedAt = now
	payment.UpdatedAt = now

	query := `
		INSERT INTO installment_payments (` + paymentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.db.Rebind(query),
		payment.ID,
		payment.LoanID,
		payment.InstallmentNumber,
		payment.PaymentDate,
		payment.AmountPaid,
		payment.Penalty,
		payment.Note,
		payment.CreatedAt,
		payment.UpdatedAt,
		payment.DeletedAt,
	)

	return err
}

func (r *paymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM installment_payments WHERE id = ?`

	var payment domain.Payment
	if err := sqlx.GetContext(ctx, r.db, &payment, r.db.Rebind(query), id); err != nil {
		return nil, err
	}

	return &payment, nil
}

func (r *paymentRepository) GetByLoanID(ctx context.Context, loanID uuid.UUID) ([]*domain.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM installment_payments
		WHERE loan_id = ?
		ORDER BY installment_number
	`

	payments := []*domain.Payment{}
	if err := sqlx.SelectContext(ctx, r.db, &payments, r.db.Rebind(query), loanID); err != nil {
		return nil, err
	}

	return payments, nil
}

func (r *paymentRepository) Update(ctx context.Context, payment *domain.Payment) error {
	payment.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE installment_payments
		SET payment_date = ?, amount_paid = ?, penalty = ?, note = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	_, err := r.db.ExecContext(ctx, r.db.Rebind(query),
		payment.PaymentDate,
		payment.AmountPaid,
		payment.Penalty,
		payment.Note,
		payment.UpdatedAt,
		payment.ID,
	)

	return err
}

func (r *paymentRepository) MarkDeleted(ctx context.Context, payment *domain.Payment) error {
	if payment.DeletedAt == nil {
		now := time.Now().UTC()
		payment.DeletedAt = &now
	}

	query := `UPDATE installment_payments SET deleted_at = ?, updated_at = ? WHERE id = ?`

	_, err := r.db.ExecContext(ctx, r.db.Rebind(query), payment.DeletedAt, *payment.DeletedAt, payment.ID)
	return err
}
