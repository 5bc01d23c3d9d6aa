package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/segyhp/koperasi-loan-engine/internal/domain"
)

const loanColumns = `id, loan_number, member_id, principal, interest_rate, term_months, start_date,
	total_payable, monthly_installment, status, status_override, created_at, updated_at`

type loanRepository struct {
	db sqlx.ExtContext
}

func (r *loanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	if loan.ID == uuid.Nil {
		loan.ID = uuid.New()
	}
	now := time.Now().UTC()
	if loan.CreatedAt.IsZero() {
		loan.CreatedAt = now
	}
	loan.UpdatedAt = now

	query := `
		INSERT INTO loans (` + loanColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.db.Rebind(query),
		loan.ID,
		loan.LoanNumber,
		loan.MemberID,
		loan.Principal,
		loan.InterestRate,
		loan.TermMonths,
		loan.StartDate,
		loan.TotalPayable,
		loan.MonthlyInstallment,
		loan.Status,
		loan.StatusOverride,
		loan.CreatedAt,
		loan.UpdatedAt,
	)

	return err
}

func (r *loanRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = ?`

	var loan domain.Loan
	if err := sqlx.GetContext(ctx, r.db, &loan, r.db.Rebind(query), id); err != nil {
		return nil, err
	}

	return &loan, nil
}

// List filters by member in SQL. The status filter is applied by the caller against the
// derived status, since the stored column is only a write-through copy.
func (r *loanRepository) List(ctx context.Context, filter domain.LoanFilter) ([]*domain.Loan, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.MemberID != 0 {
		conditions = append(conditions, "member_id = ?")
		args = append(args, filter.MemberID)
	}

	query := `SELECT ` + loanColumns + ` FROM loans`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY start_date DESC, loan_number DESC"

	loans := []*domain.Loan{}
	if err := sqlx.SelectContext(ctx, r.db, &loans, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}

	return loans, nil
}

func (r *loanRepository) Update(ctx context.Context, loan *domain.Loan) error {
	loan.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE loans
		SET principal = ?, interest_rate = ?, term_months = ?, start_date = ?, total_payable = ?,
			monthly_installment = ?, status = ?, status_override = ?, updated_at = ?
		WHERE id = ?
	`

	_, err := r.db.ExecContext(ctx, r.db.Rebind(query),
		loan.Principal,
		loan.InterestRate,
		loan.TermMonths,
		loan.StartDate,
		loan.TotalPayable,
		loan.MonthlyInstallment,
		loan.Status,
		loan.StatusOverride,
		loan.UpdatedAt,
		loan.ID,
	)

	return err
}

func (r *loanRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.LoanStatus) error {
	query := `UPDATE loans SET status = ?, updated_at = ? WHERE id = ?`

	_, err := r.db.ExecContext(ctx, r.db.Rebind(query), status, time.Now().UTC(), id)
	return err
}

func (r *loanRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM loans WHERE id = ?`), id)
	return err
}

func (r *loanRepository) LastLoanNumber(ctx context.Context, prefix string) (string, error) {
	query := `SELECT loan_number FROM loans WHERE loan_number LIKE ? ORDER BY loan_number DESC LIMIT 1`

	var numbers []string
	if err := sqlx.SelectContext(ctx, r.db, &numbers, r.db.Rebind(query), prefix+"%"); err != nil {
		return "", err
	}
	if len(numbers) == 0 {
		return "", nil
	}

	return numbers[0], nil
}
