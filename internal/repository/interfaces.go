package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/segyhp/koperasi-loan-engine/internal/domain"
)

// LoanRepository defines the interface for loan data operations
type LoanRepository interface {
	// Create creates a new loan, assigning an id when it has none
	Create(ctx context.Context, loan *domain.Loan) error

	// GetByID retrieves a loan by its id. Returns sql.ErrNoRows when absent.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error)

	// List retrieves loans ordered by start date, newest first
	List(ctx context.Context, filter domain.LoanFilter) ([]*domain.Loan, error)

	// Update writes the loan's terms, derived amounts and status
	Update(ctx context.Context, loan *domain.Loan) error

	// UpdateStatus writes through a freshly derived status
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.LoanStatus) error

	// Delete removes a loan row
	Delete(ctx context.Context, id uuid.UUID) error

	// LastLoanNumber returns the highest loan number starting with prefix, or ""
	LastLoanNumber(ctx context.Context, prefix string) (string, error)
}

// PaymentRepository defines the interface for installment payment data operations
type PaymentRepository interface {
	// Create appends a payment, assigning an id when it has none
	Create(ctx context.Context, payment *domain.Payment) error

	// GetByID retrieves a payment, deleted or not. Returns sql.ErrNoRows when absent.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)

	// GetByLoanID retrieves the whole ledger of a loan, deleted payments included,
	// ordered by installment number
	GetByLoanID(ctx context.Context, loanID uuid.UUID) ([]*domain.Payment, error)

	// Update writes the editable fields of a payment
	Update(ctx context.Context, payment *domain.Payment) error

	// MarkDeleted soft-deletes a payment
	MarkDeleted(ctx context.Context, payment *domain.Payment) error
}

// TransactionRepository defines the interface for finance ledger (keuangan) entries
type TransactionRepository interface {
	// Create records a finance transaction, assigning an id when it has none
	Create(ctx context.Context, transaction *domain.Transaction) error

	// GetBySource lists the transactions emitted by one loan or payment
	GetBySource(ctx context.Context, sourceType string, sourceID uuid.UUID) ([]*domain.Transaction, error)

	// DeleteBySource removes the transactions emitted by one loan or payment
	DeleteBySource(ctx context.Context, sourceType string, sourceID uuid.UUID) error
}

// Store groups the repositories and runs units of work atomically
type Store interface {
	Loans() LoanRepository
	Payments() PaymentRepository
	Transactions() TransactionRepository

	// WithinTx runs fn against repositories bound to one database transaction,
	// committing when fn returns nil and rolling back otherwise
	WithinTx(ctx context.Context, fn func(Store) error) error
}
