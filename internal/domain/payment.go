package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment is one installment (cicilan) recorded against a loan.
// Deleted payments stay in the ledger with DeletedAt set so their
// installment numbers are never handed out again.
type Payment struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	LoanID            uuid.UUID       `json:"loan_id" db:"loan_id"`
	InstallmentNumber int             `json:"installment_number" db:"installment_number"`
	PaymentDate       time.Time       `json:"payment_date" db:"payment_date"`
	AmountPaid        decimal.Decimal `json:"amount_paid" db:"amount_paid"`
	Penalty           decimal.Decimal `json:"penalty" db:"penalty"`
	Note              string          `json:"note" db:"note"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
	DeletedAt         *time.Time      `json:"-" db:"deleted_at"`
}

// IsDeleted reports whether the payment has been removed from the balance
func (p *Payment) IsDeleted() bool {
	return p.DeletedAt != nil
}

// PaymentChanges carries the editable fields of a recorded payment
type PaymentChanges struct {
	PaymentDate time.Time
	AmountPaid  decimal.Decimal
	Penalty     decimal.Decimal
	Note        string
}

type RecordPaymentRequest struct {
	LoanID      uuid.UUID       `json:"loan_id" validate:"required"`
	PaymentDate Date            `json:"payment_date" validate:"required"`
	AmountPaid  decimal.Decimal `json:"amount_paid"`
	Penalty     decimal.Decimal `json:"penalty"`
	Note        string          `json:"note" validate:"max=255"`
}

type UpdatePaymentRequest struct {
	PaymentDate Date            `json:"payment_date" validate:"required"`
	AmountPaid  decimal.Decimal `json:"amount_paid"`
	Penalty     decimal.Decimal `json:"penalty"`
	Note        string          `json:"note" validate:"max=255"`
}

// Changes converts the request into engine input
func (r UpdatePaymentRequest) Changes() PaymentChanges {
	return PaymentChanges{
		PaymentDate: r.PaymentDate.Time,
		AmountPaid:  r.AmountPaid,
		Penalty:     r.Penalty,
		Note:        r.Note,
	}
}

type NextInstallmentResponse struct {
	LoanID            uuid.UUID `json:"loan_id"`
	InstallmentNumber int       `json:"installment_number"`
}

// PaymentResponse returns a recorded payment with the loan's position after it
type PaymentResponse struct {
	Payment *Payment     `json:"payment"`
	Summary *LoanSummary `json:"summary"`
}
