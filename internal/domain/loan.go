package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type LoanStatus string

const (
	LoanStatusRunning    LoanStatus = "running"
	LoanStatusSettled    LoanStatus = "settled"
	LoanStatusDelinquent LoanStatus = "delinquent"
)

// Valid reports whether s is one of the known loan statuses
func (s LoanStatus) Valid() bool {
	switch s {
	case LoanStatusRunning, LoanStatusSettled, LoanStatusDelinquent:
		return true
	}
	return false
}

// Loan represents credit disbursed to a cooperative member.
// TotalPayable and MonthlyInstallment are fixed by the terms; Status is a
// write-through copy of the derived status and is never read back as truth.
type Loan struct {
	ID                 uuid.UUID       `json:"id" db:"id"`
	LoanNumber         string          `json:"loan_number" db:"loan_number"`
	MemberID           int64           `json:"member_id" db:"member_id"`
	Principal          decimal.Decimal `json:"principal" db:"principal"`
	InterestRate       decimal.Decimal `json:"interest_rate" db:"interest_rate"` // flat percent over the whole term
	TermMonths         int             `json:"term_months" db:"term_months"`
	StartDate          time.Time       `json:"start_date" db:"start_date"`
	TotalPayable       decimal.Decimal `json:"total_payable" db:"total_payable"`
	MonthlyInstallment decimal.Decimal `json:"monthly_installment" db:"monthly_installment"`
	Status             LoanStatus      `json:"status" db:"status"`
	StatusOverride     *LoanStatus     `json:"status_override,omitempty" db:"status_override"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at" db:"updated_at"`
}

// LoanFilter narrows loan listings. Zero values match everything.
type LoanFilter struct {
	MemberID int64
	Status   LoanStatus
}

// LoanSummary holds every quantity derived from a loan and its ledger
type LoanSummary struct {
	TotalPayable          decimal.Decimal `json:"total_payable"`
	MonthlyInstallment    decimal.Decimal `json:"monthly_installment"`
	TotalPaid             decimal.Decimal `json:"total_paid"`
	TotalPenalty          decimal.Decimal `json:"total_penalty"`
	RemainingBalance      decimal.Decimal `json:"remaining_balance"`
	PaymentsCount         int             `json:"payments_count"`
	ExpectedInstallments  int             `json:"expected_installments"`
	NextInstallmentNumber int             `json:"next_installment_number"`
	DueDate               time.Time       `json:"due_date"`
	DerivedStatus         LoanStatus      `json:"derived_status"`
	Status                LoanStatus      `json:"status"`
}

// DTOs for requests and responses

type CreateLoanRequest struct {
	MemberID     int64           `json:"member_id" validate:"required,gt=0"`
	StartDate    Date            `json:"start_date" validate:"required"`
	Principal    decimal.Decimal `json:"principal"`
	InterestRate decimal.Decimal `json:"interest_rate"`
	TermMonths   int             `json:"term_months"`
}

type UpdateLoanRequest struct {
	StartDate    Date            `json:"start_date" validate:"required"`
	InterestRate decimal.Decimal `json:"interest_rate"`
	TermMonths   int             `json:"term_months"`
}

// OverrideStatusRequest sets or, with a null status, clears an administrative override
type OverrideStatusRequest struct {
	Status *LoanStatus `json:"status"`
}

type LoanResponse struct {
	Loan    *Loan        `json:"loan"`
	Summary *LoanSummary `json:"summary"`
}

type LoanNumberResponse struct {
	LoanNumber string `json:"loan_number"`
}

type OutstandingResponse struct {
	LoanID      uuid.UUID       `json:"loan_id"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

type DelinquentResponse struct {
	LoanID               uuid.UUID `json:"loan_id"`
	IsDelinquent         bool      `json:"is_delinquent"`
	ExpectedInstallments int       `json:"expected_installments"`
	PaymentsCount        int       `json:"payments_count"`
}
