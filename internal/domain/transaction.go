package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Finance ledger (keuangan) entries emitted as side effects of loan activity
const (
	TransactionTypeIncome  = "income"
	TransactionTypeExpense = "expense"

	TransactionCategoryDisbursement = "loan_disbursement"
	TransactionCategoryInstallment  = "installment"
	TransactionCategoryPenalty      = "penalty"

	TransactionSourceLoan    = "loan"
	TransactionSourcePayment = "payment"
)

type Transaction struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	Date        time.Time       `json:"date" db:"date"`
	Type        string          `json:"type" db:"type"`
	Category    string          `json:"category" db:"category"`
	Description string          `json:"description" db:"description"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	SourceType  string          `json:"source_type" db:"source_type"`
	SourceID    uuid.UUID       `json:"source_id" db:"source_id"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}
