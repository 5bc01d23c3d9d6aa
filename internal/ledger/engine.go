package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/koperasi-loan-engine/internal/domain"
	customError "github.com/segyhp/koperasi-loan-engine/pkg/errors"
	"github.com/segyhp/koperasi-loan-engine/pkg/utils"
)

// Engine validates and applies ledger mutations. It never touches storage: every method
// takes a ledger snapshot and returns a new one, leaving the input untouched.
// Callers serialize mutations per loan.
type Engine struct {
	tolerance decimal.Decimal
}

// NewEngine returns an engine that lets cumulative payments exceed the total payable by at
// most tolerance
func NewEngine(tolerance decimal.Decimal) *Engine {
	if tolerance.IsNegative() {
		tolerance = decimal.Zero
	}
	return &Engine{tolerance: tolerance}
}

// RecordPayment validates payment against the loan and appends it with the next
// installment number
func (e *Engine) RecordPayment(loan *domain.Loan, ledger Ledger, payment domain.Payment) (Ledger, *domain.Payment, error) {
	if err := validateAmounts(payment.AmountPaid, payment.Penalty); err != nil {
		return nil, nil, err
	}
	if err := e.checkOverpayment(loan, ledger.TotalPaid(), payment.AmountPaid); err != nil {
		return nil, nil, err
	}

	recorded := payment
	recorded.LoanID = loan.ID
	recorded.InstallmentNumber = ledger.NextInstallmentNumber(loan.ID)
	recorded.PaymentDate = utils.DateOnly(payment.PaymentDate)
	recorded.DeletedAt = nil

	updated := make(Ledger, len(ledger), len(ledger)+1)
	copy(updated, ledger)
	updated = append(updated, &recorded)

	return updated, &recorded, nil
}

// UpdatePayment replaces the editable fields of one payment. The overpayment check runs
// against the ledger with the old amount taken out.
func (e *Engine) UpdatePayment(loan *domain.Loan, ledger Ledger, paymentID uuid.UUID, changes domain.PaymentChanges) (Ledger, *domain.Payment, error) {
	existing, ok := ledger.Find(paymentID)
	if !ok {
		return nil, nil, customError.WrapPaymentNotFound(paymentID.String())
	}
	if err := validateAmounts(changes.AmountPaid, changes.Penalty); err != nil {
		return nil, nil, err
	}

	paidByOthers := ledger.TotalPaid().Sub(existing.AmountPaid)
	if err := e.checkOverpayment(loan, paidByOthers, changes.AmountPaid); err != nil {
		return nil, nil, err
	}

	edited := *existing
	edited.PaymentDate = utils.DateOnly(changes.PaymentDate)
	edited.AmountPaid = changes.AmountPaid
	edited.Penalty = changes.Penalty
	edited.Note = changes.Note

	return replace(ledger, &edited), &edited, nil
}

// DeletePayment marks a payment deleted so it no longer counts towards the balance
func (e *Engine) DeletePayment(ledger Ledger, paymentID uuid.UUID, at time.Time) (Ledger, *domain.Payment, error) {
	existing, ok := ledger.Find(paymentID)
	if !ok {
		return nil, nil, customError.WrapPaymentNotFound(paymentID.String())
	}

	deleted := *existing
	deletedAt := at
	deleted.DeletedAt = &deletedAt

	return replace(ledger, &deleted), &deleted, nil
}

// CheckLoanDeletable refuses deletion once any payment was ever recorded
func (e *Engine) CheckLoanDeletable(loan *domain.Loan, ledger Ledger) error {
	if len(ledger) > 0 {
		return customError.WrapLoanHasPayments(loan.ID.String(), len(ledger))
	}
	return nil
}

// CheckTermsEditable refuses rate or term changes once any payment was ever recorded
func (e *Engine) CheckTermsEditable(loan *domain.Loan, ledger Ledger) error {
	if len(ledger) > 0 {
		return customError.WrapTermsLocked(loan.ID.String())
	}
	return nil
}

func (e *Engine) checkOverpayment(loan *domain.Loan, alreadyPaid, amount decimal.Decimal) error {
	limit := loan.TotalPayable.Add(e.tolerance)
	if alreadyPaid.Add(amount).GreaterThan(limit) {
		remaining := decimal.Max(loan.TotalPayable.Sub(alreadyPaid), decimal.Zero)
		return customError.WrapOverpayment(amount.String(), remaining.String())
	}
	return nil
}

func validateAmounts(amount, penalty decimal.Decimal) error {
	if !amount.IsPositive() {
		return customError.WrapInvalidAmount("amount paid", amount.String())
	}
	if !utils.FitsScale(amount, utils.MoneyScale) {
		return customError.WrapAmountPrecision("amount paid", amount.String(), utils.MoneyScale)
	}
	if penalty.IsNegative() {
		return customError.WrapNegativeAmount("penalty", penalty.String())
	}
	if !utils.FitsScale(penalty, utils.MoneyScale) {
		return customError.WrapAmountPrecision("penalty", penalty.String(), utils.MoneyScale)
	}
	return nil
}

func replace(ledger Ledger, payment *domain.Payment) Ledger {
	updated := make(Ledger, len(ledger))
	for i, p := range ledger {
		if p.ID == payment.ID {
			updated[i] = payment
			continue
		}
		updated[i] = p
	}
	return updated
}
