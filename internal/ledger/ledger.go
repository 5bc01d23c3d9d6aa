package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/koperasi-loan-engine/internal/domain"
	customError "github.com/segyhp/koperasi-loan-engine/pkg/errors"
	"github.com/segyhp/koperasi-loan-engine/pkg/utils"
)

// Schedule is the repayment plan implied by a loan's terms
type Schedule struct {
	TotalPayable       decimal.Decimal
	MonthlyInstallment decimal.Decimal
}

// ComputeSchedule derives the total payable and the monthly installment from loan terms
func ComputeSchedule(principal, interestRate decimal.Decimal, termMonths int) (Schedule, error) {
	if termMonths <= 0 {
		return Schedule{}, customError.WrapInvalidTerm(termMonths)
	}
	if !principal.IsPositive() {
		return Schedule{}, customError.WrapInvalidAmount("principal", principal.String())
	}
	if !utils.FitsScale(principal, utils.MoneyScale) {
		return Schedule{}, customError.WrapAmountPrecision("principal", principal.String(), utils.MoneyScale)
	}
	if interestRate.IsNegative() {
		return Schedule{}, customError.WrapNegativeAmount("interest rate", interestRate.String())
	}
	if !utils.FitsScale(interestRate, utils.RateScale) {
		return Schedule{}, customError.WrapAmountPrecision("interest rate", interestRate.String(), utils.RateScale)
	}

	total := utils.CalculateTotalPayable(principal, interestRate)
	return Schedule{
		TotalPayable:       total,
		MonthlyInstallment: utils.CalculateMonthlyInstallment(total, termMonths),
	}, nil
}

// ComputeDueDate returns the date the last installment of a term falls due
func ComputeDueDate(startDate time.Time, termMonths int) time.Time {
	return utils.CalculateDueDate(startDate, termMonths)
}

// BuildSchedule lays out one row per month. Every row is due the monthly installment except
// the last, which is due whatever remains of the total payable.
func BuildSchedule(loan *domain.Loan) []*domain.ScheduleEntry {
	entries := make([]*domain.ScheduleEntry, 0, loan.TermMonths)
	scheduled := decimal.Zero

	for n := 1; n <= loan.TermMonths; n++ {
		due := loan.MonthlyInstallment
		if n == loan.TermMonths {
			due = decimal.Max(loan.TotalPayable.Sub(scheduled), decimal.Zero)
		} else if scheduled.Add(due).GreaterThan(loan.TotalPayable) {
			due = decimal.Max(loan.TotalPayable.Sub(scheduled), decimal.Zero)
		}

		entries = append(entries, &domain.ScheduleEntry{
			InstallmentNumber: n,
			DueDate:           utils.CalculateDueDate(loan.StartDate, n),
			DueAmount:         due,
		})
		scheduled = scheduled.Add(due)
	}

	return entries
}

// Ledger is the ordered payment history of one loan, most recent last. It includes
// deleted payments; every balance computation skips them.
type Ledger []*domain.Payment

// Active returns the payments that still count towards the balance
func (l Ledger) Active() Ledger {
	active := make(Ledger, 0, len(l))
	for _, p := range l {
		if !p.IsDeleted() {
			active = append(active, p)
		}
	}
	return active
}

// TotalPaid sums amountPaid over active payments
func (l Ledger) TotalPaid() decimal.Decimal {
	total := decimal.Zero
	for _, p := range l.Active() {
		total = total.Add(p.AmountPaid)
	}
	return total
}

// TotalPenalty sums penalties over active payments
func (l Ledger) TotalPenalty() decimal.Decimal {
	total := decimal.Zero
	for _, p := range l.Active() {
		total = total.Add(p.Penalty)
	}
	return total
}

// Find returns the active payment with the given id
func (l Ledger) Find(paymentID uuid.UUID) (*domain.Payment, bool) {
	for _, p := range l {
		if p.ID == paymentID && !p.IsDeleted() {
			return p, true
		}
	}
	return nil, false
}

// NextInstallmentNumber is one past the highest number ever issued for the loan.
// Deleted payments still hold their number, so numbers are never reused.
func (l Ledger) NextInstallmentNumber(loanID uuid.UUID) int {
	highest := 0
	for _, p := range l {
		if p.LoanID == loanID && p.InstallmentNumber > highest {
			highest = p.InstallmentNumber
		}
	}
	return highest + 1
}

// RemainingBalance recomputes the outstanding amount from the ledger
func RemainingBalance(loan *domain.Loan, ledger Ledger) decimal.Decimal {
	return loan.TotalPayable.Sub(ledger.TotalPaid())
}

// ExpectedInstallments is the number of installments that should have been paid by asOf
func ExpectedInstallments(loan *domain.Loan, asOf time.Time) int {
	expected := utils.MonthsElapsed(loan.StartDate, asOf)
	if expected > loan.TermMonths {
		return loan.TermMonths
	}
	return expected
}

// DeriveStatus computes running, settled or delinquent from the ledger alone
func DeriveStatus(loan *domain.Loan, ledger Ledger, asOf time.Time) domain.LoanStatus {
	if !RemainingBalance(loan, ledger).IsPositive() {
		return domain.LoanStatusSettled
	}
	if len(ledger.Active()) < ExpectedInstallments(loan, asOf) {
		return domain.LoanStatusDelinquent
	}
	return domain.LoanStatusRunning
}

// EffectiveStatus honours an administrative override before derivation
func EffectiveStatus(loan *domain.Loan, ledger Ledger, asOf time.Time) domain.LoanStatus {
	if loan.StatusOverride != nil {
		return *loan.StatusOverride
	}
	return DeriveStatus(loan, ledger, asOf)
}

// Summarize gathers every derived quantity of a loan as of a date
func Summarize(loan *domain.Loan, ledger Ledger, asOf time.Time) *domain.LoanSummary {
	return &domain.LoanSummary{
		TotalPayable:          loan.TotalPayable,
		MonthlyInstallment:    loan.MonthlyInstallment,
		TotalPaid:             ledger.TotalPaid(),
		TotalPenalty:          ledger.TotalPenalty(),
		RemainingBalance:      RemainingBalance(loan, ledger),
		PaymentsCount:         len(ledger.Active()),
		ExpectedInstallments:  ExpectedInstallments(loan, asOf),
		NextInstallmentNumber: ledger.NextInstallmentNumber(loan.ID),
		DueDate:               ComputeDueDate(loan.StartDate, loan.TermMonths),
		DerivedStatus:         DeriveStatus(loan, ledger, asOf),
		Status:                EffectiveStatus(loan, ledger, asOf),
	}
}
