package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/koperasi-loan-engine/internal/domain"
	customError "github.com/segyhp/koperasi-loan-engine/pkg/errors"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// standardLoan is 1,000,000 at 10% over 10 months starting 2024-01-15
func standardLoan(t *testing.T) *domain.Loan {
	t.Helper()
	schedule, err := ComputeSchedule(decimal.NewFromInt(1000000), decimal.NewFromInt(10), 10)
	require.NoError(t, err)

	return &domain.Loan{
		ID:                 uuid.New(),
		MemberID:           7,
		Principal:          decimal.NewFromInt(1000000),
		InterestRate:       decimal.NewFromInt(10),
		TermMonths:         10,
		StartDate:          date(2024, 1, 15),
		TotalPayable:       schedule.TotalPayable,
		MonthlyInstallment: schedule.MonthlyInstallment,
		Status:             domain.LoanStatusRunning,
	}
}

func payment(amount int64, paidOn time.Time) domain.Payment {
	return domain.Payment{
		ID:          uuid.New(),
		PaymentDate: paidOn,
		AmountPaid:  decimal.NewFromInt(amount),
		Penalty:     decimal.Zero,
	}
}

// payMonthly records count installments of 110,000, one per month after the start date
func payMonthly(t *testing.T, engine *Engine, loan *domain.Loan, count int) Ledger {
	t.Helper()
	var l Ledger
	for i := 1; i <= count; i++ {
		var err error
		l, _, err = engine.RecordPayment(loan, l, payment(110000, ComputeDueDate(loan.StartDate, i)))
		require.NoError(t, err)
	}
	return l
}

func TestComputeSchedule(t *testing.T) {
	tests := []struct {
		name          string
		principal     decimal.Decimal
		rate          decimal.Decimal
		term          int
		expectedTotal decimal.Decimal
		expectedMonth decimal.Decimal
		expectedErr   string
	}{
		{
			name:          "standard loan",
			principal:     decimal.NewFromInt(1000000),
			rate:          decimal.NewFromInt(10),
			term:          10,
			expectedTotal: decimal.NewFromInt(1100000),
			expectedMonth: decimal.NewFromInt(110000),
		},
		{
			name:          "monthly installment rounds up",
			principal:     decimal.NewFromInt(1000000),
			rate:          decimal.Zero,
			term:          3,
			expectedTotal: decimal.NewFromInt(1000000),
			expectedMonth: decimal.NewFromInt(333334),
		},
		{
			name:        "zero term",
			principal:   decimal.NewFromInt(1000000),
			rate:        decimal.NewFromInt(10),
			term:        0,
			expectedErr: customError.ErrCodeInvalidTerm,
		},
		{
			name:        "negative term",
			principal:   decimal.NewFromInt(1000000),
			rate:        decimal.NewFromInt(10),
			term:        -2,
			expectedErr: customError.ErrCodeInvalidTerm,
		},
		{
			name:        "zero principal",
			principal:   decimal.Zero,
			rate:        decimal.NewFromInt(10),
			term:        10,
			expectedErr: customError.ErrCodeInvalidAmount,
		},
		{
			name:        "negative rate",
			principal:   decimal.NewFromInt(1000000),
			rate:        decimal.NewFromInt(-1),
			term:        10,
			expectedErr: customError.ErrCodeInvalidAmount,
		},
		{
			name:          "total rounded to cents",
			principal:     decimal.NewFromInt(1000001),
			rate:          decimal.RequireFromString("2.5"),
			term:          12,
			expectedTotal: decimal.RequireFromString("1025001.03"),
			expectedMonth: decimal.NewFromInt(85417),
		},
		{
			name:          "rate at four places",
			principal:     decimal.NewFromInt(1000000),
			rate:          decimal.RequireFromString("10.1234"),
			term:          10,
			expectedTotal: decimal.NewFromInt(1101234),
			expectedMonth: decimal.NewFromInt(110124),
		},
		{
			name:        "principal beyond cents",
			principal:   decimal.RequireFromString("1000000.005"),
			rate:        decimal.NewFromInt(10),
			term:        10,
			expectedErr: customError.ErrCodeInvalidAmount,
		},
		{
			name:        "rate beyond four places",
			principal:   decimal.NewFromInt(1000000),
			rate:        decimal.RequireFromString("10.12345"),
			term:        10,
			expectedErr: customError.ErrCodeInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schedule, err := ComputeSchedule(tt.principal, tt.rate, tt.term)
			if tt.expectedErr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.expectedErr, customError.CodeOf(err))
				return
			}

			require.NoError(t, err)
			assert.True(t, schedule.TotalPayable.Equal(tt.expectedTotal), "total %v", schedule.TotalPayable)
			assert.True(t, schedule.MonthlyInstallment.Equal(tt.expectedMonth), "monthly %v", schedule.MonthlyInstallment)
		})
	}
}

func TestComputeSchedule_CeilingProperty(t *testing.T) {
	principals := []int64{100000, 250000, 1000000, 1234567, 5000000, 9999999}
	rates := []string{"0", "1.5", "2.5", "10", "12.75", "33"}

	for _, principal := range principals {
		for _, rate := range rates {
			for term := 1; term <= 36; term++ {
				schedule, err := ComputeSchedule(decimal.NewFromInt(principal), decimal.RequireFromString(rate), term)
				require.NoError(t, err)

				months := decimal.NewFromInt(int64(term))
				assert.True(t, schedule.MonthlyInstallment.Mul(months).GreaterThanOrEqual(schedule.TotalPayable),
					"principal=%d rate=%s term=%d collects too little", principal, rate, term)
				assert.True(t, schedule.MonthlyInstallment.Mul(months.Sub(decimal.NewFromInt(1))).LessThan(schedule.TotalPayable),
					"principal=%d rate=%s term=%d collects a whole extra month", principal, rate, term)
			}
		}
	}
}

func TestComputeDueDate(t *testing.T) {
	assert.Equal(t, date(2024, 2, 29), ComputeDueDate(date(2024, 1, 31), 1))
	assert.Equal(t, date(2023, 2, 28), ComputeDueDate(date(2023, 1, 31), 1))
	assert.Equal(t, date(2024, 11, 15), ComputeDueDate(date(2024, 1, 15), 10))
}

func TestBuildSchedule(t *testing.T) {
	loan := standardLoan(t)
	entries := BuildSchedule(loan)

	require.Len(t, entries, 10)
	total := decimal.Zero
	for i, entry := range entries {
		assert.Equal(t, i+1, entry.InstallmentNumber)
		assert.Equal(t, ComputeDueDate(loan.StartDate, i+1), entry.DueDate)
		total = total.Add(entry.DueAmount)
	}
	assert.True(t, total.Equal(loan.TotalPayable))

	t.Run("last installment takes the remainder", func(t *testing.T) {
		schedule, err := ComputeSchedule(decimal.NewFromInt(1000000), decimal.Zero, 3)
		require.NoError(t, err)
		loan := &domain.Loan{
			ID:                 uuid.New(),
			TermMonths:         3,
			StartDate:          date(2024, 1, 31),
			TotalPayable:       schedule.TotalPayable,
			MonthlyInstallment: schedule.MonthlyInstallment,
		}

		entries := BuildSchedule(loan)
		require.Len(t, entries, 3)
		assert.True(t, entries[0].DueAmount.Equal(decimal.NewFromInt(333334)))
		assert.True(t, entries[1].DueAmount.Equal(decimal.NewFromInt(333334)))
		assert.True(t, entries[2].DueAmount.Equal(decimal.NewFromInt(333332)))
		assert.Equal(t, date(2024, 2, 29), entries[0].DueDate)
		assert.Equal(t, date(2024, 4, 30), entries[2].DueDate)
	})
}

func TestRecordPayment(t *testing.T) {
	engine := NewEngine(decimal.Zero)

	t.Run("assigns sequential installment numbers", func(t *testing.T) {
		loan := standardLoan(t)
		l := payMonthly(t, engine, loan, 3)

		require.Len(t, l, 3)
		for i, p := range l {
			assert.Equal(t, i+1, p.InstallmentNumber)
			assert.Equal(t, loan.ID, p.LoanID)
		}
		assert.True(t, RemainingBalance(loan, l).Equal(decimal.NewFromInt(770000)))
	})

	t.Run("does not mutate the input ledger", func(t *testing.T) {
		loan := standardLoan(t)
		before := payMonthly(t, engine, loan, 2)

		after, _, err := engine.RecordPayment(loan, before, payment(110000, date(2024, 4, 15)))
		require.NoError(t, err)

		assert.Len(t, before, 2)
		assert.Len(t, after, 3)
		assert.True(t, loan.Principal.Equal(decimal.NewFromInt(1000000)))
		assert.Equal(t, 10, loan.TermMonths)
	})

	t.Run("rejects non positive amounts", func(t *testing.T) {
		loan := standardLoan(t)
		for _, amount := range []int64{0, -5000} {
			_, _, err := engine.RecordPayment(loan, nil, payment(amount, date(2024, 2, 15)))
			require.Error(t, err)
			assert.True(t, errors.Is(err, customError.ErrInvalidAmount))
		}
	})

	t.Run("rejects negative penalty", func(t *testing.T) {
		loan := standardLoan(t)
		p := payment(110000, date(2024, 2, 15))
		p.Penalty = decimal.NewFromInt(-1)

		_, _, err := engine.RecordPayment(loan, nil, p)
		assert.Equal(t, customError.ErrCodeInvalidAmount, customError.CodeOf(err))
	})

	t.Run("amounts must fit in cents", func(t *testing.T) {
		tests := []struct {
			name    string
			amount  string
			penalty string
			wantErr bool
		}{
			{name: "whole amount", amount: "110000", penalty: "0"},
			{name: "cents", amount: "110000.50", penalty: "2500.25"},
			{name: "trailing zeros", amount: "110000.500", penalty: "0"},
			{name: "tenth of a cent", amount: "0.001", penalty: "0", wantErr: true},
			{name: "penalty beyond cents", amount: "110000", penalty: "0.005", wantErr: true},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				loan := standardLoan(t)
				p := payment(0, date(2024, 2, 15))
				p.AmountPaid = decimal.RequireFromString(tt.amount)
				p.Penalty = decimal.RequireFromString(tt.penalty)

				_, recorded, err := engine.RecordPayment(loan, nil, p)
				if tt.wantErr {
					assert.ErrorIs(t, err, customError.ErrInvalidAmount)
					assert.Nil(t, recorded)
					return
				}
				require.NoError(t, err)
				assert.True(t, recorded.AmountPaid.Equal(p.AmountPaid))
			})
		}
	})

	t.Run("penalty does not reduce the balance", func(t *testing.T) {
		loan := standardLoan(t)
		p := payment(110000, date(2024, 2, 20))
		p.Penalty = decimal.NewFromInt(15000)

		l, recorded, err := engine.RecordPayment(loan, nil, p)
		require.NoError(t, err)
		assert.True(t, recorded.Penalty.Equal(decimal.NewFromInt(15000)))
		assert.True(t, RemainingBalance(loan, l).Equal(decimal.NewFromInt(990000)))
		assert.True(t, l.TotalPenalty().Equal(decimal.NewFromInt(15000)))
	})

	t.Run("rejects overpayment", func(t *testing.T) {
		loan := standardLoan(t)
		l := payMonthly(t, engine, loan, 9)

		_, _, err := engine.RecordPayment(loan, l, payment(110001, date(2024, 11, 15)))
		require.Error(t, err)
		assert.True(t, errors.Is(err, customError.ErrOverpayment))
		assert.Contains(t, err.Error(), "110000")
	})

	t.Run("rejects any payment on a settled loan", func(t *testing.T) {
		loan := standardLoan(t)
		l := payMonthly(t, engine, loan, 10)

		_, _, err := engine.RecordPayment(loan, l, payment(1, date(2024, 12, 1)))
		assert.True(t, errors.Is(err, customError.ErrOverpayment))
	})

	t.Run("accepts overpayment within tolerance", func(t *testing.T) {
		tolerant := NewEngine(decimal.NewFromInt(500))
		loan := standardLoan(t)
		l := payMonthly(t, tolerant, loan, 9)

		l, _, err := tolerant.RecordPayment(loan, l, payment(110500, date(2024, 11, 15)))
		require.NoError(t, err)
		assert.True(t, RemainingBalance(loan, l).Equal(decimal.NewFromInt(-500)))
		assert.Equal(t, domain.LoanStatusSettled, DeriveStatus(loan, l, date(2024, 11, 15)))

		_, _, err = tolerant.RecordPayment(loan, l, payment(1, date(2024, 11, 16)))
		assert.True(t, errors.Is(err, customError.ErrOverpayment))
	})

	t.Run("accepts partial payments", func(t *testing.T) {
		loan := standardLoan(t)
		l, _, err := engine.RecordPayment(loan, nil, payment(50000, date(2024, 2, 15)))
		require.NoError(t, err)
		l, _, err = engine.RecordPayment(loan, l, payment(60000, date(2024, 2, 16)))
		require.NoError(t, err)

		assert.Equal(t, 3, l.NextInstallmentNumber(loan.ID))
		assert.True(t, RemainingBalance(loan, l).Equal(decimal.NewFromInt(990000)))
	})
}

func TestFullRepaymentAndReversal(t *testing.T) {
	engine := NewEngine(decimal.Zero)
	loan := standardLoan(t)
	l := payMonthly(t, engine, loan, 10)

	assert.True(t, RemainingBalance(loan, l).IsZero())
	assert.Equal(t, domain.LoanStatusSettled, DeriveStatus(loan, l, date(2024, 11, 15)))

	for _, victim := range l {
		reverted, removed, err := engine.DeletePayment(l, victim.ID, date(2024, 12, 1))
		require.NoError(t, err)
		require.NotNil(t, removed.DeletedAt)

		assert.True(t, RemainingBalance(loan, reverted).Equal(decimal.NewFromInt(110000)))
		// nine payments against ten due by the end of the term
		assert.Equal(t, domain.LoanStatusDelinquent, DeriveStatus(loan, reverted, date(2024, 11, 15)))
		// nine payments against nine due before the last due date
		assert.Equal(t, domain.LoanStatusRunning, DeriveStatus(loan, reverted, date(2024, 11, 14)))
	}

	assert.True(t, RemainingBalance(loan, l).IsZero(), "deletions must not touch the source ledger")
}

func TestNextInstallmentNumber(t *testing.T) {
	engine := NewEngine(decimal.Zero)
	loan := standardLoan(t)

	assert.Equal(t, 1, Ledger(nil).NextInstallmentNumber(loan.ID))

	l := payMonthly(t, engine, loan, 5)
	l, _, err := engine.DeletePayment(l, l[2].ID, date(2024, 7, 1))
	require.NoError(t, err)
	assert.Equal(t, 6, l.NextInstallmentNumber(loan.ID))

	l, _, err = engine.DeletePayment(l, l[4].ID, date(2024, 7, 1))
	require.NoError(t, err)
	assert.Equal(t, 6, l.NextInstallmentNumber(loan.ID), "deleting the latest installment must not free its number")

	l, recorded, err := engine.RecordPayment(loan, l, payment(110000, date(2024, 7, 2)))
	require.NoError(t, err)
	assert.Equal(t, 6, recorded.InstallmentNumber)
	assert.Equal(t, 7, l.NextInstallmentNumber(loan.ID))

	assert.Equal(t, 1, l.NextInstallmentNumber(uuid.New()), "payments of other loans are ignored")
}

func TestUpdatePayment(t *testing.T) {
	engine := NewEngine(decimal.Zero)

	t.Run("re-derives the balance from the ledger", func(t *testing.T) {
		loan := standardLoan(t)
		l := payMonthly(t, engine, loan, 3)

		updated, edited, err := engine.UpdatePayment(loan, l, l[1].ID, domain.PaymentChanges{
			PaymentDate: date(2024, 3, 20),
			AmountPaid:  decimal.NewFromInt(100000),
			Penalty:     decimal.NewFromInt(5000),
			Note:        "late",
		})
		require.NoError(t, err)

		assert.Equal(t, 2, edited.InstallmentNumber)
		assert.Equal(t, "late", edited.Note)
		assert.True(t, RemainingBalance(loan, updated).Equal(decimal.NewFromInt(780000)))
		assert.True(t, RemainingBalance(loan, l).Equal(decimal.NewFromInt(770000)))
	})

	t.Run("excludes the old amount from the overpayment check", func(t *testing.T) {
		loan := standardLoan(t)
		l := payMonthly(t, engine, loan, 10)

		_, _, err := engine.UpdatePayment(loan, l, l[9].ID, domain.PaymentChanges{
			PaymentDate: date(2024, 11, 15),
			AmountPaid:  decimal.NewFromInt(110000),
		})
		require.NoError(t, err)

		_, _, err = engine.UpdatePayment(loan, l, l[9].ID, domain.PaymentChanges{
			PaymentDate: date(2024, 11, 15),
			AmountPaid:  decimal.NewFromInt(110001),
		})
		assert.True(t, errors.Is(err, customError.ErrOverpayment))
	})

	t.Run("unknown payment", func(t *testing.T) {
		loan := standardLoan(t)
		_, _, err := engine.UpdatePayment(loan, nil, uuid.New(), domain.PaymentChanges{AmountPaid: decimal.NewFromInt(1)})
		assert.True(t, errors.Is(err, customError.ErrNotFound))
	})

	t.Run("deleted payment cannot be edited", func(t *testing.T) {
		loan := standardLoan(t)
		l := payMonthly(t, engine, loan, 1)
		l, _, err := engine.DeletePayment(l, l[0].ID, date(2024, 3, 1))
		require.NoError(t, err)

		_, _, err = engine.UpdatePayment(loan, l, l[0].ID, domain.PaymentChanges{AmountPaid: decimal.NewFromInt(1)})
		assert.True(t, errors.Is(err, customError.ErrNotFound))
	})
}

func TestDeletePayment_NotFound(t *testing.T) {
	engine := NewEngine(decimal.Zero)
	loan := standardLoan(t)
	l := payMonthly(t, engine, loan, 2)

	_, _, err := engine.DeletePayment(l, uuid.New(), date(2024, 4, 1))
	assert.True(t, errors.Is(err, customError.ErrNotFound))

	l, _, err = engine.DeletePayment(l, l[0].ID, date(2024, 4, 1))
	require.NoError(t, err)
	_, _, err = engine.DeletePayment(l, l[0].ID, date(2024, 4, 2))
	assert.True(t, errors.Is(err, customError.ErrNotFound), "a payment can only be deleted once")
}

func TestDeriveStatus(t *testing.T) {
	engine := NewEngine(decimal.Zero)
	loan := standardLoan(t)

	tests := []struct {
		name     string
		payments int
		asOf     time.Time
		expected domain.LoanStatus
	}{
		{"new loan", 0, date(2024, 1, 15), domain.LoanStatusRunning},
		{"before first due date", 0, date(2024, 2, 14), domain.LoanStatusRunning},
		{"first installment missed", 0, date(2024, 2, 15), domain.LoanStatusDelinquent},
		{"up to date", 3, date(2024, 4, 20), domain.LoanStatusRunning},
		{"ahead of schedule", 5, date(2024, 4, 20), domain.LoanStatusRunning},
		{"behind schedule", 2, date(2024, 4, 20), domain.LoanStatusDelinquent},
		{"term over and unpaid", 9, date(2026, 1, 1), domain.LoanStatusDelinquent},
		{"settled", 10, date(2026, 1, 1), domain.LoanStatusSettled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := payMonthly(t, engine, loan, tt.payments)
			assert.Equal(t, tt.expected, DeriveStatus(loan, l, tt.asOf))
		})
	}
}

func TestEffectiveStatus_Override(t *testing.T) {
	loan := standardLoan(t)
	override := domain.LoanStatusSettled
	loan.StatusOverride = &override

	assert.Equal(t, domain.LoanStatusSettled, EffectiveStatus(loan, nil, date(2025, 1, 1)))

	summary := Summarize(loan, nil, date(2025, 1, 1))
	assert.Equal(t, domain.LoanStatusSettled, summary.Status)
	assert.Equal(t, domain.LoanStatusDelinquent, summary.DerivedStatus)

	loan.StatusOverride = nil
	cleared := Summarize(loan, nil, date(2025, 1, 1))
	assert.Equal(t, EffectiveStatus(loan, nil, date(2025, 1, 1)), cleared.Status)
	assert.Equal(t, domain.LoanStatusDelinquent, cleared.Status)
}

func TestSummarize(t *testing.T) {
	engine := NewEngine(decimal.Zero)
	loan := standardLoan(t)
	l := payMonthly(t, engine, loan, 4)
	l, _, err := engine.DeletePayment(l, l[1].ID, date(2024, 6, 1))
	require.NoError(t, err)

	summary := Summarize(loan, l, date(2024, 6, 1))
	assert.True(t, summary.TotalPaid.Equal(decimal.NewFromInt(330000)))
	assert.True(t, summary.RemainingBalance.Equal(decimal.NewFromInt(770000)))
	assert.Equal(t, 3, summary.PaymentsCount)
	assert.Equal(t, 4, summary.ExpectedInstallments)
	assert.Equal(t, 5, summary.NextInstallmentNumber)
	assert.Equal(t, date(2024, 11, 15), summary.DueDate)
	assert.Equal(t, domain.LoanStatusDelinquent, summary.Status)

	again := Summarize(loan, l, date(2024, 6, 1))
	assert.Equal(t, summary, again, "recomputing from the same snapshot must be stable")
}

func TestLoanDeletionAndTermsLock(t *testing.T) {
	engine := NewEngine(decimal.Zero)
	loan := standardLoan(t)

	assert.NoError(t, engine.CheckLoanDeletable(loan, nil))
	assert.NoError(t, engine.CheckTermsEditable(loan, nil))

	l := payMonthly(t, engine, loan, 1)
	err := engine.CheckLoanDeletable(loan, l)
	assert.True(t, errors.Is(err, customError.ErrLoanHasPayments))
	assert.Equal(t, customError.ErrCodeTermsLocked, customError.CodeOf(engine.CheckTermsEditable(loan, l)))

	l, _, err = engine.DeletePayment(l, l[0].ID, date(2024, 3, 1))
	require.NoError(t, err)
	assert.True(t, errors.Is(engine.CheckLoanDeletable(loan, l), customError.ErrLoanHasPayments),
		"a loan whose only payment was deleted still has payment history")
}
