package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/segyhp/koperasi-loan-engine/internal/config"
	"github.com/segyhp/koperasi-loan-engine/internal/domain"
	"github.com/segyhp/koperasi-loan-engine/internal/ledger"
	"github.com/segyhp/koperasi-loan-engine/internal/lock"
	"github.com/segyhp/koperasi-loan-engine/internal/repository"
	customError "github.com/segyhp/koperasi-loan-engine/pkg/errors"
	"github.com/segyhp/koperasi-loan-engine/pkg/utils"
)

const defaultLoanNumberPrefix = "PJM"

type LoanService struct {
	store  repository.Store
	locker lock.Locker
	engine *ledger.Engine
	prefix string
	now    func() time.Time
}

// NewLoanService wires the accounting engine to storage. A nil config falls back to zero
// overpayment tolerance, the PJM loan number prefix and UTC dates.
func NewLoanService(store repository.Store, locker lock.Locker, cfg *config.Config) *LoanService {
	tolerance := decimal.Zero
	prefix := defaultLoanNumberPrefix
	loc := time.UTC
	if cfg != nil {
		tolerance = cfg.GetOverpaymentTolerance()
		prefix = cfg.Business.LoanNumberPrefix
		loc = cfg.GetSchedulerLocation()
	}

	return &LoanService{
		store:  store,
		locker: locker,
		engine: ledger.NewEngine(tolerance),
		prefix: prefix,
		now:    func() time.Time { return time.Now().In(loc) },
	}
}

// WithClock replaces the service clock, used to evaluate statuses as of a fixed date
func (s *LoanService) WithClock(now func() time.Time) *LoanService {
	s.now = now
	return s
}

// CreateLoan disburses a loan, assigning the next loan number of its start year
func (s *LoanService) CreateLoan(ctx context.Context, request *domain.CreateLoanRequest) (*domain.LoanResponse, error) {
	schedule, err := ledger.ComputeSchedule(request.Principal, request.InterestRate, request.TermMonths)
	if err != nil {
		return nil, err
	}

	startDate := utils.DateOnly(request.StartDate.Time)
	loan := &domain.Loan{
		ID:                 uuid.New(),
		MemberID:           request.MemberID,
		Principal:          request.Principal,
		InterestRate:       request.InterestRate,
		TermMonths:         request.TermMonths,
		StartDate:          startDate,
		TotalPayable:       schedule.TotalPayable,
		MonthlyInstallment: schedule.MonthlyInstallment,
	}
	loan.Status = ledger.DeriveStatus(loan, nil, s.now())

	// loan numbers are sequential per year
	err = s.withLock(ctx, fmt.Sprintf("loan-number:%d", startDate.Year()), func() error {
		return s.store.WithinTx(ctx, func(tx repository.Store) error {
			number, err := s.nextLoanNumber(ctx, tx, startDate.Year())
			if err != nil {
				return err
			}
			loan.LoanNumber = number

			if err := tx.Loans().Create(ctx, loan); err != nil {
				return customError.WrapDatabaseError(err)
			}
			if err := tx.Transactions().Create(ctx, disbursementTransaction(loan)); err != nil {
				return customError.WrapDatabaseError(err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("loan_id", loan.ID.String()).
		Str("loan_number", loan.LoanNumber).
		Int64("member_id", loan.MemberID).
		Str("principal", loan.Principal.String()).
		Msg("loan disbursed")

	return &domain.LoanResponse{Loan: loan, Summary: ledger.Summarize(loan, nil, s.now())}, nil
}

// GenerateLoanNumber previews the number CreateLoan would assign to a loan starting on
// startDate. Numbering runs per start year; a zero startDate means today.
func (s *LoanService) GenerateLoanNumber(ctx context.Context, startDate time.Time) (string, error) {
	if startDate.IsZero() {
		startDate = s.now()
	}
	return s.nextLoanNumber(ctx, s.store, startDate.Year())
}

// GetLoan returns a loan together with every quantity derived from its ledger
func (s *LoanService) GetLoan(ctx context.Context, loanID uuid.UUID) (*domain.LoanResponse, error) {
	loan, payments, err := s.load(ctx, s.store, loanID)
	if err != nil {
		return nil, err
	}

	return &domain.LoanResponse{Loan: loan, Summary: ledger.Summarize(loan, payments, s.now())}, nil
}

// ListLoans lists loans, filtering on the derived status rather than the stored copy
func (s *LoanService) ListLoans(ctx context.Context, filter domain.LoanFilter) ([]*domain.LoanResponse, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, customError.WrapInvalidStatus(string(filter.Status))
	}

	loans, err := s.store.Loans().List(ctx, filter)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	asOf := s.now()
	result := make([]*domain.LoanResponse, 0, len(loans))
	for _, loan := range loans {
		// TODO: load ledgers for all listed loans in one query instead of one per loan
		payments, err := s.store.Payments().GetByLoanID(ctx, loan.ID)
		if err != nil {
			return nil, customError.WrapDatabaseError(err)
		}

		summary := ledger.Summarize(loan, payments, asOf)
		if filter.Status != "" && summary.Status != filter.Status {
			continue
		}
		result = append(result, &domain.LoanResponse{Loan: loan, Summary: summary})
	}

	return result, nil
}

// UpdateLoanTerms changes start date, rate or term of a loan that has no payment history
func (s *LoanService) UpdateLoanTerms(ctx context.Context, loanID uuid.UUID, request *domain.UpdateLoanRequest) (*domain.LoanResponse, error) {
	var response *domain.LoanResponse

	err := s.withLoanLock(ctx, loanID, func() error {
		return s.store.WithinTx(ctx, func(tx repository.Store) error {
			loan, payments, err := s.load(ctx, tx, loanID)
			if err != nil {
				return err
			}
			if err := s.engine.CheckTermsEditable(loan, payments); err != nil {
				return err
			}

			schedule, err := ledger.ComputeSchedule(loan.Principal, request.InterestRate, request.TermMonths)
			if err != nil {
				return err
			}

			loan.StartDate = utils.DateOnly(request.StartDate.Time)
			loan.InterestRate = request.InterestRate
			loan.TermMonths = request.TermMonths
			loan.TotalPayable = schedule.TotalPayable
			loan.MonthlyInstallment = schedule.MonthlyInstallment
			loan.Status = ledger.EffectiveStatus(loan, payments, s.now())

			if err := tx.Loans().Update(ctx, loan); err != nil {
				return customError.WrapDatabaseError(err)
			}
			if err := s.replaceTransactions(ctx, tx, domain.TransactionSourceLoan, loan.ID, disbursementTransaction(loan)); err != nil {
				return err
			}

			response = &domain.LoanResponse{Loan: loan, Summary: ledger.Summarize(loan, payments, s.now())}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("loan_id", loanID.String()).Int("term_months", request.TermMonths).
		Str("interest_rate", request.InterestRate.String()).Msg("loan terms updated")

	return response, nil
}

// OverrideStatus pins a loan's status until the override is cleared with a nil status
func (s *LoanService) OverrideStatus(ctx context.Context, loanID uuid.UUID, request *domain.OverrideStatusRequest) (*domain.LoanResponse, error) {
	if request.Status != nil && !request.Status.Valid() {
		return nil, customError.WrapInvalidStatus(string(*request.Status))
	}

	var response *domain.LoanResponse
	err := s.withLoanLock(ctx, loanID, func() error {
		return s.store.WithinTx(ctx, func(tx repository.Store) error {
			loan, payments, err := s.load(ctx, tx, loanID)
			if err != nil {
				return err
			}

			loan.StatusOverride = request.Status
			loan.Status = ledger.EffectiveStatus(loan, payments, s.now())
			if err := tx.Loans().Update(ctx, loan); err != nil {
				return customError.WrapDatabaseError(err)
			}

			response = &domain.LoanResponse{Loan: loan, Summary: ledger.Summarize(loan, payments, s.now())}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("loan_id", loanID.String()).Str("status", string(response.Loan.Status)).
		Bool("overridden", request.Status != nil).Msg("loan status override changed")

	return response, nil
}

// DeleteLoan removes a loan that never had a payment recorded
func (s *LoanService) DeleteLoan(ctx context.Context, loanID uuid.UUID) error {
	err := s.withLoanLock(ctx, loanID, func() error {
		return s.store.WithinTx(ctx, func(tx repository.Store) error {
			loan, payments, err := s.load(ctx, tx, loanID)
			if err != nil {
				return err
			}
			if err := s.engine.CheckLoanDeletable(loan, payments); err != nil {
				return err
			}

			if err := tx.Transactions().DeleteBySource(ctx, domain.TransactionSourceLoan, loan.ID); err != nil {
				return customError.WrapDatabaseError(err)
			}
			if err := tx.Loans().Delete(ctx, loan.ID); err != nil {
				return customError.WrapDatabaseError(err)
			}
			return nil
		})
	})
	if err != nil {
		return err
	}

	log.Info().Str("loan_id", loanID.String()).Msg("loan deleted")
	return nil
}

// GetSchedule returns the monthly repayment plan of a loan
func (s *LoanService) GetSchedule(ctx context.Context, loanID uuid.UUID) ([]*domain.ScheduleEntry, error) {
	loan, err := s.loadLoan(ctx, s.store, loanID)
	if err != nil {
		return nil, err
	}

	return ledger.BuildSchedule(loan), nil
}

// GetOutstanding calculates and returns the outstanding balance for a loan
func (s *LoanService) GetOutstanding(ctx context.Context, loanID uuid.UUID) (decimal.Decimal, error) {
	loan, payments, err := s.load(ctx, s.store, loanID)
	if err != nil {
		return decimal.Zero, err
	}

	return ledger.RemainingBalance(loan, payments), nil
}

// IsDelinquent reports whether fewer installments were paid than have fallen due
func (s *LoanService) IsDelinquent(ctx context.Context, loanID uuid.UUID) (*domain.DelinquentResponse, error) {
	loan, payments, err := s.load(ctx, s.store, loanID)
	if err != nil {
		return nil, err
	}

	asOf := s.now()
	return &domain.DelinquentResponse{
		LoanID:               loan.ID,
		IsDelinquent:         ledger.EffectiveStatus(loan, payments, asOf) == domain.LoanStatusDelinquent,
		ExpectedInstallments: ledger.ExpectedInstallments(loan, asOf),
		PaymentsCount:        len(payments.Active()),
	}, nil
}

// RefreshStatuses re-derives every loan's status and writes through the ones that changed.
// Delinquency depends on the calendar, so this runs periodically.
func (s *LoanService) RefreshStatuses(ctx context.Context) (int, error) {
	loans, err := s.store.Loans().List(ctx, domain.LoanFilter{})
	if err != nil {
		return 0, customError.WrapDatabaseError(err)
	}

	changed := 0
	for _, listed := range loans {
		if err := ctx.Err(); err != nil {
			return changed, err
		}

		err := s.withLoanLock(ctx, listed.ID, func() error {
			loan, payments, err := s.load(ctx, s.store, listed.ID)
			if err != nil {
				return err
			}
			updated, err := s.writeStatus(ctx, s.store, loan, payments)
			if updated {
				changed++
			}
			return err
		})
		// a loan deleted since the listing is not an error
		if err != nil && !errors.Is(err, customError.ErrNotFound) {
			return changed, err
		}
	}

	return changed, nil
}

func (s *LoanService) withLock(ctx context.Context, key string, fn func() error) error {
	release, err := s.locker.Acquire(ctx, key)
	if err != nil {
		return customError.WrapLockError(key, err)
	}
	defer release()

	return fn()
}

func (s *LoanService) withLoanLock(ctx context.Context, loanID uuid.UUID, fn func() error) error {
	return s.withLock(ctx, "loan:"+loanID.String(), fn)
}

func (s *LoanService) loadLoan(ctx context.Context, store repository.Store, loanID uuid.UUID) (*domain.Loan, error) {
	loan, err := store.Loans().GetByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapLoanNotFound(loanID.String())
		}
		return nil, customError.WrapDatabaseError(err)
	}
	return loan, nil
}

func (s *LoanService) load(ctx context.Context, store repository.Store, loanID uuid.UUID) (*domain.Loan, ledger.Ledger, error) {
	loan, err := s.loadLoan(ctx, store, loanID)
	if err != nil {
		return nil, nil, err
	}

	payments, err := store.Payments().GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, nil, customError.WrapDatabaseError(err)
	}

	return loan, payments, nil
}

// writeStatus persists the effective status when it differs from the stored copy
func (s *LoanService) writeStatus(ctx context.Context, store repository.Store, loan *domain.Loan, payments ledger.Ledger) (bool, error) {
	status := ledger.EffectiveStatus(loan, payments, s.now())
	if status == loan.Status {
		return false, nil
	}

	if err := store.Loans().UpdateStatus(ctx, loan.ID, status); err != nil {
		return false, customError.WrapDatabaseError(err)
	}

	log.Info().Str("loan_id", loan.ID.String()).Str("from", string(loan.Status)).
		Str("to", string(status)).Msg("loan status changed")
	loan.Status = status
	return true, nil
}

func (s *LoanService) nextLoanNumber(ctx context.Context, store repository.Store, year int) (string, error) {
	prefix := fmt.Sprintf("%s-%d-", s.prefix, year)

	last, err := store.Loans().LastLoanNumber(ctx, prefix)
	if err != nil {
		return "", customError.WrapDatabaseError(err)
	}

	seq := 0
	if last != "" {
		seq, err = strconv.Atoi(strings.TrimPrefix(last, prefix))
		if err != nil {
			return "", fmt.Errorf("malformed loan number %q: %w", last, err)
		}
	}

	return fmt.Sprintf("%s%04d", prefix, seq+1), nil
}

// replaceTransactions swaps the finance transactions emitted by one source
func (s *LoanService) replaceTransactions(ctx context.Context, tx repository.Store, sourceType string, sourceID uuid.UUID, transactions ...*domain.Transaction) error {
	if err := tx.Transactions().DeleteBySource(ctx, sourceType, sourceID); err != nil {
		return customError.WrapDatabaseError(err)
	}
	for _, t := range transactions {
		if err := tx.Transactions().Create(ctx, t); err != nil {
			return customError.WrapDatabaseError(err)
		}
	}
	return nil
}

func disbursementTransaction(loan *domain.Loan) *domain.Transaction {
	return &domain.Transaction{
		Date:        loan.StartDate,
		Type:        domain.TransactionTypeExpense,
		Category:    domain.TransactionCategoryDisbursement,
		Description: fmt.Sprintf("Disbursement of loan %s to member %d", loan.LoanNumber, loan.MemberID),
		Amount:      loan.Principal,
		SourceType:  domain.TransactionSourceLoan,
		SourceID:    loan.ID,
	}
}
