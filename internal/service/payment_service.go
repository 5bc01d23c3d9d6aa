package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/segyhp/koperasi-loan-engine/internal/domain"
	"github.com/segyhp/koperasi-loan-engine/internal/ledger"
	"github.com/segyhp/koperasi-loan-engine/internal/repository"
	customError "github.com/segyhp/koperasi-loan-engine/pkg/errors"
)

// RecordPayment appends an installment payment to a loan's ledger
func (s *LoanService) RecordPayment(ctx context.Context, request *domain.RecordPaymentRequest) (*domain.PaymentResponse, error) {
	var response *domain.PaymentResponse

	err := s.withLoanLock(ctx, request.LoanID, func() error {
		return s.store.WithinTx(ctx, func(tx repository.Store) error {
			loan, payments, err := s.load(ctx, tx, request.LoanID)
			if err != nil {
				return err
			}

			updated, recorded, err := s.engine.RecordPayment(loan, payments, domain.Payment{
				PaymentDate: request.PaymentDate.Time,
				AmountPaid:  request.AmountPaid,
				Penalty:     request.Penalty,
				Note:        request.Note,
			})
			if err != nil {
				return err
			}

			if err := tx.Payments().Create(ctx, recorded); err != nil {
				return customError.WrapDatabaseError(err)
			}
			if err := s.replaceTransactions(ctx, tx, domain.TransactionSourcePayment, recorded.ID, paymentTransactions(loan, recorded)...); err != nil {
				return err
			}
			if _, err := s.writeStatus(ctx, tx, loan, updated); err != nil {
				return err
			}

			response = &domain.PaymentResponse{Payment: recorded, Summary: ledger.Summarize(loan, updated, s.now())}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("loan_id", request.LoanID.String()).
		Str("payment_id", response.Payment.ID.String()).
		Int("installment_number", response.Payment.InstallmentNumber).
		Str("amount_paid", response.Payment.AmountPaid.String()).
		Str("remaining", response.Summary.RemainingBalance.String()).
		Msg("installment recorded")

	return response, nil
}

// UpdatePayment edits the date, amounts or note of a recorded payment
func (s *LoanService) UpdatePayment(ctx context.Context, paymentID uuid.UUID, request *domain.UpdatePaymentRequest) (*domain.PaymentResponse, error) {
	existing, err := s.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	var response *domain.PaymentResponse
	err = s.withLoanLock(ctx, existing.LoanID, func() error {
		return s.store.WithinTx(ctx, func(tx repository.Store) error {
			loan, payments, err := s.load(ctx, tx, existing.LoanID)
			if err != nil {
				return err
			}

			updated, edited, err := s.engine.UpdatePayment(loan, payments, paymentID, request.Changes())
			if err != nil {
				return err
			}

			if err := tx.Payments().Update(ctx, edited); err != nil {
				return customError.WrapDatabaseError(err)
			}
			if err := s.replaceTransactions(ctx, tx, domain.TransactionSourcePayment, edited.ID, paymentTransactions(loan, edited)...); err != nil {
				return err
			}
			if _, err := s.writeStatus(ctx, tx, loan, updated); err != nil {
				return err
			}

			response = &domain.PaymentResponse{Payment: edited, Summary: ledger.Summarize(loan, updated, s.now())}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("payment_id", paymentID.String()).Str("amount_paid", response.Payment.AmountPaid.String()).
		Msg("installment updated")

	return response, nil
}

// DeletePayment removes a payment from the balance. Its installment number stays taken.
func (s *LoanService) DeletePayment(ctx context.Context, paymentID uuid.UUID) error {
	existing, err := s.GetPayment(ctx, paymentID)
	if err != nil {
		return err
	}

	err = s.withLoanLock(ctx, existing.LoanID, func() error {
		return s.store.WithinTx(ctx, func(tx repository.Store) error {
			loan, payments, err := s.load(ctx, tx, existing.LoanID)
			if err != nil {
				return err
			}

			updated, deleted, err := s.engine.DeletePayment(payments, paymentID, s.now().UTC())
			if err != nil {
				return err
			}

			if err := tx.Payments().MarkDeleted(ctx, deleted); err != nil {
				return customError.WrapDatabaseError(err)
			}
			if err := tx.Transactions().DeleteBySource(ctx, domain.TransactionSourcePayment, deleted.ID); err != nil {
				return customError.WrapDatabaseError(err)
			}
			_, err = s.writeStatus(ctx, tx, loan, updated)
			return err
		})
	})
	if err != nil {
		return err
	}

	log.Info().Str("loan_id", existing.LoanID.String()).Str("payment_id", paymentID.String()).
		Int("installment_number", existing.InstallmentNumber).Msg("installment deleted")
	return nil
}

// GetPayment returns a payment that has not been deleted
func (s *LoanService) GetPayment(ctx context.Context, paymentID uuid.UUID) (*domain.Payment, error) {
	payment, err := s.store.Payments().GetByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapPaymentNotFound(paymentID.String())
		}
		return nil, customError.WrapDatabaseError(err)
	}
	if payment.IsDeleted() {
		return nil, customError.WrapPaymentNotFound(paymentID.String())
	}

	return payment, nil
}

// ListPayments returns the active payments of a loan in installment order
func (s *LoanService) ListPayments(ctx context.Context, loanID uuid.UUID) ([]*domain.Payment, error) {
	_, payments, err := s.load(ctx, s.store, loanID)
	if err != nil {
		return nil, err
	}

	return payments.Active(), nil
}

// NextInstallmentNumber previews the number the next payment of a loan would get
func (s *LoanService) NextInstallmentNumber(ctx context.Context, loanID uuid.UUID) (int, error) {
	_, payments, err := s.load(ctx, s.store, loanID)
	if err != nil {
		return 0, err
	}

	return payments.NextInstallmentNumber(loanID), nil
}

// paymentTransactions are the income entries a payment posts: the installment itself and
// the late fee when there is one
func paymentTransactions(loan *domain.Loan, payment *domain.Payment) []*domain.Transaction {
	transactions := []*domain.Transaction{{
		Date:        payment.PaymentDate,
		Type:        domain.TransactionTypeIncome,
		Category:    domain.TransactionCategoryInstallment,
		Description: fmt.Sprintf("Installment %d of loan %s", payment.InstallmentNumber, loan.LoanNumber),
		Amount:      payment.AmountPaid,
		SourceType:  domain.TransactionSourcePayment,
		SourceID:    payment.ID,
	}}

	if payment.Penalty.IsPositive() {
		transactions = append(transactions, &domain.Transaction{
			Date:        payment.PaymentDate,
			Type:        domain.TransactionTypeIncome,
			Category:    domain.TransactionCategoryPenalty,
			Description: fmt.Sprintf("Late fee on installment %d of loan %s", payment.InstallmentNumber, loan.LoanNumber),
			Amount:      payment.Penalty,
			SourceType:  domain.TransactionSourcePayment,
			SourceID:    payment.ID,
		})
	}

	return transactions
}
