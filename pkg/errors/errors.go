package errors

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidTerm     = errors.New("invalid term")
	ErrOverpayment     = errors.New("payment exceeds remaining balance")
	ErrNotFound        = errors.New("not found")
	ErrLoanHasPayments = errors.New("loan has recorded payments")
	ErrTermsLocked     = errors.New("loan terms are locked once payments exist")
	ErrInvalidStatus   = errors.New("invalid loan status")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeInvalidAmount   = "INVALID_AMOUNT"
	ErrCodeInvalidTerm     = "INVALID_TERM"
	ErrCodeOverpayment     = "OVERPAYMENT"
	ErrCodeLoanNotFound    = "LOAN_NOT_FOUND"
	ErrCodePaymentNotFound = "PAYMENT_NOT_FOUND"
	ErrCodeLoanHasPayments = "LOAN_HAS_PAYMENTS"
	ErrCodeTermsLocked     = "LOAN_TERMS_LOCKED"
	ErrCodeInvalidStatus   = "INVALID_STATUS"
	ErrCodeDatabaseError   = "DATABASE_ERROR"
	ErrCodeLockError       = "LOCK_ERROR"
)

// CodeOf returns the business code carried by err, or "" for infrastructure errors
func CodeOf(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

func WrapInvalidAmount(field, amount string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidAmount,
		fmt.Sprintf("%s must be greater than zero, got %s", field, amount),
		ErrInvalidAmount,
	)
}

func WrapNegativeAmount(field, amount string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidAmount,
		fmt.Sprintf("%s must not be negative, got %s", field, amount),
		ErrInvalidAmount,
	)
}

func WrapAmountPrecision(field, amount string, places int32) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidAmount,
		fmt.Sprintf("%s allows at most %d decimal places, got %s", field, places, amount),
		ErrInvalidAmount,
	)
}

func WrapInvalidTerm(months int) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidTerm,
		fmt.Sprintf("term must be at least one month, got %d", months),
		ErrInvalidTerm,
	)
}

func WrapOverpayment(amount, remaining string) *BusinessError {
	return NewBusinessError(
		ErrCodeOverpayment,
		fmt.Sprintf("Payment of %s exceeds remaining balance %s", amount, remaining),
		ErrOverpayment,
	)
}

func WrapLoanNotFound(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanNotFound,
		fmt.Sprintf("Loan with ID %s not found", loanID),
		ErrNotFound,
	)
}

func WrapPaymentNotFound(paymentID string) *BusinessError {
	return NewBusinessError(
		ErrCodePaymentNotFound,
		fmt.Sprintf("Installment payment with ID %s not found", paymentID),
		ErrNotFound,
	)
}

func WrapLoanHasPayments(loanID string, count int) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanHasPayments,
		fmt.Sprintf("Loan with ID %s has %d recorded payment(s) and cannot be deleted", loanID, count),
		ErrLoanHasPayments,
	)
}

func WrapTermsLocked(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeTermsLocked,
		fmt.Sprintf("Loan with ID %s already has payments; rate and term can no longer change", loanID),
		ErrTermsLocked,
	)
}

func WrapInvalidStatus(status string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidStatus,
		fmt.Sprintf("Unknown loan status %q", status),
		ErrInvalidStatus,
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		err,
	)
}

func WrapLockError(key string, err error) *BusinessError {
	return NewBusinessError(
		ErrCodeLockError,
		fmt.Sprintf("could not acquire lock %s", key),
		err,
	)
}
