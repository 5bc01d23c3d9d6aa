package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/segyhp/koperasi-loan-engine/internal/domain"
	"github.com/segyhp/koperasi-loan-engine/internal/repository"
)

type MockLoanRepository struct {
	mock.Mock
}

func (m *MockLoanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	args := m.Called(ctx, loan)
	return args.Error(0)
}

func (m *MockLoanRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLoanRepository) List(ctx context.Context, filter domain.LoanFilter) ([]*domain.Loan, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Loan), args.Error(1)
}

func (m *MockLoanRepository) Update(ctx context.Context, loan *domain.Loan) error {
	args := m.Called(ctx, loan)
	return args.Error(0)
}

func (m *MockLoanRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.LoanStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockLoanRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockLoanRepository) LastLoanNumber(ctx context.Context, prefix string) (string, error) {
	args := m.Called(ctx, prefix)
	return args.String(0), args.Error(1)
}

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) GetByLoanID(ctx context.Context, loanID uuid.UUID) ([]*domain.Payment, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) Update(ctx context.Context, payment *domain.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) MarkDeleted(ctx context.Context, payment *domain.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Create(ctx context.Context, transaction *domain.Transaction) error {
	args := m.Called(ctx, transaction)
	return args.Error(0)
}

func (m *MockTransactionRepository) GetBySource(ctx context.Context, sourceType string, sourceID uuid.UUID) ([]*domain.Transaction, error) {
	args := m.Called(ctx, sourceType, sourceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) DeleteBySource(ctx context.Context, sourceType string, sourceID uuid.UUID) error {
	args := m.Called(ctx, sourceType, sourceID)
	return args.Error(0)
}

// MockStore runs units of work directly against its mock repositories
type MockStore struct {
	LoanRepo        *MockLoanRepository
	PaymentRepo     *MockPaymentRepository
	TransactionRepo *MockTransactionRepository
}

func NewMockStore() *MockStore {
	return &MockStore{
		LoanRepo:        &MockLoanRepository{},
		PaymentRepo:     &MockPaymentRepository{},
		TransactionRepo: &MockTransactionRepository{},
	}
}

func (m *MockStore) Loans() repository.LoanRepository {
	return m.LoanRepo
}

func (m *MockStore) Payments() repository.PaymentRepository {
	return m.PaymentRepo
}

func (m *MockStore) Transactions() repository.TransactionRepository {
	return m.TransactionRepo
}

func (m *MockStore) WithinTx(ctx context.Context, fn func(repository.Store) error) error {
	return fn(m)
}

// AssertExpectations checks every repository mock
func (m *MockStore) AssertExpectations(t mock.TestingT) {
	m.LoanRepo.AssertExpectations(t)
	m.PaymentRepo.AssertExpectations(t)
	m.TransactionRepo.AssertExpectations(t)
}
