package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/koperasi-loan-engine/internal/access"
	"github.com/segyhp/koperasi-loan-engine/internal/domain"
	"github.com/segyhp/koperasi-loan-engine/internal/mocks"
	customError "github.com/segyhp/koperasi-loan-engine/pkg/errors"
)

func TestHandler_RecordInstallment(t *testing.T) {
	loanID := uuid.New()

	tests := []struct {
		name           string
		body           string
		setupMock      func(*mocks.MockLoanService)
		expectedStatus int
		expectedCode   string
	}{
		{
			name: "records the payment",
			body: `{"loan_id":"` + loanID.String() + `","payment_date":"2024-02-15","amount_paid":"110000","penalty":"5000"}`,
			setupMock: func(svc *mocks.MockLoanService) {
				svc.On("RecordPayment", mock.Anything, mock.MatchedBy(func(req *domain.RecordPaymentRequest) bool {
					return req.LoanID == loanID &&
						req.AmountPaid.Equal(decimal.NewFromInt(110000)) &&
						req.Penalty.Equal(decimal.NewFromInt(5000))
				})).Return(&domain.PaymentResponse{
					Payment: &domain.Payment{ID: uuid.New(), LoanID: loanID, InstallmentNumber: 3},
					Summary: &domain.LoanSummary{RemainingBalance: decimal.NewFromInt(770000)},
				}, nil).Once()
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "overpayment",
			body: `{"loan_id":"` + loanID.String() + `","payment_date":"2024-02-15","amount_paid":"9000000"}`,
			setupMock: func(svc *mocks.MockLoanService) {
				svc.On("RecordPayment", mock.Anything, mock.Anything).
					Return(nil, customError.WrapOverpayment("9000000", "1100000")).Once()
			},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedCode:   customError.ErrCodeOverpayment,
		},
		{
			name: "zero amount",
			body: `{"loan_id":"` + loanID.String() + `","payment_date":"2024-02-15","amount_paid":"0"}`,
			setupMock: func(svc *mocks.MockLoanService) {
				svc.On("RecordPayment", mock.Anything, mock.Anything).
					Return(nil, customError.WrapInvalidAmount("amount paid", "0")).Once()
			},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   customError.ErrCodeInvalidAmount,
		},
		{
			name:           "missing loan id",
			body:           `{"payment_date":"2024-02-15","amount_paid":"110000"}`,
			setupMock:      func(svc *mocks.MockLoanService) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "VALIDATION_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, svc := setupRouter(t)
			tt.setupMock(svc)

			w := doRequest(router, http.MethodPost, "/api/v1/installments", tt.body, access.RoleKaryawan)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, errorCode(t, w))
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestHandler_InstallmentLifecycle(t *testing.T) {
	router, svc := setupRouter(t)
	loanID := uuid.New()
	paymentID := uuid.New()

	svc.On("GetPayment", mock.Anything, paymentID).Return(&domain.Payment{
		ID: paymentID, LoanID: loanID, InstallmentNumber: 1,
		PaymentDate: time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC),
	}, nil).Once()
	svc.On("UpdatePayment", mock.Anything, paymentID, mock.MatchedBy(func(req *domain.UpdatePaymentRequest) bool {
		return req.Note == "receipt 17" && req.PaymentDate.Equal(time.Date(2024, 2, 16, 0, 0, 0, 0, time.UTC))
	})).Return(&domain.PaymentResponse{Payment: &domain.Payment{ID: paymentID}}, nil).Once()
	svc.On("DeletePayment", mock.Anything, paymentID).Return(nil).Once()
	svc.On("NextInstallmentNumber", mock.Anything, loanID).Return(2, nil).Once()
	svc.On("ListPayments", mock.Anything, loanID).Return([]*domain.Payment{}, nil).Once()

	w := doRequest(router, http.MethodGet, "/api/v1/installments/"+paymentID.String(), nil, access.RoleKaryawan)
	require.Equal(t, http.StatusOK, w.Code)
	var payment domain.Payment
	decodeData(t, w, &payment)
	assert.Equal(t, 1, payment.InstallmentNumber)

	w = doRequest(router, http.MethodPut, "/api/v1/installments/"+paymentID.String(),
		`{"payment_date":"2024-02-16","amount_paid":"110000","note":"receipt 17"}`, access.RoleKaryawan)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodDelete, "/api/v1/installments/"+paymentID.String(), nil, access.RoleKaryawan)
	assert.Equal(t, http.StatusForbidden, w.Code, "karyawan may not delete installments")

	w = doRequest(router, http.MethodDelete, "/api/v1/installments/"+paymentID.String(), nil, access.RolePengurus)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v1/loans/"+loanID.String()+"/installments/next", nil, access.RoleKaryawan)
	require.Equal(t, http.StatusOK, w.Code)
	var next domain.NextInstallmentResponse
	decodeData(t, w, &next)
	assert.Equal(t, 2, next.InstallmentNumber)

	w = doRequest(router, http.MethodGet, "/api/v1/loans/"+loanID.String()+"/installments", nil, access.RoleKaryawan)
	assert.Equal(t, http.StatusOK, w.Code)

	svc.AssertExpectations(t)
}

func TestHealthHandler(t *testing.T) {
	router, _ := setupRouter(t)

	w := doRequest(router, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodGet, "/health/ready", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var status HealthStatus
	decodeData(t, w, &status)
	assert.Equal(t, "ok", status.Checks["database"])
	_, hasRedis := status.Checks["redis"]
	assert.False(t, hasRedis)
}
