package handler

import (
	"net/http"

	"github.com/segyhp/koperasi-loan-engine/internal/domain"
	"github.com/segyhp/koperasi-loan-engine/pkg/response"
)

// RecordInstallment handles POST /installments
func (h *LoanHandler) RecordInstallment(w http.ResponseWriter, r *http.Request) {
	var request domain.RecordPaymentRequest
	if !h.decode(w, r, &request) {
		return
	}

	result, err := h.service.RecordPayment(r.Context(), &request)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Created(w, result)
}

// GetInstallment handles GET /installments/{paymentId}
func (h *LoanHandler) GetInstallment(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := pathID(w, r, "paymentId")
	if !ok {
		return
	}

	payment, err := h.service.GetPayment(r.Context(), paymentID)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, payment)
}

// UpdateInstallment handles PUT /installments/{paymentId}
func (h *LoanHandler) UpdateInstallment(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := pathID(w, r, "paymentId")
	if !ok {
		return
	}

	var request domain.UpdatePaymentRequest
	if !h.decode(w, r, &request) {
		return
	}

	result, err := h.service.UpdatePayment(r.Context(), paymentID, &request)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, result)
}

// DeleteInstallment handles DELETE /installments/{paymentId}
func (h *LoanHandler) DeleteInstallment(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := pathID(w, r, "paymentId")
	if !ok {
		return
	}

	if err := h.service.DeletePayment(r.Context(), paymentID); err != nil {
		writeError(w, err)
		return
	}

	response.Message(w, "Installment deleted")
}

// ListInstallments handles GET /loans/{loanId}/installments
func (h *LoanHandler) ListInstallments(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r, "loanId")
	if !ok {
		return
	}

	payments, err := h.service.ListPayments(r.Context(), loanID)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, payments)
}

// NextInstallment handles GET /loans/{loanId}/installments/next
func (h *LoanHandler) NextInstallment(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r, "loanId")
	if !ok {
		return
	}

	number, err := h.service.NextInstallmentNumber(r.Context(), loanID)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, domain.NextInstallmentResponse{LoanID: loanID, InstallmentNumber: number})
}
