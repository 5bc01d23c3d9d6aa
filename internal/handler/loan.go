package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/segyhp/koperasi-loan-engine/internal/domain"
	customError "github.com/segyhp/koperasi-loan-engine/pkg/errors"
	"github.com/segyhp/koperasi-loan-engine/pkg/response"
)

// LoanService is the loan and installment surface the HTTP layer depends on
type LoanService interface {
	CreateLoan(ctx context.Context, request *domain.CreateLoanRequest) (*domain.LoanResponse, error)
	GenerateLoanNumber(ctx context.Context, startDate time.Time) (string, error)
	GetLoan(ctx context.Context, loanID uuid.UUID) (*domain.LoanResponse, error)
	ListLoans(ctx context.Context, filter domain.LoanFilter) ([]*domain.LoanResponse, error)
	UpdateLoanTerms(ctx context.Context, loanID uuid.UUID, request *domain.UpdateLoanRequest) (*domain.LoanResponse, error)
	OverrideStatus(ctx context.Context, loanID uuid.UUID, request *domain.OverrideStatusRequest) (*domain.LoanResponse, error)
	DeleteLoan(ctx context.Context, loanID uuid.UUID) error
	GetSchedule(ctx context.Context, loanID uuid.UUID) ([]*domain.ScheduleEntry, error)
	GetOutstanding(ctx context.Context, loanID uuid.UUID) (decimal.Decimal, error)
	IsDelinquent(ctx context.Context, loanID uuid.UUID) (*domain.DelinquentResponse, error)

	RecordPayment(ctx context.Context, request *domain.RecordPaymentRequest) (*domain.PaymentResponse, error)
	UpdatePayment(ctx context.Context, paymentID uuid.UUID, request *domain.UpdatePaymentRequest) (*domain.PaymentResponse, error)
	DeletePayment(ctx context.Context, paymentID uuid.UUID) error
	GetPayment(ctx context.Context, paymentID uuid.UUID) (*domain.Payment, error)
	ListPayments(ctx context.Context, loanID uuid.UUID) ([]*domain.Payment, error)
	NextInstallmentNumber(ctx context.Context, loanID uuid.UUID) (int, error)
}

type LoanHandler struct {
	service   LoanService
	validator *validator.Validate
}

func NewLoanHandler(service LoanService) *LoanHandler {
	return &LoanHandler{
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// CreateLoan handles POST /loans
func (h *LoanHandler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var request domain.CreateLoanRequest
	if !h.decode(w, r, &request) {
		return
	}

	result, err := h.service.CreateLoan(r.Context(), &request)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Created(w, result)
}

// ListLoans handles GET /loans with optional status and member_id filters
func (h *LoanHandler) ListLoans(w http.ResponseWriter, r *http.Request) {
	filter := domain.LoanFilter{Status: domain.LoanStatus(r.URL.Query().Get("status"))}

	if raw := r.URL.Query().Get("member_id"); raw != "" {
		memberID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || memberID <= 0 {
			response.BadRequest(w, "member_id must be a positive integer", err)
			return
		}
		filter.MemberID = memberID
	}

	h.list(w, r, filter)
}

// ListMemberLoans handles GET /loans/member/{memberId}
func (h *LoanHandler) ListMemberLoans(w http.ResponseWriter, r *http.Request) {
	memberID, err := strconv.ParseInt(mux.Vars(r)["memberId"], 10, 64)
	if err != nil || memberID <= 0 {
		response.BadRequest(w, "Invalid member ID", err)
		return
	}

	h.list(w, r, domain.LoanFilter{MemberID: memberID})
}

func (h *LoanHandler) list(w http.ResponseWriter, r *http.Request, filter domain.LoanFilter) {
	loans, err := h.service.ListLoans(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, loans)
}

// GenerateLoanNumber handles GET /loans/generate-no?start_date=YYYY-MM-DD. Loans are numbered
// by the year of their start date, which defaults to today.
func (h *LoanHandler) GenerateLoanNumber(w http.ResponseWriter, r *http.Request) {
	var startDate time.Time
	if raw := r.URL.Query().Get("start_date"); raw != "" {
		parsed, err := time.Parse(domain.DateLayout, raw)
		if err != nil {
			response.BadRequest(w, "start_date must be formatted as "+domain.DateLayout, err)
			return
		}
		startDate = parsed
	}

	number, err := h.service.GenerateLoanNumber(r.Context(), startDate)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, domain.LoanNumberResponse{LoanNumber: number})
}

// GetLoan handles GET /loans/{loanId}
func (h *LoanHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r, "loanId")
	if !ok {
		return
	}

	result, err := h.service.GetLoan(r.Context(), loanID)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, result)
}

// UpdateLoan handles PUT /loans/{loanId}
func (h *LoanHandler) UpdateLoan(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r, "loanId")
	if !ok {
		return
	}

	var request domain.UpdateLoanRequest
	if !h.decode(w, r, &request) {
		return
	}

	result, err := h.service.UpdateLoanTerms(r.Context(), loanID, &request)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, result)
}

// OverrideStatus handles PUT /loans/{loanId}/status
func (h *LoanHandler) OverrideStatus(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r, "loanId")
	if !ok {
		return
	}

	var request domain.OverrideStatusRequest
	if !h.decode(w, r, &request) {
		return
	}

	result, err := h.service.OverrideStatus(r.Context(), loanID, &request)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, result)
}

// DeleteLoan handles DELETE /loans/{loanId}
func (h *LoanHandler) DeleteLoan(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r, "loanId")
	if !ok {
		return
	}

	if err := h.service.DeleteLoan(r.Context(), loanID); err != nil {
		writeError(w, err)
		return
	}

	response.Message(w, "Loan deleted")
}

// GetSchedule handles GET /loans/{loanId}/schedule
func (h *LoanHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r, "loanId")
	if !ok {
		return
	}

	schedule, err := h.service.GetSchedule(r.Context(), loanID)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, domain.ScheduleResponse{LoanID: loanID.String(), Schedule: schedule})
}

// GetOutstanding handles GET /loans/{loanId}/outstanding
func (h *LoanHandler) GetOutstanding(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r, "loanId")
	if !ok {
		return
	}

	outstanding, err := h.service.GetOutstanding(r.Context(), loanID)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, domain.OutstandingResponse{LoanID: loanID, Outstanding: outstanding})
}

// IsDelinquent handles GET /loans/{loanId}/delinquent
func (h *LoanHandler) IsDelinquent(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r, "loanId")
	if !ok {
		return
	}

	result, err := h.service.IsDelinquent(r.Context(), loanID)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *LoanHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		response.ErrorWithCode(w, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err)
		return false
	}

	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		response.BadRequest(w, "Invalid "+name, err)
		return uuid.Nil, false
	}
	return id, true
}

// writeError maps business error codes onto HTTP statuses
func writeError(w http.ResponseWriter, err error) {
	var be *customError.BusinessError
	if !errors.As(err, &be) {
		log.Error().Err(err).Msg("unexpected service error")
		response.InternalServerError(w, "Internal server error", nil)
		return
	}

	status := http.StatusInternalServerError
	switch be.Code {
	case customError.ErrCodeInvalidAmount, customError.ErrCodeInvalidTerm, customError.ErrCodeInvalidStatus:
		status = http.StatusBadRequest
	case customError.ErrCodeLoanNotFound, customError.ErrCodePaymentNotFound:
		status = http.StatusNotFound
	case customError.ErrCodeLoanHasPayments, customError.ErrCodeTermsLocked:
		status = http.StatusConflict
	case customError.ErrCodeOverpayment:
		status = http.StatusUnprocessableEntity
	case customError.ErrCodeLockError:
		status = http.StatusServiceUnavailable
	}

	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("code", be.Code).Msg("service error")
	}

	response.ErrorWithCode(w, status, be.Code, be.Message, nil)
}
