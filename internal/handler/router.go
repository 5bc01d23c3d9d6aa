package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/segyhp/koperasi-loan-engine/internal/access"
	"github.com/segyhp/koperasi-loan-engine/pkg/response"
)

// NewRouter mounts the health checks and the loan API. Every API route checks the
// caller's role and division.
func NewRouter(loans *LoanHandler, health *HealthHandler) *mux.Router {
	router := mux.NewRouter()
	router.Use(response.LoggingMiddleware, response.CORSMiddleware)

	router.HandleFunc("/health", health.Health).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", health.Ready).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()

	read := guard(access.PermissionRead)
	write := guard(access.PermissionWrite)
	manage := guard(access.PermissionManage)

	// literal segments go before /loans/{loanId}
	api.Handle("/loans/generate-no", read(loans.GenerateLoanNumber)).Methods(http.MethodGet)
	api.Handle("/loans/member/{memberId}", read(loans.ListMemberLoans)).Methods(http.MethodGet)

	api.Handle("/loans", write(loans.CreateLoan)).Methods(http.MethodPost)
	api.Handle("/loans", read(loans.ListLoans)).Methods(http.MethodGet)
	api.Handle("/loans/{loanId}", read(loans.GetLoan)).Methods(http.MethodGet)
	api.Handle("/loans/{loanId}", write(loans.UpdateLoan)).Methods(http.MethodPut)
	api.Handle("/loans/{loanId}", manage(loans.DeleteLoan)).Methods(http.MethodDelete)
	api.Handle("/loans/{loanId}/status", manage(loans.OverrideStatus)).Methods(http.MethodPut)
	api.Handle("/loans/{loanId}/schedule", read(loans.GetSchedule)).Methods(http.MethodGet)
	api.Handle("/loans/{loanId}/outstanding", read(loans.GetOutstanding)).Methods(http.MethodGet)
	api.Handle("/loans/{loanId}/delinquent", read(loans.IsDelinquent)).Methods(http.MethodGet)
	api.Handle("/loans/{loanId}/installments", read(loans.ListInstallments)).Methods(http.MethodGet)
	api.Handle("/loans/{loanId}/installments/next", read(loans.NextInstallment)).Methods(http.MethodGet)

	api.Handle("/installments", write(loans.RecordInstallment)).Methods(http.MethodPost)
	api.Handle("/installments/{paymentId}", read(loans.GetInstallment)).Methods(http.MethodGet)
	api.Handle("/installments/{paymentId}", write(loans.UpdateInstallment)).Methods(http.MethodPut)
	api.Handle("/installments/{paymentId}", manage(loans.DeleteInstallment)).Methods(http.MethodDelete)

	return router
}

func guard(p access.Permission) func(http.HandlerFunc) http.Handler {
	require := access.Require(p)
	return func(h http.HandlerFunc) http.Handler {
		return require(h)
	}
}
