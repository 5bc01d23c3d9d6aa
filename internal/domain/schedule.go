package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ScheduleEntry is one row of a loan's monthly repayment plan
type ScheduleEntry struct {
	InstallmentNumber int             `json:"installment_number"`
	DueDate           time.Time       `json:"due_date"`
	DueAmount         decimal.Decimal `json:"due_amount"`
}

type ScheduleResponse struct {
	LoanID   string           `json:"loan_id"`
	Schedule []*ScheduleEntry `json:"schedule"`
}
