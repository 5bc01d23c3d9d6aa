package utils

import (
	"time"

	"github.com/shopspring/decimal"
)

// Decimal places kept in storage for money amounts and interest rates
const (
	MoneyScale int32 = 2
	RateScale  int32 = 4
)

var hundred = decimal.NewFromInt(100)

// CalculateTotalPayable applies flat interest once over the whole term, rounded half away
// from zero to MoneyScale places
// Formula: Principal + Principal * Rate / 100
func CalculateTotalPayable(principal, ratePercent decimal.Decimal) decimal.Decimal {
	interest := principal.Mul(ratePercent).Div(hundred)
	return principal.Add(interest).Round(MoneyScale)
}

// FitsScale reports whether d has no significant digits beyond places decimals
func FitsScale(d decimal.Decimal, places int32) bool {
	return d.Equal(d.Truncate(places))
}

// CalculateMonthlyInstallment splits the total payable over the term, rounding up to a
// whole currency unit so the term never under-collects
func CalculateMonthlyInstallment(totalPayable decimal.Decimal, months int) decimal.Decimal {
	if months <= 0 {
		return decimal.Zero
	}
	return totalPayable.Div(decimal.NewFromInt(int64(months))).Ceil()
}

// DateOnly truncates t to midnight UTC of its calendar date
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddMonths adds calendar months to a date, keeping the day of month where it exists and
// clamping to the last day of the target month otherwise (Jan 31 + 1 month = Feb 28/29)
func AddMonths(date time.Time, months int) time.Time {
	y, m, d := date.Date()
	firstOfTarget := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	if last := DaysInMonth(firstOfTarget); d > last {
		d = last
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), d, 0, 0, 0, 0, time.UTC)
}

// DaysInMonth returns the number of days in the month containing t
func DaysInMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// CalculateDueDate returns the date the given number of months after the start date
func CalculateDueDate(startDate time.Time, months int) time.Time {
	return AddMonths(DateOnly(startDate), months)
}

// MonthsElapsed counts the whole calendar months between start and asOf, where a month is
// complete once AddMonths(start, n) is on or before asOf. Returns 0 when asOf precedes start.
func MonthsElapsed(start, asOf time.Time) int {
	start, asOf = DateOnly(start), DateOnly(asOf)
	if asOf.Before(start) {
		return 0
	}

	months := (asOf.Year()-start.Year())*12 + int(asOf.Month()-start.Month())
	for months > 0 && AddMonths(start, months).After(asOf) {
		months--
	}
	return months
}
