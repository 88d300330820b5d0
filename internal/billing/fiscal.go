package billing

import (
	"fmt"
	"time"
)

// fiscalYearStartMonth is the first month of the financial year. Dates in
// January through March belong to the previous year's label.
const fiscalYearStartMonth = time.April

// FinancialYear derives the "YYYY-YYYY" financial year label for a date.
// A zero date yields the empty string so that drafts without a date do
// not carry a misleading label.
func FinancialYear(date time.Time) string {
	if date.IsZero() {
		return ""
	}
	year := date.Year()
	if date.Month() < fiscalYearStartMonth {
		return fmt.Sprintf("%d-%d", year-1, year)
	}
	return fmt.Sprintf("%d-%d", year, year+1)
}
