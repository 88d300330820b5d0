package billing

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var amountPrinter = message.NewPrinter(language.English)

// FormatAmount renders a monetary value with exactly two decimal places
// and digit grouping, the way totals appear on the printed document.
func FormatAmount(v decimal.Decimal) string {
	f, _ := v.Round(2).Float64()
	return amountPrinter.Sprintf("%.2f", f)
}
