package billing

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// Totals carries the derived monetary fields of a billing document.
// Arithmetic is done in decimal to keep the round-up adjustment exact.
type Totals struct {
	TotalBeforeTax decimal.Decimal
	TotalGST       decimal.Decimal
	RoundUp        decimal.Decimal
	TotalAmount    decimal.Decimal
}

// ComputeTotals derives subtotal, tax, round-up adjustment and grand
// total from the line items and tax type code. The grand total is always
// rounded up to the next whole currency unit; RoundUp is the adjustment
// that makes that true, kept in [0, 1) and stored for display.
func ComputeTotals(items []LineItem, taxType string) Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		qty := decimal.NewFromFloat(item.Quantity)
		rate := decimal.NewFromFloat(item.Rate)
		subtotal = subtotal.Add(qty.Mul(rate))
	}

	gst := subtotal.Mul(effectiveTaxRate(taxType))
	raw := subtotal.Add(gst)
	total := raw.Ceil()

	return Totals{
		TotalBeforeTax: subtotal,
		TotalGST:       gst,
		RoundUp:        total.Sub(raw),
		TotalAmount:    total,
	}
}

// effectiveTaxRate maps a tax type code to the effective total rate as a
// fraction. The known codes form an explicit branch table: "2.5" and "9"
// are half-rate labels whose two halves sum to double the code value,
// while "18" is already the full rate. The "9"/"18" pair both yielding
// 18% is a property of the existing rule set, so the table is kept
// literal rather than derived.
func effectiveTaxRate(taxType string) decimal.Decimal {
	switch taxType {
	case "", TaxTypeNA, "0":
		return decimal.Zero
	case TaxTypeHalf:
		return decimal.NewFromFloat(0.05)
	case TaxTypeNine, TaxTypeFull:
		return decimal.NewFromFloat(0.18)
	}
	// Unknown codes follow the half-rate label convention when numeric,
	// and contribute no tax otherwise.
	half, err := strconv.ParseFloat(taxType, 64)
	if err != nil || half <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(half * 2).Div(decimal.NewFromInt(100))
}

// TaxLabel renders the human-readable tax description shown next to the
// GST amount. It mirrors the rate selection branch of effectiveTaxRate
// exactly: half-rate codes display as their two components, the full
// rate as a single figure.
func TaxLabel(taxType string) string {
	switch taxType {
	case "", TaxTypeNA, "0":
		return "(NA)"
	case TaxTypeFull:
		return "(18)%"
	}
	if half, err := strconv.ParseFloat(taxType, 64); err != nil || half <= 0 {
		return "(NA)"
	}
	return "(" + taxType + " + " + taxType + ")%"
}
