package billing

import (
	"testing"

	"github.com/shopspring/decimal"
)

func items(rows ...[2]float64) []LineItem {
	out := make([]LineItem, 0, len(rows))
	for _, r := range rows {
		out = append(out, LineItem{Quantity: r[0], Rate: r[1]})
	}
	return out
}

func TestComputeTotalsFullRate(t *testing.T) {
	// 2 x 100 + 1 x 50 = 250 before tax, 45 GST, grand total 295 exactly.
	totals := ComputeTotals(items([2]float64{2, 100}, [2]float64{1, 50}), TaxTypeFull)

	if !totals.TotalBeforeTax.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("subtotal = %s, want 250", totals.TotalBeforeTax)
	}
	if !totals.TotalGST.Equal(decimal.NewFromInt(45)) {
		t.Fatalf("gst = %s, want 45", totals.TotalGST)
	}
	if !totals.TotalAmount.Equal(decimal.NewFromInt(295)) {
		t.Fatalf("total = %s, want 295", totals.TotalAmount)
	}
	if !totals.RoundUp.IsZero() {
		t.Fatalf("round-up = %s, want 0", totals.RoundUp)
	}
}

func TestComputeTotalsHalfRateRoundsUp(t *testing.T) {
	// 250 at 5% gives 262.50 raw; the grand total rounds up to 263.
	totals := ComputeTotals(items([2]float64{2, 100}, [2]float64{1, 50}), TaxTypeHalf)

	if !totals.TotalGST.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("gst = %s, want 12.5", totals.TotalGST)
	}
	if !totals.TotalAmount.Equal(decimal.NewFromInt(263)) {
		t.Fatalf("total = %s, want 263", totals.TotalAmount)
	}
	if !totals.RoundUp.Equal(decimal.RequireFromString("0.5")) {
		t.Fatalf("round-up = %s, want 0.5", totals.RoundUp)
	}
}

func TestComputeTotalsNoTax(t *testing.T) {
	for _, taxType := range []string{"", TaxTypeNA, "0"} {
		totals := ComputeTotals(items([2]float64{3, 40}), taxType)
		if !totals.TotalGST.IsZero() {
			t.Fatalf("tax type %q: gst = %s, want 0", taxType, totals.TotalGST)
		}
		if !totals.TotalAmount.Equal(decimal.NewFromInt(120)) {
			t.Fatalf("tax type %q: total = %s, want 120", taxType, totals.TotalAmount)
		}
	}
}

func TestComputeTotalsNineBehavesAsEighteen(t *testing.T) {
	nine := ComputeTotals(items([2]float64{1, 100}), TaxTypeNine)
	full := ComputeTotals(items([2]float64{1, 100}), TaxTypeFull)
	if !nine.TotalGST.Equal(full.TotalGST) {
		t.Fatalf("gst for 9 = %s, for 18 = %s, want equal", nine.TotalGST, full.TotalGST)
	}
}

func TestComputeTotalsUnknownNumericCodeDoubles(t *testing.T) {
	// An unrecognized numeric code is treated as a half-rate label.
	totals := ComputeTotals(items([2]float64{1, 100}), "6")
	if !totals.TotalGST.Equal(decimal.NewFromInt(12)) {
		t.Fatalf("gst = %s, want 12", totals.TotalGST)
	}
}

func TestComputeTotalsNegativeCodeContributesNoTax(t *testing.T) {
	totals := ComputeTotals(items([2]float64{1, 100}), "-5")
	if !totals.TotalGST.Equal(decimal.Zero) {
		t.Fatalf("gst = %s, want 0", totals.TotalGST)
	}
}

func TestComputeTotalsRoundUpStaysBelowOne(t *testing.T) {
	totals := ComputeTotals(items([2]float64{1, 99.01}), TaxTypeNA)
	if totals.RoundUp.IsNegative() || totals.RoundUp.Cmp(decimal.NewFromInt(1)) >= 0 {
		t.Fatalf("round-up = %s, want in [0, 1)", totals.RoundUp)
	}
	if !totals.TotalAmount.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("total = %s, want 100", totals.TotalAmount)
	}
}

func TestTaxLabel(t *testing.T) {
	cases := map[string]string{
		"":          "(NA)",
		TaxTypeNA:   "(NA)",
		"0":         "(NA)",
		TaxTypeHalf: "(2.5 + 2.5)%",
		TaxTypeNine: "(9 + 9)%",
		TaxTypeFull: "(18)%",
		"garbage":   "(NA)",
		"-5":        "(NA)",
	}
	for taxType, want := range cases {
		if got := TaxLabel(taxType); got != want {
			t.Fatalf("TaxLabel(%q) = %q, want %q", taxType, got, want)
		}
	}
}
