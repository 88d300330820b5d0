package billing

import (
	"context"
	"errors"
	"testing"
)

type stubNumberSource struct {
	numbers []string
	err     error
	calls   int
}

func (s *stubNumberSource) DocumentNumbers(ctx context.Context, companyID string, kind DocumentKind, financialYear string) ([]string, error) {
	s.calls++
	return s.numbers, s.err
}

func TestNextNumberEmptyScope(t *testing.T) {
	gen := NewNumberGenerator(&stubNumberSource{})
	got, err := gen.NextNumber(context.Background(), "co-1", KindSalesBill, "2024-2025")
	if err != nil {
		t.Fatalf("NextNumber returned error: %v", err)
	}
	if got != "1" {
		t.Fatalf("expected first number 1, got %q", got)
	}
}

func TestNextNumberNumericMax(t *testing.T) {
	gen := NewNumberGenerator(&stubNumberSource{numbers: []string{"3", "7", "2"}})
	got, err := gen.NextNumber(context.Background(), "co-1", KindSalesBill, "2024-2025")
	if err != nil {
		t.Fatalf("NextNumber returned error: %v", err)
	}
	if got != "8" {
		t.Fatalf("expected 8, got %q", got)
	}
}

func TestNextNumberSkipsNonNumeric(t *testing.T) {
	// Numeric comparison: "9" beats "10" lexicographically but not here.
	gen := NewNumberGenerator(&stubNumberSource{numbers: []string{"9", "10", "INV-5", ""}})
	got, err := gen.NextNumber(context.Background(), "co-1", KindQuotation, "2024-2025")
	if err != nil {
		t.Fatalf("NextNumber returned error: %v", err)
	}
	if got != "11" {
		t.Fatalf("expected 11, got %q", got)
	}
}

func TestNextNumberAllNonNumeric(t *testing.T) {
	gen := NewNumberGenerator(&stubNumberSource{numbers: []string{"INV-1", "draft"}})
	got, err := gen.NextNumber(context.Background(), "co-1", KindPurchaseBill, "2024-2025")
	if err != nil {
		t.Fatalf("NextNumber returned error: %v", err)
	}
	if got != "1" {
		t.Fatalf("expected fallback 1, got %q", got)
	}
}

func TestNextNumberSourceError(t *testing.T) {
	wantErr := errors.New("store unavailable")
	gen := NewNumberGenerator(&stubNumberSource{err: wantErr})
	_, err := gen.NextNumber(context.Background(), "co-1", KindSalesBill, "2024-2025")
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped source error, got %v", err)
	}
}
