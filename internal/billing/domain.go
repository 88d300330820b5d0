// Package billing implements the billing document consistency engine:
// fiscal-year derivation, tax computation, sequential numbering, change
// reconciliation and the document save workflow shared by sales bills,
// purchase bills and quotations.
package billing

import "time"

// DocumentKind tags the three billing document variants.
type DocumentKind string

const (
	KindSalesBill    DocumentKind = "SALES_BILL"
	KindPurchaseBill DocumentKind = "PURCHASE_BILL"
	KindQuotation    DocumentKind = "QUOTATION"
)

// Valid reports whether the kind is one of the known variants.
func (k DocumentKind) Valid() bool {
	switch k {
	case KindSalesBill, KindPurchaseBill, KindQuotation:
		return true
	}
	return false
}

// PaymentStatus enumerates settlement states of a billing document.
type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "PAID"
	PaymentPending PaymentStatus = "PENDING"
	PaymentPartial PaymentStatus = "PARTIAL"
)

// Tax type codes. "2.5" and "9" are half-rate labels (the two GST halves
// are shown separately on the printed document); "18" is the full rate.
const (
	TaxTypeNA   = "NA"
	TaxTypeHalf = "2.5"
	TaxTypeNine = "9"
	TaxTypeFull = "18"
)

// LineItem is one row of a billing document. Order is significant, both
// for display and for positional diffing. LineID is a synthetic
// per-session identity used only by the quotation edit flow; it is never
// persisted with meaning beyond the editing session.
type LineItem struct {
	LineID      string  `json:"line_id,omitempty"`
	Description string  `json:"description"`
	HSNCode     string  `json:"hsn_code"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit"`
	Rate        float64 `json:"rate"`
}

// Counterparty identifies the customer or supplier on a document.
type Counterparty struct {
	Name          string `json:"name"`
	TaxIdentifier string `json:"tax_identifier"`
}

// Document is the shared shape of all three billing document variants.
// Totals are derived fields: they are recomputed from LineItems and
// TaxType before every save and never trusted from client state.
type Document struct {
	ID             string        `json:"id,omitempty"`
	Kind           DocumentKind  `json:"kind"`
	CompanyID      string        `json:"company_id"`
	DocumentNumber string        `json:"document_number"`
	DocumentDate   time.Time     `json:"document_date"`
	FinancialYear  string        `json:"financial_year"`
	TaxType        string        `json:"tax_type"`
	Currency       string        `json:"currency"`
	LineItems      []LineItem    `json:"line_items"`
	TotalBeforeTax float64       `json:"total_before_tax"`
	TotalGST       float64       `json:"total_gst"`
	RoundUp        float64       `json:"round_up"`
	TotalAmount    float64       `json:"total_amount"`
	Counterparty   Counterparty  `json:"counterparty"`
	PaymentStatus  PaymentStatus `json:"payment_status"`
	Terms          string        `json:"terms,omitempty"`
	InternalNotes  string        `json:"internal_notes,omitempty"`
	ExternalNotes  string        `json:"external_notes,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
	UpdatedBy      string        `json:"updated_by,omitempty"`
}

// IsDraft reports whether the document has not yet been persisted.
func (d *Document) IsDraft() bool {
	return d.ID == ""
}

// Normalize recomputes every derived field from its source of truth:
// the financial year from the document date and the totals from the
// line items and tax type.
func (d *Document) Normalize() {
	d.FinancialYear = FinancialYear(d.DocumentDate)
	t := ComputeTotals(d.LineItems, d.TaxType)
	d.TotalBeforeTax = t.TotalBeforeTax.InexactFloat64()
	d.TotalGST = t.TotalGST.InexactFloat64()
	d.RoundUp = t.RoundUp.InexactFloat64()
	d.TotalAmount = t.TotalAmount.InexactFloat64()
}

// ChangeRecord describes one reviewable difference between two versions
// of a document. It is produced for user review and is not part of the
// document itself; the audit trail keeps its own copy per committed save.
type ChangeRecord struct {
	Field  string `json:"field"`
	Before any    `json:"before"`
	After  any    `json:"after"`
}
