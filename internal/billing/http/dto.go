package billinghttp

import (
	"time"

	"github.com/ledgerkite/ledgerkite/internal/billing"
)

// LineItemPayload is the wire shape of one document row.
type LineItemPayload struct {
	LineID      string  `json:"line_id,omitempty"`
	Description string  `json:"description" validate:"required,max=500"`
	HSNCode     string  `json:"hsn_code" validate:"max=20"`
	Quantity    float64 `json:"quantity" validate:"gte=0"`
	Unit        string  `json:"unit" validate:"max=20"`
	Rate        float64 `json:"rate" validate:"gte=0"`
}

// DocumentPayload is the wire shape of a draft document. Derived fields
// (financial year, totals) are not accepted from the client; the engine
// recomputes them before anything is persisted.
type DocumentPayload struct {
	ID             string               `json:"id,omitempty"`
	CompanyID      string               `json:"company_id" validate:"required"`
	DocumentNumber string               `json:"document_number" validate:"max=20"`
	DocumentDate   time.Time            `json:"document_date" validate:"required"`
	TaxType        string               `json:"tax_type" validate:"max=10"`
	Currency       string               `json:"currency" validate:"omitempty,len=3"`
	LineItems      []LineItemPayload    `json:"line_items" validate:"dive"`
	Counterparty   billing.Counterparty `json:"counterparty"`
	PaymentStatus  string               `json:"payment_status" validate:"omitempty,oneof=PAID PENDING PARTIAL"`
	Terms          string               `json:"terms,omitempty"`
	InternalNotes  string               `json:"internal_notes,omitempty"`
	ExternalNotes  string               `json:"external_notes,omitempty"`
	UpdatedAt      time.Time            `json:"updated_at,omitempty"`
}

// ToDocument converts the payload into a domain draft of the given kind.
func (p DocumentPayload) ToDocument(kind billing.DocumentKind) billing.Document {
	items := make([]billing.LineItem, 0, len(p.LineItems))
	for _, item := range p.LineItems {
		items = append(items, billing.LineItem{
			LineID:      item.LineID,
			Description: item.Description,
			HSNCode:     item.HSNCode,
			Quantity:    item.Quantity,
			Unit:        item.Unit,
			Rate:        item.Rate,
		})
	}
	return billing.Document{
		ID:             p.ID,
		Kind:           kind,
		CompanyID:      p.CompanyID,
		DocumentNumber: p.DocumentNumber,
		DocumentDate:   p.DocumentDate,
		TaxType:        p.TaxType,
		Currency:       p.Currency,
		LineItems:      items,
		Counterparty:   p.Counterparty,
		PaymentStatus:  billing.PaymentStatus(p.PaymentStatus),
		Terms:          p.Terms,
		InternalNotes:  p.InternalNotes,
		ExternalNotes:  p.ExternalNotes,
		UpdatedAt:      p.UpdatedAt,
	}
}

// SubmitRequest drives the save workflow for a create or an edit.
type SubmitRequest struct {
	Document DocumentPayload `json:"document" validate:"required"`
}

// SubmitResponse reports the workflow outcome. Token is set while the
// workflow waits for confirmation and is consumed by the confirm and
// cancel endpoints.
type SubmitResponse struct {
	billing.Outcome
	Token string `json:"token,omitempty"`
}

// TotalsRequest previews the derived totals of a draft.
type TotalsRequest struct {
	LineItems []LineItemPayload `json:"line_items" validate:"dive"`
	TaxType   string            `json:"tax_type" validate:"max=10"`
}

// TotalsResponse carries the computed totals plus their display forms.
type TotalsResponse struct {
	TotalBeforeTax float64 `json:"total_before_tax"`
	TotalGST       float64 `json:"total_gst"`
	RoundUp        float64 `json:"round_up"`
	TotalAmount    float64 `json:"total_amount"`
	TaxLabel       string  `json:"tax_label"`
	Display        struct {
		TotalBeforeTax string `json:"total_before_tax"`
		TotalGST       string `json:"total_gst"`
		RoundUp        string `json:"round_up"`
		TotalAmount    string `json:"total_amount"`
	} `json:"display"`
}

// DiffRequest previews the change list between two document versions.
type DiffRequest struct {
	Original DocumentPayload `json:"original" validate:"required"`
	Current  DocumentPayload `json:"current" validate:"required"`
}

// DiffResponse is the reviewable change list; an empty list means "no
// changes detected".
type DiffResponse struct {
	Changes []billing.ChangeRecord `json:"changes"`
	Dirty   bool                   `json:"dirty"`
}

// RevertRequest resets one field of current back to original's value.
type RevertRequest struct {
	Original DocumentPayload `json:"original" validate:"required"`
	Current  DocumentPayload `json:"current" validate:"required"`
	Field    string          `json:"field" validate:"required"`
}

// NextNumberResponse carries the suggested document number for a scope.
type NextNumberResponse struct {
	DocumentNumber string `json:"document_number"`
	FinancialYear  string `json:"financial_year"`
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
