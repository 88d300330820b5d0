package billing

import (
	"fmt"
	"strconv"
	"strings"
)

// Human-readable labels for the scalar fields covered by the diff
// allow-list. The save button's enabled state in the UI is literally
// len(Diff(original, current)) > 0, so these names are user-facing.
const (
	FieldDocumentNumber    = "Document Number"
	FieldDocumentDate      = "Document Date"
	FieldPaymentStatus     = "Payment Status"
	FieldTaxType           = "Tax Type"
	FieldCurrency          = "Currency"
	FieldTerms             = "Terms"
	FieldCounterpartyName  = "Counterparty Name"
	FieldCounterpartyTaxID = "Counterparty Tax ID"
	FieldInternalNotes     = "Internal Notes"
	FieldExternalNotes     = "External Notes"
)

// Labels for the diffable line item sub-fields.
const (
	ItemFieldDescription = "Description"
	ItemFieldHSNCode     = "HSN Code"
	ItemFieldQuantity    = "Quantity"
	ItemFieldUnit        = "Unit"
	ItemFieldRate        = "Rate"
)

// Labels for whole-item changes emitted by the identity strategy.
const (
	ItemAdded   = "Item Added"
	ItemRemoved = "Item Removed"
)

const dateOnly = "2006-01-02"

type scalarField struct {
	label string
	value func(*Document) any
	set   func(dst, src *Document)
}

// scalarFields is the fixed allow-list of diffable scalar fields. The
// document date is compared by its date-only portion, never the full
// timestamp.
var scalarFields = []scalarField{
	{
		label: FieldDocumentNumber,
		value: func(d *Document) any { return d.DocumentNumber },
		set:   func(dst, src *Document) { dst.DocumentNumber = src.DocumentNumber },
	},
	{
		label: FieldDocumentDate,
		value: func(d *Document) any {
			if d.DocumentDate.IsZero() {
				return ""
			}
			return d.DocumentDate.Format(dateOnly)
		},
		set: func(dst, src *Document) {
			dst.DocumentDate = src.DocumentDate
			dst.FinancialYear = FinancialYear(src.DocumentDate)
		},
	},
	{
		label: FieldPaymentStatus,
		value: func(d *Document) any { return string(d.PaymentStatus) },
		set:   func(dst, src *Document) { dst.PaymentStatus = src.PaymentStatus },
	},
	{
		label: FieldTaxType,
		value: func(d *Document) any { return d.TaxType },
		set:   func(dst, src *Document) { dst.TaxType = src.TaxType },
	},
	{
		label: FieldCurrency,
		value: func(d *Document) any { return d.Currency },
		set:   func(dst, src *Document) { dst.Currency = src.Currency },
	},
	{
		label: FieldTerms,
		value: func(d *Document) any { return d.Terms },
		set:   func(dst, src *Document) { dst.Terms = src.Terms },
	},
	{
		label: FieldCounterpartyName,
		value: func(d *Document) any { return d.Counterparty.Name },
		set:   func(dst, src *Document) { dst.Counterparty.Name = src.Counterparty.Name },
	},
	{
		label: FieldCounterpartyTaxID,
		value: func(d *Document) any { return d.Counterparty.TaxIdentifier },
		set:   func(dst, src *Document) { dst.Counterparty.TaxIdentifier = src.Counterparty.TaxIdentifier },
	},
	{
		label: FieldInternalNotes,
		value: func(d *Document) any { return d.InternalNotes },
		set:   func(dst, src *Document) { dst.InternalNotes = src.InternalNotes },
	},
	{
		label: FieldExternalNotes,
		value: func(d *Document) any { return d.ExternalNotes },
		set:   func(dst, src *Document) { dst.ExternalNotes = src.ExternalNotes },
	},
}

type itemField struct {
	label string
	value func(LineItem) any
	set   func(dst *LineItem, src LineItem)
}

var itemFields = []itemField{
	{
		label: ItemFieldDescription,
		value: func(i LineItem) any { return i.Description },
		set:   func(dst *LineItem, src LineItem) { dst.Description = src.Description },
	},
	{
		label: ItemFieldHSNCode,
		value: func(i LineItem) any { return i.HSNCode },
		set:   func(dst *LineItem, src LineItem) { dst.HSNCode = src.HSNCode },
	},
	{
		label: ItemFieldQuantity,
		value: func(i LineItem) any { return i.Quantity },
		set:   func(dst *LineItem, src LineItem) { dst.Quantity = src.Quantity },
	},
	{
		label: ItemFieldUnit,
		value: func(i LineItem) any { return i.Unit },
		set:   func(dst *LineItem, src LineItem) { dst.Unit = src.Unit },
	},
	{
		label: ItemFieldRate,
		value: func(i LineItem) any { return i.Rate },
		set:   func(dst *LineItem, src LineItem) { dst.Rate = src.Rate },
	},
}

// itemFieldLabel renders the "Item {n} → {field}" label of a line item
// sub-field change. Positions are 1-based for display.
func itemFieldLabel(pos int, field string) string {
	return fmt.Sprintf("Item %d → %s", pos+1, field)
}

// ItemDiffStrategy is the line item comparison policy. Two named
// strategies exist: positional comparison for the bill edit flows, where
// items carry no independent identity, and identity comparison for the
// quotation edit flow, where each item holds a synthetic per-session
// LineID. The two behaviors are deliberately not unified.
type ItemDiffStrategy interface {
	DiffItems(original, current []LineItem) []ChangeRecord
}

// StrategyForKind selects the item diff strategy for a document kind.
func StrategyForKind(kind DocumentKind) ItemDiffStrategy {
	if kind == KindQuotation {
		return IdentityDiff{}
	}
	return PositionalDiff{}
}

// PositionalDiff compares line items by position: index i of the current
// list against index i of the original. Rows past the shorter list are
// compared field-by-field against an empty item.
type PositionalDiff struct{}

// DiffItems implements ItemDiffStrategy.
func (PositionalDiff) DiffItems(original, current []LineItem) []ChangeRecord {
	var records []ChangeRecord
	n := len(original)
	if len(current) > n {
		n = len(current)
	}
	for i := 0; i < n; i++ {
		var before, after LineItem
		if i < len(original) {
			before = original[i]
		}
		if i < len(current) {
			after = current[i]
		}
		records = append(records, diffItemFields(i, before, after)...)
	}
	return records
}

// IdentityDiff compares line items by their synthetic LineID: items only
// in current are additions, items only in original are removals, items
// in both are compared field-by-field. Items without a LineID never
// match and therefore show up as an add/remove pair.
type IdentityDiff struct{}

// DiffItems implements ItemDiffStrategy.
func (IdentityDiff) DiffItems(original, current []LineItem) []ChangeRecord {
	var records []ChangeRecord

	currentByID := make(map[string]int, len(current))
	for i, item := range current {
		if item.LineID != "" {
			currentByID[item.LineID] = i
		}
	}

	seen := make(map[string]bool, len(original))
	for _, item := range original {
		if item.LineID == "" {
			records = append(records, ChangeRecord{Field: ItemRemoved, Before: item})
			continue
		}
		idx, ok := currentByID[item.LineID]
		if !ok {
			records = append(records, ChangeRecord{Field: ItemRemoved, Before: item})
			continue
		}
		seen[item.LineID] = true
		records = append(records, diffItemFields(idx, item, current[idx])...)
	}

	for _, item := range current {
		if item.LineID != "" && seen[item.LineID] {
			continue
		}
		records = append(records, ChangeRecord{Field: ItemAdded, After: item})
	}
	return records
}

func diffItemFields(pos int, before, after LineItem) []ChangeRecord {
	var records []ChangeRecord
	for _, f := range itemFields {
		b, a := f.value(before), f.value(after)
		if b != a {
			records = append(records, ChangeRecord{Field: itemFieldLabel(pos, f.label), Before: b, After: a})
		}
	}
	return records
}

// Diff structurally compares two versions of a document into a
// human-reviewable change list. It is pure and synchronous: no I/O, no
// mutation of its inputs, safe to run on every keystroke. An empty
// result means "no changes detected" and must short-circuit a save.
func Diff(original, current *Document, strategy ItemDiffStrategy) []ChangeRecord {
	if original == nil || current == nil {
		return nil
	}
	if strategy == nil {
		strategy = StrategyForKind(current.Kind)
	}

	var records []ChangeRecord
	for _, f := range scalarFields {
		b, a := f.value(original), f.value(current)
		if b != a {
			records = append(records, ChangeRecord{Field: f.label, Before: b, After: a})
		}
	}
	records = append(records, strategy.DiffItems(original.LineItems, current.LineItems)...)
	return records
}

// RevertField returns a copy of current with exactly the named field
// reset to original's value. Every other field keeps its edited state.
// The operation is idempotent and does not mutate either input. Item
// sub-fields are addressed by their diff label, e.g. "Item 2 → Rate".
func RevertField(original, current Document, field string) Document {
	reverted := current
	reverted.LineItems = append([]LineItem(nil), current.LineItems...)

	for _, f := range scalarFields {
		if f.label == field {
			f.set(&reverted, &original)
			return reverted
		}
	}

	if pos, sub, ok := parseItemFieldLabel(field); ok {
		if pos >= len(reverted.LineItems) || pos >= len(original.LineItems) {
			return reverted
		}
		for _, f := range itemFields {
			if f.label == sub {
				f.set(&reverted.LineItems[pos], original.LineItems[pos])
				return reverted
			}
		}
	}
	return reverted
}

// parseItemFieldLabel inverts itemFieldLabel, returning the zero-based
// item position and the sub-field label.
func parseItemFieldLabel(label string) (int, string, bool) {
	rest, ok := strings.CutPrefix(label, "Item ")
	if !ok {
		return 0, "", false
	}
	numStr, field, ok := strings.Cut(rest, " → ")
	if !ok {
		return 0, "", false
	}
	pos, err := strconv.Atoi(numStr)
	if err != nil || pos < 1 {
		return 0, "", false
	}
	return pos - 1, field, true
}
