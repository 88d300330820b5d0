package docstore

import (
	"encoding/json"
	"sort"

	"github.com/ledgerkite/ledgerkite/internal/billing"
)

// applyQuery orders and windows a collection read. Ordering defaults to
// creation time ascending so subscription snapshots are stable across
// adapters.
func applyQuery(docs []billing.Document, q Query) Snapshot {
	ordered := append([]billing.Document(nil), docs...)

	orderBy := q.OrderBy
	if orderBy == "" {
		orderBy = "created_at"
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		less := docLess(ordered[i], ordered[j], orderBy)
		if q.Direction == Descending {
			return docLess(ordered[j], ordered[i], orderBy)
		}
		return less
	})

	if q.Cursor != "" {
		for i, d := range ordered {
			if d.ID == q.Cursor {
				ordered = ordered[i+1:]
				break
			}
		}
	}

	snap := Snapshot{Documents: ordered}
	if q.Limit > 0 && len(ordered) > q.Limit {
		snap.Documents = ordered[:q.Limit]
		snap.Cursor = snap.Documents[q.Limit-1].ID
	}
	return snap
}

func docLess(a, b billing.Document, field string) bool {
	switch field {
	case "document_number":
		return a.DocumentNumber < b.DocumentNumber
	case "document_date":
		return a.DocumentDate.Before(b.DocumentDate)
	case "updated_at":
		return a.UpdatedAt.Before(b.UpdatedAt)
	case "total_amount":
		return a.TotalAmount < b.TotalAmount
	default:
		return a.CreatedAt.Before(b.CreatedAt)
	}
}

// applyPatch merges a shallow field patch into a document through its
// JSON representation, so patch keys use the same names as the wire
// shape. Unknown keys are carried into the merge and dropped on decode.
func applyPatch(doc billing.Document, patch map[string]any) (billing.Document, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return billing.Document{}, err
	}
	var flat map[string]any
	if err := json.Unmarshal(raw, &flat); err != nil {
		return billing.Document{}, err
	}
	for k, v := range patch {
		flat[k] = v
	}
	merged, err := json.Marshal(flat)
	if err != nil {
		return billing.Document{}, err
	}
	var out billing.Document
	if err := json.Unmarshal(merged, &out); err != nil {
		return billing.Document{}, err
	}
	return out, nil
}
