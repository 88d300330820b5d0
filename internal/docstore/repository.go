package docstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ledgerkite/ledgerkite/internal/billing"
)

// BillingRepository adapts a Store to the persistence ports the billing
// engine defines: full-document reads and writes per (company, kind)
// scope, plus the number source for the sequential numbering generator.
type BillingRepository struct {
	store Store
}

// NewBillingRepository constructs a BillingRepository.
func NewBillingRepository(store Store) *BillingRepository {
	return &BillingRepository{store: store}
}

// ListScope implements billing.DocumentRepository.
func (r *BillingRepository) ListScope(ctx context.Context, companyID string, kind billing.DocumentKind) ([]billing.Document, error) {
	snap, err := r.store.List(ctx, Path{CompanyID: companyID, Kind: kind}, Query{})
	if err != nil {
		return nil, err
	}
	return snap.Documents, nil
}

// Get implements billing.DocumentRepository.
func (r *BillingRepository) Get(ctx context.Context, companyID string, kind billing.DocumentKind, id string) (billing.Document, error) {
	return r.get(ctx, Path{CompanyID: companyID, Kind: kind}, id)
}

// Create implements billing.DocumentRepository.
func (r *BillingRepository) Create(ctx context.Context, doc billing.Document) (billing.Document, error) {
	path := Path{CompanyID: doc.CompanyID, Kind: doc.Kind}
	id, err := r.store.Create(ctx, path, doc)
	if err != nil {
		return billing.Document{}, err
	}
	return r.get(ctx, path, id)
}

// Replace implements billing.DocumentRepository. Edits always replace
// the whole document; there are no partial line item patches. When the
// draft carries the timestamp of the version it was edited from, a
// concurrent change of the stored document is rejected with ErrConflict
// instead of silently overwriting it.
func (r *BillingRepository) Replace(ctx context.Context, doc billing.Document) (billing.Document, error) {
	path := Path{CompanyID: doc.CompanyID, Kind: doc.Kind}

	if !doc.UpdatedAt.IsZero() {
		current, err := r.get(ctx, path, doc.ID)
		if err != nil {
			return billing.Document{}, err
		}
		if !current.UpdatedAt.Equal(doc.UpdatedAt) {
			return billing.Document{}, ErrConflict
		}
	}

	patch, err := docPatch(doc)
	if err != nil {
		return billing.Document{}, err
	}
	if err := r.store.Update(ctx, path, doc.ID, patch); err != nil {
		return billing.Document{}, err
	}
	return r.get(ctx, path, doc.ID)
}

// Delete implements billing.DocumentRepository.
func (r *BillingRepository) Delete(ctx context.Context, companyID string, kind billing.DocumentKind, id string) error {
	return r.store.Delete(ctx, Path{CompanyID: companyID, Kind: kind}, id)
}

// DocumentNumbers implements billing.NumberSource.
func (r *BillingRepository) DocumentNumbers(ctx context.Context, companyID string, kind billing.DocumentKind, financialYear string) ([]string, error) {
	docs, err := r.ListScope(ctx, companyID, kind)
	if err != nil {
		return nil, err
	}
	var numbers []string
	for _, d := range docs {
		if d.FinancialYear == financialYear {
			numbers = append(numbers, d.DocumentNumber)
		}
	}
	return numbers, nil
}

func (r *BillingRepository) get(ctx context.Context, path Path, id string) (billing.Document, error) {
	snap, err := r.store.List(ctx, path, Query{})
	if err != nil {
		return billing.Document{}, err
	}
	for _, d := range snap.Documents {
		if d.ID == id {
			return d, nil
		}
	}
	return billing.Document{}, ErrNotFound
}

// docPatch flattens a document into a merge patch that replaces every
// field. Store-owned fields are left to the store.
func docPatch(doc billing.Document) (map[string]any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("docstore: encode patch: %w", err)
	}
	var patch map[string]any
	if err := json.Unmarshal(raw, &patch); err != nil {
		return nil, fmt.Errorf("docstore: decode patch: %w", err)
	}
	delete(patch, "id")
	delete(patch, "created_at")
	delete(patch, "updated_at")
	return patch, nil
}
