// Package docstore defines the port to the remote document store that
// backs billing document collections, plus the adapters that implement
// it. The engine treats the store as an external collaborator: writes go
// through the port, reads come back either as one-shot snapshots or as a
// live subscription stream.
package docstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/ledgerkite/ledgerkite/internal/billing"
)

var (
	// ErrNotFound indicates the document does not exist in the collection.
	ErrNotFound = errors.New("docstore: document not found")
	// ErrConflict indicates a write collided with a concurrent change.
	ErrConflict = errors.New("docstore: write conflict")
	// ErrSubscriptionClosed indicates the subscription was torn down.
	ErrSubscriptionClosed = errors.New("docstore: subscription closed")
)

// Path addresses one collection: all documents of one kind owned by one
// company.
type Path struct {
	CompanyID string
	Kind      billing.DocumentKind
}

// String renders the collection path used as storage and channel key.
func (p Path) String() string {
	return fmt.Sprintf("companies/%s/%s", p.CompanyID, collectionName(p.Kind))
}

func collectionName(kind billing.DocumentKind) string {
	switch kind {
	case billing.KindSalesBill:
		return "sales_bills"
	case billing.KindPurchaseBill:
		return "purchase_bills"
	case billing.KindQuotation:
		return "quotations"
	}
	return "documents"
}

// Sort directions accepted by Query.
const (
	Ascending  = "asc"
	Descending = "desc"
)

// Query describes how a collection read is ordered and windowed. The
// zero value reads the whole collection in creation order.
type Query struct {
	OrderBy   string `json:"order_by,omitempty"`
	Direction string `json:"direction,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Cursor    string `json:"cursor,omitempty"`
}

// Snapshot is one consistent view of a collection under a query. Cursor
// is non-empty when the window was cut short by Query.Limit and more
// documents follow.
type Snapshot struct {
	Documents []billing.Document `json:"documents"`
	Cursor    string             `json:"cursor,omitempty"`
}

// Subscription is a live snapshot stream for one (path, query) pair. The
// stream replays a full snapshot on every upstream change; consumers
// replace, never merge. Close is idempotent.
type Subscription interface {
	Snapshots() <-chan Snapshot
	Err() error
	Close()
}

// Store is the document store port. Transport and permission failures
// are returned verbatim; the engine surfaces them without classifying.
type Store interface {
	List(ctx context.Context, path Path, q Query) (Snapshot, error)
	Create(ctx context.Context, path Path, doc billing.Document) (string, error)
	Update(ctx context.Context, path Path, id string, patch map[string]any) error
	Delete(ctx context.Context, path Path, id string) error
	Subscribe(ctx context.Context, path Path, q Query) (Subscription, error)
}
