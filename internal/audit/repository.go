package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerkite/ledgerkite/internal/billing"
)

// Entry is one persisted audit trail row.
type Entry struct {
	ID             int64                  `json:"id"`
	DocumentID     string                 `json:"document_id"`
	CompanyID      string                 `json:"company_id"`
	Kind           billing.DocumentKind   `json:"kind"`
	DocumentNumber string                 `json:"document_number"`
	Actor          string                 `json:"actor"`
	Changes        []billing.ChangeRecord `json:"changes,omitempty"`
	SavedAt        time.Time              `json:"saved_at"`
}

// Repository provides PostgreSQL backed persistence for the audit trail.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert writes one save record.
func (r *Repository) Insert(ctx context.Context, rec billing.SaveRecord) error {
	changes, err := json.Marshal(rec.Changes)
	if err != nil {
		return fmt.Errorf("audit: encode changes: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO document_audit_trail (document_id, company_id, kind, document_number, actor, changes, saved_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.DocumentID, rec.CompanyID, rec.Kind, rec.DocumentNumber, rec.Actor, changes, rec.SavedAt)
	if err != nil {
		return fmt.Errorf("audit: insert trail row: %w", err)
	}
	return nil
}

// Recent lists the latest trail entries for a company, newest first.
func (r *Repository) Recent(ctx context.Context, companyID string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, document_id, company_id, kind, document_number, actor, changes, saved_at
		 FROM document_audit_trail
		 WHERE company_id = $1
		 ORDER BY saved_at DESC
		 LIMIT $2`, companyID, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: list trail: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			changes []byte
		)
		if err := rows.Scan(&e.ID, &e.DocumentID, &e.CompanyID, &e.Kind, &e.DocumentNumber, &e.Actor, &changes, &e.SavedAt); err != nil {
			return nil, fmt.Errorf("audit: scan trail row: %w", err)
		}
		if len(changes) > 0 {
			if err := json.Unmarshal(changes, &e.Changes); err != nil {
				return nil, fmt.Errorf("audit: decode changes: %w", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
