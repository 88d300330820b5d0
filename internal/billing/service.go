package billing

import (
	"context"
	"log/slog"
	"time"
)

// DocumentRepository is the persistence port the engine writes billing
// documents through. Persisted documents are only ever fully replaced on
// edit; there are no partial patches to line items.
type DocumentRepository interface {
	ListScope(ctx context.Context, companyID string, kind DocumentKind) ([]Document, error)
	Get(ctx context.Context, companyID string, kind DocumentKind, id string) (Document, error)
	Create(ctx context.Context, doc Document) (Document, error)
	Replace(ctx context.Context, doc Document) (Document, error)
	Delete(ctx context.Context, companyID string, kind DocumentKind, id string) error
}

// SaveRecord summarizes one committed save for the audit trail.
type SaveRecord struct {
	DocumentID     string         `json:"document_id"`
	CompanyID      string         `json:"company_id"`
	Kind           DocumentKind   `json:"kind"`
	DocumentNumber string         `json:"document_number"`
	Actor          string         `json:"actor"`
	Changes        []ChangeRecord `json:"changes,omitempty"`
	SavedAt        time.Time      `json:"saved_at"`
}

// SaveRecorder receives a record after every committed save. Recording
// is best effort and must never fail a save.
type SaveRecorder interface {
	RecordSave(ctx context.Context, rec SaveRecord) error
}

// Service bundles the engine's collaborators for the HTTP layer and
// hands out save workflows.
type Service struct {
	repo     DocumentRepository
	numbers  *NumberGenerator
	recorder SaveRecorder
	logger   *slog.Logger
}

// NewService constructs a Service. The recorder may be nil when no audit
// trail is configured.
func NewService(repo DocumentRepository, numbers *NumberGenerator, recorder SaveRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, numbers: numbers, recorder: recorder, logger: logger}
}

// NextNumber suggests the next document number for a scope.
func (s *Service) NextNumber(ctx context.Context, companyID string, kind DocumentKind, financialYear string) (string, error) {
	return s.numbers.NextNumber(ctx, companyID, kind, financialYear)
}

// NewWorkflow creates a save workflow for one editing session.
func (s *Service) NewWorkflow(kind DocumentKind) (*SaveWorkflow, error) {
	if !kind.Valid() {
		return nil, ErrUnknownKind
	}
	return newSaveWorkflow(s, kind), nil
}

// Get loads one persisted document.
func (s *Service) Get(ctx context.Context, companyID string, kind DocumentKind, id string) (Document, error) {
	return s.repo.Get(ctx, companyID, kind, id)
}

// Delete removes a persisted document.
func (s *Service) Delete(ctx context.Context, companyID string, kind DocumentKind, id string) error {
	return s.repo.Delete(ctx, companyID, kind, id)
}
