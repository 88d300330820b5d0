package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// fakeRepo keeps documents in memory and doubles as the number source.
type fakeRepo struct {
	docs      map[string]Document
	createErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{docs: make(map[string]Document)}
}

func (r *fakeRepo) ListScope(ctx context.Context, companyID string, kind DocumentKind) ([]Document, error) {
	var out []Document
	for _, doc := range r.docs {
		if doc.CompanyID == companyID && doc.Kind == kind {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (r *fakeRepo) Get(ctx context.Context, companyID string, kind DocumentKind, id string) (Document, error) {
	doc, ok := r.docs[id]
	if !ok {
		return Document{}, errors.New("not found")
	}
	return doc, nil
}

func (r *fakeRepo) Create(ctx context.Context, doc Document) (Document, error) {
	if r.createErr != nil {
		return Document{}, r.createErr
	}
	doc.ID = uuid.NewString()
	r.docs[doc.ID] = doc
	return doc, nil
}

func (r *fakeRepo) Replace(ctx context.Context, doc Document) (Document, error) {
	if _, ok := r.docs[doc.ID]; !ok {
		return Document{}, errors.New("not found")
	}
	r.docs[doc.ID] = doc
	return doc, nil
}

func (r *fakeRepo) Delete(ctx context.Context, companyID string, kind DocumentKind, id string) error {
	delete(r.docs, id)
	return nil
}

func (r *fakeRepo) DocumentNumbers(ctx context.Context, companyID string, kind DocumentKind, financialYear string) ([]string, error) {
	var out []string
	for _, doc := range r.docs {
		if doc.CompanyID == companyID && doc.Kind == kind && doc.FinancialYear == financialYear {
			out = append(out, doc.DocumentNumber)
		}
	}
	return out, nil
}

type capturedRecord struct {
	records []SaveRecord
}

func (c *capturedRecord) RecordSave(ctx context.Context, rec SaveRecord) error {
	c.records = append(c.records, rec)
	return nil
}

func newTestService(repo *fakeRepo) (*Service, *capturedRecord) {
	recorder := &capturedRecord{}
	return NewService(repo, NewNumberGenerator(repo), recorder, nil), recorder
}

func validDraft() Document {
	return Document{
		CompanyID:      "co-1",
		DocumentNumber: "1",
		DocumentDate:   time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC),
		TaxType:        TaxTypeFull,
		LineItems:      []LineItem{{Description: "Widget", Quantity: 2, Rate: 100}},
		Counterparty:   Counterparty{Name: "Meridian Traders"},
		PaymentStatus:  PaymentPending,
	}
}

func TestSubmitCleanDraftSaves(t *testing.T) {
	repo := newFakeRepo()
	svc, recorder := newTestService(repo)
	wf, err := svc.NewWorkflow(KindSalesBill)
	require.NoError(t, err)

	outcome, err := wf.Submit(context.Background(), nil, validDraft())
	require.NoError(t, err)
	require.Equal(t, StateSaved, outcome.State)
	require.NotNil(t, outcome.Document)
	require.NotEmpty(t, outcome.Document.ID)
	require.Equal(t, "2024-2025", outcome.Document.FinancialYear)
	require.InDelta(t, 236.0, outcome.Document.TotalAmount, 0.001)
	require.Len(t, recorder.records, 1)
	require.Equal(t, outcome.Document.ID, recorder.records[0].DocumentID)
}

func TestSubmitNoChangesShortCircuits(t *testing.T) {
	repo := newFakeRepo()
	svc, recorder := newTestService(repo)
	wf, err := svc.NewWorkflow(KindSalesBill)
	require.NoError(t, err)

	original := validDraft()
	original.ID = "doc-1"
	original.Normalize()
	repo.docs[original.ID] = original

	outcome, err := wf.Submit(context.Background(), &original, original)
	require.NoError(t, err)
	require.Equal(t, StateEditing, outcome.State)
	require.True(t, outcome.NoChanges)
	require.Equal(t, "No changes detected.", outcome.Message)
	require.Empty(t, recorder.records)
}

func TestSubmitBlockingWarningsCannotBeConfirmed(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	wf, err := svc.NewWorkflow(KindSalesBill)
	require.NoError(t, err)

	draft := validDraft()
	draft.Counterparty.Name = ""
	draft.LineItems = nil

	outcome, err := wf.Submit(context.Background(), nil, draft)
	require.NoError(t, err)
	require.Equal(t, StateAwaitingConfirmation, outcome.State)

	codes := make(map[string]bool)
	for _, warn := range outcome.Warnings {
		codes[warn.Code] = warn.Blocking
	}
	require.True(t, codes[WarnMissingCounterparty])
	require.True(t, codes[WarnZeroTotal])

	_, err = wf.Confirm(context.Background())
	require.ErrorIs(t, err, ErrValidationBlocked)
	require.Equal(t, StateEditing, wf.State())
}

func TestSubmitDuplicateNumberIsAdvisory(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)

	existing := validDraft()
	existing.ID = "doc-1"
	existing.Kind = KindSalesBill
	existing.Normalize()
	repo.docs[existing.ID] = existing

	wf, err := svc.NewWorkflow(KindSalesBill)
	require.NoError(t, err)

	draft := validDraft()
	draft.Counterparty.Name = "Bluestone Retail"

	outcome, err := wf.Submit(context.Background(), nil, draft)
	require.NoError(t, err)
	require.Equal(t, StateAwaitingConfirmation, outcome.State)

	codes := make(map[string]bool)
	for _, warn := range outcome.Warnings {
		codes[warn.Code] = true
		require.False(t, warn.Blocking)
	}
	require.True(t, codes[WarnDuplicateNumber])

	confirmed, err := wf.Confirm(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateSaved, confirmed.State)
}

func TestSubmitDuplicateCounterpartyAmount(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)

	existing := validDraft()
	existing.ID = "doc-1"
	existing.Kind = KindSalesBill
	existing.Normalize()
	repo.docs[existing.ID] = existing

	wf, err := svc.NewWorkflow(KindSalesBill)
	require.NoError(t, err)

	draft := validDraft()
	draft.DocumentNumber = "2"

	outcome, err := wf.Submit(context.Background(), nil, draft)
	require.NoError(t, err)
	require.Equal(t, StateAwaitingConfirmation, outcome.State)

	codes := make([]string, 0, len(outcome.Warnings))
	for _, warn := range outcome.Warnings {
		codes = append(codes, warn.Code)
	}
	require.Contains(t, codes, WarnDuplicateAmount)
}

func TestSubmitNumberOverrideOnCreate(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	wf, err := svc.NewWorkflow(KindSalesBill)
	require.NoError(t, err)

	draft := validDraft()
	draft.DocumentNumber = "41"

	outcome, err := wf.Submit(context.Background(), nil, draft)
	require.NoError(t, err)
	require.Equal(t, StateAwaitingConfirmation, outcome.State)
	require.Len(t, outcome.Warnings, 1)
	require.Equal(t, WarnNumberOverridden, outcome.Warnings[0].Code)
}

func TestSubmitFailureKeepsDraft(t *testing.T) {
	repo := newFakeRepo()
	repo.createErr = errors.New("store offline")
	svc, recorder := newTestService(repo)
	wf, err := svc.NewWorkflow(KindSalesBill)
	require.NoError(t, err)

	outcome, err := wf.Submit(context.Background(), nil, validDraft())
	require.Error(t, err)
	require.Equal(t, StateFailed, outcome.State)
	require.Equal(t, "store offline", outcome.Message)
	require.Empty(t, recorder.records)
}

// blockingRepo parks inside Create until released so a save can be held
// in flight mid-test.
type blockingRepo struct {
	*fakeRepo
	entered chan struct{}
	release chan struct{}
}

func (r *blockingRepo) Create(ctx context.Context, doc Document) (Document, error) {
	close(r.entered)
	<-r.release
	return r.fakeRepo.Create(ctx, doc)
}

func TestSubmitWhileSavingReturnsInFlight(t *testing.T) {
	repo := &blockingRepo{fakeRepo: newFakeRepo(), entered: make(chan struct{}), release: make(chan struct{})}
	recorder := &capturedRecord{}
	svc := NewService(repo, NewNumberGenerator(repo), recorder, nil)
	wf, err := svc.NewWorkflow(KindSalesBill)
	require.NoError(t, err)

	type result struct {
		outcome Outcome
		err     error
	}
	done := make(chan result, 1)
	go func() {
		outcome, err := wf.Submit(context.Background(), nil, validDraft())
		done <- result{outcome, err}
	}()

	<-repo.entered
	outcome, err := wf.Submit(context.Background(), nil, validDraft())
	require.ErrorIs(t, err, ErrSaveInFlight)
	require.Equal(t, StateSaving, outcome.State)

	// Releasing the store lets the first save finish untouched.
	close(repo.release)
	first := <-done
	require.NoError(t, first.err)
	require.Equal(t, StateSaved, first.outcome.State)
	require.Len(t, repo.docs, 1)
	require.Len(t, recorder.records, 1)
}

func TestCancelReturnsToEditing(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	wf, err := svc.NewWorkflow(KindSalesBill)
	require.NoError(t, err)

	draft := validDraft()
	draft.DocumentNumber = "41"
	outcome, err := wf.Submit(context.Background(), nil, draft)
	require.NoError(t, err)
	require.Equal(t, StateAwaitingConfirmation, outcome.State)

	cancelled := wf.Cancel()
	require.Equal(t, StateEditing, cancelled.State)

	_, err = wf.Confirm(context.Background())
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestNewWorkflowRejectsUnknownKind(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	_, err := svc.NewWorkflow(DocumentKind("INVOICE"))
	require.ErrorIs(t, err, ErrUnknownKind)
}
