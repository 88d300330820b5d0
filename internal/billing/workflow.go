package billing

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ledgerkite/ledgerkite/internal/shared"
)

// SaveState enumerates the save workflow states.
type SaveState string

const (
	StateEditing              SaveState = "EDITING"
	StateValidating           SaveState = "VALIDATING"
	StateAwaitingConfirmation SaveState = "AWAITING_CONFIRMATION"
	StateSaving               SaveState = "SAVING"
	StateSaved                SaveState = "SAVED"
	StateFailed               SaveState = "FAILED"
)

// Warning codes raised during validation.
const (
	WarnMissingCounterparty = "MISSING_COUNTERPARTY"
	WarnZeroTotal           = "ZERO_TOTAL"
	WarnDuplicateNumber     = "DUPLICATE_NUMBER"
	WarnDuplicateAmount     = "DUPLICATE_AMOUNT"
	WarnNumberOverridden    = "NUMBER_OVERRIDDEN"
)

// Warning is one validation finding presented to the user before a
// risky save. Blocking warnings cannot be overridden with "save
// anyway"; the others are advisory and confirmable. The severity split
// otherwise lives in the message wording, not in separate flows.
type Warning struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Blocking bool   `json:"blocking"`
}

// Outcome reports the result of a workflow step.
type Outcome struct {
	State     SaveState `json:"state"`
	NoChanges bool      `json:"no_changes,omitempty"`
	Warnings  []Warning `json:"warnings,omitempty"`
	Message   string    `json:"message,omitempty"`
	Document  *Document `json:"document,omitempty"`
}

// SaveWorkflow drives one document editing session through
// Editing → Validating → {AwaitingConfirmation | Saving} → {Saved |
// Failed}. A failure of any step leaves the user's draft intact: the
// workflow never discards edits, it only refuses to persist them.
type SaveWorkflow struct {
	svc  *Service
	kind DocumentKind

	mu       sync.Mutex
	state    SaveState
	original *Document
	draft    Document
	warnings []Warning
}

func newSaveWorkflow(svc *Service, kind DocumentKind) *SaveWorkflow {
	return &SaveWorkflow{svc: svc, kind: kind, state: StateEditing}
}

// State returns the current workflow state.
func (w *SaveWorkflow) State() SaveState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Submit validates a draft against its original (nil for a new
// document) and either saves directly, stops for confirmation, or
// short-circuits when nothing changed. Submitting while a save is in
// flight returns ErrSaveInFlight and does not disturb the running save.
func (w *SaveWorkflow) Submit(ctx context.Context, original *Document, draft Document) (Outcome, error) {
	w.mu.Lock()
	if w.state == StateSaving {
		w.mu.Unlock()
		return Outcome{State: StateSaving}, ErrSaveInFlight
	}
	w.state = StateValidating
	draft.Kind = w.kind
	draft.Normalize()
	w.original = original
	w.draft = draft
	w.mu.Unlock()

	if original != nil {
		if len(Diff(original, &draft, StrategyForKind(w.kind))) == 0 {
			w.setState(StateEditing)
			return Outcome{State: StateEditing, NoChanges: true, Message: "No changes detected."}, nil
		}
	}

	warnings, err := w.validate(ctx, original, &draft)
	if err != nil {
		// Transport failure during validation: surface it, stay editing.
		w.setState(StateEditing)
		return Outcome{State: StateEditing}, err
	}

	if len(warnings) > 0 {
		w.mu.Lock()
		w.state = StateAwaitingConfirmation
		w.warnings = warnings
		w.mu.Unlock()
		return Outcome{State: StateAwaitingConfirmation, Warnings: warnings}, nil
	}
	return w.save(ctx)
}

// Confirm proceeds with the save the user was warned about. Blocking
// validation failures cannot be confirmed away; the workflow returns to
// Editing so the user can fix the draft.
func (w *SaveWorkflow) Confirm(ctx context.Context) (Outcome, error) {
	w.mu.Lock()
	if w.state != StateAwaitingConfirmation {
		w.mu.Unlock()
		return Outcome{State: w.state}, ErrInvalidState
	}
	for _, warn := range w.warnings {
		if warn.Blocking {
			w.state = StateEditing
			w.mu.Unlock()
			return Outcome{State: StateEditing, Warnings: w.warnings}, ErrValidationBlocked
		}
	}
	w.mu.Unlock()
	return w.save(ctx)
}

// Cancel abandons a pending confirmation and returns to Editing with
// the draft untouched.
func (w *SaveWorkflow) Cancel() Outcome {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StateAwaitingConfirmation || w.state == StateValidating {
		w.state = StateEditing
		w.warnings = nil
	}
	return Outcome{State: w.state}
}

func (w *SaveWorkflow) setState(s SaveState) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

// validate runs the pre-save checks. Duplicate document number,
// duplicate counterparty and amount, and a manually overridden
// suggested number are advisory; a missing counterparty or a zero total
// must be fixed.
func (w *SaveWorkflow) validate(ctx context.Context, original, draft *Document) ([]Warning, error) {
	var warnings []Warning

	if draft.Counterparty.Name == "" {
		warnings = append(warnings, Warning{
			Code:     WarnMissingCounterparty,
			Message:  "A customer or supplier is required before saving.",
			Blocking: true,
		})
	}
	if draft.TotalAmount == 0 {
		warnings = append(warnings, Warning{
			Code:     WarnZeroTotal,
			Message:  "The total amount is zero. Add at least one line item.",
			Blocking: true,
		})
	}

	scope, err := w.svc.repo.ListScope(ctx, draft.CompanyID, w.kind)
	if err != nil {
		return nil, fmt.Errorf("billing: pre-save checks: %w", err)
	}
	for _, existing := range scope {
		if existing.ID == draft.ID {
			continue
		}
		if existing.FinancialYear != draft.FinancialYear {
			continue
		}
		if existing.DocumentNumber == draft.DocumentNumber {
			warnings = append(warnings, Warning{
				Code:    WarnDuplicateNumber,
				Message: fmt.Sprintf("Document number %s already exists in %s. Saving will create a duplicate number.", draft.DocumentNumber, draft.FinancialYear),
			})
			break
		}
	}
	for _, existing := range scope {
		if existing.ID == draft.ID {
			continue
		}
		if existing.Counterparty.Name == draft.Counterparty.Name && existing.TotalAmount == draft.TotalAmount && draft.TotalAmount != 0 {
			warnings = append(warnings, Warning{
				Code:    WarnDuplicateAmount,
				Message: fmt.Sprintf("A document for %s with the same amount already exists.", draft.Counterparty.Name),
			})
			break
		}
	}

	// The suggested-number check applies to new documents; edited
	// documents already own their number, and a changed number is
	// caught by the duplicate check above.
	if original == nil {
		suggested, err := w.svc.numbers.NextNumber(ctx, draft.CompanyID, w.kind, draft.FinancialYear)
		if err != nil {
			return nil, err
		}
		if draft.DocumentNumber != "" && draft.DocumentNumber != suggested {
			warnings = append(warnings, Warning{
				Code:    WarnNumberOverridden,
				Message: fmt.Sprintf("The document number was changed from the suggested %s to %s.", suggested, draft.DocumentNumber),
			})
		}
	}
	return warnings, nil
}

// save recomputes the derived fields one final time and writes the
// document through. Success triggers the audit trail; failure keeps the
// draft and surfaces the store error verbatim.
func (w *SaveWorkflow) save(ctx context.Context) (Outcome, error) {
	w.mu.Lock()
	if w.state == StateSaving {
		w.mu.Unlock()
		return Outcome{State: StateSaving}, ErrSaveInFlight
	}
	w.state = StateSaving
	original := w.original
	draft := w.draft
	w.mu.Unlock()

	draft.Normalize()
	draft.UpdatedBy = shared.IdentityFromContext(ctx).UserID

	var (
		saved Document
		err   error
	)
	if original == nil {
		saved, err = w.svc.repo.Create(ctx, draft)
	} else {
		saved, err = w.svc.repo.Replace(ctx, draft)
	}
	if err != nil {
		w.setState(StateFailed)
		return Outcome{State: StateFailed, Message: shared.UserSafeMessage(err)}, err
	}

	w.recordAudit(ctx, original, saved)
	w.setState(StateSaved)
	return Outcome{State: StateSaved, Document: &saved}, nil
}

func (w *SaveWorkflow) recordAudit(ctx context.Context, original *Document, saved Document) {
	if w.svc.recorder == nil {
		return
	}
	var changes []ChangeRecord
	if original != nil {
		changes = Diff(original, &saved, StrategyForKind(w.kind))
	}
	rec := SaveRecord{
		DocumentID:     saved.ID,
		CompanyID:      saved.CompanyID,
		Kind:           w.kind,
		DocumentNumber: saved.DocumentNumber,
		Actor:          saved.UpdatedBy,
		Changes:        changes,
		SavedAt:        time.Now().UTC(),
	}
	if err := w.svc.recorder.RecordSave(ctx, rec); err != nil {
		w.svc.logger.Warn("billing: record save", slog.Any("error", err))
	}
}
