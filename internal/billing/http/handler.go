// Package billinghttp exposes the billing document engine over JSON
// endpoints: collection reads, draft previews (totals, diff, revert),
// number suggestions, the save workflow with its confirmation round
// trip, and a live snapshot stream.
package billinghttp

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ledgerkite/ledgerkite/internal/billing"
	"github.com/ledgerkite/ledgerkite/internal/docstore"
	"github.com/ledgerkite/ledgerkite/internal/shared"
)

// pendingTTL bounds how long an unanswered confirmation is kept.
const pendingTTL = 15 * time.Minute

// Handler manages the billing document endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *billing.Service
	store    docstore.Store
	validate *validator.Validate

	mu      sync.Mutex
	pending map[string]*pendingSave
}

type pendingSave struct {
	workflow  *billing.SaveWorkflow
	createdAt time.Time
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *billing.Service, store docstore.Store) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:   logger,
		service:  service,
		store:    store,
		validate: validator.New(),
		pending:  make(map[string]*pendingSave),
	}
}

// kindSlugs maps URL segments to document kinds.
var kindSlugs = map[string]billing.DocumentKind{
	"sales-bills":    billing.KindSalesBill,
	"purchase-bills": billing.KindPurchaseBill,
	"quotations":     billing.KindQuotation,
}

// MountRoutes registers the billing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/{kind}", func(r chi.Router) {
		r.Get("/documents", h.listDocuments)
		r.Get("/documents/{id}", h.getDocument)
		r.Get("/next-number", h.nextNumber)
		r.Post("/preview/totals", h.previewTotals)
		r.Post("/preview/diff", h.previewDiff)
		r.Post("/preview/revert", h.revertField)
		r.Post("/documents", h.submitCreate)
		r.Put("/documents/{id}", h.submitUpdate)
		r.Delete("/documents/{id}", h.deleteDocument)
		r.Post("/saves/{token}/confirm", h.confirmSave)
		r.Post("/saves/{token}/cancel", h.cancelSave)
	})
}

// MountStream registers the long-lived snapshot stream. It is mounted
// separately so the request timeout middleware does not cut it off.
func (h *Handler) MountStream(r chi.Router) {
	r.Get("/{kind}/documents/stream", h.streamDocuments)
}

func (h *Handler) kind(w http.ResponseWriter, r *http.Request) (billing.DocumentKind, bool) {
	kind, ok := kindSlugs[chi.URLParam(r, "kind")]
	if !ok {
		h.writeError(w, http.StatusNotFound, "unknown document kind")
	}
	return kind, ok
}

func (h *Handler) listDocuments(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.kind(w, r)
	if !ok {
		return
	}
	companyID := r.URL.Query().Get("company_id")
	if companyID == "" {
		h.writeError(w, http.StatusBadRequest, "company_id is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	q := docstore.Query{
		OrderBy:   r.URL.Query().Get("order_by"),
		Direction: r.URL.Query().Get("direction"),
		Limit:     limit,
		Cursor:    r.URL.Query().Get("cursor"),
	}
	snap, err := h.store.List(r.Context(), docstore.Path{CompanyID: companyID, Kind: kind}, q)
	if err != nil {
		h.logger.Error("list documents", slog.Any("error", err))
		h.writeError(w, http.StatusInternalServerError, shared.UserSafeMessage(err))
		return
	}
	if snap.Documents == nil {
		snap.Documents = []billing.Document{}
	}
	h.writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) getDocument(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.kind(w, r)
	if !ok {
		return
	}
	companyID := r.URL.Query().Get("company_id")
	if companyID == "" {
		h.writeError(w, http.StatusBadRequest, "company_id is required")
		return
	}
	doc, err := h.service.Get(r.Context(), companyID, kind, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, shared.UserSafeMessage(shared.ErrNotFound))
			return
		}
		h.logger.Error("get document", slog.Any("error", err))
		h.writeError(w, http.StatusInternalServerError, shared.UserSafeMessage(err))
		return
	}
	h.writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) nextNumber(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.kind(w, r)
	if !ok {
		return
	}
	companyID := r.URL.Query().Get("company_id")
	if companyID == "" {
		h.writeError(w, http.StatusBadRequest, "company_id is required")
		return
	}
	fy := r.URL.Query().Get("financial_year")
	if fy == "" {
		fy = billing.FinancialYear(time.Now())
	}
	number, err := h.service.NextNumber(r.Context(), companyID, kind, fy)
	if err != nil {
		h.logger.Error("next number", slog.Any("error", err))
		h.writeError(w, http.StatusInternalServerError, shared.UserSafeMessage(err))
		return
	}
	h.writeJSON(w, http.StatusOK, NextNumberResponse{DocumentNumber: number, FinancialYear: fy})
}

func (h *Handler) previewTotals(w http.ResponseWriter, r *http.Request) {
	var req TotalsRequest
	if !h.decode(w, r, &req) {
		return
	}
	items := make([]billing.LineItem, 0, len(req.LineItems))
	for _, item := range req.LineItems {
		items = append(items, billing.LineItem{Quantity: item.Quantity, Rate: item.Rate})
	}
	totals := billing.ComputeTotals(items, req.TaxType)

	var resp TotalsResponse
	resp.TotalBeforeTax = totals.TotalBeforeTax.InexactFloat64()
	resp.TotalGST = totals.TotalGST.InexactFloat64()
	resp.RoundUp = totals.RoundUp.InexactFloat64()
	resp.TotalAmount = totals.TotalAmount.InexactFloat64()
	resp.TaxLabel = billing.TaxLabel(req.TaxType)
	resp.Display.TotalBeforeTax = billing.FormatAmount(totals.TotalBeforeTax)
	resp.Display.TotalGST = billing.FormatAmount(totals.TotalGST)
	resp.Display.RoundUp = billing.FormatAmount(totals.RoundUp)
	resp.Display.TotalAmount = billing.FormatAmount(totals.TotalAmount)
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) previewDiff(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.kind(w, r)
	if !ok {
		return
	}
	var req DiffRequest
	if !h.decode(w, r, &req) {
		return
	}
	original := req.Original.ToDocument(kind)
	current := req.Current.ToDocument(kind)
	changes := billing.Diff(&original, &current, billing.StrategyForKind(kind))
	if changes == nil {
		changes = []billing.ChangeRecord{}
	}
	h.writeJSON(w, http.StatusOK, DiffResponse{Changes: changes, Dirty: len(changes) > 0})
}

func (h *Handler) revertField(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.kind(w, r)
	if !ok {
		return
	}
	var req RevertRequest
	if !h.decode(w, r, &req) {
		return
	}
	reverted := billing.RevertField(req.Original.ToDocument(kind), req.Current.ToDocument(kind), req.Field)
	h.writeJSON(w, http.StatusOK, reverted)
}

func (h *Handler) submitCreate(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.kind(w, r)
	if !ok {
		return
	}
	var req SubmitRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.runSubmit(w, r, kind, nil, req.Document.ToDocument(kind))
}

func (h *Handler) submitUpdate(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.kind(w, r)
	if !ok {
		return
	}
	var req SubmitRequest
	if !h.decode(w, r, &req) {
		return
	}
	draft := req.Document.ToDocument(kind)
	draft.ID = chi.URLParam(r, "id")
	if draft.IsDraft() {
		h.writeError(w, http.StatusBadRequest, "document id is required")
		return
	}

	original, err := h.service.Get(r.Context(), draft.CompanyID, kind, draft.ID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, shared.UserSafeMessage(shared.ErrNotFound))
			return
		}
		h.logger.Error("load original", slog.Any("error", err))
		h.writeError(w, http.StatusInternalServerError, shared.UserSafeMessage(err))
		return
	}
	h.runSubmit(w, r, kind, &original, draft)
}

func (h *Handler) runSubmit(w http.ResponseWriter, r *http.Request, kind billing.DocumentKind, original *billing.Document, draft billing.Document) {
	workflow, err := h.service.NewWorkflow(kind)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	outcome, err := workflow.Submit(r.Context(), original, draft)
	if err != nil {
		h.writeWorkflowError(w, outcome, err)
		return
	}

	resp := SubmitResponse{Outcome: outcome}
	if outcome.State == billing.StateAwaitingConfirmation {
		token := uuid.NewString()
		h.mu.Lock()
		h.prunePendingLocked()
		h.pending[token] = &pendingSave{workflow: workflow, createdAt: time.Now()}
		h.mu.Unlock()
		resp.Token = token
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) confirmSave(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	pending := h.takePending(token, false)
	if pending == nil {
		h.writeError(w, http.StatusNotFound, "no pending save for token")
		return
	}
	outcome, err := pending.workflow.Confirm(r.Context())
	if err != nil {
		if errors.Is(err, billing.ErrValidationBlocked) {
			h.removePending(token)
			h.writeJSON(w, http.StatusUnprocessableEntity, SubmitResponse{Outcome: outcome})
			return
		}
		h.writeWorkflowError(w, outcome, err)
		return
	}
	h.removePending(token)
	h.writeJSON(w, http.StatusOK, SubmitResponse{Outcome: outcome})
}

func (h *Handler) cancelSave(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	pending := h.takePending(token, true)
	if pending == nil {
		h.writeError(w, http.StatusNotFound, "no pending save for token")
		return
	}
	h.writeJSON(w, http.StatusOK, SubmitResponse{Outcome: pending.workflow.Cancel()})
}

func (h *Handler) deleteDocument(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.kind(w, r)
	if !ok {
		return
	}
	companyID := r.URL.Query().Get("company_id")
	if companyID == "" {
		h.writeError(w, http.StatusBadRequest, "company_id is required")
		return
	}
	err := h.service.Delete(r.Context(), companyID, kind, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, shared.UserSafeMessage(shared.ErrNotFound))
			return
		}
		h.logger.Error("delete document", slog.Any("error", err))
		h.writeError(w, http.StatusInternalServerError, shared.UserSafeMessage(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeWorkflowError(w http.ResponseWriter, outcome billing.Outcome, err error) {
	switch {
	case errors.Is(err, billing.ErrSaveInFlight):
		h.writeError(w, http.StatusConflict, "a save is already in progress")
	case errors.Is(err, billing.ErrInvalidState):
		h.writeError(w, http.StatusConflict, "the save workflow is not awaiting confirmation")
	case errors.Is(err, docstore.ErrConflict):
		h.writeError(w, http.StatusConflict, "the document was changed by someone else; reload and try again")
	default:
		h.logger.Error("save workflow", slog.Any("error", err), slog.String("state", string(outcome.State)))
		h.writeError(w, http.StatusInternalServerError, shared.UserSafeMessage(err))
	}
}

func (h *Handler) takePending(token string, remove bool) *pendingSave {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.prunePendingLocked()
	pending, ok := h.pending[token]
	if !ok {
		return nil
	}
	if remove {
		delete(h.pending, token)
	}
	return pending
}

func (h *Handler) removePending(token string) {
	h.mu.Lock()
	delete(h.pending, token)
	h.mu.Unlock()
}

func (h *Handler) prunePendingLocked() {
	cutoff := time.Now().Add(-pendingTTL)
	for token, pending := range h.pending {
		if pending.createdAt.Before(cutoff) {
			delete(h.pending, token)
		}
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, "malformed request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", slog.Any("error", err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, ErrorResponse{Error: msg})
}
