package audit

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// HTTPHandler serves the audit trail read endpoint.
type HTTPHandler struct {
	logger *slog.Logger
	repo   *Repository
}

func NewHTTPHandler(logger *slog.Logger, repo *Repository) *HTTPHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPHandler{logger: logger, repo: repo}
}

func (h *HTTPHandler) MountRoutes(r chi.Router) {
	r.Get("/audit-trail", h.recent)
}

func (h *HTTPHandler) recent(w http.ResponseWriter, r *http.Request) {
	companyID := r.URL.Query().Get("company_id")
	if companyID == "" {
		http.Error(w, `{"error":"company_id is required"}`, http.StatusBadRequest)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.repo.Recent(r.Context(), companyID, limit)
	if err != nil {
		h.logger.Error("load audit trail", slog.Any("error", err))
		http.Error(w, `{"error":"something went wrong"}`, http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []Entry{}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"entries": entries}); err != nil {
		h.logger.Error("encode audit trail", slog.Any("error", err))
	}
}
