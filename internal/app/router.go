package app

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ledgerkite/ledgerkite/internal/audit"
	billinghttp "github.com/ledgerkite/ledgerkite/internal/billing/http"
	"github.com/ledgerkite/ledgerkite/internal/shared"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	BillingHandler *billinghttp.Handler
	AuditHandler   *audit.HTTPHandler
}

// NewRouter constructs the chi.Router with LedgerKite defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Identity provisioning happens outside this system; these endpoints
	// only carry an already-authenticated user into the session so saves
	// can stamp updated_by.
	r.Route("/session", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			sess := shared.SessionFromContext(r.Context())
			user := ""
			if sess != nil {
				user = sess.User()
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]string{"user_id": user})
		})
		r.Put("/", func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				UserID string `json:"user_id"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.UserID == "" {
				http.Error(w, `{"error":"user_id is required"}`, http.StatusBadRequest)
				return
			}
			sess := shared.SessionFromContext(r.Context())
			if sess == nil {
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			sess.SetUser(body.UserID)
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]string{"user_id": body.UserID})
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(RequestTimeout(params.Config))
			params.BillingHandler.MountRoutes(r)
			if params.AuditHandler != nil {
				params.AuditHandler.MountRoutes(r)
			}
		})
		params.BillingHandler.MountStream(r)
	})

	return r
}
