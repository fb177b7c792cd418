// Package server wires the REST API the dashboard consumes.
package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"infrabondx/internal/fraud"
	"infrabondx/internal/ledger"
	"infrabondx/internal/store"
	"infrabondx/pkg/authn"
	"infrabondx/pkg/domain"
	"infrabondx/pkg/httpx"
)

type Server struct {
	store  *store.Store
	ledger *ledger.Ledger
	auth   *authn.Service
	fraud  *fraud.Engine
	log    *zap.Logger
}

func New(st *store.Store, lg *ledger.Ledger, auth *authn.Service, fr *fraud.Engine, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{store: st, ledger: lg, auth: auth, fraud: fr, log: log}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(chimw.Recoverer)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, 200, map[string]any{
			"message": "InfraBondX backend running",
			"try":     []string{"/api/health", "/api/projects"},
		})
	})

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			httpx.WriteJSON(w, 200, map[string]any{"status": "ok", "app": "InfraBondX Backend"})
		})

		api.Post("/auth/login", s.handleLogin)
		api.Group(func(g chi.Router) {
			g.Use(s.auth.Middleware)
			g.Get("/auth/me", s.handleMe)
		})

		api.Get("/projects", s.handleListProjects)
		api.Get("/projects/{project_id}", s.handleProjectDetails)
		api.Get("/projects/{project_id}/milestones", s.handleProjectMilestones)
		api.Get("/projects/{project_id}/transparency", s.handleTransparency)

		api.Route("/investor", func(g chi.Router) {
			g.Use(s.auth.Middleware)
			g.With(authn.RequireRole(domain.RoleInvestor)).Post("/invest", s.handleInvest)
			g.Get("/portfolio", s.handlePortfolio)
			g.Get("/transactions", s.handleTransactions)
			g.Get("/certificate/{project_id}", s.handleCertificate)
		})

		api.Route("/marketplace", func(g chi.Router) {
			g.Get("/listings", s.handleListings)
			g.Group(func(auth chi.Router) {
				auth.Use(s.auth.Middleware)
				auth.Post("/list", s.handleCreateListing)
				auth.Post("/buy", s.handleBuyListing)
				auth.Post("/listings/{listing_id}/cancel", s.handleCancelListing)
			})
		})

		api.Route("/issuer", func(g chi.Router) {
			g.Use(s.auth.Middleware)
			g.Use(authn.RequireRole(domain.RoleIssuer))
			g.Post("/projects", s.handleIssuerCreateProject)
			g.Get("/projects", s.handleIssuerProjects)
			g.Post("/milestones/{milestone_id}/submit", s.handleSubmitProof)
		})

		api.Route("/admin", func(g chi.Router) {
			g.Use(s.auth.Middleware)
			g.Use(authn.RequireRole(domain.RoleAdmin))
			g.Get("/projects", s.handleAdminProjects)
			g.Get("/projects/{project_id}/details", s.handleAdminProjectDetails)
			g.Post("/projects/{project_id}/status", s.handleAdminProjectStatus)
			g.Get("/projects/{project_id}/events", s.handleAdminProjectEvents)
			g.Post("/milestones/{milestone_id}/verify", s.handleVerifyMilestone)
			g.Get("/fraud-alerts", s.handleFraudAlerts)
		})
	})

	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)))
		})
	}
}

// writeDomainError maps ledger and store errors onto the API error envelope.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		httpx.WriteError(w, 404, "NOT_FOUND", "resource not found", nil)
	case errors.Is(err, ledger.ErrProjectNotActive):
		httpx.WriteError(w, 400, "PROJECT_NOT_ACTIVE", err.Error(), nil)
	case errors.Is(err, ledger.ErrAmountTooLow):
		httpx.WriteError(w, 400, "AMOUNT_TOO_LOW", err.Error(), nil)
	case errors.Is(err, ledger.ErrInsufficientTokens):
		httpx.WriteError(w, 400, "NOT_ENOUGH_TOKENS", err.Error(), nil)
	case errors.Is(err, ledger.ErrInvalidListing):
		httpx.WriteError(w, 400, "INVALID_LISTING", err.Error(), nil)
	case errors.Is(err, ledger.ErrListingUnavailable):
		httpx.WriteError(w, 400, "LISTING_UNAVAILABLE", err.Error(), nil)
	case errors.Is(err, ledger.ErrOwnListing):
		httpx.WriteError(w, 400, "OWN_LISTING", err.Error(), nil)
	case errors.Is(err, ledger.ErrNotListingOwner), errors.Is(err, ledger.ErrNotProjectIssuer):
		httpx.WriteError(w, 403, "FORBIDDEN", err.Error(), nil)
	case errors.Is(err, ledger.ErrProofRequired):
		httpx.WriteError(w, 400, "PROOF_REQUIRED", err.Error(), nil)
	case errors.Is(err, ledger.ErrMissingFields):
		httpx.WriteError(w, 400, "MISSING_FIELDS", err.Error(), nil)
	case errors.Is(err, ledger.ErrInvalidTerms):
		httpx.WriteError(w, 400, "INVALID_TERMS", err.Error(), nil)
	case errors.Is(err, domain.ErrPlanEmptyTitle),
		errors.Is(err, domain.ErrPlanBadPercent),
		errors.Is(err, domain.ErrPlanOverCommitted):
		httpx.WriteError(w, 400, "INVALID_PLAN", err.Error(), nil)
	case errors.Is(err, domain.ErrMilestoneCompleted):
		httpx.WriteError(w, 409, "MILESTONE_COMPLETED", err.Error(), nil)
	case errors.Is(err, domain.ErrMilestoneNotSubmitted):
		httpx.WriteError(w, 409, "MILESTONE_NOT_SUBMITTED", err.Error(), nil)
	case errors.Is(err, store.ErrIdempotencyConflict):
		httpx.WriteError(w, 409, "IDEMPOTENCY_CONFLICT", err.Error(), nil)
	default:
		httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
	}
}
