package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orgbase/orgbase/internal/apperrors"
	"github.com/orgbase/orgbase/internal/audit"
	"github.com/orgbase/orgbase/internal/auth"
	"github.com/orgbase/orgbase/internal/config"
	"github.com/orgbase/orgbase/internal/invites"
	"github.com/orgbase/orgbase/internal/mailer"
	"github.com/orgbase/orgbase/internal/orgs"
	"github.com/orgbase/orgbase/internal/users"
)

// NewRouter creates and configures the Chi router with all middleware and routes
func NewRouter(pool *pgxpool.Pool, cfg *config.Config, sender mailer.Sender) *chi.Mux {
	r := chi.NewRouter()

	isProduction := !cfg.IsDev()

	// Middleware stack
	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.BaseURL},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(auth.Middleware(cfg.JWTSecret))

	// Audit writer (shared across API routes)
	auditor := audit.NewWriter(pool)

	// Health check routes (no authentication required)
	r.Get("/healthz", handleHealthz)
	r.Get("/readyz", handleReadyz(pool))

	// API routes - Authentication
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/register", auth.HandleRegister(pool, auditor, cfg.JWTSecret, cfg.SessionDays, isProduction))

		// Login with rate limiting per IP
		r.With(LoginRateLimitMiddleware(cfg.LoginRateLimitRPM)).
			Post("/login", auth.HandleLogin(pool, auditor, cfg.JWTSecret, cfg.SessionDays, isProduction))

		r.With(auth.RequireAuth).Post("/logout", auth.HandleLogout)
	})

	// API routes - Organizations (require authentication)
	r.Route("/api/v1/orgs", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(CSRFMiddleware(isProduction))
		r.Use(auth.RequireAuth)

		// Organization CRUD
		r.Post("/", orgs.HandleCreate(pool, auditor))
		r.Get("/", orgs.HandleList(pool))
		r.Get("/{org_id}", orgs.HandleGet(pool))
		r.Patch("/{org_id}", orgs.HandleUpdate(pool, auditor))
		r.Delete("/{org_id}", orgs.HandleDelete(pool, auditor))

		// Organization members
		r.Get("/{org_id}/members", orgs.HandleListMembers(pool))
		r.Delete("/{org_id}/members/{member_id}", orgs.HandleRemoveMember(pool, auditor))

		// Invitations scoped under the organization
		r.Post("/{org_id}/invites", invites.HandleCreateForOrg(pool, cfg, auditor, sender))
		r.Get("/{org_id}/invites", invites.HandleList(pool, cfg))

		// Audit trail
		r.Get("/{org_id}/audit", orgs.HandleListAudit(pool))
	})

	// API routes - Invitations (flat surface, equivalent to the org-scoped one)
	r.Route("/api/v1/invites", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(CSRFMiddleware(isProduction))
		r.Use(auth.RequireAuth)

		r.Post("/", invites.HandleCreate(pool, cfg, auditor, sender))
		r.Delete("/{invite_id}", invites.HandleCancel(pool, cfg, auditor))
		r.Post("/accept", invites.HandleAccept(pool, cfg, auditor))
	})

	// API routes - Current user
	r.Route("/api/v1/user", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(CSRFMiddleware(isProduction))
		r.Use(auth.RequireAuth)

		r.Get("/profile", users.HandleGetProfile(pool))
		r.Patch("/profile", users.HandleUpdateProfile(pool, auditor))
		r.Get("/orgs", users.HandleListUserOrgs(pool))
	})

	return r
}

// handleHealthz returns a simple liveness check
// Always returns 200 OK if the service is running
func handleHealthz(w http.ResponseWriter, r *http.Request) {
	apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// handleReadyz returns a readiness check that includes database connectivity
// Returns 200 OK if service is ready to accept traffic, 503 if not
func handleReadyz(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			apperrors.WriteServiceUnavailable(w, r, "Database connection failed")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{
			"status": "ready",
			"db":     "ok",
		})
	}
}
