package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mandantis/mandantis/internal/audit"
	"github.com/mandantis/mandantis/internal/auth"
	"github.com/mandantis/mandantis/internal/metrics"
	"github.com/mandantis/mandantis/internal/ratelimit"
	"github.com/mandantis/mandantis/internal/submission"
	"github.com/mandantis/mandantis/internal/tenant"
	"github.com/mandantis/mandantis/internal/user"
)

// RouterDeps holds all dependencies for the HTTP router.
type RouterDeps struct {
	Orgs        *tenant.Store
	Users       *user.Store
	Submissions *submission.Store
	Resolver    *tenant.Resolver
	Issuer      *auth.Issuer
	Limiter     *ratelimit.LoginLimiter
	Recorder    *audit.Recorder
	Pool        *pgxpool.Pool
	Metrics     *metrics.Metrics
	UI          http.Handler

	AllowedOrigins []string
	ResetTokenTTL  time.Duration
	ExposeErrors   bool
}

// NewRouter builds the chi router with all routes and middleware.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chimw.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(secureHeaders)
	r.Use(slogRequestLogger)
	if deps.Metrics != nil {
		r.Use(metricsMiddleware(deps.Metrics))
	}

	gate := NewGate(deps.Issuer, deps.Resolver, deps.Metrics)
	r.Use(gate.Middleware)

	var auditDB audit.Execer
	if deps.Pool != nil {
		auditDB = deps.Pool
	}

	// Handlers.
	authH := newAuthHandler(
		user.NewAuthAdapter(deps.Users),
		deps.Users,
		deps.Issuer,
		deps.Limiter,
		deps.Recorder,
		auditDB,
		deps.Metrics,
		deps.ResetTokenTTL,
		deps.ExposeErrors,
	)
	orgH := newOrgHandler(deps.Orgs, deps.Users, deps.Resolver, deps.Issuer, deps.Recorder, auditDB, deps.ExposeErrors)
	memberH := newMemberHandler(deps.Users, deps.Resolver, deps.Recorder, deps.ExposeErrors)
	subH := newSubmissionHandler(deps.Submissions, deps.Resolver, deps.Recorder, deps.Metrics, deps.ExposeErrors)
	exportH := newExportHandler(deps.Submissions, deps.Resolver, deps.Recorder, deps.Metrics, deps.ExposeErrors)

	// Health check.
	r.Get("/health", healthHandler(deps.Pool))

	// Metrics summary.
	if deps.Metrics != nil {
		r.Get("/metrics", deps.Metrics.Handler())
	}

	// API routes.
	r.Route("/api/v1", func(ar chi.Router) {
		ar.Use(csrfMiddleware(deps.AllowedOrigins))

		ar.Post("/auth/login", authH.Login)
		ar.Post("/auth/logout", authH.Logout)
		ar.Post("/auth/forgot-password", authH.ForgotPassword)
		ar.Post("/auth/reset-password", authH.ResetPassword)
		ar.With(auth.SessionMiddleware(deps.Issuer)).Get("/auth/me", authH.Me)

		ar.Post("/orgs", orgH.Register)

		// Org-scoped routes. The session is optional at the middleware
		// level because the demo tenant's reads are anonymous; every
		// handler enforces its own access rules against the resolved
		// organization.
		ar.Route("/orgs/{slug}", func(or chi.Router) {
			or.Use(auth.OptionalSessionMiddleware(deps.Issuer))

			or.Get("/settings", orgH.GetSettings)
			or.Patch("/settings", orgH.UpdateSettings)

			or.Get("/members", memberH.List)
			or.Patch("/members/{id}", memberH.UpdateRole)
			or.Delete("/members/{id}", memberH.Delete)

			or.Get("/submissions", subH.List)
			or.Post("/submissions", subH.Create)
			or.Get("/submissions/{id}", subH.Get)
			or.Patch("/submissions/{id}", subH.Update)

			or.Get("/exports", exportH.List)
			or.Post("/exports", exportH.Create)
		})
	})

	// App shell pages, all gated above.
	if deps.UI != nil {
		r.Get("/", deps.UI.ServeHTTP)
		r.Get("/login", deps.UI.ServeHTTP)
		r.Get("/signup", deps.UI.ServeHTTP)
		r.Get("/{slug}/dashboard", deps.UI.ServeHTTP)
		r.Get("/{slug}/dashboard/*", deps.UI.ServeHTTP)
		r.Get("/{slug}/portal", deps.UI.ServeHTTP)
		r.Get("/{slug}/portal/*", deps.UI.ServeHTTP)
	}

	return r
}

// healthHandler reports liveness and database reachability.
func healthHandler(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		database := "connected"
		code := http.StatusOK

		if pool != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := pool.Ping(ctx); err != nil {
				status = "degraded"
				database = "unreachable"
				code = http.StatusServiceUnavailable
			}
		}

		writeJSON(w, code, map[string]string{
			"status":   status,
			"database": database,
		})
	}
}
