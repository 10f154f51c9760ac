package api

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/mandantis/mandantis/internal/auth"
	"github.com/mandantis/mandantis/internal/metrics"
	"github.com/mandantis/mandantis/internal/tenant"
)

// Gate classifies every inbound request and enforces tenant routing rules
// before any handler runs. It makes routing decisions only: redirects and
// not-found responses, never data access.
type Gate struct {
	issuer   *auth.Issuer
	resolver *tenant.Resolver
	metrics  *metrics.Metrics
}

// NewGate creates the request gate. metrics may be nil in tests.
func NewGate(issuer *auth.Issuer, resolver *tenant.Resolver, m *metrics.Metrics) *Gate {
	return &Gate{issuer: issuer, resolver: resolver, metrics: m}
}

// Middleware applies the gate rules:
//
//   - /login and /signup with a live session redirect to that session's
//     tenant dashboard.
//   - /{slug}/dashboard/... requires a session bound to that slug; an
//     anonymous request is redirected to login with a returnTo parameter,
//     and a session for a different tenant is redirected to its own
//     dashboard. The demo tenant is reachable without a session.
//   - /{slug}/portal/... only requires the slug to resolve.
//   - Reserved top-level routes and everything else pass through.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		segs := pathSegments(r.URL.Path)
		if len(segs) == 0 {
			next.ServeHTTP(w, r)
			return
		}
		first := segs[0]

		if first == "login" || first == "signup" {
			if p := g.issuer.PrincipalFromRequest(r); p != nil && p.OrganizationSlug != "" {
				http.Redirect(w, r, "/"+p.OrganizationSlug+"/dashboard", http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		if tenant.IsReservedSlug(first) {
			next.ServeHTTP(w, r)
			return
		}

		if len(segs) < 2 || (segs[1] != "dashboard" && segs[1] != "portal") {
			next.ServeHTTP(w, r)
			return
		}

		org, err := g.resolver.Resolve(r.Context(), first)
		if err != nil {
			if errors.Is(err, tenant.ErrNotFound) {
				g.countResolution("miss")
				http.NotFound(w, r)
				return
			}
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if tenant.IsDemo(org.ID) {
			g.countResolution("demo")
		} else {
			g.countResolution("hit")
		}

		// The portal is the client-facing intake; no session needed.
		if segs[1] == "portal" {
			next.ServeHTTP(w, r)
			return
		}

		// Dashboard routes. The demo tenant is browsable anonymously.
		if tenant.IsDemo(org.ID) {
			next.ServeHTTP(w, r)
			return
		}

		p := g.issuer.PrincipalFromRequest(r)
		if p == nil || p.OrganizationSlug == "" {
			http.Redirect(w, r, "/login?returnTo="+url.QueryEscape(r.URL.RequestURI()), http.StatusFound)
			return
		}
		if p.OrganizationSlug != org.Slug {
			http.Redirect(w, r, "/"+p.OrganizationSlug+"/dashboard", http.StatusFound)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (g *Gate) countResolution(outcome string) {
	if g.metrics != nil {
		g.metrics.IncTenantResolution(outcome)
	}
}

func pathSegments(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
