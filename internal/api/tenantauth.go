package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mandantis/mandantis/internal/auth"
	"github.com/mandantis/mandantis/internal/tenant"
)

// orgFromRequest resolves the {slug} URL parameter to an organization.
// An unknown slug is a definite 404.
func orgFromRequest(w http.ResponseWriter, r *http.Request, resolver *tenant.Resolver) (*tenant.Organization, bool) {
	slug := chi.URLParam(r, "slug")
	org, err := resolver.Resolve(r.Context(), slug)
	if err != nil {
		if errors.Is(err, tenant.ErrNotFound) {
			writeError(w, http.StatusNotFound, "organization not found")
		} else {
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return nil, false
	}
	return org, true
}

// readAccess authorizes a read against org. The demo tenant is readable
// without a session. Otherwise the session's organization id must match;
// a foreign tenant is indistinguishable from an absent one.
func readAccess(w http.ResponseWriter, r *http.Request, org *tenant.Organization) (*auth.Principal, bool) {
	p := auth.PrincipalFromContext(r.Context())
	if tenant.IsDemo(org.ID) {
		return p, true
	}
	if p == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return nil, false
	}
	if p.OrganizationID != org.ID {
		writeError(w, http.StatusNotFound, "organization not found")
		return nil, false
	}
	return p, true
}

// writeAccess authorizes a mutation against org. The demo check runs first
// so a demo mutation is always answered with the read-only error before
// any other processing.
func writeAccess(w http.ResponseWriter, r *http.Request, org *tenant.Organization) (*auth.Principal, bool) {
	if tenant.IsDemo(org.ID) {
		writeError(w, http.StatusForbidden, "demo workspace is read-only")
		return nil, false
	}
	return readAccess(w, r, org)
}

// requireManager rejects principals outside the owner/admin set with a
// permissions failure distinct from an authentication failure.
func requireManager(w http.ResponseWriter, p *auth.Principal) bool {
	if !p.CanManageOrg() {
		writeError(w, http.StatusForbidden, "insufficient permissions")
		return false
	}
	return true
}
