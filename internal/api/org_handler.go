package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/mandantis/mandantis/internal/audit"
	"github.com/mandantis/mandantis/internal/auth"
	"github.com/mandantis/mandantis/internal/tenant"
	"github.com/mandantis/mandantis/internal/user"
)

// orgStore covers the organization operations the handlers perform.
type orgStore interface {
	GetBySlug(ctx context.Context, slug string) (*tenant.Organization, error)
	Create(ctx context.Context, in tenant.CreateOrganizationInput) (*tenant.Organization, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	UpdateSettingsTx(ctx context.Context, tx pgx.Tx, id string, settings map[string]any) (*tenant.Organization, error)
}

// ownerCreator creates the initial owner account at registration.
type ownerCreator interface {
	Create(ctx context.Context, in user.CreateUserInput) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
}

// orgHandler groups registration and settings endpoints.
type orgHandler struct {
	orgs      orgStore
	owners    ownerCreator
	resolver  *tenant.Resolver
	issuer    *auth.Issuer
	recorder  *audit.Recorder
	auditDB   audit.Execer
	exposeErr bool
}

func newOrgHandler(
	orgs orgStore,
	owners ownerCreator,
	resolver *tenant.Resolver,
	issuer *auth.Issuer,
	recorder *audit.Recorder,
	auditDB audit.Execer,
	exposeErr bool,
) *orgHandler {
	return &orgHandler{
		orgs:      orgs,
		owners:    owners,
		resolver:  resolver,
		issuer:    issuer,
		recorder:  recorder,
		auditDB:   auditDB,
		exposeErr: exposeErr,
	}
}

// Register handles POST /api/v1/orgs. It creates the organization and its
// owner account, then signs the owner in.
func (h *orgHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrganizationName string `json:"organizationName"`
		Subdomain        string `json:"subdomain"`
		Name             string `json:"name"`
		Email            string `json:"email"`
		Password         string `json:"password"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse request body")
		return
	}

	req.Subdomain = strings.ToLower(strings.TrimSpace(req.Subdomain))
	switch {
	case strings.TrimSpace(req.OrganizationName) == "":
		writeFieldError(w, http.StatusBadRequest, "organization name is required", "organizationName")
		return
	case !tenant.ValidSlug(req.Subdomain):
		writeFieldError(w, http.StatusBadRequest, "subdomain must be 3-40 lowercase letters, digits or hyphens and not a reserved word", "subdomain")
		return
	case strings.TrimSpace(req.Name) == "":
		writeFieldError(w, http.StatusBadRequest, "name is required", "name")
		return
	case req.Email == "":
		writeFieldError(w, http.StatusBadRequest, "email is required", "email")
		return
	case len(req.Password) < 8:
		writeFieldError(w, http.StatusBadRequest, "password must be at least 8 characters", "password")
		return
	}

	// The subdomain conflict is checked first: a replayed registration
	// reports the taken subdomain, not the owner email the first call
	// happened to create.
	if _, err := h.orgs.GetBySlug(r.Context(), req.Subdomain); err == nil {
		writeFieldError(w, http.StatusConflict, "subdomain is already taken", "subdomain")
		return
	} else if !errors.Is(err, tenant.ErrNotFound) {
		writeServerError(w, h.exposeErr, err)
		return
	}

	// Fail early on a taken email so the organization row is not created
	// for nothing. The unique index still backstops the race.
	if _, err := h.owners.GetByEmail(r.Context(), req.Email); err == nil {
		writeFieldError(w, http.StatusConflict, "email is already registered", "email")
		return
	} else if !errors.Is(err, user.ErrNotFound) {
		writeServerError(w, h.exposeErr, err)
		return
	}

	org, err := h.orgs.Create(r.Context(), tenant.CreateOrganizationInput{
		Slug: req.Subdomain,
		Name: req.OrganizationName,
	})
	if err != nil {
		if errors.Is(err, tenant.ErrSlugTaken) {
			writeFieldError(w, http.StatusConflict, "subdomain is already taken", "subdomain")
			return
		}
		writeServerError(w, h.exposeErr, err)
		return
	}

	owner, err := h.owners.Create(r.Context(), user.CreateUserInput{
		Email:          req.Email,
		Password:       req.Password,
		Name:           req.Name,
		Role:           auth.RoleOwner,
		OrganizationID: org.ID,
	})
	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			writeFieldError(w, http.StatusConflict, "email is already registered", "email")
			return
		}
		writeServerError(w, h.exposeErr, err)
		return
	}

	p := &auth.Principal{
		ID:               owner.ID,
		Email:            owner.Email,
		Name:             owner.Name,
		Role:             owner.Role,
		OrganizationID:   org.ID,
		OrganizationSlug: org.Slug,
	}
	token, err := h.issuer.Mint(p)
	if err != nil {
		writeServerError(w, h.exposeErr, err)
		return
	}
	h.issuer.SetCookie(w, token)

	h.recorder.Record(r.Context(), h.auditDB, r, audit.Entry{
		OrganizationID: org.ID,
		UserID:         owner.ID,
		Action:         audit.ActionOrgRegister,
		ResourceType:   "organization",
		ResourceID:     org.ID,
		Metadata:       map[string]any{"slug": org.Slug},
	})

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"organization": org,
		"user":         owner,
		"redirectTo":   "/" + org.Slug + "/dashboard",
	})
}

// GetSettings handles GET /api/v1/orgs/{slug}/settings.
func (h *orgHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	org, ok := orgFromRequest(w, r, h.resolver)
	if !ok {
		return
	}
	if _, ok := readAccess(w, r, org); !ok {
		return
	}
	writeJSON(w, http.StatusOK, org)
}

// UpdateSettings handles PATCH /api/v1/orgs/{slug}/settings. The settings
// update and its audit entry commit in one transaction.
func (h *orgHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	org, ok := orgFromRequest(w, r, h.resolver)
	if !ok {
		return
	}
	p, ok := writeAccess(w, r, org)
	if !ok {
		return
	}
	if !requireManager(w, p) {
		return
	}

	var req struct {
		Settings map[string]any `json:"settings"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse request body")
		return
	}
	if req.Settings == nil {
		writeFieldError(w, http.StatusBadRequest, "settings object is required", "settings")
		return
	}

	tx, err := h.orgs.Begin(r.Context())
	if err != nil {
		writeServerError(w, h.exposeErr, err)
		return
	}
	defer func() { _ = tx.Rollback(r.Context()) }()

	updated, err := h.orgs.UpdateSettingsTx(r.Context(), tx, org.ID, req.Settings)
	if err != nil {
		if errors.Is(err, tenant.ErrNotFound) {
			writeError(w, http.StatusNotFound, "organization not found")
			return
		}
		writeServerError(w, h.exposeErr, err)
		return
	}

	h.recorder.Record(r.Context(), tx, r, audit.Entry{
		OrganizationID: org.ID,
		UserID:         p.ID,
		Action:         audit.ActionSettingsUpdate,
		ResourceType:   "organization",
		ResourceID:     org.ID,
	})

	if err := tx.Commit(r.Context()); err != nil {
		writeServerError(w, h.exposeErr, err)
		return
	}

	slog.Info("organization settings updated", "organization_id", org.ID, "user_id", p.ID)
	writeJSON(w, http.StatusOK, updated)
}
