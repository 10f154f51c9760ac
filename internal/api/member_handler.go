package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/mandantis/mandantis/internal/audit"
	"github.com/mandantis/mandantis/internal/auth"
	"github.com/mandantis/mandantis/internal/tenant"
	"github.com/mandantis/mandantis/internal/user"
)

// memberStore covers the team member operations, all scoped by
// organization id.
type memberStore interface {
	ListByOrganization(ctx context.Context, orgID string) ([]*user.User, error)
	GetByID(ctx context.Context, orgID, id string) (*user.User, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	UpdateRoleTx(ctx context.Context, tx pgx.Tx, orgID, id, role string) (*user.User, error)
	DeleteTx(ctx context.Context, tx pgx.Tx, orgID, id string) error
}

// memberHandler groups team member endpoints.
type memberHandler struct {
	members   memberStore
	resolver  *tenant.Resolver
	recorder  *audit.Recorder
	exposeErr bool
}

func newMemberHandler(members memberStore, resolver *tenant.Resolver, recorder *audit.Recorder, exposeErr bool) *memberHandler {
	return &memberHandler{members: members, resolver: resolver, recorder: recorder, exposeErr: exposeErr}
}

// List handles GET /api/v1/orgs/{slug}/members.
func (h *memberHandler) List(w http.ResponseWriter, r *http.Request) {
	org, ok := orgFromRequest(w, r, h.resolver)
	if !ok {
		return
	}
	if _, ok := readAccess(w, r, org); !ok {
		return
	}

	// The demo organization owns no persisted rows.
	if tenant.IsDemo(org.ID) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"members": []*user.User{}})
		return
	}

	members, err := h.members.ListByOrganization(r.Context(), org.ID)
	if err != nil {
		writeServerError(w, h.exposeErr, err)
		return
	}
	if members == nil {
		members = []*user.User{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"members": members})
}

// UpdateRole handles PATCH /api/v1/orgs/{slug}/members/{id}. An owner's
// role is immutable through this path.
func (h *memberHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
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

	id := chi.URLParam(r, "id")
	var req struct {
		Role string `json:"role"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse request body")
		return
	}
	if !auth.ValidRole(req.Role) || req.Role == auth.RoleOwner {
		writeFieldError(w, http.StatusBadRequest, "role must be admin or member", "role")
		return
	}

	target, err := h.members.GetByID(r.Context(), org.ID, id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			writeError(w, http.StatusNotFound, "member not found")
			return
		}
		writeServerError(w, h.exposeErr, err)
		return
	}
	if target.Role == auth.RoleOwner {
		writeError(w, http.StatusConflict, "the owner's role cannot be changed")
		return
	}

	tx, err := h.members.Begin(r.Context())
	if err != nil {
		writeServerError(w, h.exposeErr, err)
		return
	}
	defer func() { _ = tx.Rollback(r.Context()) }()

	updated, err := h.members.UpdateRoleTx(r.Context(), tx, org.ID, id, req.Role)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			writeError(w, http.StatusNotFound, "member not found")
			return
		}
		writeServerError(w, h.exposeErr, err)
		return
	}

	h.recorder.Record(r.Context(), tx, r, audit.Entry{
		OrganizationID: org.ID,
		UserID:         p.ID,
		Action:         audit.ActionMemberUpdate,
		ResourceType:   "user",
		ResourceID:     id,
		Metadata:       map[string]any{"role": req.Role},
	})

	if err := tx.Commit(r.Context()); err != nil {
		writeServerError(w, h.exposeErr, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/v1/orgs/{slug}/members/{id}. The owner can
// never be removed, regardless of the caller's role.
func (h *memberHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

	id := chi.URLParam(r, "id")
	target, err := h.members.GetByID(r.Context(), org.ID, id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			writeError(w, http.StatusNotFound, "member not found")
			return
		}
		writeServerError(w, h.exposeErr, err)
		return
	}
	if target.Role == auth.RoleOwner {
		writeError(w, http.StatusConflict, "the owner cannot be removed")
		return
	}

	tx, err := h.members.Begin(r.Context())
	if err != nil {
		writeServerError(w, h.exposeErr, err)
		return
	}
	defer func() { _ = tx.Rollback(r.Context()) }()

	if err := h.members.DeleteTx(r.Context(), tx, org.ID, id); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			writeError(w, http.StatusNotFound, "member not found")
			return
		}
		writeServerError(w, h.exposeErr, err)
		return
	}

	h.recorder.Record(r.Context(), tx, r, audit.Entry{
		OrganizationID: org.ID,
		UserID:         p.ID,
		Action:         audit.ActionMemberRemove,
		ResourceType:   "user",
		ResourceID:     id,
		Metadata:       map[string]any{"email": target.Email},
	})

	if err := tx.Commit(r.Context()); err != nil {
		writeServerError(w, h.exposeErr, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
