package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5"

	"github.com/mandantis/mandantis/internal/audit"
	"github.com/mandantis/mandantis/internal/metrics"
	"github.com/mandantis/mandantis/internal/submission"
	"github.com/mandantis/mandantis/internal/tenant"
)

// exportStore covers the export batch operations, scoped by organization id.
type exportStore interface {
	ListExports(ctx context.Context, orgID string) ([]*submission.Export, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	CreateExportTx(ctx context.Context, tx pgx.Tx, orgID string, in submission.CreateExportInput) (*submission.Export, error)
}

// exportHandler groups DATEV export endpoints.
type exportHandler struct {
	exports   exportStore
	resolver  *tenant.Resolver
	recorder  *audit.Recorder
	metrics   *metrics.Metrics
	exposeErr bool
}

func newExportHandler(
	exports exportStore,
	resolver *tenant.Resolver,
	recorder *audit.Recorder,
	m *metrics.Metrics,
	exposeErr bool,
) *exportHandler {
	return &exportHandler{
		exports:   exports,
		resolver:  resolver,
		recorder:  recorder,
		metrics:   m,
		exposeErr: exposeErr,
	}
}

// List handles GET /api/v1/orgs/{slug}/exports.
func (h *exportHandler) List(w http.ResponseWriter, r *http.Request) {
	org, ok := orgFromRequest(w, r, h.resolver)
	if !ok {
		return
	}
	if _, ok := readAccess(w, r, org); !ok {
		return
	}

	if tenant.IsDemo(org.ID) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"exports": []*submission.Export{}})
		return
	}

	exports, err := h.exports.ListExports(r.Context(), org.ID)
	if err != nil {
		writeServerError(w, h.exposeErr, err)
		return
	}
	if exports == nil {
		exports = []*submission.Export{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"exports": exports})
}

// Create handles POST /api/v1/orgs/{slug}/exports. It snapshots the count
// of reviewed submissions for the requested period.
func (h *exportHandler) Create(w http.ResponseWriter, r *http.Request) {
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
		Format string `json:"format"`
		Period string `json:"period"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse request body")
		return
	}

	in := submission.CreateExportInput{
		Format:      req.Format,
		Period:      req.Period,
		RequestedBy: p.ID,
	}
	if err := in.Validate(); err != nil {
		var verr *submission.ValidationError
		if errors.As(err, &verr) {
			writeFieldError(w, http.StatusBadRequest, verr.Message, verr.Field)
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tx, err := h.exports.Begin(r.Context())
	if err != nil {
		writeServerError(w, h.exposeErr, err)
		return
	}
	defer func() { _ = tx.Rollback(r.Context()) }()

	export, err := h.exports.CreateExportTx(r.Context(), tx, org.ID, in)
	if err != nil {
		writeServerError(w, h.exposeErr, err)
		return
	}

	h.recorder.Record(r.Context(), tx, r, audit.Entry{
		OrganizationID: org.ID,
		UserID:         p.ID,
		Action:         audit.ActionExportCreate,
		ResourceType:   "export",
		ResourceID:     export.ID,
		Metadata:       map[string]any{"format": export.Format, "period": export.Period},
	})

	if err := tx.Commit(r.Context()); err != nil {
		writeServerError(w, h.exposeErr, err)
		return
	}

	if h.metrics != nil {
		h.metrics.IncExport(export.Format)
	}
	writeJSON(w, http.StatusCreated, export)
}
