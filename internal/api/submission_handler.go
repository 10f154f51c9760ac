package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/mandantis/mandantis/internal/audit"
	"github.com/mandantis/mandantis/internal/metrics"
	"github.com/mandantis/mandantis/internal/submission"
	"github.com/mandantis/mandantis/internal/tenant"
)

// submissionStore covers the submission operations, all scoped by
// organization id.
type submissionStore interface {
	ListByOrganization(ctx context.Context, orgID string) ([]*submission.Submission, error)
	GetByID(ctx context.Context, orgID, id string) (*submission.Submission, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	CreateTx(ctx context.Context, tx pgx.Tx, orgID string, in submission.CreateSubmissionInput) (*submission.Submission, error)
	UpdateTx(ctx context.Context, tx pgx.Tx, orgID, id string, in submission.UpdateSubmissionInput) (*submission.Submission, error)
}

// submissionHandler groups client document submission endpoints.
type submissionHandler struct {
	submissions submissionStore
	resolver    *tenant.Resolver
	recorder    *audit.Recorder
	metrics     *metrics.Metrics
	exposeErr   bool
}

func newSubmissionHandler(
	submissions submissionStore,
	resolver *tenant.Resolver,
	recorder *audit.Recorder,
	m *metrics.Metrics,
	exposeErr bool,
) *submissionHandler {
	return &submissionHandler{
		submissions: submissions,
		resolver:    resolver,
		recorder:    recorder,
		metrics:     m,
		exposeErr:   exposeErr,
	}
}

// List handles GET /api/v1/orgs/{slug}/submissions.
func (h *submissionHandler) List(w http.ResponseWriter, r *http.Request) {
	org, ok := orgFromRequest(w, r, h.resolver)
	if !ok {
		return
	}
	if _, ok := readAccess(w, r, org); !ok {
		return
	}

	if tenant.IsDemo(org.ID) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"submissions": []*submission.Submission{}})
		return
	}

	subs, err := h.submissions.ListByOrganization(r.Context(), org.ID)
	if err != nil {
		writeServerError(w, h.exposeErr, err)
		return
	}
	if subs == nil {
		subs = []*submission.Submission{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"submissions": subs})
}

// Get handles GET /api/v1/orgs/{slug}/submissions/{id}.
func (h *submissionHandler) Get(w http.ResponseWriter, r *http.Request) {
	org, ok := orgFromRequest(w, r, h.resolver)
	if !ok {
		return
	}
	if _, ok := readAccess(w, r, org); !ok {
		return
	}

	sub, err := h.submissions.GetByID(r.Context(), org.ID, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, submission.ErrNotFound) {
			writeError(w, http.StatusNotFound, "submission not found")
			return
		}
		writeServerError(w, h.exposeErr, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// Create handles POST /api/v1/orgs/{slug}/submissions, the portal intake.
func (h *submissionHandler) Create(w http.ResponseWriter, r *http.Request) {
	org, ok := orgFromRequest(w, r, h.resolver)
	if !ok {
		return
	}
	p, ok := writeAccess(w, r, org)
	if !ok {
		return
	}

	var req struct {
		ClientName string `json:"clientName"`
		DocType    string `json:"docType"`
		Period     string `json:"period"`
		FileName   string `json:"fileName"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse request body")
		return
	}

	in := submission.CreateSubmissionInput{
		ClientName: req.ClientName,
		DocType:    req.DocType,
		Period:     req.Period,
		FileName:   req.FileName,
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

	tx, err := h.submissions.Begin(r.Context())
	if err != nil {
		writeServerError(w, h.exposeErr, err)
		return
	}
	defer func() { _ = tx.Rollback(r.Context()) }()

	sub, err := h.submissions.CreateTx(r.Context(), tx, org.ID, in)
	if err != nil {
		writeServerError(w, h.exposeErr, err)
		return
	}

	h.recorder.Record(r.Context(), tx, r, audit.Entry{
		OrganizationID: org.ID,
		UserID:         p.ID,
		Action:         audit.ActionSubmissionCreate,
		ResourceType:   "submission",
		ResourceID:     sub.ID,
		Metadata:       map[string]any{"doc_type": sub.DocType, "period": sub.Period},
	})

	if err := tx.Commit(r.Context()); err != nil {
		writeServerError(w, h.exposeErr, err)
		return
	}

	if h.metrics != nil {
		h.metrics.IncSubmission(sub.DocType)
	}
	writeJSON(w, http.StatusCreated, sub)
}

// Update handles PATCH /api/v1/orgs/{slug}/submissions/{id}, used by the
// dashboard to assign DATEV accounts and review statuses.
func (h *submissionHandler) Update(w http.ResponseWriter, r *http.Request) {
	org, ok := orgFromRequest(w, r, h.resolver)
	if !ok {
		return
	}
	p, ok := writeAccess(w, r, org)
	if !ok {
		return
	}

	var in submission.UpdateSubmissionInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse request body")
		return
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

	id := chi.URLParam(r, "id")
	tx, err := h.submissions.Begin(r.Context())
	if err != nil {
		writeServerError(w, h.exposeErr, err)
		return
	}
	defer func() { _ = tx.Rollback(r.Context()) }()

	sub, err := h.submissions.UpdateTx(r.Context(), tx, org.ID, id, in)
	if err != nil {
		if errors.Is(err, submission.ErrNotFound) {
			writeError(w, http.StatusNotFound, "submission not found")
			return
		}
		writeServerError(w, h.exposeErr, err)
		return
	}

	h.recorder.Record(r.Context(), tx, r, audit.Entry{
		OrganizationID: org.ID,
		UserID:         p.ID,
		Action:         audit.ActionSubmissionUpdate,
		ResourceType:   "submission",
		ResourceID:     id,
	})

	if err := tx.Commit(r.Context()); err != nil {
		writeServerError(w, h.exposeErr, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}
