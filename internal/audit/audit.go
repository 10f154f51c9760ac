package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Action is the closed set of recorded audit actions.
type Action string

const (
	ActionLogin            Action = "login"
	ActionOrgRegister      Action = "org.register"
	ActionSettingsUpdate   Action = "org.settings.update"
	ActionSubmissionCreate Action = "submission.create"
	ActionSubmissionUpdate Action = "submission.update"
	ActionMemberUpdate     Action = "member.update"
	ActionMemberRemove     Action = "member.remove"
	ActionExportCreate     Action = "export.create"
	ActionPasswordReset    Action = "password.reset"
)

// maxUserAgentLen caps the stored user agent.
const maxUserAgentLen = 256

// Execer is the narrow insert capability the recorder needs. Both
// *pgxpool.Pool and pgx.Tx satisfy it, so an audit entry can ride inside
// the transaction of the mutation it records.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Entry is one immutable audit record.
type Entry struct {
	OrganizationID string
	UserID         string // optional
	Action         Action
	ResourceType   string // optional
	ResourceID     string // optional
	Metadata       map[string]any
}

// Recorder appends audit log rows. It is best-effort by contract: Record
// never returns an error, so an audit failure can never fail or roll back
// the business mutation it accompanies.
type Recorder struct {
	onFailure func() // optional failure counter hook
}

// NewRecorder creates an audit recorder. onFailure, if non-nil, is invoked
// once per failed write (e.g. to bump a metrics counter).
func NewRecorder(onFailure func()) *Recorder {
	return &Recorder{onFailure: onFailure}
}

// Record appends one audit row via db, capturing request provenance. Write
// failures are logged and swallowed.
func (rec *Recorder) Record(ctx context.Context, db Execer, r *http.Request, e Entry) {
	if db == nil {
		slog.Error("audit write skipped, no database", "action", e.Action)
		if rec.onFailure != nil {
			rec.onFailure()
		}
		return
	}

	var metadata []byte
	if e.Metadata != nil {
		var err error
		metadata, err = json.Marshal(e.Metadata)
		if err != nil {
			slog.Error("audit metadata marshal failed", "action", e.Action, "error", err)
			metadata = nil
		}
	}

	_, err := db.Exec(ctx,
		`INSERT INTO audit_logs (organization_id, user_id, action, resource_type, resource_id, metadata, ip, user_agent)
		 VALUES (nullif($1, ''), nullif($2, ''), $3, nullif($4, ''), nullif($5, ''), $6, $7, $8)`,
		e.OrganizationID, e.UserID, string(e.Action),
		e.ResourceType, e.ResourceID, metadata,
		ClientIP(r), userAgent(r),
	)
	if err != nil {
		if rec.onFailure != nil {
			rec.onFailure()
		}
		slog.Error("audit write failed",
			"action", e.Action,
			"organization_id", e.OrganizationID,
			"resource_type", e.ResourceType,
			"resource_id", e.ResourceID,
			"error", err,
		)
	}
}

// ClientIP extracts the client address with a fixed header precedence:
// X-Forwarded-For (first hop), then X-Real-IP, then CF-Connecting-IP,
// falling back to the connection's remote address.
func ClientIP(r *http.Request) string {
	if r == nil {
		return "unknown"
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx >= 0 {
			fwd = fwd[:idx]
		}
		if fwd = strings.TrimSpace(fwd); fwd != "" {
			return fwd
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if ip := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

func userAgent(r *http.Request) string {
	if r == nil {
		return ""
	}
	ua := r.Header.Get("User-Agent")
	if len(ua) > maxUserAgentLen {
		ua = ua[:maxUserAgentLen]
	}
	return ua
}
