package audit

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

// fakeExecer captures the insert arguments and can simulate failure.
type fakeExecer struct {
	sql  string
	args []any
	err  error
}

func (f *fakeExecer) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sql = sql
	f.args = args
	return pgconn.CommandTag{}, f.err
}

func TestRecord_InsertsRow(t *testing.T) {
	db := &fakeExecer{}
	rec := NewRecorder(nil)

	r := httptest.NewRequest("POST", "/api/v1/orgs/acme/submissions/s1", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.7")
	r.Header.Set("User-Agent", "portal-client/1.0")

	rec.Record(context.Background(), db, r, Entry{
		OrganizationID: "org1",
		UserID:         "u1",
		Action:         ActionSubmissionUpdate,
		ResourceType:   "submission",
		ResourceID:     "s1",
		Metadata:       map[string]any{"field": "datev_account"},
	})

	if !strings.Contains(db.sql, "INSERT INTO audit_logs") {
		t.Fatalf("expected insert into audit_logs, got %q", db.sql)
	}
	if len(db.args) != 8 {
		t.Fatalf("expected 8 args, got %d", len(db.args))
	}
	if db.args[0] != "org1" || db.args[2] != string(ActionSubmissionUpdate) {
		t.Errorf("unexpected args: %v", db.args)
	}
	if db.args[6] != "203.0.113.7" {
		t.Errorf("expected forwarded IP, got %v", db.args[6])
	}
	if db.args[7] != "portal-client/1.0" {
		t.Errorf("expected user agent, got %v", db.args[7])
	}
}

func TestRecord_NeverPanicsOrPropagates(t *testing.T) {
	db := &fakeExecer{err: errors.New("connection refused")}

	failures := 0
	rec := NewRecorder(func() { failures++ })

	r := httptest.NewRequest("POST", "/", nil)
	// Must not panic and has no error to return.
	rec.Record(context.Background(), db, r, Entry{
		OrganizationID: "org1",
		Action:         ActionLogin,
	})

	if failures != 1 {
		t.Errorf("expected failure hook invoked once, got %d", failures)
	}
}

func TestClientIP_HeaderPrecedence(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{
			"forwarded-for wins",
			map[string]string{"X-Forwarded-For": "1.1.1.1", "X-Real-IP": "2.2.2.2", "CF-Connecting-IP": "3.3.3.3"},
			"9.9.9.9:1234", "1.1.1.1",
		},
		{
			"forwarded-for takes first hop",
			map[string]string{"X-Forwarded-For": "1.1.1.1, 10.0.0.1, 10.0.0.2"},
			"9.9.9.9:1234", "1.1.1.1",
		},
		{
			"real-ip second",
			map[string]string{"X-Real-IP": "2.2.2.2", "CF-Connecting-IP": "3.3.3.3"},
			"9.9.9.9:1234", "2.2.2.2",
		},
		{
			"cf header third",
			map[string]string{"CF-Connecting-IP": "3.3.3.3"},
			"9.9.9.9:1234", "3.3.3.3",
		},
		{
			"remote addr fallback",
			nil,
			"9.9.9.9:1234", "9.9.9.9:1234",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := ClientIP(r); got != tt.want {
				t.Errorf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClientIP_Unknown(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = ""
	if got := ClientIP(r); got != "unknown" {
		t.Errorf("expected unknown, got %q", got)
	}
	if got := ClientIP(nil); got != "unknown" {
		t.Errorf("expected unknown for nil request, got %q", got)
	}
}

func TestUserAgentTruncated(t *testing.T) {
	db := &fakeExecer{}
	rec := NewRecorder(nil)

	r := httptest.NewRequest("POST", "/", nil)
	r.Header.Set("User-Agent", strings.Repeat("a", 1000))

	rec.Record(context.Background(), db, r, Entry{OrganizationID: "org1", Action: ActionLogin})

	ua, _ := db.args[7].(string)
	if len(ua) != maxUserAgentLen {
		t.Errorf("expected user agent truncated to %d, got %d", maxUserAgentLen, len(ua))
	}
}
