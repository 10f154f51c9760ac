package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/mandantis/mandantis/internal/audit"
	"github.com/mandantis/mandantis/internal/auth"
	"github.com/mandantis/mandantis/internal/metrics"
	"github.com/mandantis/mandantis/internal/ratelimit"
	"github.com/mandantis/mandantis/internal/user"
)

// loginLimiter is the attempt-tracking contract the login path needs.
type loginLimiter interface {
	Check(ip string) ratelimit.Result
	RecordFailure(ip string) bool
	Reset(ip string)
}

// accountStore covers the user operations the auth endpoints perform.
type accountStore interface {
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	UpdateLastLogin(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id, password string) error
	CreateResetToken(ctx context.Context, userID string, ttl time.Duration) (string, error)
	ConsumeResetToken(ctx context.Context, plaintext string) (string, error)
}

// authHandler groups the login, logout, session and password reset endpoints.
type authHandler struct {
	credentials auth.CredentialLookup
	accounts    accountStore
	issuer      *auth.Issuer
	limiter     loginLimiter
	recorder    *audit.Recorder
	auditDB     audit.Execer
	metrics     *metrics.Metrics
	resetTTL    time.Duration
	exposeErr   bool
}

func newAuthHandler(
	credentials auth.CredentialLookup,
	accounts accountStore,
	issuer *auth.Issuer,
	limiter loginLimiter,
	recorder *audit.Recorder,
	auditDB audit.Execer,
	m *metrics.Metrics,
	resetTTL time.Duration,
	exposeErr bool,
) *authHandler {
	return &authHandler{
		credentials: credentials,
		accounts:    accounts,
		issuer:      issuer,
		limiter:     limiter,
		recorder:    recorder,
		auditDB:     auditDB,
		metrics:     m,
		resetTTL:    resetTTL,
		exposeErr:   exposeErr,
	}
}

// principalBody is the JSON shape of an authenticated principal.
func principalBody(p *auth.Principal) map[string]interface{} {
	return map[string]interface{}{
		"id":               p.ID,
		"email":            p.Email,
		"name":             p.Name,
		"role":             p.Role,
		"organizationId":   p.OrganizationID,
		"organizationSlug": p.OrganizationSlug,
		"avatar":           p.Avatar,
	}
}

// Login handles POST /api/v1/auth/login.
func (h *authHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	// The limiter runs before any password comparison so lockouts cannot
	// be ridden out with slow failed attempts.
	ip := audit.ClientIP(r)
	res := h.limiter.Check(ip)
	if !res.Allowed {
		h.countThrottled()
		writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"error":        "too many login attempts",
			"retryAfterMs": res.RetryAfter.Milliseconds(),
			"limit":        res.Limit,
		})
		return
	}

	p, err := auth.VerifyCredentials(r.Context(), h.credentials, req.Email, req.Password)
	if err != nil {
		if h.limiter.RecordFailure(ip) {
			slog.Warn("login lockout", "ip", ip)
			h.countLockout()
		}
		h.countAuthFailure("credentials")
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	h.limiter.Reset(ip)
	if err := h.accounts.UpdateLastLogin(r.Context(), p.ID); err != nil {
		slog.Error("updating last login", "error", err, "user_id", p.ID)
	}

	token, err := h.issuer.Mint(p)
	if err != nil {
		writeServerError(w, h.exposeErr, err)
		return
	}
	h.issuer.SetCookie(w, token)

	h.recorder.Record(r.Context(), h.auditDB, r, audit.Entry{
		OrganizationID: p.OrganizationID,
		UserID:         p.ID,
		Action:         audit.ActionLogin,
	})
	h.countAuthSuccess("password")

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":       principalBody(p),
		"redirectTo": "/" + p.OrganizationSlug + "/dashboard",
	})
}

// Logout handles POST /api/v1/auth/logout.
func (h *authHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.issuer.ClearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/v1/auth/me.
func (h *authHandler) Me(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, principalBody(p))
}

// ForgotPassword handles POST /api/v1/auth/forgot-password. The response
// is identical whether or not the account exists.
func (h *authHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse request body")
		return
	}
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	u, err := h.accounts.GetByEmail(r.Context(), req.Email)
	if err == nil {
		token, err := h.accounts.CreateResetToken(r.Context(), u.ID, h.resetTTL)
		if err != nil {
			slog.Error("creating reset token", "error", err, "user_id", u.ID)
		} else {
			// Delivery is handled out-of-band by the mailer; the token is
			// never echoed in the response.
			slog.Info("password reset token issued",
				"user_id", u.ID, "token_prefix", token[:8])
			h.countPasswordReset("requested")
		}
	} else if !errors.Is(err, user.ErrNotFound) {
		slog.Error("looking up account for reset", "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ResetPassword handles POST /api/v1/auth/reset-password. Tokens are
// single-use: consumption is atomic, so a replayed token always fails.
func (h *authHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse request body")
		return
	}
	if req.Token == "" {
		writeFieldError(w, http.StatusBadRequest, "token is required", "token")
		return
	}
	if len(req.Password) < 8 {
		writeFieldError(w, http.StatusBadRequest, "password must be at least 8 characters", "password")
		return
	}

	userID, err := h.accounts.ConsumeResetToken(r.Context(), req.Token)
	if err != nil {
		if errors.Is(err, user.ErrInvalidResetToken) {
			writeFieldError(w, http.StatusBadRequest, "invalid or expired reset token", "token")
			return
		}
		writeServerError(w, h.exposeErr, err)
		return
	}

	if err := h.accounts.UpdatePassword(r.Context(), userID, req.Password); err != nil {
		writeServerError(w, h.exposeErr, err)
		return
	}

	h.recorder.Record(r.Context(), h.auditDB, r, audit.Entry{
		UserID: userID,
		Action: audit.ActionPasswordReset,
	})
	h.countPasswordReset("completed")

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *authHandler) countLockout() {
	if h.metrics != nil {
		h.metrics.IncLoginLockout()
	}
}

func (h *authHandler) countThrottled() {
	if h.metrics != nil {
		h.metrics.IncLoginThrottled()
	}
}

func (h *authHandler) countAuthFailure(reason string) {
	if h.metrics != nil {
		h.metrics.IncAuthFailure(reason)
	}
}

func (h *authHandler) countAuthSuccess(method string) {
	if h.metrics != nil {
		h.metrics.IncAuthSuccess(method)
	}
}

func (h *authHandler) countPasswordReset(stage string) {
	if h.metrics != nil {
		h.metrics.IncPasswordReset(stage)
	}
}
