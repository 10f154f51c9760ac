package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "mandantis"

// CookieName is the session cookie carrying the signed token.
const CookieName = "mandantis_session"

// ErrInvalidToken indicates the session token failed validation.
var ErrInvalidToken = errors.New("invalid session token")

// Issuer mints and validates stateless session tokens. Claims are fixed at
// mint time; a token is never re-checked against a live organization record
// within its validity window.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time // injectable clock for testing
}

// NewIssuer creates a session issuer. secure controls the cookie Secure
// flag and should be true outside local development.
func NewIssuer(secret string, ttl time.Duration, secure bool) *Issuer {
	return &Issuer{
		secret: []byte(secret),
		ttl:    ttl,
		secure: secure,
		now:    time.Now,
	}
}

// TTL returns the configured session lifetime.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Mint signs a session token for the principal using HS256. The embedded
// organization slug is taken from the principal as resolved at login.
func (i *Issuer) Mint(p *Principal) (string, error) {
	now := i.now().UTC()
	claims := jwt.MapClaims{
		"iss":     issuer,
		"sub":     p.ID,
		"iat":     jwt.NewNumericDate(now),
		"exp":     jwt.NewNumericDate(now.Add(i.ttl)),
		"jti":     uuid.NewString(),
		"email":   p.Email,
		"name":    p.Name,
		"role":    p.Role,
		"org_id":  p.OrganizationID,
		"org":     p.OrganizationSlug,
		"avatar":  p.Avatar,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("signing session token: %w", err)
	}
	return signed, nil
}

// Parse verifies the token signature and expiry and reconstructs the
// principal. Each custom claim is type-checked individually: a missing or
// wrong-typed claim degrades to a safe default (member role, empty
// organization) instead of being trusted.
func (i *Issuer) Parse(token string) (*Principal, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return i.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired(), jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, ErrInvalidToken
	}

	p := &Principal{
		ID:               sub,
		Email:            stringClaim(claims, "email", ""),
		Name:             stringClaim(claims, "name", ""),
		Role:             stringClaim(claims, "role", RoleMember),
		OrganizationID:   stringClaim(claims, "org_id", ""),
		OrganizationSlug: stringClaim(claims, "org", ""),
		Avatar:           stringClaim(claims, "avatar", ""),
	}
	if !ValidRole(p.Role) {
		p.Role = RoleMember
	}
	return p, nil
}

// stringClaim returns the claim as a string, or fallback when absent or of
// the wrong type.
func stringClaim(claims jwt.MapClaims, key, fallback string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return fallback
}

// SetCookie writes the session cookie: HTTP-only, SameSite=Lax, Secure
// outside development, expiring with the token.
func (i *Issuer) SetCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(i.ttl.Seconds()),
		HttpOnly: true,
		Secure:   i.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie immediately.
func (i *Issuer) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   i.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// TokenFromRequest extracts the session token from the request cookie, or
// "" if none is present.
func TokenFromRequest(r *http.Request) string {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// PrincipalFromRequest resolves the request's session cookie to a
// principal, or nil if the cookie is absent or invalid.
func (i *Issuer) PrincipalFromRequest(r *http.Request) *Principal {
	token := TokenFromRequest(r)
	if token == "" {
		return nil
	}
	p, err := i.Parse(token)
	if err != nil {
		return nil
	}
	return p
}
