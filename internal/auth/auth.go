package auth

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Principal is an authenticated user bound to exactly one organization.
type Principal struct {
	ID               string
	Email            string
	Name             string
	Role             string // "owner", "admin" or "member"
	OrganizationID   string
	OrganizationSlug string
	Avatar           string
}

// IsOwner returns true if the principal has the owner role.
func (p *Principal) IsOwner() bool {
	return p.Role == RoleOwner
}

// CanManageOrg returns true if the principal may perform privileged
// mutations (settings, member management, exports).
func (p *Principal) CanManageOrg() bool {
	return p.Role == RoleOwner || p.Role == RoleAdmin
}

// Roles accepted in session claims and member records.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// ValidRole reports whether role is one of the known member roles.
func ValidRole(role string) bool {
	return role == RoleOwner || role == RoleAdmin || role == RoleMember
}

// ErrInvalidCredentials is returned for every credential failure. It never
// distinguishes an unknown email from a wrong password.
var ErrInvalidCredentials = errors.New("invalid email or password")

// Credentials is the stored material needed to verify a login.
type Credentials struct {
	Principal    Principal
	PasswordHash string
}

// CredentialLookup resolves an email address to stored credentials. The
// lookup is by email only: at login time the tenant is not yet known, the
// returned principal supplies the organization binding.
type CredentialLookup interface {
	GetCredentialsByEmail(ctx context.Context, email string) (*Credentials, error)
}

// dummyHash is compared against when no account matches, so verification
// cost does not reveal whether an email exists.
var dummyHash = func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("mandantis-timing-equalizer"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return h
}()

// NormalizeEmail lower-cases and trims an email address. Emails are stored
// and compared in this form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// VerifyCredentials checks an email/password pair against the store. Empty
// input is rejected before any store access. A bcrypt comparison always
// runs, against the stored hash or the dummy hash, so latency does not
// depend on account existence.
func VerifyCredentials(ctx context.Context, store CredentialLookup, email, password string) (*Principal, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	creds, err := store.GetCredentialsByEmail(ctx, email)
	if err != nil || creds == nil {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, ErrInvalidCredentials
	}

	if bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	p := creds.Principal
	return &p, nil
}
