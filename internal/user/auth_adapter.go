package user

import (
	"context"
	"fmt"

	"github.com/mandantis/mandantis/internal/auth"
)

// AuthAdapter wraps a user Store to satisfy auth.CredentialLookup. It joins
// the owning organization so the resulting principal carries the tenant
// binding the session issuer embeds.
type AuthAdapter struct {
	store *Store
}

// NewAuthAdapter creates an adapter bridging user.Store to auth.CredentialLookup.
func NewAuthAdapter(store *Store) *AuthAdapter {
	return &AuthAdapter{store: store}
}

// GetCredentialsByEmail looks up a user by email together with the slug of
// its organization.
func (a *AuthAdapter) GetCredentialsByEmail(ctx context.Context, email string) (*auth.Credentials, error) {
	var (
		u    User
		slug string
	)
	err := a.store.pool.QueryRow(ctx,
		`SELECT u.id, u.email, u.password_hash, u.name, u.role,
		        u.organization_id, coalesce(u.avatar_url, ''), o.slug
		 FROM users u JOIN organizations o ON u.organization_id = o.id
		 WHERE u.email = $1`,
		auth.NormalizeEmail(email),
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role,
		&u.OrganizationID, &u.AvatarURL, &slug)
	if err != nil {
		return nil, fmt.Errorf("looking up credentials: %w", err)
	}

	return &auth.Credentials{
		Principal: auth.Principal{
			ID:               u.ID,
			Email:            u.Email,
			Name:             u.Name,
			Role:             u.Role,
			OrganizationID:   u.OrganizationID,
			OrganizationSlug: slug,
			Avatar:           u.AvatarURL,
		},
		PasswordHash: u.PasswordHash,
	}, nil
}
