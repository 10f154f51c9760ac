package user

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// CreateResetToken mints a password reset token for the user. The opaque
// plaintext token is returned to be delivered out-of-band; only its hash
// is stored.
func (s *Store) CreateResetToken(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating reset token: %w", err)
	}
	plaintext := hex.EncodeToString(b)

	_, err := s.pool.Exec(ctx,
		`INSERT INTO password_reset_tokens (token_hash, user_id, expires_at)
		 VALUES ($1, $2, $3)`,
		hashToken(plaintext), userID, time.Now().Add(ttl),
	)
	if err != nil {
		return "", fmt.Errorf("creating reset token: %w", err)
	}
	return plaintext, nil
}

// ConsumeResetToken redeems a reset token and returns the owning user id.
// Tokens are strictly single-use: consumption is an atomic update that
// only succeeds when the token is unexpired and not yet consumed, so a
// replayed token fails identically to an unknown one.
func (s *Store) ConsumeResetToken(ctx context.Context, plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrInvalidResetToken
	}

	var userID string
	err := s.pool.QueryRow(ctx,
		`UPDATE password_reset_tokens
		 SET consumed_at = now()
		 WHERE token_hash = $1 AND expires_at > now() AND consumed_at IS NULL
		 RETURNING user_id`,
		hashToken(plaintext),
	).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrInvalidResetToken
		}
		return "", fmt.Errorf("consuming reset token: %w", err)
	}
	return userID, nil
}

func hashToken(plaintext string) string {
	h := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(h[:])
}
