package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mandantis/mandantis/internal/crypto"
)

const pgErrUniqueViolation = "23505"

// Store provides database operations for organizations.
type Store struct {
	pool   *pgxpool.Pool
	cipher *crypto.Cipher
}

// NewStore creates an organization store. cipher may be nil, in which case
// settings are stored in plaintext JSON.
func NewStore(pool *pgxpool.Pool, cipher *crypto.Cipher) *Store {
	return &Store{pool: pool, cipher: cipher}
}

// scanOrganization scans an organization row, decrypting the settings
// column when a cipher is configured.
func (s *Store) scanOrganization(scan func(dest ...any) error) (*Organization, error) {
	o := &Organization{}
	var settingsRaw string
	err := scan(&o.ID, &o.Slug, &o.Name, &o.Plan, &settingsRaw, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if settingsRaw != "" {
		plain, err := s.cipher.Decrypt(settingsRaw)
		if err != nil {
			return nil, fmt.Errorf("decrypting settings: %w", err)
		}
		if err := json.Unmarshal([]byte(plain), &o.Settings); err != nil {
			return nil, fmt.Errorf("unmarshaling settings: %w", err)
		}
	}
	if o.Settings == nil {
		o.Settings = map[string]any{}
	}
	return o, nil
}

func (s *Store) marshalSettings(settings map[string]any) (string, error) {
	if settings == nil {
		settings = map[string]any{}
	}
	data, err := json.Marshal(settings)
	if err != nil {
		return "", fmt.Errorf("marshaling settings: %w", err)
	}
	return s.cipher.Encrypt(string(data))
}

// Create inserts a new organization. The slug is fixed for the lifetime of
// the organization; a duplicate slug returns ErrSlugTaken.
func (s *Store) Create(ctx context.Context, in CreateOrganizationInput) (*Organization, error) {
	plan := in.Plan
	if plan == "" {
		plan = "starter"
	}

	settingsRaw, err := s.marshalSettings(nil)
	if err != nil {
		return nil, err
	}

	o, err := s.scanOrganization(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`INSERT INTO organizations (slug, name, plan, settings)
			 VALUES ($1, $2, $3, $4)
			 RETURNING id, slug, name, plan, settings, created_at, updated_at`,
			in.Slug, in.Name, plan, settingsRaw,
		).Scan(dest...)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlugTaken
		}
		return nil, fmt.Errorf("creating organization: %w", err)
	}
	return o, nil
}

// GetBySlug retrieves an organization by its exact slug. No fuzzy or
// case-insensitive matching; a miss is ErrNotFound, never a raw error.
func (s *Store) GetBySlug(ctx context.Context, slug string) (*Organization, error) {
	o, err := s.scanOrganization(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`SELECT id, slug, name, plan, settings, created_at, updated_at
			 FROM organizations WHERE slug = $1`, slug,
		).Scan(dest...)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting organization by slug: %w", err)
	}
	return o, nil
}

// GetByID retrieves an organization by primary key.
func (s *Store) GetByID(ctx context.Context, id string) (*Organization, error) {
	o, err := s.scanOrganization(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`SELECT id, slug, name, plan, settings, created_at, updated_at
			 FROM organizations WHERE id = $1`, id,
		).Scan(dest...)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting organization by id: %w", err)
	}
	return o, nil
}

// Begin starts a transaction on the underlying pool for callers that pair
// a settings update with an audit write.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	return s.pool.Begin(ctx)
}

// UpdateSettingsTx replaces the settings map of the organization inside the
// given transaction. The slug and id are never updated here.
func (s *Store) UpdateSettingsTx(ctx context.Context, tx pgx.Tx, id string, settings map[string]any) (*Organization, error) {
	settingsRaw, err := s.marshalSettings(settings)
	if err != nil {
		return nil, err
	}

	o, err := s.scanOrganization(func(dest ...any) error {
		return tx.QueryRow(ctx,
			`UPDATE organizations SET settings = $2, updated_at = now()
			 WHERE id = $1
			 RETURNING id, slug, name, plan, settings, created_at, updated_at`,
			id, settingsRaw,
		).Scan(dest...)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("updating organization settings: %w", err)
	}
	return o, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation
}
