package submission

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store provides org-scoped database operations for submissions and
// exports. Every query carries an explicit organization_id predicate in
// addition to any primary-key match; a row owned by another tenant is
// indistinguishable from a missing one.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a submission store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Begin starts a transaction for callers that pair a mutation with an
// audit write.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	return s.pool.Begin(ctx)
}

const submissionColumns = `id, organization_id, client_name, doc_type, period,
	coalesce(datev_account, ''), status, coalesce(file_name, ''), uploaded_at, created_at`

func scanSubmission(scan func(dest ...any) error) (*Submission, error) {
	sub := &Submission{}
	err := scan(&sub.ID, &sub.OrganizationID, &sub.ClientName, &sub.DocType,
		&sub.Period, &sub.DatevAccount, &sub.Status, &sub.FileName,
		&sub.UploadedAt, &sub.CreatedAt)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// ListByOrganization returns all submissions of an organization, newest
// first.
func (s *Store) ListByOrganization(ctx context.Context, orgID string) ([]*Submission, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+submissionColumns+` FROM submissions
		 WHERE organization_id = $1 ORDER BY uploaded_at DESC`, orgID)
	if err != nil {
		return nil, fmt.Errorf("listing submissions: %w", err)
	}
	defer rows.Close()

	var subs []*Submission
	for rows.Next() {
		sub, err := scanSubmission(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning submission row: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// GetByID retrieves a submission scoped to an organization.
func (s *Store) GetByID(ctx context.Context, orgID, id string) (*Submission, error) {
	sub, err := scanSubmission(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`SELECT `+submissionColumns+` FROM submissions
			 WHERE id = $1 AND organization_id = $2`, id, orgID,
		).Scan(dest...)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting submission: %w", err)
	}
	return sub, nil
}

// CreateTx inserts a new portal submission inside the given transaction.
func (s *Store) CreateTx(ctx context.Context, tx pgx.Tx, orgID string, in CreateSubmissionInput) (*Submission, error) {
	sub, err := scanSubmission(func(dest ...any) error {
		return tx.QueryRow(ctx,
			`INSERT INTO submissions (organization_id, client_name, doc_type, period, file_name, status)
			 VALUES ($1, $2, $3, $4, nullif($5, ''), 'new')
			 RETURNING `+submissionColumns,
			orgID, in.ClientName, in.DocType, in.Period, in.FileName,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("creating submission: %w", err)
	}
	return sub, nil
}

// UpdateTx performs a partial, org-scoped update inside the given
// transaction.
func (s *Store) UpdateTx(ctx context.Context, tx pgx.Tx, orgID, id string, in UpdateSubmissionInput) (*Submission, error) {
	var setClauses []string
	var args []any
	argIdx := 1

	if in.DatevAccount != nil {
		setClauses = append(setClauses, fmt.Sprintf("datev_account = nullif($%d, '')", argIdx))
		args = append(args, *in.DatevAccount)
		argIdx++
	}
	if in.Status != nil {
		setClauses = append(setClauses, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *in.Status)
		argIdx++
	}

	if len(setClauses) == 0 {
		return s.GetByID(ctx, orgID, id)
	}

	args = append(args, id, orgID)
	query := fmt.Sprintf(
		`UPDATE submissions SET %s WHERE id = $%d AND organization_id = $%d
		 RETURNING `+submissionColumns,
		strings.Join(setClauses, ", "), argIdx, argIdx+1,
	)

	sub, err := scanSubmission(func(dest ...any) error {
		return tx.QueryRow(ctx, query, args...).Scan(dest...)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("updating submission: %w", err)
	}
	return sub, nil
}

const exportColumns = `id, organization_id, format, period, submission_count,
	status, coalesce(requested_by::text, ''), created_at`

func scanExport(scan func(dest ...any) error) (*Export, error) {
	e := &Export{}
	err := scan(&e.ID, &e.OrganizationID, &e.Format, &e.Period,
		&e.SubmissionCount, &e.Status, &e.RequestedBy, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ListExports returns all export batches of an organization, newest first.
func (s *Store) ListExports(ctx context.Context, orgID string) ([]*Export, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+exportColumns+` FROM exports
		 WHERE organization_id = $1 ORDER BY created_at DESC`, orgID)
	if err != nil {
		return nil, fmt.Errorf("listing exports: %w", err)
	}
	defer rows.Close()

	var exports []*Export
	for rows.Next() {
		e, err := scanExport(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning export row: %w", err)
		}
		exports = append(exports, e)
	}
	return exports, rows.Err()
}

// CreateExportTx inserts an export batch covering the organization's
// reviewed submissions for the period, inside the given transaction.
func (s *Store) CreateExportTx(ctx context.Context, tx pgx.Tx, orgID string, in CreateExportInput) (*Export, error) {
	e, err := scanExport(func(dest ...any) error {
		return tx.QueryRow(ctx,
			`INSERT INTO exports (organization_id, format, period, submission_count, status, requested_by)
			 SELECT $1, $2, $3,
			        (SELECT count(*) FROM submissions
			         WHERE organization_id = $1 AND period = $3 AND status = 'reviewed'),
			        'pending', $4
			 RETURNING `+exportColumns,
			orgID, in.Format, in.Period, in.RequestedBy,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("creating export: %w", err)
	}
	return e, nil
}
