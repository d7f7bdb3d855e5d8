package resumes

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new resume.
func (r *PGRepo) Create(ctx context.Context, res Resume) error {
	const query = `
INSERT INTO resumes (
    id,
    user_id,
    job_title,
    job_description,
    content,
    created_at,
    updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.DB.ExecContext(
		ctx,
		query,
		res.ID,
		res.UserID,
		res.JobTitle,
		res.JobDescription,
		res.Content,
		res.CreatedAt,
		res.UpdatedAt,
	)
	return err
}

// GetByID fetches a resume by ID.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Resume, error) {
	const query = `
SELECT id, user_id, job_title, job_description, content, created_at, updated_at
FROM resumes
WHERE id = $1`
	key, ok := parseID(id)
	if !ok {
		return Resume{}, ErrNotFound
	}
	var res Resume
	err := r.DB.QueryRowContext(ctx, query, key).Scan(
		&res.ID,
		&res.UserID,
		&res.JobTitle,
		&res.JobDescription,
		&res.Content,
		&res.CreatedAt,
		&res.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Resume{}, ErrNotFound
		}
		return Resume{}, err
	}
	return res, nil
}

// UpdateJob replaces the job details of a resume.
func (r *PGRepo) UpdateJob(ctx context.Context, id, jobTitle, jobDescription string, at time.Time) error {
	const query = `
UPDATE resumes
SET job_title = $1, job_description = $2, updated_at = $3
WHERE id = $4`
	key, ok := parseID(id)
	if !ok {
		return ErrNotFound
	}
	return r.execOne(ctx, query, jobTitle, jobDescription, at, key)
}

// UpdateContent stores generated markdown.
func (r *PGRepo) UpdateContent(ctx context.Context, id, content string, at time.Time) error {
	const query = `
UPDATE resumes
SET content = $1, updated_at = $2
WHERE id = $3`
	key, ok := parseID(id)
	if !ok {
		return ErrNotFound
	}
	return r.execOne(ctx, query, content, at, key)
}

// ListByUser lists a user's resumes ordered newest-first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string) ([]Resume, error) {
	const query = `
SELECT id, user_id, job_title, job_description, content, created_at, updated_at
FROM resumes
WHERE user_id = $1
ORDER BY created_at DESC`
	rows, err := r.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Resume, 0)
	for rows.Next() {
		var res Resume
		if err := rows.Scan(
			&res.ID,
			&res.UserID,
			&res.JobTitle,
			&res.JobDescription,
			&res.Content,
			&res.CreatedAt,
			&res.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// parseID canonicalizes a resume id. The id column is a UUID, so anything
// else cannot match a row.
func parseID(id string) (string, bool) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}

func (r *PGRepo) execOne(ctx context.Context, query string, args ...any) error {
	result, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Repo = (*PGRepo)(nil)
