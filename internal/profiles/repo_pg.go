package profiles

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/RohitLad/resume-markup/resume/schema"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// GetByUser fetches the profile for a user.
func (r *PGRepo) GetByUser(ctx context.Context, userID string) (Profile, error) {
	const query = `
SELECT user_id, data, data_updated_at, knowledgebase, knowledgebase_updated_at, created_at
FROM profiles
WHERE user_id = $1`
	var p Profile
	var rawData []byte
	var rawKB []byte
	var kbUpdatedAt sql.NullTime
	err := r.DB.QueryRowContext(ctx, query, userID).Scan(
		&p.UserID,
		&rawData,
		&p.DataUpdatedAt,
		&rawKB,
		&kbUpdatedAt,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, err
	}
	if len(rawData) > 0 {
		doc, err := schema.Decode(rawData)
		if err != nil {
			return Profile{}, fmt.Errorf("profile %s: %w", userID, err)
		}
		p.Data = doc
	}
	if len(rawKB) > 0 {
		var kb map[string]any
		if err := json.Unmarshal(rawKB, &kb); err != nil {
			return Profile{}, fmt.Errorf("profile %s: decode knowledge base: %w", userID, err)
		}
		p.KnowledgeBase = kb
	}
	if kbUpdatedAt.Valid {
		t := kbUpdatedAt.Time
		p.KnowledgeBaseUpdatedAt = &t
	}
	return p, nil
}

// UpsertData inserts the profile or replaces its data.
func (r *PGRepo) UpsertData(ctx context.Context, userID string, data schema.Document, at time.Time) error {
	const query = `
INSERT INTO profiles (user_id, data, data_updated_at, created_at)
VALUES ($1, $2, $3, $3)
ON CONFLICT (user_id) DO UPDATE
SET data = EXCLUDED.data, data_updated_at = EXCLUDED.data_updated_at`
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode profile data: %w", err)
	}
	_, err = r.DB.ExecContext(ctx, query, userID, raw, at)
	return err
}

// SaveKnowledgeBase stores the knowledge base on an existing profile.
func (r *PGRepo) SaveKnowledgeBase(ctx context.Context, userID string, kb map[string]any, at time.Time) error {
	const query = `
UPDATE profiles
SET knowledgebase = $1, knowledgebase_updated_at = $2
WHERE user_id = $3`
	raw, err := json.Marshal(kb)
	if err != nil {
		return fmt.Errorf("encode knowledge base: %w", err)
	}
	res, err := r.DB.ExecContext(ctx, query, raw, at, userID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Repo = (*PGRepo)(nil)
