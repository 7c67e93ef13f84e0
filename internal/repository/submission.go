package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"casino-gateway/internal/model"
)

// SubmissionRepository persists the per-account nonce log.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository creates a new SubmissionRepository instance.
func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

// Record stores a submission attempt. A retry with the same nonce
// replaces the earlier attempt.
func (r *SubmissionRepository) Record(ctx context.Context, rec model.SubmissionRecord) error {
	const query = `
		INSERT INTO submissions (account, nonce, kind, status, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (account, nonce) DO UPDATE SET
			kind = EXCLUDED.kind,
			status = EXCLUDED.status,
			error = EXCLUDED.error,
			created_at = EXCLUDED.created_at
	`
	_, err := r.pool.Exec(ctx, query, rec.Account, int64(rec.Nonce), rec.Kind, rec.Status, rec.Error, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record submission: %w", err)
	}
	return nil
}

// Resolve sets the outcome of a recorded submission.
func (r *SubmissionRepository) Resolve(ctx context.Context, account string, nonce uint64, status string, errMsg *string) error {
	const query = `
		UPDATE submissions SET status = $3, error = $4
		WHERE account = $1 AND nonce = $2
	`
	if _, err := r.pool.Exec(ctx, query, account, int64(nonce), status, errMsg); err != nil {
		return fmt.Errorf("failed to resolve submission: %w", err)
	}
	return nil
}

// ListInFlight returns the account's unresolved submissions ordered by nonce.
func (r *SubmissionRepository) ListInFlight(ctx context.Context, account string) ([]model.SubmissionRecord, error) {
	const query = `
		SELECT account, nonce, kind, status, error, created_at
		FROM submissions
		WHERE account = $1 AND status = $2
		ORDER BY nonce
	`
	rows, err := r.pool.Query(ctx, query, account, model.SubmissionInFlight)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var out []model.SubmissionRecord
	for rows.Next() {
		var (
			rec   model.SubmissionRecord
			nonce int64
		)
		if err := rows.Scan(&rec.Account, &nonce, &rec.Kind, &rec.Status, &rec.Error, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		rec.Nonce = uint64(nonce)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating submissions: %w", err)
	}
	return out, nil
}
