package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tasklift/backend/internal/models"
)

type ClaimRepo struct {
	pool *pgxpool.Pool
}

func NewClaimRepo(pool *pgxpool.Pool) *ClaimRepo {
	return &ClaimRepo{pool: pool}
}

// Begin starts a transaction on the underlying pool.
func (r *ClaimRepo) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *ClaimRepo) Create(ctx context.Context, c *models.TaskClaim) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO task_claims (id, account_id, task_id, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, c.ID, c.AccountID, c.TaskID, c.Status).Scan(&c.CreatedAt)
}

func (r *ClaimRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.TaskClaim, error) {
	var c models.TaskClaim
	err := r.pool.QueryRow(ctx, selectClaim+` WHERE id = $1`, id).
		Scan(&c.ID, &c.AccountID, &c.TaskID, &c.Status, &c.ProofURL, &c.CompletedAt, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetByIDForUpdate locks the claim row. Call within a transaction.
func (r *ClaimRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.TaskClaim, error) {
	var c models.TaskClaim
	err := tx.QueryRow(ctx, selectClaim+` WHERE id = $1 FOR UPDATE`, id).
		Scan(&c.ID, &c.AccountID, &c.TaskID, &c.Status, &c.ProofURL, &c.CompletedAt, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetByAccountAndTask returns the claim for the (account, task) pair, or
// pgx.ErrNoRows when the pair has never been claimed.
func (r *ClaimRepo) GetByAccountAndTask(ctx context.Context, accountID, taskID uuid.UUID) (*models.TaskClaim, error) {
	var c models.TaskClaim
	err := r.pool.QueryRow(ctx, selectClaim+` WHERE account_id = $1 AND task_id = $2`, accountID, taskID).
		Scan(&c.ID, &c.AccountID, &c.TaskID, &c.Status, &c.ProofURL, &c.CompletedAt, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ClaimRepo) ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]*models.TaskClaim, error) {
	rows, err := r.pool.Query(ctx, selectClaim+` WHERE account_id = $1 ORDER BY created_at DESC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.TaskClaim
	for rows.Next() {
		var c models.TaskClaim
		if err := rows.Scan(&c.ID, &c.AccountID, &c.TaskID, &c.Status, &c.ProofURL, &c.CompletedAt, &c.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &c)
	}
	return list, rows.Err()
}

// MarkCompletedTx transitions the claim to completed inside the given
// transaction, recording proof and completion time.
func (r *ClaimRepo) MarkCompletedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, proofURL *string, completedAt time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE task_claims SET status = $2, proof_url = $3, completed_at = $4 WHERE id = $1
	`, id, models.ClaimStatusCompleted, proofURL, completedAt)
	return err
}

// ExpireOverdue marks active claims whose task expiry has passed as expired.
// Returns the number of claims transitioned.
func (r *ClaimRepo) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE task_claims c SET status = $1
		FROM tasks t
		WHERE c.task_id = t.id AND c.status = $2 AND t.expires_at <= $3
	`, models.ClaimStatusExpired, models.ClaimStatusActive, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CountByAccountAndStatus counts the account's claims in the given status.
func (r *ClaimRepo) CountByAccountAndStatus(ctx context.Context, accountID uuid.UUID, status string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM task_claims WHERE account_id = $1 AND status = $2
	`, accountID, status).Scan(&n)
	return n, err
}

const selectClaim = `
	SELECT id, account_id, task_id, status, proof_url, completed_at, created_at
	FROM task_claims`
