package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tasklift/backend/internal/models"
)

type WithdrawalRepo struct {
	pool *pgxpool.Pool
}

func NewWithdrawalRepo(pool *pgxpool.Pool) *WithdrawalRepo {
	return &WithdrawalRepo{pool: pool}
}

// Begin starts a transaction on the underlying pool.
func (r *WithdrawalRepo) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// InsertTx records a withdrawal request inside the given transaction.
func (r *WithdrawalRepo) InsertTx(ctx context.Context, tx pgx.Tx, wr *models.WithdrawalRequest) error {
	return tx.QueryRow(ctx, `
		INSERT INTO withdrawal_requests (id, account_id, amount_cents, method, destination, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, wr.ID, wr.AccountID, wr.AmountCents, wr.Method, wr.Destination, wr.Status).Scan(&wr.CreatedAt)
}

func (r *WithdrawalRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error) {
	var wr models.WithdrawalRequest
	err := r.pool.QueryRow(ctx, selectWithdrawal+` WHERE id = $1`, id).
		Scan(&wr.ID, &wr.AccountID, &wr.AmountCents, &wr.Method, &wr.Destination, &wr.Status, &wr.RejectReason, &wr.CompletedAt, &wr.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &wr, nil
}

// GetByIDForUpdate locks the request row. Call within a transaction.
func (r *WithdrawalRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.WithdrawalRequest, error) {
	var wr models.WithdrawalRequest
	err := tx.QueryRow(ctx, selectWithdrawal+` WHERE id = $1 FOR UPDATE`, id).
		Scan(&wr.ID, &wr.AccountID, &wr.AmountCents, &wr.Method, &wr.Destination, &wr.Status, &wr.RejectReason, &wr.CompletedAt, &wr.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &wr, nil
}

// SetStatusTx transitions the request inside the given transaction.
func (r *WithdrawalRepo) SetStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string, reason *string, completedAt time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE withdrawal_requests SET status = $2, reject_reason = $3, completed_at = $4 WHERE id = $1
	`, id, status, reason, completedAt)
	return err
}

func (r *WithdrawalRepo) ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]*models.WithdrawalRequest, error) {
	rows, err := r.pool.Query(ctx, selectWithdrawal+` WHERE account_id = $1 ORDER BY created_at DESC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.WithdrawalRequest
	for rows.Next() {
		var wr models.WithdrawalRequest
		if err := rows.Scan(&wr.ID, &wr.AccountID, &wr.AmountCents, &wr.Method, &wr.Destination, &wr.Status, &wr.RejectReason, &wr.CompletedAt, &wr.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &wr)
	}
	return list, rows.Err()
}

const selectWithdrawal = `
	SELECT id, account_id, amount_cents, method, destination, status, reject_reason, completed_at, created_at
	FROM withdrawal_requests`
