package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tasklift/backend/internal/models"
)

type ReferralRepo struct {
	pool *pgxpool.Pool
}

func NewReferralRepo(pool *pgxpool.Pool) *ReferralRepo {
	return &ReferralRepo{pool: pool}
}

// Begin starts a transaction on the underlying pool.
func (r *ReferralRepo) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// InsertTx records a referral bonus inside the given transaction. The unique
// (referrer_id, referred_user_id) index makes a second insert for the same
// pair fail with a unique violation.
func (r *ReferralRepo) InsertTx(ctx context.Context, tx pgx.Tx, b *models.ReferralBonus) error {
	return tx.QueryRow(ctx, `
		INSERT INTO referral_bonuses (id, referrer_id, referred_user_id, amount_cents)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, b.ID, b.ReferrerID, b.ReferredUserID, b.AmountCents).Scan(&b.CreatedAt)
}

func (r *ReferralRepo) ListByReferrer(ctx context.Context, referrerID uuid.UUID) ([]*models.ReferralBonus, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, referrer_id, referred_user_id, amount_cents, created_at
		FROM referral_bonuses WHERE referrer_id = $1 ORDER BY created_at DESC
	`, referrerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.ReferralBonus
	for rows.Next() {
		var b models.ReferralBonus
		if err := rows.Scan(&b.ID, &b.ReferrerID, &b.ReferredUserID, &b.AmountCents, &b.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &b)
	}
	return list, rows.Err()
}
