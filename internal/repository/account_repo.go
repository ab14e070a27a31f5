package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tasklift/backend/internal/models"
)

type AccountRepo struct {
	pool *pgxpool.Pool
}

func NewAccountRepo(pool *pgxpool.Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

// Begin starts a transaction on the underlying pool.
func (r *AccountRepo) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *AccountRepo) Create(ctx context.Context, a *models.Account) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO accounts (id, username, email, full_name, password_hash, referral_code, referred_by, is_admin)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`, a.ID, a.Username, a.Email, a.FullName, a.PasswordHash, a.ReferralCode, a.ReferredBy, a.IsAdmin).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return r.scanOne(r.pool.QueryRow(ctx, selectAccount+` WHERE id = $1`, id))
}

func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.scanOne(r.pool.QueryRow(ctx, selectAccount+` WHERE email = $1`, email))
}

func (r *AccountRepo) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	return r.scanOne(r.pool.QueryRow(ctx, selectAccount+` WHERE username = $1`, username))
}

func (r *AccountRepo) GetByReferralCode(ctx context.Context, code string) (*models.Account, error) {
	return r.scanOne(r.pool.QueryRow(ctx, selectAccount+` WHERE referral_code = $1`, code))
}

// ListReferredBy returns the accounts referred by the given account.
func (r *AccountRepo) ListReferredBy(ctx context.Context, referrerID uuid.UUID) ([]*models.Account, error) {
	rows, err := r.pool.Query(ctx, selectAccount+` WHERE referred_by = $1 ORDER BY created_at DESC`, referrerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Account
	for rows.Next() {
		a, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// LockForUpdate locks the account row so all balance-affecting work on one
// account is serialized. Call within a transaction. Returns pgx.ErrNoRows
// when the account does not exist.
func (r *AccountRepo) LockForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	var locked uuid.UUID
	return tx.QueryRow(ctx, `SELECT id FROM accounts WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
}

const selectAccount = `
	SELECT id, username, email, full_name, password_hash, referral_code, referred_by, is_admin, created_at, updated_at
	FROM accounts`

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *AccountRepo) scanOne(row rowScanner) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.Username, &a.Email, &a.FullName, &a.PasswordHash, &a.ReferralCode, &a.ReferredBy, &a.IsAdmin, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
