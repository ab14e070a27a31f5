package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tasklift/backend/internal/models"
)

// LedgerRepo persists ledger entries. The table is append-only: there are no
// update or delete statements here on purpose.
type LedgerRepo struct {
	pool *pgxpool.Pool
}

func NewLedgerRepo(pool *pgxpool.Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// Begin starts a transaction on the underlying pool.
func (r *LedgerRepo) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// InsertTx appends a ledger entry inside the given transaction.
func (r *LedgerRepo) InsertTx(ctx context.Context, tx pgx.Tx, e *models.LedgerEntry) error {
	return tx.QueryRow(ctx, `
		INSERT INTO ledger_entries (id, account_id, amount_cents, source, description)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, e.ID, e.AccountID, e.AmountCents, e.Source, e.Description).Scan(&e.CreatedAt)
}

// SumByAccount returns the sum of all entry amounts for the account, 0 when
// the account has no entries.
func (r *LedgerRepo) SumByAccount(ctx context.Context, accountID uuid.UUID) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0) FROM ledger_entries WHERE account_id = $1
	`, accountID).Scan(&total)
	return total, err
}

// SumByAccountTx is SumByAccount under the caller's transaction, so the value
// is consistent with any row locks the caller holds.
func (r *LedgerRepo) SumByAccountTx(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (int64, error) {
	var total int64
	err := tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0) FROM ledger_entries WHERE account_id = $1
	`, accountID).Scan(&total)
	return total, err
}

// SumByAccountAndSource sums entries of one source for the account.
func (r *LedgerRepo) SumByAccountAndSource(ctx context.Context, accountID uuid.UUID, source string) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0) FROM ledger_entries WHERE account_id = $1 AND source = $2
	`, accountID, source).Scan(&total)
	return total, err
}

// ListByAccount returns the account's entries newest first. An empty source
// returns all entries.
func (r *LedgerRepo) ListByAccount(ctx context.Context, accountID uuid.UUID, source string) ([]*models.LedgerEntry, error) {
	query := `
		SELECT id, account_id, amount_cents, source, description, created_at
		FROM ledger_entries WHERE account_id = $1 ORDER BY created_at DESC`
	args := []any{accountID}
	if source != "" {
		query = `
		SELECT id, account_id, amount_cents, source, description, created_at
		FROM ledger_entries WHERE account_id = $1 AND source = $2 ORDER BY created_at DESC`
		args = append(args, source)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.AmountCents, &e.Source, &e.Description, &e.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &e)
	}
	return list, rows.Err()
}
