package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tasklift/backend/internal/models"
)

// ErrAccountNotFound is returned when appending for an account that does not exist.
var ErrAccountNotFound = errors.New("account not found")

// ErrTransient is returned when a write conflict persisted across a retry;
// the caller may retry the whole operation.
var ErrTransient = errors.New("transient storage conflict")

// Store is the minimal ledger persistence interface.
type Store interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	InsertTx(ctx context.Context, tx pgx.Tx, e *models.LedgerEntry) error
	SumByAccount(ctx context.Context, accountID uuid.UUID) (int64, error)
	SumByAccountTx(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (int64, error)
	SumByAccountAndSource(ctx context.Context, accountID uuid.UUID, source string) (int64, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID, source string) ([]*models.LedgerEntry, error)
}

// AccountLocker serializes balance-affecting work per account.
type AccountLocker interface {
	LockForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
}

// Service is the sole writer of account balances. Every balance change in the
// system goes through Append/AppendTx; there is no update or delete path.
// Business-rule validation (overdraft guards, amount signs) belongs to the
// callers; the ledger only guarantees the account exists and the append is
// serialized with other appends for the same account.
type Service interface {
	Append(ctx context.Context, accountID uuid.UUID, amountCents int64, source, description string) (*models.LedgerEntry, error)
	AppendTx(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amountCents int64, source, description string) (*models.LedgerEntry, error)
	Balance(ctx context.Context, accountID uuid.UUID) (int64, error)
	BalanceTx(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (int64, error)
	SumBySource(ctx context.Context, accountID uuid.UUID, source string) (int64, error)
	History(ctx context.Context, accountID uuid.UUID, source string) ([]*models.LedgerEntry, error)
}

type service struct {
	store    Store
	accounts AccountLocker
}

func NewService(store Store, accounts AccountLocker) Service {
	return &service{store: store, accounts: accounts}
}

var _ Service = (*service)(nil)

// AppendTx appends one entry inside the caller's transaction. The account row
// is locked first so two concurrent appends for the same account serialize.
func (s *service) AppendTx(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amountCents int64, source, description string) (*models.LedgerEntry, error) {
	if err := s.accounts.LockForUpdate(ctx, tx, accountID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	entry := &models.LedgerEntry{
		ID:          uuid.New(),
		AccountID:   accountID,
		AmountCents: amountCents,
		Source:      source,
		Description: description,
	}
	if err := s.store.InsertTx(ctx, tx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Append runs AppendTx in its own transaction, retrying once on a
// serialization conflict (the append has not committed, so a retry is safe).
func (s *service) Append(ctx context.Context, accountID uuid.UUID, amountCents int64, source, description string) (*models.LedgerEntry, error) {
	entry, err := s.appendOnce(ctx, accountID, amountCents, source, description)
	if err != nil && isSerializationFailure(err) {
		entry, err = s.appendOnce(ctx, accountID, amountCents, source, description)
		if err != nil && isSerializationFailure(err) {
			return nil, fmt.Errorf("%w: %v", ErrTransient, err)
		}
	}
	return entry, err
}

func (s *service) appendOnce(ctx context.Context, accountID uuid.UUID, amountCents int64, source, description string) (*models.LedgerEntry, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)
	entry, err := s.AppendTx(ctx, tx, accountID, amountCents, source, description)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return entry, nil
}

// Balance returns the sum of all entries for the account; 0 when it has none.
func (s *service) Balance(ctx context.Context, accountID uuid.UUID) (int64, error) {
	return s.store.SumByAccount(ctx, accountID)
}

// BalanceTx reads the balance under the caller's transaction so the value is
// stable while the caller holds the account lock.
func (s *service) BalanceTx(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (int64, error) {
	return s.store.SumByAccountTx(ctx, tx, accountID)
}

// SumBySource sums the account's entries of one source, e.g. task earnings.
func (s *service) SumBySource(ctx context.Context, accountID uuid.UUID, source string) (int64, error) {
	return s.store.SumByAccountAndSource(ctx, accountID, source)
}

// History returns the account's entries newest first. An empty source returns
// everything.
func (s *service) History(ctx context.Context, accountID uuid.UUID, source string) ([]*models.LedgerEntry, error) {
	return s.store.ListByAccount(ctx, accountID, source)
}

// isSerializationFailure reports whether err is a Postgres serialization or
// deadlock failure (40001, 40P01).
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}
