package referrals

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tasklift/backend/internal/ledger"
	"github.com/tasklift/backend/internal/models"
)

// bonusRatePct is the referral bonus as a percentage of the reference
// package price.
const bonusRatePct = 10

var (
	// ErrDuplicateReferral is returned when a bonus for the referred user was
	// already awarded to this referrer.
	ErrDuplicateReferral = errors.New("referral bonus already awarded")
	// ErrNoReferrer is returned when the referred account has no referrer.
	ErrNoReferrer = errors.New("account has no referrer")
)

// Store is the minimal referral-bonus persistence interface.
type Store interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	InsertTx(ctx context.Context, tx pgx.Tx, b *models.ReferralBonus) error
	ListByReferrer(ctx context.Context, referrerID uuid.UUID) ([]*models.ReferralBonus, error)
}

// PriceCatalog resolves the reference package the bonus is computed from.
type PriceCatalog interface {
	GetByType(ctx context.Context, pkgType string) (*models.Package, error)
}

// Events receives domain events after the corresponding transaction commits.
type Events interface {
	ReferralAwarded(ctx context.Context, referrerID, referredUserID uuid.UUID, amountCents int64)
}

// Summary is a referrer's aggregate view.
type Summary struct {
	Referred           int   `json:"referred"`
	TotalEarnedCents   int64 `json:"total_earned_cents"`
	BonusPerSignupCent int64 `json:"bonus_per_signup_cents"`
}

type Service interface {
	Award(ctx context.Context, account *models.Account) (*models.ReferralBonus, error)
	BonusAmount(ctx context.Context) (int64, error)
	ListByReferrer(ctx context.Context, referrerID uuid.UUID) ([]*models.ReferralBonus, error)
	Summarize(ctx context.Context, referrerID uuid.UUID) (*Summary, error)
}

type service struct {
	store   Store
	ledger  ledger.Service
	catalog PriceCatalog
	events  Events
}

func NewService(store Store, ledgerSvc ledger.Service, catalog PriceCatalog, events Events) Service {
	return &service{store: store, ledger: ledgerSvc, catalog: catalog, events: events}
}

var _ Service = (*service)(nil)

// Award grants the referrer of account a one-time signup bonus. The bonus row
// and its ledger credit commit together; the unique (referrer, referred)
// index makes a second award for the same signup fail cleanly with
// ErrDuplicateReferral no matter how many callers race.
func (s *service) Award(ctx context.Context, account *models.Account) (*models.ReferralBonus, error) {
	if account.ReferredBy == nil {
		return nil, ErrNoReferrer
	}
	amount, err := s.BonusAmount(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	bonus := &models.ReferralBonus{
		ID:             uuid.New(),
		ReferrerID:     *account.ReferredBy,
		ReferredUserID: account.ID,
		AmountCents:    amount,
	}
	if err := s.store.InsertTx(ctx, tx, bonus); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateReferral
		}
		return nil, err
	}
	desc := fmt.Sprintf("referral bonus for signup of %s", account.Username)
	if _, err := s.ledger.AppendTx(ctx, tx, bonus.ReferrerID, amount, models.LedgerSourceReferral, desc); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.events.ReferralAwarded(ctx, bonus.ReferrerID, bonus.ReferredUserID, amount)
	return bonus, nil
}

// BonusAmount computes the current signup bonus: bonusRatePct percent of the
// starter package price, rounded half up.
func (s *service) BonusAmount(ctx context.Context) (int64, error) {
	pkg, err := s.catalog.GetByType(ctx, models.PackageTypeStarter)
	if err != nil {
		return 0, fmt.Errorf("resolve reference package: %w", err)
	}
	return roundHalfUpPct(pkg.PriceCents, bonusRatePct), nil
}

func (s *service) ListByReferrer(ctx context.Context, referrerID uuid.UUID) ([]*models.ReferralBonus, error) {
	return s.store.ListByReferrer(ctx, referrerID)
}

// Summarize aggregates a referrer's bonuses; earnings come from the ledger so
// the figure always matches balance history.
func (s *service) Summarize(ctx context.Context, referrerID uuid.UUID) (*Summary, error) {
	bonuses, err := s.store.ListByReferrer(ctx, referrerID)
	if err != nil {
		return nil, err
	}
	earned, err := s.ledger.SumBySource(ctx, referrerID, models.LedgerSourceReferral)
	if err != nil {
		return nil, err
	}
	perSignup, err := s.BonusAmount(ctx)
	if err != nil {
		return nil, err
	}
	return &Summary{
		Referred:           len(bonuses),
		TotalEarnedCents:   earned,
		BonusPerSignupCent: perSignup,
	}, nil
}

// roundHalfUpPct returns pct percent of amount in cents, rounding halves up.
func roundHalfUpPct(amount int64, pct int64) int64 {
	return (amount*pct + 50) / 100
}
