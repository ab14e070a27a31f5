package referrals

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tasklift/backend/internal/ledger"
	"github.com/tasklift/backend/internal/models"
)

// ---------------------------------------------------------------------------
// In-memory mocks. The bonus store enforces the unique (referrer, referred)
// pair the way Postgres reports it, via PgError 23505.
// ---------------------------------------------------------------------------

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type mockStore struct {
	mu      sync.Mutex
	bonuses []*models.ReferralBonus
}

func (m *mockStore) Begin(ctx context.Context) (pgx.Tx, error) {
	return &fakeTx{}, nil
}

func (m *mockStore) InsertTx(_ context.Context, _ pgx.Tx, b *models.ReferralBonus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.bonuses {
		if existing.ReferrerID == b.ReferrerID && existing.ReferredUserID == b.ReferredUserID {
			return &pgconn.PgError{Code: "23505", ConstraintName: "referral_bonuses_pair_key"}
		}
	}
	cp := *b
	m.bonuses = append(m.bonuses, &cp)
	return nil
}

func (m *mockStore) ListByReferrer(_ context.Context, referrerID uuid.UUID) ([]*models.ReferralBonus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ReferralBonus
	for _, b := range m.bonuses {
		if b.ReferrerID == referrerID {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

type mockLedger struct {
	ledger.Service
	mu      sync.Mutex
	entries []*models.LedgerEntry
}

func (m *mockLedger) AppendTx(_ context.Context, _ pgx.Tx, accountID uuid.UUID, amountCents int64, source, description string) (*models.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := &models.LedgerEntry{ID: uuid.New(), AccountID: accountID, AmountCents: amountCents, Source: source, Description: description}
	m.entries = append(m.entries, e)
	return e, nil
}

func (m *mockLedger) SumBySource(_ context.Context, accountID uuid.UUID, source string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, e := range m.entries {
		if e.AccountID == accountID && e.Source == source {
			sum += e.AmountCents
		}
	}
	return sum, nil
}

type mockCatalog struct {
	starterPrice int64
}

func (m *mockCatalog) GetByType(_ context.Context, pkgType string) (*models.Package, error) {
	if pkgType != models.PackageTypeStarter {
		return nil, pgx.ErrNoRows
	}
	return &models.Package{ID: uuid.New(), Type: pkgType, PriceCents: m.starterPrice}, nil
}

type mockEvents struct {
	mu      sync.Mutex
	awarded int
}

func (m *mockEvents) ReferralAwarded(_ context.Context, _, _ uuid.UUID, _ int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.awarded++
}

func referredAccount(referrer uuid.UUID) *models.Account {
	return &models.Account{ID: uuid.New(), Username: "bob", ReferredBy: &referrer}
}

// ---------------------------------------------------------------------------
// 1. TestAward
// ---------------------------------------------------------------------------

func TestAward(t *testing.T) {
	referrer := uuid.New()
	store := &mockStore{}
	led := &mockLedger{}
	events := &mockEvents{}
	svc := NewService(store, led, &mockCatalog{starterPrice: 2900}, events)
	ctx := context.Background()

	bonus, err := svc.Award(ctx, referredAccount(referrer))
	if err != nil {
		t.Fatalf("Award: %v", err)
	}

	// 10% of the 2900 cent starter price.
	if bonus.AmountCents != 290 {
		t.Errorf("bonus amount: got %d, want 290", bonus.AmountCents)
	}
	if len(led.entries) != 1 {
		t.Fatalf("ledger entries: got %d, want 1", len(led.entries))
	}
	e := led.entries[0]
	if e.AccountID != referrer || e.AmountCents != 290 || e.Source != models.LedgerSourceReferral {
		t.Errorf("referral credit: got %+v", e)
	}
	if events.awarded != 1 {
		t.Errorf("awarded events: got %d, want 1", events.awarded)
	}
}

// ---------------------------------------------------------------------------
// 2. TestAwardDuplicate
// ---------------------------------------------------------------------------

func TestAwardDuplicate(t *testing.T) {
	referrer := uuid.New()
	store := &mockStore{}
	led := &mockLedger{}
	svc := NewService(store, led, &mockCatalog{starterPrice: 2900}, &mockEvents{})
	ctx := context.Background()

	acc := referredAccount(referrer)
	if _, err := svc.Award(ctx, acc); err != nil {
		t.Fatalf("first Award: %v", err)
	}
	if _, err := svc.Award(ctx, acc); !errors.Is(err, ErrDuplicateReferral) {
		t.Errorf("expected ErrDuplicateReferral, got: %v", err)
	}

	// The duplicate must not credit the referrer again.
	if len(led.entries) != 1 {
		t.Errorf("ledger entries: got %d, want 1", len(led.entries))
	}
}

// ---------------------------------------------------------------------------
// 3. TestAwardNoReferrer
// ---------------------------------------------------------------------------

func TestAwardNoReferrer(t *testing.T) {
	svc := NewService(&mockStore{}, &mockLedger{}, &mockCatalog{starterPrice: 2900}, &mockEvents{})

	acc := &models.Account{ID: uuid.New(), Username: "solo"}
	if _, err := svc.Award(context.Background(), acc); !errors.Is(err, ErrNoReferrer) {
		t.Errorf("expected ErrNoReferrer, got: %v", err)
	}
}

// ---------------------------------------------------------------------------
// 4. TestRoundHalfUpPct
// ---------------------------------------------------------------------------

func TestRoundHalfUpPct(t *testing.T) {
	cases := []struct {
		amount int64
		want   int64
	}{
		{2900, 290},
		{2905, 291}, // 290.5 rounds up
		{2904, 290}, // 290.4 rounds down
		{5, 1},      // 0.5 rounds up
		{4, 0},
		{0, 0},
	}
	for _, tc := range cases {
		if got := roundHalfUpPct(tc.amount, 10); got != tc.want {
			t.Errorf("roundHalfUpPct(%d, 10): got %d, want %d", tc.amount, got, tc.want)
		}
	}
}

// ---------------------------------------------------------------------------
// 5. TestSummarize
// ---------------------------------------------------------------------------

func TestSummarize(t *testing.T) {
	referrer := uuid.New()
	store := &mockStore{}
	led := &mockLedger{}
	svc := NewService(store, led, &mockCatalog{starterPrice: 2900}, &mockEvents{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Award(ctx, referredAccount(referrer)); err != nil {
			t.Fatalf("Award %d: %v", i, err)
		}
	}

	summary, err := svc.Summarize(ctx, referrer)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary.Referred != 3 {
		t.Errorf("referred: got %d, want 3", summary.Referred)
	}
	if summary.TotalEarnedCents != 870 {
		t.Errorf("total earned: got %d, want 870", summary.TotalEarnedCents)
	}
	if summary.BonusPerSignupCent != 290 {
		t.Errorf("bonus per signup: got %d, want 290", summary.BonusPerSignupCent)
	}
}
