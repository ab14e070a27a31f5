package tasks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tasklift/backend/internal/ledger"
	"github.com/tasklift/backend/internal/models"
)

// ---------------------------------------------------------------------------
// In-memory mocks. The claim store enforces the unique (account, task) pair
// the way Postgres reports it, via PgError 23505.
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

type mockTaskStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*models.Task
}

func newMockTaskStore(ts ...*models.Task) *mockTaskStore {
	m := &mockTaskStore{tasks: make(map[uuid.UUID]*models.Task)}
	for _, t := range ts {
		cp := *t
		m.tasks[t.ID] = &cp
	}
	return m
}

func (m *mockTaskStore) Create(_ context.Context, t *models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

func (m *mockTaskStore) GetByID(_ context.Context, id uuid.UUID) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (m *mockTaskStore) ListActive(_ context.Context, now time.Time) ([]*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Task
	for _, t := range m.tasks {
		if t.ExpiresAt.After(now) {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

type mockClaimStore struct {
	mu     sync.Mutex
	claims map[uuid.UUID]*models.TaskClaim
}

func newMockClaimStore() *mockClaimStore {
	return &mockClaimStore{claims: make(map[uuid.UUID]*models.TaskClaim)}
}

func (m *mockClaimStore) Begin(ctx context.Context) (pgx.Tx, error) {
	return &fakeTx{}, nil
}

func (m *mockClaimStore) Create(_ context.Context, c *models.TaskClaim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.claims {
		if existing.AccountID == c.AccountID && existing.TaskID == c.TaskID {
			return &pgconn.PgError{Code: "23505", ConstraintName: "task_claims_account_task_key"}
		}
	}
	cp := *c
	m.claims[c.ID] = &cp
	return nil
}

func (m *mockClaimStore) GetByAccountAndTask(_ context.Context, accountID, taskID uuid.UUID) (*models.TaskClaim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.claims {
		if c.AccountID == accountID && c.TaskID == taskID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *mockClaimStore) GetByIDForUpdate(_ context.Context, _ pgx.Tx, id uuid.UUID) (*models.TaskClaim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func (m *mockClaimStore) MarkCompletedTx(_ context.Context, _ pgx.Tx, id uuid.UUID, proofURL *string, completedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[id]
	if !ok {
		return pgx.ErrNoRows
	}
	c.Status = models.ClaimStatusCompleted
	c.ProofURL = proofURL
	c.CompletedAt = &completedAt
	return nil
}

func (m *mockClaimStore) ListByAccountID(_ context.Context, accountID uuid.UUID) ([]*models.TaskClaim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.TaskClaim
	for _, c := range m.claims {
		if c.AccountID == accountID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockClaimStore) CountByAccountAndStatus(_ context.Context, accountID uuid.UUID, status string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.claims {
		if c.AccountID == accountID && c.Status == status {
			n++
		}
	}
	return n, nil
}

// mockLedger records appends without touching a database.
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

type mockEvents struct {
	mu        sync.Mutex
	completed int
}

func (m *mockEvents) TaskCompleted(_ context.Context, _, _, _ uuid.UUID, _ int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed++
}

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

func testTask(expiresIn time.Duration) *models.Task {
	return &models.Task{
		ID:          uuid.New(),
		Title:       "Like and comment",
		Description: "Like the post and comment.",
		Platform:    models.PlatformFacebook,
		RewardCents: 200,
		ExpiresAt:   time.Now().Add(expiresIn),
	}
}

func newTestService(taskStore *mockTaskStore, claimStore *mockClaimStore, led *mockLedger) (Service, *mockEvents) {
	ev := &mockEvents{}
	svc := NewService(taskStore, claimStore, led, ev)
	return svc, ev
}

// ---------------------------------------------------------------------------
// 1. TestClaim
// ---------------------------------------------------------------------------

func TestClaim(t *testing.T) {
	account := uuid.New()
	task := testTask(24 * time.Hour)
	svc, _ := newTestService(newMockTaskStore(task), newMockClaimStore(), &mockLedger{})
	ctx := context.Background()

	claim, err := svc.Claim(ctx, account, task.ID)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if claim.Status != models.ClaimStatusActive {
		t.Errorf("claim status: got %q, want %q", claim.Status, models.ClaimStatusActive)
	}

	// Claiming the same task again is rejected.
	if _, err := svc.Claim(ctx, account, task.ID); !errors.Is(err, ErrAlreadyClaimed) {
		t.Errorf("expected ErrAlreadyClaimed, got: %v", err)
	}

	// Unknown task.
	if _, err := svc.Claim(ctx, account, uuid.New()); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got: %v", err)
	}
}

// ---------------------------------------------------------------------------
// 2. TestClaimExpiredTask
// ---------------------------------------------------------------------------

func TestClaimExpiredTask(t *testing.T) {
	task := testTask(-time.Hour)
	svc, _ := newTestService(newMockTaskStore(task), newMockClaimStore(), &mockLedger{})

	if _, err := svc.Claim(context.Background(), uuid.New(), task.ID); !errors.Is(err, ErrTaskExpired) {
		t.Errorf("expected ErrTaskExpired, got: %v", err)
	}
}

// ---------------------------------------------------------------------------
// 3. TestClaimRaceLosesOnUniqueIndex
// ---------------------------------------------------------------------------

// A racing claim that slips past the pre-check still fails on the unique
// index, and the violation maps to ErrAlreadyClaimed.
func TestClaimRaceLosesOnUniqueIndex(t *testing.T) {
	account := uuid.New()
	task := testTask(24 * time.Hour)
	claimStore := newMockClaimStore()
	svc, _ := newTestService(newMockTaskStore(task), claimStore, &mockLedger{})
	ctx := context.Background()

	if _, err := svc.Claim(ctx, account, task.ID); err != nil {
		t.Fatalf("first claim: %v", err)
	}

	// Insert directly, simulating the raced duplicate hitting the index.
	err := claimStore.Create(ctx, &models.TaskClaim{ID: uuid.New(), AccountID: account, TaskID: task.ID, Status: models.ClaimStatusActive})
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		t.Fatalf("expected unique violation, got: %v", err)
	}
}

// ---------------------------------------------------------------------------
// 4. TestComplete
// ---------------------------------------------------------------------------

func TestComplete(t *testing.T) {
	account := uuid.New()
	task := testTask(24 * time.Hour)
	led := &mockLedger{}
	svc, events := newTestService(newMockTaskStore(task), newMockClaimStore(), led)
	ctx := context.Background()

	claim, err := svc.Claim(ctx, account, task.ID)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}

	completed, err := svc.Complete(ctx, account, claim.ID, "https://proof.example/1")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if completed.Status != models.ClaimStatusCompleted {
		t.Errorf("status: got %q, want %q", completed.Status, models.ClaimStatusCompleted)
	}
	if completed.ProofURL == nil || *completed.ProofURL != "https://proof.example/1" {
		t.Error("proof url should be stored")
	}

	// Exactly one reward credit.
	if len(led.entries) != 1 {
		t.Fatalf("ledger entries: got %d, want 1", len(led.entries))
	}
	e := led.entries[0]
	if e.AccountID != account || e.AmountCents != task.RewardCents || e.Source != models.LedgerSourceTask {
		t.Errorf("reward entry: got %+v", e)
	}
	if events.completed != 1 {
		t.Errorf("completed events: got %d, want 1", events.completed)
	}

	// Completing the same claim again is rejected and credits nothing.
	if _, err := svc.Complete(ctx, account, claim.ID, ""); !errors.Is(err, ErrAlreadyCompleted) {
		t.Errorf("expected ErrAlreadyCompleted, got: %v", err)
	}
	if len(led.entries) != 1 {
		t.Errorf("ledger entries after repeat: got %d, want 1", len(led.entries))
	}
}

// ---------------------------------------------------------------------------
// 5. TestCompleteWrongOwner
// ---------------------------------------------------------------------------

func TestCompleteWrongOwner(t *testing.T) {
	owner := uuid.New()
	task := testTask(24 * time.Hour)
	led := &mockLedger{}
	svc, _ := newTestService(newMockTaskStore(task), newMockClaimStore(), led)
	ctx := context.Background()

	claim, err := svc.Claim(ctx, owner, task.ID)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}

	// Another account cannot complete the claim; the error does not reveal
	// that the claim exists.
	if _, err := svc.Complete(ctx, uuid.New(), claim.ID, ""); !errors.Is(err, ErrClaimNotFound) {
		t.Errorf("expected ErrClaimNotFound, got: %v", err)
	}
	if len(led.entries) != 0 {
		t.Errorf("no reward should be credited, got %d entries", len(led.entries))
	}

	if _, err := svc.Complete(ctx, owner, uuid.New(), ""); !errors.Is(err, ErrClaimNotFound) {
		t.Errorf("unknown claim: expected ErrClaimNotFound, got: %v", err)
	}
}

// ---------------------------------------------------------------------------
// 6. TestCreateValidation
// ---------------------------------------------------------------------------

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService(newMockTaskStore(), newMockClaimStore(), &mockLedger{})
	ctx := context.Background()
	future := time.Now().Add(24 * time.Hour)

	cases := []struct {
		name      string
		title     string
		platform  string
		reward    int64
		expiresAt time.Time
	}{
		{"empty title", "", models.PlatformFacebook, 100, future},
		{"unknown platform", "t", "myspace", 100, future},
		{"zero reward", "t", models.PlatformFacebook, 0, future},
		{"negative reward", "t", models.PlatformFacebook, -5, future},
		{"past expiry", "t", models.PlatformFacebook, 100, time.Now().Add(-time.Hour)},
	}
	for _, tc := range cases {
		if _, err := svc.Create(ctx, tc.title, "desc", tc.platform, tc.reward, tc.expiresAt); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%s: expected ErrInvalidInput, got: %v", tc.name, err)
		}
	}

	task, err := svc.Create(ctx, "Follow account", "Follow and like.", models.PlatformInstagram, 350, future)
	if err != nil {
		t.Fatalf("valid Create: %v", err)
	}
	if task.ID == uuid.Nil {
		t.Error("task should get a fresh id")
	}
}

// ---------------------------------------------------------------------------
// 7. TestListClaimsAndStats
// ---------------------------------------------------------------------------

func TestListClaimsAndStats(t *testing.T) {
	account := uuid.New()
	t1 := testTask(24 * time.Hour)
	t2 := testTask(48 * time.Hour)
	led := &mockLedger{}
	svc, _ := newTestService(newMockTaskStore(t1, t2), newMockClaimStore(), led)
	ctx := context.Background()

	c1, err := svc.Claim(ctx, account, t1.ID)
	if err != nil {
		t.Fatalf("claim t1: %v", err)
	}
	if _, err := svc.Claim(ctx, account, t2.ID); err != nil {
		t.Fatalf("claim t2: %v", err)
	}
	if _, err := svc.Complete(ctx, account, c1.ID, ""); err != nil {
		t.Fatalf("complete c1: %v", err)
	}

	claims, err := svc.ListClaims(ctx, account)
	if err != nil {
		t.Fatalf("ListClaims: %v", err)
	}
	if len(claims) != 2 {
		t.Fatalf("claims: got %d, want 2", len(claims))
	}
	for _, c := range claims {
		if c.Task == nil {
			t.Error("claim should carry its task")
		}
	}

	stats, err := svc.Stats(ctx, account)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Completed != 1 || stats.Active != 1 {
		t.Errorf("stats counts: got %d completed, %d active; want 1, 1", stats.Completed, stats.Active)
	}
	if stats.TaskEarningsCents != t1.RewardCents {
		t.Errorf("task earnings: got %d, want %d", stats.TaskEarningsCents, t1.RewardCents)
	}
}
