package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tasklift/backend/internal/ledger"
	"github.com/tasklift/backend/internal/models"
)

var (
	// ErrTaskNotFound is returned when the task id is unknown.
	ErrTaskNotFound = errors.New("task not found")
	// ErrTaskExpired is returned when claiming a task whose expiry has passed.
	ErrTaskExpired = errors.New("task expired")
	// ErrAlreadyClaimed is returned when the account already holds a claim on
	// the task.
	ErrAlreadyClaimed = errors.New("task already claimed")
	// ErrClaimNotFound is returned when the claim id is unknown or the claim
	// belongs to another account.
	ErrClaimNotFound = errors.New("claim not found")
	// ErrAlreadyCompleted is returned when completing a claim that is not
	// active.
	ErrAlreadyCompleted = errors.New("claim already completed")
	// ErrInvalidInput is returned for malformed task parameters.
	ErrInvalidInput = errors.New("invalid input")
)

// TaskStore is the minimal task persistence interface.
type TaskStore interface {
	Create(ctx context.Context, t *models.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	ListActive(ctx context.Context, now time.Time) ([]*models.Task, error)
}

// ClaimStore is the minimal claim persistence interface.
type ClaimStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Create(ctx context.Context, c *models.TaskClaim) error
	GetByAccountAndTask(ctx context.Context, accountID, taskID uuid.UUID) (*models.TaskClaim, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.TaskClaim, error)
	MarkCompletedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, proofURL *string, completedAt time.Time) error
	ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]*models.TaskClaim, error)
	CountByAccountAndStatus(ctx context.Context, accountID uuid.UUID, status string) (int, error)
}

// Events receives domain events after the corresponding transaction commits.
type Events interface {
	TaskCompleted(ctx context.Context, accountID, taskID, claimID uuid.UUID, rewardCents int64)
}

// ClaimWithTask pairs a claim with its task for listing.
type ClaimWithTask struct {
	models.TaskClaim
	Task *models.Task `json:"task"`
}

// Stats summarizes an account's task activity. Earnings come from the
// ledger, never from recounting claims.
type Stats struct {
	Completed         int   `json:"completed"`
	Active            int   `json:"active"`
	TaskEarningsCents int64 `json:"task_earnings_cents"`
}

type Service interface {
	Create(ctx context.Context, title, description, platform string, rewardCents int64, expiresAt time.Time) (*models.Task, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Task, error)
	ListActive(ctx context.Context, now time.Time) ([]*models.Task, error)
	Claim(ctx context.Context, accountID, taskID uuid.UUID) (*models.TaskClaim, error)
	Complete(ctx context.Context, accountID, claimID uuid.UUID, proofURL string) (*models.TaskClaim, error)
	ListClaims(ctx context.Context, accountID uuid.UUID) ([]*ClaimWithTask, error)
	Stats(ctx context.Context, accountID uuid.UUID) (*Stats, error)
}

type service struct {
	tasks  TaskStore
	claims ClaimStore
	ledger ledger.Service
	events Events
	now    func() time.Time
}

func NewService(tasks TaskStore, claims ClaimStore, ledgerSvc ledger.Service, events Events) Service {
	return &service{
		tasks:  tasks,
		claims: claims,
		ledger: ledgerSvc,
		events: events,
		now:    time.Now,
	}
}

var _ Service = (*service)(nil)

// Create registers a new task. Tasks are immutable once created.
func (s *service) Create(ctx context.Context, title, description, platform string, rewardCents int64, expiresAt time.Time) (*models.Task, error) {
	if title == "" || description == "" {
		return nil, fmt.Errorf("%w: title and description are required", ErrInvalidInput)
	}
	if !models.KnownPlatforms[platform] {
		return nil, fmt.Errorf("%w: unknown platform %q", ErrInvalidInput, platform)
	}
	if rewardCents <= 0 {
		return nil, fmt.Errorf("%w: reward must be positive", ErrInvalidInput)
	}
	if !expiresAt.After(s.now()) {
		return nil, fmt.Errorf("%w: expiry must be in the future", ErrInvalidInput)
	}
	task := &models.Task{
		ID:          uuid.New(),
		Title:       title,
		Description: description,
		Platform:    platform,
		RewardCents: rewardCents,
		ExpiresAt:   expiresAt,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return task, nil
}

func (s *service) ListActive(ctx context.Context, now time.Time) ([]*models.Task, error) {
	return s.tasks.ListActive(ctx, now)
}

// Claim creates an active claim for the (account, task) pair. The unique
// pair index backstops the pre-check under concurrent claims.
func (s *service) Claim(ctx context.Context, accountID, taskID uuid.UUID) (*models.TaskClaim, error) {
	task, err := s.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Expired(s.now()) {
		return nil, ErrTaskExpired
	}
	if _, err := s.claims.GetByAccountAndTask(ctx, accountID, taskID); err == nil {
		return nil, ErrAlreadyClaimed
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	claim := &models.TaskClaim{
		ID:        uuid.New(),
		AccountID: accountID,
		TaskID:    taskID,
		Status:    models.ClaimStatusActive,
	}
	if err := s.claims.Create(ctx, claim); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrAlreadyClaimed
		}
		return nil, err
	}
	return claim, nil
}

// Complete transitions the claim to completed and credits the task reward in
// one transaction: the claim row is locked, so a concurrent completion of the
// same claim either sees the terminal state or waits and then sees it. A
// committed completion always has its ledger credit and vice versa.
func (s *service) Complete(ctx context.Context, accountID, claimID uuid.UUID, proofURL string) (*models.TaskClaim, error) {
	tx, err := s.claims.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	claim, err := s.claims.GetByIDForUpdate(ctx, tx, claimID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClaimNotFound
		}
		return nil, err
	}
	if claim.AccountID != accountID {
		return nil, ErrClaimNotFound
	}
	if claim.Status != models.ClaimStatusActive {
		return nil, ErrAlreadyCompleted
	}

	task, err := s.tasks.GetByID(ctx, claim.TaskID)
	if err != nil {
		return nil, err
	}

	completedAt := s.now()
	var proof *string
	if proofURL != "" {
		proof = &proofURL
	}
	if err := s.claims.MarkCompletedTx(ctx, tx, claim.ID, proof, completedAt); err != nil {
		return nil, err
	}
	desc := fmt.Sprintf("reward for task %q", task.Title)
	if _, err := s.ledger.AppendTx(ctx, tx, accountID, task.RewardCents, models.LedgerSourceTask, desc); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	claim.Status = models.ClaimStatusCompleted
	claim.ProofURL = proof
	claim.CompletedAt = &completedAt
	s.events.TaskCompleted(ctx, accountID, task.ID, claim.ID, task.RewardCents)
	return claim, nil
}

// ListClaims returns the account's claims joined with their tasks.
func (s *service) ListClaims(ctx context.Context, accountID uuid.UUID) ([]*ClaimWithTask, error) {
	claims, err := s.claims.ListByAccountID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*models.Task)
	out := make([]*ClaimWithTask, 0, len(claims))
	for _, c := range claims {
		task, ok := byID[c.TaskID]
		if !ok {
			task, err = s.tasks.GetByID(ctx, c.TaskID)
			if err != nil {
				return nil, err
			}
			byID[c.TaskID] = task
		}
		out = append(out, &ClaimWithTask{TaskClaim: *c, Task: task})
	}
	return out, nil
}

// Stats reports claim counts plus task earnings read from the ledger.
func (s *service) Stats(ctx context.Context, accountID uuid.UUID) (*Stats, error) {
	completed, err := s.claims.CountByAccountAndStatus(ctx, accountID, models.ClaimStatusCompleted)
	if err != nil {
		return nil, err
	}
	active, err := s.claims.CountByAccountAndStatus(ctx, accountID, models.ClaimStatusActive)
	if err != nil {
		return nil, err
	}
	earnings, err := s.ledger.SumBySource(ctx, accountID, models.LedgerSourceTask)
	if err != nil {
		return nil, err
	}
	return &Stats{Completed: completed, Active: active, TaskEarningsCents: earnings}, nil
}
