package withdrawals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/tasklift/backend/internal/ledger"
	"github.com/tasklift/backend/internal/models"
)

// maxWithdrawalCents caps a single withdrawal at $1,000.
const maxWithdrawalCents int64 = 100_000

var (
	// ErrInsufficientBalance is returned when the requested amount exceeds the
	// available balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrRequestNotFound is returned when the withdrawal request id is unknown.
	ErrRequestNotFound = errors.New("withdrawal request not found")
	// ErrInvalidStateTransition is returned when settling a request that is
	// not pending.
	ErrInvalidStateTransition = errors.New("withdrawal request is not pending")
	// ErrInvalidInput is returned for malformed withdrawal parameters.
	ErrInvalidInput = errors.New("invalid input")
)

// PayoutArgs is the background job that executes a pending withdrawal.
type PayoutArgs struct {
	RequestID uuid.UUID `json:"request_id"`
}

func (PayoutArgs) Kind() string { return "withdrawal_payout" }

// Store is the minimal withdrawal persistence interface.
type Store interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	InsertTx(ctx context.Context, tx pgx.Tx, wr *models.WithdrawalRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.WithdrawalRequest, error)
	SetStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string, reason *string, completedAt time.Time) error
	ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]*models.WithdrawalRequest, error)
}

// JobInserter enqueues jobs transactionally with the caller's writes.
type JobInserter interface {
	InsertTx(ctx context.Context, tx pgx.Tx, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// Events receives domain events after the corresponding transaction commits.
type Events interface {
	WithdrawalStateChanged(ctx context.Context, requestID, accountID uuid.UUID, status string, amountCents int64)
}

type Service interface {
	Request(ctx context.Context, accountID uuid.UUID, amountCents int64, method, destination string) (*models.WithdrawalRequest, error)
	Get(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error)
	List(ctx context.Context, accountID uuid.UUID) ([]*models.WithdrawalRequest, error)
	MarkCompleted(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error)
	MarkRejected(ctx context.Context, id uuid.UUID, reason string) (*models.WithdrawalRequest, error)
}

type service struct {
	store  Store
	ledger ledger.Service
	jobs   JobInserter
	events Events
	now    func() time.Time
}

func NewService(store Store, ledgerSvc ledger.Service, jobs JobInserter, events Events) Service {
	return &service{
		store:  store,
		ledger: ledgerSvc,
		jobs:   jobs,
		events: events,
		now:    time.Now,
	}
}

var _ Service = (*service)(nil)

// Request debits the account and records a pending withdrawal in one
// transaction. The debit lands immediately, so the available balance already
// excludes pending withdrawals and two racing requests cannot both pass the
// balance check: the account lock taken by the ledger serializes them. The
// payout job is enqueued in the same transaction and only becomes visible to
// workers if the debit commits.
func (s *service) Request(ctx context.Context, accountID uuid.UUID, amountCents int64, method, destination string) (*models.WithdrawalRequest, error) {
	if amountCents <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if amountCents > maxWithdrawalCents {
		return nil, fmt.Errorf("%w: amount exceeds the %d cent per-withdrawal limit", ErrInvalidInput, maxWithdrawalCents)
	}
	if !models.KnownPaymentMethods[method] {
		return nil, fmt.Errorf("%w: unknown payment method %q", ErrInvalidInput, method)
	}
	if destination == "" {
		return nil, fmt.Errorf("%w: destination is required", ErrInvalidInput)
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	wr := &models.WithdrawalRequest{
		ID:          uuid.New(),
		AccountID:   accountID,
		AmountCents: amountCents,
		Method:      method,
		Destination: destination,
		Status:      models.WithdrawalStatusPending,
	}
	desc := fmt.Sprintf("withdrawal %s via %s", wr.ID, method)
	// The debit locks the account row; read the balance after so it is stable
	// for the rest of the transaction.
	if _, err := s.ledger.AppendTx(ctx, tx, accountID, -amountCents, models.LedgerSourceWithdrawal, desc); err != nil {
		return nil, err
	}
	balance, err := s.ledger.BalanceTx(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}
	if balance < 0 {
		return nil, ErrInsufficientBalance
	}
	if err := s.store.InsertTx(ctx, tx, wr); err != nil {
		return nil, err
	}
	if _, err := s.jobs.InsertTx(ctx, tx, PayoutArgs{RequestID: wr.ID}, nil); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.events.WithdrawalStateChanged(ctx, wr.ID, accountID, wr.Status, amountCents)
	return wr, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error) {
	wr, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	return wr, nil
}

func (s *service) List(ctx context.Context, accountID uuid.UUID) ([]*models.WithdrawalRequest, error) {
	return s.store.ListByAccountID(ctx, accountID)
}

// MarkCompleted settles a pending request after the payout went through.
func (s *service) MarkCompleted(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error) {
	return s.settle(ctx, id, models.WithdrawalStatusCompleted, nil)
}

// MarkRejected settles a pending request that could not be paid out and
// credits the debited amount back in the same transaction, so the account is
// never short for a withdrawal that did not happen.
func (s *service) MarkRejected(ctx context.Context, id uuid.UUID, reason string) (*models.WithdrawalRequest, error) {
	if reason == "" {
		reason = "payout failed"
	}
	return s.settle(ctx, id, models.WithdrawalStatusRejected, &reason)
}

func (s *service) settle(ctx context.Context, id uuid.UUID, status string, reason *string) (*models.WithdrawalRequest, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	wr, err := s.store.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	if wr.Status != models.WithdrawalStatusPending {
		return nil, ErrInvalidStateTransition
	}

	settledAt := s.now()
	if err := s.store.SetStatusTx(ctx, tx, wr.ID, status, reason, settledAt); err != nil {
		return nil, err
	}
	if status == models.WithdrawalStatusRejected {
		desc := fmt.Sprintf("refund for rejected withdrawal %s", wr.ID)
		if _, err := s.ledger.AppendTx(ctx, tx, wr.AccountID, wr.AmountCents, models.LedgerSourceWithdrawal, desc); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	wr.Status = status
	wr.RejectReason = reason
	wr.CompletedAt = &settledAt
	s.events.WithdrawalStateChanged(ctx, wr.ID, wr.AccountID, status, wr.AmountCents)
	return wr, nil
}
