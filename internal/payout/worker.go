package payout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/tasklift/backend/internal/models"
	"github.com/tasklift/backend/internal/withdrawals"
)

// Coordinator is the contract the worker needs to settle a request.
type Coordinator interface {
	Get(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error)
	MarkCompleted(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error)
	MarkRejected(ctx context.Context, id uuid.UUID, reason string) (*models.WithdrawalRequest, error)
}

type Worker struct {
	river.WorkerDefaults[withdrawals.PayoutArgs]
	coordinator Coordinator
	executorURL string
	httpClient  *http.Client
}

func NewWorker(coordinator Coordinator, executorURL string) *Worker {
	return &Worker{
		coordinator: coordinator,
		executorURL: executorURL,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
	}
}

// Work sends the payout to the external executor and settles the request. A
// network error returns without settling so river retries the job; only a
// definitive executor response moves the request out of pending.
func (w *Worker) Work(ctx context.Context, job *river.Job[withdrawals.PayoutArgs]) error {
	wr, err := w.coordinator.Get(ctx, job.Args.RequestID)
	if err != nil {
		if errors.Is(err, withdrawals.ErrRequestNotFound) {
			return river.JobCancel(err)
		}
		return err
	}
	if wr.Status != models.WithdrawalStatusPending {
		return nil
	}

	body, err := json.Marshal(map[string]any{
		"request_id":   wr.ID,
		"amount_cents": wr.AmountCents,
		"method":       wr.Method,
		"destination":  wr.Destination,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.executorURL, bytes.NewReader(body))
	if err != nil {
		return w.reject(ctx, wr.ID, fmt.Sprintf("failed to create request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("network error calling payout executor: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return w.reject(ctx, wr.ID, fmt.Sprintf("payout executor returned status %d", resp.StatusCode))
	}

	if _, err := w.coordinator.MarkCompleted(ctx, wr.ID); err != nil {
		if errors.Is(err, withdrawals.ErrInvalidStateTransition) {
			return nil
		}
		return fmt.Errorf("failed to mark withdrawal completed: %w", err)
	}
	return nil
}

func (w *Worker) reject(ctx context.Context, id uuid.UUID, reason string) error {
	if _, err := w.coordinator.MarkRejected(ctx, id, reason); err != nil {
		if errors.Is(err, withdrawals.ErrInvalidStateTransition) {
			return nil
		}
		return fmt.Errorf("payout failed (%s) AND failed to mark withdrawal rejected: %w", reason, err)
	}
	return nil
}
