package models

import (
	"time"

	"github.com/google/uuid"
)

// Claim lifecycle. active -> completed and active -> expired are the only
// transitions; completed and expired are terminal.
const (
	ClaimStatusActive    = "active"
	ClaimStatusCompleted = "completed"
	ClaimStatusExpired   = "expired"
)

// TaskClaim links one account to one task it has taken on. At most one claim
// may exist per (account, task) pair.
type TaskClaim struct {
	ID          uuid.UUID  `json:"id"`
	AccountID   uuid.UUID  `json:"account_id"`
	TaskID      uuid.UUID  `json:"task_id"`
	Status      string     `json:"status"`
	ProofURL    *string    `json:"proof_url,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
