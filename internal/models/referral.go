package models

import (
	"time"

	"github.com/google/uuid"
)

// ReferralBonus records a one-time bonus paid to a referrer for bringing in
// a referred account. At most one bonus may exist per (referrer, referred)
// pair.
type ReferralBonus struct {
	ID             uuid.UUID `json:"id"`
	ReferrerID     uuid.UUID `json:"referrer_id"`
	ReferredUserID uuid.UUID `json:"referred_user_id"`
	AmountCents    int64     `json:"amount_cents"`
	CreatedAt      time.Time `json:"created_at"`
}
