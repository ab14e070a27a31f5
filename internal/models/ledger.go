package models

import (
	"time"

	"github.com/google/uuid"
)

// Ledger entry sources.
const (
	LedgerSourceTask       = "task"
	LedgerSourceReferral   = "referral"
	LedgerSourceBonus      = "bonus"
	LedgerSourceWithdrawal = "withdrawal"
)

// KnownLedgerSources is the set of valid source tags.
var KnownLedgerSources = map[string]bool{
	LedgerSourceTask:       true,
	LedgerSourceReferral:   true,
	LedgerSourceBonus:      true,
	LedgerSourceWithdrawal: true,
}

// LedgerEntry is an immutable, append-only record of a balance-affecting
// event. Positive amounts are credits, negative amounts are debits. An
// account's balance is by definition the sum of its entries.
type LedgerEntry struct {
	ID          uuid.UUID `json:"id"`
	AccountID   uuid.UUID `json:"account_id"`
	AmountCents int64     `json:"amount_cents"`
	Source      string    `json:"source"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}
