package models

import (
	"time"

	"github.com/google/uuid"
)

// Withdrawal request lifecycle. pending -> completed or pending -> rejected;
// both end states are terminal.
const (
	WithdrawalStatusPending   = "pending"
	WithdrawalStatusCompleted = "completed"
	WithdrawalStatusRejected  = "rejected"
)

// Supported payout methods.
const (
	PaymentMethodPayPal       = "paypal"
	PaymentMethodBankTransfer = "bank_transfer"
	PaymentMethodCrypto       = "crypto"
)

// KnownPaymentMethods is the set of payout methods a request may use.
var KnownPaymentMethods = map[string]bool{
	PaymentMethodPayPal:       true,
	PaymentMethodBankTransfer: true,
	PaymentMethodCrypto:       true,
}

type WithdrawalRequest struct {
	ID           uuid.UUID  `json:"id"`
	AccountID    uuid.UUID  `json:"account_id"`
	AmountCents  int64      `json:"amount_cents"`
	Method       string     `json:"method"`
	Destination  string     `json:"destination"`
	Status       string     `json:"status"`
	RejectReason *string    `json:"reject_reason,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}
