package models

import "time"

// Ledger transaction reasons
const (
	CreditReasonSignup     = "signup"
	CreditReasonGeneration = "generation"
	CreditReasonRefund     = "refund"
	CreditReasonGrant      = "grant"
)

// CreditTransaction is one applied balance change. IdempotencyKey is unique,
// so replaying a debit or refund with the same key is a no-op.
type CreditTransaction struct {
	ID             string    `json:"id" db:"id"`
	UserID         string    `json:"user_id" db:"user_id"`
	Amount         int       `json:"amount" db:"amount"`
	Reason         string    `json:"reason" db:"reason"`
	IdempotencyKey string    `json:"-" db:"idempotency_key"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
