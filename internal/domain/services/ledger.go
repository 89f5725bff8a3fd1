package services

import "context"

// LedgerEntry is one balance change request against the credit ledger.
type LedgerEntry struct {
	UserID         string
	Amount         int
	Reason         string
	IdempotencyKey string
}

// CreditLedger debits and credits user balances.
//
// Both mutations are idempotent on IdempotencyKey: replaying an applied key
// returns nil without touching the balance. Implementations join a
// transaction carried by ctx.
type CreditLedger interface {
	// Debit subtracts Amount, or returns domain.ErrInsufficientCredits
	Debit(ctx context.Context, entry *LedgerEntry) error

	// Credit adds Amount
	Credit(ctx context.Context, entry *LedgerEntry) error

	// Balance returns the user's current balance, opening the account if needed
	Balance(ctx context.Context, userID string) (int, error)
}
