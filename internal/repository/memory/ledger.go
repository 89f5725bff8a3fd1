package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"webforge/internal/domain"
	"webforge/internal/domain/models"
	"webforge/internal/domain/services"
)

// CreditLedger implements services.CreditLedger on a Store
type CreditLedger struct {
	store         *Store
	logger        *slog.Logger
	signupCredits int
}

// NewCreditLedger creates a ledger that opens accounts with signupCredits
func NewCreditLedger(store *Store, signupCredits int, logger *slog.Logger) *CreditLedger {
	return &CreditLedger{store: store, logger: logger, signupCredits: signupCredits}
}

func (l *CreditLedger) Debit(ctx context.Context, entry *services.LedgerEntry) error {
	return l.apply(ctx, entry, -entry.Amount)
}

func (l *CreditLedger) Credit(ctx context.Context, entry *services.LedgerEntry) error {
	return l.apply(ctx, entry, entry.Amount)
}

func (l *CreditLedger) apply(ctx context.Context, entry *services.LedgerEntry, delta int) error {
	if entry.Amount < 0 {
		return fmt.Errorf("%w: amount must not be negative", domain.ErrValidation)
	}

	return l.store.write(ctx, func(st *state) error {
		l.ensureAccount(st, entry.UserID)

		if _, applied := st.transactions[entry.IdempotencyKey]; applied {
			l.logger.Debug("ledger entry already applied", "key", entry.IdempotencyKey)
			return nil
		}
		if st.balances[entry.UserID]+delta < 0 {
			return fmt.Errorf("user %s needs %d: %w", entry.UserID, entry.Amount, domain.ErrInsufficientCredits)
		}

		st.balances[entry.UserID] += delta
		record(st, entry.UserID, delta, entry.Reason, entry.IdempotencyKey)
		return nil
	})
}

func (l *CreditLedger) Balance(ctx context.Context, userID string) (int, error) {
	balance := 0
	err := l.store.write(ctx, func(st *state) error {
		l.ensureAccount(st, userID)
		balance = st.balances[userID]
		return nil
	})
	return balance, err
}

// Transactions returns a user's applied entries, oldest first
func (l *CreditLedger) Transactions(ctx context.Context, userID string) ([]models.CreditTransaction, error) {
	txns := []models.CreditTransaction{}
	err := l.store.read(ctx, func(st *state) error {
		for _, t := range st.transactions {
			if t.UserID == userID {
				txns = append(txns, t)
			}
		}
		return nil
	})
	sort.Slice(txns, func(i, j int) bool { return txns[i].CreatedAt.Before(txns[j].CreatedAt) })
	return txns, err
}

func (l *CreditLedger) ensureAccount(st *state, userID string) {
	if _, ok := st.balances[userID]; ok {
		return
	}
	st.balances[userID] = l.signupCredits
	record(st, userID, l.signupCredits, models.CreditReasonSignup, "signup:"+userID)
}

func record(st *state, userID string, amount int, reason, key string) {
	st.transactions[key] = models.CreditTransaction{
		ID:             uuid.NewString(),
		UserID:         userID,
		Amount:         amount,
		Reason:         reason,
		IdempotencyKey: key,
		CreatedAt:      time.Now().UTC(),
	}
}
