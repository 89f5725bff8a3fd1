package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"webforge/internal/domain"
	"webforge/internal/domain/models"
	"webforge/internal/domain/services"
)

// PostgresCreditLedger implements CreditLedger on two tables: a balance per user
// and an append-only transaction log whose idempotency_key is unique.
type PostgresCreditLedger struct {
	pool          *pgxpool.Pool
	tables        *TableNames
	logger        *slog.Logger
	tx            *TransactionManager
	signupCredits int
}

// NewCreditLedger creates a ledger that opens new accounts with signupCredits
func NewCreditLedger(config *RepositoryConfig, signupCredits int) *PostgresCreditLedger {
	return &PostgresCreditLedger{
		pool:          config.Pool,
		tables:        config.Tables,
		logger:        config.Logger,
		tx:            NewTransactionManager(config),
		signupCredits: signupCredits,
	}
}

// Debit subtracts entry.Amount unless the key was already applied
func (l *PostgresCreditLedger) Debit(ctx context.Context, entry *services.LedgerEntry) error {
	return l.apply(ctx, entry, -entry.Amount)
}

// Credit adds entry.Amount unless the key was already applied
func (l *PostgresCreditLedger) Credit(ctx context.Context, entry *services.LedgerEntry) error {
	return l.apply(ctx, entry, entry.Amount)
}

func (l *PostgresCreditLedger) apply(ctx context.Context, entry *services.LedgerEntry, delta int) error {
	if entry.Amount < 0 {
		return fmt.Errorf("%w: amount must not be negative", domain.ErrValidation)
	}

	return l.tx.ExecTx(ctx, func(ctx context.Context) error {
		if err := l.ensureAccount(ctx, entry.UserID); err != nil {
			return err
		}

		inserted, err := l.record(ctx, entry.UserID, delta, entry.Reason, entry.IdempotencyKey)
		if err != nil {
			return err
		}
		if !inserted {
			l.logger.Debug("ledger entry already applied", "key", entry.IdempotencyKey)
			return nil
		}

		query := fmt.Sprintf(`
			UPDATE %s SET balance = balance + $2, updated_at = now()
			WHERE user_id = $1 AND balance + $2 >= 0
		`, l.tables.CreditAccounts)

		result, err := GetExecutor(ctx, l.pool).Exec(ctx, query, entry.UserID, delta)
		if err != nil {
			return fmt.Errorf("update balance: %w", err)
		}
		if result.RowsAffected() == 0 {
			return fmt.Errorf("user %s needs %d: %w", entry.UserID, entry.Amount, domain.ErrInsufficientCredits)
		}
		return nil
	})
}

// Balance returns the user's balance, opening the account on first use
func (l *PostgresCreditLedger) Balance(ctx context.Context, userID string) (int, error) {
	var balance int
	err := l.tx.ExecTx(ctx, func(ctx context.Context) error {
		if err := l.ensureAccount(ctx, userID); err != nil {
			return err
		}

		query := fmt.Sprintf(`SELECT balance FROM %s WHERE user_id = $1`, l.tables.CreditAccounts)
		if err := GetExecutor(ctx, l.pool).QueryRow(ctx, query, userID).Scan(&balance); err != nil {
			return fmt.Errorf("read balance: %w", err)
		}
		return nil
	})
	return balance, err
}

// ensureAccount opens an account with the signup grant if none exists
func (l *PostgresCreditLedger) ensureAccount(ctx context.Context, userID string) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, balance) VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, l.tables.CreditAccounts)

	result, err := GetExecutor(ctx, l.pool).Exec(ctx, query, userID, l.signupCredits)
	if err != nil {
		return fmt.Errorf("open account: %w", err)
	}
	if result.RowsAffected() == 0 {
		return nil
	}

	if _, err := l.record(ctx, userID, l.signupCredits, models.CreditReasonSignup, "signup:"+userID); err != nil {
		return err
	}
	l.logger.Info("credit account opened", "user_id", userID, "balance", l.signupCredits)
	return nil
}

// record appends a transaction row; false means the key was already present
func (l *PostgresCreditLedger) record(ctx context.Context, userID string, amount int, reason, key string) (bool, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, amount, reason, idempotency_key)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (idempotency_key) DO NOTHING
	`, l.tables.CreditTransactions)

	result, err := GetExecutor(ctx, l.pool).Exec(ctx, query, uuid.NewString(), userID, amount, reason, key)
	if err != nil {
		return false, fmt.Errorf("record ledger entry: %w", err)
	}
	return result.RowsAffected() == 1, nil
}
