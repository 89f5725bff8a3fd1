package repositories

import "context"

// TxFn is a function that runs within a transaction
type TxFn func(ctx context.Context) error

// TransactionManager handles database transactions
type TransactionManager interface {
	// ExecTx executes fn within a transaction. When ctx already carries a
	// transaction, fn runs in a nested one (savepoint) that rolls back alone.
	ExecTx(ctx context.Context, fn TxFn) error
}
