package repositories

import (
	"context"
	"time"

	"github.com/finvolv/balance_backend/internal/core/domain"
	"github.com/shopspring/decimal"
)

// BalanceCalculator computes the balance after a mutation from the balance
// observed under the row lock. Returning an error rejects the mutation and
// rolls back the surrounding database transaction.
type BalanceCalculator func(current decimal.Decimal) (decimal.Decimal, error)

// TransactionWriter defines the locked balance-mutation path.
type TransactionWriter interface {
	// ApplyTransaction executes one atomic balance mutation: lock the user row
	// (SELECT ... FOR UPDATE), compute the new balance via calc, update the
	// balance, and insert the append-only transaction row. The returned
	// transaction carries the resulting balance snapshot. Either every write
	// happens or none does.
	ApplyTransaction(ctx context.Context, txn domain.Transaction, calc BalanceCalculator) (*domain.Transaction, error)
}

// TransactionReader defines read operations for transaction data.
type TransactionReader interface {
	// FindTransactionByID retrieves a transaction by its ID.
	FindTransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error)

	// SumSignedAmountsAt returns the sum of signed committed amounts for a user
	// up to and including the given instant. Used for historical balances.
	SumSignedAmountsAt(ctx context.Context, userID string, at time.Time) (decimal.Decimal, error)
}

// TransactionRepositoryFacade combines the transaction repository interfaces.
type TransactionRepositoryFacade interface {
	TransactionWriter
	TransactionReader
}
