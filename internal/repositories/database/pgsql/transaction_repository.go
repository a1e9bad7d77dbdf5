package pgsql

import (
	"context"
	"errors"
	"time"

	"github.com/finvolv/balance_backend/internal/apperrors"
	"github.com/finvolv/balance_backend/internal/core/domain"
	portsrepo "github.com/finvolv/balance_backend/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type PgxTransactionRepository struct {
	BaseRepository
}

// newPgxTransactionRepository creates a new repository for ledger transaction data.
func newPgxTransactionRepository(pool *pgxpool.Pool) portsrepo.TransactionRepositoryFacade {
	return &PgxTransactionRepository{
		BaseRepository: BaseRepository{Pool: pool},
	}
}

var _ portsrepo.TransactionRepositoryFacade = (*PgxTransactionRepository)(nil)

// ApplyTransaction mutates the user's balance and appends the transaction row
// in one database transaction. The user row is locked with SELECT ... FOR
// UPDATE for the duration, so concurrent operations on the same user
// serialize while operations on different users proceed independently.
func (r *PgxTransactionRepository) ApplyTransaction(ctx context.Context, txn domain.Transaction, calc portsrepo.BalanceCalculator) (*domain.Transaction, error) {
	tx, err := r.Begin(ctx)
	if err != nil {
		return nil, err
	}
	// Ignored if the transaction commits.
	defer r.Rollback(ctx, tx)

	var balance decimal.Decimal
	err = tx.QueryRow(ctx,
		`SELECT balance FROM users WHERE user_id = $1 FOR UPDATE;`,
		txn.UserID,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.NewAppError(500, "failed to lock user row "+txn.UserID, err)
	}

	newBalance, err := calc(balance)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx,
		`UPDATE users SET balance = $2 WHERE user_id = $1;`,
		txn.UserID, newBalance,
	)
	if err != nil {
		// The CHECK (balance >= 0) constraint backs up the calculator.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23514" {
			return nil, apperrors.ErrInsufficientFunds
		}
		return nil, apperrors.NewAppError(500, "failed to update balance for user "+txn.UserID, err)
	}

	txn.RunningBalance = newBalance
	_, err = tx.Exec(ctx,
		`INSERT INTO transactions (transaction_id, user_id, transaction_type, amount, running_balance, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7);`,
		txn.TransactionID,
		txn.UserID,
		txn.Type,
		txn.Amount,
		txn.RunningBalance,
		txn.Status,
		txn.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, apperrors.ErrDuplicate
		}
		return nil, apperrors.NewAppError(500, "failed to insert transaction "+txn.TransactionID, err)
	}

	if err := r.Commit(ctx, tx); err != nil {
		return nil, err
	}
	return &txn, nil
}

// FindTransactionByID retrieves a transaction by its ID.
func (r *PgxTransactionRepository) FindTransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	query := `
		SELECT transaction_id, user_id, transaction_type, amount, running_balance, status, created_at
		FROM transactions
		WHERE transaction_id = $1;
	`
	var txn domain.Transaction
	err := r.Pool.QueryRow(ctx, query, transactionID).Scan(
		&txn.TransactionID,
		&txn.UserID,
		&txn.Type,
		&txn.Amount,
		&txn.RunningBalance,
		&txn.Status,
		&txn.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.NewAppError(500, "failed to find transaction by ID "+transactionID, err)
	}
	return &txn, nil
}

// SumSignedAmountsAt sums committed signed amounts for a user up to the given
// instant: deposits count positive, withdrawals negative.
func (r *PgxTransactionRepository) SumSignedAmountsAt(ctx context.Context, userID string, at time.Time) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(
			CASE WHEN transaction_type = 'DEPOSIT' THEN amount ELSE -amount END
		), 0)
		FROM transactions
		WHERE user_id = $1 AND status = 'COMMITTED' AND created_at <= $2;
	`
	var sum decimal.Decimal
	err := r.Pool.QueryRow(ctx, query, userID, at).Scan(&sum)
	if err != nil {
		return decimal.Zero, apperrors.NewAppError(500, "failed to sum transactions for user "+userID, err)
	}
	return sum, nil
}
