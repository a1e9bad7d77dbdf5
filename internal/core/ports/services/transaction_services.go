package services

import (
	"context"

	"github.com/finvolv/balance_backend/internal/core/domain"
	"github.com/finvolv/balance_backend/internal/dto"
)

// TransactionSubmitterSvc defines the idempotent submission path.
type TransactionSubmitterSvc interface {
	// SubmitTransaction runs one logical operation end-to-end: idempotency
	// claim, locked balance mutation, outcome commit, post-commit notification.
	// The returned outcome is terminal; transport errors are reported through
	// the error return.
	SubmitTransaction(ctx context.Context, req dto.SubmitTransactionRequest) (*dto.TransactionOutcome, error)
}

// TransactionReaderSvc defines read operations for transactions.
type TransactionReaderSvc interface {
	// GetTransactionByID retrieves a transaction by its ID.
	GetTransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error)
}

// TransactionSvcFacade combines the transaction service interfaces.
type TransactionSvcFacade interface {
	TransactionSubmitterSvc
	TransactionReaderSvc
}
