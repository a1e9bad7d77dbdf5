package dto

import (
	"time"

	"github.com/finvolv/balance_backend/internal/core/domain"
	"github.com/shopspring/decimal"
)

// CreateTransactionRequest is the HTTP payload for submitting an operation.
// The idempotency key travels in the Idempotency-Key header, not the body.
type CreateTransactionRequest struct {
	UserID string          `json:"user_id" binding:"required"`
	Type   string          `json:"type" binding:"required,oneof=DEPOSIT WITHDRAW"`
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// SubmitTransactionRequest is the coordinator's input: one logical operation.
type SubmitTransactionRequest struct {
	UserID         string
	Type           domain.TransactionType
	Amount         decimal.Decimal
	IdempotencyKey string
	TraceID        string
}

// OutcomeStatus is the externally observable terminal state of a submission.
type OutcomeStatus string

const (
	OutcomeCommitted      OutcomeStatus = "COMMITTED"
	OutcomeRejected       OutcomeStatus = "REJECTED"
	OutcomeConflict       OutcomeStatus = "CONFLICT"
	OutcomeStorageFailure OutcomeStatus = "STORAGE_FAILURE"
)

// Error kinds stored in idempotency records and surfaced in outcomes.
const (
	ErrKindInsufficientFunds = "INSUFFICIENT_FUNDS"
	ErrKindInvalidAmount     = "INVALID_AMOUNT"
	ErrKindUserNotFound      = "USER_NOT_FOUND"
	ErrKindStorageError      = "STORAGE_ERROR"
)

// TransactionOutcome is the coordinator's result record. TransactionID and
// NewBalance are set only for COMMITTED outcomes; ErrorKind only for REJECTED
// and STORAGE_FAILURE. Replayed marks outcomes served from the idempotency
// store rather than a fresh execution.
type TransactionOutcome struct {
	Status        OutcomeStatus   `json:"status"`
	TransactionID string          `json:"transaction_id,omitempty"`
	NewBalance    decimal.Decimal `json:"new_balance,omitempty"`
	ErrorKind     string          `json:"error_kind,omitempty"`
	Replayed      bool            `json:"-"`
}

// TransactionResponse is the outward representation of a stored transaction.
type TransactionResponse struct {
	TransactionID  string          `json:"transaction_id"`
	UserID         string          `json:"user_id"`
	Type           string          `json:"type"`
	Amount         decimal.Decimal `json:"amount"`
	RunningBalance decimal.Decimal `json:"running_balance"`
	Status         string          `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ToTransactionResponse converts a domain.Transaction to its response DTO.
func ToTransactionResponse(txn *domain.Transaction) TransactionResponse {
	return TransactionResponse{
		TransactionID:  txn.TransactionID,
		UserID:         txn.UserID,
		Type:           string(txn.Type),
		Amount:         txn.Amount,
		RunningBalance: txn.RunningBalance,
		Status:         string(txn.Status),
		CreatedAt:      txn.CreatedAt,
	}
}
