package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ClaimState is the outcome of attempting to claim an idempotency key.
type ClaimState string

const (
	// ClaimFresh means the key was never seen; the caller owns it and must execute.
	ClaimFresh ClaimState = "FRESH"
	// ClaimInProgress means another request holds the key; the caller must not execute.
	ClaimInProgress ClaimState = "IN_PROGRESS"
	// ClaimCompleted means the operation already succeeded; replay the stored result.
	ClaimCompleted ClaimState = "COMPLETED"
	// ClaimFailed means the operation already failed; replay the stored error.
	ClaimFailed ClaimState = "FAILED"
)

// OperationResult is the stored outcome of a completed operation, replayed
// verbatim on duplicate submissions.
type OperationResult struct {
	TransactionID string          `json:"transactionID"`
	NewBalance    decimal.Decimal `json:"newBalance"`
}

// IdempotencyRecord is the durable state kept per idempotency key for the
// retention window. RequestHash pins the key to the payload it was first
// submitted with so key reuse with a different payload can be rejected.
type IdempotencyRecord struct {
	Key         string           `json:"key"`
	Status      ClaimState       `json:"status"`
	RequestHash string           `json:"requestHash"`
	Result      *OperationResult `json:"result,omitempty"`
	ErrorKind   string           `json:"errorKind,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
}
