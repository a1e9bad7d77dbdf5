package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventTransactionCreated is the event type emitted after a transaction commits.
const EventTransactionCreated = "transaction_created"

// TransactionEvent is the post-commit notification payload fanned out to
// external systems. Delivery is best-effort and never affects the committed
// transaction result.
type TransactionEvent struct {
	EventType     string          `json:"event_type"`
	UserID        string          `json:"user_id"`
	Amount        decimal.Decimal `json:"amount"`
	NewBalance    decimal.Decimal `json:"new_balance"`
	TransactionID string          `json:"transaction_id"`
	CreatedAt     time.Time       `json:"created_at"`
	TraceID       string          `json:"trace_id"`
}
