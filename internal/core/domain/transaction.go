package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType indicates the direction of a balance mutation.
type TransactionType string

const (
	Deposit  TransactionType = "DEPOSIT"
	Withdraw TransactionType = "WITHDRAW"
)

// IsValid reports whether the type is one of the known directions.
func (t TransactionType) IsValid() bool {
	return t == Deposit || t == Withdraw
}

// TransactionStatus is the terminal status recorded for a transaction row.
type TransactionStatus string

const (
	StatusCommitted TransactionStatus = "COMMITTED"
	StatusRejected  TransactionStatus = "REJECTED"
)

// Transaction is one applied balance mutation. Rows are append-only; they are
// never updated or deleted once written.
type Transaction struct {
	TransactionID  string            `json:"transactionID"` // Primary Key (UUID)
	UserID         string            `json:"userID"`        // FK -> User.userID (Not Null)
	Type           TransactionType   `json:"type"`          // DEPOSIT or WITHDRAW
	Amount         decimal.Decimal   `json:"amount"`        // Strictly positive; precise decimal type
	RunningBalance decimal.Decimal   `json:"runningBalance"` // Balance after this transaction
	Status         TransactionStatus `json:"status"`
	CreatedAt      time.Time         `json:"createdAt"`
}

// SignedAmount returns the amount with the sign implied by the direction:
// deposits positive, withdrawals negative.
func (t Transaction) SignedAmount() decimal.Decimal {
	if t.Type == Withdraw {
		return t.Amount.Neg()
	}
	return t.Amount
}
