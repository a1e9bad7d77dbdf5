package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is a ledger account holder. Balance is authoritative and mutated only
// through the transaction coordinator's locked update path.
type User struct {
	UserID    string          `json:"userID"`
	Name      string          `json:"name"`
	Balance   decimal.Decimal `json:"balance"` // Never negative; enforced by service and DB constraint
	CreatedAt time.Time       `json:"createdAt"`
}
