package utils

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/finvolv/balance_backend/internal/core/domain"
	"github.com/shopspring/decimal"
)

// RequestFingerprint hashes the operation payload so an idempotency key can be
// pinned to the payload it was first submitted with. The amount is rendered
// with fixed precision so equal values always hash identically.
func RequestFingerprint(userID string, txnType domain.TransactionType, amount decimal.Decimal) string {
	h := sha256.New()
	h.Write([]byte(userID))
	h.Write([]byte{'|'})
	h.Write([]byte(txnType))
	h.Write([]byte{'|'})
	h.Write([]byte(amount.StringFixed(2)))
	return hex.EncodeToString(h.Sum(nil))
}
