package services

import (
	"context"

	"github.com/finvolv/balance_backend/internal/core/domain"
)

// IdempotencyStore is the durable key -> outcome mapping used to detect and
// replay duplicate operation submissions. Records expire after a bounded
// retention window; a retry far outside the window may execute a second time,
// which is an accepted limitation.
type IdempotencyStore interface {
	// Begin atomically claims the key. It returns ClaimFresh when the caller
	// won the claim and must execute. For an already-known key it returns the
	// stored state and record; callers must not execute for IN_PROGRESS and
	// must replay the stored outcome for COMPLETED/FAILED. A known key whose
	// record carries a different request hash fails with ErrKeyPayloadMismatch.
	Begin(ctx context.Context, key, requestHash string) (domain.ClaimState, *domain.IdempotencyRecord, error)

	// Complete resolves the claim with the successful result.
	Complete(ctx context.Context, key string, result domain.OperationResult) error

	// Fail resolves the claim with a terminal error kind.
	Fail(ctx context.Context, key, errorKind string) error
}
