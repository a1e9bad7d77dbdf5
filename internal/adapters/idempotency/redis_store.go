// Package idempotency implements the durable key -> outcome mapping on Redis.
// The claim step relies on SET NX so that two concurrent submissions with the
// same key can never both observe a fresh claim.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/finvolv/balance_backend/internal/apperrors"
	"github.com/finvolv/balance_backend/internal/core/domain"
	portssvc "github.com/finvolv/balance_backend/internal/core/ports/services"
	"github.com/redis/go-redis/v9"
)

// keyPrefix scopes records per operation type so a future operation family can
// reuse client keys without colliding.
const keyPrefix = "idempotency:transaction:"

// redisCommands is the subset of the go-redis client the store depends on.
type redisCommands interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	SetArgs(ctx context.Context, key string, value interface{}, a redis.SetArgs) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisStore is a Redis-backed idempotency store with per-key TTL.
type RedisStore struct {
	client redisCommands
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisStore creates a store keeping records for the given retention window.
func NewRedisStore(client redisCommands, ttl time.Duration, logger *slog.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

var _ portssvc.IdempotencyStore = (*RedisStore)(nil)

// Begin atomically claims the key via SET NX. Exactly one of two concurrent
// callers wins the claim; the loser observes the stored record.
func (s *RedisStore) Begin(ctx context.Context, key, requestHash string) (domain.ClaimState, *domain.IdempotencyRecord, error) {
	record := domain.IdempotencyRecord{
		Key:         key,
		Status:      domain.ClaimInProgress,
		RequestHash: requestHash,
		CreatedAt:   time.Now().UTC(),
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return "", nil, fmt.Errorf("%w: marshal idempotency record: %v", apperrors.ErrStorageUnavailable, err)
	}

	claimed, err := s.client.SetNX(ctx, keyPrefix+key, payload, s.ttl).Result()
	if err != nil {
		return "", nil, fmt.Errorf("%w: idempotency claim: %v", apperrors.ErrStorageUnavailable, err)
	}
	if claimed {
		return domain.ClaimFresh, &record, nil
	}

	stored, err := s.fetch(ctx, key)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// The record expired between the failed claim and the read.
			// Treat as in flight; the client retries and claims fresh.
			return domain.ClaimInProgress, nil, nil
		}
		return "", nil, err
	}

	if requestHash != "" && stored.RequestHash != "" && stored.RequestHash != requestHash {
		return "", nil, apperrors.ErrKeyPayloadMismatch
	}

	return stored.Status, stored, nil
}

// Complete resolves the claim with the successful result, preserving the
// original claim timestamp and the remaining TTL.
func (s *RedisStore) Complete(ctx context.Context, key string, result domain.OperationResult) error {
	return s.resolve(ctx, key, func(record *domain.IdempotencyRecord) {
		record.Status = domain.ClaimCompleted
		record.Result = &result
	})
}

// Fail resolves the claim with a terminal error kind.
func (s *RedisStore) Fail(ctx context.Context, key, errorKind string) error {
	return s.resolve(ctx, key, func(record *domain.IdempotencyRecord) {
		record.Status = domain.ClaimFailed
		record.ErrorKind = errorKind
	})
}

func (s *RedisStore) resolve(ctx context.Context, key string, update func(*domain.IdempotencyRecord)) error {
	record, err := s.fetch(ctx, key)
	if err != nil {
		return err
	}

	update(record)

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("%w: marshal idempotency record: %v", apperrors.ErrStorageUnavailable, err)
	}

	// XX: the claim must still exist; KeepTTL bounds the retention window from
	// the original claim, not from resolution.
	err = s.client.SetArgs(ctx, keyPrefix+key, payload, redis.SetArgs{
		Mode:    "XX",
		KeepTTL: true,
	}).Err()
	if errors.Is(err, redis.Nil) {
		s.logger.Warn("idempotency record expired before resolution", slog.String("key", key))
		return apperrors.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: resolve idempotency record: %v", apperrors.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *RedisStore) fetch(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	raw, err := s.client.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read idempotency record: %v", apperrors.ErrStorageUnavailable, err)
	}

	var record domain.IdempotencyRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		s.logger.Warn("corrupt idempotency record", slog.String("key", key), slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: corrupt idempotency record", apperrors.ErrStorageUnavailable)
	}
	return &record, nil
}
