package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/finvolv/balance_backend/internal/apperrors"
	"github.com/finvolv/balance_backend/internal/core/domain"
	portsrepo "github.com/finvolv/balance_backend/internal/core/ports/repositories"
	portssvc "github.com/finvolv/balance_backend/internal/core/ports/services"
	"github.com/finvolv/balance_backend/internal/dto"
	"github.com/finvolv/balance_backend/internal/middleware"
	"github.com/finvolv/balance_backend/internal/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// coordinatorState names the steps of the submission state machine. Every
// submission walks Claiming -> Applying -> Finalizing -> Notifying or exits
// early into a terminal outcome.
type coordinatorState string

const (
	stateClaiming   coordinatorState = "CLAIMING"
	stateApplying   coordinatorState = "APPLYING" // locked read, validation, commit
	stateFinalizing coordinatorState = "FINALIZING"
	stateNotifying  coordinatorState = "NOTIFYING"
)

// transactionService coordinates one logical operation end-to-end:
// idempotency claim, locked balance mutation, outcome commit, post-commit
// notification.
type transactionService struct {
	txnRepo     portsrepo.TransactionRepositoryFacade
	idempotency portssvc.IdempotencyStore
	notifier    portssvc.NotifierGateway
}

// NewTransactionService creates the transaction coordinator.
func NewTransactionService(txnRepo portsrepo.TransactionRepositoryFacade, idempotency portssvc.IdempotencyStore, notifier portssvc.NotifierGateway) portssvc.TransactionSvcFacade {
	return &transactionService{
		txnRepo:     txnRepo,
		idempotency: idempotency,
		notifier:    notifier,
	}
}

var _ portssvc.TransactionSvcFacade = (*transactionService)(nil)

// SubmitTransaction applies one deposit or withdrawal exactly once. Duplicate
// submissions replay the stored outcome; a duplicate racing the original is
// reported as a conflict. An idempotency-store outage fails the operation
// closed, since skipping deduplication risks a double spend.
func (s *transactionService) SubmitTransaction(ctx context.Context, req dto.SubmitTransactionRequest) (*dto.TransactionOutcome, error) {
	logger := middleware.GetLoggerFromCtx(ctx).With(
		slog.String("idempotency_key", req.IdempotencyKey),
		slog.String("user_id", req.UserID),
	)

	// Malformed operations are rejected before any claim or lock; the result
	// is deterministic, so nothing durable needs to record it.
	if !req.Type.IsValid() || !req.Amount.IsPositive() {
		logger.Info("transaction rejected", slog.String("error_kind", dto.ErrKindInvalidAmount))
		return &dto.TransactionOutcome{
			Status:    dto.OutcomeRejected,
			ErrorKind: dto.ErrKindInvalidAmount,
		}, nil
	}

	state := stateClaiming
	logger.Debug("coordinator state", slog.String("state", string(state)))

	hash := utils.RequestFingerprint(req.UserID, req.Type, req.Amount)
	claim, record, err := s.idempotency.Begin(ctx, req.IdempotencyKey, hash)
	if err != nil {
		if errors.Is(err, apperrors.ErrKeyPayloadMismatch) {
			return nil, err
		}
		logger.Error("idempotency claim failed, failing closed", slog.String("error", err.Error()))
		return &dto.TransactionOutcome{
			Status:    dto.OutcomeStorageFailure,
			ErrorKind: dto.ErrKindStorageError,
		}, nil
	}

	switch claim {
	case domain.ClaimInProgress:
		logger.Info("duplicate submission in flight")
		return &dto.TransactionOutcome{Status: dto.OutcomeConflict}, nil
	case domain.ClaimCompleted:
		logger.Info("replaying stored result")
		return &dto.TransactionOutcome{
			Status:        dto.OutcomeCommitted,
			TransactionID: record.Result.TransactionID,
			NewBalance:    record.Result.NewBalance,
			Replayed:      true,
		}, nil
	case domain.ClaimFailed:
		logger.Info("replaying stored failure", slog.String("error_kind", record.ErrorKind))
		return &dto.TransactionOutcome{
			Status:    failureStatus(record.ErrorKind),
			ErrorKind: record.ErrorKind,
			Replayed:  true,
		}, nil
	}

	// Fresh claim. From here the operation must reach a terminal state even if
	// the caller disconnects, so the remaining steps run on a context detached
	// from the request's cancellation.
	opCtx := middleware.WithLogger(context.WithoutCancel(ctx), logger)

	state = stateApplying
	logger.Debug("coordinator state", slog.String("state", string(state)))

	txn := domain.Transaction{
		TransactionID: uuid.NewString(),
		UserID:        req.UserID,
		Type:          req.Type,
		Amount:        req.Amount,
		Status:        domain.StatusCommitted,
		CreatedAt:     time.Now().UTC(),
	}

	applied, err := s.txnRepo.ApplyTransaction(opCtx, txn, func(current decimal.Decimal) (decimal.Decimal, error) {
		if req.Type == domain.Withdraw {
			newBalance := current.Sub(req.Amount)
			if newBalance.IsNegative() {
				return decimal.Zero, apperrors.ErrInsufficientFunds
			}
			return newBalance, nil
		}
		return current.Add(req.Amount), nil
	})
	if err != nil {
		return s.rejectClaim(opCtx, logger, req.IdempotencyKey, err), nil
	}

	state = stateFinalizing
	logger.Debug("coordinator state", slog.String("state", string(state)))

	result := domain.OperationResult{
		TransactionID: applied.TransactionID,
		NewBalance:    applied.RunningBalance,
	}
	if err := s.idempotency.Complete(opCtx, req.IdempotencyKey, result); err != nil {
		// The ledger write is committed and authoritative. A retry of this key
		// after the record expires may execute a second time; that window is a
		// documented limitation of the split stores.
		logger.Warn("failed to commit idempotency outcome after ledger commit",
			slog.String("error", err.Error()))
	}

	state = stateNotifying
	logger.Debug("coordinator state", slog.String("state", string(state)))

	s.notifier.Notify(domain.TransactionEvent{
		EventType:     domain.EventTransactionCreated,
		UserID:        applied.UserID,
		Amount:        applied.Amount,
		NewBalance:    applied.RunningBalance,
		TransactionID: applied.TransactionID,
		CreatedAt:     applied.CreatedAt,
		TraceID:       req.TraceID,
	})

	logger.Info("transaction committed",
		slog.String("transaction_id", applied.TransactionID),
		slog.String("new_balance", applied.RunningBalance.String()),
	)
	return &dto.TransactionOutcome{
		Status:        dto.OutcomeCommitted,
		TransactionID: applied.TransactionID,
		NewBalance:    applied.RunningBalance,
	}, nil
}

// rejectClaim maps a ledger failure to its terminal outcome and records it
// against the claim so replays observe the same result. The ledger rollback
// already released the row lock and left no partial writes.
func (s *transactionService) rejectClaim(ctx context.Context, logger *slog.Logger, key string, cause error) *dto.TransactionOutcome {
	var errKind string
	var status dto.OutcomeStatus

	switch {
	case errors.Is(cause, apperrors.ErrNotFound):
		errKind, status = dto.ErrKindUserNotFound, dto.OutcomeRejected
	case errors.Is(cause, apperrors.ErrInsufficientFunds):
		errKind, status = dto.ErrKindInsufficientFunds, dto.OutcomeRejected
	default:
		errKind, status = dto.ErrKindStorageError, dto.OutcomeStorageFailure
		logger.Error("ledger apply failed", slog.String("error", cause.Error()))
	}

	if err := s.idempotency.Fail(ctx, key, errKind); err != nil {
		// The record stays IN_PROGRESS until its TTL expires; retries within
		// the window see a conflict, later ones claim fresh.
		logger.Warn("failed to record claim failure", slog.String("error", err.Error()))
	}

	logger.Info("transaction rejected", slog.String("error_kind", errKind))
	return &dto.TransactionOutcome{Status: status, ErrorKind: errKind}
}

// failureStatus maps a stored error kind to the outcome status replayed to
// the caller. Storage errors are transient and retryable with the same key.
func failureStatus(errKind string) dto.OutcomeStatus {
	if errKind == dto.ErrKindStorageError {
		return dto.OutcomeStorageFailure
	}
	return dto.OutcomeRejected
}

// GetTransactionByID retrieves a transaction by its ID.
func (s *transactionService) GetTransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	return s.txnRepo.FindTransactionByID(ctx, transactionID)
}
