package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/finvolv/balance_backend/internal/apperrors"
	"github.com/finvolv/balance_backend/internal/core/domain"
	portssvc "github.com/finvolv/balance_backend/internal/core/ports/services"
	"github.com/finvolv/balance_backend/internal/dto"
	"github.com/finvolv/balance_backend/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// IdempotencyKeyHeader carries the client-supplied deduplication key.
const IdempotencyKeyHeader = "Idempotency-Key"

// transactionHandler handles HTTP requests related to transactions.
type transactionHandler struct {
	transactionService portssvc.TransactionSvcFacade
}

// newTransactionHandler creates a new transactionHandler.
func newTransactionHandler(ts portssvc.TransactionSvcFacade) *transactionHandler {
	return &transactionHandler{
		transactionService: ts,
	}
}

// registerTransactionRoutes registers all transaction-related routes.
func registerTransactionRoutes(rg *gin.RouterGroup, transactionService portssvc.TransactionSvcFacade, extra ...gin.HandlerFunc) {
	h := newTransactionHandler(transactionService)

	transactions := rg.Group("/transactions")
	{
		transactions.POST("", append(extra, h.createTransaction)...)
		transactions.GET("/:transactionID", h.getTransaction)
	}
}

// createTransaction submits a deposit or withdrawal. A missing Idempotency-Key
// header gets a generated key, mirroring how the mobile clients behave; the
// key in use is echoed back so callers can retry safely.
func (h *transactionHandler) createTransaction(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	var req dto.CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for create transaction request", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	key := c.GetHeader(IdempotencyKeyHeader)
	if key == "" {
		key = uuid.NewString()
	}
	c.Header(IdempotencyKeyHeader, key)

	outcome, err := h.transactionService.SubmitTransaction(c.Request.Context(), dto.SubmitTransactionRequest{
		UserID:         req.UserID,
		Type:           domain.TransactionType(req.Type),
		Amount:         req.Amount.Round(2),
		IdempotencyKey: key,
		TraceID:        middleware.GetTraceIDFromCtx(c.Request.Context()),
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrKeyPayloadMismatch) {
			logger.Warn("Idempotency key reused with different payload", slog.String("idempotency_key", key))
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Idempotency key was already used with a different payload"})
			return
		}
		logger.Error("Failed to submit transaction", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(statusCodeForOutcome(outcome), outcome)
}

// statusCodeForOutcome maps terminal coordinator outcomes to HTTP statuses.
func statusCodeForOutcome(outcome *dto.TransactionOutcome) int {
	switch outcome.Status {
	case dto.OutcomeCommitted:
		if outcome.Replayed {
			return http.StatusOK
		}
		return http.StatusCreated
	case dto.OutcomeConflict:
		return http.StatusConflict
	case dto.OutcomeStorageFailure:
		return http.StatusServiceUnavailable
	default: // OutcomeRejected
		if outcome.ErrorKind == dto.ErrKindUserNotFound {
			return http.StatusNotFound
		}
		return http.StatusBadRequest
	}
}

// getTransaction retrieves a transaction by its ID.
func (h *transactionHandler) getTransaction(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	transactionID := c.Param("transactionID")

	txn, err := h.transactionService.GetTransactionByID(c.Request.Context(), transactionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Transaction not found"})
			return
		}
		logger.Error("Failed to retrieve transaction", slog.String("transaction_id", transactionID), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve transaction"})
		return
	}

	c.JSON(http.StatusOK, dto.ToTransactionResponse(txn))
}
