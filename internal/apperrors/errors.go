package apperrors

import "errors"

// ErrNotFound indicates that a requested resource could not be found.
var ErrNotFound = errors.New("resource not found")

// ErrValidation indicates that input data failed validation checks.
var ErrValidation = errors.New("validation error")

// ErrDuplicate indicates that an attempt was made to create a resource that already exists.
var ErrDuplicate = errors.New("resource already exists")

// ErrInvalidAmount indicates a transaction amount that is zero or negative.
var ErrInvalidAmount = errors.New("amount must be positive")

// ErrInsufficientFunds indicates a withdrawal that would drive the balance below zero.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrConflict indicates an operation with the same idempotency key is already in flight.
// Callers should retry after a backoff.
var ErrConflict = errors.New("operation already in progress")

// ErrKeyPayloadMismatch indicates an idempotency key was reused with a different payload
// than the original submission.
var ErrKeyPayloadMismatch = errors.New("idempotency key reused with mismatched payload")

// ErrStorageUnavailable indicates a transient backing-store failure. The operation may be
// retried with the same idempotency key.
var ErrStorageUnavailable = errors.New("storage unavailable")
