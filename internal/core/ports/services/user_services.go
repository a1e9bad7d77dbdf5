package services

import (
	"context"
	"time"

	"github.com/finvolv/balance_backend/internal/core/domain"
	"github.com/finvolv/balance_backend/internal/dto"
	"github.com/shopspring/decimal"
)

// UserReaderSvc defines read operations for user data
type UserReaderSvc interface {
	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, userID string) (*domain.User, error)

	// GetBalanceAt returns the user's balance at the given instant, computed
	// from the committed transaction history.
	GetBalanceAt(ctx context.Context, userID string, at time.Time) (decimal.Decimal, error)
}

// UserWriterSvc defines write operations for user data
type UserWriterSvc interface {
	// CreateUser creates a new user with a zero balance.
	CreateUser(ctx context.Context, req dto.CreateUserRequest) (*domain.User, error)
}

// UserSvcFacade combines all user-related service interfaces
type UserSvcFacade interface {
	UserReaderSvc
	UserWriterSvc
}
