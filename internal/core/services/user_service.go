package services

import (
	"context"
	"fmt"
	"time"

	"github.com/finvolv/balance_backend/internal/core/domain"
	portsrepo "github.com/finvolv/balance_backend/internal/core/ports/repositories"
	portssvc "github.com/finvolv/balance_backend/internal/core/ports/services"
	"github.com/finvolv/balance_backend/internal/dto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// userService provides user lifecycle and balance lookups.
type userService struct {
	userRepo portsrepo.UserRepositoryFacade
	txnRepo  portsrepo.TransactionReader
}

// NewUserService creates a new UserService.
func NewUserService(userRepo portsrepo.UserRepositoryFacade, txnRepo portsrepo.TransactionReader) portssvc.UserSvcFacade {
	return &userService{
		userRepo: userRepo,
		txnRepo:  txnRepo,
	}
}

var _ portssvc.UserSvcFacade = (*userService)(nil)

// CreateUser creates a user starting at a zero balance.
func (s *userService) CreateUser(ctx context.Context, req dto.CreateUserRequest) (*domain.User, error) {
	user := domain.User{
		UserID:    uuid.NewString(),
		Name:      req.Name,
		Balance:   decimal.Zero,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.userRepo.SaveUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &user, nil
}

// GetUserByID retrieves a user by ID.
func (s *userService) GetUserByID(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.userRepo.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetBalanceAt reconstructs the balance at a past instant from the committed
// transaction history. The user must exist.
func (s *userService) GetBalanceAt(ctx context.Context, userID string, at time.Time) (decimal.Decimal, error) {
	if _, err := s.userRepo.FindUserByID(ctx, userID); err != nil {
		return decimal.Zero, err
	}
	return s.txnRepo.SumSignedAmountsAt(ctx, userID, at)
}
