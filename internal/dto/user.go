package dto

import (
	"time"

	"github.com/finvolv/balance_backend/internal/core/domain"
	"github.com/shopspring/decimal"
)

// CreateUserRequest defines the payload for creating a user.
type CreateUserRequest struct {
	Name string `json:"name" binding:"required,min=1,max=255"`
}

// UserResponse is the outward representation of a user.
type UserResponse struct {
	UserID    string          `json:"user_id"`
	Name      string          `json:"name"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
}

// ToUserResponse converts a domain.User to its response DTO.
func ToUserResponse(user *domain.User) UserResponse {
	return UserResponse{
		UserID:    user.UserID,
		Name:      user.Name,
		Balance:   user.Balance,
		CreatedAt: user.CreatedAt,
	}
}

// BalanceResponse reports a user's balance, current or historical.
type BalanceResponse struct {
	UserID  string          `json:"user_id"`
	Balance decimal.Decimal `json:"balance"`
}
