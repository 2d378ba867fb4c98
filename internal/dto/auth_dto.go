package dto

import "github.com/gradepilot/gradepilot-api/internal/models"

// RegisterRequest is the payload for account creation.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=2"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required,oneof=student instructor ta"`
}

// LoginRequest is the payload for credential exchange.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse carries the issued token and the authenticated user.
type AuthResponse struct {
	Token string   `json:"token"`
	User  UserLite `json:"user"`
	Role  string   `json:"role"`
}

// NewAuthResponse builds the response for a successful register or login.
func NewAuthResponse(token string, user models.User) AuthResponse {
	return AuthResponse{
		Token: token,
		User: UserLite{
			ID:    user.ID,
			Name:  user.Name,
			Email: user.Email,
		},
		Role: user.Role,
	}
}
