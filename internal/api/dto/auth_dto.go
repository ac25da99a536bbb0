package dto

import (
	"time"

	"github.com/spec-kit/workorder-service/internal/domain"
)

// LoginRequest payload.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// StaffProfile describes the logged in staff member.
type StaffProfile struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	IsAdmin  bool   `json:"is_admin"`
}

// LoginResponse carries the session token.
type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   Timestamp    `json:"expires_at"`
	User        StaffProfile `json:"user"`
}

// NewLoginResponse builds the login response.
func NewLoginResponse(staff *domain.StaffMember, token string, expiresAt time.Time) LoginResponse {
	return LoginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   Timestamp(expiresAt),
		User: StaffProfile{
			ID:       staff.ID,
			Username: staff.Username,
			FullName: staff.FullName,
			IsAdmin:  staff.IsAdmin,
		},
	}
}
