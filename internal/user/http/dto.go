package http

import (
	"strings"

	"github.com/nekogravitycat/record-console/internal/role"
	"github.com/nekogravitycat/record-console/internal/user"
)

// LoginRequest is the payload for logging in.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the access token bound to the new session.
type LoginResponse struct {
	AccessToken string     `json:"access_token"`
	ExpiresIn   int        `json:"expires_in"`
	SessionID   string     `json:"session_id"`
	User        MeResponse `json:"user"`
}

// ChangePasswordRequest is the payload for password self-service.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// CreateAccountRequest is the payload for creating a users record.
type CreateAccountRequest struct {
	Username string `json:"username" binding:"required,max=64"`
	Name     string `json:"name" binding:"required"`
	Surname  string `json:"surname" binding:"required"`
	Role     string `json:"role" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Validate performs custom validation for CreateAccountRequest.
func (r *CreateAccountRequest) Validate() error {
	if _, err := role.Parse(r.Role); err != nil {
		return err
	}
	return nil
}

func (r *CreateAccountRequest) toNewAccount() user.NewAccount {
	return user.NewAccount{
		Username: strings.TrimSpace(r.Username),
		Name:     r.Name,
		Surname:  r.Surname,
		Role:     r.Role,
		Password: r.Password,
	}
}

// MeResponse is the current account and what it may do.
type MeResponse struct {
	ID           int64             `json:"id"`
	Username     string            `json:"username"`
	Name         string            `json:"name"`
	Surname      string            `json:"surname"`
	Role         string            `json:"role"`
	Capabilities role.Capabilities `json:"capabilities"`
}

func NewMeResponse(a user.Account) MeResponse {
	return MeResponse{
		ID:           a.ID,
		Username:     a.Username,
		Name:         a.Name,
		Surname:      a.Surname,
		Role:         string(a.Role),
		Capabilities: a.Role.Capabilities(),
	}
}
