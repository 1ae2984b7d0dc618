package handlers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/calcboard/internal/models"
)

type userResponse struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newUserResponse(u models.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// Tokens are in body as well as in header and cookie, for clients without cookie jar
type tokenResponse struct {
	AccessToken      string        `json:"access_token"`
	RefreshToken     string        `json:"refresh_token"`
	TokenType        string        `json:"token_type"`
	AccessExpiresAt  time.Time     `json:"access_expires_at"`
	RefreshExpiresAt time.Time     `json:"refresh_expires_at"`
	User             *userResponse `json:"user,omitempty"`
}

func newTokenResponse(pair models.TokenPair, user *models.User) tokenResponse {
	resp := tokenResponse{
		AccessToken:      pair.Access.Value,
		RefreshToken:     pair.Refresh.Value,
		TokenType:        "bearer",
		AccessExpiresAt:  pair.Access.ExpiresAt,
		RefreshExpiresAt: pair.Refresh.ExpiresAt,
	}
	if user != nil {
		u := newUserResponse(*user)
		resp.User = &u
	}
	return resp
}

type calculationResponse struct {
	ID        uuid.UUID              `json:"id"`
	UserID    uuid.UUID              `json:"user_id"`
	Type      models.CalculationType `json:"type"`
	Inputs    []decimal.Decimal      `json:"inputs"`
	Result    decimal.Decimal        `json:"result"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

func newCalculationResponse(c models.Calculation) calculationResponse {
	return calculationResponse{
		ID:        c.ID,
		UserID:    c.UserID,
		Type:      c.Type,
		Inputs:    c.Inputs,
		Result:    c.Result,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

type messageResponse struct {
	Message string `json:"message"`
}
