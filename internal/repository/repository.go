package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/calcboard/internal/models"
)

type CreateUserParams struct {
	Username       string
	Email          string
	FirstName      string
	LastName       string
	HashedPassword string
}

// Profile fields to change. Nil means keep the current value
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Email     *string
}

// User repository interface
type UserRepo interface {
	// Create active user
	// If user with username or email exists already has to return error apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, params CreateUserParams) (models.User, error)

	// Get user by it's id or username
	// If user not found must return apperrors.ErrUserNotFound
	// forUpdate locks the row till the end of transaction
	GetUserByID(ctx context.Context, userID uuid.UUID, forUpdate bool) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)

	// Whether any user has this value as username or as email
	Exists(ctx context.Context, usernameOrEmail string) (bool, error)

	// Has to return apperrors.ErrUserAlreadyExists if email is taken by other user
	UpdateProfile(ctx context.Context, userID uuid.UUID, update ProfileUpdate) (models.User, error)

	// Single row atomic update
	UpdatePasswordHash(ctx context.Context, userID uuid.UUID, hashedPassword string) error

	SetActive(ctx context.Context, userID uuid.UUID, active bool) error
}

// Revoked tokens repository interface
type RevokedTokenRepo interface {
	// Save revocation entry. Saving the same token id twice is not an error
	// Reports whether this call created the entry
	Revoke(ctx context.Context, token models.RevokedToken) (inserted bool, err error)

	IsRevoked(ctx context.Context, tokenID string) (bool, error)

	// Delete entries of tokens that are expired at the moment
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Calculation repository interface
// Every method is scoped by owner, other users calculations look like missing ones: apperrors.ErrCalculationNotFound
type CalculationRepo interface {
	CreateCalculation(ctx context.Context, c models.Calculation) (models.Calculation, error)
	GetCalculation(ctx context.Context, id uuid.UUID, userID uuid.UUID) (models.Calculation, error)
	ListCalculations(ctx context.Context, userID uuid.UUID) ([]models.Calculation, error)
	UpdateCalculation(ctx context.Context, c models.Calculation) (models.Calculation, error)
	DeleteCalculation(ctx context.Context, id uuid.UUID, userID uuid.UUID) error
}

type Storage interface {
	User() UserRepo
	Revoked() RevokedTokenRepo
	Calculation() CalculationRepo

	// Run fn in transaction. Commit if fn returns nil, rollback otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}
