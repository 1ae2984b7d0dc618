package user

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nkiryanov/calcboard/internal/models"
	"github.com/nkiryanov/calcboard/internal/repository"
)

// Profile of authenticated user
type UserService struct {
	storage repository.Storage
}

func NewService(storage repository.Storage) *UserService {
	return &UserService{storage: storage}
}

func (s *UserService) GetProfile(ctx context.Context, userID uuid.UUID) (models.User, error) {
	return s.storage.User().GetUserByID(ctx, userID, false)
}

// Update only fields that are set
// Has to return apperrors.ErrUserAlreadyExists if email is taken by other user
func (s *UserService) UpdateProfile(ctx context.Context, userID uuid.UUID, update repository.ProfileUpdate) (models.User, error) {
	user, err := s.storage.User().UpdateProfile(ctx, userID, update)
	if err != nil {
		return user, fmt.Errorf("can't update profile. Err: %w", err)
	}
	return user, nil
}

// Deactivate account. Users are never deleted, their tokens are rejected as inactive principal
func (s *UserService) Deactivate(ctx context.Context, userID uuid.UUID) error {
	err := s.storage.User().SetActive(ctx, userID, false)
	if err != nil {
		return fmt.Errorf("can't deactivate user. Err: %w", err)
	}
	return nil
}
