package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/nkiryanov/calcboard/internal/apperrors"
	"github.com/nkiryanov/calcboard/internal/models"
	"github.com/nkiryanov/calcboard/internal/repository"
)

type UserRepo struct {
	s    *Storage
	undo *undoLog
}

func (r *UserRepo) CreateUser(ctx context.Context, params repository.CreateUserParams) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if u.Username == params.Username || u.Email == params.Email {
			return models.User{}, apperrors.ErrUserAlreadyExists
		}
	}

	now := r.s.now().UTC()
	user := models.User{
		ID:             uuid.New(),
		CreatedAt:      now,
		UpdatedAt:      now,
		Username:       params.Username,
		Email:          params.Email,
		FirstName:      params.FirstName,
		LastName:       params.LastName,
		HashedPassword: params.HashedPassword,
		IsActive:       true,
	}
	remember(r.undo, r.s.users, user.ID)
	r.s.users[user.ID] = user

	return user, nil
}

func (r *UserRepo) GetUserByID(ctx context.Context, userID uuid.UUID, forUpdate bool) (models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	user, ok := r.s.users[userID]
	if !ok {
		return models.User{}, apperrors.ErrUserNotFound
	}
	return user, nil
}

func (r *UserRepo) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return models.User{}, apperrors.ErrUserNotFound
}

func (r *UserRepo) Exists(ctx context.Context, usernameOrEmail string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if u.Username == usernameOrEmail || u.Email == usernameOrEmail {
			return true, nil
		}
	}
	return false, nil
}

func (r *UserRepo) UpdateProfile(ctx context.Context, userID uuid.UUID, update repository.ProfileUpdate) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[userID]
	if !ok {
		return models.User{}, apperrors.ErrUserNotFound
	}

	if update.Email != nil {
		for id, u := range r.s.users {
			if id != userID && u.Email == *update.Email {
				return models.User{}, apperrors.ErrUserAlreadyExists
			}
		}
		user.Email = *update.Email
	}
	if update.FirstName != nil {
		user.FirstName = *update.FirstName
	}
	if update.LastName != nil {
		user.LastName = *update.LastName
	}

	user.UpdatedAt = r.s.now().UTC()
	remember(r.undo, r.s.users, userID)
	r.s.users[userID] = user

	return user, nil
}

func (r *UserRepo) UpdatePasswordHash(ctx context.Context, userID uuid.UUID, hashedPassword string) error {
	return r.update(userID, func(u *models.User) { u.HashedPassword = hashedPassword })
}

func (r *UserRepo) SetActive(ctx context.Context, userID uuid.UUID, active bool) error {
	return r.update(userID, func(u *models.User) { u.IsActive = active })
}

func (r *UserRepo) update(userID uuid.UUID, fn func(*models.User)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[userID]
	if !ok {
		return apperrors.ErrUserNotFound
	}

	fn(&user)
	user.UpdatedAt = r.s.now().UTC()
	remember(r.undo, r.s.users, userID)
	r.s.users[userID] = user

	return nil
}
