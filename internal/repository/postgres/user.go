package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/calcboard/internal/apperrors"
	"github.com/nkiryanov/calcboard/internal/models"
	"github.com/nkiryanov/calcboard/internal/repository"
)

type UserRepo struct {
	DB DBTX
}

const userColumns = `id, created_at, updated_at, username, email, first_name, last_name, password_hash, is_active`

const createUser = `-- name: CreateUser
INSERT INTO users (id, username, email, first_name, last_name, password_hash, is_active)
VALUES ($1, $2, $3, $4, $5, $6, TRUE)
RETURNING ` + userColumns

func (r *UserRepo) CreateUser(ctx context.Context, params repository.CreateUserParams) (models.User, error) {
	rows, _ := r.DB.Query(ctx, createUser,
		uuid.New(), params.Username, params.Email, params.FirstName, params.LastName, params.HashedPassword,
	)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case isUniqueViolation(err):
		return user, apperrors.ErrUserAlreadyExists
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

const getUserByID = `-- name: GetUserByID
SELECT ` + userColumns + ` FROM users
WHERE id = $1
`

const getUserByIDForUpdate = getUserByID + `FOR UPDATE`

func (r *UserRepo) GetUserByID(ctx context.Context, id uuid.UUID, forUpdate bool) (models.User, error) {
	query := getUserByID
	if forUpdate {
		query = getUserByIDForUpdate
	}

	rows, _ := r.DB.Query(ctx, query, id)
	return collectUser(rows)
}

const getUserByUsername = `-- name: GetUserByUsername
SELECT ` + userColumns + ` FROM users
WHERE username = $1
`

func (r *UserRepo) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByUsername, username)
	return collectUser(rows)
}

const userExists = `-- name: UserExists
SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 OR email = $1)
`

func (r *UserRepo) Exists(ctx context.Context, usernameOrEmail string) (bool, error) {
	rows, _ := r.DB.Query(ctx, userExists, usernameOrEmail)
	exists, err := pgx.CollectOneRow(rows, pgx.RowTo[bool])
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

const updateProfile = `-- name: UpdateProfile
UPDATE users
SET first_name = COALESCE($2, first_name),
    last_name = COALESCE($3, last_name),
    email = COALESCE($4, email),
    updated_at = now()
WHERE id = $1
RETURNING ` + userColumns

func (r *UserRepo) UpdateProfile(ctx context.Context, id uuid.UUID, update repository.ProfileUpdate) (models.User, error) {
	rows, _ := r.DB.Query(ctx, updateProfile, id, update.FirstName, update.LastName, update.Email)
	user, err := collectUser(rows)

	if isUniqueViolation(err) {
		return user, apperrors.ErrUserAlreadyExists
	}
	return user, err
}

const updatePasswordHash = `-- name: UpdatePasswordHash
UPDATE users
SET password_hash = $2, updated_at = now()
WHERE id = $1
`

func (r *UserRepo) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hashedPassword string) error {
	tag, err := r.DB.Exec(ctx, updatePasswordHash, id, hashedPassword)
	switch {
	case err != nil:
		return fmt.Errorf("db error: %w", err)
	case tag.RowsAffected() == 0:
		return apperrors.ErrUserNotFound
	default:
		return nil
	}
}

const setActive = `-- name: SetActive
UPDATE users
SET is_active = $2, updated_at = now()
WHERE id = $1
`

func (r *UserRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.DB.Exec(ctx, setActive, id, active)
	switch {
	case err != nil:
		return fmt.Errorf("db error: %w", err)
	case tag.RowsAffected() == 0:
		return apperrors.ErrUserNotFound
	default:
		return nil
	}
}

func collectUser(rows pgx.Rows) (models.User, error) {
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, apperrors.ErrUserNotFound
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

func rowToUser(row pgx.CollectableRow) (models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID, &u.CreatedAt, &u.UpdatedAt, &u.Username, &u.Email,
		&u.FirstName, &u.LastName, &u.HashedPassword, &u.IsActive,
	)
	return u, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
