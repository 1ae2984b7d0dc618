package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/calcboard/internal/apperrors"
	"github.com/nkiryanov/calcboard/internal/logger"
	"github.com/nkiryanov/calcboard/internal/models"
	"github.com/nkiryanov/calcboard/internal/repository"
	"github.com/nkiryanov/calcboard/internal/service/auth/policy"
)

const (
	defaultAccessHeaderName  = "Authorization"
	defaultAccessAuthScheme  = "Bearer"
	defaultRefreshCookieName = "refreshToken"
)

// Operations reported to observer
const (
	OpRegister       = "register"
	OpLogin          = "login"
	OpRefresh        = "refresh"
	OpLogout         = "logout"
	OpResolve        = "resolve"
	OpChangePassword = "change_password"
)

// Interface to create or compare user password hashes
type PasswordHasher interface {
	// Generate Hash from password
	Hash(password string) (string, error)

	// Compare known hashedPassword and user provided password
	// Must be protected against timing attacks
	Compare(hashedPassword string, password string) error
}

type tokenManager interface {
	IssuePair(subject any) (models.TokenPair, error)
	Verify(ctx context.Context, value string, expected models.TokenType) (models.Token, error)
}

type revoker interface {
	// Reports whether this call revoked the token; false if it was revoked already
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) (bool, error)
}

// Gets outcome of every auth operation, e.g. to count them
type observer interface {
	ObserveAuth(op string, err error)
}

type noopObserver struct{}

func (noopObserver) ObserveAuth(string, error) {}

type Config struct {
	// Hasher to use during registration, login and password change
	// BcryptHasher if not set
	Hasher PasswordHasher

	// Where access token is read from: header name and auth scheme
	AccessHeaderName string
	AccessAuthScheme string

	// Cookie refresh token is set to
	RefreshCookieName string

	// Optional
	Observer observer
}

// Auth service
type AuthService struct {
	// Manager to issue and verify token pairs (access and refresh)
	tokens tokenManager

	// Revocation registry to invalidate tokens on logout and refresh
	revoked revoker

	// hasher to hash or compare user passwords
	hasher PasswordHasher

	// Repository to access long term data
	storage repository.Storage

	accessHeaderName  string
	accessAuthScheme  string
	refreshCookieName string

	observer observer
	logger   logger.Logger
}

func NewService(cfg Config, tokens tokenManager, revoked revoker, storage repository.Storage, logger logger.Logger) (*AuthService, error) {
	if tokens == nil || revoked == nil || storage == nil {
		return nil, errors.New("token manager, revocation registry and storage must be set")
	}

	if cfg.Hasher == nil {
		cfg.Hasher = BcryptHasher{}
	}
	if cfg.Observer == nil {
		cfg.Observer = noopObserver{}
	}

	setDefault := func(field *string, def string) {
		if *field == "" {
			*field = def
		}
	}
	setDefault(&cfg.AccessHeaderName, defaultAccessHeaderName)
	setDefault(&cfg.AccessAuthScheme, defaultAccessAuthScheme)
	setDefault(&cfg.RefreshCookieName, defaultRefreshCookieName)

	return &AuthService{
		tokens:            tokens,
		revoked:           revoked,
		hasher:            cfg.Hasher,
		storage:           storage,
		accessHeaderName:  cfg.AccessHeaderName,
		accessAuthScheme:  cfg.AccessAuthScheme,
		refreshCookieName: cfg.RefreshCookieName,
		observer:          cfg.Observer,
		logger:            logger,
	}, nil
}

type RegisterParams struct {
	Username        string
	Email           string
	FirstName       string
	LastName        string
	Password        string
	ConfirmPassword string
}

// Register active user and issue token pair for him
func (s *AuthService) Register(ctx context.Context, params RegisterParams) (user models.User, pair models.TokenPair, err error) {
	defer func() { s.observe(OpRegister, err) }()

	err = policy.Validate(params.Password, params.ConfirmPassword, "").Err()
	if err != nil {
		return user, pair, err
	}

	for _, value := range []string{params.Username, params.Email} {
		exists, err := s.storage.User().Exists(ctx, value)
		switch {
		case err != nil:
			return user, pair, err
		case exists:
			return user, pair, apperrors.ErrUserAlreadyExists
		}
	}

	hash, err := s.hasher.Hash(params.Password)
	if err != nil {
		return user, pair, fmt.Errorf("can't use this as password, error=%w", err)
	}

	user, err = s.storage.User().CreateUser(ctx, repository.CreateUserParams{
		Username:       params.Username,
		Email:          params.Email,
		FirstName:      params.FirstName,
		LastName:       params.LastName,
		HashedPassword: hash,
	})
	if err != nil {
		return user, pair, err
	}

	pair, err = s.tokens.IssuePair(user.ID)
	if err != nil {
		return user, pair, fmt.Errorf("token could not be issued: %w", err)
	}

	s.logger.Info("User registered", "user_id", user.ID)
	return user, pair, nil
}

// Login with username and password
// Unknown user and wrong password are not distinguished: both are apperrors.ErrInvalidCredentials
func (s *AuthService) Login(ctx context.Context, username string, password string) (user models.User, pair models.TokenPair, err error) {
	defer func() { s.observe(OpLogin, err) }()

	user, err = s.storage.User().GetUserByUsername(ctx, username)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return user, pair, apperrors.ErrInvalidCredentials
	case err != nil:
		return user, pair, err
	}

	err = s.hasher.Compare(user.HashedPassword, password)
	if err != nil {
		return user, pair, apperrors.ErrInvalidCredentials
	}

	if !user.IsActive {
		return user, pair, apperrors.ErrUserInactive
	}

	pair, err = s.tokens.IssuePair(user.ID)
	if err != nil {
		return user, pair, fmt.Errorf("token could not be issued: %w", err)
	}

	return user, pair, nil
}

// Exchange refresh token for a new pair
// Refresh token may be used once only: it is revoked before new pair issued
// Of concurrent refreshes with the same token only the one that revoked it gets a pair
func (s *AuthService) Refresh(ctx context.Context, refresh string) (pair models.TokenPair, err error) {
	defer func() { s.observe(OpRefresh, err) }()

	token, err := s.tokens.Verify(ctx, refresh, models.TokenTypeRefresh)
	if err != nil {
		return pair, err
	}

	revoked, err := s.revoked.Revoke(ctx, token.ID, token.ExpiresAt)
	if err != nil {
		return pair, err
	}
	if !revoked {
		return pair, apperrors.ErrTokenRevoked
	}

	user, err := s.principal(ctx, token)
	if err != nil {
		return pair, err
	}

	pair, err = s.tokens.IssuePair(user.ID)
	if err != nil {
		return pair, fmt.Errorf("token could not be issued: %w", err)
	}

	return pair, nil
}

// Revoke access token and refresh token if it is given
// Tokens that are expired or revoked already need nothing to be done
// Refresh token is optional: if it can't be verified it is skipped
func (s *AuthService) Logout(ctx context.Context, access string, refresh string) (err error) {
	defer func() { s.observe(OpLogout, err) }()

	token, err := s.tokens.Verify(ctx, access, models.TokenTypeAccess)
	switch {
	case errors.Is(err, apperrors.ErrTokenExpired), errors.Is(err, apperrors.ErrTokenRevoked):
	case err != nil:
		return err
	default:
		if _, err := s.revoked.Revoke(ctx, token.ID, token.ExpiresAt); err != nil {
			return err
		}
	}

	if refresh == "" {
		return nil
	}

	token, err = s.tokens.Verify(ctx, refresh, models.TokenTypeRefresh)
	if err != nil {
		s.logger.Debug("Refresh token skipped on logout", "error", err)
		return nil
	}

	_, err = s.revoked.Revoke(ctx, token.ID, token.ExpiresAt)
	return err
}

// Resolve authenticated user from access token
// Token failures are returned unchanged, so caller may match the exact kind
func (s *AuthService) Resolve(ctx context.Context, access string) (user models.User, err error) {
	defer func() { s.observe(OpResolve, err) }()

	token, err := s.tokens.Verify(ctx, access, models.TokenTypeAccess)
	if err != nil {
		return user, err
	}

	return s.principal(ctx, token)
}

// Change password of authenticated user
// Issued tokens stay valid till their natural expiry
func (s *AuthService) ChangePassword(ctx context.Context, user models.User, current string, password string, confirm string) (err error) {
	defer func() { s.observe(OpChangePassword, err) }()

	return s.storage.InTx(ctx, func(storage repository.Storage) error {
		// Lock the row, so concurrent changes of the same user are serialized
		stored, err := storage.User().GetUserByID(ctx, user.ID, true)
		if err != nil {
			return err
		}

		if err := s.hasher.Compare(stored.HashedPassword, current); err != nil {
			return apperrors.ErrWrongCurrentPassword
		}

		if err := policy.Validate(password, confirm, current).Err(); err != nil {
			return err
		}

		hash, err := s.hasher.Hash(password)
		if err != nil {
			return fmt.Errorf("can't use this as password, error=%w", err)
		}

		err = storage.User().UpdatePasswordHash(ctx, stored.ID, hash)
		if err != nil {
			return err
		}

		s.logger.Info("Password changed", "user_id", stored.ID)
		return nil
	})
}

// Issue access and refresh tokens for subject
func (s *AuthService) IssuePair(subject any) (models.TokenPair, error) {
	return s.tokens.IssuePair(subject)
}

// Load active user the verified token was issued for
func (s *AuthService) principal(ctx context.Context, token models.Token) (models.User, error) {
	userID, err := uuid.Parse(token.Subject)
	if err != nil {
		return models.User{}, fmt.Errorf("%w: subject is not user id", apperrors.ErrTokenMalformed)
	}

	user, err := s.storage.User().GetUserByID(ctx, userID, false)
	if err != nil {
		return user, err
	}

	if !user.IsActive {
		return user, apperrors.ErrUserInactive
	}

	return user, nil
}

func (s *AuthService) observe(op string, err error) {
	s.observer.ObserveAuth(op, err)

	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrTokenUnverified):
		s.logger.Error("Auth operation failed", "op", op, "error", err)
	case isRejection(err):
		s.logger.Debug("Auth operation rejected", "op", op, "error", err)
	default:
		s.logger.Error("Auth operation failed", "op", op, "error", err)
	}
}

// Whether err is caused by the client, not by the server
func isRejection(err error) bool {
	for _, target := range []error{
		apperrors.ErrUnauthorized,
		apperrors.ErrInvalidCredentials,
		apperrors.ErrUserNotFound,
		apperrors.ErrUserInactive,
		apperrors.ErrUserAlreadyExists,
		apperrors.ErrPolicyViolation,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
