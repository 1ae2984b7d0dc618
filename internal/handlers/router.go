package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/calcboard/internal/handlers/middleware"
	"github.com/nkiryanov/calcboard/internal/logger"
	"github.com/nkiryanov/calcboard/internal/models"
	"github.com/nkiryanov/calcboard/internal/repository"
	"github.com/nkiryanov/calcboard/internal/service/auth"
	"github.com/nkiryanov/calcboard/internal/service/calculation"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

type Services struct {
	Auth        authService
	User        userService
	Calculation calculationService
}

type Options struct {
	// Served on /metrics and used to measure requests if set
	Metrics metrics

	// Applied to login and register if set
	CredentialsLimiter *middleware.RateLimiter
}

func NewRouter(services Services, opts Options, logger logger.Logger) http.Handler {
	withAuth := middleware.AuthMiddleware(services.Auth)
	withLimit := func(h http.Handler) http.Handler { return h }
	if opts.CredentialsLimiter != nil {
		withLimit = opts.CredentialsLimiter.Middleware
	}

	mux := http.NewServeMux()

	mux.Handle("POST /api/auth/register", withLimit(handleRegister(services.Auth, logger)))
	mux.Handle("POST /api/auth/login", withLimit(handleLogin(services.Auth, logger)))
	mux.Handle("POST /api/auth/refresh", handleTokenRefresh(services.Auth, logger))
	mux.Handle("POST /api/auth/logout", handleLogout(services.Auth, logger))

	mux.Handle("GET /api/users/me", withAuth(handleUserMe(services.User)))
	mux.Handle("PUT /api/users/me", withAuth(handleUpdateProfile(services.User, logger)))
	mux.Handle("DELETE /api/users/me", withAuth(handleDeactivate(services.User)))
	mux.Handle("POST /api/users/me/password", withAuth(handleChangePassword(services.Auth, logger)))

	mux.Handle("POST /api/calculations", withAuth(handleCreateCalculation(services.Calculation, logger)))
	mux.Handle("GET /api/calculations", withAuth(handleListCalculations(services.Calculation)))
	mux.Handle("GET /api/calculations/{id}", withAuth(handleGetCalculation(services.Calculation)))
	mux.Handle("PUT /api/calculations/{id}", withAuth(handleUpdateCalculation(services.Calculation, logger)))
	mux.Handle("DELETE /api/calculations/{id}", withAuth(handleDeleteCalculation(services.Calculation)))

	mux.Handle("GET /health", handleHealth())

	mds := []func(http.Handler) http.Handler{
		middleware.LoggerMiddleware(logger),
	}
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics.Handler())
		mds = append(mds, opts.Metrics.Middleware)
	}

	return chain(mux, mds...)
}

type authService interface {
	// Register user, check password policy and issue token pair
	// Has to return apperrors.ErrUserAlreadyExists if username or email is taken
	Register(ctx context.Context, params auth.RegisterParams) (models.User, models.TokenPair, error)

	// Has to return apperrors.ErrInvalidCredentials if user not found or password is wrong
	Login(ctx context.Context, username string, password string) (models.User, models.TokenPair, error)

	// Rotate token pair, given refresh token can't be used again
	Refresh(ctx context.Context, refresh string) (models.TokenPair, error)

	Logout(ctx context.Context, access string, refresh string) error

	// Has to return apperrors.ErrWrongCurrentPassword if current password doesn't match
	ChangePassword(ctx context.Context, user models.User, current string, password string, confirm string) error

	// Set auth tokens (access, refresh) to response
	SetTokenPairToResponse(w http.ResponseWriter, pair models.TokenPair)
	ClearRefreshCookie(w http.ResponseWriter)

	// Get tokens from request
	GetAccessString(r *http.Request) (string, error)
	GetRefreshString(r *http.Request) (string, error)

	// Get request and return user if it authenticated or error
	GetUserFromRequest(ctx context.Context, r *http.Request) (models.User, error)
}

type userService interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (models.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, update repository.ProfileUpdate) (models.User, error)
	Deactivate(ctx context.Context, userID uuid.UUID) error
}

type calculationService interface {
	CreateCalculation(ctx context.Context, userID uuid.UUID, typ models.CalculationType, inputs []decimal.Decimal) (models.Calculation, error)
	ListCalculations(ctx context.Context, userID uuid.UUID) ([]models.Calculation, error)
	GetCalculation(ctx context.Context, userID uuid.UUID, id uuid.UUID) (models.Calculation, error)
	UpdateCalculation(ctx context.Context, userID uuid.UUID, id uuid.UUID, update calculation.Update) (models.Calculation, error)
	DeleteCalculation(ctx context.Context, userID uuid.UUID, id uuid.UUID) error
}

type metrics interface {
	Handler() http.Handler
	Middleware(next http.Handler) http.Handler
}
