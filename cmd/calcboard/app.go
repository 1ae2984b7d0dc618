package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/nkiryanov/calcboard/internal/db"
	"github.com/nkiryanov/calcboard/internal/handlers"
	"github.com/nkiryanov/calcboard/internal/handlers/middleware"
	"github.com/nkiryanov/calcboard/internal/logger"
	"github.com/nkiryanov/calcboard/internal/metrics"
	"github.com/nkiryanov/calcboard/internal/repository/postgres"
	"github.com/nkiryanov/calcboard/internal/service/auth"
	"github.com/nkiryanov/calcboard/internal/service/auth/revocation"
	"github.com/nkiryanov/calcboard/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/calcboard/internal/service/calculation"
	"github.com/nkiryanov/calcboard/internal/service/user"
)

const shutdownTimeout = 5 * time.Second

type ServerApp struct {
	listenAddr string
	handler    http.Handler
	sweeper    *revocation.Sweeper
	pool       *pgxpool.Pool
	logger     logger.Logger
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	keys, err := newKeys(c)
	if err != nil {
		return nil, fmt.Errorf("error while loading secret keys: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Initialize repositories
	storage := postgres.NewStorage(pool)
	m := metrics.New()

	// Initialize services
	registry := revocation.NewRegistry(revocation.Config{LookupTimeout: c.RevocationTimeout}, storage.Revoked())
	tokenManager, err := tokenmanager.New(tokenmanager.Config{
		Keys:       keys,
		AccessTTL:  c.AccessTokenTTL,
		RefreshTTL: c.RefreshTokenTTL,
	}, registry)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}
	authService, err := auth.NewService(auth.Config{Observer: m}, tokenManager, registry, storage, logger.WithGroup("auth"))
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	router := handlers.NewRouter(
		handlers.Services{
			Auth:        authService,
			User:        user.NewService(storage),
			Calculation: calculation.NewService(storage),
		},
		handlers.Options{
			Metrics:            m,
			CredentialsLimiter: middleware.NewRateLimiter(middleware.RateLimitConfig{
				PerSecond:         c.LoginRatePerSecond,
				Burst:             c.LoginRateBurst,
				TrustProxyHeaders: c.TrustProxyHeaders,
			}),
		},
		logger.WithGroup("http"),
	)

	return &ServerApp{
		listenAddr: c.ListenAddr,
		handler:    router,
		sweeper:    revocation.NewSweeper(registry, c.SweepInterval, logger.WithGroup("sweeper"), m),
		pool:       pool,
		logger:     logger,
	}, nil
}

func newKeys(c *Config) (*tokenmanager.StaticKeys, error) {
	retired, err := tokenmanager.ParseKeys(c.RetiredSecretKeys)
	if err != nil {
		return nil, err
	}

	return tokenmanager.NewStaticKeys(tokenmanager.Key{ID: c.SecretKeyID, Secret: []byte(c.SecretKey)}, retired...)
}

// Run starts http server and revocation sweeper, stops both gracefully on context cancellation
// If one of them fails the other is stopped too
func (s *ServerApp) Run(ctx context.Context) error {
	defer s.pool.Close()

	httpServer := &http.Server{
		Addr:              s.listenAddr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("Starting server", "address", s.listenAddr)
		err := httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := httpServer.Shutdown(timeoutCtx)
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
			return httpServer.Close()
		}
		s.logger.Info("HTTP server stopped")
		return err
	})

	g.Go(func() error {
		return s.sweeper.Run(gctx)
	})

	return g.Wait()
}
