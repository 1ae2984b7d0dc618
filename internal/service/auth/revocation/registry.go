// Package revocation tracks tokens invalidated before their natural expiry.
package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/nkiryanov/calcboard/internal/models"
	"github.com/nkiryanov/calcboard/internal/repository"
)

const defaultLookupTimeout = 2 * time.Second

type Config struct {
	// Max time to wait for the store on IsRevoked
	// If not set than default is used
	LookupTimeout time.Duration

	// Clock, time.Now if not set
	Now func() time.Time
}

// Registry of revoked token ids backed by shared store
// It keeps no state itself: once Revoke returns, every IsRevoked from any process sees the token revoked
type Registry struct {
	repo          repository.RevokedTokenRepo
	lookupTimeout time.Duration
	now           func() time.Time
}

func NewRegistry(cfg Config, repo repository.RevokedTokenRepo) *Registry {
	if cfg.LookupTimeout == 0 {
		cfg.LookupTimeout = defaultLookupTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Registry{
		repo:          repo,
		lookupTimeout: cfg.LookupTimeout,
		now:           cfg.Now,
	}
}

// Revoke token. Revoking the same token twice is no-op and reports false
// expiresAt is the token natural expiry, entry may be swept after that
func (r *Registry) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) (bool, error) {
	inserted, err := r.repo.Revoke(ctx, models.RevokedToken{
		TokenID:   tokenID,
		RevokedAt: r.now(),
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return false, fmt.Errorf("can't revoke token: %w", err)
	}
	return inserted, nil
}

// Whether the token is revoked
// Fails closed: on store error or timeout the token is reported revoked along with the error
func (r *Registry) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.lookupTimeout)
	defer cancel()

	revoked, err := r.repo.IsRevoked(ctx, tokenID)
	if err != nil {
		return true, fmt.Errorf("can't check token revocation: %w", err)
	}
	return revoked, nil
}

// Delete entries of tokens that are expired anyway
func (r *Registry) Sweep(ctx context.Context) (int64, error) {
	deleted, err := r.repo.DeleteExpired(ctx, r.now())
	if err != nil {
		return 0, fmt.Errorf("can't sweep revoked tokens: %w", err)
	}
	return deleted, nil
}
