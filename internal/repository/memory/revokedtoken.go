package memory

import (
	"context"
	"time"

	"github.com/nkiryanov/calcboard/internal/models"
)

type RevokedTokenRepo struct {
	s *Storage
}

func (r *RevokedTokenRepo) Revoke(ctx context.Context, token models.RevokedToken) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.revoked[token.TokenID]; ok {
		return false, nil
	}
	r.s.revoked[token.TokenID] = token
	return true, nil
}

func (r *RevokedTokenRepo) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	_, ok := r.s.revoked[tokenID]
	return ok, nil
}

func (r *RevokedTokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var deleted int64
	for id, token := range r.s.revoked {
		if !token.ExpiresAt.After(now) {
			delete(r.s.revoked, id)
			deleted++
		}
	}
	return deleted, nil
}
