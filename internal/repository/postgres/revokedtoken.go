package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/calcboard/internal/models"
)

type RevokedTokenRepo struct {
	DB DBTX
}

const revokeToken = `-- name: RevokeToken
INSERT INTO revoked_tokens (token_id, revoked_at, expires_at)
VALUES ($1, $2, $3)
ON CONFLICT (token_id) DO NOTHING
`

// Revoke token. Keeps the first revocation time if token is revoked already
// Reports false when the row existed, so only one caller wins a concurrent revocation
func (r *RevokedTokenRepo) Revoke(ctx context.Context, token models.RevokedToken) (bool, error) {
	tag, err := r.DB.Exec(ctx, revokeToken, token.TokenID, token.RevokedAt, token.ExpiresAt)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

const isTokenRevoked = `-- name: IsTokenRevoked
SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE token_id = $1)
`

func (r *RevokedTokenRepo) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	rows, _ := r.DB.Query(ctx, isTokenRevoked, tokenID)
	revoked, err := pgx.CollectOneRow(rows, pgx.RowTo[bool])
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return revoked, nil
}

const deleteExpiredTokens = `-- name: DeleteExpiredTokens
DELETE FROM revoked_tokens
WHERE expires_at <= $1
`

func (r *RevokedTokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.DB.Exec(ctx, deleteExpiredTokens, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}
