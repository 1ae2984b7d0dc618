package postgres

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/calcboard/internal/models"
	"github.com/nkiryanov/calcboard/internal/testutil"
)

func TestRevokedToken(t *testing.T) {
	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	inTx := func(t *testing.T, fn func(*RevokedTokenRepo)) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			fn(&RevokedTokenRepo{DB: tx})
		})
	}

	t.Run("revoke and check", func(t *testing.T) {
		inTx(t, func(repo *RevokedTokenRepo) {
			inserted, err := repo.Revoke(t.Context(), models.RevokedToken{TokenID: "jti-1", RevokedAt: now, ExpiresAt: now.Add(time.Hour)})
			require.NoError(t, err)
			require.True(t, inserted)

			revoked, err := repo.IsRevoked(t.Context(), "jti-1")
			require.NoError(t, err)
			require.True(t, revoked)

			revoked, err = repo.IsRevoked(t.Context(), "jti-2")
			require.NoError(t, err)
			require.False(t, revoked, "not revoked token must not be reported revoked")
		})
	})

	t.Run("revoke twice is ok", func(t *testing.T) {
		inTx(t, func(repo *RevokedTokenRepo) {
			token := models.RevokedToken{TokenID: "jti-1", RevokedAt: now, ExpiresAt: now.Add(time.Hour)}

			inserted, err := repo.Revoke(t.Context(), token)
			require.NoError(t, err)
			require.True(t, inserted)

			inserted, err = repo.Revoke(t.Context(), token)
			require.NoError(t, err, "second revocation must be no-op")
			require.False(t, inserted, "second revocation must report the token revoked already")
		})
	})

	t.Run("concurrent revoke inserted once", func(t *testing.T) {
		repo := &RevokedTokenRepo{DB: pg.Pool}
		token := models.RevokedToken{TokenID: "jti-concurrent", RevokedAt: now, ExpiresAt: now.Add(time.Hour)}
		t.Cleanup(func() {
			_, _ = pg.Pool.Exec(context.Background(), "DELETE FROM revoked_tokens WHERE token_id = $1", token.TokenID)
		})

		const callers = 8
		var (
			wg       sync.WaitGroup
			inserted atomic.Int32
		)
		for range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := repo.Revoke(t.Context(), token)
				assert.NoError(t, err)
				if ok {
					inserted.Add(1)
				}
			}()
		}
		wg.Wait()

		require.EqualValues(t, 1, inserted.Load(), "exactly one caller has to insert the entry")
	})

	t.Run("delete expired", func(t *testing.T) {
		inTx(t, func(repo *RevokedTokenRepo) {
			_, err := repo.Revoke(t.Context(), models.RevokedToken{TokenID: "expired", RevokedAt: now, ExpiresAt: now.Add(-time.Minute)})
			require.NoError(t, err)
			_, err = repo.Revoke(t.Context(), models.RevokedToken{TokenID: "alive", RevokedAt: now, ExpiresAt: now.Add(time.Minute)})
			require.NoError(t, err)

			deleted, err := repo.DeleteExpired(t.Context(), now)

			require.NoError(t, err)
			require.EqualValues(t, 1, deleted)

			revoked, err := repo.IsRevoked(t.Context(), "alive")
			require.NoError(t, err)
			require.True(t, revoked, "not yet expired entry must stay")
		})
	})
}
