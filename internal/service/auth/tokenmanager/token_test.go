package tokenmanager

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/calcboard/internal/apperrors"
	"github.com/nkiryanov/calcboard/internal/models"
)

// Revocation registry double with synchronous in-memory state
type fakeRegistry struct {
	revoked map[string]bool
	err     error
	calls   atomic.Int32
}

func (r *fakeRegistry) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	r.calls.Add(1)
	if r.err != nil {
		return true, r.err
	}
	return r.revoked[tokenID], nil
}

// Signing method that never manages to sign
type failingMethod struct{}

func (failingMethod) Alg() string                      { return "FAIL" }
func (failingMethod) Verify(string, []byte, any) error { return errors.New("can't verify") }
func (failingMethod) Sign(string, any) ([]byte, error) { return nil, errors.New("hsm is unavailable") }

func init() {
	jwt.RegisterSigningMethod("FAIL", func() jwt.SigningMethod { return failingMethod{} })
}

var (
	testNow = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	testKey = Key{ID: "k1", Secret: []byte("test-secret-key")}
)

func newManager(t *testing.T, clock *time.Time, registry *fakeRegistry) *TokenManager {
	t.Helper()

	keys, err := NewStaticKeys(testKey)
	require.NoError(t, err)

	m, err := New(Config{Keys: keys, Now: func() time.Time { return *clock }}, registry)
	require.NoError(t, err, "token manager should be created without errors")

	return m
}

func Test_TokenManager(t *testing.T) {
	t.Run("new defaults", func(t *testing.T) {
		keys, err := NewStaticKeys(testKey)
		require.NoError(t, err)

		m, err := New(Config{Keys: keys}, &fakeRegistry{})
		require.NoError(t, err, "token manager should be created without errors")

		require.Equal(t, defaultAccessTokenTTL, m.accessTTL, "default access token TTL should be set")
		require.Equal(t, defaultRefreshTokenTTL, m.refreshTTL, "default refresh token TTL")
		require.Equal(t, defaultSigningMethod, m.alg.Alg(), "default signing method should be set")
		require.NotNil(t, m.now, "default clock should be set")
	})

	t.Run("new fails", func(t *testing.T) {
		keys, err := NewStaticKeys(testKey)
		require.NoError(t, err)

		_, err = New(Config{}, &fakeRegistry{})
		require.Error(t, err, "keys are required")

		_, err = New(Config{Keys: keys}, nil)
		require.Error(t, err, "registry is required")

		_, err = New(Config{Keys: keys, Alg: "ROT13"}, &fakeRegistry{})
		require.Error(t, err, "unknown algorithm has to be rejected")
	})

	t.Run("round trip", func(t *testing.T) {
		type accountNumber uint32

		clock := testNow
		m := newManager(t, &clock, &fakeRegistry{})
		userID := uuid.New()

		tests := []struct {
			name    string
			subject any
			want    string
		}{
			{"string", "alice", "alice"},
			{"uuid", userID, userID.String()},
			{"int", 42, "42"},
			{"int64", int64(7), "7"},
			{"uint64", uint64(9), "9"},
			{"int8", int8(-8), "-8"},
			{"int16", int16(16), "16"},
			{"uint8", uint8(255), "255"},
			{"uint16", uint16(65535), "65535"},
			{"named integer", accountNumber(1001), "1001"},
		}

		for _, tt := range tests {
			for _, typ := range []models.TokenType{models.TokenTypeAccess, models.TokenTypeRefresh} {
				t.Run(tt.name+" "+string(typ), func(t *testing.T) {
					issued, err := m.Issue(tt.subject, typ, 0)
					require.NoError(t, err)

					token, err := m.Verify(t.Context(), issued.Value, typ)

					require.NoError(t, err)
					require.Equal(t, tt.want, token.Subject, "subject has to be canonical string")
					require.Equal(t, typ, token.Type)
					require.Equal(t, issued.ID, token.ID)
					require.True(t, token.IssuedAt.Equal(testNow))
					require.True(t, token.ExpiresAt.Equal(issued.ExpiresAt))
				})
			}
		}
	})

	t.Run("default ttl per type", func(t *testing.T) {
		clock := testNow
		m := newManager(t, &clock, &fakeRegistry{})

		pair, err := m.IssuePair("alice")

		require.NoError(t, err)
		assert.Equal(t, testNow.Add(defaultAccessTokenTTL), pair.Access.ExpiresAt.UTC())
		assert.Equal(t, testNow.Add(defaultRefreshTokenTTL), pair.Refresh.ExpiresAt.UTC())
		assert.NotEqual(t, pair.Access.ID, pair.Refresh.ID, "every token has own id")
	})

	t.Run("kid header", func(t *testing.T) {
		clock := testNow
		m := newManager(t, &clock, &fakeRegistry{})

		issued, err := m.Issue("alice", models.TokenTypeAccess, 0)
		require.NoError(t, err)

		parsed, _, err := jwt.NewParser().ParseUnverified(issued.Value, &Claims{})
		require.NoError(t, err)
		require.Equal(t, "k1", parsed.Header["kid"])
		require.Equal(t, "HS256", parsed.Header["alg"])
	})

	t.Run("type mismatch", func(t *testing.T) {
		clock := testNow
		registry := &fakeRegistry{}
		m := newManager(t, &clock, registry)

		pair, err := m.IssuePair("alice")
		require.NoError(t, err)

		_, err = m.Verify(t.Context(), pair.Access.Value, models.TokenTypeRefresh)
		require.ErrorIs(t, err, apperrors.ErrTokenTypeMismatch)
		require.ErrorIs(t, err, apperrors.ErrUnauthorized)

		_, err = m.Verify(t.Context(), pair.Refresh.Value, models.TokenTypeAccess)
		require.ErrorIs(t, err, apperrors.ErrTokenTypeMismatch)

		require.Zero(t, registry.calls.Load(), "registry must not be asked for wrong typed token")
	})

	t.Run("expired", func(t *testing.T) {
		t.Run("negative ttl", func(t *testing.T) {
			clock := testNow
			registry := &fakeRegistry{}
			m := newManager(t, &clock, registry)

			issued, err := m.Issue("alice", models.TokenTypeAccess, -time.Second)
			require.NoError(t, err)

			_, err = m.Verify(t.Context(), issued.Value, models.TokenTypeAccess)

			require.ErrorIs(t, err, apperrors.ErrTokenExpired)
			require.Zero(t, registry.calls.Load(), "registry must not be asked for expired token")
		})

		t.Run("exact boundary", func(t *testing.T) {
			clock := testNow
			m := newManager(t, &clock, &fakeRegistry{})

			issued, err := m.Issue("alice", models.TokenTypeAccess, time.Minute)
			require.NoError(t, err)

			clock = testNow.Add(time.Minute - time.Nanosecond)
			_, err = m.Verify(t.Context(), issued.Value, models.TokenTypeAccess)
			require.NoError(t, err, "token is valid right before expiry")

			clock = testNow.Add(time.Minute)
			_, err = m.Verify(t.Context(), issued.Value, models.TokenTypeAccess)
			require.ErrorIs(t, err, apperrors.ErrTokenExpired, "token is expired at exactly expires_at")
		})

		t.Run("expired checked before type", func(t *testing.T) {
			clock := testNow
			m := newManager(t, &clock, &fakeRegistry{})

			issued, err := m.Issue("alice", models.TokenTypeRefresh, -time.Second)
			require.NoError(t, err)

			_, err = m.Verify(t.Context(), issued.Value, models.TokenTypeAccess)
			require.ErrorIs(t, err, apperrors.ErrTokenExpired)
		})
	})

	t.Run("revoked", func(t *testing.T) {
		clock := testNow
		registry := &fakeRegistry{revoked: map[string]bool{}}
		m := newManager(t, &clock, registry)

		issued, err := m.Issue("alice", models.TokenTypeAccess, 0)
		require.NoError(t, err)

		_, err = m.Verify(t.Context(), issued.Value, models.TokenTypeAccess)
		require.NoError(t, err)

		registry.revoked[issued.ID] = true
		_, err = m.Verify(t.Context(), issued.Value, models.TokenTypeAccess)

		require.ErrorIs(t, err, apperrors.ErrTokenRevoked)
		require.ErrorIs(t, err, apperrors.ErrUnauthorized)
	})

	t.Run("registry failure fails closed", func(t *testing.T) {
		clock := testNow
		registry := &fakeRegistry{err: context.DeadlineExceeded}
		m := newManager(t, &clock, registry)

		issued, err := m.Issue("alice", models.TokenTypeAccess, 0)
		require.NoError(t, err)

		_, err = m.Verify(t.Context(), issued.Value, models.TokenTypeAccess)

		require.ErrorIs(t, err, apperrors.ErrTokenUnverified)
		require.ErrorIs(t, err, apperrors.ErrUnauthorized)
	})

	t.Run("malformed", func(t *testing.T) {
		clock := testNow
		registry := &fakeRegistry{}
		m := newManager(t, &clock, registry)

		issued, err := m.Issue("alice", models.TokenTypeAccess, 0)
		require.NoError(t, err)

		otherKeys, err := NewStaticKeys(Key{ID: "k1", Secret: []byte("other-secret")})
		require.NoError(t, err)
		other, err := New(Config{Keys: otherKeys, Now: func() time.Time { return testNow }}, registry)
		require.NoError(t, err)
		forged, err := other.Issue("alice", models.TokenTypeAccess, 0)
		require.NoError(t, err)

		unknownKid, err := NewStaticKeys(Key{ID: "k9", Secret: testKey.Secret})
		require.NoError(t, err)
		other, err = New(Config{Keys: unknownKid, Now: func() time.Time { return testNow }}, registry)
		require.NoError(t, err)
		withUnknownKid, err := other.Issue("alice", models.TokenTypeAccess, 0)
		require.NoError(t, err)

		hs512 := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID: "id", Subject: "alice",
				IssuedAt: jwt.NewNumericDate(testNow), ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Hour)),
			},
			Type: models.TokenTypeAccess,
		})
		hs512.Header["kid"] = testKey.ID
		otherAlg, err := hs512.SignedString(testKey.Secret)
		require.NoError(t, err)

		noType := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			ID: "id", Subject: "alice",
			IssuedAt: jwt.NewNumericDate(testNow), ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Hour)),
		})
		noType.Header["kid"] = testKey.ID
		withoutType, err := noType.SignedString(testKey.Secret)
		require.NoError(t, err)

		noExp := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
			RegisteredClaims: jwt.RegisteredClaims{ID: "id", Subject: "alice", IssuedAt: jwt.NewNumericDate(testNow)},
			Type:             models.TokenTypeAccess,
		})
		withoutExp, err := noExp.SignedString(testKey.Secret)
		require.NoError(t, err)

		parts := strings.Split(issued.Value, ".")
		tampered := parts[0] + "." + parts[1] + "x." + parts[2]

		tests := map[string]string{
			"empty":          "",
			"garbage":        "not-a-token",
			"tampered":       tampered,
			"wrong secret":   forged.Value,
			"unknown kid":    withUnknownKid.Value,
			"other alg":      otherAlg,
			"without type":   withoutType,
			"without expiry": withoutExp,
		}

		for name, value := range tests {
			t.Run(name, func(t *testing.T) {
				_, err := m.Verify(t.Context(), value, models.TokenTypeAccess)

				require.ErrorIs(t, err, apperrors.ErrTokenMalformed)
				require.ErrorIs(t, err, apperrors.ErrUnauthorized)
			})
		}

		require.Zero(t, registry.calls.Load(), "registry must not be asked for malformed tokens")
	})

	t.Run("retired key accepted", func(t *testing.T) {
		registry := &fakeRegistry{}

		oldKeys, err := NewStaticKeys(Key{ID: "old", Secret: []byte("old-secret")})
		require.NoError(t, err)
		oldManager, err := New(Config{Keys: oldKeys, Now: func() time.Time { return testNow }}, registry)
		require.NoError(t, err)

		issued, err := oldManager.Issue("alice", models.TokenTypeAccess, 0)
		require.NoError(t, err)

		rotated, err := NewStaticKeys(testKey, Key{ID: "old", Secret: []byte("old-secret")})
		require.NoError(t, err)
		m, err := New(Config{Keys: rotated, Now: func() time.Time { return testNow }}, registry)
		require.NoError(t, err)

		token, err := m.Verify(t.Context(), issued.Value, models.TokenTypeAccess)

		require.NoError(t, err, "token signed with retired key has to be accepted")
		require.Equal(t, "alice", token.Subject)
	})

	t.Run("signing error", func(t *testing.T) {
		keys, err := NewStaticKeys(testKey)
		require.NoError(t, err)
		m, err := New(Config{Keys: keys, Alg: "FAIL"}, &fakeRegistry{})
		require.NoError(t, err)

		_, err = m.Issue("alice", models.TokenTypeAccess, 0)
		require.ErrorIs(t, err, apperrors.ErrTokenSigning)

		_, err = m.IssuePair("alice")
		require.ErrorIs(t, err, apperrors.ErrTokenSigning)
	})

	t.Run("invalid subject", func(t *testing.T) {
		clock := testNow
		m := newManager(t, &clock, &fakeRegistry{})

		for _, subject := range []any{"", nil, 1.5, true, []int{1}, struct{}{}} {
			_, err := m.Issue(subject, models.TokenTypeAccess, 0)
			require.ErrorIs(t, err, ErrInvalidSubject, "subject %v has to be rejected", subject)
		}
	})
}
