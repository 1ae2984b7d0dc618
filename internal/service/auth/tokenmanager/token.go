package tokenmanager

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nkiryanov/calcboard/internal/apperrors"
	"github.com/nkiryanov/calcboard/internal/ids"
	"github.com/nkiryanov/calcboard/internal/models"
)

const (
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 7 * 24 * time.Hour
	defaultSigningMethod   = "HS256"
)

var ErrInvalidSubject = errors.New("token subject must be non empty string, fmt.Stringer or integer")

type Claims struct {
	jwt.RegisteredClaims
	Type models.TokenType `json:"token_type"`
}

type revocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Token manager with sensible default
type Config struct {
	// Signing and verification keys
	// Required to be set
	Keys KeySource

	// JWT MAC (Message Authentication Code) algorithm
	// If not set than default is used
	Alg string

	// Access and refresh token lifetimes
	// If not set than default is used
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Clock, time.Now if not set
	Now func() time.Time
}

type TokenManager struct {
	keys KeySource

	// JWT MAC (Message Authentication Code) algorithm
	alg jwt.SigningMethod

	// Access and refresh token lifetimes
	accessTTL  time.Duration
	refreshTTL time.Duration

	now func() time.Time

	revoked revocationChecker
}

func New(cfg Config, revoked revocationChecker) (*TokenManager, error) {
	if cfg.Keys == nil {
		return nil, errors.New("keys must be set")
	}
	if revoked == nil {
		return nil, errors.New("revocation registry must be set")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}
	alg := jwt.GetSigningMethod(cfg.Alg)
	if alg == nil {
		return nil, fmt.Errorf("unknown signing method %q", cfg.Alg)
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, defaultAccessTokenTTL)
	setDefaultDuration(&cfg.RefreshTTL, defaultRefreshTokenTTL)

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &TokenManager{
		keys:       cfg.Keys,
		alg:        alg,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        cfg.Now,
		revoked:    revoked,
	}, nil
}

func (m *TokenManager) defaultTTL(typ models.TokenType) time.Duration {
	if typ == models.TokenTypeRefresh {
		return m.refreshTTL
	}
	return m.accessTTL
}

// Issue signed token for subject
// Zero ttl means default lifetime for the token type. Negative ttl issues already expired token
func (m *TokenManager) Issue(subject any, typ models.TokenType, ttl time.Duration) (models.IssuedToken, error) {
	var issued models.IssuedToken

	sub, err := canonicalSubject(subject)
	if err != nil {
		return issued, err
	}
	if !typ.Valid() {
		return issued, fmt.Errorf("unknown token type %q", typ)
	}

	if ttl == 0 {
		ttl = m.defaultTTL(typ)
	}

	now := m.now().Truncate(time.Second)
	expiresAt := jwt.NewNumericDate(now.Add(ttl))

	key, err := m.keys.SigningKey()
	if err != nil {
		return issued, fmt.Errorf("%w: %w", apperrors.ErrTokenSigning, err)
	}

	id := ids.New()
	token := jwt.NewWithClaims(m.alg, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: expiresAt,
		},
		Type: typ,
	})
	token.Header["kid"] = key.ID

	value, err := token.SignedString(key.Secret)
	if err != nil {
		return issued, fmt.Errorf("%w: %w", apperrors.ErrTokenSigning, err)
	}

	return models.IssuedToken{
		ID:        id,
		Value:     value,
		ExpiresAt: expiresAt.Time,
	}, nil
}

// Issue access and refresh tokens with default lifetimes
func (m *TokenManager) IssuePair(subject any) (models.TokenPair, error) {
	access, err := m.Issue(subject, models.TokenTypeAccess, 0)
	if err != nil {
		return models.TokenPair{}, err
	}

	refresh, err := m.Issue(subject, models.TokenTypeRefresh, 0)
	if err != nil {
		return models.TokenPair{}, err
	}

	return models.TokenPair{Access: access, Refresh: refresh}, nil
}

// Verify token and return its payload
// Checks go strictly in order: signature, expiry, type, revocation
// so invalid token never reaches revocation registry
func (m *TokenManager) Verify(ctx context.Context, value string, expected models.TokenType) (models.Token, error) {
	claims, err := m.parse(value)
	if err != nil {
		return models.Token{}, err
	}

	token := models.Token{
		ID:        claims.ID,
		Subject:   claims.Subject,
		Type:      claims.Type,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}

	if !m.now().Before(token.ExpiresAt) {
		return token, apperrors.ErrTokenExpired
	}

	if token.Type != expected {
		return token, fmt.Errorf("%w: got %s, expected %s", apperrors.ErrTokenTypeMismatch, token.Type, expected)
	}

	revoked, err := m.revoked.IsRevoked(ctx, token.ID)
	switch {
	case err != nil:
		return token, fmt.Errorf("%w: %w", apperrors.ErrTokenUnverified, err)
	case revoked:
		return token, apperrors.ErrTokenRevoked
	}

	return token, nil
}

// Parse token and check signature. Expiry is not checked here
func (m *TokenManager) parse(value string) (*Claims, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(
		value,
		claims,
		func(t *jwt.Token) (any, error) {
			kid, _ := t.Header["kid"].(string)
			if kid == "" {
				key, err := m.keys.SigningKey()
				return key.Secret, err
			}
			return m.keys.VerificationKey(kid)
		},
		jwt.WithValidMethods([]string{m.alg.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrTokenMalformed, err)
	}

	switch {
	case claims.ID == "" || claims.Subject == "":
		return nil, fmt.Errorf("%w: jti and sub claims are required", apperrors.ErrTokenMalformed)
	case claims.ExpiresAt == nil || claims.IssuedAt == nil:
		return nil, fmt.Errorf("%w: exp and iat claims are required", apperrors.ErrTokenMalformed)
	case !claims.Type.Valid():
		return nil, fmt.Errorf("%w: unknown token type %q", apperrors.ErrTokenMalformed, claims.Type)
	}

	return claims, nil
}

func canonicalSubject(subject any) (string, error) {
	var sub string

	switch s := subject.(type) {
	case string:
		sub = s
	case fmt.Stringer:
		sub = s.String()
	default:
		// Integer of any size, named integer types included
		v := reflect.ValueOf(subject)
		switch {
		case v.CanInt():
			sub = strconv.FormatInt(v.Int(), 10)
		case v.CanUint():
			sub = strconv.FormatUint(v.Uint(), 10)
		}
	}

	if sub == "" {
		return "", fmt.Errorf("%w: %T", ErrInvalidSubject, subject)
	}
	return sub, nil
}
