package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/nkiryanov/calcboard/internal/apperrors"
	"github.com/nkiryanov/calcboard/internal/models"
)

const refreshCookiePath = "/api/auth"

// Set access token to header and refresh token to http only cookie
func (s *AuthService) SetTokenPairToResponse(w http.ResponseWriter, pair models.TokenPair) {
	w.Header().Set(s.accessHeaderName, s.accessAuthScheme+" "+pair.Access.Value)

	http.SetCookie(w, &http.Cookie{
		Name:     s.refreshCookieName,
		Value:    pair.Refresh.Value,
		Path:     refreshCookiePath,
		Expires:  pair.Refresh.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// Ask client to forget refresh token
func (s *AuthService) ClearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.refreshCookieName,
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// Get access token from 'Authorization: Bearer <token>' header
func (s *AuthService) GetAccessString(r *http.Request) (string, error) {
	header := r.Header.Get(s.accessHeaderName)

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, s.accessAuthScheme) || strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("%w: no %s token in %s header", apperrors.ErrTokenMalformed, s.accessAuthScheme, s.accessHeaderName)
	}

	return strings.TrimSpace(token), nil
}

// Get refresh token from cookie
func (s *AuthService) GetRefreshString(r *http.Request) (string, error) {
	cookie, err := r.Cookie(s.refreshCookieName)
	if err != nil || cookie.Value == "" {
		return "", fmt.Errorf("%w: no refresh token cookie", apperrors.ErrTokenMalformed)
	}
	return cookie.Value, nil
}

// Resolve user the request is authenticated with
func (s *AuthService) GetUserFromRequest(ctx context.Context, r *http.Request) (models.User, error) {
	access, err := s.GetAccessString(r)
	if err != nil {
		s.observe(OpResolve, err)
		return models.User{}, err
	}

	return s.Resolve(ctx, access)
}
