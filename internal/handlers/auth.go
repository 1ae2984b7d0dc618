package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/nkiryanov/calcboard/internal/apperrors"
	"github.com/nkiryanov/calcboard/internal/handlers/render"
	"github.com/nkiryanov/calcboard/internal/handlers/userctx"
	"github.com/nkiryanov/calcboard/internal/logger"
	"github.com/nkiryanov/calcboard/internal/service/auth"
)

func handleRegister(s authService, logger logger.Logger) http.Handler {
	type request struct {
		Username        string `json:"username" validate:"required,min=3,max=50,username"`
		Email           string `json:"email" validate:"required,email,max=255"`
		FirstName       string `json:"first_name" validate:"required,max=50"`
		LastName        string `json:"last_name" validate:"required,max=50"`
		Password        string `json:"password" validate:"required,max=128"`
		ConfirmPassword string `json:"confirm_password" validate:"required,max=128"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			logger.Debug("Register request rejected", "error", err)
			return
		}

		user, pair, err := s.Register(r.Context(), auth.RegisterParams{
			Username:        data.Username,
			Email:           data.Email,
			FirstName:       data.FirstName,
			LastName:        data.LastName,
			Password:        data.Password,
			ConfirmPassword: data.ConfirmPassword,
		})
		if err != nil {
			render.AppError(w, err)
			return
		}

		s.SetTokenPairToResponse(w, pair)
		render.JSONWithStatus(w, newTokenResponse(pair, &user), http.StatusCreated)
	})
}

func handleLogin(s authService, logger logger.Logger) http.Handler {
	type request struct {
		Username string `json:"username" validate:"required,max=255"`
		Password string `json:"password" validate:"required,max=128"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			logger.Debug("Login request rejected", "error", err)
			return
		}

		user, pair, err := s.Login(r.Context(), data.Username, data.Password)
		if err != nil {
			render.AppError(w, err)
			return
		}

		s.SetTokenPairToResponse(w, pair)
		render.JSON(w, newTokenResponse(pair, &user))
	})
}

// Refresh token is taken from body if present, from cookie otherwise
func handleTokenRefresh(s authService, logger logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refresh, err := refreshFromRequest(s, r)
		if err != nil {
			logger.Debug("Refresh request rejected", "error", err)
			render.AppError(w, err)
			return
		}

		pair, err := s.Refresh(r.Context(), refresh)
		if err != nil {
			render.AppError(w, err)
			return
		}

		s.SetTokenPairToResponse(w, pair)
		render.JSON(w, newTokenResponse(pair, nil))
	})
}

// Requires valid access token. Refresh token is revoked too if sent
func handleLogout(s authService, logger logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		access, err := s.GetAccessString(r)
		if err != nil {
			render.AppError(w, err)
			return
		}

		refresh, err := refreshFromRequest(s, r)
		if err != nil {
			logger.Debug("Logout without refresh token", "error", err)
			refresh = ""
		}

		if err := s.Logout(r.Context(), access, refresh); err != nil {
			render.AppError(w, err)
			return
		}

		s.ClearRefreshCookie(w)
		render.JSON(w, messageResponse{Message: "Logged out successfully"})
	})
}

func handleChangePassword(s authService, logger logger.Logger) http.Handler {
	type request struct {
		CurrentPassword    string `json:"current_password" validate:"required,max=128"`
		NewPassword        string `json:"new_password" validate:"required,max=128"`
		ConfirmNewPassword string `json:"confirm_new_password" validate:"required,max=128"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := userctx.MustFromContext(r.Context())

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			logger.Debug("Change password request rejected", "error", err)
			return
		}

		err = s.ChangePassword(r.Context(), user, data.CurrentPassword, data.NewPassword, data.ConfirmNewPassword)
		if err != nil {
			render.AppError(w, err)
			return
		}

		render.JSON(w, messageResponse{Message: "Password updated successfully"})
	})
}

func refreshFromRequest(s authService, r *http.Request) (string, error) {
	type request struct {
		RefreshToken string `json:"refresh_token"`
	}

	var data request
	err := decodeOptionalJSON(r, &data)
	if err != nil {
		return "", err
	}
	if data.RefreshToken != "" {
		return data.RefreshToken, nil
	}

	return s.GetRefreshString(r)
}

// Empty body is fine, malformed one is not
func decodeOptionalJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}

	err := json.NewDecoder(r.Body).Decode(v)
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return nil
	default:
		return fmt.Errorf("%w: can't decode body: %w", apperrors.ErrTokenMalformed, err)
	}
}
