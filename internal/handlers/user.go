package handlers

import (
	"net/http"

	"github.com/nkiryanov/calcboard/internal/handlers/render"
	"github.com/nkiryanov/calcboard/internal/handlers/userctx"
	"github.com/nkiryanov/calcboard/internal/logger"
	"github.com/nkiryanov/calcboard/internal/repository"
)

func handleUserMe(s userService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := userctx.MustFromContext(r.Context())

		// Middleware user may be a moment old, read the current profile
		profile, err := s.GetProfile(r.Context(), user.ID)
		if err != nil {
			render.AppError(w, err)
			return
		}

		render.JSON(w, newUserResponse(profile))
	})
}

func handleUpdateProfile(s userService, logger logger.Logger) http.Handler {
	type request struct {
		FirstName *string `json:"first_name" validate:"omitnil,min=1,max=50"`
		LastName  *string `json:"last_name" validate:"omitnil,min=1,max=50"`
		Email     *string `json:"email" validate:"omitnil,email,max=255"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := userctx.MustFromContext(r.Context())

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			logger.Debug("Update profile request rejected", "error", err)
			return
		}

		profile, err := s.UpdateProfile(r.Context(), user.ID, repository.ProfileUpdate{
			FirstName: data.FirstName,
			LastName:  data.LastName,
			Email:     data.Email,
		})
		if err != nil {
			render.AppError(w, err)
			return
		}

		render.JSON(w, newUserResponse(profile))
	})
}

// Deactivated user can't log in and their tokens stop resolving
func handleDeactivate(s userService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := userctx.MustFromContext(r.Context())

		if err := s.Deactivate(r.Context(), user.ID); err != nil {
			render.AppError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}
