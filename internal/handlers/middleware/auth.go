package middleware

import (
	"context"
	"net/http"

	"github.com/nkiryanov/calcboard/internal/handlers/render"
	"github.com/nkiryanov/calcboard/internal/handlers/userctx"
	"github.com/nkiryanov/calcboard/internal/models"
)

type authService interface {
	GetUserFromRequest(ctx context.Context, r *http.Request) (models.User, error)
}

// Put authenticated user to request context or reject request
// Token failures are rendered as generic invalid session, inactive user as forbidden
func AuthMiddleware(as authService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := as.GetUserFromRequest(r.Context(), r)
			if err != nil {
				render.AppError(w, err)
				return
			}
			ctx := userctx.New(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
