// Package userctx carries authenticated user through request context.
package userctx

import (
	"context"

	"github.com/nkiryanov/calcboard/internal/models"
)

type ctxKey struct{}

// Create a new context with the user
func New(ctx context.Context, u models.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// Extract the user from the context
func FromContext(ctx context.Context) (models.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(models.User)
	return u, ok
}

// Extract the user or panic. Use only behind auth middleware
func MustFromContext(ctx context.Context) models.User {
	u, ok := FromContext(ctx)
	if !ok {
		panic("userctx: no user in context, is auth middleware missing?")
	}
	return u
}
