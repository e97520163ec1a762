package api

import (
	"context"
)

type ctxKey string

const ctxKeyUser ctxKey = "user"

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKeyUser, userID)
}

// UserIDFromContext returns "" for anonymous requests.
func UserIDFromContext(ctx context.Context) string {
	s, _ := ctx.Value(ctxKeyUser).(string)
	return s
}
