package middleware

import "context"

type ctxKey string

const (
	ctxUserID  ctxKey = "user_id"
	ctxAccount ctxKey = "account"
	ctxRole    ctxKey = "role"
)

func WithUser(ctx context.Context, userID, account, role string) context.Context {
	ctx = context.WithValue(ctx, ctxUserID, userID)
	ctx = context.WithValue(ctx, ctxAccount, account)
	ctx = context.WithValue(ctx, ctxRole, role)
	return ctx
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxUserID).(string)
	return v, ok && v != ""
}

func AccountFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxAccount).(string)
	return v, ok && v != ""
}

func RoleFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxRole).(string)
	return v, ok && v != ""
}
