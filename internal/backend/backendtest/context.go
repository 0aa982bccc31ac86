package backendtest

import "context"

type ctxKey int

const (
	userKey ctxKey = iota
	jsonKey
)

func withUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userKey, user)
}

func userFrom(ctx context.Context) string {
	u, _ := ctx.Value(userKey).(string)
	return u
}

func withJSON(ctx context.Context, v any) context.Context {
	return context.WithValue(ctx, jsonKey, v)
}

func jsonFrom(ctx context.Context) any {
	return ctx.Value(jsonKey)
}
