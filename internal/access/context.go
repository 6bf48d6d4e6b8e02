package access

import (
	"context"
	"strings"
)

type ctxKey string

const (
	principalIDKey ctxKey = "access_principal_id"
	tokenKey       ctxKey = "access_token"
)

// ContextWithPrincipalID stores the authenticated profile id in the context.
func ContextWithPrincipalID(ctx context.Context, profileID string) context.Context {
	return context.WithValue(ctx, principalIDKey, strings.TrimSpace(profileID))
}

// PrincipalIDFromContext extracts the authenticated profile id from context.
func PrincipalIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(principalIDKey).(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// ContextWithToken stores the raw bearer token inside the context.
func ContextWithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenKey, token)
}

// TokenFromContext returns the bearer token if it was previously attached.
func TokenFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(tokenKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
