// File: internal/middleware/constants.go
package middleware

import (
	"context"

	"github.com/iyunix/go-chat/internal/auth"
)

// Context keys for middleware communication
type contextKey string

const (
	PrincipalKey contextKey = "principal"
	RequestIDKey contextKey = "request_id"
)

const AuthCookieName = "auth_token"

// WithPrincipal stores the authenticated principal on the context.
func WithPrincipal(ctx context.Context, p *auth.Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}

// PrincipalFrom returns the principal placed by the auth middleware.
func PrincipalFrom(ctx context.Context) (*auth.Principal, bool) {
	p, ok := ctx.Value(PrincipalKey).(*auth.Principal)
	return p, ok && p != nil && p.UserID != ""
}

// RequestIDFrom returns the id assigned by the logging middleware.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}
