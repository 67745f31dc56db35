package middleware

import (
	"context"
	"net/http"

	"github.com/edvin/authcore/internal/api/response"
	"github.com/edvin/authcore/internal/core"
	"github.com/edvin/authcore/internal/oauth"
)

// GetPrincipal extracts the authenticated principal from the request context.
func GetPrincipal(ctx context.Context) *core.Principal {
	p, _ := ctx.Value(PrincipalKey).(*core.Principal)
	return p
}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p *core.Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}

// HasScope checks whether the principal holds the scope, directly or through
// an implying scope.
func HasScope(p *core.Principal, required string) bool {
	if p == nil {
		return false
	}
	return p.HasScope(required)
}

// RequireScope returns middleware that rejects principals lacking required
// with 403 insufficient_scope.
func RequireScope(required string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !HasScope(GetPrincipal(r.Context()), required) {
				response.WriteBearerError(w, oauth.InsufficientScope("requires scope "+required), required)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
