package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/edvin/authcore/internal/api/response"
	"github.com/edvin/authcore/internal/core"
	"github.com/edvin/authcore/internal/oauth"
)

type contextKey string

const PrincipalKey contextKey = "principal"

// Validator resolves bearer credentials. *core.BearerValidator implements it.
type Validator interface {
	Validate(ctx context.Context, credential string) (*core.Principal, error)
	ValidateAccessToken(ctx context.Context, token string) (*core.Principal, error)
}

// AccessToken authenticates requests carrying an OAuth access token in the
// Authorization header.
func AccessToken(v Validator) func(http.Handler) http.Handler {
	return authenticate(v.ValidateAccessToken, false)
}

// Credential authenticates requests carrying either an access token or an API
// key, in the Authorization header or X-API-Key.
func Credential(v Validator) func(http.Handler) http.Handler {
	return authenticate(v.Validate, true)
}

func authenticate(validate func(context.Context, string) (*core.Principal, error), allowAPIKeyHeader bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential, ok := bearerCredential(r)
			if !ok && allowAPIKeyHeader {
				credential = r.Header.Get("X-API-Key")
				ok = credential != ""
			}
			if !ok {
				// RFC 6750 section 3.1: no error code when credentials are absent.
				w.Header().Set("WWW-Authenticate", response.BearerChallenge(nil, ""))
				response.WriteJSON(w, http.StatusUnauthorized, oauth.InvalidToken("missing bearer credential"))
				return
			}

			principal, err := validate(r.Context(), credential)
			if errors.Is(err, core.ErrInvalidCredential) {
				response.WriteBearerError(w, oauth.InvalidToken("credential is invalid, expired or revoked"), "")
				return
			}
			if err != nil {
				zerolog.Ctx(r.Context()).Error().Err(err).Msg("credential validation failed")
				response.WriteOAuthError(w, oauth.New(oauth.CodeTemporarilyUnavailable, "credential validation unavailable"))
				return
			}

			ctx := WithPrincipal(r.Context(), principal)
			logger := zerolog.Ctx(ctx).With().
				Str("principal_kind", string(principal.Kind)).
				Str("user_id", principal.UserID).
				Logger()
			ctx = logger.WithContext(ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerCredential extracts the token from "Authorization: Bearer <token>".
// The scheme is matched case-insensitively.
func bearerCredential(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
