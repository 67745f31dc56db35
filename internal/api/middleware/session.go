package middleware

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/edvin/authcore/internal/api/response"
	"github.com/edvin/authcore/internal/core"
	"github.com/edvin/authcore/internal/scope"
	"github.com/edvin/authcore/internal/session"
)

// Session authenticates requests by the first-party login session. The
// principal holds every scope; bearer credentials are not consulted.
func Session(resolver session.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := resolver.UserID(r)
			if errors.Is(err, session.ErrNoSession) {
				response.WriteError(w, http.StatusUnauthorized, "login required")
				return
			}
			if err != nil {
				zerolog.Ctx(r.Context()).Error().Err(err).Msg("session lookup failed")
				response.WriteError(w, http.StatusServiceUnavailable, "session store unavailable")
				return
			}

			ctx := WithPrincipal(r.Context(), &core.Principal{
				Kind:   core.PrincipalSession,
				UserID: userID,
				Scopes: scope.Known,
			})
			logger := zerolog.Ctx(ctx).With().
				Str("principal_kind", string(core.PrincipalSession)).
				Str("user_id", userID).
				Logger()
			next.ServeHTTP(w, r.WithContext(logger.WithContext(ctx)))
		})
	}
}

// RequireOrigin rejects state-changing requests whose Origin, or Referer when
// Origin is absent, is not one of trusted. Safe methods pass through.
func RequireOrigin(trusted []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(trusted))
	for _, o := range trusted {
		if n := normalizeOrigin(o); n != "" {
			allowed[n] = true
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				origin = r.Header.Get("Referer")
			}
			if !allowed[normalizeOrigin(origin)] {
				zerolog.Ctx(r.Context()).Warn().Str("origin", origin).Msg("cross-origin request rejected")
				response.WriteError(w, http.StatusForbidden, "cross-origin request rejected")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// normalizeOrigin reduces a URL to lowercase scheme://host[:port].
func normalizeOrigin(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme + "://" + u.Host)
}
