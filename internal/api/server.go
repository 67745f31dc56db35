package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/edvin/authcore/internal/api/handler"
	mw "github.com/edvin/authcore/internal/api/middleware"
	"github.com/edvin/authcore/internal/config"
	"github.com/edvin/authcore/internal/core"
	"github.com/edvin/authcore/internal/scope"
	"github.com/edvin/authcore/internal/session"
	"github.com/edvin/authcore/internal/store"
)

// Check reports whether a dependency is reachable.
type Check func(ctx context.Context) error

type Server struct {
	router      chi.Router
	logger      zerolog.Logger
	services    *core.Services
	sessions    session.Resolver
	prompts     session.PromptStore
	checks      map[string]Check
	cfg         *config.Config
	auditLogger *mw.AuditLogger
	rateLimiter *mw.RateLimiter
	apiLimiter  *mw.RateLimiter
	closeOnce   sync.Once
}

// NewServer wires the HTTP surface. prompts holds pending consent prompts
// between the authorize redirect and the decision. checks are run by /readyz.
func NewServer(logger zerolog.Logger, services *core.Services, sessions session.Resolver, prompts session.PromptStore, audit store.AuditStore, checks map[string]Check, cfg *config.Config) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		logger:      logger,
		services:    services,
		sessions:    sessions,
		prompts:     prompts,
		checks:      checks,
		cfg:         cfg,
		auditLogger: mw.NewAuditLogger(audit, logger),
		rateLimiter: mw.NewRateLimiter(cfg.TokenRateLimit, cfg.TokenRateBurst),
		apiLimiter:  mw.NewRateLimiter(cfg.APIRateLimit, cfg.APIRateBurst),
	}
	s.rateLimiter.Start()
	s.apiLimiter.Start()

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics)
}

func (s *Server) setupRoutes() {
	// Metrics move to their own listener when one is configured.
	if s.cfg.MetricsListenAddr == "" {
		s.router.Handle("/metrics", promhttp.Handler())
	}

	// Health check endpoints
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	metadata := handler.NewMetadata(s.cfg.IssuerURL)
	s.router.Get("/.well-known/oauth-authorization-server", metadata.Discovery)

	identity := handler.NewIdentity()
	sameOrigin := mw.RequireOrigin(s.cfg.TrustedOrigins())

	s.router.Route("/oauth", func(r chi.Router) {
		authorize := handler.NewAuthorize(s.services.Authorize, s.sessions, s.prompts, s.cfg.IssuerURL, s.cfg.LoginURL, s.cfg.ConsentURL)
		r.Get("/authorize", authorize.Authorize)
		r.With(sameOrigin).Post("/authorize/decision", authorize.Decision)

		// Client-authenticated endpoints are rate limited per IP.
		token := handler.NewToken(s.services.Token, s.services.Revocation)
		r.Group(func(r chi.Router) {
			r.Use(s.rateLimiter.Middleware)
			r.Post("/token", token.Exchange)
			r.Post("/revoke", token.Revoke)
		})

		r.With(mw.AccessToken(s.services.Bearer), mw.RequireScope(scope.Profile)).
			Get("/userinfo", identity.UserInfo)
	})

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.apiLimiter.Middleware)

		r.Group(func(r chi.Router) {
			r.Use(mw.Credential(s.services.Bearer))
			r.Use(s.auditLogger.Middleware)
			r.With(mw.RequireScope(scope.Read)).Get("/whoami", identity.WhoAmI)
		})

		// Credential management is reserved for the signed-in user, never
		// for a token or key acting on their behalf.
		r.Group(func(r chi.Router) {
			r.Use(mw.Session(s.sessions))
			r.Use(sameOrigin)
			r.Use(s.auditLogger.Middleware)

			apiKey := handler.NewAPIKey(s.services.APIKeys)
			r.Get("/api-keys", apiKey.List)
			r.Post("/api-keys", apiKey.Create)
			r.Delete("/api-keys/{id}", apiKey.Revoke)

			consent := handler.NewConsent(s.services.Consents)
			r.Get("/consents", consent.List)
			r.Delete("/consents/{clientID}", consent.Revoke)
		})
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	results := map[string]string{}
	healthy := true

	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			results[name] = err.Error()
			healthy = false
		} else {
			results[name] = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(results)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops the rate limiter janitors and flushes pending audit entries.
// Call it after the HTTP server has stopped accepting requests.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		s.rateLimiter.Stop()
		s.apiLimiter.Stop()
		s.auditLogger.Close()
	})
}
