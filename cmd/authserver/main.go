package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/edvin/authcore/internal/api"
	"github.com/edvin/authcore/internal/config"
	"github.com/edvin/authcore/internal/core"
	"github.com/edvin/authcore/internal/crypto"
	"github.com/edvin/authcore/internal/db"
	"github.com/edvin/authcore/internal/jobs"
	"github.com/edvin/authcore/internal/logging"
	"github.com/edvin/authcore/internal/metrics"
	"github.com/edvin/authcore/internal/session"
	"github.com/edvin/authcore/internal/store/postgres"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "create-client":
			createClient(os.Args[2:])
			return
		case "create-api-key":
			createAPIKey(os.Args[2:])
			return
		case "seed":
			seed(os.Args[2:])
			return
		case "list-tokens":
			listTokens(os.Args[2:])
			return
		case "revoke-token":
			revokeToken(os.Args[2:])
			return
		case "revoke-tokens":
			revokeUserTokens(os.Args[2:])
			return
		case "set-user-access":
			setUserAccess(os.Args[2:])
			return
		case "reset-user-access":
			resetUserAccess(os.Args[2:])
			return
		case "list-user-access":
			listUserAccess(os.Args[2:])
			return
		}
	}

	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	if *migrateFlag {
		logger.Info().Msg("running database migrations")
		if err := db.RunMigrations(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	metrics.RegisterPgxPoolMetrics(prometheus.DefaultRegisterer, pool)

	hasher, err := crypto.NewHasher(cfg.SecretHasher)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure secret hasher")
	}

	st := postgres.New(pool)
	services := core.NewServices(st, hasher, serviceOptions(cfg), logger)
	defer services.Close()

	redisTLS, err := cfg.RedisTLS()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure redis TLS")
	}
	rdb, err := session.NewRedisClient(cfg.RedisURL, redisTLS)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure redis")
	}
	defer rdb.Close()
	sessions := session.NewRedisResolver(rdb, cfg.SessionCookie, cfg.SessionPrefix)
	prompts := session.NewRedisPrompts(rdb, "consent:", cfg.ConsentPromptTTL)

	scheduler, err := jobs.NewScheduler(st, cfg.PurgeInterval, cfg.PurgeRetention, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create scheduler")
	}
	scheduler.Start()

	checks := map[string]api.Check{
		"database": pool.Ping,
		"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}
	srv := api.NewServer(logger, services, sessions, prompts, st, checks, cfg)

	serverTLS, err := cfg.ServerTLS()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure server TLS")
	}

	httpServer := &http.Server{
		Addr:         cfg.HTTPListenAddr,
		Handler:      srv,
		TLSConfig:    serverTLS,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", cfg.HTTPListenAddr).Bool("tls", serverTLS != nil).Msg("starting auth server")
		var err error
		if serverTLS != nil {
			err = httpServer.ListenAndServeTLS("", "")
		} else {
			err = httpServer.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	var metricsServer *http.Server
	if cfg.MetricsListenAddr != "" {
		metricsServer = metrics.NewServer(cfg.MetricsListenAddr)
		g.Go(func() error {
			logger.Info().Str("addr", cfg.MetricsListenAddr).Msg("starting metrics server")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		if metricsServer != nil {
			if merr := metrics.Shutdown(metricsServer, 5*time.Second); merr != nil {
				logger.Warn().Err(merr).Msg("metrics server shutdown")
			}
		}
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
	}

	srv.Close()
	if err := scheduler.Stop(); err != nil {
		logger.Warn().Err(err).Msg("scheduler shutdown")
	}
}

func serviceOptions(cfg *config.Config) core.Options {
	opts := core.DefaultOptions()
	opts.AuthCodeTTL = cfg.AuthCodeTTL
	opts.AccessTokenTTL = cfg.AccessTokenTTL
	opts.RefreshTokenTTL = cfg.RefreshTokenTTL
	opts.RefreshRotation = cfg.RefreshRotation
	opts.RevokeOnCodeReplay = cfg.RevokeOnCodeReplay
	opts.ClientCacheTTL = cfg.ClientCacheTTL
	opts.DefaultUserScopes = cfg.DefaultUserScopes
	return opts
}
