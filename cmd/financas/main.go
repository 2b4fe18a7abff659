package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"financas/internal/amqp"
	"financas/internal/auth"
	"financas/internal/backend"
	"financas/internal/cache"
	"financas/internal/cli"
	apphttp "financas/internal/http"
	applog "financas/internal/log"
	"financas/internal/middleware/ratelimit"
	"financas/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger, nil)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger).
		CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize data backend", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	ledgerOpts := []services.Option{
		services.WithCache(cfg.CacheSize, cfg.CacheTTL),
		services.WithLogger(logger),
	}
	var publisher *amqp.Client
	if cfg.AMQPURL != "" {
		publisher, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			// Without a publisher the ledger still works; no events are sent.
			logger.Warn("AMQP unavailable, spreadsheet mirror disabled", applog.FieldError, err)
			publisher = nil
		} else {
			ledgerOpts = append(ledgerOpts, services.WithPublisher(publisher))
		}
	}
	ledger := services.NewLedgerService(result.Backend, ledgerOpts...)

	caches := cache.NewManager()
	caches.Register(ledger.Cache())

	var google auth.ProfileFetcher
	if cfg.GoogleSignInEnabled() {
		google = auth.NewGoogle(cfg.GoogleOAuthClientID, cfg.GoogleOAuthClientSecret, cfg.GoogleOAuthRedirectURL)
		logger.Info("Google sign-in enabled")
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Ledger:        ledger,
		Auth:          auth.NewService(result.Backend),
		Sessions:      auth.NewSessions(cfg.JWTSecret, cfg.SessionTTL, cfg.SecureCookies),
		Google:        google,
		Store:         result.Backend,
		Logger:        logger,
		Caches:        caches,
		RateLimit:     ratelimit.DefaultConfig(),
		SecureCookies: cfg.SecureCookies,
	})
	if err != nil {
		logger.Error("Failed to create HTTP server", applog.FieldError, err)
		os.Exit(1)
	}
	caches.StartCleanup(time.Minute)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		caches.Stop()
		if publisher != nil {
			if err := publisher.Close(); err != nil {
				logger.Warn("AMQP close failed", applog.FieldError, err)
			}
		}
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				logger.Warn("Backend cleanup failed", applog.FieldError, err)
			}
		}
	})

	logger.Info("Starting financas server", "port", cfg.Port, "backend", cfg.DataBackend, "public_url", cfg.PublicURL)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
