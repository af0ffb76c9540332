// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"

	"libris/internal/catalog"
	"libris/internal/config"
	"libris/internal/eventlog"
	"libris/internal/identity"
	"libris/internal/lending"
	"libris/internal/storage"
	"libris/internal/telemetry"
	"libris/internal/web"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer shutdownTracing(context.Background())

	pg, err := storage.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer pg.Close()

	if err := pg.Ping(ctx); err != nil {
		return err
	}
	if err := pg.Migrate(ctx); err != nil {
		return err
	}

	validate := validator.New()
	events := eventlog.New(pg.DB())

	catalogSvc := catalog.NewService(pg, events)
	tokens := identity.NewTokenIssuer(cfg.Auth.TokenSecret, cfg.Auth.TokenTTL)
	identitySvc := identity.NewService(pg, events, tokens, cfg.Auth.AuthRatePerMin)
	lendingSvc := lending.NewService(pg, catalog.NewStore(), identity.NewStore(), events)

	router := web.NewRouter(logger, pg,
		catalog.NewHandler(catalogSvc, validate, logger),
		identity.NewHandler(identitySvc, validate, logger),
		lending.NewHandler(lendingSvc, validate, logger),
	)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
