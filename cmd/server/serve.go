package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/iudanet/shiftgrid/internal/clock"
	"github.com/iudanet/shiftgrid/internal/config"
	"github.com/iudanet/shiftgrid/internal/server/handlers"
	"github.com/iudanet/shiftgrid/internal/server/jwt"
	"github.com/iudanet/shiftgrid/internal/server/middleware"
	"github.com/iudanet/shiftgrid/internal/server/storage/sqlite"
)

const healthPath = "/api/v1/health"

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg.Server

	store, err := sqlite.New(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			a.logger.Error("failed to close database", "error", err)
		}
	}()

	tokens := jwt.NewService(cfg.JWTSecret, cfg.TokenTTL)
	limiter := middleware.NewRateLimiter(cfg.RateLimit, cfg.RateWindow, clock.System())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(a.logger, cfg, store, tokens, limiter),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Server started", "addr", cfg.Addr, "version", Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

func newRouter(logger *slog.Logger, cfg config.ServerConfig, store *sqlite.Storage, tokens middleware.TokenValidator, limiter *middleware.RateLimiter) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.LoggingMiddleware(logger, healthPath))
	r.Use(middleware.RecoveryMiddleware(logger))

	r.Get(healthPath, handlers.NewHealthHandler(logger, store, Version).Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(logger, tokens))
		if cfg.RateLimit > 0 {
			r.Use(middleware.WritesOnly(middleware.RateLimitMiddleware(limiter, logger)))
		}
		r.Mount("/api/v1/shifts", handlers.NewShiftHandler(logger, store).Routes())
	})

	return r
}
