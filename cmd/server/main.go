package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	elderquery "github.com/elderquery/elderquery"
	"github.com/elderquery/elderquery/internal/config"
	"github.com/elderquery/elderquery/internal/handler"
	"github.com/elderquery/elderquery/internal/repository"
	"github.com/elderquery/elderquery/internal/service"
	"github.com/elderquery/elderquery/internal/session"
	"github.com/elderquery/elderquery/internal/store"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Local store is always available; it backs the signed-out state.
	local, err := store.NewLocal(cfg.LocalDBPath)
	if err != nil {
		slog.Error("failed to open local store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := local.Close(); err != nil {
			slog.Error("failed to close local store", "error", err)
		}
	}()

	// Remote store only when configured; without it sign-in is rejected and
	// the app runs local-only.
	var remote store.Store
	if cfg.RemoteEnabled() {
		pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		migrationsFS, err := fs.Sub(elderquery.MigrationsFS, "migrations")
		if err != nil {
			slog.Error("failed to load embedded migrations", "error", err)
			os.Exit(1)
		}
		if err := repository.RunMigrations(cfg.DatabaseURL, migrationsFS); err != nil {
			slog.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		remote = store.NewPostgres(pool)
		slog.Info("remote store connected")
	} else {
		slog.Info("DATABASE_URL not set, running local-only")
	}

	// Initialize services
	stores := service.NewStoreSelector(local, remote)
	keyService := service.NewAPIKeyService(stores)
	pipeline := service.NewQueryPipeline(service.NewOpenAIClient(), service.NewTavilyClient(), keyService)
	manager := service.NewConversationManager(stores, pipeline, keyService)

	// Startup load: no session yet, so the local store is authoritative.
	if err := manager.SetIdentity(ctx, ""); err != nil {
		slog.Error("failed to load conversations", "error", err)
		os.Exit(1)
	}

	sessions := session.NewHMACProvider(cfg.SessionSecret)

	h := handler.New(handler.Deps{
		Cfg:      cfg,
		Manager:  manager,
		Keys:     keyService,
		Sessions: sessions,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           h.Routes(),
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}

	go func() {
		slog.Info("starting server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
	}
	slog.Info("server stopped gracefully")
}
