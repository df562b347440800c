package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/swapmeet-dev/swapmeet/internal/api"
	"github.com/swapmeet-dev/swapmeet/internal/chat"
	"github.com/swapmeet-dev/swapmeet/internal/config"
	"github.com/swapmeet-dev/swapmeet/internal/handlers"
	"github.com/swapmeet-dev/swapmeet/internal/members"
	"github.com/swapmeet-dev/swapmeet/internal/store"
	"github.com/swapmeet-dev/swapmeet/internal/ws"
)

func main() {
	cfg := config.Load()

	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx := context.Background()

	if cfg.DatabaseURL == "" {
		logger.Fatal().Msg("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		logger.Fatal().Msg("REDIS_URL is required")
	}

	logger.Info().Msg("running database migrations...")
	if err := store.RunMigrations(ctx, cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("migration failed")
	}
	logger.Info().Msg("migrations completed")

	pgStore, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection failed")
	}
	defer pgStore.Close()
	logger.Info().Msg("connected to PostgreSQL")

	cache, err := store.NewRedisCache(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer cache.Close()
	logger.Info().Msg("connected to Redis")

	resolver, err := members.NewResolver(pgStore, cfg.ProfileCacheSize)
	if err != nil {
		logger.Fatal().Err(err).Msg("profile resolver setup failed")
	}

	hub := ws.NewHub(logger)
	gateway := chat.NewGateway(pgStore, pgStore, cache, hub, resolver, logger)
	directory := chat.NewDirectory(pgStore, gateway, logger)
	history := chat.NewHistoryReader(pgStore, pgStore, cache, logger)

	h := handlers.NewHandler(directory, gateway, history, pgStore, cache)
	router := api.NewRouter(logger, h, hub, cache)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting swapmeet chat server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
