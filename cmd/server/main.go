package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/reciperag/session-cache/internal/api"
	"github.com/reciperag/session-cache/internal/api/handler"
	"github.com/reciperag/session-cache/internal/config"
	"github.com/reciperag/session-cache/internal/remote"
	"github.com/reciperag/session-cache/internal/session"
	"github.com/reciperag/session-cache/internal/storage"
	"github.com/reciperag/session-cache/internal/storage/memory"
	"github.com/reciperag/session-cache/internal/storage/postgres"
	redisstore "github.com/reciperag/session-cache/internal/storage/redis"
	"github.com/reciperag/session-cache/internal/storage/sqlite"
)

func main() {
	// Load .env file if present
	_ = godotenv.Load()

	// Setup logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	log.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("ephemeral", cfg.Storage.Ephemeral).
		Str("persistent", cfg.Storage.Persistent).
		Msg("Starting session cache server")

	ctx := context.Background()

	// Ephemeral backend: guest sessions
	var ephemeral storage.Provider
	switch cfg.Storage.Ephemeral {
	case "redis":
		client, err := redisstore.NewClient(cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer client.Close()
		ephemeral = redisstore.NewProvider(client, storage.ClassEphemeral, session.KeyPrefix, cfg.Redis.TTL)
	default:
		ephemeral = memory.New(storage.ClassEphemeral, 0)
	}

	// Persistent backend: authenticated sessions
	var persistent storage.Provider
	var pinger handler.Pinger
	switch cfg.Storage.Persistent {
	case "postgres":
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer db.Close()
		persistent = postgres.NewProvider(db)
		pinger = db
	default:
		db, err := sqlite.New(ctx, cfg.SQLite.Path)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open SQLite database")
		}
		defer db.Close()
		persistent = db
		pinger = db
	}

	selector := storage.Selector{
		Ephemeral:  ephemeral,
		Persistent: persistent,
	}

	remoteClient := remote.NewClient(cfg.Remote.BaseURL, cfg.Remote.Timeout)
	guestCleanup := session.NewGuestCleanup(ephemeral)

	router := api.NewRouter(cfg, api.Deps{
		Selector:     selector,
		RemoteClient: remoteClient,
		DB:           pinger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Guest sessions do not outlive the service.
	guestCleanup.Run(shutdownCtx)

	log.Info().Msg("Server stopped")
}
