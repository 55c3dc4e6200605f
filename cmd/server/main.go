package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/anirudh-m/gamehub/internal/api"
	"github.com/anirudh-m/gamehub/internal/config"
	"github.com/anirudh-m/gamehub/internal/database"
	"github.com/anirudh-m/gamehub/internal/realtime"
	"github.com/anirudh-m/gamehub/internal/store"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Initialize database connections
	postgresPool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to create postgres pool", zap.Error(err))
	}
	defer postgresPool.Close()

	redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal("failed to create redis client", zap.Error(err))
	}
	defer redisClient.Close()

	// The store is the single source of truth; the realtime client keeps
	// a replica cache current from its change feed. This process relays
	// heartbeats for remote players, so no local player id is set.
	pgStore := store.NewPGStore(postgresPool, redisClient, logger)
	rt := realtime.NewClient(pgStore, realtime.Options{
		HeartbeatInterval: cfg.HeartbeatInterval,
		FreshnessWindow:   cfg.FreshnessWindow,
	}, logger)

	go func() {
		if err := rt.Run(ctx); err != nil {
			logger.Error("realtime subsystem stopped", zap.Error(err))
		}
	}()

	handler := api.NewHandler(rt, logger)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: handler.Router(cfg.JWTSecret),
	}

	// graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Info("starting server", zap.String("port", cfg.ServerPort))
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}

	logger.Info("server stopped gracefully")
}
