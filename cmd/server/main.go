package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prudhvinik1/chatweet/internal/config"
	"github.com/prudhvinik1/chatweet/internal/database"
	"github.com/prudhvinik1/chatweet/internal/handlers"
	"github.com/prudhvinik1/chatweet/internal/jobs/cleanup"
	"github.com/prudhvinik1/chatweet/internal/logger"
	"github.com/prudhvinik1/chatweet/internal/repositories"
	"github.com/prudhvinik1/chatweet/internal/services"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logg, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logg.Sync()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error("server exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *zap.Logger) error {
	if cfg.MigrateOnStart {
		if err := database.Migrate(cfg.DatabaseURL, "up"); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		logg.Info("migrations applied")
	}

	// Initialize database connections
	postgresPool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, logg)
	if err != nil {
		return fmt.Errorf("create postgres pool: %w", err)
	}
	defer postgresPool.Close()

	var sessionCache repositories.SessionCache
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL, logg)
		if err != nil {
			return fmt.Errorf("create redis client: %w", err)
		}
		defer redisClient.Close()
		sessionCache = repositories.NewRedisSessionCache(redisClient)
	} else {
		logg.Info("REDIS_URL not set, session cache disabled")
	}

	sessionService := services.NewSessionService(
		repositories.NewPostgresSessionRepository(postgresPool),
		repositories.NewPostgresLoginHistoryRepository(postgresPool),
		sessionCache,
		services.SessionConfig{TTL: cfg.SessionTTL, StoreTimeout: cfg.StoreTimeout},
		logg,
	)

	router := handlers.NewRouter(
		handlers.NewSessionHandler(sessionService, logg),
		handlers.RouterConfig{
			GatewaySecret:  cfg.GatewayJWTSecret,
			RequestTimeout: cfg.RequestTimeout,
		},
		logg,
	)

	go cleanup.New(sessionService, cfg.CleanupInterval, logg).Loop(ctx)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// graceful shutdown
	go func() {
		<-ctx.Done()

		logg.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Warn("server shutdown", zap.Error(err))
		}
	}()

	logg.Info("starting server",
		zap.String("port", cfg.ServerPort),
		zap.Duration("session_ttl", cfg.SessionTTL),
		zap.Bool("gateway_auth", cfg.GatewayJWTSecret != ""),
	)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	logg.Info("server stopped gracefully")
	return nil
}
