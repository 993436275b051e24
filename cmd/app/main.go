package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mmalakhov777/tauhid2-sub002/internal/api/v1/router"
	"github.com/mmalakhov777/tauhid2-sub002/internal/config"
	"github.com/mmalakhov777/tauhid2-sub002/internal/logger"
	"github.com/mmalakhov777/tauhid2-sub002/internal/service"
)

// @title Credit Ledger API
// @version 1.0
// @description Message-credit balances, consumption gate and Telegram Stars payment intake.
// @host localhost:8080
// @BasePath /v1
// @Schemes http https

func main() {
	logger := logger.New()

	// 1. Load configuration
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("Warning: no .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Error loading config: %v", err)
	}

	// 2. Resolve the Telegram webhook secret. A secret name takes precedence
	// over the plain env var so production secrets stay out of the process
	// environment.
	webhookSecret := cfg.TelegramWebhookSecret
	if cfg.TelegramWebhookSecretName != "" {
		sm, err := service.NewSecretManagerService(context.Background(), cfg.GCPProjectID)
		if err != nil {
			logger.Fatal().Msgf("Failed to create secret manager client: %v", err)
		}
		webhookSecret, err = sm.GetSecret(context.Background(), cfg.TelegramWebhookSecretName)
		if err != nil {
			logger.Fatal().Msgf("Failed to fetch webhook secret: %v", err)
		}
		if err := sm.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close secret manager client")
		}
	}
	if webhookSecret == "" {
		logger.Warn().Msg("No Telegram webhook secret configured, webhook endpoint will reject all requests")
	}

	// 3. Build router (and get DB connection)
	r, db, err := router.New(cfg, webhookSecret, logger)
	if err != nil {
		logger.Fatal().Msgf("Failed to build router: %v", err)
	}
	defer db.Close()

	// 4. Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 5. Start server in a goroutine
	go func() {
		logger.Info().Msgf("🚀 Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Msgf("Listen: %s\n", err)
		}
	}()

	// 6. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("Shutdown signal received, exiting...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal().Msgf("Server forced to shutdown: %v", err)
	}
	logger.Info().Msg("Server shut down gracefully")
}
