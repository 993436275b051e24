package router

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/mmalakhov777/tauhid2-sub002/internal/api/v1/handler"
	"github.com/mmalakhov777/tauhid2-sub002/internal/config"
	"github.com/mmalakhov777/tauhid2-sub002/internal/middleware"
	"github.com/mmalakhov777/tauhid2-sub002/internal/pgmq"
	"github.com/mmalakhov777/tauhid2-sub002/internal/repository"
	"github.com/mmalakhov777/tauhid2-sub002/internal/service"
)

// New builds the HTTP handler and the database pool it runs on.
func New(cfg *config.Config, webhookSecret string, logger zerolog.Logger) (http.Handler, *pgxpool.Pool, error) {
	logger.Info().Str("environment", cfg.Environment).Msg("App environment loaded")

	// Open DB connection pool. In development, make sure SSL is disabled for
	// local testing; in production the connection string should carry the
	// correct SSL settings.
	dsn := cfg.DBConnectionString
	if cfg.Environment == "development" && !strings.Contains(dsn, "sslmode") {
		separator := " "
		if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
			if strings.Contains(dsn, "?") {
				separator = "&"
			} else {
				separator = "?"
			}
		}
		dsn += separator + "sslmode=disable"
	}

	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create DB pool")
		return nil, nil, err
	}
	if err := pool.Ping(context.Background()); err != nil {
		logger.Error().Err(err).Msg("Failed to ping DB")
		return nil, nil, err
	}
	logger.Info().Msg("Database connection successful")

	// Initialize validator
	validate := validator.New(validator.WithRequiredStructEnabled())

	// Initialize repositories & services & handlers
	clock := service.SystemClock{}
	balanceRepo := repository.NewBalanceRepo(pool)
	usageRepo := repository.NewUsageRepo(pool)

	resolver := service.NewEntitlementResolver(cfg)
	catalog := service.DefaultPackageCatalog()
	ledger := service.NewBalanceLedger(balanceRepo, usageRepo, resolver, catalog, clock, logger)
	usageSvc := service.NewUsageService(usageRepo, resolver, clock, logger)
	confirmationQueue := service.NewConfirmationQueue(pgmq.New(pool), cfg.PaymentQueueName)

	balanceHandler := handler.NewBalanceHandler(
		ledger,
		usageSvc,
		resolver,
		catalog,
		cfg.ConsumeMaxRetries,
		time.Duration(cfg.ConsumeBackoffInitialMs)*time.Millisecond,
		logger,
	)
	paymentHandler := handler.NewPaymentHandler(confirmationQueue, clock, webhookSecret, validate, logger)

	// Initialize middleware
	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret, logger)

	// Create ServeMux router with the API v1 routes under /v1
	apiV1Mux := http.NewServeMux()
	balanceHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	paymentHandler.RegisterRoutes(apiV1Mux)

	mux := http.NewServeMux()
	mux.Handle("/v1/", http.StripPrefix("/v1", apiV1Mux))

	// Apply CORS middleware
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	return middleware.LoggerMiddleware(logger, c.Handler(mux)), pool, nil
}
