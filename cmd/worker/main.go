package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awsmiddleware "github.com/aws/smithy-go/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/mmalakhov777/tauhid2-sub002/internal/config"
	"github.com/mmalakhov777/tauhid2-sub002/internal/logger"
	"github.com/mmalakhov777/tauhid2-sub002/internal/pgmq"
	ledgerpubsub "github.com/mmalakhov777/tauhid2-sub002/internal/pubsub"
	"github.com/mmalakhov777/tauhid2-sub002/internal/repository"
	"github.com/mmalakhov777/tauhid2-sub002/internal/service"
	"github.com/mmalakhov777/tauhid2-sub002/internal/worker/exports"
	"github.com/mmalakhov777/tauhid2-sub002/internal/worker/payments"
	"github.com/mmalakhov777/tauhid2-sub002/internal/worker/resets"
)

func main() {
	// Parse mode flag
	mode := flag.String("mode", "", "Worker mode: payments|resets|exports")
	flag.Parse()

	// Initialize logger
	logger := logger.New()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("Warning: no .env file found")
	}

	// Load config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Error loading config: %v", err)
	}

	// Initialize DB connection pool
	pool, err := pgxpool.New(context.Background(), cfg.DBConnectionString)
	if err != nil {
		logger.Fatal().Msgf("Failed to create DB pool: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(context.Background()); err != nil {
		logger.Fatal().Msgf("Failed to ping DB: %v", err)
	}
	logger.Info().Msg("Database connection established")

	// Shared ledger wiring
	clock := service.SystemClock{}
	balanceRepo := repository.NewBalanceRepo(pool)
	usageRepo := repository.NewUsageRepo(pool)
	resolver := service.NewEntitlementResolver(cfg)
	catalog := service.DefaultPackageCatalog()
	ledger := service.NewBalanceLedger(balanceRepo, usageRepo, resolver, catalog, clock, logger)

	// Set up context with graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Dispatch to the selected worker
	var runErr error
	switch *mode {
	case "payments":
		pgmqClient := pgmq.New(pool)
		logger.Info().Msg("PGMQ client initialized")

		var publisher ledgerpubsub.Publisher
		if cfg.GCPProjectID != "" {
			p, err := ledgerpubsub.NewPublisher(ctx, cfg.GCPProjectID)
			if err != nil {
				logger.Fatal().Msgf("Failed to create Pub/Sub publisher: %v", err)
			}
			defer p.Close()
			publisher = p
		}

		reconciler := service.NewPaymentReconciler(ledger, catalog, publisher, cfg.LedgerEventsTopic, logger)
		dlqRepo := repository.NewDLQRepository(pool)
		runErr = payments.Run(ctx, logger, cfg, pgmqClient, reconciler, dlqRepo)
	case "resets":
		runErr = resets.Run(ctx, logger, cfg, ledger)
	case "exports":
		s3Config, err := awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.S3Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")),
			awsconfig.WithAPIOptions([]func(*awsmiddleware.Stack) error{removeDisableGzip()}),
		)
		if err != nil {
			logger.Fatal().Msgf("Failed to load S3 config: %v", err)
		}
		s3Client := s3.NewFromConfig(s3Config, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.S3URL)
			o.UsePathStyle = true
		})

		exporter := service.NewExportService(balanceRepo, s3Client, cfg.S3Bucket, clock, logger)
		runErr = exports.Run(ctx, logger, cfg, exporter)
	default:
		logger.Fatal().Msgf("Invalid mode: %s", *mode)
	}

	if runErr != nil {
		logger.Fatal().Msgf("%s worker failed: %v", *mode, runErr)
	}

	logger.Info().Msgf("%s worker stopped gracefully", *mode)
}

// removeDisableGzip is a workaround for S3 signature errors with some S3-compatible services.
// See: https://github.com/supabase/storage/issues/577
func removeDisableGzip() func(*awsmiddleware.Stack) error {
	return func(stack *awsmiddleware.Stack) error {
		if _, ok := stack.Finalize.Get("DisableAcceptEncodingGzip"); ok {
			_, err := stack.Finalize.Remove("DisableAcceptEncodingGzip")
			return err
		}
		return nil
	}
}
