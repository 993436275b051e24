package exports

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/mmalakhov777/tauhid2-sub002/internal/config"
	"github.com/mmalakhov777/tauhid2-sub002/internal/service"
)

// Run starts the balance snapshot export worker. Each tick writes the full
// set of balances to object storage as a JSON-lines object.
func Run(ctx context.Context, logger zerolog.Logger, cfg *config.Config, exporter service.ExportService) error {
	interval := time.Duration(cfg.ExportIntervalHours) * time.Hour
	logger.Info().Str("interval", interval.String()).Str("bucket", cfg.S3Bucket).Msg("Starting export worker")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		key, err := exporter.ExportBalances(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Balance export failed")
		} else {
			logger.Info().Str("key", key).Msg("Balance export succeeded")
		}

		select {
		case <-ctx.Done():
			logger.Info().Msg("Shutting down export worker")
			return nil
		case <-ticker.C:
		}
	}
}
