package resets

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/mmalakhov777/tauhid2-sub002/internal/config"
	"github.com/mmalakhov777/tauhid2-sub002/internal/service"
)

// Run starts the trial reset maintenance worker. The lazy reset on the
// consume path already keeps active users correct; this pass only catches up
// balances nobody has touched since their window elapsed, so views stay fresh
// for idle users too. Running it is optional and running it twice is safe.
func Run(ctx context.Context, logger zerolog.Logger, cfg *config.Config, ledger service.BalanceLedger) error {
	interval := time.Duration(cfg.ResetScanIntervalMin) * time.Minute
	logger.Info().Str("interval", interval.String()).Msg("Starting reset worker")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		n, err := ledger.ApplyDueResets(ctx, cfg.ResetScanBatchSize)
		if err != nil {
			logger.Error().Err(err).Msg("Reset pass failed")
		} else if n > 0 {
			logger.Info().Int("reset_count", n).Msg("Reset pass applied trial refills")
		}

		select {
		case <-ctx.Done():
			logger.Info().Msg("Shutting down reset worker")
			return nil
		case <-ticker.C:
		}
	}
}
