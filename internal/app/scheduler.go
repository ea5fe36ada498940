package app

import (
	"context"
	"errors"
	"time"

	"github.com/bobmcallan/etfmomentum/internal/common"
	"github.com/bobmcallan/etfmomentum/internal/interfaces"
)

// startRefreshScheduler triggers a refresh on a fixed interval.
// Runs that overlap an HTTP-triggered refresh are skipped.
func startRefreshScheduler(ctx context.Context, service interfaces.RefreshService, logger *common.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info().Dur("interval", interval).Msg("Refresh scheduler: started")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Refresh scheduler: stopped")
			return
		case <-ticker.C:
			runScheduledRefresh(ctx, service, logger)
		}
	}
}

func runScheduledRefresh(ctx context.Context, service interfaces.RefreshService, logger *common.Logger) {
	start := time.Now()

	summary, err := service.Refresh(ctx)
	if errors.Is(err, common.ErrRefreshInProgress) {
		logger.Info().Msg("Refresh scheduler: run already in progress, skipping tick")
		return
	}
	if err != nil {
		logger.Warn().Err(err).Msg("Refresh scheduler: run failed")
		return
	}

	logger.Info().
		Str("run_id", summary.RunID).
		Bool("none_due", summary.NoneDue).
		Int("instruments", len(summary.Outcomes)).
		Dur("elapsed", time.Since(start)).
		Msg("Refresh scheduler: complete")
}
