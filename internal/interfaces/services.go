package interfaces

import (
	"context"

	"github.com/bobmcallan/etfmomentum/internal/models"
)

// RefreshService runs the data refresh pipeline
type RefreshService interface {
	// Refresh selects due instruments, refreshes them and derives the risk status.
	// Returns common.ErrRefreshInProgress if another run is active.
	Refresh(ctx context.Context) (*models.RefreshSummary, error)
}

// MomentumService serves the read side computed from stored snapshots
type MomentumService interface {
	Performance(ctx context.Context) ([]models.InstrumentPerformance, error)
	TopPerforming(ctx context.Context, count int) ([]models.InstrumentPerformance, error)
	TopSectors(ctx context.Context) ([]models.SectorPerformance, error)
	Strategy(ctx context.Context) (*models.StrategyAllocation, error)
	RiskStatus(ctx context.Context) (*models.RiskStatus, error)
}
