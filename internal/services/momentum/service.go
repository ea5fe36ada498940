// Package momentum serves rankings, the strategy pick and the risk status
// computed from stored return snapshots.
package momentum

import (
	"context"
	"fmt"

	"github.com/bobmcallan/etfmomentum/internal/common"
	"github.com/bobmcallan/etfmomentum/internal/interfaces"
	"github.com/bobmcallan/etfmomentum/internal/models"
	"github.com/bobmcallan/etfmomentum/internal/signals"
)

// Compile-time interface check
var _ interfaces.MomentumService = (*Service)(nil)

// DefaultTopCount is the number of instruments returned by TopPerforming when count is not positive.
const DefaultTopCount = 4

// Service implements MomentumService
type Service struct {
	storage interfaces.StorageManager
	logger  *common.Logger
}

// NewService creates a new momentum service
func NewService(storage interfaces.StorageManager, logger *common.Logger) *Service {
	return &Service{
		storage: storage,
		logger:  logger,
	}
}

// Performance returns every registered instrument joined to its latest
// snapshot, in symbol order. Instruments without a snapshot are omitted.
func (s *Service) Performance(ctx context.Context) ([]models.InstrumentPerformance, error) {
	instruments, err := s.storage.InstrumentRegistry().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list instruments: %w", err)
	}
	snapshots, err := s.storage.ReturnStore().LatestSnapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshots: %w", err)
	}

	perfs := make([]models.InstrumentPerformance, 0, len(instruments))
	for _, inst := range instruments {
		snap, ok := snapshots[inst.ID]
		if !ok {
			continue
		}
		perfs = append(perfs, signals.Performance(inst, snap))
	}
	return perfs, nil
}

// TopPerforming ranks non-strategy instruments by momentum score.
func (s *Service) TopPerforming(ctx context.Context, count int) ([]models.InstrumentPerformance, error) {
	if count <= 0 {
		count = DefaultTopCount
	}
	perfs, err := s.Performance(ctx)
	if err != nil {
		return nil, err
	}
	return signals.TopPerforming(perfs, count, signals.StrategySymbols), nil
}

// TopSectors ranks sectors by the average score of their non-strategy members.
func (s *Service) TopSectors(ctx context.Context) ([]models.SectorPerformance, error) {
	perfs, err := s.Performance(ctx)
	if err != nil {
		return nil, err
	}
	return signals.TopSectors(perfs, signals.StrategySymbols), nil
}

// Strategy returns the accelerating dual momentum allocation.
func (s *Service) Strategy(ctx context.Context) (*models.StrategyAllocation, error) {
	perfs, err := s.Performance(ctx)
	if err != nil {
		return nil, err
	}
	return signals.StrategyAllocation(perfs)
}

// RiskStatus returns the most recent risk status, or the initializing
// placeholder when none has been derived yet.
func (s *Service) RiskStatus(ctx context.Context) (*models.RiskStatus, error) {
	status, err := s.storage.RiskStatusStore().LatestRiskStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load risk status: %w", err)
	}
	if status == nil {
		return models.DefaultRiskStatus(), nil
	}
	return status, nil
}
