package refresh

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bobmcallan/etfmomentum/internal/common"
	"github.com/bobmcallan/etfmomentum/internal/interfaces"
	"github.com/bobmcallan/etfmomentum/internal/models"
	"github.com/bobmcallan/etfmomentum/internal/signals"
)

// RiskDeriver turns the benchmark's latest one-year return into the daily risk status
type RiskDeriver struct {
	storage   interfaces.StorageManager
	benchmark string
	policy    signals.RiskPolicy
	logger    *common.Logger
}

// NewRiskDeriver creates a deriver for the benchmark symbol
func NewRiskDeriver(storage interfaces.StorageManager, benchmark string, policy signals.RiskPolicy, logger *common.Logger) *RiskDeriver {
	return &RiskDeriver{
		storage:   storage,
		benchmark: strings.ToUpper(strings.TrimSpace(benchmark)),
		policy:    policy,
		logger:    logger,
	}
}

// Derive upserts the risk status for today. When the benchmark is not
// registered or has no snapshot yet it does nothing and reports updated=false.
func (d *RiskDeriver) Derive(ctx context.Context, today time.Time) (*models.RiskStatus, bool, error) {
	inst, err := d.storage.InstrumentRegistry().GetBySymbol(ctx, d.benchmark)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load benchmark %s: %w", d.benchmark, err)
	}
	if inst == nil {
		d.logger.Warn().Str("benchmark", d.benchmark).Msg("Benchmark not registered, risk status unchanged")
		return nil, false, nil
	}

	snap, err := d.storage.ReturnStore().LatestSnapshot(ctx, inst.ID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load benchmark snapshot: %w", err)
	}
	if snap == nil {
		d.logger.Info().Str("benchmark", d.benchmark).Msg("No benchmark snapshot yet, risk status unchanged")
		return nil, false, nil
	}

	status := signals.DeriveRiskStatus(snap.OneYear, today, d.policy)
	if err := d.storage.RiskStatusStore().UpsertRiskStatus(ctx, status); err != nil {
		return nil, false, &common.PersistenceError{Op: "risk_status", Err: err}
	}

	d.logger.Info().
		Str("benchmark", d.benchmark).
		Float64("one_year", snap.OneYear).
		Str("status", string(status.Status)).
		Msg("Risk status updated")
	return status, true, nil
}
