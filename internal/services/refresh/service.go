package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bobmcallan/etfmomentum/internal/common"
	"github.com/bobmcallan/etfmomentum/internal/interfaces"
	"github.com/bobmcallan/etfmomentum/internal/metrics"
	"github.com/bobmcallan/etfmomentum/internal/models"
)

// Compile-time interface check
var _ interfaces.RefreshService = (*Service)(nil)

// Service runs the orchestrator and then the risk deriver. Only one run may
// be active at a time within the process.
type Service struct {
	orchestrator *Orchestrator
	deriver      *RiskDeriver
	metrics      *metrics.Registry
	logger       *common.Logger
	now          func() time.Time

	mu sync.Mutex
}

// NewService creates a refresh service
func NewService(orchestrator *Orchestrator, deriver *RiskDeriver, reg *metrics.Registry, logger *common.Logger) *Service {
	return &Service{
		orchestrator: orchestrator,
		deriver:      deriver,
		metrics:      reg,
		logger:       logger,
		now:          orchestrator.now,
	}
}

// Refresh performs one run. An overlapping call returns common.ErrRefreshInProgress.
func (s *Service) Refresh(ctx context.Context) (*models.RefreshSummary, error) {
	if !s.mu.TryLock() {
		s.metrics.ObserveRun("rejected", time.Now())
		return nil, common.ErrRefreshInProgress
	}
	defer s.mu.Unlock()

	start := time.Now()
	runID := uuid.New().String()
	ctx = common.WithRunID(ctx, runID)

	report, err := s.orchestrator.Run(ctx)
	if err != nil {
		s.metrics.ObserveRun("failed", start)
		s.logger.Error().Err(err).Str("run_id", runID).Msg("Refresh run failed")
		return nil, err
	}

	summary := &models.RefreshSummary{
		RunID:    report.RunID,
		RanAt:    report.StartedAt,
		NoneDue:  report.NoneDue,
		Outcomes: report.Outcomes,
	}

	if report.NoneDue {
		s.metrics.ObserveRun("none_due", start)
		return summary, nil
	}

	status, updated, err := s.deriver.Derive(ctx, s.now())
	if err != nil {
		s.logger.Error().Err(err).Str("run_id", runID).Msg("Risk status derivation failed")
	} else if updated {
		summary.RiskStatusUpdated = true
		summary.RiskStatus = status
		s.metrics.SetRiskOn(status.Status == models.RiskOn)
	}

	s.metrics.ObserveRun("completed", start)
	return summary, nil
}
