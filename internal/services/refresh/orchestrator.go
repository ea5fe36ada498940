package refresh

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bobmcallan/etfmomentum/internal/common"
	"github.com/bobmcallan/etfmomentum/internal/interfaces"
	"github.com/bobmcallan/etfmomentum/internal/metrics"
	"github.com/bobmcallan/etfmomentum/internal/models"
	"github.com/bobmcallan/etfmomentum/internal/signals"
)

// Orchestrator refreshes one batch of due instruments. Instruments are
// processed concurrently and independently; a failure in one never stops
// the others.
type Orchestrator struct {
	selector *Selector
	client   interfaces.MarketDataClient
	storage  interfaces.StorageManager
	metrics  *metrics.Registry
	logger   *common.Logger
	now      func() time.Time
}

// OrchestratorOption configures an Orchestrator
type OrchestratorOption func(*Orchestrator)

// WithMetrics records pipeline metrics to reg.
func WithMetrics(reg *metrics.Registry) OrchestratorOption {
	return func(o *Orchestrator) {
		o.metrics = reg
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// NewOrchestrator creates an orchestrator
func NewOrchestrator(selector *Selector, client interfaces.MarketDataClient, storage interfaces.StorageManager, logger *common.Logger, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		selector: selector,
		client:   client,
		storage:  storage,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run selects the due batch and refreshes it. It returns an error only when
// selection fails; per-instrument failures are recorded on the report.
func (o *Orchestrator) Run(ctx context.Context) (*models.RefreshReport, error) {
	report := &models.RefreshReport{
		RunID:     common.RunID(ctx),
		StartedAt: o.now(),
	}
	if report.RunID == "" {
		report.RunID = uuid.New().String()
		ctx = common.WithRunID(ctx, report.RunID)
	}

	due, err := o.selector.Due(ctx, report.StartedAt)
	if err != nil {
		return nil, err
	}

	if len(due) == 0 {
		report.NoneDue = true
		report.FinishedAt = o.now()
		o.logger.Info().Str("run_id", report.RunID).Msg("No instruments need refreshing")
		return report, nil
	}

	o.logger.Info().Str("run_id", report.RunID).Int("count", len(due)).Msg("Refreshing instruments")

	report.Outcomes = make([]models.InstrumentOutcome, len(due))
	g := new(errgroup.Group)
	g.SetLimit(o.selector.BatchSize())
	for i, inst := range due {
		g.Go(func() error {
			report.Outcomes[i] = o.refreshOne(ctx, inst)
			return nil
		})
	}
	_ = g.Wait()

	report.FinishedAt = o.now()
	o.logger.Info().
		Str("run_id", report.RunID).
		Int("succeeded", report.Succeeded()).
		Int("failed", report.Failed()).
		Dur("elapsed", report.FinishedAt.Sub(report.StartedAt)).
		Msg("Refresh batch complete")

	return report, nil
}

// refreshOne walks a single instrument through fetch, persist and compute.
// Each step runs only if the previous one succeeded.
func (o *Orchestrator) refreshOne(ctx context.Context, inst *models.Instrument) models.InstrumentOutcome {
	out := models.InstrumentOutcome{
		Symbol:       inst.Symbol,
		InstrumentID: inst.ID,
		State:        models.StateDue,
	}
	log := o.logger.With().Str("run_id", common.RunID(ctx)).Str("symbol", inst.Symbol).Logger()

	fail := func(state models.RefreshState, err error) models.InstrumentOutcome {
		out.State = state
		out.Kind = common.ErrorKind(err)
		out.Error = err.Error()
		o.metrics.ObserveOutcome(string(state), out.Kind)
		log.Warn().Err(err).Str("state", string(state)).Str("kind", out.Kind).Msg("Instrument refresh failed")
		return out
	}

	out.State = models.StateFetching
	start := time.Now()
	series, err := o.client.FetchMonthly(ctx, inst.Symbol)
	o.metrics.ObserveFetch(o.client.Name(), start, err)
	if err != nil {
		return fail(models.StateFetchFailed, err)
	}
	out.State = models.StateFetched

	// Only the newest points are stored; older history is dropped.
	if len(series) > common.HistoryPoints {
		series = series[:common.HistoryPoints]
	}
	for i := range series {
		series[i].InstrumentID = inst.ID
	}

	written, err := o.persistPrices(ctx, series)
	out.PricesWritten = written
	o.metrics.AddPrices(written)
	if err != nil {
		return fail(models.StatePersistFailed, err)
	}

	out.State = models.StateComputing
	snap, err := signals.ComputeReturns(inst.ID, series)
	if err != nil {
		if errors.Is(err, common.ErrInsufficientHistory) {
			return fail(models.StateInsufficientHistory, err)
		}
		return fail(models.StateComputeFailed, err)
	}
	out.State = models.StateComputed

	out.State = models.StatePersisting
	if err := o.storage.ReturnStore().UpsertSnapshot(ctx, snap); err != nil {
		return fail(models.StatePersistFailed, &common.PersistenceError{Op: "return_snapshots", Err: err})
	}
	if err := o.storage.InstrumentRegistry().Touch(ctx, inst.ID, o.now()); err != nil {
		return fail(models.StatePersistFailed, &common.PersistenceError{Op: "instruments", Err: err})
	}

	out.State = models.StatePersisted
	out.Snapshot = snap
	o.metrics.ObserveOutcome(string(out.State), "")
	log.Info().
		Int("prices", written).
		Float64("one_year", snap.OneYear).
		Msg("Instrument refreshed")
	return out
}

// persistPrices upserts every point concurrently and waits for all of them.
// It returns the number of points written.
func (o *Orchestrator) persistPrices(ctx context.Context, series []models.PricePoint) (int, error) {
	var written atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	store := o.storage.PriceStore()
	for _, p := range series {
		g.Go(func() error {
			if err := store.UpsertPrice(gctx, p); err != nil {
				return &common.PersistenceError{Op: "price_history", Err: err}
			}
			written.Add(1)
			return nil
		})
	}
	err := g.Wait()
	return int(written.Load()), err
}
