package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/etfmomentum/internal/common"
	"github.com/bobmcallan/etfmomentum/internal/metrics"
	"github.com/bobmcallan/etfmomentum/internal/models"
)

func newTestOrchestrator(store *mockStorage, client *mockClient, now func() time.Time) *Orchestrator {
	sel := NewSelector(store.InstrumentRegistry(), 24*time.Hour, 5)
	return NewOrchestrator(sel, client, store, common.NewSilentLogger(),
		WithClock(now),
		WithMetrics(metrics.NewRegistry()),
	)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func outcomeFor(t *testing.T, report *models.RefreshReport, symbol string) models.InstrumentOutcome {
	t.Helper()
	for _, o := range report.Outcomes {
		if o.Symbol == symbol {
			return o
		}
	}
	t.Fatalf("no outcome for %s", symbol)
	return models.InstrumentOutcome{}
}

func TestSelector_Due(t *testing.T) {
	store := newMockStorage()
	store.add("VOO", "US Large Cap", time.Time{})
	store.add("VGT", "Information Technology", testNow.Add(-48*time.Hour))
	store.add("VHT", "Health Care", testNow.Add(-30*time.Hour))
	store.add("VFH", "Financials", testNow.Add(-time.Hour))

	sel := NewSelector(store.InstrumentRegistry(), 24*time.Hour, 5)
	due, err := sel.Due(context.Background(), testNow)
	require.NoError(t, err)

	var symbols []string
	for _, inst := range due {
		symbols = append(symbols, inst.Symbol)
	}
	assert.Equal(t, []string{"VOO", "VGT", "VHT"}, symbols)
}

func TestSelector_BatchLimit(t *testing.T) {
	store := newMockStorage()
	for i, sym := range []string{"A", "B", "C", "D", "E", "F", "G"} {
		store.add(sym, "S", testNow.Add(-time.Duration(100-i)*time.Hour))
	}

	sel := NewSelector(store.InstrumentRegistry(), 24*time.Hour, 5)
	due, err := sel.Due(context.Background(), testNow)
	require.NoError(t, err)
	require.Len(t, due, 5)
	assert.Equal(t, "A", due[0].Symbol)
	assert.Equal(t, "E", due[4].Symbol)
}

func TestSelector_Defaults(t *testing.T) {
	sel := NewSelector(newMockStorage().InstrumentRegistry(), 0, 0)
	assert.Equal(t, common.DefaultBatchSize, sel.BatchSize())
	assert.Equal(t, common.DefaultStaleness, sel.staleness)
}

func TestRun_NoneDue_ZeroWrites(t *testing.T) {
	store := newMockStorage()
	store.add("VOO", "US Large Cap", testNow.Add(-time.Hour))
	client := newMockClient()
	client.series["VOO"] = rising()

	report, err := newTestOrchestrator(store, client, fixedClock(testNow)).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, report.NoneDue)
	assert.Empty(t, report.Outcomes)
	assert.Empty(t, client.called())
	assert.Equal(t, 0, store.writes())
}

func TestRun_Success(t *testing.T) {
	store := newMockStorage()
	voo := store.add("VOO", "US Large Cap", time.Time{})
	client := newMockClient()
	client.series["VOO"] = append(rising(), monthly(1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15)[13:]...)

	report, err := newTestOrchestrator(store, client, fixedClock(testNow)).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1)

	out := report.Outcomes[0]
	assert.Equal(t, models.StatePersisted, out.State)
	assert.Empty(t, out.Kind)
	assert.Equal(t, 13, out.PricesWritten)
	require.NotNil(t, out.Snapshot)
	assert.InDelta(t, 9.09, out.Snapshot.LastMonth, 0.01)
	assert.InDelta(t, 71.43, out.Snapshot.OneYear, 0.01)
	assert.Equal(t, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), out.Snapshot.Date)

	assert.Len(t, store.prices, 13)
	assert.Len(t, store.snapshots, 1)
	assert.Equal(t, testNow, store.instruments[voo.ID].LastRefreshed)
	assert.NotEmpty(t, report.RunID)
}

func TestRun_PartialFailure(t *testing.T) {
	store := newMockStorage()
	store.add("VOO", "US Large Cap", time.Time{})
	vgt := store.add("VGT", "Information Technology", time.Time{})
	client := newMockClient()
	client.series["VOO"] = rising()
	client.errs["VGT"] = &common.ProviderError{Provider: "mock", Symbol: "VGT", StatusCode: 503, Message: "unavailable"}

	report, err := newTestOrchestrator(store, client, fixedClock(testNow)).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, 1, report.Succeeded())
	assert.Equal(t, 1, report.Failed())

	assert.Equal(t, models.StatePersisted, outcomeFor(t, report, "VOO").State)

	failed := outcomeFor(t, report, "VGT")
	assert.Equal(t, models.StateFetchFailed, failed.State)
	assert.Equal(t, common.KindProvider, failed.Kind)
	assert.Contains(t, failed.Error, "unavailable")
	assert.True(t, store.instruments[vgt.ID].LastRefreshed.IsZero(), "failed instrument must stay due")
}

func TestRun_InsufficientHistory_NoSnapshot(t *testing.T) {
	store := newMockStorage()
	inst := store.add("VNQ", "Real Estate", time.Time{})
	client := newMockClient()
	client.series["VNQ"] = rising()[:12]

	report, err := newTestOrchestrator(store, client, fixedClock(testNow)).Run(context.Background())
	require.NoError(t, err)

	out := outcomeFor(t, report, "VNQ")
	assert.Equal(t, models.StateInsufficientHistory, out.State)
	assert.Equal(t, common.KindInsufficientHistory, out.Kind)
	assert.Equal(t, 12, out.PricesWritten)
	assert.Nil(t, out.Snapshot)
	assert.Equal(t, 0, store.snapshotWrites)
	assert.Equal(t, 0, store.touches)
	assert.True(t, store.instruments[inst.ID].LastRefreshed.IsZero())
}

func TestRun_BadPrice_ComputeFailed(t *testing.T) {
	store := newMockStorage()
	store.add("VDE", "Energy", time.Time{})
	client := newMockClient()
	series := rising()
	series[3].Price = 0
	client.series["VDE"] = series

	report, err := newTestOrchestrator(store, client, fixedClock(testNow)).Run(context.Background())
	require.NoError(t, err)

	out := outcomeFor(t, report, "VDE")
	assert.Equal(t, models.StateComputeFailed, out.State)
	assert.Equal(t, common.KindDataFormat, out.Kind)
	assert.Equal(t, 0, store.snapshotWrites)
}

func TestRun_PriceWriteFailure(t *testing.T) {
	store := newMockStorage()
	store.add("VPU", "Utilities", time.Time{})
	store.priceErr = errors.New("connection reset")
	client := newMockClient()
	client.series["VPU"] = rising()

	report, err := newTestOrchestrator(store, client, fixedClock(testNow)).Run(context.Background())
	require.NoError(t, err)

	out := outcomeFor(t, report, "VPU")
	assert.Equal(t, models.StatePersistFailed, out.State)
	assert.Equal(t, common.KindPersistence, out.Kind)
	assert.Equal(t, 0, out.PricesWritten)
	assert.Equal(t, 0, store.snapshotWrites)
	assert.Equal(t, 0, store.touches)
}

func TestRun_SnapshotWriteFailure(t *testing.T) {
	store := newMockStorage()
	store.add("VIS", "Industrials", time.Time{})
	store.snapshotErr = errors.New("disk full")
	client := newMockClient()
	client.series["VIS"] = rising()

	report, err := newTestOrchestrator(store, client, fixedClock(testNow)).Run(context.Background())
	require.NoError(t, err)

	out := outcomeFor(t, report, "VIS")
	assert.Equal(t, models.StatePersistFailed, out.State)
	assert.Equal(t, common.KindPersistence, out.Kind)
	assert.Contains(t, out.Error, "return_snapshots")
	assert.Equal(t, 13, out.PricesWritten)
	assert.Equal(t, 0, store.touches)
}

func TestRun_Idempotent(t *testing.T) {
	store := newMockStorage()
	voo := store.add("VOO", "US Large Cap", time.Time{})
	client := newMockClient()
	client.series["VOO"] = rising()

	_, err := newTestOrchestrator(store, client, fixedClock(testNow)).Run(context.Background())
	require.NoError(t, err)
	firstPrices := len(store.prices)
	firstSnap := *store.snapshots[priceKey{voo.ID, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)}]

	later := testNow.Add(25 * time.Hour)
	report, err := newTestOrchestrator(store, client, fixedClock(later)).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, models.StatePersisted, report.Outcomes[0].State)

	assert.Equal(t, firstPrices, len(store.prices))
	assert.Len(t, store.snapshots, 1)
	assert.Equal(t, firstSnap, *store.snapshots[priceKey{voo.ID, firstSnap.Date}])
	assert.Equal(t, later, store.instruments[voo.ID].LastRefreshed)
}

func TestRun_SelectionFailure(t *testing.T) {
	store := newMockStorage()
	store.listErr = errors.New("connection refused")

	_, err := newTestOrchestrator(store, newMockClient(), fixedClock(testNow)).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestRun_Canceled(t *testing.T) {
	store := newMockStorage()
	store.add("VOX", "Communication Services", time.Time{})
	client := newMockClient()
	client.series["VOX"] = rising()
	client.block = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := newTestOrchestrator(store, client, fixedClock(testNow)).Run(ctx)
	require.NoError(t, err)

	out := outcomeFor(t, report, "VOX")
	assert.Equal(t, models.StateFetchFailed, out.State)
	assert.Equal(t, common.KindCanceled, out.Kind)
	assert.Equal(t, 0, store.writes())
}

func TestRun_KeepsRunIDFromContext(t *testing.T) {
	store := newMockStorage()
	store.add("VOO", "US Large Cap", testNow)

	ctx := common.WithRunID(context.Background(), "run-123")
	report, err := newTestOrchestrator(store, newMockClient(), fixedClock(testNow)).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-123", report.RunID)
}

func TestRun_FetchesOverlap(t *testing.T) {
	symbols := []string{"VGT", "VHT", "VFH", "VCR", "VDE"}
	store := newMockStorage()
	client := newMockClient()
	for _, sym := range symbols {
		store.add(sym, "S", time.Time{})
		client.series[sym] = rising()
	}

	// Each fetch waits until every fetch of the batch is in flight
	var inFlight sync.WaitGroup
	inFlight.Add(len(symbols))
	allIn := make(chan struct{})
	go func() {
		inFlight.Wait()
		close(allIn)
	}()
	client.hook = func(ctx context.Context, symbol string) error {
		inFlight.Done()
		select {
		case <-allIn:
			return nil
		case <-time.After(2 * time.Second):
			return fmt.Errorf("%s fetched alone", symbol)
		}
	}

	report, err := newTestOrchestrator(store, client, fixedClock(testNow)).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Outcomes, len(symbols))
	for _, sym := range symbols {
		out := outcomeFor(t, report, sym)
		assert.Equal(t, models.StatePersisted, out.State, "%s: %s", sym, out.Error)
	}
}

func TestRun_HangingFetchDoesNotHoldBatch(t *testing.T) {
	store := newMockStorage()
	client := newMockClient()
	store.add("VNQ", "Real Estate", time.Time{})
	for _, sym := range []string{"VPU", "VOX", "VAW"} {
		store.add(sym, "S", testNow.Add(-48*time.Hour))
		client.series[sym] = rising()
	}
	client.series["VNQ"] = rising()

	// VNQ hangs until its per-call deadline; the others must finish meanwhile
	var othersDone atomic.Bool
	client.hook = func(ctx context.Context, symbol string) error {
		if symbol != "VNQ" {
			return nil
		}
		callCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		ticker := time.NewTicker(5 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-callCtx.Done():
				return fmt.Errorf("fetch %s: %w", symbol, callCtx.Err())
			case <-ticker.C:
				if store.touched() == 3 {
					othersDone.Store(true)
				}
			}
		}
	}

	report, err := newTestOrchestrator(store, client, fixedClock(testNow)).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, othersDone.Load(), "other instruments should persist while VNQ is in flight")
	for _, sym := range []string{"VPU", "VOX", "VAW"} {
		assert.Equal(t, models.StatePersisted, outcomeFor(t, report, sym).State)
	}
	hung := outcomeFor(t, report, "VNQ")
	assert.Equal(t, models.StateFetchFailed, hung.State)
	assert.Equal(t, common.KindCanceled, hung.Kind)
	assert.Contains(t, hung.Error, "deadline exceeded")
}

func TestRun_StoresOnlyNewestPoints(t *testing.T) {
	store := newMockStorage()
	store.add("VIS", "Industrials", time.Time{})
	client := newMockClient()
	client.series["VIS"] = monthly(120, 110, 108, 100, 98, 96, 90, 88, 86, 80, 78, 76, 70, 66, 64, 60)

	report, err := newTestOrchestrator(store, client, fixedClock(testNow)).Run(context.Background())
	require.NoError(t, err)

	out := outcomeFor(t, report, "VIS")
	assert.Equal(t, models.StatePersisted, out.State)
	assert.Equal(t, common.HistoryPoints, out.PricesWritten)
	assert.Len(t, store.prices, common.HistoryPoints)
	assert.InDelta(t, 71.43, out.Snapshot.OneYear, 0.01)
}
