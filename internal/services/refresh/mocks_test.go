package refresh

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/bobmcallan/etfmomentum/internal/common"
	"github.com/bobmcallan/etfmomentum/internal/interfaces"
	"github.com/bobmcallan/etfmomentum/internal/models"
)

// --- Mock market data client ---

type mockClient struct {
	mu     sync.Mutex
	series map[string][]models.PricePoint
	errs   map[string]error
	calls  []string
	block  chan struct{} // when set, FetchMonthly waits on it
	hook   func(ctx context.Context, symbol string) error
}

func newMockClient() *mockClient {
	return &mockClient{
		series: make(map[string][]models.PricePoint),
		errs:   make(map[string]error),
	}
}

func (m *mockClient) Name() string { return "mock" }

func (m *mockClient) FetchMonthly(ctx context.Context, symbol string) ([]models.PricePoint, error) {
	m.mu.Lock()
	m.calls = append(m.calls, symbol)
	block := m.block
	hook := m.hook
	m.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, symbol); err != nil {
			return nil, err
		}
	}

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.errs[symbol]; ok {
		return nil, err
	}
	src, ok := m.series[symbol]
	if !ok {
		return nil, &common.ProviderError{Provider: "mock", Symbol: symbol, Message: "unknown symbol"}
	}
	out := make([]models.PricePoint, len(src))
	copy(out, src)
	return out, nil
}

func (m *mockClient) called() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// --- Mock storage ---

type priceKey struct {
	id   string
	date time.Time
}

type mockStorage struct {
	mu sync.Mutex

	instruments map[string]*models.Instrument // by id
	prices      map[priceKey]float64
	snapshots   map[priceKey]*models.ReturnSnapshot
	risk        map[time.Time]*models.RiskStatus

	priceWrites    int
	snapshotWrites int
	touches        int
	riskWrites     int

	listErr     error
	priceErr    error
	snapshotErr error
	riskErr     error
}

func newMockStorage() *mockStorage {
	return &mockStorage{
		instruments: make(map[string]*models.Instrument),
		prices:      make(map[priceKey]float64),
		snapshots:   make(map[priceKey]*models.ReturnSnapshot),
		risk:        make(map[time.Time]*models.RiskStatus),
	}
}

func (m *mockStorage) add(symbol, sector string, lastRefreshed time.Time) *models.Instrument {
	inst := &models.Instrument{
		ID:            models.InstrumentIDFor(symbol),
		Symbol:        symbol,
		Name:          symbol + " ETF",
		Sector:        sector,
		LastRefreshed: lastRefreshed,
	}
	m.instruments[inst.ID] = inst
	return inst
}

func (m *mockStorage) touched() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.touches
}

func (m *mockStorage) writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.priceWrites + m.snapshotWrites + m.touches + m.riskWrites
}

func (m *mockStorage) InstrumentRegistry() interfaces.InstrumentRegistry { return (*mockRegistry)(m) }
func (m *mockStorage) PriceStore() interfaces.PriceStore                 { return (*mockPrices)(m) }
func (m *mockStorage) ReturnStore() interfaces.ReturnStore               { return (*mockReturns)(m) }
func (m *mockStorage) RiskStatusStore() interfaces.RiskStatusStore       { return (*mockRisk)(m) }
func (m *mockStorage) Backend() string                                   { return "mock" }
func (m *mockStorage) Close() error                                      { return nil }

type mockRegistry mockStorage

func (r *mockRegistry) ListDue(_ context.Context, cutoff time.Time, limit int) ([]*models.Instrument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var due []*models.Instrument
	for _, inst := range r.instruments {
		if inst.LastRefreshed.Before(cutoff) {
			c := *inst
			due = append(due, &c)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].LastRefreshed.Equal(due[j].LastRefreshed) {
			return due[i].LastRefreshed.Before(due[j].LastRefreshed)
		}
		return due[i].Symbol < due[j].Symbol
	})
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r *mockRegistry) List(_ context.Context) ([]*models.Instrument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Instrument
	for _, inst := range r.instruments {
		c := *inst
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (r *mockRegistry) GetBySymbol(_ context.Context, symbol string) (*models.Instrument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inst := range r.instruments {
		if inst.Symbol == symbol {
			c := *inst
			return &c, nil
		}
	}
	return nil, nil
}

func (r *mockRegistry) Register(_ context.Context, inst *models.Instrument) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.instruments[inst.ID]; ok {
		existing.Name = inst.Name
		existing.Sector = inst.Sector
		return nil
	}
	c := *inst
	r.instruments[inst.ID] = &c
	return nil
}

func (r *mockRegistry) Touch(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.instruments[id]
	if !ok {
		return errors.New("instrument not found")
	}
	inst.LastRefreshed = at
	r.touches++
	return nil
}

type mockPrices mockStorage

func (p *mockPrices) UpsertPrice(_ context.Context, pt models.PricePoint) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.priceErr != nil {
		return p.priceErr
	}
	p.prices[priceKey{pt.InstrumentID, pt.Date}] = pt.Price
	p.priceWrites++
	return nil
}

func (p *mockPrices) ListPrices(_ context.Context, id string, limit int) ([]models.PricePoint, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []models.PricePoint
	for k, v := range p.prices {
		if k.id == id {
			out = append(out, models.PricePoint{InstrumentID: id, Date: k.date, Price: v})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type mockReturns mockStorage

func (r *mockReturns) UpsertSnapshot(_ context.Context, s *models.ReturnSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.snapshotErr != nil {
		return r.snapshotErr
	}
	c := *s
	r.snapshots[priceKey{s.InstrumentID, s.Date}] = &c
	r.snapshotWrites++
	return nil
}

func (r *mockReturns) LatestSnapshot(_ context.Context, id string) (*models.ReturnSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *models.ReturnSnapshot
	for k, s := range r.snapshots {
		if k.id == id && (latest == nil || s.Date.After(latest.Date)) {
			latest = s
		}
	}
	return latest, nil
}

func (r *mockReturns) LatestSnapshots(_ context.Context) (map[string]*models.ReturnSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]*models.ReturnSnapshot)
	for k, s := range r.snapshots {
		if cur, ok := out[k.id]; !ok || s.Date.After(cur.Date) {
			out[k.id] = s
		}
	}
	return out, nil
}

type mockRisk mockStorage

func (r *mockRisk) UpsertRiskStatus(_ context.Context, s *models.RiskStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.riskErr != nil {
		return r.riskErr
	}
	c := *s
	r.risk[s.Date] = &c
	r.riskWrites++
	return nil
}

func (r *mockRisk) LatestRiskStatus(_ context.Context) (*models.RiskStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *models.RiskStatus
	for _, s := range r.risk {
		if latest == nil || s.Date.After(latest.Date) {
			latest = s
		}
	}
	return latest, nil
}

// --- Fixtures ---

var testNow = time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)

// monthly builds a newest-first series of month-end closes ending December 2024.
func monthly(prices ...float64) []models.PricePoint {
	out := make([]models.PricePoint, len(prices))
	for i, p := range prices {
		out[i] = models.PricePoint{
			Date:  time.Date(2025, time.Month(1-i), 0, 0, 0, 0, 0, time.UTC),
			Price: p,
		}
	}
	return out
}

// rising is a 13-point series whose one-year return is positive.
func rising() []models.PricePoint {
	return monthly(120, 110, 108, 100, 98, 96, 90, 88, 86, 80, 78, 76, 70)
}

// falling is a 13-point series whose one-year return is -1.5%.
func falling() []models.PricePoint {
	return monthly(98.5, 99, 99, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100)
}
