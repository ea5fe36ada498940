package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/bobmcallan/etfmomentum/internal/common"
	"github.com/bobmcallan/etfmomentum/internal/interfaces"
	"github.com/bobmcallan/etfmomentum/internal/models"
)

// instrumentSelectFields aliases instrument_id to id for struct mapping.
const instrumentSelectFields = "instrument_id AS id, symbol, name, sector, last_refreshed"

// InstrumentStore implements interfaces.InstrumentRegistry using SurrealDB.
type InstrumentStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewInstrumentStore creates a new InstrumentStore.
func NewInstrumentStore(db *surrealdb.DB, logger *common.Logger) *InstrumentStore {
	return &InstrumentStore{db: db, logger: logger}
}

func (s *InstrumentStore) query(ctx context.Context, sql string, vars map[string]any) ([]*models.Instrument, error) {
	results, err := surrealdb.Query[[]models.Instrument](ctx, s.db, sql, vars)
	if err != nil {
		return nil, err
	}
	var out []*models.Instrument
	if results != nil && len(*results) > 0 {
		for i := range (*results)[0].Result {
			out = append(out, &(*results)[0].Result[i])
		}
	}
	return out, nil
}

func (s *InstrumentStore) ListDue(ctx context.Context, cutoff time.Time, limit int) ([]*models.Instrument, error) {
	sql := "SELECT " + instrumentSelectFields + " FROM instruments WHERE last_refreshed < $cutoff ORDER BY last_refreshed ASC, symbol ASC LIMIT $limit"
	vars := map[string]any{
		"cutoff": cutoff,
		"limit":  limit,
	}
	due, err := s.query(ctx, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list due instruments: %w", err)
	}
	return due, nil
}

func (s *InstrumentStore) List(ctx context.Context) ([]*models.Instrument, error) {
	sql := "SELECT " + instrumentSelectFields + " FROM instruments ORDER BY symbol ASC"
	all, err := s.query(ctx, sql, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list instruments: %w", err)
	}
	return all, nil
}

func (s *InstrumentStore) GetBySymbol(ctx context.Context, symbol string) (*models.Instrument, error) {
	sql := "SELECT " + instrumentSelectFields + " FROM instruments WHERE symbol = $symbol LIMIT 1"
	found, err := s.query(ctx, sql, map[string]any{"symbol": symbol})
	if err != nil {
		return nil, fmt.Errorf("failed to get instrument %s: %w", symbol, err)
	}
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}

func (s *InstrumentStore) Register(ctx context.Context, inst *models.Instrument) error {
	if inst.ID == "" {
		inst.ID = models.InstrumentIDFor(inst.Symbol)
	}

	existing, err := s.GetBySymbol(ctx, inst.Symbol)
	if err != nil {
		return err
	}

	// Existing entry: refresh metadata only, LastRefreshed is owned by the pipeline
	if existing != nil {
		sql := "UPDATE $rid SET name = $name, sector = $sector"
		vars := map[string]any{
			"rid":    surrealmodels.NewRecordID(tableInstruments, existing.ID),
			"name":   inst.Name,
			"sector": inst.Sector,
		}
		if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
			return fmt.Errorf("failed to update instrument %s: %w", inst.Symbol, err)
		}
		inst.ID = existing.ID
		inst.LastRefreshed = existing.LastRefreshed
		return nil
	}

	sql := `UPSERT $rid SET
		instrument_id = $id, symbol = $symbol, name = $name, sector = $sector,
		last_refreshed = $last_refreshed`
	vars := map[string]any{
		"rid":            surrealmodels.NewRecordID(tableInstruments, inst.ID),
		"id":             inst.ID,
		"symbol":         inst.Symbol,
		"name":           inst.Name,
		"sector":         inst.Sector,
		"last_refreshed": inst.LastRefreshed,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to register instrument %s: %w", inst.Symbol, err)
	}
	return nil
}

func (s *InstrumentStore) Touch(ctx context.Context, instrumentID string, at time.Time) error {
	// UPDATE on a record id never creates it; an empty result means not registered
	sql := "UPDATE $rid SET last_refreshed = $ts RETURN VALUE instrument_id"
	vars := map[string]any{
		"rid": surrealmodels.NewRecordID(tableInstruments, instrumentID),
		"ts":  at,
	}
	results, err := surrealdb.Query[[]string](ctx, s.db, sql, vars)
	if err != nil {
		return fmt.Errorf("failed to touch instrument %s: %w", instrumentID, err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return fmt.Errorf("failed to touch instrument %s: not registered", instrumentID)
	}
	return nil
}

var _ interfaces.InstrumentRegistry = (*InstrumentStore)(nil)
