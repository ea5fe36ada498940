package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bobmcallan/etfmomentum/internal/common"
	"github.com/bobmcallan/etfmomentum/internal/interfaces"
	"github.com/bobmcallan/etfmomentum/internal/models"
)

const instrumentColumns = "id, symbol, name, sector, last_refreshed"

// InstrumentStore implements interfaces.InstrumentRegistry.
type InstrumentStore struct {
	pool   *pgxpool.Pool
	logger *common.Logger
}

// NewInstrumentStore creates a new InstrumentStore.
func NewInstrumentStore(pool *pgxpool.Pool, logger *common.Logger) *InstrumentStore {
	return &InstrumentStore{pool: pool, logger: logger}
}

func scanInstrument(row pgx.Row) (*models.Instrument, error) {
	var (
		inst          models.Instrument
		lastRefreshed *time.Time
	)
	if err := row.Scan(&inst.ID, &inst.Symbol, &inst.Name, &inst.Sector, &lastRefreshed); err != nil {
		return nil, err
	}
	if lastRefreshed != nil {
		inst.LastRefreshed = lastRefreshed.UTC()
	}
	return &inst, nil
}

func (s *InstrumentStore) list(ctx context.Context, sql string, args ...any) ([]*models.Instrument, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Instrument
	for rows.Next() {
		inst, err := scanInstrument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

func (s *InstrumentStore) ListDue(ctx context.Context, cutoff time.Time, limit int) ([]*models.Instrument, error) {
	due, err := s.list(ctx, `
		SELECT `+instrumentColumns+`
		FROM instruments
		WHERE last_refreshed IS NULL OR last_refreshed < $1
		ORDER BY last_refreshed ASC NULLS FIRST, symbol ASC
		LIMIT $2
	`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list due instruments: %w", err)
	}
	return due, nil
}

func (s *InstrumentStore) List(ctx context.Context) ([]*models.Instrument, error) {
	all, err := s.list(ctx, "SELECT "+instrumentColumns+" FROM instruments ORDER BY symbol ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list instruments: %w", err)
	}
	return all, nil
}

func (s *InstrumentStore) GetBySymbol(ctx context.Context, symbol string) (*models.Instrument, error) {
	inst, err := scanInstrument(s.pool.QueryRow(ctx, "SELECT "+instrumentColumns+" FROM instruments WHERE symbol = $1", symbol))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get instrument %s: %w", symbol, err)
	}
	return inst, nil
}

func (s *InstrumentStore) Register(ctx context.Context, inst *models.Instrument) error {
	if inst.ID == "" {
		inst.ID = models.InstrumentIDFor(inst.Symbol)
	}

	var lastRefreshed *time.Time
	err := s.pool.QueryRow(ctx, `
		INSERT INTO instruments (id, symbol, name, sector)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (symbol) DO UPDATE SET name = EXCLUDED.name, sector = EXCLUDED.sector
		RETURNING id, last_refreshed
	`, inst.ID, inst.Symbol, inst.Name, inst.Sector).Scan(&inst.ID, &lastRefreshed)
	if err != nil {
		return fmt.Errorf("failed to register instrument %s: %w", inst.Symbol, err)
	}
	if lastRefreshed != nil {
		inst.LastRefreshed = lastRefreshed.UTC()
	}
	return nil
}

func (s *InstrumentStore) Touch(ctx context.Context, instrumentID string, at time.Time) error {
	ct, err := s.pool.Exec(ctx, "UPDATE instruments SET last_refreshed = $2 WHERE id = $1", instrumentID, at)
	if err != nil {
		return fmt.Errorf("failed to touch instrument %s: %w", instrumentID, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("failed to touch instrument %s: not registered", instrumentID)
	}
	return nil
}

var _ interfaces.InstrumentRegistry = (*InstrumentStore)(nil)
