package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bobmcallan/etfmomentum/internal/common"
	"github.com/bobmcallan/etfmomentum/internal/interfaces"
	"github.com/bobmcallan/etfmomentum/internal/models"
)

// PriceStore implements interfaces.PriceStore.
type PriceStore struct {
	pool   *pgxpool.Pool
	logger *common.Logger
}

// NewPriceStore creates a new PriceStore.
func NewPriceStore(pool *pgxpool.Pool, logger *common.Logger) *PriceStore {
	return &PriceStore{pool: pool, logger: logger}
}

func (s *PriceStore) UpsertPrice(ctx context.Context, p models.PricePoint) error {
	err := retryWrite(ctx, func() error {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO price_history (instrument_id, date, price)
			VALUES ($1, $2, $3)
			ON CONFLICT (instrument_id, date) DO UPDATE SET price = EXCLUDED.price
		`, p.InstrumentID, models.DateOnly(p.Date), p.Price)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to save price after retries: %w", err)
	}
	return nil
}

func (s *PriceStore) ListPrices(ctx context.Context, instrumentID string, limit int) ([]models.PricePoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT instrument_id, date, price
		FROM price_history
		WHERE instrument_id = $1
		ORDER BY date DESC
		LIMIT $2
	`, instrumentID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list prices: %w", err)
	}
	defer rows.Close()

	var out []models.PricePoint
	for rows.Next() {
		var p models.PricePoint
		if err := rows.Scan(&p.InstrumentID, &p.Date, &p.Price); err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

var _ interfaces.PriceStore = (*PriceStore)(nil)
