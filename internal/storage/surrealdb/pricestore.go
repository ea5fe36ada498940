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

// PriceStore implements interfaces.PriceStore using SurrealDB.
type PriceStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewPriceStore creates a new PriceStore.
func NewPriceStore(db *surrealdb.DB, logger *common.Logger) *PriceStore {
	return &PriceStore{db: db, logger: logger}
}

// datedID keys a record by owner and calendar day so re-writes land on the same record.
func datedID(instrumentID string, date time.Time) string {
	return instrumentID + "_" + date.Format("2006_01_02")
}

func (s *PriceStore) UpsertPrice(ctx context.Context, p models.PricePoint) error {
	p.Date = models.DateOnly(p.Date)
	sql := "UPSERT $rid CONTENT $price"
	vars := map[string]any{
		"rid":   surrealmodels.NewRecordID(tablePrices, datedID(p.InstrumentID, p.Date)),
		"price": p,
	}

	err := retryWrite(ctx, func() error {
		_, err := surrealdb.Query[[]models.PricePoint](ctx, s.db, sql, vars)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to save price after retries: %w", err)
	}
	return nil
}

func (s *PriceStore) ListPrices(ctx context.Context, instrumentID string, limit int) ([]models.PricePoint, error) {
	sql := "SELECT instrument_id, date, price FROM price_history WHERE instrument_id = $id ORDER BY date DESC LIMIT $limit"
	vars := map[string]any{"id": instrumentID, "limit": limit}

	results, err := surrealdb.Query[[]models.PricePoint](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list prices: %w", err)
	}
	if results != nil && len(*results) > 0 {
		return (*results)[0].Result, nil
	}
	return nil, nil
}

var _ interfaces.PriceStore = (*PriceStore)(nil)
