package surrealdb

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/bobmcallan/etfmomentum/internal/common"
	"github.com/bobmcallan/etfmomentum/internal/interfaces"
	"github.com/bobmcallan/etfmomentum/internal/models"
)

const snapshotSelectFields = "instrument_id, date, last_month, three_month, six_month, nine_month, one_year"

// ReturnStore implements interfaces.ReturnStore using SurrealDB.
type ReturnStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewReturnStore creates a new ReturnStore.
func NewReturnStore(db *surrealdb.DB, logger *common.Logger) *ReturnStore {
	return &ReturnStore{db: db, logger: logger}
}

func (s *ReturnStore) UpsertSnapshot(ctx context.Context, snap *models.ReturnSnapshot) error {
	record := *snap
	record.Date = models.DateOnly(snap.Date)

	sql := "UPSERT $rid CONTENT $snapshot"
	vars := map[string]any{
		"rid":      surrealmodels.NewRecordID(tableReturns, datedID(snap.InstrumentID, record.Date)),
		"snapshot": record,
	}

	err := retryWrite(ctx, func() error {
		_, err := surrealdb.Query[[]models.ReturnSnapshot](ctx, s.db, sql, vars)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to save return snapshot after retries: %w", err)
	}
	return nil
}

func (s *ReturnStore) LatestSnapshot(ctx context.Context, instrumentID string) (*models.ReturnSnapshot, error) {
	sql := "SELECT " + snapshotSelectFields + " FROM return_snapshots WHERE instrument_id = $id ORDER BY date DESC LIMIT 1"
	results, err := surrealdb.Query[[]models.ReturnSnapshot](ctx, s.db, sql, map[string]any{"id": instrumentID})
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	snap := (*results)[0].Result[0]
	return &snap, nil
}

func (s *ReturnStore) LatestSnapshots(ctx context.Context) (map[string]*models.ReturnSnapshot, error) {
	sql := "SELECT " + snapshotSelectFields + " FROM return_snapshots ORDER BY date DESC"
	results, err := surrealdb.Query[[]models.ReturnSnapshot](ctx, s.db, sql, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	latest := make(map[string]*models.ReturnSnapshot)
	if results != nil && len(*results) > 0 {
		rows := (*results)[0].Result
		for i := range rows {
			if _, seen := latest[rows[i].InstrumentID]; !seen {
				latest[rows[i].InstrumentID] = &rows[i]
			}
		}
	}
	return latest, nil
}

var _ interfaces.ReturnStore = (*ReturnStore)(nil)
