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

// RiskStatusStore implements interfaces.RiskStatusStore using SurrealDB.
type RiskStatusStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewRiskStatusStore creates a new RiskStatusStore.
func NewRiskStatusStore(db *surrealdb.DB, logger *common.Logger) *RiskStatusStore {
	return &RiskStatusStore{db: db, logger: logger}
}

func (s *RiskStatusStore) UpsertRiskStatus(ctx context.Context, status *models.RiskStatus) error {
	record := *status
	record.Date = models.DateOnly(status.Date)

	sql := "UPSERT $rid CONTENT $status"
	vars := map[string]any{
		"rid":    surrealmodels.NewRecordID(tableRiskStatus, record.Date.Format("2006_01_02")),
		"status": record,
	}
	err := retryWrite(ctx, func() error {
		_, err := surrealdb.Query[[]models.RiskStatus](ctx, s.db, sql, vars)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to save risk status after retries: %w", err)
	}
	return nil
}

func (s *RiskStatusStore) LatestRiskStatus(ctx context.Context) (*models.RiskStatus, error) {
	sql := "SELECT date, status, message FROM risk_status ORDER BY date DESC LIMIT 1"
	results, err := surrealdb.Query[[]models.RiskStatus](ctx, s.db, sql, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest risk status: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	status := (*results)[0].Result[0]
	return &status, nil
}

var _ interfaces.RiskStatusStore = (*RiskStatusStore)(nil)
