package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bobmcallan/etfmomentum/internal/common"
	"github.com/bobmcallan/etfmomentum/internal/interfaces"
	"github.com/bobmcallan/etfmomentum/internal/models"
)

// RiskStatusStore implements interfaces.RiskStatusStore.
type RiskStatusStore struct {
	pool   *pgxpool.Pool
	logger *common.Logger
}

// NewRiskStatusStore creates a new RiskStatusStore.
func NewRiskStatusStore(pool *pgxpool.Pool, logger *common.Logger) *RiskStatusStore {
	return &RiskStatusStore{pool: pool, logger: logger}
}

func (s *RiskStatusStore) UpsertRiskStatus(ctx context.Context, status *models.RiskStatus) error {
	err := retryWrite(ctx, func() error {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO risk_status (date, status, message)
			VALUES ($1, $2, $3)
			ON CONFLICT (date) DO UPDATE SET status = EXCLUDED.status, message = EXCLUDED.message
		`, models.DateOnly(status.Date), string(status.Status), status.Message)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to save risk status after retries: %w", err)
	}
	return nil
}

func (s *RiskStatusStore) LatestRiskStatus(ctx context.Context) (*models.RiskStatus, error) {
	var (
		status models.RiskStatus
		signal string
	)
	err := s.pool.QueryRow(ctx, "SELECT date, status, message FROM risk_status ORDER BY date DESC LIMIT 1").
		Scan(&status.Date, &signal, &status.Message)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest risk status: %w", err)
	}
	status.Status = models.RiskSignal(signal)
	return &status, nil
}

var _ interfaces.RiskStatusStore = (*RiskStatusStore)(nil)
