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

const snapshotColumns = "instrument_id, date, last_month, three_month, six_month, nine_month, one_year"

// ReturnStore implements interfaces.ReturnStore.
type ReturnStore struct {
	pool   *pgxpool.Pool
	logger *common.Logger
}

// NewReturnStore creates a new ReturnStore.
func NewReturnStore(pool *pgxpool.Pool, logger *common.Logger) *ReturnStore {
	return &ReturnStore{pool: pool, logger: logger}
}

func scanSnapshot(row pgx.Row) (*models.ReturnSnapshot, error) {
	var s models.ReturnSnapshot
	err := row.Scan(&s.InstrumentID, &s.Date, &s.LastMonth, &s.ThreeMonth, &s.SixMonth, &s.NineMonth, &s.OneYear)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *ReturnStore) UpsertSnapshot(ctx context.Context, snap *models.ReturnSnapshot) error {
	err := retryWrite(ctx, func() error {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO return_snapshots (`+snapshotColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (instrument_id, date) DO UPDATE SET
				last_month = EXCLUDED.last_month,
				three_month = EXCLUDED.three_month,
				six_month = EXCLUDED.six_month,
				nine_month = EXCLUDED.nine_month,
				one_year = EXCLUDED.one_year
		`, snap.InstrumentID, models.DateOnly(snap.Date), snap.LastMonth, snap.ThreeMonth, snap.SixMonth, snap.NineMonth, snap.OneYear)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to save return snapshot after retries: %w", err)
	}
	return nil
}

func (s *ReturnStore) LatestSnapshot(ctx context.Context, instrumentID string) (*models.ReturnSnapshot, error) {
	snap, err := scanSnapshot(s.pool.QueryRow(ctx, `
		SELECT `+snapshotColumns+`
		FROM return_snapshots
		WHERE instrument_id = $1
		ORDER BY date DESC
		LIMIT 1
	`, instrumentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}
	return snap, nil
}

func (s *ReturnStore) LatestSnapshots(ctx context.Context) (map[string]*models.ReturnSnapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (instrument_id) `+snapshotColumns+`
		FROM return_snapshots
		ORDER BY instrument_id, date DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	latest := make(map[string]*models.ReturnSnapshot)
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		latest[snap.InstrumentID] = snap
	}
	return latest, rows.Err()
}

var _ interfaces.ReturnStore = (*ReturnStore)(nil)
