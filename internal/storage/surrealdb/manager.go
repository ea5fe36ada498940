// Package surrealdb implements the etfmomentum stores on SurrealDB.
package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"

	"github.com/bobmcallan/etfmomentum/internal/common"
	"github.com/bobmcallan/etfmomentum/internal/interfaces"
)

// Table names shared by every store.
const (
	tableInstruments = "instruments"
	tablePrices      = "price_history"
	tableReturns     = "return_snapshots"
	tableRiskStatus  = "risk_status"
)

// Write retry policy, shared with the Postgres backend.
const (
	writeAttempts = 3
	writeBackoff  = 50 * time.Millisecond
)

// retryWrite runs op up to writeAttempts times, backing off linearly between
// attempts. It stops early when ctx is done.
func retryWrite(ctx context.Context, op func() error) error {
	var lastErr error
	for attempt := 1; attempt <= writeAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if lastErr = op(); lastErr == nil {
			return nil
		}
		if attempt < writeAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * writeBackoff):
			}
		}
	}
	return lastErr
}

// Manager implements interfaces.StorageManager using SurrealDB.
type Manager struct {
	db     *surrealdb.DB
	logger *common.Logger

	instrumentStore *InstrumentStore
	priceStore      *PriceStore
	returnStore     *ReturnStore
	riskStore       *RiskStatusStore
}

// NewManager creates a new StorageManager connected to SurrealDB.
func NewManager(ctx context.Context, logger *common.Logger, config *common.Config) (*Manager, error) {
	db, err := surrealdb.New(config.Storage.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": config.Storage.Username,
		"pass": config.Storage.Password,
	}); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to sign in to SurrealDB: %w", err)
	}

	if err := db.Use(ctx, config.Storage.Namespace, config.Storage.Database); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to select namespace/database: %w", err)
	}

	if err := defineSchema(ctx, db); err != nil {
		db.Close(ctx)
		return nil, err
	}

	m := newManager(db, logger)

	logger.Info().
		Str("address", common.RedactURL(config.Storage.URL)).
		Str("namespace", config.Storage.Namespace).
		Str("database", config.Storage.Database).
		Msg("SurrealDB storage manager initialized")

	return m, nil
}

func newManager(db *surrealdb.DB, logger *common.Logger) *Manager {
	return &Manager{
		db:              db,
		logger:          logger,
		instrumentStore: NewInstrumentStore(db, logger),
		priceStore:      NewPriceStore(db, logger),
		returnStore:     NewReturnStore(db, logger),
		riskStore:       NewRiskStatusStore(db, logger),
	}
}

// defineSchema ensures tables exist (SurrealDB v3 errors on querying non-existent tables)
// and indexes the lookups the stores make.
func defineSchema(ctx context.Context, db *surrealdb.DB) error {
	for _, table := range []string{tableInstruments, tablePrices, tableReturns, tableRiskStatus} {
		sql := fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", table)
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			return fmt.Errorf("failed to define table %s: %w", table, err)
		}
	}

	indexes := []string{
		"DEFINE INDEX IF NOT EXISTS instruments_symbol ON instruments FIELDS symbol UNIQUE",
		"DEFINE INDEX IF NOT EXISTS instruments_last_refreshed ON instruments FIELDS last_refreshed",
		"DEFINE INDEX IF NOT EXISTS price_history_key ON price_history FIELDS instrument_id, date UNIQUE",
		"DEFINE INDEX IF NOT EXISTS return_snapshots_key ON return_snapshots FIELDS instrument_id, date UNIQUE",
		"DEFINE INDEX IF NOT EXISTS risk_status_date ON risk_status FIELDS date UNIQUE",
	}
	for _, sql := range indexes {
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			return fmt.Errorf("failed to define index: %w", err)
		}
	}
	return nil
}

func (m *Manager) InstrumentRegistry() interfaces.InstrumentRegistry {
	return m.instrumentStore
}

func (m *Manager) PriceStore() interfaces.PriceStore {
	return m.priceStore
}

func (m *Manager) ReturnStore() interfaces.ReturnStore {
	return m.returnStore
}

func (m *Manager) RiskStatusStore() interfaces.RiskStatusStore {
	return m.riskStore
}

func (m *Manager) Backend() string {
	return "surrealdb"
}

func (m *Manager) Close() error {
	m.db.Close(context.Background())
	return nil
}

// Compile-time check
var _ interfaces.StorageManager = (*Manager)(nil)
