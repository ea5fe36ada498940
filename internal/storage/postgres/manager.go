// Package postgres implements the etfmomentum stores on PostgreSQL via pgx.
package postgres

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bobmcallan/etfmomentum/internal/common"
	"github.com/bobmcallan/etfmomentum/internal/interfaces"
)

// schema is applied on every start; each statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS instruments (
		id             TEXT PRIMARY KEY,
		symbol         TEXT NOT NULL UNIQUE,
		name           TEXT NOT NULL DEFAULT '',
		sector         TEXT NOT NULL DEFAULT '',
		last_refreshed TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS instruments_last_refreshed_idx ON instruments (last_refreshed NULLS FIRST)`,
	`CREATE TABLE IF NOT EXISTS price_history (
		instrument_id TEXT NOT NULL REFERENCES instruments (id) ON DELETE CASCADE,
		date          DATE NOT NULL,
		price         DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (instrument_id, date)
	)`,
	`CREATE TABLE IF NOT EXISTS return_snapshots (
		instrument_id TEXT NOT NULL REFERENCES instruments (id) ON DELETE CASCADE,
		date          DATE NOT NULL,
		last_month    DOUBLE PRECISION NOT NULL,
		three_month   DOUBLE PRECISION NOT NULL,
		six_month     DOUBLE PRECISION NOT NULL,
		nine_month    DOUBLE PRECISION NOT NULL,
		one_year      DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (instrument_id, date)
	)`,
	`CREATE TABLE IF NOT EXISTS risk_status (
		date    DATE PRIMARY KEY,
		status  TEXT NOT NULL CHECK (status IN ('on', 'off')),
		message TEXT NOT NULL
	)`,
}

// Write retry policy, shared with the SurrealDB backend.
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

// Manager implements interfaces.StorageManager using a pgx connection pool.
type Manager struct {
	pool   *pgxpool.Pool
	logger *common.Logger

	instrumentStore *InstrumentStore
	priceStore      *PriceStore
	returnStore     *ReturnStore
	riskStore       *RiskStatusStore
}

// NewManager connects, pings and migrates the database.
func NewManager(ctx context.Context, logger *common.Logger, config *common.Config) (*Manager, error) {
	connStr, err := BuildConnString(config.Storage)
	if err != nil {
		return nil, err
	}

	pool, err := Connect(ctx, connStr, config.Storage.MaxConns)
	if err != nil {
		return nil, err
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	m := newManager(pool, logger)

	logger.Info().
		Str("address", common.RedactURL(connStr)).
		Int("max_conns", config.Storage.MaxConns).
		Msg("Postgres storage manager initialized")

	return m, nil
}

func newManager(pool *pgxpool.Pool, logger *common.Logger) *Manager {
	return &Manager{
		pool:            pool,
		logger:          logger,
		instrumentStore: NewInstrumentStore(pool, logger),
		priceStore:      NewPriceStore(pool, logger),
		returnStore:     NewReturnStore(pool, logger),
		riskStore:       NewRiskStatusStore(pool, logger),
	}
}

// BuildConnString merges the configured credentials into the storage URL.
// Credentials already present in the URL win.
func BuildConnString(cfg common.StorageConfig) (string, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parse storage url: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", fmt.Errorf("unsupported postgres scheme %q", u.Scheme)
	}

	user := cfg.Username
	pass := cfg.Password
	if u.User != nil {
		if name := u.User.Username(); name != "" {
			user = name
		}
		if p, ok := u.User.Password(); ok {
			pass = p
		}
	}
	switch {
	case pass != "":
		u.User = url.UserPassword(user, pass)
	case user != "":
		u.User = url.User(user)
	}

	q := u.Query()
	if q.Get("sslmode") == "" {
		q.Set("sslmode", "prefer")
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Connect creates a connection pool and verifies it.
func Connect(ctx context.Context, connStr string, maxConns int) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	if maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// Migrate applies the schema in a single batch.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	batch := &pgx.Batch{}
	for _, stmt := range schema {
		batch.Queue(stmt)
	}

	results := pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := range schema {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i, err)
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
	return "postgres"
}

func (m *Manager) Close() error {
	m.pool.Close()
	return nil
}

// Compile-time check
var _ interfaces.StorageManager = (*Manager)(nil)
