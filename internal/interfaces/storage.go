// Package interfaces defines service contracts for etfmomentum
package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/etfmomentum/internal/models"
)

// StorageManager coordinates the stores of one datastore backend
type StorageManager interface {
	InstrumentRegistry() InstrumentRegistry
	PriceStore() PriceStore
	ReturnStore() ReturnStore
	RiskStatusStore() RiskStatusStore

	// Backend names the datastore in use ("surrealdb" or "postgres").
	Backend() string

	// Lifecycle
	Close() error
}

// InstrumentRegistry owns the tracked instrument set and its refresh timestamps.
type InstrumentRegistry interface {
	// ListDue returns instruments whose LastRefreshed is before cutoff (or unset),
	// oldest first, at most limit entries.
	ListDue(ctx context.Context, cutoff time.Time, limit int) ([]*models.Instrument, error)

	// List returns all instruments ordered by symbol.
	List(ctx context.Context) ([]*models.Instrument, error)

	// GetBySymbol returns the instrument or nil when it is not registered.
	GetBySymbol(ctx context.Context, symbol string) (*models.Instrument, error)

	// Register upserts an instrument by symbol. An existing LastRefreshed is kept.
	Register(ctx context.Context, inst *models.Instrument) error

	// Touch sets LastRefreshed for the instrument.
	Touch(ctx context.Context, instrumentID string, at time.Time) error
}

// PriceStore persists monthly price points keyed by (instrument, date).
type PriceStore interface {
	// UpsertPrice writes one point. Re-writing the same key replaces the price.
	UpsertPrice(ctx context.Context, p models.PricePoint) error

	// ListPrices returns up to limit points for an instrument, newest first.
	ListPrices(ctx context.Context, instrumentID string, limit int) ([]models.PricePoint, error)
}

// ReturnStore persists return snapshots keyed by (instrument, date).
type ReturnStore interface {
	UpsertSnapshot(ctx context.Context, s *models.ReturnSnapshot) error

	// LatestSnapshot returns the newest snapshot for an instrument, or nil.
	LatestSnapshot(ctx context.Context, instrumentID string) (*models.ReturnSnapshot, error)

	// LatestSnapshots returns the newest snapshot for every instrument that has one,
	// keyed by instrument id.
	LatestSnapshots(ctx context.Context) (map[string]*models.ReturnSnapshot, error)
}

// RiskStatusStore persists the daily risk status keyed by date.
type RiskStatusStore interface {
	UpsertRiskStatus(ctx context.Context, s *models.RiskStatus) error

	// LatestRiskStatus returns the most recent status by date, or nil.
	LatestRiskStatus(ctx context.Context) (*models.RiskStatus, error)
}
