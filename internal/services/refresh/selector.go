// Package refresh implements the data refresh pipeline: select stale
// instruments, fetch and persist their monthly prices, compute trailing
// returns and derive the market risk status.
package refresh

import (
	"context"
	"fmt"
	"time"

	"github.com/bobmcallan/etfmomentum/internal/common"
	"github.com/bobmcallan/etfmomentum/internal/interfaces"
	"github.com/bobmcallan/etfmomentum/internal/models"
)

// Selector picks the instruments due for refresh
type Selector struct {
	registry  interfaces.InstrumentRegistry
	staleness time.Duration
	batchSize int
}

// NewSelector creates a selector. Non-positive arguments fall back to the defaults.
func NewSelector(registry interfaces.InstrumentRegistry, staleness time.Duration, batchSize int) *Selector {
	if staleness <= 0 {
		staleness = common.DefaultStaleness
	}
	if batchSize <= 0 {
		batchSize = common.DefaultBatchSize
	}
	return &Selector{
		registry:  registry,
		staleness: staleness,
		batchSize: batchSize,
	}
}

// BatchSize returns the maximum number of instruments selected per run.
func (s *Selector) BatchSize() int {
	return s.batchSize
}

// Due returns instruments last refreshed before now minus the staleness
// threshold, oldest first. An empty result means nothing is due.
func (s *Selector) Due(ctx context.Context, now time.Time) ([]*models.Instrument, error) {
	cutoff := now.Add(-s.staleness)
	due, err := s.registry.ListDue(ctx, cutoff, s.batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to select due instruments: %w", err)
	}
	if len(due) > s.batchSize {
		due = due[:s.batchSize]
	}
	return due, nil
}
