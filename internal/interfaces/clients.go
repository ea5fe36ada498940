package interfaces

import (
	"context"

	"github.com/bobmcallan/etfmomentum/internal/models"
)

// MarketDataClient retrieves historical monthly prices from an external provider
type MarketDataClient interface {
	// FetchMonthly returns monthly closes for symbol sorted by date descending.
	// PricePoint.InstrumentID is left empty for the caller to fill.
	FetchMonthly(ctx context.Context, symbol string) ([]models.PricePoint, error)

	// Name identifies the provider in logs and errors.
	Name() string
}
