// Package models defines data structures for etfmomentum
package models

import (
	"strings"
	"time"
)

// Instrument is one tracked ETF in the registry
type Instrument struct {
	ID            string    `json:"id"`
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name"`
	Sector        string    `json:"sector"`
	LastRefreshed time.Time `json:"last_refreshed"` // zero until the first successful refresh
}

// InstrumentIDFor derives the stable instrument id for a ticker symbol.
// Dots are replaced because they are not valid in SurrealDB record ids.
func InstrumentIDFor(symbol string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(symbol)), ".", "_")
}
