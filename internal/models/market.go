package models

import (
	"time"
)

// PricePoint is a single monthly close. Unique per (InstrumentID, Date).
type PricePoint struct {
	InstrumentID string    `json:"instrument_id"`
	Date         time.Time `json:"date"`
	Price        float64   `json:"price"`
}

// ReturnSnapshot holds the trailing returns for an instrument as of Date,
// expressed in percent. Unique per (InstrumentID, Date).
type ReturnSnapshot struct {
	InstrumentID string    `json:"instrument_id"`
	Date         time.Time `json:"date"`
	LastMonth    float64   `json:"last_month"`
	ThreeMonth   float64   `json:"three_month"`
	SixMonth     float64   `json:"six_month"`
	NineMonth    float64   `json:"nine_month"`
	OneYear      float64   `json:"one_year"`
}

// DateOnly truncates t to midnight UTC so date-keyed records collide on the same day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
