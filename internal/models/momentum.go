package models

import "time"

// InstrumentPerformance joins an instrument to its latest return snapshot.
type InstrumentPerformance struct {
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name"`
	Sector        string    `json:"sector"`
	Date          time.Time `json:"date"`
	LastMonth     float64   `json:"last_month"`
	ThreeMonth    float64   `json:"three_month"`
	SixMonth      float64   `json:"six_month"`
	NineMonth     float64   `json:"nine_month"`
	OneYear       float64   `json:"one_year"`
	MomentumScore float64   `json:"momentum_score"`
	LastRefreshed time.Time `json:"last_refreshed"`
}

// SectorPerformance ranks a sector by the average momentum score of its members
type SectorPerformance struct {
	Sector       string                  `json:"sector"`
	AverageScore float64                 `json:"average_score"`
	Members      []InstrumentPerformance `json:"etfs"`
}

// StrategyAllocation is the accelerating dual momentum pick
type StrategyAllocation struct {
	Symbol     string                `json:"symbol"`
	Reason     string                `json:"reason"`
	Scores     map[string]float64    `json:"scores"`
	Instrument InstrumentPerformance `json:"instrument"`
}
