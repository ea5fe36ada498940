package signals

import (
	"errors"
	"fmt"
	"sort"

	"github.com/bobmcallan/etfmomentum/internal/models"
)

// Accelerating momentum weights
const (
	WeightLastMonth  = 0.40
	WeightThreeMonth = 0.35
	WeightSixMonth   = 0.25
)

// Strategy instruments for accelerating dual momentum
const (
	StrategyUS            = "SPY"
	StrategyInternational = "VXUS"
	StrategyTreasury      = "TLT"
)

// ErrStrategyIncomplete means a strategy instrument has no snapshot yet.
var ErrStrategyIncomplete = errors.New("strategy instruments missing")

// StrategySymbols are excluded from sector and top-N rankings.
var StrategySymbols = []string{StrategyUS, StrategyInternational, StrategyTreasury}

// MomentumScore weights recent returns more heavily than older ones.
func MomentumScore(lastMonth, threeMonth, sixMonth float64) float64 {
	return lastMonth*WeightLastMonth + threeMonth*WeightThreeMonth + sixMonth*WeightSixMonth
}

// Performance joins an instrument and its snapshot and scores it.
func Performance(inst *models.Instrument, snap *models.ReturnSnapshot) models.InstrumentPerformance {
	p := models.InstrumentPerformance{
		Symbol:        inst.Symbol,
		Name:          inst.Name,
		Sector:        inst.Sector,
		LastRefreshed: inst.LastRefreshed,
	}
	if snap != nil {
		p.Date = snap.Date
		p.LastMonth = snap.LastMonth
		p.ThreeMonth = snap.ThreeMonth
		p.SixMonth = snap.SixMonth
		p.NineMonth = snap.NineMonth
		p.OneYear = snap.OneYear
		p.MomentumScore = MomentumScore(snap.LastMonth, snap.ThreeMonth, snap.SixMonth)
	}
	return p
}

func excluded(symbol string, exclude []string) bool {
	for _, e := range exclude {
		if e == symbol {
			return true
		}
	}
	return false
}

// TopPerforming returns up to count instruments ranked by momentum score,
// skipping the excluded symbols. The input is not modified.
func TopPerforming(perfs []models.InstrumentPerformance, count int, exclude []string) []models.InstrumentPerformance {
	out := make([]models.InstrumentPerformance, 0, len(perfs))
	for _, p := range perfs {
		if !excluded(p.Symbol, exclude) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MomentumScore > out[j].MomentumScore
	})
	if count >= 0 && len(out) > count {
		out = out[:count]
	}
	return out
}

// TopSectors groups instruments by sector and ranks sectors by average momentum score.
func TopSectors(perfs []models.InstrumentPerformance, exclude []string) []models.SectorPerformance {
	index := make(map[string]int)
	var sectors []models.SectorPerformance

	for _, p := range perfs {
		if excluded(p.Symbol, exclude) {
			continue
		}
		i, ok := index[p.Sector]
		if !ok {
			i = len(sectors)
			index[p.Sector] = i
			sectors = append(sectors, models.SectorPerformance{Sector: p.Sector})
		}
		sectors[i].Members = append(sectors[i].Members, p)
	}

	for i := range sectors {
		var total float64
		for _, m := range sectors[i].Members {
			total += m.MomentumScore
		}
		sectors[i].AverageScore = total / float64(len(sectors[i].Members))
	}

	sort.SliceStable(sectors, func(i, j int) bool {
		return sectors[i].AverageScore > sectors[j].AverageScore
	})
	return sectors
}

// StrategyAllocation picks between US and international equity by momentum,
// falling back to treasuries when neither is positive. Ties go to international.
func StrategyAllocation(perfs []models.InstrumentPerformance) (*models.StrategyAllocation, error) {
	bySymbol := make(map[string]models.InstrumentPerformance, len(perfs))
	for _, p := range perfs {
		bySymbol[p.Symbol] = p
	}

	var missing []string
	for _, s := range StrategySymbols {
		if _, ok := bySymbol[s]; !ok {
			missing = append(missing, s)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: required ETFs not found in universe: %v", ErrStrategyIncomplete, missing)
	}

	us := bySymbol[StrategyUS]
	intl := bySymbol[StrategyInternational]

	alloc := &models.StrategyAllocation{
		Scores: map[string]float64{
			StrategyUS:            us.MomentumScore,
			StrategyInternational: intl.MomentumScore,
			StrategyTreasury:      bySymbol[StrategyTreasury].MomentumScore,
		},
	}

	switch {
	case us.MomentumScore > 0 || intl.MomentumScore > 0:
		pick := intl
		if us.MomentumScore > intl.MomentumScore {
			pick = us
		}
		alloc.Symbol = pick.Symbol
		alloc.Instrument = pick
		alloc.Reason = "equity momentum positive; holding the stronger index"
	default:
		alloc.Symbol = StrategyTreasury
		alloc.Instrument = bySymbol[StrategyTreasury]
		alloc.Reason = "equity momentum negative; holding long-term treasuries"
	}

	return alloc, nil
}
