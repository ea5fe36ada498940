// Package signals computes trailing returns, momentum rankings and the market risk signal
package signals

import (
	"fmt"
	"math"

	"github.com/bobmcallan/etfmomentum/internal/common"
	"github.com/bobmcallan/etfmomentum/internal/models"
)

// Trailing return windows as offsets into a newest-first monthly series.
const (
	OffsetLastMonth  = 1
	OffsetThreeMonth = 3
	OffsetSixMonth   = 6
	OffsetNineMonth  = 9
	OffsetOneYear    = 12
)

// MinHistory is the number of monthly points needed for a full snapshot.
const MinHistory = OffsetOneYear + 1

// ComputeReturns derives a ReturnSnapshot from a monthly series sorted newest
// first. Windows are index offsets, not calendar arithmetic: a gap in the
// provider's series shifts which month each window lands on.
func ComputeReturns(instrumentID string, series []models.PricePoint) (*models.ReturnSnapshot, error) {
	if len(series) < MinHistory {
		return nil, &common.InsufficientHistoryError{Symbol: instrumentID, Have: len(series), Need: MinHistory}
	}

	for i := 1; i < len(series); i++ {
		if !series[i].Date.Before(series[i-1].Date) {
			return nil, &common.DataFormatError{
				Symbol: instrumentID,
				Field:  "date",
				Reason: fmt.Sprintf("series not strictly descending at index %d (%s after %s)", i, series[i].Date.Format("2006-01-02"), series[i-1].Date.Format("2006-01-02")),
			}
		}
	}

	current, err := priceAt(instrumentID, series, 0)
	if err != nil {
		return nil, err
	}

	ret := func(k int) (float64, error) {
		p, err := priceAt(instrumentID, series, k)
		if err != nil {
			return 0, err
		}
		return (current/p - 1) * 100, nil
	}

	snap := &models.ReturnSnapshot{
		InstrumentID: instrumentID,
		Date:         models.DateOnly(series[0].Date),
	}
	for _, w := range []struct {
		offset int
		dst    *float64
	}{
		{OffsetLastMonth, &snap.LastMonth},
		{OffsetThreeMonth, &snap.ThreeMonth},
		{OffsetSixMonth, &snap.SixMonth},
		{OffsetNineMonth, &snap.NineMonth},
		{OffsetOneYear, &snap.OneYear},
	} {
		v, err := ret(w.offset)
		if err != nil {
			return nil, err
		}
		*w.dst = v
	}

	return snap, nil
}

func priceAt(instrumentID string, series []models.PricePoint, i int) (float64, error) {
	p := series[i].Price
	if math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 {
		return 0, &common.DataFormatError{
			Symbol: instrumentID,
			Field:  "price",
			Reason: fmt.Sprintf("invalid price %v at %s (index %d)", p, series[i].Date.Format("2006-01-02"), i),
		}
	}
	return p, nil
}
