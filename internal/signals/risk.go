package signals

import (
	"fmt"
	"time"

	"github.com/bobmcallan/etfmomentum/internal/models"
)

// RiskPolicy shapes the allocation messages attached to a risk status.
type RiskPolicy struct {
	BondSymbol string
	BondLabel  string
	TopCount   int
}

// DefaultRiskPolicy allocates to four sector ETFs when risk is on and to BND when off.
func DefaultRiskPolicy() RiskPolicy {
	return RiskPolicy{BondSymbol: "BND", BondLabel: "Total Bond Market ETF", TopCount: 4}
}

// OnMessage is the allocation advice when benchmark momentum is positive.
func (p RiskPolicy) OnMessage() string {
	n := p.TopCount
	if n <= 0 {
		n = 4
	}
	return fmt.Sprintf("Market momentum is positive. Allocate %s%% each to top %d sector ETFs.", trimPercent(100/float64(n)), n)
}

// OffMessage is the allocation advice when benchmark momentum is zero or negative.
func (p RiskPolicy) OffMessage() string {
	if p.BondLabel == "" {
		return fmt.Sprintf("Market momentum is negative. Allocate 100%% to %s.", p.BondSymbol)
	}
	return fmt.Sprintf("Market momentum is negative. Allocate 100%% to %s (%s).", p.BondSymbol, p.BondLabel)
}

func trimPercent(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	for s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	if s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	return s
}

// DeriveRiskStatus maps the benchmark's one-year return to a risk signal for day.
// A one-year return of exactly zero is risk off.
func DeriveRiskStatus(oneYear float64, day time.Time, policy RiskPolicy) *models.RiskStatus {
	status := &models.RiskStatus{Date: models.DateOnly(day)}
	if oneYear > 0 {
		status.Status = models.RiskOn
		status.Message = policy.OnMessage()
	} else {
		status.Status = models.RiskOff
		status.Message = policy.OffMessage()
	}
	return status
}
