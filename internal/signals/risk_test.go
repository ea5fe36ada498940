package signals

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bobmcallan/etfmomentum/internal/models"
)

func TestDeriveRiskStatus(t *testing.T) {
	day := time.Date(2025, 1, 2, 15, 30, 0, 0, time.UTC)
	policy := DefaultRiskPolicy()

	off := DeriveRiskStatus(-1.5, day, policy)
	assert.Equal(t, models.RiskOff, off.Status)
	assert.Equal(t, "Market momentum is negative. Allocate 100% to BND (Total Bond Market ETF).", off.Message)
	assert.Equal(t, time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), off.Date)

	on := DeriveRiskStatus(3.0, day, policy)
	assert.Equal(t, models.RiskOn, on.Status)
	assert.Equal(t, "Market momentum is positive. Allocate 25% each to top 4 sector ETFs.", on.Message)

	zero := DeriveRiskStatus(0, day, policy)
	assert.Equal(t, models.RiskOff, zero.Status)
}

func TestRiskPolicy_Messages(t *testing.T) {
	p := RiskPolicy{BondSymbol: "AGG", TopCount: 3}
	assert.Equal(t, "Market momentum is positive. Allocate 33.33% each to top 3 sector ETFs.", p.OnMessage())
	assert.Equal(t, "Market momentum is negative. Allocate 100% to AGG.", p.OffMessage())

	p = RiskPolicy{BondSymbol: "BND", TopCount: 5}
	assert.Equal(t, "Market momentum is positive. Allocate 20% each to top 5 sector ETFs.", p.OnMessage())
}
