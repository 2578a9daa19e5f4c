package position

import (
	"testing"

	"github.com/peterldowns/testy/assert"
)

func TestContractSize(t *testing.T) {
	// 50000 * 0.005 = 250 risked, 12 ticks * 12.50 = 150 per contract,
	// floor(250/150) = 1.
	size, err := ContractSize(50000, 0.005, 12, 12.50, 5)
	assert.NoError(t, err)
	assert.Equal(t, uint32(1), size)

	// A wider risk budget floors down, never rounds up.
	size, err = ContractSize(50000, 0.01, 12, 12.50, 5)
	assert.NoError(t, err)
	assert.Equal(t, uint32(3), size)

	// The computed size clamps to the configured maximum.
	size, err = ContractSize(500000, 0.02, 12, 12.50, 5)
	assert.NoError(t, err)
	assert.Equal(t, uint32(5), size)

	// A stop too wide for the risk budget is a sizing rejection.
	size, err = ContractSize(50000, 0.005, 40, 12.50, 5)
	assert.Error(t, err)
	assert.Equal(t, uint32(0), size)

	// A zero or negative stop distance never divides.
	_, err = ContractSize(50000, 0.005, 0, 12.50, 5)
	assert.Error(t, err)
	_, err = ContractSize(50000, 0.005, -2, 12.50, 5)
	assert.Error(t, err)

	// Degenerate account inputs are rejected outright.
	_, err = ContractSize(0, 0.005, 12, 12.50, 5)
	assert.Error(t, err)
	_, err = ContractSize(50000, 0, 12, 12.50, 5)
	assert.Error(t, err)
	_, err = ContractSize(50000, 0.005, 12, 0, 5)
	assert.Error(t, err)
}

func TestRiskDistance(t *testing.T) {
	// The percent stop applies when it is the tighter bound.
	distance := RiskDistance(4500, 0.001, 40, 0.25, 0)
	assert.Equal(t, 4.5, distance)

	// The tick stop applies when it undercuts the percent stop.
	distance = RiskDistance(4500, 0.01, 12, 0.25, 0)
	assert.Equal(t, 3.0, distance)

	// A smaller volatility measure tightens the distance further.
	distance = RiskDistance(4500, 0.01, 12, 0.25, 2.25)
	assert.Equal(t, 2.25, distance)

	// A wider volatility measure never loosens the stop.
	distance = RiskDistance(4500, 0.01, 12, 0.25, 8)
	assert.Equal(t, 3.0, distance)
}
