package position

import (
	"fmt"
	"math"
)

// ContractSize computes the contract size for a trade risking the provided
// fraction of account equity against the stop distance. It is deterministic,
// holds no state and is safe to call repeatedly. A computed size below one
// contract is a sizing rejection, never a silent zero.
func ContractSize(equity float64, riskFraction float64, stopDistanceTicks float64,
	tickValue float64, maxSize uint32) (uint32, error) {
	if equity <= 0 {
		return 0, fmt.Errorf("sizing rejected: equity must be positive, got %v", equity)
	}
	if riskFraction <= 0 {
		return 0, fmt.Errorf("sizing rejected: risk fraction must be positive, got %v", riskFraction)
	}
	if stopDistanceTicks <= 0 {
		return 0, fmt.Errorf("sizing rejected: stop distance must be positive, got %v ticks", stopDistanceTicks)
	}
	if tickValue <= 0 {
		return 0, fmt.Errorf("sizing rejected: tick value must be positive, got %v", tickValue)
	}

	size := math.Floor((equity * riskFraction) / (stopDistanceTicks * tickValue))
	if size < 1 {
		return 0, fmt.Errorf("sizing rejected: computed size %v is below one contract", size)
	}

	if size > float64(maxSize) {
		return maxSize, nil
	}

	return uint32(size), nil
}

// RiskDistance returns the initial risk distance in price points: the tighter
// of a percentage-of-price stop and a fixed tick-count stop, refined by the
// volatility measure when one is available.
func RiskDistance(price float64, stopPercent float64, stopTicks uint32, tickSize float64, atr float64) float64 {
	distance := price * stopPercent

	tickDistance := float64(stopTicks) * tickSize
	if tickDistance > 0 && tickDistance < distance {
		distance = tickDistance
	}

	if atr > 0 && atr < distance {
		distance = atr
	}

	return distance
}
