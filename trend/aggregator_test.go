package trend

import (
	"testing"

	"github.com/peterldowns/testy/assert"

	"trendmomentum/shared"
)

func snapshotWithEMA(fast float64, slow float64) *shared.IndicatorSnapshot {
	return &shared.IndicatorSnapshot{
		Market:    "ES",
		Timeframe: shared.FifteenMinute,
		EMAFast:   fast,
		EMASlow:   slow,
	}
}

func TestSlowTrend(t *testing.T) {
	tests := []struct {
		name string
		curr *shared.IndicatorSnapshot
		prev *shared.IndicatorSnapshot
		want shared.TrendState
	}{
		{
			"missing history is unknown",
			snapshotWithEMA(4500, 4490),
			nil,
			shared.UnknownTrend,
		},
		{
			"fast above slow with widening gap is bullish",
			snapshotWithEMA(4510, 4490),
			snapshotWithEMA(4505, 4490),
			shared.BullishTrend,
		},
		{
			"fast above slow with steady gap is bullish",
			snapshotWithEMA(4510, 4490),
			snapshotWithEMA(4510, 4490),
			shared.BullishTrend,
		},
		{
			"fast above slow with narrowing gap is neutral",
			snapshotWithEMA(4505, 4490),
			snapshotWithEMA(4510, 4490),
			shared.NeutralTrend,
		},
		{
			"fast below slow with widening gap is bearish",
			snapshotWithEMA(4470, 4490),
			snapshotWithEMA(4480, 4490),
			shared.BearishTrend,
		},
		{
			"fast below slow with narrowing gap is neutral",
			snapshotWithEMA(4485, 4490),
			snapshotWithEMA(4480, 4490),
			shared.NeutralTrend,
		},
		{
			"equal emas is neutral",
			snapshotWithEMA(4490, 4490),
			snapshotWithEMA(4490, 4490),
			shared.NeutralTrend,
		},
	}

	for _, test := range tests {
		got := SlowTrend(test.curr, test.prev)
		assert.Equal(t, test.want, got)
	}
}

func TestMiddleTrend(t *testing.T) {
	assert.Equal(t, shared.UnknownTrend, MiddleTrend(nil))
	assert.Equal(t, shared.BullishTrend, MiddleTrend(&shared.IndicatorSnapshot{MACDHistogram: 0.4}))
	assert.Equal(t, shared.BearishTrend, MiddleTrend(&shared.IndicatorSnapshot{MACDHistogram: -0.4}))
	assert.Equal(t, shared.NeutralTrend, MiddleTrend(&shared.IndicatorSnapshot{MACDHistogram: 0}))
}

func TestFastTrend(t *testing.T) {
	assert.Equal(t, shared.UnknownTrend, FastTrend(nil))
	assert.Equal(t, shared.BullishTrend, FastTrend(&shared.IndicatorSnapshot{WAETrend: 12}))
	assert.Equal(t, shared.BearishTrend, FastTrend(&shared.IndicatorSnapshot{WAETrend: -12}))
	assert.Equal(t, shared.NeutralTrend, FastTrend(&shared.IndicatorSnapshot{WAETrend: 0}))
}

// TestAlignExhaustive asserts the verdict over every combination of
// per-timeframe trend states: bullish only when all three are bullish,
// bearish only when all three are bearish, no trade otherwise.
func TestAlignExhaustive(t *testing.T) {
	states := []shared.TrendState{
		shared.UnknownTrend,
		shared.BullishTrend,
		shared.BearishTrend,
		shared.NeutralTrend,
	}

	for _, slow := range states {
		for _, middle := range states {
			for _, fast := range states {
				got := Align(slow, middle, fast)

				switch {
				case slow == shared.BullishTrend && middle == shared.BullishTrend && fast == shared.BullishTrend:
					assert.Equal(t, shared.BullishAligned, got)
				case slow == shared.BearishTrend && middle == shared.BearishTrend && fast == shared.BearishTrend:
					assert.Equal(t, shared.BearishAligned, got)
				default:
					assert.Equal(t, shared.NoTrade, got)
				}
			}
		}
	}
}

func TestEvaluate(t *testing.T) {
	slowPrev := snapshotWithEMA(4505, 4490)
	slowCurr := snapshotWithEMA(4510, 4490)
	middle := &shared.IndicatorSnapshot{MACDHistogram: 0.6}
	fast := &shared.IndicatorSnapshot{WAETrend: 3}

	assert.Equal(t, shared.BullishAligned, Evaluate(slowCurr, slowPrev, middle, fast))

	// Any missing timeframe forces no trade, partial alignment is never accepted.
	assert.Equal(t, shared.NoTrade, Evaluate(slowCurr, slowPrev, nil, fast))
	assert.Equal(t, shared.NoTrade, Evaluate(nil, slowPrev, middle, fast))

	// Mixed verdicts force no trade.
	bearishFast := &shared.IndicatorSnapshot{WAETrend: -3}
	assert.Equal(t, shared.NoTrade, Evaluate(slowCurr, slowPrev, middle, bearishFast))
}
