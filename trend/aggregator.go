package trend

import (
	"trendmomentum/shared"
)

// SlowTrend derives the slow timeframe trend verdict from its two most recent
// indicator snapshots. The verdict is bullish while the fast ema leads the
// slow ema and the gap between them is non-decreasing, bearish on the
// mirrored condition, neutral otherwise.
func SlowTrend(curr *shared.IndicatorSnapshot, prev *shared.IndicatorSnapshot) shared.TrendState {
	if curr == nil || prev == nil {
		return shared.UnknownTrend
	}

	currGap := curr.EMAFast - curr.EMASlow
	prevGap := prev.EMAFast - prev.EMASlow

	switch {
	case currGap > 0 && currGap >= prevGap:
		return shared.BullishTrend
	case currGap < 0 && currGap <= prevGap:
		return shared.BearishTrend
	default:
		return shared.NeutralTrend
	}
}

// MiddleTrend derives the middle timeframe trend verdict from the sign of its
// momentum histogram.
func MiddleTrend(snapshot *shared.IndicatorSnapshot) shared.TrendState {
	if snapshot == nil {
		return shared.UnknownTrend
	}

	switch {
	case snapshot.MACDHistogram > 0:
		return shared.BullishTrend
	case snapshot.MACDHistogram < 0:
		return shared.BearishTrend
	default:
		return shared.NeutralTrend
	}
}

// FastTrend derives the fast verification timeframe trend verdict from the
// sign of its explosion trend value.
func FastTrend(snapshot *shared.IndicatorSnapshot) shared.TrendState {
	if snapshot == nil {
		return shared.UnknownTrend
	}

	switch {
	case snapshot.WAETrend > 0:
		return shared.BullishTrend
	case snapshot.WAETrend < 0:
		return shared.BearishTrend
	default:
		return shared.NeutralTrend
	}
}

// Align aggregates the per-timeframe trend verdicts into an alignment
// verdict. All three timeframes must agree for a tradable verdict, any
// unknown or mixed state forces no trade.
func Align(slow shared.TrendState, middle shared.TrendState, fast shared.TrendState) shared.AlignmentVerdict {
	switch {
	case slow == shared.BullishTrend && middle == shared.BullishTrend && fast == shared.BullishTrend:
		return shared.BullishAligned
	case slow == shared.BearishTrend && middle == shared.BearishTrend && fast == shared.BearishTrend:
		return shared.BearishAligned
	default:
		return shared.NoTrade
	}
}

// Evaluate recomputes the alignment verdict from the latest higher timeframe
// snapshots. It is idempotent and holds no internal state.
func Evaluate(slowCurr *shared.IndicatorSnapshot, slowPrev *shared.IndicatorSnapshot,
	middle *shared.IndicatorSnapshot, fast *shared.IndicatorSnapshot) shared.AlignmentVerdict {
	return Align(SlowTrend(slowCurr, slowPrev), MiddleTrend(middle), FastTrend(fast))
}
