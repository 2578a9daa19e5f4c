package shared

// TrendState represents the trend verdict for a single timeframe.
type TrendState int

const (
	UnknownTrend TrendState = iota
	BullishTrend
	BearishTrend
	NeutralTrend
)

// String stringifies the provided trend state.
func (t TrendState) String() string {
	switch t {
	case UnknownTrend:
		return "unknown trend"
	case BullishTrend:
		return "bullish trend"
	case BearishTrend:
		return "bearish trend"
	case NeutralTrend:
		return "neutral trend"
	default:
		return "unknown trend"
	}
}

// AlignmentVerdict represents the aggregated multi-timeframe trend verdict.
// It is derived on every evaluation and never persisted beyond the current tick.
type AlignmentVerdict int

const (
	NoTrade AlignmentVerdict = iota
	BullishAligned
	BearishAligned
)

// String stringifies the provided alignment verdict.
func (v AlignmentVerdict) String() string {
	switch v {
	case NoTrade:
		return "no trade"
	case BullishAligned:
		return "bullish aligned"
	case BearishAligned:
		return "bearish aligned"
	default:
		return "unknown"
	}
}

// Matches asserts whether the verdict permits entries in the provided direction.
func (v AlignmentVerdict) Matches(direction Direction) bool {
	switch direction {
	case Long:
		return v == BullishAligned
	case Short:
		return v == BearishAligned
	default:
		return false
	}
}

// Opposes asserts whether the verdict has flipped against the provided direction.
func (v AlignmentVerdict) Opposes(direction Direction) bool {
	switch direction {
	case Long:
		return v == BearishAligned
	case Short:
		return v == BullishAligned
	default:
		return false
	}
}
