package shared

// Reason represents an entry or exit trigger tag.
type Reason int

const (
	TrendAligned Reason = iota
	RSICross
	MomentumExplosion
	PatternZone
	PriceBreak
	StopLoss
	TargetHit
	TrendReversal
	TimeExit
)

// String stringifies the provided reason.
func (r Reason) String() string {
	switch r {
	case TrendAligned:
		return "trend aligned"
	case RSICross:
		return "rsi cross"
	case MomentumExplosion:
		return "momentum explosion"
	case PatternZone:
		return "pattern zone"
	case PriceBreak:
		return "price break"
	case StopLoss:
		return "stop loss"
	case TargetHit:
		return "target hit"
	case TrendReversal:
		return "trend reversal"
	case TimeExit:
		return "time exit"
	default:
		return "unknown"
	}
}

// Direction represents market direction.
type Direction int

const (
	Long Direction = iota
	Short
)

// String stringifies the provided direction.
func (d Direction) String() string {
	switch d {
	case Long:
		return "long"
	case Short:
		return "short"
	default:
		return "unknown"
	}
}
