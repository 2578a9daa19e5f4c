package shared

import (
	"time"
)

// PositionUpdate carries a primary timeframe evaluation tick to the position
// manager for exit checks and trailing stop maintenance.
type PositionUpdate struct {
	Bar           Bar
	Verdict       AlignmentVerdict
	TrailingValue float64
	CreatedOn     time.Time
}

// NewPositionUpdate initializes a new position update.
func NewPositionUpdate(bar Bar, verdict AlignmentVerdict, trailingValue float64, created time.Time) PositionUpdate {
	return PositionUpdate{
		Bar:           bar,
		Verdict:       verdict,
		TrailingValue: trailingValue,
		CreatedOn:     created,
	}
}
