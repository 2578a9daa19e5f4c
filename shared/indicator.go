package shared

import (
	"time"
)

// IndicatorSnapshot carries externally computed indicator values tied to one
// bar. The engine only reads named fields here, it never computes indicator
// math itself.
type IndicatorSnapshot struct {
	Market    string
	Timeframe Timeframe
	OpenTime  time.Time

	// Oscillator and trend values.
	RSI           float64
	EMAFast       float64
	EMASlow       float64
	MACDHistogram float64

	// Explosion (momentum strength) values.
	WAEExplosion float64
	WAETrend     float64
	WAEDeadZone  float64

	// Volatility and trailing values.
	ATR float64
	SAR float64

	// Unmitigated pattern zones. Zones are only flagged while unfilled,
	// mitigation is tracked by the indicator provider.
	BullishOrderBlock bool
	OrderBlockBottom  float64
	BearishOrderBlock bool
	OrderBlockTop     float64
	BullishGap        bool
	GapTop            float64
	BearishGap        bool
	GapBottom         float64
}
