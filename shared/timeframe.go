package shared

import (
	"fmt"
	"time"
)

const (
	// DateLayout is the format layout for parsing dates.
	DateLayout = "2006-01-02 15:04:05"
)

// Timeframe represents the market data time period.
type Timeframe int

const (
	FifteenSecond Timeframe = iota
	OneMinute
	FiveMinute
	FifteenMinute
)

// String stringifies the provided timeframe.
func (t Timeframe) String() string {
	switch t {
	case FifteenSecond:
		return "15s"
	case OneMinute:
		return "1m"
	case FiveMinute:
		return "5m"
	case FifteenMinute:
		return "15m"
	default:
		return "unknown"
	}
}

// ParseTimeframe parses a timeframe from its string form.
func ParseTimeframe(str string) (Timeframe, error) {
	switch str {
	case "15s":
		return FifteenSecond, nil
	case "1m":
		return OneMinute, nil
	case "5m":
		return FiveMinute, nil
	case "15m":
		return FifteenMinute, nil
	default:
		return 0, fmt.Errorf("unknown timeframe: %s", str)
	}
}

// NewYorkTime returns the current time in new york (EST/EDT adjusted automatically).
func NewYorkTime() (time.Time, *time.Location, error) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("loading new york timezone: %w", err)
	}

	now := time.Now().In(loc)
	return now, loc, nil
}
