package shared

import (
	"time"
)

// Bar represents a unit price bar for a market. Bars are immutable once
// emitted and ordered by open time within a timeframe.
type Bar struct {
	Market    string
	Timeframe Timeframe
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	OpenTime  time.Time
}

// Sentiment represents the bar sentiment.
type Sentiment int

const (
	Neutral Sentiment = iota
	Bullish
	Bearish
)

// String stringifies the provided sentiment.
func (s Sentiment) String() string {
	switch s {
	case Neutral:
		return "neutral"
	case Bullish:
		return "bullish"
	case Bearish:
		return "bearish"
	default:
		return "unknown"
	}
}

// FetchSentiment returns the provided bar's sentiment.
func (b *Bar) FetchSentiment() Sentiment {
	sentiment := b.Close - b.Open
	switch {
	case sentiment < 0:
		return Bearish
	case sentiment > 0:
		return Bullish
	default:
		return Neutral
	}
}
