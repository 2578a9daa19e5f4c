package shared

import (
	"math"
	"time"
)

// OrderbookSample represents a point-in-time depth reading for a market,
// sampled from the top levels of the book.
type OrderbookSample struct {
	Market    string
	BidVolume float64
	AskVolume float64
	// Imbalance is the bid to ask volume ratio over the sampled depth.
	// Values above 1 indicate bid pressure, values below 1 ask pressure.
	Imbalance float64
	// Resting orders repeatedly refreshing at a level mask true size. The
	// order book provider reports how many such levels it detected per side.
	BidIcebergs uint32
	AskIcebergs uint32
	CreatedOn   time.Time
}

// NewOrderbookSample initializes a new order book sample, deriving the
// imbalance ratio from the provided side volumes.
func NewOrderbookSample(market string, bidVolume float64, askVolume float64,
	bidIcebergs uint32, askIcebergs uint32, created time.Time) OrderbookSample {
	var imbalance float64
	switch {
	case askVolume > 0:
		imbalance = bidVolume / askVolume
	case bidVolume > 0:
		// A one-sided book with no resting asks is maximal bid pressure,
		// not the absence of it.
		imbalance = math.Inf(1)
	default:
		// An empty sampled depth is balanced, it decides nothing.
		imbalance = 1
	}

	return OrderbookSample{
		Market:      market,
		BidVolume:   bidVolume,
		AskVolume:   askVolume,
		Imbalance:   imbalance,
		BidIcebergs: bidIcebergs,
		AskIcebergs: askIcebergs,
		CreatedOn:   created,
	}
}
