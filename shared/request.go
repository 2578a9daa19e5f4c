package shared

import (
	"time"
)

// PositionState represents a read-only view of a live position, served for
// monitoring and cross-market filters.
type PositionState struct {
	ID         string
	Market     string
	Direction  Direction
	EntryPrice float64
	StopPrice  float64
	Target     float64
	Size       uint32
	Status     string
	OpenedAt   time.Time
}

// PositionStateRequest represents a request to fetch the live positions of a
// market. An empty market fetches all live positions.
type PositionStateRequest struct {
	Market   string
	Response chan []PositionState
}

// NewPositionStateRequest initializes a new position state request.
func NewPositionStateRequest(market string) PositionStateRequest {
	return PositionStateRequest{
		Market:   market,
		Response: make(chan []PositionState, 1),
	}
}

// AverageVolumeRequest represents a request to fetch the rolling average
// volume for a market.
type AverageVolumeRequest struct {
	Market    string
	Timeframe Timeframe
	Response  chan float64
}

// NewAverageVolumeRequest initializes a new average volume request.
func NewAverageVolumeRequest(market string, timeframe Timeframe) AverageVolumeRequest {
	return AverageVolumeRequest{
		Market:    market,
		Timeframe: timeframe,
		Response:  make(chan float64, 1),
	}
}
