package shared

import (
	"bytes"
	"time"
)

// StatusCode represents a request or signal status code.
type StatusCode int

const (
	Processing StatusCode = iota
	Processed
)

// CandidateSignal represents a fused entry candidate awaiting order book
// confirmation. A candidate is consumed exactly once by the confirmation
// gate and then discarded.
type CandidateSignal struct {
	Market    string
	Direction Direction
	Price     float64
	BarTime   time.Time
	Reasons   []Reason
	CreatedOn time.Time
}

// NewCandidateSignal initializes a new candidate signal.
func NewCandidateSignal(market string, direction Direction, price float64,
	reasons []Reason, barTime time.Time, created time.Time) CandidateSignal {
	return CandidateSignal{
		Market:    market,
		Direction: direction,
		Price:     price,
		BarTime:   barTime,
		Reasons:   reasons,
		CreatedOn: created,
	}
}

// EntrySignal represents a confirmed and sized entry for a position.
type EntrySignal struct {
	Market       string
	Direction    Direction
	Price        float64
	StopLoss     float64
	Target       float64
	RiskDistance float64
	Size         uint32
	Reasons      []Reason
	CreatedOn    time.Time
	Status       chan StatusCode
}

// NewEntrySignal initializes a new entry signal.
func NewEntrySignal(market string, direction Direction, price float64, stopLoss float64,
	target float64, riskDistance float64, size uint32, reasons []Reason, created time.Time) EntrySignal {
	return EntrySignal{
		Market:       market,
		Direction:    direction,
		Price:        price,
		StopLoss:     stopLoss,
		Target:       target,
		RiskDistance: riskDistance,
		Size:         size,
		Reasons:      reasons,
		CreatedOn:    created,
		Status:       make(chan StatusCode, 1),
	}
}

// ExitSignal represents an exit decision for a position. It is emitted to the
// execution provider and not retained after acknowledgement.
type ExitSignal struct {
	PositionID string
	Market     string
	Direction  Direction
	Price      float64
	Reason     Reason
	CreatedOn  time.Time
}

// NewExitSignal initializes a new exit signal.
func NewExitSignal(positionID string, market string, direction Direction, price float64,
	reason Reason, created time.Time) ExitSignal {
	return ExitSignal{
		PositionID: positionID,
		Market:     market,
		Direction:  direction,
		Price:      price,
		Reason:     reason,
		CreatedOn:  created,
	}
}

// StringifyReasons stringifies the collection of reasons provided.
func StringifyReasons(reasons []Reason) string {
	buf := bytes.NewBuffer([]byte{})
	for idx := range reasons {
		buf.WriteString(reasons[idx].String())
		if idx < len(reasons)-1 {
			buf.WriteString(",")
		}
	}

	return buf.String()
}
