package orderbook

import (
	"time"

	"github.com/google/uuid"

	"trendmomentum/shared"
)

// Outcome represents the terminal outcome of a confirmation window.
type Outcome int

const (
	Pending Outcome = iota
	Confirmed
	Rejected
	TimedOut
)

// String stringifies the provided outcome.
func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Confirmed:
		return "confirmed"
	case Rejected:
		return "rejected"
	case TimedOut:
		return "timed out"
	default:
		return "unknown"
	}
}

// Window represents a live confirmation window scanning order book pressure
// for one candidate. At most one live window exists per market and direction,
// owned exclusively by the gate. Its outcome is set exactly once and is
// terminal.
type Window struct {
	ID        string
	Market    string
	Direction shared.Direction
	Candidate shared.CandidateSignal
	OpenedAt  time.Time
	Deadline  time.Time
	Samples   []shared.OrderbookSample
	Outcome   Outcome
}

// NewWindow initializes a new confirmation window for the provided candidate.
func NewWindow(candidate shared.CandidateSignal, openedAt time.Time, duration time.Duration) *Window {
	return &Window{
		ID:        uuid.New().String(),
		Market:    candidate.Market,
		Direction: candidate.Direction,
		Candidate: candidate,
		OpenedAt:  openedAt,
		Deadline:  openedAt.Add(duration),
		Samples:   make([]shared.OrderbookSample, 0, 8),
		Outcome:   Pending,
	}
}
