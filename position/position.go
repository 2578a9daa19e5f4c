package position

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"trendmomentum/shared"
)

// Status represents the lifecycle status of a position.
type Status int

const (
	Pending Status = iota
	Open
	TrailingActive
	Closing
	Closed
	Rejected
)

// String stringifies the provided position status.
func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Open:
		return "open"
	case TrailingActive:
		return "trailing active"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Terminal asserts whether the status is terminal.
func (s Status) Terminal() bool {
	return s == Closed || s == Rejected
}

// Position represents a market position opened by a confirmed, sized entry.
// A position is owned exclusively by the lifecycle manager from creation to
// its terminal state.
type Position struct {
	ID           string
	Market       string
	Direction    shared.Direction
	EntryPrice   float64
	Size         uint32
	StopPrice    float64
	TargetPrice  float64
	RiskDistance float64
	EntryReasons string
	Status       Status
	RetryCount   uint32
	CreatedOn    time.Time
	OpenedAt     time.Time
	ClosedAt     time.Time
	ExitPrice    float64
	ExitReason   shared.Reason
	// PNLPoints is the realized profit and loss in price points across all
	// contracts of the position.
	PNLPoints float64

	// prior is the state a failed close attempt reverts to.
	prior Status
}

// NewPosition initializes a new pending position from the provided entry signal.
func NewPosition(entry *shared.EntrySignal, created time.Time) (*Position, error) {
	if entry == nil {
		return nil, fmt.Errorf("entry signal cannot be nil")
	}

	pos := &Position{
		ID:           uuid.New().String(),
		Market:       entry.Market,
		Direction:    entry.Direction,
		EntryPrice:   entry.Price,
		Size:         entry.Size,
		StopPrice:    entry.StopLoss,
		TargetPrice:  entry.Target,
		RiskDistance: entry.RiskDistance,
		EntryReasons: shared.StringifyReasons(entry.Reasons),
		Status:       Pending,
		CreatedOn:    created,
	}

	return pos, nil
}

// MarkOpen transitions the position to open at the provided fill price,
// anchoring the stop and target to the fill.
func (p *Position) MarkOpen(fillPrice float64, rrMultiple float64, at time.Time) {
	p.EntryPrice = fillPrice
	p.Status = Open
	p.OpenedAt = at

	switch p.Direction {
	case shared.Long:
		p.StopPrice = fillPrice - p.RiskDistance
		p.TargetPrice = fillPrice + rrMultiple*p.RiskDistance
	case shared.Short:
		p.StopPrice = fillPrice + p.RiskDistance
		p.TargetPrice = fillPrice - rrMultiple*p.RiskDistance
	}
}

// UnrealizedPoints returns the unrealized move in price points per contract,
// positive when in the position's favor.
func (p *Position) UnrealizedPoints(price float64) float64 {
	switch p.Direction {
	case shared.Long:
		return price - p.EntryPrice
	default:
		return p.EntryPrice - price
	}
}

// CheckExit evaluates the exit triggers for the provided tick in fixed
// priority order: stop, target, trend reversal, time exit. The first trigger
// that fires wins, exactly one exit decision is produced per tick.
func (p *Position) CheckExit(bar *shared.Bar, verdict shared.AlignmentVerdict, now time.Time,
	timeExitAfter time.Duration, breakevenThreshold float64) *shared.ExitSignal {
	if p.Status != Open && p.Status != TrailingActive {
		return nil
	}

	stopHit := false
	targetHit := false
	switch p.Direction {
	case shared.Long:
		stopHit = bar.Low <= p.StopPrice
		targetHit = bar.High >= p.TargetPrice
	case shared.Short:
		stopHit = bar.High >= p.StopPrice
		targetHit = bar.Low <= p.TargetPrice
	}

	switch {
	case stopHit:
		exit := shared.NewExitSignal(p.ID, p.Market, p.Direction, p.StopPrice, shared.StopLoss, now)
		return &exit
	case targetHit:
		exit := shared.NewExitSignal(p.ID, p.Market, p.Direction, p.TargetPrice, shared.TargetHit, now)
		return &exit
	case verdict.Opposes(p.Direction):
		exit := shared.NewExitSignal(p.ID, p.Market, p.Direction, bar.Close, shared.TrendReversal, now)
		return &exit
	case now.Sub(p.OpenedAt) > timeExitAfter && p.UnrealizedPoints(bar.Close) <= breakevenThreshold:
		exit := shared.NewExitSignal(p.ID, p.Market, p.Direction, bar.Close, shared.TimeExit, now)
		return &exit
	default:
		return nil
	}
}

// TightenStop adopts the provided candidate stop only if it is at least as
// favorable to the position as the current stop and does not cross the
// current price. The stop never moves against the position's favor.
func (p *Position) TightenStop(candidate float64, currentPrice float64) bool {
	switch p.Direction {
	case shared.Long:
		if candidate >= p.StopPrice && candidate < currentPrice {
			p.StopPrice = candidate
			return true
		}
	case shared.Short:
		if candidate <= p.StopPrice && candidate > currentPrice {
			p.StopPrice = candidate
			return true
		}
	}

	return false
}

// MaybeActivateTrailing transitions an open position to trailing once the
// unrealized favorable move covers the configured multiple of the initial
// risk distance. On activation the stop is first moved to breakeven plus the
// provided offset, then tightened to the trailing value when that is better.
func (p *Position) MaybeActivateTrailing(bar *shared.Bar, trailingMultiple float64,
	trailingValue float64, breakevenOffset float64) bool {
	if p.Status != Open {
		return false
	}
	if p.UnrealizedPoints(bar.Close) < trailingMultiple*p.RiskDistance {
		return false
	}

	p.Status = TrailingActive

	var breakeven float64
	switch p.Direction {
	case shared.Long:
		breakeven = p.EntryPrice + breakevenOffset
	case shared.Short:
		breakeven = p.EntryPrice - breakevenOffset
	}

	p.TightenStop(breakeven, bar.Close)
	if trailingValue > 0 {
		p.TightenStop(trailingValue, bar.Close)
	}

	return true
}

// BeginClose transitions the position to closing for the provided exit
// reason. Exit evaluation stops until the execution provider acknowledges.
func (p *Position) BeginClose(reason shared.Reason) {
	p.prior = p.Status
	p.Status = Closing
	p.ExitReason = reason
}

// CloseFailed records a failed close attempt, reverting to the prior state
// while retries remain and rejecting the position once they are exhausted.
func (p *Position) CloseFailed(maxRetries uint32) Status {
	p.RetryCount++
	if p.RetryCount >= maxRetries {
		p.Status = Rejected
		return p.Status
	}

	p.Status = p.prior
	return p.Status
}

// EntryFailed records a failed entry submission, keeping the position pending
// while retries remain and rejecting it once they are exhausted.
func (p *Position) EntryFailed(maxRetries uint32) Status {
	p.RetryCount++
	if p.RetryCount >= maxRetries {
		p.Status = Rejected
		return p.Status
	}

	p.Status = Pending
	return p.Status
}

// MarkClosed transitions the position to its closed terminal state at the
// provided exit price and records the realized move.
func (p *Position) MarkClosed(exitPrice float64, at time.Time) {
	p.ExitPrice = exitPrice
	p.ClosedAt = at
	p.Status = Closed

	switch p.Direction {
	case shared.Long:
		p.PNLPoints = (exitPrice - p.EntryPrice) * float64(p.Size)
	case shared.Short:
		p.PNLPoints = (p.EntryPrice - exitPrice) * float64(p.Size)
	}
}

// State returns a read-only view of the position.
func (p *Position) State() shared.PositionState {
	return shared.PositionState{
		ID:         p.ID,
		Market:     p.Market,
		Direction:  p.Direction,
		EntryPrice: p.EntryPrice,
		StopPrice:  p.StopPrice,
		Target:     p.TargetPrice,
		Size:       p.Size,
		Status:     p.Status.String(),
		OpenedAt:   p.OpenedAt,
	}
}
