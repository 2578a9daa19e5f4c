package shared

import (
	"time"
)

// ExecutionKind represents the kind of execution request.
type ExecutionKind int

const (
	EntryExecution ExecutionKind = iota
	StopModifyExecution
	CloseExecution
)

// String stringifies the provided execution kind.
func (k ExecutionKind) String() string {
	switch k {
	case EntryExecution:
		return "entry"
	case StopModifyExecution:
		return "stop modify"
	case CloseExecution:
		return "close"
	default:
		return "unknown"
	}
}

// BracketRequest represents a bracket order submission combining entry,
// stop loss and target.
type BracketRequest struct {
	RequestID  string
	PositionID string
	Market     string
	Direction  Direction
	Size       uint32
	Entry      float64
	StopLoss   float64
	Target     float64
	CreatedOn  time.Time
}

// ModifyStopRequest represents a stop price modification for a live position.
type ModifyStopRequest struct {
	RequestID  string
	PositionID string
	Market     string
	StopPrice  float64
	CreatedOn  time.Time
}

// CloseRequest represents a close request for a live position.
type CloseRequest struct {
	RequestID  string
	PositionID string
	Market     string
	Reason     Reason
	CreatedOn  time.Time
}

// ExecutionAck represents an asynchronous acknowledgement or failure for a
// previously submitted execution request.
type ExecutionAck struct {
	RequestID  string
	PositionID string
	Kind       ExecutionKind
	Success    bool
	FillPrice  float64
	Detail     string
	CreatedOn  time.Time
}

// ExecutionProvider defines the requirements for routing orders. All calls
// are asynchronous, results arrive as execution acknowledgements.
type ExecutionProvider interface {
	// SubmitBracket submits a bracket order for execution.
	SubmitBracket(req BracketRequest) error
	// ModifyStop modifies the stop price of a live position.
	ModifyStop(req ModifyStopRequest) error
	// ClosePosition closes a live position at market.
	ClosePosition(req CloseRequest) error
}
