package position

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"trendmomentum/shared"
)

const (
	// bufferSize is the default buffer size for channels.
	bufferSize = 64
)

// resetKind represents a scheduled profit and loss counter reset.
type resetKind int

const (
	resetDaily resetKind = iota
	resetWeekly
)

// liveKey keys live positions by market and direction. At most one
// non-terminal position exists per key.
type liveKey struct {
	market    string
	direction shared.Direction
}

// ManagerConfig represents the position lifecycle manager configuration.
type ManagerConfig struct {
	// Markets represents the tracked markets.
	Markets []string
	// Equity is the account equity used for loss limits.
	Equity float64
	// TickSize is the minimum price increment.
	TickSize float64
	// TickValue is the monetary value of one tick per contract.
	TickValue float64
	// RRMultiple is the target distance multiple of the risk distance.
	RRMultiple float64
	// MaxDailyLossFraction suspends entries once breached.
	MaxDailyLossFraction float64
	// MaxWeeklyLossFraction suspends entries once breached.
	MaxWeeklyLossFraction float64
	// MaxConcurrentPositions caps live positions across markets.
	MaxConcurrentPositions uint32
	// MaxExecutionRetries bounds execution retry attempts.
	MaxExecutionRetries uint32
	// TimeExitAfter bounds how long a stagnant position is held.
	TimeExitAfter time.Duration
	// BreakevenThreshold is the unrealized move at or below which a time
	// exit fires, in price points.
	BreakevenThreshold float64
	// BreakevenOffsetTicks offsets the breakeven stop move.
	BreakevenOffsetTicks uint32
	// TrailingMultiple is the favorable move multiple activating the
	// trailing stop.
	TrailingMultiple float64
	// Execute routes orders for execution.
	Execute shared.ExecutionProvider
	// Notify sends the provided message.
	Notify func(message string)
	// PersistClosedPosition persists the provided terminal position.
	PersistClosedPosition func(ctx context.Context, position *Position) error
	// JobScheduler schedules the profit and loss counter resets.
	JobScheduler *gocron.Scheduler
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *ManagerConfig) Validate() error {
	var errs error

	if len(cfg.Markets) == 0 {
		errs = errors.Join(errs, fmt.Errorf("no markets provided for position manager"))
	}
	if cfg.Equity <= 0 {
		errs = errors.Join(errs, fmt.Errorf("equity must be positive"))
	}
	if cfg.TickSize <= 0 {
		errs = errors.Join(errs, fmt.Errorf("tick size must be positive"))
	}
	if cfg.TickValue <= 0 {
		errs = errors.Join(errs, fmt.Errorf("tick value must be positive"))
	}
	if cfg.RRMultiple <= 0 {
		errs = errors.Join(errs, fmt.Errorf("risk reward multiple must be positive"))
	}
	if cfg.MaxExecutionRetries == 0 {
		errs = errors.Join(errs, fmt.Errorf("max execution retries must be positive"))
	}
	if cfg.Execute == nil {
		errs = errors.Join(errs, fmt.Errorf("execution provider cannot be nil"))
	}
	if cfg.Notify == nil {
		errs = errors.Join(errs, fmt.Errorf("notify function cannot be nil"))
	}
	if cfg.PersistClosedPosition == nil {
		errs = errors.Join(errs, fmt.Errorf("persist closed position function cannot be nil"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Manager manages positions through their lifecycles. All position state is
// owned exclusively by the manager's run loop, updates for a market are
// processed to completion in arrival order.
type Manager struct {
	cfg           *ManagerConfig
	positions     map[string]*Position
	live          map[liveKey]string
	requests      map[string]string
	entrySignals  chan shared.EntrySignal
	updates       chan shared.PositionUpdate
	acks          chan shared.ExecutionAck
	stateRequests chan shared.PositionStateRequest
	resets        chan resetKind
	dailyPNL      float64
	weeklyPNL     float64
}

// NewManager initializes a new position lifecycle manager.
func NewManager(cfg *ManagerConfig) (*Manager, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:           cfg,
		positions:     make(map[string]*Position),
		live:          make(map[liveKey]string),
		requests:      make(map[string]string),
		entrySignals:  make(chan shared.EntrySignal, bufferSize),
		updates:       make(chan shared.PositionUpdate, bufferSize),
		acks:          make(chan shared.ExecutionAck, bufferSize),
		stateRequests: make(chan shared.PositionStateRequest, bufferSize),
		resets:        make(chan resetKind, 2),
	}

	if cfg.JobScheduler != nil {
		_, err = cfg.JobScheduler.Every(1).Day().At("00:00").Do(func() {
			m.resets <- resetDaily
		})
		if err != nil {
			return nil, fmt.Errorf("scheduling daily reset: %w", err)
		}

		_, err = cfg.JobScheduler.Every(1).Monday().At("00:00").Do(func() {
			m.resets <- resetWeekly
		})
		if err != nil {
			return nil, fmt.Errorf("scheduling weekly reset: %w", err)
		}
	}

	return m, nil
}

// SendEntrySignal relays the provided entry signal for processing.
func (m *Manager) SendEntrySignal(signal shared.EntrySignal) {
	select {
	case m.entrySignals <- signal:
		// do nothing.
	default:
		m.cfg.Logger.Error().Msgf("entry signal channel at capacity: %d/%d",
			len(m.entrySignals), bufferSize)
	}
}

// SendPositionUpdate relays the provided evaluation tick for processing.
func (m *Manager) SendPositionUpdate(update shared.PositionUpdate) {
	select {
	case m.updates <- update:
		// do nothing.
	default:
		m.cfg.Logger.Error().Msgf("position update channel at capacity: %d/%d",
			len(m.updates), bufferSize)
	}
}

// SendExecutionAck relays the provided execution acknowledgement for processing.
func (m *Manager) SendExecutionAck(ack shared.ExecutionAck) {
	select {
	case m.acks <- ack:
		// do nothing.
	default:
		m.cfg.Logger.Error().Msgf("execution ack channel at capacity: %d/%d",
			len(m.acks), bufferSize)
	}
}

// SendPositionStateRequest relays the provided position state request for processing.
func (m *Manager) SendPositionStateRequest(req shared.PositionStateRequest) {
	select {
	case m.stateRequests <- req:
		// do nothing.
	default:
		m.cfg.Logger.Error().Msgf("position state request channel at capacity: %d/%d",
			len(m.stateRequests), bufferSize)
	}
}

// refuseEntry asserts whether the provided entry signal has to be refused by
// the risk limits, returning the refusal detail.
func (m *Manager) refuseEntry(signal *shared.EntrySignal) (bool, string) {
	if _, ok := m.live[liveKey{market: signal.Market, direction: signal.Direction}]; ok {
		return true, fmt.Sprintf("%s already has a live %s position", signal.Market, signal.Direction.String())
	}
	if uint32(len(m.positions)) >= m.cfg.MaxConcurrentPositions {
		return true, fmt.Sprintf("max concurrent positions reached: %d", len(m.positions))
	}
	if m.dailyPNL <= -m.cfg.MaxDailyLossFraction*m.cfg.Equity {
		return true, fmt.Sprintf("daily loss limit reached: %.2f", m.dailyPNL)
	}
	if m.weeklyPNL <= -m.cfg.MaxWeeklyLossFraction*m.cfg.Equity {
		return true, fmt.Sprintf("weekly loss limit reached: %.2f", m.weeklyPNL)
	}

	return false, ""
}

// submitEntry submits a bracket order for the provided pending position.
func (m *Manager) submitEntry(pos *Position) {
	req := shared.BracketRequest{
		RequestID:  uuid.New().String(),
		PositionID: pos.ID,
		Market:     pos.Market,
		Direction:  pos.Direction,
		Size:       pos.Size,
		Entry:      pos.EntryPrice,
		StopLoss:   pos.StopPrice,
		Target:     pos.TargetPrice,
		CreatedOn:  pos.CreatedOn,
	}

	m.requests[req.RequestID] = pos.ID
	err := m.cfg.Execute.SubmitBracket(req)
	if err != nil {
		m.cfg.Logger.Error().Msgf("submitting bracket for %s: %v", pos.Market, err)
		delete(m.requests, req.RequestID)
		m.entryFailed(pos)
	}
}

// submitClose submits a close request for the provided closing position.
func (m *Manager) submitClose(pos *Position, at time.Time) {
	req := shared.CloseRequest{
		RequestID:  uuid.New().String(),
		PositionID: pos.ID,
		Market:     pos.Market,
		Reason:     pos.ExitReason,
		CreatedOn:  at,
	}

	m.requests[req.RequestID] = pos.ID
	err := m.cfg.Execute.ClosePosition(req)
	if err != nil {
		m.cfg.Logger.Error().Msgf("submitting close for %s: %v", pos.Market, err)
		delete(m.requests, req.RequestID)
		m.closeFailed(pos)
	}
}

// submitStopModify submits a stop modification for the provided position.
// The stop is adopted locally first, a failed modification is surfaced via
// the acknowledgement path and re-sent on the next trailing tick.
func (m *Manager) submitStopModify(pos *Position) {
	req := shared.ModifyStopRequest{
		RequestID:  uuid.New().String(),
		PositionID: pos.ID,
		Market:     pos.Market,
		StopPrice:  pos.StopPrice,
	}

	m.requests[req.RequestID] = pos.ID
	err := m.cfg.Execute.ModifyStop(req)
	if err != nil {
		m.cfg.Logger.Error().Msgf("submitting stop modify for %s: %v", pos.Market, err)
		delete(m.requests, req.RequestID)
	}
}

// archive persists the provided terminal position and releases its slot.
func (m *Manager) archive(pos *Position) {
	err := m.cfg.PersistClosedPosition(context.Background(), pos)
	if err != nil {
		m.cfg.Logger.Error().Msgf("persisting %s position (%s): %v", pos.Market, pos.ID, err)
	}

	delete(m.positions, pos.ID)
	delete(m.live, liveKey{market: pos.Market, direction: pos.Direction})
}

// handleEntrySignal processes the provided entry signal.
func (m *Manager) handleEntrySignal(signal *shared.EntrySignal) {
	defer func() {
		if signal.Status != nil {
			signal.Status <- shared.Processed
		}
	}()

	refused, detail := m.refuseEntry(signal)
	if refused {
		m.cfg.Logger.Info().Str("market", signal.Market).Msgf("refusing entry: %s", detail)
		return
	}

	now, _, err := shared.NewYorkTime()
	if err != nil {
		m.cfg.Logger.Error().Msgf("fetching new york time: %v", err)
		return
	}

	pos, err := NewPosition(signal, now)
	if err != nil {
		m.cfg.Logger.Error().Msgf("creating new position: %v", err)
		return
	}

	m.positions[pos.ID] = pos
	m.live[liveKey{market: pos.Market, direction: pos.Direction}] = pos.ID
	m.submitEntry(pos)

	m.cfg.Notify(fmt.Sprintf("Submitted new %s position (%s) for %s @ %.2f with stop %.2f and target %.2f",
		pos.Direction.String(), pos.ID, pos.Market, pos.EntryPrice, pos.StopPrice, pos.TargetPrice))
}

// entryFailed processes a failed entry submission for the provided position.
func (m *Manager) entryFailed(pos *Position) {
	status := pos.EntryFailed(m.cfg.MaxExecutionRetries)
	if status == Rejected {
		m.cfg.Logger.Error().Str("market", pos.Market).Str("position", pos.ID).
			Msg("entry retries exhausted, position rejected")
		m.cfg.Notify(fmt.Sprintf("ALERT: entry for %s position (%s) on %s rejected after %d attempts",
			pos.Direction.String(), pos.ID, pos.Market, pos.RetryCount))
		m.archive(pos)
		return
	}

	m.cfg.Logger.Info().Str("market", pos.Market).Str("position", pos.ID).
		Uint32("attempt", pos.RetryCount).Msg("retrying entry submission")
	m.submitEntry(pos)
}

// closeFailed processes a failed close attempt for the provided position.
func (m *Manager) closeFailed(pos *Position) {
	status := pos.CloseFailed(m.cfg.MaxExecutionRetries)
	if status == Rejected {
		m.cfg.Logger.Error().Str("market", pos.Market).Str("position", pos.ID).
			Msg("close retries exhausted, position rejected")
		m.cfg.Notify(fmt.Sprintf("ALERT: close for %s position (%s) on %s rejected after %d attempts, manual intervention required",
			pos.Direction.String(), pos.ID, pos.Market, pos.RetryCount))
		m.archive(pos)
		return
	}

	m.cfg.Logger.Info().Str("market", pos.Market).Str("position", pos.ID).
		Uint32("attempt", pos.RetryCount).Str("status", status.String()).
		Msg("close failed, reverting for re-evaluation")
}

// handleExecutionAck processes the provided execution acknowledgement.
func (m *Manager) handleExecutionAck(ack *shared.ExecutionAck) {
	posID, ok := m.requests[ack.RequestID]
	if !ok {
		m.cfg.Logger.Error().Msgf("no pending request found with id %s", ack.RequestID)
		return
	}
	delete(m.requests, ack.RequestID)

	pos, ok := m.positions[posID]
	if !ok {
		m.cfg.Logger.Error().Msgf("no live position found with id %s", posID)
		return
	}

	now, _, err := shared.NewYorkTime()
	if err != nil {
		m.cfg.Logger.Error().Msgf("fetching new york time: %v", err)
		return
	}

	switch ack.Kind {
	case shared.EntryExecution:
		if !ack.Success {
			m.entryFailed(pos)
			return
		}

		pos.MarkOpen(ack.FillPrice, m.cfg.RRMultiple, now)
		m.cfg.Logger.Info().Str("market", pos.Market).Str("position", pos.ID).
			Float64("fill", ack.FillPrice).Float64("stop", pos.StopPrice).
			Float64("target", pos.TargetPrice).Msg("position opened")

	case shared.CloseExecution:
		if !ack.Success {
			m.closeFailed(pos)
			return
		}

		pos.MarkClosed(ack.FillPrice, now)
		realized := pos.PNLPoints / m.cfg.TickSize * m.cfg.TickValue
		m.dailyPNL += realized
		m.weeklyPNL += realized

		m.cfg.Notify(fmt.Sprintf("Closed %s position (%s) for %s @ %.2f (%s)",
			pos.Direction.String(), pos.ID, pos.Market, pos.ExitPrice, pos.ExitReason.String()))
		m.archive(pos)

	case shared.StopModifyExecution:
		if !ack.Success {
			m.cfg.Logger.Warn().Str("market", pos.Market).Str("position", pos.ID).
				Msgf("stop modify failed: %s", ack.Detail)
		}
	}
}

// handleUpdate evaluates exit triggers and trailing stop maintenance for the
// market's live positions on the provided tick.
func (m *Manager) handleUpdate(update *shared.PositionUpdate) {
	for _, pos := range m.positions {
		if pos.Market != update.Bar.Market {
			continue
		}

		exit := pos.CheckExit(&update.Bar, update.Verdict, update.CreatedOn,
			m.cfg.TimeExitAfter, m.cfg.BreakevenThreshold)
		if exit != nil {
			pos.BeginClose(exit.Reason)
			m.cfg.Logger.Info().Str("market", pos.Market).Str("position", pos.ID).
				Str("reason", exit.Reason.String()).Float64("price", exit.Price).
				Msg("exit decision")
			m.submitClose(pos, exit.CreatedOn)
			continue
		}

		switch pos.Status {
		case Open:
			offset := float64(m.cfg.BreakevenOffsetTicks) * m.cfg.TickSize
			if pos.MaybeActivateTrailing(&update.Bar, m.cfg.TrailingMultiple, update.TrailingValue, offset) {
				m.cfg.Logger.Info().Str("market", pos.Market).Str("position", pos.ID).
					Float64("stop", pos.StopPrice).Msg("trailing stop activated")
				m.submitStopModify(pos)
			}
		case TrailingActive:
			if update.TrailingValue > 0 && pos.TightenStop(update.TrailingValue, update.Bar.Close) {
				m.submitStopModify(pos)
			}
		}
	}
}

// handleStateRequest serves a read-only view of the live positions.
func (m *Manager) handleStateRequest(req *shared.PositionStateRequest) {
	states := make([]shared.PositionState, 0, len(m.positions))
	for _, pos := range m.positions {
		if req.Market != "" && pos.Market != req.Market {
			continue
		}

		states = append(states, pos.State())
	}

	req.Response <- states
}

// handleReset resets the scheduled profit and loss counter.
func (m *Manager) handleReset(kind resetKind) {
	switch kind {
	case resetDaily:
		m.dailyPNL = 0
	case resetWeekly:
		m.weeklyPNL = 0
	}
}

// Run manages the lifecycle processes of the position manager.
func (m *Manager) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case signal := <-m.entrySignals:
			m.handleEntrySignal(&signal)
		case update := <-m.updates:
			m.handleUpdate(&update)
		case ack := <-m.acks:
			m.handleExecutionAck(&ack)
		case req := <-m.stateRequests:
			m.handleStateRequest(&req)
		case kind := <-m.resets:
			m.handleReset(kind)
		}
	}
}
