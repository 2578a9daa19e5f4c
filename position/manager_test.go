package position

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/peterldowns/testy/assert"
	"github.com/rs/zerolog/log"

	"trendmomentum/shared"
)

// recordingExecutor records execution requests for assertions.
type recordingExecutor struct {
	mtx      sync.Mutex
	brackets []shared.BracketRequest
	stops    []shared.ModifyStopRequest
	closes   []shared.CloseRequest
	err      error
}

func (r *recordingExecutor) SubmitBracket(req shared.BracketRequest) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if r.err != nil {
		return r.err
	}
	r.brackets = append(r.brackets, req)
	return nil
}

func (r *recordingExecutor) ModifyStop(req shared.ModifyStopRequest) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if r.err != nil {
		return r.err
	}
	r.stops = append(r.stops, req)
	return nil
}

func (r *recordingExecutor) ClosePosition(req shared.CloseRequest) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if r.err != nil {
		return r.err
	}
	r.closes = append(r.closes, req)
	return nil
}

type managerHarness struct {
	manager   *Manager
	executor  *recordingExecutor
	messages  []string
	persisted []*Position
}

func setupManager(t *testing.T) *managerHarness {
	h := &managerHarness{executor: &recordingExecutor{}}

	cfg := &ManagerConfig{
		Markets:                []string{"ES"},
		Equity:                 50000,
		TickSize:               0.25,
		TickValue:              12.50,
		RRMultiple:             3,
		MaxDailyLossFraction:   0.03,
		MaxWeeklyLossFraction:  0.06,
		MaxConcurrentPositions: 2,
		MaxExecutionRetries:    3,
		TimeExitAfter:          time.Minute * 10,
		BreakevenThreshold:     0,
		BreakevenOffsetTicks:   2,
		TrailingMultiple:       1,
		Execute:                h.executor,
		Notify: func(message string) {
			h.messages = append(h.messages, message)
		},
		PersistClosedPosition: func(ctx context.Context, position *Position) error {
			h.persisted = append(h.persisted, position)
			return nil
		},
		Logger: &log.Logger,
	}

	m, err := NewManager(cfg)
	assert.NoError(t, err)
	h.manager = m

	return h
}

func submitLong(t *testing.T, h *managerHarness) *Position {
	entry := shared.NewEntrySignal("ES", shared.Long, 4500, 4498, 4506, 2, 2,
		[]shared.Reason{shared.TrendAligned, shared.RSICross, shared.MomentumExplosion,
			shared.PatternZone, shared.PriceBreak}, time.Time{})
	h.manager.handleEntrySignal(&entry)
	assert.Equal(t, shared.Processed, <-entry.Status)

	for _, pos := range h.manager.positions {
		if pos.Market == entry.Market && pos.Direction == entry.Direction {
			return pos
		}
	}

	return nil
}

// ackLast acknowledges the most recently recorded request of the given kind.
func ackLast(h *managerHarness, kind shared.ExecutionKind, success bool, fill float64) {
	var requestID string
	switch kind {
	case shared.EntryExecution:
		requestID = h.executor.brackets[len(h.executor.brackets)-1].RequestID
	case shared.CloseExecution:
		requestID = h.executor.closes[len(h.executor.closes)-1].RequestID
	case shared.StopModifyExecution:
		requestID = h.executor.stops[len(h.executor.stops)-1].RequestID
	}

	h.manager.handleExecutionAck(&shared.ExecutionAck{
		RequestID: requestID,
		Kind:      kind,
		Success:   success,
		FillPrice: fill,
	})
}

func updateAt(low float64, high float64, close float64, verdict shared.AlignmentVerdict,
	trailing float64, at time.Time) *shared.PositionUpdate {
	update := shared.NewPositionUpdate(shared.Bar{
		Market:    "ES",
		Timeframe: shared.FifteenSecond,
		Open:      close,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    100,
	}, verdict, trailing, at)
	return &update
}

func TestManagerConfigValidate(t *testing.T) {
	cfg := &ManagerConfig{}
	assert.Error(t, cfg.Validate())
}

func TestEntryToClosedLifecycle(t *testing.T) {
	h := setupManager(t)

	pos := submitLong(t, h)
	assert.NotNil(t, pos)
	assert.Equal(t, Pending, pos.Status)
	assert.Equal(t, 1, len(h.executor.brackets))
	assert.Equal(t, uint32(2), h.executor.brackets[0].Size)

	// A duplicate same-direction candidate is refused while the slot is live.
	dup := submitLong(t, h)
	assert.Equal(t, pos, dup, cmpopts.EquateComparable(Position{}))
	assert.Equal(t, 1, len(h.executor.brackets))

	// The entry fill re-anchors the bracket.
	ackLast(h, shared.EntryExecution, true, 4500.25)
	assert.Equal(t, Open, pos.Status)
	assert.Equal(t, 4498.25, pos.StopPrice)
	assert.Equal(t, 4506.25, pos.TargetPrice)

	// A bar through the target submits a close.
	h.manager.handleUpdate(updateAt(4504, 4506.5, 4506, shared.BullishAligned, 0, time.Time{}.Add(time.Minute)))
	assert.Equal(t, Closing, pos.Status)
	assert.Equal(t, 1, len(h.executor.closes))
	assert.Equal(t, shared.TargetHit, h.executor.closes[0].Reason)

	// The close fill realizes the profit, persists the position and frees
	// the slot for new entries.
	ackLast(h, shared.CloseExecution, true, 4506.25)
	assert.Equal(t, Closed, pos.Status)
	assert.Equal(t, 12.0, pos.PNLPoints)
	assert.Equal(t, 600.0, h.manager.dailyPNL)
	assert.Equal(t, 600.0, h.manager.weeklyPNL)
	assert.Equal(t, 1, len(h.persisted))
	assert.Equal(t, 0, len(h.manager.positions))
	assert.Equal(t, 0, len(h.manager.live))
}

func TestEntryRefusals(t *testing.T) {
	h := setupManager(t)

	// The daily loss limit suspends entries.
	h.manager.dailyPNL = -1500
	pos := submitLong(t, h)
	assert.Nil(t, pos)
	assert.Equal(t, 0, len(h.executor.brackets))

	// A scheduled reset lifts the daily limit, the weekly limit still binds.
	h.manager.handleReset(resetDaily)
	h.manager.weeklyPNL = -3000
	pos = submitLong(t, h)
	assert.Nil(t, pos)

	h.manager.handleReset(resetWeekly)
	pos = submitLong(t, h)
	assert.NotNil(t, pos)

	// The concurrent position cap applies across markets.
	h.manager.cfg.MaxConcurrentPositions = 1
	entry := shared.NewEntrySignal("ES", shared.Short, 4500, 4502, 4494, 2, 1,
		[]shared.Reason{shared.TrendAligned}, time.Time{})
	h.manager.handleEntrySignal(&entry)
	assert.Equal(t, shared.Processed, <-entry.Status)
	assert.Equal(t, 1, len(h.manager.positions))
}

func TestTrailingStopFlow(t *testing.T) {
	h := setupManager(t)

	pos := submitLong(t, h)
	ackLast(h, shared.EntryExecution, true, 4500)

	// One risk distance in profit activates trailing: breakeven plus the
	// tick offset first, then the tighter trailing value.
	h.manager.handleUpdate(updateAt(4500.5, 4502.5, 4502, shared.BullishAligned, 4501, time.Time{}.Add(time.Minute)))
	assert.Equal(t, TrailingActive, pos.Status)
	assert.Equal(t, 4501.0, pos.StopPrice)
	assert.Equal(t, 1, len(h.executor.stops))
	assert.Equal(t, 4501.0, h.executor.stops[0].StopPrice)

	// A higher trailing value tightens again.
	h.manager.handleUpdate(updateAt(4502, 4505.5, 4505, shared.BullishAligned, 4503, time.Time{}.Add(2*time.Minute)))
	assert.Equal(t, 4503.0, pos.StopPrice)
	assert.Equal(t, 2, len(h.executor.stops))

	// A lower trailing value never loosens the stop.
	h.manager.handleUpdate(updateAt(4502.5, 4505.5, 4505, shared.BullishAligned, 4502, time.Time{}.Add(3*time.Minute)))
	assert.Equal(t, 4503.0, pos.StopPrice)
	assert.Equal(t, 2, len(h.executor.stops))

	// A failed stop modify is logged and retried on the next trailing tick.
	ackLast(h, shared.StopModifyExecution, false, 0)
	assert.Equal(t, TrailingActive, pos.Status)
}

func TestCloseRetriesRejectPosition(t *testing.T) {
	h := setupManager(t)

	pos := submitLong(t, h)
	ackLast(h, shared.EntryExecution, true, 4500)

	// Each failed close reverts the position for re-evaluation, the next
	// tick resubmits, and exhausted retries reject it with an alert.
	for i := 0; i < 3; i++ {
		h.manager.handleUpdate(updateAt(4496, 4500, 4497, shared.BullishAligned, 0,
			time.Time{}.Add(time.Duration(i+1)*time.Minute)))
		ackLast(h, shared.CloseExecution, false, 0)
	}

	assert.Equal(t, Rejected, pos.Status)
	assert.Equal(t, 0, len(h.manager.positions))
	assert.Equal(t, 1, len(h.persisted))
	assert.Equal(t, Rejected, h.persisted[0].Status)

	alerted := false
	for _, msg := range h.messages {
		if strings.HasPrefix(msg, "ALERT") {
			alerted = true
		}
	}
	assert.True(t, alerted)
}

func TestManagerRun(t *testing.T) {
	h := setupManager(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.manager.Run(ctx)
		close(done)
	}()

	entry := shared.NewEntrySignal("ES", shared.Long, 4500, 4498, 4506, 2, 1,
		[]shared.Reason{shared.TrendAligned}, time.Time{})
	h.manager.SendEntrySignal(entry)
	assert.Equal(t, shared.Processed, <-entry.Status)

	req := shared.NewPositionStateRequest("")
	h.manager.SendPositionStateRequest(req)
	states := <-req.Response
	assert.Equal(t, 1, len(states))
	assert.Equal(t, "ES", states[0].Market)
	assert.Equal(t, "pending", states[0].Status)

	cancel()
	<-done
}
