package position

import (
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"

	"trendmomentum/shared"
)

func newLongEntry() *shared.EntrySignal {
	entry := shared.NewEntrySignal("ES", shared.Long, 4500, 4498, 4506, 2, 2,
		[]shared.Reason{shared.TrendAligned, shared.RSICross}, time.Time{})
	return &entry
}

// openLong builds an open long position filled at 4500 with a two point risk
// distance and a 3R target.
func openLong(t *testing.T) *Position {
	pos, err := NewPosition(newLongEntry(), time.Time{})
	assert.NoError(t, err)
	assert.Equal(t, Pending, pos.Status)

	pos.MarkOpen(4500, 3, time.Time{})
	return pos
}

func rangeBar(low float64, high float64, close float64) *shared.Bar {
	return &shared.Bar{
		Market:    "ES",
		Timeframe: shared.FifteenSecond,
		Open:      close,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    100,
	}
}

func TestMarkOpenAnchorsBracket(t *testing.T) {
	pos, err := NewPosition(newLongEntry(), time.Time{})
	assert.NoError(t, err)

	// A fill away from the candidate price re-anchors the stop and target.
	pos.MarkOpen(4500.75, 3, time.Time{})
	assert.Equal(t, Open, pos.Status)
	assert.Equal(t, 4498.75, pos.StopPrice)
	assert.Equal(t, 4506.75, pos.TargetPrice)
}

func TestCheckExitPriority(t *testing.T) {
	window := 10 * time.Minute
	now := time.Time{}.Add(time.Minute)

	// A bar touching both the stop and the target exits at the stop.
	pos := openLong(t)
	exit := pos.CheckExit(rangeBar(4497, 4507, 4500), shared.BullishAligned, now, window, 0)
	assert.NotNil(t, exit)
	assert.Equal(t, shared.StopLoss, exit.Reason)
	assert.Equal(t, pos.StopPrice, exit.Price)

	// The target fires when the stop holds.
	pos = openLong(t)
	exit = pos.CheckExit(rangeBar(4501, 4507, 4506), shared.BullishAligned, now, window, 0)
	assert.NotNil(t, exit)
	assert.Equal(t, shared.TargetHit, exit.Reason)
	assert.Equal(t, pos.TargetPrice, exit.Price)

	// An opposing alignment exits at the bar close.
	pos = openLong(t)
	exit = pos.CheckExit(rangeBar(4500, 4503, 4502), shared.BearishAligned, now, window, 0)
	assert.NotNil(t, exit)
	assert.Equal(t, shared.TrendReversal, exit.Reason)
	assert.Equal(t, 4502.0, exit.Price)

	// A no-trade verdict does not oppose an open long.
	pos = openLong(t)
	exit = pos.CheckExit(rangeBar(4500, 4503, 4502), shared.NoTrade, now, window, 0)
	assert.Nil(t, exit)
}

func TestCheckExitTimeBound(t *testing.T) {
	window := 10 * time.Minute
	pos := openLong(t)

	// Stagnant inside the window, no exit yet.
	exit := pos.CheckExit(rangeBar(4499.5, 4500.5, 4500), shared.BullishAligned,
		time.Time{}.Add(5*time.Minute), window, 0)
	assert.Nil(t, exit)

	// Stagnant past the window, the time exit fires at the close.
	exit = pos.CheckExit(rangeBar(4499.5, 4500.5, 4500), shared.BullishAligned,
		time.Time{}.Add(11*time.Minute), window, 0)
	assert.NotNil(t, exit)
	assert.Equal(t, shared.TimeExit, exit.Reason)

	// A position in profit past the window keeps running.
	exit = pos.CheckExit(rangeBar(4502, 4503.5, 4503), shared.BullishAligned,
		time.Time{}.Add(11*time.Minute), window, 0)
	assert.Nil(t, exit)
}

func TestTrailingActivation(t *testing.T) {
	pos := openLong(t)

	// A favorable move short of the activation multiple keeps the stop put.
	activated := pos.MaybeActivateTrailing(rangeBar(4500, 4501.5, 4501), 1, 4499, 0.5)
	assert.False(t, activated)
	assert.Equal(t, Open, pos.Status)
	assert.Equal(t, 4498.0, pos.StopPrice)

	// At one multiple of the risk distance the stop moves to breakeven plus
	// the offset, then adopts the tighter trailing value.
	activated = pos.MaybeActivateTrailing(rangeBar(4500.5, 4502.5, 4502), 1, 4501, 0.5)
	assert.True(t, activated)
	assert.Equal(t, TrailingActive, pos.Status)
	assert.Equal(t, 4501.0, pos.StopPrice)

	// Subsequent tightening only ever raises a long stop.
	assert.True(t, pos.TightenStop(4503, 4505))
	assert.Equal(t, 4503.0, pos.StopPrice)
	assert.False(t, pos.TightenStop(4502, 4505))
	assert.Equal(t, 4503.0, pos.StopPrice)

	// A candidate at or above the current price is refused.
	assert.False(t, pos.TightenStop(4505, 4505))
	assert.Equal(t, 4503.0, pos.StopPrice)
}

func TestShortStopNeverLoosens(t *testing.T) {
	entry := shared.NewEntrySignal("NQ", shared.Short, 15000, 15008, 14976, 8, 1,
		[]shared.Reason{shared.TrendAligned}, time.Time{})
	pos, err := NewPosition(&entry, time.Time{})
	assert.NoError(t, err)
	pos.MarkOpen(15000, 3, time.Time{})

	assert.True(t, pos.TightenStop(15004, 14990))
	assert.Equal(t, 15004.0, pos.StopPrice)
	assert.False(t, pos.TightenStop(15006, 14990))
	assert.False(t, pos.TightenStop(14989, 14990))
	assert.Equal(t, 15004.0, pos.StopPrice)
}

func TestCloseRetriesExhaust(t *testing.T) {
	pos := openLong(t)
	pos.Status = TrailingActive

	pos.BeginClose(shared.TargetHit)
	assert.Equal(t, Closing, pos.Status)

	// Failed closes revert to the prior state for re-evaluation until the
	// retry bound rejects the position.
	assert.Equal(t, TrailingActive, pos.CloseFailed(3))
	pos.BeginClose(shared.TargetHit)
	assert.Equal(t, TrailingActive, pos.CloseFailed(3))
	pos.BeginClose(shared.TargetHit)
	assert.Equal(t, Rejected, pos.CloseFailed(3))
	assert.True(t, pos.Status.Terminal())
}

func TestEntryRetriesExhaust(t *testing.T) {
	pos, err := NewPosition(newLongEntry(), time.Time{})
	assert.NoError(t, err)

	assert.Equal(t, Pending, pos.EntryFailed(3))
	assert.Equal(t, Pending, pos.EntryFailed(3))
	assert.Equal(t, Rejected, pos.EntryFailed(3))
}

func TestMarkClosedRealizedPoints(t *testing.T) {
	pos := openLong(t)
	pos.BeginClose(shared.TargetHit)
	pos.MarkClosed(4506, time.Time{}.Add(time.Hour))

	assert.Equal(t, Closed, pos.Status)
	// Six points across two contracts.
	assert.Equal(t, 12.0, pos.PNLPoints)

	entry := shared.NewEntrySignal("NQ", shared.Short, 15000, 15008, 14976, 8, 1,
		[]shared.Reason{shared.TrendAligned}, time.Time{})
	short, err := NewPosition(&entry, time.Time{})
	assert.NoError(t, err)
	short.MarkOpen(15000, 3, time.Time{})
	short.BeginClose(shared.StopLoss)
	short.MarkClosed(15008, time.Time{}.Add(time.Hour))
	assert.Equal(t, -8.0, short.PNLPoints)
}
