package shared

import (
	"math"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
)

func snapshotBar(close float64, volume float64) *Bar {
	return &Bar{
		Market:    "ES",
		Timeframe: OneMinute,
		Open:      close - 1,
		High:      close + 1,
		Low:       close - 2,
		Close:     close,
		Volume:    volume,
		OpenTime:  time.Time{},
	}
}

func TestBarSnapshot(t *testing.T) {
	// Ensure snapshot sizes must be positive.
	snapshot, err := NewBarSnapshot(0)
	assert.Error(t, err)
	assert.Nil(t, snapshot)

	snapshot, err = NewBarSnapshot(4)
	assert.NoError(t, err)

	// An empty snapshot has no last entry.
	assert.Nil(t, snapshot.Last())
	assert.Equal(t, 0, len(snapshot.LastN(2)))
	assert.Equal(t, float64(0), snapshot.AverageVolume(2))

	for idx := 1; idx <= 4; idx++ {
		snapshot.Update(snapshotBar(float64(4500+idx), float64(idx*10)))
	}

	assert.Equal(t, int32(4), snapshot.Count())
	assert.Equal(t, float64(4504), snapshot.Last().Close)

	// Updating at capacity overwrites the oldest entry.
	snapshot.Update(snapshotBar(4505, 50))
	assert.Equal(t, int32(4), snapshot.Count())
	assert.Equal(t, float64(4505), snapshot.Last().Close)

	// LastN returns ordered entries, oldest first, clamped to the count.
	set := snapshot.LastN(3)
	assert.Equal(t, 3, len(set))
	assert.Equal(t, float64(4503), set[0].Close)
	assert.Equal(t, float64(4505), set[2].Close)

	set = snapshot.LastN(10)
	assert.Equal(t, 4, len(set))
	assert.Equal(t, float64(4502), set[0].Close)

	// Average volume over the last two entries: (40 + 50) / 2.
	assert.Equal(t, float64(45), snapshot.AverageVolume(2))
}

func TestNewOrderbookSample(t *testing.T) {
	sample := NewOrderbookSample("ES", 300, 150, 0, 1, time.Time{})
	assert.Equal(t, float64(2), sample.Imbalance)

	// A one-sided book with no resting asks is maximal bid pressure.
	sample = NewOrderbookSample("ES", 300, 0, 0, 0, time.Time{})
	assert.True(t, math.IsInf(sample.Imbalance, 1))

	// A one-sided book with no resting bids is pure ask pressure.
	sample = NewOrderbookSample("ES", 0, 300, 0, 0, time.Time{})
	assert.Equal(t, float64(0), sample.Imbalance)

	// An empty book is balanced and decides nothing.
	sample = NewOrderbookSample("ES", 0, 0, 0, 0, time.Time{})
	assert.Equal(t, float64(1), sample.Imbalance)
}
