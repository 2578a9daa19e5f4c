package market

import (
	"context"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/rs/zerolog/log"

	"trendmomentum/shared"
)

func setupManager(t *testing.T) (*Manager, *[]shared.Bar, *[]shared.IndicatorSnapshot) {
	relayedBars := &[]shared.Bar{}
	relayedSnapshots := &[]shared.IndicatorSnapshot{}

	cfg := &ManagerConfig{
		Markets:      []string{"ES", "NQ"},
		SnapshotSize: 16,
		StaleAfter:   time.Second * 30,
		RelayBar: func(bar shared.Bar) {
			*relayedBars = append(*relayedBars, bar)
		},
		RelayIndicators: func(snapshot shared.IndicatorSnapshot) {
			*relayedSnapshots = append(*relayedSnapshots, snapshot)
		},
		Logger: &log.Logger,
	}

	m, err := NewManager(cfg)
	assert.NoError(t, err)

	return m, relayedBars, relayedSnapshots
}

func TestManagerConfigValidate(t *testing.T) {
	cfg := &ManagerConfig{}
	assert.Error(t, cfg.Validate())
}

func TestHandleBarUpdatesStateBeforeRelay(t *testing.T) {
	m, relayedBars, _ := setupManager(t)

	bar := minuteBar(4500, 150, time.Time{})
	m.handleBar(bar)

	assert.Equal(t, 1, len(*relayedBars))
	assert.NotNil(t, m.Market("ES").LastBar(shared.OneMinute))

	// A bar for an unknown market is dropped, not relayed.
	unknown := minuteBar(18000, 80, time.Time{})
	unknown.Market = "YM"
	m.handleBar(unknown)
	assert.Equal(t, 1, len(*relayedBars))
}

func TestHandleIndicators(t *testing.T) {
	m, _, relayedSnapshots := setupManager(t)

	snapshot := &shared.IndicatorSnapshot{Market: "NQ", Timeframe: shared.FiveMinute, MACDHistogram: 1.2}
	m.handleIndicators(snapshot)

	assert.Equal(t, 1, len(*relayedSnapshots))
	curr, _ := m.Market("NQ").IndicatorPair(shared.FiveMinute)
	assert.Equal(t, snapshot, curr)
}

func TestHandleVolumeRequest(t *testing.T) {
	m, _, _ := setupManager(t)

	for idx := 0; idx < 4; idx++ {
		m.handleBar(minuteBar(4500, 100, time.Time{}.Add(time.Duration(idx)*time.Minute)))
	}

	req := shared.NewAverageVolumeRequest("ES", shared.OneMinute)
	m.handleVolumeRequest(&req)
	assert.Equal(t, 100.0, <-req.Response)

	// An unknown market serves a zero average.
	req = shared.NewAverageVolumeRequest("YM", shared.OneMinute)
	m.handleVolumeRequest(&req)
	assert.Equal(t, 0.0, <-req.Response)
}

func TestManagerRun(t *testing.T) {
	m, _, _ := setupManager(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	m.SendBar(*minuteBar(4500, 100, time.Time{}))
	m.SendIndicators(shared.IndicatorSnapshot{Market: "ES", Timeframe: shared.OneMinute, RSI: 45})

	req := shared.NewAverageVolumeRequest("ES", shared.OneMinute)
	m.SendAverageVolumeRequest(req)
	assert.Equal(t, 100.0, <-req.Response)

	cancel()
	<-done
}
