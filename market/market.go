package market

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"

	"trendmomentum/shared"
)

// indicatorPair tracks the current and previous indicator snapshots for a
// timeframe. The previous snapshot is needed for slope comparisons.
type indicatorPair struct {
	curr *shared.IndicatorSnapshot
	prev *shared.IndicatorSnapshot
}

// MarketConfig represents the configuration of a tracked market.
type MarketConfig struct {
	// Market is the name of the tracked market.
	Market string
	// SnapshotSize is the per-timeframe bar snapshot capacity.
	SnapshotSize int32
	// StaleAfter is the duration without data after which the market data
	// is considered stale.
	StaleAfter time.Duration
}

// Validate asserts the config sane inputs.
func (cfg *MarketConfig) Validate() error {
	var errs error

	if cfg.Market == "" {
		errs = errors.Join(errs, fmt.Errorf("market cannot be an empty string"))
	}
	if cfg.SnapshotSize <= 0 {
		errs = errors.Join(errs, fmt.Errorf("snapshot size must be positive"))
	}
	if cfg.StaleAfter <= 0 {
		errs = errors.Join(errs, fmt.Errorf("stale duration must be positive"))
	}

	return errs
}

// Market tracks the data state of a market: recent bars per timeframe, the
// current and previous indicator snapshots per timeframe and the arrival
// time of the most recent data. Reads are safe from any goroutine.
type Market struct {
	cfg           *MarketConfig
	bars          map[shared.Timeframe]*shared.BarSnapshot
	indicators    map[shared.Timeframe]*indicatorPair
	indicatorsMtx sync.RWMutex
	lastUpdate    atomic.Int64
}

// NewMarket initializes a new market.
func NewMarket(cfg *MarketConfig) (*Market, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	timeframes := []shared.Timeframe{shared.FifteenSecond, shared.OneMinute,
		shared.FiveMinute, shared.FifteenMinute}

	bars := make(map[shared.Timeframe]*shared.BarSnapshot, len(timeframes))
	indicators := make(map[shared.Timeframe]*indicatorPair, len(timeframes))
	for idx := range timeframes {
		snapshot, err := shared.NewBarSnapshot(cfg.SnapshotSize)
		if err != nil {
			return nil, fmt.Errorf("creating %s bar snapshot: %w", timeframes[idx].String(), err)
		}

		bars[timeframes[idx]] = snapshot
		indicators[timeframes[idx]] = &indicatorPair{}
	}

	return &Market{
		cfg:        cfg,
		bars:       bars,
		indicators: indicators,
	}, nil
}

// ApplyBar updates the market with the provided bar.
func (m *Market) ApplyBar(bar *shared.Bar) error {
	snapshot, ok := m.bars[bar.Timeframe]
	if !ok {
		return fmt.Errorf("no tracked timeframe %s for %s", bar.Timeframe.String(), m.cfg.Market)
	}

	snapshot.Update(bar)
	m.Touch(bar.OpenTime)

	return nil
}

// ApplyIndicators updates the market with the provided indicator snapshot.
func (m *Market) ApplyIndicators(snapshot *shared.IndicatorSnapshot) error {
	m.indicatorsMtx.Lock()
	defer m.indicatorsMtx.Unlock()

	pair, ok := m.indicators[snapshot.Timeframe]
	if !ok {
		return fmt.Errorf("no tracked timeframe %s for %s", snapshot.Timeframe.String(), m.cfg.Market)
	}

	pair.prev = pair.curr
	pair.curr = snapshot

	return nil
}

// IndicatorPair returns the current and previous indicator snapshots for the
// provided timeframe. Either may be nil before enough data has arrived.
func (m *Market) IndicatorPair(timeframe shared.Timeframe) (*shared.IndicatorSnapshot, *shared.IndicatorSnapshot) {
	m.indicatorsMtx.RLock()
	defer m.indicatorsMtx.RUnlock()

	pair, ok := m.indicators[timeframe]
	if !ok {
		return nil, nil
	}

	return pair.curr, pair.prev
}

// LastBar returns the most recent bar for the provided timeframe.
func (m *Market) LastBar(timeframe shared.Timeframe) *shared.Bar {
	snapshot, ok := m.bars[timeframe]
	if !ok {
		return nil
	}

	return snapshot.Last()
}

// AverageVolume returns the average volume over the last n bars of the
// provided timeframe.
func (m *Market) AverageVolume(timeframe shared.Timeframe, n int32) float64 {
	snapshot, ok := m.bars[timeframe]
	if !ok {
		return 0
	}

	return snapshot.AverageVolume(n)
}

// Touch records data arrival at the provided time for staleness tracking.
func (m *Market) Touch(at time.Time) {
	m.lastUpdate.Store(at.UnixNano())
}

// Stale asserts whether the market data is stale at the provided time. A
// market with no data yet is stale.
func (m *Market) Stale(now time.Time) bool {
	last := m.lastUpdate.Load()
	if last == 0 {
		return true
	}

	return now.Sub(time.Unix(0, last)) > m.cfg.StaleAfter
}

// Returns computes up to n close-to-close fractional returns from the
// minute bars, oldest first. Used for cross-market correlation checks.
func (m *Market) Returns(n int32) []float64 {
	snapshot, ok := m.bars[shared.OneMinute]
	if !ok {
		return nil
	}

	bars := snapshot.LastN(n + 1)
	if len(bars) < 2 {
		return nil
	}

	returns := make([]float64, 0, len(bars)-1)
	for idx := 1; idx < len(bars); idx++ {
		if bars[idx-1].Close == 0 {
			continue
		}

		returns = append(returns, (bars[idx].Close-bars[idx-1].Close)/bars[idx-1].Close)
	}

	return returns
}
