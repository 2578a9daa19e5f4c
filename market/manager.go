package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"trendmomentum/shared"
)

const (
	// bufferSize is the default buffer size for channels.
	bufferSize = 64
	// staleSweepInterval is the interval for stale market data sweeps.
	staleSweepInterval = time.Second * 5
	// volumeWindowBars is the bar count of the rolling volume average,
	// one minute of primary timeframe bars.
	volumeWindowBars = 4
)

// ManagerConfig represents the market manager configuration.
type ManagerConfig struct {
	// Markets represents the collection of names of the markets to manage.
	Markets []string
	// SnapshotSize is the per-timeframe bar snapshot capacity.
	SnapshotSize int32
	// StaleAfter is the duration without data after which a market's data
	// is considered stale.
	StaleAfter time.Duration
	// RelayBar relays the provided bar after the market state is updated.
	RelayBar func(bar shared.Bar)
	// RelayIndicators relays the provided indicator snapshot after the
	// market state is updated. Optional.
	RelayIndicators func(snapshot shared.IndicatorSnapshot)
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *ManagerConfig) Validate() error {
	var errs error

	if len(cfg.Markets) == 0 {
		errs = errors.Join(errs, fmt.Errorf("no markets provided for market manager"))
	}
	if cfg.SnapshotSize <= 0 {
		errs = errors.Join(errs, fmt.Errorf("snapshot size must be positive"))
	}
	if cfg.StaleAfter <= 0 {
		errs = errors.Join(errs, fmt.Errorf("stale duration must be positive"))
	}
	if cfg.RelayBar == nil {
		errs = errors.Join(errs, fmt.Errorf("relay bar function cannot be nil"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Manager maintains the data state of all tracked markets. Bars and
// indicator snapshots are applied to market state before being relayed
// downstream, so consumers always observe state at least as fresh as the
// event that prompted them.
type Manager struct {
	cfg            *ManagerConfig
	markets        map[string]*Market
	bars           chan shared.Bar
	indicators     chan shared.IndicatorSnapshot
	volumeRequests chan shared.AverageVolumeRequest
}

// NewManager initializes a new market manager.
func NewManager(cfg *ManagerConfig) (*Manager, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	markets := make(map[string]*Market, len(cfg.Markets))
	for idx := range cfg.Markets {
		mCfg := &MarketConfig{
			Market:       cfg.Markets[idx],
			SnapshotSize: cfg.SnapshotSize,
			StaleAfter:   cfg.StaleAfter,
		}

		mkt, err := NewMarket(mCfg)
		if err != nil {
			return nil, fmt.Errorf("creating %s market: %w", cfg.Markets[idx], err)
		}

		markets[cfg.Markets[idx]] = mkt
	}

	return &Manager{
		cfg:            cfg,
		markets:        markets,
		bars:           make(chan shared.Bar, bufferSize),
		indicators:     make(chan shared.IndicatorSnapshot, bufferSize),
		volumeRequests: make(chan shared.AverageVolumeRequest, bufferSize),
	}, nil
}

// Market returns the tracked market with the provided name. The returned
// market is safe for concurrent reads.
func (m *Manager) Market(name string) *Market {
	return m.markets[name]
}

// SendBar relays the provided bar for processing.
func (m *Manager) SendBar(bar shared.Bar) {
	select {
	case m.bars <- bar:
		// do nothing.
	default:
		m.cfg.Logger.Error().Msgf("bar channel at capacity: %d/%d",
			len(m.bars), bufferSize)
	}
}

// SendIndicators relays the provided indicator snapshot for processing.
func (m *Manager) SendIndicators(snapshot shared.IndicatorSnapshot) {
	select {
	case m.indicators <- snapshot:
		// do nothing.
	default:
		m.cfg.Logger.Error().Msgf("indicator channel at capacity: %d/%d",
			len(m.indicators), bufferSize)
	}
}

// SendAverageVolumeRequest relays the provided average volume request for processing.
func (m *Manager) SendAverageVolumeRequest(req shared.AverageVolumeRequest) {
	select {
	case m.volumeRequests <- req:
		// do nothing.
	default:
		m.cfg.Logger.Error().Msgf("average volume request channel at capacity: %d/%d",
			len(m.volumeRequests), bufferSize)
	}
}

// handleBar processes the provided bar.
func (m *Manager) handleBar(bar *shared.Bar) {
	mkt, ok := m.markets[bar.Market]
	if !ok {
		m.cfg.Logger.Error().Msgf("no market found with name %s for bar update", bar.Market)
		return
	}

	err := mkt.ApplyBar(bar)
	if err != nil {
		m.cfg.Logger.Error().Msgf("applying %s bar: %v", bar.Market, err)
		return
	}

	m.cfg.RelayBar(*bar)
}

// handleIndicators processes the provided indicator snapshot.
func (m *Manager) handleIndicators(snapshot *shared.IndicatorSnapshot) {
	mkt, ok := m.markets[snapshot.Market]
	if !ok {
		m.cfg.Logger.Error().Msgf("no market found with name %s for indicator update", snapshot.Market)
		return
	}

	err := mkt.ApplyIndicators(snapshot)
	if err != nil {
		m.cfg.Logger.Error().Msgf("applying %s indicators: %v", snapshot.Market, err)
		return
	}

	if m.cfg.RelayIndicators != nil {
		m.cfg.RelayIndicators(*snapshot)
	}
}

// handleVolumeRequest serves the rolling average volume of a market.
func (m *Manager) handleVolumeRequest(req *shared.AverageVolumeRequest) {
	mkt, ok := m.markets[req.Market]
	if !ok {
		m.cfg.Logger.Error().Msgf("no market found with name %s for volume request", req.Market)
		req.Response <- 0
		return
	}

	req.Response <- mkt.AverageVolume(req.Timeframe, volumeWindowBars)
}

// sweepStale logs markets whose data has gone stale.
func (m *Manager) sweepStale() {
	now, _, err := shared.NewYorkTime()
	if err != nil {
		m.cfg.Logger.Error().Msgf("fetching new york time: %v", err)
		return
	}

	for name, mkt := range m.markets {
		if mkt.Stale(now) {
			m.cfg.Logger.Warn().Msgf("%s market data is stale", name)
		}
	}
}

// Run manages the lifecycle processes of the market manager.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(staleSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case bar := <-m.bars:
			m.handleBar(&bar)
		case snapshot := <-m.indicators:
			m.handleIndicators(&snapshot)
		case req := <-m.volumeRequests:
			m.handleVolumeRequest(&req)
		case <-ticker.C:
			m.sweepStale()
		}
	}
}
