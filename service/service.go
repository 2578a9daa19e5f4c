package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"

	"trendmomentum/database"
	"trendmomentum/feed"
	"trendmomentum/market"
	"trendmomentum/orderbook"
	"trendmomentum/position"
	"trendmomentum/shared"
	"trendmomentum/strategy"
)

const (
	// snapshotSize is the per-timeframe bar snapshot capacity.
	snapshotSize = 240
)

// TraderConfig represents the configuration struct for the trader service.
type TraderConfig struct {
	// Markets represents the traded markets.
	Markets []string
	// FeedURL is the data feed websocket endpoint.
	FeedURL string
	// DBEndpoint is the database connection endpoint.
	DBEndpoint string
	// DBUser is the database user.
	DBUser string
	// DBPass is the database user pass.
	DBPass string
	// Equity is the account equity.
	Equity float64
	// RiskFraction is the fraction of equity risked per trade.
	RiskFraction float64
	// MaxPositionSize caps the computed contract size.
	MaxPositionSize uint32
	// MaxConcurrentPositions caps live positions across markets.
	MaxConcurrentPositions uint32
	// MaxDailyLossFraction suspends entries once breached.
	MaxDailyLossFraction float64
	// MaxWeeklyLossFraction suspends entries once breached.
	MaxWeeklyLossFraction float64
	// RSIOversold is the oscillator arm level for longs.
	RSIOversold float64
	// RSIOverbought is the oscillator arm level for shorts.
	RSIOverbought float64
	// RSILongCross is the oscillator trigger level for longs.
	RSILongCross float64
	// RSIShortCross is the oscillator trigger level for shorts.
	RSIShortCross float64
	// PatternToleranceTicks is the pattern zone proximity tolerance in ticks.
	PatternToleranceTicks uint32
	// ImbalanceLong is the bid/ask ratio confirming longs.
	ImbalanceLong float64
	// ImbalanceShort is the bid/ask ratio confirming shorts.
	ImbalanceShort float64
	// ConfirmationWindow bounds how long a candidate awaits confirmation.
	ConfirmationWindow time.Duration
	// TimeExitAfter bounds how long a stagnant position is held.
	TimeExitAfter time.Duration
	// BreakevenThreshold is the stagnation bound for time exits, in points.
	BreakevenThreshold float64
	// BreakevenOffsetTicks offsets the breakeven stop move.
	BreakevenOffsetTicks uint32
	// TrailingMultiple is the favorable move multiple activating trailing.
	TrailingMultiple float64
	// StopPercent is the percent-of-price initial stop bound.
	StopPercent float64
	// StopTicks is the fixed tick-count initial stop bound.
	StopTicks uint32
	// TickSize is the minimum price increment.
	TickSize float64
	// TickValue is the monetary value of one tick per contract.
	TickValue float64
	// RRMultiple is the target distance multiple of the risk distance.
	RRMultiple float64
	// VolumeThreshold is the minimum fraction of average volume for entries.
	VolumeThreshold float64
	// CorrelationThreshold refuses correlated same-direction exposure.
	CorrelationThreshold float64
	// CorrelationWindow is the return count used for correlation.
	CorrelationWindow int32
	// StalenessBound is the duration without data before a market is stale.
	StalenessBound time.Duration
	// MaxExecutionRetries bounds execution retry attempts.
	MaxExecutionRetries uint32
	// Cancel is the context cancellation function.
	Cancel context.CancelFunc
}

// Validate asserts the config sane inputs.
func (cfg *TraderConfig) Validate() error {
	var errs error

	if len(cfg.Markets) == 0 {
		errs = errors.Join(errs, fmt.Errorf("no markets provided for trader service"))
	}
	if cfg.FeedURL == "" {
		errs = errors.Join(errs, fmt.Errorf("feed url cannot be an empty string"))
	}
	if cfg.DBEndpoint == "" {
		errs = errors.Join(errs, fmt.Errorf("database endpoint cannot be an empty string"))
	}
	if cfg.Cancel == nil {
		errs = errors.Join(errs, fmt.Errorf("context cancellation function cannot be nil"))
	}

	return errs
}

// Trader represents the trend-momentum trading service.
type Trader struct {
	cfg             *TraderConfig
	db              *database.Database
	feedClient      *feed.Client
	gate            *orderbook.Gate
	marketManager   *market.Manager
	positionManager *position.Manager
	orchestrator    *strategy.Orchestrator
	jobScheduler    *gocron.Scheduler
	logger          *zerolog.Logger
	wg              sync.WaitGroup
}

// NewTrader initializes a new trader service.
func NewTrader(ctx context.Context, cfg *TraderConfig) (*Trader, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	logger := log.With().Str("service", "trader").Logger()

	_, loc, err := shared.NewYorkTime()
	if err != nil {
		return nil, fmt.Errorf("fetching new york time: %v", err)
	}

	jobScheduler := gocron.NewScheduler(loc)

	dbLogger := logger.With().Str("component", "database").Logger()
	db, err := database.NewDatabase(ctx, &database.DatabaseConfig{
		Endpoint: cfg.DBEndpoint,
		User:     cfg.DBUser,
		Pass:     cfg.DBPass,
		Logger:   &dbLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating database: %v", err)
	}

	// The feed client and orchestrator reference each other, the feed is
	// created first with nil-guarded relays.
	var orchestrator *strategy.Orchestrator

	feedLogger := logger.With().Str("component", "feed").Logger()
	feedClient, err := feed.NewClient(&feed.ClientConfig{
		URL:     cfg.FeedURL,
		Markets: cfg.Markets,
		OnBar: func(bar shared.Bar) {
			if orchestrator != nil {
				orchestrator.OnBar(bar)
			}
		},
		OnIndicators: func(snapshot shared.IndicatorSnapshot) {
			if orchestrator != nil {
				orchestrator.OnIndicators(snapshot)
			}
		},
		OnOrderbookSample: func(sample shared.OrderbookSample) {
			if orchestrator != nil {
				orchestrator.OnOrderbookSample(sample)
			}
		},
		OnMarketHalt: func(mkt string) {
			if orchestrator != nil {
				orchestrator.OnMarketHalt(mkt)
			}
		},
		OnExecutionAck: func(ack shared.ExecutionAck) {
			if orchestrator != nil {
				orchestrator.OnExecutionAck(ack)
			}
		},
		Logger: &feedLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating feed client: %v", err)
	}

	positionMgrLogger := logger.With().Str("component", "positionmanager").Logger()
	positionMgr, err := position.NewManager(&position.ManagerConfig{
		Markets:                cfg.Markets,
		Equity:                 cfg.Equity,
		TickSize:               cfg.TickSize,
		TickValue:              cfg.TickValue,
		RRMultiple:             cfg.RRMultiple,
		MaxDailyLossFraction:   cfg.MaxDailyLossFraction,
		MaxWeeklyLossFraction:  cfg.MaxWeeklyLossFraction,
		MaxConcurrentPositions: cfg.MaxConcurrentPositions,
		MaxExecutionRetries:    cfg.MaxExecutionRetries,
		TimeExitAfter:          cfg.TimeExitAfter,
		BreakevenThreshold:     cfg.BreakevenThreshold,
		BreakevenOffsetTicks:   cfg.BreakevenOffsetTicks,
		TrailingMultiple:       cfg.TrailingMultiple,
		Execute:                feedClient,
		Notify: func(message string) {
			logger.Info().Str("component", "notification").Msg(message)
		},
		PersistClosedPosition: func(ctx context.Context, pos *position.Position) error {
			return db.PersistClosedPosition(ctx, pos)
		},
		JobScheduler: jobScheduler,
		Logger:       &positionMgrLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating position manager: %v", err)
	}

	gateLogger := logger.With().Str("component", "orderbookgate").Logger()
	gate, err := orderbook.NewGate(&orderbook.GateConfig{
		LongThreshold:  cfg.ImbalanceLong,
		ShortThreshold: cfg.ImbalanceShort,
		WindowDuration: cfg.ConfirmationWindow,
		ConfirmEntry: func(candidate shared.CandidateSignal) {
			if orchestrator != nil {
				orchestrator.ConfirmCandidate(candidate)
			}
		},
		Logger: &gateLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating orderbook gate: %v", err)
	}

	marketMgrLogger := logger.With().Str("component", "marketmanager").Logger()
	marketMgr, err := market.NewManager(&market.ManagerConfig{
		Markets:      cfg.Markets,
		SnapshotSize: snapshotSize,
		StaleAfter:   cfg.StalenessBound,
		RelayBar: func(bar shared.Bar) {
			if orchestrator != nil {
				orchestrator.EnqueueBar(bar)
			}
		},
		Logger: &marketMgrLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating market manager: %v", err)
	}

	orchestratorLogger := logger.With().Str("component", "orchestrator").Logger()
	orchestrator, err = strategy.NewOrchestrator(&strategy.OrchestratorConfig{
		Markets:               cfg.Markets,
		Equity:                cfg.Equity,
		RiskFraction:          cfg.RiskFraction,
		MaxPositionSize:       cfg.MaxPositionSize,
		StopPercent:           cfg.StopPercent,
		StopTicks:             cfg.StopTicks,
		TickSize:              cfg.TickSize,
		TickValue:             cfg.TickValue,
		RRMultiple:            cfg.RRMultiple,
		Oversold:              cfg.RSIOversold,
		Overbought:            cfg.RSIOverbought,
		LongCross:             cfg.RSILongCross,
		ShortCross:            cfg.RSIShortCross,
		PatternTolerance:      float64(cfg.PatternToleranceTicks) * cfg.TickSize,
		VolumeThreshold:       cfg.VolumeThreshold,
		CorrelationThreshold:  cfg.CorrelationThreshold,
		CorrelationWindow:     cfg.CorrelationWindow,
		MarketState:           marketMgr.Market,
		RequestAverageVolume:  marketMgr.SendAverageVolumeRequest,
		RequestPositionStates: positionMgr.SendPositionStateRequest,
		SendMarketBar:         marketMgr.SendBar,
		SendMarketIndicators:  marketMgr.SendIndicators,
		SendOrderbookSample:   gate.SendSample,
		SendMarketHalt:        gate.SendMarketHalt,
		SendCandidate:         gate.SendCandidate,
		SendEntrySignal:       positionMgr.SendEntrySignal,
		SendPositionUpdate:    positionMgr.SendPositionUpdate,
		SendExecutionAck:      positionMgr.SendExecutionAck,
		Logger:                &orchestratorLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating orchestrator: %v", err)
	}

	service := &Trader{
		cfg:             cfg,
		db:              db,
		feedClient:      feedClient,
		gate:            gate,
		marketManager:   marketMgr,
		positionManager: positionMgr,
		orchestrator:    orchestrator,
		jobScheduler:    jobScheduler,
		logger:          &logger,
	}

	return service, nil
}

// Run handles the lifecycle processes of the trader service.
func (t *Trader) Run(ctx context.Context) {
	t.jobScheduler.StartAsync()
	defer t.jobScheduler.Stop()

	t.wg.Add(5)

	go func() {
		t.positionManager.Run(ctx)
		t.wg.Done()
	}()

	go func() {
		t.gate.Run(ctx)
		t.wg.Done()
	}()

	go func() {
		t.marketManager.Run(ctx)
		t.wg.Done()
	}()

	go func() {
		t.orchestrator.Run(ctx)
		t.wg.Done()
	}()

	go func() {
		t.feedClient.Run(ctx)
		t.wg.Done()
	}()

	t.wg.Wait()
}
