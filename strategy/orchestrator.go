package strategy

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"trendmomentum/fusion"
	"trendmomentum/market"
	"trendmomentum/position"
	"trendmomentum/shared"
	"trendmomentum/trend"
)

const (
	// bufferSize is the default buffer size for channels.
	bufferSize = 64
)

// event represents a queued evaluation event for an instrument. Exactly one
// field is set.
type event struct {
	bar       *shared.Bar
	confirmed *shared.CandidateSignal
}

// OrchestratorConfig represents the strategy orchestrator configuration.
type OrchestratorConfig struct {
	// Markets represents the collection of names of the traded markets.
	Markets []string
	// Equity is the account equity used for sizing.
	Equity float64
	// RiskFraction is the fraction of equity risked per trade.
	RiskFraction float64
	// MaxPositionSize caps the computed contract size.
	MaxPositionSize uint32
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
	// Oversold is the oscillator arm level for longs.
	Oversold float64
	// Overbought is the oscillator arm level for shorts.
	Overbought float64
	// LongCross is the oscillator trigger level for longs.
	LongCross float64
	// ShortCross is the oscillator trigger level for shorts.
	ShortCross float64
	// PatternTolerance is the pattern zone proximity tolerance in price points.
	PatternTolerance float64
	// VolumeThreshold is the minimum fraction of the rolling average volume
	// required of an entry bar.
	VolumeThreshold float64
	// CorrelationThreshold refuses same-direction entries in markets whose
	// recent returns correlate above it.
	CorrelationThreshold float64
	// CorrelationWindow is the return count used for correlation.
	CorrelationWindow int32
	// MarketState fetches the data state of a market.
	MarketState func(name string) *market.Market
	// RequestAverageVolume relays the provided average volume request for processing.
	RequestAverageVolume func(req shared.AverageVolumeRequest)
	// RequestPositionStates relays the provided position state request for processing.
	RequestPositionStates func(req shared.PositionStateRequest)
	// SendMarketBar forwards a bar for market state tracking.
	SendMarketBar func(bar shared.Bar)
	// SendMarketIndicators forwards an indicator snapshot for market state tracking.
	SendMarketIndicators func(snapshot shared.IndicatorSnapshot)
	// SendOrderbookSample forwards an order book sample to the confirmation gate.
	SendOrderbookSample func(sample shared.OrderbookSample)
	// SendMarketHalt forwards a market halt to the confirmation gate.
	SendMarketHalt func(market string)
	// SendCandidate forwards a fused candidate to the confirmation gate.
	SendCandidate func(candidate shared.CandidateSignal)
	// SendEntrySignal forwards a sized entry to the position manager.
	SendEntrySignal func(signal shared.EntrySignal)
	// SendPositionUpdate forwards an evaluation tick to the position manager.
	SendPositionUpdate func(update shared.PositionUpdate)
	// SendExecutionAck forwards an execution acknowledgement to the position manager.
	SendExecutionAck func(ack shared.ExecutionAck)
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *OrchestratorConfig) Validate() error {
	var errs error

	if len(cfg.Markets) == 0 {
		errs = errors.Join(errs, fmt.Errorf("no markets provided for orchestrator"))
	}
	if cfg.Equity <= 0 {
		errs = errors.Join(errs, fmt.Errorf("equity must be positive"))
	}
	if cfg.RiskFraction <= 0 {
		errs = errors.Join(errs, fmt.Errorf("risk fraction must be positive"))
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
	if cfg.MarketState == nil {
		errs = errors.Join(errs, fmt.Errorf("market state function cannot be nil"))
	}
	if cfg.RequestAverageVolume == nil {
		errs = errors.Join(errs, fmt.Errorf("request average volume function cannot be nil"))
	}
	if cfg.RequestPositionStates == nil {
		errs = errors.Join(errs, fmt.Errorf("request position states function cannot be nil"))
	}
	if cfg.SendMarketBar == nil {
		errs = errors.Join(errs, fmt.Errorf("send market bar function cannot be nil"))
	}
	if cfg.SendMarketIndicators == nil {
		errs = errors.Join(errs, fmt.Errorf("send market indicators function cannot be nil"))
	}
	if cfg.SendOrderbookSample == nil {
		errs = errors.Join(errs, fmt.Errorf("send orderbook sample function cannot be nil"))
	}
	if cfg.SendMarketHalt == nil {
		errs = errors.Join(errs, fmt.Errorf("send market halt function cannot be nil"))
	}
	if cfg.SendCandidate == nil {
		errs = errors.Join(errs, fmt.Errorf("send candidate function cannot be nil"))
	}
	if cfg.SendEntrySignal == nil {
		errs = errors.Join(errs, fmt.Errorf("send entry signal function cannot be nil"))
	}
	if cfg.SendPositionUpdate == nil {
		errs = errors.Join(errs, fmt.Errorf("send position update function cannot be nil"))
	}
	if cfg.SendExecutionAck == nil {
		errs = errors.Join(errs, fmt.Errorf("send execution ack function cannot be nil"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Orchestrator drives the evaluation pipeline. Every instrument gets its own
// event queue drained by a dedicated goroutine, so evaluations for one
// instrument are processed exactly once and in arrival order while
// instruments stay independent of each other.
type Orchestrator struct {
	cfg     *OrchestratorConfig
	engines map[string]*fusion.Engine
	queues  map[string]chan event
}

// NewOrchestrator initializes a new strategy orchestrator.
func NewOrchestrator(cfg *OrchestratorConfig) (*Orchestrator, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	engines := make(map[string]*fusion.Engine, len(cfg.Markets))
	queues := make(map[string]chan event, len(cfg.Markets))
	for idx := range cfg.Markets {
		eCfg := &fusion.EngineConfig{
			Market:           cfg.Markets[idx],
			Oversold:         cfg.Oversold,
			Overbought:       cfg.Overbought,
			LongCross:        cfg.LongCross,
			ShortCross:       cfg.ShortCross,
			PatternTolerance: cfg.PatternTolerance,
			Logger:           cfg.Logger,
		}

		eng, err := fusion.NewEngine(eCfg)
		if err != nil {
			return nil, fmt.Errorf("creating %s fusion engine: %w", cfg.Markets[idx], err)
		}

		engines[cfg.Markets[idx]] = eng
		queues[cfg.Markets[idx]] = make(chan event, bufferSize)
	}

	return &Orchestrator{
		cfg:     cfg,
		engines: engines,
		queues:  queues,
	}, nil
}

// OnBar accepts a finalized bar from the data feed.
func (o *Orchestrator) OnBar(bar shared.Bar) {
	o.cfg.SendMarketBar(bar)
}

// OnIndicators accepts an indicator snapshot from the data feed.
func (o *Orchestrator) OnIndicators(snapshot shared.IndicatorSnapshot) {
	o.cfg.SendMarketIndicators(snapshot)
}

// OnOrderbookSample accepts an order book sample from the data feed.
func (o *Orchestrator) OnOrderbookSample(sample shared.OrderbookSample) {
	o.cfg.SendOrderbookSample(sample)
}

// OnMarketHalt accepts a market halt notice from the data feed.
func (o *Orchestrator) OnMarketHalt(market string) {
	o.cfg.SendMarketHalt(market)
}

// OnExecutionAck accepts an execution acknowledgement from the execution provider.
func (o *Orchestrator) OnExecutionAck(ack shared.ExecutionAck) {
	o.cfg.SendExecutionAck(ack)
}

// EnqueueBar queues an evaluation for a bar whose market state has been
// applied. Wired as the market manager's bar relay.
func (o *Orchestrator) EnqueueBar(bar shared.Bar) {
	queue, ok := o.queues[bar.Market]
	if !ok {
		o.cfg.Logger.Error().Msgf("no evaluation queue found for %s", bar.Market)
		return
	}

	select {
	case queue <- event{bar: &bar}:
		// do nothing.
	default:
		o.cfg.Logger.Error().Msgf("%s evaluation queue at capacity: %d/%d",
			bar.Market, len(queue), bufferSize)
	}
}

// ConfirmCandidate queues sizing and submission for a confirmed candidate.
// Wired as the confirmation gate's confirm callback.
func (o *Orchestrator) ConfirmCandidate(candidate shared.CandidateSignal) {
	queue, ok := o.queues[candidate.Market]
	if !ok {
		o.cfg.Logger.Error().Msgf("no evaluation queue found for %s", candidate.Market)
		return
	}

	select {
	case queue <- event{confirmed: &candidate}:
		// do nothing.
	default:
		o.cfg.Logger.Error().Msgf("%s evaluation queue at capacity: %d/%d",
			candidate.Market, len(queue), bufferSize)
	}
}

// averageVolume fetches the rolling average volume for the provided market.
func (o *Orchestrator) averageVolume(mkt string, timeframe shared.Timeframe) float64 {
	req := shared.NewAverageVolumeRequest(mkt, timeframe)
	o.cfg.RequestAverageVolume(req)
	return <-req.Response
}

// evaluateBar runs the evaluation pipeline for a primary timeframe bar:
// alignment verdict, position update dispatch, entry gating and fusion.
func (o *Orchestrator) evaluateBar(bar *shared.Bar) {
	if bar.Timeframe != shared.FifteenSecond {
		// Higher timeframe bars only update market state.
		return
	}

	mkt := o.cfg.MarketState(bar.Market)
	if mkt == nil {
		o.cfg.Logger.Error().Msgf("no market state found for %s", bar.Market)
		return
	}

	slowCurr, slowPrev := mkt.IndicatorPair(shared.FifteenMinute)
	middleCurr, _ := mkt.IndicatorPair(shared.FiveMinute)
	fastCurr, _ := mkt.IndicatorPair(shared.OneMinute)
	verdict := trend.Evaluate(slowCurr, slowPrev, middleCurr, fastCurr)

	primary, _ := mkt.IndicatorPair(shared.FifteenSecond)
	if primary != nil && !primary.OpenTime.Equal(bar.OpenTime) {
		// The snapshot belongs to an older bar, entry gates cannot use it.
		primary = nil
	}

	var trailing float64
	if primary != nil {
		trailing = primary.SAR
	}

	// Live positions are always managed, even while new entries are gated.
	o.cfg.SendPositionUpdate(shared.NewPositionUpdate(*bar, verdict, trailing, bar.OpenTime))

	now, _, err := shared.NewYorkTime()
	if err != nil {
		o.cfg.Logger.Error().Msgf("fetching new york time: %v", err)
		return
	}

	stale := mkt.Stale(now)

	eng := o.engines[bar.Market]
	candidate := eng.Evaluate(bar, primary, verdict)
	if candidate == nil {
		return
	}

	if stale {
		o.cfg.Logger.Info().Str("market", bar.Market).Msg("suppressing candidate, market data is stale")
		return
	}

	averageVolume := o.averageVolume(bar.Market, shared.FifteenSecond)
	if averageVolume > 0 && bar.Volume < o.cfg.VolumeThreshold*averageVolume {
		o.cfg.Logger.Info().Str("market", bar.Market).
			Float64("volume", bar.Volume).Float64("average", averageVolume).
			Msg("suppressing candidate, volume below threshold")
		return
	}

	o.cfg.Logger.Info().Str("market", candidate.Market).
		Str("direction", candidate.Direction.String()).
		Str("reasons", shared.StringifyReasons(candidate.Reasons)).
		Msg("entry candidate fused")
	o.cfg.SendCandidate(*candidate)
}

// correlatedExposure asserts whether a live same-direction position exists in
// a market whose recent returns correlate with the candidate's market above
// the configured threshold.
func (o *Orchestrator) correlatedExposure(candidate *shared.CandidateSignal) bool {
	if o.cfg.CorrelationThreshold <= 0 {
		return false
	}

	mkt := o.cfg.MarketState(candidate.Market)
	if mkt == nil {
		return false
	}

	returns := mkt.Returns(o.cfg.CorrelationWindow)
	if len(returns) == 0 {
		return false
	}

	req := shared.NewPositionStateRequest("")
	o.cfg.RequestPositionStates(req)
	states := <-req.Response

	for idx := range states {
		if states[idx].Market == candidate.Market || states[idx].Direction != candidate.Direction {
			continue
		}

		other := o.cfg.MarketState(states[idx].Market)
		if other == nil {
			continue
		}

		corr := Pearson(returns, other.Returns(o.cfg.CorrelationWindow))
		if corr > o.cfg.CorrelationThreshold {
			o.cfg.Logger.Info().Str("market", candidate.Market).
				Str("correlated", states[idx].Market).Float64("correlation", corr).
				Msg("refusing entry, correlated exposure")
			return true
		}
	}

	return false
}

// handleConfirmation sizes a confirmed candidate and submits the entry.
func (o *Orchestrator) handleConfirmation(candidate *shared.CandidateSignal) {
	if o.correlatedExposure(candidate) {
		return
	}

	var atr float64
	mkt := o.cfg.MarketState(candidate.Market)
	if mkt != nil {
		primary, _ := mkt.IndicatorPair(shared.FifteenSecond)
		if primary != nil {
			atr = primary.ATR
		}
	}

	riskDistance := position.RiskDistance(candidate.Price, o.cfg.StopPercent,
		o.cfg.StopTicks, o.cfg.TickSize, atr)
	size, err := position.ContractSize(o.cfg.Equity, o.cfg.RiskFraction,
		riskDistance/o.cfg.TickSize, o.cfg.TickValue, o.cfg.MaxPositionSize)
	if err != nil {
		o.cfg.Logger.Info().Str("market", candidate.Market).Msgf("%v", err)
		return
	}

	var stop, target float64
	switch candidate.Direction {
	case shared.Long:
		stop = candidate.Price - riskDistance
		target = candidate.Price + o.cfg.RRMultiple*riskDistance
	case shared.Short:
		stop = candidate.Price + riskDistance
		target = candidate.Price - o.cfg.RRMultiple*riskDistance
	}

	entry := shared.NewEntrySignal(candidate.Market, candidate.Direction, candidate.Price,
		stop, target, riskDistance, size, candidate.Reasons, candidate.CreatedOn)
	o.cfg.SendEntrySignal(entry)
	<-entry.Status
}

// process handles the provided evaluation event.
func (o *Orchestrator) process(ev *event) {
	switch {
	case ev.bar != nil:
		o.evaluateBar(ev.bar)
	case ev.confirmed != nil:
		o.handleConfirmation(ev.confirmed)
	}
}

// Run manages the lifecycle processes of the orchestrator.
func (o *Orchestrator) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for name := range o.queues {
		wg.Add(1)
		go func(queue chan event) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case ev := <-queue:
					o.process(&ev)
				}
			}
		}(o.queues[name])
	}

	wg.Wait()
}
