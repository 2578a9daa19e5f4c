package fusion

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"trendmomentum/shared"
)

// HysteresisState represents the state of a per-direction oscillator
// hysteresis machine.
type HysteresisState int

const (
	Idle HysteresisState = iota
	Armed
	Triggered
)

// String stringifies the provided hysteresis state.
func (s HysteresisState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Triggered:
		return "triggered"
	default:
		return "unknown"
	}
}

// hysteresis tracks an oscillator excursion past an arm threshold and the
// extreme value seen while armed.
type hysteresis struct {
	state   HysteresisState
	extreme float64
}

// EngineConfig represents the signal fusion engine configuration.
type EngineConfig struct {
	// Market is the market the engine evaluates.
	Market string
	// Oversold is the long side arm threshold.
	Oversold float64
	// Overbought is the short side arm threshold.
	Overbought float64
	// LongCross is the long side re-entry trigger threshold.
	LongCross float64
	// ShortCross is the short side re-entry trigger threshold.
	ShortCross float64
	// PatternTolerance is the price tolerance for pattern zone touches.
	PatternTolerance float64
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *EngineConfig) Validate() error {
	var errs error

	if cfg.Market == "" {
		errs = errors.Join(errs, fmt.Errorf("market cannot be an empty string"))
	}
	if cfg.Oversold >= cfg.LongCross {
		errs = errors.Join(errs, fmt.Errorf("oversold threshold (%v) must be below the long cross threshold (%v)",
			cfg.Oversold, cfg.LongCross))
	}
	if cfg.Overbought <= cfg.ShortCross {
		errs = errors.Join(errs, fmt.Errorf("overbought threshold (%v) must be above the short cross threshold (%v)",
			cfg.Overbought, cfg.ShortCross))
	}
	if cfg.PatternTolerance < 0 {
		errs = errors.Join(errs, fmt.Errorf("pattern tolerance cannot be negative"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Engine fuses primary timeframe signals into entry candidates for one
// market. It is owned exclusively by the market's evaluation loop.
type Engine struct {
	cfg     *EngineConfig
	long    hysteresis
	short   hysteresis
	prevRSI float64
	hasRSI  bool
	prevBar *shared.Bar
}

// NewEngine initializes a new signal fusion engine.
func NewEngine(cfg *EngineConfig) (*Engine, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg: cfg,
	}, nil
}

// updateHysteresis advances both per-direction hysteresis machines with the
// current oscillator value.
func (e *Engine) updateHysteresis(rsi float64) {
	switch e.long.state {
	case Idle:
		if rsi < e.cfg.Oversold {
			e.long.state = Armed
			e.long.extreme = rsi
		}
	case Armed:
		if rsi < e.long.extreme {
			e.long.extreme = rsi
		}
		if e.hasRSI && e.prevRSI < e.cfg.LongCross && rsi >= e.cfg.LongCross {
			e.long.state = Triggered
		}
	}

	switch e.short.state {
	case Idle:
		if rsi > e.cfg.Overbought {
			e.short.state = Armed
			e.short.extreme = rsi
		}
	case Armed:
		if rsi > e.short.extreme {
			e.short.extreme = rsi
		}
		if e.hasRSI && e.prevRSI > e.cfg.ShortCross && rsi <= e.cfg.ShortCross {
			e.short.state = Triggered
		}
	}
}

// bullishPatternZone asserts whether price is within tolerance of an
// unmitigated bullish pattern zone, either dipping into a gap or holding a
// block from above.
func (e *Engine) bullishPatternZone(bar *shared.Bar, snapshot *shared.IndicatorSnapshot) bool {
	if snapshot.BullishOrderBlock && bar.Close+e.cfg.PatternTolerance >= snapshot.OrderBlockBottom {
		return true
	}
	if snapshot.BullishGap && bar.Low <= snapshot.GapTop+e.cfg.PatternTolerance {
		return true
	}

	return false
}

// bearishPatternZone is the mirrored condition of bullishPatternZone.
func (e *Engine) bearishPatternZone(bar *shared.Bar, snapshot *shared.IndicatorSnapshot) bool {
	if snapshot.BearishOrderBlock && bar.Close-e.cfg.PatternTolerance <= snapshot.OrderBlockTop {
		return true
	}
	if snapshot.BearishGap && bar.High >= snapshot.GapBottom-e.cfg.PatternTolerance {
		return true
	}

	return false
}

// evaluateLong checks the remaining long gates for a triggered hysteresis
// state and builds the candidate when all of them hold on this tick.
func (e *Engine) evaluateLong(bar *shared.Bar, snapshot *shared.IndicatorSnapshot,
	verdict shared.AlignmentVerdict) *shared.CandidateSignal {
	if !verdict.Matches(shared.Long) || e.long.state != Triggered {
		return nil
	}

	explosion := snapshot.WAEExplosion > snapshot.WAEDeadZone && snapshot.WAETrend > 0
	pattern := e.bullishPatternZone(bar, snapshot)
	// The break bar must itself print bullish, a close above the prior high
	// on a bearish bar is an exhaustion wick, not a break.
	priceBreak := e.prevBar != nil && bar.Close > e.prevBar.High &&
		bar.FetchSentiment() == shared.Bullish

	if !explosion || !pattern || !priceBreak {
		return nil
	}

	reasons := []shared.Reason{shared.TrendAligned, shared.RSICross, shared.MomentumExplosion,
		shared.PatternZone, shared.PriceBreak}
	candidate := shared.NewCandidateSignal(e.cfg.Market, shared.Long, bar.Close, reasons,
		bar.OpenTime, bar.OpenTime)

	return &candidate
}

// evaluateShort is the mirrored condition of evaluateLong.
func (e *Engine) evaluateShort(bar *shared.Bar, snapshot *shared.IndicatorSnapshot,
	verdict shared.AlignmentVerdict) *shared.CandidateSignal {
	if !verdict.Matches(shared.Short) || e.short.state != Triggered {
		return nil
	}

	explosion := snapshot.WAEExplosion > snapshot.WAEDeadZone && snapshot.WAETrend < 0
	pattern := e.bearishPatternZone(bar, snapshot)
	priceBreak := e.prevBar != nil && bar.Close < e.prevBar.Low &&
		bar.FetchSentiment() == shared.Bearish

	if !explosion || !pattern || !priceBreak {
		return nil
	}

	reasons := []shared.Reason{shared.TrendAligned, shared.RSICross, shared.MomentumExplosion,
		shared.PatternZone, shared.PriceBreak}
	candidate := shared.NewCandidateSignal(e.cfg.Market, shared.Short, bar.Close, reasons,
		bar.OpenTime, bar.OpenTime)

	return &candidate
}

// Evaluate advances the hysteresis machines with the provided primary
// timeframe bar and snapshot, and emits at most one entry candidate when all
// entry gates hold on the same tick. A triggered hysteresis state that is not
// confirmed by the remaining gates reverts to idle, so re-arming requires a
// fresh excursion past the arm threshold.
func (e *Engine) Evaluate(bar *shared.Bar, snapshot *shared.IndicatorSnapshot,
	verdict shared.AlignmentVerdict) *shared.CandidateSignal {
	if bar == nil {
		return nil
	}
	if snapshot == nil {
		// Insufficient indicator history, skip evaluation for this tick.
		e.prevBar = bar
		return nil
	}

	e.updateHysteresis(snapshot.RSI)

	candidate := e.evaluateLong(bar, snapshot, verdict)
	if candidate == nil {
		candidate = e.evaluateShort(bar, snapshot, verdict)
	}

	if candidate != nil {
		e.cfg.Logger.Info().Str("market", e.cfg.Market).
			Str("direction", candidate.Direction.String()).
			Float64("price", candidate.Price).
			Str("reasons", shared.StringifyReasons(candidate.Reasons)).
			Msg("entry candidate emitted")
	}

	// A triggered state is one-shot per arm cycle, consumed or not it reverts
	// to idle after the tick.
	if e.long.state == Triggered {
		e.long = hysteresis{}
	}
	if e.short.state == Triggered {
		e.short = hysteresis{}
	}

	e.prevRSI = snapshot.RSI
	e.hasRSI = true
	e.prevBar = bar

	return candidate
}
