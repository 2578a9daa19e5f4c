package orderbook

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
	// sweepInterval is the interval between window deadline sweeps.
	sweepInterval = time.Millisecond * 100
)

// windowKey keys live windows by market and direction.
type windowKey struct {
	market    string
	direction shared.Direction
}

// GateConfig represents the confirmation gate configuration.
type GateConfig struct {
	// LongThreshold is the imbalance ratio a long candidate must cross.
	LongThreshold float64
	// ShortThreshold is the imbalance ratio a short candidate must cross.
	ShortThreshold float64
	// WindowDuration bounds how long a window scans before timing out.
	WindowDuration time.Duration
	// ConfirmEntry relays a confirmed candidate for sizing and entry.
	ConfirmEntry func(candidate shared.CandidateSignal)
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *GateConfig) Validate() error {
	var errs error

	if cfg.LongThreshold <= 0 {
		errs = errors.Join(errs, fmt.Errorf("long imbalance threshold must be positive"))
	}
	if cfg.ShortThreshold <= 0 {
		errs = errors.Join(errs, fmt.Errorf("short imbalance threshold must be positive"))
	}
	if cfg.LongThreshold <= cfg.ShortThreshold {
		errs = errors.Join(errs, fmt.Errorf("long imbalance threshold (%v) must be above the short threshold (%v)",
			cfg.LongThreshold, cfg.ShortThreshold))
	}
	if cfg.WindowDuration <= 0 {
		errs = errors.Join(errs, fmt.Errorf("window duration must be positive"))
	}
	if cfg.ConfirmEntry == nil {
		errs = errors.Join(errs, fmt.Errorf("confirm entry function cannot be nil"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Gate validates entry candidates against order book pressure within a
// bounded window. Windows are owned exclusively by the gate's run loop, so
// scanning never blocks the instrument evaluation loops.
type Gate struct {
	cfg        *GateConfig
	windows    map[windowKey]*Window
	candidates chan shared.CandidateSignal
	samples    chan shared.OrderbookSample
	halts      chan string
}

// NewGate initializes a new confirmation gate.
func NewGate(cfg *GateConfig) (*Gate, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return &Gate{
		cfg:        cfg,
		windows:    make(map[windowKey]*Window),
		candidates: make(chan shared.CandidateSignal, bufferSize),
		samples:    make(chan shared.OrderbookSample, bufferSize),
		halts:      make(chan string, bufferSize),
	}, nil
}

// SendCandidate relays the provided entry candidate for confirmation.
func (g *Gate) SendCandidate(candidate shared.CandidateSignal) {
	select {
	case g.candidates <- candidate:
		// do nothing.
	default:
		g.cfg.Logger.Error().Msgf("candidate channel at capacity: %d/%d",
			len(g.candidates), bufferSize)
	}
}

// SendSample relays the provided order book sample for processing.
func (g *Gate) SendSample(sample shared.OrderbookSample) {
	select {
	case g.samples <- sample:
		// do nothing.
	default:
		g.cfg.Logger.Error().Msgf("sample channel at capacity: %d/%d",
			len(g.samples), bufferSize)
	}
}

// SendMarketHalt relays a market deactivation, cancelling its live windows.
func (g *Gate) SendMarketHalt(market string) {
	select {
	case g.halts <- market:
		// do nothing.
	default:
		g.cfg.Logger.Error().Msgf("halt channel at capacity: %d/%d",
			len(g.halts), bufferSize)
	}
}

// handleCandidate opens a fresh window for the provided candidate. A new
// candidate is dropped while a live window exists for its market and direction.
func (g *Gate) handleCandidate(candidate shared.CandidateSignal, now time.Time) {
	key := windowKey{market: candidate.Market, direction: candidate.Direction}
	if _, ok := g.windows[key]; ok {
		g.cfg.Logger.Info().Str("market", candidate.Market).
			Str("direction", candidate.Direction.String()).
			Msg("dropping candidate, a confirmation window is already live")
		return
	}

	window := NewWindow(candidate, now, g.cfg.WindowDuration)
	g.windows[key] = window
	g.cfg.Logger.Info().Str("market", window.Market).
		Str("direction", window.Direction.String()).
		Str("window", window.ID).
		Msg("confirmation window opened")
}

// evaluate derives the window outcome from the provided sample. Confirmation
// requires the direction imbalance threshold to be crossed with no hidden
// liquidity resting on the side the trade would cross. A reading decisively
// beyond the opposing threshold rejects the window immediately.
func (g *Gate) evaluate(window *Window, sample *shared.OrderbookSample) Outcome {
	switch window.Direction {
	case shared.Long:
		switch {
		case sample.Imbalance < g.cfg.ShortThreshold:
			return Rejected
		case sample.Imbalance > g.cfg.LongThreshold && sample.AskIcebergs == 0:
			return Confirmed
		default:
			return Pending
		}
	case shared.Short:
		switch {
		case sample.Imbalance > g.cfg.LongThreshold:
			return Rejected
		case sample.Imbalance < g.cfg.ShortThreshold && sample.BidIcebergs == 0:
			return Confirmed
		default:
			return Pending
		}
	default:
		return Pending
	}
}

// conclude records the terminal outcome for the window and restores the gate
// to idle for its market and direction.
func (g *Gate) conclude(window *Window, outcome Outcome) {
	window.Outcome = outcome
	delete(g.windows, windowKey{market: window.Market, direction: window.Direction})

	g.cfg.Logger.Info().Str("market", window.Market).
		Str("direction", window.Direction.String()).
		Str("window", window.ID).
		Int("samples", len(window.Samples)).
		Str("outcome", outcome.String()).
		Msg("confirmation window concluded")

	if outcome == Confirmed {
		g.cfg.ConfirmEntry(window.Candidate)
	}
}

// handleSample appends the provided sample to the market's live windows and
// concludes any window whose outcome the sample decides.
func (g *Gate) handleSample(sample *shared.OrderbookSample) {
	for _, direction := range []shared.Direction{shared.Long, shared.Short} {
		window, ok := g.windows[windowKey{market: sample.Market, direction: direction}]
		if !ok {
			continue
		}

		window.Samples = append(window.Samples, *sample)
		outcome := g.evaluate(window, sample)
		if outcome != Pending {
			g.conclude(window, outcome)
		}
	}
}

// sweepDeadlines times out every window past its deadline.
func (g *Gate) sweepDeadlines(now time.Time) {
	for _, window := range g.windows {
		if now.After(window.Deadline) {
			g.conclude(window, TimedOut)
		}
	}
}

// handleHalt discards the market's live windows without recording an outcome.
func (g *Gate) handleHalt(market string) {
	for _, direction := range []shared.Direction{shared.Long, shared.Short} {
		key := windowKey{market: market, direction: direction}
		window, ok := g.windows[key]
		if !ok {
			continue
		}

		delete(g.windows, key)
		g.cfg.Logger.Info().Str("market", market).
			Str("window", window.ID).
			Msg("confirmation window cancelled, market deactivated")
	}
}

// Run manages the lifecycle processes of the confirmation gate.
func (g *Gate) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case candidate := <-g.candidates:
			g.handleCandidate(candidate, time.Now())
		case sample := <-g.samples:
			g.handleSample(&sample)
		case market := <-g.halts:
			g.handleHalt(market)
		case now := <-ticker.C:
			g.sweepDeadlines(now)
		}
	}
}
