package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is the configuration struct for the service.
type Config struct {
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
	MaxPositionSize int
	// MaxConcurrentPositions caps live positions across markets.
	MaxConcurrentPositions int
	// MaxDailyLoss is the daily loss fraction suspending entries.
	MaxDailyLoss float64
	// MaxWeeklyLoss is the weekly loss fraction suspending entries.
	MaxWeeklyLoss float64
	// RSIOversold is the oscillator arm level for longs.
	RSIOversold float64
	// RSIOverbought is the oscillator arm level for shorts.
	RSIOverbought float64
	// RSILongCross is the oscillator trigger level for longs.
	RSILongCross float64
	// RSIShortCross is the oscillator trigger level for shorts.
	RSIShortCross float64
	// PatternToleranceTicks is the pattern zone proximity tolerance in ticks.
	PatternToleranceTicks int
	// ImbalanceLong is the bid/ask ratio confirming longs.
	ImbalanceLong float64
	// ImbalanceShort is the bid/ask ratio confirming shorts.
	ImbalanceShort float64
	// ConfirmationWindowSeconds bounds how long a candidate awaits confirmation.
	ConfirmationWindowSeconds int
	// TimeExitMinutes bounds how long a stagnant position is held.
	TimeExitMinutes int
	// BreakevenThreshold is the stagnation bound for time exits, in points.
	BreakevenThreshold float64
	// BreakevenOffsetTicks offsets the breakeven stop move.
	BreakevenOffsetTicks int
	// TrailingMultiple is the favorable move multiple activating trailing.
	TrailingMultiple float64
	// StopPercent is the percent-of-price initial stop bound.
	StopPercent float64
	// StopTicks is the fixed tick-count initial stop bound.
	StopTicks int
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
	CorrelationWindow int
	// StalenessSeconds is the duration without data before a market is stale.
	StalenessSeconds int
	// MaxExecRetries bounds execution retry attempts.
	MaxExecRetries int

	registeredFlags map[string]bool
}

// applyDefaults fills unset tunables with their defaults.
func (cfg *Config) applyDefaults() {
	if cfg.RiskFraction == 0 {
		cfg.RiskFraction = 0.005
	}
	if cfg.MaxPositionSize == 0 {
		cfg.MaxPositionSize = 5
	}
	if cfg.MaxConcurrentPositions == 0 {
		cfg.MaxConcurrentPositions = 2
	}
	if cfg.MaxDailyLoss == 0 {
		cfg.MaxDailyLoss = 0.03
	}
	if cfg.MaxWeeklyLoss == 0 {
		cfg.MaxWeeklyLoss = 0.05
	}
	if cfg.RSIOversold == 0 {
		cfg.RSIOversold = 30
	}
	if cfg.RSIOverbought == 0 {
		cfg.RSIOverbought = 70
	}
	if cfg.RSILongCross == 0 {
		cfg.RSILongCross = 40
	}
	if cfg.RSIShortCross == 0 {
		cfg.RSIShortCross = 60
	}
	if cfg.PatternToleranceTicks == 0 {
		cfg.PatternToleranceTicks = 2
	}
	if cfg.ImbalanceLong == 0 {
		cfg.ImbalanceLong = 1.5
	}
	if cfg.ImbalanceShort == 0 {
		cfg.ImbalanceShort = 0.6667
	}
	if cfg.ConfirmationWindowSeconds == 0 {
		cfg.ConfirmationWindowSeconds = 8
	}
	if cfg.TimeExitMinutes == 0 {
		cfg.TimeExitMinutes = 5
	}
	if cfg.BreakevenOffsetTicks == 0 {
		cfg.BreakevenOffsetTicks = 2
	}
	if cfg.TrailingMultiple == 0 {
		cfg.TrailingMultiple = 1
	}
	if cfg.StopPercent == 0 {
		cfg.StopPercent = 0.001
	}
	if cfg.StopTicks == 0 {
		cfg.StopTicks = 12
	}
	if cfg.RRMultiple == 0 {
		cfg.RRMultiple = 2
	}
	if cfg.VolumeThreshold == 0 {
		cfg.VolumeThreshold = 0.5
	}
	if cfg.CorrelationThreshold == 0 {
		cfg.CorrelationThreshold = 0.8
	}
	if cfg.CorrelationWindow == 0 {
		cfg.CorrelationWindow = 30
	}
	if cfg.StalenessSeconds == 0 {
		cfg.StalenessSeconds = 30
	}
	if cfg.MaxExecRetries == 0 {
		cfg.MaxExecRetries = 3
	}
}

// Validate asserts the config sane inputs.
func (cfg *Config) Validate() error {
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
	if cfg.Equity <= 0 {
		errs = errors.Join(errs, fmt.Errorf("equity must be positive"))
	}
	if cfg.TickSize <= 0 {
		errs = errors.Join(errs, fmt.Errorf("tick size must be positive"))
	}
	if cfg.TickValue <= 0 {
		errs = errors.Join(errs, fmt.Errorf("tick value must be positive"))
	}
	if cfg.ImbalanceLong <= cfg.ImbalanceShort {
		errs = errors.Join(errs, fmt.Errorf("long imbalance threshold must exceed the short threshold"))
	}

	return errs
}

// registerFlag registers command line arguments of any type and tracks them to avoid reregistration.
func (cfg *Config) registerFlag(name string, value interface{}, usage string) error {
	if cfg.registeredFlags == nil {
		cfg.registeredFlags = make(map[string]bool)
	}

	if cfg.registeredFlags[name] {
		return nil
	}

	cfg.registeredFlags[name] = true

	defValue := os.Getenv(name)
	val := reflect.ValueOf(value)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return fmt.Errorf("%s: value must be a non-nil pointer", name)
	}

	switch val.Elem().Kind() {
	case reflect.String:
		flag.StringVar(value.(*string), name, defValue, usage)
	case reflect.Bool:
		var def bool
		if defValue != "" {
			def, _ = strconv.ParseBool(defValue)
		}
		flag.BoolVar(value.(*bool), name, def, usage)
	case reflect.Int:
		var def int
		if defValue != "" {
			def, _ = strconv.Atoi(defValue)
		}
		flag.IntVar(value.(*int), name, def, usage)
	case reflect.Float64:
		var def float64
		if defValue != "" {
			def, _ = strconv.ParseFloat(defValue, 64)
		}
		flag.Float64Var(value.(*float64), name, def, usage)
	case reflect.Slice:
		// Only handle []string
		if val.Elem().Type().Elem().Kind() == reflect.String {
			var def []string
			if defValue != "" {
				def = strings.Split(defValue, ",")
			}
			flag.Func(name, usage, func(s string) error {
				*value.(*[]string) = strings.Split(s, ",")
				return nil
			})
			// Set default if not provided via flag
			if len(def) > 0 {
				*value.(*[]string) = def
			}
		} else {
			return fmt.Errorf("%s: unsupported slice type", name)
		}
	default:
		return fmt.Errorf("%s: unsupported type", name)
	}

	return nil
}

// loadConfig loads the configuration from environment variables and command line flags.
func loadConfig(cfg *Config, path string) error {
	if path == "" {
		path = ".env"
	}

	// Check if the expected .env file exists before loading it.
	_, err := os.Stat(path)
	if err == nil {
		err := godotenv.Load(path)
		if err != nil {
			return fmt.Errorf("loading .env file: %w", err)
		}
	}

	// Register command line arguments using loaded environment variables as defaults.
	flags := []struct {
		name  string
		value interface{}
		usage string
	}{
		{"markets", &cfg.Markets, "the traded markets"},
		{"feedurl", &cfg.FeedURL, "the data feed websocket endpoint"},
		{"dbendpoint", &cfg.DBEndpoint, "the database connection endpoint"},
		{"dbuser", &cfg.DBUser, "the database user"},
		{"dbpass", &cfg.DBPass, "the database user pass"},
		{"equity", &cfg.Equity, "the account equity"},
		{"riskfraction", &cfg.RiskFraction, "the fraction of equity risked per trade"},
		{"maxpositionsize", &cfg.MaxPositionSize, "the maximum contract size"},
		{"maxconcurrentpositions", &cfg.MaxConcurrentPositions, "the maximum concurrent positions"},
		{"maxdailyloss", &cfg.MaxDailyLoss, "the daily loss fraction suspending entries"},
		{"maxweeklyloss", &cfg.MaxWeeklyLoss, "the weekly loss fraction suspending entries"},
		{"rsioversold", &cfg.RSIOversold, "the oscillator arm level for longs"},
		{"rsioverbought", &cfg.RSIOverbought, "the oscillator arm level for shorts"},
		{"rsilongcross", &cfg.RSILongCross, "the oscillator trigger level for longs"},
		{"rsishortcross", &cfg.RSIShortCross, "the oscillator trigger level for shorts"},
		{"patterntoleranceticks", &cfg.PatternToleranceTicks, "the pattern zone tolerance in ticks"},
		{"imbalancelong", &cfg.ImbalanceLong, "the bid/ask ratio confirming longs"},
		{"imbalanceshort", &cfg.ImbalanceShort, "the bid/ask ratio confirming shorts"},
		{"confirmationwindow", &cfg.ConfirmationWindowSeconds, "the confirmation window in seconds"},
		{"timeexit", &cfg.TimeExitMinutes, "the stagnant position bound in minutes"},
		{"breakeventhreshold", &cfg.BreakevenThreshold, "the stagnation bound for time exits in points"},
		{"breakevenoffsetticks", &cfg.BreakevenOffsetTicks, "the breakeven stop offset in ticks"},
		{"trailingmultiple", &cfg.TrailingMultiple, "the favorable move multiple activating trailing"},
		{"stoppercent", &cfg.StopPercent, "the percent-of-price initial stop bound"},
		{"stopticks", &cfg.StopTicks, "the fixed tick-count initial stop bound"},
		{"ticksize", &cfg.TickSize, "the minimum price increment"},
		{"tickvalue", &cfg.TickValue, "the monetary value of one tick per contract"},
		{"rrmultiple", &cfg.RRMultiple, "the target distance multiple of the risk distance"},
		{"volumethreshold", &cfg.VolumeThreshold, "the minimum fraction of average volume for entries"},
		{"correlationthreshold", &cfg.CorrelationThreshold, "the correlated exposure refusal threshold"},
		{"correlationwindow", &cfg.CorrelationWindow, "the return count used for correlation"},
		{"stalenessbound", &cfg.StalenessSeconds, "the staleness bound in seconds"},
		{"maxexecretries", &cfg.MaxExecRetries, "the maximum execution retry attempts"},
	}

	for idx := range flags {
		err = cfg.registerFlag(flags[idx].name, flags[idx].value, flags[idx].usage)
		if err != nil {
			return err
		}
	}

	// Parse command-line flags.
	flag.Parse()

	cfg.applyDefaults()

	return cfg.Validate()
}
