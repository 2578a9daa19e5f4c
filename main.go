package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"trendmomentum/service"
)

// handleTermination processes context cancellation signals or interrupt signals from the OS.
func handleTermination(ctx context.Context, cancel context.CancelFunc) {
	// Listen for interrupt signals.
	signals := []os.Signal{os.Interrupt}
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, signals...)

	// Wait for the context to be cancelled or an interrupt signal.
	for {
		select {
		case <-ctx.Done():
			return

		case <-interrupt:
			cancel()
		}
	}
}

func main() {
	// Log to the console and a size-capped rotating file.
	fileWriter := &lumberjack.Logger{
		Filename:   "logs/trader.log",
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
	}
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	log.Logger = zerolog.New(io.MultiWriter(consoleWriter, fileWriter)).
		With().Timestamp().Logger()

	var cfg Config
	err := loadConfig(&cfg, "")
	if err != nil {
		log.Error().Err(err).Msg("loading config")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	traderCfg := service.TraderConfig{
		Markets:                cfg.Markets,
		FeedURL:                cfg.FeedURL,
		DBEndpoint:             cfg.DBEndpoint,
		DBUser:                 cfg.DBUser,
		DBPass:                 cfg.DBPass,
		Equity:                 cfg.Equity,
		RiskFraction:           cfg.RiskFraction,
		MaxPositionSize:        uint32(cfg.MaxPositionSize),
		MaxConcurrentPositions: uint32(cfg.MaxConcurrentPositions),
		MaxDailyLossFraction:   cfg.MaxDailyLoss,
		MaxWeeklyLossFraction:  cfg.MaxWeeklyLoss,
		RSIOversold:            cfg.RSIOversold,
		RSIOverbought:          cfg.RSIOverbought,
		RSILongCross:           cfg.RSILongCross,
		RSIShortCross:          cfg.RSIShortCross,
		PatternToleranceTicks:  uint32(cfg.PatternToleranceTicks),
		ImbalanceLong:          cfg.ImbalanceLong,
		ImbalanceShort:         cfg.ImbalanceShort,
		ConfirmationWindow:     time.Duration(cfg.ConfirmationWindowSeconds) * time.Second,
		TimeExitAfter:          time.Duration(cfg.TimeExitMinutes) * time.Minute,
		BreakevenThreshold:     cfg.BreakevenThreshold,
		BreakevenOffsetTicks:   uint32(cfg.BreakevenOffsetTicks),
		TrailingMultiple:       cfg.TrailingMultiple,
		StopPercent:            cfg.StopPercent,
		StopTicks:              uint32(cfg.StopTicks),
		TickSize:               cfg.TickSize,
		TickValue:              cfg.TickValue,
		RRMultiple:             cfg.RRMultiple,
		VolumeThreshold:        cfg.VolumeThreshold,
		CorrelationThreshold:   cfg.CorrelationThreshold,
		CorrelationWindow:      int32(cfg.CorrelationWindow),
		StalenessBound:         time.Duration(cfg.StalenessSeconds) * time.Second,
		MaxExecutionRetries:    uint32(cfg.MaxExecRetries),
		Cancel:                 cancel,
	}
	trader, err := service.NewTrader(ctx, &traderCfg)
	if err != nil {
		log.Error().Err(err).Msg("creating trader service")
		return
	}

	go handleTermination(ctx, cancel)
	trader.Run(ctx)
}
