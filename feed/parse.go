package feed

import (
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"trendmomentum/shared"
)

// Provider event types carried in the frame envelope.
const (
	eventBar        = "bar"
	eventIndicators = "indicators"
	eventOrderbook  = "orderbook"
	eventHalt       = "halt"
	eventAck        = "ack"
)

// parseBar parses a finalized bar from the provided frame.
func parseBar(frame *gjson.Result) (*shared.Bar, error) {
	timeframe, err := shared.ParseTimeframe(frame.Get("timeframe").String())
	if err != nil {
		return nil, fmt.Errorf("parsing bar timeframe: %w", err)
	}

	openTime, err := time.Parse(shared.DateLayout, frame.Get("opentime").String())
	if err != nil {
		return nil, fmt.Errorf("parsing bar open time: %w", err)
	}

	market := frame.Get("market").String()
	if market == "" {
		return nil, fmt.Errorf("bar frame has no market")
	}

	bar := &shared.Bar{
		Market:    market,
		Timeframe: timeframe,
		Open:      frame.Get("open").Float(),
		High:      frame.Get("high").Float(),
		Low:       frame.Get("low").Float(),
		Close:     frame.Get("close").Float(),
		Volume:    frame.Get("volume").Float(),
		OpenTime:  openTime,
	}

	return bar, nil
}

// parseIndicators parses an indicator snapshot from the provided frame.
func parseIndicators(frame *gjson.Result) (*shared.IndicatorSnapshot, error) {
	timeframe, err := shared.ParseTimeframe(frame.Get("timeframe").String())
	if err != nil {
		return nil, fmt.Errorf("parsing snapshot timeframe: %w", err)
	}

	openTime, err := time.Parse(shared.DateLayout, frame.Get("opentime").String())
	if err != nil {
		return nil, fmt.Errorf("parsing snapshot open time: %w", err)
	}

	market := frame.Get("market").String()
	if market == "" {
		return nil, fmt.Errorf("indicator frame has no market")
	}

	snapshot := &shared.IndicatorSnapshot{
		Market:            market,
		Timeframe:         timeframe,
		OpenTime:          openTime,
		RSI:               frame.Get("rsi").Float(),
		EMAFast:           frame.Get("emafast").Float(),
		EMASlow:           frame.Get("emaslow").Float(),
		MACDHistogram:     frame.Get("macdhistogram").Float(),
		WAEExplosion:      frame.Get("wae.explosion").Float(),
		WAETrend:          frame.Get("wae.trend").Float(),
		WAEDeadZone:       frame.Get("wae.deadzone").Float(),
		ATR:               frame.Get("atr").Float(),
		SAR:               frame.Get("sar").Float(),
		BullishOrderBlock: frame.Get("patterns.bullishorderblock").Bool(),
		OrderBlockBottom:  frame.Get("patterns.orderblockbottom").Float(),
		BearishOrderBlock: frame.Get("patterns.bearishorderblock").Bool(),
		OrderBlockTop:     frame.Get("patterns.orderblocktop").Float(),
		BullishGap:        frame.Get("patterns.bullishgap").Bool(),
		GapTop:            frame.Get("patterns.gaptop").Float(),
		BearishGap:        frame.Get("patterns.bearishgap").Bool(),
		GapBottom:         frame.Get("patterns.gapbottom").Float(),
	}

	return snapshot, nil
}

// parseOrderbook parses an order book sample from the provided frame.
func parseOrderbook(frame *gjson.Result, now time.Time) (*shared.OrderbookSample, error) {
	market := frame.Get("market").String()
	if market == "" {
		return nil, fmt.Errorf("orderbook frame has no market")
	}

	sample := shared.NewOrderbookSample(market,
		frame.Get("bidvolume").Float(),
		frame.Get("askvolume").Float(),
		uint32(frame.Get("bidicebergs").Uint()),
		uint32(frame.Get("askicebergs").Uint()),
		now)

	return &sample, nil
}

// parseAck parses an execution acknowledgement from the provided frame.
func parseAck(frame *gjson.Result, now time.Time) (*shared.ExecutionAck, error) {
	requestID := frame.Get("requestid").String()
	if requestID == "" {
		return nil, fmt.Errorf("ack frame has no request id")
	}

	var kind shared.ExecutionKind
	switch frame.Get("kind").String() {
	case "entry":
		kind = shared.EntryExecution
	case "stopmodify":
		kind = shared.StopModifyExecution
	case "close":
		kind = shared.CloseExecution
	default:
		return nil, fmt.Errorf("unknown ack kind: %s", frame.Get("kind").String())
	}

	ack := &shared.ExecutionAck{
		RequestID:  requestID,
		PositionID: frame.Get("positionid").String(),
		Kind:       kind,
		Success:    frame.Get("success").Bool(),
		FillPrice:  frame.Get("fillprice").Float(),
		Detail:     frame.Get("detail").String(),
		CreatedOn:  now,
	}

	return ack, nil
}
