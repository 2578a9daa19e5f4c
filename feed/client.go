package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"trendmomentum/shared"
)

const (
	// pongWait is the allowed duration between pongs before the connection
	// is considered dead.
	pongWait = time.Second * 30
	// pingInterval is the interval between pings, under the pong wait.
	pingInterval = (pongWait * 9) / 10
	// writeWait is the allowed duration for a frame write.
	writeWait = time.Second * 10
	// reconnectWait is the pause before a reconnection attempt.
	reconnectWait = time.Second * 5
)

// ClientConfig represents the data feed client configuration.
type ClientConfig struct {
	// URL is the feed websocket endpoint.
	URL string
	// Markets represents the markets to subscribe to.
	Markets []string
	// OnBar delivers a finalized bar.
	OnBar func(bar shared.Bar)
	// OnIndicators delivers an indicator snapshot.
	OnIndicators func(snapshot shared.IndicatorSnapshot)
	// OnOrderbookSample delivers an order book sample.
	OnOrderbookSample func(sample shared.OrderbookSample)
	// OnMarketHalt delivers a market halt notice.
	OnMarketHalt func(market string)
	// OnExecutionAck delivers an execution acknowledgement.
	OnExecutionAck func(ack shared.ExecutionAck)
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *ClientConfig) Validate() error {
	var errs error

	if cfg.URL == "" {
		errs = errors.Join(errs, fmt.Errorf("feed url cannot be an empty string"))
	}
	if len(cfg.Markets) == 0 {
		errs = errors.Join(errs, fmt.Errorf("no markets provided for feed client"))
	}
	if cfg.OnBar == nil {
		errs = errors.Join(errs, fmt.Errorf("bar callback cannot be nil"))
	}
	if cfg.OnIndicators == nil {
		errs = errors.Join(errs, fmt.Errorf("indicators callback cannot be nil"))
	}
	if cfg.OnOrderbookSample == nil {
		errs = errors.Join(errs, fmt.Errorf("orderbook sample callback cannot be nil"))
	}
	if cfg.OnMarketHalt == nil {
		errs = errors.Join(errs, fmt.Errorf("market halt callback cannot be nil"))
	}
	if cfg.OnExecutionAck == nil {
		errs = errors.Join(errs, fmt.Errorf("execution ack callback cannot be nil"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Client streams provider events over a websocket and routes orders back on
// the same connection. Frames are handled sequentially in arrival order, the
// provider emits a bar's indicator snapshot before the bar itself so
// evaluations always see matching state.
type Client struct {
	cfg     *ClientConfig
	conn    *websocket.Conn
	connMtx sync.Mutex
}

// Ensure the feed client implements the execution provider interface.
var _ shared.ExecutionProvider = (*Client)(nil)

// NewClient initializes a new data feed client.
func NewClient(cfg *ClientConfig) (*Client, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return &Client{cfg: cfg}, nil
}

// write sends the provided payload on the feed connection.
func (c *Client) write(payload interface{}) error {
	c.connMtx.Lock()
	defer c.connMtx.Unlock()

	if c.conn == nil {
		return fmt.Errorf("feed is not connected")
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(payload)
}

// SubmitBracket submits a bracket order for execution.
func (c *Client) SubmitBracket(req shared.BracketRequest) error {
	return c.write(map[string]interface{}{
		"action":     "submitbracket",
		"requestid":  req.RequestID,
		"positionid": req.PositionID,
		"market":     req.Market,
		"direction":  req.Direction.String(),
		"size":       req.Size,
		"entry":      req.Entry,
		"stoploss":   req.StopLoss,
		"target":     req.Target,
	})
}

// ModifyStop modifies the stop price of a live position.
func (c *Client) ModifyStop(req shared.ModifyStopRequest) error {
	return c.write(map[string]interface{}{
		"action":     "modifystop",
		"requestid":  req.RequestID,
		"positionid": req.PositionID,
		"market":     req.Market,
		"stopprice":  req.StopPrice,
	})
}

// ClosePosition closes a live position at market.
func (c *Client) ClosePosition(req shared.CloseRequest) error {
	return c.write(map[string]interface{}{
		"action":     "closeposition",
		"requestid":  req.RequestID,
		"positionid": req.PositionID,
		"market":     req.Market,
		"reason":     req.Reason.String(),
	})
}

// connect dials the feed and subscribes to the configured markets.
func (c *Client) connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dialing feed: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	c.connMtx.Lock()
	c.conn = conn
	c.connMtx.Unlock()

	err = c.write(map[string]interface{}{
		"action":  "subscribe",
		"markets": c.cfg.Markets,
	})
	if err != nil {
		c.closeConn()
		return fmt.Errorf("subscribing feed: %w", err)
	}

	return nil
}

// closeConn closes the feed connection.
func (c *Client) closeConn() {
	c.connMtx.Lock()
	defer c.connMtx.Unlock()

	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// handleFrame parses the provided frame and routes it to its callback.
func (c *Client) handleFrame(data []byte, now time.Time) {
	frame := gjson.ParseBytes(data)

	switch frame.Get("type").String() {
	case eventBar:
		bar, err := parseBar(&frame)
		if err != nil {
			c.cfg.Logger.Error().Msgf("parsing bar frame: %v", err)
			return
		}
		c.cfg.OnBar(*bar)

	case eventIndicators:
		snapshot, err := parseIndicators(&frame)
		if err != nil {
			c.cfg.Logger.Error().Msgf("parsing indicator frame: %v", err)
			return
		}
		c.cfg.OnIndicators(*snapshot)

	case eventOrderbook:
		sample, err := parseOrderbook(&frame, now)
		if err != nil {
			c.cfg.Logger.Error().Msgf("parsing orderbook frame: %v", err)
			return
		}
		c.cfg.OnOrderbookSample(*sample)

	case eventHalt:
		market := frame.Get("market").String()
		if market == "" {
			c.cfg.Logger.Error().Msg("halt frame has no market")
			return
		}
		c.cfg.OnMarketHalt(market)

	case eventAck:
		ack, err := parseAck(&frame, now)
		if err != nil {
			c.cfg.Logger.Error().Msgf("parsing ack frame: %v", err)
			return
		}
		c.cfg.OnExecutionAck(*ack)

	default:
		c.cfg.Logger.Warn().Msgf("unknown feed frame type: %s", frame.Get("type").String())
	}
}

// readFrames consumes frames until the connection fails or the context ends.
func (c *Client) readFrames(ctx context.Context) error {
	c.connMtx.Lock()
	conn := c.conn
	c.connMtx.Unlock()
	if conn == nil {
		return fmt.Errorf("feed is not connected")
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		now, _, err := shared.NewYorkTime()
		if err != nil {
			c.cfg.Logger.Error().Msgf("fetching new york time: %v", err)
			continue
		}

		c.handleFrame(data, now)
	}
}

// keepAlive pings the feed on an interval until the provided context ends.
func (c *Client) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.connMtx.Lock()
			if c.conn != nil {
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = c.conn.WriteMessage(websocket.PingMessage, nil)
			}
			c.connMtx.Unlock()
		}
	}
}

// Run manages the lifecycle processes of the feed client, reconnecting with
// a fixed backoff until the provided context ends.
func (c *Client) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		err := c.connect(ctx)
		if err != nil {
			c.cfg.Logger.Error().Msgf("connecting feed: %v", err)
		} else {
			connCtx, cancel := context.WithCancel(ctx)
			go c.keepAlive(connCtx)

			err = c.readFrames(connCtx)
			cancel()
			c.closeConn()

			if ctx.Err() != nil {
				return
			}

			c.cfg.Logger.Warn().Msgf("feed connection lost: %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectWait):
			// fallthrough
		}
	}
}
