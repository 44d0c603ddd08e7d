package stream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"

	"github.com/AllanBico/atlas/internal/ports"
)

// Handler receives each decoded message in arrival order.
type Handler func(Message)

// ClientConfig configures reconnect behaviour.
type ClientConfig struct {
	URL            string
	ReconnectDelay time.Duration // First backoff step
	MaxDelay       time.Duration
	MaxAttempts    int // Consecutive failed dials before giving up; zero retries forever
}

// Client consumes a stream endpoint and reconnects with exponential backoff.
type Client struct {
	cfg     ClientConfig
	handler Handler
	logger  ports.Logger
	dialer  *websocket.Dialer
}

// NewClient creates a client. Call Run to start consuming.
func NewClient(cfg ClientConfig, handler Handler, logger ports.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: stream URL is required", ports.ErrInvalidConfiguration)
	}
	if handler == nil {
		return nil, fmt.Errorf("%w: stream handler is required", ports.ErrInvalidConfiguration)
	}
	if logger == nil {
		logger = ports.NopLogger{}
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = time.Second
	}
	if cfg.MaxDelay < cfg.ReconnectDelay {
		cfg.MaxDelay = 30 * time.Second
	}
	return &Client{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}, nil
}

// Run consumes messages until ctx is cancelled (returns nil) or MaxAttempts consecutive
// dials fail (returns an error wrapping ErrTransportDisconnect).
func (c *Client) Run(ctx context.Context) error {
	b := &backoff.Backoff{
		Min:    c.cfg.ReconnectDelay,
		Max:    c.cfg.MaxDelay,
		Factor: 2,
		Jitter: true,
	}

	for {
		conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			attempt := int(b.Attempt()) + 1
			if c.cfg.MaxAttempts > 0 && attempt >= c.cfg.MaxAttempts {
				return fmt.Errorf("%w: gave up after %d attempts: %v", ports.ErrTransportDisconnect, attempt, err)
			}
			delay := b.Duration()
			c.logger.Warn(ctx, "Stream connection failed, retrying", map[string]interface{}{
				"url": c.cfg.URL, "attempt": attempt, "delay": delay.String(), "error": err.Error(),
			})
			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return nil
			}
		}

		c.logger.Info(ctx, "Stream connected", map[string]interface{}{"url": c.cfg.URL})

		frames, err := c.consume(ctx, conn)
		if ctx.Err() != nil {
			return nil
		}
		// A connection that never delivered a frame keeps growing the backoff.
		if frames > 0 {
			b.Reset()
		}
		delay := b.Duration()
		c.logger.Warn(ctx, "Stream disconnected, reconnecting", map[string]interface{}{
			"error": err.Error(), "delay": delay.String(),
		})
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil
		}
	}
}

// consume reads frames until the connection fails or ctx ends and reports how many arrived.
func (c *Client) consume(ctx context.Context, conn *websocket.Conn) (int, error) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			conn.Close()
		case <-done:
			conn.Close()
		}
	}()

	frames := 0
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return frames, fmt.Errorf("%w: %v", ports.ErrTransportDisconnect, err)
		}
		frames++
		msg, err := Decode(data)
		if errors.Is(err, ErrUnknownMessage) {
			// Newer servers may add variants
			c.logger.Debug(ctx, "Skipping unknown stream message", map[string]interface{}{"error": err.Error()})
			continue
		}
		if err != nil {
			c.logger.Warn(ctx, "Malformed stream message", map[string]interface{}{"error": err.Error()})
			continue
		}
		c.handler(msg)
	}
}
