package connection

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/oanda-data/internal/version"
)

// Dialer opens WebSocket streams against one host.
type Dialer struct {
	cfg    Config
	logger *slog.Logger
}

// NewDialer creates a Dialer.
func NewDialer(cfg Config, logger *slog.Logger) *Dialer {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultConfig()
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = defaults.PingTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaults.PingInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.BufferSize < 1 {
		cfg.BufferSize = defaults.BufferSize
	}
	if cfg.MaxFrameSize <= 0 {
		cfg.MaxFrameSize = defaults.MaxFrameSize
	}
	return &Dialer{cfg: cfg, logger: logger}
}

// Open dials path on the configured host and starts reading frames.
func (d *Dialer) Open(ctx context.Context, path string, query url.Values) (*Conn, error) {
	target := strings.TrimRight(d.cfg.URL, "/") + path
	if len(query) > 0 {
		target += "?" + strings.ReplaceAll(query.Encode(), "%2C", ",")
	}

	// Build headers
	header := http.Header{}
	header.Set("Accept", "application/json")
	header.Set("User-Agent", version.UserAgent())
	if d.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+d.cfg.Token)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, resp, err := dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", path, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", path, err)
	}

	conn.SetReadLimit(d.cfg.MaxFrameSize)

	c := &Conn{
		cfg:        d.cfg,
		logger:     d.logger.With("path", path),
		conn:       conn,
		messages:   make(chan TimestampedMessage, d.cfg.BufferSize),
		done:       make(chan struct{}),
		connected:  true,
		lastPingAt: time.Now(),
	}

	// Set up ping handler - server sends ping, we respond with pong
	conn.SetPingHandler(func(data string) error {
		c.touch()
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(time.Second),
		)
	})

	// Set up pong handler - server responds to our ping
	conn.SetPongHandler(func(string) error {
		c.touch()
		return nil
	})

	go c.readLoop()
	go c.heartbeatLoop()

	c.logger.Debug("websocket stream connected")
	return c, nil
}

// Conn is one WebSocket stream. ReadFrame must not be called concurrently.
type Conn struct {
	cfg    Config
	logger *slog.Logger

	conn *websocket.Conn

	// Frames in wire order; closed by readLoop when it exits.
	messages chan TimestampedMessage
	done     chan struct{}

	// Write serialization for control frames
	writeMu sync.Mutex

	// State
	mu         sync.RWMutex
	connected  bool
	closed     bool
	lastPingAt time.Time
	err        error // why readLoop stopped, first cause wins
}

// ReadFrame returns the next frame. It returns io.EOF after a normal close by
// the server.
func (c *Conn) ReadFrame(ctx context.Context) ([]byte, error) {
	select {
	case msg, ok := <-c.messages:
		if !ok {
			return nil, c.readErr()
		}
		return msg.Data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close gracefully closes the connection.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.connected = false
	c.mu.Unlock()

	c.setErr(ErrAlreadyClosed)

	// Signal goroutines to stop
	close(c.done)

	c.writeMu.Lock()
	c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	c.writeMu.Unlock()
	return c.conn.Close()
}

// IsConnected returns the current connection state.
func (c *Conn) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *Conn) touch() {
	c.mu.Lock()
	c.lastPingAt = time.Now()
	c.mu.Unlock()
}

func (c *Conn) setErr(err error) {
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()
}

func (c *Conn) readErr() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.err == nil {
		return io.EOF
	}
	return c.err
}

// readLoop reads frames from the WebSocket and hands them to ReadFrame. It
// blocks when the consumer falls behind rather than dropping frames.
func (c *Conn) readLoop() {
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
		close(c.messages)
	}()

	for {
		msgType, data, err := c.conn.ReadMessage()
		receivedAt := time.Now() // Capture timestamp immediately

		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.setErr(io.EOF)
			} else {
				c.setErr(err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			c.logger.Debug("skipping non-text frame", "type", msgType)
			continue
		}

		select {
		case c.messages <- TimestampedMessage{Data: data, ReceivedAt: receivedAt}:
		case <-c.done:
			return
		}
	}
}

// heartbeatLoop keeps the connection alive and detects stale ones.
func (c *Conn) heartbeatLoop() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
			}
			c.writeMu.Unlock()

			// Check for stale connection (no pong/ping response)
			c.mu.RLock()
			lastPing := c.lastPingAt
			c.mu.RUnlock()

			if time.Since(lastPing) > c.cfg.PingTimeout {
				c.logger.Warn("no ping received, connection stale",
					"last_ping", lastPing,
					"timeout", c.cfg.PingTimeout,
				)
				c.setErr(ErrStaleConnection)
				c.conn.Close()
				return
			}
		}
	}
}
