package connection

import (
	"errors"
	"time"
)

// Errors
var (
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrAlreadyClosed   = errors.New("already closed")
)

// TimestampedMessage wraps raw frame data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw frame bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// Config configures a Dialer.
type Config struct {
	URL          string        // WebSocket base URL (e.g., wss://stream-fxpractice.oanda.com)
	Token        string        // Bearer token
	PingTimeout  time.Duration // Max time without ping/pong before considering connection stale
	PingInterval time.Duration // How often a keepalive ping is sent
	WriteTimeout time.Duration // Write deadline for control frames
	BufferSize   int           // Frames read ahead of the consumer
	MaxFrameSize int64         // Largest accepted frame in bytes
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		PingTimeout:  60 * time.Second,
		PingInterval: 30 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   1,
		MaxFrameSize: 1 << 20,
	}
}
