package socket

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
)

// Frame is one inbound WebSocket frame with a local receive timestamp.
type Frame struct {
	Data       []byte    // Raw frame bytes
	Binary     bool      // True for binary frames, false for text
	ReceivedAt time.Time // Local timestamp when the frame was read
}

// Socket is the minimal transport capability the supervisor depends on:
// inbound frames and errors as channels, plus Send and Close. Messages and
// Errors are closed once the connection is gone.
type Socket interface {
	// Send writes one text frame to the connection.
	Send(data []byte) error

	// Close shuts the connection down. Idempotent.
	Close() error

	// Messages returns the channel of inbound frames.
	Messages() <-chan Frame

	// Errors returns the channel of connection errors.
	Errors() <-chan error
}

// Dialer opens a Socket toward url. Tests substitute in-process fakes.
type Dialer func(ctx context.Context, url string, header http.Header) (Socket, error)

// Config tunes the gorilla-backed connection.
type Config struct {
	HandshakeTimeout time.Duration // Dial handshake deadline
	WriteTimeout     time.Duration // Write deadline for sends
	PingInterval     time.Duration // Keepalive ping cadence
	PingTimeout      time.Duration // Max control-channel silence before the connection is stale
	BufferSize       int           // Frame channel buffer size
	Logger           *slog.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		PingInterval:     15 * time.Second,
		PingTimeout:      60 * time.Second,
		BufferSize:       256,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.PingInterval == 0 {
		c.PingInterval = def.PingInterval
	}
	if c.PingTimeout == 0 {
		c.PingTimeout = def.PingTimeout
	}
	if c.BufferSize == 0 {
		c.BufferSize = def.BufferSize
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// NewDialer returns a Dialer that opens gorilla/websocket connections with
// the given configuration.
func NewDialer(cfg Config) Dialer {
	cfg = cfg.withDefaults()
	return func(ctx context.Context, url string, header http.Header) (Socket, error) {
		return dial(ctx, url, header, cfg)
	}
}

// conn is the gorilla-backed Socket.
type conn struct {
	cfg    Config
	logger *slog.Logger

	ws *websocket.Conn

	// Output channels. Owned by readLoop: it alone sends and closes them.
	messages chan Frame
	errors   chan error
	done     chan struct{}

	// Write serialization
	writeMu sync.Mutex

	// State
	mu         sync.RWMutex
	connected  bool
	closed     bool
	stale      bool
	lastPingAt time.Time
}

func dial(ctx context.Context, url string, header http.Header, cfg Config) (Socket, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.HandshakeTimeout,
	}

	ws, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}

	c := &conn{
		cfg:        cfg,
		logger:     cfg.Logger,
		ws:         ws,
		messages:   make(chan Frame, cfg.BufferSize),
		errors:     make(chan error, 1),
		done:       make(chan struct{}),
		connected:  true,
		lastPingAt: time.Now(),
	}

	// Server sends ping, we respond with pong.
	ws.SetPingHandler(func(data string) error {
		c.mu.Lock()
		c.lastPingAt = time.Now()
		c.mu.Unlock()

		return ws.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(time.Second),
		)
	})

	// Server responds to our ping.
	ws.SetPongHandler(func(data string) error {
		c.mu.Lock()
		c.lastPingAt = time.Now()
		c.mu.Unlock()
		return nil
	})

	go c.readLoop()
	go c.keepaliveLoop()

	c.logger.Debug("websocket connected", "url", url)

	return c, nil
}

// Send writes one text frame to the connection.
func (c *conn) Send(data []byte) error {
	c.mu.RLock()
	if !c.connected {
		c.mu.RUnlock()
		return ErrNotConnected
	}
	c.mu.RUnlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Close shuts the connection down. Safe to call twice.
func (c *conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.connected = false
	c.mu.Unlock()

	close(c.done)

	c.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return c.ws.Close()
}

// Messages returns the inbound frame channel.
func (c *conn) Messages() <-chan Frame {
	return c.messages
}

// Errors returns the connection error channel.
func (c *conn) Errors() <-chan error {
	return c.errors
}

// readLoop reads frames from the WebSocket until the connection dies, then
// closes both output channels.
func (c *conn) readLoop() {
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
		close(c.errors)
		close(c.messages)
	}()

	for {
		mt, data, err := c.ws.ReadMessage()
		receivedAt := time.Now() // Capture timestamp immediately

		if err != nil {
			// A failure after Close() is the close itself, not an error.
			select {
			case <-c.done:
				return
			default:
			}

			c.mu.RLock()
			stale := c.stale
			c.mu.RUnlock()
			if stale {
				err = ErrStaleConnection
			}
			c.errors <- err
			return
		}

		fr := Frame{
			Data:       data,
			Binary:     mt == websocket.BinaryMessage,
			ReceivedAt: receivedAt,
		}

		select {
		case c.messages <- fr:
		case <-c.done:
			return
		default:
			c.logger.Warn("frame buffer full, dropping frame")
		}
	}
}

// keepaliveLoop pings the server and watches for control-channel silence.
// A stale connection is torn down through the websocket itself so readLoop
// surfaces it like any other failure.
func (c *conn) keepaliveLoop() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := c.ws.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
			}

			c.mu.RLock()
			lastPing := c.lastPingAt
			c.mu.RUnlock()

			if time.Since(lastPing) > c.cfg.PingTimeout {
				c.logger.Warn("no ping received, connection stale",
					"last_ping", lastPing,
					"timeout", c.cfg.PingTimeout,
				)
				c.mu.Lock()
				c.stale = true
				c.mu.Unlock()
				c.ws.Close()
				return
			}
		}
	}
}
