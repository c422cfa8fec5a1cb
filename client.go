package wskeep

import (
	"context"
	"log/slog"
	"sync"

	"github.com/wskeep/wskeep/socket"
)

// Config configures a Client.
type Config struct {
	// Logger receives supervisor and notifier diagnostics. Defaults to
	// slog.Default().
	Logger *slog.Logger

	// Dialer opens underlying sockets. Defaults to the gorilla-backed
	// dialer with socket.DefaultConfig(). Tests substitute fakes.
	Dialer socket.Dialer

	// Registry is the record store to read and write. Defaults to a fresh
	// registry private to this client.
	Registry *Registry
}

// Client is the consumer façade over a set of named supervised connections.
// Every operation is non-blocking; connection progress is observed through
// Subscribe and GetState.
type Client struct {
	logger *slog.Logger
	dial   socket.Dialer
	reg    *Registry
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	sups   map[string]*supervisor
	closed bool
}

// New creates a Client.
func New(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dial := cfg.Dialer
	if dial == nil {
		sockCfg := socket.DefaultConfig()
		sockCfg.Logger = logger
		dial = socket.NewDialer(sockCfg)
	}
	reg := cfg.Registry
	if reg == nil {
		reg = NewRegistry(logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		logger: logger,
		dial:   dial,
		reg:    reg,
		ctx:    ctx,
		cancel: cancel,
		sups:   make(map[string]*supervisor),
	}
}

// Connect starts the named connection. A no-op while that name is already
// connecting or connected.
func (c *Client) Connect(name string, opts Options) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.logger.Warn("connect ignored: client closed", "conn", name)
		return
	}
	sup, ok := c.sups[name]
	if !ok {
		sup = newSupervisor(c.ctx, name, c.reg, c.dial, c.logger)
		c.sups[name] = sup
	}
	c.mu.Unlock()

	sup.connect(opts)
}

// GetState returns a synchronous snapshot for name. Never blocks; an
// unknown name reads as the idle default.
func (c *Client) GetState(name string) ConnectionState {
	return c.reg.Get(name)
}

// Latest returns the most recent message received on name, if any.
func (c *Client) Latest(name string) (Message, bool) {
	return c.reg.Latest(name)
}

// Send writes data on the named connection. Strings go out verbatim,
// anything else is JSON-serialized. When the connection is not established
// or the write fails, the send is reported and dropped; nothing propagates
// to the caller.
func (c *Client) Send(name string, data any) {
	c.mu.Lock()
	sup := c.sups[name]
	c.mu.Unlock()

	if sup == nil {
		c.logger.Warn("send dropped: not connected", "conn", name)
		return
	}
	sup.send(data)
}

// ClearLatest removes the cached latest message for name and notifies
// listeners. A no-op when nothing is cached.
func (c *Client) ClearLatest(name string) {
	c.reg.clearLatest(name)
}

// Subscribe registers fn to run after every state change for name and
// returns an idempotent unsubscribe.
func (c *Client) Subscribe(name string, fn func()) func() {
	return c.reg.Subscribe(name, fn)
}

// Disconnect closes the named connection and cancels any pending reconnect
// or heartbeat timer so a stopped connection never silently resurrects.
// Idempotent; unknown names are no-ops.
func (c *Client) Disconnect(name string) {
	c.mu.Lock()
	sup := c.sups[name]
	c.mu.Unlock()

	if sup != nil {
		sup.disconnect()
	}
}

// Stats returns a snapshot summary across every supervised name.
func (c *Client) Stats() Stats {
	return c.reg.Stats()
}

// Close tears down every supervised connection. Safe to call twice.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	sups := make([]*supervisor, 0, len(c.sups))
	for _, sup := range c.sups {
		sups = append(sups, sup)
	}
	c.mu.Unlock()

	c.cancel()
	for _, sup := range sups {
		sup.disconnect()
	}
}
