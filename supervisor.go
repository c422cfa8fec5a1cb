package wskeep

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wskeep/wskeep/socket"
)

// supervisor owns the lifecycle of one named connection: the socket handle,
// the reconnect timer, and the idle watchdog. Nothing else touches them.
//
// gen is the connect epoch. Every transition through idle bumps it under
// s.mu, and every asynchronous callback (dial completion, pump exit, timer
// fire) carries the epoch it was created in and checks it before acting, so
// a stale timer or pump can never resurrect a stopped connection. The
// registry write belonging to a transition happens inside the same critical
// section as the epoch check; only the listener fan-out runs lock-free
// afterwards, so a stale callback can never push an out-of-date phase into
// the registry either.
type supervisor struct {
	name   string
	reg    *Registry
	dial   socket.Dialer
	logger *slog.Logger
	ctx    context.Context // Client lifetime; cancels in-flight dials

	mu        sync.Mutex
	phase     Phase
	opts      Options
	sock      socket.Socket
	gen       uint64
	seenMsg   bool // A real message arrived in the current epoch
	reconnect *time.Timer
	heartbeat *time.Timer
}

func newSupervisor(ctx context.Context, name string, reg *Registry, dial socket.Dialer, logger *slog.Logger) *supervisor {
	return &supervisor{
		name:   name,
		reg:    reg,
		dial:   dial,
		logger: logger.With("conn", name),
		ctx:    ctx,
		phase:  PhaseIdle,
	}
}

// connect starts the connection unless one is already connecting or
// connected. The dial happens off the calling goroutine; progress is
// observable only through state transitions.
func (s *supervisor) connect(opts Options) {
	opts = opts.withDefaults()

	s.mu.Lock()
	started := s.connectLocked(opts)
	s.mu.Unlock()

	if started {
		s.reg.notify(s.name)
	}
}

// connectLocked transitions idle → connecting, opening a new epoch and
// recording the transition in the registry. Caller holds s.mu; when true is
// returned the caller owes the listeners a notify after unlocking.
func (s *supervisor) connectLocked(opts Options) bool {
	if s.phase != PhaseIdle {
		s.logger.Debug("connect ignored: already active")
		return false
	}
	s.stopTimersLocked()
	s.gen++
	s.phase = PhaseConnecting
	s.opts = opts
	s.seenMsg = false

	s.reg.mutate(s.name, func(rec *record) {
		rec.phase = PhaseConnecting
		rec.storeHistory = opts.StoreHistory
		if !opts.StoreHistory {
			rec.history = nil
		}
	})

	go s.open(s.gen, opts)
	return true
}

// open dials the endpoint for one connect epoch. A dial failure takes the
// same close path as a dropped connection so reconnect logic lives in
// exactly one place.
func (s *supervisor) open(gen uint64, opts Options) {
	sock, err := s.dial(s.ctx, opts.URL, opts.Header)
	if err != nil {
		s.logger.Warn("dial failed", "url", opts.URL, "error", err)
		s.closed(gen)
		return
	}

	s.mu.Lock()
	if s.gen != gen {
		// Disconnected while dialing.
		s.mu.Unlock()
		sock.Close()
		return
	}
	s.sock = sock
	s.phase = PhaseConnected
	s.reg.mutate(s.name, func(rec *record) { rec.phase = PhaseConnected })
	go s.pump(gen, sock)
	s.mu.Unlock()

	s.reg.notify(s.name)
}

// pump drains socket events until the connection is gone, then drives the
// close transition. A socket error is reported and the socket force-closed,
// which ends the pump through the normal channel-close path.
func (s *supervisor) pump(gen uint64, sock socket.Socket) {
	msgs, errs := sock.Messages(), sock.Errors()
	for msgs != nil || errs != nil {
		select {
		case fr, ok := <-msgs:
			if !ok {
				msgs = nil
				continue
			}
			s.handleFrame(gen, fr)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			s.logger.Warn("socket error", "error", err)
			sock.Close()
		}
	}
	s.closed(gen)
}

// handleFrame delivers one real inbound frame and re-arms the idle
// watchdog.
func (s *supervisor) handleFrame(gen uint64, fr socket.Frame) {
	msg := Message{
		ID:         uuid.New(),
		Payload:    decodePayload(fr),
		ReceivedAt: fr.ReceivedAt,
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.seenMsg = true
	s.armHeartbeatLocked(gen)
	s.reg.appendMessage(s.name, msg, s.opts.MaxMessages)
	s.mu.Unlock()

	s.reg.notify(s.name)
}

// armHeartbeatLocked (re)arms the idle watchdog, cancelling any previous
// timer first so at most one is ever in flight. Caller holds s.mu.
func (s *supervisor) armHeartbeatLocked(gen uint64) {
	if s.opts.HeartbeatInterval <= 0 {
		return
	}
	if s.heartbeat != nil {
		s.heartbeat.Stop()
	}
	s.heartbeat = time.AfterFunc(s.opts.HeartbeatInterval, func() { s.heartbeatFire(gen) })
}

// heartbeatFire emits the synthetic end-of-transfer notice through the
// normal delivery path. The timer is not re-armed: one notice per quiet
// period, until real traffic resumes.
func (s *supervisor) heartbeatFire(gen uint64) {
	s.mu.Lock()
	if s.gen != gen || !s.seenMsg {
		s.mu.Unlock()
		return
	}
	interval := s.opts.HeartbeatInterval
	msg := Message{
		ID:         uuid.New(),
		Payload:    EndOfTransfer{Idle: interval},
		ReceivedAt: time.Now(),
	}
	s.reg.appendMessage(s.name, msg, s.opts.MaxMessages)
	s.mu.Unlock()

	s.logger.Debug("inbound stream idle", "interval", interval)
	s.reg.notify(s.name)
}

// closed ends one connect epoch: socket gone, phase back to idle, and a
// single fixed-delay reconnect when configured.
func (s *supervisor) closed(gen uint64) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.gen++
	s.stopTimersLocked()
	s.sock = nil
	s.phase = PhaseIdle
	s.seenMsg = false
	opts := s.opts
	if opts.AutoReconnect && s.ctx.Err() == nil {
		next := s.gen
		s.reconnect = time.AfterFunc(opts.ReconnectDelay, func() { s.reconnectFire(next, opts) })
	}
	s.reg.mutate(s.name, func(rec *record) { rec.phase = PhaseIdle })
	s.mu.Unlock()

	s.reg.notify(s.name)
}

// reconnectFire re-runs connect with the epoch's original options. The
// staleness check and the transition share one critical section, so a
// disconnect racing the timer either wins outright or invalidates the
// epoch before the timer can act; the attempt never survives both.
func (s *supervisor) reconnectFire(gen uint64, opts Options) {
	s.mu.Lock()
	if s.gen != gen || s.phase != PhaseIdle {
		s.mu.Unlock()
		return
	}
	s.logger.Info("reconnecting", "url", opts.URL)
	started := s.connectLocked(opts)
	s.mu.Unlock()

	if started {
		s.reg.notify(s.name)
	}
}

// disconnect closes the socket, cancels both timers, and resets to idle.
// Idempotent.
func (s *supervisor) disconnect() {
	s.mu.Lock()
	s.gen++
	s.stopTimersLocked()
	sock := s.sock
	s.sock = nil
	wasIdle := s.phase == PhaseIdle
	s.phase = PhaseIdle
	s.seenMsg = false
	if !wasIdle {
		s.reg.mutate(s.name, func(rec *record) { rec.phase = PhaseIdle })
	}
	s.mu.Unlock()

	if sock != nil {
		sock.Close()
	}
	if !wasIdle {
		s.reg.notify(s.name)
	}
}

// stopTimersLocked cancels any pending reconnect and heartbeat timers.
// Caller holds s.mu.
func (s *supervisor) stopTimersLocked() {
	if s.reconnect != nil {
		s.reconnect.Stop()
		s.reconnect = nil
	}
	if s.heartbeat != nil {
		s.heartbeat.Stop()
		s.heartbeat = nil
	}
}

// send writes one outbound payload. Failures are reported and the payload
// dropped; nothing propagates to the caller.
func (s *supervisor) send(v any) {
	s.mu.Lock()
	sock := s.sock
	connected := s.phase == PhaseConnected
	s.mu.Unlock()

	if !connected || sock == nil {
		s.logger.Warn("send dropped: not connected")
		return
	}

	data, err := encodePayload(v)
	if err != nil {
		s.logger.Warn("send dropped: encode failed", "error", err)
		return
	}
	if err := sock.Send(data); err != nil {
		s.logger.Warn("send failed", "error", err)
	}
}
