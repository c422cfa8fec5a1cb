package wskeep

import (
	"log/slog"
	"sync"
)

// record is the mutable per-name state behind the Registry. Only the owning
// supervisor writes it, through the Registry's mutation primitives. Records
// are never deleted, only reset to idle, so late subscribers still see
// last-known status.
type record struct {
	phase        Phase
	storeHistory bool
	history      []Message
}

// Registry is the connection record store: per-name lifecycle state,
// bounded history, the latest-message table, and change notification.
// Construct one per Client; independent instances share nothing.
type Registry struct {
	logger   *slog.Logger
	notifier *notifier

	mu      sync.RWMutex
	records map[string]*record
	latest  map[string]Message
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:   logger,
		notifier: newNotifier(logger),
		records:  make(map[string]*record),
		latest:   make(map[string]Message),
	}
}

// Get returns a snapshot of the state for name. It is total over the name
// domain: an unknown name reads as the idle default, and no entry is
// created by reading.
func (r *Registry) Get(name string) ConnectionState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st := ConnectionState{Name: name, Phase: PhaseIdle}
	rec, ok := r.records[name]
	if !ok {
		return st
	}

	st.Phase = rec.phase
	st.StoreHistory = rec.storeHistory
	if len(rec.history) > 0 {
		st.History = make([]Message, len(rec.history))
		copy(st.History, rec.history)
	}
	return st
}

// Latest returns the most recent message for name, if any. The latest
// table is maintained even when history retention is off.
func (r *Registry) Latest(name string) (Message, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	msg, ok := r.latest[name]
	return msg, ok
}

// Subscribe registers fn to run after every state change for name and
// returns an idempotent unsubscribe.
func (r *Registry) Subscribe(name string, fn func()) func() {
	return r.notifier.subscribe(name, fn)
}

// Stats is a point-in-time summary across every name the registry has seen.
type Stats struct {
	Names     int // Names with a record
	Connected int // Names currently in the connected phase
}

// Stats returns current registry statistics.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st := Stats{Names: len(r.records)}
	for _, rec := range r.records {
		if rec.phase == PhaseConnected {
			st.Connected++
		}
	}
	return st
}

// mutate is the single mutation primitive: apply fn to the record for name
// (created as the idle default if absent) under the registry lock, without
// notifying. The supervisor runs mutations inside its own epoch-validated
// critical section, so a phase write can never be reordered against a
// competing epoch; callers owe the listeners a notify afterwards. Lock
// order is always supervisor lock → registry lock, never the reverse.
func (r *Registry) mutate(name string, fn func(*record)) {
	r.mu.Lock()
	rec, ok := r.records[name]
	if !ok {
		rec = &record{phase: PhaseIdle}
		r.records[name] = rec
	}
	fn(rec)
	r.mu.Unlock()
}

// notify fans out a change notification for name. Runs with no lock held,
// so a listener may re-enter the registry or the façade without
// deadlocking.
func (r *Registry) notify(name string) {
	r.notifier.notify(name)
}

// update applies fn and then notifies, for callers with no critical section
// of their own. A caller reading state right after update returns sees the
// post-mutation value.
func (r *Registry) update(name string, fn func(*record)) {
	r.mutate(name, fn)
	r.notifier.notify(name)
}

// appendMessage stores msg as the latest message for name and, when the
// record retains history, appends it with FIFO eviction down to max. The
// notification-free half of recordMessage.
func (r *Registry) appendMessage(name string, msg Message, max int) {
	r.mutate(name, func(rec *record) {
		r.latest[name] = msg // registry lock is held inside mutate

		if !rec.storeHistory {
			return
		}
		rec.history = append(rec.history, msg)
		if max > 0 && len(rec.history) > max {
			trimmed := make([]Message, max)
			copy(trimmed, rec.history[len(rec.history)-max:])
			rec.history = trimmed
		}
	})
}

// recordMessage appends msg and notifies name's listeners.
func (r *Registry) recordMessage(name string, msg Message, max int) {
	r.appendMessage(name, msg, max)
	r.notifier.notify(name)
}

// clearLatest drops the cached latest message for name. Listeners are only
// notified when something was actually cached.
func (r *Registry) clearLatest(name string) {
	r.mu.Lock()
	_, ok := r.latest[name]
	if ok {
		delete(r.latest, name)
	}
	r.mu.Unlock()

	if ok {
		r.notifier.notify(name)
	}
}
