package wskeep

import (
	"log/slog"
	"sync"
)

// listener is one registered callback. Pointer identity doubles as the
// unsubscribe handle.
type listener struct {
	fn func()
}

// notifier fans out zero-argument change notifications per connection name.
type notifier struct {
	logger *slog.Logger

	mu   sync.Mutex
	subs map[string][]*listener
}

func newNotifier(logger *slog.Logger) *notifier {
	return &notifier{
		logger: logger,
		subs:   make(map[string][]*listener),
	}
}

// subscribe registers fn for name and returns an idempotent unsubscribe.
func (n *notifier) subscribe(name string, fn func()) func() {
	l := &listener{fn: fn}

	n.mu.Lock()
	n.subs[name] = append(n.subs[name], l)
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()

		subs := n.subs[name]
		for i, s := range subs {
			if s == l {
				n.subs[name] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
	}
}

// notify invokes every listener registered for name, in registration order.
// Fan-out iterates a snapshot, so a listener may unsubscribe (itself or
// others) mid-flight without corrupting the iteration.
func (n *notifier) notify(name string) {
	n.mu.Lock()
	snapshot := make([]*listener, len(n.subs[name]))
	copy(snapshot, n.subs[name])
	n.mu.Unlock()

	for _, l := range snapshot {
		n.call(name, l)
	}
}

// call runs one listener. A panic is recovered and logged so one failing
// listener never stops the fan-out or reaches the state-mutation caller.
func (n *notifier) call(name string, l *listener) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("listener panicked", "conn", name, "panic", r)
		}
	}()
	l.fn()
}
