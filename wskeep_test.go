package wskeep

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/wskeep/wskeep/socket"
)

// fakeSocket is an in-process Socket for supervisor tests. Closing it (from
// either side of the simulated connection) closes both channels, like the
// real transport.
type fakeSocket struct {
	messages chan socket.Frame
	errors   chan error

	mu     sync.Mutex
	sent   [][]byte
	closed bool
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{
		messages: make(chan socket.Frame, 64),
		errors:   make(chan error, 1),
	}
}

func (f *fakeSocket) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return socket.ErrNotConnected
	}
	f.sent = append(f.sent, append([]byte(nil), data...))
	return nil
}

func (f *fakeSocket) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.mu.Unlock()

	close(f.errors)
	close(f.messages)
	return nil
}

func (f *fakeSocket) Messages() <-chan socket.Frame { return f.messages }
func (f *fakeSocket) Errors() <-chan error          { return f.errors }

func (f *fakeSocket) push(data string) {
	f.messages <- socket.Frame{Data: []byte(data), ReceivedAt: time.Now()}
}

func (f *fakeSocket) fail(err error) {
	f.errors <- err
}

func (f *fakeSocket) sentFrames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeSocket) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeDialer hands out fakeSockets and counts dials.
type fakeDialer struct {
	mu    sync.Mutex
	socks []*fakeSocket
	err   error         // when set, dials fail
	gate  chan struct{} // when set, dials block until the channel is closed
}

func (d *fakeDialer) dial(ctx context.Context, url string, header http.Header) (socket.Socket, error) {
	d.mu.Lock()
	gate := d.gate
	err := d.err
	d.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	s := newFakeSocket()
	d.socks = append(d.socks, s)
	return s, nil
}

func (d *fakeDialer) setErr(err error) {
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
}

func (d *fakeDialer) setGate(gate chan struct{}) {
	d.mu.Lock()
	d.gate = gate
	d.mu.Unlock()
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.socks)
}

func (d *fakeDialer) last() *fakeSocket {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.socks) == 0 {
		return nil
	}
	return d.socks[len(d.socks)-1]
}

func newTestClient(t *testing.T) (*Client, *fakeDialer) {
	t.Helper()
	d := &fakeDialer{}
	c := New(Config{
		Logger: slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelDebug})),
		Dialer: d.dial,
	})
	t.Cleanup(c.Close)
	return c, d
}

// testWriter routes log output through t.Logf so it shows up with the
// failing test.
type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Logf("%s", p)
	return len(p), nil
}

// waitFor polls cond until it holds or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}

func connectAndWait(t *testing.T, c *Client, d *fakeDialer, name string, opts Options) *fakeSocket {
	t.Helper()
	c.Connect(name, opts)
	waitFor(t, time.Second, "connected phase", func() bool {
		return c.GetState(name).Phase == PhaseConnected
	})
	return d.last()
}
