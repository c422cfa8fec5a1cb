package wskeep

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Phase is the lifecycle state of a named connection.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseConnecting Phase = "connecting"
	PhaseConnected  Phase = "connected"
)

// Message is one inbound message. Immutable once constructed.
type Message struct {
	ID         uuid.UUID // Unique per message, for consumer-side dedup
	Payload    any       // Decoded JSON value, raw string fallback, or []byte for binary frames
	ReceivedAt time.Time // Local timestamp when the frame was read
}

// EndOfTransfer is the payload of the synthetic message the idle watchdog
// emits after Idle of inbound silence. It is a local signal only and is
// never sent over the wire.
type EndOfTransfer struct {
	Idle time.Duration `json:"idle"`
}

// ConnectionState is a point-in-time snapshot of one named connection. The
// socket handle itself belongs to the supervisor and is never exposed.
type ConnectionState struct {
	Name         string
	Phase        Phase
	StoreHistory bool
	History      []Message // Oldest first, bounded by Options.MaxMessages
}

// Connected reports whether the connection is established.
func (s ConnectionState) Connected() bool {
	return s.Phase == PhaseConnected
}

// Options configure one named connection.
type Options struct {
	URL               string
	Header            http.Header   // Optional extra handshake headers
	AutoReconnect     bool          // Fixed-delay reconnect loop on close
	ReconnectDelay    time.Duration // Wait between a close and the next attempt
	StoreHistory      bool          // Retain a bounded message sequence
	MaxMessages       int           // History bound, oldest evicted first
	HeartbeatInterval time.Duration // Inbound silence before a synthetic notice; 0 disables
}

// Defaults for optional fields.
const (
	DefaultReconnectDelay = 5 * time.Second
	DefaultMaxMessages    = 100
)

func (o Options) withDefaults() Options {
	if o.ReconnectDelay == 0 {
		o.ReconnectDelay = DefaultReconnectDelay
	}
	if o.MaxMessages == 0 {
		o.MaxMessages = DefaultMaxMessages
	}
	return o
}
