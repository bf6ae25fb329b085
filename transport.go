package bayeux

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// ConnectionState is a coarse connect/disconnect signal a Transport emits
// independently of the Dispatcher's SessionState; it reflects the
// transport's own socket/poll-loop lifecycle.
type ConnectionState int

const (
	TransportDisconnected ConnectionState = iota
	TransportConnecting
	TransportConnected
)

// Statistics is the frame-level bookkeeping every Transport exposes.
// bytesSent/bytesReceived are measured against the JSON-serialized form
// of whatever was sent/received.
//
// See also: spec.md §4.2 "Shared base bookkeeping".
type Statistics struct {
	MessagesSent     uint64
	MessagesReceived uint64
	Errors           uint64
	BytesSent        uint64
	BytesReceived    uint64
	ConnectTime      time.Time
	LastActivity     time.Time
}

// Transport is the abstract capability set every concrete wire transport
// (HTTP long-polling, callback-polling, WebSocket) implements. It is a
// polymorphic capability set, not a value type: concrete transports are
// value-equal only to themselves, so comparisons should be by pointer or
// by Name().
//
// See also: spec.md §4.2.
type Transport interface {
	// Name identifies the transport for SetTransport/connectionType
	// negotiation ("long-polling", "callback-polling", "websocket").
	Name() string
	// Supported reports whether this transport can be used in the
	// current runtime (e.g. a WebSocket transport might report false if
	// the target can't be reached over ws(s)://).
	Supported() bool
	// Connected reports whether Connect has succeeded and Disconnect/
	// Close has not yet been called.
	Connected() bool
	// Timeout is the per-message await timeout (30s by default), mutable
	// at runtime through SetTimeout. Advice received from the server does
	// not change it.
	Timeout() time.Duration
	SetTimeout(time.Duration)

	// Messages is the transport's inbound frame stream. Exactly one
	// consumer (the Dispatcher) reads it for the lifetime of a
	// connection, per spec.md §5 "Shared resources".
	Messages() <-chan Envelope
	// StateChanges reports the transport's own connect/disconnect
	// lifecycle (e.g. WebSocket reconnects).
	StateChanges() <-chan ConnectionState
	// Errors reports steady-state errors (heartbeat failure, poll
	// failure) that don't by themselves end the connection.
	Errors() <-chan error

	Connect(ctx context.Context, endpoint string, headers http.Header) error
	Disconnect() error
	Send(ctx context.Context, env Envelope) error
	SendBatch(ctx context.Context, envs []Envelope) error
	Close() error

	Statistics() Statistics
}

// transportBase is the shared bookkeeping every concrete Transport
// embeds: the message/state/error channels, the mutable timeout, and the
// Statistics counters. Grounded on the teacher's clientState
// (bayeux_client.go) generalized from a single HTTP implementation to a
// shared base for three.
type transportBase struct {
	mu        sync.Mutex
	stats     Statistics
	timeout   time.Duration
	connected bool

	messages chan Envelope
	states   chan ConnectionState
	errs     chan error

	logger Logger
}

func newTransportBase(logger Logger, bufSize int) *transportBase {
	if logger == nil {
		logger = newNullLogger()
	}
	return &transportBase{
		timeout:  30 * time.Second,
		messages: make(chan Envelope, bufSize),
		states:   make(chan ConnectionState, 4),
		errs:     make(chan error, bufSize),
		logger:   logger,
	}
}

func (b *transportBase) Messages() <-chan Envelope            { return b.messages }
func (b *transportBase) StateChanges() <-chan ConnectionState { return b.states }
func (b *transportBase) Errors() <-chan error                 { return b.errs }

func (b *transportBase) Timeout() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.timeout
}

func (b *transportBase) SetTimeout(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.timeout = d
}

func (b *transportBase) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

func (b *transportBase) setConnected(v bool) {
	b.mu.Lock()
	b.connected = v
	b.mu.Unlock()
	state := TransportDisconnected
	if v {
		state = TransportConnected
	}
	b.emitState(state)
}

func (b *transportBase) Statistics() Statistics {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

func (b *transportBase) recordSent(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.MessagesSent++
	b.stats.BytesSent += uint64(n)
	b.stats.LastActivity = time.Now()
}

func (b *transportBase) recordReceived(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.MessagesReceived++
	b.stats.BytesReceived += uint64(n)
	b.stats.LastActivity = time.Now()
}

func (b *transportBase) recordError() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.Errors++
}

func (b *transportBase) recordConnectTime() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.ConnectTime = time.Now()
}

// emitMessage delivers env to the message stream, dropping it if the
// consumer isn't keeping up rather than blocking the transport's I/O
// loop, per the Design Notes' "drop-on-closed"-style buffering policy
// generalized to "drop when full".
func (b *transportBase) emitMessage(env Envelope) {
	select {
	case b.messages <- env:
	default:
		b.logger.Warn("dropping inbound message, consumer is not keeping up", "channel", env.Channel)
	}
}

func (b *transportBase) emitState(s ConnectionState) {
	select {
	case b.states <- s:
	default:
	}
}

func (b *transportBase) emitError(err error) {
	b.recordError()
	select {
	case b.errs <- err:
	default:
	}
}
