package bayeux

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// maxMessageID is the modulus message ids wrap at, per spec.md §3
// "messageIdCounter is monotonic modulo 2^53-1" (the largest integer
// JavaScript, and therefore every Bayeux server this client will ever
// talk to, represents exactly).
const maxMessageID = (1 << 53) - 1

// Dispatcher owns the session state machine, the active Transport, the
// message-id correlation table, advice tracking, and the single
// extension slot. Client is the only intended caller; Dispatcher has no
// knowledge of subscriptions or callbacks.
//
// Grounded on the teacher's BayeuxClient (bayeux_client.go), generalized
// from "always HTTP, always three states" to "any Transport, four
// states" per spec.md §4.3.
type Dispatcher struct {
	sm     *sessionStateMachine
	logger Logger
	ext    *extensionSlot

	mu         sync.Mutex
	clientID   string
	advice     Advice
	transports map[string]Transport
	current    Transport
	endpoint   string
	pumpCancel func()

	pendingMu sync.Mutex
	pending   map[string]chan Envelope

	idCounter atomic.Uint64

	handshakeVersion string

	unsolicited *broadcaster[Envelope]
	stateStream *broadcaster[SessionState]
	errStream   *broadcaster[error]
}

// NewDispatcher constructs a Dispatcher over the given named transports.
// defaultName selects which one Connect uses first; it must be a key of
// transports.
func NewDispatcher(transports map[string]Transport, defaultName string, o *options) (*Dispatcher, error) {
	if o == nil {
		o = newOptions()
	}
	t, ok := transports[defaultName]
	if !ok {
		return nil, ErrUnknownTransportName
	}
	d := &Dispatcher{
		sm:               newSessionStateMachine(),
		logger:           o.logger,
		ext:              &extensionSlot{},
		transports:       transports,
		current:          t,
		pending:          make(map[string]chan Envelope),
		handshakeVersion: o.handshakeVersion,
		advice:           DefaultAdvice(),
		unsolicited:      newBroadcaster[Envelope](16),
		stateStream:      newBroadcaster[SessionState](4),
		errStream:        newBroadcaster[error](16),
	}
	if o.extension != nil {
		d.ext.set(o.extension)
	}
	return d, nil
}

// State returns the current SessionState.
func (d *Dispatcher) State() SessionState { return d.sm.State() }

// ClientID returns the session's server-assigned id, or "" before a
// successful handshake.
func (d *Dispatcher) ClientID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clientID
}

// Advice returns the currently merged advice.
func (d *Dispatcher) Advice() Advice {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.advice
}

// CurrentTransportName returns the name of the transport currently
// selected for this session.
func (d *Dispatcher) CurrentTransportName() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current.Name()
}

// Statistics returns the currently selected transport's frame-level
// counters.
func (d *Dispatcher) Statistics() Statistics {
	d.mu.Lock()
	transport := d.current
	d.mu.Unlock()
	return transport.Statistics()
}

// SetExtension installs ext as the single active extension.
func (d *Dispatcher) SetExtension(ext FayeExtension) {
	d.ext.set(ext)
}

// SetTransport switches the transport used on the next Connect. It does
// not itself reconnect.
func (d *Dispatcher) SetTransport(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.transports[name]
	if !ok {
		return ErrUnknownTransportName
	}
	d.current = t
	return nil
}

// UnsolicitedMessages returns a channel of every inbound Envelope that
// did not correlate with a pending request, for Client to route to
// subscriptions. The returned cancel func must be called when done.
func (d *Dispatcher) UnsolicitedMessages() (<-chan Envelope, func()) {
	return d.unsolicited.subscribe()
}

// StateChanges returns a channel of SessionState transitions.
func (d *Dispatcher) StateChanges() (<-chan SessionState, func()) {
	return d.stateStream.subscribe()
}

// Errors returns a channel of steady-state errors.
func (d *Dispatcher) Errors() (<-chan error, func()) {
	return d.errStream.subscribe()
}

func (d *Dispatcher) nextMessageID() string {
	n := d.idCounter.Add(1) % (maxMessageID + 1)
	return strconv.FormatUint(n, 10)
}

func (d *Dispatcher) transitionTo(state SessionState) {
	d.stateStream.publish(state)
}

// Connect negotiates a session: selects/connects the current transport,
// performs the handshake, and leaves the Dispatcher CONNECTED on
// success. A session left DISCONNECTED by a failed connect is first
// returned to UNCONNECTED; calls while CONNECTING or CONNECTED are no-ops.
//
// See also: spec.md §4.3 "connect(headers?)".
func (d *Dispatcher) Connect(ctx context.Context, headers http.Header) error {
	if d.sm.State() == StateDisconnected {
		if next, changed := d.sm.process(eventTransportDown); changed {
			d.transitionTo(next)
		}
	}
	if d.sm.State() != StateUnconnected {
		return nil
	}
	next, changed := d.sm.process(eventConnect)
	if !changed {
		return nil
	}
	d.transitionTo(next)

	transport, err := d.connectTransport(ctx, headers)
	if err != nil {
		d.sm.process(eventHandshakeFailed)
		d.transitionTo(StateDisconnected)
		d.errStream.publish(NewNetworkError("transport connect failed", err))
		return err
	}

	if err := d.handshake(ctx, transport); err != nil {
		d.sm.process(eventHandshakeFailed)
		d.transitionTo(StateDisconnected)
		d.errStream.publish(err)
		return err
	}

	next, _ = d.sm.process(eventHandshakeOK)
	d.transitionTo(next)
	return nil
}

func (d *Dispatcher) connectTransport(ctx context.Context, headers http.Header) (Transport, error) {
	d.mu.Lock()
	transport := d.current
	endpoint := d.endpoint
	d.mu.Unlock()

	if err := transport.Connect(ctx, endpoint, headers); err != nil {
		return nil, err
	}

	pumpCtx, cancel := context.WithCancel(context.Background())
	d.mu.Lock()
	if d.pumpCancel != nil {
		d.pumpCancel()
	}
	d.pumpCancel = cancel
	d.mu.Unlock()
	go d.pump(pumpCtx, transport)

	return transport, nil
}

// pump is the single reader of a transport's inbound frame and error
// streams for the lifetime of a connection, per spec.md §5 "the
// transport's underlying connection is owned exclusively by the
// dispatcher". It must be started at most once per transport connection,
// per the Design Notes' warning about the teacher re-registering
// listeners on every reconnect.
func (d *Dispatcher) pump(ctx context.Context, transport Transport) {
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-transport.Messages():
			if !ok {
				return
			}
			d.handleTransportMessage(env)
		case err, ok := <-transport.Errors():
			if !ok {
				return
			}
			d.errStream.publish(err)
		}
	}
}

// handleTransportMessage resolves env against a pending awaiter if its
// id matches one, otherwise forwards it to UnsolicitedMessages.
//
// See also: spec.md §4.3 "_handleTransportMessage(frame)".
func (d *Dispatcher) handleTransportMessage(env Envelope) {
	d.ext.applyIncoming(&env, d.logger)

	if env.ID != "" {
		d.pendingMu.Lock()
		ch, ok := d.pending[env.ID]
		if ok {
			delete(d.pending, env.ID)
		}
		d.pendingMu.Unlock()
		if ok {
			ch <- env
			return
		}
	}

	if env.Advice != nil {
		d.mu.Lock()
		d.advice = d.advice.Merge(env.Advice)
		d.mu.Unlock()
	}

	d.unsolicited.publish(env)
}

// sendMessage applies the outgoing extension, sends env on the current
// transport, and, if env.ID is non-empty, awaits the matching response
// up to the transport's timeout.
//
// See also: spec.md §4.3 "Message-id correlation".
func (d *Dispatcher) sendMessage(ctx context.Context, env Envelope) (Envelope, error) {
	d.ext.applyOutgoing(&env, d.logger)

	d.mu.Lock()
	transport := d.current
	d.mu.Unlock()

	if env.ID == "" {
		if err := transport.Send(ctx, env); err != nil {
			return Envelope{}, NewNetworkError("send failed", err)
		}
		return Envelope{}, nil
	}

	ch := make(chan Envelope, 1)
	d.pendingMu.Lock()
	d.pending[env.ID] = ch
	d.pendingMu.Unlock()

	cleanup := func() {
		d.pendingMu.Lock()
		delete(d.pending, env.ID)
		d.pendingMu.Unlock()
	}

	if err := transport.Send(ctx, env); err != nil {
		cleanup()
		return Envelope{}, NewNetworkError("send failed", err)
	}

	timer := time.NewTimer(transport.Timeout())
	defer timer.Stop()

	select {
	case resp, ok := <-ch:
		if !ok {
			return Envelope{}, NewNetworkError("dispatcher closed while awaiting response", nil)
		}
		return resp, nil
	case <-timer.C:
		cleanup()
		return Envelope{}, NewTimeoutError(env.ID)
	case <-ctx.Done():
		cleanup()
		return Envelope{}, ctx.Err()
	}
}

// handshake sends /meta/handshake and, on success, records the
// server-assigned clientId, merges advice, and switches to the server's
// first supported connection type if this Dispatcher owns that
// transport.
//
// See also: spec.md §4.3 "handshake", §8 scenario 1.
func (d *Dispatcher) handshake(ctx context.Context, transport Transport) error {
	supported := make([]string, 0, len(d.transports))
	for name := range d.transports {
		supported = append(supported, name)
	}

	env, err := newHandshakeEnvelope(d.nextMessageID(), d.handshakeVersion, supported)
	if err != nil {
		return NewProtocolError(err.Error())
	}

	resp, err := d.sendMessage(ctx, env)
	if err != nil {
		return err
	}
	resp, err = normalizeResponse(resp)
	if err != nil {
		return err
	}

	d.ext.applyIncoming(&resp, d.logger)

	if !resp.Successful {
		return NewAuthenticationError(fmt.Sprintf("handshake was not successful: %s", resp.Error))
	}

	d.mu.Lock()
	d.clientID = resp.ClientID
	d.advice = d.advice.Merge(resp.Advice)
	if len(resp.SupportedConnectionTypes) > 0 {
		if t, ok := d.transports[resp.SupportedConnectionTypes[0]]; ok {
			d.current = t
		}
	}
	d.mu.Unlock()
	return nil
}

// normalizeResponse is a no-op pass-through kept for symmetry with the
// HTTP/WebSocket transports, which must call ExtractBayeuxMessages
// themselves on raw frames; by the time a response reaches the
// Dispatcher via sendMessage's awaiter it is already a single Envelope.
func normalizeResponse(env Envelope) (Envelope, error) {
	return env, nil
}

// Disconnect sends /meta/disconnect (best-effort; errors are swallowed)
// and tears the transport down, leaving the Dispatcher DISCONNECTED then
// UNCONNECTED.
//
// See also: spec.md §4.3 "disconnect()".
func (d *Dispatcher) Disconnect(ctx context.Context) error {
	state := d.sm.State()
	if state != StateConnected && state != StateConnecting {
		return nil
	}
	next, _ := d.sm.process(eventDisconnect)
	d.transitionTo(next)

	d.mu.Lock()
	clientID := d.clientID
	transport := d.current
	d.mu.Unlock()

	if clientID != "" {
		env, err := newDisconnectEnvelope(d.nextMessageID(), clientID)
		if err == nil {
			_, _ = d.sendMessage(ctx, env)
		}
	}

	_ = transport.Disconnect()

	d.mu.Lock()
	d.clientID = ""
	d.mu.Unlock()

	next, _ = d.sm.process(eventTransportDown)
	d.transitionTo(next)
	return nil
}

// Close releases every resource the Dispatcher owns: it cancels all
// pending response awaiters with an error, stops the transport pump, and
// returns the Dispatcher to UNCONNECTED.
//
// See also: spec.md §4.3 "any --close()--> UNCONNECTED", §5
// "Cancellation / timeouts".
func (d *Dispatcher) Close() error {
	d.pendingMu.Lock()
	for id, ch := range d.pending {
		close(ch)
		delete(d.pending, id)
	}
	d.pendingMu.Unlock()

	d.mu.Lock()
	if d.pumpCancel != nil {
		d.pumpCancel()
		d.pumpCancel = nil
	}
	transport := d.current
	d.clientID = ""
	d.mu.Unlock()

	err := transport.Close()

	d.sm.process(eventClose)
	d.transitionTo(StateUnconnected)

	d.unsolicited.close()
	d.stateStream.close()
	d.errStream.close()
	return err
}

// Subscribe sends /meta/subscribe for channel. Allowed in CONNECTED, and
// in CONNECTING so that an extension can subscribe while processing the
// handshake response itself.
//
// See also: spec.md §4.3 "Subscribe / unsubscribe / publish", and the
// Open Question in §9 about whether CONNECTING access is intentional.
func (d *Dispatcher) Subscribe(ctx context.Context, channel Channel) (Envelope, error) {
	state := d.sm.State()
	if state != StateConnected && state != StateConnecting {
		return Envelope{}, ErrClientNotConnected
	}
	clientID := d.ClientID()
	if clientID == "" {
		return Envelope{}, ErrMissingClientID
	}
	env, err := newSubscribeEnvelope(d.nextMessageID(), clientID, channel)
	if err != nil {
		return Envelope{}, err
	}
	return d.sendMessage(ctx, env)
}

// Unsubscribe sends /meta/unsubscribe for channel.
func (d *Dispatcher) Unsubscribe(ctx context.Context, channel Channel) (Envelope, error) {
	if d.sm.State() != StateConnected {
		return Envelope{}, ErrClientNotConnected
	}
	clientID := d.ClientID()
	if clientID == "" {
		return Envelope{}, ErrMissingClientID
	}
	env, err := newUnsubscribeEnvelope(d.nextMessageID(), clientID, channel)
	if err != nil {
		return Envelope{}, err
	}
	return d.sendMessage(ctx, env)
}

// Publish sends data on channel. channel must be a concrete channel name,
// not a pattern.
func (d *Dispatcher) Publish(ctx context.Context, channel Channel, data []byte) (Envelope, error) {
	if d.sm.State() != StateConnected {
		return Envelope{}, ErrClientNotConnected
	}
	clientID := d.ClientID()
	if clientID == "" {
		return Envelope{}, ErrMissingClientID
	}
	env, err := newPublishEnvelope(d.nextMessageID(), clientID, channel, data)
	if err != nil {
		return Envelope{}, err
	}
	return d.sendMessage(ctx, env)
}

// SendConnect issues the long-poll keepalive /meta/connect with no
// message id: the server's eventual reply (and any messages batched
// alongside it) arrives through the normal unsolicited-message path
// instead of a correlated awaiter.
//
// See also: spec.md §4.3 "sendConnect()".
func (d *Dispatcher) SendConnect(ctx context.Context) error {
	if d.sm.State() != StateConnected {
		return nil
	}
	clientID := d.ClientID()
	if clientID == "" {
		return ErrMissingClientID
	}
	d.mu.Lock()
	transportName := d.current.Name()
	d.mu.Unlock()

	env := Envelope{
		Channel:        MetaConnect,
		ClientID:       clientID,
		ConnectionType: transportName,
	}
	_, err := d.sendMessage(ctx, env)
	return err
}
