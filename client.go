package bayeux

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// Client is the high-level, subscription-oriented API for talking to a
// Bayeux server: it owns a Dispatcher and a registry of Subscriptions,
// and fans every inbound, non-correlated message out to whichever
// Subscriptions match its channel.
//
// Grounded on the teacher's client.go poll loop (subscribeRequestChannel,
// connectRequestChannel, timer), generalized from a flat chan []Message
// per call to per-Subscription callbacks, and from "the loop itself owns
// the HTTP request" to "the Dispatcher+Transport own the wire, the
// Client owns fan-out".
type Client struct {
	d      *Dispatcher
	logger Logger

	mu     sync.RWMutex
	subs   map[string]*Subscription
	subIDs []string // insertion order of subs, for registration-order fan-out

	ctx    context.Context
	cancel context.CancelFunc

	runOnce sync.Once
}

// NewClient builds a Client against serverAddress. By default it
// registers the HTTP long-polling, HTTP callback-polling, and WebSocket
// transports, with long-polling selected first; WithTransport overrides
// or adds to that set, and WithDefaultTransport picks a different
// starting one.
func NewClient(serverAddress string, opts ...Option) (*Client, error) {
	o := newOptions()
	for _, opt := range opts {
		opt(o)
	}

	transports := map[string]Transport{}

	httpTransport, err := NewHTTPLongPollingTransport(o.httpRoundTripper, o.logger)
	if err != nil {
		return nil, err
	}
	transports[ConnectionTypeLongPolling] = httpTransport

	callbackTransport, err := NewHTTPCallbackPollingTransport(o.httpRoundTripper, o.logger)
	if err != nil {
		return nil, err
	}
	transports[ConnectionTypeCallbackPolling] = callbackTransport

	transports[ConnectionTypeWebsocket] = NewWebsocketTransport(o.heartbeatInterval, o.reconnectMaxAttempt, o.logger)

	for _, t := range o.transports {
		transports[t.Name()] = t
	}

	defaultName := ConnectionTypeLongPolling
	if o.defaultTransport != "" {
		defaultName = o.defaultTransport
	}

	d, err := NewDispatcher(transports, defaultName, o)
	if err != nil {
		return nil, err
	}
	d.endpoint = serverAddress

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		d:      d,
		logger: o.logger,
		subs:   make(map[string]*Subscription),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Connect performs the handshake and, on success, starts the background
// fan-out loop and the first /meta/connect keepalive.
func (c *Client) Connect(ctx context.Context, headers http.Header) error {
	if err := c.ctx.Err(); err != nil {
		return err
	}
	if err := c.d.Connect(ctx, headers); err != nil {
		return err
	}

	c.runOnce.Do(func() {
		go c.run()
	})

	go func() {
		if err := c.d.SendConnect(c.ctx); err != nil {
			c.logger.WithError(err).Warn("initial connect keepalive failed")
		}
	}()
	return nil
}

// Disconnect issues /meta/disconnect and tears the transport down,
// leaving the Client able to Connect again.
func (c *Client) Disconnect(ctx context.Context) error {
	return c.d.Disconnect(ctx)
}

// Close releases every resource the Client holds: it stops the
// background loop and closes the Dispatcher (and, through it, the
// active Transport). A closed Client cannot Connect again.
func (c *Client) Close() error {
	c.cancel()
	return c.d.Close()
}

// State returns the Dispatcher's current SessionState.
func (c *Client) State() SessionState { return c.d.State() }

// SetExtension installs ext as the Dispatcher's single active extension.
func (c *Client) SetExtension(ext FayeExtension) { c.d.SetExtension(ext) }

// SetTransport switches which registered transport Connect uses next.
func (c *Client) SetTransport(name string) error { return c.d.SetTransport(name) }

// Statistics returns the active transport's frame-level counters.
func (c *Client) Statistics() Statistics { return c.d.Statistics() }

// StateChanges streams the Dispatcher's SessionState transitions.
func (c *Client) StateChanges() (<-chan SessionState, func()) { return c.d.StateChanges() }

// Errors streams steady-state errors from the Dispatcher and its
// transport (poll failures, heartbeat failures, extension panics logged
// as warnings are not included here, only forwarded errors).
func (c *Client) Errors() (<-chan error, func()) { return c.d.Errors() }

// Subscribe sends /meta/subscribe for channel and, on success, registers
// cb to receive every subsequent message whose channel matches it
// (exactly, for a concrete channel; by ** / * translation, for a
// pattern). The returned Subscription's Cancel (or Client.Unsubscribe)
// stops delivery.
//
// See also: spec.md §4.4 "Subscribe / unsubscribe", §8 scenario 3.
func (c *Client) Subscribe(ctx context.Context, channel Channel, cb SubscriptionCallback) (*Subscription, error) {
	if !channel.IsValidName() && !channel.IsValidPattern() {
		return nil, newChannelError(string(channel))
	}

	resp, err := c.d.Subscribe(ctx, channel)
	if err != nil {
		return nil, err
	}
	if !resp.Successful {
		return nil, NewSubscriptionError(string(channel), resp.Error)
	}

	var sub *Subscription
	sub = newSubscription(channel, cb, func() {
		c.mu.Lock()
		c.removeSubLocked(sub.ID())
		c.mu.Unlock()
	})

	c.mu.Lock()
	c.subs[sub.ID()] = sub
	c.subIDs = append(c.subIDs, sub.ID())
	c.mu.Unlock()

	return sub, nil
}

// removeSubLocked deletes id from subs and subIDs. Callers must hold c.mu.
func (c *Client) removeSubLocked(id string) {
	delete(c.subs, id)
	for i, existing := range c.subIDs {
		if existing == id {
			c.subIDs = append(c.subIDs[:i], c.subIDs[i+1:]...)
			break
		}
	}
}

// Unsubscribe sends /meta/unsubscribe for sub's channel and cancels it.
// sub stops receiving messages regardless of whether the
// server round trip succeeds, matching spec.md §4.4's "Unsubscribe
// always deactivates the local Subscription, even on transport failure,
// to avoid silently-undead callbacks".
func (c *Client) Unsubscribe(ctx context.Context, sub *Subscription) error {
	if sub == nil {
		return ErrNotSubscribed
	}
	resp, err := c.d.Unsubscribe(ctx, sub.Channel())
	sub.Cancel()
	if err != nil {
		return err
	}
	if !resp.Successful {
		return NewSubscriptionError(string(sub.Channel()), resp.Error)
	}
	return nil
}

// Publish sends data on channel and always returns a Publication: unlike
// Subscribe/Unsubscribe, a failed publish is reported on the returned
// object rather than as an error, per spec.md §7's deliberate exception
// for publish.
func (c *Client) Publish(ctx context.Context, channel Channel, data []byte) *Publication {
	resp, err := c.d.Publish(ctx, channel, data)

	id := resp.ID
	pub := newPublication(id, channel, data)

	if err != nil {
		pub.markFailed(err)
		return pub
	}
	if !resp.Successful {
		pub.markFailed(NewPublicationError(string(channel), resp.Error))
		return pub
	}

	subscriberCount := 0
	if n, ok := resp.Ext["subscriberCount"].(float64); ok {
		subscriberCount = int(n)
	}
	pub.markSuccessful(subscriberCount)
	return pub
}

// run is the Client's single background goroutine: it drains the
// Dispatcher's unsolicited-message stream for the Client's lifetime,
// fanning each message out to matching Subscriptions and re-arming the
// long-poll keepalive whenever a /meta/connect response arrives.
//
// See also: spec.md §4.4 "_handleMessage".
func (c *Client) run() {
	ch, cancel := c.d.UnsolicitedMessages()
	defer cancel()

	for {
		select {
		case <-c.ctx.Done():
			return
		case env, ok := <-ch:
			if !ok {
				return
			}
			c.handleUnsolicited(env)
		}
	}
}

func (c *Client) handleUnsolicited(env Envelope) {
	if env.Channel == MetaConnect {
		c.scheduleNextConnect()
		return
	}
	c.routeMessage(env)
}

// scheduleNextConnect re-issues /meta/connect after the interval named by
// the session's current advice, per spec.md §4.4's keepalive pipelining.
// It is a no-op once the session has left CONNECTED.
func (c *Client) scheduleNextConnect() {
	if c.d.State() != StateConnected {
		return
	}
	interval := c.d.Advice().IntervalAsDuration()
	time.AfterFunc(interval, func() {
		select {
		case <-c.ctx.Done():
			return
		default:
		}
		if c.d.State() != StateConnected {
			return
		}
		if err := c.d.SendConnect(c.ctx); err != nil {
			c.logger.WithError(err).Warn("connect keepalive failed")
		}
	})
}

// routeMessage delivers env.Data to every active Subscription whose
// channel matches env.Channel, either exactly or, for a pattern
// Subscription, via Channel.Match. Matches are invoked in registration
// order: c.subIDs, not map iteration (which Go randomizes per run), is
// the source of truth for that order.
//
// See also: spec.md §4.4 "deliver m.data to each callback in registration
// order", §8 scenario 3.
func (c *Client) routeMessage(env Envelope) {
	c.mu.RLock()
	matches := make([]*Subscription, 0, len(c.subIDs))
	for _, id := range c.subIDs {
		sub := c.subs[id]
		if sub == nil || !sub.Active() {
			continue
		}
		if sub.Channel() == env.Channel {
			matches = append(matches, sub)
			continue
		}
		if sub.Channel().IsValidPattern() && sub.Channel().Match(env.Channel) {
			matches = append(matches, sub)
		}
	}
	c.mu.RUnlock()

	for _, sub := range matches {
		sub.handleMessage(env.Data, c.logger)
	}
}
