package bayeux

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SubscriptionCallback receives the Data payload of every message
// delivered on a Subscription's channel or matching its pattern.
type SubscriptionCallback func(data json.RawMessage)

// Subscription is a single client-side registration against a channel
// name or pattern. It is created by Client.Subscribe on a successful
// /meta/subscribe and destroyed by Cancel or Client.Unsubscribe.
//
// See also: spec.md §3 "Subscription".
type Subscription struct {
	id        string
	channel   Channel
	callback  SubscriptionCallback
	createdAt time.Time

	mu           sync.Mutex
	active       bool
	lastUsed     time.Time
	messageCount uint64
	errorCount   uint64

	cancel func()
}

func newSubscription(channel Channel, callback SubscriptionCallback, cancel func()) *Subscription {
	now := time.Now()
	return &Subscription{
		id:        uuid.NewString(),
		channel:   channel,
		callback:  callback,
		createdAt: now,
		lastUsed:  now,
		active:    true,
		cancel:    cancel,
	}
}

// ID returns the subscription's opaque identifier.
func (s *Subscription) ID() string { return s.id }

// Channel returns the channel name or pattern this subscription was
// registered against.
func (s *Subscription) Channel() Channel { return s.channel }

// CreatedAt returns when the subscription was created.
func (s *Subscription) CreatedAt() time.Time { return s.createdAt }

// Active reports whether the subscription still receives messages. A
// Subscription with Active() == false never invokes its callback, per
// spec.md §3 invariants.
func (s *Subscription) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// LastUsed returns the time of the most recent handleMessage/handleError.
func (s *Subscription) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// MessageCount returns how many messages have been delivered.
func (s *Subscription) MessageCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messageCount
}

// ErrorCount returns how many callback invocations panicked.
func (s *Subscription) ErrorCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errorCount
}

// Cancel deactivates the subscription. It does not itself send a
// /meta/unsubscribe; Client.Unsubscribe is responsible for that and
// calls Cancel after the round trip, whether or not it succeeded.
func (s *Subscription) Cancel() {
	s.mu.Lock()
	s.active = false
	s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// handleMessage invokes the callback with data, incrementing
// messageCount, unless the subscription is inactive. A panicking
// callback increments errorCount instead of propagating, so fan-out to
// the remaining subscriptions continues.
//
// See also: spec.md §4.4 "Callback exceptions increment errorCount but
// do not halt fan-out to the remaining subscriptions."
func (s *Subscription) handleMessage(data json.RawMessage, logger Logger) {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.lastUsed = time.Now()
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.handleError()
			logger.WithField("panic", r).WithField("channel", s.channel).Warn("subscription callback panicked")
		}
	}()
	s.callback(data)

	s.mu.Lock()
	s.messageCount++
	s.mu.Unlock()
}

// handleError increments errorCount. Exposed so tests and callers that
// drive delivery outside handleMessage can record a failed delivery.
func (s *Subscription) handleError() {
	s.mu.Lock()
	s.errorCount++
	s.mu.Unlock()
}
