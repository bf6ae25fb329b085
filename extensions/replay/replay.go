// Package replay implements the Bayeux replay extension: a client-side
// record of the last replay id seen on each subscribed channel, sent
// back on /meta/subscribe so a server that supports the extension
// resumes delivery from where the session left off instead of replaying
// from the beginning or from "now".
//
// Grounded on the teacher's extensions/replay (itself modeled on
// Salesforce's Bayeux replay extension), adapted from the teacher's
// *bayeux.Message/*bayeux.BayeuxClient types to this module's Envelope
// and FayeExtension.
package replay

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	bayeux "github.com/bayeux-go/bayeux"
)

const (
	// ExtensionName is the ext-bag key this extension reads and writes.
	ExtensionName string = "replay"
	eventKey      string = "event"
	replayIDKey   string = "replayId"
)

const (
	unsupported int32 = iota
	supported
)

// IDStorer stores and manages the channels and replay ids for a Bayeux
// server that supports the replay extension. MapStorage and RedisStore
// both implement it.
type IDStorer interface {
	Set(channel string, replayID int)
	Get(channel string) (int, bool)
	Delete(channel string)
	AsMap() map[string]int
}

// Extension is the replay FayeExtension: it tags every /meta/handshake
// with its presence, tags every /meta/subscribe with the stored replay
// ids once the server has confirmed support, and updates the store from
// every broadcast-channel message's embedded replayId.
type Extension struct {
	supportedByServer int32
	store             IDStorer
}

// New creates an Extension backed by store.
func New(store IDStorer) *Extension {
	return &Extension{store: store}
}

// Outgoing implements bayeux.FayeExtension.
func (e *Extension) Outgoing(env *bayeux.Envelope) {
	switch env.Channel {
	case bayeux.MetaHandshake:
		ext := env.GetExt(true)
		ext[ExtensionName] = true
	case bayeux.MetaSubscribe:
		if e.isSupported() {
			ext := env.GetExt(true)
			ext[ExtensionName] = e.store.AsMap()
		}
	}
}

// Incoming implements bayeux.FayeExtension.
func (e *Extension) Incoming(env *bayeux.Envelope) {
	switch env.Channel.Type() {
	case bayeux.MetaChannel:
		switch env.Channel {
		case bayeux.MetaHandshake:
			ext := env.GetExt(false)
			if ext == nil {
				return
			}
			if isSupported, ok := ext[ExtensionName].(bool); ok && isSupported {
				atomic.CompareAndSwapInt32(&e.supportedByServer, unsupported, supported)
			}
		case bayeux.MetaUnsubscribe:
			e.store.Delete(string(env.Subscription))
		}
	case bayeux.BroadcastChannel:
		e.updateReplayID(env)
	}
}

// Registered implements bayeux.RegisterableExtension.
func (e *Extension) Registered(extensionName string) {}

// Unregistered implements bayeux.RegisterableExtension.
func (e *Extension) Unregistered() {}

func (e *Extension) updateReplayID(env *bayeux.Envelope) {
	var data map[string]interface{}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return
	}
	event, ok := data[eventKey].(map[string]interface{})
	if !ok {
		return
	}
	replayIDVal, ok := event[replayIDKey].(float64)
	if !ok {
		return
	}
	e.store.Set(string(env.Channel), int(replayIDVal))
}

func (e *Extension) isSupported() bool {
	return atomic.LoadInt32(&e.supportedByServer) == supported
}

// MapStorage implements IDStorer over a plain map guarded by a RWMutex.
// The default choice for a single-process client.
type MapStorage struct {
	mu    sync.RWMutex
	store map[string]int
}

// NewMapStorage builds an empty MapStorage.
func NewMapStorage() *MapStorage {
	return &MapStorage{store: make(map[string]int)}
}

// Set implements IDStorer.
func (s *MapStorage) Set(channel string, replayID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store[channel] = replayID
}

// Get implements IDStorer.
func (s *MapStorage) Get(channel string) (replayID int, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	replayID, ok = s.store[channel]
	return
}

// Delete implements IDStorer.
func (s *MapStorage) Delete(channel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.store, channel)
}

// AsMap implements IDStorer.
func (s *MapStorage) AsMap() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int, len(s.store))
	for k, v := range s.store {
		out[k] = v
	}
	return out
}
