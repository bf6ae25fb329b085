package bayeux

import "sync"

// FayeExtension is a pair of pure transforms applied to every outbound
// and inbound Envelope at the dispatcher boundary. Implementations must
// tolerate being called on any meta or user channel, and are conventionally
// expected to add fields under the Ext bag rather than rewrite existing
// ones.
//
// See also: spec.md §4.5.
type FayeExtension interface {
	Outgoing(*Envelope)
	Incoming(*Envelope)
}

// RegisterableExtension is an optional extra an extension can implement
// to learn when it has been attached to or detached from a Dispatcher.
// Grounded on the teacher's MessageExtender.Registered/Unregistered,
// kept as a secondary interface rather than part of FayeExtension's
// required contract so a plain two-closure extension (CustomExtension)
// doesn't need to implement it.
type RegisterableExtension interface {
	Registered(extensionName string)
	Unregistered()
}

// DefaultExtension inserts static api/token authentication fields into
// every outbound envelope's ext bag, adapted from the teacher's
// extensions/salesforce StaticTokenAuthenticator.
type DefaultExtension struct {
	// API identifies the calling application to the server.
	API string
	// Token is the bearer credential attached to ext.token.
	Token string
}

// NewDefaultExtension builds a DefaultExtension with the given api/token.
func NewDefaultExtension(api, token string) *DefaultExtension {
	return &DefaultExtension{API: api, Token: token}
}

// Outgoing implements FayeExtension.
func (e *DefaultExtension) Outgoing(env *Envelope) {
	ext := env.GetExt(true)
	ext["api"] = e.API
	ext["token"] = e.Token
}

// Incoming implements FayeExtension as a no-op; the default extension
// only authenticates outbound traffic.
func (e *DefaultExtension) Incoming(env *Envelope) {}

// CustomExtension wraps caller-supplied transform functions, per the
// Design Notes' "callers supplying a record of two functions should also
// be accepted".
type CustomExtension struct {
	OutgoingFunc func(*Envelope)
	IncomingFunc func(*Envelope)
}

// NewCustomExtension builds a CustomExtension from two transforms. Either
// may be nil, in which case that direction is a no-op.
func NewCustomExtension(outgoing, incoming func(*Envelope)) *CustomExtension {
	return &CustomExtension{OutgoingFunc: outgoing, IncomingFunc: incoming}
}

// Outgoing implements FayeExtension.
func (e *CustomExtension) Outgoing(env *Envelope) {
	if e.OutgoingFunc != nil {
		e.OutgoingFunc(env)
	}
}

// Incoming implements FayeExtension.
func (e *CustomExtension) Incoming(env *Envelope) {
	if e.IncomingFunc != nil {
		e.IncomingFunc(env)
	}
}

// extensionSlot holds the single active extension a Dispatcher applies,
// guarded so SetExtension is safe to call concurrently with message
// processing. Only one extension is defined per spec.md §4.5; chaining
// is the caller's responsibility via CustomExtension composing others.
type extensionSlot struct {
	mu  sync.RWMutex
	ext FayeExtension
}

func (s *extensionSlot) set(ext FayeExtension) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.ext.(RegisterableExtension); ok {
		old.Unregistered()
	}
	s.ext = ext
	if reg, ok := ext.(RegisterableExtension); ok {
		reg.Registered("default")
	}
}

func (s *extensionSlot) get() FayeExtension {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ext
}

// applyOutgoing runs the active extension's Outgoing transform, if any.
// Extension errors are impossible by interface contract (no error
// return), but a panicking extension is caught and treated as identity,
// per spec.md §4.5 "Extension errors are caught at the call site".
func (s *extensionSlot) applyOutgoing(env *Envelope, logger Logger) {
	ext := s.get()
	if ext == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", r).Warn("outgoing extension panicked, using original message")
		}
	}()
	ext.Outgoing(env)
}

// applyIncoming runs the active extension's Incoming transform, if any,
// tolerating a panic the same way applyOutgoing does.
func (s *extensionSlot) applyIncoming(env *Envelope, logger Logger) {
	ext := s.get()
	if ext == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", r).Warn("incoming extension panicked, using original message")
		}
	}()
	ext.Incoming(env)
}
