package bayeux

import "sync/atomic"

// SessionState is the state of a Dispatcher's connection to the Bayeux
// server.
//
// See also: spec.md §3 "Session state", §4.3 "State machine".
type SessionState int32

const (
	// StateUnconnected is the initial state, and the state after a clean
	// disconnect or close.
	StateUnconnected SessionState = iota + 1
	// StateConnecting is entered on Connect() and left once the
	// handshake resolves, either into StateConnected or StateDisconnected.
	StateConnecting
	// StateConnected means the handshake succeeded and a clientId is held.
	StateConnected
	// StateDisconnected means the session was torn down, either by the
	// caller or because the transport/handshake failed; a future
	// Connect() restarts from StateUnconnected.
	StateDisconnected
)

func (s SessionState) String() string {
	switch s {
	case StateUnconnected:
		return "UNCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateDisconnected:
		return "DISCONNECTED"
	default:
		return "UNKNOWN"
	}
}

// sessionEvent is an input to the session state machine.
type sessionEvent int

const (
	eventConnect sessionEvent = iota
	eventHandshakeOK
	eventHandshakeFailed
	eventDisconnect
	eventTransportDown
	eventClose
)

// sessionStateMachine tracks the four-state Bayeux session lifecycle
// described in spec.md §4.3. It has no knowledge of transports or wire
// messages; the Dispatcher drives it with the events above.
//
// Grounded on the teacher's state_machine.go (atomic int32 + ProcessEvent
// dispatch), extended from three states to four per spec.md's REDESIGN
// FLAG calling out the missing DISCONNECTED state.
type sessionStateMachine struct {
	current atomic.Int32
}

func newSessionStateMachine() *sessionStateMachine {
	sm := &sessionStateMachine{}
	sm.current.Store(int32(StateUnconnected))
	return sm
}

// State returns the current state.
func (sm *sessionStateMachine) State() SessionState {
	return SessionState(sm.current.Load())
}

// process applies event to the state machine, returning whether it
// actually changed state (duplicate connect()/disconnect() are no-ops
// per spec.md §4.3).
func (sm *sessionStateMachine) process(e sessionEvent) (SessionState, bool) {
	for {
		current := SessionState(sm.current.Load())
		next, changed := nextState(current, e)
		if !changed {
			return current, false
		}
		if sm.current.CompareAndSwap(int32(current), int32(next)) {
			return next, true
		}
	}
}

func nextState(current SessionState, e sessionEvent) (SessionState, bool) {
	switch e {
	case eventConnect:
		if current != StateUnconnected {
			return current, false
		}
		return StateConnecting, true
	case eventHandshakeOK:
		if current != StateConnecting {
			return current, false
		}
		return StateConnected, true
	case eventHandshakeFailed:
		if current != StateConnecting {
			return current, false
		}
		return StateDisconnected, true
	case eventDisconnect:
		if current != StateConnected && current != StateConnecting {
			return current, false
		}
		return StateDisconnected, true
	case eventTransportDown:
		if current != StateDisconnected {
			return current, false
		}
		return StateUnconnected, true
	case eventClose:
		return StateUnconnected, current != StateUnconnected
	default:
		return current, false
	}
}
