package bayeux

import "testing"

func TestSessionStateMachineHappyPath(t *testing.T) {
	sm := newSessionStateMachine()

	if got := sm.State(); got != StateUnconnected {
		t.Fatalf("initial state = %v, want UNCONNECTED", got)
	}

	if next, changed := sm.process(eventConnect); !changed || next != StateConnecting {
		t.Fatalf("eventConnect => %v, %v; want CONNECTING, true", next, changed)
	}
	if next, changed := sm.process(eventHandshakeOK); !changed || next != StateConnected {
		t.Fatalf("eventHandshakeOK => %v, %v; want CONNECTED, true", next, changed)
	}
	if next, changed := sm.process(eventDisconnect); !changed || next != StateDisconnected {
		t.Fatalf("eventDisconnect => %v, %v; want DISCONNECTED, true", next, changed)
	}
	if next, changed := sm.process(eventTransportDown); !changed || next != StateUnconnected {
		t.Fatalf("eventTransportDown => %v, %v; want UNCONNECTED, true", next, changed)
	}
}

func TestSessionStateMachineHandshakeFailure(t *testing.T) {
	sm := newSessionStateMachine()
	sm.process(eventConnect)

	next, changed := sm.process(eventHandshakeFailed)
	if !changed || next != StateDisconnected {
		t.Fatalf("eventHandshakeFailed => %v, %v; want DISCONNECTED, true", next, changed)
	}
}

func TestSessionStateMachineDuplicateConnectIsNoOp(t *testing.T) {
	sm := newSessionStateMachine()
	sm.process(eventConnect)
	sm.process(eventHandshakeOK)

	if _, changed := sm.process(eventConnect); changed {
		t.Error("eventConnect while CONNECTED should be a no-op")
	}
	if sm.State() != StateConnected {
		t.Errorf("state changed unexpectedly to %v", sm.State())
	}
}

func TestSessionStateMachineCloseFromAnyState(t *testing.T) {
	tests := []sessionEvent{eventConnect, eventHandshakeOK, eventDisconnect}
	for _, e := range tests {
		sm := newSessionStateMachine()
		sm.process(e)
		next, changed := sm.process(eventClose)
		if next != StateUnconnected {
			t.Errorf("after event %v then close: state = %v, want UNCONNECTED", e, next)
		}
		_ = changed
	}
}

func TestSessionStateString(t *testing.T) {
	tests := map[SessionState]string{
		StateUnconnected:  "UNCONNECTED",
		StateConnecting:   "CONNECTING",
		StateConnected:    "CONNECTED",
		StateDisconnected: "DISCONNECTED",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
