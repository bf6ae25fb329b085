package bayeux

import (
	"encoding/json"
	"testing"
)

func TestSubscriptionHandleMessage(t *testing.T) {
	var received json.RawMessage
	cancelled := false
	sub := newSubscription("/chat/general", func(data json.RawMessage) {
		received = data
	}, func() { cancelled = true })

	sub.handleMessage(json.RawMessage(`{"text":"hi"}`), newNullLogger())

	if string(received) != `{"text":"hi"}` {
		t.Errorf("callback received %s", received)
	}
	if sub.MessageCount() != 1 {
		t.Errorf("MessageCount = %d, want 1", sub.MessageCount())
	}

	sub.Cancel()
	if !cancelled {
		t.Error("expected cancel func to run")
	}
	if sub.Active() {
		t.Error("expected subscription to be inactive after Cancel")
	}

	sub.handleMessage(json.RawMessage(`{}`), newNullLogger())
	if sub.MessageCount() != 1 {
		t.Error("a cancelled subscription should not receive further messages")
	}
}

func TestSubscriptionHandleMessagePanicRecovers(t *testing.T) {
	sub := newSubscription("/chat/general", func(data json.RawMessage) {
		panic("callback exploded")
	}, nil)

	sub.handleMessage(json.RawMessage(`{}`), newNullLogger())

	if sub.ErrorCount() != 1 {
		t.Errorf("ErrorCount = %d, want 1", sub.ErrorCount())
	}
	if sub.MessageCount() != 0 {
		t.Errorf("MessageCount = %d, want 0 for a panicking callback", sub.MessageCount())
	}
	if !sub.Active() {
		t.Error("a panicking callback should not deactivate the subscription")
	}
}

func TestSubscriptionUniqueIDs(t *testing.T) {
	a := newSubscription("/a", nil, nil)
	b := newSubscription("/b", nil, nil)
	if a.ID() == b.ID() {
		t.Error("expected distinct subscription ids")
	}
}
