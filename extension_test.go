package bayeux

import "testing"

func TestDefaultExtensionOutgoing(t *testing.T) {
	ext := NewDefaultExtension("my-app", "secret-token")
	env := &Envelope{Channel: MetaHandshake}
	ext.Outgoing(env)

	if env.Ext["api"] != "my-app" {
		t.Errorf("ext.api = %v, want my-app", env.Ext["api"])
	}
	if env.Ext["token"] != "secret-token" {
		t.Errorf("ext.token = %v, want secret-token", env.Ext["token"])
	}
}

func TestCustomExtension(t *testing.T) {
	var outCalled, inCalled bool
	ext := NewCustomExtension(
		func(env *Envelope) { outCalled = true },
		func(env *Envelope) { inCalled = true },
	)
	ext.Outgoing(&Envelope{})
	ext.Incoming(&Envelope{})
	if !outCalled || !inCalled {
		t.Error("both outgoing and incoming transforms should run")
	}

	nilExt := NewCustomExtension(nil, nil)
	nilExt.Outgoing(&Envelope{})
	nilExt.Incoming(&Envelope{})
}

type registeringExtension struct {
	registered   bool
	unregistered bool
}

func (e *registeringExtension) Outgoing(env *Envelope) {}
func (e *registeringExtension) Incoming(env *Envelope) {}
func (e *registeringExtension) Registered(name string) { e.registered = true }
func (e *registeringExtension) Unregistered()          { e.unregistered = true }

func TestExtensionSlotRegistersAndUnregisters(t *testing.T) {
	slot := &extensionSlot{}
	first := &registeringExtension{}
	slot.set(first)
	if !first.registered {
		t.Error("expected first extension to be Registered on set")
	}

	second := &registeringExtension{}
	slot.set(second)
	if !first.unregistered {
		t.Error("expected first extension to be Unregistered when replaced")
	}
	if !second.registered {
		t.Error("expected second extension to be Registered on set")
	}
}

type panickyExtension struct{}

func (panickyExtension) Outgoing(env *Envelope) { panic("boom") }
func (panickyExtension) Incoming(env *Envelope) { panic("boom") }

func TestExtensionSlotRecoversFromPanic(t *testing.T) {
	slot := &extensionSlot{}
	slot.set(panickyExtension{})
	logger := newNullLogger()

	env := &Envelope{Channel: "/chat/general"}
	slot.applyOutgoing(env, logger)
	slot.applyIncoming(env, logger)
	// Reaching this point without the test panicking is the assertion.
}
