package replay

import (
	"encoding/json"
	"testing"

	bayeux "github.com/bayeux-go/bayeux"
)

func TestExtensionOutgoingTagsHandshake(t *testing.T) {
	ext := New(NewMapStorage())

	env := &bayeux.Envelope{Channel: bayeux.MetaHandshake}
	ext.Outgoing(env)

	if v, ok := env.Ext[ExtensionName].(bool); !ok || !v {
		t.Fatalf("ext[%q] = %v, want true", ExtensionName, env.Ext[ExtensionName])
	}
}

func TestExtensionOutgoingOmitsReplayMapUntilServerSupportsIt(t *testing.T) {
	ext := New(NewMapStorage())

	env := &bayeux.Envelope{Channel: bayeux.MetaSubscribe, Subscription: "/chat/general"}
	ext.Outgoing(env)

	if env.Ext != nil {
		t.Fatalf("expected no ext bag before the server advertises support, got %v", env.Ext)
	}
}

func TestExtensionIncomingHandshakeMarksSupport(t *testing.T) {
	store := NewMapStorage()
	store.Set("/chat/general", 41)
	ext := New(store)

	handshakeResp := &bayeux.Envelope{
		Channel: bayeux.MetaHandshake,
		Ext:     map[string]interface{}{ExtensionName: true},
	}
	ext.Incoming(handshakeResp)

	if !ext.isSupported() {
		t.Fatal("expected the server's ext ack to mark the extension as supported")
	}

	subscribe := &bayeux.Envelope{Channel: bayeux.MetaSubscribe, Subscription: "/chat/general"}
	ext.Outgoing(subscribe)

	replayMap, ok := subscribe.Ext[ExtensionName].(map[string]int)
	if !ok {
		t.Fatalf("ext[%q] = %v, want map[string]int", ExtensionName, subscribe.Ext[ExtensionName])
	}
	if replayMap["/chat/general"] != 41 {
		t.Errorf("replayMap[/chat/general] = %d, want 41", replayMap["/chat/general"])
	}
}

func TestExtensionIncomingBroadcastUpdatesReplayID(t *testing.T) {
	store := NewMapStorage()
	ext := New(store)

	data, err := json.Marshal(map[string]interface{}{
		"event": map[string]interface{}{"replayId": 7},
	})
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}

	ext.Incoming(&bayeux.Envelope{Channel: "/chat/general", Data: data})

	got, ok := store.Get("/chat/general")
	if !ok || got != 7 {
		t.Errorf("store.Get(/chat/general) = (%d, %v), want (7, true)", got, ok)
	}
}

func TestExtensionIncomingUnsubscribeDeletesStoredReplayID(t *testing.T) {
	store := NewMapStorage()
	store.Set("/chat/general", 9)
	ext := New(store)

	ext.Incoming(&bayeux.Envelope{Channel: bayeux.MetaUnsubscribe, Subscription: "/chat/general"})

	if _, ok := store.Get("/chat/general"); ok {
		t.Error("expected unsubscribe to delete the stored replay id")
	}
}

func TestMapStorageAsMapIsACopy(t *testing.T) {
	store := NewMapStorage()
	store.Set("/chat/general", 1)

	snapshot := store.AsMap()
	snapshot["/chat/general"] = 999

	got, _ := store.Get("/chat/general")
	if got != 1 {
		t.Errorf("mutating AsMap's result affected the store: Get() = %d, want 1", got)
	}
}
