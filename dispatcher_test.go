package bayeux

import (
	"context"
	"testing"
	"time"

	"github.com/bayeux-go/bayeux/internal/bayeuxtest"
)

func newTestDispatcher(t *testing.T, opts ...bayeuxtest.ServerOpt) (*Dispatcher, *bayeuxtest.Server) {
	t.Helper()
	server := bayeuxtest.NewServer(t, opts...)
	if err := server.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	transport, err := NewHTTPLongPollingTransport(server, newNullLogger())
	if err != nil {
		t.Fatalf("NewHTTPLongPollingTransport: %v", err)
	}

	o := newOptions()
	d, err := NewDispatcher(map[string]Transport{ConnectionTypeLongPolling: transport}, ConnectionTypeLongPolling, o)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	d.endpoint = "http://bayeux.test/cometd"
	return d, server
}

func TestDispatcherConnectHandshakes(t *testing.T) {
	d, _ := newTestDispatcher(t)

	if err := d.Connect(context.Background(), nil); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if d.State() != StateConnected {
		t.Fatalf("State() = %v, want CONNECTED", d.State())
	}
	if d.ClientID() == "" {
		t.Error("expected a non-empty clientId after handshake")
	}
}

func TestDispatcherConnectFailsOnHandshakeError(t *testing.T) {
	d, _ := newTestDispatcher(t, bayeuxtest.WithHandshakeError(true))

	if err := d.Connect(context.Background(), nil); err == nil {
		t.Fatal("expected Connect to fail when the server rejects the handshake")
	}
	if d.State() != StateDisconnected {
		t.Fatalf("State() = %v, want DISCONNECTED", d.State())
	}
}

func TestDispatcherSubscribeAndUnsubscribe(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()

	if err := d.Connect(ctx, nil); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	resp, err := d.Subscribe(ctx, "/chat/general")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if !resp.Successful {
		t.Fatalf("expected a successful subscribe, got %+v", resp)
	}

	// Subscribing twice to the same channel should be rejected by the
	// fake server with a 403.
	resp, err = d.Subscribe(ctx, "/chat/general")
	if err != nil {
		t.Fatalf("Subscribe (duplicate): %v", err)
	}
	if resp.Successful {
		t.Fatal("expected the duplicate subscribe to fail")
	}

	resp, err = d.Unsubscribe(ctx, "/chat/general")
	if err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	if !resp.Successful {
		t.Fatalf("expected a successful unsubscribe, got %+v", resp)
	}
}

func TestDispatcherPublishRequiresConnection(t *testing.T) {
	d, _ := newTestDispatcher(t)
	if _, err := d.Publish(context.Background(), "/chat/general", []byte(`{}`)); err != ErrClientNotConnected {
		t.Errorf("Publish before Connect: got %v, want ErrClientNotConnected", err)
	}
}

func TestDispatcherPublishAndReceivePush(t *testing.T) {
	d, server := newTestDispatcher(t)
	ctx := context.Background()

	if err := d.Connect(ctx, nil); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if _, err := d.Subscribe(ctx, "/chat/general"); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	unsolicited, cancel := d.UnsolicitedMessages()
	defer cancel()

	server.Push("/chat/general", []byte(`{"text":"hello"}`))

	if err := d.SendConnect(ctx); err != nil {
		t.Fatalf("SendConnect: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case env := <-unsolicited:
			if env.Channel == "/chat/general" {
				if string(env.Data) != `{"text":"hello"}` {
					t.Errorf("Data = %s", env.Data)
				}
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for the pushed message")
		}
	}
}

func TestDispatcherDisconnectAndClose(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()

	if err := d.Connect(ctx, nil); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := d.Disconnect(ctx); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if d.State() != StateUnconnected {
		t.Fatalf("State() = %v, want UNCONNECTED", d.State())
	}

	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
