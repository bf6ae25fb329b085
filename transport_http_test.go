package bayeux

import (
	"context"
	"testing"
	"time"

	"github.com/bayeux-go/bayeux/internal/bayeuxtest"
)

func TestHTTPLongPollingTransportSendReceivesResponse(t *testing.T) {
	server := bayeuxtest.NewServer(t)
	if err := server.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	transport, err := NewHTTPLongPollingTransport(server, newNullLogger())
	if err != nil {
		t.Fatalf("NewHTTPLongPollingTransport: %v", err)
	}

	ctx := context.Background()
	if err := transport.Connect(ctx, "http://bayeux.test/cometd", nil); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !transport.Connected() {
		t.Error("expected transport to report Connected after Connect")
	}

	env, err := newHandshakeEnvelope("1", "1.0", []string{ConnectionTypeLongPolling})
	if err != nil {
		t.Fatalf("newHandshakeEnvelope: %v", err)
	}

	if err := transport.Send(ctx, env); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case resp := <-transport.Messages():
		if !resp.Successful {
			t.Errorf("expected a successful handshake response, got %+v", resp)
		}
		if resp.ClientID == "" {
			t.Error("expected a clientId in the handshake response")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for handshake response")
	}

	stats := transport.Statistics()
	if stats.MessagesSent != 1 {
		t.Errorf("MessagesSent = %d, want 1", stats.MessagesSent)
	}
	if stats.MessagesReceived != 1 {
		t.Errorf("MessagesReceived = %d, want 1", stats.MessagesReceived)
	}
}

func TestHTTPLongPollingTransportHandshakeError(t *testing.T) {
	server := bayeuxtest.NewServer(t, bayeuxtest.WithHandshakeError(true))
	if err := server.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	transport, err := NewHTTPLongPollingTransport(server, newNullLogger())
	if err != nil {
		t.Fatalf("NewHTTPLongPollingTransport: %v", err)
	}

	ctx := context.Background()
	if err := transport.Connect(ctx, "http://bayeux.test/cometd", nil); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	env, err := newHandshakeEnvelope("1", "1.0", []string{ConnectionTypeLongPolling})
	if err != nil {
		t.Fatalf("newHandshakeEnvelope: %v", err)
	}

	if err := transport.Send(ctx, env); err == nil {
		t.Error("expected Send to fail for a non-2xx response")
	}
}
