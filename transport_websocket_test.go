package bayeux

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestToWebsocketURL(t *testing.T) {
	tests := []struct{ in, want string }{
		{"http://example.com/cometd", "ws://example.com/cometd"},
		{"https://example.com/cometd", "wss://example.com/cometd"},
		{"ws://example.com/cometd", "ws://example.com/cometd"},
	}
	for _, tt := range tests {
		got, err := toWebsocketURL(tt.in)
		if err != nil {
			t.Fatalf("toWebsocketURL(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("toWebsocketURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// TestWebsocketTransportSendAndReceive drives a real gorilla/websocket
// connection against an httptest server that echoes back a successful
// handshake response for whatever it's sent.
func TestWebsocketTransportSendAndReceive(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var envs []Envelope
			if err := json.Unmarshal(data, &envs); err != nil {
				return
			}
			reply := []Envelope{{
				Channel:    MetaHandshake,
				ID:         envs[0].ID,
				ClientID:   "srv-1",
				Successful: true,
			}}
			out, _ := json.Marshal(reply)
			if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	transport := NewWebsocketTransport(0, 0, newNullLogger())
	ctx := context.Background()

	if err := transport.Connect(ctx, srv.URL, nil); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer transport.Close()

	env, err := newHandshakeEnvelope("1", "1.0", []string{ConnectionTypeWebsocket})
	if err != nil {
		t.Fatalf("newHandshakeEnvelope: %v", err)
	}
	if err := transport.Send(ctx, env); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case resp := <-transport.Messages():
		if !resp.Successful || resp.ClientID != "srv-1" {
			t.Errorf("unexpected response: %+v", resp)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for websocket response")
	}
}
