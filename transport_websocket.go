package bayeux

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// websocketTransport implements the WebSocket connection type: a single
// long-lived connection carries every Envelope in both directions, with
// its own heartbeat ping and an exponential-backoff reconnect loop
// independent of the Dispatcher's session state machine.
//
// Grounded on the Domain Stack's `github.com/gorilla/websocket` wiring
// and on the teacher's clientState bookkeeping pattern
// (bayeux_client.go), generalized to a transport that owns a persistent
// socket instead of one-shot HTTP requests.
type websocketTransport struct {
	*transportBase

	dialer *websocket.Dialer

	heartbeatInterval time.Duration
	maxReconnect      int

	mu       sync.Mutex
	endpoint string
	headers  http.Header
	conn     *websocket.Conn
	writeMu  sync.Mutex
	closed   bool

	readerDone chan struct{}
}

// NewWebsocketTransport builds the WebSocket Transport. heartbeatMs and
// maxReconnectAttempts come from Option (WithHeartbeatInterval,
// WithReconnectMaxAttempts); a zero heartbeatMs disables pings.
func NewWebsocketTransport(heartbeatMs, maxReconnectAttempts int, logger Logger) Transport {
	return &websocketTransport{
		transportBase:     newTransportBase(logger, 64),
		dialer:            websocket.DefaultDialer,
		heartbeatInterval: time.Duration(heartbeatMs) * time.Millisecond,
		maxReconnect:      maxReconnectAttempts,
	}
}

func (t *websocketTransport) Name() string { return ConnectionTypeWebsocket }

// Supported always reports true: Connect translates an http(s)://
// endpoint to ws(s):// itself, so no endpoint is rejected up front.
func (t *websocketTransport) Supported() bool { return true }

func (t *websocketTransport) Connect(ctx context.Context, endpoint string, headers http.Header) error {
	wsEndpoint, err := toWebsocketURL(endpoint)
	if err != nil {
		return NewNetworkError("invalid websocket endpoint", err)
	}

	t.mu.Lock()
	t.endpoint = wsEndpoint
	t.headers = headers
	t.closed = false
	t.mu.Unlock()

	if err := t.dial(ctx); err != nil {
		return err
	}

	t.recordConnectTime()
	if t.heartbeatInterval > 0 {
		go t.heartbeatLoop()
	}
	return nil
}

func (t *websocketTransport) dial(ctx context.Context) error {
	t.mu.Lock()
	endpoint, headers := t.endpoint, t.headers
	t.mu.Unlock()

	conn, _, err := t.dialer.DialContext(ctx, endpoint, headers)
	if err != nil {
		return NewNetworkError("websocket dial failed", err)
	}

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()

	t.setConnected(true)

	done := make(chan struct{})
	t.mu.Lock()
	t.readerDone = done
	t.mu.Unlock()
	go t.readLoop(conn, done)
	return nil
}

// readLoop is the single reader of the socket for its lifetime; on any
// read error it marks the transport disconnected and attempts
// reconnectWithBackoff unless the transport has been explicitly closed.
func (t *websocketTransport) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.setConnected(false)
			t.mu.Lock()
			closed := t.closed
			t.mu.Unlock()
			if !closed {
				t.emitError(NewNetworkError("websocket read failed", err))
				t.reconnectWithBackoff()
			}
			return
		}
		t.recordReceived(len(data))
		envs, parseErr := ExtractBayeuxMessages(data)
		if parseErr != nil {
			t.emitError(parseErr)
			continue
		}
		for _, env := range envs {
			t.emitMessage(env)
		}
	}
}

// reconnectWithBackoff retries the dial with jittered exponential backoff
// up to maxReconnect attempts, per spec.md §6 "WebSocket reconnect
// policy". A maxReconnect of 0 disables automatic reconnection.
func (t *websocketTransport) reconnectWithBackoff() {
	for attempt := 1; attempt <= t.maxReconnect; attempt++ {
		t.mu.Lock()
		closed := t.closed
		t.mu.Unlock()
		if closed {
			return
		}

		backoff := time.Duration(1<<uint(attempt-1)) * 500 * time.Millisecond
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
		jitter := time.Duration(rand.Int63n(int64(backoff) / 2))
		time.Sleep(backoff + jitter)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := t.dial(ctx)
		cancel()
		if err == nil {
			t.logger.Info("websocket reconnected", "attempt", attempt)
			if t.heartbeatInterval > 0 {
				go t.heartbeatLoop()
			}
			return
		}
		t.emitError(err)
	}
	t.logger.Error("websocket reconnect attempts exhausted")
}

// heartbeatLoop pings the connection at heartbeatInterval until the
// transport is closed or the connection underneath it changes (a new
// readLoop/heartbeatLoop pair starts on every successful reconnect).
func (t *websocketTransport) heartbeatLoop() {
	ticker := time.NewTicker(t.heartbeatInterval)
	defer ticker.Stop()

	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	for range ticker.C {
		t.mu.Lock()
		closed := t.closed
		current := t.conn
		t.mu.Unlock()
		if closed || current != conn {
			return
		}

		t.writeMu.Lock()
		err := conn.WriteMessage(websocket.PingMessage, nil)
		t.writeMu.Unlock()
		if err != nil {
			t.emitError(NewNetworkError("websocket heartbeat failed", err))
			return
		}
	}
}

func (t *websocketTransport) Disconnect() error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	t.setConnected(false)
	if conn != nil {
		t.writeMu.Lock()
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		t.writeMu.Unlock()
	}
	return nil
}

func (t *websocketTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	conn := t.conn
	t.mu.Unlock()
	t.setConnected(false)
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (t *websocketTransport) Send(ctx context.Context, env Envelope) error {
	return t.SendBatch(ctx, []Envelope{env})
}

func (t *websocketTransport) SendBatch(ctx context.Context, envs []Envelope) error {
	body, err := json.Marshal(envs)
	if err != nil {
		return NewNetworkError("failed to encode request", err)
	}

	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return ErrNoTransportSelected
	}

	t.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, body)
	t.writeMu.Unlock()
	if err != nil {
		t.emitError(NewNetworkError("websocket write failed", err))
		return NewNetworkError("websocket write failed", err)
	}
	t.recordSent(len(body))
	return nil
}

// toWebsocketURL rewrites an http(s):// endpoint to ws(s)://, leaving an
// endpoint already in ws(s):// form untouched.
func toWebsocketURL(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		u.Scheme = "ws"
	}
	return u.String(), nil
}
