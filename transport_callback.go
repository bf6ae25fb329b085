package bayeux

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"
)

// httpCallbackPollingTransport implements the callback-polling ("JSONP")
// connection type: each request is a GET that carries the JSON-encoded
// messages in a "message" query parameter instead of a body, and the
// server is asked to wrap its
// JSON array response in a call to a uniquely-named JavaScript function
// via a "jsonp" query parameter. There is no JavaScript runtime here to
// invoke that callback, so the response is unwrapped by stripping the
// "<callback>(" prefix and trailing ")" the same way a browser's script
// tag loader would before handing the payload to a parser.
//
// Grounded on the teacher's long-polling request/parseResponse
// (bayeux_client.go), adapted for the callback-polling request encoding
// described in spec.md §6.
type httpCallbackPollingTransport struct {
	*transportBase

	endpointMu sync.Mutex
	endpoint   string
	headers    http.Header

	client *http.Client
}

// NewHTTPCallbackPollingTransport builds the callback-polling Transport.
func NewHTTPCallbackPollingTransport(rt http.RoundTripper, logger Logger) (Transport, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, NewNetworkError("failed to build cookie jar", err)
	}
	if rt == nil {
		rt = http.DefaultTransport
	}
	return &httpCallbackPollingTransport{
		transportBase: newTransportBase(logger, 64),
		client:        &http.Client{Transport: rt, Jar: jar},
	}, nil
}

func (t *httpCallbackPollingTransport) Name() string { return ConnectionTypeCallbackPolling }

func (t *httpCallbackPollingTransport) Supported() bool { return true }

func (t *httpCallbackPollingTransport) Connect(ctx context.Context, endpoint string, headers http.Header) error {
	t.endpointMu.Lock()
	t.endpoint = endpoint
	t.headers = headers
	t.endpointMu.Unlock()
	t.setConnected(true)
	t.recordConnectTime()
	return nil
}

func (t *httpCallbackPollingTransport) Disconnect() error {
	t.setConnected(false)
	return nil
}

func (t *httpCallbackPollingTransport) Close() error {
	t.setConnected(false)
	t.client.CloseIdleConnections()
	return nil
}

func (t *httpCallbackPollingTransport) Send(ctx context.Context, env Envelope) error {
	return t.SendBatch(ctx, []Envelope{env})
}

func (t *httpCallbackPollingTransport) SendBatch(ctx context.Context, envs []Envelope) error {
	body, err := json.Marshal(envs)
	if err != nil {
		return NewNetworkError("failed to encode request", err)
	}

	t.endpointMu.Lock()
	endpoint := t.endpoint
	headers := t.headers
	t.endpointMu.Unlock()

	callback := "bx" + uuid.NewString()[:8]

	form := url.Values{}
	form.Set("message", string(body))
	form.Set("jsonp", callback)

	u, err := url.Parse(endpoint)
	if err != nil {
		return NewNetworkError("invalid endpoint", err)
	}
	q := u.Query()
	for k, vs := range form {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return NewNetworkError("failed to build request", err)
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	t.recordSent(len(body))

	resp, err := t.client.Do(req)
	if err != nil {
		t.emitError(NewNetworkError("request failed", err))
		return NewNetworkError("request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.emitError(NewNetworkError("failed to read response", err))
		return NewNetworkError("failed to read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		httpErr := FromHTTP(resp.StatusCode, respBody)
		t.emitError(httpErr)
		return httpErr
	}

	t.recordReceived(len(respBody))

	unwrapped, err := unwrapJSONP(respBody, callback)
	if err != nil {
		t.emitError(err)
		return err
	}

	parsed, err := ExtractBayeuxMessages(unwrapped)
	if err != nil {
		t.emitError(err)
		return err
	}
	for _, m := range parsed {
		t.emitMessage(m)
	}
	return nil
}

// unwrapJSONP strips the "<callback>(" prefix and matching trailing ")"
// a JSONP response wraps its payload in, failing if the response is not
// shaped that way.
func unwrapJSONP(body []byte, callback string) ([]byte, error) {
	prefix := callback + "("
	s := string(body)
	start := -1
	for i := 0; i+len(prefix) <= len(s); i++ {
		if s[i:i+len(prefix)] == prefix {
			start = i + len(prefix)
			break
		}
	}
	if start < 0 || len(s) == 0 || s[len(s)-1] != ')' {
		return nil, NewNetworkError(fmt.Sprintf("response is not a valid JSONP wrapper for callback %q", callback), nil)
	}
	return []byte(s[start : len(s)-1]), nil
}
