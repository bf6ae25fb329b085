package bayeux

import "net/http"

// Option configures a Client (or, by extension, the Dispatcher it
// constructs). Grounded on the teacher's functional-options pattern
// (v2's WithHTTPTransport/WithSlogLogger).
type Option func(*options)

type options struct {
	logger              Logger
	extension           FayeExtension
	transports          []Transport
	defaultTransport    string
	httpRoundTripper    http.RoundTripper
	handshakeVersion    string
	heartbeatInterval   int // milliseconds
	pollingInterval     int // milliseconds
	reconnectMaxAttempt int
}

func newOptions() *options {
	return &options{
		logger:              newNullLogger(),
		handshakeVersion:    "1.0",
		heartbeatInterval:   30000,
		pollingInterval:     0,
		reconnectMaxAttempt: 5,
	}
}

// WithLogger configures the Logger used for every component the Client
// constructs.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithExtension installs the single FayeExtension slot.
func WithExtension(ext FayeExtension) Option {
	return func(o *options) {
		o.extension = ext
	}
}

// WithTransport registers an additional Transport the Client/Dispatcher
// can select via SetTransport, replacing a built-in transport of the same
// Name(). The built-in HTTP long-polling transport stays the default
// unless WithDefaultTransport names another.
func WithTransport(t Transport) Option {
	return func(o *options) {
		o.transports = append(o.transports, t)
	}
}

// WithDefaultTransport selects, by name, which registered transport a
// fresh session connects with first.
func WithDefaultTransport(name string) Option {
	return func(o *options) {
		o.defaultTransport = name
	}
}

// WithHTTPRoundTripper overrides the http.RoundTripper the built-in HTTP
// long-polling and callback-polling transports use, grounded on the
// teacher's WithHTTPTransport.
func WithHTTPRoundTripper(rt http.RoundTripper) Option {
	return func(o *options) {
		o.httpRoundTripper = rt
	}
}

// WithHandshakeVersion overrides the Bayeux protocol version advertised
// on handshake (default "1.0").
func WithHandshakeVersion(version string) Option {
	return func(o *options) {
		o.handshakeVersion = version
	}
}

// WithHeartbeatInterval overrides the WebSocket transport's heartbeat
// period (default 30000ms).
func WithHeartbeatInterval(ms int) Option {
	return func(o *options) {
		o.heartbeatInterval = ms
	}
}

// WithReconnectMaxAttempts overrides the WebSocket transport's maximum
// consecutive reconnect attempts (default 5).
func WithReconnectMaxAttempts(n int) Option {
	return func(o *options) {
		o.reconnectMaxAttempt = n
	}
}
