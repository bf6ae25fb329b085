package bayeux

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const timestampFmt = "2006-01-02T15:04:05.00"

// Envelope is a single Bayeux JSON message, as sent or received over any
// transport. Every wire interaction in this module is in terms of
// Envelope values; the dynamic "data" and "ext" payloads are kept as
// json.RawMessage / map[string]any so callers decode them into whatever
// shape their application needs.
//
// See also: https://docs.cometd.org/current/reference/#_bayeux_message_fields
type Envelope struct {
	// Channel is the channel the message was sent on.
	Channel Channel `json:"channel"`
	// ID correlates a request with its response. Required for this
	// module's request/response correlation layer; optional on
	// server-initiated pushes.
	ID string `json:"id,omitempty"`
	// ClientID identifies the session.
	ClientID string `json:"clientId,omitempty"`
	// Data carries the payload for a publish or a server push.
	Data json.RawMessage `json:"data,omitempty"`
	// Version and MinimumVersion are used on /meta/handshake.
	Version        string `json:"version,omitempty"`
	MinimumVersion string `json:"minimumVersion,omitempty"`
	// SupportedConnectionTypes is sent/received on /meta/handshake.
	SupportedConnectionTypes []string `json:"supportedConnectionTypes,omitempty"`
	// ConnectionType is required on /meta/connect requests.
	ConnectionType string `json:"connectionType,omitempty"`
	// Subscription names the channel or pattern of a subscribe/unsubscribe.
	Subscription Channel `json:"subscription,omitempty"`
	// Timestamp is an optional ISO-8601-ish timestamp.
	Timestamp string `json:"timestamp,omitempty"`
	// Successful indicates the outcome of a request.
	Successful bool `json:"successful,omitempty"`
	// AuthSuccessful may be set on a handshake response.
	AuthSuccessful bool `json:"authSuccessful,omitempty"`
	// Error carries either a "code:params:message" string or is absent.
	Error string `json:"error,omitempty"`
	// Advice carries the server's reconnection hints.
	Advice *Advice `json:"advice,omitempty"`
	// Ext is the free-form extension bag.
	Ext map[string]interface{} `json:"ext,omitempty"`
}

// TimestampAsTime parses Timestamp into a time.Time.
func (e *Envelope) TimestampAsTime() (time.Time, error) {
	return time.Parse(timestampFmt, e.Timestamp)
}

// ParseError parses the Error field ("code:params:message") into a
// MessageError. It returns an error if Error is not in that shape.
func (e *Envelope) ParseError() (MessageError, error) {
	pieces := strings.SplitN(e.Error, ":", 3)
	if len(pieces) != 3 {
		return MessageError{}, fmt.Errorf("error message not parseable: %s", e.Error)
	}
	code, err := strconv.Atoi(pieces[0])
	if err != nil {
		return MessageError{}, err
	}
	var args []string
	if pieces[1] != "" {
		args = strings.Split(pieces[1], ",")
	}
	return MessageError{
		ErrorCode:    code,
		ErrorArgs:    args,
		ErrorMessage: pieces[2],
	}, nil
}

// GetExt returns the Ext map, instantiating it first if create is true
// and it is currently nil.
func (e *Envelope) GetExt(create bool) map[string]interface{} {
	if e.Ext == nil && create {
		e.Ext = make(map[string]interface{})
	}
	return e.Ext
}

// MessageError is the parsed form of Envelope.Error.
//
// See also: https://docs.cometd.org/current/reference/#_error
type MessageError struct {
	ErrorCode    int
	ErrorArgs    []string
	ErrorMessage string
}

// Advice conveys the server's preferred reconnection behavior.
//
// See also: https://docs.cometd.org/current/reference/#_bayeux_advice
type Advice struct {
	// Reconnect is one of "retry", "handshake", or "none".
	Reconnect string `json:"reconnect,omitempty"`
	// Timeout, in milliseconds, bounds how long the client should wait
	// for a response to a request before giving up.
	Timeout int `json:"timeout,omitempty"`
	// Interval, in milliseconds, is the minimum delay before the next
	// /meta/connect.
	Interval int `json:"interval,omitempty"`
	// MultipleClients indicates the server detected more than one client
	// instance sharing a session.
	MultipleClients bool `json:"multiple-clients,omitempty"`
	// Hosts lists alternate servers to try on a handshake re-advice.
	Hosts []string `json:"hosts,omitempty"`
}

// DefaultAdvice is the advice a session assumes before any server
// response has supplied one.
//
// See also: spec.md §3 "Advice".
func DefaultAdvice() Advice {
	return Advice{Reconnect: "retry", Interval: 0, Timeout: 60000}
}

// Merge overlays any non-zero Reconnect, Timeout, Interval and Hosts of
// other onto a, and always takes MultipleClients from other, per spec.md
// §4.3 "Advice application": "any received advice merges into the
// session advice."
func (a Advice) Merge(other *Advice) Advice {
	if other == nil {
		return a
	}
	merged := a
	if other.Reconnect != "" {
		merged.Reconnect = other.Reconnect
	}
	if other.Timeout != 0 {
		merged.Timeout = other.Timeout
	}
	if other.Interval != 0 {
		merged.Interval = other.Interval
	}
	if other.Hosts != nil {
		merged.Hosts = other.Hosts
	}
	merged.MultipleClients = other.MultipleClients
	return merged
}

// MustNotRetryOrHandshake reports whether the advice forbids both retry
// and re-handshake.
func (a Advice) MustNotRetryOrHandshake() bool {
	return a.Reconnect == "none"
}

// ShouldRetry reports whether the advice is to retry the current session.
func (a Advice) ShouldRetry() bool {
	return a.Reconnect == "retry"
}

// ShouldHandshake reports whether the advice demands a fresh handshake.
func (a Advice) ShouldHandshake() bool {
	return a.Reconnect == "handshake"
}

// TimeoutAsDuration returns Timeout as a time.Duration.
func (a Advice) TimeoutAsDuration() time.Duration {
	return time.Duration(a.Timeout) * time.Millisecond
}

// IntervalAsDuration returns Interval as a time.Duration.
func (a Advice) IntervalAsDuration() time.Duration {
	return time.Duration(a.Interval) * time.Millisecond
}

// Connection types advertised by this client.
//
// See also: spec.md §6 "Connection types advertised by the client".
const (
	ConnectionTypeLongPolling     string = "long-polling"
	ConnectionTypeCallbackPolling string = "callback-polling"
	ConnectionTypeWebsocket       string = "websocket"
)
