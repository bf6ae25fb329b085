package bayeux

import (
	"fmt"
)

// ErrorKind classifies a BayeuxError per the taxonomy in spec.md §7.
type ErrorKind string

const (
	KindNetwork        ErrorKind = "network"
	KindProtocol       ErrorKind = "protocol"
	KindAuthentication ErrorKind = "authentication"
	KindSubscription   ErrorKind = "subscription"
	KindPublication    ErrorKind = "publication"
	KindHTTP           ErrorKind = "http"
	KindTimeout        ErrorKind = "timeout"
)

// Error codes per spec.md §7.
const (
	CodeNetwork        = 0
	CodeProtocol       = 400
	CodeAuthentication = 401
	CodeSubscription   = 403
	CodePublication    = 403
	CodeTimeout        = 408
)

// BayeuxError is the single error type this module raises for any
// protocol-level or transport-level failure. Code and Kind classify the
// failure; StatusCode and Body are populated only for KindHTTP.
type BayeuxError struct {
	Code       int
	Kind       ErrorKind
	Message    string
	Params     []string
	Args       []string
	StatusCode int
	Body       []byte
	Err        error
}

func (e *BayeuxError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %d (%s): %s", e.Kind, e.Code, e.Message, e.Body)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %d %s: %s", e.Kind, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %d %s", e.Kind, e.Code, e.Message)
}

// Unwrap exposes the underlying error, if any, for errors.Is/As.
func (e *BayeuxError) Unwrap() error {
	return e.Err
}

// NewNetworkError builds a KindNetwork BayeuxError, optionally wrapping
// cause.
func NewNetworkError(message string, cause error) *BayeuxError {
	return &BayeuxError{Code: CodeNetwork, Kind: KindNetwork, Message: message, Err: cause}
}

// NewProtocolError builds a KindProtocol BayeuxError.
func NewProtocolError(message string, params ...string) *BayeuxError {
	return &BayeuxError{Code: CodeProtocol, Kind: KindProtocol, Message: message, Params: params}
}

// NewTimeoutError builds a KindTimeout BayeuxError for a message id that
// never received a matching response within transport.timeout.
//
// See also: spec.md §8 scenario 5.
func NewTimeoutError(id string) *BayeuxError {
	return &BayeuxError{
		Code:    CodeTimeout,
		Kind:    KindTimeout,
		Message: fmt.Sprintf("Message timeout: %s", id),
		Params:  []string{id},
	}
}

// NewSubscriptionError builds a KindSubscription BayeuxError for a failed
// /meta/subscribe.
func NewSubscriptionError(channel, serverMessage string) *BayeuxError {
	return &BayeuxError{
		Code:    CodeSubscription,
		Kind:    KindSubscription,
		Message: fmt.Sprintf("subscription to %q rejected: %s", channel, serverMessage),
		Params:  []string{channel},
	}
}

// NewPublicationError builds a KindPublication BayeuxError for a failed
// publish.
func NewPublicationError(channel, serverMessage string) *BayeuxError {
	return &BayeuxError{
		Code:    CodePublication,
		Kind:    KindPublication,
		Message: fmt.Sprintf("publish to %q rejected: %s", channel, serverMessage),
		Params:  []string{channel},
	}
}

// NewAuthenticationError builds a KindAuthentication BayeuxError.
func NewAuthenticationError(message string) *BayeuxError {
	return &BayeuxError{Code: CodeAuthentication, Kind: KindAuthentication, Message: message}
}

// FromHTTP builds a KindHTTP BayeuxError for a non-200 HTTP response.
//
// See also: spec.md §6 "Transports".
func FromHTTP(statusCode int, body []byte) *BayeuxError {
	return &BayeuxError{
		Code:       statusCode,
		Kind:       KindHTTP,
		Message:    fmt.Sprintf("server responded with HTTP %d", statusCode),
		StatusCode: statusCode,
		Body:       body,
	}
}

func newChannelError(s string) *BayeuxError {
	return &BayeuxError{
		Code:    CodeProtocol,
		Kind:    KindProtocol,
		Message: fmt.Sprintf("channel %q is neither a valid channel name nor a valid channel pattern", s),
		Params:  []string{s},
	}
}

// Sentinel errors for conditions that are identities rather than
// parameterized failures, grounded on the teacher's errors.go.
const (
	ErrClientNotConnected   = sentinel("client not connected to server")
	ErrMissingClientID      = sentinel("missing clientID value")
	ErrMissingConnectionType = sentinel("missing connectionType value")
	ErrNoTransportSelected  = sentinel("no transport selected or supported by the server")
	ErrAlreadySubscribed    = sentinel("channel already subscribed")
	ErrNotSubscribed        = sentinel("channel has no active subscription")
	ErrExtensionNil         = sentinel("extension must not be nil")
	ErrPublicationTerminal  = sentinel("publication is already in a terminal state")
	ErrUnknownTransportName = sentinel("unknown transport name")

	// ErrNoSupportedConnectionTypes is returned when a handshake request
	// is built without any supported connection types.
	ErrNoSupportedConnectionTypes = sentinel("no supported connection types provided")
	// ErrNoVersion is returned when a handshake request is built without
	// a protocol version.
	ErrNoVersion = sentinel("no version specified")
)

type sentinel string

func (s sentinel) Error() string {
	return string(s)
}
