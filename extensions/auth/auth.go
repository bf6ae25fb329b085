// Package auth provides static bearer-token authentication for a
// Bayeux client, at either the HTTP transport layer (an
// http.RoundTripper wrapper) or the Bayeux envelope layer (a
// bayeux.FayeExtension).
//
// Grounded on the teacher's extensions/salesforce
// StaticTokenAuthenticator, generalized from a Salesforce-only
// RoundTripper (it only activated for *.salesforce.com hosts) to a
// host-agnostic one, since this module's client.go targets arbitrary
// CometD servers rather than Salesforce's Streaming API specifically.
package auth

import (
	"errors"
	"net/http"

	bayeux "github.com/bayeux-go/bayeux"
)

// StaticTokenTransport wraps an http.RoundTripper, attaching a bearer
// token to every outgoing request's Authorization header.
type StaticTokenTransport struct {
	// Token is the bearer credential to attach.
	Token string
	// Transport is the underlying http.RoundTripper; if nil,
	// http.DefaultTransport is used.
	Transport http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *StaticTokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Token == "" {
		return nil, errors.New("auth: no token provided to StaticTokenTransport")
	}

	next := t.Transport
	if next == nil {
		next = http.DefaultTransport
	}

	cloned := cloneRequestWithHeaders(req)
	cloned.Header.Set("Authorization", "Bearer "+t.Token)
	return next.RoundTrip(cloned)
}

func cloneRequestWithHeaders(req *http.Request) *http.Request {
	cloned := new(http.Request)
	*cloned = *req
	cloned.Header = make(http.Header, len(req.Header))
	for header, values := range req.Header {
		cloned.Header[header] = append([]string(nil), values...)
	}
	return cloned
}

// Extension is the bayeux.FayeExtension equivalent of
// StaticTokenTransport: instead of an HTTP header, it attaches api/token
// fields to every outgoing envelope's ext bag, for servers that expect
// credentials in the Bayeux message rather than at the transport layer.
//
// This is the same shape as bayeux.DefaultExtension; it lives here too,
// under its own name, so callers who import extensions/auth for a
// RoundTripper find the matching envelope-level extension in the same
// package.
type Extension struct {
	API   string
	Token string
}

// NewExtension builds an Extension with the given api/token.
func NewExtension(api, token string) *Extension {
	return &Extension{API: api, Token: token}
}

// Outgoing implements bayeux.FayeExtension.
func (e *Extension) Outgoing(env *bayeux.Envelope) {
	ext := env.GetExt(true)
	ext["api"] = e.API
	ext["token"] = e.Token
}

// Incoming implements bayeux.FayeExtension as a no-op.
func (e *Extension) Incoming(env *bayeux.Envelope) {}
