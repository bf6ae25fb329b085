// Package bayeuxtest is a fake Bayeux server usable as an http.RoundTripper,
// for exercising the HTTP long-polling and callback-polling transports
// without a real network or a real CometD server.
//
// Grounded on the teacher's v2/internal/gobayeuxtest/server.go, adapted
// from v2's gobayeux.Message/gobayeux.BayeuxClient types to this
// module's Envelope and the package rename from gobayeux to bayeux.
package bayeuxtest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"time"

	bayeux "github.com/bayeux-go/bayeux"
)

// Version is the Bayeux protocol version this fake server advertises.
const Version = "1.0"

var (
	chars    = []rune("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmonpqrstuvwxyz0123456789")
	numChars = len(chars)

	defaultAdvice = &bayeux.Advice{
		Reconnect: "retry",
		Timeout:   int(30 * time.Second / time.Millisecond),
		Interval:  int(time.Second / time.Millisecond),
	}
)

// Logger is the minimal logging capability the Server needs; *testing.T
// satisfies it.
type Logger interface {
	Log(args ...any)
	Logf(format string, args ...any)
}

// Server is an in-process Bayeux server: it implements http.RoundTripper
// so it can be passed directly to WithHTTPRoundTripper, and answers
// /meta/handshake, /meta/connect, /meta/subscribe, /meta/unsubscribe, and
// /meta/disconnect entirely in memory.
type Server struct {
	log Logger

	mu      sync.Mutex
	running bool
	subs    map[string][]bayeux.Channel
	pending map[string][]bayeux.Envelope

	handshakeError  bool
	subscribeErrors map[bayeux.Channel]string
}

// NewServer builds a Server. It must be Started before use.
func NewServer(logger Logger, opts ...ServerOpt) *Server {
	s := &Server{
		log:             logger,
		subs:            make(map[string][]bayeux.Channel),
		pending:         make(map[string][]bayeux.Envelope),
		subscribeErrors: make(map[bayeux.Channel]string),
	}
	for _, opt := range opts {
		opt.apply(s)
	}
	return s
}

// Start marks the server able to answer requests.
func (s *Server) Start(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
	return nil
}

// Stop marks the server unable to answer requests; RoundTrip fails until
// Start is called again.
func (s *Server) Stop(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	return nil
}

// Push queues data to be delivered on channel to every session currently
// subscribed to it, on the session's next /meta/connect.
func (s *Server) Push(channel bayeux.Channel, data json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushLocked(channel, data)
}

func (s *Server) pushLocked(channel bayeux.Channel, data json.RawMessage) {
	for clientID, subs := range s.subs {
		for _, sub := range subs {
			if sub == channel || (sub.IsValidPattern() && sub.Match(channel)) {
				s.pending[clientID] = append(s.pending[clientID], bayeux.Envelope{
					Channel:  channel,
					ID:       generateID(5),
					ClientID: clientID,
					Data:     data,
				})
				break
			}
		}
	}
}

// RoundTrip implements http.RoundTripper, decoding the request body as a
// JSON array of Envelopes and answering each in turn.
func (s *Server) RoundTrip(req *http.Request) (*http.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil, errors.New("bayeuxtest: server not running")
	}

	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, fmt.Errorf("bayeuxtest: issue reading body: %w", err)
	}
	defer func() {
		if err := req.Body.Close(); err != nil && s.log != nil {
			s.log.Logf("bayeuxtest: could not close request body: %+v", err)
		}
	}()

	var msgs []bayeux.Envelope
	if err := json.Unmarshal(body, &msgs); err != nil {
		return &http.Response{
			StatusCode: http.StatusUnprocessableEntity,
			Status:     http.StatusText(http.StatusUnprocessableEntity),
			Body:       io.NopCloser(bytes.NewReader(nil)),
		}, nil
	}

	replies := make([]bayeux.Envelope, 0, len(msgs))
	statusCode := http.StatusOK

	for _, msg := range msgs {
		reply, code := s.handle(msg)
		if code != http.StatusOK {
			statusCode = code
		}
		replies = append(replies, reply...)
	}

	out, err := json.Marshal(replies)
	if err != nil {
		return nil, fmt.Errorf("bayeuxtest: issue marshaling body: %w", err)
	}

	return &http.Response{
		StatusCode: statusCode,
		Status:     http.StatusText(statusCode),
		Body:       io.NopCloser(bytes.NewReader(out)),
		Header:     make(http.Header),
	}, nil
}

func (s *Server) handle(msg bayeux.Envelope) ([]bayeux.Envelope, int) {
	switch msg.Channel {
	case bayeux.MetaHandshake:
		if s.handshakeError {
			return []bayeux.Envelope{{
				Channel:    bayeux.MetaHandshake,
				ID:         msg.ID,
				Successful: false,
				Error:      "403::handshake denied",
			}}, http.StatusBadRequest
		}
		return []bayeux.Envelope{{
			Channel:                  bayeux.MetaHandshake,
			ID:                       msg.ID,
			Version:                  msg.Version,
			SupportedConnectionTypes: msg.SupportedConnectionTypes,
			ClientID:                 generateID(10),
			Successful:               true,
			AuthSuccessful:           true,
			Advice:                   defaultAdvice,
		}}, http.StatusOK

	case bayeux.MetaConnect:
		pushed := s.pending[msg.ClientID]
		delete(s.pending, msg.ClientID)
		replies := append([]bayeux.Envelope(nil), pushed...)
		replies = append(replies, bayeux.Envelope{
			Channel:    bayeux.MetaConnect,
			ID:         msg.ID,
			ClientID:   msg.ClientID,
			Successful: true,
			Advice:     defaultAdvice,
		})
		return replies, http.StatusOK

	case bayeux.MetaSubscribe:
		if _, ok := s.subs[msg.ClientID]; !ok {
			s.subs[msg.ClientID] = nil
		}
		reply := bayeux.Envelope{
			Channel:      bayeux.MetaSubscribe,
			ID:           msg.ID,
			ClientID:     msg.ClientID,
			Subscription: msg.Subscription,
			Successful:   true,
		}
		// Protocol-level failures (already subscribed, server-side
		// denial) ride inside a 200 OK response with Successful=false,
		// same as a real CometD server would answer them.
		if errMsg, ok := s.subscribeErrors[msg.Subscription]; ok {
			reply.Successful = false
			reply.Error = errMsg
		} else {
			for _, ch := range s.subs[msg.ClientID] {
				if ch == msg.Subscription {
					reply.Successful = false
					reply.Error = "403::already subscribed"
				}
			}
			if reply.Successful {
				s.subs[msg.ClientID] = append(s.subs[msg.ClientID], msg.Subscription)
			}
		}
		return []bayeux.Envelope{reply}, http.StatusOK

	case bayeux.MetaUnsubscribe:
		reply := bayeux.Envelope{
			Channel:      bayeux.MetaUnsubscribe,
			ID:           msg.ID,
			ClientID:     msg.ClientID,
			Subscription: msg.Subscription,
			Successful:   true,
		}
		found := false
		remaining := make([]bayeux.Channel, 0, len(s.subs[msg.ClientID]))
		for _, ch := range s.subs[msg.ClientID] {
			if ch == msg.Subscription {
				found = true
				continue
			}
			remaining = append(remaining, ch)
		}
		s.subs[msg.ClientID] = remaining
		if !found {
			reply.Successful = false
			reply.Error = "403::not subscribed"
		}
		return []bayeux.Envelope{reply}, http.StatusOK

	case bayeux.MetaDisconnect:
		delete(s.subs, msg.ClientID)
		delete(s.pending, msg.ClientID)
		return []bayeux.Envelope{{
			Channel:    bayeux.MetaDisconnect,
			ID:         msg.ID,
			ClientID:   msg.ClientID,
			Successful: true,
		}}, http.StatusOK

	default:
		// A publish to a concrete channel: acknowledge it and fan it out
		// to subscribers on their next /meta/connect.
		s.pushLocked(msg.Channel, msg.Data)
		return []bayeux.Envelope{{
			Channel:    msg.Channel,
			ID:         msg.ID,
			ClientID:   msg.ClientID,
			Successful: true,
		}}, http.StatusOK
	}
}

func generateID(length int) string {
	ret := make([]rune, length)
	for i := range ret {
		ret[i] = chars[rand.Intn(numChars)]
	}
	return string(ret)
}
