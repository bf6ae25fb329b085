package bayeuxtest

import "github.com/bayeux-go/bayeux"

// ServerOpt configures a Server at construction time.
//
// Grounded on the teacher's v2/internal/gobayeuxtest/server_opts.go.
type ServerOpt interface {
	apply(s *Server)
}

type serverOptFn func(s *Server)

func (opt serverOptFn) apply(s *Server) { opt(s) }

// WithHandshakeError makes every /meta/handshake request fail with a 400.
func WithHandshakeError(handshakeError bool) ServerOpt {
	return serverOptFn(func(s *Server) {
		s.handshakeError = handshakeError
	})
}

// WithSubscribeError makes /meta/subscribe requests for channel fail
// with the given server error message.
func WithSubscribeError(channel bayeux.Channel, message string) ServerOpt {
	return serverOptFn(func(s *Server) {
		s.subscribeErrors[channel] = message
	})
}
