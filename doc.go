// Package bayeux implements a client for the Bayeux publish/subscribe
// protocol (https://docs.cometd.org/current/reference/#_bayeux), the
// protocol underlying CometD and similar long-polling/WebSocket message
// buses.
//
// Create a client with NewClient, Connect it, and Subscribe to whatever
// channels you need:
//
//	client, err := bayeux.NewClient("https://example.com/cometd")
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := client.Connect(ctx, nil); err != nil {
//		log.Fatal(err)
//	}
//	sub, err := client.Subscribe(ctx, "/chat/general", func(data json.RawMessage) {
//		fmt.Println(string(data))
//	})
//
// Subscriptions accept channel patterns as well as concrete channel
// names:
//
//	client.Subscribe(ctx, "/chat/**", onAnyChatMessage)
//
// A custom HTTP transport, extension, or logger can all be supplied as
// Options:
//
//	client, err := bayeux.NewClient(addr,
//		bayeux.WithHTTPRoundTripper(myTransport),
//		bayeux.WithExtension(bayeux.NewDefaultExtension(api, token)),
//		bayeux.WithLogger(myLogger),
//	)
//
// Extensions implement FayeExtension's Outgoing/Incoming pair to
// transform every envelope crossing the wire in either direction:
//
//	type exampleExtension struct{}
//	func (exampleExtension) Outgoing(env *bayeux.Envelope) {
//		ext := env.GetExt(true)
//		ext["example"] = true
//	}
//	func (exampleExtension) Incoming(env *bayeux.Envelope) {}
//
// Package bayeux also exposes the lower-level Dispatcher and Transport
// types client.go is built on, for callers that need finer control over
// the session lifecycle than Client's fan-out model provides.
package bayeux
