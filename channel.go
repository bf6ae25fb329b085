package bayeux

import (
	"regexp"
	"strings"
)

// segmentAlphabet is the set of characters CometD allows in a single
// channel segment.
//
// See also: https://docs.cometd.org/current/reference/#_concepts_channels
const segmentAlphabet = `A-Za-z0-9\-_!~()$@`

var (
	channelNameRe    = regexp.MustCompile(`^(/[` + segmentAlphabet + `]+)+$`)
	channelSegmentRe = regexp.MustCompile(`^[` + segmentAlphabet + `]+$`)
)

// Channel is a Bayeux channel name or channel pattern, a slash-rooted
// path such as "/foo/bar", "/meta/connect" or "/chat/**".
//
// See also: https://docs.cometd.org/current/reference/#_concepts_channels
type Channel string

const (
	// MetaHandshake is the Channel for the first message a new client sends.
	MetaHandshake Channel = "/meta/handshake"
	// MetaConnect is the Channel used for connect messages after a successful
	// handshake.
	MetaConnect Channel = "/meta/connect"
	// MetaDisconnect is the Channel used for disconnect messages.
	MetaDisconnect Channel = "/meta/disconnect"
	// MetaSubscribe is the Channel used by a client to subscribe to channels.
	MetaSubscribe Channel = "/meta/subscribe"
	// MetaUnsubscribe is the Channel used by a client to unsubscribe from
	// channels.
	MetaUnsubscribe Channel = "/meta/unsubscribe"
	emptyChannel    Channel = ""
)

// ChannelType distinguishes the three channel kinds the protocol defines:
// meta channels used for session control, service channels reserved for
// server-addressed RPC-like messages, and ordinary broadcast channels.
type ChannelType string

const (
	// MetaChannel represents the `/meta/` channel type
	MetaChannel ChannelType = "meta"
	// ServiceChannel represents the `/service/` channel type
	ServiceChannel ChannelType = "service"
	// BroadcastChannel represents all other channels
	BroadcastChannel ChannelType = "broadcast"
)

const (
	metaPrefix    string = "/meta/"
	servicePrefix string = "/service/"
)

// NewChannel validates s and returns it as a Channel. It fails with a
// KindProtocol *BayeuxError if s is neither a valid channel name nor a
// valid channel pattern.
func NewChannel(s string) (Channel, error) {
	c := Channel(s)
	if !c.IsValid() {
		return emptyChannel, newChannelError(s)
	}
	return c, nil
}

// Type reports which of the three channel kinds c is.
func (c Channel) Type() ChannelType {
	s := string(c)
	switch {
	case strings.HasPrefix(s, metaPrefix):
		return MetaChannel
	case strings.HasPrefix(s, servicePrefix):
		return ServiceChannel
	default:
		return BroadcastChannel
	}
}

// IsMeta reports whether c is a /meta/ channel.
func (c Channel) IsMeta() bool {
	return c.Type() == MetaChannel
}

// IsService reports whether c is a /service/ channel.
func (c Channel) IsService() bool {
	return c.Type() == ServiceChannel
}

// IsPattern reports whether c contains a wildcard segment.
func (c Channel) IsPattern() bool {
	return strings.Contains(string(c), "*")
}

// IsWildcard reports whether c ends in the multi-segment wildcard /**.
func (c Channel) IsWildcard() bool {
	return strings.HasSuffix(string(c), "/**")
}

// Segments returns the non-empty, slash-separated parts of c.
func (c Channel) Segments() []string {
	trimmed := strings.Trim(string(c), "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// IsValidName reports whether c is a syntactically valid, concrete channel
// name: it begins with /, has no empty segments, no trailing slash unless
// c is the root "/", and every segment matches the CometD alphabet.
//
// See also: spec.md §4.1 "Channel-name validity".
func (c Channel) IsValidName() bool {
	return isValidChannelName(string(c))
}

// IsValidPattern reports whether c is a syntactically valid channel
// pattern: it begins with /, every segment is either a valid name segment
// or exactly "*" or "**", and it contains at least one wildcard.
//
// See also: spec.md §4.1 "Channel-pattern validity".
func (c Channel) IsValidPattern() bool {
	return isValidChannelPattern(string(c))
}

// IsValid reports whether c is either a valid channel name or a valid
// channel pattern.
func (c Channel) IsValid() bool {
	return c.IsValidName() || c.IsValidPattern()
}

// Match reports whether other matches c when c is used as a subscription
// pattern, per the ** / * wildcard translation described in spec.md §4.1.
func (c Channel) Match(other Channel) bool {
	return ChannelMatches(string(other), string(c))
}

// MatchString is Match for a raw string.
func (c Channel) MatchString(other string) bool {
	return ChannelMatches(other, string(c))
}

func isValidChannelName(s string) bool {
	if s == "/" {
		return true
	}
	return channelNameRe.MatchString(s)
}

func isValidChannelPattern(s string) bool {
	if !strings.HasPrefix(s, "/") || s == "/" {
		return false
	}
	segments := strings.Split(strings.TrimPrefix(s, "/"), "/")
	hasWildcard := false
	for _, seg := range segments {
		switch seg {
		case "*", "**":
			hasWildcard = true
		case "":
			return false
		default:
			if !channelSegmentRe.MatchString(seg) {
				return false
			}
		}
	}
	return hasWildcard
}

// ChannelMatches reports whether channel matches pattern. pattern is
// translated to an anchored regular expression by replacing ** with .*
// and * with [^/]*. Both inputs are first passed through Normalize; if
// the normalized channel is not a valid channel name, or the normalized
// pattern is not a valid channel pattern, ChannelMatches returns false
// without raising an error.
//
// See also: spec.md §4.1, §8 (testable property 2).
func ChannelMatches(channel, pattern string) bool {
	channel = Normalize(channel)
	pattern = Normalize(pattern)
	if !isValidChannelName(channel) || !isValidChannelPattern(pattern) {
		return false
	}
	re, err := patternRegexp(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(channel)
}

func patternRegexp(pattern string) (*regexp.Regexp, error) {
	segments := strings.Split(strings.TrimPrefix(pattern, "/"), "/")
	parts := make([]string, len(segments))
	for i, seg := range segments {
		switch seg {
		case "*":
			parts[i] = "[^/]*"
		case "**":
			parts[i] = ".*"
		default:
			parts[i] = regexp.QuoteMeta(seg)
		}
	}
	return regexp.Compile("^/" + strings.Join(parts, "/") + "$")
}
