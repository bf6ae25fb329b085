package bayeux

import (
	"fmt"
	"strings"
)

// Normalize prepends a leading "/" if missing and strips any trailing "/"
// except for the root channel "/" itself.
//
// See also: spec.md §4.1 "Namespace utilities".
func Normalize(channel string) string {
	if channel == "" {
		return "/"
	}
	if !strings.HasPrefix(channel, "/") {
		channel = "/" + channel
	}
	if channel != "/" {
		channel = strings.TrimRight(channel, "/")
		if channel == "" {
			channel = "/"
		}
	}
	return channel
}

// Namespace returns the first segment of channel, i.e. the namespace it
// belongs to, as a channel ("/chat/rooms/1" -> "/chat").
func Namespace(channel string) string {
	channel = Normalize(channel)
	segments := strings.Split(strings.TrimPrefix(channel, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return "/"
	}
	return "/" + segments[0]
}

// IsInNamespace reports whether channel falls under the namespace ns,
// i.e. ns is a prefix of channel on a segment boundary.
func IsInNamespace(channel, ns string) bool {
	channel = Normalize(channel)
	ns = Normalize(ns)
	if ns == "/" {
		return true
	}
	return channel == ns || strings.HasPrefix(channel, ns+"/")
}

// RelativePath computes the portion of channel beneath ns. It fails if
// channel does not fall within ns.
func RelativePath(channel, ns string) (string, error) {
	channel = Normalize(channel)
	ns = Normalize(ns)
	if !IsInNamespace(channel, ns) {
		return "", fmt.Errorf("channel %q is not within namespace %q", channel, ns)
	}
	if ns == "/" {
		return strings.TrimPrefix(channel, "/"), nil
	}
	rel := strings.TrimPrefix(channel, ns)
	return strings.TrimPrefix(rel, "/"), nil
}

// ParentChain enumerates the chain of ancestor channels of channel, from
// its immediate parent up to and including the root "/", in that order.
// ParentChain("/a/b/c") -> ["/a/b", "/a", "/"].
func ParentChain(channel string) []string {
	channel = Normalize(channel)
	if channel == "/" {
		return nil
	}
	segments := strings.Split(strings.TrimPrefix(channel, "/"), "/")
	chain := make([]string, 0, len(segments))
	for i := len(segments) - 1; i > 0; i-- {
		chain = append(chain, "/"+strings.Join(segments[:i], "/"))
	}
	chain = append(chain, "/")
	return chain
}
