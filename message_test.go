package bayeux

import (
	"reflect"
	"testing"
)

func TestAdviceMerge(t *testing.T) {
	base := DefaultAdvice()

	merged := base.Merge(&Advice{Reconnect: "handshake"})
	if merged.Reconnect != "handshake" {
		t.Errorf("Reconnect = %q, want %q", merged.Reconnect, "handshake")
	}
	if merged.Timeout != base.Timeout {
		t.Errorf("Timeout changed unexpectedly: %d", merged.Timeout)
	}

	merged = base.Merge(nil)
	if !reflect.DeepEqual(merged, base) {
		t.Error("Merge(nil) should be a no-op")
	}

	merged = base.Merge(&Advice{Interval: 5000, Hosts: []string{"b.example.com"}})
	if merged.Interval != 5000 {
		t.Errorf("Interval = %d, want 5000", merged.Interval)
	}
	if len(merged.Hosts) != 1 || merged.Hosts[0] != "b.example.com" {
		t.Errorf("Hosts = %v", merged.Hosts)
	}
}

func TestAdviceHelpers(t *testing.T) {
	none := Advice{Reconnect: "none"}
	if !none.MustNotRetryOrHandshake() {
		t.Error("advice with reconnect=none should forbid retry/handshake")
	}

	retry := Advice{Reconnect: "retry", Interval: 1000, Timeout: 2000}
	if !retry.ShouldRetry() {
		t.Error("advice with reconnect=retry should ShouldRetry")
	}
	if retry.IntervalAsDuration().Milliseconds() != 1000 {
		t.Errorf("IntervalAsDuration = %v", retry.IntervalAsDuration())
	}
	if retry.TimeoutAsDuration().Milliseconds() != 2000 {
		t.Errorf("TimeoutAsDuration = %v", retry.TimeoutAsDuration())
	}

	handshake := Advice{Reconnect: "handshake"}
	if !handshake.ShouldHandshake() {
		t.Error("advice with reconnect=handshake should ShouldHandshake")
	}
}

func TestEnvelopeParseError(t *testing.T) {
	env := Envelope{Error: "403:unknown:subscription invalid"}
	parsed, err := env.ParseError()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.ErrorCode != 403 {
		t.Errorf("ErrorCode = %d, want 403", parsed.ErrorCode)
	}
	if parsed.ErrorMessage != "subscription invalid" {
		t.Errorf("ErrorMessage = %q", parsed.ErrorMessage)
	}

	if _, err := (&Envelope{Error: "not-parseable"}).ParseError(); err == nil {
		t.Error("expected an error for a malformed error field")
	}
}

func TestEnvelopeGetExt(t *testing.T) {
	var env Envelope
	if ext := env.GetExt(false); ext != nil {
		t.Errorf("GetExt(false) on a fresh Envelope = %v, want nil", ext)
	}
	ext := env.GetExt(true)
	if ext == nil {
		t.Fatal("GetExt(true) should allocate a map")
	}
	ext["foo"] = "bar"
	if env.Ext["foo"] != "bar" {
		t.Error("GetExt(true) should return the Envelope's own Ext map")
	}
}
