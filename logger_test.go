package bayeux

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
)

func TestNullLoggerIsSafeToCallWithoutConfiguration(t *testing.T) {
	l := newNullLogger()
	l.Debug("anything")
	l.Info("anything", "k", "v")
	l.WithError(errors.New("boom")).Warn("anything")
	l.WithField("k", "v").Error("anything")
}

func TestLogrusLoggerForwardsToUnderlyingLogger(t *testing.T) {
	base, hook := logrustest.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	l := newLogrusLogger(base)

	l.Info("handshake succeeded", "clientId", "abc")

	entries := hook.AllEntries()
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	if entries[0].Level != logrus.InfoLevel {
		t.Errorf("Level = %v, want InfoLevel", entries[0].Level)
	}
}

func TestLogrusLoggerWithFieldAndError(t *testing.T) {
	base, hook := logrustest.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	l := newLogrusLogger(base)

	l.WithField("channel", "/chat/general").WithError(errors.New("boom")).Warn("publish failed")

	entries := hook.AllEntries()
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	if entries[0].Data["channel"] != "/chat/general" {
		t.Errorf("channel field = %v", entries[0].Data["channel"])
	}
	if entries[0].Data["error"] == nil {
		t.Error("expected an error field")
	}
}

func TestNewLogrusLoggerDefaultsWhenNil(t *testing.T) {
	l := newLogrusLogger(nil)
	if l == nil {
		t.Fatal("expected a non-nil default logger")
	}
	l.Debug("should not panic")
}
