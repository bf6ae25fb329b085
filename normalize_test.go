package bayeux

import "testing"

func TestExtractBayeuxMessageFromArray(t *testing.T) {
	raw := []byte(`[{"channel":"/meta/handshake","successful":true,"clientId":"abc"}]`)
	env, err := ExtractBayeuxMessage(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Channel != MetaHandshake || env.ClientID != "abc" {
		t.Errorf("unexpected envelope: %+v", env)
	}
}

func TestExtractBayeuxMessageFromObject(t *testing.T) {
	raw := []byte(`{"channel":"/chat/general","data":{"text":"hi"}}`)
	env, err := ExtractBayeuxMessage(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Channel != "/chat/general" {
		t.Errorf("Channel = %q", env.Channel)
	}
}

func TestExtractBayeuxMessageEmptyArray(t *testing.T) {
	if _, err := ExtractBayeuxMessage([]byte(`[]`)); err == nil {
		t.Error("expected an error for an empty response array")
	}
}

func TestExtractBayeuxMessageInvalidShape(t *testing.T) {
	if _, err := ExtractBayeuxMessage([]byte(`"just a string"`)); err == nil {
		t.Error("expected an error for a non-object, non-array response")
	}
	if _, err := ExtractBayeuxMessage([]byte(`not json`)); err == nil {
		t.Error("expected an error for malformed JSON")
	}
}

func TestExtractBayeuxMessagesPreservesOrder(t *testing.T) {
	raw := []byte(`[{"channel":"/a","id":"1"},{"channel":"/b","id":"2"},{"channel":"/c","id":"3"}]`)
	envs, err := ExtractBayeuxMessages(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(envs) != 3 {
		t.Fatalf("len(envs) = %d, want 3", len(envs))
	}
	wantChannels := []Channel{"/a", "/b", "/c"}
	for i, want := range wantChannels {
		if envs[i].Channel != want {
			t.Errorf("envs[%d].Channel = %q, want %q", i, envs[i].Channel, want)
		}
	}
}
