package bayeux

import "testing"

func TestUnwrapJSONP(t *testing.T) {
	body := []byte(`bx12345678([{"channel":"/meta/handshake","successful":true}])`)
	unwrapped, err := unwrapJSONP(body, "bx12345678")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(unwrapped) != `[{"channel":"/meta/handshake","successful":true}]` {
		t.Errorf("unwrapped = %s", unwrapped)
	}
}

func TestUnwrapJSONPRejectsMismatchedCallback(t *testing.T) {
	body := []byte(`otherCallback([])`)
	if _, err := unwrapJSONP(body, "bx12345678"); err == nil {
		t.Error("expected an error for a callback name that doesn't match")
	}
}

func TestUnwrapJSONPRejectsUnwrappedBody(t *testing.T) {
	if _, err := unwrapJSONP([]byte(`[]`), "bx12345678"); err == nil {
		t.Error("expected an error for a body with no JSONP wrapper at all")
	}
}
