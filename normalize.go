package bayeux

import "encoding/json"

// ExtractBayeuxMessage normalizes a Bayeux server response, which may
// arrive as a single JSON object, a JSON array of objects, or a raw JSON
// string encoding either, into the single Envelope a caller expects.
// Responses with more than one element return the first; callers that
// need every element should decode the raw frame themselves instead.
//
// Fails with a KindNetwork *BayeuxError on: an empty array, a non-object
// first element, a non-object/non-array decoded value, or a JSON parse
// failure.
//
// See also: spec.md §4.3, §8 scenario 4.
func ExtractBayeuxMessage(response any) (Envelope, error) {
	switch v := response.(type) {
	case string:
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err != nil {
			return Envelope{}, NewNetworkError("Failed to parse response", err)
		}
		return ExtractBayeuxMessage(decoded)
	case []byte:
		return ExtractBayeuxMessage(string(v))
	case []Envelope:
		if len(v) == 0 {
			return Envelope{}, NewNetworkError("Empty response array", nil)
		}
		return v[0], nil
	case Envelope:
		return v, nil
	case []any:
		if len(v) == 0 {
			return Envelope{}, NewNetworkError("Empty response array", nil)
		}
		return envelopeFromAny(v[0])
	case map[string]any:
		return envelopeFromAny(v)
	default:
		return Envelope{}, NewNetworkError("response is neither a Bayeux object nor an array of objects", nil)
	}
}

func envelopeFromAny(v any) (Envelope, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return Envelope{}, NewNetworkError("first element of response array is not a Bayeux object", nil)
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		return Envelope{}, NewNetworkError("Failed to parse response", err)
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, NewNetworkError("Failed to parse response", err)
	}
	return env, nil
}

// ExtractBayeuxMessages normalizes a Bayeux frame into every Envelope it
// carries, in source order: a single object becomes a one-element slice,
// an array becomes its elements in order, a raw JSON string is decoded
// first. Used where a frame boundary must preserve every pushed message
// instead of only the first (poll responses, WebSocket frames).
//
// See also: spec.md §5 "Ordering": "array elements are delivered in
// source order before the next frame begins."
func ExtractBayeuxMessages(response any) ([]Envelope, error) {
	switch v := response.(type) {
	case string:
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err != nil {
			return nil, NewNetworkError("Failed to parse response", err)
		}
		return ExtractBayeuxMessages(decoded)
	case []byte:
		return ExtractBayeuxMessages(string(v))
	case []Envelope:
		return v, nil
	case Envelope:
		return []Envelope{v}, nil
	case []any:
		envs := make([]Envelope, 0, len(v))
		for _, item := range v {
			env, err := envelopeFromAny(item)
			if err != nil {
				return nil, err
			}
			envs = append(envs, env)
		}
		return envs, nil
	case map[string]any:
		env, err := envelopeFromAny(v)
		if err != nil {
			return nil, err
		}
		return []Envelope{env}, nil
	default:
		return nil, NewNetworkError("response is neither a Bayeux object nor an array of objects", nil)
	}
}
