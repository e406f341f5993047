// ABOUTME: Dual-shape JSON decoding for backend responses
// ABOUTME: Attempts the {status,data} envelope first, then the bare payload

package remote

import (
	"encoding/json"
	"fmt"
)

// envelope is the wrapper some backend responses use around the real
// payload. Both keys must be present for the enveloped interpretation
// to apply; otherwise the body is decoded as the bare shape.
type envelope struct {
	Status *int            `json:"status"`
	Data   json.RawMessage `json:"data"`
}

// decodeEntity decodes a response that is either {status, data: T} or a
// bare T. Callers must not assume which shape the server uses. Once the
// envelope matches, its data payload is authoritative: a mismatched
// payload is ErrDecode, never silently reinterpreted as the bare shape.
func decodeEntity[T any](body []byte) (*T, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Status != nil && len(env.Data) > 0 {
		var v T
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, fmt.Errorf("%w: envelope data: %v", ErrDecode, err)
		}
		return &v, nil
	}

	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return &v, nil
}

// decodeList decodes a response that is either {status, data: [T]}, a
// bare [T], or a single T, which is wrapped into a one-element slice. A
// matched envelope whose data holds a single entity gets the same
// wrapping; any other data payload is ErrDecode.
func decodeList[T any](body []byte) ([]T, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Status != nil && len(env.Data) > 0 {
		return wrapList[T](env.Data, "envelope data")
	}
	return wrapList[T](body, "body")
}

func wrapList[T any](payload []byte, what string) ([]T, error) {
	var list []T
	if err := json.Unmarshal(payload, &list); err == nil {
		return list, nil
	}
	var single T
	if err := json.Unmarshal(payload, &single); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, what, err)
	}
	return []T{single}, nil
}
