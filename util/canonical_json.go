package util

import (
	"encoding/json"
)

// CanonicalJSON serializes value with lexicographically ordered object keys.
// Marshaling through an intermediate map makes encoding/json sort the keys,
// so two structurally equal values always produce byte-identical output.
func CanonicalJSON(value any) ([]byte, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var intermediate any
	if err := json.Unmarshal(raw, &intermediate); err != nil {
		return nil, err
	}
	return json.Marshal(intermediate)
}
