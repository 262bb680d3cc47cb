package adapter

import "encoding/json"

// encodeResult/decodeResult marshal a MemoryEntry's Result map to/from the
// JSON bytes every backend in this package stores it as.
func encodeResult(result map[string]any) []byte {
	b, err := json.Marshal(result)
	if err != nil {
		return []byte("{}")
	}
	return b
}

func decodeResult(raw []byte) map[string]any {
	var out map[string]any
	if len(raw) == 0 {
		return map[string]any{}
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{}
	}
	return out
}
