package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// EncodeDetail serializes a detail payload as a JSON document.
// json.RawMessage and []byte values that are already valid JSON are stored
// as-is.
func EncodeDetail(payload any) (json.RawMessage, error) {
	switch v := payload.(type) {
	case nil:
		return nil, fmt.Errorf("detail payload is nil")
	case json.RawMessage:
		if !json.Valid(v) {
			return nil, fmt.Errorf("detail payload is not valid JSON")
		}
		return append(json.RawMessage(nil), v...), nil
	case []byte:
		if !json.Valid(v) {
			return nil, fmt.Errorf("detail payload is not valid JSON")
		}
		return append(json.RawMessage(nil), v...), nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode detail: %w", err)
	}
	return data, nil
}

// NewVentureID returns a collision-resistant venture identifier.
func NewVentureID() string {
	return uuid.NewString()
}

func nullableRaw(raw []byte) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	return json.RawMessage(raw)
}
