package qbo

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// queryEnvelope is the outer shape of a query API response. The collection
// for each entity sits under QueryResponse keyed by entity name; its value
// may be an array, a single object, or absent entirely. Everything past this
// file only ever sees a normalized slice.
type queryEnvelope struct {
	QueryResponse map[string]json.RawMessage `json:"QueryResponse"`
}

// collection decodes the named entity collection from a query response body,
// normalizing the array / single-object / absent shapes into one slice.
func collection[T any](body []byte, entity string) ([]T, error) {
	var env queryEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to decode query response: %w", err)
	}

	raw, ok := env.QueryResponse[entity]
	if !ok || len(raw) == 0 {
		return nil, nil
	}

	switch firstByte(raw) {
	case '[':
		var list []T
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("failed to decode %s collection: %w", entity, err)
		}
		return list, nil
	case '{':
		var single T
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, fmt.Errorf("failed to decode %s record: %w", entity, err)
		}
		return []T{single}, nil
	default:
		// null or an unexpected scalar: treat as an empty collection.
		return nil, nil
	}
}

func firstByte(raw json.RawMessage) byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}
