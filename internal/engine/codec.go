package engine

import (
	"encoding/json"
	"fmt"
)

// DecodeEvent builds the concrete event for t from its JSON payload.
func DecodeEvent(t EventType, data []byte) (Event, error) {
	evt, err := NewEvent(t)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, evt); err != nil {
		return nil, fmt.Errorf("failed to parse %s event: %w", t, err)
	}
	return evt, nil
}
