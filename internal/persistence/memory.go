package persistence

import (
	"sync"

	"github.com/suderio/ultramafia/internal/engine"
)

// MemoryStore keeps events in process. Events are round-tripped through
// JSON so the same serialization faults surface as with the file store.
type MemoryStore struct {
	mu    sync.Mutex
	lines [][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Append(evt engine.Event) error {
	line, err := Wrap(evt)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.lines = append(m.lines, line)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Load() ([]engine.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	events := make([]engine.Event, 0, len(m.lines))
	for _, line := range m.lines {
		evt, err := Unwrap(line)
		if err != nil {
			return nil, err
		}
		events = append(events, evt)
	}
	return events, nil
}

func (m *MemoryStore) Close() error { return nil }
