package persistence

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/suderio/ultramafia/internal/engine"
)

// EventWrapper facilitates serialization of polymorphic events
type EventWrapper struct {
	Type  engine.EventType `json:"type"`
	Event json.RawMessage  `json:"data"`
}

// Wrap marshals evt behind its type discriminator.
func Wrap(evt engine.Event) ([]byte, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}
	return json.Marshal(EventWrapper{Type: evt.Type(), Event: data})
}

// Unwrap decodes a line produced by Wrap.
func Unwrap(line []byte) (engine.Event, error) {
	var wrapper EventWrapper
	if err := json.Unmarshal(line, &wrapper); err != nil {
		return nil, fmt.Errorf("failed to decode wrapper: %w", err)
	}
	return engine.DecodeEvent(wrapper.Type, wrapper.Event)
}

// Store handles append-only storing of event log.
type Store struct {
	mu   sync.Mutex
	file *os.File
}

// NewStore opens or creates the file at path for appending lines
func NewStore(path string) (*Store, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open store file: %w", err)
	}
	return &Store{file: file}, nil
}

// Append marshals evt to one jsonl line and syncs it to disk.
func (s *Store) Append(evt engine.Event) error {
	line, err := Wrap(evt)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.file.Write(append(line, '\n')); err != nil {
		return err
	}
	return s.file.Sync()
}

// Load replays all jsonl strings and unpacks them to Event slice.
func (s *Store) Load() ([]engine.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.file.Seek(0, 0); err != nil {
		return nil, err
	}

	var events []engine.Event
	scanner := bufio.NewScanner(s.file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		evt, err := Unwrap(scanner.Bytes())
		if err != nil {
			return nil, err
		}
		events = append(events, evt)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// Close handles safe shutdown.
func (s *Store) Close() error {
	return s.file.Close()
}
