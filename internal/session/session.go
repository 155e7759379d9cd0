// Package session runs games: the Manager serializes lifecycle commands and
// supervises one Game loop per playing session.
package session

import (
	"fmt"
	"sync"

	"github.com/suderio/ultramafia/internal/engine"
)

// Store defines the dependency required by the Manager to persist events
type Store interface {
	Append(evt engine.Event) error
	Load() ([]engine.Event, error)
	Close() error
}

// journal is the only writer of the event log and owns the projected GameState.
type journal struct {
	mu    sync.RWMutex
	store Store
	state *engine.GameState
}

func newJournal(store Store) (*journal, error) {
	j := &journal{store: store}
	if err := j.RebuildState(); err != nil {
		return nil, err
	}
	return j, nil
}

// RebuildState reads the entire event log from the store and projects the latest GameState
func (j *journal) RebuildState() error {
	events, err := j.store.Load()
	if err != nil {
		return fmt.Errorf("failed to load event log: %w", err)
	}

	state, err := engine.NewProjector().Build(events)
	if err != nil {
		return fmt.Errorf("failed to project game state: %w", err)
	}

	j.mu.Lock()
	j.state = state
	j.mu.Unlock()
	return nil
}

// Execute builds events from the current state and commits them while
// holding the lock, so validation and commit cannot interleave with other writers.
func (j *journal) Execute(build func(*engine.GameState) ([]engine.Event, error)) ([]engine.Event, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	events, err := build(j.state)
	if err != nil {
		return nil, err
	}
	for _, evt := range events {
		if err := j.applyAndAppend(evt); err != nil {
			return nil, err
		}
	}
	return events, nil
}

// ApplyAndAppend commits a single event.
func (j *journal) ApplyAndAppend(evt engine.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.applyAndAppend(evt)
}

// applyAndAppend tries evt on a scratch copy first so that an invalid event
// never reaches the log, then persists it before projecting it.
func (j *journal) applyAndAppend(evt engine.Event) error {
	var id engine.SessionID
	if se, ok := evt.(engine.SessionEvent); ok {
		id = se.Session()
	}
	if err := evt.Apply(j.state.Scratch(id)); err != nil {
		return err
	}

	if err := j.store.Append(evt); err != nil {
		return fmt.Errorf("failed to persist event log: %w", err)
	}

	if err := evt.Apply(j.state); err != nil {
		return fmt.Errorf("failed to apply event to memory state: %w", err)
	}
	return nil
}

// Snapshot returns a copy of session id.
func (j *journal) Snapshot(id engine.SessionID) (*engine.Session, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	s, ok := j.state.Sessions[id]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// Active returns a copy of the non-terminal session bound to room.
func (j *journal) Active(room engine.RoomID) (*engine.Session, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	s, ok := j.state.ActiveSession(room)
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// All returns copies of every known session, oldest first.
func (j *journal) All() []*engine.Session {
	j.mu.RLock()
	defer j.mu.RUnlock()
	all := j.state.All()
	out := make([]*engine.Session, len(all))
	for i, s := range all {
		out[i] = s.Clone()
	}
	return out
}
