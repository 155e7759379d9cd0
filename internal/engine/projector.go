package engine

import "fmt"

// Projector folds an event log into the GameState of every session.
type Projector struct{}

// NewProjector creates a standard projector.
func NewProjector() *Projector {
	return &Projector{}
}

// Build replays events from an empty state.
func (p *Projector) Build(events []Event) (*GameState, error) {
	state := NewGameState()
	if err := p.Replay(state, events); err != nil {
		return nil, err
	}
	return state, nil
}

// Replay applies events on top of an existing state, stopping at the first invalid one.
func (p *Projector) Replay(state *GameState, events []Event) error {
	for i, evt := range events {
		if err := evt.Apply(state); err != nil {
			return fmt.Errorf("event %d (%s): %w", i, evt.Type(), err)
		}
	}
	return nil
}
