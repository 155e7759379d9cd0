// Package command turns lifecycle requests into the events that record them.
// Handlers validate against the projected state and never mutate it.
package command

import (
	"github.com/suderio/ultramafia/internal/engine"
)

// ResolveSession returns the non-terminal session bound to room.
func ResolveSession(state *engine.GameState, room engine.RoomID) (*engine.Session, error) {
	s, ok := state.ActiveSession(room)
	if !ok {
		return nil, engine.ErrNoSession
	}
	return s, nil
}
