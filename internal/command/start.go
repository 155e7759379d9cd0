package command

import (
	"fmt"
	"time"

	"github.com/suderio/ultramafia/internal/engine"
)

// ExecuteStart deals roles for the room's session and moves it to Playing.
func ExecuteStart(state *engine.GameState, room engine.RoomID, minPlayers int, rng engine.Random, at time.Time) ([]engine.Event, error) {
	s, err := ResolveSession(state, room)
	if err != nil {
		return nil, err
	}
	if s.State != engine.StateRegistration {
		return nil, fmt.Errorf("%w: the game already started", engine.ErrInvalidState)
	}
	if minPlayers < engine.MinimumPlayers {
		minPlayers = engine.MinimumPlayers
	}
	if len(s.Members) < minPlayers {
		return nil, fmt.Errorf("%w: %d joined, %d needed", engine.ErrInsufficientPlayers, len(s.Members), minPlayers)
	}

	seats := make([]engine.Seat, 0, len(s.Members))
	for _, m := range s.Members {
		seats = append(seats, m.Seat)
	}
	return []engine.Event{&engine.GameStartedEvent{
		SessionID: s.ID,
		Roles:     engine.DealRoles(seats, minPlayers, rng),
		At:        at,
	}}, nil
}

// ExecuteRecover force-finishes every session caught in Playing. Their
// solicitation state died with the previous process.
func ExecuteRecover(state *engine.GameState, at time.Time) []engine.Event {
	var events []engine.Event
	for _, s := range state.InState(engine.StatePlaying) {
		events = append(events, &engine.SessionForceFinishedEvent{SessionID: s.ID, At: at})
	}
	return events
}
