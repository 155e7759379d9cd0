package command

import (
	"fmt"
	"time"

	"github.com/suderio/ultramafia/internal/engine"
)

// ExecuteCreate opens registration in room.
func ExecuteCreate(state *engine.GameState, room engine.RoomID, creator engine.Participant, id engine.SessionID, at time.Time) ([]engine.Event, error) {
	if s, ok := state.ActiveSession(room); ok {
		return nil, fmt.Errorf("%w: room %s already has a session in %s", engine.ErrConflict, room, s.State)
	}
	return []engine.Event{&engine.SessionCreatedEvent{
		SessionID: id,
		Room:      room,
		Creator:   creator,
		At:        at,
	}}, nil
}

// ExecuteJoin seats p in the room's session. In permissive mode the same
// participant may take several seats.
func ExecuteJoin(state *engine.GameState, room engine.RoomID, p engine.Participant, permissive bool) ([]engine.Event, error) {
	s, err := ResolveSession(state, room)
	if err != nil {
		return nil, err
	}
	if s.State != engine.StateRegistration {
		return nil, fmt.Errorf("%w: registration is closed", engine.ErrInvalidState)
	}
	if !permissive && s.IsMember(p.ID) {
		return nil, fmt.Errorf("%w: %s", engine.ErrAlreadyJoined, p)
	}
	return []engine.Event{&engine.MemberJoinedEvent{
		SessionID:   s.ID,
		Seat:        s.NextSeat(),
		Participant: p,
	}}, nil
}

// ExecuteLeave frees the most recent seat held by p.
func ExecuteLeave(state *engine.GameState, room engine.RoomID, p engine.ParticipantID) ([]engine.Event, error) {
	s, err := ResolveSession(state, room)
	if err != nil {
		return nil, err
	}
	if s.State != engine.StateRegistration {
		return nil, fmt.Errorf("%w: cannot leave a game in progress", engine.ErrInvalidState)
	}
	seats := s.SeatsOf(p)
	if len(seats) == 0 {
		return nil, fmt.Errorf("%w: %s", engine.ErrNotInGame, p)
	}
	return []engine.Event{&engine.MemberLeftEvent{
		SessionID: s.ID,
		Seat:      seats[len(seats)-1],
	}}, nil
}

// ExecuteStop discards a session that is not being played. Only its creator may do so.
func ExecuteStop(state *engine.GameState, room engine.RoomID, requester engine.ParticipantID) ([]engine.Event, error) {
	s, err := ResolveSession(state, room)
	if err != nil {
		return nil, err
	}
	if s.State == engine.StatePlaying {
		return nil, fmt.Errorf("%w: the game is in progress", engine.ErrInvalidState)
	}
	if s.CreatedBy != requester {
		return nil, fmt.Errorf("%w: only the creator can stop registration", engine.ErrForbidden)
	}
	return []engine.Event{&engine.RegistrationStoppedEvent{SessionID: s.ID, By: requester}}, nil
}
