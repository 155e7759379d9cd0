package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func joinEvents(id SessionID, n int) []Event {
	events := make([]Event, 0, n)
	for i := 1; i <= n; i++ {
		events = append(events, &MemberJoinedEvent{
			SessionID:   id,
			Seat:        Seat(i),
			Participant: Participant{ID: ParticipantID(string(rune('a' + i - 1))), Name: string(rune('A' + i - 1))},
		})
	}
	return events
}

func TestProjectorBuild(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	events := []Event{
		&SessionCreatedEvent{SessionID: "s1", Room: "room", Creator: Participant{ID: "a"}, At: now},
	}
	events = append(events, joinEvents("s1", 5)...)
	events = append(events,
		&MemberLeftEvent{SessionID: "s1", Seat: 5},
		&GameStartedEvent{SessionID: "s1", At: now, Roles: map[Seat]Role{
			1: RoleMafia, 2: RoleDoctor, 3: RoleCop, 4: RoleCitizen,
		}},
		&MemberKilledEvent{SessionID: "s1", Seat: 3, By: RoleMafia, Round: 1},
	)

	state, err := NewProjector().Build(events)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	s, ok := state.ActiveSession("room")
	require.True(t, ok)
	assert.Equal(t, StatePlaying, s.State)
	assert.Len(t, s.Members, 4)
	assert.Equal(t, Seat(6), s.NextSeat(), "seats are never reused")
	assert.False(t, s.Member(3).Alive)
	assert.Equal(t, RoleCop, s.Member(3).Role)

	mafia, others := s.CountAlive()
	assert.Equal(t, 1, mafia)
	assert.Equal(t, 2, others)
}

func TestSessionCreatedConflict(t *testing.T) {
	state := NewGameState()
	require.NoError(t, (&SessionCreatedEvent{SessionID: "s1", Room: "r"}).Apply(state))

	err := (&SessionCreatedEvent{SessionID: "s2", Room: "r"}).Apply(state)
	assert.True(t, errors.Is(err, ErrConflict))
}

func TestAliveNeverReverses(t *testing.T) {
	state := NewGameState()
	events := []Event{&SessionCreatedEvent{SessionID: "s1", Room: "r"}}
	events = append(events, joinEvents("s1", 4)...)
	events = append(events,
		&GameStartedEvent{SessionID: "s1", Roles: map[Seat]Role{1: RoleMafia, 2: RoleDoctor, 3: RoleCitizen, 4: RoleCitizen}},
		&MemberKilledEvent{SessionID: "s1", Seat: 2},
	)
	require.NoError(t, NewProjector().Replay(state, events))

	err := (&MemberKilledEvent{SessionID: "s1", Seat: 2}).Apply(state)
	assert.True(t, errors.Is(err, ErrInvalidState))
	assert.False(t, state.Sessions["s1"].Member(2).Alive)
}

func TestRolesAreDealtOnce(t *testing.T) {
	state := NewGameState()
	events := []Event{&SessionCreatedEvent{SessionID: "s1", Room: "r"}}
	events = append(events, joinEvents("s1", 4)...)
	require.NoError(t, NewProjector().Replay(state, events))

	start := &GameStartedEvent{SessionID: "s1", Roles: map[Seat]Role{1: RoleMafia, 2: RoleDoctor, 3: RoleCitizen, 4: RoleCitizen}}
	require.NoError(t, start.Apply(state))

	err := start.Apply(state)
	assert.True(t, errors.Is(err, ErrInvalidState))
	assert.Equal(t, RoleMafia, state.Sessions["s1"].Member(1).Role)
}

func TestJoinOutsideRegistration(t *testing.T) {
	state := NewGameState()
	events := []Event{&SessionCreatedEvent{SessionID: "s1", Room: "r"}}
	events = append(events, joinEvents("s1", 4)...)
	events = append(events, &GameStartedEvent{SessionID: "s1", Roles: map[Seat]Role{1: RoleMafia, 2: RoleDoctor, 3: RoleCitizen, 4: RoleCitizen}})
	require.NoError(t, NewProjector().Replay(state, events))

	err := (&MemberJoinedEvent{SessionID: "s1", Seat: 5, Participant: Participant{ID: "z"}}).Apply(state)
	assert.True(t, errors.Is(err, ErrInvalidState))
}

func TestGameOverReleasesRoom(t *testing.T) {
	state := NewGameState()
	events := []Event{&SessionCreatedEvent{SessionID: "s1", Room: "r"}}
	events = append(events, joinEvents("s1", 4)...)
	events = append(events,
		&GameStartedEvent{SessionID: "s1", Roles: map[Seat]Role{1: RoleMafia, 2: RoleDoctor, 3: RoleCitizen, 4: RoleCitizen}},
		&MemberKilledEvent{SessionID: "s1", Seat: 1},
		&GameOverEvent{SessionID: "s1", Winner: FactionTown, Winners: []Seat{2, 3, 4}},
	)
	require.NoError(t, NewProjector().Replay(state, events))

	_, ok := state.ActiveSession("r")
	assert.False(t, ok)
	s := state.Sessions["s1"]
	assert.Equal(t, StateGameOver, s.State)
	assert.False(t, s.Member(1).Winner)
	assert.True(t, s.Member(4).Winner)

	require.NoError(t, (&SessionCreatedEvent{SessionID: "s2", Room: "r"}).Apply(state))
}

func TestForceFinishedIsTerminal(t *testing.T) {
	state := NewGameState()
	require.NoError(t, (&SessionCreatedEvent{SessionID: "s1", Room: "r"}).Apply(state))
	require.NoError(t, (&SessionForceFinishedEvent{SessionID: "s1"}).Apply(state))

	assert.True(t, state.Sessions["s1"].State.Terminal())
	err := (&SessionForceFinishedEvent{SessionID: "s1"}).Apply(state)
	assert.Error(t, err)
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "invalid_state", Kind(ErrNoSession))
	assert.Equal(t, "conflict", Kind(errors.Join(errors.New("x"), ErrConflict)))
	assert.Equal(t, "internal", Kind(errors.New("boom")))
}
