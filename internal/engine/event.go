package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

type EventType string

const (
	EventSessionCreated       EventType = "SessionCreated"
	EventMemberJoined         EventType = "MemberJoined"
	EventMemberLeft           EventType = "MemberLeft"
	EventRegistrationStopped  EventType = "RegistrationStopped"
	EventGameStarted          EventType = "GameStarted"
	EventMemberKilled         EventType = "MemberKilled"
	EventActionResolved       EventType = "ActionResolved"
	EventGameOver             EventType = "GameOver"
	EventSessionForceFinished EventType = "SessionForceFinished"
)

// Event is the building block of the Event Sourced engine.
type Event interface {
	Type() EventType
	Apply(state *GameState) error
	Message() string
}

// SessionEvent is implemented by every event scoped to a single session.
type SessionEvent interface {
	Event
	Session() SessionID
}

// NewEvent returns an empty event of type t, ready to be unmarshalled.
func NewEvent(t EventType) (Event, error) {
	switch t {
	case EventSessionCreated:
		return &SessionCreatedEvent{}, nil
	case EventMemberJoined:
		return &MemberJoinedEvent{}, nil
	case EventMemberLeft:
		return &MemberLeftEvent{}, nil
	case EventRegistrationStopped:
		return &RegistrationStoppedEvent{}, nil
	case EventGameStarted:
		return &GameStartedEvent{}, nil
	case EventMemberKilled:
		return &MemberKilledEvent{}, nil
	case EventActionResolved:
		return &ActionResolvedEvent{}, nil
	case EventGameOver:
		return &GameOverEvent{}, nil
	case EventSessionForceFinished:
		return &SessionForceFinishedEvent{}, nil
	}
	return nil, fmt.Errorf("unknown event type in log: %s", t)
}

// SessionCreatedEvent opens registration in a room.
type SessionCreatedEvent struct {
	SessionID SessionID   `json:"session_id"`
	Room      RoomID      `json:"room"`
	Creator   Participant `json:"creator"`
	At        time.Time   `json:"at"`
}

func (e *SessionCreatedEvent) Type() EventType    { return EventSessionCreated }
func (e *SessionCreatedEvent) Session() SessionID { return e.SessionID }
func (e *SessionCreatedEvent) Apply(state *GameState) error {
	if _, ok := state.ActiveSession(e.Room); ok {
		return fmt.Errorf("%w: room %s already has a session", ErrConflict, e.Room)
	}
	if _, ok := state.Sessions[e.SessionID]; ok {
		return fmt.Errorf("%w: session %s already exists", ErrConflict, e.SessionID)
	}
	state.Sessions[e.SessionID] = &Session{
		ID:        e.SessionID,
		Room:      e.Room,
		State:     StateRegistration,
		CreatedBy: e.Creator.ID,
		CreatedAt: e.At,
	}
	state.Active[e.Room] = e.SessionID
	return nil
}
func (e *SessionCreatedEvent) Message() string {
	return fmt.Sprintf("%s opened registration.", e.Creator)
}

// MemberJoinedEvent seats a participant during registration.
type MemberJoinedEvent struct {
	SessionID   SessionID   `json:"session_id"`
	Seat        Seat        `json:"seat"`
	Participant Participant `json:"participant"`
}

func (e *MemberJoinedEvent) Type() EventType    { return EventMemberJoined }
func (e *MemberJoinedEvent) Session() SessionID { return e.SessionID }
func (e *MemberJoinedEvent) Apply(state *GameState) error {
	s, err := state.session(e.SessionID)
	if err != nil {
		return err
	}
	if s.State != StateRegistration {
		return fmt.Errorf("%w: cannot join a session in %s", ErrInvalidState, s.State)
	}
	if s.Member(e.Seat) != nil {
		return fmt.Errorf("%w: seat %d is taken", ErrConflict, e.Seat)
	}
	s.Members = append(s.Members, &Member{
		Seat:        e.Seat,
		Participant: e.Participant,
		Alive:       true,
	})
	if e.Seat > s.nextSeat {
		s.nextSeat = e.Seat
	}
	return nil
}
func (e *MemberJoinedEvent) Message() string {
	return fmt.Sprintf("%s joined (seat %d).", e.Participant, e.Seat)
}

// MemberLeftEvent frees a seat during registration.
type MemberLeftEvent struct {
	SessionID SessionID `json:"session_id"`
	Seat      Seat      `json:"seat"`
}

func (e *MemberLeftEvent) Type() EventType    { return EventMemberLeft }
func (e *MemberLeftEvent) Session() SessionID { return e.SessionID }
func (e *MemberLeftEvent) Apply(state *GameState) error {
	s, err := state.session(e.SessionID)
	if err != nil {
		return err
	}
	if s.State != StateRegistration {
		return fmt.Errorf("%w: cannot leave a session in %s", ErrInvalidState, s.State)
	}
	for i, m := range s.Members {
		if m.Seat == e.Seat {
			s.Members = append(s.Members[:i], s.Members[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: seat %d", ErrNotInGame, e.Seat)
}
func (e *MemberLeftEvent) Message() string {
	return fmt.Sprintf("Seat %d left.", e.Seat)
}

// RegistrationStoppedEvent discards a session that never started.
type RegistrationStoppedEvent struct {
	SessionID SessionID     `json:"session_id"`
	By        ParticipantID `json:"by"`
}

func (e *RegistrationStoppedEvent) Type() EventType    { return EventRegistrationStopped }
func (e *RegistrationStoppedEvent) Session() SessionID { return e.SessionID }
func (e *RegistrationStoppedEvent) Apply(state *GameState) error {
	s, err := state.session(e.SessionID)
	if err != nil {
		return err
	}
	if s.State == StatePlaying {
		return fmt.Errorf("%w: game is in progress", ErrInvalidState)
	}
	if state.Active[s.Room] == s.ID {
		delete(state.Active, s.Room)
	}
	delete(state.Sessions, s.ID)
	return nil
}
func (e *RegistrationStoppedEvent) Message() string { return "Registration stopped." }

// GameStartedEvent deals roles and moves the session to Playing in one step.
type GameStartedEvent struct {
	SessionID SessionID     `json:"session_id"`
	Roles     map[Seat]Role `json:"roles"`
	At        time.Time     `json:"at"`
}

func (e *GameStartedEvent) Type() EventType    { return EventGameStarted }
func (e *GameStartedEvent) Session() SessionID { return e.SessionID }
func (e *GameStartedEvent) Apply(state *GameState) error {
	s, err := state.session(e.SessionID)
	if err != nil {
		return err
	}
	if s.State != StateRegistration {
		return fmt.Errorf("%w: cannot start a session in %s", ErrInvalidState, s.State)
	}
	if len(e.Roles) != len(s.Members) {
		return fmt.Errorf("%w: %d roles for %d members", ErrInvalidState, len(e.Roles), len(s.Members))
	}
	for _, m := range s.Members {
		role, ok := e.Roles[m.Seat]
		if !ok || role == RoleUnassigned {
			return fmt.Errorf("%w: no role for seat %d", ErrInvalidState, m.Seat)
		}
		if m.Role != RoleUnassigned {
			return fmt.Errorf("%w: seat %d already has a role", ErrInvalidState, m.Seat)
		}
	}
	for _, m := range s.Members {
		m.Role = e.Roles[m.Seat]
	}
	s.State = StatePlaying
	s.StartedAt = e.At
	return nil
}
func (e *GameStartedEvent) Message() string {
	mafia := 0
	for _, r := range e.Roles {
		if r.IsMafia() {
			mafia++
		}
	}
	return fmt.Sprintf("Game started with %d players, %d mafia.", len(e.Roles), mafia)
}

// MemberKilledEvent flips a member's alive flag. It never reverses.
type MemberKilledEvent struct {
	SessionID SessionID `json:"session_id"`
	Seat      Seat      `json:"seat"`
	By        Role      `json:"by"`
	Round     int       `json:"round"`
}

func (e *MemberKilledEvent) Type() EventType    { return EventMemberKilled }
func (e *MemberKilledEvent) Session() SessionID { return e.SessionID }
func (e *MemberKilledEvent) Apply(state *GameState) error {
	s, err := state.session(e.SessionID)
	if err != nil {
		return err
	}
	if s.State != StatePlaying {
		return fmt.Errorf("%w: cannot kill in %s", ErrInvalidState, s.State)
	}
	m := s.Member(e.Seat)
	if m == nil {
		return fmt.Errorf("%w: seat %d", ErrNotInGame, e.Seat)
	}
	if !m.Alive {
		return fmt.Errorf("%w: seat %d is already dead", ErrInvalidState, e.Seat)
	}
	m.Alive = false
	return nil
}
func (e *MemberKilledEvent) Message() string {
	return fmt.Sprintf("Seat %d was killed by the %s (round %d).", e.Seat, e.By, e.Round)
}

// ActionResolvedEvent appends an entry to the session's action log.
type ActionResolvedEvent struct {
	SessionID SessionID `json:"session_id"`
	Entry     LogEntry  `json:"entry"`
}

func (e *ActionResolvedEvent) Type() EventType    { return EventActionResolved }
func (e *ActionResolvedEvent) Session() SessionID { return e.SessionID }
func (e *ActionResolvedEvent) Apply(state *GameState) error {
	s, err := state.session(e.SessionID)
	if err != nil {
		return err
	}
	s.Log = append(s.Log, e.Entry)
	return nil
}
func (e *ActionResolvedEvent) Message() string {
	return fmt.Sprintf("Round %d: %s %s seat %d.", e.Entry.Round, e.Entry.Actor, e.Entry.Kind, e.Entry.Target)
}

// GameOverEvent marks winners and closes the session.
type GameOverEvent struct {
	SessionID SessionID `json:"session_id"`
	Winner    Faction   `json:"winner"`
	Winners   []Seat    `json:"winners"`
	At        time.Time `json:"at"`
}

func (e *GameOverEvent) Type() EventType    { return EventGameOver }
func (e *GameOverEvent) Session() SessionID { return e.SessionID }
func (e *GameOverEvent) Apply(state *GameState) error {
	s, err := state.session(e.SessionID)
	if err != nil {
		return err
	}
	if s.State != StatePlaying {
		return fmt.Errorf("%w: cannot finish a session in %s", ErrInvalidState, s.State)
	}
	for _, seat := range e.Winners {
		m := s.Member(seat)
		if m == nil {
			return fmt.Errorf("%w: seat %d", ErrNotInGame, seat)
		}
		m.Winner = true
	}
	s.State = StateGameOver
	s.Winner = e.Winner
	s.FinishedAt = e.At
	if state.Active[s.Room] == s.ID {
		delete(state.Active, s.Room)
	}
	return nil
}
func (e *GameOverEvent) Message() string {
	seats := make([]string, 0, len(e.Winners))
	sorted := append([]Seat(nil), e.Winners...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for _, s := range sorted {
		seats = append(seats, fmt.Sprintf("%d", s))
	}
	return fmt.Sprintf("Game over: %s wins (seats %s).", e.Winner, strings.Join(seats, ", "))
}

// SessionForceFinishedEvent discards a session that cannot be resumed.
type SessionForceFinishedEvent struct {
	SessionID SessionID `json:"session_id"`
	At        time.Time `json:"at"`
}

func (e *SessionForceFinishedEvent) Type() EventType    { return EventSessionForceFinished }
func (e *SessionForceFinishedEvent) Session() SessionID { return e.SessionID }
func (e *SessionForceFinishedEvent) Apply(state *GameState) error {
	s, err := state.session(e.SessionID)
	if err != nil {
		return err
	}
	if s.State.Terminal() {
		return fmt.Errorf("%w: session already %s", ErrInvalidState, s.State)
	}
	s.State = StateForceFinished
	s.FinishedAt = e.At
	if state.Active[s.Room] == s.ID {
		delete(state.Active, s.Room)
	}
	return nil
}
func (e *SessionForceFinishedEvent) Message() string { return "Session force finished." }
