package engine

import (
	"sort"
	"time"
)

// Member is a participant's role-bearing presence within one session.
type Member struct {
	Seat        Seat        `json:"seat"`
	Participant Participant `json:"participant"`
	Role        Role        `json:"role"`
	Alive       bool        `json:"alive"`
	Winner      bool        `json:"winner"`
}

// LogEntry records one resolved action for later inspection.
type LogEntry struct {
	Round      int        `json:"round"`
	At         time.Time  `json:"at"`
	Actor      Role       `json:"actor"`
	Kind       ActionKind `json:"kind"`
	Target     Seat       `json:"target"`
	Successful bool       `json:"successful"`
}

// Session is one game bound to one room.
type Session struct {
	ID         SessionID     `json:"id"`
	Room       RoomID        `json:"room"`
	State      State         `json:"state"`
	CreatedBy  ParticipantID `json:"created_by"`
	Members    []*Member     `json:"members"`
	CreatedAt  time.Time     `json:"created_at"`
	StartedAt  time.Time     `json:"started_at,omitempty"`
	FinishedAt time.Time     `json:"finished_at,omitempty"`
	Winner     Faction       `json:"winner,omitempty"`
	Log        []LogEntry    `json:"log,omitempty"`
	nextSeat   Seat
}

// Member looks a member up by seat.
func (s *Session) Member(seat Seat) *Member {
	for _, m := range s.Members {
		if m.Seat == seat {
			return m
		}
	}
	return nil
}

// NextSeat is the seat the next joining member receives.
func (s *Session) NextSeat() Seat {
	return s.nextSeat + 1
}

// SeatsOf lists the seats held by a participant, in join order.
func (s *Session) SeatsOf(id ParticipantID) []Seat {
	var seats []Seat
	for _, m := range s.Members {
		if m.Participant.ID == id {
			seats = append(seats, m.Seat)
		}
	}
	return seats
}

// IsMember reports whether the participant holds at least one seat.
func (s *Session) IsMember(id ParticipantID) bool {
	return len(s.SeatsOf(id)) > 0
}

// Alive returns living members in seat order.
func (s *Session) Alive() []*Member {
	var alive []*Member
	for _, m := range s.Members {
		if m.Alive {
			alive = append(alive, m)
		}
	}
	return alive
}

// AliveWithRole returns living members holding role.
func (s *Session) AliveWithRole(role Role) []*Member {
	var out []*Member
	for _, m := range s.Alive() {
		if m.Role == role {
			out = append(out, m)
		}
	}
	return out
}

// CountAlive returns the living mafia and the living others.
func (s *Session) CountAlive() (mafia, others int) {
	for _, m := range s.Alive() {
		if m.Role.IsMafia() {
			mafia++
		} else {
			others++
		}
	}
	return mafia, others
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Members = make([]*Member, len(s.Members))
	for i, m := range s.Members {
		mm := *m
		c.Members[i] = &mm
	}
	c.Log = append([]LogEntry(nil), s.Log...)
	return &c
}

// GameState is the projection of every session known to the engine.
type GameState struct {
	Sessions map[SessionID]*Session `json:"sessions"`
	// Active maps a room to its non-terminal session.
	Active map[RoomID]SessionID `json:"active"`
}

// NewGameState creates an empty clean slate
func NewGameState() *GameState {
	return &GameState{
		Sessions: make(map[SessionID]*Session),
		Active:   make(map[RoomID]SessionID),
	}
}

// ActiveSession returns the non-terminal session bound to room.
func (g *GameState) ActiveSession(room RoomID) (*Session, bool) {
	id, ok := g.Active[room]
	if !ok {
		return nil, false
	}
	s, ok := g.Sessions[id]
	return s, ok
}

// InState lists sessions currently in state, oldest first.
func (g *GameState) InState(state State) []*Session {
	var out []*Session
	for _, s := range g.Sessions {
		if s.State == state {
			out = append(out, s)
		}
	}
	sortSessions(out)
	return out
}

// All lists every session, oldest first.
func (g *GameState) All() []*Session {
	out := make([]*Session, 0, len(g.Sessions))
	for _, s := range g.Sessions {
		out = append(out, s)
	}
	sortSessions(out)
	return out
}

func sortSessions(s []*Session) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].CreatedAt.Equal(s[j].CreatedAt) {
			return s[i].ID < s[j].ID
		}
		return s[i].CreatedAt.Before(s[j].CreatedAt)
	})
}

func (g *GameState) session(id SessionID) (*Session, error) {
	s, ok := g.Sessions[id]
	if !ok {
		return nil, &kindError{kind: ErrInvalidState, msg: "unknown session " + string(id)}
	}
	return s, nil
}

// Scratch returns a copy holding the active sessions and session id, so an
// event can be tried without touching g.
func (g *GameState) Scratch(id SessionID) *GameState {
	out := NewGameState()
	for room, sid := range g.Active {
		out.Active[room] = sid
		if s, ok := g.Sessions[sid]; ok {
			out.Sessions[sid] = s.Clone()
		}
	}
	if s, ok := g.Sessions[id]; ok {
		out.Sessions[id] = s.Clone()
	}
	return out
}
