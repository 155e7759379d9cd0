// Package engine holds the mafia domain model and its event-sourced state.
// Sessions, members and roles are mutated only by applying Events, so the
// same projection can be rebuilt from any Store after a restart.
package engine

import (
	"fmt"
	"strings"
)

// SessionID identifies one game instance.
type SessionID string

// RoomID is the transport's reference to the shared room (a group chat, a lobby).
type RoomID string

// ParticipantID is the transport's reference to a person.
type ParticipantID string

// Seat numbers a member within a session. Seats start at 1 and are never reused.
type Seat int

// Participant is the external identity of a person taking part in games.
type Participant struct {
	ID   ParticipantID `json:"id"`
	Name string        `json:"name"`
}

func (p Participant) String() string {
	if p.Name != "" {
		return p.Name
	}
	return string(p.ID)
}

// Role is the hidden role dealt to a member at game start.
type Role int

const (
	RoleUnassigned Role = iota
	RoleCitizen
	RoleDoctor
	RoleCop
	RoleMafia
)

var roleNames = map[Role]string{
	RoleUnassigned: "unassigned",
	RoleCitizen:    "citizen",
	RoleDoctor:     "doctor",
	RoleCop:        "cop",
	RoleMafia:      "mafia",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// IsMafia reports whether the role belongs to the adversarial faction.
func (r Role) IsMafia() bool { return r == RoleMafia }

// MarshalText keeps roles readable in the event log.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText parses the names produced by MarshalText.
func (r *Role) UnmarshalText(text []byte) error {
	role, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// ParseRole resolves a role name, case-insensitively.
func ParseRole(name string) (Role, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for role, n := range roleNames {
		if n == name {
			return role, nil
		}
	}
	return RoleUnassigned, fmt.Errorf("unknown role %q", name)
}

// State is the lifecycle state of a session.
type State string

const (
	StateRegistration  State = "registration"
	StatePlaying       State = "playing"
	StateGameOver      State = "game_over"
	StateForceFinished State = "force_finished"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateGameOver || s == StateForceFinished
}

// Faction is the side that won a finished game.
type Faction string

const (
	FactionNone  Faction = ""
	FactionMafia Faction = "mafia"
	FactionTown  Faction = "town"
)
