package session

import (
	"github.com/suderio/ultramafia/internal/engine"
)

// Command is a lifecycle request accepted by the Manager.
type Command string

const (
	CommandCreate Command = "create"
	CommandJoin   Command = "join"
	CommandLeave  Command = "leave"
	CommandStart  Command = "start"
	CommandStop   Command = "stop"
)

// EventKind names a lifecycle event emitted by the Manager.
type EventKind string

const (
	SessionCreated      EventKind = "session_created"
	MemberJoined        EventKind = "member_joined"
	MemberLeft          EventKind = "member_left"
	GameStarted         EventKind = "game_started"
	RegistrationStopped EventKind = "registration_stopped"
	GameOver            EventKind = "game_over"
	ForceFinished       EventKind = "force_finished"
)

// LifecycleEvent tells transports that a session changed. Session is a
// snapshot taken right after the change (right before it, for
// RegistrationStopped, since the session is gone afterwards).
type LifecycleEvent struct {
	Kind        EventKind
	Session     *engine.Session
	Participant engine.Participant
}

func (c Command) emits() EventKind {
	switch c {
	case CommandCreate:
		return SessionCreated
	case CommandJoin:
		return MemberJoined
	case CommandLeave:
		return MemberLeft
	case CommandStart:
		return GameStarted
	case CommandStop:
		return RegistrationStopped
	}
	return ""
}

type request struct {
	cmd   Command
	room  engine.RoomID
	who   engine.Participant
	reply chan reply
}

type reply struct {
	session *engine.Session
	err     error
}
