package engine

import "errors"

// Error kinds surfaced to transports. Wrap them with fmt.Errorf("%w: ...").
var (
	ErrConflict            = errors.New("conflict")
	ErrInvalidState        = errors.New("invalid state")
	ErrInsufficientPlayers = errors.New("insufficient players")
	ErrForbidden           = errors.New("forbidden")
	ErrNotInGame           = errors.New("not in game")
	ErrAlreadyJoined       = errors.New("already joined")
	ErrUnreachable         = errors.New("unreachable")
)

var (
	// ErrNoSession means the room has no non-terminal session.
	ErrNoSession = &kindError{kind: ErrInvalidState, msg: "no session in room"}
	// ErrNotPending means an answer arrived for a solicitation that is not open.
	ErrNotPending = errors.New("no pending request")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

var kinds = []struct {
	err  error
	name string
}{
	{ErrConflict, "conflict"},
	{ErrInvalidState, "invalid_state"},
	{ErrInsufficientPlayers, "insufficient_players"},
	{ErrForbidden, "forbidden"},
	{ErrNotInGame, "not_in_game"},
	{ErrAlreadyJoined, "already_joined"},
	{ErrUnreachable, "unreachable"},
	{ErrNotPending, "not_pending"},
}

// Kind names the error kind err belongs to, or "internal".
func Kind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "internal"
}
