// Package solicit is the boundary between a running game and the people playing it.
// The game asks through a Solicitor and talks through a Notifier; transports
// render prompts through a Prompter and hand answers back to the Broker.
package solicit

import (
	"context"
	"fmt"
	"strconv"

	"github.com/suderio/ultramafia/internal/engine"
)

// ErrInvalidChoice rejects an answer naming an option that was not offered.
var ErrInvalidChoice = fmt.Errorf("%w: choice was not offered", engine.ErrForbidden)

// ActionRequest asks one member to pick a night action.
type ActionRequest struct {
	Session    engine.SessionID
	Room       engine.RoomID
	Round      int
	Actor      engine.Member
	Candidates []engine.Member
	Allowed    []engine.ActionKind
}

// Offers reports whether action is among the choices of the request.
func (r ActionRequest) Offers(action engine.Action) bool {
	if action.IsNone() {
		return true
	}
	allowed := false
	for _, k := range r.Allowed {
		if k == action.Kind() {
			allowed = true
			break
		}
	}
	if !allowed {
		return false
	}
	target, _ := action.Target()
	for _, c := range r.Candidates {
		if c.Seat == target {
			return true
		}
	}
	return false
}

// PollKind separates the nomination vote from the approval vote.
type PollKind int

const (
	PollLynch PollKind = iota
	PollApproval
)

func (k PollKind) String() string {
	if k == PollApproval {
		return "approval"
	}
	return "lynch"
}

// Approval poll options.
const (
	OptionYes = "yes"
	OptionNo  = "no"
)

// Option is one selectable answer of a poll.
type Option struct {
	Key   string
	Label string
}

// Poll is a public vote in a room.
type Poll struct {
	ID      string
	Session engine.SessionID
	Room    engine.RoomID
	Round   int
	Kind    PollKind
	Voters  []engine.Member
	Targets []engine.Member
	Nominee engine.Member
}

// Options lists the answers a voter may pick.
func (p Poll) Options() []Option {
	if p.Kind == PollApproval {
		return []Option{{Key: OptionYes, Label: "Yes"}, {Key: OptionNo, Label: "No"}}
	}
	opts := make([]Option, 0, len(p.Targets))
	for _, t := range p.Targets {
		opts = append(opts, Option{Key: strconv.Itoa(int(t.Seat)), Label: t.Participant.String()})
	}
	return opts
}

// Voter returns the voting member sitting at seat.
func (p Poll) Voter(seat engine.Seat) (engine.Member, bool) {
	for _, v := range p.Voters {
		if v.Seat == seat {
			return v, true
		}
	}
	return engine.Member{}, false
}

// PollBallot is one recorded answer to a poll.
type PollBallot struct {
	Voter  engine.Seat
	Option string
}

// Solicitor collects choices from members. Every call is bounded in time;
// a missing answer is not an error but an empty result.
type Solicitor interface {
	AskForAction(ctx context.Context, req ActionRequest) (engine.Action, error)
	AskForPublicVote(ctx context.Context, poll Poll) ([]engine.Ballot, error)
	AskForApproval(ctx context.Context, poll Poll) ([]engine.ApprovalBallot, error)
	AskForFinalWords(ctx context.Context, session engine.SessionID, deceased engine.Member) (string, bool, error)
}

// Notifier delivers one-way messages. Important room messages stay visible
// (pinned) for the rest of the phase.
type Notifier interface {
	NotifyMember(ctx context.Context, to engine.Participant, text string) error
	NotifyRoom(ctx context.Context, room engine.RoomID, text string, important bool) error
}

// Prompter renders solicitations on a transport. Answers come back through
// the Broker's Submit methods.
type Prompter interface {
	PromptAction(ctx context.Context, req ActionRequest) error
	CloseAction(ctx context.Context, req ActionRequest, chosen engine.Action, answered bool) error
	OpenPoll(ctx context.Context, poll Poll) error
	UpdatePoll(ctx context.Context, poll Poll, ballots []PollBallot) error
	ClosePoll(ctx context.Context, poll Poll, ballots []PollBallot) error
	PromptFinalWords(ctx context.Context, session engine.SessionID, deceased engine.Member) error
}

// Releaser frees per-session state once a game loop exits.
type Releaser interface {
	Release(session engine.SessionID)
}
