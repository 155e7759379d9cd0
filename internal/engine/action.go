package engine

import (
	"fmt"
	"strings"
)

// ActionKind enumerates what a night role can do.
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionKill
	ActionInspect
	ActionHeal
)

func (k ActionKind) String() string {
	switch k {
	case ActionKill:
		return "kill"
	case ActionInspect:
		return "inspect"
	case ActionHeal:
		return "heal"
	default:
		return "none"
	}
}

// MarshalText keeps kinds readable in the event log.
func (k ActionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses the names produced by MarshalText.
func (k *ActionKind) UnmarshalText(text []byte) error {
	kind, err := ParseActionKind(string(text))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// ParseActionKind resolves an action kind name.
func ParseActionKind(name string) (ActionKind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "none", "":
		return ActionNone, nil
	case "kill":
		return ActionKill, nil
	case "inspect":
		return ActionInspect, nil
	case "heal":
		return ActionHeal, nil
	}
	return ActionNone, fmt.Errorf("unknown action %q", name)
}

// Action is a tagged variant: NoAction, Kill(target), Inspect(target) or Heal(target).
// Fields are unexported so a targeted kind always carries a target.
type Action struct {
	kind   ActionKind
	target Seat
}

// NoAction is the outcome of a skipped or timed-out solicitation.
func NoAction() Action { return Action{} }

// Kill targets a member for elimination.
func Kill(target Seat) Action { return newAction(ActionKill, target) }

// Inspect reveals the target's role to the actor.
func Inspect(target Seat) Action { return newAction(ActionInspect, target) }

// Heal protects the target for one night.
func Heal(target Seat) Action { return newAction(ActionHeal, target) }

// NewAction builds the variant for kind, collapsing invalid combinations to NoAction.
func NewAction(kind ActionKind, target Seat) Action { return newAction(kind, target) }

func newAction(kind ActionKind, target Seat) Action {
	if kind == ActionNone || target <= 0 {
		return NoAction()
	}
	return Action{kind: kind, target: target}
}

// Kind returns the variant tag.
func (a Action) Kind() ActionKind { return a.kind }

// Target returns the targeted seat; ok is false for NoAction.
func (a Action) Target() (Seat, bool) {
	if a.kind == ActionNone {
		return 0, false
	}
	return a.target, true
}

// IsNone reports whether the action does nothing.
func (a Action) IsNone() bool { return a.kind == ActionNone }

func (a Action) String() string {
	if a.IsNone() {
		return "none"
	}
	return fmt.Sprintf("%s(#%d)", a.kind, a.target)
}

// Proposal is one member's intended action for the current night.
type Proposal struct {
	From   Seat
	Action Action
}

// Ballot is a public lynch vote.
type Ballot struct {
	Voter  Seat
	Target Seat
}

// ApprovalBallot is a yes/no vote on the nominee.
type ApprovalBallot struct {
	Voter   Seat
	Approve bool
}
