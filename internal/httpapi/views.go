package httpapi

import (
	"time"

	"github.com/suderio/ultramafia/internal/engine"
	"github.com/suderio/ultramafia/internal/solicit"
)

// MemberView is a member as seen from outside. Roles of living members stay
// hidden until the game is over.
type MemberView struct {
	Seat        engine.Seat        `json:"seat"`
	Participant engine.Participant `json:"participant"`
	Alive       bool               `json:"alive"`
	Role        string             `json:"role,omitempty"`
	Winner      bool               `json:"winner,omitempty"`
}

// SessionView is the public state of a session.
type SessionView struct {
	ID         engine.SessionID `json:"id"`
	Room       engine.RoomID    `json:"room"`
	State      engine.State     `json:"state"`
	CreatedBy  string           `json:"created_by"`
	Members    []MemberView     `json:"members"`
	CreatedAt  time.Time        `json:"created_at"`
	StartedAt  *time.Time       `json:"started_at,omitempty"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
	Winner     engine.Faction   `json:"winner,omitempty"`
}

func sessionView(s *engine.Session) SessionView {
	v := SessionView{
		ID:        s.ID,
		Room:      s.Room,
		State:     s.State,
		CreatedBy: string(s.CreatedBy),
		Members:   make([]MemberView, 0, len(s.Members)),
		CreatedAt: s.CreatedAt,
		Winner:    s.Winner,
	}
	if !s.StartedAt.IsZero() {
		v.StartedAt = &s.StartedAt
	}
	if !s.FinishedAt.IsZero() {
		v.FinishedAt = &s.FinishedAt
	}
	for _, m := range s.Members {
		mv := MemberView{Seat: m.Seat, Participant: m.Participant, Alive: m.Alive, Winner: m.Winner}
		if m.Role != engine.RoleUnassigned && (!m.Alive || s.State.Terminal()) {
			mv.Role = m.Role.String()
		}
		v.Members = append(v.Members, mv)
	}
	return v
}

// PromptsView lists what a session waits for. Night requests and final
// words are only listed for the participant they are addressed to.
type PromptsView struct {
	Actions    []ActionPromptView `json:"actions"`
	Polls      []PollView         `json:"polls"`
	FinalWords []engine.Seat      `json:"final_words"`
}

// ActionPromptView is an open night action request.
type ActionPromptView struct {
	Seat       engine.Seat   `json:"seat"`
	Round      int           `json:"round"`
	Allowed    []string      `json:"allowed"`
	Candidates []engine.Seat `json:"candidates"`
}

// PollView is an open vote.
type PollView struct {
	ID      string        `json:"id"`
	Kind    string        `json:"kind"`
	Round   int           `json:"round"`
	Voters  []engine.Seat `json:"voters"`
	Options []OptionView  `json:"options"`
}

func promptsView(p solicit.Pending, viewer engine.ParticipantID) PromptsView {
	v := PromptsView{
		Actions:    []ActionPromptView{},
		Polls:      []PollView{},
		FinalWords: []engine.Seat{},
	}
	for _, req := range p.Actions {
		if viewer == "" || req.Actor.Participant.ID != viewer {
			continue
		}
		a := ActionPromptView{Seat: req.Actor.Seat, Round: req.Round}
		for _, k := range req.Allowed {
			a.Allowed = append(a.Allowed, k.String())
		}
		for _, c := range req.Candidates {
			a.Candidates = append(a.Candidates, c.Seat)
		}
		v.Actions = append(v.Actions, a)
	}
	for _, poll := range p.Polls {
		pv := PollView{ID: poll.ID, Kind: poll.Kind.String(), Round: poll.Round}
		for _, m := range poll.Voters {
			pv.Voters = append(pv.Voters, m.Seat)
		}
		for _, o := range poll.Options() {
			pv.Options = append(pv.Options, OptionView{Key: o.Key, Label: o.Label})
		}
		v.Polls = append(v.Polls, pv)
	}
	for _, m := range p.FinalWords {
		if viewer == "" || m.Participant.ID != viewer {
			continue
		}
		v.FinalWords = append(v.FinalWords, m.Seat)
	}
	return v
}
