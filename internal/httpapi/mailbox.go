package httpapi

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/suderio/ultramafia/internal/engine"
	"github.com/suderio/ultramafia/internal/solicit"
)

var (
	_ solicit.Prompter = (*Mailbox)(nil)
	_ solicit.Notifier = (*Mailbox)(nil)
)

// Letter kinds.
const (
	LetterMessage    = "message"
	LetterPrompt     = "prompt"
	LetterPrompted   = "prompt_closed"
	LetterPoll       = "poll"
	LetterPollUpdate = "poll_update"
	LetterPollClosed = "poll_closed"
	LetterFinalWords = "final_words"
)

// Letter is one entry of a recipient's feed.
type Letter struct {
	Seq       int64            `json:"seq"`
	At        time.Time        `json:"at"`
	Kind      string           `json:"kind"`
	Text      string           `json:"text,omitempty"`
	Important bool             `json:"important,omitempty"`
	Session   engine.SessionID `json:"session,omitempty"`
	Poll      string           `json:"poll,omitempty"`
	Seat      engine.Seat      `json:"seat,omitempty"`
	Options   []OptionView     `json:"options,omitempty"`
	Tally     map[string]int   `json:"tally,omitempty"`
}

// OptionView is a choice a client can send back.
type OptionView struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Mailbox keeps what the game says to rooms and participants until an HTTP
// client polls for it. Each feed holds at most limit letters.
type Mailbox struct {
	mu    sync.Mutex
	seq   int64
	limit int
	boxes map[string][]Letter
	now   func() time.Time
}

// NewMailbox returns an empty mailbox. limit <= 0 keeps 256 letters per feed.
func NewMailbox(limit int) *Mailbox {
	if limit <= 0 {
		limit = 256
	}
	return &Mailbox{limit: limit, boxes: make(map[string][]Letter), now: time.Now}
}

func (m *Mailbox) post(recipient string, l Letter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	l.Seq = m.seq
	l.At = m.now().UTC()
	box := append(m.boxes[recipient], l)
	if len(box) > m.limit {
		box = box[len(box)-m.limit:]
	}
	m.boxes[recipient] = box
}

// Read returns the letters of recipient newer than after.
func (m *Mailbox) Read(recipient string, after int64) []Letter {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Letter{}
	for _, l := range m.boxes[recipient] {
		if l.Seq > after {
			out = append(out, l)
		}
	}
	return out
}

func (m *Mailbox) NotifyMember(_ context.Context, to engine.Participant, text string) error {
	m.post(string(to.ID), Letter{Kind: LetterMessage, Text: text})
	return nil
}

func (m *Mailbox) NotifyRoom(_ context.Context, room engine.RoomID, text string, important bool) error {
	m.post(string(room), Letter{Kind: LetterMessage, Text: text, Important: important})
	return nil
}

func (m *Mailbox) PromptAction(_ context.Context, req solicit.ActionRequest) error {
	var opts []OptionView
	for _, kind := range req.Allowed {
		for _, c := range req.Candidates {
			opts = append(opts, OptionView{
				Key:   fmt.Sprintf("%s %d", kind, c.Seat),
				Label: fmt.Sprintf("%s %s", kind, c.Participant.String()),
			})
		}
	}
	m.post(string(req.Actor.Participant.ID), Letter{
		Kind:    LetterPrompt,
		Text:    fmt.Sprintf("Night #%d. Choose your move.", req.Round),
		Session: req.Session,
		Seat:    req.Actor.Seat,
		Options: opts,
	})
	return nil
}

func (m *Mailbox) CloseAction(_ context.Context, req solicit.ActionRequest, chosen engine.Action, answered bool) error {
	text := "Time is up."
	if answered {
		text = "You chose: " + chosen.String()
	}
	m.post(string(req.Actor.Participant.ID), Letter{
		Kind:    LetterPrompted,
		Text:    text,
		Session: req.Session,
		Seat:    req.Actor.Seat,
	})
	return nil
}

func (m *Mailbox) OpenPoll(_ context.Context, poll solicit.Poll) error {
	m.post(string(poll.Room), pollLetter(LetterPoll, poll, nil))
	return nil
}

func (m *Mailbox) UpdatePoll(_ context.Context, poll solicit.Poll, ballots []solicit.PollBallot) error {
	m.post(string(poll.Room), pollLetter(LetterPollUpdate, poll, ballots))
	return nil
}

func (m *Mailbox) ClosePoll(_ context.Context, poll solicit.Poll, ballots []solicit.PollBallot) error {
	m.post(string(poll.Room), pollLetter(LetterPollClosed, poll, ballots))
	return nil
}

func pollLetter(kind string, poll solicit.Poll, ballots []solicit.PollBallot) Letter {
	l := Letter{Kind: kind, Session: poll.Session, Poll: poll.ID}
	if poll.Kind == solicit.PollApproval {
		l.Text = "Do we hang " + poll.Nominee.Participant.String() + "?"
	} else {
		l.Text = "Who do we hang? Round " + strconv.Itoa(poll.Round)
	}
	if kind == LetterPoll {
		for _, o := range poll.Options() {
			l.Options = append(l.Options, OptionView{Key: o.Key, Label: o.Label})
		}
	}
	if ballots != nil {
		l.Tally = make(map[string]int)
		for _, b := range ballots {
			l.Tally[b.Option]++
		}
	}
	return l
}

func (m *Mailbox) PromptFinalWords(_ context.Context, session engine.SessionID, deceased engine.Member) error {
	m.post(string(deceased.Participant.ID), Letter{
		Kind:    LetterFinalWords,
		Text:    "You were killed. You may leave your last words.",
		Session: session,
		Seat:    deceased.Seat,
	})
	return nil
}
