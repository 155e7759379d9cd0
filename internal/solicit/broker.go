package solicit

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/suderio/ultramafia/internal/config"
	"github.com/suderio/ultramafia/internal/engine"
)

// Broker implements Solicitor by prompting through a transport and polling
// a per-session registry of pending requests until an answer lands or the
// window closes.
type Broker struct {
	prompter Prompter
	timings  config.Timings

	mu     sync.RWMutex
	arenas map[engine.SessionID]*arena
	polls  map[string]engine.SessionID
}

type pendingAction struct {
	req      ActionRequest
	answer   engine.Action
	answered bool
}

type pendingPoll struct {
	poll    Poll
	ballots map[engine.Seat]string
	order   []engine.Seat
	dirty   bool
}

type pendingWords struct {
	deceased engine.Member
	text     string
}

// arena is the pending state of one session, guarded by its own lock.
type arena struct {
	mu      sync.Mutex
	actions map[engine.Seat]*pendingAction
	polls   map[string]*pendingPoll
	words   map[engine.Seat]*pendingWords
}

func newArena() *arena {
	return &arena{
		actions: make(map[engine.Seat]*pendingAction),
		polls:   make(map[string]*pendingPoll),
		words:   make(map[engine.Seat]*pendingWords),
	}
}

var _ Solicitor = (*Broker)(nil)
var _ Releaser = (*Broker)(nil)

// NewBroker wires a prompter with the polling windows in t.
func NewBroker(p Prompter, t config.Timings) *Broker {
	return &Broker{
		prompter: p,
		timings:  t,
		arenas:   make(map[engine.SessionID]*arena),
		polls:    make(map[string]engine.SessionID),
	}
}

// SetPrompter swaps the transport. It must be called before any game runs.
func (b *Broker) SetPrompter(p Prompter) {
	b.prompter = p
}

func (b *Broker) arena(session engine.SessionID) *arena {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.arenas[session]
	if !ok {
		a = newArena()
		b.arenas[session] = a
	}
	return a
}

func (b *Broker) lookup(session engine.SessionID) (*arena, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	a, ok := b.arenas[session]
	return a, ok
}

// Release drops everything still pending for session.
func (b *Broker) Release(session engine.SessionID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.arenas, session)
	for id, s := range b.polls {
		if s == session {
			delete(b.polls, id)
		}
	}
}

// waitFor checks done every interval for at most window. It reports whether done held.
func waitFor(ctx context.Context, window, every time.Duration, done func() bool) bool {
	if done() {
		return true
	}
	if window <= 0 {
		return false
	}
	if every <= 0 || every > window {
		every = window
	}
	attempts := int((window + every - 1) / every)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for i := 0; i < attempts; i++ {
		select {
		case <-ctx.Done():
			return done()
		case <-ticker.C:
		}
		if done() {
			return true
		}
	}
	return false
}

// AskForAction prompts one member and waits up to the action timeout.
func (b *Broker) AskForAction(ctx context.Context, req ActionRequest) (engine.Action, error) {
	a := b.arena(req.Session)
	p := &pendingAction{req: req}
	a.mu.Lock()
	a.actions[req.Actor.Seat] = p
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		if a.actions[req.Actor.Seat] == p {
			delete(a.actions, req.Actor.Seat)
		}
		a.mu.Unlock()
	}()

	if err := b.prompter.PromptAction(ctx, req); err != nil {
		return engine.NoAction(), fmt.Errorf("%w: seat %d: %v", engine.ErrUnreachable, req.Actor.Seat, err)
	}

	chosen := engine.NoAction()
	answered := waitFor(ctx, b.timings.ActionTimeout, b.timings.PollInterval, func() bool {
		a.mu.Lock()
		defer a.mu.Unlock()
		if p.answered {
			chosen = p.answer
			return true
		}
		return false
	})
	if !answered {
		// Close the request before a late answer can slip in.
		a.mu.Lock()
		delete(a.actions, req.Actor.Seat)
		if p.answered {
			chosen, answered = p.answer, true
		}
		a.mu.Unlock()
	}

	if err := b.prompter.CloseAction(context.WithoutCancel(ctx), req, chosen, answered); err != nil {
		log.Warn().Err(err).Str("session", string(req.Session)).Int("seat", int(req.Actor.Seat)).
			Msg("failed to close action prompt")
	}
	return chosen, nil
}

// SubmitAction delivers a member's answer to an open action request.
func (b *Broker) SubmitAction(session engine.SessionID, actor engine.Seat, action engine.Action) error {
	a, ok := b.lookup(session)
	if !ok {
		return fmt.Errorf("%w: session %s", engine.ErrNotPending, session)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.actions[actor]
	if !ok || p.answered {
		return fmt.Errorf("%w: seat %d has no open request", engine.ErrNotPending, actor)
	}
	if !p.req.Offers(action) {
		return fmt.Errorf("%w: %s", ErrInvalidChoice, action)
	}
	p.answer = action
	p.answered = true
	return nil
}

// AskForPublicVote runs the nomination poll. It closes early once every voter voted.
func (b *Broker) AskForPublicVote(ctx context.Context, poll Poll) ([]engine.Ballot, error) {
	poll.Kind = PollLynch
	recorded, err := b.runPoll(ctx, poll, b.timings.LynchVote, true)
	if err != nil {
		return nil, err
	}
	ballots := make([]engine.Ballot, 0, len(recorded))
	for _, r := range recorded {
		seat, err := strconv.Atoi(r.Option)
		if err != nil {
			continue
		}
		ballots = append(ballots, engine.Ballot{Voter: r.Voter, Target: engine.Seat(seat)})
	}
	return ballots, nil
}

// AskForApproval runs the yes/no poll on the nominee for its full window.
func (b *Broker) AskForApproval(ctx context.Context, poll Poll) ([]engine.ApprovalBallot, error) {
	poll.Kind = PollApproval
	recorded, err := b.runPoll(ctx, poll, b.timings.ApprovalVote, false)
	if err != nil {
		return nil, err
	}
	ballots := make([]engine.ApprovalBallot, 0, len(recorded))
	for _, r := range recorded {
		ballots = append(ballots, engine.ApprovalBallot{Voter: r.Voter, Approve: r.Option == OptionYes})
	}
	return ballots, nil
}

func (b *Broker) runPoll(ctx context.Context, poll Poll, window time.Duration, earlyExit bool) ([]PollBallot, error) {
	a := b.arena(poll.Session)
	p := &pendingPoll{poll: poll, ballots: make(map[engine.Seat]string)}
	a.mu.Lock()
	a.polls[poll.ID] = p
	a.mu.Unlock()
	b.mu.Lock()
	b.polls[poll.ID] = poll.Session
	b.mu.Unlock()

	closePoll := func() []PollBallot {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.polls, poll.ID)
		return p.snapshot()
	}
	defer func() {
		b.mu.Lock()
		delete(b.polls, poll.ID)
		b.mu.Unlock()
	}()

	if err := b.prompter.OpenPoll(ctx, poll); err != nil {
		closePoll()
		return nil, fmt.Errorf("%w: poll %s: %v", engine.ErrUnreachable, poll.ID, err)
	}

	waitFor(ctx, window, b.timings.VotePollInterval, func() bool {
		a.mu.Lock()
		dirty := p.dirty
		p.dirty = false
		ballots := p.snapshot()
		a.mu.Unlock()

		if dirty {
			if err := b.prompter.UpdatePoll(ctx, poll, ballots); err != nil {
				log.Warn().Err(err).Str("poll", poll.ID).Msg("failed to refresh poll")
			}
		}
		return earlyExit && len(ballots) == len(poll.Voters)
	})

	ballots := closePoll()
	if err := b.prompter.ClosePoll(context.WithoutCancel(ctx), poll, ballots); err != nil {
		log.Warn().Err(err).Str("poll", poll.ID).Msg("failed to close poll")
	}
	return ballots, nil
}

func (p *pendingPoll) snapshot() []PollBallot {
	out := make([]PollBallot, 0, len(p.order))
	for _, seat := range p.order {
		out = append(out, PollBallot{Voter: seat, Option: p.ballots[seat]})
	}
	return out
}

func (b *Broker) openPoll(pollID string) (*arena, error) {
	b.mu.RLock()
	session, ok := b.polls[pollID]
	b.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: poll %s", engine.ErrNotPending, pollID)
	}
	a, ok := b.lookup(session)
	if !ok {
		return nil, fmt.Errorf("%w: poll %s", engine.ErrNotPending, pollID)
	}
	return a, nil
}

// SubmitBallot records or replaces a voter's answer to an open poll.
func (b *Broker) SubmitBallot(pollID string, voter engine.Seat, option string) error {
	a, err := b.openPoll(pollID)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.polls[pollID]
	if !ok {
		return fmt.Errorf("%w: poll %s", engine.ErrNotPending, pollID)
	}
	if _, ok := p.poll.Voter(voter); !ok {
		return fmt.Errorf("%w: seat %d may not vote", ErrInvalidChoice, voter)
	}
	if option == strconv.Itoa(int(voter)) && p.poll.Kind == PollLynch {
		return fmt.Errorf("%w: seat %d voted for itself", ErrInvalidChoice, voter)
	}
	valid := false
	for _, o := range p.poll.Options() {
		if o.Key == option {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("%w: option %q", ErrInvalidChoice, option)
	}

	if _, voted := p.ballots[voter]; !voted {
		p.order = append(p.order, voter)
	}
	if p.ballots[voter] != option {
		p.ballots[voter] = option
		p.dirty = true
	}
	return nil
}

// VoterSeat resolves the first seat a participant votes with in an open poll.
func (b *Broker) VoterSeat(pollID string, id engine.ParticipantID) (engine.Seat, error) {
	a, err := b.openPoll(pollID)
	if err != nil {
		return 0, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.polls[pollID]
	if !ok {
		return 0, fmt.Errorf("%w: poll %s", engine.ErrNotPending, pollID)
	}
	for _, v := range p.poll.Voters {
		if v.Participant.ID == id {
			return v.Seat, nil
		}
	}
	return 0, fmt.Errorf("%w: participant %s may not vote", ErrInvalidChoice, id)
}

// AskForFinalWords gives a killed member a short window to say goodbye.
func (b *Broker) AskForFinalWords(ctx context.Context, session engine.SessionID, deceased engine.Member) (string, bool, error) {
	a := b.arena(session)
	p := &pendingWords{deceased: deceased}
	a.mu.Lock()
	a.words[deceased.Seat] = p
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		delete(a.words, deceased.Seat)
		a.mu.Unlock()
	}()

	if err := b.prompter.PromptFinalWords(ctx, session, deceased); err != nil {
		return "", false, fmt.Errorf("%w: seat %d: %v", engine.ErrUnreachable, deceased.Seat, err)
	}

	var text string
	ok := waitFor(ctx, b.timings.FinalWords, b.timings.FinalWordsPoll, func() bool {
		a.mu.Lock()
		defer a.mu.Unlock()
		text = p.text
		return text != ""
	})
	return text, ok, nil
}

// SubmitFinalWords delivers the last message of a killed member.
func (b *Broker) SubmitFinalWords(session engine.SessionID, seat engine.Seat, text string) error {
	if text == "" {
		return fmt.Errorf("%w: empty message", ErrInvalidChoice)
	}
	a, ok := b.lookup(session)
	if !ok {
		return fmt.Errorf("%w: session %s", engine.ErrNotPending, session)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.words[seat]
	if !ok || p.text != "" {
		return fmt.Errorf("%w: seat %d is not asked for final words", engine.ErrNotPending, seat)
	}
	p.text = text
	return nil
}

// SubmitFinalWordsFrom routes a private message to whichever session is waiting on its author.
func (b *Broker) SubmitFinalWordsFrom(id engine.ParticipantID, text string) error {
	b.mu.RLock()
	sessions := make([]engine.SessionID, 0, len(b.arenas))
	for s := range b.arenas {
		sessions = append(sessions, s)
	}
	b.mu.RUnlock()
	sort.Slice(sessions, func(i, j int) bool { return sessions[i] < sessions[j] })

	for _, s := range sessions {
		a, ok := b.lookup(s)
		if !ok {
			continue
		}
		a.mu.Lock()
		var seat engine.Seat
		for _, p := range a.words {
			if p.deceased.Participant.ID == id && p.text == "" {
				seat = p.deceased.Seat
				break
			}
		}
		a.mu.Unlock()
		if seat != 0 {
			return b.SubmitFinalWords(s, seat, text)
		}
	}
	return fmt.Errorf("%w: %s is not asked for final words", engine.ErrNotPending, id)
}

// Pending lists what a session is currently waiting for.
type Pending struct {
	Actions    []ActionRequest
	Polls      []Poll
	FinalWords []engine.Member
}

// Pending returns a snapshot of the open requests of session.
func (b *Broker) Pending(session engine.SessionID) Pending {
	var out Pending
	a, ok := b.lookup(session)
	if !ok {
		return out
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, p := range a.actions {
		if !p.answered {
			out.Actions = append(out.Actions, p.req)
		}
	}
	for _, p := range a.polls {
		out.Polls = append(out.Polls, p.poll)
	}
	for _, p := range a.words {
		if p.text == "" {
			out.FinalWords = append(out.FinalWords, p.deceased)
		}
	}
	sort.Slice(out.Actions, func(i, j int) bool { return out.Actions[i].Actor.Seat < out.Actions[j].Actor.Seat })
	sort.Slice(out.Polls, func(i, j int) bool { return out.Polls[i].ID < out.Polls[j].ID })
	sort.Slice(out.FinalWords, func(i, j int) bool { return out.FinalWords[i].Seat < out.FinalWords[j].Seat })
	return out
}
