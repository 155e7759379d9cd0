// Package bots seats automated players at a table. They answer every prompt
// with a random offered choice, which is enough to drive whole games in
// simulations and tests.
package bots

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/suderio/ultramafia/internal/engine"
	"github.com/suderio/ultramafia/internal/solicit"
)

var (
	_ solicit.Prompter = (*Table)(nil)
	_ solicit.Notifier = (*Table)(nil)
)

// Answers receives the bots' choices.
type Answers interface {
	SubmitAction(session engine.SessionID, actor engine.Seat, action engine.Action) error
	SubmitBallot(pollID string, voter engine.Seat, option string) error
	SubmitFinalWords(session engine.SessionID, seat engine.Seat, text string) error
}

// Options tunes how bots behave.
type Options struct {
	// Delay is how long a bot thinks before answering.
	Delay time.Duration
	// Abstain is the chance, in percent, that a bot lets a prompt time out.
	Abstain int
	// LastWords are picked from when a bot is killed; none means silence.
	LastWords []string
}

// Table plays every seat it is prompted for.
type Table struct {
	opts    Options
	rng     engine.Random
	answers Answers

	wg       sync.WaitGroup
	messages atomic.Int64
}

// New returns a table drawing its choices from rng.
func New(rng engine.Random, opts Options) *Table {
	return &Table{opts: opts, rng: rng}
}

// Bind sets where answers go. It must be called before the first prompt.
func (t *Table) Bind(answers Answers) {
	t.answers = answers
}

// Messages counts the notifications delivered to the table.
func (t *Table) Messages() int64 {
	return t.messages.Load()
}

// Wait blocks until every pending answer has been sent.
func (t *Table) Wait() {
	t.wg.Wait()
}

func (t *Table) abstains() bool {
	return t.opts.Abstain > 0 && t.rng.Intn(100) < t.opts.Abstain
}

func (t *Table) later(ctx context.Context, answer func()) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		if t.opts.Delay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(t.opts.Delay):
			}
		}
		answer()
	}()
}

func (t *Table) NotifyMember(_ context.Context, to engine.Participant, text string) error {
	t.messages.Add(1)
	log.Trace().Str("to", string(to.ID)).Msg(text)
	return nil
}

func (t *Table) NotifyRoom(_ context.Context, room engine.RoomID, text string, _ bool) error {
	t.messages.Add(1)
	log.Trace().Str("room", string(room)).Msg(text)
	return nil
}

// PromptAction picks a random offered action.
func (t *Table) PromptAction(ctx context.Context, req solicit.ActionRequest) error {
	if t.abstains() || len(req.Candidates) == 0 || len(req.Allowed) == 0 {
		return nil
	}
	kind := req.Allowed[t.rng.Intn(len(req.Allowed))]
	target := req.Candidates[t.rng.Intn(len(req.Candidates))]
	t.later(ctx, func() {
		if err := t.answers.SubmitAction(req.Session, req.Actor.Seat, engine.NewAction(kind, target.Seat)); err != nil {
			log.Debug().Err(err).Int("seat", int(req.Actor.Seat)).Msg("bot action rejected")
		}
	})
	return nil
}

func (t *Table) CloseAction(context.Context, solicit.ActionRequest, engine.Action, bool) error {
	return nil
}

// OpenPoll makes every voter pick a random option other than itself.
func (t *Table) OpenPoll(ctx context.Context, poll solicit.Poll) error {
	opts := poll.Options()
	for _, voter := range poll.Voters {
		if t.abstains() {
			continue
		}
		self := strconv.Itoa(int(voter.Seat))
		var choices []string
		for _, o := range opts {
			if o.Key != self {
				choices = append(choices, o.Key)
			}
		}
		if len(choices) == 0 {
			continue
		}
		seat, option := voter.Seat, choices[t.rng.Intn(len(choices))]
		t.later(ctx, func() {
			if err := t.answers.SubmitBallot(poll.ID, seat, option); err != nil {
				log.Debug().Err(err).Int("seat", int(seat)).Msg("bot ballot rejected")
			}
		})
	}
	return nil
}

func (t *Table) UpdatePoll(context.Context, solicit.Poll, []solicit.PollBallot) error { return nil }

func (t *Table) ClosePoll(context.Context, solicit.Poll, []solicit.PollBallot) error { return nil }

// PromptFinalWords answers with one of the configured last words.
func (t *Table) PromptFinalWords(ctx context.Context, session engine.SessionID, deceased engine.Member) error {
	if len(t.opts.LastWords) == 0 || t.abstains() {
		return nil
	}
	text := t.opts.LastWords[t.rng.Intn(len(t.opts.LastWords))]
	t.later(ctx, func() {
		_ = t.answers.SubmitFinalWords(session, deceased.Seat, text)
	})
	return nil
}
