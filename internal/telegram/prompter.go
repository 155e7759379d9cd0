package telegram

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/suderio/ultramafia/internal/engine"
	"github.com/suderio/ultramafia/internal/parser"
	"github.com/suderio/ultramafia/internal/solicit"
)

var (
	_ solicit.Prompter = (*Bot)(nil)
	_ solicit.Notifier = (*Bot)(nil)
)

type promptKey struct {
	session engine.SessionID
	seat    engine.Seat
}

var kindIcons = map[engine.ActionKind]string{
	engine.ActionKill:    "🔪",
	engine.ActionInspect: "🔎",
	engine.ActionHeal:    "💊",
}

// NotifyMember writes to the member's private chat.
func (b *Bot) NotifyMember(ctx context.Context, to engine.Participant, text string) error {
	chatID, err := chatOf(string(to.ID))
	if err != nil {
		return fmt.Errorf("%w: %s is not a telegram user", engine.ErrUnreachable, to.ID)
	}
	_, err = b.client.SendMessage(ctx, chatID, text, nil)
	return err
}

// NotifyRoom writes to the group. An important message replaces the
// previously pinned one.
func (b *Bot) NotifyRoom(ctx context.Context, room engine.RoomID, text string, important bool) error {
	chatID, err := chatOf(string(room))
	if err != nil {
		return fmt.Errorf("%w: %s is not a telegram chat", engine.ErrUnreachable, room)
	}
	id, err := b.client.SendMessage(ctx, chatID, text, nil)
	if err != nil || !important {
		return err
	}
	b.pin(ctx, room, chatID, id)
	return nil
}

func (b *Bot) pin(ctx context.Context, room engine.RoomID, chatID int64, messageID int) {
	b.mu.Lock()
	previous, had := b.pinned[room]
	b.pinned[room] = messageID
	b.mu.Unlock()

	if had {
		if err := b.client.UnpinChatMessage(ctx, chatID, previous); err != nil {
			log.Debug().Err(err).Msg("failed to unpin message")
		}
	}
	if err := b.client.PinChatMessage(ctx, chatID, messageID); err != nil {
		log.Warn().Err(err).Str("room", string(room)).Msg("failed to pin message, is the bot an admin?")
	}
}

func (b *Bot) unpin(ctx context.Context, room engine.RoomID) {
	b.mu.Lock()
	id, had := b.pinned[room]
	delete(b.pinned, room)
	b.mu.Unlock()
	if !had {
		return
	}
	if chatID, err := chatOf(string(room)); err == nil {
		_ = b.client.UnpinChatMessage(ctx, chatID, id)
	}
}

// PromptAction sends the night choices to the actor as inline buttons.
func (b *Bot) PromptAction(ctx context.Context, req solicit.ActionRequest) error {
	chatID, err := chatOf(string(req.Actor.Participant.ID))
	if err != nil {
		return err
	}
	var rows [][]InlineKeyboardButton
	for _, kind := range req.Allowed {
		for _, c := range req.Candidates {
			action := engine.NewAction(kind, c.Seat)
			rows = append(rows, []InlineKeyboardButton{{
				Text:         kindIcons[kind] + " " + c.Participant.String(),
				CallbackData: parser.EncodeAct(req.Session, req.Actor.Seat, action),
			}})
		}
	}
	rows = append(rows, []InlineKeyboardButton{{
		Text:         "Skip",
		CallbackData: parser.EncodeAct(req.Session, req.Actor.Seat, engine.NoAction()),
	}})

	text := fmt.Sprintf("Night #%d. Choose your move:", req.Round)
	id, err := b.client.SendMessage(ctx, chatID, text, &InlineKeyboardMarkup{InlineKeyboard: rows})
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.prompts[promptKey{req.Session, req.Actor.Seat}] = id
	b.mu.Unlock()
	return nil
}

// CloseAction replaces the buttons with the outcome.
func (b *Bot) CloseAction(ctx context.Context, req solicit.ActionRequest, chosen engine.Action, answered bool) error {
	key := promptKey{req.Session, req.Actor.Seat}
	b.mu.Lock()
	id, ok := b.prompts[key]
	delete(b.prompts, key)
	b.mu.Unlock()
	if !ok {
		return nil
	}
	chatID, err := chatOf(string(req.Actor.Participant.ID))
	if err != nil {
		return err
	}

	text := "Time is up, you did nothing tonight."
	if answered {
		text = "You chose: " + choiceLabel(req, chosen)
	}
	return b.client.EditMessageText(ctx, chatID, id, text, nil)
}

func choiceLabel(req solicit.ActionRequest, a engine.Action) string {
	target, ok := a.Target()
	if !ok {
		return "skip"
	}
	for _, c := range req.Candidates {
		if c.Seat == target {
			return fmt.Sprintf("%s <b>%s</b>", a.Kind(), c.Participant.String())
		}
	}
	return a.String()
}

// OpenPoll posts the vote in the room.
func (b *Bot) OpenPoll(ctx context.Context, poll solicit.Poll) error {
	chatID, err := chatOf(string(poll.Room))
	if err != nil {
		return err
	}
	id, err := b.client.SendMessage(ctx, chatID, pollText(poll, nil), pollKeyboard(poll))
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.polls[poll.ID] = id
	b.mu.Unlock()
	return nil
}

// UpdatePoll refreshes the tally under the question.
func (b *Bot) UpdatePoll(ctx context.Context, poll solicit.Poll, ballots []solicit.PollBallot) error {
	return b.editPoll(ctx, poll, ballots, false)
}

// ClosePoll shows the final tally without buttons.
func (b *Bot) ClosePoll(ctx context.Context, poll solicit.Poll, ballots []solicit.PollBallot) error {
	return b.editPoll(ctx, poll, ballots, true)
}

func (b *Bot) editPoll(ctx context.Context, poll solicit.Poll, ballots []solicit.PollBallot, closed bool) error {
	b.mu.Lock()
	id, ok := b.polls[poll.ID]
	if closed {
		delete(b.polls, poll.ID)
	}
	b.mu.Unlock()
	if !ok {
		return nil
	}
	chatID, err := chatOf(string(poll.Room))
	if err != nil {
		return err
	}
	var keyboard *InlineKeyboardMarkup
	text := pollText(poll, ballots)
	if closed {
		text += "\n\nVoting is over."
	} else {
		keyboard = pollKeyboard(poll)
	}
	return b.client.EditMessageText(ctx, chatID, id, text, keyboard)
}

func pollKeyboard(poll solicit.Poll) *InlineKeyboardMarkup {
	var rows [][]InlineKeyboardButton
	for _, opt := range poll.Options() {
		rows = append(rows, []InlineKeyboardButton{{
			Text:         opt.Label,
			CallbackData: parser.EncodeVote(poll.ID, opt.Key),
		}})
	}
	return &InlineKeyboardMarkup{InlineKeyboard: rows}
}

func pollText(poll solicit.Poll, ballots []solicit.PollBallot) string {
	var sb strings.Builder
	if poll.Kind == solicit.PollApproval {
		fmt.Fprintf(&sb, "Do we hang <b>%s</b>?", poll.Nominee.Participant.String())
	} else {
		sb.WriteString("Time to decide who to hang. Pick a suspect:")
	}

	counts := make(map[string]int)
	for _, bal := range ballots {
		counts[bal.Option]++
	}
	if len(ballots) == 0 {
		return sb.String()
	}
	sb.WriteString("\n")
	for _, opt := range poll.Options() {
		if n := counts[opt.Key]; n > 0 {
			fmt.Fprintf(&sb, "\n%s: %d", opt.Label, n)
		}
	}
	fmt.Fprintf(&sb, "\n\nVoted: %d of %d", len(ballots), len(poll.Voters))
	return sb.String()
}

// PromptFinalWords asks the deceased for a last message in private.
func (b *Bot) PromptFinalWords(ctx context.Context, _ engine.SessionID, deceased engine.Member) error {
	return b.NotifyMember(ctx, deceased.Participant,
		"You were killed :(\nYou can send me your last message.")
}
